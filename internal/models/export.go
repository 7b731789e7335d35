package models

import "time"

// ExportDataset names an exportable dataset.
type ExportDataset string

const (
	ExportDatasetCatalog  ExportDataset = "catalog"
	ExportDatasetActivity ExportDataset = "activity"
)

// ExportFormat names a supported output format.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// Export job states.
const (
	ExportStatusPending   = "PENDING"
	ExportStatusRunning   = "RUNNING"
	ExportStatusCompleted = "COMPLETED"
	ExportStatusFailed    = "FAILED"
)

// ExportJob tracks one asynchronous export request.
type ExportJob struct {
	ID          string        `db:"id" json:"id"`
	Dataset     ExportDataset `db:"dataset" json:"dataset"`
	Format      ExportFormat  `db:"format" json:"format"`
	Status      string        `db:"status" json:"status"`
	FilePath    string        `db:"file_path" json:"-"`
	Error       string        `db:"error" json:"error,omitempty"`
	RequestedBy string        `db:"requested_by" json:"requested_by"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time     `db:"updated_at" json:"updated_at"`
}
