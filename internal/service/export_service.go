package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/edu-sharks/lms-api/internal/models"
	appErrors "github.com/edu-sharks/lms-api/pkg/errors"
	"github.com/edu-sharks/lms-api/pkg/export"
	"github.com/edu-sharks/lms-api/pkg/jobs"
	"github.com/edu-sharks/lms-api/pkg/storage"
)

type exportRepository interface {
	Create(ctx context.Context, job *models.ExportJob) error
	FindByID(ctx context.Context, id string) (*models.ExportJob, error)
	UpdateStatus(ctx context.Context, id, status, filePath, errMsg string) error
}

type exportContentSource interface {
	ListContent(ctx context.Context, filter models.ContentFilter) ([]models.CatalogEntry, error)
}

type exportActivitySource interface {
	ListAll(ctx context.Context) ([]models.ActivityLog, error)
}

type exportQueue interface {
	Enqueue(job jobs.Job) error
}

// CreateExportRequest asks for one dataset in one format.
type CreateExportRequest struct {
	Dataset string `json:"dataset"`
	Format  string `json:"format"`
}

// ExportStatus is the job state returned to the requester. DownloadURL is set
// once the job completes.
type ExportStatus struct {
	ID          string    `json:"id"`
	Dataset     string    `json:"dataset"`
	Format      string    `json:"format"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	DownloadURL string    `json:"download_url,omitempty"`
	ExpiresAt   time.Time `json:"expires_at,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ExportService creates export jobs, reports their status and resolves
// signed download tokens.
type ExportService struct {
	repo    exportRepository
	queue   exportQueue
	signer  *storage.SignedURLSigner
	storage *storage.LocalStorage
	logger  *zap.Logger
}

// NewExportService creates an export service.
func NewExportService(repo exportRepository, queue exportQueue, signer *storage.SignedURLSigner, store *storage.LocalStorage, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{repo: repo, queue: queue, signer: signer, storage: store, logger: logger}
}

// CreateJob validates the request, persists a pending job and enqueues it.
func (s *ExportService) CreateJob(ctx context.Context, req CreateExportRequest, actor *models.JWTClaims) (*models.ExportJob, error) {
	dataset := models.ExportDataset(req.Dataset)
	if dataset != models.ExportDatasetCatalog && dataset != models.ExportDatasetActivity {
		return nil, appErrors.Clone(appErrors.ErrValidation, "dataset must be catalog or activity")
	}
	format := models.ExportFormat(req.Format)
	if format != models.ExportFormatCSV && format != models.ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	job := &models.ExportJob{
		Dataset: dataset,
		Format:  format,
		Status:  models.ExportStatusPending,
	}
	if actor != nil {
		job.RequestedBy = actor.Username
	}

	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to create export job")
	}

	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: "export"}); err != nil {
		if uerr := s.repo.UpdateStatus(ctx, job.ID, models.ExportStatusFailed, "", "queue unavailable"); uerr != nil {
			s.logger.Warn("failed to mark export job failed", zap.String("job_id", job.ID), zap.Error(uerr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue export job")
	}

	return job, nil
}

// GetStatus returns the job state with a signed download URL when completed.
func (s *ExportService) GetStatus(ctx context.Context, id string) (*ExportStatus, error) {
	job, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to load export job")
	}

	status := &ExportStatus{
		ID:        job.ID,
		Dataset:   string(job.Dataset),
		Format:    string(job.Format),
		Status:    job.Status,
		Error:     job.Error,
		CreatedAt: job.CreatedAt,
		UpdatedAt: job.UpdatedAt,
	}

	if job.Status == models.ExportStatusCompleted && job.FilePath != "" && s.signer != nil {
		token, expiresAt, err := s.signer.Generate(job.ID, job.FilePath)
		if err != nil {
			s.logger.Warn("failed to sign export download", zap.String("job_id", job.ID), zap.Error(err))
		} else {
			status.DownloadURL = "/exports/download?token=" + token
			status.ExpiresAt = expiresAt
		}
	}

	return status, nil
}

// ResolveDownload validates a signed token and opens the export file.
func (s *ExportService) ResolveDownload(ctx context.Context, token string) (*os.File, *models.ExportJob, error) {
	jobID, relPath, _, err := s.signer.Parse(token)
	if err != nil {
		return nil, nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired download token")
	}

	job, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to load export job")
	}
	if job.Status != models.ExportStatusCompleted || job.FilePath != relPath {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "export file not available")
	}

	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to open export file")
	}
	return file, job, nil
}

// StartCleanup prunes expired export files on an interval until ctx ends.
func (s *ExportService) StartCleanup(ctx context.Context, interval, ttl time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				deleted, err := s.storage.CleanupOlderThan(ttl)
				if err != nil {
					s.logger.Warn("export cleanup failed", zap.Error(err))
					continue
				}
				if len(deleted) > 0 {
					s.logger.Info("export files pruned", zap.Int("count", len(deleted)))
				}
			}
		}
	}()
}

// ExportWorker renders export jobs pulled off the queue.
type ExportWorker struct {
	repo     exportRepository
	content  exportContentSource
	activity exportActivitySource
	csv      *export.CSVExporter
	pdf      *export.PDFExporter
	storage  *storage.LocalStorage
	logger   *zap.Logger
}

// NewExportWorker creates a worker bound to the given sources.
func NewExportWorker(repo exportRepository, content exportContentSource, activity exportActivitySource, store *storage.LocalStorage, logger *zap.Logger) *ExportWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportWorker{
		repo:     repo,
		content:  content,
		activity: activity,
		csv:      export.NewCSVExporter(),
		pdf:      export.NewPDFExporter(),
		storage:  store,
		logger:   logger,
	}
}

// Handle processes one queued export job.
func (w *ExportWorker) Handle(ctx context.Context, job jobs.Job) error {
	record, err := w.repo.FindByID(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("load export job %s: %w", job.ID, err)
	}
	if record.Status == models.ExportStatusCompleted {
		return nil
	}

	if err := w.repo.UpdateStatus(ctx, record.ID, models.ExportStatusRunning, "", ""); err != nil {
		return fmt.Errorf("mark export job running: %w", err)
	}

	data, err := w.buildDataset(ctx, record.Dataset)
	if err != nil {
		return w.fail(ctx, record, err)
	}

	var payload []byte
	switch record.Format {
	case models.ExportFormatCSV:
		payload, err = w.csv.Render(data)
	case models.ExportFormatPDF:
		payload, err = w.pdf.Render(data, string(record.Dataset)+" export")
	default:
		err = fmt.Errorf("unsupported format %q", record.Format)
	}
	if err != nil {
		return w.fail(ctx, record, err)
	}

	filename := fmt.Sprintf("%s/%s.%s", record.Dataset, record.ID, record.Format)
	relPath, err := w.storage.Save(filename, payload)
	if err != nil {
		return w.fail(ctx, record, err)
	}

	if err := w.repo.UpdateStatus(ctx, record.ID, models.ExportStatusCompleted, relPath, ""); err != nil {
		return fmt.Errorf("mark export job completed: %w", err)
	}
	w.logger.Info("export job completed", zap.String("job_id", record.ID), zap.String("dataset", string(record.Dataset)))
	return nil
}

func (w *ExportWorker) fail(ctx context.Context, record *models.ExportJob, cause error) error {
	if err := w.repo.UpdateStatus(ctx, record.ID, models.ExportStatusFailed, "", cause.Error()); err != nil {
		w.logger.Warn("failed to mark export job failed", zap.String("job_id", record.ID), zap.Error(err))
	}
	return fmt.Errorf("export job %s: %w", record.ID, cause)
}

func (w *ExportWorker) buildDataset(ctx context.Context, dataset models.ExportDataset) (export.Dataset, error) {
	switch dataset {
	case models.ExportDatasetCatalog:
		entries, err := w.content.ListContent(ctx, models.ContentFilter{})
		if err != nil {
			return export.Dataset{}, err
		}
		data := export.Dataset{Headers: []string{"Category", "Stream", "Subject", "Title", "Type", "Link", "Uploaded By", "Uploaded At"}}
		for _, e := range entries {
			if e.ItemID == nil {
				continue
			}
			data.Rows = append(data.Rows, map[string]string{
				"Category":    e.Category,
				"Stream":      e.Stream,
				"Subject":     e.Subject,
				"Title":       deref(e.Title),
				"Type":        string(derefType(e.ContentType)),
				"Link":        deref(e.Link),
				"Uploaded By": deref(e.UploadedBy),
				"Uploaded At": derefTime(e.UploadedAt).Format(time.RFC3339),
			})
		}
		return data, nil
	case models.ExportDatasetActivity:
		entries, err := w.activity.ListAll(ctx)
		if err != nil {
			return export.Dataset{}, err
		}
		data := export.Dataset{Headers: []string{"#", "Timestamp", "Username", "Action", "Details", "IP"}}
		for i, e := range entries {
			data.Rows = append(data.Rows, map[string]string{
				"#":         strconv.Itoa(i + 1),
				"Timestamp": e.CreatedAt.Format(time.RFC3339),
				"Username":  e.Username,
				"Action":    e.Action,
				"Details":   e.Details,
				"IP":        e.IPAddress,
			})
		}
		return data, nil
	}
	return export.Dataset{}, fmt.Errorf("unsupported dataset %q", dataset)
}
