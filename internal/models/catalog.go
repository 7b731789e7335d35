package models

import "time"

// Known top-level categories. The set is small but extensible: validation
// happens against KnownCategories, so adding one is a single edit here.
const (
	CategoryDSC   = "DSC"
	CategoryGE    = "GE"
	CategoryVAC   = "VAC"
	CategoryAEC   = "AEC"
	CategorySEC   = "SEC"
	CategoryOther = "Other"
)

// KnownCategories lists the accepted category keys in display order.
var KnownCategories = []string{
	CategoryDSC,
	CategoryGE,
	CategoryVAC,
	CategoryAEC,
	CategorySEC,
	CategoryOther,
}

// IsKnownCategory reports whether the given key is an accepted category.
func IsKnownCategory(category string) bool {
	for _, c := range KnownCategories {
		if c == category {
			return true
		}
	}
	return false
}

// ContentType enumerates the supported kinds of content items.
type ContentType string

const (
	ContentTypeVideo ContentType = "VIDEO"
	ContentTypePDF   ContentType = "PDF"
	ContentTypePYQ   ContentType = "PYQ"
)

// Valid reports whether the content type is one of the recognized values.
func (t ContentType) Valid() bool {
	switch t {
	case ContentTypeVideo, ContentTypePDF, ContentTypePYQ:
		return true
	}
	return false
}

// Subject is one node of the Category → Stream → Subject hierarchy. The
// (category, stream, name) triple is unique; subjects are never deleted.
type Subject struct {
	ID        string    `db:"id" json:"id"`
	Category  string    `db:"category" json:"category"`
	Stream    string    `db:"stream" json:"stream"`
	Name      string    `db:"name" json:"name"`
	CreatedBy string    `db:"created_by" json:"created_by,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ContentItem is an immutable link to learning content under a subject.
// Items only accumulate; the serial id doubles as append order.
type ContentItem struct {
	ID          int64       `db:"id" json:"id"`
	SubjectID   string      `db:"subject_id" json:"-"`
	Title       string      `db:"title" json:"title"`
	ContentType ContentType `db:"content_type" json:"type"`
	Link        string      `db:"link" json:"link"`
	UploadedBy  string      `db:"uploaded_by" json:"uploaded_by,omitempty"`
	CreatedAt   time.Time   `db:"created_at" json:"uploaded_at"`
}

// CatalogEntry is one joined row of the materialized catalog: the full path
// plus an optional content item (content columns are NULL for empty subjects).
type CatalogEntry struct {
	Category    string       `db:"category"`
	Stream      string       `db:"stream"`
	Subject     string       `db:"subject"`
	ItemID      *int64       `db:"item_id"`
	Title       *string      `db:"title"`
	ContentType *ContentType `db:"content_type"`
	Link        *string      `db:"link"`
	UploadedBy  *string      `db:"uploaded_by"`
	UploadedAt  *time.Time   `db:"uploaded_at"`
}

// CatalogTree is the full materialized Category→Stream→Subject→[ContentItem]
// view. Subjects with no content map to an empty (non-nil) slice.
type CatalogTree map[string]map[string]map[string][]ContentItem

// ContentFilter carries the cascading content query. A deeper level must not
// be set without its parent; the filter resolver enforces that.
type ContentFilter struct {
	Category string
	Stream   string
	Subject  string
}
