package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/edu-sharks/lms-api/internal/models"
)

// CatalogRepository persists the Category → Stream → Subject → content tree
// as relational rows.
type CatalogRepository struct {
	db *sqlx.DB
}

// NewCatalogRepository creates a new repository instance.
func NewCatalogRepository(db *sqlx.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// CreateSubject inserts the subject unless the (category, stream, name)
// triple already exists. Returns false without error on conflict, so two
// concurrent creates resolve to exactly one winner.
func (r *CatalogRepository) CreateSubject(ctx context.Context, subject *models.Subject) (bool, error) {
	if subject.ID == "" {
		subject.ID = uuid.NewString()
	}
	if subject.CreatedAt.IsZero() {
		subject.CreatedAt = time.Now().UTC()
	}

	const query = `INSERT INTO subjects (id, category, stream, name, created_by, created_at)
		VALUES (:id, :category, :stream, :name, :created_by, :created_at)
		ON CONFLICT (category, stream, name) DO NOTHING`
	res, err := r.db.NamedExecContext(ctx, query, subject)
	if err != nil {
		return false, fmt.Errorf("create subject: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("create subject rows affected: %w", err)
	}
	return affected > 0, nil
}

// FindSubject returns the subject at the exact path. sql.ErrNoRows is
// returned untouched when the path does not exist.
func (r *CatalogRepository) FindSubject(ctx context.Context, category, stream, name string) (*models.Subject, error) {
	const query = `SELECT id, category, stream, name, created_by, created_at FROM subjects WHERE category = $1 AND stream = $2 AND name = $3 LIMIT 1`
	var subject models.Subject
	if err := r.db.GetContext(ctx, &subject, query, category, stream, name); err != nil {
		return nil, err
	}
	return &subject, nil
}

// ListCategories returns the distinct categories that have at least one
// subject, in lexical order.
func (r *CatalogRepository) ListCategories(ctx context.Context) ([]string, error) {
	var categories []string
	if err := r.db.SelectContext(ctx, &categories, `SELECT DISTINCT category FROM subjects ORDER BY category`); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

// ListStreams returns the distinct streams under a category.
func (r *CatalogRepository) ListStreams(ctx context.Context, category string) ([]string, error) {
	var streams []string
	if err := r.db.SelectContext(ctx, &streams, `SELECT DISTINCT stream FROM subjects WHERE category = $1 ORDER BY stream`, category); err != nil {
		return nil, fmt.Errorf("list streams: %w", err)
	}
	return streams, nil
}

// ListSubjectNames returns the distinct subject names under a stream.
func (r *CatalogRepository) ListSubjectNames(ctx context.Context, category, stream string) ([]string, error) {
	var names []string
	if err := r.db.SelectContext(ctx, &names, `SELECT DISTINCT name FROM subjects WHERE category = $1 AND stream = $2 ORDER BY name`, category, stream); err != nil {
		return nil, fmt.Errorf("list subject names: %w", err)
	}
	return names, nil
}

// InsertContent appends a content item to an existing subject. The serial id
// assigned by the database fixes the display order.
func (r *CatalogRepository) InsertContent(ctx context.Context, item *models.ContentItem) error {
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO content_items (subject_id, title, content_type, link, uploaded_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`
	if err := r.db.GetContext(ctx, &item.ID, query, item.SubjectID, item.Title, item.ContentType, item.Link, item.UploadedBy, item.CreatedAt); err != nil {
		return fmt.Errorf("insert content item: %w", err)
	}
	return nil
}

// ListContent returns content rows matching the (already validated) filter,
// in append order within each subject.
func (r *CatalogRepository) ListContent(ctx context.Context, filter models.ContentFilter) ([]models.CatalogEntry, error) {
	query := `SELECT s.category, s.stream, s.name AS subject,
		c.id AS item_id, c.title, c.content_type, c.link, c.uploaded_by, c.created_at AS uploaded_at
		FROM subjects s
		JOIN content_items c ON c.subject_id = s.id`
	var conditions []string
	var args []interface{}

	if filter.Category != "" {
		conditions = append(conditions, fmt.Sprintf("s.category = $%d", len(args)+1))
		args = append(args, filter.Category)
	}
	if filter.Stream != "" {
		conditions = append(conditions, fmt.Sprintf("s.stream = $%d", len(args)+1))
		args = append(args, filter.Stream)
	}
	if filter.Subject != "" {
		conditions = append(conditions, fmt.Sprintf("s.name = $%d", len(args)+1))
		args = append(args, filter.Subject)
	}

	for i, cond := range conditions {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}
	query += " ORDER BY s.category, s.stream, s.name, c.id"

	var entries []models.CatalogEntry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("list content: %w", err)
	}
	return entries, nil
}

// TreeEntries returns every subject with its content items (if any) for
// materializing the full catalog tree. Subjects without content appear as a
// single row with NULL item columns.
func (r *CatalogRepository) TreeEntries(ctx context.Context) ([]models.CatalogEntry, error) {
	const query = `SELECT s.category, s.stream, s.name AS subject,
		c.id AS item_id, c.title, c.content_type, c.link, c.uploaded_by, c.created_at AS uploaded_at
		FROM subjects s
		LEFT JOIN content_items c ON c.subject_id = s.id
		ORDER BY s.category, s.stream, s.name, c.id`
	var entries []models.CatalogEntry
	if err := r.db.SelectContext(ctx, &entries, query); err != nil {
		return nil, fmt.Errorf("load catalog entries: %w", err)
	}
	return entries, nil
}
