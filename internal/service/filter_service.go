package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/edu-sharks/lms-api/internal/models"
	appErrors "github.com/edu-sharks/lms-api/pkg/errors"
)

type filterRepository interface {
	ListCategories(ctx context.Context) ([]string, error)
	ListStreams(ctx context.Context, category string) ([]string, error)
	ListSubjectNames(ctx context.Context, category, stream string) ([]string, error)
	ListContent(ctx context.Context, filter models.ContentFilter) ([]models.CatalogEntry, error)
}

// ContentListItem is one content row with its full path, as returned by the
// cascading content query.
type ContentListItem struct {
	Category   string             `json:"category"`
	Stream     string             `json:"stream"`
	Subject    string             `json:"subject"`
	ID         int64              `json:"id"`
	Title      string             `json:"title"`
	Type       models.ContentType `json:"type"`
	Link       string             `json:"link"`
	UploadedBy string             `json:"uploaded_by,omitempty"`
	UploadedAt time.Time          `json:"uploaded_at"`
}

// FilterService resolves the cascading category → stream → subject filters
// and the filtered content listing.
type FilterService struct {
	repo   filterRepository
	logger *zap.Logger
}

// NewFilterService creates a filter service.
func NewFilterService(repo filterRepository, logger *zap.Logger) *FilterService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FilterService{repo: repo, logger: logger}
}

// Categories returns categories that currently have at least one subject.
func (s *FilterService) Categories(ctx context.Context) ([]string, error) {
	values, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to list categories")
	}
	if values == nil {
		values = []string{}
	}
	return values, nil
}

// Streams returns streams under the given category. An unknown category
// yields an empty list, not an error.
func (s *FilterService) Streams(ctx context.Context, category string) ([]string, error) {
	if category == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "category is required")
	}
	values, err := s.repo.ListStreams(ctx, category)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to list streams")
	}
	if values == nil {
		values = []string{}
	}
	return values, nil
}

// Subjects returns subject names under the given category and stream.
func (s *FilterService) Subjects(ctx context.Context, category, stream string) ([]string, error) {
	if category == "" || stream == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "category and stream are required")
	}
	values, err := s.repo.ListSubjectNames(ctx, category, stream)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to list subjects")
	}
	if values == nil {
		values = []string{}
	}
	return values, nil
}

// Content returns content rows matching the filter. Filters cascade: a
// deeper level is rejected unless its parent is also set.
func (s *FilterService) Content(ctx context.Context, filter models.ContentFilter) ([]ContentListItem, error) {
	if filter.Stream != "" && filter.Category == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "stream filter requires category")
	}
	if filter.Subject != "" && filter.Stream == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "subject filter requires stream")
	}

	entries, err := s.repo.ListContent(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to list content")
	}

	items := make([]ContentListItem, 0, len(entries))
	for _, e := range entries {
		if e.ItemID == nil {
			continue
		}
		items = append(items, ContentListItem{
			Category:   e.Category,
			Stream:     e.Stream,
			Subject:    e.Subject,
			ID:         *e.ItemID,
			Title:      deref(e.Title),
			Type:       derefType(e.ContentType),
			Link:       deref(e.Link),
			UploadedBy: deref(e.UploadedBy),
			UploadedAt: derefTime(e.UploadedAt),
		})
	}
	return items, nil
}
