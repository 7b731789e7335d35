package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edu-sharks/lms-api/internal/models"
	appErrors "github.com/edu-sharks/lms-api/pkg/errors"
)

const catalogTreeCacheKey = "catalog:tree"

type catalogRepository interface {
	CreateSubject(ctx context.Context, subject *models.Subject) (bool, error)
	FindSubject(ctx context.Context, category, stream, name string) (*models.Subject, error)
	InsertContent(ctx context.Context, item *models.ContentItem) error
	TreeEntries(ctx context.Context) ([]models.CatalogEntry, error)
}

type catalogCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

type activityRecorder interface {
	Insert(ctx context.Context, entry *models.ActivityLog) error
}

// CreateSubjectRequest captures fields for creating a subject node.
type CreateSubjectRequest struct {
	Category string `json:"category" validate:"required"`
	Stream   string `json:"stream" validate:"required"`
	Name     string `json:"name" validate:"required"`
}

// CatalogConfig tunes catalog read caching.
type CatalogConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
}

// CatalogService owns the content tree: subject creation, content appends
// and the materialized tree view.
type CatalogService struct {
	repo      catalogRepository
	cache     catalogCache
	activity  activityRecorder
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	config    CatalogConfig
}

// NewCatalogService creates a catalog service.
func NewCatalogService(repo catalogRepository, cache catalogCache, activity activityRecorder, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, config CatalogConfig) *CatalogService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = 5 * time.Minute
	}
	return &CatalogService{repo: repo, cache: cache, activity: activity, metrics: metrics, validator: validate, logger: logger, config: config}
}

// Tree returns the full Category→Stream→Subject→[ContentItem] view, cached
// when a cache is configured.
func (s *CatalogService) Tree(ctx context.Context) (models.CatalogTree, error) {
	if s.useCache() {
		var cached models.CatalogTree
		if err := s.cache.Get(ctx, catalogTreeCacheKey, &cached); err == nil {
			s.metrics.RecordCacheLookup(true)
			return cached, nil
		}
		s.metrics.RecordCacheLookup(false)
	}

	entries, err := s.repo.TreeEntries(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to load catalog")
	}
	tree := buildTree(entries)

	if s.useCache() {
		if err := s.cache.Set(ctx, catalogTreeCacheKey, tree, s.config.CacheTTL); err != nil {
			s.logger.Warn("failed to cache catalog tree", zap.Error(err))
		}
	}
	return tree, nil
}

// CreateSubject adds a subject node to the hierarchy. A duplicate
// (category, stream, name) triple yields ALREADY_EXISTS without mutation.
func (s *CatalogService) CreateSubject(ctx context.Context, req CreateSubjectRequest, actor *models.JWTClaims) (*models.Subject, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid subject payload")
	}

	req.Category = strings.TrimSpace(req.Category)
	req.Stream = strings.TrimSpace(req.Stream)
	req.Name = strings.TrimSpace(req.Name)
	if req.Category == "" || req.Stream == "" || req.Name == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "category, stream and name must not be blank")
	}
	if !models.IsKnownCategory(req.Category) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown category")
	}

	subject := &models.Subject{
		Category: req.Category,
		Stream:   req.Stream,
		Name:     req.Name,
	}
	if actor != nil {
		subject.CreatedBy = actor.Username
	}

	created, err := s.repo.CreateSubject(ctx, subject)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to create subject")
	}
	if !created {
		return nil, appErrors.Clone(appErrors.ErrAlreadyExists, "subject already exists under this stream")
	}

	s.invalidate(ctx)
	s.recordActivity(ctx, actor, models.ActivityActionSubjectCreate, req.Category+" / "+req.Stream+" / "+req.Name)

	return subject, nil
}

// AppendContent attaches a content item to an existing path. A missing path
// is NOT_FOUND: subjects must be created explicitly first.
func (s *CatalogService) AppendContent(ctx context.Context, category, stream, subjectName string, item *models.ContentItem) error {
	subject, err := s.repo.FindSubject(ctx, category, stream, subjectName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "subject path does not exist")
		}
		return appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to resolve subject path")
	}

	item.SubjectID = subject.ID
	if err := s.repo.InsertContent(ctx, item); err != nil {
		return appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to append content")
	}

	s.invalidate(ctx)
	return nil
}

func (s *CatalogService) useCache() bool {
	return s.cache != nil && s.config.CacheEnabled
}

func (s *CatalogService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, "catalog:*"); err != nil {
		s.logger.Warn("failed to invalidate catalog cache", zap.Error(err))
	}
}

func (s *CatalogService) recordActivity(ctx context.Context, actor *models.JWTClaims, action, details string) {
	if s.activity == nil {
		return
	}
	entry := &models.ActivityLog{Action: action, Details: details}
	if actor != nil {
		entry.UserID = &actor.UserID
		entry.Username = actor.Username
	}
	if err := s.activity.Insert(ctx, entry); err != nil {
		s.logger.Warn("failed to record catalog activity", zap.Error(err))
	}
}

func buildTree(entries []models.CatalogEntry) models.CatalogTree {
	tree := models.CatalogTree{}
	for _, e := range entries {
		streams, ok := tree[e.Category]
		if !ok {
			streams = map[string]map[string][]models.ContentItem{}
			tree[e.Category] = streams
		}
		subjects, ok := streams[e.Stream]
		if !ok {
			subjects = map[string][]models.ContentItem{}
			streams[e.Stream] = subjects
		}
		items, ok := subjects[e.Subject]
		if !ok {
			items = []models.ContentItem{}
		}
		if e.ItemID != nil {
			items = append(items, models.ContentItem{
				ID:          *e.ItemID,
				Title:       deref(e.Title),
				ContentType: derefType(e.ContentType),
				Link:        deref(e.Link),
				UploadedBy:  deref(e.UploadedBy),
				CreatedAt:   derefTime(e.UploadedAt),
			})
		}
		subjects[e.Subject] = items
	}
	return tree
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefType(t *models.ContentType) models.ContentType {
	if t == nil {
		return ""
	}
	return *t
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
