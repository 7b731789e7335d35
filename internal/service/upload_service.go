package service

import (
	"context"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edu-sharks/lms-api/internal/models"
	appErrors "github.com/edu-sharks/lms-api/pkg/errors"
)

type contentAppender interface {
	AppendContent(ctx context.Context, category, stream, subjectName string, item *models.ContentItem) error
}

// UploadRequest is the payload for publishing one content link.
type UploadRequest struct {
	Category  string `json:"category" validate:"required"`
	Stream    string `json:"stream" validate:"required"`
	Subject   string `json:"subject" validate:"required"`
	Title     string `json:"title" validate:"required"`
	Type      string `json:"type" validate:"required"`
	Link      string `json:"link" validate:"required"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// UploadService validates upload submissions and appends them to the catalog.
type UploadService struct {
	catalog   contentAppender
	activity  activityRecorder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUploadService creates an upload service.
func NewUploadService(catalog contentAppender, activity activityRecorder, validate *validator.Validate, logger *zap.Logger) *UploadService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UploadService{catalog: catalog, activity: activity, validator: validate, logger: logger}
}

// Upload publishes one content link under an existing subject path. Fields
// are trimmed before validation; the link must be an absolute http(s) URL.
func (s *UploadService) Upload(ctx context.Context, req UploadRequest, actor *models.JWTClaims) (*models.ContentItem, error) {
	req.Category = strings.TrimSpace(req.Category)
	req.Stream = strings.TrimSpace(req.Stream)
	req.Subject = strings.TrimSpace(req.Subject)
	req.Title = strings.TrimSpace(req.Title)
	req.Type = strings.TrimSpace(req.Type)
	req.Link = strings.TrimSpace(req.Link)

	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid upload payload")
	}

	contentType := models.ContentType(strings.ToUpper(req.Type))
	if !contentType.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "type must be one of VIDEO, PDF, PYQ")
	}

	parsed, err := url.Parse(req.Link)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "link must be an absolute http or https URL")
	}

	item := &models.ContentItem{
		Title:       req.Title,
		ContentType: contentType,
		Link:        req.Link,
	}
	if actor != nil {
		item.UploadedBy = actor.Username
	}

	if err := s.catalog.AppendContent(ctx, req.Category, req.Stream, req.Subject, item); err != nil {
		return nil, err
	}

	s.recordUpload(ctx, actor, req)

	return item, nil
}

func (s *UploadService) recordUpload(ctx context.Context, actor *models.JWTClaims, req UploadRequest) {
	if s.activity == nil {
		return
	}
	entry := &models.ActivityLog{
		Action:    models.ActivityActionUpload,
		Details:   req.Category + " / " + req.Stream + " / " + req.Subject + " : " + req.Title,
		IPAddress: req.IP,
		UserAgent: req.UserAgent,
	}
	if actor != nil {
		entry.UserID = &actor.UserID
		entry.Username = actor.Username
	}
	if err := s.activity.Insert(ctx, entry); err != nil {
		s.logger.Warn("failed to record upload activity", zap.Error(err))
	}
}
