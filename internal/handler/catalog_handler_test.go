package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edu-sharks/lms-api/internal/middleware"
	"github.com/edu-sharks/lms-api/internal/models"
	"github.com/edu-sharks/lms-api/internal/service"
)

type stubCatalogRepo struct {
	createOK bool
	entries  []models.CatalogEntry
}

func (s *stubCatalogRepo) CreateSubject(ctx context.Context, subject *models.Subject) (bool, error) {
	return s.createOK, nil
}

func (s *stubCatalogRepo) FindSubject(ctx context.Context, category, stream, name string) (*models.Subject, error) {
	return nil, sql.ErrNoRows
}

func (s *stubCatalogRepo) InsertContent(ctx context.Context, item *models.ContentItem) error {
	return nil
}

func (s *stubCatalogRepo) TreeEntries(ctx context.Context) ([]models.CatalogEntry, error) {
	return s.entries, nil
}

func (s *stubCatalogRepo) ListCategories(ctx context.Context) ([]string, error) {
	return []string{"DSC"}, nil
}

func (s *stubCatalogRepo) ListStreams(ctx context.Context, category string) ([]string, error) {
	return []string{"B.Sc"}, nil
}

func (s *stubCatalogRepo) ListSubjectNames(ctx context.Context, category, stream string) ([]string, error) {
	return []string{"Physics"}, nil
}

func (s *stubCatalogRepo) ListContent(ctx context.Context, filter models.ContentFilter) ([]models.CatalogEntry, error) {
	return s.entries, nil
}

func newCatalogTestHandler(repo *stubCatalogRepo) *CatalogHandler {
	catalogSvc := service.NewCatalogService(repo, nil, nil, nil, validator.New(), zap.NewNop(), service.CatalogConfig{})
	filterSvc := service.NewFilterService(repo, zap.NewNop())
	return NewCatalogHandler(catalogSvc, filterSvc)
}

func performRequest(t *testing.T, register func(*gin.Engine), method, target string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	register(r)

	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateSubjectCreated(t *testing.T) {
	h := newCatalogTestHandler(&stubCatalogRepo{createOK: true})
	payload, _ := json.Marshal(map[string]string{"category": "DSC", "stream": "B.Sc", "name": "Physics"})

	w := performRequest(t, func(r *gin.Engine) {
		r.POST("/catalog/subjects", func(c *gin.Context) {
			c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u1", Username: "root", Role: models.RoleAdmin})
			h.CreateSubject(c)
		})
	}, http.MethodPost, "/catalog/subjects", payload)

	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestCreateSubjectConflict(t *testing.T) {
	h := newCatalogTestHandler(&stubCatalogRepo{createOK: false})
	payload, _ := json.Marshal(map[string]string{"category": "DSC", "stream": "B.Sc", "name": "Physics"})

	w := performRequest(t, func(r *gin.Engine) {
		r.POST("/catalog/subjects", h.CreateSubject)
	}, http.MethodPost, "/catalog/subjects", payload)

	assert.Equal(t, http.StatusConflict, w.Code)

	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, "ALREADY_EXISTS", envelope.Error.Code)
}

func TestContentCascadeViolationRejected(t *testing.T) {
	h := newCatalogTestHandler(&stubCatalogRepo{})

	w := performRequest(t, func(r *gin.Engine) {
		r.GET("/catalog/content", h.Content)
	}, http.MethodGet, "/catalog/content?stream=B.Sc", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTreeReturnsEnvelope(t *testing.T) {
	id := int64(1)
	title := "Intro"
	videoType := models.ContentTypeVideo
	link := "https://example.com/v"
	repo := &stubCatalogRepo{entries: []models.CatalogEntry{
		{Category: "DSC", Stream: "B.Sc", Subject: "Physics", ItemID: &id, Title: &title, ContentType: &videoType, Link: &link},
	}}
	h := newCatalogTestHandler(repo)

	w := performRequest(t, func(r *gin.Engine) {
		r.GET("/catalog/tree", h.Tree)
	}, http.MethodGet, "/catalog/tree", nil)

	assert.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data models.CatalogTree `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data["DSC"]["B.Sc"]["Physics"], 1)
	assert.Equal(t, "Intro", envelope.Data["DSC"]["B.Sc"]["Physics"][0].Title)
}
