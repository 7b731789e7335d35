package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edu-sharks/lms-api/internal/models"
	appErrors "github.com/edu-sharks/lms-api/pkg/errors"
)

type mockFilterRepo struct {
	categories []string
	streams    []string
	subjects   []string
	content    []models.CatalogEntry
	lastFilter models.ContentFilter
}

func (m *mockFilterRepo) ListCategories(ctx context.Context) ([]string, error) {
	return m.categories, nil
}

func (m *mockFilterRepo) ListStreams(ctx context.Context, category string) ([]string, error) {
	return m.streams, nil
}

func (m *mockFilterRepo) ListSubjectNames(ctx context.Context, category, stream string) ([]string, error) {
	return m.subjects, nil
}

func (m *mockFilterRepo) ListContent(ctx context.Context, filter models.ContentFilter) ([]models.CatalogEntry, error) {
	m.lastFilter = filter
	return m.content, nil
}

func TestStreamsRequireCategory(t *testing.T) {
	svc := NewFilterService(&mockFilterRepo{}, zap.NewNop())

	_, err := svc.Streams(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSubjectsRequireCategoryAndStream(t *testing.T) {
	svc := NewFilterService(&mockFilterRepo{}, zap.NewNop())

	_, err := svc.Subjects(context.Background(), "DSC", "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestContentFilterCascadeRules(t *testing.T) {
	svc := NewFilterService(&mockFilterRepo{}, zap.NewNop())

	_, err := svc.Content(context.Background(), models.ContentFilter{Stream: "B.Sc"})
	require.Error(t, err)

	_, err = svc.Content(context.Background(), models.ContentFilter{Category: "DSC", Subject: "Physics"})
	require.Error(t, err)

	_, err = svc.Content(context.Background(), models.ContentFilter{Category: "DSC", Stream: "B.Sc", Subject: "Physics"})
	require.NoError(t, err)
}

func TestContentMapsRows(t *testing.T) {
	now := time.Now()
	id := int64(9)
	title := "Intro"
	videoType := models.ContentTypeVideo
	link := "https://example.com/v"
	uploader := "root"

	repo := &mockFilterRepo{content: []models.CatalogEntry{
		{Category: "DSC", Stream: "B.Sc", Subject: "Physics", ItemID: &id, Title: &title, ContentType: &videoType, Link: &link, UploadedBy: &uploader, UploadedAt: &now},
	}}
	svc := NewFilterService(repo, zap.NewNop())

	items, err := svc.Content(context.Background(), models.ContentFilter{Category: "DSC"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, int64(9), items[0].ID)
	assert.Equal(t, models.ContentTypeVideo, items[0].Type)
	assert.Equal(t, "DSC", repo.lastFilter.Category)
}

func TestCategoriesNeverNil(t *testing.T) {
	svc := NewFilterService(&mockFilterRepo{}, zap.NewNop())

	values, err := svc.Categories(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, values)
	assert.Empty(t, values)
}
