package service

import (
	"context"
	"database/sql"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edu-sharks/lms-api/internal/models"
	appErrors "github.com/edu-sharks/lms-api/pkg/errors"
	"github.com/edu-sharks/lms-api/pkg/jobs"
	"github.com/edu-sharks/lms-api/pkg/storage"
)

type mockExportRepo struct {
	jobs map[string]*models.ExportJob
}

func newMockExportRepo() *mockExportRepo {
	return &mockExportRepo{jobs: map[string]*models.ExportJob{}}
}

func (m *mockExportRepo) Create(ctx context.Context, job *models.ExportJob) error {
	if job.ID == "" {
		job.ID = "job-1"
	}
	copied := *job
	m.jobs[job.ID] = &copied
	return nil
}

func (m *mockExportRepo) FindByID(ctx context.Context, id string) (*models.ExportJob, error) {
	job, ok := m.jobs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *job
	return &copied, nil
}

func (m *mockExportRepo) UpdateStatus(ctx context.Context, id, status, filePath, errMsg string) error {
	job := m.jobs[id]
	job.Status = status
	job.FilePath = filePath
	job.Error = errMsg
	return nil
}

type mockQueue struct {
	enqueued []jobs.Job
}

func (m *mockQueue) Enqueue(job jobs.Job) error {
	m.enqueued = append(m.enqueued, job)
	return nil
}

type mockActivitySource struct {
	entries []models.ActivityLog
}

func (m *mockActivitySource) ListAll(ctx context.Context) ([]models.ActivityLog, error) {
	return m.entries, nil
}

func TestCreateJobValidatesDatasetAndFormat(t *testing.T) {
	svc := NewExportService(newMockExportRepo(), &mockQueue{}, nil, nil, zap.NewNop())

	_, err := svc.CreateJob(context.Background(), CreateExportRequest{Dataset: "grades", Format: "csv"}, nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.CreateJob(context.Background(), CreateExportRequest{Dataset: "catalog", Format: "xlsx"}, nil)
	require.Error(t, err)
}

func TestCreateJobEnqueuesPending(t *testing.T) {
	repo := newMockExportRepo()
	queue := &mockQueue{}
	svc := NewExportService(repo, queue, nil, nil, zap.NewNop())

	job, err := svc.CreateJob(context.Background(), CreateExportRequest{Dataset: "activity", Format: "csv"}, &models.JWTClaims{Username: "root"})
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusPending, job.Status)
	assert.Equal(t, "root", job.RequestedBy)
	require.Len(t, queue.enqueued, 1)
	assert.Equal(t, job.ID, queue.enqueued[0].ID)
}

func TestWorkerRendersActivityCSVAndSignedDownload(t *testing.T) {
	repo := newMockExportRepo()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("secret", time.Hour)

	activity := &mockActivitySource{entries: []models.ActivityLog{
		{Username: "shark01", Action: "LOGIN", CreatedAt: time.Now()},
	}}
	worker := NewExportWorker(repo, &mockFilterRepo{}, activity, store, zap.NewNop())
	svc := NewExportService(repo, &mockQueue{}, signer, store, zap.NewNop())

	job, err := svc.CreateJob(context.Background(), CreateExportRequest{Dataset: "activity", Format: "csv"}, nil)
	require.NoError(t, err)

	err = worker.Handle(context.Background(), jobs.Job{ID: job.ID})
	require.NoError(t, err)

	status, err := svc.GetStatus(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusCompleted, status.Status)
	require.NotEmpty(t, status.DownloadURL)

	token, _, err := signer.Generate(job.ID, repo.jobs[job.ID].FilePath)
	require.NoError(t, err)

	file, resolved, err := svc.ResolveDownload(context.Background(), token)
	require.NoError(t, err)
	defer file.Close()
	assert.Equal(t, job.ID, resolved.ID)

	body, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Contains(t, string(body), "shark01")
}

func TestResolveDownloadRejectsTamperedToken(t *testing.T) {
	repo := newMockExportRepo()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	svc := NewExportService(repo, &mockQueue{}, signer, store, zap.NewNop())

	_, _, err = svc.ResolveDownload(context.Background(), "bogus.token.value.sig")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}
