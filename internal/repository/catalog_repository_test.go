package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edu-sharks/lms-api/internal/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

func TestCreateSubjectWinner(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCatalogRepository(db)

	mock.ExpectExec("INSERT INTO subjects").WillReturnResult(sqlmock.NewResult(0, 1))

	created, err := repo.CreateSubject(context.Background(), &models.Subject{Category: "DSC", Stream: "B.Sc", Name: "Physics"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateSubjectDuplicate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCatalogRepository(db)

	mock.ExpectExec("INSERT INTO subjects").WillReturnResult(sqlmock.NewResult(0, 0))

	created, err := repo.CreateSubject(context.Background(), &models.Subject{Category: "DSC", Stream: "B.Sc", Name: "Physics"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindSubjectNoRows(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCatalogRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, category, stream, name, created_by, created_at FROM subjects WHERE category = $1 AND stream = $2 AND name = $3 LIMIT 1")).
		WithArgs("GE", "B.A", "History").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindSubject(context.Background(), "GE", "B.A", "History")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertContentAssignsSerialID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCatalogRepository(db)

	mock.ExpectQuery("INSERT INTO content_items").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	item := &models.ContentItem{SubjectID: "s1", Title: "Intro", ContentType: models.ContentTypeVideo, Link: "https://example.com/v"}
	err := repo.InsertContent(context.Background(), item)
	require.NoError(t, err)
	assert.Equal(t, int64(7), item.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListContentCascadingFilter(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCatalogRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"category", "stream", "subject", "item_id", "title", "content_type", "link", "uploaded_by", "uploaded_at"}).
		AddRow("DSC", "B.Sc", "Physics", int64(1), "Intro", "VIDEO", "https://example.com/v", "admin", now).
		AddRow("DSC", "B.Sc", "Physics", int64(2), "Notes", "PDF", "https://example.com/p", "admin", now)
	mock.ExpectQuery("FROM subjects s").
		WithArgs("DSC", "B.Sc").
		WillReturnRows(rows)

	entries, err := repo.ListContent(context.Background(), models.ContentFilter{Category: "DSC", Stream: "B.Sc"})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(1), *entries[0].ItemID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTreeEntriesIncludesEmptySubjects(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCatalogRepository(db)

	rows := sqlmock.NewRows([]string{"category", "stream", "subject", "item_id", "title", "content_type", "link", "uploaded_by", "uploaded_at"}).
		AddRow("GE", "B.A", "History", nil, nil, nil, nil, nil, nil)
	mock.ExpectQuery("LEFT JOIN content_items").WillReturnRows(rows)

	entries, err := repo.TreeEntries(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Nil(t, entries[0].ItemID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListDistinctFilters(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCatalogRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT category FROM subjects ORDER BY category")).
		WillReturnRows(sqlmock.NewRows([]string{"category"}).AddRow("DSC").AddRow("GE"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT stream FROM subjects WHERE category = $1 ORDER BY stream")).
		WithArgs("DSC").
		WillReturnRows(sqlmock.NewRows([]string{"stream"}).AddRow("B.Sc"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT name FROM subjects WHERE category = $1 AND stream = $2 ORDER BY name")).
		WithArgs("DSC", "B.Sc").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("Physics"))

	categories, err := repo.ListCategories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"DSC", "GE"}, categories)

	streams, err := repo.ListStreams(context.Background(), "DSC")
	require.NoError(t, err)
	assert.Equal(t, []string{"B.Sc"}, streams)

	names, err := repo.ListSubjectNames(context.Background(), "DSC", "B.Sc")
	require.NoError(t, err)
	assert.Equal(t, []string{"Physics"}, names)

	assert.NoError(t, mock.ExpectationsWereMet())
}
