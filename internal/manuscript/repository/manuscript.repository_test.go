package repository

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shabir12345/Hall-of-Jade-Manuscripts-sub011/internal/manuscript/model"
	"github.com/Shabir12345/Hall-of-Jade-Manuscripts-sub011/internal/sync"
	"github.com/Shabir12345/Hall-of-Jade-Manuscripts-sub011/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.InitNop()
	os.Exit(m.Run())
}

func newRepo(t *testing.T) (*ManuscriptRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewManuscriptRepository(db), mock
}

func sampleManuscript() model.Manuscript {
	return model.Manuscript{
		ID:     "ms-1",
		Title:  "The Jade Annals",
		Status: model.StatusDraft,
		Chapters: []model.Chapter{
			{Index: 1, Title: "Opening", Content: "It begins."},
		},
		UpdatedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestPutUpsertsAndRecordsRevision(t *testing.T) {
	repo, mock := newRepo(t)
	m := sampleManuscript()

	mock.ExpectExec("INSERT INTO manuscripts").
		WithArgs(m.ID, m.Title, sqlmock.AnyArg(), m.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO manuscript_revisions").
		WithArgs(m.ID, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Put(context.Background(), m))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPutRefusedByGuardIsAConflict(t *testing.T) {
	repo, mock := newRepo(t)
	m := sampleManuscript()
	remoteAt := m.UpdatedAt.Add(time.Hour)

	mock.ExpectExec("INSERT INTO manuscripts").
		WithArgs(m.ID, m.Title, sqlmock.AnyArg(), m.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT updated_at FROM manuscripts").
		WithArgs(m.ID).
		WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(remoteAt))

	err := repo.Put(context.Background(), m)

	require.Error(t, err)
	assert.ErrorIs(t, err, sync.ErrConflict)
	var confErr *sync.ConflictError
	require.ErrorAs(t, err, &confErr)
	assert.Equal(t, m.ID, confErr.ManuscriptID)
	assert.Equal(t, m.UpdatedAt.UTC().Format(time.RFC3339Nano), confErr.LocalVersion)
	assert.Equal(t, remoteAt.UTC().Format(time.RFC3339Nano), confErr.RemoteVersion)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPutRevisionFailureDoesNotFailTheSave(t *testing.T) {
	repo, mock := newRepo(t)
	m := sampleManuscript()

	mock.ExpectExec("INSERT INTO manuscripts").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO manuscript_revisions").
		WillReturnError(errors.New("permission denied"))

	assert.NoError(t, repo.Put(context.Background(), m))
}

func TestGetDecodesPayload(t *testing.T) {
	repo, mock := newRepo(t)
	m := sampleManuscript()
	payload, err := json.Marshal(m)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT payload FROM manuscripts WHERE id").
		WithArgs(m.ID).
		WillReturnRows(sqlmock.NewRows([]string{"payload"}).AddRow(payload))

	got, err := repo.Get(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, m.Title, got.Title)
	require.Len(t, got.Chapters, 1)
	assert.Equal(t, 1, got.Chapters[0].Index)
}

func TestGetMissingRowIsNotFound(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectQuery("SELECT payload FROM manuscripts WHERE id").
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"payload"}))

	_, err := repo.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, sync.ErrNotFound)
}

func TestGetAllSkipsUndecodableRows(t *testing.T) {
	repo, mock := newRepo(t)
	m := sampleManuscript()
	payload, err := json.Marshal(m)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT payload FROM manuscripts ORDER BY updated_at DESC").
		WillReturnRows(sqlmock.NewRows([]string{"payload"}).
			AddRow(payload).
			AddRow([]byte("{not json")))

	docs, err := repo.GetAll(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, m.ID, docs[0].ID)
}

func TestDeleteAndProbes(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectExec("DELETE FROM manuscripts WHERE id").
		WithArgs("ms-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT EXISTS\\(SELECT 1 FROM manuscripts WHERE id").
		WithArgs("ms-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec("DELETE FROM manuscript_revisions WHERE manuscript_id").
		WithArgs("ms-1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectQuery("SELECT EXISTS\\(SELECT 1 FROM manuscript_revisions WHERE manuscript_id").
		WithArgs("ms-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	ctx := context.Background()
	require.NoError(t, repo.Delete(ctx, "ms-1"))

	exists, err := repo.Exists(ctx, "ms-1")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, repo.PurgeHistory(ctx, "ms-1"))

	exists, err = repo.HistoryExists(ctx, "ms-1")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassifySQLStates(t *testing.T) {
	repo, _ := newRepo(t)

	tests := []struct {
		name string
		code pq.ErrorCode
		want error
	}{
		{"unique violation", "23505", sync.ErrConflict},
		{"serialization failure", "40001", sync.ErrConflict},
		{"connection failure", "08006", sync.ErrTransient},
		{"admin shutdown", "57P01", sync.ErrTransient},
		{"undefined table", "42P01", sync.ErrRemoteUnavailable},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := repo.classify(&pq.Error{Code: tc.code})
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestClassifyFallsThroughToTransport(t *testing.T) {
	repo, _ := newRepo(t)
	err := repo.classify(errors.New("read tcp: connection reset by peer"))
	assert.ErrorIs(t, err, sync.ErrTransient)
}

func TestPutSurfacesDriverError(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectExec("INSERT INTO manuscripts").
		WillReturnError(&pq.Error{Code: "08006"})

	err := repo.Put(context.Background(), sampleManuscript())
	assert.ErrorIs(t, err, sync.ErrTransient)
}
