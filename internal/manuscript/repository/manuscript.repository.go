package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/Shabir12345/Hall-of-Jade-Manuscripts-sub011/internal/manuscript/model"
	"github.com/Shabir12345/Hall-of-Jade-Manuscripts-sub011/internal/sync"
	"github.com/Shabir12345/Hall-of-Jade-Manuscripts-sub011/pkg/logger"
)

// upsertQuery writes a manuscript guarded by its base updated_at: the
// update only applies when the stored row is not newer than the incoming
// write. Zero rows affected is the structural conflict signal.
const upsertQuery = `
	INSERT INTO manuscripts (id, title, payload, updated_at)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (id) DO UPDATE
	SET title = EXCLUDED.title, payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at
	WHERE manuscripts.updated_at <= EXCLUDED.updated_at`

// ManuscriptRepository is the Postgres-backed remote store.
type ManuscriptRepository struct {
	DB *sql.DB
}

func NewManuscriptRepository(db *sql.DB) *ManuscriptRepository {
	return &ManuscriptRepository{DB: db}
}

func (r *ManuscriptRepository) Get(ctx context.Context, id string) (model.Manuscript, error) {
	var payload []byte
	err := r.DB.QueryRowContext(ctx, "SELECT payload FROM manuscripts WHERE id = $1", id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Manuscript{}, fmt.Errorf("%w: %s", sync.ErrNotFound, id)
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to get manuscript %s: %v", id, err)
		return model.Manuscript{}, r.classify(err)
	}
	var m model.Manuscript
	if err := json.Unmarshal(payload, &m); err != nil {
		return model.Manuscript{}, fmt.Errorf("decoding manuscript %s: %w", id, err)
	}
	return m, nil
}

func (r *ManuscriptRepository) GetAll(ctx context.Context) ([]model.Manuscript, error) {
	rows, err := r.DB.QueryContext(ctx, "SELECT payload FROM manuscripts ORDER BY updated_at DESC")
	if err != nil {
		logger.Sugar.Errorf("Failed to list manuscripts: %v", err)
		return nil, r.classify(err)
	}
	defer rows.Close()

	var docs []model.Manuscript
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			logger.Sugar.Errorf("Failed to scan manuscript row: %v", err)
			continue
		}
		var m model.Manuscript
		if err := json.Unmarshal(payload, &m); err != nil {
			logger.Sugar.Errorf("Skipping undecodable manuscript row: %v", err)
			continue
		}
		docs = append(docs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, r.classify(err)
	}
	return docs, nil
}

func (r *ManuscriptRepository) Put(ctx context.Context, m model.Manuscript) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encoding manuscript %s: %w", m.ID, err)
	}

	res, err := r.DB.ExecContext(ctx, upsertQuery, m.ID, m.Title, payload, m.UpdatedAt)
	if err != nil {
		logger.Sugar.Errorf("Failed to save manuscript %s: %v", m.ID, err)
		return r.classify(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return r.classify(err)
	}
	if affected == 0 {
		// The guard refused the write: the stored row is newer.
		confErr := &sync.ConflictError{
			ManuscriptID: m.ID,
			LocalVersion: m.UpdatedAt.UTC().Format(time.RFC3339Nano),
		}
		var remoteAt time.Time
		if qerr := r.DB.QueryRowContext(ctx, "SELECT updated_at FROM manuscripts WHERE id = $1", m.ID).Scan(&remoteAt); qerr == nil {
			confErr.RemoteVersion = remoteAt.UTC().Format(time.RFC3339Nano)
		}
		return confErr
	}

	// History row is best effort, saves must not fail on it.
	if _, err := r.DB.ExecContext(ctx,
		`INSERT INTO manuscript_revisions (manuscript_id, payload, saved_at) VALUES ($1, $2, NOW())`,
		m.ID, payload); err != nil {
		logger.Sugar.Warnf("Failed to record revision for manuscript %s: %v", m.ID, err)
	}
	return nil
}

// Delete removes the manuscript row. Deleting an id the store no longer
// holds is a no-op, not an error.
func (r *ManuscriptRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.DB.ExecContext(ctx, "DELETE FROM manuscripts WHERE id = $1", id); err != nil {
		logger.Sugar.Errorf("Failed to delete manuscript %s: %v", id, err)
		return r.classify(err)
	}
	return nil
}

func (r *ManuscriptRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.DB.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM manuscripts WHERE id = $1)", id).Scan(&exists)
	if err != nil {
		logger.Sugar.Errorf("Failed existence probe for manuscript %s: %v", id, err)
		return false, r.classify(err)
	}
	return exists, nil
}

func (r *ManuscriptRepository) PurgeHistory(ctx context.Context, id string) error {
	if _, err := r.DB.ExecContext(ctx, "DELETE FROM manuscript_revisions WHERE manuscript_id = $1", id); err != nil {
		logger.Sugar.Errorf("Failed to purge revisions for manuscript %s: %v", id, err)
		return r.classify(err)
	}
	return nil
}

func (r *ManuscriptRepository) HistoryExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.DB.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM manuscript_revisions WHERE manuscript_id = $1)", id).Scan(&exists)
	if err != nil {
		logger.Sugar.Errorf("Failed revision probe for manuscript %s: %v", id, err)
		return false, r.classify(err)
	}
	return exists, nil
}

// classify maps driver errors onto the sync taxonomy. Postgres SQLSTATE
// codes are checked first; anything unrecognized falls through to the
// transport-level classifier.
func (r *ManuscriptRepository) classify(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code == "23505" || pqErr.Code == "40001":
			// unique_violation / serialization_failure
			return fmt.Errorf("%w: %v", sync.ErrConflict, err)
		case pqErr.Code.Class() == "08" || pqErr.Code.Class() == "57":
			// connection exceptions, operator intervention
			return fmt.Errorf("%w: %v", sync.ErrTransient, err)
		default:
			return fmt.Errorf("%w: %v", sync.ErrRemoteUnavailable, err)
		}
	}
	return sync.Classify(err)
}
