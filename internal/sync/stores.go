package sync

import (
	"context"
	"time"

	"github.com/Shabir12345/Hall-of-Jade-Manuscripts-sub011/internal/manuscript/model"
)

// RemoteStore is the durable networked store, keyed by manuscript id. It is
// the source of truth for deletions. Implementations translate their
// backend's structural conflict signals into the sync error taxonomy.
type RemoteStore interface {
	Get(ctx context.Context, id string) (model.Manuscript, error)
	GetAll(ctx context.Context) ([]model.Manuscript, error)
	Put(ctx context.Context, m model.Manuscript) error
	Delete(ctx context.Context, id string) error
	Exists(ctx context.Context, id string) (bool, error)
	PurgeHistory(ctx context.Context, id string) error
	HistoryExists(ctx context.Context, id string) (bool, error)
}

// LocalStore is the embedded persistent cache. It also persists the
// tombstone set so deliberate deletions survive restarts.
type LocalStore interface {
	Get(id string) (model.Manuscript, error)
	GetAll() ([]model.Manuscript, error)
	Put(m model.Manuscript) error
	Delete(id string) error
	Exists(id string) (bool, error)
	PutTombstone(id string, at time.Time) error
	Tombstones() (map[string]time.Time, error)
}
