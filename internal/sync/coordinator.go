package sync

import (
	"context"
	"fmt"
	stdsync "sync"

	"github.com/Shabir12345/Hall-of-Jade-Manuscripts-sub011/internal/manuscript/model"
	"github.com/Shabir12345/Hall-of-Jade-Manuscripts-sub011/pkg/logger"
)

// Coordinator is the single owner of the sync core and the surface the
// application layer talks to. It holds the shared state, the change
// tracker, and the three engines; nothing here is package-global.
type Coordinator struct {
	local   LocalStore
	state   *state
	tracker *ChangeTracker
	saver   *SaveCoordinator
	merger  *MergeEngine
	deleter *DeletionCoordinator

	onlineMu stdsync.Mutex
	online   bool
}

// NewCoordinator wires the sync core over the two stores and reloads the
// persisted tombstone set, so deletions from earlier runs keep holding.
func NewCoordinator(remote RemoteStore, local LocalStore) (*Coordinator, error) {
	tombstones, err := local.Tombstones()
	if err != nil {
		return nil, fmt.Errorf("loading tombstones: %w", err)
	}

	st := newState()
	st.loadTombstones(tombstones)
	tracker := NewChangeTracker()

	c := &Coordinator{
		local:   local,
		state:   st,
		tracker: tracker,
		online:  true,
	}
	c.saver = newSaveCoordinator(remote, local, st, tracker)
	c.merger = newMergeEngine(remote, local, st)
	c.deleter = newDeletionCoordinator(remote, local, st, tracker)
	return c, nil
}

// EnqueueSave queues a dual write of m; see SaveCoordinator.
func (c *Coordinator) EnqueueSave(ctx context.Context, m model.Manuscript) *PendingSave {
	return c.saver.EnqueueSave(ctx, m)
}

// LoadMergedLibrary reconciles the two stores into the working library and
// seeds the change tracker from the result.
func (c *Coordinator) LoadMergedLibrary(ctx context.Context) MergeResult {
	res := c.merger.LoadMergedLibrary(ctx)
	c.tracker.Init(res.Manuscripts)
	return res
}

// DeleteManuscript removes id from every storage location; see
// DeletionCoordinator.
func (c *Coordinator) DeleteManuscript(ctx context.Context, id string) error {
	return c.deleter.DeleteManuscript(ctx, id)
}

// VerifyCompleteDeletion re-probes every storage location for id.
func (c *Coordinator) VerifyCompleteDeletion(ctx context.Context, id string) DeletionReport {
	return c.deleter.VerifyCompleteDeletion(ctx, id)
}

// Snapshot returns the observable sync state. Pure read, safe to poll.
func (c *Coordinator) Snapshot() Snapshot {
	return c.state.snapshot()
}

// SetOnline records a connectivity transition. Coming back online assumes
// the cloud is reachable again (the next save corrects the flag if not) and
// sweeps every pending-cloud manuscript back through the save queue.
func (c *Coordinator) SetOnline(ctx context.Context, online bool) {
	c.onlineMu.Lock()
	was := c.online
	c.online = online
	c.onlineMu.Unlock()

	if !online {
		c.state.setCloudAvailable(false)
		return
	}
	c.state.setCloudAvailable(true)
	if !was {
		c.resyncPending(ctx)
	}
}

// resyncPending re-enqueues every pending-cloud manuscript from the local
// cache. Results are not awaited; outcomes land in the snapshot.
func (c *Coordinator) resyncPending(ctx context.Context) {
	ids := c.state.pendingIDs()
	for _, id := range ids {
		m, err := c.local.Get(id)
		if err != nil {
			logger.Sugar.Warnf("Re-sync: manuscript %s not readable from local cache: %v", id, err)
			continue
		}
		c.saver.EnqueueSave(ctx, m)
	}
	if len(ids) > 0 {
		logger.Sugar.Infof("Re-sync sweep enqueued %d manuscript(s)", len(ids))
	}
}
