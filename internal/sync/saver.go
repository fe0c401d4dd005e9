package sync

import (
	"context"
	"errors"
	"fmt"
	stdsync "sync"
	"time"

	"github.com/Shabir12345/Hall-of-Jade-Manuscripts-sub011/internal/manuscript/model"
	"github.com/Shabir12345/Hall-of-Jade-Manuscripts-sub011/pkg/logger"
)

// defaultMinSaveInterval is the minimum gap between two save attempts for
// the same manuscript id. Requests landing inside the gap collapse into the
// queued save.
const defaultMinSaveInterval = time.Second

// SaveResult is the combined outcome of one dual write. Err is set only
// when both stores rejected the write; a local-only save is reported as
// success with RemoteOK false.
type SaveResult struct {
	RemoteOK bool
	LocalOK  bool
	Err      error
}

// PendingSave is the caller's handle on an enqueued save.
type PendingSave struct {
	done chan struct{}
	res  SaveResult
}

// Wait blocks until the save has run and returns its result.
func (p *PendingSave) Wait() SaveResult {
	<-p.done
	return p.res
}

// Done exposes completion for callers that select instead of blocking.
func (p *PendingSave) Done() <-chan struct{} { return p.done }

type saveTask struct {
	pending    *PendingSave
	doc        model.Manuscript
	enqueuedAt time.Time
	started    bool
}

// SaveCoordinator serializes and throttles writes per manuscript id.
// One chained task queue exists per id: each new request runs after the
// previous one for that id finishes, success or failure, so saves for one
// manuscript are strictly FIFO while different ids proceed independently.
// The chain substitutes for a per-id mutex by turning exclusion into a
// completion dependency.
type SaveCoordinator struct {
	remote  RemoteStore
	local   LocalStore
	state   *state
	tracker *ChangeTracker

	minInterval time.Duration

	mu        stdsync.Mutex
	tails     map[string]*saveTask
	lastRunAt map[string]time.Time
}

func newSaveCoordinator(remote RemoteStore, local LocalStore, st *state, tracker *ChangeTracker) *SaveCoordinator {
	return &SaveCoordinator{
		remote:      remote,
		local:       local,
		state:       st,
		tracker:     tracker,
		minInterval: defaultMinSaveInterval,
		tails:       make(map[string]*saveTask),
		lastRunAt:   make(map[string]time.Time),
	}
}

// EnqueueSave queues a dual write of m and returns immediately. A request
// arriving within the throttle window while the queued save has not started
// reuses that save's future, carrying the newest content.
func (c *SaveCoordinator) EnqueueSave(ctx context.Context, m model.Manuscript) *PendingSave {
	c.mu.Lock()
	if tail, ok := c.tails[m.ID]; ok && !tail.started && time.Since(tail.enqueuedAt) < c.minInterval {
		tail.doc = m
		p := tail.pending
		c.mu.Unlock()
		return p
	}
	task := &saveTask{
		pending:    &PendingSave{done: make(chan struct{})},
		doc:        m,
		enqueuedAt: time.Now(),
	}
	prev := c.tails[m.ID]
	c.tails[m.ID] = task
	c.mu.Unlock()

	go c.run(ctx, prev, task)
	return task.pending
}

func (c *SaveCoordinator) run(ctx context.Context, prev, task *saveTask) {
	if prev != nil {
		<-prev.pending.done
	}

	c.mu.Lock()
	id := task.doc.ID
	if wait := c.minInterval - time.Since(c.lastRunAt[id]); wait > 0 {
		c.mu.Unlock()
		time.Sleep(wait)
		c.mu.Lock()
	}
	task.started = true
	doc := task.doc
	c.lastRunAt[id] = time.Now()
	c.mu.Unlock()

	task.pending.res = c.save(ctx, doc)
	close(task.pending.done)

	c.mu.Lock()
	if c.tails[id] == task {
		delete(c.tails, id)
	}
	c.mu.Unlock()
}

// save performs one dual write: remote first, then local regardless of the
// remote outcome.
func (c *SaveCoordinator) save(ctx context.Context, m model.Manuscript) SaveResult {
	if err := m.Validate(); err != nil {
		return SaveResult{Err: fmt.Errorf("%w: %v", ErrValidation, err)}
	}
	if c.state.hasTombstone(m.ID) {
		// A save racing or queued behind a delete must not re-create the
		// manuscript on either store.
		return SaveResult{Err: fmt.Errorf("%w: manuscript %s was deleted", ErrValidation, m.ID)}
	}

	if !c.tracker.Changed(m) && c.state.isClean(m.ID) {
		if ok, err := c.local.Exists(m.ID); err == nil && ok {
			// Content matches the last confirmed write, nothing is
			// outstanding for this id and the cache still holds it.
			return SaveResult{RemoteOK: true, LocalOK: true}
		}
		// Otherwise the cache lost the copy; fall through and rewrite.
	}

	var res SaveResult
	remoteErr := c.remote.Put(ctx, m)
	if remoteErr == nil {
		res.RemoteOK = true
		c.state.confirmSynced(m.ID, Fingerprint(m), time.Now())
		c.state.setCloudAvailable(true)
		c.tracker.UpdateOriginal(m)
	} else {
		remoteErr = Classify(remoteErr)
		c.state.recordError(m.ID, remoteErr)
		switch {
		case errors.Is(remoteErr, ErrConflict):
			c.state.recordConflict(conflictRecord(m, remoteErr))
			logger.Sugar.Warnf("Remote rejected manuscript %s as diverged: %v", m.ID, remoteErr)
		case errors.Is(remoteErr, ErrTransient):
			logger.Sugar.Warnf("Remote save of manuscript %s failed, will retry on next sync: %v", m.ID, remoteErr)
		default:
			c.state.setCloudAvailable(false)
			logger.Sugar.Errorf("Remote store unavailable saving manuscript %s: %v", m.ID, remoteErr)
		}
	}

	localErr := c.local.Put(m)
	if localErr == nil {
		res.LocalOK = true
	} else {
		localErr = fmt.Errorf("%w: %v", ErrLocalStore, localErr)
		logger.Sugar.Errorf("Local save of manuscript %s failed: %v", m.ID, localErr)
	}

	switch {
	case !res.RemoteOK && res.LocalOK:
		// Saved locally only; queue for re-sync.
		c.state.markPending(m.ID)
	case !res.RemoteOK && !res.LocalOK:
		res.Err = errors.Join(remoteErr, localErr)
		c.state.recordError(m.ID, res.Err)
	}
	return res
}

// conflictRecord builds the record for a rejected write, pulling the
// diverged versions out of the error when the store supplied them.
func conflictRecord(m model.Manuscript, err error) ConflictRecord {
	rec := ConflictRecord{
		ManuscriptID: m.ID,
		LocalVersion: m.UpdatedAt.UTC().Format(time.RFC3339Nano),
		DetectedAt:   time.Now(),
	}
	var confErr *ConflictError
	if errors.As(err, &confErr) {
		if confErr.LocalVersion != "" {
			rec.LocalVersion = confErr.LocalVersion
		}
		rec.RemoteVersion = confErr.RemoteVersion
	}
	return rec
}
