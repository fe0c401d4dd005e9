package sync

import (
	"context"
	stdsync "sync"

	"github.com/Shabir12345/Hall-of-Jade-Manuscripts-sub011/internal/manuscript/model"
	"github.com/Shabir12345/Hall-of-Jade-Manuscripts-sub011/pkg/logger"
)

// MergeResult is the reconciled working library.
type MergeResult struct {
	Manuscripts    []model.Manuscript
	ToResync       []string
	CloudAvailable bool
	CloudErr       error
}

// MergeEngine reconciles the local and remote manuscript sets into one
// working library at startup and reconnect, biased to never lose writer
// content a prior partial failure left behind.
type MergeEngine struct {
	remote RemoteStore
	local  LocalStore
	state  *state

	// repairWG tracks the fire-and-forget cache repair so tests and
	// shutdown can wait it out.
	repairWG stdsync.WaitGroup
}

func newMergeEngine(remote RemoteStore, local LocalStore, st *state) *MergeEngine {
	return &MergeEngine{remote: remote, local: local, state: st}
}

// LoadMergedLibrary fetches both sets concurrently and merges them.
//
// Selection rules, in order:
//   - a tombstoned id never enters the result, whatever the stores hold;
//   - a local-only id with no tombstone was created offline: it is kept and
//     queued for upload (only the DeletionCoordinator writes tombstones, so
//     their absence means the manuscript was never deliberately deleted);
//   - for ids on both sides, the local copy wins if its UpdatedAt is
//     strictly newer or it holds strictly more chapters than the remote
//     copy, and the winner is queued for re-upload. The chapter-count guard
//     catches a prior remote write that saved metadata but dropped freshly
//     appended chapters.
func (e *MergeEngine) LoadMergedLibrary(ctx context.Context) MergeResult {
	var (
		wg         stdsync.WaitGroup
		remoteDocs []model.Manuscript
		remoteErr  error
		localDocs  []model.Manuscript
		localErr   error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		remoteDocs, remoteErr = e.remote.GetAll(ctx)
	}()
	go func() {
		defer wg.Done()
		localDocs, localErr = e.local.GetAll()
	}()
	wg.Wait()

	cloudOK := remoteErr == nil
	if cloudOK {
		e.state.setCloudAvailable(true)
	} else {
		remoteErr = Classify(remoteErr)
		e.state.setCloudAvailable(false)
		logger.Sugar.Warnf("Remote library fetch failed, running from local cache: %v", remoteErr)
	}
	if localErr != nil {
		logger.Sugar.Errorf("Local library fetch failed: %v", localErr)
	}

	merged := make(map[string]model.Manuscript, len(remoteDocs))
	order := make([]string, 0, len(remoteDocs)+len(localDocs))
	for _, d := range remoteDocs {
		if e.state.hasTombstone(d.ID) {
			// Deleted here but still present remotely, e.g. a write from
			// another device that landed after the delete. Never readmit it.
			logger.Sugar.Warnf("Ignoring remote copy of deleted manuscript %s", d.ID)
			continue
		}
		merged[d.ID] = d
		order = append(order, d.ID)
	}

	var toResync []string
	var staleLocal []string
	for _, d := range localDocs {
		if e.state.hasTombstone(d.ID) {
			// Deliberately deleted; a stale cache copy must not come back.
			staleLocal = append(staleLocal, d.ID)
			continue
		}
		remoteCopy, onRemote := merged[d.ID]
		if !onRemote {
			merged[d.ID] = d
			order = append(order, d.ID)
			e.state.markPending(d.ID)
			toResync = append(toResync, d.ID)
			continue
		}
		if d.UpdatedAt.After(remoteCopy.UpdatedAt) || len(d.Chapters) > len(remoteCopy.Chapters) {
			merged[d.ID] = d
			e.state.markPending(d.ID)
			toResync = append(toResync, d.ID)
		}
	}

	result := MergeResult{
		Manuscripts:    make([]model.Manuscript, 0, len(order)),
		ToResync:       toResync,
		CloudAvailable: cloudOK,
		CloudErr:       remoteErr,
	}
	for _, id := range order {
		result.Manuscripts = append(result.Manuscripts, merged[id])
	}

	e.repairCache(result.Manuscripts, staleLocal)
	return result
}

// repairCache writes the merged set back to the local store and drops
// tombstoned leftovers, so the cache converges on the working library.
// Strictly best-effort: failures are logged and never reach the caller.
func (e *MergeEngine) repairCache(docs []model.Manuscript, stale []string) {
	e.repairWG.Add(1)
	go func() {
		defer e.repairWG.Done()
		for _, d := range docs {
			if err := e.local.Put(d); err != nil {
				logger.Sugar.Warnf("Cache repair: failed to store manuscript %s: %v", d.ID, err)
			}
		}
		for _, id := range stale {
			if err := e.local.Delete(id); err != nil {
				logger.Sugar.Warnf("Cache repair: failed to drop deleted manuscript %s: %v", id, err)
			}
		}
	}()
}
