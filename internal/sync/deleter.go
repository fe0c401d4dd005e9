package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/Shabir12345/Hall-of-Jade-Manuscripts-sub011/pkg/logger"
)

// LocationStatus is one storage location's view of a deleted id.
type LocationStatus struct {
	Location string
	Deleted  bool
	Verified bool
	Err      error
}

// DeletionReport aggregates the per-location probes.
type DeletionReport struct {
	Locations  []LocationStatus
	AllDeleted bool
}

// DeletionCoordinator removes a manuscript from every storage location and
// makes the deletion durable against resurrection by a later merge.
type DeletionCoordinator struct {
	remote  RemoteStore
	local   LocalStore
	state   *state
	tracker *ChangeTracker
}

func newDeletionCoordinator(remote RemoteStore, local LocalStore, st *state, tracker *ChangeTracker) *DeletionCoordinator {
	return &DeletionCoordinator{remote: remote, local: local, state: st, tracker: tracker}
}

// DeleteManuscript runs the ordered deletion. The remote store is the
// source of truth, so a remote failure aborts the whole operation; every
// later step only degrades to a warning.
func (d *DeletionCoordinator) DeleteManuscript(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty manuscript id", ErrValidation)
	}

	if err := d.remote.Delete(ctx, id); err != nil {
		err = Classify(err)
		d.state.recordError(id, err)
		logger.Sugar.Errorf("Remote delete of manuscript %s failed, aborting: %v", id, err)
		return fmt.Errorf("remote delete of manuscript %s: %w", id, err)
	}

	if err := d.local.Delete(id); err != nil {
		// The remote delete already made the manuscript durably gone; the
		// tombstone below stops this stale copy from merging back.
		logger.Sugar.Warnf("Local delete of manuscript %s failed: %v", id, err)
	}

	if err := d.remote.PurgeHistory(ctx, id); err != nil {
		logger.Sugar.Warnf("Failed to purge revision history for manuscript %s: %v", id, err)
	}

	now := time.Now()
	d.state.addTombstone(id, now)
	if err := d.local.PutTombstone(id, now); err != nil {
		logger.Sugar.Warnf("Tombstone for manuscript %s not persisted: %v", id, err)
	}

	d.tracker.Remove(id)
	d.state.purge(id)
	logger.Sugar.Infof("Deleted manuscript %s", id)
	return nil
}

// VerifyCompleteDeletion independently re-probes each storage location for
// id. Diagnostics only, not part of the delete path.
func (d *DeletionCoordinator) VerifyCompleteDeletion(ctx context.Context, id string) DeletionReport {
	probes := []struct {
		location string
		probe    func() (bool, error)
	}{
		{"remote", func() (bool, error) { return d.remote.Exists(ctx, id) }},
		{"remote history", func() (bool, error) { return d.remote.HistoryExists(ctx, id) }},
		{"local cache", func() (bool, error) { return d.local.Exists(id) }},
	}

	report := DeletionReport{AllDeleted: true}
	for _, p := range probes {
		status := LocationStatus{Location: p.location}
		exists, err := p.probe()
		if err != nil {
			status.Err = err
			report.AllDeleted = false
		} else {
			status.Verified = true
			status.Deleted = !exists
			if exists {
				report.AllDeleted = false
			}
		}
		report.Locations = append(report.Locations, status)
	}
	return report
}
