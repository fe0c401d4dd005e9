package sync

import (
	"sort"
	stdsync "sync"
	"time"
)

// SyncRecord is the per-manuscript sync bookkeeping. The fingerprint only
// moves after a confirmed remote write.
type SyncRecord struct {
	Fingerprint  string
	PendingCloud bool
	LastSyncedAt time.Time
	LastError    string
	Conflict     *ConflictRecord
}

// ConflictRecord captures a write the remote rejected as diverged. The core
// never resolves it; observers surface it to the writer.
type ConflictRecord struct {
	ManuscriptID  string    `json:"manuscript_id"`
	LocalVersion  string    `json:"local_version"`
	RemoteVersion string    `json:"remote_version"`
	DetectedAt    time.Time `json:"detected_at"`
}

// Snapshot is the read-only view of the sync state handed to observers.
// Everything in it is a copy.
type Snapshot struct {
	CloudAvailable       bool
	PendingSyncCount     int
	PendingSyncIDs       []string
	LastSuccessfulSyncAt time.Time
	LastErrorMessage     string
	Conflicts            []ConflictRecord
}

// state is the single process-wide home of mutable sync bookkeeping:
// per-id records, the tombstone set, and the cloud-availability flag. One
// instance exists, owned by the Coordinator. Every mutation completes
// under mu; data is copied out before any I/O.
type state struct {
	mu             stdsync.Mutex
	records        map[string]*SyncRecord
	tombstones     map[string]time.Time
	cloudAvailable bool
	lastSyncAt     time.Time
	lastError      string
}

func newState() *state {
	return &state{
		records:        make(map[string]*SyncRecord),
		tombstones:     make(map[string]time.Time),
		cloudAvailable: true,
	}
}

// record returns the bookkeeping entry for id, creating it on first use.
// Callers must hold mu.
func (s *state) record(id string) *SyncRecord {
	rec, ok := s.records[id]
	if !ok {
		rec = &SyncRecord{}
		s.records[id] = rec
	}
	return rec
}

func (s *state) markPending(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(id).PendingCloud = true
}

// confirmSynced records a confirmed remote write: the fingerprint becomes
// the new baseline, the pending flag and any conflict are cleared.
func (s *state) confirmSynced(id, fingerprint string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.record(id)
	rec.Fingerprint = fingerprint
	rec.PendingCloud = false
	rec.Conflict = nil
	rec.LastSyncedAt = at
	rec.LastError = ""
	s.lastSyncAt = at
}

func (s *state) recordConflict(rec ConflictRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(rec.ManuscriptID).Conflict = &rec
}

func (s *state) recordError(id string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(id).LastError = err.Error()
	s.lastError = err.Error()
}

func (s *state) setCloudAvailable(ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cloudAvailable = ok
}

// isClean reports whether id has nothing outstanding: no pending upload and
// no unresolved conflict. An id with no record counts as clean.
func (s *state) isClean(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return true
	}
	return !rec.PendingCloud && rec.Conflict == nil
}

func (s *state) pendingIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, rec := range s.records {
		if rec.PendingCloud {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func (s *state) addTombstone(id string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tombstones[id] = at
}

func (s *state) hasTombstone(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tombstones[id]
	return ok
}

// loadTombstones seeds the tombstone set from the persisted copy at startup.
func (s *state) loadTombstones(ts map[string]time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, at := range ts {
		s.tombstones[id] = at
	}
}

// purge drops the bookkeeping for a deleted id. The tombstone stays.
func (s *state) purge(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
}

func (s *state) snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		CloudAvailable:       s.cloudAvailable,
		LastSuccessfulSyncAt: s.lastSyncAt,
		LastErrorMessage:     s.lastError,
	}
	for id, rec := range s.records {
		if rec.PendingCloud {
			snap.PendingSyncIDs = append(snap.PendingSyncIDs, id)
		}
		if rec.Conflict != nil {
			snap.Conflicts = append(snap.Conflicts, *rec.Conflict)
		}
	}
	sort.Strings(snap.PendingSyncIDs)
	sort.Slice(snap.Conflicts, func(i, j int) bool {
		return snap.Conflicts[i].ManuscriptID < snap.Conflicts[j].ManuscriptID
	})
	snap.PendingSyncCount = len(snap.PendingSyncIDs)
	return snap
}
