package sync

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	stdsync "sync"

	"github.com/Shabir12345/Hall-of-Jade-Manuscripts-sub011/internal/manuscript/model"
)

// fingerprintPrefixLen bounds how much chapter text feeds the fingerprint.
// Edits past this point still move the fingerprint through the chapter's
// UpdatedAt-independent fields on shorter chapters, and truncation keeps
// hashing cheap on book-length content.
const fingerprintPrefixLen = 512

// Fingerprint is a stable projection of a manuscript's meaningful content:
// title, status, chapter count, and per-chapter index, title, status and
// truncated content/summary. UpdatedAt is excluded: it moves on every save,
// and folding it in would make each confirmed write look like new content
// and resave forever.
func Fingerprint(m model.Manuscript) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%d\n", m.ID, m.Title, m.Status, len(m.Chapters))
	for _, ch := range m.Chapters {
		fmt.Fprintf(h, "%d|%s|%s|%s|%s\n",
			ch.Index, ch.Title, ch.Status, truncate(ch.Content), truncate(ch.Summary))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func truncate(s string) string {
	if len(s) > fingerprintPrefixLen {
		return s[:fingerprintPrefixLen]
	}
	return s
}

// ChangeTracker decides whether a manuscript's meaning changed since the
// last confirmed write. State is in-memory and best-effort: an id with no
// stored fingerprint always reads as changed, trading a redundant write for
// never skipping a real one.
type ChangeTracker struct {
	mu        stdsync.Mutex
	originals map[string]string
}

func NewChangeTracker() *ChangeTracker {
	return &ChangeTracker{originals: make(map[string]string)}
}

// Init snapshots a fingerprint per manuscript, typically right after a
// library merge.
func (t *ChangeTracker) Init(docs []model.Manuscript) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, m := range docs {
		t.originals[m.ID] = Fingerprint(m)
	}
}

// Changed reports whether m differs from its stored fingerprint.
func (t *ChangeTracker) Changed(m model.Manuscript) bool {
	t.mu.Lock()
	original, ok := t.originals[m.ID]
	t.mu.Unlock()
	if !ok {
		return true
	}
	return original != Fingerprint(m)
}

// ChangedIDs returns the ids in docs whose content diverged from the
// stored fingerprints.
func (t *ChangeTracker) ChangedIDs(docs []model.Manuscript) []string {
	var ids []string
	for _, m := range docs {
		if t.Changed(m) {
			ids = append(ids, m.ID)
		}
	}
	return ids
}

// MarkChanged forces id to read as changed on the next check.
func (t *ChangeTracker) MarkChanged(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.originals, id)
}

// UpdateOriginal moves the baseline to m's current content, called after a
// confirmed write.
func (t *ChangeTracker) UpdateOriginal(m model.Manuscript) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.originals[m.ID] = Fingerprint(m)
}

// Remove purges tracking for a deleted id.
func (t *ChangeTracker) Remove(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.originals, id)
}
