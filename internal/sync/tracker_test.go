package sync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Shabir12345/Hall-of-Jade-Manuscripts-sub011/internal/manuscript/model"
)

func TestFingerprintIgnoresUpdatedAt(t *testing.T) {
	m := testManuscript("ms-1", 2, time.Now())
	before := Fingerprint(m)

	m.UpdatedAt = m.UpdatedAt.Add(time.Hour)
	assert.Equal(t, before, Fingerprint(m), "updated_at must not move the fingerprint")

	m.Chapters[1].Content = "rewritten ending"
	assert.NotEqual(t, before, Fingerprint(m), "content edits must move the fingerprint")
}

func TestChangedReflectsContentEdits(t *testing.T) {
	tracker := NewChangeTracker()
	m := testManuscript("ms-1", 3, time.Now())
	tracker.Init([]model.Manuscript{m})

	assert.False(t, tracker.Changed(m))

	m.UpdatedAt = m.UpdatedAt.Add(time.Minute)
	assert.False(t, tracker.Changed(m), "bookkeeping fields alone are not a change")

	m.Title = "The Jade Annals, Revised"
	assert.True(t, tracker.Changed(m))
}

func TestUnknownIDIsAlwaysChanged(t *testing.T) {
	tracker := NewChangeTracker()
	assert.True(t, tracker.Changed(testManuscript("never-seen", 1, time.Now())))
}

func TestChangedIDs(t *testing.T) {
	tracker := NewChangeTracker()
	a := testManuscript("ms-a", 1, time.Now())
	b := testManuscript("ms-b", 1, time.Now())
	tracker.Init([]model.Manuscript{a, b})

	b.Chapters[0].Summary = "a new summary"
	assert.Equal(t, []string{"ms-b"}, tracker.ChangedIDs([]model.Manuscript{a, b}))
}

func TestMarkChangedAndUpdateOriginal(t *testing.T) {
	tracker := NewChangeTracker()
	m := testManuscript("ms-1", 1, time.Now())
	tracker.Init([]model.Manuscript{m})

	tracker.MarkChanged(m.ID)
	assert.True(t, tracker.Changed(m), "a forced mark reads as changed")

	tracker.UpdateOriginal(m)
	assert.False(t, tracker.Changed(m), "a confirmed save resets the baseline")
}

func TestRemovePurgesTracking(t *testing.T) {
	tracker := NewChangeTracker()
	m := testManuscript("ms-1", 1, time.Now())
	tracker.Init([]model.Manuscript{m})

	tracker.Remove(m.ID)
	assert.True(t, tracker.Changed(m))
}

func TestDeepChapterEditBeyondPrefixStillDetected(t *testing.T) {
	tracker := NewChangeTracker()
	m := testManuscript("ms-1", 1, time.Now())
	tracker.Init([]model.Manuscript{m})

	// Appending a chapter always changes the count, however long the text.
	m.AppendChapter(model.Chapter{Title: "Epilogue"})
	assert.True(t, tracker.Changed(m))
}
