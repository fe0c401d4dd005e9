package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	StatusDraft    = "draft"
	StatusRevising = "revising"
	StatusFinal    = "final"
)

// Chapter is one ordered unit of a manuscript. Index is 1-based and
// contiguous; removing a chapter renumbers the ones after it.
type Chapter struct {
	Index     int       `json:"index"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Summary   string    `json:"summary"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Manuscript struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Status    string    `json:"status"`
	Chapters  []Chapter `json:"chapters"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New returns an empty manuscript with a fresh id.
func New(title string) Manuscript {
	if title == "" {
		title = "Untitled Manuscript"
	}
	now := time.Now()
	return Manuscript{
		ID:        uuid.NewString(),
		Title:     title,
		Status:    StatusDraft,
		UpdatedAt: now,
	}
}

// Validate rejects manuscripts that must never reach a store.
func (m Manuscript) Validate() error {
	if m.ID == "" {
		return errors.New("manuscript id is empty")
	}
	if m.Title == "" {
		return errors.New("manuscript title is empty")
	}
	for i, ch := range m.Chapters {
		if ch.Index != i+1 {
			return fmt.Errorf("chapter at position %d has index %d, want %d", i, ch.Index, i+1)
		}
	}
	return nil
}

// AppendChapter adds ch at the end of the manuscript, assigning the next index.
func (m *Manuscript) AppendChapter(ch Chapter) {
	ch.Index = len(m.Chapters) + 1
	if ch.CreatedAt.IsZero() {
		ch.CreatedAt = time.Now()
	}
	ch.UpdatedAt = time.Now()
	m.Chapters = append(m.Chapters, ch)
	m.UpdatedAt = ch.UpdatedAt
}

// RemoveChapter deletes the chapter with the given index and renumbers the
// rest so indexes stay contiguous from 1. Returns false if no chapter
// carries that index.
func (m *Manuscript) RemoveChapter(index int) bool {
	pos := -1
	for i, ch := range m.Chapters {
		if ch.Index == index {
			pos = i
			break
		}
	}
	if pos < 0 {
		return false
	}
	m.Chapters = append(m.Chapters[:pos], m.Chapters[pos+1:]...)
	m.Renumber()
	m.UpdatedAt = time.Now()
	return true
}

// Renumber restores the contiguous 1-based index invariant in place.
func (m *Manuscript) Renumber() {
	for i := range m.Chapters {
		m.Chapters[i].Index = i + 1
	}
}
