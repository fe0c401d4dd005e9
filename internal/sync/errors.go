package sync

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Error taxonomy for the sync core. Remote failures fall into exactly one
// class; callers branch with errors.Is.
var (
	// ErrTransient covers network blips and timeouts. Retry is safe and the
	// global cloud-availability flag is left alone.
	ErrTransient = errors.New("transient remote failure")

	// ErrRemoteUnavailable covers non-retryable remote failures. It flips
	// cloud availability until a later write succeeds.
	ErrRemoteUnavailable = errors.New("remote store unavailable")

	// ErrConflict means the remote rejected a write as diverged. The write
	// is recorded as a conflict, never applied over the remote copy.
	ErrConflict = errors.New("remote version conflict")

	ErrLocalStore = errors.New("local store failure")
	ErrValidation = errors.New("invalid manuscript")
	ErrNotFound   = errors.New("manuscript not found")
)

// ConflictError carries the diverged versions for a rejected write.
// errors.Is(err, ErrConflict) matches it.
type ConflictError struct {
	ManuscriptID  string
	LocalVersion  string
	RemoteVersion string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("manuscript %s: local version %s rejected, remote holds %s",
		e.ManuscriptID, e.LocalVersion, e.RemoteVersion)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// Classify maps a raw remote error onto the taxonomy. Errors already
// carrying a sentinel pass through untouched; store backends are expected
// to translate their own structural signals (version guards, SQLSTATE
// codes) before this transport-level fallback runs. Matching on error text
// is the last resort and only catches the common phrasings.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	for _, sentinel := range []error{ErrConflict, ErrTransient, ErrRemoteUnavailable, ErrNotFound, ErrLocalStore, ErrValidation} {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "duplicate key"), strings.Contains(msg, "conflict"):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	case strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "broken pipe"),
		strings.Contains(msg, "timeout"):
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	return fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
}
