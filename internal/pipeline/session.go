package pipeline

import (
	"context"
	"fmt"
	"os"
	"sync"
)

// CleanupFunc requests server-side cleanup of one ephemeral session.
type CleanupFunc func(ctx context.Context, sessionID string) error

// SessionLifecycle owns the identifier of the backend-side ephemeral
// processing session. Exactly one id is live at a time; assigning over
// a live id supersedes it without reuse.
type SessionLifecycle struct {
	cleanup CleanupFunc

	mu sync.Mutex
	id string
}

// NewSessionLifecycle constructs a lifecycle using the given cleanup call.
func NewSessionLifecycle(cleanup CleanupFunc) *SessionLifecycle {
	return &SessionLifecycle{cleanup: cleanup}
}

// Assign records the session id of a fresh upload.
func (s *SessionLifecycle) Assign(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = sessionID
}

// Current returns the live session id, if any.
func (s *SessionLifecycle) Current() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id, s.id != ""
}

// Release requests best-effort server-side cleanup of the current
// session and clears the local reference. Cleanup failure is logged and
// swallowed; a leaked ephemeral session must never block starting over.
func (s *SessionLifecycle) Release(ctx context.Context) {
	s.mu.Lock()
	id := s.id
	s.id = ""
	s.mu.Unlock()
	if id == "" || s.cleanup == nil {
		return
	}
	if err := s.cleanup(ctx, id); err != nil {
		logErrf("failed to clean up session %s: %v\n", id, err)
	}
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
