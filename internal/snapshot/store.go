// Package snapshot handles SQLite persistence of in-progress wizard state.
package snapshot

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/nlebedev/predictit/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

const (
	// snapshotKey namespaces the single pipeline snapshot slot.
	snapshotKey = "predictit.pipeline.snapshot"
	// viewModeKey namespaces the last-chosen top-level view.
	viewModeKey = "predictit.ui.view-mode"

	// DefaultMaxAge is the horizon beyond which a snapshot is stale.
	DefaultMaxAge = 24 * time.Hour
	// DefaultDebounce collapses rapid writes into one.
	DefaultDebounce = 2 * time.Second
)

// Store wraps SQLite access for the local snapshot slot. Writes are
// debounced behind a single owned timer; Flush and Cancel give reset
// paths control over pending writes. Write and read failures after Open
// are logged and swallowed, never surfaced.
type Store struct {
	db       *sql.DB
	maxAge   time.Duration
	debounce time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	pending *model.Snapshot
}

// Open opens or creates the SQLite database and applies migrations.
// Non-positive maxAge and debounce fall back to the defaults.
func Open(path string, maxAge, debounce time.Duration) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	store := &Store{db: db, maxAge: maxAge, debounce: debounce}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close flushes any pending write and closes the underlying database.
func (s *Store) Close() error {
	s.Flush()
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS local_state (
			key TEXT PRIMARY KEY,
			payload TEXT NOT NULL,
			captured_at TEXT NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Write schedules a debounced write of the snapshot. Repeated writes
// within the debounce window collapse to the most recent one.
func (s *Store) Write(snap model.Snapshot) {
	if snap.CapturedAt.IsZero() {
		snap.CapturedAt = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = &snap
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.debounce, s.Flush)
}

// Flush writes any pending snapshot immediately. The write happens
// under the store mutex so a concurrent Cancel+Clear either drops the
// pending snapshot before the write or deletes the row after it; no
// stale write can land after a clear.
func (s *Store) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	pending := s.pending
	s.pending = nil
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if pending == nil {
		return
	}
	if err := s.writeNow(*pending); err != nil {
		logErrf("failed to write snapshot: %v\n", err)
	}
}

// Cancel drops any pending snapshot write without persisting it.
func (s *Store) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = nil
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Store) writeNow(snap model.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO local_state (key, payload, captured_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, captured_at = excluded.captured_at`,
		snapshotKey, string(payload), snap.CapturedAt.Format(time.RFC3339Nano),
	)
	return err
}

// Read returns the latest snapshot: a pending debounced write when one
// is queued, otherwise the stored row. Absent when there is neither, the
// row is older than the expiry horizon (expired rows are deleted), or
// the snapshot captures nothing worth resuming.
func (s *Store) Read() (model.Snapshot, bool) {
	s.mu.Lock()
	pending := s.pending
	s.mu.Unlock()
	if pending != nil {
		if !pending.Meaningful() {
			return model.Snapshot{}, false
		}
		return *pending, true
	}

	var payload, capturedAt string
	err := s.db.QueryRow(
		`SELECT payload, captured_at FROM local_state WHERE key = ?`, snapshotKey,
	).Scan(&payload, &capturedAt)
	if err == sql.ErrNoRows {
		return model.Snapshot{}, false
	}
	if err != nil {
		logErrf("failed to read snapshot: %v\n", err)
		return model.Snapshot{}, false
	}
	captured, err := time.Parse(time.RFC3339Nano, capturedAt)
	if err != nil || time.Since(captured) > s.maxAge {
		s.Clear()
		return model.Snapshot{}, false
	}
	var snap model.Snapshot
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		logErrf("failed to decode snapshot: %v\n", err)
		s.Clear()
		return model.Snapshot{}, false
	}
	if !snap.Meaningful() {
		return model.Snapshot{}, false
	}
	return snap, true
}

// Clear removes the snapshot slot. It serializes with Flush so a
// flush racing the clear cannot leave its row behind.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.Exec(`DELETE FROM local_state WHERE key = ?`, snapshotKey); err != nil {
		logErrf("failed to clear snapshot: %v\n", err)
	}
}

// SaveViewMode persists the last-chosen top-level view.
func (s *Store) SaveViewMode(mode string) {
	_, err := s.db.Exec(
		`INSERT INTO local_state (key, payload, captured_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, captured_at = excluded.captured_at`,
		viewModeKey, mode, time.Now().Format(time.RFC3339Nano),
	)
	if err != nil {
		logErrf("failed to save view mode: %v\n", err)
	}
}

// ViewMode returns the last-chosen top-level view, if any.
func (s *Store) ViewMode() (string, bool) {
	var mode string
	err := s.db.QueryRow(
		`SELECT payload FROM local_state WHERE key = ?`, viewModeKey,
	).Scan(&mode)
	if err == sql.ErrNoRows {
		return "", false
	}
	if err != nil {
		logErrf("failed to read view mode: %v\n", err)
		return "", false
	}
	return mode, true
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
