package snapshot

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nlebedev/predictit/internal/model"
)

func openTestStore(t *testing.T, maxAge time.Duration) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "predictit.db"), maxAge, time.Millisecond)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func meaningfulSnapshot() model.Snapshot {
	return model.Snapshot{
		SessionID: "sess-1",
		Step:      model.StepSplit,
		Dataset: &model.DatasetDescriptor{
			Filename:       "iris.csv",
			RowCount:       100,
			Columns:        []string{"a", "b"},
			NumericColumns: []string{"a", "b"},
		},
		Preprocessing: &model.PreprocessingConfig{Scaler: model.ScalerStandard},
		Split:         &model.SplitConfig{TestFraction: 0.3},
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	store := openTestStore(t, 0)
	store.Write(meaningfulSnapshot())
	store.Flush()

	got, ok := store.Read()
	if !ok {
		t.Fatalf("expected snapshot to read back")
	}
	if got.SessionID != "sess-1" || got.Step != model.StepSplit {
		t.Fatalf("unexpected snapshot: %+v", got)
	}
	if got.Dataset == nil || got.Dataset.RowCount != 100 {
		t.Fatalf("dataset lost in round trip: %+v", got.Dataset)
	}
	if got.Split == nil || got.Split.TestFraction != 0.3 {
		t.Fatalf("split lost in round trip: %+v", got.Split)
	}
	if got.CapturedAt.IsZero() {
		t.Fatalf("capture timestamp not stamped")
	}
}

func TestDebounceCollapsesRapidWrites(t *testing.T) {
	store := openTestStore(t, 0)
	for ratio := 1; ratio <= 9; ratio++ {
		snap := meaningfulSnapshot()
		snap.Split = &model.SplitConfig{TestFraction: float64(ratio) / 10}
		store.Write(snap)
	}
	store.Flush()

	got, ok := store.Read()
	if !ok {
		t.Fatalf("expected snapshot to read back")
	}
	if got.Split.TestFraction != 0.9 {
		t.Fatalf("expected last write to win, got %v", got.Split.TestFraction)
	}
}

func TestExpiredSnapshotReadsAbsentAndIsCleared(t *testing.T) {
	store := openTestStore(t, 24*time.Hour)
	snap := meaningfulSnapshot()
	snap.CapturedAt = time.Now().Add(-25 * time.Hour)
	store.Write(snap)
	store.Flush()

	if _, ok := store.Read(); ok {
		t.Fatalf("25h-old snapshot must read back as absent")
	}
	// The expired row is proactively deleted, not just hidden.
	fresh := meaningfulSnapshot()
	fresh.CapturedAt = time.Now()
	store.Write(fresh)
	store.Flush()
	if _, ok := store.Read(); !ok {
		t.Fatalf("fresh snapshot must read back after expiry cleanup")
	}
}

func TestMeaninglessSnapshotReadsAbsent(t *testing.T) {
	store := openTestStore(t, 0)
	store.Write(model.Snapshot{Step: model.StepUpload})
	store.Flush()
	if _, ok := store.Read(); ok {
		t.Fatalf("bare step-1 snapshot must not be surfaced")
	}
}

func TestReadSurfacesPendingWrite(t *testing.T) {
	// Long debounce: the write stays pending for the whole test.
	store, err := Open(filepath.Join(t.TempDir(), "predictit.db"), 0, time.Hour)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		store.Cancel()
		_ = store.db.Close()
	})
	snap := meaningfulSnapshot()
	snap.Split = &model.SplitConfig{TestFraction: 0.4}
	store.Write(snap)

	got, ok := store.Read()
	if !ok {
		t.Fatalf("immediate read after write must return the snapshot")
	}
	if got.Split == nil || got.Split.TestFraction != 0.4 {
		t.Fatalf("immediate read returned a different snapshot: %+v", got)
	}

	// A pending meaningless snapshot is still absent.
	store.Write(model.Snapshot{Step: model.StepUpload})
	if _, ok := store.Read(); ok {
		t.Fatalf("pending bare step-1 snapshot must not be surfaced")
	}
}

func TestClearRacingFlushLeavesNothing(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "predictit.db"), 0, time.Hour)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		store.Cancel()
		_ = store.db.Close()
	})
	for i := 0; i < 200; i++ {
		store.Write(meaningfulSnapshot())
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.Flush()
		}()
		store.Cancel()
		store.Clear()
		wg.Wait()
		// Whichever way the race went, the clear must win: either the
		// pending write was dropped, or its row was deleted after it.
		if _, ok := store.Read(); ok {
			t.Fatalf("iteration %d: snapshot survived cancel+clear", i)
		}
	}
}

func TestCancelDropsPendingWrite(t *testing.T) {
	// Long debounce so the pending write cannot fire before Cancel.
	store, err := Open(filepath.Join(t.TempDir(), "predictit.db"), 0, time.Hour)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		store.Cancel()
		_ = store.db.Close()
	})
	store.Write(meaningfulSnapshot())
	store.Cancel()
	store.Flush()
	if _, ok := store.Read(); ok {
		t.Fatalf("canceled write must not land")
	}
}

func TestClearRemovesSnapshot(t *testing.T) {
	store := openTestStore(t, 0)
	store.Write(meaningfulSnapshot())
	store.Flush()
	store.Clear()
	if _, ok := store.Read(); ok {
		t.Fatalf("expected no snapshot after clear")
	}
}

func TestViewModeRoundTrip(t *testing.T) {
	store := openTestStore(t, 0)
	if _, ok := store.ViewMode(); ok {
		t.Fatalf("expected no view mode initially")
	}
	store.SaveViewMode("projects")
	mode, ok := store.ViewMode()
	if !ok || mode != "projects" {
		t.Fatalf("expected view mode %q, got %q (ok=%v)", "projects", mode, ok)
	}
	// The view-mode slot is independent of the snapshot slot.
	if _, ok := store.Read(); ok {
		t.Fatalf("view mode must not leak into the snapshot slot")
	}
}
