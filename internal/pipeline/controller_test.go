package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nlebedev/predictit/internal/api"
	"github.com/nlebedev/predictit/internal/model"
	"github.com/nlebedev/predictit/internal/snapshot"
)

type fakeBackend struct {
	mu           sync.Mutex
	uploads      int
	columns      []string
	numeric      []string
	trainFails   bool
	cleanupFails bool
	cleanups     []string
	project      *model.Project
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		columns: []string{"sepal_len", "sepal_wid", "petal_len", "species"},
		numeric: []string{"sepal_len", "sepal_wid", "petal_len"},
	}
}

func (f *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /upload", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		f.uploads++
		resp := map[string]any{
			"session_id":          fmt.Sprintf("sess-%d", f.uploads),
			"columns":             f.columns,
			"row_count":           100,
			"data_types":          map[string]string{},
			"sample_data":         []map[string]any{},
			"numeric_columns":     f.numeric,
			"categorical_columns": []string{"species"},
			"potentially_numeric": []string{},
		}
		f.mu.Unlock()
		writeJSON(w, resp)
	})
	mux.HandleFunc("POST /preprocess", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{"status": "success"})
	})
	mux.HandleFunc("POST /train", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		fails := f.trainFails
		f.mu.Unlock()
		if fails {
			w.WriteHeader(http.StatusInternalServerError)
			writeJSON(w, map[string]any{"detail": "Training failed: singular matrix"})
			return
		}
		writeJSON(w, model.TrainingResult{
			Accuracy:        0.87,
			ConfusionMatrix: [][]int{{40, 5}, {8, 47}},
			Status:          "success",
			Message:         "Model trained successfully",
		})
	})
	mux.HandleFunc("POST /reset/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.cleanups = append(f.cleanups, r.PathValue("id"))
		fails := f.cleanupFails
		f.mu.Unlock()
		if fails {
			w.WriteHeader(http.StatusInternalServerError)
			writeJSON(w, map[string]any{"detail": "Reset failed"})
			return
		}
		writeJSON(w, map[string]any{"status": "success"})
	})
	mux.HandleFunc("GET /projects/{id}", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		project := f.project
		f.mu.Unlock()
		if project == nil {
			w.WriteHeader(http.StatusNotFound)
			writeJSON(w, map[string]any{"detail": "Project not found"})
			return
		}
		writeJSON(w, project)
	})
	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Best-effort test response write.
		_ = err
	}
}

func newTestController(t *testing.T, backend *fakeBackend) (*Controller, *snapshot.Store, *api.Client) {
	t.Helper()
	server := httptest.NewServer(backend.handler())
	t.Cleanup(server.Close)
	client, err := api.NewClient(server.URL, "token", 5*time.Second)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	store, err := snapshot.Open(filepath.Join(t.TempDir(), "predictit.db"), 0, time.Millisecond)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return NewController(client, store), store, client
}

func writeDatasetFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "iris.csv")
	content := "sepal_len,sepal_wid,petal_len,species\n5.1,3.5,1.4,setosa\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write dataset: %v", err)
	}
	return path
}

func configureThroughModel(t *testing.T, c *Controller) {
	t.Helper()
	if _, err := c.Upload(context.Background(), writeDatasetFile(t)); err != nil {
		t.Fatalf("upload: %v", err)
	}
	if err := c.SetScaler(model.ScalerStandard); err != nil {
		t.Fatalf("set scaler: %v", err)
	}
	if err := c.SetSplitRatio(0.3); err != nil {
		t.Fatalf("set split: %v", err)
	}
	if err := c.SetModelKind(model.ModelLogistic); err != nil {
		t.Fatalf("set kind: %v", err)
	}
	if err := c.SetTargetColumn("species"); err != nil {
		t.Fatalf("set target: %v", err)
	}
	if err := c.SetFeatureColumns([]string{"sepal_len", "petal_len"}); err != nil {
		t.Fatalf("set features: %v", err)
	}
}

func TestUploadUnlocksNextStepOnly(t *testing.T) {
	c, _, _ := newTestController(t, newFakeBackend())
	dataset, err := c.Upload(context.Background(), writeDatasetFile(t))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if dataset.RowCount != 100 {
		t.Fatalf("expected 100 rows, got %d", dataset.RowCount)
	}
	state := c.State()
	if state.Step != model.StepPreprocess {
		t.Fatalf("expected wizard at preprocess step, got %d", state.Step)
	}
	if !CanEnter(model.StepPreprocess, state) {
		t.Fatalf("preprocess step must unlock after upload")
	}
	if CanEnter(model.StepSplit, state) {
		t.Fatalf("split step must remain locked after upload")
	}
}

func TestSplitRatioValidation(t *testing.T) {
	c, _, _ := newTestController(t, newFakeBackend())
	if _, err := c.Upload(context.Background(), writeDatasetFile(t)); err != nil {
		t.Fatalf("upload: %v", err)
	}
	if err := c.SetScaler(model.ScalerNone); err != nil {
		t.Fatalf("set scaler: %v", err)
	}
	var verr *ValidationError
	if err := c.SetSplitRatio(1.5); !errors.As(err, &verr) {
		t.Fatalf("expected validation error for out-of-range ratio, got %v", err)
	}
	if err := c.SetSplitRatio(0.3); err != nil {
		t.Fatalf("set split: %v", err)
	}
	split := c.State().Split
	if split.TestFraction != 0.3 {
		t.Fatalf("expected test fraction 0.3, got %v", split.TestFraction)
	}
	if split.TrainPercent() != 70 || split.TestPercent() != 30 {
		t.Fatalf("expected 70/30 split, got %d/%d", split.TrainPercent(), split.TestPercent())
	}
}

func TestReuploadCascadeClearsDownstream(t *testing.T) {
	backend := newFakeBackend()
	c, _, _ := newTestController(t, backend)
	configureThroughModel(t, c)
	if _, err := c.Train(context.Background()); err != nil {
		t.Fatalf("train: %v", err)
	}

	// Second dataset lacks the configured target column.
	backend.mu.Lock()
	backend.columns = []string{"a", "b"}
	backend.numeric = []string{"a", "b"}
	backend.mu.Unlock()
	if _, err := c.Upload(context.Background(), writeDatasetFile(t)); err != nil {
		t.Fatalf("re-upload: %v", err)
	}

	state := c.State()
	if state.Preprocessing != nil || state.Split != nil || state.Model != nil || state.Result != nil {
		t.Fatalf("re-upload must cascade-clear downstream config, got %+v", state)
	}
	if state.SessionID != "sess-2" {
		t.Fatalf("expected superseding session id, got %q", state.SessionID)
	}
	if CanEnter(model.StepSplit, state) {
		t.Fatalf("stale gate: split step enterable after cascade clear")
	}
}

func TestModelConfigValidation(t *testing.T) {
	c, _, _ := newTestController(t, newFakeBackend())
	configureThroughModel(t, c)

	var verr *ValidationError
	if err := c.SetTargetColumn("bogus"); !errors.As(err, &verr) {
		t.Fatalf("expected validation error for unknown target, got %v", err)
	}
	if err := c.SetFeatureColumns([]string{"species"}); !errors.As(err, &verr) {
		t.Fatalf("expected validation error for categorical feature, got %v", err)
	}
	if err := c.SetFeatureColumns([]string{"sepal_len", "species"}); !errors.As(err, &verr) {
		t.Fatalf("expected validation error for mixed feature set, got %v", err)
	}

	// Picking a feature column as target drops it from the feature set.
	if err := c.SetTargetColumn("sepal_len"); err != nil {
		t.Fatalf("retarget: %v", err)
	}
	for _, f := range c.State().Model.FeatureColumns {
		if f == "sepal_len" {
			t.Fatalf("target column left dangling in feature set")
		}
	}
}

func TestTrainStoresResultAndAdvances(t *testing.T) {
	c, _, _ := newTestController(t, newFakeBackend())
	configureThroughModel(t, c)
	result, err := c.Train(context.Background())
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if result.Accuracy != 0.87 {
		t.Fatalf("expected accuracy 0.87, got %v", result.Accuracy)
	}
	state := c.State()
	if state.Step != model.StepTrain || state.Result == nil {
		t.Fatalf("expected wizard at results step with a stored result")
	}
	phase, pct, _ := c.Progress()
	if phase != PhaseComplete || pct != 100 {
		t.Fatalf("expected complete/100 narration, got %s/%.1f", phase, pct)
	}
}

func TestFailedRetrainKeepsPreviousResult(t *testing.T) {
	backend := newFakeBackend()
	c, _, _ := newTestController(t, backend)
	configureThroughModel(t, c)
	first, err := c.Train(context.Background())
	if err != nil {
		t.Fatalf("train: %v", err)
	}

	backend.mu.Lock()
	backend.trainFails = true
	backend.mu.Unlock()
	if _, err := c.Train(context.Background()); err == nil {
		t.Fatalf("expected retrain failure")
	} else if !strings.Contains(err.Error(), "singular matrix") {
		t.Fatalf("expected server detail in error, got %v", err)
	}

	state := c.State()
	if state.Result == nil || state.Result.Accuracy != first.Accuracy {
		t.Fatalf("failed retrain must leave the previous result untouched")
	}
	phase, pct, _ := c.Progress()
	if phase != PhaseIdle || pct != 0 {
		t.Fatalf("expected idle/0 narration after failure, got %s/%.1f", phase, pct)
	}
}

func TestResetReleasesSessionDespiteCleanupFailure(t *testing.T) {
	backend := newFakeBackend()
	backend.cleanupFails = true
	c, store, _ := newTestController(t, backend)
	configureThroughModel(t, c)

	c.ResetPipeline(context.Background())

	backend.mu.Lock()
	cleanups := append([]string(nil), backend.cleanups...)
	backend.mu.Unlock()
	if len(cleanups) != 1 || cleanups[0] != "sess-1" {
		t.Fatalf("expected one cleanup request for sess-1, got %v", cleanups)
	}
	state := c.State()
	if state.Dataset != nil || state.SessionID != "" || state.Step != model.StepUpload {
		t.Fatalf("reset must clear all configuration, got %+v", state)
	}
	if _, ok := store.Read(); ok {
		t.Fatalf("reset must clear the persisted snapshot")
	}
}

func TestRestoreRoundTrip(t *testing.T) {
	backend := newFakeBackend()
	c, store, client := newTestController(t, backend)
	configureThroughModel(t, c)
	store.Flush()

	resumed := NewController(client, store)
	if !resumed.Restore() {
		t.Fatalf("expected snapshot to resume")
	}
	state := resumed.State()
	if state.SessionID != "sess-1" || state.Dataset == nil || state.Model == nil {
		t.Fatalf("restored state incomplete: %+v", state)
	}
	if state.Split.TestFraction != 0.3 {
		t.Fatalf("expected restored split 0.3, got %v", state.Split.TestFraction)
	}
}

func TestStartNewPipelineSuppressesRestore(t *testing.T) {
	c, store, _ := newTestController(t, newFakeBackend())
	configureThroughModel(t, c)
	store.Flush()

	c.StartNewPipeline(context.Background())
	if c.Restore() {
		t.Fatalf("restore after start-new must not resurrect a snapshot")
	}
	if _, ok := store.Read(); ok {
		t.Fatalf("start-new must clear the persisted snapshot")
	}
}

func TestLoadProjectRepositionsAtModelStep(t *testing.T) {
	backend := newFakeBackend()
	backend.project = &model.Project{
		ID:        "p1",
		Name:      "iris",
		SessionID: "sess-9",
		Dataset: &model.DatasetDescriptor{
			Columns:        []string{"a", "b", "y"},
			NumericColumns: []string{"a", "b"},
			RowCount:       50,
		},
		Preprocessing: &model.PreprocessingConfig{Scaler: model.ScalerMinMax},
		Split:         &model.SplitConfig{TestFraction: 0.25},
		Model: &model.ModelConfig{
			Kind: model.ModelTree, TargetColumn: "y", FeatureColumns: []string{"a"},
		},
		Result: &model.TrainingResult{Accuracy: 0.91, Status: "success"},
	}
	c, _, _ := newTestController(t, backend)
	if err := c.LoadProject(context.Background(), "p1"); err != nil {
		t.Fatalf("load project: %v", err)
	}
	state := c.State()
	if state.Step != model.StepModel {
		t.Fatalf("loaded project must land on the model step, got %d", state.Step)
	}
	if state.SessionID != "sess-9" || state.Result == nil {
		t.Fatalf("loaded state incomplete: %+v", state)
	}

	// A project saved before the split was chosen resumes at the split step.
	backend.mu.Lock()
	backend.project.Split = nil
	backend.project.Model = nil
	backend.mu.Unlock()
	if err := c.LoadProject(context.Background(), "p1"); err != nil {
		t.Fatalf("load project: %v", err)
	}
	if got := c.State().Step; got != model.StepSplit {
		t.Fatalf("expected split step for partially saved project, got %d", got)
	}
}

func TestSaveProjectValidatesNameBeforeNetwork(t *testing.T) {
	c, _, _ := newTestController(t, newFakeBackend())
	var verr *ValidationError
	if _, err := c.SaveProject(context.Background(), "  ", ""); !errors.As(err, &verr) {
		t.Fatalf("expected validation error for empty name, got %v", err)
	}
}

func TestSubscribeNotifiesOnMutation(t *testing.T) {
	c, _, _ := newTestController(t, newFakeBackend())
	notified := 0
	c.Subscribe(func() { notified++ })
	if _, err := c.Upload(context.Background(), writeDatasetFile(t)); err != nil {
		t.Fatalf("upload: %v", err)
	}
	if notified == 0 {
		t.Fatalf("subscriber not notified after mutation")
	}
}
