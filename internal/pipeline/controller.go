package pipeline

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/nlebedev/predictit/internal/api"
	"github.com/nlebedev/predictit/internal/model"
	"github.com/nlebedev/predictit/internal/snapshot"
)

// Controller is the single source of truth consumed by the wizard UI:
// the complete configuration, the current step, and the derived gating
// and progress views. Every mutator validates its input, cascade-clears
// now-invalid downstream configuration, schedules a debounced snapshot
// write, and notifies subscribers. A mutex guards the state because
// Bubble Tea commands run off the update goroutine.
type Controller struct {
	client *api.Client
	store  *snapshot.Store

	mu       sync.Mutex
	state    model.PipelineState
	session  *SessionLifecycle
	phases   *PhaseMachine
	noResume bool

	subMu       sync.Mutex
	subscribers []func()
}

// NewController wires the controller to its remote client and local store.
func NewController(client *api.Client, store *snapshot.Store) *Controller {
	return &Controller{
		client:  client,
		store:   store,
		state:   model.PipelineState{Step: model.StepUpload},
		session: NewSessionLifecycle(client.CleanupSession),
		phases:  NewPhaseMachine(),
	}
}

// Subscribe registers a callback invoked after every state change.
// UI regions derive refreshes from this instead of imperative handles.
func (c *Controller) Subscribe(fn func()) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	c.subscribers = append(c.subscribers, fn)
}

func (c *Controller) notify() {
	c.subMu.Lock()
	subs := make([]func(), len(c.subscribers))
	copy(subs, c.subscribers)
	c.subMu.Unlock()
	for _, fn := range subs {
		fn()
	}
}

// State returns a copy of the current pipeline state.
func (c *Controller) State() model.PipelineState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Authenticated reports whether save/load surfaces are available.
func (c *Controller) Authenticated() bool {
	return c.client.Authenticated()
}

// Restore loads the persisted snapshot, if one survives the store's
// expiry and meaningfulness checks. It is a no-op after
// StartNewPipeline. Call once at controller start.
func (c *Controller) Restore() bool {
	c.mu.Lock()
	if c.noResume {
		c.mu.Unlock()
		return false
	}
	snap, ok := c.store.Read()
	if !ok {
		c.mu.Unlock()
		return false
	}
	c.state = model.PipelineState{
		SessionID:     snap.SessionID,
		Step:          snap.Step,
		Dataset:       snap.Dataset,
		Preprocessing: snap.Preprocessing,
		Split:         snap.Split,
		Model:         snap.Model,
		Result:        snap.Result,
		FileURL:       snap.FileURL,
	}
	if snap.SessionID != "" {
		c.session.Assign(snap.SessionID)
	}
	if !CanEnter(c.state.Step, c.state) {
		c.state.Step = firstIncompleteStep(c.state)
	}
	c.mu.Unlock()
	c.notify()
	return true
}

// SetStep navigates to the given step when gating allows it.
func (c *Controller) SetStep(step model.Step) error {
	c.mu.Lock()
	if !CanEnter(step, c.state) {
		c.mu.Unlock()
		return validationErr("step", "earlier steps are not complete")
	}
	c.state.Step = step
	c.persistLocked()
	c.mu.Unlock()
	c.notify()
	return nil
}

// Upload sends the dataset to the backend and replaces the current
// dataset wholesale. The previous ephemeral session is superseded and
// all downstream configuration is cascade-cleared.
func (c *Controller) Upload(ctx context.Context, filePath string) (model.DatasetDescriptor, error) {
	result, err := c.client.Upload(ctx, filePath)
	if err != nil {
		return model.DatasetDescriptor{}, err
	}
	c.mu.Lock()
	c.session.Assign(result.SessionID)
	c.state.SessionID = result.SessionID
	c.state.Dataset = &result.Dataset
	c.state.Preprocessing = nil
	c.state.Split = nil
	c.state.Model = nil
	c.state.Result = nil
	c.state.FileURL = ""
	c.state.Step = model.StepPreprocess
	c.persistLocked()
	c.mu.Unlock()
	c.notify()
	return result.Dataset, nil
}

// SetScaler records the step-2 preprocessing choice.
func (c *Controller) SetScaler(scaler model.Scaler) error {
	c.mu.Lock()
	if c.state.Dataset == nil {
		c.mu.Unlock()
		return validationErr("scaler", "no dataset uploaded")
	}
	if !scaler.Valid() {
		c.mu.Unlock()
		return validationErr("scaler", "unrecognized scaling strategy")
	}
	c.state.Preprocessing = &model.PreprocessingConfig{Scaler: scaler}
	c.state.Result = nil
	c.persistLocked()
	c.mu.Unlock()
	c.notify()
	return nil
}

// SetSplitRatio records the held-out test fraction.
func (c *Controller) SetSplitRatio(testFraction float64) error {
	c.mu.Lock()
	if !CanEnter(model.StepSplit, c.state) {
		c.mu.Unlock()
		return validationErr("split", "configure preprocessing first")
	}
	if testFraction <= 0 || testFraction >= 1 {
		c.mu.Unlock()
		return validationErr("split", "test fraction must be between 0 and 1")
	}
	c.state.Split = &model.SplitConfig{TestFraction: testFraction}
	c.state.Result = nil
	c.persistLocked()
	c.mu.Unlock()
	c.notify()
	return nil
}

// SetModelKind records the model type choice.
func (c *Controller) SetModelKind(kind model.ModelKind) error {
	c.mu.Lock()
	if !CanEnter(model.StepModel, c.state) {
		c.mu.Unlock()
		return validationErr("model", "configure the split first")
	}
	if !kind.Valid() {
		c.mu.Unlock()
		return validationErr("model", "unrecognized model type")
	}
	c.ensureModelLocked()
	c.state.Model.Kind = kind
	c.state.Result = nil
	c.persistLocked()
	c.mu.Unlock()
	c.notify()
	return nil
}

// SetTargetColumn records the prediction target. The target must be a
// column of the current dataset; it is dropped from the feature set if
// previously selected there.
func (c *Controller) SetTargetColumn(column string) error {
	c.mu.Lock()
	if !CanEnter(model.StepModel, c.state) {
		c.mu.Unlock()
		return validationErr("target", "configure the split first")
	}
	if !c.state.Dataset.HasColumn(column) {
		c.mu.Unlock()
		return validationErr("target", "column not present in the dataset")
	}
	c.ensureModelLocked()
	c.state.Model.TargetColumn = column
	features := c.state.Model.FeatureColumns[:0]
	for _, f := range c.state.Model.FeatureColumns {
		if f != column {
			features = append(features, f)
		}
	}
	c.state.Model.FeatureColumns = features
	c.state.Result = nil
	c.persistLocked()
	c.mu.Unlock()
	c.notify()
	return nil
}

// SetFeatureColumns records the ordered feature set. Features must be
// numeric columns of the current dataset and disjoint from the target.
func (c *Controller) SetFeatureColumns(columns []string) error {
	c.mu.Lock()
	if !CanEnter(model.StepModel, c.state) {
		c.mu.Unlock()
		return validationErr("features", "configure the split first")
	}
	seen := make(map[string]struct{}, len(columns))
	features := make([]string, 0, len(columns))
	for _, col := range columns {
		if c.state.Model != nil && col == c.state.Model.TargetColumn {
			c.mu.Unlock()
			return validationErr("features", "feature set must not contain the target column")
		}
		if !c.state.Dataset.HasNumericColumn(col) {
			c.mu.Unlock()
			return validationErr("features", "feature columns must be numeric columns of the dataset")
		}
		if _, ok := seen[col]; ok {
			continue
		}
		seen[col] = struct{}{}
		features = append(features, col)
	}
	c.ensureModelLocked()
	c.state.Model.FeatureColumns = features
	c.state.Result = nil
	c.persistLocked()
	c.mu.Unlock()
	c.notify()
	return nil
}

func (c *Controller) ensureModelLocked() {
	if c.state.Model == nil {
		c.state.Model = &model.ModelConfig{}
	}
}

// Train drives the preprocess and train calls through the phase
// machine. A failed run resets the narration to idle and leaves all
// previously committed state, including the last successful result,
// untouched; the previous result is replaced only once the new one
// arrives.
func (c *Controller) Train(ctx context.Context) (model.TrainingResult, error) {
	c.mu.Lock()
	if !CanEnter(model.StepTrain, c.state) {
		c.mu.Unlock()
		return model.TrainingResult{}, validationErr("train", "pipeline configuration is incomplete")
	}
	sessionID, ok := c.session.Current()
	if !ok {
		c.mu.Unlock()
		return model.TrainingResult{}, validationErr("train", "no active session; upload a dataset first")
	}
	scaler := c.state.Preprocessing.Scaler
	target := c.state.Model.TargetColumn
	req := api.TrainRequest{
		SessionID:      sessionID,
		Kind:           c.state.Model.Kind,
		SplitRatio:     1 - c.state.Split.TestFraction,
		TargetColumn:   target,
		FeatureColumns: append([]string(nil), c.state.Model.FeatureColumns...),
	}
	c.phases.Start(scaler == model.ScalerNone)
	c.mu.Unlock()
	c.notify()

	if scaler != model.ScalerNone {
		if err := c.client.Preprocess(ctx, sessionID, target, scaler); err != nil {
			c.failTraining()
			return model.TrainingResult{}, err
		}
	}
	result, err := c.client.Train(ctx, req)
	if err != nil {
		c.failTraining()
		return model.TrainingResult{}, err
	}

	c.mu.Lock()
	c.state.Result = &result
	c.state.Step = model.StepTrain
	c.phases.Finish()
	c.persistLocked()
	c.mu.Unlock()
	c.notify()
	return result, nil
}

func (c *Controller) failTraining() {
	c.mu.Lock()
	c.phases.Fail()
	c.mu.Unlock()
	c.notify()
}

// AdvancePhases feeds elapsed time into the training narration.
func (c *Controller) AdvancePhases(d time.Duration) {
	c.mu.Lock()
	c.phases.Advance(d)
	c.mu.Unlock()
	c.notify()
}

// Progress returns the training narration's phase, percent, and message.
func (c *Controller) Progress() (Phase, float64, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phases.Phase(), c.phases.Percent(), c.phases.Message()
}

// Predict runs the trained model on one feature vector.
func (c *Controller) Predict(ctx context.Context, features map[string]float64) (model.Prediction, error) {
	c.mu.Lock()
	if c.state.Result == nil {
		c.mu.Unlock()
		return model.Prediction{}, validationErr("predict", "train a model first")
	}
	sessionID, ok := c.session.Current()
	if !ok {
		c.mu.Unlock()
		return model.Prediction{}, validationErr("predict", "no active session")
	}
	c.mu.Unlock()
	return c.client.Predict(ctx, sessionID, features)
}

// SaveProject persists the current pipeline as a durable named project.
func (c *Controller) SaveProject(ctx context.Context, name, description string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", validationErr("name", "project name must not be empty")
	}
	c.mu.Lock()
	req := api.SaveProjectRequest{
		Name:          name,
		Description:   description,
		SessionID:     c.state.SessionID,
		Dataset:       c.state.Dataset,
		Preprocessing: c.state.Preprocessing,
		Split:         c.state.Split,
		Model:         c.state.Model,
		Result:        c.state.Result,
	}
	c.mu.Unlock()
	saved, err := c.client.SaveProject(ctx, req)
	if err != nil {
		return "", err
	}
	c.mu.Lock()
	c.state.FileURL = saved.FileURL
	c.persistLocked()
	c.mu.Unlock()
	c.notify()
	return saved.ProjectID, nil
}

// ListProjects fetches the user's saved projects.
func (c *Controller) ListProjects(ctx context.Context) ([]model.ProjectSummary, error) {
	return c.client.ListProjects(ctx)
}

// GetProject fetches one saved project without loading it.
func (c *Controller) GetProject(ctx context.Context, projectID string) (model.Project, error) {
	return c.client.GetProject(ctx, projectID)
}

// DeleteProject removes a saved project.
func (c *Controller) DeleteProject(ctx context.Context, projectID string) (api.DeleteResult, error) {
	return c.client.DeleteProject(ctx, projectID)
}

// LoadProject replaces the wizard state with a saved project and
// repositions at the first incomplete step, landing on the model step
// when everything upstream is already captured.
func (c *Controller) LoadProject(ctx context.Context, projectID string) error {
	project, err := c.client.GetProject(ctx, projectID)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.store.Cancel()
	c.state = model.PipelineState{
		SessionID:     project.SessionID,
		Dataset:       project.Dataset,
		Preprocessing: project.Preprocessing,
		Split:         project.Split,
		Model:         project.Model,
		Result:        project.Result,
		FileURL:       project.FileURL,
	}
	if project.SessionID != "" {
		c.session.Assign(project.SessionID)
	}
	c.state.Step = loadedProjectStep(c.state)
	c.persistLocked()
	c.mu.Unlock()
	c.notify()
	return nil
}

// loadedProjectStep places a loaded project at the model step rather
// than re-walking upload and preprocessing, falling back to the first
// incomplete earlier step when the project was saved mid-configuration.
func loadedProjectStep(state model.PipelineState) model.Step {
	if state.Dataset == nil {
		return model.StepUpload
	}
	for step := model.StepPreprocess; step < model.StepModel; step++ {
		if !IsComplete(step, state) {
			return step
		}
	}
	return model.StepModel
}

func firstIncompleteStep(state model.PipelineState) model.Step {
	for step := model.StepUpload; step < model.StepTrain; step++ {
		if !IsComplete(step, state) {
			return step
		}
	}
	return model.StepTrain
}

// ResetPipeline releases the ephemeral session and clears all
// configuration and the local snapshot. Any pending debounced write is
// canceled first so no stale write lands after the clear.
func (c *Controller) ResetPipeline(ctx context.Context) {
	c.reset(ctx, false)
}

// StartNewPipeline is ResetPipeline plus a guarantee that no persisted
// snapshot is reloaded afterward, even if one exists.
func (c *Controller) StartNewPipeline(ctx context.Context) {
	c.reset(ctx, true)
}

func (c *Controller) reset(ctx context.Context, suppressResume bool) {
	c.mu.Lock()
	c.store.Cancel()
	session := c.session
	c.state = model.PipelineState{Step: model.StepUpload}
	c.phases.Fail()
	if suppressResume {
		c.noResume = true
	}
	c.store.Clear()
	c.mu.Unlock()
	// Cleanup is best-effort network I/O; keep it outside the lock.
	session.Release(ctx)
	c.notify()
}

func (c *Controller) persistLocked() {
	c.store.Write(model.Snapshot{
		SessionID:     c.state.SessionID,
		Step:          c.state.Step,
		Dataset:       c.state.Dataset,
		Preprocessing: c.state.Preprocessing,
		Split:         c.state.Split,
		Model:         c.state.Model,
		Result:        c.state.Result,
		FileURL:       c.state.FileURL,
	})
}
