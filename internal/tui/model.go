// Package tui provides the Bubble Tea pipeline wizard.
package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nlebedev/predictit/internal/model"
	"github.com/nlebedev/predictit/internal/pipeline"
	"github.com/nlebedev/predictit/internal/results"
)

const phaseTickInterval = 50 * time.Millisecond

const (
	modelFocusKind = iota
	modelFocusTarget
	modelFocusFeatures
)

var (
	activeStepStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F0F0F0")).
			Bold(true).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#C89A3A"))
	doneStepStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#B0B0B0")).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A"))
	lockedStepStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6E6E6E")).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A"))
	titleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#B8D070"))
	footerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
)

var stepTitles = map[model.Step]string{
	model.StepUpload:     "Upload",
	model.StepPreprocess: "Preprocessing",
	model.StepSplit:      "Split",
	model.StepModel:      "Model",
	model.StepTrain:      "Train",
}

var scalerChoices = []struct {
	scaler model.Scaler
	label  string
}{
	{model.ScalerNone, "No scaling"},
	{model.ScalerStandard, "Standardize (zero mean, unit variance)"},
	{model.ScalerMinMax, "Min-max scale to [0, 1]"},
}

var kindChoices = []struct {
	kind  model.ModelKind
	label string
}{
	{model.ModelLogistic, "Logistic regression"},
	{model.ModelTree, "Decision tree"},
}

type uploadedMsg struct {
	err error
}

type trainedMsg struct {
	err error
}

type predictedMsg struct {
	prediction model.Prediction
	err        error
}

type savedMsg struct {
	projectID string
	err       error
}

type phaseTickMsg time.Time

// Model implements the Bubble Tea wizard UI.
type Model struct {
	controller *pipeline.Controller

	width  int
	height int

	// Set when the user asked for the projects browser before quitting.
	OpenProjects bool

	pathInput  textinput.Model
	ratioInput textinput.Model
	editing    bool

	scalerIndex  int
	kindIndex    int
	modelFocus   int
	targetIndex  int
	featureIndex int

	training bool
	bar      progress.Model

	busy    string
	spin    spinner.Model
	errMsg  string
	status  string
	current model.Prediction
	hasPred bool

	saveMode  bool
	saveFocus int
	nameInput textinput.Model
	descInput textinput.Model

	predictMode   bool
	predictFocus  int
	featureInputs []textinput.Model
}

// NewModel constructs a wizard model over the controller.
func NewModel(controller *pipeline.Controller) *Model {
	m := &Model{
		controller: controller,
		pathInput:  newInput("File: ", "path/to/dataset.csv"),
		ratioInput: newInput("Test fraction: ", "0.3"),
		nameInput:  newInput("Name: ", "my project"),
		descInput:  newInput("Description: ", ""),
		bar:        progress.New(progress.WithDefaultGradient()),
		spin:       spinner.New(spinner.WithSpinner(spinner.Dot)),
	}
	m.syncCursorsFromState()
	return m
}

func newInput(prompt, placeholder string) textinput.Model {
	input := textinput.New()
	input.Prompt = prompt
	input.Placeholder = placeholder
	input.CharLimit = 0
	input.Cursor.SetMode(cursor.CursorBlink)
	return input
}

// syncCursorsFromState aligns the step cursors with the controller so a
// restored or loaded pipeline shows its recorded choices preselected.
func (m *Model) syncCursorsFromState() {
	state := m.controller.State()
	if state.Preprocessing != nil {
		for i, choice := range scalerChoices {
			if choice.scaler == state.Preprocessing.Scaler {
				m.scalerIndex = i
			}
		}
	}
	if state.Split != nil {
		m.ratioInput.SetValue(strconv.FormatFloat(state.Split.TestFraction, 'g', -1, 64))
	}
	if state.Model != nil {
		for i, choice := range kindChoices {
			if choice.kind == state.Model.Kind {
				m.kindIndex = i
			}
		}
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = minInt(60, maxInt(20, m.width-20))
		return m, nil
	case spinner.TickMsg:
		if m.busy == "" {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	case phaseTickMsg:
		if !m.training {
			return m, nil
		}
		m.controller.AdvancePhases(phaseTickInterval)
		return m, phaseTick()
	case uploadedMsg:
		m.busy = ""
		if msg.err != nil {
			m.errMsg = msg.err.Error()
			return m, nil
		}
		m.errMsg = ""
		m.status = "Dataset uploaded."
		m.editing = false
		m.pathInput.Blur()
		m.syncCursorsFromState()
		return m, nil
	case trainedMsg:
		m.training = false
		if msg.err != nil {
			m.errMsg = msg.err.Error()
			return m, nil
		}
		m.errMsg = ""
		m.status = "Training complete."
		return m, nil
	case predictedMsg:
		m.busy = ""
		if msg.err != nil {
			m.errMsg = msg.err.Error()
			return m, nil
		}
		m.errMsg = ""
		m.current = msg.prediction
		m.hasPred = true
		m.predictMode = false
		return m, nil
	case savedMsg:
		m.busy = ""
		if msg.err != nil {
			m.errMsg = msg.err.Error()
			return m, nil
		}
		m.errMsg = ""
		m.status = fmt.Sprintf("Saved project %s.", msg.projectID)
		m.saveMode = false
		return m, nil
	case tea.KeyMsg:
		return m.updateKey(msg)
	}
	return m, nil
}

func (m *Model) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m, tea.Quit
	}
	if m.saveMode {
		return m.updateSaveForm(msg)
	}
	if m.predictMode {
		return m.updatePredictForm(msg)
	}
	if m.editing {
		return m.updateEditing(msg)
	}
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "ctrl+o":
		m.OpenProjects = true
		return m, tea.Quit
	case "left", "h":
		m.moveStep(-1)
		return m, nil
	case "right", "l":
		m.moveStep(1)
		return m, nil
	case "n":
		m.controller.StartNewPipeline(context.Background())
		m.resetTransient()
		m.status = "Started a new pipeline."
		return m, nil
	case "r":
		m.controller.ResetPipeline(context.Background())
		m.resetTransient()
		m.status = "Pipeline reset."
		return m, nil
	}
	switch m.controller.State().Step {
	case model.StepUpload:
		return m.updateUploadStep(msg)
	case model.StepPreprocess:
		return m.updatePreprocessStep(msg)
	case model.StepSplit:
		return m.updateSplitStep(msg)
	case model.StepModel:
		return m.updateModelStep(msg)
	case model.StepTrain:
		return m.updateTrainStep(msg)
	}
	return m, nil
}

func (m *Model) resetTransient() {
	m.errMsg = ""
	m.training = false
	m.editing = false
	m.saveMode = false
	m.predictMode = false
	m.hasPred = false
	m.pathInput.SetValue("")
	m.ratioInput.SetValue("")
	m.pathInput.Blur()
	m.ratioInput.Blur()
	m.scalerIndex = 0
	m.kindIndex = 0
	m.modelFocus = modelFocusKind
	m.targetIndex = 0
	m.featureIndex = 0
}

func (m *Model) moveStep(delta int) {
	step := m.controller.State().Step + model.Step(delta)
	if step < model.StepUpload || step > model.StepTrain {
		return
	}
	if err := m.controller.SetStep(step); err != nil {
		m.errMsg = err.Error()
		return
	}
	m.errMsg = ""
	m.status = ""
}

func (m *Model) updateEditing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	step := m.controller.State().Step
	switch msg.Type {
	case tea.KeyEsc:
		m.editing = false
		m.pathInput.Blur()
		m.ratioInput.Blur()
		return m, nil
	case tea.KeyEnter:
		switch step {
		case model.StepUpload:
			path := strings.TrimSpace(m.pathInput.Value())
			if path == "" {
				m.errMsg = "enter a dataset path"
				return m, nil
			}
			m.busy = "Uploading dataset..."
			m.status = ""
			return m, tea.Batch(m.spin.Tick, m.uploadCmd(path))
		case model.StepSplit:
			fraction, err := strconv.ParseFloat(strings.TrimSpace(m.ratioInput.Value()), 64)
			if err != nil {
				m.errMsg = "test fraction must be a number between 0 and 1"
				return m, nil
			}
			if err := m.controller.SetSplitRatio(fraction); err != nil {
				m.errMsg = err.Error()
				return m, nil
			}
			m.errMsg = ""
			m.editing = false
			m.ratioInput.Blur()
			return m, nil
		}
		return m, nil
	}
	var cmd tea.Cmd
	switch step {
	case model.StepUpload:
		m.pathInput, cmd = m.pathInput.Update(msg)
	case model.StepSplit:
		m.ratioInput, cmd = m.ratioInput.Update(msg)
	}
	return m, cmd
}

func (m *Model) updateUploadStep(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyEnter || msg.String() == "e" {
		m.editing = true
		return m, m.pathInput.Focus()
	}
	return m, nil
}

func (m *Model) updatePreprocessStep(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		m.scalerIndex = clampInt(m.scalerIndex-1, 0, len(scalerChoices)-1)
	case "down", "j":
		m.scalerIndex = clampInt(m.scalerIndex+1, 0, len(scalerChoices)-1)
	case "enter":
		if err := m.controller.SetScaler(scalerChoices[m.scalerIndex].scaler); err != nil {
			m.errMsg = err.Error()
			return m, nil
		}
		m.errMsg = ""
	}
	return m, nil
}

func (m *Model) updateSplitStep(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyEnter || msg.String() == "e" {
		m.editing = true
		return m, m.ratioInput.Focus()
	}
	return m, nil
}

func (m *Model) updateModelStep(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	state := m.controller.State()
	if state.Dataset == nil {
		return m, nil
	}
	columns := state.Dataset.Columns
	numeric := state.Dataset.NumericColumns
	switch msg.String() {
	case "tab":
		m.modelFocus = (m.modelFocus + 1) % 3
		return m, nil
	case "shift+tab":
		m.modelFocus = (m.modelFocus + 2) % 3
		return m, nil
	case "up", "k":
		switch m.modelFocus {
		case modelFocusKind:
			m.kindIndex = clampInt(m.kindIndex-1, 0, len(kindChoices)-1)
		case modelFocusTarget:
			m.targetIndex = clampInt(m.targetIndex-1, 0, len(columns)-1)
		case modelFocusFeatures:
			m.featureIndex = clampInt(m.featureIndex-1, 0, len(numeric)-1)
		}
		return m, nil
	case "down", "j":
		switch m.modelFocus {
		case modelFocusKind:
			m.kindIndex = clampInt(m.kindIndex+1, 0, len(kindChoices)-1)
		case modelFocusTarget:
			m.targetIndex = clampInt(m.targetIndex+1, 0, len(columns)-1)
		case modelFocusFeatures:
			m.featureIndex = clampInt(m.featureIndex+1, 0, len(numeric)-1)
		}
		return m, nil
	case "enter", " ":
		switch m.modelFocus {
		case modelFocusKind:
			if err := m.controller.SetModelKind(kindChoices[m.kindIndex].kind); err != nil {
				m.errMsg = err.Error()
				return m, nil
			}
		case modelFocusTarget:
			if len(columns) == 0 {
				return m, nil
			}
			if err := m.controller.SetTargetColumn(columns[m.targetIndex]); err != nil {
				m.errMsg = err.Error()
				return m, nil
			}
		case modelFocusFeatures:
			if len(numeric) == 0 {
				return m, nil
			}
			if err := m.toggleFeature(numeric[m.featureIndex]); err != nil {
				m.errMsg = err.Error()
				return m, nil
			}
		}
		m.errMsg = ""
		return m, nil
	}
	return m, nil
}

func (m *Model) toggleFeature(column string) error {
	state := m.controller.State()
	var features []string
	if state.Model != nil {
		features = append(features, state.Model.FeatureColumns...)
	}
	found := false
	next := features[:0]
	for _, f := range features {
		if f == column {
			found = true
			continue
		}
		next = append(next, f)
	}
	if !found {
		next = append(next, column)
	}
	return m.controller.SetFeatureColumns(next)
}

func (m *Model) updateTrainStep(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "t", "enter":
		if m.training {
			return m, nil
		}
		m.training = true
		m.errMsg = ""
		m.status = ""
		return m, tea.Batch(m.trainCmd(), phaseTick())
	case "s":
		if !m.controller.Authenticated() {
			m.errMsg = "sign in with `predictit login` to save projects"
			return m, nil
		}
		m.saveMode = true
		m.saveFocus = 0
		m.nameInput.SetValue("")
		m.descInput.SetValue("")
		m.descInput.Blur()
		return m, m.nameInput.Focus()
	case "p":
		if m.controller.State().Result == nil {
			m.errMsg = "train a model first"
			return m, nil
		}
		return m, m.startPredictForm()
	}
	return m, nil
}

func (m *Model) startPredictForm() tea.Cmd {
	state := m.controller.State()
	features := state.Model.FeatureColumns
	m.featureInputs = make([]textinput.Model, len(features))
	for i, col := range features {
		m.featureInputs[i] = newInput(col+": ", "0.0")
	}
	m.predictMode = true
	m.predictFocus = 0
	if len(m.featureInputs) == 0 {
		return nil
	}
	return m.featureInputs[0].Focus()
}

func (m *Model) updateSaveForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.saveMode = false
		return m, nil
	case tea.KeyTab, tea.KeyShiftTab:
		m.saveFocus = 1 - m.saveFocus
		if m.saveFocus == 0 {
			m.descInput.Blur()
			return m, m.nameInput.Focus()
		}
		m.nameInput.Blur()
		return m, m.descInput.Focus()
	case tea.KeyEnter:
		m.busy = "Saving project..."
		return m, tea.Batch(m.spin.Tick, m.saveCmd(m.nameInput.Value(), m.descInput.Value()))
	}
	var cmd tea.Cmd
	if m.saveFocus == 0 {
		m.nameInput, cmd = m.nameInput.Update(msg)
	} else {
		m.descInput, cmd = m.descInput.Update(msg)
	}
	return m, cmd
}

func (m *Model) updatePredictForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.predictMode = false
		return m, nil
	case tea.KeyTab:
		return m, m.setPredictFocus(m.predictFocus + 1)
	case tea.KeyShiftTab:
		return m, m.setPredictFocus(m.predictFocus - 1)
	case tea.KeyEnter:
		values, err := m.parsePredictInputs()
		if err != nil {
			m.errMsg = err.Error()
			return m, nil
		}
		m.busy = "Predicting..."
		return m, tea.Batch(m.spin.Tick, m.predictCmd(values))
	}
	var cmd tea.Cmd
	m.featureInputs[m.predictFocus], cmd = m.featureInputs[m.predictFocus].Update(msg)
	return m, cmd
}

func (m *Model) setPredictFocus(idx int) tea.Cmd {
	count := len(m.featureInputs)
	if count == 0 {
		return nil
	}
	if idx < 0 {
		idx = count - 1
	}
	if idx >= count {
		idx = 0
	}
	m.predictFocus = idx
	var cmd tea.Cmd
	for i := range m.featureInputs {
		if i == idx {
			cmd = m.featureInputs[i].Focus()
		} else {
			m.featureInputs[i].Blur()
		}
	}
	return cmd
}

func (m *Model) parsePredictInputs() (map[string]float64, error) {
	state := m.controller.State()
	features := state.Model.FeatureColumns
	values := make(map[string]float64, len(features))
	for i, col := range features {
		raw := strings.TrimSpace(m.featureInputs[i].Value())
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%s must be numeric", col)
		}
		values[col] = v
	}
	return values, nil
}

func (m *Model) uploadCmd(path string) tea.Cmd {
	return func() tea.Msg {
		_, err := m.controller.Upload(context.Background(), path)
		return uploadedMsg{err: err}
	}
}

func (m *Model) trainCmd() tea.Cmd {
	return func() tea.Msg {
		_, err := m.controller.Train(context.Background())
		return trainedMsg{err: err}
	}
}

func (m *Model) predictCmd(values map[string]float64) tea.Cmd {
	return func() tea.Msg {
		prediction, err := m.controller.Predict(context.Background(), values)
		return predictedMsg{prediction: prediction, err: err}
	}
}

func (m *Model) saveCmd(name, description string) tea.Cmd {
	return func() tea.Msg {
		id, err := m.controller.SaveProject(context.Background(), name, description)
		return savedMsg{projectID: id, err: err}
	}
}

func phaseTick() tea.Cmd {
	return tea.Tick(phaseTickInterval, func(t time.Time) tea.Msg {
		return phaseTickMsg(t)
	})
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	state := m.controller.State()
	sections := []string{
		m.renderSteps(state),
		"",
		m.renderBody(state),
		"",
		m.renderFooter(state),
	}
	return strings.Join(sections, "\n")
}

func (m *Model) renderSteps(state model.PipelineState) string {
	parts := make([]string, 0, model.StepCount)
	for step := model.StepUpload; step <= model.StepTrain; step++ {
		label := fmt.Sprintf("%d %s", step, stepTitles[step])
		switch {
		case step == state.Step:
			parts = append(parts, activeStepStyle.Render(label))
		case pipeline.CanEnter(step, state):
			parts = append(parts, doneStepStyle.Render(label))
		default:
			parts = append(parts, lockedStepStyle.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m *Model) renderBody(state model.PipelineState) string {
	if m.busy != "" {
		return m.spin.View() + " " + m.busy
	}
	if m.saveMode {
		return m.renderSaveForm()
	}
	if m.predictMode {
		return m.renderPredictForm(state)
	}
	switch state.Step {
	case model.StepUpload:
		return m.renderUploadStep(state)
	case model.StepPreprocess:
		return m.renderPreprocessStep(state)
	case model.StepSplit:
		return m.renderSplitStep(state)
	case model.StepModel:
		return m.renderModelStep(state)
	case model.StepTrain:
		return m.renderTrainStep(state)
	}
	return ""
}

func (m *Model) renderUploadStep(state model.PipelineState) string {
	lines := []string{titleStyle.Render("Upload a dataset")}
	if m.editing {
		lines = append(lines, m.pathInput.View())
	} else {
		lines = append(lines, mutedStyle.Render("Press enter to choose a CSV or Excel file."))
	}
	if state.Dataset != nil {
		lines = append(lines, "",
			fmt.Sprintf("%s: %d rows, %d columns", state.Dataset.Filename, state.Dataset.RowCount, len(state.Dataset.Columns)))
		lines = append(lines, results.DatasetPreview(state.Dataset, 14)...)
		if len(state.Dataset.PotentiallyNumeric) > 0 {
			lines = append(lines, mutedStyle.Render(
				"Possibly numeric: "+strings.Join(state.Dataset.PotentiallyNumeric, ", ")))
		}
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderPreprocessStep(state model.PipelineState) string {
	lines := []string{titleStyle.Render("Choose a scaling strategy")}
	for i, choice := range scalerChoices {
		marker := "  "
		label := choice.label
		if state.Preprocessing != nil && state.Preprocessing.Scaler == choice.scaler {
			marker = "● "
		}
		if i == m.scalerIndex {
			label = selectedStyle.Render("> " + label)
		} else {
			label = "  " + label
		}
		lines = append(lines, marker+label)
	}
	lines = append(lines, "", mutedStyle.Render("Scaling is applied to numeric feature columns at training time."))
	return strings.Join(lines, "\n")
}

func (m *Model) renderSplitStep(state model.PipelineState) string {
	lines := []string{titleStyle.Render("Train/test split")}
	if m.editing {
		lines = append(lines, m.ratioInput.View())
	} else if state.Split != nil {
		lines = append(lines, fmt.Sprintf("%d%% train / %d%% test", state.Split.TrainPercent(), state.Split.TestPercent()))
		lines = append(lines, mutedStyle.Render("Press enter to change the held-out fraction."))
	} else {
		lines = append(lines, mutedStyle.Render("Press enter to set the held-out test fraction (for example 0.3)."))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderModelStep(state model.PipelineState) string {
	if state.Dataset == nil {
		return mutedStyle.Render("Upload a dataset first.")
	}
	lines := []string{titleStyle.Render("Configure the model"), ""}
	lines = append(lines, m.renderKindSection(state)...)
	lines = append(lines, "")
	lines = append(lines, m.renderTargetSection(state)...)
	lines = append(lines, "")
	lines = append(lines, m.renderFeatureSection(state)...)
	return strings.Join(lines, "\n")
}

func (m *Model) renderKindSection(state model.PipelineState) []string {
	lines := []string{m.sectionTitle("Model type", modelFocusKind)}
	for i, choice := range kindChoices {
		marker := "  "
		if state.Model != nil && state.Model.Kind == choice.kind {
			marker = "● "
		}
		label := choice.label
		if m.modelFocus == modelFocusKind && i == m.kindIndex {
			label = selectedStyle.Render("> " + label)
		} else {
			label = "  " + label
		}
		lines = append(lines, marker+label)
	}
	return lines
}

func (m *Model) renderTargetSection(state model.PipelineState) []string {
	lines := []string{m.sectionTitle("Target column", modelFocusTarget)}
	for i, col := range state.Dataset.Columns {
		marker := "  "
		if state.Model != nil && state.Model.TargetColumn == col {
			marker = "● "
		}
		label := col
		if !state.Dataset.HasNumericColumn(col) {
			label += mutedStyle.Render(" (categorical)")
		}
		if m.modelFocus == modelFocusTarget && i == m.targetIndex {
			label = selectedStyle.Render("> " + label)
		} else {
			label = "  " + label
		}
		lines = append(lines, marker+label)
	}
	return lines
}

func (m *Model) renderFeatureSection(state model.PipelineState) []string {
	lines := []string{m.sectionTitle("Feature columns (numeric, space toggles)", modelFocusFeatures)}
	selected := map[string]bool{}
	var target string
	if state.Model != nil {
		target = state.Model.TargetColumn
		for _, f := range state.Model.FeatureColumns {
			selected[f] = true
		}
	}
	for i, col := range state.Dataset.NumericColumns {
		marker := "[ ] "
		if selected[col] {
			marker = "[x] "
		}
		label := col
		if col == target {
			label += mutedStyle.Render(" (target)")
		}
		if m.modelFocus == modelFocusFeatures && i == m.featureIndex {
			label = selectedStyle.Render("> " + label)
		} else {
			label = "  " + label
		}
		lines = append(lines, marker+label)
	}
	if len(state.Dataset.NumericColumns) == 0 {
		lines = append(lines, mutedStyle.Render("No numeric columns in this dataset."))
	}
	return lines
}

func (m *Model) sectionTitle(title string, focus int) string {
	if m.modelFocus == focus {
		return titleStyle.Render(title)
	}
	return mutedStyle.Render(title)
}

func (m *Model) renderTrainStep(state model.PipelineState) string {
	var lines []string
	if m.training {
		_, percent, message := m.controller.Progress()
		lines = append(lines,
			titleStyle.Render("Training"),
			m.bar.ViewAs(percent/100),
			mutedStyle.Render(message),
		)
	} else {
		lines = append(lines, titleStyle.Render("Train and evaluate"))
		if state.Result == nil {
			lines = append(lines, mutedStyle.Render("Press t to train the configured model."))
		}
	}
	if state.Result != nil {
		lines = append(lines, "")
		lines = append(lines, results.TrainingSummary(*state.Result, state.Split)...)
		if matrix := results.ConfusionMatrix(state.Result.ConfusionMatrix); matrix != nil {
			lines = append(lines, "")
			lines = append(lines, matrix...)
		}
	}
	if m.hasPred {
		lines = append(lines, "", titleStyle.Render(fmt.Sprintf("Prediction: %v", m.current.Value)))
		lines = append(lines, results.Probabilities(m.current.Probabilities)...)
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderSaveForm() string {
	lines := []string{
		titleStyle.Render("Save project"),
		m.nameInput.View(),
		m.descInput.View(),
		mutedStyle.Render("enter: save  tab: next field  esc: cancel"),
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderPredictForm(state model.PipelineState) string {
	lines := []string{titleStyle.Render("Predict " + state.Model.TargetColumn)}
	for i := range m.featureInputs {
		lines = append(lines, m.featureInputs[i].View())
	}
	lines = append(lines, mutedStyle.Render("enter: predict  tab: next field  esc: cancel"))
	return strings.Join(lines, "\n")
}

func (m *Model) renderFooter(state model.PipelineState) string {
	segments := []string{
		fmt.Sprintf("Step %d/%d", state.Step, model.StepCount),
		fmt.Sprintf("%d complete", pipeline.CompletedCount(state)),
		stepHelp(state.Step),
		"nav: left/right  new: n  reset: r  projects: ctrl+o  quit: q",
	}
	footer := footerStyle.Render(strings.Join(segments, "  ·  "))
	if m.errMsg != "" {
		return footer + "\n" + errorStyle.Render(m.errMsg)
	}
	if m.status != "" {
		return footer + "\n" + statusStyle.Render(m.status)
	}
	return footer
}

// stepHelp returns the per-step key hints for the footer.
func stepHelp(step model.Step) string {
	switch step {
	case model.StepUpload:
		return "enter: choose file"
	case model.StepPreprocess:
		return "up/down: move  enter: select"
	case model.StepSplit:
		return "enter: edit fraction"
	case model.StepModel:
		return "tab: section  up/down: move  enter/space: select"
	case model.StepTrain:
		return "t: train  p: predict  s: save"
	}
	return ""
}

func clampInt(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
