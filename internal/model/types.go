// Package model defines shared data structures.
package model

import "time"

// Step identifies one wizard step.
type Step int

// Wizard steps in order.
const (
	StepUpload Step = iota + 1
	StepPreprocess
	StepSplit
	StepModel
	StepTrain
)

// StepCount is the number of wizard steps.
const StepCount = 5

// Scaler is a recognized preprocessing scaling strategy.
type Scaler string

// Recognized scalers. ScalerNone is a valid terminal choice.
const (
	ScalerNone     Scaler = "none"
	ScalerStandard Scaler = "standardize"
	ScalerMinMax   Scaler = "min-max"
)

// Valid reports whether s is a recognized scaler.
func (s Scaler) Valid() bool {
	switch s {
	case ScalerNone, ScalerStandard, ScalerMinMax:
		return true
	}
	return false
}

// WireName returns the name the backend expects for s.
// ScalerNone has no wire name; the preprocess call is skipped for it.
func (s Scaler) WireName() string {
	switch s {
	case ScalerStandard:
		return "StandardScaler"
	case ScalerMinMax:
		return "MinMaxScaler"
	}
	return ""
}

// ModelKind is a recognized model type.
type ModelKind string

// Recognized model kinds.
const (
	ModelLogistic ModelKind = "logistic"
	ModelTree     ModelKind = "tree"
)

// Valid reports whether k is a recognized model kind.
func (k ModelKind) Valid() bool {
	return k == ModelLogistic || k == ModelTree
}

// WireName returns the name the backend expects for k.
func (k ModelKind) WireName() string {
	switch k {
	case ModelLogistic:
		return "LogisticRegression"
	case ModelTree:
		return "DecisionTree"
	}
	return ""
}

// DatasetDescriptor describes a successfully uploaded dataset.
// Replaced wholesale by a new upload, never partially mutated.
type DatasetDescriptor struct {
	Filename           string            `json:"filename"`
	RowCount           int               `json:"row_count"`
	Columns            []string          `json:"columns"`
	DataTypes          map[string]string `json:"data_types"`
	SampleData         []map[string]any  `json:"sample_data"`
	NumericColumns     []string          `json:"numeric_columns"`
	CategoricalColumns []string          `json:"categorical_columns"`
	PotentiallyNumeric []string          `json:"potentially_numeric"`
}

// HasColumn reports whether name is one of the dataset's columns.
func (d *DatasetDescriptor) HasColumn(name string) bool {
	for _, c := range d.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// HasNumericColumn reports whether name is one of the numeric columns.
func (d *DatasetDescriptor) HasNumericColumn(name string) bool {
	for _, c := range d.NumericColumns {
		if c == name {
			return true
		}
	}
	return false
}

// PreprocessingConfig holds the step-2 choice.
type PreprocessingConfig struct {
	Scaler Scaler `json:"scaler"`
}

// SplitConfig holds the step-3 choice: the held-out test fraction.
type SplitConfig struct {
	TestFraction float64 `json:"test_fraction"`
}

// TrainPercent returns the training share as a whole percentage.
func (s SplitConfig) TrainPercent() int {
	return 100 - s.TestPercent()
}

// TestPercent returns the held-out share as a whole percentage.
func (s SplitConfig) TestPercent() int {
	return int(s.TestFraction*100 + 0.5)
}

// ModelConfig holds the step-4 choices. It is fully valid only once
// kind, target, and at least one feature are all present.
type ModelConfig struct {
	Kind           ModelKind `json:"kind"`
	TargetColumn   string    `json:"target_column"`
	FeatureColumns []string  `json:"feature_columns"`
}

// Complete reports whether the model configuration is fully valid.
func (m *ModelConfig) Complete() bool {
	return m != nil && m.Kind.Valid() && m.TargetColumn != "" && len(m.FeatureColumns) > 0
}

// TrainingResult is produced by the remote training operation.
// Immutable once set; cleared on reset or upstream reconfiguration.
type TrainingResult struct {
	Accuracy        float64 `json:"accuracy"`
	ConfusionMatrix [][]int `json:"confusion_matrix"`
	Status          string  `json:"status"`
	Message         string  `json:"message"`
}

// Prediction is the response of the predict operation.
type Prediction struct {
	Value         any       `json:"prediction"`
	Probabilities []float64 `json:"probability,omitempty"`
	Status        string    `json:"status"`
	Message       string    `json:"message"`
}

// PipelineState is the accumulated wizard configuration.
type PipelineState struct {
	SessionID     string
	Step          Step
	Dataset       *DatasetDescriptor
	Preprocessing *PreprocessingConfig
	Split         *SplitConfig
	Model         *ModelConfig
	Result        *TrainingResult
	FileURL       string
}

// Snapshot is the serializable aggregate written to local storage.
type Snapshot struct {
	SessionID     string               `json:"session_id,omitempty"`
	Step          Step                 `json:"step"`
	Dataset       *DatasetDescriptor   `json:"dataset,omitempty"`
	Preprocessing *PreprocessingConfig `json:"preprocessing,omitempty"`
	Split         *SplitConfig         `json:"split,omitempty"`
	Model         *ModelConfig         `json:"model,omitempty"`
	Result        *TrainingResult      `json:"result,omitempty"`
	FileURL       string               `json:"file_url,omitempty"`
	CapturedAt    time.Time            `json:"captured_at"`
}

// Meaningful reports whether the snapshot captures anything worth
// resuming. A bare step-1 placeholder is not.
func (s Snapshot) Meaningful() bool {
	return s.Dataset != nil || s.Preprocessing != nil || s.Split != nil || s.Model != nil
}

// ProjectSummary is the listing view of a durable project.
type ProjectSummary struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	CreatedAt   string             `json:"created_at"`
	UpdatedAt   string             `json:"updated_at"`
	Dataset     *DatasetDescriptor `json:"dataset_info,omitempty"`
	Result      *TrainingResult    `json:"results,omitempty"`
}

// Project is a full durable project record.
type Project struct {
	ID            string               `json:"id"`
	Name          string               `json:"name"`
	Description   string               `json:"description"`
	CreatedAt     string               `json:"created_at"`
	UpdatedAt     string               `json:"updated_at"`
	SessionID     string               `json:"session_id,omitempty"`
	Dataset       *DatasetDescriptor   `json:"dataset_info,omitempty"`
	Preprocessing *PreprocessingConfig `json:"preprocessing_config,omitempty"`
	Split         *SplitConfig         `json:"split_config,omitempty"`
	Model         *ModelConfig         `json:"model_config,omitempty"`
	Result        *TrainingResult      `json:"results,omitempty"`
	FileURL       string               `json:"file_url,omitempty"`
}

// User identifies an authenticated backend user.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}
