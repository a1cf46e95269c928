package main

import (
	"strings"
	"testing"

	"github.com/nlebedev/predictit/internal/model"
)

func TestProjectShowLines(t *testing.T) {
	project := model.Project{
		Name:        "iris classifier",
		Description: "first attempt",
		Dataset: &model.DatasetDescriptor{
			Filename: "iris.csv",
			RowCount: 150,
			Columns:  []string{"a", "b", "c"},
		},
		Preprocessing: &model.PreprocessingConfig{Scaler: model.ScalerStandard},
		Model: &model.ModelConfig{
			Kind:           model.ModelLogistic,
			TargetColumn:   "c",
			FeatureColumns: []string{"a", "b"},
		},
	}

	lines := projectShowLines(project)
	want := []string{
		"iris classifier",
		"first attempt",
		"Dataset: iris.csv (150 rows, 3 columns)",
		"Scaling: " + string(model.ScalerStandard),
		"Model: " + string(model.ModelLogistic) + ", target c, features a, b",
	}
	if len(lines) != len(want) {
		t.Fatalf("expected %d lines, got %d: %q", len(want), len(lines), lines)
	}
	for i, line := range lines {
		if line != want[i] {
			t.Fatalf("line %d: expected %q, got %q", i, want[i], line)
		}
	}
}

func TestProjectShowLinesMinimal(t *testing.T) {
	lines := projectShowLines(model.Project{Name: "bare"})
	if len(lines) != 1 || lines[0] != "bare" {
		t.Fatalf("expected only the project name, got %q", lines)
	}
	for _, line := range lines {
		if strings.ContainsRune(line, '\n') {
			t.Fatalf("show lines must be single lines, got %q", line)
		}
	}
}
