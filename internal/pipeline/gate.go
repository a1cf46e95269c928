// Package pipeline implements the wizard session controller: step
// gating, session lifecycle, training phase narration, and the facade
// tying them to local and remote persistence.
package pipeline

import "github.com/nlebedev/predictit/internal/model"

// CanEnter reports whether the given step is currently reachable.
// A step is reachable only when every earlier step is complete, so
// deleting or replacing an earlier configuration retroactively locks
// later steps.
func CanEnter(step model.Step, state model.PipelineState) bool {
	if step < model.StepUpload || step > model.StepTrain {
		return false
	}
	for prev := model.StepUpload; prev < step; prev++ {
		if !IsComplete(prev, state) {
			return false
		}
	}
	return true
}

// IsComplete reports whether the configuration for the given step is
// present, independent of where the user has since navigated.
func IsComplete(step model.Step, state model.PipelineState) bool {
	switch step {
	case model.StepUpload:
		return state.Dataset != nil
	case model.StepPreprocess:
		return state.Preprocessing != nil
	case model.StepSplit:
		return state.Split != nil
	case model.StepModel:
		return state.Model.Complete()
	case model.StepTrain:
		return state.Result != nil
	}
	return false
}

// CompletedCount returns the number of complete steps.
func CompletedCount(state model.PipelineState) int {
	count := 0
	for step := model.StepUpload; step <= model.StepTrain; step++ {
		if IsComplete(step, state) {
			count++
		}
	}
	return count
}
