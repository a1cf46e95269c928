package pipeline

import (
	"testing"
	"time"
)

func TestPhaseMachineWalksAllPhases(t *testing.T) {
	m := NewPhaseMachine()
	if m.Phase() != PhaseIdle {
		t.Fatalf("expected idle before start, got %s", m.Phase())
	}
	m.Start(false)
	if m.Phase() != PhaseLoading || m.Percent() != 0 {
		t.Fatalf("expected loading/0%% after start, got %s/%.1f", m.Phase(), m.Percent())
	}

	want := []Phase{PhaseLoading, PhasePreprocessing, PhaseSplitting, PhaseTraining, PhaseEvaluating}
	seen := map[Phase]bool{m.Phase(): true}
	for i := 0; i < 100; i++ {
		m.Advance(50 * time.Millisecond)
		seen[m.Phase()] = true
	}
	for _, phase := range want {
		if !seen[phase] {
			t.Fatalf("phase %s never narrated", phase)
		}
	}
	if m.Phase() != PhaseEvaluating {
		t.Fatalf("expected machine to hold in evaluating, got %s", m.Phase())
	}
	if m.Percent() >= 100 {
		t.Fatalf("percent must not reach 100 before Finish, got %.1f", m.Percent())
	}

	m.Finish()
	if m.Phase() != PhaseComplete || m.Percent() != 100 {
		t.Fatalf("expected complete/100 after finish, got %s/%.1f", m.Phase(), m.Percent())
	}
}

func TestPhaseMachineSkipsPreprocessing(t *testing.T) {
	m := NewPhaseMachine()
	m.Start(true)
	for i := 0; i < 100; i++ {
		m.Advance(50 * time.Millisecond)
		if m.Phase() == PhasePreprocessing {
			t.Fatalf("preprocessing narrated despite skip")
		}
	}
	if m.Phase() != PhaseEvaluating {
		t.Fatalf("expected evaluating, got %s", m.Phase())
	}
}

func TestPhaseMachinePercentMonotonic(t *testing.T) {
	m := NewPhaseMachine()
	m.Start(false)
	prev := m.Percent()
	for i := 0; i < 200; i++ {
		m.Advance(17 * time.Millisecond)
		if m.Percent() < prev {
			t.Fatalf("percent decreased from %.2f to %.2f", prev, m.Percent())
		}
		prev = m.Percent()
	}
}

func TestPhaseMachineFailResetsToIdle(t *testing.T) {
	m := NewPhaseMachine()
	m.Start(false)
	m.Advance(time.Second)
	m.Fail()
	if m.Phase() != PhaseIdle || m.Percent() != 0 {
		t.Fatalf("expected idle/0 after fail, got %s/%.1f", m.Phase(), m.Percent())
	}
	if m.Message() != "" {
		t.Fatalf("expected empty message when idle, got %q", m.Message())
	}
}

func TestPhaseMachineRetrainRestartsFromZero(t *testing.T) {
	m := NewPhaseMachine()
	m.Start(false)
	m.Advance(5 * time.Second)
	m.Finish()

	m.Start(false)
	if m.Phase() != PhaseLoading || m.Percent() != 0 {
		t.Fatalf("retrain must restart at loading/0%%, got %s/%.1f", m.Phase(), m.Percent())
	}
}
