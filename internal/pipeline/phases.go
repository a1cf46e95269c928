package pipeline

import "time"

// Phase is one stage of the training progress narration.
type Phase int

// Training phases in order. PhaseComplete is terminal; failure resets
// to PhaseIdle rather than entering a distinct terminal state.
const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhasePreprocessing
	PhaseSplitting
	PhaseTraining
	PhaseEvaluating
	PhaseComplete
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoading:
		return "loading"
	case PhasePreprocessing:
		return "preprocessing"
	case PhaseSplitting:
		return "splitting"
	case PhaseTraining:
		return "training"
	case PhaseEvaluating:
		return "evaluating"
	case PhaseComplete:
		return "complete"
	}
	return "unknown"
}

type phaseSpec struct {
	phase    Phase
	message  string
	duration time.Duration
	from     float64
	to       float64
}

// Narration plan. The evaluating phase holds just short of its cap
// until the real result arrives; the durations set the minimum
// perceived length of each phase regardless of backend timing.
var phasePlan = []phaseSpec{
	{PhaseLoading, "Loading dataset...", 400 * time.Millisecond, 0, 20},
	{PhasePreprocessing, "Applying preprocessing...", 500 * time.Millisecond, 20, 40},
	{PhaseSplitting, "Splitting into train and test sets...", 300 * time.Millisecond, 40, 55},
	{PhaseTraining, "Training model...", 800 * time.Millisecond, 55, 85},
	{PhaseEvaluating, "Evaluating on held-out data...", 400 * time.Millisecond, 85, 99},
}

// PhaseMachine narrates an in-flight training operation as a
// monotonically increasing progress percentage with a human-readable
// message, independent of real backend timing. It is clockless: the
// caller feeds it elapsed time via Advance.
type PhaseMachine struct {
	plan    []phaseSpec
	index   int
	running bool
	done    bool
	elapsed time.Duration
	percent float64
}

// NewPhaseMachine constructs an idle machine.
func NewPhaseMachine() *PhaseMachine {
	return &PhaseMachine{}
}

// Start begins a new narration run from zero. The preprocessing phase
// is skipped when there is nothing to narrate. Any previous run's state
// is discarded.
func (m *PhaseMachine) Start(skipPreprocessing bool) {
	m.plan = phasePlan
	if skipPreprocessing {
		m.plan = make([]phaseSpec, 0, len(phasePlan)-1)
		for _, spec := range phasePlan {
			if spec.phase == PhasePreprocessing {
				continue
			}
			m.plan = append(m.plan, spec)
		}
		// Stretch the loading phase over the skipped range.
		m.plan[0].to = phasePlan[1].to
	}
	m.index = 0
	m.running = true
	m.done = false
	m.elapsed = 0
	m.percent = 0
}

// Advance feeds elapsed wall time into the narration. Progress within
// the final phase saturates at its cap until Finish is called.
func (m *PhaseMachine) Advance(d time.Duration) {
	if !m.running || d <= 0 {
		return
	}
	m.elapsed += d
	for m.index < len(m.plan)-1 && m.elapsed >= m.plan[m.index].duration {
		m.elapsed -= m.plan[m.index].duration
		m.index++
	}
	spec := m.plan[m.index]
	frac := float64(m.elapsed) / float64(spec.duration)
	if frac > 1 {
		frac = 1
	}
	pct := spec.from + (spec.to-spec.from)*frac
	if pct > m.percent {
		m.percent = pct
	}
}

// Finish marks the run complete at 100%.
func (m *PhaseMachine) Finish() {
	if !m.running {
		return
	}
	m.running = false
	m.done = true
	m.percent = 100
}

// Fail aborts the run and resets the narration to idle.
func (m *PhaseMachine) Fail() {
	m.running = false
	m.done = false
	m.elapsed = 0
	m.percent = 0
	m.index = 0
}

// Running reports whether a narration run is in flight.
func (m *PhaseMachine) Running() bool {
	return m.running
}

// Phase returns the current phase.
func (m *PhaseMachine) Phase() Phase {
	if m.done {
		return PhaseComplete
	}
	if !m.running {
		return PhaseIdle
	}
	return m.plan[m.index].phase
}

// Percent returns the current progress percentage in [0, 100].
func (m *PhaseMachine) Percent() float64 {
	return m.percent
}

// Message returns the human-readable narration for the current phase.
func (m *PhaseMachine) Message() string {
	if m.done {
		return "Training complete"
	}
	if !m.running {
		return ""
	}
	return m.plan[m.index].message
}
