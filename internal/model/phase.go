package model

// Request delivery modes.
const (
	ModeStream   = "stream"
	ModeBuffered = "buffered"
)

// Request phase constants.
const (
	PhaseQueued     = "queued"
	PhaseStarted    = "started"
	PhaseStreaming  = "streaming"
	PhaseCompleting = "completing"
	PhaseFinished   = "finished"
	PhaseTimedOut   = "timed_out"
	PhaseFailed     = "failed"
)

// validTransitions maps each phase to the set of phases it may transition to.
// Transitions are monotonic: there is no path back toward admission.
var validTransitions = map[string]map[string]bool{
	PhaseQueued: {
		PhaseStarted:  true,
		PhaseTimedOut: true,
		PhaseFailed:   true,
	},
	PhaseStarted: {
		PhaseStreaming:  true,
		PhaseCompleting: true,
		PhaseTimedOut:   true,
		PhaseFailed:     true,
	},
	PhaseStreaming: {
		PhaseCompleting: true,
		PhaseTimedOut:   true,
		PhaseFailed:     true,
	},
	PhaseCompleting: {
		PhaseFinished: true,
		PhaseTimedOut: true,
		PhaseFailed:   true,
	},
}

// ValidTransition reports whether moving from one phase to another is allowed.
func ValidTransition(from, to string) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// Terminal reports whether a phase is terminal.
func Terminal(phase string) bool {
	switch phase {
	case PhaseFinished, PhaseTimedOut, PhaseFailed:
		return true
	}
	return false
}
