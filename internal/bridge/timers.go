package bridge

import "time"

// Timeout class labels, used in logs and metrics.
const (
	timeoutClassStart      = "start"
	timeoutClassIdle       = "idle"
	timeoutClassCompletion = "completion"
)

// Default timeout durations.
const (
	DefaultStartTimeout      = 15 * time.Second
	DefaultIdleTimeout       = 30 * time.Second
	DefaultCompletionTimeout = 30 * time.Second
)

// Timeouts configures the three timeout classes of the engine.
type Timeouts struct {
	// Start fires if the worker never reports meta for a request. In
	// buffered mode it also bounds the gaps between deltas, since buffered
	// requests carry no idle timer.
	Start time.Duration
	// Idle fires if a streaming request sees no delta within the window.
	// Streaming only.
	Idle time.Duration
	// Completion fires if usage does not follow done within the window.
	Completion time.Duration
}

// DefaultTimeouts returns the standard timeout configuration.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Start:      DefaultStartTimeout,
		Idle:       DefaultIdleTimeout,
		Completion: DefaultCompletionTimeout,
	}
}

// timerSet holds the live timer handles of one request. At most one timer per
// class is live at a time: arming a class always stops its predecessor.
// All arming and stopping happens under the engine lock, and every callback
// re-checks request liveness under that same lock, so a timer that lost the
// race to a concurrent transition is a no-op.
type timerSet struct {
	start      *time.Timer
	idle       *time.Timer
	completion *time.Timer
}

func (t *timerSet) armStart(d time.Duration, fn func()) {
	stopTimer(t.start)
	t.start = time.AfterFunc(d, fn)
}

func (t *timerSet) armIdle(d time.Duration, fn func()) {
	stopTimer(t.idle)
	t.idle = time.AfterFunc(d, fn)
}

func (t *timerSet) armCompletion(d time.Duration, fn func()) {
	stopTimer(t.completion)
	t.completion = time.AfterFunc(d, fn)
}

func (t *timerSet) stopStart() {
	stopTimer(t.start)
	t.start = nil
}

func (t *timerSet) stopIdle() {
	stopTimer(t.idle)
	t.idle = nil
}

// stopAll cancels every live timer. Called on every terminal path before the
// request leaves the registry.
func (t *timerSet) stopAll() {
	stopTimer(t.start)
	stopTimer(t.idle)
	stopTimer(t.completion)
	t.start, t.idle, t.completion = nil, nil, nil
}

// live reports whether any timer handle is still armed.
func (t *timerSet) live() bool {
	return t.start != nil || t.idle != nil || t.completion != nil
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}
