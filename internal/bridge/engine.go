package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/seantiz/chatbridge/internal/model"
)

// recordTimeout bounds the fire-and-forget history write at eviction.
const recordTimeout = 5 * time.Second

// Recorder persists terminal request outcomes. May be satisfied by the
// SQLite store or left nil to disable history.
type Recorder interface {
	RecordCompletion(ctx context.Context, c *model.Completion) error
}

// Request is one admitted chat call tracked by the engine. All fields are
// guarded by the engine lock; handlers observe state through Snapshot.
type Request struct {
	ID             string
	Mode           string
	Model          string
	Messages       []model.Message
	Phase          string
	CorrelationKey string
	CreatedAt      time.Time

	sink         Sink
	contentChars int
	timers       timerSet
	timerSeq     uint64
}

// Snapshot is a read-only copy of a request's observable state.
type Snapshot struct {
	ID             string
	Mode           string
	Model          string
	Phase          string
	CorrelationKey string
	ContentChars   int
	CreatedAt      time.Time
}

// Engine is the authoritative registry of in-flight requests. Admission,
// worker events, and timer callbacks all serialize on its lock, so a meta
// event and a start-timeout for the same request can never interleave their
// transition logic.
type Engine struct {
	mu       sync.Mutex
	requests map[string]*Request
	byKey    map[string]*Request
	order    []*Request

	queue     *TaskQueue
	matcher   Matcher
	timeouts  Timeouts
	connected atomic.Bool
	recorder  Recorder
	logger    *slog.Logger
	wg        sync.WaitGroup
}

// NewEngine creates an engine with the given timeout policy and matcher.
// rec may be nil to disable completion history.
func NewEngine(timeouts Timeouts, matcher Matcher, rec Recorder, logger *slog.Logger) *Engine {
	return &Engine{
		requests: make(map[string]*Request),
		byKey:    make(map[string]*Request),
		queue:    NewTaskQueue(),
		matcher:  matcher,
		timeouts: timeouts,
		recorder: rec,
		logger:   logger,
	}
}

// SetConnected flips the worker connectivity flag. The first "injected"
// event from the worker sets it true; admission is rejected while false.
func (e *Engine) SetConnected(v bool) {
	if v && !e.connected.Swap(true) {
		e.logger.Info("worker connected")
	}
	if !v {
		e.connected.Store(false)
	}
}

// Connected reports whether a worker has signalled readiness.
func (e *Engine) Connected() bool {
	return e.connected.Load()
}

// Admit registers a new request, enqueues its task for the worker, and arms
// the start timer. Returns ErrUnavailable while no worker is connected.
func (e *Engine) Admit(mode, modelName string, messages []model.Message, sink Sink) (Snapshot, error) {
	if !e.connected.Load() {
		return Snapshot{}, ErrUnavailable
	}

	r := &Request{
		ID:        model.NewCompletionID(),
		Mode:      mode,
		Model:     modelName,
		Messages:  messages,
		Phase:     model.PhaseQueued,
		CreatedAt: time.Now().UTC(),
		sink:      sink,
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.queue.Push(Task{
		ID:         r.ID,
		Model:      r.Model,
		Messages:   r.Messages,
		EnqueuedAt: r.CreatedAt,
	}); err != nil {
		return Snapshot{}, fmt.Errorf("enqueue task: %w", err)
	}

	e.requests[r.ID] = r
	e.order = append(e.order, r)
	e.armStartLocked(r)

	admissionsTotal.WithLabelValues(mode).Inc()
	liveRequests.Set(float64(len(e.requests)))
	e.logger.Info("request admitted",
		"request_id", r.ID,
		"mode", mode,
		"model", modelName,
	)

	return snapshotOf(r), nil
}

// Lookup returns the observable state of a live request.
func (e *Engine) Lookup(id string) (Snapshot, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.requests[id]
	if !ok {
		return Snapshot{}, false
	}
	return snapshotOf(r), true
}

// Abort evicts a request whose caller has disconnected. Nothing is retried:
// the caller is gone, so timers are cleared and the entry dropped.
func (e *Engine) Abort(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.requests[id]
	if !ok {
		return
	}
	e.logger.Info("request aborted by caller", "request_id", id, "phase", r.Phase)
	e.finishLocked(r, model.PhaseFailed, "", model.Usage{}, func(s Sink) {
		s.Fail(ErrClientGone)
	})
}

// PopTask hands the oldest queued task to the polling worker, waiting up to
// wait for one to arrive.
func (e *Engine) PopTask(ctx context.Context, wait time.Duration) (Task, bool) {
	return e.queue.PopOrWait(ctx, wait)
}

// ActiveRequests returns the number of in-flight requests.
func (e *Engine) ActiveRequests() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.requests)
}

// QueueDepth returns the number of tasks the worker has not yet popped.
func (e *Engine) QueueDepth() int {
	return e.queue.Len()
}

// Drain evicts every live request with a shutdown failure and waits for
// pending history writes. Called once during server shutdown.
func (e *Engine) Drain() {
	e.mu.Lock()
	live := make([]*Request, 0, len(e.requests))
	for _, r := range e.requests {
		live = append(live, r)
	}
	for _, r := range live {
		e.finishLocked(r, model.PhaseFailed, "", model.Usage{}, func(s Sink) {
			s.Fail(ErrShutdown)
		})
	}
	e.mu.Unlock()
	e.wg.Wait()
}

// Timer arming and stopping go through these helpers so every mutation
// advances the request's timer sequence. A callback captures the sequence at
// arm time and is discarded if any later arm or stop moved it, which closes
// the race where a fired timer blocks on the engine lock while the event
// that should have disarmed it is still being processed.
func (e *Engine) armStartLocked(r *Request) {
	r.timerSeq++
	id, seq := r.ID, r.timerSeq
	r.timers.armStart(e.timeouts.Start, func() { e.onStartTimeout(id, seq) })
}

func (e *Engine) armIdleLocked(r *Request) {
	r.timerSeq++
	id, seq := r.ID, r.timerSeq
	r.timers.armIdle(e.timeouts.Idle, func() { e.onIdleTimeout(id, seq) })
}

func (e *Engine) armCompletionLocked(r *Request) {
	r.timerSeq++
	id, seq := r.ID, r.timerSeq
	r.timers.armCompletion(e.timeouts.Completion, func() { e.onCompletionTimeout(id, seq) })
}

func (e *Engine) stopStartLocked(r *Request) {
	r.timerSeq++
	r.timers.stopStart()
}

func (e *Engine) stopIdleLocked(r *Request) {
	r.timerSeq++
	r.timers.stopIdle()
}

// finishLocked is the single eviction routine every terminal path goes
// through: normal completion, each timeout class, caller disconnect, and
// shutdown. It cancels all timers, settles the sink exactly once, removes
// the request from the registry, and records the outcome. The transition
// table is the gate: terminal phases have no outgoing transitions, so a
// second settle attempt is a no-op, and Finished is only reachable through
// Completing.
func (e *Engine) finishLocked(r *Request, phase, finishReason string, usage model.Usage, settle func(Sink)) {
	if !model.ValidTransition(r.Phase, phase) {
		return
	}
	r.timerSeq++
	r.timers.stopAll()
	r.Phase = phase
	settle(r.sink)
	e.evictLocked(r)

	completionsTotal.WithLabelValues(phase).Inc()
	liveRequests.Set(float64(len(e.requests)))

	if e.recorder == nil {
		return
	}
	now := time.Now().UTC()
	c := &model.Completion{
		ID:               r.ID,
		Model:            r.Model,
		Mode:             r.Mode,
		Outcome:          phase,
		FinishReason:     finishReason,
		ContentChars:     r.contentChars,
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		TotalTokens:      usage.TotalTokens,
		CreatedAt:        r.CreatedAt,
		FinishedAt:       now,
		DurationMS:       int(now.Sub(r.CreatedAt).Milliseconds()),
	}
	e.wg.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		if err := e.recorder.RecordCompletion(ctx, c); err != nil {
			e.logger.Error("record completion", "request_id", c.ID, "error", err)
		}
	})
}

// evictLocked removes a settled request from the registry. Calling it in a
// non-terminal phase or with live timers is a programming error: every
// terminal path must settle the phase and stop the timers first, or a
// callback could fire against an evicted request.
func (e *Engine) evictLocked(r *Request) {
	if !model.Terminal(r.Phase) {
		panic("bridge: evicting request in non-terminal phase " + r.Phase)
	}
	if r.timers.live() {
		panic("bridge: evicting request with live timers")
	}
	delete(e.requests, r.ID)
	if r.CorrelationKey != "" {
		delete(e.byKey, r.CorrelationKey)
	}
	for i, o := range e.order {
		if o == r {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
}

func snapshotOf(r *Request) Snapshot {
	return Snapshot{
		ID:             r.ID,
		Mode:           r.Mode,
		Model:          r.Model,
		Phase:          r.Phase,
		CorrelationKey: r.CorrelationKey,
		ContentChars:   r.contentChars,
		CreatedAt:      r.CreatedAt,
	}
}
