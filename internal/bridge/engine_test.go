package bridge_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/seantiz/chatbridge/internal/bridge"
	"github.com/seantiz/chatbridge/internal/model"
)

func newTestEngine(t *testing.T, timeouts bridge.Timeouts) *bridge.Engine {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	eng := bridge.NewEngine(timeouts, bridge.RecencyMatcher{}, nil, logger)
	eng.SetConnected(true)
	return eng
}

func fastTimeouts() bridge.Timeouts {
	return bridge.Timeouts{
		Start:      40 * time.Millisecond,
		Idle:       40 * time.Millisecond,
		Completion: 40 * time.Millisecond,
	}
}

func slowTimeouts() bridge.Timeouts {
	return bridge.Timeouts{
		Start:      5 * time.Second,
		Idle:       5 * time.Second,
		Completion: 5 * time.Second,
	}
}

func userMessages(text string) []model.Message {
	content, _ := json.Marshal(text)
	return []model.Message{{Role: "user", Content: content}}
}

// collectFrames drains a stream sink until its channel closes or the timeout
// elapses.
func collectFrames(t *testing.T, sink *bridge.StreamSink, timeout time.Duration) []bridge.Frame {
	t.Helper()
	var frames []bridge.Frame
	deadline := time.After(timeout)
	for {
		select {
		case f, ok := <-sink.Frames():
			if !ok {
				return frames
			}
			frames = append(frames, f)
		case <-deadline:
			t.Fatalf("frames channel not closed within %v; got %d frames", timeout, len(frames))
		}
	}
}

func TestAdmitRejectedWhileDisconnected(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	eng := bridge.NewEngine(slowTimeouts(), bridge.RecencyMatcher{}, nil, logger)

	_, err := eng.Admit(model.ModeBuffered, "gpt-5", userMessages("hi"), bridge.NewBufferSink())
	if !errors.Is(err, bridge.ErrUnavailable) {
		t.Fatalf("Admit error = %v, want ErrUnavailable", err)
	}
}

func TestAdmitEnqueuesTask(t *testing.T) {
	eng := newTestEngine(t, slowTimeouts())

	snap, err := eng.Admit(model.ModeBuffered, "gpt-5", userMessages("hi"), bridge.NewBufferSink())
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}
	if snap.Phase != model.PhaseQueued {
		t.Errorf("phase = %q, want queued", snap.Phase)
	}

	task, ok := eng.PopTask(context.Background(), 100*time.Millisecond)
	if !ok {
		t.Fatal("PopTask returned no task")
	}
	if task.ID != snap.ID {
		t.Errorf("task id = %q, want %q", task.ID, snap.ID)
	}
	if task.Model != "gpt-5" {
		t.Errorf("task model = %q, want gpt-5", task.Model)
	}
}

func TestBufferedHappyPath(t *testing.T) {
	eng := newTestEngine(t, slowTimeouts())
	sink := bridge.NewBufferSink()

	snap, err := eng.Admit(model.ModeBuffered, "gpt-5", userMessages("hi"), sink)
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}

	eng.HandleMeta("RID_1")
	eng.HandleDelta("RID_1", "hi")
	eng.HandleDelta("RID_1", " there")
	eng.HandleDone("RID_1")
	eng.HandleUsage("RID_1", model.Usage{PromptTokens: 2, CompletionTokens: 3, TotalTokens: 5})

	select {
	case res := <-sink.Result():
		if res.Err != nil {
			t.Fatalf("result error = %v", res.Err)
		}
		if res.Content != "hi there" {
			t.Errorf("content = %q, want %q", res.Content, "hi there")
		}
		if res.Usage.TotalTokens != 5 {
			t.Errorf("total tokens = %d, want 5", res.Usage.TotalTokens)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("buffered result never settled")
	}

	if _, ok := eng.Lookup(snap.ID); ok {
		t.Error("request still live after usage")
	}
}

func TestStreamingDeliversFramesInOrder(t *testing.T) {
	eng := newTestEngine(t, slowTimeouts())
	sink := bridge.NewStreamSink()

	if _, err := eng.Admit(model.ModeStream, "gpt-5", userMessages("hi"), sink); err != nil {
		t.Fatalf("Admit: %v", err)
	}

	eng.HandleMeta("RID_1")
	eng.HandleDelta("RID_1", "a")
	eng.HandleDelta("RID_1", "b")
	eng.HandleDelta("RID_1", "c")
	eng.HandleDone("RID_1")
	eng.HandleUsage("RID_1", model.Usage{TotalTokens: 3})

	frames := collectFrames(t, sink, 2*time.Second)
	if len(frames) != 4 {
		t.Fatalf("got %d frames, want 4", len(frames))
	}
	for i, want := range []string{"a", "b", "c"} {
		if frames[i].Text != want || frames[i].Final {
			t.Errorf("frame[%d] = %+v, want text %q", i, frames[i], want)
		}
	}
	final := frames[3]
	if !final.Final || final.FinishReason != model.FinishReasonStop {
		t.Errorf("final frame = %+v, want final stop", final)
	}
	if final.Usage.TotalTokens != 3 {
		t.Errorf("final usage = %d, want 3", final.Usage.TotalTokens)
	}
}

func TestMetaBindsMostRecentlyAdmitted(t *testing.T) {
	eng := newTestEngine(t, slowTimeouts())

	r1, err := eng.Admit(model.ModeBuffered, "gpt-5", userMessages("first"), bridge.NewBufferSink())
	if err != nil {
		t.Fatalf("Admit r1: %v", err)
	}
	r2, err := eng.Admit(model.ModeBuffered, "gpt-5", userMessages("second"), bridge.NewBufferSink())
	if err != nil {
		t.Fatalf("Admit r2: %v", err)
	}

	eng.HandleMeta("RID_A")
	eng.HandleMeta("RID_B")

	s2, ok := eng.Lookup(r2.ID)
	if !ok {
		t.Fatal("r2 not found")
	}
	if s2.CorrelationKey != "RID_A" {
		t.Errorf("r2 key = %q, want RID_A (newest admitted binds first)", s2.CorrelationKey)
	}

	s1, ok := eng.Lookup(r1.ID)
	if !ok {
		t.Fatal("r1 not found")
	}
	if s1.CorrelationKey != "RID_B" {
		t.Errorf("r1 key = %q, want RID_B", s1.CorrelationKey)
	}
}

func TestCorrelationKeyBoundOnce(t *testing.T) {
	eng := newTestEngine(t, slowTimeouts())

	snap, err := eng.Admit(model.ModeBuffered, "gpt-5", userMessages("hi"), bridge.NewBufferSink())
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}

	eng.HandleMeta("RID_1")
	eng.HandleMeta("RID_1") // duplicate meta must not rebind

	got, _ := eng.Lookup(snap.ID)
	if got.CorrelationKey != "RID_1" {
		t.Errorf("key = %q, want RID_1", got.CorrelationKey)
	}
	if got.Phase != model.PhaseStarted {
		t.Errorf("phase = %q, want started", got.Phase)
	}
}

func TestUnmatchedEventsAreDiscarded(t *testing.T) {
	eng := newTestEngine(t, slowTimeouts())
	sink := bridge.NewBufferSink()

	snap, err := eng.Admit(model.ModeBuffered, "gpt-5", userMessages("hi"), sink)
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}
	eng.HandleMeta("RID_1")

	// Events for a rid that never matched anything.
	eng.HandleDelta("RID_GHOST", "noise")
	eng.HandleDone("RID_GHOST")
	eng.HandleUsage("RID_GHOST", model.Usage{TotalTokens: 99})

	got, ok := eng.Lookup(snap.ID)
	if !ok {
		t.Fatal("live request was evicted by unmatched events")
	}
	if got.ContentChars != 0 {
		t.Errorf("content chars = %d, want 0", got.ContentChars)
	}

	eng.HandleDelta("RID_1", "real")
	eng.HandleDone("RID_1")
	eng.HandleUsage("RID_1", model.Usage{TotalTokens: 1})

	res := <-sink.Result()
	if res.Content != "real" {
		t.Errorf("content = %q, want %q", res.Content, "real")
	}
}

func TestEmptyRidMetaIsDiscarded(t *testing.T) {
	eng := newTestEngine(t, slowTimeouts())
	sink := bridge.NewBufferSink()

	snap, err := eng.Admit(model.ModeBuffered, "gpt-5", userMessages("hi"), sink)
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}

	// A broken worker may report events with no rid at all. None of them may
	// bind or touch the pending request.
	eng.HandleMeta("")
	eng.HandleDelta("", "noise")
	eng.HandleDone("")
	eng.HandleUsage("", model.Usage{TotalTokens: 9})

	got, ok := eng.Lookup(snap.ID)
	if !ok {
		t.Fatal("request evicted by empty-rid events")
	}
	if got.Phase != model.PhaseQueued {
		t.Errorf("phase = %q, want queued", got.Phase)
	}
	if got.ContentChars != 0 {
		t.Errorf("content chars = %d, want 0", got.ContentChars)
	}

	// The real meta must still be able to bind.
	eng.HandleMeta("RID_REAL")
	got, _ = eng.Lookup(snap.ID)
	if got.CorrelationKey != "RID_REAL" {
		t.Fatalf("key = %q, want RID_REAL", got.CorrelationKey)
	}

	eng.HandleDelta("RID_REAL", "hi")
	eng.HandleDone("RID_REAL")
	eng.HandleUsage("RID_REAL", model.Usage{TotalTokens: 1})

	res := <-sink.Result()
	if res.Err != nil || res.Content != "hi" {
		t.Errorf("result = %+v, want content %q", res, "hi")
	}
}

func TestBufferedWorkerSilentAfterMeta(t *testing.T) {
	eng := newTestEngine(t, fastTimeouts())
	sink := bridge.NewBufferSink()

	snap, err := eng.Admit(model.ModeBuffered, "gpt-5", userMessages("hi"), sink)
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}

	eng.HandleMeta("RID_1")
	// The worker never produces output. The start timer survives meta in
	// buffered mode, so the caller must not hang.

	select {
	case res := <-sink.Result():
		if !errors.Is(res.Err, bridge.ErrStartTimeout) {
			t.Errorf("result err = %v, want ErrStartTimeout", res.Err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("buffered request hung after meta with no output")
	}
	if _, ok := eng.Lookup(snap.ID); ok {
		t.Error("request still live after timeout")
	}
}

func TestBufferedWorkerSilentMidAccumulation(t *testing.T) {
	eng := newTestEngine(t, fastTimeouts())
	sink := bridge.NewBufferSink()

	if _, err := eng.Admit(model.ModeBuffered, "gpt-5", userMessages("hi"), sink); err != nil {
		t.Fatalf("Admit: %v", err)
	}

	eng.HandleMeta("RID_1")
	eng.HandleDelta("RID_1", "partial")
	// Then silence: the accumulated output comes back rather than an error.

	select {
	case res := <-sink.Result():
		if res.Err != nil {
			t.Fatalf("result err = %v, want best-effort success", res.Err)
		}
		if res.Content != "partial" {
			t.Errorf("content = %q, want %q", res.Content, "partial")
		}
		if res.Usage != (model.Usage{}) {
			t.Errorf("usage = %+v, want zeroed", res.Usage)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("buffered request hung mid-accumulation")
	}
}

func TestBufferedDeltasExtendProgressWindow(t *testing.T) {
	timeouts := bridge.Timeouts{
		Start:      200 * time.Millisecond,
		Idle:       5 * time.Second,
		Completion: 5 * time.Second,
	}
	eng := newTestEngine(t, timeouts)
	sink := bridge.NewBufferSink()

	if _, err := eng.Admit(model.ModeBuffered, "gpt-5", userMessages("hi"), sink); err != nil {
		t.Fatalf("Admit: %v", err)
	}

	eng.HandleMeta("RID_1")
	eng.HandleDelta("RID_1", "a")
	time.Sleep(120 * time.Millisecond)
	eng.HandleDelta("RID_1", " b")
	time.Sleep(120 * time.Millisecond)
	// Total elapsed exceeds the start window, but every gap is inside it.
	eng.HandleDone("RID_1")
	eng.HandleUsage("RID_1", model.Usage{TotalTokens: 2})

	select {
	case res := <-sink.Result():
		if res.Err != nil {
			t.Fatalf("result err = %v, want nil", res.Err)
		}
		if res.Content != "a b" {
			t.Errorf("content = %q, want %q", res.Content, "a b")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("buffered request never settled")
	}
}

func TestLateDeltaAfterDoneDoesNotBlockCompletion(t *testing.T) {
	timeouts := bridge.Timeouts{
		Start:      5 * time.Second,
		Idle:       5 * time.Second,
		Completion: 40 * time.Millisecond,
	}
	eng := newTestEngine(t, timeouts)
	sink := bridge.NewBufferSink()

	if _, err := eng.Admit(model.ModeBuffered, "gpt-5", userMessages("hi"), sink); err != nil {
		t.Fatalf("Admit: %v", err)
	}

	eng.HandleMeta("RID_1")
	eng.HandleDelta("RID_1", "body")
	eng.HandleDone("RID_1")
	eng.HandleDelta("RID_1", " late")
	// usage never arrives; the completion timer must still fire.

	select {
	case res := <-sink.Result():
		if res.Err != nil {
			t.Fatalf("result err = %v, want best-effort success", res.Err)
		}
		if res.Content != "body late" {
			t.Errorf("content = %q, want %q", res.Content, "body late")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("completion timer never fired after late delta")
	}
}

func TestUsageWithoutDoneStillFinishes(t *testing.T) {
	eng := newTestEngine(t, slowTimeouts())
	sink := bridge.NewBufferSink()

	snap, err := eng.Admit(model.ModeBuffered, "gpt-5", userMessages("hi"), sink)
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}

	eng.HandleMeta("RID_1")
	eng.HandleDelta("RID_1", "quick")
	eng.HandleUsage("RID_1", model.Usage{TotalTokens: 1})

	res := <-sink.Result()
	if res.Err != nil || res.Content != "quick" {
		t.Errorf("result = %+v, want content %q", res, "quick")
	}
	if _, ok := eng.Lookup(snap.ID); ok {
		t.Error("request still live after usage")
	}
}

func TestStartTimeoutStreaming(t *testing.T) {
	eng := newTestEngine(t, fastTimeouts())
	sink := bridge.NewStreamSink()

	snap, err := eng.Admit(model.ModeStream, "gpt-5", userMessages("hi"), sink)
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}

	// No meta ever arrives.
	frames := collectFrames(t, sink, 2*time.Second)
	if len(frames) != 2 {
		t.Fatalf("got %d frames, want explanatory + final", len(frames))
	}
	if frames[0].Final || frames[0].Text == "" {
		t.Errorf("frame[0] = %+v, want explanatory text", frames[0])
	}
	if !frames[1].Final || frames[1].FinishReason != model.FinishReasonStop {
		t.Errorf("frame[1] = %+v, want final stop", frames[1])
	}

	if _, ok := eng.Lookup(snap.ID); ok {
		t.Error("request still live after start timeout")
	}
}

func TestStartTimeoutBuffered(t *testing.T) {
	eng := newTestEngine(t, fastTimeouts())
	sink := bridge.NewBufferSink()

	if _, err := eng.Admit(model.ModeBuffered, "gpt-5", userMessages("hi"), sink); err != nil {
		t.Fatalf("Admit: %v", err)
	}

	select {
	case res := <-sink.Result():
		if !errors.Is(res.Err, bridge.ErrStartTimeout) {
			t.Errorf("result err = %v, want ErrStartTimeout", res.Err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("buffered request never settled after start timeout")
	}
}

func TestIdleTimeoutStreaming(t *testing.T) {
	eng := newTestEngine(t, fastTimeouts())
	sink := bridge.NewStreamSink()

	if _, err := eng.Admit(model.ModeStream, "gpt-5", userMessages("hi"), sink); err != nil {
		t.Fatalf("Admit: %v", err)
	}

	eng.HandleMeta("RID_1")
	eng.HandleDelta("RID_1", "partial")
	// Then silence past the idle window.

	frames := collectFrames(t, sink, 2*time.Second)
	if len(frames) != 3 {
		t.Fatalf("got %d frames, want delta + explanatory + final", len(frames))
	}
	if frames[0].Text != "partial" {
		t.Errorf("frame[0] text = %q, want partial", frames[0].Text)
	}
	if !frames[2].Final {
		t.Errorf("frame[2] = %+v, want final", frames[2])
	}
}

func TestNoIdleTimeoutInBufferedMode(t *testing.T) {
	timeouts := bridge.Timeouts{
		Start:      5 * time.Second,
		Idle:       30 * time.Millisecond,
		Completion: 5 * time.Second,
	}
	eng := newTestEngine(t, timeouts)
	sink := bridge.NewBufferSink()

	if _, err := eng.Admit(model.ModeBuffered, "gpt-5", userMessages("hi"), sink); err != nil {
		t.Fatalf("Admit: %v", err)
	}

	eng.HandleMeta("RID_1")
	eng.HandleDelta("RID_1", "slow")

	// Wait well past the idle window; buffered mode must not time out.
	time.Sleep(100 * time.Millisecond)

	eng.HandleDelta("RID_1", " accumulation")
	eng.HandleDone("RID_1")
	eng.HandleUsage("RID_1", model.Usage{TotalTokens: 2})

	res := <-sink.Result()
	if res.Err != nil {
		t.Fatalf("result err = %v, want nil", res.Err)
	}
	if res.Content != "slow accumulation" {
		t.Errorf("content = %q, want %q", res.Content, "slow accumulation")
	}
}

func TestCompletionTimeoutStreaming(t *testing.T) {
	timeouts := bridge.Timeouts{
		Start:      5 * time.Second,
		Idle:       5 * time.Second,
		Completion: 40 * time.Millisecond,
	}
	eng := newTestEngine(t, timeouts)
	sink := bridge.NewStreamSink()

	snap, err := eng.Admit(model.ModeStream, "gpt-5", userMessages("hi"), sink)
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}

	eng.HandleMeta("RID_1")
	eng.HandleDelta("RID_1", "a")
	eng.HandleDelta("RID_1", "b")
	eng.HandleDone("RID_1")
	// usage never arrives.

	frames := collectFrames(t, sink, 2*time.Second)
	if len(frames) != 3 {
		t.Fatalf("got %d frames, want 2 deltas + final", len(frames))
	}
	final := frames[2]
	if !final.Final || final.FinishReason != model.FinishReasonStop {
		t.Errorf("final frame = %+v, want final stop", final)
	}
	if final.Usage != (model.Usage{}) {
		t.Errorf("final usage = %+v, want zeroed", final.Usage)
	}

	if _, ok := eng.Lookup(snap.ID); ok {
		t.Error("request still live after completion timeout")
	}
}

func TestCompletionTimeoutBufferedReturnsPartialContent(t *testing.T) {
	timeouts := bridge.Timeouts{
		Start:      5 * time.Second,
		Idle:       5 * time.Second,
		Completion: 40 * time.Millisecond,
	}
	eng := newTestEngine(t, timeouts)
	sink := bridge.NewBufferSink()

	if _, err := eng.Admit(model.ModeBuffered, "gpt-5", userMessages("hi"), sink); err != nil {
		t.Fatalf("Admit: %v", err)
	}

	eng.HandleMeta("RID_1")
	eng.HandleDelta("RID_1", "partial answer")
	eng.HandleDone("RID_1")

	select {
	case res := <-sink.Result():
		if res.Err != nil {
			t.Fatalf("result err = %v, want best-effort success", res.Err)
		}
		if res.Content != "partial answer" {
			t.Errorf("content = %q, want %q", res.Content, "partial answer")
		}
		if res.Usage != (model.Usage{}) {
			t.Errorf("usage = %+v, want zeroed", res.Usage)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("buffered request never settled after completion timeout")
	}
}

func TestUsageAfterEvictionIsIgnored(t *testing.T) {
	eng := newTestEngine(t, fastTimeouts())
	sink := bridge.NewBufferSink()

	if _, err := eng.Admit(model.ModeBuffered, "gpt-5", userMessages("hi"), sink); err != nil {
		t.Fatalf("Admit: %v", err)
	}

	// Wait for the start timeout to evict the request.
	res := <-sink.Result()
	if !errors.Is(res.Err, bridge.ErrStartTimeout) {
		t.Fatalf("result err = %v, want ErrStartTimeout", res.Err)
	}

	// Late events for the never-bound rid must be no-ops.
	eng.HandleMeta("RID_LATE")
	eng.HandleDone("RID_LATE")
	eng.HandleUsage("RID_LATE", model.Usage{TotalTokens: 7})

	select {
	case extra := <-sink.Result():
		t.Fatalf("sink settled twice: %+v", extra)
	default:
	}
}

func TestAbortEvictsRequest(t *testing.T) {
	eng := newTestEngine(t, slowTimeouts())
	sink := bridge.NewStreamSink()

	snap, err := eng.Admit(model.ModeStream, "gpt-5", userMessages("hi"), sink)
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}
	eng.HandleMeta("RID_1")

	sink.Abandon()
	eng.Abort(snap.ID)

	if _, ok := eng.Lookup(snap.ID); ok {
		t.Error("request still live after abort")
	}
	if n := eng.ActiveRequests(); n != 0 {
		t.Errorf("active requests = %d, want 0", n)
	}

	// Further events for the aborted rid are discarded.
	eng.HandleDelta("RID_1", "late")
	eng.HandleUsage("RID_1", model.Usage{})
}

func TestDrainSettlesEverything(t *testing.T) {
	eng := newTestEngine(t, slowTimeouts())
	buf := bridge.NewBufferSink()
	str := bridge.NewStreamSink()

	if _, err := eng.Admit(model.ModeBuffered, "gpt-5", userMessages("one"), buf); err != nil {
		t.Fatalf("Admit buffered: %v", err)
	}
	if _, err := eng.Admit(model.ModeStream, "gpt-5", userMessages("two"), str); err != nil {
		t.Fatalf("Admit stream: %v", err)
	}

	eng.Drain()

	res := <-buf.Result()
	if !errors.Is(res.Err, bridge.ErrShutdown) {
		t.Errorf("buffered err = %v, want ErrShutdown", res.Err)
	}
	frames := collectFrames(t, str, 2*time.Second)
	if len(frames) == 0 || !frames[len(frames)-1].Final {
		t.Errorf("stream frames = %+v, want terminal frame", frames)
	}
	if n := eng.ActiveRequests(); n != 0 {
		t.Errorf("active requests = %d, want 0", n)
	}
}

// fixedMatcher always picks the candidate with the given id.
type fixedMatcher struct{ id string }

func (m fixedMatcher) Match(_ string, candidates []bridge.Candidate) string {
	for _, c := range candidates {
		if c.ID == m.id {
			return c.ID
		}
	}
	return ""
}

func TestInjectableMatcherOverridesRecency(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	// Decide the winner after admission, via a pointer matcher.
	m := &fixedMatcher{}
	eng := bridge.NewEngine(slowTimeouts(), m, nil, logger)
	eng.SetConnected(true)

	r1, err := eng.Admit(model.ModeBuffered, "gpt-5", userMessages("older"), bridge.NewBufferSink())
	if err != nil {
		t.Fatalf("Admit r1: %v", err)
	}
	if _, err := eng.Admit(model.ModeBuffered, "gpt-5", userMessages("newer"), bridge.NewBufferSink()); err != nil {
		t.Fatalf("Admit r2: %v", err)
	}

	m.id = r1.ID
	eng.HandleMeta("RID_X")

	got, _ := eng.Lookup(r1.ID)
	if got.CorrelationKey != "RID_X" {
		t.Errorf("r1 key = %q, want RID_X (matcher choice, not recency)", got.CorrelationKey)
	}
}
