package bridge

import (
	"strings"
	"sync"

	"github.com/seantiz/chatbridge/internal/model"
)

// frameBufferSize is the channel buffer for a streaming sink. Emit fails if
// the caller falls this far behind, which is treated as a dead caller.
const frameBufferSize = 64

// Sink abstracts how output reaches the original caller. The correlator
// writes to it without knowing the delivery mode.
//
// Every sink settles exactly once: the first of Close or Fail wins and
// later calls are no-ops, so a normal completion racing a timeout is safe.
type Sink interface {
	// Emit delivers one incremental content fragment.
	Emit(text string) error
	// Close terminates the sink successfully with the given finish reason
	// and usage accounting.
	Close(finishReason string, usage model.Usage)
	// Fail terminates the sink with an error.
	Fail(err error)
}

// Frame is one unit of streamed output consumed by the SSE handler.
// A Final frame carries the finish reason and usage; the frame channel is
// closed right after it.
type Frame struct {
	Text         string
	Final        bool
	FinishReason string
	Usage        model.Usage
}

// StreamSink delivers frames to an SSE handler through a channel, in the
// exact order Emit is called.
type StreamSink struct {
	frames  chan Frame
	done    chan struct{}
	settle  sync.Once
	abandon sync.Once
}

// NewStreamSink creates a sink for a streaming request.
func NewStreamSink() *StreamSink {
	return &StreamSink{
		frames: make(chan Frame, frameBufferSize),
		done:   make(chan struct{}),
	}
}

// Frames returns the channel the SSE handler consumes. It is closed after
// the final frame.
func (s *StreamSink) Frames() <-chan Frame {
	return s.frames
}

// Abandon signals that the caller is gone. Pending and future writes are
// discarded. Safe to call more than once.
func (s *StreamSink) Abandon() {
	s.abandon.Do(func() { close(s.done) })
}

// Emit queues one content fragment. Never blocks: a full buffer means the
// caller stopped draining and the request should be evicted.
func (s *StreamSink) Emit(text string) error {
	select {
	case <-s.done:
		return ErrSinkClosed
	default:
	}
	select {
	case s.frames <- Frame{Text: text}:
		return nil
	case <-s.done:
		return ErrSinkClosed
	default:
		return ErrSinkStalled
	}
}

// Close sends the terminal frame and closes the frame channel.
func (s *StreamSink) Close(finishReason string, usage model.Usage) {
	s.settle.Do(func() {
		final := Frame{Final: true, FinishReason: finishReason, Usage: usage}
		select {
		case s.frames <- final:
		case <-s.done:
		default:
			// Buffer full with the caller not draining; the closed channel
			// below still terminates the handler loop.
		}
		close(s.frames)
	})
}

// Fail sends one explanatory fragment followed by a terminal stop frame, so
// the caller's stream always ends with a well-formed completion.
func (s *StreamSink) Fail(err error) {
	s.settle.Do(func() {
		select {
		case s.frames <- Frame{Text: "⚠️ " + err.Error()}:
		case <-s.done:
		default:
		}
		select {
		case s.frames <- Frame{Final: true, FinishReason: model.FinishReasonStop}:
		case <-s.done:
		default:
		}
		close(s.frames)
	})
}

// BufferResult is the settled value of a buffered request.
type BufferResult struct {
	Content string
	Usage   model.Usage
	Err     error
}

// BufferSink accumulates fragments and settles a single deferred value.
type BufferSink struct {
	mu      sync.Mutex
	settled bool
	content strings.Builder
	result  chan BufferResult
}

// NewBufferSink creates a sink for a buffered request.
func NewBufferSink() *BufferSink {
	return &BufferSink{result: make(chan BufferResult, 1)}
}

// Result returns the channel that receives the settled value exactly once.
func (s *BufferSink) Result() <-chan BufferResult {
	return s.result
}

// Emit appends one fragment to the accumulated content.
func (s *BufferSink) Emit(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settled {
		return ErrSinkClosed
	}
	s.content.WriteString(text)
	return nil
}

// Close resolves the pending value with the accumulated content. Settling
// twice is a no-op.
func (s *BufferSink) Close(_ string, usage model.Usage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settled {
		return
	}
	s.settled = true
	s.result <- BufferResult{Content: s.content.String(), Usage: usage}
}

// Fail rejects the pending value. Settling twice is a no-op.
func (s *BufferSink) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settled {
		return
	}
	s.settled = true
	s.result <- BufferResult{Err: err}
}
