package bridge

import (
	"context"
	"sync"
	"time"

	"github.com/seantiz/chatbridge/internal/model"
)

// Task is one work order for the external worker.
type Task struct {
	ID         string
	Model      string
	Messages   []model.Message
	EnqueuedAt time.Time
}

// TaskQueue is a FIFO queue of outbound work items popped by the worker's
// long-poll loop. Each item is delivered to at most one pop.
// It is safe for concurrent use.
type TaskQueue struct {
	mu     sync.Mutex
	items  []Task
	ids    map[string]bool
	signal chan struct{}
}

// NewTaskQueue creates an empty task queue.
func NewTaskQueue() *TaskQueue {
	return &TaskQueue{
		ids:    make(map[string]bool),
		signal: make(chan struct{}, 1),
	}
}

// Push appends a task. Returns ErrDuplicateTask if a task with the same id is
// already queued.
func (q *TaskQueue) Push(t Task) error {
	q.mu.Lock()
	if q.ids[t.ID] {
		q.mu.Unlock()
		return ErrDuplicateTask
	}
	q.ids[t.ID] = true
	q.items = append(q.items, t)
	queueDepth.Set(float64(len(q.items)))
	q.mu.Unlock()

	// Wake one waiter. A buffered signal of one is enough: waiters that lose
	// the race re-check the queue and go back to waiting.
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return nil
}

// PopOrWait removes and returns the oldest task, blocking up to wait for one
// to become available. Returns ok=false when the wait expires or ctx is done,
// so the worker's poll round-trip stays bounded.
func (q *TaskQueue) PopOrWait(ctx context.Context, wait time.Duration) (Task, bool) {
	timer := time.NewTimer(wait)
	defer timer.Stop()

	for {
		if t, ok := q.tryPop(); ok {
			return t, true
		}
		select {
		case <-q.signal:
		case <-timer.C:
			return Task{}, false
		case <-ctx.Done():
			return Task{}, false
		}
	}
}

// Len returns the number of queued tasks.
func (q *TaskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *TaskQueue) tryPop() (Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Task{}, false
	}
	t := q.items[0]
	q.items = q.items[1:]
	delete(q.ids, t.ID)
	queueDepth.Set(float64(len(q.items)))
	return t, true
}
