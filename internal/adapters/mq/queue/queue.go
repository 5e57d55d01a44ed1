// Package queue carries dashboard input changes from HTTP handlers to the
// render workers.
//
// The queue coalesces per session: while a change for a session is still
// waiting, a newer change for the same session replaces it in place, so a
// burst of slider moves costs one render.
package queue

import (
	"context"
	"sync"

	"github.com/okian/epidash/internal/domain/model"
	"github.com/okian/epidash/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultQueueCapacity = 10000
)

// Change is the payload flowing through the queue.
type Change = model.Change

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a change, or replaces the pending change of the same
	// session if c is newer. Returns false if the queue is closed or full.
	Enqueue(ctx context.Context, c Change) bool

	// Dequeue returns a channel that receives changes as they become
	// available. The channel is closed once the queue is closed and drained.
	Dequeue(ctx context.Context) <-chan Change

	// Len returns the number of pending changes.
	Len(ctx context.Context) int

	// Close stops accepting changes. Pending changes are still delivered.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue is a FIFO of sessions with at most one pending change each.
type InMemoryQueue struct {
	mu       sync.Mutex
	order    []string
	pending  map[string]Change
	capacity int
	closed   bool

	signal chan struct{} // wakes one waiting consumer
	done   chan struct{} // closed by Close
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity: defaultQueueCapacity,
	}
	for _, opt := range opts {
		opt(q)
	}
	q.pending = make(map[string]Change, q.capacity)
	q.signal = make(chan struct{}, 1)
	q.done = make(chan struct{})

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	return q
}

// Enqueue adds or coalesces a change.
func (q *InMemoryQueue) Enqueue(ctx context.Context, c Change) bool {
	if ctx.Err() != nil {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "context_cancelled")
		return false
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "closed")
		return false
	}

	if prev, ok := q.pending[c.SessionID]; ok {
		if c.Newer(prev) {
			q.pending[c.SessionID] = c
		}
		metrics.RecordQueueCoalesced()
		return true
	}

	if len(q.order) >= q.capacity {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "capacity_exceeded")
		return false
	}

	q.order = append(q.order, c.SessionID)
	q.pending[c.SessionID] = c
	metrics.RecordQueueEnqueue()
	metrics.UpdateQueueSize(len(q.order))
	q.wake()
	return true
}

// pop removes the oldest pending change.
func (q *InMemoryQueue) pop() (Change, bool, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.order) == 0 {
		return Change{}, false, q.closed
	}
	id := q.order[0]
	q.order[0] = ""
	q.order = q.order[1:]
	c := q.pending[id]
	delete(q.pending, id)
	metrics.UpdateQueueSize(len(q.order))

	// Another consumer may be waiting for the rest.
	if len(q.order) > 0 {
		q.wake()
	}
	return c, true, q.closed
}

// wake signals without blocking. Must be called with q.mu held.
func (q *InMemoryQueue) wake() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// Dequeue returns a channel fed by a goroutine that lives until the queue
// is closed and drained or ctx is done.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Change {
	out := make(chan Change)
	go func() {
		defer close(out)
		for {
			c, ok, closed := q.pop()
			if ok {
				select {
				case out <- c:
					metrics.RecordQueueDequeue()
				case <-ctx.Done():
					return
				}
				continue
			}
			if closed {
				return
			}
			select {
			case <-q.signal:
			case <-q.done:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the number of pending changes.
func (q *InMemoryQueue) Len(ctx context.Context) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.order)
}

// Close stops accepting changes.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	close(q.done)
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
