// Package memory provides the unbounded FIFO task queue drained by the
// dispatcher.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/JakeFAU/judge-sync/internal/domain"
	"github.com/JakeFAU/judge-sync/internal/metrics"
)

// ErrClosed is returned by Enqueue after Close, and by Dequeue once a closed
// queue is empty.
var ErrClosed = errors.New("queue closed")

// Queue is an unbounded FIFO of tasks. Any number of goroutines may enqueue.
type Queue struct {
	mu     sync.Mutex
	items  []domain.Task
	closed bool
	ready  chan struct{}
}

// NewQueue constructs an empty queue.
func NewQueue() *Queue {
	return &Queue{ready: make(chan struct{}, 1)}
}

// Enqueue appends task. It never blocks.
func (q *Queue) Enqueue(task domain.Task) error {
	if task == nil {
		return errors.New("nil task")
	}
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.items = append(q.items, task)
	n := len(q.items)
	q.mu.Unlock()

	metrics.SetPendingTasks(n)
	q.signal()
	return nil
}

// Dequeue removes the oldest task, waiting until one is available or ctx ends.
func (q *Queue) Dequeue(ctx context.Context) (domain.Task, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			task := q.items[0]
			q.items[0] = nil
			q.items = q.items[1:]
			n := len(q.items)
			q.mu.Unlock()

			metrics.SetPendingTasks(n)
			if n > 0 {
				q.signal()
			}
			return task, nil
		}
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return nil, ErrClosed
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("dequeue canceled: %w", ctx.Err())
		case <-q.ready:
		}
	}
}

// Len reports the number of queued tasks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close rejects further tasks. Queued tasks can still be dequeued.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

func (q *Queue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
