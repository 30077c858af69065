// Package dispatcher drains the task queue into the worker pool. When the
// pool is saturated the dispatcher runs the task itself, which stalls intake
// instead of growing memory.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/judge-sync/internal/domain"
	"github.com/JakeFAU/judge-sync/internal/metrics"
	"github.com/JakeFAU/judge-sync/internal/queue/memory"
	"github.com/JakeFAU/judge-sync/internal/worker"
)

// Queue is the FIFO the dispatcher drains.
type Queue interface {
	Enqueue(task domain.Task) error
	Dequeue(ctx context.Context) (domain.Task, error)
	Len() int
}

// Pool executes tasks.
type Pool interface {
	TrySubmit(ctx context.Context, task domain.Task) bool
	Close(ctx context.Context) error
}

// Dispatcher owns the single dequeue loop.
type Dispatcher struct {
	queue        Queue
	pool         Pool
	logger       *zap.Logger
	drainTimeout time.Duration
}

// New creates a Dispatcher.
func New(queue Queue, pool Pool, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{queue: queue, pool: pool, logger: logger.Named("dispatcher"), drainTimeout: time.Minute}
}

// Enqueue adds a task. Tasks may enqueue follow-up tasks on the same queue.
func (d *Dispatcher) Enqueue(task domain.Task) error {
	if err := d.queue.Enqueue(task); err != nil {
		return fmt.Errorf("queue enqueue: %w", err)
	}
	return nil
}

// Pending reports tasks waiting in the queue.
func (d *Dispatcher) Pending() int {
	return d.queue.Len()
}

// Run dequeues until ctx ends or the queue is closed, then waits for the
// pool to drain. Tasks run with a context that keeps ctx's values but is not
// canceled with it, so work already handed out finishes naturally.
func (d *Dispatcher) Run(ctx context.Context) error {
	taskCtx := context.WithoutCancel(ctx)
	for {
		task, err := d.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, memory.ErrClosed) {
				break
			}
			d.logger.Error("dequeue failed", zap.Error(err))
			continue
		}
		if d.pool.TrySubmit(taskCtx, task) {
			continue
		}
		metrics.ObserveInlineTask()
		d.logger.Debug("worker pool saturated, running task inline")
		if err := worker.Run(taskCtx, task); err != nil {
			d.logger.Error("inline task failed", zap.Error(err))
		}
	}

	d.logger.Info("dispatcher stopping, draining worker pool", zap.Int("pending", d.queue.Len()))
	drainCtx, cancel := context.WithTimeout(context.Background(), d.drainTimeout)
	defer cancel()
	if err := d.pool.Close(drainCtx); err != nil {
		return fmt.Errorf("drain worker pool: %w", err)
	}
	return nil
}
