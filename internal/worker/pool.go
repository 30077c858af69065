// Package worker implements the bounded worker pool the dispatcher hands
// tasks to.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/judge-sync/internal/domain"
	"github.com/JakeFAU/judge-sync/internal/metrics"
)

// Config sizes the pool.
type Config struct {
	// MinWorkers stay alive while idle. At least one is always kept.
	MinWorkers int `mapstructure:"min_workers"`
	// MaxWorkers caps concurrency.
	MaxWorkers int `mapstructure:"max_workers"`
	// IdleTimeout retires workers above MinWorkers after this much idleness.
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
	// QueueDepth is the pool's internal buffer. Zero means direct hand-off:
	// a submit succeeds only when a worker is free or can be started.
	QueueDepth int `mapstructure:"pool_queue_depth"`
}

// Pool runs tasks on up to MaxWorkers goroutines.
type Pool struct {
	cfg    Config
	tasks  chan func()
	logger *zap.Logger

	mu      sync.Mutex
	workers int
	closed  bool
	wg      sync.WaitGroup
}

// New starts MinWorkers workers.
func New(cfg Config, logger *zap.Logger) *Pool {
	if cfg.MinWorkers < 1 {
		cfg.MinWorkers = 1
	}
	if cfg.MaxWorkers < cfg.MinWorkers {
		cfg.MaxWorkers = cfg.MinWorkers
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 10 * time.Second
	}
	if cfg.QueueDepth < 0 {
		cfg.QueueDepth = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pool{
		cfg:    cfg,
		tasks:  make(chan func(), cfg.QueueDepth),
		logger: logger.Named("worker"),
	}
	p.mu.Lock()
	for range cfg.MinWorkers {
		p.spawnLocked(nil)
	}
	p.mu.Unlock()
	return p
}

// TrySubmit hands task to an idle worker, the internal buffer, or a new
// worker while below MaxWorkers. It returns false when the pool is saturated
// or closed; the caller then decides what to do with the task.
func (p *Pool) TrySubmit(ctx context.Context, task domain.Task) bool {
	run := func() { p.execute(ctx, task) }

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	select {
	case p.tasks <- run:
		return true
	default:
	}
	if p.workers < p.cfg.MaxWorkers {
		p.spawnLocked(run)
		return true
	}
	return false
}

// Workers reports the number of live workers.
func (p *Pool) Workers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.workers
}

// Close stops accepting tasks and waits for queued and running tasks to
// finish, or for ctx.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.tasks)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("worker pool drain: %w", ctx.Err())
	}
}

func (p *Pool) spawnLocked(first func()) {
	p.workers++
	p.wg.Add(1)
	go p.loop(first)
}

func (p *Pool) loop(first func()) {
	defer p.wg.Done()
	if first != nil {
		first()
	}
	idle := time.NewTimer(p.cfg.IdleTimeout)
	defer idle.Stop()
	for {
		select {
		case run, ok := <-p.tasks:
			if !ok {
				p.retire()
				return
			}
			run()
		case <-idle.C:
			if p.retireIfSurplus() {
				return
			}
		}
		idle.Reset(p.cfg.IdleTimeout)
	}
}

func (p *Pool) retire() {
	p.mu.Lock()
	p.workers--
	p.mu.Unlock()
}

func (p *Pool) retireIfSurplus() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.workers <= p.cfg.MinWorkers || p.closed {
		return false
	}
	p.workers--
	return true
}

func (p *Pool) execute(ctx context.Context, task domain.Task) {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()
	if err := Run(ctx, task); err != nil {
		p.logger.Error("task failed", zap.Error(err))
	}
}

// ErrPanic is wrapped by Run when a task panics.
var ErrPanic = errors.New("task panicked")

// Run executes task and converts a panic into an error so a failing task can
// never take down the goroutine that runs it.
func Run(ctx context.Context, task domain.Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			metrics.ObserveRecoveredPanic()
			err = fmt.Errorf("%w: %v\n%s", ErrPanic, r, debug.Stack())
		}
	}()
	task(ctx)
	return nil
}
