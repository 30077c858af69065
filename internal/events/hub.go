package events

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/judge-sync/internal/metrics"
)

// Config tunes a Hub. Zero fields fall back to the defaults below.
type Config struct {
	BufferSize     int
	MaxBatchEvents int
	MaxBatchWait   time.Duration
	SinkTimeout    time.Duration
	Logger         *zap.Logger
}

const (
	defaultBufferSize     = 1024
	defaultMaxBatchEvents = 100
	defaultMaxBatchWait   = 250 * time.Millisecond
	defaultSinkTimeout    = 10 * time.Second
	dropWarnEvery         = 5 * time.Second
)

func (c Config) withDefaults() Config {
	if c.BufferSize <= 0 {
		c.BufferSize = defaultBufferSize
	}
	if c.MaxBatchEvents <= 0 {
		c.MaxBatchEvents = defaultMaxBatchEvents
	}
	if c.MaxBatchWait <= 0 {
		c.MaxBatchWait = defaultMaxBatchWait
	}
	if c.SinkTimeout <= 0 {
		c.SinkTimeout = defaultSinkTimeout
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

// Hub buffers events and hands them to its sinks in batches from a single
// goroutine. A batch goes out when it is full or MaxBatchWait after its
// first event, whichever comes first. Emit never blocks: when the buffer is
// full the event is counted and dropped.
type Hub struct {
	cfg    Config
	sinks  []Sink
	in     chan Event
	quit   chan context.Context
	done   chan struct{}
	logger *zap.Logger

	dropped   atomic.Int64
	lastWarn  atomic.Int64
	stopping  atomic.Bool
	closeOnce sync.Once
}

// NewHub starts a Hub delivering to the non-nil sinks.
func NewHub(cfg Config, sinks ...Sink) *Hub {
	cfg = cfg.withDefaults()
	h := &Hub{
		cfg:    cfg,
		in:     make(chan Event, cfg.BufferSize),
		quit:   make(chan context.Context, 1),
		done:   make(chan struct{}),
		logger: cfg.Logger.Named("events"),
	}
	for _, s := range sinks {
		if s != nil {
			h.sinks = append(h.sinks, s)
		}
	}
	go h.loop()
	return h
}

// Emit queues evt. Invalid events and events emitted after Close are
// ignored.
func (h *Hub) Emit(evt Event) {
	if h == nil || h.stopping.Load() {
		return
	}
	if err := evt.Validate(); err != nil {
		h.logger.Debug("ignoring malformed event", zap.Error(err))
		return
	}
	select {
	case h.in <- evt:
	default:
		h.drop()
	}
}

// Dropped reports how many events were lost to a full buffer.
func (h *Hub) Dropped() int64 { return h.dropped.Load() }

func (h *Hub) drop() {
	n := h.dropped.Add(1)
	metrics.ObserveDroppedEvent()
	now := time.Now().UnixNano()
	prev := h.lastWarn.Load()
	if now-prev < dropWarnEvery.Nanoseconds() || !h.lastWarn.CompareAndSwap(prev, now) {
		return
	}
	h.logger.Warn("event buffer full, dropping events", zap.Int64("dropped_total", n))
}

// Close stops intake, delivers everything still buffered and closes the
// sinks. It returns early with ctx's error if ctx ends first; delivery then
// continues in the background.
func (h *Hub) Close(ctx context.Context) error {
	if h == nil {
		return nil
	}
	h.closeOnce.Do(func() {
		h.stopping.Store(true)
		h.quit <- ctx
	})
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("close event hub: %w", ctx.Err())
	}
}

func (h *Hub) loop() {
	defer close(h.done)

	pending := make([]Event, 0, h.cfg.MaxBatchEvents)
	timer := time.NewTimer(h.cfg.MaxBatchWait)
	timer.Stop()
	armed := false

	send := func() {
		if armed {
			timer.Stop()
			armed = false
		}
		h.deliver(pending)
		pending = pending[:0]
	}

	for {
		select {
		case evt := <-h.in:
			pending = append(pending, evt)
			if len(pending) >= h.cfg.MaxBatchEvents {
				send()
			} else if !armed {
				timer.Reset(h.cfg.MaxBatchWait)
				armed = true
			}
		case <-timer.C:
			armed = false
			h.deliver(pending)
			pending = pending[:0]
		case ctx := <-h.quit:
			for n := len(h.in); n > 0; n-- {
				pending = append(pending, <-h.in)
			}
			send()
			h.shutdownSinks(ctx)
			return
		}
	}
}

func (h *Hub) deliver(batch []Event) {
	if len(batch) == 0 {
		return
	}
	snapshot := make([]Event, len(batch))
	copy(snapshot, batch)
	for _, sink := range h.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), h.cfg.SinkTimeout)
		err := sink.Consume(ctx, snapshot)
		cancel()
		if err != nil {
			h.logger.Warn("sink rejected batch", zap.Int("events", len(snapshot)), zap.Error(err))
		}
	}
}

func (h *Hub) shutdownSinks(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	for _, sink := range h.sinks {
		if err := sink.Close(ctx); err != nil {
			h.logger.Warn("sink close failed", zap.Error(err))
		}
	}
}
