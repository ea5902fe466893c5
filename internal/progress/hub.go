package progress

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Config controls buffering and batching for the Hub.
//   - BufferSize: size of the internal channel (default 1024).
//   - MaxBatchEvents: flush once this many events queue (default 100).
//   - MaxBatchWait: flush after this duration even if the batch is small (default 250ms).
//   - SinkTimeout: per-sink timeout while flushing (default 10s).
//   - BaseContext: parent context passed to sink calls (defaults to context.Background()).
//   - Logger: optional structured logger used for warnings.
type Config struct {
	BufferSize     int
	MaxBatchEvents int
	MaxBatchWait   time.Duration
	SinkTimeout    time.Duration
	BaseContext    context.Context
	Logger         *zap.Logger
}

const (
	defaultBufferSize     = 1024
	defaultMaxBatchEvents = 100
	defaultMaxBatchWait   = 250 * time.Millisecond
	defaultSinkTimeout    = 10 * time.Second
	dropLogInterval       = 5 * time.Second
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
	if c.BaseContext == nil {
		c.BaseContext = context.Background()
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

// Hub aggregates Event streams and fans them out to registered sinks. It is
// safe for concurrent use by multiple goroutines and never blocks callers.
type Hub struct {
	cfg     Config
	sinks   []Sink
	events  chan Event
	stopCh  chan struct{}
	doneCh  chan struct{}
	logger  *zap.Logger
	lastLog atomic.Int64
	dropped atomic.Int64
	total   atomic.Int64
	closed  atomic.Bool

	closeOnce sync.Once
	closeCtx  context.Context
}

// NewHub initializes a Hub and starts the background batching goroutine.
func NewHub(cfg Config, sinks ...Sink) *Hub {
	cfg = cfg.withDefaults()
	h := &Hub{
		cfg:    cfg,
		sinks:  append([]Sink(nil), sinks...),
		events: make(chan Event, cfg.BufferSize),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
		logger: cfg.Logger.Named("progress"),
	}
	go h.run()
	return h
}

// Emit enqueues an Event for batching. It never blocks; if the buffer is full
// the event is dropped and a rate-limited warning is logged.
func (h *Hub) Emit(evt Event) {
	if h == nil || h.closed.Load() {
		return
	}
	if err := evt.Validate(); err != nil {
		h.logger.Debug("discarding invalid progress event", zap.Error(err))
		return
	}
	select {
	case h.events <- evt:
	default:
		h.dropped.Add(1)
		h.total.Add(1)
		h.warnDropped(time.Now())
	}
}

// Dropped reports the number of events discarded due to backpressure since
// the hub started.
func (h *Hub) Dropped() int64 {
	return h.total.Load()
}

func (h *Hub) warnDropped(now time.Time) {
	last := h.lastLog.Load()
	if now.UnixNano()-last < dropLogInterval.Nanoseconds() {
		return
	}
	if !h.lastLog.CompareAndSwap(last, now.UnixNano()) {
		return
	}
	h.logger.Warn("progress events dropped due to backpressure", zap.Int64("dropped", h.dropped.Swap(0)))
}

// Close drains remaining events, flushes and closes sinks, and blocks until
// the background goroutine exits or ctx ends. Repeated calls are safe.
func (h *Hub) Close(ctx context.Context) error {
	if h == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	h.closeOnce.Do(func() {
		h.closed.Store(true)
		h.closeCtx = ctx
		close(h.stopCh)
	})
	select {
	case <-h.doneCh:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("progress hub close wait: %w", ctx.Err())
	}
}

func (h *Hub) run() {
	defer close(h.doneCh)
	b := &batcher{max: h.cfg.MaxBatchEvents, wait: h.cfg.MaxBatchWait}
	defer b.stop()
	for {
		select {
		case evt := <-h.events:
			if full := b.add(evt); full {
				h.flush(b.take())
			}
		case <-b.timerC():
			h.flush(b.take())
		case <-h.stopCh:
			h.drain(b)
			h.closeSinks()
			return
		}
	}
}

func (h *Hub) drain(b *batcher) {
	for {
		select {
		case evt := <-h.events:
			if full := b.add(evt); full {
				h.flush(b.take())
			}
		default:
			h.flush(b.take())
			return
		}
	}
}

func (h *Hub) flush(batch []Event) {
	if len(batch) == 0 {
		return
	}
	for _, sink := range h.sinks {
		if sink == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(h.cfg.BaseContext, h.cfg.SinkTimeout)
		if err := sink.Consume(ctx, batch); err != nil {
			h.logger.Warn("progress sink consume failed", zap.Error(err), zap.Int("events", len(batch)))
		}
		cancel()
	}
}

func (h *Hub) closeSinks() {
	ctx := h.closeCtx
	if ctx == nil {
		ctx = context.Background()
	}
	for _, sink := range h.sinks {
		if sink == nil {
			continue
		}
		if err := sink.Close(ctx); err != nil {
			h.logger.Warn("progress sink close failed", zap.Error(err))
		}
	}
}

// batcher accumulates events and owns the flush timer. It is only touched by
// the hub's run goroutine.
type batcher struct {
	max     int
	wait    time.Duration
	pending []Event
	timer   *time.Timer
}

// add appends evt, arming the timer on the first event of a batch. It reports
// whether the batch reached its size limit.
func (b *batcher) add(evt Event) bool {
	b.pending = append(b.pending, evt)
	if len(b.pending) == 1 {
		if b.timer == nil {
			b.timer = time.NewTimer(b.wait)
		} else {
			b.timer.Reset(b.wait)
		}
	}
	return len(b.pending) >= b.max
}

// take returns the pending batch and disarms the timer.
func (b *batcher) take() []Event {
	b.stop()
	out := b.pending
	b.pending = nil
	return out
}

func (b *batcher) stop() {
	if b.timer != nil {
		b.timer.Stop()
	}
}

// timerC returns nil while no batch is pending so the select ignores it.
func (b *batcher) timerC() <-chan time.Time {
	if b.timer == nil || len(b.pending) == 0 {
		return nil
	}
	return b.timer.C
}
