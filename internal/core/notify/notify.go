// Package notify decouples rank-change detection from transport. Delivery is
// best-effort and asynchronous: a slow or unavailable sink never makes a
// submission fail, and a full buffer drops the event rather than block.
package notify

import (
	"context"
	"sync"

	"github.com/podium-gg/podium/internal/domain/model"
	"github.com/podium-gg/podium/pkg/logger"
	"github.com/podium-gg/podium/pkg/metrics"
)

// Default notifier configuration constants.
const (
	defaultBufferSize = 4096
)

// Sink receives rank-change events. Implemented by transport layers
// (websocket hub, redis pub/sub); a no-op sink is valid.
type Sink interface {
	Notify(ctx context.Context, ev model.RankChangeEvent) error
}

// NopSink discards events. Tests use this.
type NopSink struct{}

// Notify implements Sink.
func (NopSink) Notify(ctx context.Context, _ model.RankChangeEvent) error { return nil }

// Notifier fans rank-change events out to its sinks from a single
// forwarding goroutine fed by a bounded channel.
type Notifier struct {
	sinks  []Sink
	events chan model.RankChangeEvent
	log    logger.Logger

	mu      sync.RWMutex
	started bool
	closed  bool

	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
}

// Option applies a configuration option to the Notifier.
type Option func(*Notifier)

// WithBufferSize bounds the in-flight event buffer.
func WithBufferSize(size int) Option {
	return func(n *Notifier) {
		if size > 0 {
			n.events = make(chan model.RankChangeEvent, size)
		}
	}
}

// WithLogger sets a custom logger for the notifier.
func WithLogger(log logger.Logger) Option {
	return func(n *Notifier) {
		if log != nil {
			n.log = log
		}
	}
}

// New constructs a notifier over the given sinks.
func New(sinks []Sink, opts ...Option) *Notifier {
	n := &Notifier{
		sinks:  sinks,
		events: make(chan model.RankChangeEvent, defaultBufferSize),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.log == nil {
		n.log = logger.Get().Named("notify")
	}
	return n
}

// Start launches the forwarding goroutine until ctx is canceled or Close is
// called.
func (n *Notifier) Start(ctx context.Context) {
	n.startOnce.Do(func() {
		n.mu.Lock()
		n.started = true
		n.mu.Unlock()
		go n.run(ctx)
	})
}

func (n *Notifier) run(ctx context.Context) {
	defer close(n.done)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-n.events:
			if !ok {
				return
			}
			n.deliver(ctx, ev)
		}
	}
}

func (n *Notifier) deliver(ctx context.Context, ev model.RankChangeEvent) {
	for _, s := range n.sinks {
		if err := s.Notify(ctx, ev); err != nil {
			// Delivery is best-effort: the score is already committed.
			metrics.RecordNotifyError()
			n.log.Warn(ctx, "sink delivery failed",
				logger.String("board", ev.BoardKey),
				logger.Error(err),
			)
		}
	}
	metrics.RecordNotifyDelivered()
}

// Publish enqueues an event without blocking. Returns false when the
// notifier is closed or the buffer is full and the event was dropped.
func (n *Notifier) Publish(ev model.RankChangeEvent) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if n.closed {
		metrics.RecordNotifyDropped()
		return false
	}
	select {
	case n.events <- ev:
		metrics.UpdateNotifyDepth(len(n.events))
		return true
	default:
		metrics.RecordNotifyDropped()
		return false
	}
}

// Close stops intake and waits for the forwarding goroutine to drain.
// Safe on a never-started notifier.
func (n *Notifier) Close() {
	n.stopOnce.Do(func() {
		n.mu.Lock()
		n.closed = true
		started := n.started
		close(n.events)
		n.mu.Unlock()

		if started {
			<-n.done
		}
	})
}
