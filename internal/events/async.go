package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/efebarandurmaz/vendortwin/internal/observability"
)

// AsyncOptions configures an Async publisher.
type AsyncOptions struct {
	Buffer  int
	Timeout time.Duration
	Logger  *slog.Logger
	Metrics *observability.Metrics
}

// Async decouples callers from a slow or failing transport. Publish never
// blocks and never fails: a full buffer drops the event, delivery errors are
// logged.
type Async struct {
	next    Publisher
	timeout time.Duration
	logger  *slog.Logger
	metrics *observability.Metrics

	mu     sync.RWMutex
	closed bool
	queue  chan Event
	done   chan struct{}
}

// NewAsync starts the delivery goroutine.
func NewAsync(next Publisher, opts AsyncOptions) *Async {
	if opts.Buffer <= 0 {
		opts.Buffer = 64
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	a := &Async{
		next:    next,
		timeout: opts.Timeout,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		queue:   make(chan Event, opts.Buffer),
		done:    make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *Async) Publish(_ context.Context, e Event) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		a.drop(e, "publisher closed")
		return nil
	}
	select {
	case a.queue <- e:
	default:
		a.drop(e, "buffer full")
	}
	return nil
}

func (a *Async) drop(e Event, reason string) {
	a.logger.Warn("event dropped", "id", e.ID, "type", e.Type, "reason", reason)
	a.metrics.RecordEvent(string(e.Type), "dropped")
}

func (a *Async) run() {
	defer close(a.done)
	for e := range a.queue {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		err := a.next.Publish(ctx, e)
		cancel()
		if err != nil {
			a.logger.Error("event delivery failed", "id", e.ID, "type", e.Type, "error", err)
			a.metrics.RecordEvent(string(e.Type), "failed")
			continue
		}
		a.metrics.RecordEvent(string(e.Type), "published")
	}
}

// Close drains queued events and closes the wrapped publisher.
func (a *Async) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	close(a.queue)
	a.mu.Unlock()

	<-a.done
	return a.next.Close()
}
