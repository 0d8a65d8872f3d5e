package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"
)

// Hook priorities. Producers stop before the sinks they write to, and the
// audit trail closes last so it records everything before it.
const (
	PriorityHTTP       = 10
	PriorityWorker     = 20
	PriorityEvents     = 50
	PriorityCache      = 60
	PriorityTracing    = 80
	PriorityGraph      = 90
	PriorityAuditTrail = 95
)

// ShutdownHook is one step of teardown. Lower priorities run first.
type ShutdownHook struct {
	Name     string
	Priority int
	Fn       func(ctx context.Context) error
}

// ShutdownConfig configures a ShutdownHandler. Zero values take defaults:
// a 30s budget for all hooks together, and SIGTERM plus SIGINT.
type ShutdownConfig struct {
	Timeout time.Duration
	Signals []os.Signal
	Logger  *slog.Logger
}

// ShutdownHandler tears the process down once, either on a signal or on an
// explicit Shutdown call.
type ShutdownHandler struct {
	timeout time.Duration
	signals []os.Signal
	logger  *slog.Logger

	mu      sync.Mutex
	hooks   []ShutdownHook
	started bool
	cancel  context.CancelFunc
	err     error
	done    chan struct{}
}

// NewShutdownHandler creates a handler. A nil config takes every default.
func NewShutdownHandler(cfg *ShutdownConfig) *ShutdownHandler {
	var c ShutdownConfig
	if cfg != nil {
		c = *cfg
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if len(c.Signals) == 0 {
		c.Signals = []os.Signal{syscall.SIGTERM, syscall.SIGINT}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return &ShutdownHandler{
		timeout: c.Timeout,
		signals: c.Signals,
		logger:  c.Logger,
		done:    make(chan struct{}),
	}
}

// RegisterHook adds fn under name.
func (s *ShutdownHandler) RegisterHook(name string, priority int, fn func(ctx context.Context) error) {
	s.Add(ShutdownHook{Name: name, Priority: priority, Fn: fn})
}

// Add registers a hook. Equal priorities run in registration order.
func (s *ShutdownHandler) Add(hook ShutdownHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, hook)
	sort.SliceStable(s.hooks, func(i, j int) bool { return s.hooks[i].Priority < s.hooks[j].Priority })
}

// Start listens for the configured signals. Calling it twice is a no-op.
func (s *ShutdownHandler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true

	ctx, stop := signal.NotifyContext(context.Background(), s.signals...)
	s.cancel = stop
	go func() {
		<-ctx.Done()
		stop()
		s.logger.Info("shutting down", "hooks", s.hookCount(), "timeout", s.timeout)
		s.run()
	}()
}

// Shutdown starts teardown without a signal. Before Start it does nothing.
func (s *ShutdownHandler) Shutdown() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Wait blocks until every hook has run.
func (s *ShutdownHandler) Wait() { <-s.done }

// WaitWithTimeout reports whether teardown finished within timeout.
func (s *ShutdownHandler) WaitWithTimeout(timeout time.Duration) bool {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-s.done:
		return true
	case <-t.C:
		return false
	}
}

// Done closes when teardown has finished.
func (s *ShutdownHandler) Done() <-chan struct{} { return s.done }

// Err returns the joined hook failures once Done has closed.
func (s *ShutdownHandler) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *ShutdownHandler) hookCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.hooks)
}

func (s *ShutdownHandler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	s.mu.Lock()
	hooks := append([]ShutdownHook(nil), s.hooks...)
	s.mu.Unlock()

	var errs []error
	for _, h := range hooks {
		start := time.Now()
		if err := h.Fn(ctx); err != nil {
			s.logger.Error("shutdown hook failed", "hook", h.Name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", h.Name, err))
			continue
		}
		s.logger.Debug("shutdown hook done", "hook", h.Name, "took", time.Since(start))
	}

	s.mu.Lock()
	s.err = errors.Join(errs...)
	s.mu.Unlock()
	close(s.done)
}

func closer(name string, priority int, fn func() error) ShutdownHook {
	return ShutdownHook{Name: name, Priority: priority, Fn: func(context.Context) error { return fn() }}
}

// HTTPServerShutdownHook stops an HTTP listener.
func HTTPServerShutdownHook(name string, fn func(ctx context.Context) error) ShutdownHook {
	return ShutdownHook{Name: name, Priority: PriorityHTTP, Fn: fn}
}

// TemporalWorkerShutdownHook stops polling the task queue.
func TemporalWorkerShutdownHook(stop func()) ShutdownHook {
	return closer("temporal-worker", PriorityWorker, func() error { stop(); return nil })
}

// EventsShutdownHook drains the event publisher.
func EventsShutdownHook(fn func() error) ShutdownHook {
	return closer("events", PriorityEvents, fn)
}

// CacheShutdownHook closes the result cache, which the publisher feeds.
func CacheShutdownHook(fn func() error) ShutdownHook {
	return closer("result-cache", PriorityCache, fn)
}

// TracingShutdownHook flushes pending spans.
func TracingShutdownHook(fn func(ctx context.Context) error) ShutdownHook {
	return ShutdownHook{Name: "tracing", Priority: PriorityTracing, Fn: fn}
}

// GraphShutdownHook closes the graph store.
func GraphShutdownHook(fn func(ctx context.Context) error) ShutdownHook {
	return ShutdownHook{Name: "graph", Priority: PriorityGraph, Fn: fn}
}

// AuditLoggerShutdownHook closes the audit trail.
func AuditLoggerShutdownHook(fn func() error) ShutdownHook {
	return closer("audit-logger", PriorityAuditTrail, fn)
}
