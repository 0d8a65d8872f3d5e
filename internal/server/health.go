// Package server exposes the simulation engine over HTTP with health checks
// and graceful shutdown.
package server

import (
	"context"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
)

type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// worse reports whether a outranks b. Unhealthy beats degraded beats
// healthy.
func worse(a, b HealthStatus) bool {
	rank := map[HealthStatus]int{HealthStatusHealthy: 0, HealthStatusDegraded: 1, HealthStatusUnhealthy: 2}
	return rank[a] > rank[b]
}

// HealthCheck is the outcome of one dependency probe.
type HealthCheck struct {
	Name      string            `json:"name"`
	Status    HealthStatus      `json:"status"`
	Message   string            `json:"message,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
	LatencyMS int64             `json:"latency_ms"`
}

// HealthResponse is the body of every probe endpoint.
type HealthResponse struct {
	Status    HealthStatus  `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	Version   string        `json:"version,omitempty"`
	Checks    []HealthCheck `json:"checks,omitempty"`
}

type HealthChecker func(ctx context.Context) HealthCheck

// HealthServer aggregates dependency checks and holds the readiness and
// liveness flags the orchestrator polls.
type HealthServer struct {
	version string
	ready   atomic.Bool
	live    atomic.Bool

	mu     sync.RWMutex
	checks map[string]HealthChecker
}

// NewHealthServer starts live and not ready.
func NewHealthServer(version string) *HealthServer {
	s := &HealthServer{version: version, checks: make(map[string]HealthChecker)}
	s.live.Store(true)
	return s
}

// RegisterCheck adds or replaces the check called name.
func (s *HealthServer) RegisterCheck(name string, checker HealthChecker) {
	s.mu.Lock()
	s.checks[name] = checker
	s.mu.Unlock()
}

func (s *HealthServer) SetReady(ready bool) { s.ready.Store(ready) }
func (s *HealthServer) SetLive(live bool)   { s.live.Store(live) }

// Register mounts the probes, with the Kubernetes style aliases.
func (s *HealthServer) Register(r gin.IRoutes) {
	for _, path := range []string{"/health", "/healthz"} {
		r.GET(path, s.handleHealth)
	}
	for _, path := range []string{"/ready", "/readyz"} {
		r.GET(path, flagHandler(&s.ready))
	}
	for _, path := range []string{"/live", "/livez"} {
		r.GET(path, flagHandler(&s.live))
	}
}

// Check runs every registered check concurrently and reports them in name
// order. The overall status is the worst individual one.
func (s *HealthServer) Check(ctx context.Context) HealthResponse {
	s.mu.RLock()
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	checkers := make([]HealthChecker, len(names))
	sort.Strings(names)
	for i, name := range names {
		checkers[i] = s.checks[name]
	}
	s.mu.RUnlock()

	results := make([]HealthCheck, len(names))
	var wg sync.WaitGroup
	for i := range checkers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			start := time.Now()
			check := checkers[i](ctx)
			check.Name = names[i]
			check.LatencyMS = time.Since(start).Milliseconds()
			results[i] = check
		}(i)
	}
	wg.Wait()

	response := HealthResponse{
		Status:    HealthStatusHealthy,
		Timestamp: time.Now().UTC(),
		Version:   s.version,
		Checks:    results,
	}
	for _, check := range results {
		if worse(check.Status, response.Status) {
			response.Status = check.Status
		}
	}
	return response
}

func (s *HealthServer) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	response := s.Check(ctx)
	code := http.StatusOK
	if response.Status == HealthStatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, response)
}

func flagHandler(flag *atomic.Bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		response := HealthResponse{Status: HealthStatusHealthy, Timestamp: time.Now().UTC()}
		code := http.StatusOK
		if !flag.Load() {
			response.Status = HealthStatusUnhealthy
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, response)
	}
}

// pingChecker turns a ping into a check that fails with the given status.
func pingChecker(subject string, onFailure HealthStatus, ping func(ctx context.Context) error) HealthChecker {
	return func(ctx context.Context) HealthCheck {
		if err := ping(ctx); err != nil {
			return HealthCheck{Status: onFailure, Message: subject + " unreachable: " + err.Error()}
		}
		return HealthCheck{Status: HealthStatusHealthy, Message: subject + " OK"}
	}
}

// GraphHealthChecker probes the graph store. Simulations cannot run
// without it.
func GraphHealthChecker(ping func(ctx context.Context) error) HealthChecker {
	return pingChecker("graph store", HealthStatusUnhealthy, ping)
}

// CacheHealthChecker probes the result cache. Simulations still run
// without it.
func CacheHealthChecker(ping func(ctx context.Context) error) HealthChecker {
	return pingChecker("result cache", HealthStatusDegraded, ping)
}

// ComplianceHealthChecker degrades when no vendor has compliance mappings.
func ComplianceHealthChecker(vendorCount func() int) HealthChecker {
	return func(context.Context) HealthCheck {
		n := vendorCount()
		check := HealthCheck{
			Status:  HealthStatusHealthy,
			Message: "compliance dataset loaded",
			Details: map[string]string{"vendors": strconv.Itoa(n)},
		}
		if n == 0 {
			check.Status = HealthStatusDegraded
			check.Message = "compliance dataset is empty"
		}
		return check
	}
}
