package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func healthRouter(s *HealthServer) *gin.Engine {
	r := gin.New()
	s.Register(r)
	return r
}

func get(t *testing.T, h http.Handler, path string) (*httptest.ResponseRecorder, HealthResponse) {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	var resp HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	return w, resp
}

func TestHealthServer_HandleHealth(t *testing.T) {
	s := NewHealthServer("1.0.0")
	s.RegisterCheck("graph", GraphHealthChecker(func(context.Context) error { return nil }))

	w, resp := get(t, healthRouter(s), "/health")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if resp.Status != HealthStatusHealthy {
		t.Fatalf("expected healthy, got %s", resp.Status)
	}
	if resp.Version != "1.0.0" {
		t.Fatalf("expected version 1.0.0, got %s", resp.Version)
	}
	if len(resp.Checks) != 1 || resp.Checks[0].Name != "graph" {
		t.Fatalf("expected graph check, got %+v", resp.Checks)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Fatalf("expected JSON content type, got %s", ct)
	}
}

func TestHealthServer_HandleHealth_Unhealthy(t *testing.T) {
	s := NewHealthServer("")
	s.RegisterCheck("cache", CacheHealthChecker(func(context.Context) error { return errors.New("timeout") }))
	s.RegisterCheck("graph", GraphHealthChecker(func(context.Context) error { return errors.New("refused") }))

	w, resp := get(t, healthRouter(s), "/health")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	if resp.Status != HealthStatusUnhealthy {
		t.Fatalf("expected unhealthy, got %s", resp.Status)
	}
	if resp.Checks[0].Name != "cache" || resp.Checks[1].Name != "graph" {
		t.Fatalf("expected checks in name order, got %+v", resp.Checks)
	}
}

func TestHealthServer_HandleHealth_Degraded(t *testing.T) {
	s := NewHealthServer("")
	s.RegisterCheck("graph", GraphHealthChecker(func(context.Context) error { return nil }))
	s.RegisterCheck("cache", CacheHealthChecker(func(context.Context) error { return errors.New("timeout") }))

	w, resp := get(t, healthRouter(s), "/healthz")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for degraded, got %d", w.Code)
	}
	if resp.Status != HealthStatusDegraded {
		t.Fatalf("expected degraded, got %s", resp.Status)
	}
}

func TestHealthServer_ReadyAndLive(t *testing.T) {
	s := NewHealthServer("")
	r := healthRouter(s)

	if w, _ := get(t, r, "/ready"); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected not ready initially, got %d", w.Code)
	}
	s.SetReady(true)
	if w, _ := get(t, r, "/readyz"); w.Code != http.StatusOK {
		t.Fatalf("expected ready, got %d", w.Code)
	}

	if w, _ := get(t, r, "/live"); w.Code != http.StatusOK {
		t.Fatalf("expected live initially, got %d", w.Code)
	}
	s.SetLive(false)
	if w, resp := get(t, r, "/livez"); w.Code != http.StatusServiceUnavailable || resp.Status != HealthStatusUnhealthy {
		t.Fatalf("expected not live, got %d %s", w.Code, resp.Status)
	}
}

func TestComplianceHealthChecker(t *testing.T) {
	empty := ComplianceHealthChecker(func() int { return 0 })(context.Background())
	if empty.Status != HealthStatusDegraded {
		t.Fatalf("expected degraded for empty dataset, got %s", empty.Status)
	}
	loaded := ComplianceHealthChecker(func() int { return 8 })(context.Background())
	if loaded.Status != HealthStatusHealthy || loaded.Details["vendors"] != "8" {
		t.Fatalf("expected healthy with 8 vendors, got %+v", loaded)
	}
}
