package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/efebarandurmaz/vendortwin/internal/config"
	"github.com/efebarandurmaz/vendortwin/internal/depgraph"
	"github.com/efebarandurmaz/vendortwin/internal/events"
	"github.com/efebarandurmaz/vendortwin/internal/graph/memgraph"
	"github.com/efebarandurmaz/vendortwin/internal/server"
)

func memoryConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("expected defaults to load, got %v", err)
	}
	cfg.Graph.Backend = "memory"
	cfg.Events.Backend = "none"
	cfg.Data.Compliance = ""
	return cfg
}

func TestNew_MemoryBackend(t *testing.T) {
	ctx := context.Background()
	cfg := memoryConfig(t)
	path := filepath.Join(t.TempDir(), "compliance.json")
	if err := os.WriteFile(path, []byte(`{"control_mappings": {"Stripe": {"soc2_controls": ["CC6.1"]}}, "impact_weights": {"soc2": {"CC6.1": 0.15}}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg.Data.Compliance = path

	a, err := New(ctx, cfg, Options{Version: "test"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	defer a.Close(ctx)

	if _, ok := a.Store.(*memgraph.Store); !ok {
		t.Errorf("expected memgraph store, got %T", a.Store)
	}
	if _, ok := a.Publisher.(events.Nop); !ok {
		t.Errorf("expected Nop publisher, got %T", a.Publisher)
	}
	if a.Results != nil {
		t.Error("expected no result cache without redis.enabled")
	}
	if got := a.Compliance.VendorCount(); got != 1 {
		t.Errorf("expected 1 compliance vendor, got %d", got)
	}

	doc := &depgraph.DependencyDocument{Vendors: []depgraph.VendorEntry{{
		Name:     "Stripe",
		Services: []depgraph.ServiceEntry{{ResourceIdentity: "svc/checkout", BusinessProcesses: []string{"checkout"}}},
	}}}
	if _, err := a.Loader("test").Load(ctx, doc); err != nil {
		t.Fatalf("expected load to succeed, got %v", err)
	}
	res, err := a.Simulator.Simulate(ctx, "stripe", 1)
	if err != nil {
		t.Fatalf("expected simulation to succeed, got %v", err)
	}
	if res.OperationalImpact.ServiceCount != 1 {
		t.Errorf("expected 1 affected service, got %d", res.OperationalImpact.ServiceCount)
	}
	if len(res.ComplianceImpact.Frameworks()) != 1 {
		t.Errorf("expected soc2 compliance impact, got %v", res.ComplianceImpact.Frameworks())
	}

	health := a.Health("test").Check(ctx)
	if health.Status != server.HealthStatusHealthy {
		t.Errorf("expected healthy, got %s", health.Status)
	}
}

func TestNew_MissingComplianceDegrades(t *testing.T) {
	ctx := context.Background()
	cfg := memoryConfig(t)
	cfg.Data.Compliance = filepath.Join(t.TempDir(), "missing.json")

	a, err := New(ctx, cfg, Options{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	defer a.Close(ctx)

	if a.Compliance.VendorCount() != 0 {
		t.Errorf("expected empty dataset, got %d vendors", a.Compliance.VendorCount())
	}
	if got := a.Health("").Check(ctx).Status; got != server.HealthStatusDegraded {
		t.Errorf("expected degraded, got %s", got)
	}
}

func TestNew_UnknownBackends(t *testing.T) {
	ctx := context.Background()

	cfg := memoryConfig(t)
	cfg.Graph.Backend = "sqlite"
	if _, err := New(ctx, cfg, Options{}); err == nil {
		t.Error("expected error for unknown graph backend")
	}

	cfg = memoryConfig(t)
	cfg.Events.Backend = "kafka"
	if _, err := New(ctx, cfg, Options{}); err == nil {
		t.Error("expected error for unknown events backend")
	}
}

func TestClose_RunsHooksInPriorityOrder(t *testing.T) {
	a := &App{}
	var order []string
	hook := func(name string, priority int, err error) server.ShutdownHook {
		return server.ShutdownHook{Name: name, Priority: priority, Fn: func(context.Context) error {
			order = append(order, name)
			return err
		}}
	}
	a.AddHook(hook("graph", 90, nil))
	a.AddHook(hook("events", 50, errors.New("broker gone")))
	a.AddHook(hook("http", 10, nil))

	err := a.Close(context.Background())
	if err == nil || err.Error() != "events: broker gone" {
		t.Errorf("expected joined hook error, got %v", err)
	}
	want := []string{"http", "events", "graph"}
	for i := range want {
		if i >= len(order) || order[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, order)
		}
	}
}

func TestNew_FeedReceivesSimulations(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, memoryConfig(t), Options{Feed: true})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	defer a.Close(ctx)

	if a.Feed == nil {
		t.Fatal("expected a dashboard feed")
	}
	if _, err := a.Simulator.Simulate(ctx, "Stripe", 2); err != nil {
		t.Fatalf("expected simulation to succeed, got %v", err)
	}
	entries := a.Feed.Store.List(0)
	if len(entries) != 1 {
		t.Fatalf("expected 1 feed entry, got %d", len(entries))
	}
	if entries[0].IdentityKey != "stripe" {
		t.Errorf("expected identity key stripe, got %s", entries[0].IdentityKey)
	}
}
