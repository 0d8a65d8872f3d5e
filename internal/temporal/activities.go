package temporal

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"go.temporal.io/sdk/temporal"

	"github.com/efebarandurmaz/vendortwin/internal/compliance"
	"github.com/efebarandurmaz/vendortwin/internal/depgraph"
	"github.com/efebarandurmaz/vendortwin/internal/events"
	"github.com/efebarandurmaz/vendortwin/internal/graph"
	"github.com/efebarandurmaz/vendortwin/internal/loader"
	"github.com/efebarandurmaz/vendortwin/internal/maintenance"
	"github.com/efebarandurmaz/vendortwin/internal/observability"
	"github.com/efebarandurmaz/vendortwin/internal/simulation"
	"github.com/efebarandurmaz/vendortwin/internal/source"
)

// Dependencies holds shared resources injected into activities.
type Dependencies struct {
	Store     graph.Store
	Simulator *simulation.Engine
	// Compliance, when set, is reloaded after a compliance load so
	// simulations on this worker see the new dataset.
	Compliance *compliance.Resolver
	Source     source.Options
	Catalog    loader.Catalog
	Logger     *slog.Logger
	Publisher  events.Publisher
	Metrics    *observability.Metrics
	Audit      *observability.AuditLogger
	// WriteLock serializes loads and maintenance within the worker.
	WriteLock *sync.Mutex
}

// Activities implements every activity. Register the pointer with the
// worker; workflows reference methods through a nil *Activities.
type Activities struct {
	deps Dependencies
}

// NewActivities creates the activity set.
func NewActivities(d Dependencies) *Activities {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.WriteLock == nil {
		d.WriteLock = &sync.Mutex{}
	}
	return &Activities{deps: d}
}

func (a *Activities) loader(location string) *loader.Loader {
	return loader.New(a.deps.Store, loader.Options{
		Logger:    a.deps.Logger,
		Publisher: a.deps.Publisher,
		Metrics:   a.deps.Metrics,
		Audit:     a.deps.Audit,
		WriteLock: a.deps.WriteLock,
		Source:    location,
	})
}

// LoadDependencies reads and upserts a dependency document.
func (a *Activities) LoadDependencies(ctx context.Context, input LoadInput) (loader.Report, error) {
	if input.Clear {
		if err := a.deps.Store.Clear(ctx); err != nil {
			return loader.Report{}, retryable(depgraph.Unavailable("clear", err))
		}
		a.deps.Audit.LogClear(input.Dependencies)
	}
	doc, err := loader.ReadDependencies(ctx, input.Dependencies, a.deps.Source, input.Discovery, a.deps.Catalog)
	if err != nil {
		return loader.Report{}, retryable(err)
	}
	report, err := a.loader(input.Dependencies).Load(ctx, doc)
	return report, retryable(err)
}

// LoadCompliance reads and upserts a compliance dataset.
func (a *Activities) LoadCompliance(ctx context.Context, location string) (loader.Report, error) {
	doc, err := loader.ReadCompliance(ctx, location, a.deps.Source)
	if err != nil {
		return loader.Report{}, retryable(err)
	}
	report, err := a.loader(location).LoadCompliance(ctx, doc)
	if err != nil {
		return report, retryable(err)
	}
	if a.deps.Compliance != nil {
		a.deps.Compliance.Swap(doc)
	}
	return report, nil
}

// Maintain runs the duplicate merge passes followed by schema creation.
// Schema creation is skipped on a dry run or while duplicates remain.
func (a *Activities) Maintain(ctx context.Context, input MaintenanceInput) (*maintenance.Report, error) {
	report, err := maintenance.Run(ctx, a.deps.Store, maintenance.Options{
		DryRun:    input.DryRun,
		Logger:    a.deps.Logger,
		Publisher: a.deps.Publisher,
		Metrics:   a.deps.Metrics,
		Audit:     a.deps.Audit,
		WriteLock: a.deps.WriteLock,
	})
	if err != nil {
		return nil, retryable(err)
	}
	if !input.DryRun && report.Remaining() == 0 {
		if err := a.deps.Store.EnsureSchema(ctx); err != nil {
			return nil, retryable(depgraph.Unavailable("ensure schema", err))
		}
	}
	return report, nil
}

// Simulate runs one failure simulation.
func (a *Activities) Simulate(ctx context.Context, input SimulationInput) (*simulation.Result, error) {
	if a.deps.Simulator == nil {
		return nil, temporal.NewNonRetryableApplicationError("no simulator configured", "internal", nil)
	}
	result, err := a.deps.Simulator.Simulate(ctx, input.Vendor, input.DurationHours)
	return result, retryable(err)
}

// retryable marks caller errors as non-retryable so Temporal only retries
// store outages.
func retryable(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, depgraph.ErrInvalidInput) || errors.Is(err, depgraph.ErrMalformedDocument) {
		return temporal.NewNonRetryableApplicationError(err.Error(), depgraph.KindOf(err), err)
	}
	return err
}
