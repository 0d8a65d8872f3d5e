// Package simulation computes the operational, financial and compliance
// impact of a single vendor outage.
package simulation

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/efebarandurmaz/vendortwin/internal/compliance"
	"github.com/efebarandurmaz/vendortwin/internal/depgraph"
	"github.com/efebarandurmaz/vendortwin/internal/events"
	"github.com/efebarandurmaz/vendortwin/internal/graph"
	"github.com/efebarandurmaz/vendortwin/internal/observability"
)

// Assessor maps a vendor to its compliance impact.
type Assessor interface {
	Assess(vendor string) compliance.Impact
}

// Options configures an Engine. Nil fields use their defaults.
type Options struct {
	Weights    *Weights
	Params     *Params
	Thresholds *Thresholds
	Publisher  events.Publisher
	Metrics    *observability.Metrics
	Audit      *observability.AuditLogger
	Logger     *slog.Logger
	Now        func() time.Time
	NewID      func() string
}

// Engine runs simulations against a graph reader. It holds no per-request
// state and is safe for concurrent use.
type Engine struct {
	reader     graph.Reader
	assessor   Assessor
	weights    Weights
	params     Params
	thresholds Thresholds
	publisher  events.Publisher
	metrics    *observability.Metrics
	audit      *observability.AuditLogger
	logger     *slog.Logger
	now        func() time.Time
	newID      func() string
}

// New creates an engine. A nil assessor means no compliance data.
func New(reader graph.Reader, assessor Assessor, opts Options) *Engine {
	if opts.Weights == nil {
		opts.Weights = DefaultWeights()
	}
	if opts.Params == nil {
		opts.Params = DefaultParams()
	}
	if opts.Thresholds == nil {
		opts.Thresholds = DefaultThresholds()
	}
	if opts.Publisher == nil {
		opts.Publisher = events.Nop{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if assessor == nil {
		assessor = compliance.New(nil, compliance.DefaultOptions())
	}
	return &Engine{
		reader:     reader,
		assessor:   assessor,
		weights:    *opts.Weights,
		params:     *opts.Params,
		thresholds: *opts.Thresholds,
		publisher:  opts.Publisher,
		metrics:    opts.Metrics,
		audit:      opts.Audit,
		logger:     opts.Logger,
		now:        opts.Now,
		newID:      opts.NewID,
	}
}

// Simulate computes the impact of vendor being down for hours. Invalid
// arguments fail with depgraph.ErrInvalidInput before the graph is touched;
// a store failure fails the whole simulation with
// depgraph.ErrGraphUnavailable.
func (e *Engine) Simulate(ctx context.Context, vendor string, hours float64) (*Result, error) {
	start := time.Now()
	key := depgraph.IdentityKey(vendor)

	result, err := e.simulate(ctx, vendor, key, hours)
	if err != nil {
		kind := depgraph.KindOf(err)
		e.metrics.RecordSimulation(kind, time.Since(start), 0)
		e.audit.LogSimulationError(key, kind, err)
		e.logger.Error("simulation failed", "vendor", key, "duration_hours", hours, "error", err)
		return nil, err
	}

	e.metrics.RecordSimulation("success", time.Since(start), result.OverallImpactScore)
	e.audit.LogSimulation(result.SimulationID, result.Vendor, hours, result.OverallImpactScore, time.Since(start))
	e.logger.Info("simulation complete",
		"simulation_id", result.SimulationID,
		"vendor", result.Vendor,
		"duration_hours", hours,
		"services", result.OperationalImpact.ServiceCount,
		"overall_score", result.OverallImpactScore,
	)
	if err := e.publisher.Publish(ctx, events.New(events.TypeSimulationCompleted, result)); err != nil {
		e.logger.Warn("publish simulation result", "simulation_id", result.SimulationID, "error", err)
	}
	return result, nil
}

func (e *Engine) simulate(ctx context.Context, vendor, key string, hours float64) (*Result, error) {
	if key == "" {
		return nil, depgraph.InvalidInput("simulate", "vendor is required")
	}
	if math.IsNaN(hours) || math.IsInf(hours, 0) || hours <= 0 {
		return nil, depgraph.InvalidInput("simulate", "duration must be a positive number of hours, got %v", hours)
	}

	ctx, span := observability.StartSimulationSpan(ctx, key, hours)
	defer span.End()

	display := depgraph.DisplayName(vendor)
	e.logger.Info("simulation started", "vendor", display, "duration_hours", hours)

	operational, err := e.operational(ctx, key)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	financial := e.financial(operational, hours)

	complianceImpact := compliance.Empty()
	if operational.ServiceCount > 0 {
		complianceImpact = e.assessor.Assess(vendor)
	}

	result := &Result{
		SimulationID:      simulationID(key, e.newID()),
		Vendor:            display,
		IdentityKey:       key,
		DurationHours:     hours,
		Timestamp:         e.now().UTC().Format(time.RFC3339),
		OperationalImpact: operational,
		FinancialImpact:   financial,
		ComplianceImpact:  complianceImpact,
	}
	result.OverallImpactScore = CalculateImpactScore(
		operational.ImpactScore,
		financial.ImpactScore,
		complianceImpact.ImpactScore,
		&e.weights,
	)
	result.Recommendations = Recommend(result, &e.thresholds)

	observability.RecordSimulationResult(span, operational.ServiceCount,
		operational.ImpactScore, financial.ImpactScore, complianceImpact.ImpactScore, result.OverallImpactScore)
	return result, nil
}

func (e *Engine) operational(ctx context.Context, key string) (OperationalImpact, error) {
	services, err := e.reader.VendorBlastRadius(ctx, key)
	if err != nil {
		return OperationalImpact{}, depgraph.Unavailable("vendor blast radius", err)
	}

	out := OperationalImpact{
		AffectedServices:  make([]depgraph.AffectedService, 0, len(services)),
		BusinessProcesses: []string{},
	}
	seenService := make(map[string]bool, len(services))
	seenProcess := make(map[string]bool)
	for _, svc := range services {
		if seenService[svc.ResourceIdentity] {
			continue
		}
		seenService[svc.ResourceIdentity] = true
		if svc.BusinessProcesses == nil {
			svc.BusinessProcesses = []string{}
		}
		out.AffectedServices = append(out.AffectedServices, svc)
		out.TotalRPM += svc.RPM
		if svc.CustomersAffected > out.CustomersAffected {
			out.CustomersAffected = svc.CustomersAffected
		}
		for _, p := range svc.BusinessProcesses {
			if !seenProcess[p] {
				seenProcess[p] = true
				out.BusinessProcesses = append(out.BusinessProcesses, p)
			}
		}
	}
	sort.Strings(out.BusinessProcesses)
	out.ServiceCount = len(out.AffectedServices)
	out.ImpactScore = saturate(float64(out.ServiceCount), e.params.ServiceScale)
	return out, nil
}

func (e *Engine) financial(op OperationalImpact, hours float64) FinancialImpact {
	fraction := math.Min(float64(op.ServiceCount)*e.params.RevenueSharePerService, 1)
	revenueLoss := e.params.RevenuePerHour * hours * fraction
	failed := int64(math.Floor(e.params.TransactionsPerHour * hours * fraction))
	customerCost := float64(op.CustomersAffected) * e.params.CostPerCustomer
	total := revenueLoss + customerCost

	return FinancialImpact{
		RevenueLoss:          revenueLoss,
		RevenueLossFormatted: FormatCurrency(revenueLoss),
		FailedTransactions:   failed,
		CustomerImpactCost:   customerCost,
		TotalCost:            total,
		TotalCostFormatted:   FormatCurrency(total),
		ImpactScore:          saturate(total, e.params.FinancialScale),
	}
}

// simulationID is "<identity-key>-<id>", whitespace in the key replaced so
// the id is safe in a URL path.
func simulationID(key, id string) string {
	return strings.Join(strings.Fields(key), "-") + "-" + id
}
