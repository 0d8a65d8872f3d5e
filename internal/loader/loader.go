// Package loader upserts dependency and compliance documents into the
// vendor graph.
package loader

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/efebarandurmaz/vendortwin/internal/depgraph"
	"github.com/efebarandurmaz/vendortwin/internal/events"
	"github.com/efebarandurmaz/vendortwin/internal/graph"
	"github.com/efebarandurmaz/vendortwin/internal/observability"
)

// Report summarizes one load. Counts are upserts performed, so reloading
// the same document reports the same numbers without changing the graph.
type Report struct {
	Vendors   int      `json:"vendors"`
	Services  int      `json:"services"`
	Processes int      `json:"processes"`
	Controls  int      `json:"controls"`
	Edges     int      `json:"edges"`
	Skipped   int      `json:"skipped"`
	Warnings  []string `json:"warnings,omitempty"`
}

// Options configures a Loader.
type Options struct {
	Logger    *slog.Logger
	Publisher events.Publisher
	Metrics   *observability.Metrics
	Audit     *observability.AuditLogger
	// WriteLock is shared with maintenance so the two never write at once.
	WriteLock *sync.Mutex
	// Source names the document in events and audit records.
	Source string
}

// Loader writes documents into a graph.
type Loader struct {
	store     graph.Writer
	logger    *slog.Logger
	publisher events.Publisher
	metrics   *observability.Metrics
	audit     *observability.AuditLogger
	lock      *sync.Mutex
	validate  *validator.Validate
}

// New creates a loader.
func New(store graph.Writer, opts Options) *Loader {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Publisher == nil {
		opts.Publisher = events.Nop{}
	}
	if opts.WriteLock == nil {
		opts.WriteLock = &sync.Mutex{}
	}
	return &Loader{
		store:     store,
		logger:    opts.Logger,
		publisher: opts.Publisher,
		metrics:   opts.Metrics,
		audit:     opts.Audit,
		lock:      opts.WriteLock,
		validate:  validator.New(),
	}
}

// Load upserts every vendor, service, business process and edge of doc.
// Entries without a vendor name or a resolvable resource identity are
// skipped with a warning. A store failure aborts the batch.
func (l *Loader) Load(ctx context.Context, doc *depgraph.DependencyDocument) (Report, error) {
	var report Report
	if doc == nil {
		return report, depgraph.Malformed("load", "nil document")
	}

	l.lock.Lock()
	defer l.lock.Unlock()

	start := time.Now()
	ctx, span := observability.StartLoadSpan(ctx, "dependencies", len(doc.Vendors))
	defer span.End()

	for i, entry := range doc.Vendors {
		if err := l.loadVendor(ctx, i, entry, &report); err != nil {
			observability.RecordError(span, err)
			return report, err
		}
	}

	observability.RecordLoadResult(span, report.Vendors+report.Services+report.Processes, report.Edges, report.Skipped)
	l.metrics.RecordLoad("dependencies", report.Vendors+report.Services, report.Skipped)
	l.finish(ctx, "dependencies", start, report)
	return report, nil
}

func (l *Loader) loadVendor(ctx context.Context, index int, entry depgraph.VendorEntry, report *Report) error {
	key := depgraph.IdentityKey(entry.Name)
	if key == "" {
		l.skip(report, depgraph.Malformed("load", "vendors[%d]: missing name", index))
		return nil
	}

	vendor := depgraph.Vendor{
		IdentityKey: key,
		DisplayName: strings.TrimSpace(entry.Name),
		VendorID:    strings.TrimSpace(entry.VendorID),
		Category:    strings.TrimSpace(entry.Category),
		Criticality: strings.TrimSpace(entry.Criticality),
	}
	if err := l.store.UpsertVendor(ctx, vendor); err != nil {
		return depgraph.Unavailable("load vendor "+key, err)
	}
	report.Vendors++

	for j, svc := range entry.Services {
		if err := l.loadService(ctx, key, index, j, svc, report); err != nil {
			return err
		}
	}
	return nil
}

func (l *Loader) loadService(ctx context.Context, vendorKey string, vi, si int, entry depgraph.ServiceEntry, report *Report) error {
	rid := entry.ResolvedIdentity()
	if rid == "" {
		l.skip(report, depgraph.Malformed("load", "vendors[%d].services[%d]: missing resource_identity", vi, si))
		return nil
	}
	if err := l.validate.Struct(entry); err != nil {
		l.skip(report, depgraph.Malformed("load", "vendors[%d].services[%d]: %v", vi, si, err))
		return nil
	}

	svc := depgraph.Service{
		ResourceIdentity:  rid,
		ServiceID:         strings.TrimSpace(entry.ServiceID),
		DisplayName:       strings.TrimSpace(entry.DisplayName),
		ResourceKind:      strings.TrimSpace(entry.ResourceKind),
		RequestRate:       entry.RequestRate,
		CustomersAffected: entry.CustomersAffected,
	}
	if err := l.store.UpsertService(ctx, svc); err != nil {
		return depgraph.Unavailable("load service "+rid, err)
	}
	report.Services++

	if err := l.store.LinkDependsOn(ctx, rid, vendorKey); err != nil {
		return depgraph.Unavailable("link service "+rid, err)
	}
	report.Edges++

	for _, name := range entry.BusinessProcesses {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if err := l.store.LinkSupports(ctx, rid, name); err != nil {
			return depgraph.Unavailable("link process "+name, err)
		}
		report.Processes++
		report.Edges++
	}
	return nil
}

// LoadCompliance upserts the controls of every vendor mapping and links
// them to the vendor. Framework keys lose their "_controls" suffix. Vendors
// absent from the graph get their controls but no edge.
func (l *Loader) LoadCompliance(ctx context.Context, doc *depgraph.ComplianceDocument) (Report, error) {
	var report Report
	if doc == nil {
		return report, depgraph.Malformed("load compliance", "nil document")
	}

	l.lock.Lock()
	defer l.lock.Unlock()

	start := time.Now()
	ctx, span := observability.StartLoadSpan(ctx, "compliance", len(doc.ControlMappings))
	defer span.End()

	for _, vendorName := range sortedKeys(doc.ControlMappings) {
		key := depgraph.IdentityKey(vendorName)
		if key == "" {
			l.skip(&report, depgraph.Malformed("load compliance", "control mapping with empty vendor name"))
			continue
		}
		frameworks := doc.ControlMappings[vendorName]
		for _, fwKey := range sortedKeys(frameworks) {
			framework := depgraph.FrameworkKey(fwKey)
			for _, controlID := range frameworks[fwKey] {
				controlID = strings.TrimSpace(controlID)
				if controlID == "" {
					l.skip(&report, depgraph.Malformed("load compliance", "%s/%s: empty control id", vendorName, framework))
					continue
				}
				if err := l.store.UpsertControl(ctx, depgraph.ComplianceControl{ControlID: controlID, Framework: framework}); err != nil {
					observability.RecordError(span, err)
					return report, depgraph.Unavailable("load control "+controlID, err)
				}
				report.Controls++
				if err := l.store.LinkSatisfies(ctx, key, controlID); err != nil {
					observability.RecordError(span, err)
					return report, depgraph.Unavailable("link control "+controlID, err)
				}
				report.Edges++
			}
		}
	}

	observability.RecordLoadResult(span, report.Controls, report.Edges, report.Skipped)
	l.metrics.RecordLoad("compliance", report.Controls, report.Skipped)
	l.finish(ctx, "compliance", start, report)
	return report, nil
}

func (l *Loader) skip(report *Report, err error) {
	report.Skipped++
	report.Warnings = append(report.Warnings, err.Error())
	l.logger.Warn("skipping document entry", "error", err)
}

func (l *Loader) finish(ctx context.Context, kind string, start time.Time, report Report) {
	duration := time.Since(start)
	l.logger.Info("load complete",
		"kind", kind,
		"vendors", report.Vendors,
		"services", report.Services,
		"controls", report.Controls,
		"edges", report.Edges,
		"skipped", report.Skipped,
		"duration", duration,
	)

	eventType := observability.AuditEventLoadComplete
	if kind == "compliance" {
		eventType = observability.AuditEventComplianceLoad
	}
	l.audit.LogLoad(eventType, kind, duration, map[string]any{
		"vendors":  report.Vendors,
		"services": report.Services,
		"controls": report.Controls,
		"edges":    report.Edges,
		"skipped":  report.Skipped,
	})

	if kind == "dependencies" {
		if err := l.publisher.Publish(ctx, events.New(events.TypeDiscoveryLoaded, report)); err != nil {
			l.logger.Warn("publish load event", "error", err)
		}
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
