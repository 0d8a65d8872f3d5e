// Package maintenance repairs duplicate Vendor and Service nodes left by
// earlier loaders that keyed identity inconsistently.
package maintenance

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/efebarandurmaz/vendortwin/internal/depgraph"
	"github.com/efebarandurmaz/vendortwin/internal/events"
	"github.com/efebarandurmaz/vendortwin/internal/graph"
	"github.com/efebarandurmaz/vendortwin/internal/observability"
)

// Options configures a maintenance run.
type Options struct {
	// DryRun plans merges without writing.
	DryRun    bool
	Logger    *slog.Logger
	Publisher events.Publisher
	Metrics   *observability.Metrics
	Audit     *observability.AuditLogger
	// WriteLock is held for the whole run. Share it with the loader.
	WriteLock *sync.Mutex
}

// PassReport covers one label.
type PassReport struct {
	Label depgraph.Label `json:"label"`
	// Groups is the number of duplicate groups found.
	Groups int `json:"groups"`
	// Merged is the number of duplicate nodes folded away.
	Merged    int               `json:"merged"`
	Remaining int               `json:"remaining"`
	Plans     []graph.MergePlan `json:"plans,omitempty"`
}

// Report summarizes a run.
type Report struct {
	DryRun   bool          `json:"dry_run"`
	Vendors  PassReport    `json:"vendors"`
	Services PassReport    `json:"services"`
	Duration time.Duration `json:"duration"`
	// Warning is set when duplicates survive a merge pass.
	Warning string `json:"warning,omitempty"`
}

// Remaining is the number of duplicate groups left after the run.
func (r *Report) Remaining() int {
	return r.Vendors.Remaining + r.Services.Remaining
}

type pass struct {
	label       depgraph.Label
	displayKeys []string
	groups      func(context.Context) ([]depgraph.DuplicateGroup, error)
	merge       func(context.Context, graph.MergePlan) error
}

// Run merges vendor duplicates, then service duplicates, then re-runs
// grouping to verify no group of more than one node remains. Surviving
// groups are reported and logged as an identity conflict; only store
// failures are returned.
func Run(ctx context.Context, store graph.Writer, opts Options) (*Report, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Publisher == nil {
		opts.Publisher = events.Nop{}
	}
	if opts.WriteLock != nil {
		opts.WriteLock.Lock()
		defer opts.WriteLock.Unlock()
	}
	start := time.Now()

	passes := []pass{
		{
			label:       depgraph.LabelVendor,
			displayKeys: []string{depgraph.PropDisplayName, depgraph.PropVendorKey},
			groups:      store.VendorGroups,
			merge:       store.MergeVendors,
		},
		{
			label:       depgraph.LabelService,
			displayKeys: []string{depgraph.PropDisplayName},
			groups:      store.ServiceGroups,
			merge:       store.MergeServices,
		},
	}

	report := &Report{DryRun: opts.DryRun}
	results := []*PassReport{&report.Vendors, &report.Services}
	for i, p := range passes {
		pr, err := runPass(ctx, p, opts)
		if err != nil {
			return nil, err
		}
		*results[i] = pr
	}

	for i, p := range passes {
		groups, err := p.groups(ctx)
		if err != nil {
			return nil, depgraph.Unavailable("verify "+string(p.label), err)
		}
		results[i].Remaining = len(groups)
		opts.Metrics.SetRemainingGroups(string(p.label), len(groups))
	}
	report.Duration = time.Since(start)

	if remaining := report.Remaining(); remaining > 0 && !opts.DryRun {
		conflict := depgraph.Conflict("maintenance verify", remaining)
		report.Warning = conflict.Error()
		opts.Logger.Warn("duplicates remain after merge",
			"vendor_groups", report.Vendors.Remaining,
			"service_groups", report.Services.Remaining,
			"error", conflict,
		)
	}
	opts.Audit.LogVerify(report.Remaining(), report.Duration)

	opts.Logger.Info("maintenance complete",
		"dry_run", opts.DryRun,
		"vendor_groups", report.Vendors.Groups,
		"vendors_merged", report.Vendors.Merged,
		"service_groups", report.Services.Groups,
		"services_merged", report.Services.Merged,
		"duration", report.Duration,
	)
	if err := opts.Publisher.Publish(ctx, events.New(events.TypeMaintenanceFinished, report)); err != nil {
		opts.Logger.Warn("publish maintenance report", "error", err)
	}
	return report, nil
}

func runPass(ctx context.Context, p pass, opts Options) (PassReport, error) {
	ctx, span := observability.StartMaintenanceSpan(ctx, string(p.label), opts.DryRun)
	defer span.End()

	pr := PassReport{Label: p.label}
	groups, err := p.groups(ctx)
	if err != nil {
		err = depgraph.Unavailable("group "+string(p.label), err)
		observability.RecordError(span, err)
		return pr, err
	}
	pr.Groups = len(groups)

	for _, g := range groups {
		plan := Plan(g, p.label, p.displayKeys...)
		pr.Plans = append(pr.Plans, plan)
		opts.Audit.LogMerge(string(p.label), plan.Key, plan.CanonicalID, plan.DuplicateIDs, opts.DryRun)
		if opts.DryRun {
			opts.Logger.Info("would merge", "label", p.label, "key", plan.Key,
				"canonical", plan.CanonicalID, "duplicates", len(plan.DuplicateIDs))
			continue
		}
		if err := p.merge(ctx, plan); err != nil {
			err = depgraph.Unavailable("merge "+string(p.label)+" "+plan.Key, err)
			observability.RecordError(span, err)
			return pr, err
		}
		pr.Merged += len(plan.DuplicateIDs)
		opts.Logger.Debug("merged", "label", p.label, "key", plan.Key,
			"canonical", plan.CanonicalID, "duplicates", plan.DuplicateIDs)
	}
	opts.Metrics.RecordMerge(string(p.label), pr.Merged)
	observability.RecordMaintenanceResult(span, pr.Groups, pr.Merged, 0)
	return pr, nil
}

// Plan builds the merge plan for one duplicate group. Vendor plans carry the
// best display casing found in the group.
func Plan(g depgraph.DuplicateGroup, label depgraph.Label, displayKeys ...string) graph.MergePlan {
	idx := SelectCanonical(g.Nodes, displayKeys...)
	plan := graph.MergePlan{Key: g.Key, CanonicalID: g.Nodes[idx].ElementID}
	for i, n := range g.Nodes {
		if i != idx {
			plan.DuplicateIDs = append(plan.DuplicateIDs, n.ElementID)
		}
	}
	if label == depgraph.LabelVendor {
		plan.DisplayName = bestDisplay(g, idx, displayKeys)
	}
	return plan
}

// SelectCanonical returns the index of the node to keep: the one with the
// most non-null properties, then one whose display name is capitalized,
// then the first. The display name is the first non-empty of displayKeys.
func SelectCanonical(nodes []depgraph.NodeRecord, displayKeys ...string) int {
	best := 0
	for i := 1; i < len(nodes); i++ {
		nc, bc := nodes[i].NonNullCount(), nodes[best].NonNullCount()
		if nc > bc {
			best = i
			continue
		}
		if nc == bc && capitalized(nodes[i], displayKeys) && !capitalized(nodes[best], displayKeys) {
			best = i
		}
	}
	return best
}

func display(n depgraph.NodeRecord, keys []string) string {
	for _, k := range keys {
		if s := strings.TrimSpace(n.StringProp(k)); s != "" {
			return s
		}
	}
	return ""
}

func capitalized(n depgraph.NodeRecord, keys []string) bool {
	return depgraph.IsCapitalized(display(n, keys))
}

// bestDisplay prefers the canonical node's casing, then any capitalized
// casing in the group, then the derived display name.
func bestDisplay(g depgraph.DuplicateGroup, canonical int, keys []string) string {
	if name := display(g.Nodes[canonical], keys); depgraph.IsCapitalized(name) {
		return name
	}
	for _, n := range g.Nodes {
		if name := display(n, keys); depgraph.IsCapitalized(name) {
			return name
		}
	}
	return depgraph.DisplayName(g.Key)
}
