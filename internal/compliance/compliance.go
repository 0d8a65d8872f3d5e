// Package compliance resolves vendors against the static compliance dataset
// and computes the framework score impact of losing them.
package compliance

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/efebarandurmaz/vendortwin/internal/depgraph"
	"github.com/efebarandurmaz/vendortwin/internal/source"
)

// Options holds the dataset defaults.
type Options struct {
	// DefaultWeight applies to controls missing from a framework's weights.
	DefaultWeight float64 `mapstructure:"default_weight"`
	// DefaultBaseline applies to frameworks missing from the baseline.
	DefaultBaseline float64 `mapstructure:"default_baseline"`
}

// DefaultOptions returns the dataset defaults.
func DefaultOptions() Options {
	return Options{DefaultWeight: 0.05, DefaultBaseline: 0.90}
}

// Mapping is one vendor's controls keyed by framework, "_controls" suffix
// removed.
type Mapping map[string][]string

// FrameworkImpact is the effect of a vendor outage on one framework.
type FrameworkImpact struct {
	BaselineScore    float64  `json:"baseline_score"`
	NewScore         float64  `json:"new_score"`
	ScoreChange      float64  `json:"score_change"`
	AffectedControls []string `json:"affected_controls"`
}

// FrameworkSummary is the display form of a FrameworkImpact.
type FrameworkSummary struct {
	Change   string `json:"change"`
	NewScore string `json:"new_score"`
}

// Impact is the compliance dimension of a simulation.
type Impact struct {
	AffectedFrameworks map[string]FrameworkImpact  `json:"affected_frameworks"`
	ImpactScore        float64                     `json:"impact_score"`
	Summary            map[string]FrameworkSummary `json:"summary"`
	MatchedKey         string                      `json:"matched_key,omitempty"`
}

// Empty returns a zero impact with non-nil maps.
func Empty() Impact {
	return Impact{
		AffectedFrameworks: map[string]FrameworkImpact{},
		Summary:            map[string]FrameworkSummary{},
	}
}

// Frameworks returns the affected framework names in order.
func (i Impact) Frameworks() []string {
	names := make([]string, 0, len(i.AffectedFrameworks))
	for name := range i.AffectedFrameworks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolver is a read-only view of one compliance dataset. Reload swaps the
// dataset atomically; lookups in flight keep the one they started with.
type Resolver struct {
	opts Options

	mu  sync.RWMutex
	doc *depgraph.ComplianceDocument
}

// New wraps a decoded dataset. A nil document resolves nothing.
func New(doc *depgraph.ComplianceDocument, opts Options) *Resolver {
	if opts.DefaultWeight <= 0 {
		opts.DefaultWeight = DefaultOptions().DefaultWeight
	}
	if opts.DefaultBaseline <= 0 {
		opts.DefaultBaseline = DefaultOptions().DefaultBaseline
	}
	if doc == nil {
		doc = &depgraph.ComplianceDocument{}
	}
	return &Resolver{opts: opts, doc: doc}
}

// Load reads a dataset from a local path or gs:// URI.
func Load(ctx context.Context, location string, srcOpts source.Options, opts Options) (*Resolver, error) {
	doc, err := read(ctx, location, srcOpts)
	if err != nil {
		return nil, err
	}
	return New(doc, opts), nil
}

// Reload replaces the dataset with the one at location. On error the
// current dataset stays in place.
func (r *Resolver) Reload(ctx context.Context, location string, srcOpts source.Options) error {
	doc, err := read(ctx, location, srcOpts)
	if err != nil {
		return err
	}
	r.Swap(doc)
	return nil
}

// Swap replaces the dataset.
func (r *Resolver) Swap(doc *depgraph.ComplianceDocument) {
	if doc == nil {
		doc = &depgraph.ComplianceDocument{}
	}
	r.mu.Lock()
	r.doc = doc
	r.mu.Unlock()
}

func read(ctx context.Context, location string, srcOpts source.Options) (*depgraph.ComplianceDocument, error) {
	var doc depgraph.ComplianceDocument
	if err := source.Decode(ctx, location, srcOpts, &doc); err != nil {
		return nil, fmt.Errorf("load compliance dataset: %w", err)
	}
	return &doc, nil
}

func (r *Resolver) current() *depgraph.ComplianceDocument {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.doc
}

// VendorCount returns the number of vendors the dataset maps.
func (r *Resolver) VendorCount() int {
	return len(r.current().ControlMappings)
}

// Resolve finds the vendor's control mapping, trying each of
// depgraph.LookupCandidates in order and stopping at the first non-empty
// mapping. It returns the key that matched.
func (r *Resolver) Resolve(vendor string) (Mapping, string, bool) {
	return resolve(r.current(), vendor)
}

func resolve(doc *depgraph.ComplianceDocument, vendor string) (Mapping, string, bool) {
	for _, key := range depgraph.LookupCandidates(vendor) {
		raw, ok := doc.ControlMappings[key]
		if !ok || len(raw) == 0 {
			continue
		}
		m := make(Mapping, len(raw))
		for fw, controls := range raw {
			m[depgraph.FrameworkKey(fw)] = append([]string(nil), controls...)
		}
		return m, key, true
	}
	return nil, "", false
}

// Assess resolves the vendor and computes its impact. An unknown vendor
// has an empty impact.
func (r *Resolver) Assess(vendor string) Impact {
	doc := r.current()
	m, key, ok := resolve(doc, vendor)
	if !ok {
		return Empty()
	}
	impact := r.impact(doc, m)
	impact.MatchedKey = key
	return impact
}

// Impact computes per-framework score reductions for a mapping. Frameworks
// without a weights table are not scored. The impact score is the mean
// reduction across scored frameworks, capped at 1.
func (r *Resolver) Impact(m Mapping) Impact {
	return r.impact(r.current(), m)
}

func (r *Resolver) impact(doc *depgraph.ComplianceDocument, m Mapping) Impact {
	out := Empty()
	total := 0.0
	for fw, controls := range m {
		weights, ok := doc.ImpactWeights[fw]
		if !ok {
			continue
		}
		reduction := 0.0
		for _, c := range controls {
			w, ok := weights[c]
			if !ok {
				w = r.opts.DefaultWeight
			}
			reduction += w
		}
		baseline, ok := doc.ComplianceBaseline[depgraph.BaselineKey(fw)]
		if !ok {
			baseline = r.opts.DefaultBaseline
		}
		newScore := math.Max(baseline-reduction, 0)

		out.AffectedFrameworks[fw] = FrameworkImpact{
			BaselineScore:    baseline,
			NewScore:         newScore,
			ScoreChange:      reduction,
			AffectedControls: controls,
		}
		out.Summary[fw] = FrameworkSummary{
			Change:   FormatPercentage(reduction),
			NewScore: FormatPercentage(newScore),
		}
		total += reduction
	}
	if n := len(out.AffectedFrameworks); n > 0 {
		out.ImpactScore = math.Min(total/float64(n), 1)
	}
	return out
}

// FormatPercentage renders a [0,1] fraction as "12.5%".
func FormatPercentage(v float64) string {
	return fmt.Sprintf("%.1f%%", v*100)
}
