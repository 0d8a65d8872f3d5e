package maintenance

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/efebarandurmaz/vendortwin/internal/depgraph"
	"github.com/efebarandurmaz/vendortwin/internal/graph"
	"github.com/efebarandurmaz/vendortwin/internal/graph/memgraph"
	"github.com/efebarandurmaz/vendortwin/internal/observability"
)

// legacyGraph reproduces what the old loaders left behind: vendors keyed by
// display casing and services keyed by a generated short id.
func legacyGraph() *memgraph.Store {
	s := memgraph.New()
	v1 := s.AddNode(depgraph.LabelVendor, map[string]any{"name": "stripe", "category": "payments"})
	v2 := s.AddNode(depgraph.LabelVendor, map[string]any{"name": "Stripe", "category": "billing", "criticality": "critical"})
	v3 := s.AddNode(depgraph.LabelVendor, map[string]any{"name": " STRIPE "})
	okta := s.AddNode(depgraph.LabelVendor, map[string]any{"name": "okta"})

	a1 := s.AddNode(depgraph.LabelService, map[string]any{"resource_identity": "svc/checkout", "service_id": "svc_001", "request_rate": 500.0})
	a2 := s.AddNode(depgraph.LabelService, map[string]any{"resource_identity": "svc/checkout", "service_id": "svc_007", "customers_affected": int64(50000)})
	b := s.AddNode(depgraph.LabelService, map[string]any{"resource_identity": "svc/login"})
	ctl := s.AddNode(depgraph.LabelComplianceControl, map[string]any{"control_id": "CC6.1"})

	s.AddEdge(a1, depgraph.EdgeDependsOn, v1)
	s.AddEdge(a2, depgraph.EdgeDependsOn, v2)
	s.AddEdge(a2, depgraph.EdgeDependsOn, v3)
	s.AddEdge(b, depgraph.EdgeDependsOn, okta)
	s.AddEdge(v3, depgraph.EdgeSatisfies, ctl)
	return s
}

func TestRun_MergesDuplicates(t *testing.T) {
	ctx := context.Background()
	store := legacyGraph()

	report, err := Run(ctx, store, Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Vendors.Groups)
	assert.Equal(t, 2, report.Vendors.Merged)
	assert.Equal(t, 1, report.Services.Groups)
	assert.Equal(t, 1, report.Services.Merged)
	assert.Zero(t, report.Remaining())
	assert.Empty(t, report.Warning)

	vendors, err := store.ListVendors(ctx)
	require.NoError(t, err)
	require.Len(t, vendors, 2)
	stripe := vendors[1]
	assert.Equal(t, "stripe", stripe.IdentityKey)
	assert.Equal(t, "Stripe", stripe.DisplayName)
	assert.Equal(t, "billing", stripe.Category, "canonical has the most properties")
	assert.Equal(t, "critical", stripe.Criticality)

	services, err := store.VendorBlastRadius(ctx, "stripe")
	require.NoError(t, err)
	require.Len(t, services, 1)
	assert.Equal(t, 500.0, services[0].RPM)
	assert.Equal(t, int64(50000), services[0].CustomersAffected)

	assert.Equal(t, 1, store.EdgeCount(depgraph.EdgeSatisfies))
	assert.Equal(t, 2, store.EdgeCount(depgraph.EdgeDependsOn))
	assert.NoError(t, store.EnsureSchema(ctx))
}

func TestRun_Idempotent(t *testing.T) {
	ctx := context.Background()
	store := legacyGraph()

	_, err := Run(ctx, store, Options{})
	require.NoError(t, err)
	before, err := store.Stats(ctx)
	require.NoError(t, err)

	report, err := Run(ctx, store, Options{})
	require.NoError(t, err)
	assert.Zero(t, report.Vendors.Groups)
	assert.Zero(t, report.Services.Groups)

	after, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestRun_DryRun(t *testing.T) {
	ctx := context.Background()
	store := legacyGraph()
	before, err := store.Stats(ctx)
	require.NoError(t, err)

	var audit bytes.Buffer
	report, err := Run(ctx, store, Options{DryRun: true, Audit: observability.NewAuditWriter(&audit, "test")})
	require.NoError(t, err)

	assert.True(t, report.DryRun)
	assert.Equal(t, 1, report.Vendors.Groups)
	assert.Zero(t, report.Vendors.Merged)
	require.Len(t, report.Vendors.Plans, 1)
	assert.Len(t, report.Vendors.Plans[0].DuplicateIDs, 2)
	assert.Equal(t, 2, report.Remaining())
	assert.Empty(t, report.Warning, "a dry run is expected to leave duplicates")

	after, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, 2, strings.Count(audit.String(), "maintenance.merge"))
}

// stuckStore ignores vendor merges, as a loader bug re-creating duplicates
// would look from the outside.
type stuckStore struct {
	*memgraph.Store
}

func (stuckStore) MergeVendors(context.Context, graph.MergePlan) error { return nil }

func TestRun_ReportsRemainingGroups(t *testing.T) {
	store := stuckStore{legacyGraph()}

	report, err := Run(context.Background(), store, Options{WriteLock: &sync.Mutex{}})
	require.NoError(t, err, "remaining duplicates are a warning")
	assert.Equal(t, 1, report.Vendors.Remaining)
	assert.Zero(t, report.Services.Remaining)
	assert.Contains(t, report.Warning, "identity conflict")
}

func TestRun_StoreFailure(t *testing.T) {
	store := legacyGraph()
	store.Unavailable = assert.AnError

	report, err := Run(context.Background(), store, Options{})
	assert.Nil(t, report)
	assert.ErrorIs(t, err, depgraph.ErrGraphUnavailable)
}

func node(id string, props map[string]any) depgraph.NodeRecord {
	return depgraph.NodeRecord{ElementID: id, Props: props}
}

func TestSelectCanonical(t *testing.T) {
	keys := []string{depgraph.PropDisplayName, depgraph.PropVendorKey}

	cases := []struct {
		name  string
		nodes []depgraph.NodeRecord
		want  int
	}{
		{
			name: "most properties wins",
			nodes: []depgraph.NodeRecord{
				node("a", map[string]any{"name": "Stripe"}),
				node("b", map[string]any{"name": "stripe", "category": "payments"}),
			},
			want: 1,
		},
		{
			name: "capitalized wins a tie",
			nodes: []depgraph.NodeRecord{
				node("a", map[string]any{"name": "stripe"}),
				node("b", map[string]any{"name": "Stripe"}),
			},
			want: 1,
		},
		{
			name: "first wins a full tie",
			nodes: []depgraph.NodeRecord{
				node("a", map[string]any{"name": "Stripe"}),
				node("b", map[string]any{"name": "STRIPE"}),
			},
			want: 0,
		},
		{
			name: "empty values do not count",
			nodes: []depgraph.NodeRecord{
				node("a", map[string]any{"name": "stripe", "category": "", "criticality": nil}),
				node("b", map[string]any{"name": "stripe", "category": "payments"}),
			},
			want: 1,
		},
		{
			name: "display name outranks key casing",
			nodes: []depgraph.NodeRecord{
				node("a", map[string]any{"name": "Sendgrid", "display_name": "sendgrid"}),
				node("b", map[string]any{"name": "sendgrid", "display_name": "SendGrid"}),
			},
			want: 1,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, SelectCanonical(c.nodes, keys...))
		})
	}
}

func TestPlan_DisplayName(t *testing.T) {
	g := depgraph.DuplicateGroup{Key: "sendgrid", Nodes: []depgraph.NodeRecord{
		node("a", map[string]any{"name": "sendgrid", "category": "email"}),
		node("b", map[string]any{"name": "sendgrid"}),
	}}
	plan := Plan(g, depgraph.LabelVendor, depgraph.PropDisplayName, depgraph.PropVendorKey)
	assert.Equal(t, "a", plan.CanonicalID)
	assert.Equal(t, []string{"b"}, plan.DuplicateIDs)
	assert.Equal(t, "SendGrid", plan.DisplayName, "falls back to the derived casing")

	svc := Plan(depgraph.DuplicateGroup{Key: "svc/a", Nodes: g.Nodes}, depgraph.LabelService, depgraph.PropDisplayName)
	assert.Empty(t, svc.DisplayName)
}
