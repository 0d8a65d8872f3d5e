package compliance

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/efebarandurmaz/vendortwin/internal/depgraph"
	"github.com/efebarandurmaz/vendortwin/internal/source"
)

func dataset() *depgraph.ComplianceDocument {
	return &depgraph.ComplianceDocument{
		ControlMappings: map[string]map[string][]string{
			"Stripe": {
				"soc2_controls":    {"CC6.1", "CC7.2"},
				"pci_dss_controls": {"PCI-3.4"},
				"hipaa_controls":   {"164.312"},
			},
			"sendgrid":         {"soc2_controls": {"CC2.3"}},
			"Google Workspace": {"iso27001_controls": {"A.9.2"}},
			"Empty Vendor":     {},
		},
		ImpactWeights: map[string]map[string]float64{
			"soc2":     {"CC6.1": 0.15, "CC7.2": 0.10},
			"pci_dss":  {"PCI-3.4": 0.95},
			"iso27001": {},
		},
		ComplianceBaseline: map[string]float64{
			"soc2_score":    0.95,
			"pci_dss_score": 0.90,
		},
	}
}

func TestResolve_CandidateOrder(t *testing.T) {
	r := New(dataset(), DefaultOptions())

	tests := []struct {
		input string
		key   string
	}{
		{"stripe", "Stripe"},                     // display name
		{"Stripe", "Stripe"},                     // capitalized input kept
		{"sendgrid", "sendgrid"},                 // display name SendGrid misses, raw input hits
		{"SENDGRID", "sendgrid"},                 // identity key
		{"google workspace", "Google Workspace"}, // title case
	}
	for _, tt := range tests {
		_, key, ok := r.Resolve(tt.input)
		require.True(t, ok, tt.input)
		assert.Equal(t, tt.key, key, tt.input)
	}

	_, _, ok := r.Resolve("empty vendor")
	assert.False(t, ok, "empty mapping is not a match")
	_, _, ok = r.Resolve("okta")
	assert.False(t, ok)
}

func TestAssess(t *testing.T) {
	r := New(dataset(), DefaultOptions())
	impact := r.Assess("Stripe")

	require.Len(t, impact.AffectedFrameworks, 2, "hipaa has no weights table")
	soc2 := impact.AffectedFrameworks["soc2"]
	assert.InDelta(t, 0.25, soc2.ScoreChange, 1e-9)
	assert.InDelta(t, 0.70, soc2.NewScore, 1e-9)
	assert.Equal(t, []string{"CC6.1", "CC7.2"}, soc2.AffectedControls)

	pci := impact.AffectedFrameworks["pci_dss"]
	assert.InDelta(t, 0.0, pci.NewScore, 1e-9, "new score floors at zero")

	assert.InDelta(t, (0.25+0.95)/2, impact.ImpactScore, 1e-9)
	assert.Equal(t, "25.0%", impact.Summary["soc2"].Change)
	assert.Equal(t, "0.0%", impact.Summary["pci_dss"].NewScore)
	assert.Equal(t, []string{"pci_dss", "soc2"}, impact.Frameworks())
	assert.Equal(t, "Stripe", impact.MatchedKey)
}

func TestAssess_Defaults(t *testing.T) {
	r := New(dataset(), Options{})
	impact := r.Assess("Google Workspace")

	iso := impact.AffectedFrameworks["iso27001"]
	assert.InDelta(t, 0.05, iso.ScoreChange, 1e-9, "unlisted control weight")
	assert.InDelta(t, 0.90, iso.BaselineScore, 1e-9, "missing baseline")
	assert.InDelta(t, 0.85, iso.NewScore, 1e-9)
}

func TestAssess_UnknownVendor(t *testing.T) {
	impact := New(nil, DefaultOptions()).Assess("stripe")
	assert.NotNil(t, impact.AffectedFrameworks)
	assert.NotNil(t, impact.Summary)
	assert.Empty(t, impact.AffectedFrameworks)
	assert.Zero(t, impact.ImpactScore)
}

func TestImpact_ScoreCapped(t *testing.T) {
	doc := &depgraph.ComplianceDocument{ImpactWeights: map[string]map[string]float64{"soc2": {"A": 0.8, "B": 0.9}}}
	impact := New(doc, DefaultOptions()).Impact(Mapping{"soc2": {"A", "B"}})
	assert.Equal(t, 1.0, impact.ImpactScore)
}

func TestReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "compliance.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
control_mappings:
  Okta:
    soc2_controls: [CC6.1]
impact_weights:
  soc2:
    CC6.1: 0.2
compliance_baseline:
  soc2_score: 0.9
`), 0o644))

	r := New(dataset(), DefaultOptions())
	_, _, ok := r.Resolve("okta")
	require.False(t, ok)

	require.NoError(t, r.Reload(context.Background(), path, source.Options{}))
	_, key, ok := r.Resolve("okta")
	require.True(t, ok)
	assert.Equal(t, "Okta", key)

	err := r.Reload(context.Background(), filepath.Join(dir, "missing.yaml"), source.Options{})
	require.Error(t, err)
	_, _, ok = r.Resolve("okta")
	assert.True(t, ok, "failed reload keeps the current dataset")
}
