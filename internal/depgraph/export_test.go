package depgraph

import (
	"reflect"
	"strings"
	"testing"
)

func sampleBlastRadius() *BlastRadius {
	return &BlastRadius{
		Vendor: "Stripe",
		Key:    "stripe",
		Services: []AffectedService{
			{ResourceIdentity: "projects/p/services/billing", BusinessProcesses: []string{"subscription_billing", "checkout"}},
			{ResourceIdentity: "projects/p/services/checkout", Name: "checkout-api", BusinessProcesses: []string{"checkout"}},
		},
	}
}

func TestBlastRadius_Processes(t *testing.T) {
	got := sampleBlastRadius().Processes()
	want := []string{"checkout", "subscription_billing"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestExportDOT(t *testing.T) {
	dot := ExportDOT(sampleBlastRadius())

	for _, want := range []string{
		"digraph blast_radius {",
		`v_stripe [label="Stripe" shape=box3d`,
		`s_projects_p_services_billing [label="billing"`,
		`s_projects_p_services_checkout [label="checkout-api"`,
		`s_projects_p_services_checkout -> v_stripe [label="DEPENDS_ON"`,
		`-> bp_subscription_billing [label="SUPPORTS"`,
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("expected DOT to contain %q\n%s", want, dot)
		}
	}
	if strings.Count(dot, `bp_checkout [label="checkout"`) != 1 {
		t.Error("expected each process node to be declared once")
	}
}

func TestExportMermaid(t *testing.T) {
	out := ExportMermaid(sampleBlastRadius())
	if !strings.HasPrefix(out, "graph RL\n") {
		t.Errorf("expected mermaid header, got %q", out)
	}
	if !strings.Contains(out, `v_stripe[["Stripe"]]`) {
		t.Errorf("expected vendor node, got\n%s", out)
	}
	if !strings.Contains(out, "s_projects_p_services_checkout ===> v_stripe") {
		t.Errorf("expected dependency arrow, got\n%s", out)
	}
}

func TestFormatStats(t *testing.T) {
	out := FormatStats(GraphStats{Vendors: 3, Services: 5, Relationships: 9})
	if !strings.Contains(out, "Vendors:             3") || !strings.Contains(out, "Relationships:       9") {
		t.Errorf("unexpected stats output:\n%s", out)
	}
}
