package depgraph

import (
	"errors"
	"strings"
	"testing"
)

func TestDecodeDependencyDocument_JSON(t *testing.T) {
	in := `{"vendors":[{"name":"Stripe","services":[
		{"gcp_resource":" projects/p/services/checkout ","request_rate":500,"customers_affected":50000,"business_processes":["checkout"]}
	]}]}`
	doc, err := DecodeDependencyDocument(strings.NewReader(in), FormatJSON)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Vendors) != 1 || len(doc.Vendors[0].Services) != 1 {
		t.Fatalf("expected 1 vendor with 1 service, got %+v", doc)
	}
	svc := doc.Vendors[0].Services[0]
	if got := svc.ResolvedIdentity(); got != "projects/p/services/checkout" {
		t.Errorf("expected gcp_resource fallback, got %q", got)
	}
	if svc.RequestRate == nil || *svc.RequestRate != 500 {
		t.Errorf("expected request rate 500, got %v", svc.RequestRate)
	}
}

func TestDecodeComplianceDocument_YAML(t *testing.T) {
	in := `
control_mappings:
  Stripe:
    soc2_controls: [CC6.1, CC6.6]
impact_weights:
  soc2:
    CC6.1: 0.15
compliance_baseline:
  soc2_score: 0.95
`
	doc, err := DecodeComplianceDocument(strings.NewReader(in), FormatYAML)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := doc.ControlMappings["Stripe"]["soc2_controls"]; len(got) != 2 {
		t.Errorf("expected 2 controls, got %v", got)
	}
	if doc.ComplianceBaseline[BaselineKey("soc2")] != 0.95 {
		t.Errorf("expected baseline 0.95, got %v", doc.ComplianceBaseline)
	}
}

func TestDecode_Malformed(t *testing.T) {
	for _, in := range []string{"", "   \n", "{not json"} {
		_, err := DecodeDependencyDocument(strings.NewReader(in), FormatJSON)
		if !errors.Is(err, ErrMalformedDocument) {
			t.Errorf("input %q: expected ErrMalformedDocument, got %v", in, err)
		}
	}
}

func TestFormatFromPath(t *testing.T) {
	cases := map[string]Format{
		"deps.yaml":        FormatYAML,
		"deps.YML":         FormatYAML,
		"deps.json":        FormatJSON,
		"gs://b/deps":      FormatJSON,
		"gs://b/deps.yaml": FormatYAML,
	}
	for path, want := range cases {
		if got := FormatFromPath(path); got != want {
			t.Errorf("FormatFromPath(%q): expected %s, got %s", path, want, got)
		}
	}
}

func TestFrameworkKey(t *testing.T) {
	if got := FrameworkKey("pci_dss_controls"); got != "pci_dss" {
		t.Errorf("expected pci_dss, got %q", got)
	}
	if got := FrameworkKey("hipaa"); got != "hipaa" {
		t.Errorf("expected hipaa, got %q", got)
	}
}

func TestDiscoveredVendor_AllDependencies(t *testing.T) {
	v := DiscoveredVendor{
		Dependencies: []DiscoveredDependency{{ServiceName: "a"}},
		Resources:    []DiscoveredDependency{{ResourceName: " b "}},
	}
	deps := v.AllDependencies()
	if len(deps) != 2 {
		t.Fatalf("expected 2 dependencies, got %d", len(deps))
	}
	if deps[1].Path() != "b" {
		t.Errorf("expected resource_name fallback, got %q", deps[1].Path())
	}
}

func TestNodeRecord_NonNullCount(t *testing.T) {
	n := NodeRecord{Props: map[string]any{"name": "stripe", "category": "", "criticality": nil, "rate": 1.5}}
	if got := n.NonNullCount(); got != 2 {
		t.Errorf("expected 2, got %d", got)
	}
	if n.StringProp("rate") != "" {
		t.Error("expected non-string prop to read as empty")
	}
}
