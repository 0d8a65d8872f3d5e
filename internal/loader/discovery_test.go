package loader

import (
	"testing"

	"github.com/efebarandurmaz/vendortwin/internal/depgraph"
)

func TestFromDiscovery(t *testing.T) {
	doc := &depgraph.DiscoveryDocument{
		ProjectID: "acme",
		Vendors: []depgraph.DiscoveredVendor{
			{Name: "stripe", Dependencies: []depgraph.DiscoveredDependency{
				{ServiceName: "projects/acme/locations/us-central1/services/checkout", ResourceType: "cloud_run"},
			}},
			{Name: "STRIPE", Resources: []depgraph.DiscoveredDependency{
				{ResourceName: "checkout", ResourceType: "cloud_run"},
				{ResourceName: "billing", ResourceType: "cloud_function"},
			}},
			{Name: "Acme Mail", Category: "email"},
		},
	}

	out := FromDiscovery(doc, nil)
	if len(out.Vendors) != 2 {
		t.Fatalf("expected 2 vendors, got %d", len(out.Vendors))
	}

	stripe := out.Vendors[0]
	if stripe.Name != "Stripe" {
		t.Errorf("expected catalog casing Stripe, got %q", stripe.Name)
	}
	if stripe.VendorID != "vendor_stripe" || stripe.Criticality != "critical" {
		t.Errorf("unexpected vendor %+v", stripe)
	}
	if len(stripe.Services) != 2 {
		t.Fatalf("expected 2 deduplicated services, got %d", len(stripe.Services))
	}
	if got := stripe.Services[1].ResourceIdentity; got != "projects/acme/locations/us-central1/functions/billing" {
		t.Errorf("unexpected resource identity %q", got)
	}
	if stripe.Services[0].DisplayName != "checkout" || *stripe.Services[0].RequestRate != 500 {
		t.Errorf("unexpected service %+v", stripe.Services[0])
	}

	mail := out.Vendors[1]
	if mail.Category != "email" || mail.Criticality != "medium" {
		t.Errorf("expected discovered category and default criticality, got %+v", mail)
	}
	if mail.VendorID != "vendor_acme_mail" {
		t.Errorf("expected vendor_acme_mail, got %q", mail.VendorID)
	}
	if len(mail.Services) != 1 || mail.Services[0].ResourceIdentity != "projects/acme/resources/acme mail-service" {
		t.Errorf("expected placeholder service, got %+v", mail.Services)
	}
	if mail.Services[0].BusinessProcesses[0] != "general" {
		t.Errorf("expected default process, got %v", mail.Services[0].BusinessProcesses)
	}
}

func TestFromDiscovery_ServiceIDsAreSequential(t *testing.T) {
	doc := &depgraph.DiscoveryDocument{ProjectID: "p", Vendors: []depgraph.DiscoveredVendor{
		{Name: "Okta", Dependencies: []depgraph.DiscoveredDependency{{ServiceName: "a"}, {ServiceName: "b"}}},
		{Name: "Twilio", Dependencies: []depgraph.DiscoveredDependency{{ServiceName: "c"}}},
	}}
	out := FromDiscovery(doc, DefaultCatalog())

	var ids []string
	for _, v := range out.Vendors {
		for _, s := range v.Services {
			ids = append(ids, s.ServiceID)
		}
	}
	want := []string{"svc_001", "svc_002", "svc_003"}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("expected %s, got %s", want[i], ids[i])
		}
	}
}
