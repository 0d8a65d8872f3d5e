package depgraph

import (
	"reflect"
	"testing"
)

func TestIdentityKey(t *testing.T) {
	cases := map[string]string{
		"Stripe":     "stripe",
		"  STRIPE  ": "stripe",
		"stripe":     "stripe",
		"Acme Corp":  "acme corp",
		"   ":        "",
	}
	for in, want := range cases {
		if got := IdentityKey(in); got != want {
			t.Errorf("IdentityKey(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestResourceIdentity(t *testing.T) {
	got := ResourceIdentity("  projects/p/locations/us-central1/services/api \n")
	if got != "projects/p/locations/us-central1/services/api" {
		t.Errorf("expected trimmed path, got %q", got)
	}
}

func TestDisplayName(t *testing.T) {
	cases := map[string]string{
		"stripe":    "Stripe",
		"Stripe":    "Stripe",
		"  STRIPE ": "STRIPE",
		"sendgrid":  "SendGrid",
		"auth0":     "Auth0",
		"acme corp": "Acme corp",
		"":          "",
		"  ":        "",
		"unknownco": "Unknownco",
	}
	for in, want := range cases {
		if got := DisplayName(in); got != want {
			t.Errorf("DisplayName(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestIsAllLower(t *testing.T) {
	if !IsAllLower("stripe") {
		t.Error("expected stripe to be all lower")
	}
	if IsAllLower("Stripe") {
		t.Error("expected Stripe not to be all lower")
	}
	if IsAllLower("123") {
		t.Error("expected no letters to be false")
	}
}

func TestLookupCandidates(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"stripe", []string{"Stripe", "stripe"}},
		{"Stripe", []string{"Stripe", "stripe"}},
		{"acme corp", []string{"Acme corp", "acme corp", "Acme Corp"}},
	}
	for _, c := range cases {
		got := LookupCandidates(c.in)
		if !reflect.DeepEqual(got, c.want) {
			t.Errorf("LookupCandidates(%q): expected %v, got %v", c.in, c.want, got)
		}
	}
}
