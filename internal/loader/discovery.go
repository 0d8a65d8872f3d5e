package loader

import (
	"fmt"
	"strings"

	"github.com/efebarandurmaz/vendortwin/internal/depgraph"
)

// VendorMetadata enriches discovered vendors with what discovery cannot
// observe.
type VendorMetadata struct {
	Category          string   `json:"category" yaml:"category" mapstructure:"category"`
	Criticality       string   `json:"criticality" yaml:"criticality" mapstructure:"criticality"`
	BusinessProcesses []string `json:"business_processes" yaml:"business_processes" mapstructure:"business_processes"`
	RequestRate       float64  `json:"request_rate" yaml:"request_rate" mapstructure:"request_rate"`
	CustomersAffected int64    `json:"customers_affected" yaml:"customers_affected" mapstructure:"customers_affected"`
}

// Catalog maps vendor display names to metadata.
type Catalog map[string]VendorMetadata

// DefaultMetadata applies to vendors missing from the catalog.
var DefaultMetadata = VendorMetadata{
	Category:          "unknown",
	Criticality:       "medium",
	BusinessProcesses: []string{"general"},
	RequestRate:       100,
	CustomersAffected: 0,
}

// DefaultCatalog returns the built-in vendor catalog.
func DefaultCatalog() Catalog {
	return Catalog{
		"Stripe":   {"payment_processor", "critical", []string{"checkout", "refunds", "subscription_billing"}, 500, 50000},
		"Auth0":    {"authentication", "critical", []string{"user_login", "user_registration", "password_reset"}, 300, 100000},
		"SendGrid": {"email_service", "high", []string{"email_notifications", "transactional_emails"}, 200, 25000},
		"Twilio":   {"communication", "high", []string{"sms_notifications", "2fa_verification"}, 150, 30000},
		"Datadog":  {"monitoring", "medium", []string{"system_monitoring", "alerting"}, 100, 0},
		"MongoDB":  {"database", "critical", []string{"data_storage", "data_retrieval"}, 1000, 0},
		"PayPal":   {"payment_processor", "critical", []string{"checkout", "refunds"}, 400, 40000},
		"Okta":     {"authentication", "critical", []string{"sso", "user_management"}, 250, 80000},
	}
}

// lookup matches a vendor case-insensitively and returns the catalog's
// casing with the metadata.
func (c Catalog) lookup(key string) (string, VendorMetadata, bool) {
	for name, meta := range c {
		if depgraph.IdentityKey(name) == key {
			return name, meta, true
		}
	}
	return "", DefaultMetadata, false
}

const defaultRegion = "us-central1"

// FromDiscovery converts a discovery export into a dependency document.
//
// Vendors are deduplicated by identity key, the first casing seen winning
// unless the catalog knows the vendor. Services are keyed by their full
// platform resource path and deduplicated per vendor. A vendor with no
// discovered resources gets one placeholder service so it still appears
// in the graph.
func FromDiscovery(doc *depgraph.DiscoveryDocument, catalog Catalog) *depgraph.DependencyDocument {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	region := doc.Region
	if region == "" {
		region = defaultRegion
	}

	type merged struct {
		name      string
		category  string
		critical  string
		resources []depgraph.DiscoveredDependency
	}
	var order []string
	byKey := make(map[string]*merged)
	for _, v := range doc.Vendors {
		key := depgraph.IdentityKey(v.Name)
		if key == "" {
			continue
		}
		m, ok := byKey[key]
		if !ok {
			name := strings.TrimSpace(v.Name)
			if known, _, found := catalog.lookup(key); found {
				name = known
			}
			m = &merged{name: name, category: v.Category, critical: v.Criticality}
			byKey[key] = m
			order = append(order, key)
		}
		m.resources = append(m.resources, v.AllDependencies()...)
	}

	out := &depgraph.DependencyDocument{}
	counter := 0
	nextID := func() string {
		counter++
		return fmt.Sprintf("svc_%03d", counter)
	}

	for _, key := range order {
		m := byKey[key]
		_, meta, found := catalog.lookup(key)
		if !found {
			meta.Category = firstNonEmpty(m.category, meta.Category)
			meta.Criticality = firstNonEmpty(m.critical, meta.Criticality)
		}
		entry := depgraph.VendorEntry{
			Name:        m.name,
			VendorID:    "vendor_" + strings.NewReplacer(" ", "_", "-", "_").Replace(key),
			Category:    meta.Category,
			Criticality: meta.Criticality,
		}

		seen := make(map[string]bool)
		for _, dep := range m.resources {
			path := dep.Path()
			if path == "" {
				continue
			}
			kind := firstNonEmpty(dep.ResourceType, "unknown")
			rid := resourcePath(doc.ProjectID, region, kind, path)
			if seen[rid] {
				continue
			}
			seen[rid] = true
			entry.Services = append(entry.Services, serviceEntry(rid, shortName(path), kind, nextID(), meta))
		}
		if len(entry.Services) == 0 {
			name := key + "-service"
			rid := fmt.Sprintf("projects/%s/resources/%s", doc.ProjectID, name)
			entry.Services = append(entry.Services, serviceEntry(rid, name, "unknown", nextID(), meta))
		}
		out.Vendors = append(out.Vendors, entry)
	}
	return out
}

func serviceEntry(rid, name, kind, id string, meta VendorMetadata) depgraph.ServiceEntry {
	rate := meta.RequestRate
	customers := meta.CustomersAffected
	return depgraph.ServiceEntry{
		ResourceIdentity:  rid,
		ServiceID:         id,
		DisplayName:       name,
		ResourceKind:      kind,
		RequestRate:       &rate,
		CustomersAffected: &customers,
		BusinessProcesses: append([]string(nil), meta.BusinessProcesses...),
	}
}

// resourcePath returns path unchanged when it is already a full platform
// path, otherwise builds one from the project, region and resource kind.
func resourcePath(project, region, kind, path string) string {
	if strings.HasPrefix(path, "projects/") {
		return path
	}
	switch kind {
	case "cloud_function":
		return fmt.Sprintf("projects/%s/locations/%s/functions/%s", project, region, path)
	case "cloud_run":
		return fmt.Sprintf("projects/%s/locations/%s/services/%s", project, region, path)
	default:
		return fmt.Sprintf("projects/%s/resources/%s", project, path)
	}
}

func shortName(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 && i < len(path)-1 {
		return path[i+1:]
	}
	return path
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
