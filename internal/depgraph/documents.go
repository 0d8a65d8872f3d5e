package depgraph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DependencyDocument is the loader input, produced by discovery or curated
// by hand.
type DependencyDocument struct {
	Vendors []VendorEntry `json:"vendors" yaml:"vendors"`
}

// VendorEntry is one vendor in a dependency document.
type VendorEntry struct {
	Name        string         `json:"name" yaml:"name"`
	VendorID    string         `json:"vendor_id,omitempty" yaml:"vendor_id,omitempty"`
	Category    string         `json:"category,omitempty" yaml:"category,omitempty"`
	Criticality string         `json:"criticality,omitempty" yaml:"criticality,omitempty"`
	Services    []ServiceEntry `json:"services" yaml:"services"`
}

// ServiceEntry is one service depending on a vendor. GCPResource is the
// field name older discovery exports used for the resource path.
type ServiceEntry struct {
	ResourceIdentity  string   `json:"resource_identity,omitempty" yaml:"resource_identity,omitempty"`
	GCPResource       string   `json:"gcp_resource,omitempty" yaml:"gcp_resource,omitempty"`
	ServiceID         string   `json:"service_id,omitempty" yaml:"service_id,omitempty"`
	DisplayName       string   `json:"display_name,omitempty" yaml:"display_name,omitempty"`
	ResourceKind      string   `json:"resource_kind,omitempty" yaml:"resource_kind,omitempty"`
	RequestRate       *float64 `json:"request_rate,omitempty" yaml:"request_rate,omitempty" validate:"omitempty,gte=0"`
	CustomersAffected *int64   `json:"customers_affected,omitempty" yaml:"customers_affected,omitempty" validate:"omitempty,gte=0"`
	BusinessProcesses []string `json:"business_processes" yaml:"business_processes"`
}

// ResolvedIdentity returns the normalized resource path, never the short id.
func (s ServiceEntry) ResolvedIdentity() string {
	if id := ResourceIdentity(s.ResourceIdentity); id != "" {
		return id
	}
	return ResourceIdentity(s.GCPResource)
}

// ComplianceDocument is the static compliance dataset.
type ComplianceDocument struct {
	ControlMappings    map[string]map[string][]string `json:"control_mappings" yaml:"control_mappings"`
	ImpactWeights      map[string]map[string]float64  `json:"impact_weights" yaml:"impact_weights"`
	ComplianceBaseline map[string]float64             `json:"compliance_baseline" yaml:"compliance_baseline"`
}

// FrameworkKey strips the "_controls" suffix mapping documents use.
func FrameworkKey(key string) string {
	return strings.TrimSuffix(key, "_controls")
}

// BaselineKey is the compliance_baseline key for a framework.
func BaselineKey(framework string) string {
	return framework + "_score"
}

// DiscoveryDocument is what cloud resource discovery produces.
type DiscoveryDocument struct {
	ProjectID          string             `json:"project_id" yaml:"project_id"`
	Region             string             `json:"region,omitempty" yaml:"region,omitempty"`
	DiscoveryTimestamp string             `json:"discovery_timestamp" yaml:"discovery_timestamp"`
	Vendors            []DiscoveredVendor `json:"vendors" yaml:"vendors"`
}

// DiscoveredVendor is a vendor matched by discovery with the resources that
// reference it.
type DiscoveredVendor struct {
	Name         string                 `json:"name" yaml:"name"`
	Category     string                 `json:"category,omitempty" yaml:"category,omitempty"`
	Criticality  string                 `json:"criticality,omitempty" yaml:"criticality,omitempty"`
	Dependencies []DiscoveredDependency `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	Resources    []DiscoveredDependency `json:"resources,omitempty" yaml:"resources,omitempty"`
}

// AllDependencies returns dependencies and resources, which discovery
// exports use interchangeably.
func (v DiscoveredVendor) AllDependencies() []DiscoveredDependency {
	out := make([]DiscoveredDependency, 0, len(v.Dependencies)+len(v.Resources))
	out = append(out, v.Dependencies...)
	return append(out, v.Resources...)
}

// DiscoveredDependency is one resource referencing a vendor. ServiceName is
// usually the full platform resource path; ResourceName is the field some
// exports use instead.
type DiscoveredDependency struct {
	ServiceName  string `json:"service_name,omitempty" yaml:"service_name,omitempty"`
	ResourceName string `json:"resource_name,omitempty" yaml:"resource_name,omitempty"`
	ResourceType string `json:"resource_type,omitempty" yaml:"resource_type,omitempty"`
}

// Path returns the resource path or name as discovered.
func (d DiscoveredDependency) Path() string {
	if p := strings.TrimSpace(d.ServiceName); p != "" {
		return p
	}
	return strings.TrimSpace(d.ResourceName)
}

// Format is a document encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks the encoding from a file extension, JSON by default.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Decode reads a document of the given format into v.
func Decode(r io.Reader, format Format, v any) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return Malformed("decode", "empty document")
	}
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, v)
	default:
		err = json.Unmarshal(data, v)
	}
	if err != nil {
		return &Error{Kind: ErrMalformedDocument, Op: "decode", Msg: string(format), Err: err}
	}
	return nil
}

// DecodeDependencyDocument reads a dependency document.
func DecodeDependencyDocument(r io.Reader, format Format) (*DependencyDocument, error) {
	var doc DependencyDocument
	if err := Decode(r, format, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// DecodeComplianceDocument reads a compliance dataset.
func DecodeComplianceDocument(r io.Reader, format Format) (*ComplianceDocument, error) {
	var doc ComplianceDocument
	if err := Decode(r, format, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// DecodeDiscoveryDocument reads a discovery export.
func DecodeDiscoveryDocument(r io.Reader, format Format) (*DiscoveryDocument, error) {
	var doc DiscoveryDocument
	if err := Decode(r, format, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}
