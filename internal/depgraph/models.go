package depgraph

// Label is a node label in the vendor dependency graph.
type Label string

const (
	LabelVendor            Label = "Vendor"
	LabelService           Label = "Service"
	LabelBusinessProcess   Label = "BusinessProcess"
	LabelComplianceControl Label = "ComplianceControl"
)

// EdgeKind classifies relationships
type EdgeKind string

const (
	EdgeDependsOn EdgeKind = "DEPENDS_ON" // service depends on vendor
	EdgeSupports  EdgeKind = "SUPPORTS"   // service supports business process
	EdgeSatisfies EdgeKind = "SATISFIES"  // vendor is required to satisfy control
)

// Vendor is a third-party service provider. Empty strings are treated as
// absent values when merged into the graph.
type Vendor struct {
	IdentityKey string `json:"identity_key"`
	DisplayName string `json:"display_name,omitempty"`
	VendorID    string `json:"vendor_id,omitempty"`
	Category    string `json:"category,omitempty"`
	Criticality string `json:"criticality,omitempty"`
}

// Service is an internal compute resource. ResourceIdentity is the durable
// key; ServiceID is the short id a discovery run generated and is not stable.
type Service struct {
	ResourceIdentity  string   `json:"resource_identity"`
	ServiceID         string   `json:"service_id,omitempty"`
	DisplayName       string   `json:"display_name,omitempty"`
	ResourceKind      string   `json:"resource_kind,omitempty"`
	RequestRate       *float64 `json:"request_rate,omitempty"`
	CustomersAffected *int64   `json:"customers_affected,omitempty"`
}

// BusinessProcess is a pure tag node, created on first reference.
type BusinessProcess struct {
	Name string `json:"name"`
}

// ComplianceControl is a control identifier within a framework.
type ComplianceControl struct {
	ControlID string `json:"control_id"`
	Framework string `json:"framework"`
}

// AffectedService is one service reached from a failed vendor.
type AffectedService struct {
	ResourceIdentity  string   `json:"resource_identity"`
	Name              string   `json:"name"`
	Type              string   `json:"type"`
	RPM               float64  `json:"rpm"`
	CustomersAffected int64    `json:"customers_affected"`
	BusinessProcesses []string `json:"business_processes"`
}

// GraphStats holds node and relationship counts.
type GraphStats struct {
	Vendors            int `json:"vendors"`
	Services           int `json:"services"`
	BusinessProcesses  int `json:"business_processes"`
	ComplianceControls int `json:"compliance_controls"`
	Relationships      int `json:"relationships"`
}

// NodeRecord is a raw node as returned by duplicate detection.
type NodeRecord struct {
	ElementID string         `json:"element_id"`
	Props     map[string]any `json:"props"`
}

// NonNullCount returns the number of properties with a value.
func (n NodeRecord) NonNullCount() int {
	count := 0
	for _, v := range n.Props {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok && s == "" {
			continue
		}
		count++
	}
	return count
}

// StringProp returns a string property or "".
func (n NodeRecord) StringProp(key string) string {
	if s, ok := n.Props[key].(string); ok {
		return s
	}
	return ""
}

// DuplicateGroup is a set of nodes sharing one identity key. Nodes are in
// encounter order.
type DuplicateGroup struct {
	Key   string       `json:"key"`
	Nodes []NodeRecord `json:"nodes"`
}

// Property names shared by every store implementation.
const (
	PropVendorKey         = "name"
	PropDisplayName       = "display_name"
	PropCategory          = "category"
	PropCriticality       = "criticality"
	PropVendorID          = "vendor_id"
	PropResourceIdentity  = "resource_identity"
	PropServiceID         = "service_id"
	PropResourceKind      = "resource_kind"
	PropRequestRate       = "request_rate"
	PropCustomersAffected = "customers_affected"
	PropProcessName       = "name"
	PropControlID         = "control_id"
	PropFramework         = "framework"
)
