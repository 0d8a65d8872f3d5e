// Package memgraph is an in-process graph.Store with the same merge and
// lookup semantics as the Neo4j adapter. It backs tests and offline runs.
package memgraph

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/efebarandurmaz/vendortwin/internal/depgraph"
	"github.com/efebarandurmaz/vendortwin/internal/graph"
)

type node struct {
	id    string
	label depgraph.Label
	props map[string]any
}

type edge struct {
	from string
	kind depgraph.EdgeKind
	to   string
}

// Store is a mutex-guarded property graph held in memory.
type Store struct {
	mu     sync.RWMutex
	nextID int
	order  []string
	nodes  map[string]*node
	edges  map[edge]struct{}

	// Unavailable, when set, is returned by every operation.
	Unavailable error
}

// New returns an empty store.
func New() *Store {
	return &Store{nodes: make(map[string]*node), edges: make(map[edge]struct{})}
}

// AddNode inserts a node without any merge, as a legacy writer would have,
// and returns its element id.
func (s *Store) AddNode(label depgraph.Label, props map[string]any) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addNode(label, props)
}

// AddEdge inserts an edge between two element ids.
func (s *Store) AddEdge(from string, kind depgraph.EdgeKind, to string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.edges[edge{from, kind, to}] = struct{}{}
}

// Nodes returns the element ids and properties of every node with a label,
// in insertion order.
func (s *Store) Nodes(label depgraph.Label) []depgraph.NodeRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []depgraph.NodeRecord
	for _, id := range s.order {
		n := s.nodes[id]
		if n.label == label {
			out = append(out, depgraph.NodeRecord{ElementID: id, Props: copyProps(n.props)})
		}
	}
	return out
}

// EdgeCount returns the number of edges of a kind.
func (s *Store) EdgeCount(kind depgraph.EdgeKind) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for e := range s.edges {
		if e.kind == kind {
			count++
		}
	}
	return count
}

func (s *Store) addNode(label depgraph.Label, props map[string]any) string {
	s.nextID++
	id := fmt.Sprintf("mem:%d", s.nextID)
	s.nodes[id] = &node{id: id, label: label, props: copyProps(props)}
	s.order = append(s.order, id)
	return id
}

// find returns the first node, in insertion order, with label and an exact
// key match.
func (s *Store) find(label depgraph.Label, prop string, value any) *node {
	for _, id := range s.order {
		n := s.nodes[id]
		if n.label == label && n.props[prop] == value {
			return n
		}
	}
	return nil
}

// mergeNode creates a node or fills its null properties.
func (s *Store) mergeNode(label depgraph.Label, prop string, value any, props map[string]any) *node {
	n := s.find(label, prop, value)
	if n == nil {
		all := map[string]any{prop: value}
		for k, v := range props {
			if v != nil {
				all[k] = v
			}
		}
		return s.nodes[s.addNode(label, all)]
	}
	for k, v := range graph.FillProps(n.props, props) {
		n.props[k] = v
	}
	return n
}

func (s *Store) UpsertVendor(_ context.Context, v depgraph.Vendor) error {
	if s.Unavailable != nil {
		return depgraph.Unavailable("upsert vendor", s.Unavailable)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mergeNode(depgraph.LabelVendor, depgraph.PropVendorKey, v.IdentityKey, map[string]any{
		depgraph.PropDisplayName: nullable(v.DisplayName),
		depgraph.PropVendorID:    nullable(v.VendorID),
		depgraph.PropCategory:    nullable(v.Category),
		depgraph.PropCriticality: nullable(v.Criticality),
	})
	return nil
}

func (s *Store) UpsertService(_ context.Context, svc depgraph.Service) error {
	if s.Unavailable != nil {
		return depgraph.Unavailable("upsert service", s.Unavailable)
	}
	props := map[string]any{
		depgraph.PropServiceID:    nullable(svc.ServiceID),
		depgraph.PropDisplayName:  nullable(svc.DisplayName),
		depgraph.PropResourceKind: nullable(svc.ResourceKind),
	}
	if svc.RequestRate != nil {
		props[depgraph.PropRequestRate] = *svc.RequestRate
	}
	if svc.CustomersAffected != nil {
		props[depgraph.PropCustomersAffected] = *svc.CustomersAffected
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mergeNode(depgraph.LabelService, depgraph.PropResourceIdentity, svc.ResourceIdentity, props)
	return nil
}

func (s *Store) LinkDependsOn(_ context.Context, resourceIdentity, vendorKey string) error {
	if s.Unavailable != nil {
		return depgraph.Unavailable("link depends_on", s.Unavailable)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	svc := s.find(depgraph.LabelService, depgraph.PropResourceIdentity, resourceIdentity)
	v := s.find(depgraph.LabelVendor, depgraph.PropVendorKey, vendorKey)
	if svc != nil && v != nil {
		s.edges[edge{svc.id, depgraph.EdgeDependsOn, v.id}] = struct{}{}
	}
	return nil
}

func (s *Store) LinkSupports(_ context.Context, resourceIdentity, process string) error {
	if s.Unavailable != nil {
		return depgraph.Unavailable("link supports", s.Unavailable)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	svc := s.find(depgraph.LabelService, depgraph.PropResourceIdentity, resourceIdentity)
	if svc == nil {
		return nil
	}
	bp := s.mergeNode(depgraph.LabelBusinessProcess, depgraph.PropProcessName, process, nil)
	s.edges[edge{svc.id, depgraph.EdgeSupports, bp.id}] = struct{}{}
	return nil
}

func (s *Store) UpsertControl(_ context.Context, c depgraph.ComplianceControl) error {
	if s.Unavailable != nil {
		return depgraph.Unavailable("upsert control", s.Unavailable)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mergeNode(depgraph.LabelComplianceControl, depgraph.PropControlID, c.ControlID, map[string]any{
		depgraph.PropFramework: nullable(c.Framework),
	})
	return nil
}

func (s *Store) LinkSatisfies(_ context.Context, vendorKey, controlID string) error {
	if s.Unavailable != nil {
		return depgraph.Unavailable("link satisfies", s.Unavailable)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.find(depgraph.LabelVendor, depgraph.PropVendorKey, vendorKey)
	c := s.find(depgraph.LabelComplianceControl, depgraph.PropControlID, controlID)
	if v != nil && c != nil {
		s.edges[edge{v.id, depgraph.EdgeSatisfies, c.id}] = struct{}{}
	}
	return nil
}

func (s *Store) VendorBlastRadius(_ context.Context, vendorKey string) ([]depgraph.AffectedService, error) {
	if s.Unavailable != nil {
		return nil, depgraph.Unavailable("vendor blast radius", s.Unavailable)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make(map[string]bool)
	for e := range s.edges {
		if e.kind != depgraph.EdgeDependsOn {
			continue
		}
		v := s.nodes[e.to]
		if v.label == depgraph.LabelVendor && v.props[depgraph.PropVendorKey] == vendorKey {
			matched[e.from] = true
		}
	}

	services := make([]depgraph.AffectedService, 0, len(matched))
	for id := range matched {
		n := s.nodes[id]
		svc := depgraph.AffectedService{
			ResourceIdentity:  stringProp(n, depgraph.PropResourceIdentity),
			Name:              firstString(n, depgraph.PropDisplayName, depgraph.PropServiceID, depgraph.PropResourceIdentity),
			Type:              stringProp(n, depgraph.PropResourceKind),
			RPM:               floatProp(n, depgraph.PropRequestRate),
			CustomersAffected: intProp(n, depgraph.PropCustomersAffected),
			BusinessProcesses: []string{},
		}
		seen := make(map[string]bool)
		for e := range s.edges {
			if e.from != id || e.kind != depgraph.EdgeSupports {
				continue
			}
			name := stringProp(s.nodes[e.to], depgraph.PropProcessName)
			if name != "" && !seen[name] {
				seen[name] = true
				svc.BusinessProcesses = append(svc.BusinessProcesses, name)
			}
		}
		sort.Strings(svc.BusinessProcesses)
		services = append(services, svc)
	}
	sort.Slice(services, func(i, j int) bool {
		return services[i].ResourceIdentity < services[j].ResourceIdentity
	})
	return services, nil
}

func (s *Store) ListVendors(_ context.Context) ([]depgraph.Vendor, error) {
	if s.Unavailable != nil {
		return nil, depgraph.Unavailable("list vendors", s.Unavailable)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var vendors []depgraph.Vendor
	for _, id := range s.order {
		n := s.nodes[id]
		if n.label != depgraph.LabelVendor {
			continue
		}
		vendors = append(vendors, depgraph.Vendor{
			IdentityKey: stringProp(n, depgraph.PropVendorKey),
			DisplayName: stringProp(n, depgraph.PropDisplayName),
			VendorID:    stringProp(n, depgraph.PropVendorID),
			Category:    stringProp(n, depgraph.PropCategory),
			Criticality: stringProp(n, depgraph.PropCriticality),
		})
	}
	sort.SliceStable(vendors, func(i, j int) bool { return vendors[i].IdentityKey < vendors[j].IdentityKey })
	return vendors, nil
}

func (s *Store) Stats(_ context.Context) (depgraph.GraphStats, error) {
	if s.Unavailable != nil {
		return depgraph.GraphStats{}, depgraph.Unavailable("graph stats", s.Unavailable)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var stats depgraph.GraphStats
	for _, n := range s.nodes {
		switch n.label {
		case depgraph.LabelVendor:
			stats.Vendors++
		case depgraph.LabelService:
			stats.Services++
		case depgraph.LabelBusinessProcess:
			stats.BusinessProcesses++
		case depgraph.LabelComplianceControl:
			stats.ComplianceControls++
		}
	}
	stats.Relationships = len(s.edges)
	return stats, nil
}

func (s *Store) VendorGroups(_ context.Context) ([]depgraph.DuplicateGroup, error) {
	if s.Unavailable != nil {
		return nil, depgraph.Unavailable("vendor groups", s.Unavailable)
	}
	return s.groups(depgraph.LabelVendor, depgraph.PropVendorKey, depgraph.IdentityKey), nil
}

func (s *Store) ServiceGroups(_ context.Context) ([]depgraph.DuplicateGroup, error) {
	if s.Unavailable != nil {
		return nil, depgraph.Unavailable("service groups", s.Unavailable)
	}
	return s.groups(depgraph.LabelService, depgraph.PropResourceIdentity, depgraph.ResourceIdentity), nil
}

func (s *Store) groups(label depgraph.Label, prop string, keyOf func(string) string) []depgraph.DuplicateGroup {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byKey := make(map[string][]depgraph.NodeRecord)
	for _, id := range s.order {
		n := s.nodes[id]
		raw, ok := n.props[prop].(string)
		if n.label != label || !ok {
			continue
		}
		key := keyOf(raw)
		byKey[key] = append(byKey[key], depgraph.NodeRecord{ElementID: id, Props: copyProps(n.props)})
	}

	var groups []depgraph.DuplicateGroup
	for key, nodes := range byKey {
		if len(nodes) > 1 {
			groups = append(groups, depgraph.DuplicateGroup{Key: key, Nodes: nodes})
		}
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Key < groups[j].Key })
	return groups
}

func (s *Store) MergeVendors(_ context.Context, plan graph.MergePlan) error {
	if s.Unavailable != nil {
		return depgraph.Unavailable("merge vendors", s.Unavailable)
	}
	return s.merge(depgraph.LabelVendor, depgraph.PropVendorKey, plan)
}

func (s *Store) MergeServices(_ context.Context, plan graph.MergePlan) error {
	if s.Unavailable != nil {
		return depgraph.Unavailable("merge services", s.Unavailable)
	}
	return s.merge(depgraph.LabelService, depgraph.PropResourceIdentity, plan)
}

func (s *Store) merge(label depgraph.Label, keyProp string, plan graph.MergePlan) error {
	if len(plan.DuplicateIDs) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	canonical, ok := s.nodes[plan.CanonicalID]
	if !ok || canonical.label != label {
		return fmt.Errorf("canonical node %s not found", plan.CanonicalID)
	}
	dupSet := make(map[string]bool, len(plan.DuplicateIDs))
	var dupProps []map[string]any
	for _, id := range plan.DuplicateIDs {
		if n, ok := s.nodes[id]; ok && n.label == label && id != plan.CanonicalID {
			dupSet[id] = true
			dupProps = append(dupProps, n.props)
		}
	}

	var repointed []edge
	for e := range s.edges {
		switch {
		case dupSet[e.to]:
			repointed = append(repointed, edge{e.from, e.kind, canonical.id})
		case dupSet[e.from]:
			repointed = append(repointed, edge{canonical.id, e.kind, e.to})
		}
	}
	for _, e := range repointed {
		s.edges[e] = struct{}{}
	}

	fill := graph.FillProps(canonical.props, dupProps...)
	delete(fill, keyProp)
	for k, v := range fill {
		canonical.props[k] = v
	}
	if plan.DisplayName != "" && isNull(canonical.props[depgraph.PropDisplayName]) {
		canonical.props[depgraph.PropDisplayName] = plan.DisplayName
	}

	for e := range s.edges {
		if dupSet[e.from] || dupSet[e.to] {
			delete(s.edges, e)
		}
	}
	for id := range dupSet {
		delete(s.nodes, id)
	}
	kept := s.order[:0]
	for _, id := range s.order {
		if !dupSet[id] {
			kept = append(kept, id)
		}
	}
	s.order = kept

	canonical.props[keyProp] = plan.Key
	return nil
}

func (s *Store) Clear(_ context.Context) error {
	if s.Unavailable != nil {
		return depgraph.Unavailable("clear graph", s.Unavailable)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes = make(map[string]*node)
	s.edges = make(map[edge]struct{})
	s.order = nil
	return nil
}

// EnsureSchema reports the uniqueness violations a real store would refuse
// the constraints for.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if s.Unavailable != nil {
		return depgraph.Unavailable("ensure schema", s.Unavailable)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]bool)
	for _, id := range s.order {
		n := s.nodes[id]
		var key string
		switch n.label {
		case depgraph.LabelVendor:
			key = stringProp(n, depgraph.PropVendorKey)
		case depgraph.LabelService:
			key = stringProp(n, depgraph.PropResourceIdentity)
		default:
			continue
		}
		k := string(n.label) + "/" + key
		if seen[k] {
			return fmt.Errorf("ensure schema: %s %q is not unique", n.label, key)
		}
		seen[k] = true
	}
	return nil
}

func (s *Store) Ping(context.Context) error {
	return depgraph.Unavailable("memgraph ping", s.Unavailable)
}

func (s *Store) Close(context.Context) error { return nil }

func copyProps(props map[string]any) map[string]any {
	out := make(map[string]any, len(props))
	for k, v := range props {
		out[k] = v
	}
	return out
}

func nullable(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

func isNull(v any) bool {
	if v == nil {
		return true
	}
	str, ok := v.(string)
	return ok && str == ""
}

func stringProp(n *node, key string) string {
	s, _ := n.props[key].(string)
	return s
}

func firstString(n *node, keys ...string) string {
	for _, k := range keys {
		if s := stringProp(n, k); s != "" {
			return s
		}
	}
	return ""
}

func floatProp(n *node, key string) float64 {
	switch v := n.props[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	default:
		return 0
	}
}

func intProp(n *node, key string) int64 {
	switch v := n.props[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}

var _ graph.Store = (*Store)(nil)
