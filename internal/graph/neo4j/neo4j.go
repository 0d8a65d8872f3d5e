package neo4j

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/efebarandurmaz/vendortwin/internal/depgraph"
	"github.com/efebarandurmaz/vendortwin/internal/graph"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Config holds connection settings.
type Config struct {
	URI          string
	Username     string
	Password     string
	Database     string
	QueryTimeout time.Duration
}

// Store implements graph.Store using Neo4j.
type Store struct {
	driver   neo4j.DriverWithContext
	database string
	timeout  time.Duration
}

// New creates a Neo4j-backed store and verifies connectivity.
func New(ctx context.Context, cfg Config) (*Store, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, depgraph.Unavailable("neo4j driver", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, depgraph.Unavailable("neo4j connectivity", err)
	}
	return &Store{driver: driver, database: cfg.Database, timeout: cfg.QueryTimeout}, nil
}

func (s *Store) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: mode, DatabaseName: s.database})
}

func (s *Store) txConfig() []func(*neo4j.TransactionConfig) {
	if s.timeout <= 0 {
		return nil
	}
	return []func(*neo4j.TransactionConfig){neo4j.WithTxTimeout(s.timeout)}
}

func (s *Store) write(ctx context.Context, op string, work neo4j.ManagedTransactionWork) (any, error) {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	res, err := session.ExecuteWrite(ctx, work, s.txConfig()...)
	if err != nil {
		return nil, depgraph.Unavailable(op, err)
	}
	return res, nil
}

func (s *Store) read(ctx context.Context, op string, work neo4j.ManagedTransactionWork) (any, error) {
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	res, err := session.ExecuteRead(ctx, work, s.txConfig()...)
	if err != nil {
		return nil, depgraph.Unavailable(op, err)
	}
	return res, nil
}

func (s *Store) exec(ctx context.Context, op, query string, params map[string]any) error {
	_, err := s.write(ctx, op, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		_, err = res.Consume(ctx)
		return nil, err
	})
	return err
}

const upsertVendorQuery = `
MERGE (v:Vendor {name: $key})
ON CREATE SET v.display_name = $display_name,
              v.vendor_id = $vendor_id,
              v.category = $category,
              v.criticality = $criticality
ON MATCH SET v.display_name = COALESCE(v.display_name, $display_name),
             v.vendor_id = COALESCE(v.vendor_id, $vendor_id),
             v.category = COALESCE(v.category, $category),
             v.criticality = COALESCE(v.criticality, $criticality)`

func (s *Store) UpsertVendor(ctx context.Context, v depgraph.Vendor) error {
	return s.exec(ctx, "upsert vendor", upsertVendorQuery, map[string]any{
		"key":          v.IdentityKey,
		"display_name": nullable(v.DisplayName),
		"vendor_id":    nullable(v.VendorID),
		"category":     nullable(v.Category),
		"criticality":  nullable(v.Criticality),
	})
}

const upsertServiceQuery = `
MERGE (s:Service {resource_identity: $rid})
ON CREATE SET s.service_id = $service_id,
              s.display_name = $display_name,
              s.resource_kind = $resource_kind,
              s.request_rate = $request_rate,
              s.customers_affected = $customers_affected
ON MATCH SET s.service_id = COALESCE(s.service_id, $service_id),
             s.display_name = COALESCE(s.display_name, $display_name),
             s.resource_kind = COALESCE(s.resource_kind, $resource_kind),
             s.request_rate = COALESCE(s.request_rate, $request_rate),
             s.customers_affected = COALESCE(s.customers_affected, $customers_affected)`

func (s *Store) UpsertService(ctx context.Context, svc depgraph.Service) error {
	params := map[string]any{
		"rid":                svc.ResourceIdentity,
		"service_id":         nullable(svc.ServiceID),
		"display_name":       nullable(svc.DisplayName),
		"resource_kind":      nullable(svc.ResourceKind),
		"request_rate":       nil,
		"customers_affected": nil,
	}
	if svc.RequestRate != nil {
		params["request_rate"] = *svc.RequestRate
	}
	if svc.CustomersAffected != nil {
		params["customers_affected"] = *svc.CustomersAffected
	}
	return s.exec(ctx, "upsert service", upsertServiceQuery, params)
}

func (s *Store) LinkDependsOn(ctx context.Context, resourceIdentity, vendorKey string) error {
	return s.exec(ctx, "link depends_on",
		"MATCH (s:Service {resource_identity: $rid}) "+
			"MATCH (v:Vendor {name: $key}) "+
			"MERGE (s)-[:DEPENDS_ON]->(v)",
		map[string]any{"rid": resourceIdentity, "key": vendorKey})
}

func (s *Store) LinkSupports(ctx context.Context, resourceIdentity, process string) error {
	return s.exec(ctx, "link supports",
		"MATCH (s:Service {resource_identity: $rid}) "+
			"MERGE (bp:BusinessProcess {name: $name}) "+
			"MERGE (s)-[:SUPPORTS]->(bp)",
		map[string]any{"rid": resourceIdentity, "name": process})
}

func (s *Store) UpsertControl(ctx context.Context, c depgraph.ComplianceControl) error {
	return s.exec(ctx, "upsert control",
		"MERGE (c:ComplianceControl {control_id: $id}) "+
			"ON CREATE SET c.framework = $framework "+
			"ON MATCH SET c.framework = COALESCE(c.framework, $framework)",
		map[string]any{"id": c.ControlID, "framework": nullable(c.Framework)})
}

func (s *Store) LinkSatisfies(ctx context.Context, vendorKey, controlID string) error {
	return s.exec(ctx, "link satisfies",
		"MATCH (v:Vendor {name: $key}) "+
			"MATCH (c:ComplianceControl {control_id: $id}) "+
			"MERGE (v)-[:SATISFIES]->(c)",
		map[string]any{"key": vendorKey, "id": controlID})
}

const blastRadiusQuery = `
MATCH (s:Service)-[:DEPENDS_ON]->(:Vendor {name: $key})
WITH DISTINCT s
OPTIONAL MATCH (s)-[:SUPPORTS]->(bp:BusinessProcess)
WITH s, collect(DISTINCT bp.name) AS processes
RETURN s.resource_identity AS resource_identity,
       COALESCE(s.display_name, s.service_id, s.resource_identity) AS name,
       COALESCE(s.resource_kind, '') AS type,
       COALESCE(s.request_rate, 0) AS rpm,
       COALESCE(s.customers_affected, 0) AS customers,
       processes
ORDER BY resource_identity`

func (s *Store) VendorBlastRadius(ctx context.Context, vendorKey string) ([]depgraph.AffectedService, error) {
	res, err := s.read(ctx, "vendor blast radius", func(tx neo4j.ManagedTransaction) (any, error) {
		records, err := tx.Run(ctx, blastRadiusQuery, map[string]any{"key": vendorKey})
		if err != nil {
			return nil, err
		}
		var services []depgraph.AffectedService
		for records.Next(ctx) {
			rec := records.Record()
			rid, _ := rec.Get("resource_identity")
			name, _ := rec.Get("name")
			kind, _ := rec.Get("type")
			rpm, _ := rec.Get("rpm")
			customers, _ := rec.Get("customers")
			processes, _ := rec.Get("processes")

			svc := depgraph.AffectedService{
				ResourceIdentity:  asString(rid),
				Name:              asString(name),
				Type:              asString(kind),
				RPM:               asFloat(rpm),
				CustomersAffected: asInt(customers),
				BusinessProcesses: []string{},
			}
			if list, ok := processes.([]any); ok {
				for _, p := range list {
					if name := asString(p); name != "" {
						svc.BusinessProcesses = append(svc.BusinessProcesses, name)
					}
				}
			}
			sort.Strings(svc.BusinessProcesses)
			services = append(services, svc)
		}
		return services, records.Err()
	})
	if err != nil {
		return nil, err
	}
	services, _ := res.([]depgraph.AffectedService)
	return services, nil
}

func (s *Store) ListVendors(ctx context.Context) ([]depgraph.Vendor, error) {
	res, err := s.read(ctx, "list vendors", func(tx neo4j.ManagedTransaction) (any, error) {
		records, err := tx.Run(ctx,
			"MATCH (v:Vendor) RETURN v.name AS name, v.display_name AS display_name, "+
				"v.vendor_id AS vendor_id, v.category AS category, v.criticality AS criticality "+
				"ORDER BY name",
			nil)
		if err != nil {
			return nil, err
		}
		var vendors []depgraph.Vendor
		for records.Next(ctx) {
			rec := records.Record()
			name, _ := rec.Get("name")
			display, _ := rec.Get("display_name")
			id, _ := rec.Get("vendor_id")
			category, _ := rec.Get("category")
			criticality, _ := rec.Get("criticality")
			vendors = append(vendors, depgraph.Vendor{
				IdentityKey: asString(name),
				DisplayName: asString(display),
				VendorID:    asString(id),
				Category:    asString(category),
				Criticality: asString(criticality),
			})
		}
		return vendors, records.Err()
	})
	if err != nil {
		return nil, err
	}
	vendors, _ := res.([]depgraph.Vendor)
	return vendors, nil
}

func (s *Store) Stats(ctx context.Context) (depgraph.GraphStats, error) {
	res, err := s.read(ctx, "graph stats", func(tx neo4j.ManagedTransaction) (any, error) {
		count := func(query string) (int, error) {
			records, err := tx.Run(ctx, query, nil)
			if err != nil {
				return 0, err
			}
			rec, err := records.Single(ctx)
			if err != nil {
				return 0, err
			}
			c, _ := rec.Get("c")
			return int(asInt(c)), nil
		}

		var stats depgraph.GraphStats
		targets := []struct {
			label depgraph.Label
			dst   *int
		}{
			{depgraph.LabelVendor, &stats.Vendors},
			{depgraph.LabelService, &stats.Services},
			{depgraph.LabelBusinessProcess, &stats.BusinessProcesses},
			{depgraph.LabelComplianceControl, &stats.ComplianceControls},
		}
		for _, t := range targets {
			n, err := count(fmt.Sprintf("MATCH (n:%s) RETURN count(n) AS c", t.label))
			if err != nil {
				return nil, err
			}
			*t.dst = n
		}
		n, err := count("MATCH ()-[r]->() RETURN count(r) AS c")
		if err != nil {
			return nil, err
		}
		stats.Relationships = n
		return stats, nil
	})
	if err != nil {
		return depgraph.GraphStats{}, err
	}
	stats, _ := res.(depgraph.GraphStats)
	return stats, nil
}

func (s *Store) VendorGroups(ctx context.Context) ([]depgraph.DuplicateGroup, error) {
	return s.groups(ctx, "vendor groups",
		"MATCH (v:Vendor) WHERE v.name IS NOT NULL "+
			"WITH toLower(trim(v.name)) AS key, collect({id: elementId(v), props: properties(v)}) AS nodes "+
			"WHERE size(nodes) > 1 "+
			"RETURN key, nodes ORDER BY key")
}

func (s *Store) ServiceGroups(ctx context.Context) ([]depgraph.DuplicateGroup, error) {
	return s.groups(ctx, "service groups",
		"MATCH (s:Service) WHERE s.resource_identity IS NOT NULL "+
			"WITH trim(s.resource_identity) AS key, collect({id: elementId(s), props: properties(s)}) AS nodes "+
			"WHERE size(nodes) > 1 "+
			"RETURN key, nodes ORDER BY key")
}

func (s *Store) groups(ctx context.Context, op, query string) ([]depgraph.DuplicateGroup, error) {
	res, err := s.read(ctx, op, func(tx neo4j.ManagedTransaction) (any, error) {
		records, err := tx.Run(ctx, query, nil)
		if err != nil {
			return nil, err
		}
		var groups []depgraph.DuplicateGroup
		for records.Next(ctx) {
			rec := records.Record()
			key, _ := rec.Get("key")
			nodes, _ := rec.Get("nodes")
			group := depgraph.DuplicateGroup{Key: asString(key)}
			list, _ := nodes.([]any)
			for _, item := range list {
				m, ok := item.(map[string]any)
				if !ok {
					continue
				}
				props, _ := m["props"].(map[string]any)
				group.Nodes = append(group.Nodes, depgraph.NodeRecord{ElementID: asString(m["id"]), Props: props})
			}
			groups = append(groups, group)
		}
		return groups, records.Err()
	})
	if err != nil {
		return nil, err
	}
	groups, _ := res.([]depgraph.DuplicateGroup)
	return groups, nil
}

// Edge re-pointing per label. Every statement merges, so replaying a plan
// never duplicates an edge.
var repointQueries = map[depgraph.Label][]string{
	depgraph.LabelVendor: {
		"MATCH (c:Vendor) WHERE elementId(c) = $canonical " +
			"MATCH (s:Service)-[:DEPENDS_ON]->(d:Vendor) WHERE elementId(d) IN $duplicates " +
			"MERGE (s)-[:DEPENDS_ON]->(c)",
		"MATCH (c:Vendor) WHERE elementId(c) = $canonical " +
			"MATCH (d:Vendor)-[:SATISFIES]->(cc:ComplianceControl) WHERE elementId(d) IN $duplicates " +
			"MERGE (c)-[:SATISFIES]->(cc)",
	},
	depgraph.LabelService: {
		"MATCH (c:Service) WHERE elementId(c) = $canonical " +
			"MATCH (d:Service)-[:DEPENDS_ON]->(v:Vendor) WHERE elementId(d) IN $duplicates " +
			"MERGE (c)-[:DEPENDS_ON]->(v)",
		"MATCH (c:Service) WHERE elementId(c) = $canonical " +
			"MATCH (d:Service)-[:SUPPORTS]->(bp:BusinessProcess) WHERE elementId(d) IN $duplicates " +
			"MERGE (c)-[:SUPPORTS]->(bp)",
	},
}

var keyProps = map[depgraph.Label]string{
	depgraph.LabelVendor:  depgraph.PropVendorKey,
	depgraph.LabelService: depgraph.PropResourceIdentity,
}

func (s *Store) MergeVendors(ctx context.Context, plan graph.MergePlan) error {
	return s.merge(ctx, depgraph.LabelVendor, plan)
}

func (s *Store) MergeServices(ctx context.Context, plan graph.MergePlan) error {
	return s.merge(ctx, depgraph.LabelService, plan)
}

func (s *Store) merge(ctx context.Context, label depgraph.Label, plan graph.MergePlan) error {
	if len(plan.DuplicateIDs) == 0 {
		return nil
	}
	params := map[string]any{"canonical": plan.CanonicalID, "duplicates": plan.DuplicateIDs}

	_, err := s.write(ctx, "merge "+string(label), func(tx neo4j.ManagedTransaction) (any, error) {
		records, err := tx.Run(ctx,
			fmt.Sprintf("MATCH (n:%s) WHERE elementId(n) = $canonical OR elementId(n) IN $duplicates "+
				"RETURN elementId(n) AS id, properties(n) AS props", label),
			params)
		if err != nil {
			return nil, err
		}
		props := make(map[string]map[string]any)
		for records.Next(ctx) {
			rec := records.Record()
			id, _ := rec.Get("id")
			p, _ := rec.Get("props")
			m, _ := p.(map[string]any)
			props[asString(id)] = m
		}
		if err := records.Err(); err != nil {
			return nil, err
		}
		canonical, ok := props[plan.CanonicalID]
		if !ok {
			return nil, fmt.Errorf("canonical node %s not found", plan.CanonicalID)
		}

		for _, q := range repointQueries[label] {
			if _, err := tx.Run(ctx, q, params); err != nil {
				return nil, err
			}
		}

		dups := make([]map[string]any, 0, len(plan.DuplicateIDs))
		for _, id := range plan.DuplicateIDs {
			if p, ok := props[id]; ok {
				dups = append(dups, p)
			}
		}
		fill := graph.FillProps(canonical, dups...)
		delete(fill, keyProps[label])
		if plan.DisplayName != "" && isNull(canonical[depgraph.PropDisplayName]) && isNull(fill[depgraph.PropDisplayName]) {
			fill[depgraph.PropDisplayName] = plan.DisplayName
		}

		if _, err := tx.Run(ctx,
			fmt.Sprintf("MATCH (d:%s) WHERE elementId(d) IN $duplicates DETACH DELETE d", label),
			params); err != nil {
			return nil, err
		}

		fill[keyProps[label]] = plan.Key
		if _, err := tx.Run(ctx,
			fmt.Sprintf("MATCH (c:%s) WHERE elementId(c) = $canonical SET c += $fill", label),
			map[string]any{"canonical": plan.CanonicalID, "fill": fill}); err != nil {
			return nil, err
		}
		return nil, nil
	})
	return err
}

func (s *Store) Clear(ctx context.Context) error {
	return s.exec(ctx, "clear graph",
		"MATCH (n) WHERE n:Vendor OR n:Service OR n:BusinessProcess OR n:ComplianceControl DETACH DELETE n",
		nil)
}

var schemaStatements = []string{
	"CREATE CONSTRAINT vendor_name IF NOT EXISTS FOR (v:Vendor) REQUIRE v.name IS UNIQUE",
	"CREATE CONSTRAINT service_resource_identity IF NOT EXISTS FOR (s:Service) REQUIRE s.resource_identity IS UNIQUE",
	"CREATE CONSTRAINT business_process_name IF NOT EXISTS FOR (bp:BusinessProcess) REQUIRE bp.name IS UNIQUE",
	"CREATE CONSTRAINT compliance_control_id IF NOT EXISTS FOR (c:ComplianceControl) REQUIRE c.control_id IS UNIQUE",
}

// EnsureSchema runs each constraint in its own auto-commit transaction;
// schema and data writes cannot share one.
func (s *Store) EnsureSchema(ctx context.Context) error {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	for _, stmt := range schemaStatements {
		res, err := session.Run(ctx, stmt, nil, s.txConfig()...)
		if err != nil {
			return depgraph.Unavailable("ensure schema", err)
		}
		if _, err := res.Consume(ctx); err != nil {
			return depgraph.Unavailable("ensure schema", err)
		}
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return depgraph.Unavailable("neo4j ping", s.driver.VerifyConnectivity(ctx))
}

func (s *Store) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

func nullable(s string) any {
	if s == "" {
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

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	default:
		return 0
	}
}

func asInt(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case float64:
		return int64(n)
	default:
		return 0
	}
}

var _ graph.Store = (*Store)(nil)
