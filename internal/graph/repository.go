package graph

import (
	"context"

	"github.com/efebarandurmaz/vendortwin/internal/depgraph"
)

// Reader is the read side used on the simulation path.
type Reader interface {
	// VendorBlastRadius returns the distinct services that depend on the
	// vendor with the given identity key, ordered by resource identity.
	VendorBlastRadius(ctx context.Context, vendorKey string) ([]depgraph.AffectedService, error)
	// ListVendors returns every vendor ordered by identity key.
	ListVendors(ctx context.Context) ([]depgraph.Vendor, error)
	// Stats returns node counts per label and the relationship count.
	Stats(ctx context.Context) (depgraph.GraphStats, error)
}

// Writer is the write side used by the loader and maintenance passes. All
// upserts are idempotent and fill-only-if-null: a populated property is
// never overwritten.
type Writer interface {
	UpsertVendor(ctx context.Context, v depgraph.Vendor) error
	UpsertService(ctx context.Context, s depgraph.Service) error
	// LinkDependsOn merges the service -> vendor edge. Both nodes must exist.
	LinkDependsOn(ctx context.Context, resourceIdentity, vendorKey string) error
	// LinkSupports merges the business process node and the service -> process edge.
	LinkSupports(ctx context.Context, resourceIdentity, process string) error
	UpsertControl(ctx context.Context, c depgraph.ComplianceControl) error
	// LinkSatisfies merges the vendor -> control edge. Both nodes must exist.
	LinkSatisfies(ctx context.Context, vendorKey, controlID string) error

	// VendorGroups returns vendors sharing a case-folded name, groups of one
	// excluded.
	VendorGroups(ctx context.Context) ([]depgraph.DuplicateGroup, error)
	// ServiceGroups returns services sharing a resource identity.
	ServiceGroups(ctx context.Context) ([]depgraph.DuplicateGroup, error)
	// MergeVendors folds the duplicates of a plan into its canonical vendor
	// in one write transaction.
	MergeVendors(ctx context.Context, plan MergePlan) error
	// MergeServices folds the duplicates of a plan into its canonical service
	// in one write transaction.
	MergeServices(ctx context.Context, plan MergePlan) error

	// Clear removes every node this system owns.
	Clear(ctx context.Context) error
}

// Store is a full graph store adapter.
type Store interface {
	Reader
	Writer
	// EnsureSchema creates the uniqueness constraints. It fails while
	// duplicates exist, so run it after maintenance.
	EnsureSchema(ctx context.Context) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// MergePlan describes one duplicate group reconciliation.
//
// Edges of every duplicate are re-pointed onto the canonical node by merge,
// missing canonical properties are filled from the duplicates in order, the
// duplicates are detach-deleted, and finally the canonical identity property
// is set to Key. DisplayName, when set, fills an absent display_name.
type MergePlan struct {
	Key          string
	CanonicalID  string
	DuplicateIDs []string
	DisplayName  string
}

// FillProps returns the properties of dups, first one wins, that canonical
// is missing. Nil and empty string values count as missing.
func FillProps(canonical map[string]any, dups ...map[string]any) map[string]any {
	fill := make(map[string]any)
	for _, d := range dups {
		for k, v := range d {
			if isNull(v) || !isNull(canonical[k]) {
				continue
			}
			if _, ok := fill[k]; ok {
				continue
			}
			fill[k] = v
		}
	}
	return fill
}

func isNull(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}
