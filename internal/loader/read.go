package loader

import (
	"context"

	"github.com/efebarandurmaz/vendortwin/internal/depgraph"
	"github.com/efebarandurmaz/vendortwin/internal/source"
)

// ReadDependencies decodes a dependency document from a local path or a
// gs:// URI. With discovery set the location holds a cloud discovery export,
// which is converted through catalog first.
func ReadDependencies(ctx context.Context, location string, opts source.Options, discovery bool, catalog Catalog) (*depgraph.DependencyDocument, error) {
	if discovery {
		var doc depgraph.DiscoveryDocument
		if err := source.Decode(ctx, location, opts, &doc); err != nil {
			return nil, err
		}
		if catalog == nil {
			catalog = DefaultCatalog()
		}
		return FromDiscovery(&doc, catalog), nil
	}
	var doc depgraph.DependencyDocument
	if err := source.Decode(ctx, location, opts, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// ReadCompliance decodes a compliance dataset.
func ReadCompliance(ctx context.Context, location string, opts source.Options) (*depgraph.ComplianceDocument, error) {
	var doc depgraph.ComplianceDocument
	if err := source.Decode(ctx, location, opts, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}
