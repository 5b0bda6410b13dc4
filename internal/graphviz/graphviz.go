// Package graphviz implements spec §6's "Graph viz" endpoints: a JSON
// export of the graph's nodes/edges, a schema summary of the entity/
// relationship types in use, aggregate stats, and a rendered PNG preview.
//
// No example repo ships a graph-layout or rendering library, and a real
// force-directed layout is out of proportion to what this module needs —
// the PNG renderer places nodes on a simple circular layout and draws
// straight edges, using only the standard library's image/png.
package graphviz

import (
	"context"
	"fmt"
	"sort"

	"github.com/khazna/khazna/internal/graphstore"
)

// Deps are the collaborators the Service reads from.
type Deps struct {
	Graph graphstore.KnowledgeGraph
}

// Service answers graph-visualisation queries.
type Service struct {
	deps Deps
}

// New returns a Service backed by graph.
func New(deps Deps) *Service {
	return &Service{deps: deps}
}

// Node is one entity rendered for export/drawing.
type Node struct {
	ID         string
	Type       string
	Name       string
	Attributes map[string]any
}

// Edge is one relationship rendered for export/drawing.
type Edge struct {
	SourceID string
	TargetID string
	RelType  string
}

// Export is the full graph dump for spec §6's "Graph viz: export"
// endpoint.
type Export struct {
	Nodes []Node
	Edges []Edge
}

// Export returns every entity and relationship in the graph (spec §4.10's
// `MATCH (n)` / `MATCH ()-[r]->()` shape, reused here for visualisation
// rather than backup).
func (s *Service) Export(ctx context.Context) (*Export, error) {
	entities, err := s.deps.Graph.FindEntities(ctx, graphstore.EntityFilter{})
	if err != nil {
		return nil, fmt.Errorf("graphviz: export entities: %w", err)
	}

	nodes := make([]Node, 0, len(entities))
	var edges []Edge
	for _, e := range entities {
		nodes = append(nodes, Node{ID: e.ID, Type: e.Type, Name: e.Name, Attributes: e.Attributes})
		rels, err := s.deps.Graph.GetRelationships(ctx, e.ID)
		if err != nil {
			return nil, fmt.Errorf("graphviz: export relationships for %q: %w", e.ID, err)
		}
		for _, r := range rels {
			edges = append(edges, Edge{SourceID: r.SourceID, TargetID: r.TargetID, RelType: r.RelType})
		}
	}
	return &Export{Nodes: nodes, Edges: edges}, nil
}

// Schema summarizes the entity and relationship types actually present in
// the graph, for spec §6's "Graph viz: schema" endpoint.
type Schema struct {
	EntityTypes       []string
	RelationshipTypes []string
}

// Schema returns the distinct entity and relationship types currently in
// use, sorted alphabetically.
func (s *Service) Schema(ctx context.Context) (*Schema, error) {
	export, err := s.Export(ctx)
	if err != nil {
		return nil, err
	}

	entityTypes := map[string]struct{}{}
	relTypes := map[string]struct{}{}
	for _, n := range export.Nodes {
		entityTypes[n.Type] = struct{}{}
	}
	for _, e := range export.Edges {
		relTypes[e.RelType] = struct{}{}
	}

	return &Schema{
		EntityTypes:       sortedKeys(entityTypes),
		RelationshipTypes: sortedKeys(relTypes),
	}, nil
}

// Stats aggregates node/edge counts for spec §6's "Graph viz: stats"
// endpoint.
type Stats struct {
	NodeCount      int
	EdgeCount      int
	NodesByType    map[string]int
	EdgesByRelType map[string]int
}

// Stats computes aggregate counts over the current graph.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	export, err := s.Export(ctx)
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		NodeCount:      len(export.Nodes),
		EdgeCount:      len(export.Edges),
		NodesByType:    map[string]int{},
		EdgesByRelType: map[string]int{},
	}
	for _, n := range export.Nodes {
		stats.NodesByType[n.Type]++
	}
	for _, e := range export.Edges {
		stats.EdgesByRelType[e.RelType]++
	}
	return stats, nil
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
