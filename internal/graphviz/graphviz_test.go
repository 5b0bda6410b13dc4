package graphviz

import (
	"bytes"
	"context"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/khazna/khazna/internal/graphstore"
)

// fakeGraph is a minimal in-memory graphstore.KnowledgeGraph.
type fakeGraph struct {
	mu       sync.Mutex
	entities map[string]graphstore.Entity
	rels     []graphstore.Relationship
}

func newFakeGraph() *fakeGraph {
	return &fakeGraph{entities: make(map[string]graphstore.Entity)}
}

func (g *fakeGraph) AddEntity(ctx context.Context, e graphstore.Entity) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.entities[e.ID] = e
	return nil
}

func (g *fakeGraph) GetEntity(ctx context.Context, id string) (*graphstore.Entity, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.entities[id]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (g *fakeGraph) GetEntityByName(ctx context.Context, entityType, name string) (*graphstore.Entity, error) {
	return nil, nil
}

func (g *fakeGraph) UpdateEntity(ctx context.Context, id string, attrs map[string]any) error {
	return nil
}

func (g *fakeGraph) DeleteEntity(ctx context.Context, id string) error { return nil }

func (g *fakeGraph) FindEntities(ctx context.Context, filter graphstore.EntityFilter) ([]graphstore.Entity, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]graphstore.Entity, 0, len(g.entities))
	for _, e := range g.entities {
		out = append(out, e)
	}
	return out, nil
}

func (g *fakeGraph) AddRelationship(ctx context.Context, rel graphstore.Relationship) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rels = append(g.rels, rel)
	return nil
}

func (g *fakeGraph) GetRelationships(ctx context.Context, entityID string, opts ...graphstore.RelQueryOpt) ([]graphstore.Relationship, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []graphstore.Relationship
	for _, r := range g.rels {
		if r.SourceID == entityID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (g *fakeGraph) DeleteRelationship(ctx context.Context, sourceID, targetID, relType string) error {
	return nil
}

func (g *fakeGraph) Neighbors(ctx context.Context, entityID string, depth int, opts ...graphstore.TraversalOpt) ([]graphstore.Entity, error) {
	return nil, nil
}

func (g *fakeGraph) FindPath(ctx context.Context, fromID, toID string, maxDepth int) ([]graphstore.Entity, error) {
	return nil, nil
}

func newTestService(t *testing.T) (*Service, *fakeGraph) {
	t.Helper()
	graph := newFakeGraph()

	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, graph.AddEntity(context.Background(), graphstore.Entity{
		ID: "p1", Type: "person", Name: "Omar", CreatedAt: now, UpdatedAt: now,
	}))
	require.NoError(t, graph.AddEntity(context.Background(), graphstore.Entity{
		ID: "proj1", Type: "project", Name: "Khazna", CreatedAt: now, UpdatedAt: now,
	}))
	require.NoError(t, graph.AddRelationship(context.Background(), graphstore.Relationship{
		SourceID: "p1", TargetID: "proj1", RelType: "owns", CreatedAt: now,
	}))

	return New(Deps{Graph: graph}), graph
}

func TestExport_ReturnsNodesAndEdges(t *testing.T) {
	svc, _ := newTestService(t)
	export, err := svc.Export(context.Background())
	require.NoError(t, err)
	require.Len(t, export.Nodes, 2)
	require.Len(t, export.Edges, 1)
	require.Equal(t, "owns", export.Edges[0].RelType)
}

func TestSchema_ListsDistinctTypes(t *testing.T) {
	svc, _ := newTestService(t)
	schema, err := svc.Schema(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"person", "project"}, schema.EntityTypes)
	require.Equal(t, []string{"owns"}, schema.RelationshipTypes)
}

func TestStats_CountsByType(t *testing.T) {
	svc, _ := newTestService(t)
	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, stats.NodeCount)
	require.Equal(t, 1, stats.EdgeCount)
	require.Equal(t, 1, stats.NodesByType["person"])
	require.Equal(t, 1, stats.EdgesByRelType["owns"])
}

func TestRenderPNG_ProducesDecodableImage(t *testing.T) {
	svc, _ := newTestService(t)
	data, err := svc.RenderPNG(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, data)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, imageSize, img.Bounds().Dx())
	require.Equal(t, imageSize, img.Bounds().Dy())
}

func TestRenderPNG_EmptyGraph(t *testing.T) {
	svc := New(Deps{Graph: newFakeGraph()})
	data, err := svc.RenderPNG(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, data)
}
