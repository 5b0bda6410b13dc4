package backup

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/khazna/khazna/internal/entityresolve"
	"github.com/khazna/khazna/internal/graphsvc"
	"github.com/khazna/khazna/internal/graphstore"
	"github.com/khazna/khazna/internal/memstore"
	"github.com/khazna/khazna/internal/vectorstore"
	"github.com/khazna/khazna/pkg/embeddings"
	"github.com/khazna/khazna/pkg/llmgateway"
	"github.com/khazna/khazna/pkg/llmgateway/mock"
)

// fakeGraph is a minimal in-memory graphstore.GraphRAGQuerier.
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
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, e := range g.entities {
		if e.Type == entityType && e.Name == name {
			return &e, nil
		}
	}
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

func (g *fakeGraph) QueryWithContext(ctx context.Context, query string, graphScope []string) ([]graphstore.ContextResult, error) {
	return nil, nil
}

func (g *fakeGraph) QueryWithEmbedding(ctx context.Context, embedding []float32, topK int, graphScope []string) ([]graphstore.ContextResult, error) {
	return nil, nil
}

// fakeVectors is a minimal in-memory vectorstore.Store.
type fakeVectors struct {
	mu     sync.Mutex
	chunks []vectorstore.Chunk
}

func (v *fakeVectors) IndexChunk(ctx context.Context, c vectorstore.Chunk) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.chunks = append(v.chunks, c)
	return nil
}

func (v *fakeVectors) Search(ctx context.Context, embedding []float32, topK int, filter vectorstore.ChunkFilter) ([]vectorstore.ChunkResult, error) {
	return nil, nil
}

func (v *fakeVectors) DeleteByFile(ctx context.Context, fileID string) error { return nil }

func (v *fakeVectors) Scroll(ctx context.Context, batchSize int, fn func([]vectorstore.Chunk) error) error {
	v.mu.Lock()
	chunks := append([]vectorstore.Chunk(nil), v.chunks...)
	v.mu.Unlock()
	for len(chunks) > 0 {
		n := batchSize
		if n > len(chunks) {
			n = len(chunks)
		}
		if err := fn(chunks[:n]); err != nil {
			return err
		}
		chunks = chunks[n:]
	}
	return nil
}

type fakeEmbed struct{}

func (fakeEmbed) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0}, nil
}
func (fakeEmbed) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}
func (fakeEmbed) Dimensions() int { return 2 }
func (fakeEmbed) ModelID() string { return "fake" }

var _ embeddings.Provider = fakeEmbed{}

func newTestBackupService(t *testing.T) (*Service, *fakeGraph, *fakeVectors) {
	t.Helper()

	graph := newFakeGraph()
	resolver := entityresolve.New(graph, &fakeVectors{}, fakeEmbed{}, entityresolve.Thresholds{
		Person: 0.85, Default: 0.80, Fuzzy: 0.82,
	})
	gsvc := graphsvc.New(graph, resolver)

	vectors := &fakeVectors{}

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	gw := llmgateway.New(&mock.Provider{CompleteResponse: &llmgateway.CompletionResponse{Content: "ملخص"}})
	mem := memstore.New(rdb, gw)

	svc := New(Deps{Graph: gsvc, Vectors: vectors, Memory: mem}, t.TempDir())
	return svc, graph, vectors
}

func mustParseTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return ts
}

func readDirNames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

func TestRun_WritesSnapshotFiles(t *testing.T) {
	svc, graph, vectors := newTestBackupService(t)
	ctx := context.Background()

	personID, err := svc.deps.Graph.UpsertPerson(ctx, graphsvc.PersonParams{Name: "Laila"})
	require.NoError(t, err)

	vectors.chunks = append(vectors.chunks, vectorstore.Chunk{ID: "c1", Content: "hello"})
	require.NoError(t, svc.deps.Memory.AppendTurn(ctx, "s1", memstore.Turn{Role: "user", Content: "hi"}))

	snap, err := svc.Run(ctx, mustParseTime(t, "2026-08-06T03:00:00Z"))
	require.NoError(t, err)
	require.DirExists(t, snap.Dir)
	require.FileExists(t, filepath.Join(snap.Dir, graphFile))
	require.FileExists(t, filepath.Join(snap.Dir, vectorFile))
	require.FileExists(t, filepath.Join(snap.Dir, memoryFile))

	_ = graph
	_ = personID
}

func TestRunThenRestore_RoundTrips(t *testing.T) {
	svc, _, vectors := newTestBackupService(t)
	ctx := context.Background()

	_, err := svc.deps.Graph.UpsertPerson(ctx, graphsvc.PersonParams{Name: "Omar"})
	require.NoError(t, err)
	vectors.chunks = append(vectors.chunks, vectorstore.Chunk{ID: "c1", Content: "note"})
	require.NoError(t, svc.deps.Memory.AppendTurn(ctx, "s1", memstore.Turn{Role: "user", Content: "remember this"}))

	snap, err := svc.Run(ctx, mustParseTime(t, "2026-08-06T03:00:00Z"))
	require.NoError(t, err)

	restoreSvc, _, restoreVectors := newTestBackupService(t)
	require.NoError(t, restoreSvc.Restore(ctx, snap.Dir))

	person, _, err := restoreSvc.deps.Graph.QueryPersonContext(ctx, "Omar")
	require.NoError(t, err)
	require.NotNil(t, person)

	require.Len(t, restoreVectors.chunks, 1)

	turns, err := restoreSvc.deps.Memory.WorkingMemory(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, turns, 1)
}

func TestRetain_KeepsOnlyMostRecent(t *testing.T) {
	svc, _, _ := newTestBackupService(t)
	ctx := context.Background()

	for _, ts := range []string{
		"2026-08-01T00:00:00Z",
		"2026-08-02T00:00:00Z",
		"2026-08-03T00:00:00Z",
	} {
		_, err := svc.Run(ctx, mustParseTime(t, ts))
		require.NoError(t, err)
	}

	require.NoError(t, svc.Retain(1))

	entries, err := readDirNames(svc.root)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}
