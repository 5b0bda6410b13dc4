package app_test

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/khazna/khazna/internal/app"
	"github.com/khazna/khazna/internal/config"
	"github.com/khazna/khazna/internal/graphstore"
	"github.com/khazna/khazna/internal/vectorstore"
	llmmock "github.com/khazna/khazna/pkg/llmgateway/mock"
)

// fakeGraph is a minimal in-memory graphstore.GraphRAGQuerier, modelled on
// internal/graphviz's test fake but extended with the GraphRAG query pair so
// it satisfies the superset interface entityresolve and graphsvc require.
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

func (g *fakeGraph) DeleteEntity(ctx context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.entities, id)
	return nil
}

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
	return nil, nil
}

func (g *fakeGraph) DeleteRelationship(ctx context.Context, sourceID, targetID, relType string) error {
	return nil
}

func (g *fakeGraph) Neighbors(ctx context.Context, entityID string, depth int, opts ...graphstore.TraversalOpt) ([]graphstore.Entity, error) {
	return nil, nil
}

func (g *fakeGraph) FindPath(ctx context.Context, fromID, toID string, maxDepth int) ([]graphstore.Entity, error) {
	return []graphstore.Entity{}, nil
}

func (g *fakeGraph) QueryWithContext(ctx context.Context, query string, graphScope []string) ([]graphstore.ContextResult, error) {
	return nil, nil
}

func (g *fakeGraph) QueryWithEmbedding(ctx context.Context, embedding []float32, topK int, graphScope []string) ([]graphstore.ContextResult, error) {
	return nil, nil
}

var _ graphstore.GraphRAGQuerier = (*fakeGraph)(nil)

// fakeVectorStore is a minimal in-memory vectorstore.Store.
type fakeVectorStore struct {
	mu     sync.Mutex
	chunks map[string]vectorstore.Chunk
}

func newFakeVectorStore() *fakeVectorStore {
	return &fakeVectorStore{chunks: make(map[string]vectorstore.Chunk)}
}

func (v *fakeVectorStore) IndexChunk(ctx context.Context, chunk vectorstore.Chunk) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.chunks[chunk.ID] = chunk
	return nil
}

func (v *fakeVectorStore) Search(ctx context.Context, embedding []float32, topK int, filter vectorstore.ChunkFilter) ([]vectorstore.ChunkResult, error) {
	return nil, nil
}

func (v *fakeVectorStore) DeleteByFile(ctx context.Context, fileID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	for id, c := range v.chunks {
		if c.FileID == fileID {
			delete(v.chunks, id)
		}
	}
	return nil
}

func (v *fakeVectorStore) Scroll(ctx context.Context, batchSize int, fn func([]vectorstore.Chunk) error) error {
	return nil
}

var _ vectorstore.Store = (*fakeVectorStore)(nil)

// fakeEmbedder is a fixed-dimension embeddings.Provider that never calls out
// to a real model; every vector is a constant-length zero slice so tests
// can assert on shape without depending on real similarity.
type fakeEmbedder struct {
	dims int
}

func (e *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return make([]float32, e.dims), nil
}

func (e *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, e.dims)
	}
	return out, nil
}

func (e *fakeEmbedder) Dimensions() int { return e.dims }

func (e *fakeEmbedder) ModelID() string { return "fake-embedder" }

// testConfig returns a minimal but complete Config sufficient to build an
// App when the graph, vector, and redis backends are all supplied via
// Options. Every scheduler interval is non-zero since the cron library
// rejects "@every 0m". listenAddr is fixed rather than ":0" so tests can
// probe the HTTP surface without reaching into App's private fields.
func testConfig(listenAddr string) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{ListenAddr: listenAddr},
		Providers: config.ProvidersConfig{
			LLM:        config.ProviderEntry{Name: "openai", Model: "gpt-4o"},
			Embeddings: config.ProviderEntry{Name: "openai", Model: "text-embedding-3-small"},
		},
		Storage: config.StorageConfig{
			EmbeddingDimensions: 8,
		},
		Thresholds: config.ThresholdsConfig{
			SelfRAG:                 0.5,
			EntityResolutionPerson:  0.85,
			EntityResolutionDefault: 0.8,
			FuzzyMatch:              0.85,
			GraphMaxHops:            3,
		},
		Memory: config.MemoryConfig{
			WorkingCap:           20,
			CompressionThreshold: 15,
		},
		Scheduler: config.SchedulerConfig{
			MorningHour:                  7,
			NoonHour:                     12,
			EveningHour:                  20,
			ReminderCheckIntervalMinutes: 15,
			SmartAlertIntervalHours:      4,
			BackupHour:                   3,
			RetentionDays:                30,
			StalledProjectDays:           14,
			OldDebtDays:                  7,
		},
		Backup:              config.BackupConfig{Dir: "/tmp/khazna-test-backup"},
		TimezoneOffsetHours: 3,
	}
}

func testRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func testProviders() *app.Providers {
	return &app.Providers{
		LLM:        &llmmock.Provider{},
		Embeddings: &fakeEmbedder{dims: 8},
	}
}

func newTestApp(t *testing.T, listenAddr string) *app.App {
	t.Helper()
	a, err := app.New(context.Background(), testConfig(listenAddr), testProviders(),
		app.WithGraphStore(newFakeGraph()),
		app.WithVectorStore(newFakeVectorStore()),
		app.WithRedisClient(testRedis(t)),
	)
	require.NoError(t, err)
	return a
}

func TestNew_MissingProviders(t *testing.T) {
	_, err := app.New(context.Background(), testConfig("127.0.0.1:18761"), &app.Providers{})
	require.Error(t, err)

	_, err = app.New(context.Background(), testConfig("127.0.0.1:18761"), &app.Providers{LLM: &llmmock.Provider{}})
	require.Error(t, err)
}

func TestNew_WithFakes(t *testing.T) {
	a := newTestApp(t, "127.0.0.1:18762")
	require.NoError(t, a.Shutdown(context.Background()))
}

func TestApp_Shutdown(t *testing.T) {
	a := newTestApp(t, "127.0.0.1:18763")
	require.NoError(t, a.Shutdown(context.Background()))
	// A second call must be a no-op, not a double-close panic.
	require.NoError(t, a.Shutdown(context.Background()))
}

func TestApp_RunAndShutdown(t *testing.T) {
	const addr = "127.0.0.1:18764"
	a := newTestApp(t, addr)

	ctx, cancel := context.WithCancel(context.Background())
	runErrCh := make(chan error, 1)
	go func() { runErrCh <- a.Run(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return true
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-runErrCh, context.Canceled)
	require.NoError(t, a.Shutdown(context.Background()))
}

func TestApp_MetricsEndpoint(t *testing.T) {
	const addr = "127.0.0.1:18765"
	a := newTestApp(t, addr)

	ctx, cancel := context.WithCancel(context.Background())
	runErrCh := make(chan error, 1)
	go func() { runErrCh <- a.Run(ctx) }()

	var resp *http.Response
	require.Eventually(t, func() bool {
		r, err := http.Get("http://" + addr + "/metrics")
		if err != nil {
			return false
		}
		resp = r
		return true
	}, 2*time.Second, 10*time.Millisecond)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	<-runErrCh
	require.NoError(t, a.Shutdown(context.Background()))
}
