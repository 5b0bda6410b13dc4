package entityresolve

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/khazna/khazna/internal/graphstore"
	"github.com/khazna/khazna/internal/vectorstore"
)

// fakeGraph is a minimal in-memory graphstore.KnowledgeGraph for exercising
// resolution logic without a Postgres backend.
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
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.entities[id]
	if !ok {
		return errors.New("entity not found")
	}
	if e.Attributes == nil {
		e.Attributes = make(map[string]any)
	}
	for k, v := range attrs {
		e.Attributes[k] = v
	}
	g.entities[id] = e
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
	var out []graphstore.Entity
	for _, e := range g.entities {
		if filter.Type != "" && e.Type != filter.Type {
			continue
		}
		if filter.Name != "" && !containsFold(e.Name, filter.Name) && !anyAliasContainsFold(e, filter.Name) {
			continue
		}
		out = append(out, e)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
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
	params := graphstore.ApplyRelQueryOpts(opts)
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []graphstore.Relationship
	for _, r := range g.rels {
		if params.DirectionIn && r.TargetID == entityID {
			out = append(out, r)
			continue
		}
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

// anyAliasContainsFold mirrors the pgstore FindEntities alias fallback: a
// substring match against any of the entity's recorded name_aliases also
// counts as a match, not just the canonical name.
func anyAliasContainsFold(e graphstore.Entity, needle string) bool {
	for _, alias := range stringsFrom(e.Attributes["name_aliases"]) {
		if containsFold(alias, needle) {
			return true
		}
	}
	return false
}

func containsFold(haystack, needle string) bool {
	h, n := []rune(strings.ToLower(haystack)), []rune(strings.ToLower(needle))
	if len(n) == 0 {
		return true
	}
	for i := 0; i+len(n) <= len(h); i++ {
		if string(h[i:i+len(n)]) == string(n) {
			return true
		}
	}
	return false
}

// fakeVectors is a minimal in-memory vectorstore.Store.
type fakeVectors struct {
	mu     sync.Mutex
	chunks []vectorstore.Chunk
}

func (v *fakeVectors) IndexChunk(ctx context.Context, c vectorstore.Chunk) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i, existing := range v.chunks {
		if existing.ID == c.ID {
			v.chunks[i] = c
			return nil
		}
	}
	v.chunks = append(v.chunks, c)
	return nil
}

func (v *fakeVectors) Search(ctx context.Context, embedding []float32, topK int, filter vectorstore.ChunkFilter) ([]vectorstore.ChunkResult, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	var out []vectorstore.ChunkResult
	for _, c := range v.chunks {
		out = append(out, vectorstore.ChunkResult{Chunk: c, Distance: cosineDistance(embedding, c.Embedding)})
		if len(out) >= topK {
			break
		}
	}
	return out, nil
}

func (v *fakeVectors) DeleteByFile(ctx context.Context, fileID string) error { return nil }

func (v *fakeVectors) Scroll(ctx context.Context, batchSize int, fn func([]vectorstore.Chunk) error) error {
	return fn(v.chunks)
}

func cosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 1
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1
	}
	return 1 - dot/(sqrt(normA)*sqrt(normB))
}

func sqrt(x float64) float64 {
	if x == 0 {
		return 0
	}
	z := x
	for i := 0; i < 30; i++ {
		z -= (z*z - x) / (2 * z)
	}
	return z
}

// fakeEmbeddings maps a name string to a fixed-direction vector so that
// near-identical names cosine-score close to 1.0 and unrelated ones score
// near 0, without pulling in a real embedding backend for tests.
type fakeEmbeddings struct{}

func (fakeEmbeddings) Embed(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, 4)
	for i, r := range []rune(text) {
		vec[i%4] += float32(r % 7)
	}
	return vec, nil
}

func (f fakeEmbeddings) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, _ := f.Embed(ctx, t)
		out[i] = v
	}
	return out, nil
}

func (fakeEmbeddings) Dimensions() int { return 4 }
func (fakeEmbeddings) ModelID() string { return "fake" }

var testThresholds = Thresholds{Person: 0.85, Default: 0.80, Fuzzy: 0.82}

func TestResolveEntityName_SkipType(t *testing.T) {
	r := New(newFakeGraph(), &fakeVectors{}, fakeEmbeddings{}, testThresholds)
	got, err := r.ResolveEntityName(context.Background(), "coffee", "Expense")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "coffee" {
		t.Errorf("ResolveEntityName() = %q, want unchanged %q", got, "coffee")
	}
}

func TestResolveEntityName_GraphContainsSingleMatch(t *testing.T) {
	g := newFakeGraph()
	g.entities["p1"] = graphstore.Entity{ID: "p1", Type: "Person", Name: "Ahmed Al-Sharif", UpdatedAt: time.Now()}
	r := New(g, &fakeVectors{}, fakeEmbeddings{}, testThresholds)

	got, err := r.ResolveEntityName(context.Background(), "Ahmed", "Person")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Ahmed Al-Sharif" {
		t.Errorf("ResolveEntityName() = %q, want %q", got, "Ahmed Al-Sharif")
	}
}

func TestResolveEntityName_GraphContainsMatchesAliasOnly(t *testing.T) {
	g := newFakeGraph()
	g.entities["p1"] = graphstore.Entity{
		ID:   "p1",
		Type: "Person",
		Name: "Mohammed Al-Harbi",
		// "Hamoody" never appears in the canonical name, only as a
		// previously recorded alias — the substring fallback must still
		// find it via name_aliases, not just name.
		Attributes: map[string]any{"name_aliases": []any{"Hamoody"}},
	}
	r := New(g, &fakeVectors{}, fakeEmbeddings{}, testThresholds)

	got, err := r.ResolveEntityName(context.Background(), "Hamoody", "Person")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Mohammed Al-Harbi" {
		t.Errorf("ResolveEntityName() = %q, want canonical name %q", got, "Mohammed Al-Harbi")
	}
}

func TestResolveEntityName_NoMatchIndexesAndReturnsOriginal(t *testing.T) {
	g := newFakeGraph()
	vecs := &fakeVectors{}
	r := New(g, vecs, fakeEmbeddings{}, testThresholds)

	got, err := r.ResolveEntityName(context.Background(), "Sara", "Person")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Sara" {
		t.Errorf("ResolveEntityName() = %q, want unchanged %q", got, "Sara")
	}
	vecs.mu.Lock()
	n := len(vecs.chunks)
	vecs.mu.Unlock()
	if n != 1 {
		t.Errorf("expected name to be indexed for future resolution, got %d chunks", n)
	}
}

func TestResolveEntityName_StoreAliasUnionsJSONDecodedAliases(t *testing.T) {
	g := newFakeGraph()
	g.entities["p1"] = graphstore.Entity{
		ID:   "p1",
		Type: "Person",
		Name: "Ahmed Al-Sharif",
		// A real Postgres-backed read decodes a JSON array into []any via
		// json.Unmarshal, never []string — seed it that way here.
		Attributes: map[string]any{"name_aliases": []any{"Ahmad"}},
	}
	r := New(g, &fakeVectors{}, fakeEmbeddings{}, testThresholds)

	_, err := r.ResolveEntityName(context.Background(), "Ahmed", "Person")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	g.mu.Lock()
	aliases := stringsFrom(g.entities["p1"].Attributes["name_aliases"])
	g.mu.Unlock()

	want := map[string]bool{"Ahmad": true, "Ahmed": true}
	if len(aliases) != len(want) {
		t.Fatalf("name_aliases = %v, want union of pre-existing and new alias %v", aliases, want)
	}
	for _, a := range aliases {
		if !want[a] {
			t.Errorf("unexpected alias %q in %v", a, aliases)
		}
	}
}

func TestResolveEntityName_CachesResult(t *testing.T) {
	g := newFakeGraph()
	g.entities["p1"] = graphstore.Entity{ID: "p1", Type: "Person", Name: "Ahmed Al-Sharif"}
	r := New(g, &fakeVectors{}, fakeEmbeddings{}, testThresholds)

	first, _ := r.ResolveEntityName(context.Background(), "Ahmed", "Person")
	g.mu.Lock()
	delete(g.entities, "p1")
	g.mu.Unlock()
	second, _ := r.ResolveEntityName(context.Background(), "Ahmed", "Person")

	if first != second {
		t.Errorf("expected cached resolution to persist after graph mutation: first=%q second=%q", first, second)
	}
}

func TestResolveTagName_CanonicalizesEnglishAliasToArabic(t *testing.T) {
	r := New(newFakeGraph(), &fakeVectors{}, fakeEmbeddings{}, testThresholds)

	got, err := r.ResolveTagName(context.Background(), "Finance")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "مالية" {
		t.Errorf("ResolveTagName() = %q, want %q", got, "مالية")
	}
}

func TestResolveTagName_VectorDedupAtFixedThreshold(t *testing.T) {
	vecs := &fakeVectors{}
	r := New(newFakeGraph(), vecs, fakeEmbeddings{}, testThresholds)
	ctx := context.Background()

	embedding, err := fakeEmbeddings{}.Embed(ctx, "coffee")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	// "قهوة" was indexed earlier from a prior coffee-flavored tag. "coffee" has
	// no entry in tagAliases, so only the 0.85 vector dedup — not the alias
	// table — can collapse it onto the existing canonical tag.
	if err := vecs.IndexChunk(ctx, vectorstore.Chunk{
		ID:        "tag-1",
		Content:   "قهوة",
		Embedding: embedding,
		Topic:     "Tag",
		Timestamp: time.Now(),
	}); err != nil {
		t.Fatalf("seed chunk: %v", err)
	}

	got, err := r.ResolveTagName(ctx, "coffee")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "قهوة" {
		t.Errorf("ResolveTagName() = %q, want dedup to %q", got, "قهوة")
	}
}

func TestResolveTagName_IndependentOfSkipTypesShortCircuit(t *testing.T) {
	// ResolveEntityName short-circuits "Tag" via skipTypes; ResolveTagName must
	// not, or tags would never dedup at all (the bug this guards against).
	if !skipTypes["Tag"] {
		t.Fatal("test assumes Tag remains in skipTypes for ResolveEntityName callers")
	}

	vecs := &fakeVectors{}
	r := New(newFakeGraph(), vecs, fakeEmbeddings{}, testThresholds)
	ctx := context.Background()

	embedding, _ := fakeEmbeddings{}.Embed(ctx, "coffee")
	_ = vecs.IndexChunk(ctx, vectorstore.Chunk{ID: "tag-1", Content: "قهوة", Embedding: embedding, Topic: "Tag"})

	viaEntityName, _ := r.ResolveEntityName(ctx, "coffee", "Tag")
	if viaEntityName != "coffee" {
		t.Errorf("ResolveEntityName(Tag) = %q, want unchanged %q (skipTypes short-circuit)", viaEntityName, "coffee")
	}

	viaTagName, err := r.ResolveTagName(ctx, "coffee")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if viaTagName != "قهوة" {
		t.Errorf("ResolveTagName() = %q, want dedup to %q", viaTagName, "قهوة")
	}
}

func TestDisplayName(t *testing.T) {
	if got := DisplayName("Ahmed", "أحمد"); got != "أحمد (Ahmed)" {
		t.Errorf("DisplayName() = %q, want %q", got, "أحمد (Ahmed)")
	}
	if got := DisplayName("Ahmed", ""); got != "Ahmed" {
		t.Errorf("DisplayName() = %q, want %q", got, "Ahmed")
	}
}
