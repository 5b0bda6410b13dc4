package ingest

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khazna/khazna/internal/vectorstore"
	"github.com/khazna/khazna/pkg/llmgateway"
	"github.com/khazna/khazna/pkg/llmgateway/mock"
)

func TestChunkText(t *testing.T) {
	words := make([]string, 10)
	for i := range words {
		words[i] = "w"
	}
	text := strings.Join(words, " ")

	chunks := chunkText(text, 4, 1)
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.LessOrEqual(t, estimateTokens(c), 4, "chunk %q exceeds window", c)
	}
	lastWords := strings.Fields(chunks[len(chunks)-1])
	assert.Equal(t, "w", lastWords[len(lastWords)-1], "last chunk does not reach end of text")
}

func TestChunkText_Empty(t *testing.T) {
	assert.Nil(t, chunkText("   ", 100, 10))
}

func TestChunkText_SmallerThanWindow(t *testing.T) {
	chunks := chunkText("one two three", 100, 10)
	require.Len(t, chunks, 1)
	assert.Equal(t, "one two three", chunks[0])
}

// fakeStore is an in-memory vectorstore.Store double.
type fakeStore struct {
	mu     sync.Mutex
	chunks []vectorstore.Chunk
}

func (f *fakeStore) IndexChunk(ctx context.Context, chunk vectorstore.Chunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chunks = append(f.chunks, chunk)
	return nil
}

func (f *fakeStore) Search(ctx context.Context, embedding []float32, topK int, filter vectorstore.ChunkFilter) ([]vectorstore.ChunkResult, error) {
	return nil, nil
}

func (f *fakeStore) DeleteByFile(ctx context.Context, fileID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var kept []vectorstore.Chunk
	for _, c := range f.chunks {
		if c.FileID != fileID {
			kept = append(kept, c)
		}
	}
	f.chunks = kept
	return nil
}

func (f *fakeStore) Scroll(ctx context.Context, batchSize int, fn func([]vectorstore.Chunk) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fn(f.chunks)
}

// fakeEmbedder is a deterministic embeddings.Provider double.
type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{float32(len(text))}, nil
}

func (fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t))}
	}
	return out, nil
}

func (fakeEmbedder) Dimensions() int { return 1 }
func (fakeEmbedder) ModelID() string { return "fake-embedder" }

// TestIngestText_NoExtractableFacts exercises the full translate/chunk/
// enrich/embed path with a provider whose reply is plain prose, so fact
// extraction yields nothing parseable and the Graph Service (left nil) is
// never invoked — spec §4.2 step 5 only runs when there are facts to upsert.
func TestIngestText_NoExtractableFacts(t *testing.T) {
	provider := &mock.Provider{
		CompleteResponse: &llmgateway.CompletionResponse{Content: "a plain english sentence with no json in it"},
	}
	store := &fakeStore{}
	svc := New(Deps{
		Gateway: llmgateway.New(provider),
		Vectors: store,
		Embed:   fakeEmbedder{},
	}, WithEmbedChunking(5, 1), WithExtractChunking(50))

	result, err := svc.IngestText(context.Background(), TextRequest{
		Text:       "هذا نص عربي طويل نسبيا لاختبار خط أنابيب الإدخال الخاص بنا بشكل كامل",
		SourceType: "conversation",
		Topic:      "testing",
		FileHash:   "",
	})
	require.NoError(t, err)
	assert.Positive(t, result.ChunksStored)
	assert.Zero(t, result.FactsExtracted)

	store.mu.Lock()
	stored := len(store.chunks)
	store.mu.Unlock()
	assert.Equal(t, result.ChunksStored, stored)
}

func TestIngestText_EmptyText(t *testing.T) {
	svc := New(Deps{
		Gateway: llmgateway.New(&mock.Provider{}),
		Vectors: &fakeStore{},
		Embed:   fakeEmbedder{},
	})
	_, err := svc.IngestText(context.Background(), TextRequest{Text: "   "})
	assert.Error(t, err)
}
