package pgstore_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/khazna/khazna/internal/vectorstore"
	"github.com/khazna/khazna/internal/vectorstore/pgstore"
)

const testEmbeddingDim = 4

func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("KHAZNA_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("KHAZNA_TEST_POSTGRES_DSN not set — skipping PostgreSQL integration tests")
	}
	return dsn
}

func newTestStore(t *testing.T) *pgstore.Store {
	t.Helper()
	dsn := testDSN(t)
	ctx := context.Background()

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		_ = pgxvec.RegisterTypes(ctx, conn)
		return nil
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	t.Cleanup(pool.Close)
	if _, err := pool.Exec(ctx, "DROP TABLE IF EXISTS chunks CASCADE"); err != nil {
		t.Fatalf("drop schema: %v", err)
	}

	store, err := pgstore.NewStore(ctx, dsn, testEmbeddingDim)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(store.Close)
	return store
}

func TestIndexAndSearch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	chunks := []vectorstore.Chunk{
		{ID: "c1", FileID: "f1", EntityID: "person-1", Content: "Ahmed works at Acme", Embedding: []float32{1, 0, 0, 0}, Timestamp: time.Now()},
		{ID: "c2", FileID: "f1", EntityID: "person-1", Content: "Ahmed likes tea", Embedding: []float32{0, 1, 0, 0}, Timestamp: time.Now()},
		{ID: "c3", FileID: "f2", EntityID: "person-2", Content: "Sara is a developer", Embedding: []float32{0, 0, 1, 0}, Timestamp: time.Now()},
	}
	for _, c := range chunks {
		if err := store.IndexChunk(ctx, c); err != nil {
			t.Fatalf("IndexChunk(%s): %v", c.ID, err)
		}
	}

	results, err := store.Search(ctx, []float32{1, 0, 0, 0}, 2, vectorstore.ChunkFilter{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Search: want 2 results, got %d", len(results))
	}
	if results[0].Chunk.ID != "c1" {
		t.Errorf("Search: want c1 closest, got %s", results[0].Chunk.ID)
	}

	scoped, err := store.Search(ctx, []float32{1, 0, 0, 0}, 5, vectorstore.ChunkFilter{FileID: "f2"})
	if err != nil {
		t.Fatalf("Search scoped: %v", err)
	}
	if len(scoped) != 1 || scoped[0].Chunk.ID != "c3" {
		t.Errorf("Search scoped to f2: want [c3], got %+v", scoped)
	}
}

func TestDeleteByFile(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, c := range []vectorstore.Chunk{
		{ID: "c1", FileID: "f1", Content: "a", Embedding: []float32{1, 0, 0, 0}, Timestamp: time.Now()},
		{ID: "c2", FileID: "f1", Content: "b", Embedding: []float32{0, 1, 0, 0}, Timestamp: time.Now()},
		{ID: "c3", FileID: "f2", Content: "c", Embedding: []float32{0, 0, 1, 0}, Timestamp: time.Now()},
	} {
		if err := store.IndexChunk(ctx, c); err != nil {
			t.Fatalf("IndexChunk: %v", err)
		}
	}

	if err := store.DeleteByFile(ctx, "f1"); err != nil {
		t.Fatalf("DeleteByFile: %v", err)
	}

	remaining, err := store.Search(ctx, []float32{1, 0, 0, 0}, 10, vectorstore.ChunkFilter{})
	if err != nil {
		t.Fatalf("Search after delete: %v", err)
	}
	if len(remaining) != 1 || remaining[0].Chunk.ID != "c3" {
		t.Errorf("Search after DeleteByFile: want [c3], got %+v", remaining)
	}
}

func TestUpsertReplacesChunk(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	c := vectorstore.Chunk{ID: "c1", FileID: "f1", Content: "original", Embedding: []float32{1, 0, 0, 0}, Timestamp: time.Now()}
	if err := store.IndexChunk(ctx, c); err != nil {
		t.Fatalf("IndexChunk: %v", err)
	}
	c.Content = "updated"
	if err := store.IndexChunk(ctx, c); err != nil {
		t.Fatalf("IndexChunk upsert: %v", err)
	}

	results, err := store.Search(ctx, []float32{1, 0, 0, 0}, 10, vectorstore.ChunkFilter{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Chunk.Content != "updated" {
		t.Errorf("Search after upsert: want single updated chunk, got %+v", results)
	}
}

func TestScroll(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		c := vectorstore.Chunk{
			ID: string(rune('a' + i)), Content: "chunk",
			Embedding: []float32{1, 0, 0, 0}, Timestamp: time.Now(),
		}
		if err := store.IndexChunk(ctx, c); err != nil {
			t.Fatalf("IndexChunk: %v", err)
		}
	}

	var seen []string
	err := store.Scroll(ctx, 2, func(batch []vectorstore.Chunk) error {
		for _, c := range batch {
			seen = append(seen, c.ID)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Scroll: %v", err)
	}
	if len(seen) != 5 {
		t.Errorf("Scroll: want 5 chunks across batches, got %d (%v)", len(seen), seen)
	}
}
