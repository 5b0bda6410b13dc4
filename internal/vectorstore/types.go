// Package vectorstore defines the embedding-backed semantic index used by
// ingestion and retrieval: chunked, embedded text searchable by cosine
// similarity and scoped by the file or entity it came from.
//
// Implementations must be safe for concurrent use.
package vectorstore

import (
	"context"
	"time"
)

// Chunk is a processed segment of ingested text prepared for semantic
// indexing. A Chunk carries its pre-computed embedding so the index does
// not need to re-embed on insertion.
type Chunk struct {
	// ID is the unique identifier for this chunk (a UUID).
	ID string

	// FileID is the ingested file this chunk was produced from. Empty when
	// the chunk came from a tool-asserted fact rather than a file.
	FileID string

	// Content is the raw (enriched) text of the chunk.
	Content string

	// Embedding is the vector representation of Content. Dimension must
	// match the store's configured embedding dimensions.
	Embedding []float32

	// EntityID associates this chunk with a knowledge-graph entity, used to
	// scope GraphRAG queries.
	EntityID string

	// Topic is an optional coarse topic label produced by classification.
	Topic string

	// SourceType classifies where this chunk originated (spec §4.2's
	// ingest_text source_type: e.g. "conversation", "file", "url").
	SourceType string

	// Tags are free-form labels carried through from ingestion.
	Tags []string

	// SessionID scopes a chunk to the conversation session it was ingested
	// from, empty for file/URL ingestion.
	SessionID string

	// Timestamp is when this chunk was indexed.
	Timestamp time.Time
}

// ChunkFilter narrows a semantic search to a subset of indexed chunks. All
// non-zero fields are applied as AND conditions.
type ChunkFilter struct {
	// FileID restricts results to chunks from a single file.
	FileID string

	// EntityID restricts results to chunks associated with a specific entity.
	EntityID string

	// After filters chunks indexed after this instant (exclusive).
	After time.Time

	// Before filters chunks indexed before this instant (exclusive).
	Before time.Time
}

// ChunkResult pairs a retrieved chunk with its vector-space distance from
// the query embedding. Lower Distance values indicate higher similarity.
type ChunkResult struct {
	Chunk    Chunk
	Distance float64
}

// Store is the semantic index: callers are responsible for producing
// embeddings before calling IndexChunk or Search.
type Store interface {
	// IndexChunk stores a pre-embedded Chunk in the vector index. If a
	// chunk with the same ID already exists it is replaced (upsert).
	IndexChunk(ctx context.Context, chunk Chunk) error

	// Search finds the topK chunks whose embeddings are closest to
	// embedding, filtered by filter. Results are ordered by ascending
	// Distance (most similar first).
	Search(ctx context.Context, embedding []float32, topK int, filter ChunkFilter) ([]ChunkResult, error)

	// DeleteByFile removes every chunk associated with fileID. Used by the
	// re-upload pipeline to supersede a file's previous chunks before
	// indexing the new ones.
	DeleteByFile(ctx context.Context, fileID string) error

	// Scroll walks every indexed chunk in batches of batchSize, calling fn
	// once per batch in ID order. Used by the Backup Service (spec §4.10)
	// to export the full index without loading it all into memory at once.
	Scroll(ctx context.Context, batchSize int, fn func([]Chunk) error) error
}
