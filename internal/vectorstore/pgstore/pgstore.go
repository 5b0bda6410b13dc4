// Package pgstore provides a pgvector-backed implementation of
// [vectorstore.Store].
package pgstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/khazna/khazna/internal/vectorstore"
)

var _ vectorstore.Store = (*Store)(nil)

// Store is the PostgreSQL+pgvector-backed semantic index. All methods are
// safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to dsn, registers pgvector types on every connection,
// and runs [Migrate] with the given embedding dimensionality.
//
// embeddingDimensions must match the output dimension of the configured
// embedding provider (e.g. 1536 for OpenAI text-embedding-3-small).
// Changing it after the first migration requires a manual schema change.
func NewStore(ctx context.Context, dsn string, embeddingDimensions int) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: parse dsn: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("vectorstore: ping: %w", err)
	}
	if err := Migrate(ctx, pool, embeddingDimensions); err != nil {
		pool.Close()
		return nil, fmt.Errorf("vectorstore: migrate: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases all connections held by the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// IndexChunk implements [vectorstore.Store].
func (s *Store) IndexChunk(ctx context.Context, chunk vectorstore.Chunk) error {
	const q = `
		INSERT INTO chunks
		    (id, file_id, content, embedding, entity_id, topic, source_type, tags, session_id, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
		    file_id     = EXCLUDED.file_id,
		    content     = EXCLUDED.content,
		    embedding   = EXCLUDED.embedding,
		    entity_id   = EXCLUDED.entity_id,
		    topic       = EXCLUDED.topic,
		    source_type = EXCLUDED.source_type,
		    tags        = EXCLUDED.tags,
		    session_id  = EXCLUDED.session_id,
		    timestamp   = EXCLUDED.timestamp`

	vec := pgvector.NewVector(chunk.Embedding)
	_, err := s.pool.Exec(ctx, q,
		chunk.ID, chunk.FileID, chunk.Content, vec, chunk.EntityID, chunk.Topic,
		chunk.SourceType, chunk.Tags, chunk.SessionID, chunk.Timestamp)
	if err != nil {
		return fmt.Errorf("vectorstore: index chunk: %w", err)
	}
	return nil
}

// Search implements [vectorstore.Store]. Results are ordered by ascending
// cosine distance (most similar first).
func (s *Store) Search(ctx context.Context, embedding []float32, topK int, filter vectorstore.ChunkFilter) ([]vectorstore.ChunkResult, error) {
	queryVec := pgvector.NewVector(embedding)

	args := []any{queryVec}
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	var conditions []string
	if filter.FileID != "" {
		conditions = append(conditions, "file_id = "+next(filter.FileID))
	}
	if filter.EntityID != "" {
		conditions = append(conditions, "entity_id = "+next(filter.EntityID))
	}
	if !filter.After.IsZero() {
		conditions = append(conditions, "timestamp > "+next(filter.After))
	}
	if !filter.Before.IsZero() {
		conditions = append(conditions, "timestamp < "+next(filter.Before))
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, "\n  AND ")
	}

	args = append(args, topK)
	limitArg := fmt.Sprintf("$%d", len(args))

	q := fmt.Sprintf(`
		SELECT id, file_id, content, embedding, entity_id, topic, source_type, tags, session_id, timestamp,
		       embedding <=> $1 AS distance
		FROM   chunks
		%s
		ORDER  BY distance
		LIMIT  %s`, whereClause, limitArg)

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: search: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (vectorstore.ChunkResult, error) {
		var (
			cr  vectorstore.ChunkResult
			vec pgvector.Vector
		)
		if err := row.Scan(
			&cr.Chunk.ID, &cr.Chunk.FileID, &cr.Chunk.Content, &vec,
			&cr.Chunk.EntityID, &cr.Chunk.Topic, &cr.Chunk.SourceType, &cr.Chunk.Tags,
			&cr.Chunk.SessionID, &cr.Chunk.Timestamp, &cr.Distance,
		); err != nil {
			return vectorstore.ChunkResult{}, err
		}
		cr.Chunk.Embedding = vec.Slice()
		return cr, nil
	})
	if err != nil {
		return nil, fmt.Errorf("vectorstore: scan rows: %w", err)
	}
	if results == nil {
		results = []vectorstore.ChunkResult{}
	}
	return results, nil
}

// DeleteByFile implements [vectorstore.Store].
func (s *Store) DeleteByFile(ctx context.Context, fileID string) error {
	const q = `DELETE FROM chunks WHERE file_id = $1`
	if _, err := s.pool.Exec(ctx, q, fileID); err != nil {
		return fmt.Errorf("vectorstore: delete by file: %w", err)
	}
	return nil
}

// Scroll implements [vectorstore.Store] via keyset pagination on id, the
// same batching shape as a scroll cursor: each batch's query starts after
// the last row's id of the previous one.
func (s *Store) Scroll(ctx context.Context, batchSize int, fn func([]vectorstore.Chunk) error) error {
	lastID := ""
	for {
		const q = `
			SELECT id, file_id, content, embedding, entity_id, topic, source_type, tags, session_id, timestamp
			FROM   chunks
			WHERE  id > $1
			ORDER  BY id
			LIMIT  $2`
		rows, err := s.pool.Query(ctx, q, lastID, batchSize)
		if err != nil {
			return fmt.Errorf("vectorstore: scroll: %w", err)
		}
		batch, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (vectorstore.Chunk, error) {
			var (
				c   vectorstore.Chunk
				vec pgvector.Vector
			)
			if err := row.Scan(
				&c.ID, &c.FileID, &c.Content, &vec, &c.EntityID, &c.Topic,
				&c.SourceType, &c.Tags, &c.SessionID, &c.Timestamp,
			); err != nil {
				return vectorstore.Chunk{}, err
			}
			c.Embedding = vec.Slice()
			return c, nil
		})
		if err != nil {
			return fmt.Errorf("vectorstore: scroll scan: %w", err)
		}
		if len(batch) == 0 {
			return nil
		}
		if err := fn(batch); err != nil {
			return err
		}
		lastID = batch[len(batch)-1].ID
		if len(batch) < batchSize {
			return nil
		}
	}
}
