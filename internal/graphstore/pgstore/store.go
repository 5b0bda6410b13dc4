// Package pgstore provides a PostgreSQL-backed implementation of
// [graphstore.KnowledgeGraph] and [graphstore.GraphRAGQuerier].
//
// The GraphRAG query methods join the entities table against the chunks
// table owned by [github.com/khazna/khazna/internal/vectorstore/pgstore], so
// Store expects to run against the same database the vector store writes
// to (the default deployment uses one Postgres instance with the pgvector
// extension for both stores).
package pgstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/khazna/khazna/internal/graphstore"
)

var (
	_ graphstore.KnowledgeGraph  = (*Store)(nil)
	_ graphstore.GraphRAGQuerier = (*Store)(nil)
)

// Store is the PostgreSQL-backed knowledge graph store. All operations are
// safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to the PostgreSQL database at dsn and runs [Migrate] to
// ensure the entities/relationships tables exist.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("graphstore: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("graphstore: ping: %w", err)
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("graphstore: migrate: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases all connections held by the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}
