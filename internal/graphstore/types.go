// Package graphstore defines the knowledge graph storage abstraction: typed
// entity nodes connected by typed relationship edges, with multi-hop
// traversal and graph-augmented retrieval (GraphRAG).
//
// Entities use the fixed types described in the data model (Person, Company,
// Project, Task, Sprint, FocusSession, Expense, Debt, DebtPayment, Reminder,
// Knowledge, Topic, Item, Location, List, ListEntry, File, Idea) but the
// store itself is type-agnostic: attributes are a free-form map because the
// extraction pipeline produces duck-typed property bags whose exact shape
// depends on what the model recognised in a given chunk.
//
// All interfaces are public so alternative backends (Postgres, in-memory for
// tests) can be swapped in without depending on internal storage details.
// Every implementation must be safe for concurrent use.
package graphstore

import (
	"context"
	"time"
)

// Entity represents a named node in the knowledge graph.
type Entity struct {
	// ID is the unique, stable identifier for this entity (a UUID).
	ID string

	// Type classifies the entity: Person, Company, Project, Task, Sprint,
	// FocusSession, Expense, Debt, DebtPayment, Reminder, Knowledge, Topic,
	// Item, Location, List, ListEntry, File, Idea.
	Type string

	// Name is the canonical display name.
	Name string

	// Attributes holds type-specific metadata (e.g. a Person's phone/email,
	// a Task's due_date/priority/status). The set of keys varies by Type and
	// by what extraction recognised for a given record.
	Attributes map[string]any

	// CreatedAt is when the entity was first added to the graph.
	CreatedAt time.Time

	// UpdatedAt is when the entity was last modified.
	UpdatedAt time.Time
}

// EntityFilter specifies predicates for entity lookup queries. All non-zero
// fields are applied as AND conditions.
type EntityFilter struct {
	// Type restricts results to entities of this type. Empty matches all types.
	Type string

	// Name restricts results to entities whose name, or any recorded
	// name_aliases entry, contains this substring (case-insensitive). Empty
	// matches all names.
	Name string

	// AttributeQuery is a map of attribute keys to required values. An
	// entity matches if every key/value pair in AttributeQuery is present in
	// its Attributes map.
	AttributeQuery map[string]any

	// Limit caps the number of results. Zero means the implementation's
	// own default.
	Limit int
}

// relQueryOptions accumulates options for [KnowledgeGraph.GetRelationships].
type relQueryOptions struct {
	relTypes     []string
	directionIn  bool
	directionOut bool
	limit        int
}

// RelQueryOpt is a functional option for [KnowledgeGraph.GetRelationships].
type RelQueryOpt func(*relQueryOptions)

// WithRelTypes restricts the returned relationships to the given types. An
// empty list (the default) returns all types.
func WithRelTypes(relTypes ...string) RelQueryOpt {
	return func(o *relQueryOptions) { o.relTypes = append(o.relTypes, relTypes...) }
}

// WithIncoming includes relationships where the queried entity is the
// target (inbound edges). By default only outgoing relationships are
// returned.
func WithIncoming() RelQueryOpt {
	return func(o *relQueryOptions) { o.directionIn = true }
}

// WithOutgoing includes relationships where the queried entity is the
// source. This is the default; calling it explicitly is a no-op but
// improves readability when combined with [WithIncoming].
func WithOutgoing() RelQueryOpt {
	return func(o *relQueryOptions) { o.directionOut = true }
}

// WithRelLimit caps the number of relationships returned.
func WithRelLimit(n int) RelQueryOpt {
	return func(o *relQueryOptions) { o.limit = n }
}

// traversalOptions accumulates options for [KnowledgeGraph.Neighbors].
type traversalOptions struct {
	relTypes  []string
	nodeTypes []string
	maxNodes  int
}

// TraversalOpt is a functional option for [KnowledgeGraph.Neighbors].
type TraversalOpt func(*traversalOptions)

// TraverseRelTypes restricts traversal to edges whose RelType is in the
// provided list. An empty list (the default) follows all edge types.
func TraverseRelTypes(relTypes ...string) TraversalOpt {
	return func(o *traversalOptions) { o.relTypes = append(o.relTypes, relTypes...) }
}

// TraverseNodeTypes restricts traversal to entity nodes whose Type is in the
// provided list. An empty list (the default) visits all node types.
func TraverseNodeTypes(nodeTypes ...string) TraversalOpt {
	return func(o *traversalOptions) { o.nodeTypes = append(o.nodeTypes, nodeTypes...) }
}

// TraverseMaxNodes caps the number of entities returned during a traversal.
// Zero applies no cap.
func TraverseMaxNodes(n int) TraversalOpt {
	return func(o *traversalOptions) { o.maxNodes = n }
}

// ContextResult pairs a knowledge-graph entity with retrieved textual
// content relevant to a [GraphRAGQuerier] query.
type ContextResult struct {
	// Entity is the knowledge-graph node that anchors this result.
	Entity Entity

	// Content is the retrieved text passage relevant to the query.
	Content string

	// Score is the combined retrieval relevance score (0.0-1.0, higher is better).
	Score float64
}

// KnowledgeGraph is the graph storage layer: typed [Entity] nodes connected
// by typed [Relationship] edges, with full CRUD, multi-hop neighbourhood
// traversal, and shortest-path queries.
//
// Mutating operations that act on a primary key (AddEntity, AddRelationship)
// behave as upserts rather than erroring on duplicates. Deletions of
// non-existent records are not errors.
//
// Implementations must be safe for concurrent use.
type KnowledgeGraph interface {
	// AddEntity upserts an entity into the graph. If an entity with the same
	// ID already exists it is completely replaced.
	AddEntity(ctx context.Context, entity Entity) error

	// GetEntity retrieves an entity by its unique ID. Returns (nil, nil)
	// when the entity does not exist.
	GetEntity(ctx context.Context, id string) (*Entity, error)

	// GetEntityByName retrieves the first entity of the given type whose
	// Name exactly matches (case-insensitive). Returns (nil, nil) when no
	// such entity exists.
	GetEntityByName(ctx context.Context, entityType, name string) (*Entity, error)

	// UpdateEntity merges attrs into the Attributes map of the specified
	// entity and refreshes its UpdatedAt timestamp. Keys present in attrs
	// overwrite existing values; absent keys are left unchanged. Returns an
	// error when the entity does not exist.
	UpdateEntity(ctx context.Context, id string, attrs map[string]any) error

	// DeleteEntity removes the entity and all its associated relationships
	// from the graph. Deleting a non-existent entity is not an error.
	DeleteEntity(ctx context.Context, id string) error

	// FindEntities returns all entities matching filter. Returns an empty
	// (non-nil) slice when no entities match.
	FindEntities(ctx context.Context, filter EntityFilter) ([]Entity, error)

	// AddRelationship upserts a directed edge between two entities. If a
	// relationship with the same (SourceID, TargetID, RelType) already
	// exists it is completely replaced.
	AddRelationship(ctx context.Context, rel Relationship) error

	// GetRelationships returns relationships associated with entityID. By
	// default only outgoing edges are returned; use [WithIncoming] to
	// include inbound edges, and [WithRelTypes] to filter by edge type.
	GetRelationships(ctx context.Context, entityID string, opts ...RelQueryOpt) ([]Relationship, error)

	// DeleteRelationship removes the directed edge identified by (sourceID,
	// targetID, relType). Deleting a non-existent edge is not an error.
	DeleteRelationship(ctx context.Context, sourceID, targetID, relType string) error

	// Neighbors performs a breadth-first traversal from entityID up to
	// depth hops and returns all reachable entities (the start entity is
	// excluded). [TraversalOpt] options can restrict which edge or node
	// types are followed.
	Neighbors(ctx context.Context, entityID string, depth int, opts ...TraversalOpt) ([]Entity, error)

	// FindPath returns the shortest sequence of entities connecting fromID
	// to toID inclusive, following directed edges up to maxDepth hops.
	// Returns an empty (non-nil) slice when no path exists within maxDepth.
	FindPath(ctx context.Context, fromID, toID string, maxDepth int) ([]Entity, error)
}

// GraphRAGQuerier extends [KnowledgeGraph] with graph-augmented retrieval.
// It combines structured graph traversal with semantic text retrieval to
// produce contextually grounded results for LLM consumption.
//
// Two query methods are provided:
//   - [GraphRAGQuerier.QueryWithContext] uses PostgreSQL full-text search
//     and requires no embedding provider; used as the self-RAG retry path
//     and when embeddings are unavailable.
//   - [GraphRAGQuerier.QueryWithEmbedding] uses pgvector cosine similarity
//     against pre-computed chunk embeddings and is the primary retrieval
//     path when an embedding provider is available.
type GraphRAGQuerier interface {
	KnowledgeGraph

	// QueryWithContext performs a GraphRAG query using full-text search: it
	// matches query against chunk content using plainto_tsquery, scoped to
	// entities in graphScope. Results are ranked by FTS relevance. An empty
	// graphScope searches all chunks.
	QueryWithContext(ctx context.Context, query string, graphScope []string) ([]ContextResult, error)

	// QueryWithEmbedding performs a GraphRAG query using vector similarity:
	// it finds the topK chunks closest (cosine distance) to embedding,
	// scoped to entities in graphScope. Results are ranked by ascending
	// distance. An empty graphScope searches all chunks.
	QueryWithEmbedding(ctx context.Context, embedding []float32, topK int, graphScope []string) ([]ContextResult, error)
}
