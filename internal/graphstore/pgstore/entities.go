package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/khazna/khazna/internal/graphstore"
)

// AddEntity implements [graphstore.KnowledgeGraph]. It upserts an entity
// into the entities table. If an entity with the same ID already exists it
// is completely replaced and its updated_at timestamp is refreshed.
func (s *Store) AddEntity(ctx context.Context, entity graphstore.Entity) error {
	attrsJSON, err := json.Marshal(entity.Attributes)
	if err != nil {
		return fmt.Errorf("graphstore: marshal attributes: %w", err)
	}

	const q = `
		INSERT INTO entities (id, type, name, attributes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		ON CONFLICT (id) DO UPDATE SET
		    type        = EXCLUDED.type,
		    name        = EXCLUDED.name,
		    attributes  = EXCLUDED.attributes,
		    updated_at  = now()`

	_, err = s.pool.Exec(ctx, q, entity.ID, entity.Type, entity.Name, attrsJSON)
	if err != nil {
		return fmt.Errorf("graphstore: add entity: %w", err)
	}
	return nil
}

// GetEntity implements [graphstore.KnowledgeGraph]. Returns (nil, nil) when
// the entity does not exist.
func (s *Store) GetEntity(ctx context.Context, id string) (*graphstore.Entity, error) {
	const q = `
		SELECT id, type, name, attributes, created_at, updated_at
		FROM   entities
		WHERE  id = $1`

	rows, err := s.pool.Query(ctx, q, id)
	if err != nil {
		return nil, fmt.Errorf("graphstore: get entity: %w", err)
	}
	entities, err := collectEntities(rows)
	if err != nil {
		return nil, fmt.Errorf("graphstore: get entity: %w", err)
	}
	if len(entities) == 0 {
		return nil, nil
	}
	return &entities[0], nil
}

// GetEntityByName implements [graphstore.KnowledgeGraph]. Returns (nil, nil)
// when no entity of entityType matches name (case-insensitive, exact).
func (s *Store) GetEntityByName(ctx context.Context, entityType, name string) (*graphstore.Entity, error) {
	const q = `
		SELECT id, type, name, attributes, created_at, updated_at
		FROM   entities
		WHERE  type = $1 AND name ILIKE $2
		LIMIT  1`

	rows, err := s.pool.Query(ctx, q, entityType, name)
	if err != nil {
		return nil, fmt.Errorf("graphstore: get entity by name: %w", err)
	}
	entities, err := collectEntities(rows)
	if err != nil {
		return nil, fmt.Errorf("graphstore: get entity by name: %w", err)
	}
	if len(entities) == 0 {
		return nil, nil
	}
	return &entities[0], nil
}

// UpdateEntity implements [graphstore.KnowledgeGraph]. It merges attrs into
// the entity's Attributes map using PostgreSQL's jsonb || operator and
// refreshes updated_at.
func (s *Store) UpdateEntity(ctx context.Context, id string, attrs map[string]any) error {
	attrsJSON, err := json.Marshal(attrs)
	if err != nil {
		return fmt.Errorf("graphstore: marshal update attrs: %w", err)
	}

	const q = `
		UPDATE entities
		SET    attributes = attributes || $2::jsonb,
		       updated_at = now()
		WHERE  id = $1`

	tag, err := s.pool.Exec(ctx, q, id, attrsJSON)
	if err != nil {
		return fmt.Errorf("graphstore: update entity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("graphstore: update entity: entity %q not found", id)
	}
	return nil
}

// DeleteEntity implements [graphstore.KnowledgeGraph]. Deleting a
// non-existent entity is not an error.
func (s *Store) DeleteEntity(ctx context.Context, id string) error {
	const q = `DELETE FROM entities WHERE id = $1`
	if _, err := s.pool.Exec(ctx, q, id); err != nil {
		return fmt.Errorf("graphstore: delete entity: %w", err)
	}
	return nil
}

// FindEntities implements [graphstore.KnowledgeGraph].
func (s *Store) FindEntities(ctx context.Context, filter graphstore.EntityFilter) ([]graphstore.Entity, error) {
	var args []any
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	var conditions []string
	if filter.Type != "" {
		conditions = append(conditions, "type = "+next(filter.Type))
	}
	if filter.Name != "" {
		namePattern := next("%" + filter.Name + "%")
		conditions = append(conditions, fmt.Sprintf(`(name ILIKE %[1]s OR EXISTS (
		    SELECT 1 FROM jsonb_array_elements_text(COALESCE(attributes->'name_aliases', '[]'::jsonb)) AS alias
		    WHERE alias ILIKE %[1]s
		))`, namePattern))
	}
	if len(filter.AttributeQuery) > 0 {
		attrJSON, err := json.Marshal(filter.AttributeQuery)
		if err != nil {
			return nil, fmt.Errorf("graphstore: marshal attribute query: %w", err)
		}
		conditions = append(conditions, "attributes @> "+next(string(attrJSON))+"::jsonb")
	}

	q := "SELECT id, type, name, attributes, created_at, updated_at\nFROM   entities"
	if len(conditions) > 0 {
		q += "\nWHERE " + strings.Join(conditions, "\n  AND ")
	}
	q += "\nORDER BY name"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		q += fmt.Sprintf("\nLIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("graphstore: find entities: %w", err)
	}
	result, err := collectEntities(rows)
	if err != nil {
		return nil, fmt.Errorf("graphstore: find entities: %w", err)
	}
	return result, nil
}

// AddRelationship implements [graphstore.KnowledgeGraph].
func (s *Store) AddRelationship(ctx context.Context, rel graphstore.Relationship) error {
	attrsJSON, err := json.Marshal(rel.Attributes)
	if err != nil {
		return fmt.Errorf("graphstore: marshal relationship attributes: %w", err)
	}
	provJSON, err := json.Marshal(rel.Provenance)
	if err != nil {
		return fmt.Errorf("graphstore: marshal relationship provenance: %w", err)
	}

	const q = `
		INSERT INTO relationships
		    (source_id, target_id, rel_type, attributes, provenance, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (source_id, target_id, rel_type) DO UPDATE SET
		    attributes = EXCLUDED.attributes,
		    provenance = EXCLUDED.provenance`

	_, err = s.pool.Exec(ctx, q, rel.SourceID, rel.TargetID, rel.RelType, attrsJSON, provJSON)
	if err != nil {
		return fmt.Errorf("graphstore: add relationship: %w", err)
	}
	return nil
}

// GetRelationships implements [graphstore.KnowledgeGraph].
func (s *Store) GetRelationships(ctx context.Context, entityID string, opts ...graphstore.RelQueryOpt) ([]graphstore.Relationship, error) {
	params := graphstore.ApplyRelQueryOpts(opts)
	relTypes, dirIn, dirOut, limit := params.RelTypes, params.DirectionIn, params.DirectionOut, params.Limit

	if !dirIn && !dirOut {
		dirOut = true
	}

	var args []any
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	var dirParts []string
	if dirOut {
		dirParts = append(dirParts, "source_id = "+next(entityID))
	}
	if dirIn {
		dirParts = append(dirParts, "target_id = "+next(entityID))
	}
	conditions := []string{"(" + strings.Join(dirParts, " OR ") + ")"}

	if len(relTypes) > 0 {
		conditions = append(conditions, "rel_type = ANY("+next(relTypes)+"::text[])")
	}

	q := "SELECT source_id, target_id, rel_type, attributes, provenance, created_at\n" +
		"FROM   relationships\n" +
		"WHERE  " + strings.Join(conditions, "\n  AND ") + "\n" +
		"ORDER  BY created_at"

	if limit > 0 {
		args = append(args, limit)
		q += fmt.Sprintf("\nLIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("graphstore: get relationships: %w", err)
	}
	result, err := collectRelationships(rows)
	if err != nil {
		return nil, fmt.Errorf("graphstore: get relationships: %w", err)
	}
	return result, nil
}

// DeleteRelationship implements [graphstore.KnowledgeGraph].
func (s *Store) DeleteRelationship(ctx context.Context, sourceID, targetID, relType string) error {
	const q = `
		DELETE FROM relationships
		WHERE source_id = $1 AND target_id = $2 AND rel_type = $3`

	if _, err := s.pool.Exec(ctx, q, sourceID, targetID, relType); err != nil {
		return fmt.Errorf("graphstore: delete relationship: %w", err)
	}
	return nil
}

// Neighbors implements [graphstore.KnowledgeGraph] using a recursive CTE.
// Cycles are prevented by tracking visited node IDs in a PostgreSQL text array.
func (s *Store) Neighbors(ctx context.Context, entityID string, depth int, opts ...graphstore.TraversalOpt) ([]graphstore.Entity, error) {
	params := graphstore.ApplyTraversalOpts(opts)
	relTypes, nodeTypes, maxNodes := params.RelTypes, params.NodeTypes, params.MaxNodes

	var args []any
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	startArg := next(entityID)
	depthArg := next(depth)

	relTypeFilter := ""
	if len(relTypes) > 0 {
		relTypeFilter = "\n           AND rel.rel_type = ANY(" + next(relTypes) + "::text[])"
	}

	nodeTypeFilter := ""
	if len(nodeTypes) > 0 {
		nodeTypeFilter = "\n           AND e.type = ANY(" + next(nodeTypes) + "::text[])"
	}

	q := fmt.Sprintf(`
		WITH RECURSIVE reachable AS (
		    SELECT id,
		           ARRAY[id] AS visited,
		           0          AS depth
		    FROM   entities
		    WHERE  id = %s

		    UNION ALL

		    SELECT e.id,
		           r.visited || e.id,
		           r.depth + 1
		    FROM   reachable r
		    JOIN   relationships rel ON rel.source_id = r.id
		    JOIN   entities      e   ON e.id = rel.target_id
		    WHERE  r.depth < %s
		      AND  NOT (e.id = ANY(r.visited))%s%s
		)
		SELECT DISTINCT ON (e.id)
		       e.id, e.type, e.name, e.attributes, e.created_at, e.updated_at
		FROM   reachable rc
		JOIN   entities  e  ON e.id = rc.id
		WHERE  rc.id != %s
		ORDER  BY e.id`, startArg, depthArg, relTypeFilter, nodeTypeFilter, startArg)

	if maxNodes > 0 {
		args = append(args, maxNodes)
		q += fmt.Sprintf("\nLIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("graphstore: neighbors: %w", err)
	}
	result, err := collectEntities(rows)
	if err != nil {
		return nil, fmt.Errorf("graphstore: neighbors: %w", err)
	}
	return result, nil
}

// FindPath implements [graphstore.KnowledgeGraph]. Returns an empty
// (non-nil) slice when no path exists within maxDepth.
func (s *Store) FindPath(ctx context.Context, fromID, toID string, maxDepth int) ([]graphstore.Entity, error) {
	const q = `
		WITH RECURSIVE path_search AS (
		    SELECT id,
		           ARRAY[id] AS path,
		           0          AS depth
		    FROM   entities
		    WHERE  id = $1

		    UNION ALL

		    SELECT e.id,
		           ps.path || e.id,
		           ps.depth + 1
		    FROM   path_search ps
		    JOIN   relationships rel ON rel.source_id = ps.id
		    JOIN   entities      e   ON e.id = rel.target_id
		    WHERE  ps.depth < $3
		      AND  NOT (e.id = ANY(ps.path))
		)
		SELECT path
		FROM   path_search
		WHERE  id = $2
		ORDER  BY depth
		LIMIT  1`

	row := s.pool.QueryRow(ctx, q, fromID, toID, maxDepth)

	var path []string
	if err := row.Scan(&path); err != nil {
		if isNoRows(err) {
			return []graphstore.Entity{}, nil
		}
		return nil, fmt.Errorf("graphstore: find path: %w", err)
	}

	return s.fetchEntitiesOrdered(ctx, path)
}

// QueryWithContext implements [graphstore.GraphRAGQuerier]. It performs a
// graph-augmented retrieval query using PostgreSQL full-text search against
// chunk content, joined to the owning entity, scoped to entities in
// graphScope (or all chunks when graphScope is empty).
func (s *Store) QueryWithContext(ctx context.Context, query string, graphScope []string) ([]graphstore.ContextResult, error) {
	var args []any
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	queryArg := next(query)

	scopeFilter := ""
	if len(graphScope) > 0 {
		scopeFilter = "\n  AND  c.entity_id = ANY(" + next(graphScope) + "::text[])"
	}

	q := fmt.Sprintf(`
		SELECT e.id, e.type, e.name, e.attributes, e.created_at, e.updated_at,
		       c.content,
		       ts_rank(to_tsvector('english', c.content),
		               plainto_tsquery('english', %s)) AS score
		FROM   chunks  c
		JOIN   entities e ON e.id = c.entity_id
		WHERE  to_tsvector('english', c.content) @@ plainto_tsquery('english', %s)%s
		ORDER  BY score DESC
		LIMIT  20`, queryArg, queryArg, scopeFilter)

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("graphstore: query with context: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (graphstore.ContextResult, error) {
		var (
			cr        graphstore.ContextResult
			attrsJSON []byte
		)
		if err := row.Scan(
			&cr.Entity.ID, &cr.Entity.Type, &cr.Entity.Name, &attrsJSON,
			&cr.Entity.CreatedAt, &cr.Entity.UpdatedAt, &cr.Content, &cr.Score,
		); err != nil {
			return graphstore.ContextResult{}, err
		}
		if err := json.Unmarshal(attrsJSON, &cr.Entity.Attributes); err != nil {
			return graphstore.ContextResult{}, fmt.Errorf("unmarshal entity attributes: %w", err)
		}
		return cr, nil
	})
	if err != nil {
		return nil, fmt.Errorf("graphstore: query with context: scan: %w", err)
	}
	if results == nil {
		results = []graphstore.ContextResult{}
	}
	return results, nil
}

// QueryWithEmbedding implements [graphstore.GraphRAGQuerier] using pgvector
// cosine similarity. Score is set to 1 - distance so higher is better,
// consistent with [Store.QueryWithContext].
func (s *Store) QueryWithEmbedding(ctx context.Context, embedding []float32, topK int, graphScope []string) ([]graphstore.ContextResult, error) {
	queryVec := pgvector.NewVector(embedding)

	args := []any{queryVec}
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	scopeFilter := ""
	if len(graphScope) > 0 {
		scopeFilter = "\n  AND  c.entity_id = ANY(" + next(graphScope) + "::text[])"
	}

	args = append(args, topK)
	limitArg := fmt.Sprintf("$%d", len(args))

	q := fmt.Sprintf(`
		SELECT e.id, e.type, e.name, e.attributes, e.created_at, e.updated_at,
		       c.content,
		       c.embedding <=> $1 AS distance
		FROM   chunks  c
		JOIN   entities e ON e.id = c.entity_id
		WHERE  c.embedding IS NOT NULL%s
		ORDER  BY distance
		LIMIT  %s`, scopeFilter, limitArg)

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("graphstore: query with embedding: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (graphstore.ContextResult, error) {
		var (
			cr        graphstore.ContextResult
			attrsJSON []byte
			distance  float64
		)
		if err := row.Scan(
			&cr.Entity.ID, &cr.Entity.Type, &cr.Entity.Name, &attrsJSON,
			&cr.Entity.CreatedAt, &cr.Entity.UpdatedAt, &cr.Content, &distance,
		); err != nil {
			return graphstore.ContextResult{}, err
		}
		if err := json.Unmarshal(attrsJSON, &cr.Entity.Attributes); err != nil {
			return graphstore.ContextResult{}, fmt.Errorf("unmarshal entity attributes: %w", err)
		}
		cr.Score = 1.0 - distance
		return cr, nil
	})
	if err != nil {
		return nil, fmt.Errorf("graphstore: query with embedding: scan: %w", err)
	}
	if results == nil {
		results = []graphstore.ContextResult{}
	}
	return results, nil
}

func collectEntities(rows pgx.Rows) ([]graphstore.Entity, error) {
	entities, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (graphstore.Entity, error) {
		var (
			e         graphstore.Entity
			attrsJSON []byte
		)
		if err := row.Scan(&e.ID, &e.Type, &e.Name, &attrsJSON, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return graphstore.Entity{}, err
		}
		if len(attrsJSON) > 0 {
			if err := json.Unmarshal(attrsJSON, &e.Attributes); err != nil {
				return graphstore.Entity{}, fmt.Errorf("unmarshal entity attributes: %w", err)
			}
		}
		if e.Attributes == nil {
			e.Attributes = map[string]any{}
		}
		return e, nil
	})
	if err != nil {
		return nil, err
	}
	if entities == nil {
		entities = []graphstore.Entity{}
	}
	return entities, nil
}

func collectRelationships(rows pgx.Rows) ([]graphstore.Relationship, error) {
	rels, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (graphstore.Relationship, error) {
		var (
			r         graphstore.Relationship
			attrsJSON []byte
			provJSON  []byte
		)
		if err := row.Scan(&r.SourceID, &r.TargetID, &r.RelType, &attrsJSON, &provJSON, &r.CreatedAt); err != nil {
			return graphstore.Relationship{}, err
		}
		if len(attrsJSON) > 0 {
			if err := json.Unmarshal(attrsJSON, &r.Attributes); err != nil {
				return graphstore.Relationship{}, fmt.Errorf("unmarshal rel attributes: %w", err)
			}
		}
		if r.Attributes == nil {
			r.Attributes = map[string]any{}
		}
		if len(provJSON) > 0 {
			if err := json.Unmarshal(provJSON, &r.Provenance); err != nil {
				return graphstore.Relationship{}, fmt.Errorf("unmarshal rel provenance: %w", err)
			}
		}
		return r, nil
	})
	if err != nil {
		return nil, err
	}
	if rels == nil {
		rels = []graphstore.Relationship{}
	}
	return rels, nil
}

func (s *Store) fetchEntitiesIn(ctx context.Context, ids []string) ([]graphstore.Entity, error) {
	if len(ids) == 0 {
		return []graphstore.Entity{}, nil
	}
	const q = `
		SELECT id, type, name, attributes, created_at, updated_at
		FROM   entities
		WHERE  id = ANY($1::text[])`

	rows, err := s.pool.Query(ctx, q, ids)
	if err != nil {
		return nil, fmt.Errorf("fetch entities in: %w", err)
	}
	return collectEntities(rows)
}

func (s *Store) fetchEntitiesOrdered(ctx context.Context, ids []string) ([]graphstore.Entity, error) {
	if len(ids) == 0 {
		return []graphstore.Entity{}, nil
	}
	entities, err := s.fetchEntitiesIn(ctx, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]graphstore.Entity, len(entities))
	for _, e := range entities {
		byID[e.ID] = e
	}

	ordered := make([]graphstore.Entity, 0, len(ids))
	for _, id := range ids {
		if e, ok := byID[id]; ok {
			ordered = append(ordered, e)
		}
	}
	return ordered, nil
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
