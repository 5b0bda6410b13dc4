// Package graphsvc is the domain-specific Graph Service (spec §4.4): typed
// upserts, domain reads, lifecycle operations, and file-provenance
// bookkeeping layered on top of the type-agnostic
// [github.com/khazna/khazna/internal/graphstore.KnowledgeGraph] store.
//
// Name-keyed upserts (those built on upsertNamed, plus tags) resolve the
// incoming name through
// [github.com/khazna/khazna/internal/entityresolve.Resolver] before writing,
// so that "Mohammed" and "محمد" collapse onto one canonical node instead of
// being written as two. Reads never fabricate structure the graph doesn't
// have: a query with no matches returns an empty slice, not an error.
package graphsvc

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/khazna/khazna/internal/entityresolve"
	"github.com/khazna/khazna/internal/graphstore"
)

// normalizeKey folds text for case/whitespace-insensitive keyword matching.
func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// internalProps are stripped from any LLM-facing context formatter (spec
// §4.4 "Property hiding") — they are bookkeeping, not facts a model should
// reason or comment about.
var internalProps = map[string]bool{
	"name_aliases": true,
	"created_at":   true,
	"updated_at":   true,
	"file_hash":    true,
	"source":       true,
}

// Service is the Graph Service. The zero value is not usable; construct
// with [New].
type Service struct {
	graph    graphstore.GraphRAGQuerier
	resolver *entityresolve.Resolver
	now      func() time.Time
}

// New returns a Service backed by graph for storage and resolver for
// entity-name canonicalisation.
func New(graph graphstore.GraphRAGQuerier, resolver *entityresolve.Resolver) *Service {
	return &Service{graph: graph, resolver: resolver, now: time.Now}
}

// newID generates a fresh entity/relationship identifier.
func newID() string {
	return uuid.NewString()
}

// stripInternal returns a copy of attrs with internal bookkeeping keys
// removed, suitable for handing to an LLM-facing formatter.
func stripInternal(attrs map[string]any) map[string]any {
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		if internalProps[k] {
			continue
		}
		out[k] = v
	}
	return out
}

// addAlias appends name to an entity's name_aliases attribute if not
// already present, returning the updated slice.
func addAlias(existing []string, name string) []string {
	for _, a := range existing {
		if a == name {
			return existing
		}
	}
	return append(existing, name)
}

// stringsFrom coerces the name_aliases attribute (stored as []string or
// []any, depending on the read path) into a []string.
func stringsFrom(v any) []string {
	switch vv := v.(type) {
	case []string:
		return vv
	case []any:
		out := make([]string, 0, len(vv))
		for _, e := range vv {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
