// Package entityresolve resolves entity names extracted from conversation
// text to the canonical name already stored in the knowledge graph, so that
// "Ahmed" and "أحمد" and a later misspelling all collapse onto one Person
// node instead of three (§4.5).
//
// Resolution tries, in order: the Resolver's cache of earlier results, vector
// similarity against previously indexed entity names (the name's own index
// entry is skipped rather than returned), and a graph substring
// fallback tie-broken by Jaro-Winkler when the substring match is ambiguous.
// A name that resolves nothing is indexed for future lookups and returned
// unchanged.
package entityresolve

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/antzucaro/matchr"

	"github.com/khazna/khazna/internal/graphstore"
	"github.com/khazna/khazna/internal/vectorstore"
	"github.com/khazna/khazna/pkg/embeddings"
)

// skipTypes are entity types resolved as-is: they are either highly
// distinctive already (Expense, Debt, Reminder descriptions) or intentionally
// free-text (Idea, Tag), so fuzzy-collapsing them does more harm than good.
var skipTypes = map[string]bool{
	"Expense":  true,
	"Debt":     true,
	"Reminder": true,
	"Item":     true,
	"Idea":     true,
	"Tag":      true,
}

// Thresholds configures the similarity cutoffs used during resolution.
type Thresholds struct {
	// Person is the minimum cosine similarity required to resolve a Person
	// name via vector search. Person names need a stricter bar than other
	// types because misresolving one person as another is the costliest
	// mistake this package can make.
	Person float64

	// Default is the minimum cosine similarity for every other entity type.
	Default float64

	// Fuzzy is the minimum Jaro-Winkler score required to pick a winner
	// among multiple graph-substring candidates.
	Fuzzy float64
}

type cacheKey struct {
	name       string
	entityType string
}

// Resolver resolves entity names against a knowledge graph and a vector
// index of previously seen names. The zero value is not usable; construct
// with [New].
type Resolver struct {
	graph   graphstore.KnowledgeGraph
	vectors vectorstore.Store
	embed   embeddings.Provider
	thr     Thresholds

	mu    sync.Mutex
	cache map[cacheKey]string
}

// New returns a Resolver backed by graph for fuzzy/exact lookups, vectors
// for semantic similarity, and embed to compute query vectors.
func New(graph graphstore.KnowledgeGraph, vectors vectorstore.Store, embed embeddings.Provider, thr Thresholds) *Resolver {
	return &Resolver{
		graph:   graph,
		vectors: vectors,
		embed:   embed,
		thr:     thr,
		cache:   make(map[cacheKey]string),
	}
}

// ResolveEntityName returns the canonical name that name should be stored
// or looked up under for the given entity type. When no existing entity
// matches, name is indexed for future resolution attempts and returned
// unchanged.
func (r *Resolver) ResolveEntityName(ctx context.Context, name, entityType string) (string, error) {
	if name == "" || skipTypes[entityType] {
		return name, nil
	}

	key := cacheKey{name: name, entityType: entityType}
	r.mu.Lock()
	if cached, ok := r.cache[key]; ok {
		r.mu.Unlock()
		return cached, nil
	}
	r.mu.Unlock()

	embedding, err := r.embed.Embed(ctx, name)
	if err != nil {
		return "", fmt.Errorf("entityresolve: embed %q: %w", name, err)
	}

	canonical, foundSelf, err := r.resolveByVector(ctx, name, entityType, embedding)
	if err != nil {
		return "", err
	}
	if canonical != "" {
		r.remember(key, canonical)
		return canonical, nil
	}

	if len([]rune(name)) >= 3 {
		canonical, err := r.resolveByGraphContains(ctx, name, entityType)
		if err != nil {
			return "", err
		}
		if canonical != "" {
			r.remember(key, canonical)
			return canonical, nil
		}
	}

	if !foundSelf {
		_ = r.indexName(ctx, name, entityType, embedding)
	}
	return name, nil
}

// tagDedupThreshold is the fixed vector-similarity cutoff tags dedup at,
// independent of [Thresholds] (spec §4.6).
const tagDedupThreshold = 0.85

// ResolveTagName normalizes name through the bilingual tag-alias table
// (tags.go:tagAliases), then vector-dedups it against existing Tag
// entities at tagDedupThreshold. Unlike ResolveEntityName, this bypasses
// skipTypes — tags are free-text everywhere else in this package, but spec
// §4.6 requires them to be deduplicated here specifically.
func (r *Resolver) ResolveTagName(ctx context.Context, name string) (string, error) {
	name = normalizeTag(name)
	if name == "" {
		return "", nil
	}

	key := cacheKey{name: name, entityType: "Tag"}
	r.mu.Lock()
	if cached, ok := r.cache[key]; ok {
		r.mu.Unlock()
		return cached, nil
	}
	r.mu.Unlock()

	embedding, err := r.embed.Embed(ctx, name)
	if err != nil {
		return "", fmt.Errorf("entityresolve: embed tag %q: %w", name, err)
	}

	canonical, foundSelf, err := r.resolveByVectorThreshold(ctx, name, "Tag", embedding, tagDedupThreshold)
	if err != nil {
		return "", err
	}
	if canonical != "" {
		r.remember(key, canonical)
		return canonical, nil
	}

	if !foundSelf {
		_ = r.indexName(ctx, name, "Tag", embedding)
	}
	return name, nil
}

func (r *Resolver) threshold(entityType string) float64 {
	if entityType == "Person" {
		return r.thr.Person
	}
	return r.thr.Default
}

// resolveByVector searches previously indexed names for one close enough to
// name to be the same entity. foundSelf reports whether name itself was
// already indexed (so the caller skips re-indexing it).
func (r *Resolver) resolveByVector(ctx context.Context, name, entityType string, embedding []float32) (canonical string, foundSelf bool, err error) {
	return r.resolveByVectorThreshold(ctx, name, entityType, embedding, r.threshold(entityType))
}

// resolveByVectorThreshold is resolveByVector with an explicit similarity
// cutoff, for callers (e.g. ResolveTagName) that dedup at a fixed threshold
// instead of the type's configured [Thresholds].
func (r *Resolver) resolveByVectorThreshold(ctx context.Context, name, entityType string, embedding []float32, threshold float64) (canonical string, foundSelf bool, err error) {
	results, err := r.vectors.Search(ctx, embedding, 10, vectorstore.ChunkFilter{})
	if err != nil {
		return "", false, nil // vector backend unavailable: fall through to graph fallback
	}

	for _, res := range results {
		if res.Chunk.Topic != entityType {
			continue
		}
		if res.Chunk.Content == name {
			foundSelf = true
			continue
		}
		similarity := 1 - res.Distance
		if similarity >= threshold {
			if err := r.storeAlias(ctx, entityType, res.Chunk.Content, name); err != nil {
				return res.Chunk.Content, foundSelf, nil
			}
			return res.Chunk.Content, foundSelf, nil
		}
	}
	return "", foundSelf, nil
}

// resolveByGraphContains falls back to a case-insensitive substring match
// over stored names and aliases. A single match resolves outright; multiple
// matches are tie-broken by Jaro-Winkler similarity, accepting the winner
// only if it clears the fuzzy threshold.
func (r *Resolver) resolveByGraphContains(ctx context.Context, name, entityType string) (string, error) {
	entities, err := r.graph.FindEntities(ctx, graphstore.EntityFilter{Type: entityType, Name: name, Limit: 3})
	if err != nil {
		return "", fmt.Errorf("entityresolve: graph contains lookup for %q: %w", name, err)
	}

	switch len(entities) {
	case 0:
		return "", nil
	case 1:
		canonical := entities[0].Name
		return canonical, r.storeAlias(ctx, entityType, canonical, name)
	default:
		best := ""
		bestScore := 0.0
		for _, e := range entities {
			score := matchr.JaroWinkler(strings.ToLower(name), strings.ToLower(e.Name), false)
			if score > bestScore {
				bestScore = score
				best = e.Name
			}
		}
		if bestScore >= r.thr.Fuzzy {
			return best, r.storeAlias(ctx, entityType, best, name)
		}
		return "", nil
	}
}

// storeAlias records alias on the canonical entity's name_aliases attribute
// so future exact/substring lookups for alias succeed directly.
func (r *Resolver) storeAlias(ctx context.Context, entityType, canonical, alias string) error {
	if canonical == alias {
		return nil
	}
	entity, err := r.graph.GetEntityByName(ctx, entityType, canonical)
	if err != nil || entity == nil {
		return nil
	}
	aliases := stringsFrom(entity.Attributes["name_aliases"])
	for _, a := range aliases {
		if a == alias {
			return nil
		}
	}
	aliases = append(aliases, alias)
	return r.graph.UpdateEntity(ctx, entity.ID, map[string]any{"name_aliases": aliases})
}

// stringsFrom coerces v into a []string whether it arrived as a literal
// []string (tests) or as []any (the shape json.Unmarshal produces for a
// JSON array decoded into map[string]any, which is how every Attributes
// value read back from graphstore actually looks).
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

// indexName registers name as a known entity name so later queries for
// similar names (transliterations, misspellings) can resolve against it.
func (r *Resolver) indexName(ctx context.Context, name, entityType string, embedding []float32) error {
	id, err := newChunkID()
	if err != nil {
		return fmt.Errorf("entityresolve: generate chunk id: %w", err)
	}
	return r.vectors.IndexChunk(ctx, vectorstore.Chunk{
		ID:        id,
		Content:   name,
		Embedding: embedding,
		Topic:     entityType,
		Timestamp: time.Now(),
	})
}

func (r *Resolver) remember(key cacheKey, canonical string) {
	r.mu.Lock()
	r.cache[key] = canonical
	r.mu.Unlock()
}

func newChunkID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// DisplayName formats an entity's bilingual display form: "<nameAr>
// (<name>)" when an Arabic name is present, otherwise just name.
func DisplayName(name, nameAr string) string {
	if nameAr == "" {
		return name
	}
	return nameAr + " (" + name + ")"
}
