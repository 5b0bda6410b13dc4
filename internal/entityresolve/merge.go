package entityresolve

import (
	"context"
	"fmt"

	"github.com/khazna/khazna/internal/graphstore"
)

// MergeEntities folds duplicateID into canonicalID: every relationship
// touching the duplicate is re-pointed at the canonical entity, the
// duplicate's name is recorded as an alias, any attribute the canonical
// entity is missing is copied over, and the duplicate node is deleted.
// Used by the merge_projects tool (§4.5) and by any future "these are the
// same thing" correction flow.
func MergeEntities(ctx context.Context, graph graphstore.KnowledgeGraph, canonicalID, duplicateID string) error {
	if canonicalID == duplicateID {
		return nil
	}

	canonical, err := graph.GetEntity(ctx, canonicalID)
	if err != nil {
		return fmt.Errorf("entityresolve: get canonical entity %q: %w", canonicalID, err)
	}
	if canonical == nil {
		return fmt.Errorf("entityresolve: canonical entity %q not found", canonicalID)
	}

	duplicate, err := graph.GetEntity(ctx, duplicateID)
	if err != nil {
		return fmt.Errorf("entityresolve: get duplicate entity %q: %w", duplicateID, err)
	}
	if duplicate == nil {
		return nil
	}

	outgoing, err := graph.GetRelationships(ctx, duplicateID, graphstore.WithOutgoing())
	if err != nil {
		return fmt.Errorf("entityresolve: list outgoing relationships of %q: %w", duplicateID, err)
	}
	for _, rel := range outgoing {
		if rel.TargetID == canonicalID {
			continue
		}
		rel.SourceID = canonicalID
		if err := graph.AddRelationship(ctx, rel); err != nil {
			return fmt.Errorf("entityresolve: re-point outgoing relationship %q: %w", rel.RelType, err)
		}
	}

	incoming, err := graph.GetRelationships(ctx, duplicateID, graphstore.WithIncoming())
	if err != nil {
		return fmt.Errorf("entityresolve: list incoming relationships of %q: %w", duplicateID, err)
	}
	for _, rel := range incoming {
		if rel.SourceID == canonicalID {
			continue
		}
		rel.TargetID = canonicalID
		if err := graph.AddRelationship(ctx, rel); err != nil {
			return fmt.Errorf("entityresolve: re-point incoming relationship %q: %w", rel.RelType, err)
		}
	}

	mergedAttrs := mergeAttributes(canonical.Attributes, duplicate.Attributes)
	mergedAttrs["name_aliases"] = appendAlias(mergedAttrs["name_aliases"], duplicate.Name)
	if err := graph.UpdateEntity(ctx, canonicalID, mergedAttrs); err != nil {
		return fmt.Errorf("entityresolve: update canonical entity %q: %w", canonicalID, err)
	}

	if err := graph.DeleteEntity(ctx, duplicateID); err != nil {
		return fmt.Errorf("entityresolve: delete duplicate entity %q: %w", duplicateID, err)
	}
	return nil
}

// mergeAttributes returns a copy of canonical's attributes with any key
// present only in duplicate filled in. Keys already set on canonical are
// never overwritten — the canonical entity's data wins ties.
func mergeAttributes(canonical, duplicate map[string]any) map[string]any {
	merged := make(map[string]any, len(canonical)+len(duplicate))
	for k, v := range canonical {
		merged[k] = v
	}
	for k, v := range duplicate {
		if _, exists := merged[k]; !exists {
			merged[k] = v
		}
	}
	return merged
}

func appendAlias(existing any, alias string) []string {
	aliases := stringsFrom(existing)
	for _, a := range aliases {
		if a == alias {
			return aliases
		}
	}
	return append(aliases, alias)
}
