package entityresolve

import (
	"context"
	"testing"

	"github.com/khazna/khazna/internal/graphstore"
)

func TestMergeEntities(t *testing.T) {
	g := newFakeGraph()
	g.entities["canon"] = graphstore.Entity{ID: "canon", Type: "Project", Name: "Website Redesign", Attributes: map[string]any{"status": "active"}}
	g.entities["dup"] = graphstore.Entity{ID: "dup", Type: "Project", Name: "Redesign Website", Attributes: map[string]any{"owner": "Ahmed"}}
	g.entities["task1"] = graphstore.Entity{ID: "task1", Type: "Task", Name: "Fix header"}
	g.rels = []graphstore.Relationship{
		{SourceID: "task1", TargetID: "dup", RelType: "BELONGS_TO"},
	}

	if err := MergeEntities(context.Background(), g, "canon", "dup"); err != nil {
		t.Fatalf("MergeEntities() error = %v", err)
	}

	if _, ok := g.entities["dup"]; ok {
		t.Error("duplicate entity should have been deleted")
	}

	canon := g.entities["canon"]
	if canon.Attributes["owner"] != "Ahmed" {
		t.Errorf("expected merged attribute 'owner' to carry over, got %v", canon.Attributes)
	}
	aliases, _ := canon.Attributes["name_aliases"].([]string)
	if len(aliases) != 1 || aliases[0] != "Redesign Website" {
		t.Errorf("expected duplicate name recorded as alias, got %v", aliases)
	}

	found := false
	for _, rel := range g.rels {
		if rel.SourceID == "task1" && rel.TargetID == "canon" && rel.RelType == "BELONGS_TO" {
			found = true
		}
	}
	if !found {
		t.Error("expected relationship to be re-pointed at canonical entity")
	}
}

func TestMergeEntities_UnionsJSONDecodedAliases(t *testing.T) {
	g := newFakeGraph()
	g.entities["canon"] = graphstore.Entity{
		ID:   "canon",
		Type: "Project",
		Name: "Website Redesign",
		// A real Postgres-backed read decodes a JSON array into []any via
		// json.Unmarshal, never []string — seed it that way here.
		Attributes: map[string]any{"name_aliases": []any{"Site Redesign"}},
	}
	g.entities["dup"] = graphstore.Entity{ID: "dup", Type: "Project", Name: "Redesign Website"}

	if err := MergeEntities(context.Background(), g, "canon", "dup"); err != nil {
		t.Fatalf("MergeEntities() error = %v", err)
	}

	aliases := stringsFrom(g.entities["canon"].Attributes["name_aliases"])
	want := map[string]bool{"Site Redesign": true, "Redesign Website": true}
	if len(aliases) != len(want) {
		t.Fatalf("name_aliases = %v, want union %v", aliases, want)
	}
	for _, a := range aliases {
		if !want[a] {
			t.Errorf("unexpected alias %q in %v", a, aliases)
		}
	}
}

func TestMergeEntities_SameID(t *testing.T) {
	g := newFakeGraph()
	if err := MergeEntities(context.Background(), g, "x", "x"); err != nil {
		t.Errorf("MergeEntities() with identical IDs should be a no-op, got error: %v", err)
	}
}
