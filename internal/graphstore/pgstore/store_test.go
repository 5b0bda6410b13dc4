package pgstore_test

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/khazna/khazna/internal/graphstore"
	"github.com/khazna/khazna/internal/graphstore/pgstore"
)

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

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	t.Cleanup(pool.Close)
	for _, stmt := range []string{
		"DROP TABLE IF EXISTS relationships CASCADE",
		"DROP TABLE IF EXISTS entities CASCADE",
	} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			t.Fatalf("drop schema %q: %v", stmt, err)
		}
	}

	store, err := pgstore.NewStore(ctx, dsn)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(store.Close)
	return store
}

func TestAddAndGetEntity(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	person := graphstore.Entity{
		ID:   "person-1",
		Type: "Person",
		Name: "Ahmed",
		Attributes: map[string]any{
			"phone": "0501234567",
		},
	}
	if err := store.AddEntity(ctx, person); err != nil {
		t.Fatalf("AddEntity: %v", err)
	}

	got, err := store.GetEntity(ctx, "person-1")
	if err != nil {
		t.Fatalf("GetEntity: %v", err)
	}
	if got == nil {
		t.Fatal("GetEntity: want entity, got nil")
	}
	if got.Name != "Ahmed" || got.Attributes["phone"] != "0501234567" {
		t.Errorf("GetEntity: got %+v", got)
	}

	byName, err := store.GetEntityByName(ctx, "Person", "ahmed")
	if err != nil {
		t.Fatalf("GetEntityByName: %v", err)
	}
	if byName == nil || byName.ID != "person-1" {
		t.Errorf("GetEntityByName: want person-1, got %+v", byName)
	}
}

func TestUpdateEntityMergesAttributes(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entity := graphstore.Entity{ID: "proj-1", Type: "Project", Name: "Website Revamp",
		Attributes: map[string]any{"status": "active"}}
	if err := store.AddEntity(ctx, entity); err != nil {
		t.Fatalf("AddEntity: %v", err)
	}

	if err := store.UpdateEntity(ctx, "proj-1", map[string]any{"priority": "high"}); err != nil {
		t.Fatalf("UpdateEntity: %v", err)
	}

	got, err := store.GetEntity(ctx, "proj-1")
	if err != nil {
		t.Fatalf("GetEntity: %v", err)
	}
	if got.Attributes["status"] != "active" || got.Attributes["priority"] != "high" {
		t.Errorf("UpdateEntity: want merged attributes, got %+v", got.Attributes)
	}

	if err := store.UpdateEntity(ctx, "does-not-exist", map[string]any{"x": "y"}); err == nil {
		t.Error("UpdateEntity on missing entity: want error, got nil")
	}
}

func TestRelationshipsAndNeighbors(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, e := range []graphstore.Entity{
		{ID: "task-1", Type: "Task", Name: "Design homepage"},
		{ID: "proj-1", Type: "Project", Name: "Website Revamp"},
		{ID: "person-1", Type: "Person", Name: "Sara"},
	} {
		if err := store.AddEntity(ctx, e); err != nil {
			t.Fatalf("AddEntity(%s): %v", e.ID, err)
		}
	}

	if err := store.AddRelationship(ctx, graphstore.Relationship{
		SourceID: "task-1", TargetID: "proj-1", RelType: "BELONGS_TO",
	}); err != nil {
		t.Fatalf("AddRelationship: %v", err)
	}
	if err := store.AddRelationship(ctx, graphstore.Relationship{
		SourceID: "task-1", TargetID: "person-1", RelType: "ASSIGNED_TO",
	}); err != nil {
		t.Fatalf("AddRelationship: %v", err)
	}

	rels, err := store.GetRelationships(ctx, "task-1")
	if err != nil {
		t.Fatalf("GetRelationships: %v", err)
	}
	if len(rels) != 2 {
		t.Errorf("GetRelationships: want 2, got %d", len(rels))
	}

	neighbors, err := store.Neighbors(ctx, "task-1", 1)
	if err != nil {
		t.Fatalf("Neighbors: %v", err)
	}
	if len(neighbors) != 2 {
		t.Errorf("Neighbors: want 2, got %d", len(neighbors))
	}

	path, err := store.FindPath(ctx, "task-1", "proj-1", 2)
	if err != nil {
		t.Fatalf("FindPath: %v", err)
	}
	if len(path) != 2 || path[0].ID != "task-1" || path[1].ID != "proj-1" {
		t.Errorf("FindPath: want [task-1 proj-1], got %+v", path)
	}

	if err := store.DeleteRelationship(ctx, "task-1", "person-1", "ASSIGNED_TO"); err != nil {
		t.Fatalf("DeleteRelationship: %v", err)
	}
	rels, err = store.GetRelationships(ctx, "task-1")
	if err != nil {
		t.Fatalf("GetRelationships after delete: %v", err)
	}
	if len(rels) != 1 {
		t.Errorf("GetRelationships after delete: want 1, got %d", len(rels))
	}
}

func TestDeleteEntityCascadesRelationships(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.AddEntity(ctx, graphstore.Entity{ID: "a", Type: "Person", Name: "A"}); err != nil {
		t.Fatalf("AddEntity: %v", err)
	}
	if err := store.AddEntity(ctx, graphstore.Entity{ID: "b", Type: "Person", Name: "B"}); err != nil {
		t.Fatalf("AddEntity: %v", err)
	}
	if err := store.AddRelationship(ctx, graphstore.Relationship{SourceID: "a", TargetID: "b", RelType: "KNOWS"}); err != nil {
		t.Fatalf("AddRelationship: %v", err)
	}

	if err := store.DeleteEntity(ctx, "a"); err != nil {
		t.Fatalf("DeleteEntity: %v", err)
	}

	got, err := store.GetEntity(ctx, "a")
	if err != nil {
		t.Fatalf("GetEntity: %v", err)
	}
	if got != nil {
		t.Errorf("GetEntity after delete: want nil, got %+v", got)
	}

	rels, err := store.GetRelationships(ctx, "b", graphstore.WithIncoming())
	if err != nil {
		t.Fatalf("GetRelationships: %v", err)
	}
	if len(rels) != 0 {
		t.Errorf("relationships into b after deleting a: want 0, got %+v", rels)
	}

	// Deleting again must not error.
	if err := store.DeleteEntity(ctx, "a"); err != nil {
		t.Errorf("DeleteEntity (already gone): want nil, got %v", err)
	}
}
