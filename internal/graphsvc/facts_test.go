package graphsvc

import (
	"context"
	"testing"
	"time"

	"github.com/khazna/khazna/internal/graphstore"
)

func mustParseTime(t *testing.T, raw string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		t.Fatalf("time.Parse(%q): %v", raw, err)
	}
	return parsed
}

func TestUpsertFromFacts_RoutesExpense(t *testing.T) {
	svc, graph := newTestService()
	ctx := context.Background()

	canonicals, err := svc.UpsertFromFacts(ctx, []Fact{{
		Type:       "Expense",
		Name:       "Carrefour",
		Attributes: map[string]any{"amount": 45.5, "currency": "SAR"},
	}}, "")
	if err != nil {
		t.Fatalf("UpsertFromFacts: %v", err)
	}
	if len(canonicals) != 1 {
		t.Fatalf("expected 1 canonical, got %d", len(canonicals))
	}
	entity, err := graph.GetEntity(ctx, canonicals[0])
	if err != nil || entity == nil {
		t.Fatalf("expected Expense entity keyed by id, got %v, err %v", entity, err)
	}
	if entity.Type != "Expense" || entity.Attributes["vendor"] != "Carrefour" {
		t.Errorf("unexpected entity: %+v", entity)
	}
}

func TestUpsertFromFacts_RoutesDebtWithPersonRelationship(t *testing.T) {
	svc, graph := newTestService()
	ctx := context.Background()

	canonicals, err := svc.UpsertFromFacts(ctx, []Fact{{
		Type:       "Debt",
		Name:       "debt to Sara",
		Attributes: map[string]any{"amount": 100.0, "currency": "SAR", "direction": "i_owe"},
		Relationships: []FactRelationship{
			{RelType: "OWED_TO", TargetName: "Sara", TargetType: "Person"},
		},
	}}, "")
	if err != nil {
		t.Fatalf("UpsertFromFacts: %v", err)
	}
	entity, err := graph.GetEntity(ctx, canonicals[0])
	if err != nil || entity == nil {
		t.Fatalf("expected Debt entity, got %v, err %v", entity, err)
	}
	if entity.Attributes["person"] != "Sara" {
		t.Errorf("Debt person = %v, want Sara", entity.Attributes["person"])
	}
}

func TestUpsertFromFacts_RoutesReminder(t *testing.T) {
	svc, graph := newTestService()
	ctx := context.Background()

	canonicals, err := svc.UpsertFromFacts(ctx, []Fact{{
		Type:       "Reminder",
		Name:       "Call the dentist",
		Attributes: map[string]any{"due_date": "2026-08-10T09:00:00Z"},
	}}, "")
	if err != nil {
		t.Fatalf("UpsertFromFacts: %v", err)
	}
	entity, err := graph.GetEntity(ctx, canonicals[0])
	if err != nil || entity == nil || entity.Type != "Reminder" {
		t.Fatalf("expected Reminder entity, got %v, err %v", entity, err)
	}
}

func TestUpsertFromFacts_RoutesItemSprintFocusSessionAndList(t *testing.T) {
	svc, graph := newTestService()
	ctx := context.Background()

	facts := []Fact{
		{Type: "Item", Name: "Coffee beans", Attributes: map[string]any{"quantity": 2.0}},
		{Type: "Sprint", Name: "Sprint 7", Attributes: map[string]any{"project": "Khazna"}},
		{Type: "FocusSession", Name: "write docs", Attributes: map[string]any{
			"start_time": "2026-08-06T10:00:00Z", "duration_min": 30.0,
		}},
		{Type: "List", Name: "Groceries", Attributes: map[string]any{"type": "shopping"}},
	}
	canonicals, err := svc.UpsertFromFacts(ctx, facts, "")
	if err != nil {
		t.Fatalf("UpsertFromFacts: %v", err)
	}
	if len(canonicals) != 4 {
		t.Fatalf("expected 4 canonicals, got %d", len(canonicals))
	}

	item, _ := graph.GetEntityByName(ctx, "Item", "Coffee beans")
	if item == nil {
		t.Error("expected Item entity")
	}
	sprint, _ := graph.GetEntityByName(ctx, "Sprint", "Sprint 7")
	if sprint == nil {
		t.Error("expected Sprint entity")
	}
	focus, err := graph.GetEntity(ctx, canonicals[2])
	if err != nil || focus == nil || focus.Type != "FocusSession" {
		t.Errorf("expected FocusSession entity keyed by id, got %v, err %v", focus, err)
	}
	list, _ := graph.GetEntityByName(ctx, "List", "Groceries")
	if list == nil {
		t.Error("expected List entity")
	}
}

func TestUpsertFromFacts_RoutesTagThroughAliasTable(t *testing.T) {
	svc, graph := newTestService()
	ctx := context.Background()

	canonicals, err := svc.UpsertFromFacts(ctx, []Fact{{Type: "Tag", Name: "Money"}}, "")
	if err != nil {
		t.Fatalf("UpsertFromFacts: %v", err)
	}
	if canonicals[0] != "مالية" {
		t.Errorf("canonical = %q, want %q", canonicals[0], "مالية")
	}
	if tag, _ := graph.GetEntityByName(ctx, "Tag", "مالية"); tag == nil {
		t.Error("expected Tag entity مالية")
	}
}

func TestUpsertFromFacts_UnknownTypeIsSkippedNotErrored(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	canonicals, err := svc.UpsertFromFacts(ctx, []Fact{
		{Type: "Section", Name: "should be dropped"},
		{Type: "Topic", Name: "Go concurrency"},
	}, "")
	if err != nil {
		t.Fatalf("UpsertFromFacts: %v", err)
	}
	if len(canonicals) != 1 || canonicals[0] != "Go concurrency" {
		t.Errorf("canonicals = %v, want only the Topic fact routed", canonicals)
	}
}

func TestUpsertFromFacts_ProvenanceEdgeForIDKeyedType(t *testing.T) {
	svc, graph := newTestService()
	ctx := context.Background()

	fileEntity := newTestFile(t, ctx, svc, "hash-1")

	canonicals, err := svc.UpsertFromFacts(ctx, []Fact{{
		Type:       "Expense",
		Name:       "Starbucks",
		Attributes: map[string]any{"amount": 20.0, "currency": "SAR"},
	}}, "hash-1")
	if err != nil {
		t.Fatalf("UpsertFromFacts: %v", err)
	}

	rels, err := graph.GetRelationships(ctx, canonicals[0])
	if err != nil {
		t.Fatalf("GetRelationships: %v", err)
	}
	found := false
	for _, r := range rels {
		if r.RelType == "EXTRACTED_FROM" && r.TargetID == fileEntity.ID {
			found = true
		}
	}
	if !found {
		t.Error("expected EXTRACTED_FROM edge from the Expense entity to the File entity")
	}
}

// newTestFile seeds a File entity via EnsureFileStub so UpsertFromFacts's
// provenance-edge lookup finds it by hash.
func newTestFile(t *testing.T, ctx context.Context, svc *Service, hash string) *graphstore.Entity {
	t.Helper()
	f, err := svc.EnsureFileStub(ctx, hash, "test.txt", "text/plain", 0)
	if err != nil {
		t.Fatalf("EnsureFileStub: %v", err)
	}
	return f
}

func TestUpsertFromFacts_DebtPaymentAppliesAgainstExistingDebt(t *testing.T) {
	svc, graph := newTestService()
	ctx := context.Background()

	debtID, err := svc.UpsertDebt(ctx, DebtParams{
		Person: "Sara", Amount: 100, Currency: "SAR", Direction: DebtIOwe,
	})
	if err != nil {
		t.Fatalf("UpsertDebt: %v", err)
	}

	canonicals, err := svc.UpsertFromFacts(ctx, []Fact{{
		Type:       "DebtPayment",
		Name:       "paid Sara back",
		Attributes: map[string]any{"amount": 40.0, "direction": "i_owe"},
		Relationships: []FactRelationship{
			{RelType: "PAID_TO", TargetName: "Sara", TargetType: "Person"},
		},
	}}, "")
	if err != nil {
		t.Fatalf("UpsertFromFacts: %v", err)
	}
	if len(canonicals) != 0 {
		t.Errorf("pseudo-entity facts should not appear in canonicals, got %v", canonicals)
	}

	debt, err := graph.GetEntity(ctx, debtID)
	if err != nil || debt == nil {
		t.Fatalf("GetEntity: %v, %v", debt, err)
	}
	if debt.Attributes["amount"] != 60.0 {
		t.Errorf("debt remaining = %v, want 60", debt.Attributes["amount"])
	}
	if debt.Attributes["status"] != "partial" {
		t.Errorf("debt status = %v, want partial", debt.Attributes["status"])
	}
}

func TestUpsertFromFacts_DebtPaymentWithNoMatchingDebtIsSkippedNotFatal(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	canonicals, err := svc.UpsertFromFacts(ctx, []Fact{
		{
			Type:       "DebtPayment",
			Name:       "paid Khalid back",
			Attributes: map[string]any{"amount": 10.0},
			Relationships: []FactRelationship{
				{RelType: "PAID_TO", TargetName: "Khalid", TargetType: "Person"},
			},
		},
		{Type: "Topic", Name: "Go concurrency"},
	}, "")
	if err != nil {
		t.Fatalf("UpsertFromFacts should tolerate a not-found debt payment, got error: %v", err)
	}
	if len(canonicals) != 1 || canonicals[0] != "Go concurrency" {
		t.Errorf("canonicals = %v, want the later fact to still be processed", canonicals)
	}
}

func TestUpsertFromFacts_ItemUsageReducesQuantity(t *testing.T) {
	svc, graph := newTestService()
	ctx := context.Background()

	itemName, err := svc.UpsertItem(ctx, ItemParams{Name: "Coffee beans", Quantity: 5})
	if err != nil {
		t.Fatalf("UpsertItem: %v", err)
	}

	_, err = svc.UpsertFromFacts(ctx, []Fact{{
		Type:       "ItemUsage",
		Name:       itemName,
		Attributes: map[string]any{"quantity_used": 2.0},
	}}, "")
	if err != nil {
		t.Fatalf("UpsertFromFacts: %v", err)
	}

	item, _ := graph.GetEntityByName(ctx, "Item", itemName)
	if item == nil {
		t.Fatal("expected item to still exist")
	}
	if item.Attributes["quantity"] != 3.0 {
		t.Errorf("quantity = %v, want 3", item.Attributes["quantity"])
	}
}

func TestUpsertFromFacts_ItemMoveRelocatesItem(t *testing.T) {
	svc, graph := newTestService()
	ctx := context.Background()

	itemName, err := svc.UpsertItem(ctx, ItemParams{Name: "Drill", Quantity: 1, Location: "garage"})
	if err != nil {
		t.Fatalf("UpsertItem: %v", err)
	}

	_, err = svc.UpsertFromFacts(ctx, []Fact{{
		Type:       "ItemMove",
		Name:       itemName,
		Attributes: map[string]any{"to_location": "shed"},
	}}, "")
	if err != nil {
		t.Fatalf("UpsertFromFacts: %v", err)
	}

	item, _ := graph.GetEntityByName(ctx, "Item", itemName)
	if item == nil || item.Attributes["location"] != "shed" {
		t.Errorf("expected item relocated to shed, got %+v", item)
	}
}

func TestUpsertFromFacts_ReminderActionMarksDone(t *testing.T) {
	svc, graph := newTestService()
	ctx := context.Background()

	if _, err := svc.UpsertReminder(ctx, ReminderParams{
		Title: "Call the dentist", DueDate: mustParseTime(t, "2026-08-10T09:00:00Z"),
	}); err != nil {
		t.Fatalf("UpsertReminder: %v", err)
	}

	_, err := svc.UpsertFromFacts(ctx, []Fact{{
		Type:       "ReminderAction",
		Name:       "Call the dentist",
		Attributes: map[string]any{"action": "done"},
	}}, "")
	if err != nil {
		t.Fatalf("UpsertFromFacts: %v", err)
	}

	reminder, _ := graph.GetEntityByName(ctx, "Reminder", "Call the dentist")
	if reminder == nil || reminder.Attributes["status"] != "done" {
		t.Errorf("expected reminder marked done, got %+v", reminder)
	}
}
