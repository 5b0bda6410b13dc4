package memstore

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/khazna/khazna/pkg/llmgateway"
	"github.com/khazna/khazna/pkg/llmgateway/mock"
)

func newTestStore(t *testing.T, opts ...Option) (*Store, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	gw := llmgateway.New(&mock.Provider{
		CompleteResponse: &llmgateway.CompletionResponse{Content: "ملخص قصير"},
	})
	return New(rdb, gw, opts...), rdb
}

func TestAppendTurn_AndWorkingMemory(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if err := s.AppendTurn(ctx, "s1", Turn{Role: "user", Content: "hi"}); err != nil {
		t.Fatalf("AppendTurn() error = %v", err)
	}
	if err := s.AppendTurn(ctx, "s1", Turn{Role: "assistant", Content: "hello"}); err != nil {
		t.Fatalf("AppendTurn() error = %v", err)
	}

	turns, err := s.WorkingMemory(ctx, "s1")
	if err != nil {
		t.Fatalf("WorkingMemory() error = %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("WorkingMemory() len = %d, want 2", len(turns))
	}
	if turns[0].Content != "hi" || turns[1].Content != "hello" {
		t.Errorf("WorkingMemory() = %+v, want ordered [hi, hello]", turns)
	}
}

func TestAppendTurn_CompressesPastThreshold(t *testing.T) {
	s, _ := newTestStore(t, WithCompressionThreshold(3))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := s.AppendTurn(ctx, "s1", Turn{Role: "user", Content: "turn"}); err != nil {
			t.Fatalf("AppendTurn() error = %v", err)
		}
	}

	turns, err := s.WorkingMemory(ctx, "s1")
	if err != nil {
		t.Fatalf("WorkingMemory() error = %v", err)
	}
	if len(turns) != compressionKeepLast {
		t.Errorf("WorkingMemory() len = %d, want %d after compression", len(turns), compressionKeepLast)
	}

	summary, err := s.ConversationSummary(ctx, "s1")
	if err != nil {
		t.Fatalf("ConversationSummary() error = %v", err)
	}
	if summary != "ملخص قصير" {
		t.Errorf("ConversationSummary() = %q, want %q", summary, "ملخص قصير")
	}
}

func TestPendingAction_SetGetClear(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if _, ok, err := s.PendingAction(ctx, "s1"); err != nil || ok {
		t.Fatalf("PendingAction() before set: ok=%v err=%v, want ok=false", ok, err)
	}

	action := PendingAction{Kind: "delete_reminder", Args: map[string]any{"title": "pay rent"}}
	if err := s.SetPendingAction(ctx, "s1", action); err != nil {
		t.Fatalf("SetPendingAction() error = %v", err)
	}

	got, ok, err := s.PendingAction(ctx, "s1")
	if err != nil || !ok {
		t.Fatalf("PendingAction() after set: ok=%v err=%v, want ok=true", ok, err)
	}
	if got.Kind != action.Kind {
		t.Errorf("PendingAction() = %+v, want kind %q", got, action.Kind)
	}

	if err := s.ClearPendingAction(ctx, "s1"); err != nil {
		t.Fatalf("ClearPendingAction() error = %v", err)
	}
	if _, ok, _ := s.PendingAction(ctx, "s1"); ok {
		t.Error("PendingAction() after clear: want ok=false")
	}
}

func TestActiveProject(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if got, err := s.ActiveProject(ctx, "s1"); err != nil || got != "" {
		t.Fatalf("ActiveProject() before set = %q, err=%v, want empty", got, err)
	}
	if err := s.SetActiveProject(ctx, "s1", "Website Redesign"); err != nil {
		t.Fatalf("SetActiveProject() error = %v", err)
	}
	if got, err := s.ActiveProject(ctx, "s1"); err != nil || got != "Website Redesign" {
		t.Fatalf("ActiveProject() = %q, err=%v, want %q", got, err, "Website Redesign")
	}
}

func TestCoreMemory(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if err := s.SetCorePreference(ctx, "s1", "wake_up_time", "06:00"); err != nil {
		t.Fatalf("SetCorePreference() error = %v", err)
	}
	m, err := s.CoreMemory(ctx, "s1")
	if err != nil {
		t.Fatalf("CoreMemory() error = %v", err)
	}
	if m["wake_up_time"] != "06:00" {
		t.Errorf("CoreMemory() = %v, want wake_up_time=06:00", m)
	}
}

func TestDailySummaries(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if err := s.SetDailySummary(ctx, "s1", "2026-08-05", "finished the report"); err != nil {
		t.Fatalf("SetDailySummary() error = %v", err)
	}
	m, err := s.DailySummaries(ctx, "s1")
	if err != nil {
		t.Fatalf("DailySummaries() error = %v", err)
	}
	if m["2026-08-05"] != "finished the report" {
		t.Errorf("DailySummaries() = %v, want entry for 2026-08-05", m)
	}
}
