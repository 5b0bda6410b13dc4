package chatengine

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/khazna/khazna/internal/graphsvc"
	"github.com/khazna/khazna/internal/memstore"
	"github.com/khazna/khazna/internal/tools"
	"github.com/khazna/khazna/internal/tools/host"
	"github.com/khazna/khazna/pkg/llmgateway"
	"github.com/khazna/khazna/pkg/llmgateway/mock"
)

func newTestService(t *testing.T, provider *mock.Provider) (*Service, *host.Host) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	memGateway := llmgateway.New(&mock.Provider{CompleteResponse: &llmgateway.CompletionResponse{Content: "ملخص"}})
	mem := memstore.New(rdb, memGateway)

	h := host.New()
	gw := llmgateway.New(provider)

	svc := New(Deps{
		Gateway: gw,
		Memory:  mem,
		Tools:   h,
	})
	return svc, h
}

func TestChat_NoToolCall(t *testing.T) {
	provider := &mock.Provider{
		CompleteResponse: &llmgateway.CompletionResponse{Content: "مرحباً"},
	}
	svc, _ := newTestService(t, provider)

	result, err := svc.Chat(context.Background(), "السلام عليكم", "session1")
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if result.Reply != "مرحباً" {
		t.Errorf("Reply = %q, want %q", result.Reply, "مرحباً")
	}
	if len(result.ToolCalls) != 0 {
		t.Errorf("ToolCalls = %v, want empty", result.ToolCalls)
	}
}

func TestChat_ToolCallThenFinalAnswer(t *testing.T) {
	provider := &mock.Provider{
		CompleteResponses: []*llmgateway.CompletionResponse{
			{ToolCalls: []llmgateway.ToolCall{{ID: "1", Name: "echo_tool", Arguments: `{"x":1}`}}},
			{Content: "تم التنفيذ"},
		},
	}
	svc, h := newTestService(t, provider)

	_ = h.Register(tools.Tool{
		Definition: llmgateway.ToolDefinition{Name: "echo_tool", Parameters: map[string]any{"type": "object"}},
		Handler: func(ctx context.Context, args string) (string, error) {
			return `{"ok":true}`, nil
		},
		Class: tools.ClassRead,
	})

	result, err := svc.Chat(context.Background(), "نفذ المهمة", "session2")
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if result.Reply != "تم التنفيذ" {
		t.Errorf("Reply = %q, want %q", result.Reply, "تم التنفيذ")
	}
	if len(result.ToolCalls) != 1 || result.ToolCalls[0].Name != "echo_tool" {
		t.Fatalf("ToolCalls = %+v, want one echo_tool call", result.ToolCalls)
	}
	if result.ToolCalls[0].IsError {
		t.Errorf("ToolCalls[0].IsError = true, want false")
	}
}

func TestChat_ForcesTextReplyOnThirdIteration(t *testing.T) {
	provider := &mock.Provider{
		CompleteResponses: []*llmgateway.CompletionResponse{
			{ToolCalls: []llmgateway.ToolCall{{ID: "1", Name: "echo_tool", Arguments: "{}"}}},
			{ToolCalls: []llmgateway.ToolCall{{ID: "2", Name: "echo_tool", Arguments: "{}"}}},
			{Content: "إجابة نهائية"},
		},
	}
	svc, h := newTestService(t, provider)
	_ = h.Register(tools.Tool{
		Definition: llmgateway.ToolDefinition{Name: "echo_tool", Parameters: map[string]any{"type": "object"}},
		Handler: func(ctx context.Context, args string) (string, error) {
			return `{"ok":true}`, nil
		},
		Class: tools.ClassRead,
	})

	result, err := svc.Chat(context.Background(), "استمر", "session3")
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if result.Reply != "إجابة نهائية" {
		t.Errorf("Reply = %q, want %q", result.Reply, "إجابة نهائية")
	}
	if len(provider.CompleteCalls) != 3 {
		t.Fatalf("CompleteCalls = %d, want 3", len(provider.CompleteCalls))
	}
	if provider.CompleteCalls[2].Req.Tools != nil {
		t.Errorf("3rd iteration req.Tools = %v, want nil (forced text reply)", provider.CompleteCalls[2].Req.Tools)
	}
}

func TestFallbackReply(t *testing.T) {
	traces := []ToolCallTrace{
		{Name: "add_expense", Result: `{"ok":true,"summary":"logged 10 SAR"}`},
		{Name: "pay_debt", Result: `{"ok":false,"error":"debt not found"}`, IsError: true},
	}
	got := fallbackReply(traces)
	if got == "" {
		t.Fatal("fallbackReply() returned empty string")
	}
}

func TestFallbackReply_Empty(t *testing.T) {
	got := fallbackReply(nil)
	if got == "" {
		t.Fatal("fallbackReply(nil) returned empty string")
	}
}

func TestSanitizeForMemory(t *testing.T) {
	msg := "Tools available: search_knowledge, add_expense\n\nاشتريت قهوة بعشرين ريال"
	got := sanitizeForMemory(msg)
	if got == msg {
		t.Errorf("sanitizeForMemory() did not strip the tools-available block")
	}
}

func TestParseExtractedFacts(t *testing.T) {
	raw := `{"entities":[{"type":"Person","name":"Ahmed","attributes":{"company":"Acme"}},` +
		`{"type":"Company","name":"Acme","attributes":{}}],` +
		`"relationships":[{"source":"Ahmed","target":"Acme","type":"WORKS_AT"}]}`

	facts, err := graphsvc.ParseExtractedFacts(raw)
	if err != nil {
		t.Fatalf("graphsvc.ParseExtractedFacts() error = %v", err)
	}
	if len(facts) != 2 {
		t.Fatalf("len(facts) = %d, want 2", len(facts))
	}
	if facts[0].Name != "Ahmed" || len(facts[0].Relationships) != 1 {
		t.Fatalf("facts[0] = %+v, want one relationship to Acme", facts[0])
	}
	if facts[0].Relationships[0].TargetType != "Company" {
		t.Errorf("TargetType = %q, want Company", facts[0].Relationships[0].TargetType)
	}
}
