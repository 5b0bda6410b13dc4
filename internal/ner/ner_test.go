package ner

import (
	"context"
	"testing"

	"github.com/khazna/khazna/pkg/llmgateway"
	"github.com/khazna/khazna/pkg/llmgateway/mock"
)

func TestExtract_Empty(t *testing.T) {
	r := New(llmgateway.New(&mock.Provider{}))
	hints, err := r.Extract(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hints) != 0 {
		t.Errorf("Extract(\"\") = %v, want empty", hints)
	}
}

func TestExtract_ParsesAndFilters(t *testing.T) {
	provider := &mock.Provider{
		CompleteResponse: &llmgateway.CompletionResponse{Content: `[
			{"entity_group":"Person","word":"Ahmed","score":0.9},
			{"entity_group":"Person","word":"Ahmed","score":0.9},
			{"entity_group":"Misc","word":"x","score":0.95},
			{"entity_group":"Location","word":"Riyadh","score":0.5}
		]`},
	}
	r := New(llmgateway.New(provider))
	hints, err := r.Extract(context.Background(), "قابلت أحمد في الرياض")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hints) != 1 {
		t.Fatalf("Extract(): want 1 hint (dup removed, low-score and short word dropped), got %d: %+v", len(hints), hints)
	}
	if hints[0].Word != "Ahmed" {
		t.Errorf("Extract(): want Ahmed, got %q", hints[0].Word)
	}
}

func TestExtract_MalformedJSONIsNotFatal(t *testing.T) {
	provider := &mock.Provider{
		CompleteResponse: &llmgateway.CompletionResponse{Content: "not json at all"},
	}
	r := New(llmgateway.New(provider))
	hints, err := r.Extract(context.Background(), "some text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hints != nil {
		t.Errorf("Extract() with malformed output: want nil, got %v", hints)
	}
}

func TestExtract_ProviderError(t *testing.T) {
	wantErr := context.DeadlineExceeded
	provider := &mock.Provider{CompleteErr: wantErr}
	r := New(llmgateway.New(provider))
	_, err := r.Extract(context.Background(), "some text")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}
