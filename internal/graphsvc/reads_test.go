package graphsvc

import (
	"context"
	"testing"

	"github.com/khazna/khazna/internal/graphstore"
)

func TestQueryRetrieval_FiltersLowScoringResultsAndKeepsMajority(t *testing.T) {
	svc, graph := newTestService()
	graph.embeddingResults = []graphstore.ContextResult{
		{Entity: graphstore.Entity{ID: "k1"}, Content: "relevant", Score: 0.8},
		{Entity: graphstore.Entity{ID: "k2"}, Content: "also relevant", Score: 0.4},
		{Entity: graphstore.Entity{ID: "k3"}, Content: "noise", Score: 0.1},
	}
	graph.contextResults = []graphstore.ContextResult{
		{Entity: graphstore.Entity{ID: "fts"}, Content: "should not be used", Score: 0.9},
	}

	got, err := svc.QueryRetrieval(context.Background(), "query", []float32{0.1, 0.2}, 3, 0.3)
	if err != nil {
		t.Fatalf("QueryRetrieval() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("QueryRetrieval() = %v, want 2 results above threshold", got)
	}
	for _, r := range got {
		if r.Score < 0.3 {
			t.Errorf("result %+v scores below the threshold", r)
		}
	}
}

func TestQueryRetrieval_RetriesWithFullTextWhenFilterRejectsTooMuch(t *testing.T) {
	svc, graph := newTestService()
	graph.embeddingResults = []graphstore.ContextResult{
		{Entity: graphstore.Entity{ID: "k1"}, Content: "barely related", Score: 0.2},
		{Entity: graphstore.Entity{ID: "k2"}, Content: "unrelated", Score: 0.1},
	}
	graph.contextResults = []graphstore.ContextResult{
		{Entity: graphstore.Entity{ID: "fts"}, Content: "found via full-text search", Score: 0.95},
	}

	got, err := svc.QueryRetrieval(context.Background(), "query", []float32{0.1, 0.2}, 2, 0.3)
	if err != nil {
		t.Fatalf("QueryRetrieval() error = %v", err)
	}
	if len(got) != 1 || got[0].Entity.ID != "fts" {
		t.Fatalf("QueryRetrieval() = %v, want the full-text retry result", got)
	}
}

func TestQueryRetrieval_RetriesWhenPrimaryFindsNothing(t *testing.T) {
	svc, graph := newTestService()
	graph.contextResults = []graphstore.ContextResult{
		{Entity: graphstore.Entity{ID: "fts"}, Content: "found via full-text search", Score: 0.6},
	}

	got, err := svc.QueryRetrieval(context.Background(), "query", []float32{0.1, 0.2}, 5, 0.3)
	if err != nil {
		t.Fatalf("QueryRetrieval() error = %v", err)
	}
	if len(got) != 1 || got[0].Entity.ID != "fts" {
		t.Fatalf("QueryRetrieval() = %v, want the full-text retry result", got)
	}
}
