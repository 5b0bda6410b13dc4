package httpapi

import (
	"context"
	"net/http"

	"github.com/khazna/khazna/internal/apperr"
	"github.com/khazna/khazna/internal/vectorstore"
)

func (h *Handler) registerSearch(mux *http.ServeMux) {
	mux.HandleFunc("POST /search/", h.handleSearch)
}

type searchRequest struct {
	Query  string `json:"query"`
	Source string `json:"source"` // auto|vector|graph
	Limit  int    `json:"limit"`
}

type searchResult struct {
	Vector []vectorstore.ChunkResult `json:"vector,omitempty"`
	Graph  []any                     `json:"graph,omitempty"`
}

const defaultSearchLimit = 10

// handleSearch implements spec §6's `POST /search/`: source "vector" runs a
// semantic chunk search, "graph" runs a knowledge-graph lookup by name, and
// "auto" runs the vector search and falls back to the graph lookup only
// when the vector search returns nothing (spec §4.1's
// retrieval engine does the same blend inside the chat loop; this endpoint
// exposes it standalone for clients that want raw retrieval without a
// generated reply).
func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, "search", err)
		return
	}
	if req.Query == "" {
		writeError(w, "search", apperr.Validation("httpapi.handleSearch", errQueryRequired))
		return
	}
	if req.Limit <= 0 {
		req.Limit = defaultSearchLimit
	}
	if req.Source == "" {
		req.Source = "auto"
	}

	ctx := ctxOrBackground(r)
	result := searchResult{}

	if req.Source == "vector" || req.Source == "auto" {
		vecResults, err := h.searchVector(ctx, req.Query, req.Limit)
		if err != nil {
			writeError(w, "search", err)
			return
		}
		result.Vector = vecResults
	}

	if req.Source == "graph" || (req.Source == "auto" && len(result.Vector) == 0) {
		entity, related, err := h.deps.Graph.QueryPersonContext(ctx, req.Query)
		if err != nil {
			writeError(w, "search", err)
			return
		}
		if entity != nil {
			result.Graph = append([]any{*entity}, toAnySlice(related)...)
		}
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) searchVector(ctx context.Context, query string, limit int) ([]vectorstore.ChunkResult, error) {
	embedding, err := h.deps.Embed.Embed(ctx, query)
	if err != nil {
		return nil, apperr.BackendUnavailable("httpapi.searchVector", err)
	}
	results, err := h.deps.Vectors.Search(ctx, embedding, limit, vectorstore.ChunkFilter{})
	if err != nil {
		return nil, apperr.BackendUnavailable("httpapi.searchVector", err)
	}
	return results, nil
}

func toAnySlice[T any](items []T) []any {
	out := make([]any, len(items))
	for i, v := range items {
		out[i] = v
	}
	return out
}
