package httpapi

import (
	"net/http"

	"github.com/khazna/khazna/internal/apperr"
)

func (h *Handler) registerGraphViz(mux *http.ServeMux) {
	mux.HandleFunc("GET /graph/export", h.handleGraphExport)
	mux.HandleFunc("GET /graph/schema", h.handleGraphSchema)
	mux.HandleFunc("GET /graph/stats", h.handleGraphStats)
	mux.HandleFunc("GET /graph/image", h.handleGraphImage)
}

func (h *Handler) handleGraphExport(w http.ResponseWriter, r *http.Request) {
	export, err := h.deps.GraphViz.Export(ctxOrBackground(r))
	if err != nil {
		writeError(w, "graph_export", apperr.BackendUnavailable("httpapi.handleGraphExport", err))
		return
	}
	writeJSON(w, http.StatusOK, export)
}

func (h *Handler) handleGraphSchema(w http.ResponseWriter, r *http.Request) {
	schema, err := h.deps.GraphViz.Schema(ctxOrBackground(r))
	if err != nil {
		writeError(w, "graph_schema", apperr.BackendUnavailable("httpapi.handleGraphSchema", err))
		return
	}
	writeJSON(w, http.StatusOK, schema)
}

func (h *Handler) handleGraphStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.deps.GraphViz.Stats(ctxOrBackground(r))
	if err != nil {
		writeError(w, "graph_stats", apperr.BackendUnavailable("httpapi.handleGraphStats", err))
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleGraphImage(w http.ResponseWriter, r *http.Request) {
	png, err := h.deps.GraphViz.RenderPNG(ctxOrBackground(r))
	if err != nil {
		writeError(w, "graph_image", apperr.BackendUnavailable("httpapi.handleGraphImage", err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}
