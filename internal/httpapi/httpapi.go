// Package httpapi implements spec §6's HTTP surface: chat, ingestion,
// search, financial, reminders, tasks/projects/knowledge, inventory,
// productivity, proactive, backup, and graph-viz endpoints.
//
// Handlers are grouped one file per REST group, following the teacher's
// internal/health convention of a Handler with a Register(mux) method
// rather than a third-party router — stdlib net/http.ServeMux's Go 1.22+
// method+path patterns cover every route this surface needs.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/khazna/khazna/internal/apperr"
	"github.com/khazna/khazna/internal/backup"
	"github.com/khazna/khazna/internal/chatengine"
	"github.com/khazna/khazna/internal/fileproc"
	"github.com/khazna/khazna/internal/graphsvc"
	"github.com/khazna/khazna/internal/graphviz"
	"github.com/khazna/khazna/internal/ingest"
	"github.com/khazna/khazna/internal/push"
	"github.com/khazna/khazna/internal/vectorstore"
	"github.com/khazna/khazna/pkg/embeddings"
	"github.com/khazna/khazna/pkg/llmgateway"
)

// Deps bundles every service the HTTP surface calls into. Not every
// handler uses every field.
type Deps struct {
	Chat     *chatengine.Service
	Ingest   *ingest.Service
	FileProc *fileproc.Service
	Graph    *graphsvc.Service
	Vectors  vectorstore.Store
	Embed    embeddings.Provider
	Gateway  *llmgateway.Gateway
	Backup   *backup.Service
	GraphViz *graphviz.Service
	Push     *push.Hub
	Logger   *slog.Logger

	// FilesDir is the root directory uploaded files are written under
	// (spec's `data/files/{hash[:2]}/{hash}.{ext}` layout).
	FilesDir string

	// Now returns the current time; overridable in tests.
	Now func() time.Time
}

// Handler serves every route spec §6 names. The zero value is not usable;
// construct with [New].
type Handler struct {
	deps Deps
}

// New returns a Handler backed by deps.
func New(deps Deps) *Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Handler{deps: deps}
}

// Register adds every route this package serves to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	h.registerChat(mux)
	h.registerIngest(mux)
	h.registerSearch(mux)
	h.registerFinancial(mux)
	h.registerReminders(mux)
	h.registerKnowledge(mux)
	h.registerInventory(mux)
	h.registerProductivity(mux)
	h.registerProactive(mux)
	h.registerBackup(mux)
	h.registerGraphViz(mux)
	if h.deps.Push != nil {
		mux.HandleFunc("GET /push/ws", h.deps.Push.ServeHTTP)
	}
}

// ── JSON helpers ─────────────────────────────────────────────────────────

// writeJSON encodes v as the response body with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("httpapi: encode response failed", "error", err)
	}
}

// writeError maps err to a status code via [apperr.HTTPStatus] and writes
// a JSON error envelope. apperr.KindConflictDuplicate and
// apperr.KindExtractionEmpty map to 200 (spec §7: not errors), so callers
// that want that behaviour should not route those through writeError —
// they write their own 200 body instead.
func writeError(w http.ResponseWriter, op string, err error) {
	status := apperr.HTTPStatus(err)
	writeJSON(w, status, map[string]string{"error": err.Error(), "op": op})
}

// decodeJSON reads and decodes the request body into v, returning a
// [apperr.Validation] error on malformed JSON.
func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.Validation("httpapi.decodeJSON", err)
	}
	return nil
}

// requireQuery returns the query parameter's value and a [apperr.Validation]
// error when it is missing.
func requireQuery(r *http.Request, name string) (string, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return "", apperr.Validation("httpapi.requireQuery", errors.New("missing required query parameter: "+name))
	}
	return v, nil
}

// ctxOrBackground returns the request's context, falling back to a fresh
// background context on nil (never happens for *http.Request in practice,
// kept for the handful of tests that build requests by hand).
func ctxOrBackground(r *http.Request) context.Context {
	if r.Context() != nil {
		return r.Context()
	}
	return context.Background()
}

var (
	errMessageAndSessionRequired = errors.New("message and session_id are required")
	errQueryRequired         = errors.New("query is required")
	errDebtIDRequired        = errors.New("debt_id is required")
	errReminderIDRequired    = errors.New("reminder_id is required")
	errUnknownReminderAction = errors.New("action must be one of: done, snooze, cancel")
	errEntityIDRequired      = errors.New("id is required")
	errItemNameRequired      = errors.New("name is required")
	errItemIDRequired        = errors.New("item_id is required")
	errBarcodeNotFound       = errors.New("no item with that barcode")
	errSprintNameRequired    = errors.New("name is required")
	errSprintRequired        = errors.New("sprint is required")
	errTaskRequired          = errors.New("task is required")
)
