package httpapi

import (
	"net/http"

	"github.com/khazna/khazna/internal/apperr"
)

func (h *Handler) registerKnowledge(mux *http.ServeMux) {
	mux.HandleFunc("GET /tasks/", h.handleTasksList)
	mux.HandleFunc("POST /tasks/update", h.handleTaskUpdate)
	mux.HandleFunc("GET /projects/", h.handleProjectsList)
	mux.HandleFunc("POST /projects/update", h.handleProjectUpdate)
	mux.HandleFunc("GET /knowledge/", h.handleKnowledgeList)
	mux.HandleFunc("POST /knowledge/update", h.handleKnowledgeUpdate)
}

func (h *Handler) handleTasksList(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.deps.Graph.QueryTasks(ctxOrBackground(r), r.URL.Query().Get("project"), r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, "tasks_list", err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

type entityUpdateRequest struct {
	ID      string         `json:"id"`
	Updates map[string]any `json:"updates"`
}

func (h *Handler) handleTaskUpdate(w http.ResponseWriter, r *http.Request) {
	h.handleGenericEntityUpdate(w, r, "task_update")
}

func (h *Handler) handleProjectsList(w http.ResponseWriter, r *http.Request) {
	projects, err := h.deps.Graph.QueryProjectsOverview(ctxOrBackground(r))
	if err != nil {
		writeError(w, "projects_list", err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

func (h *Handler) handleProjectUpdate(w http.ResponseWriter, r *http.Request) {
	h.handleGenericEntityUpdate(w, r, "project_update")
}

func (h *Handler) handleKnowledgeList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	limit := queryInt(r, "limit", defaultSearchLimit)
	knowledge, err := h.deps.Graph.QueryKnowledge(ctxOrBackground(r), query, limit)
	if err != nil {
		writeError(w, "knowledge_list", err)
		return
	}
	writeJSON(w, http.StatusOK, knowledge)
}

func (h *Handler) handleKnowledgeUpdate(w http.ResponseWriter, r *http.Request) {
	h.handleGenericEntityUpdate(w, r, "knowledge_update")
}

// handleGenericEntityUpdate backs every `*/update` route that just applies
// a partial attribute patch to an existing entity by ID, regardless of its
// type (spec §6's tasks/projects/knowledge update endpoints share this
// shape).
func (h *Handler) handleGenericEntityUpdate(w http.ResponseWriter, r *http.Request, op string) {
	var req entityUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, op, err)
		return
	}
	if req.ID == "" {
		writeError(w, op, apperr.Validation("httpapi.handleGenericEntityUpdate", errEntityIDRequired))
		return
	}
	if err := h.deps.Graph.UpdateEntity(ctxOrBackground(r), req.ID, req.Updates); err != nil {
		writeError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
