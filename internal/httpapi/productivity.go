package httpapi

import (
	"net/http"
	"time"

	"github.com/khazna/khazna/internal/apperr"
	"github.com/khazna/khazna/internal/graphsvc"
)

func (h *Handler) registerProductivity(mux *http.ServeMux) {
	mux.HandleFunc("GET /productivity/sprints", h.handleSprintsList)
	mux.HandleFunc("POST /productivity/sprints", h.handleSprintCreate)
	mux.HandleFunc("POST /productivity/sprints/update", h.handleSprintUpdate)
	mux.HandleFunc("GET /productivity/sprints/burndown", h.handleSprintBurndown)
	mux.HandleFunc("GET /productivity/sprints/velocity", h.handleSprintVelocity)
	mux.HandleFunc("POST /productivity/focus/start", h.handleFocusStart)
	mux.HandleFunc("POST /productivity/focus/complete", h.handleFocusComplete)
	mux.HandleFunc("GET /productivity/focus/stats", h.handleFocusStats)
	mux.HandleFunc("GET /productivity/timeblock/suggest", h.handleTimeblockSuggest)
	mux.HandleFunc("POST /productivity/timeblock/apply", h.handleTimeblockApply)
}

func (h *Handler) handleSprintsList(w http.ResponseWriter, r *http.Request) {
	sprints, err := h.deps.Graph.QuerySprintStatus(ctxOrBackground(r), r.URL.Query().Get("project"))
	if err != nil {
		writeError(w, "sprints_list", err)
		return
	}
	writeJSON(w, http.StatusOK, sprints)
}

type sprintRequest struct {
	Name      string `json:"name"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Project   string `json:"project"`
	Goal      string `json:"goal"`
	Status    string `json:"status"`
}

func (h *Handler) handleSprintCreate(w http.ResponseWriter, r *http.Request) {
	var req sprintRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, "sprint_create", err)
		return
	}
	if req.Name == "" {
		writeError(w, "sprint_create", apperr.Validation("httpapi.handleSprintCreate", errSprintNameRequired))
		return
	}
	id, err := h.deps.Graph.UpsertSprint(ctxOrBackground(r), graphsvc.SprintParams{
		Name:      req.Name,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Project:   req.Project,
		Goal:      req.Goal,
		Status:    req.Status,
	})
	if err != nil {
		writeError(w, "sprint_create", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

func (h *Handler) handleSprintUpdate(w http.ResponseWriter, r *http.Request) {
	h.handleGenericEntityUpdate(w, r, "sprint_update")
}

// handleSprintBurndown implements spec §6's `productivity/sprints/burndown`:
// for the named sprint, how many of its tasks remain open versus done,
// bucketed by day so a client can plot a burndown chart.
func (h *Handler) handleSprintBurndown(w http.ResponseWriter, r *http.Request) {
	sprint := r.URL.Query().Get("sprint")
	if sprint == "" {
		writeError(w, "sprint_burndown", apperr.Validation("httpapi.handleSprintBurndown", errSprintRequired))
		return
	}
	ctx := ctxOrBackground(r)
	tasks, err := h.deps.Graph.QueryTasks(ctx, "", "")
	if err != nil {
		writeError(w, "sprint_burndown", err)
		return
	}

	remaining, done := 0, 0
	byDay := map[string]int{}
	for _, t := range tasks {
		if s, _ := t.Attributes["sprint"].(string); s != sprint {
			continue
		}
		status, _ := t.Attributes["status"].(string)
		if status == "done" {
			done++
			byDay[t.UpdatedAt.Format("2006-01-02")]++
		} else {
			remaining++
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sprint":          sprint,
		"remaining":       remaining,
		"done":            done,
		"completed_by_day": byDay,
	})
}

// handleSprintVelocity implements spec §6's `productivity/sprints/velocity`:
// average number of tasks completed per closed sprint for the project.
func (h *Handler) handleSprintVelocity(w http.ResponseWriter, r *http.Request) {
	ctx := ctxOrBackground(r)
	project := r.URL.Query().Get("project")

	sprints, err := h.deps.Graph.QuerySprintStatus(ctx, project)
	if err != nil {
		writeError(w, "sprint_velocity", err)
		return
	}
	tasks, err := h.deps.Graph.QueryTasks(ctx, project, "done")
	if err != nil {
		writeError(w, "sprint_velocity", err)
		return
	}

	doneBySprint := map[string]int{}
	for _, t := range tasks {
		if s, _ := t.Attributes["sprint"].(string); s != "" {
			doneBySprint[s]++
		}
	}

	closed := 0
	total := 0
	for _, sp := range sprints {
		status, _ := sp.Attributes["status"].(string)
		if status != "completed" {
			continue
		}
		closed++
		total += doneBySprint[sp.Name]
	}
	velocity := 0.0
	if closed > 0 {
		velocity = float64(total) / float64(closed)
	}
	writeJSON(w, http.StatusOK, map[string]any{"closed_sprints": closed, "average_tasks_per_sprint": velocity})
}

type focusStartRequest struct {
	Task string `json:"task"`
}

func (h *Handler) handleFocusStart(w http.ResponseWriter, r *http.Request) {
	var req focusStartRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, "focus_start", err)
		return
	}
	id, err := h.deps.Graph.UpsertFocusSession(ctxOrBackground(r), graphsvc.FocusSessionParams{
		StartTime: h.deps.Now(),
		Task:      req.Task,
	})
	if err != nil {
		writeError(w, "focus_start", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

type focusCompleteRequest struct {
	SessionID   string `json:"session_id"`
	Task        string `json:"task"`
	DurationMin int    `json:"duration_min"`
	Completed   bool   `json:"completed"`
}

func (h *Handler) handleFocusComplete(w http.ResponseWriter, r *http.Request) {
	var req focusCompleteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, "focus_complete", err)
		return
	}
	now := h.deps.Now()
	id, err := h.deps.Graph.UpsertFocusSession(ctxOrBackground(r), graphsvc.FocusSessionParams{
		StartTime:   now.Add(-time.Duration(req.DurationMin) * time.Minute),
		EndTime:     &now,
		DurationMin: req.DurationMin,
		Task:        req.Task,
		Completed:   true,
	})
	if err != nil {
		writeError(w, "focus_complete", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

func (h *Handler) handleFocusStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.deps.Graph.QueryFocusStats(ctxOrBackground(r), r.URL.Query().Get("task"))
	if err != nil {
		writeError(w, "focus_stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// timeblockSlotMinutes is the granularity timeblock suggestions snap to.
const timeblockSlotMinutes = 30

// handleTimeblockSuggest implements spec §6's
// `productivity/timeblock/suggest`: open todo tasks, ordered so
// high-energy tasks land on the earliest free slots of the day (spec §3's
// Task.energy_level is read here for exactly that purpose).
func (h *Handler) handleTimeblockSuggest(w http.ResponseWriter, r *http.Request) {
	ctx := ctxOrBackground(r)
	tasks, err := h.deps.Graph.QueryTasks(ctx, "", "todo")
	if err != nil {
		writeError(w, "timeblock_suggest", err)
		return
	}

	energyRank := map[string]int{"high": 0, "medium": 1, "low": 2}
	ordered := make([]any, 0, len(tasks))
	slotStart := h.deps.Now().Truncate(time.Minute)
	for rank := 0; rank <= 2; rank++ {
		for _, t := range tasks {
			level, _ := t.Attributes["energy_level"].(string)
			if energyRank[level] != rank {
				continue
			}
			end := slotStart.Add(timeblockSlotMinutes * time.Minute)
			ordered = append(ordered, map[string]any{
				"task":       t.Name,
				"start_time": slotStart.Format(time.RFC3339),
				"end_time":   end.Format(time.RFC3339),
			})
			slotStart = end
		}
	}
	writeJSON(w, http.StatusOK, ordered)
}

type timeblockApplyRequest struct {
	Task      string `json:"task"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

func (h *Handler) handleTimeblockApply(w http.ResponseWriter, r *http.Request) {
	var req timeblockApplyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, "timeblock_apply", err)
		return
	}
	if req.Task == "" {
		writeError(w, "timeblock_apply", apperr.Validation("httpapi.handleTimeblockApply", errTaskRequired))
		return
	}
	_, err := h.deps.Graph.UpsertTask(ctxOrBackground(r), graphsvc.TaskParams{
		Name:      req.Task,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
	})
	if err != nil {
		writeError(w, "timeblock_apply", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
