package httpapi

import (
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/antzucaro/matchr"

	"github.com/khazna/khazna/internal/apperr"
	"github.com/khazna/khazna/internal/graphstore"
)

func (h *Handler) registerReminders(mux *http.ServeMux) {
	mux.HandleFunc("GET /reminders/", h.handleRemindersList)
	mux.HandleFunc("POST /reminders/action", h.handleReminderAction)
	mux.HandleFunc("POST /reminders/update", h.handleReminderUpdate)
	mux.HandleFunc("POST /reminders/delete", h.handleReminderDelete)
	mux.HandleFunc("POST /reminders/delete-all", h.handleReminderDeleteAll)
	mux.HandleFunc("POST /reminders/merge-duplicates", h.handleReminderMergeDuplicates)
}

func (h *Handler) handleRemindersList(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	includeOverdue := r.URL.Query().Get("include_overdue") == "true"

	reminders, err := h.deps.Graph.QueryReminders(ctxOrBackground(r), status, "")
	if err != nil {
		writeError(w, "reminders_list", err)
		return
	}
	if includeOverdue {
		now := h.deps.Now()
		var overdue []graphstore.Entity
		for _, rem := range reminders {
			due, ok := rem.Attributes["due_date"].(string)
			if !ok {
				continue
			}
			if t, err := time.Parse(time.RFC3339, due); err == nil && t.Before(now) {
				overdue = append(overdue, rem)
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"reminders": reminders, "overdue": overdue})
		return
	}
	writeJSON(w, http.StatusOK, reminders)
}

type reminderActionRequest struct {
	ReminderID string `json:"reminder_id"`
	Action     string `json:"action"` // done|snooze|cancel
	SnoozeUntil string `json:"snooze_until,omitempty"`
}

func (h *Handler) handleReminderAction(w http.ResponseWriter, r *http.Request) {
	var req reminderActionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, "reminder_action", err)
		return
	}
	if req.ReminderID == "" {
		writeError(w, "reminder_action", apperr.Validation("httpapi.handleReminderAction", errReminderIDRequired))
		return
	}

	var updates map[string]any
	switch req.Action {
	case "done":
		updates = map[string]any{"status": "done"}
	case "cancel":
		updates = map[string]any{"status": "cancelled"}
	case "snooze":
		until := req.SnoozeUntil
		if until == "" {
			until = h.deps.Now().Add(time.Hour).Format(time.RFC3339)
		}
		updates = map[string]any{"due_date": until}
	default:
		writeError(w, "reminder_action", apperr.Validation("httpapi.handleReminderAction", errUnknownReminderAction))
		return
	}

	if err := h.deps.Graph.UpdateReminder(ctxOrBackground(r), req.ReminderID, updates); err != nil {
		writeError(w, "reminder_action", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type reminderUpdateRequest struct {
	ReminderID string         `json:"reminder_id"`
	Updates    map[string]any `json:"updates"`
}

func (h *Handler) handleReminderUpdate(w http.ResponseWriter, r *http.Request) {
	var req reminderUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, "reminder_update", err)
		return
	}
	if req.ReminderID == "" {
		writeError(w, "reminder_update", apperr.Validation("httpapi.handleReminderUpdate", errReminderIDRequired))
		return
	}
	if err := h.deps.Graph.UpdateReminder(ctxOrBackground(r), req.ReminderID, req.Updates); err != nil {
		writeError(w, "reminder_update", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type reminderDeleteRequest struct {
	ReminderID string `json:"reminder_id"`
}

func (h *Handler) handleReminderDelete(w http.ResponseWriter, r *http.Request) {
	var req reminderDeleteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, "reminder_delete", err)
		return
	}
	if req.ReminderID == "" {
		writeError(w, "reminder_delete", apperr.Validation("httpapi.handleReminderDelete", errReminderIDRequired))
		return
	}
	if err := h.deps.Graph.DeleteReminder(ctxOrBackground(r), req.ReminderID); err != nil {
		writeError(w, "reminder_delete", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleReminderDeleteAll(w http.ResponseWriter, r *http.Request) {
	ctx := ctxOrBackground(r)
	reminders, err := h.deps.Graph.QueryReminders(ctx, "", "")
	if err != nil {
		writeError(w, "reminder_delete_all", err)
		return
	}
	for _, rem := range reminders {
		if err := h.deps.Graph.DeleteReminder(ctx, rem.ID); err != nil {
			writeError(w, "reminder_delete_all", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": len(reminders)})
}

// reminderMergeThreshold mirrors the orchestrator's auto-dismiss fuzzy
// match cutoff (chatengine.reminderDismissThreshold): two pending reminders
// whose names score at or above this under Jaro-Winkler are treated as
// duplicates of each other.
const reminderMergeThreshold = 0.82

// handleReminderMergeDuplicates groups pending reminders by fuzzy name
// similarity and cancels every duplicate but the earliest-created one in
// each group, per spec §6's `reminders/merge-duplicates`.
func (h *Handler) handleReminderMergeDuplicates(w http.ResponseWriter, r *http.Request) {
	ctx := ctxOrBackground(r)
	reminders, err := h.deps.Graph.QueryReminders(ctx, "pending", "")
	if err != nil {
		writeError(w, "reminder_merge_duplicates", err)
		return
	}
	sort.SliceStable(reminders, func(i, j int) bool {
		return reminders[i].CreatedAt.Before(reminders[j].CreatedAt)
	})

	merged := 0
	kept := make([]bool, len(reminders))
	for i := range reminders {
		if kept[i] {
			continue
		}
		kept[i] = true
		for j := i + 1; j < len(reminders); j++ {
			if kept[j] {
				continue
			}
			if matchr.JaroWinkler(strings.ToLower(reminders[i].Name), strings.ToLower(reminders[j].Name), false) >= reminderMergeThreshold {
				if err := h.deps.Graph.UpdateReminder(ctx, reminders[j].ID, map[string]any{"status": "cancelled"}); err != nil {
					writeError(w, "reminder_merge_duplicates", err)
					return
				}
				kept[j] = true
				merged++
			}
		}
	}

	writeJSON(w, http.StatusOK, map[string]int{"merged": merged})
}

