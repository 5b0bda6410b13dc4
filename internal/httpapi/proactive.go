package httpapi

import (
	"net/http"
	"time"

	"github.com/khazna/khazna/internal/graphstore"
)

// proactiveDefaultStalledDays and proactiveDefaultOldDebtDays mirror the
// Scheduler's smart-alerts job defaults (spec §4.9), used when a caller
// doesn't override them via query parameters.
const (
	proactiveDefaultStalledDays = 14
	proactiveDefaultOldDebtDays = 30
)

func (h *Handler) registerProactive(mux *http.ServeMux) {
	mux.HandleFunc("GET /proactive/morning-summary", h.handleMorningSummary)
	mux.HandleFunc("GET /proactive/noon-checkin", h.handleNoonCheckin)
	mux.HandleFunc("GET /proactive/evening-summary", h.handleEveningSummary)
	mux.HandleFunc("GET /proactive/due-reminders", h.handleDueReminders)
	mux.HandleFunc("POST /proactive/advance-reminder", h.handleAdvanceReminder)
	mux.HandleFunc("GET /proactive/stalled-projects", h.handleStalledProjects)
	mux.HandleFunc("GET /proactive/old-debts", h.handleOldDebts)
	mux.HandleFunc("POST /proactive/reschedule-persistent", h.handleReschedulePersistent)
}

// handleMorningSummary implements spec §4.9's "morning summary" job as a
// pull endpoint: today's plan plus any spending alerts.
func (h *Handler) handleMorningSummary(w http.ResponseWriter, r *http.Request) {
	ctx := ctxOrBackground(r)
	now := h.deps.Now()

	plan, err := h.deps.Graph.QueryDailyPlan(ctx, now)
	if err != nil {
		writeError(w, "morning_summary", err)
		return
	}
	alerts, err := h.deps.Graph.QuerySpendingAlerts(ctx, now)
	if err != nil {
		writeError(w, "morning_summary", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"daily_plan": plan, "spending_alerts": alerts})
}

// handleNoonCheckin implements spec §4.9's "noon check-in": pending
// reminders already past due.
func (h *Handler) handleNoonCheckin(w http.ResponseWriter, r *http.Request) {
	ctx := ctxOrBackground(r)
	now := h.deps.Now()

	reminders, err := h.deps.Graph.QueryReminders(ctx, "pending", "")
	if err != nil {
		writeError(w, "noon_checkin", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"overdue_reminders": overdueReminders(reminders, now)})
}

// handleEveningSummary implements spec §4.9's "evening summary": tasks and
// reminders completed today, plus reminders due tomorrow.
func (h *Handler) handleEveningSummary(w http.ResponseWriter, r *http.Request) {
	ctx := ctxOrBackground(r)
	now := h.deps.Now()
	today := now.Format("2006-01-02")
	year, month, day := now.Date()
	tomorrowStart := time.Date(year, month, day+1, 0, 0, 0, 0, now.Location())
	tomorrowEnd := tomorrowStart.AddDate(0, 0, 1)

	doneTasks, err := h.deps.Graph.QueryTasks(ctx, "", "done")
	if err != nil {
		writeError(w, "evening_summary", err)
		return
	}
	var completedToday []string
	for _, t := range doneTasks {
		if t.UpdatedAt.In(now.Location()).Format("2006-01-02") == today {
			completedToday = append(completedToday, t.Name)
		}
	}

	doneReminders, err := h.deps.Graph.QueryReminders(ctx, "done", "")
	if err != nil {
		writeError(w, "evening_summary", err)
		return
	}
	for _, rem := range doneReminders {
		if rem.UpdatedAt.In(now.Location()).Format("2006-01-02") == today {
			completedToday = append(completedToday, rem.Name)
		}
	}

	pendingReminders, err := h.deps.Graph.QueryReminders(ctx, "pending", "")
	if err != nil {
		writeError(w, "evening_summary", err)
		return
	}
	var tomorrow []graphstore.Entity
	for _, rem := range pendingReminders {
		due, ok := parseDueDateAttr(rem.Attributes["due_date"])
		if ok && !due.Before(tomorrowStart) && due.Before(tomorrowEnd) {
			tomorrow = append(tomorrow, rem)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"completed_today":    completedToday,
		"tomorrow_reminders": tomorrow,
	})
}

// handleDueReminders implements spec §4.9's "reminder check": every
// pending reminder whose due_date has passed.
func (h *Handler) handleDueReminders(w http.ResponseWriter, r *http.Request) {
	ctx := ctxOrBackground(r)
	now := h.deps.Now()

	reminders, err := h.deps.Graph.QueryReminders(ctx, "pending", "")
	if err != nil {
		writeError(w, "due_reminders", err)
		return
	}
	writeJSON(w, http.StatusOK, overdueReminders(reminders, now))
}

type advanceReminderRequest struct {
	Title      string `json:"title"`
	Recurrence string `json:"recurrence"`
}

func (h *Handler) handleAdvanceReminder(w http.ResponseWriter, r *http.Request) {
	var req advanceReminderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, "advance_reminder", err)
		return
	}
	newDue, err := h.deps.Graph.AdvanceRecurringReminder(ctxOrBackground(r), req.Title, req.Recurrence)
	if err != nil {
		writeError(w, "advance_reminder", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"new_due_date": newDue.Format(time.RFC3339)})
}

func (h *Handler) handleStalledProjects(w http.ResponseWriter, r *http.Request) {
	since := h.deps.Now().AddDate(0, 0, -queryInt(r, "days", proactiveDefaultStalledDays))
	stalled, err := h.deps.Graph.QueryStalledProjects(ctxOrBackground(r), since)
	if err != nil {
		writeError(w, "stalled_projects", err)
		return
	}
	writeJSON(w, http.StatusOK, stalled)
}

func (h *Handler) handleOldDebts(w http.ResponseWriter, r *http.Request) {
	cutoff := h.deps.Now().AddDate(0, 0, -queryInt(r, "days", proactiveDefaultOldDebtDays))
	debts, err := h.deps.Graph.QueryOldDebts(ctxOrBackground(r), cutoff)
	if err != nil {
		writeError(w, "old_debts", err)
		return
	}
	writeJSON(w, http.StatusOK, debts)
}

// proactiveReminderCheckIntervalMinutes mirrors the Scheduler's default
// 30-minute reminder-check cadence (spec §4.9), used as the re-schedule
// step for persistent reminders nudged through this endpoint.
const proactiveReminderCheckIntervalMinutes = 30

// handleReschedulePersistent implements spec §4.9's "persistent reminders
// are re-scheduled for the next nag cycle" rule as a standalone endpoint:
// every due, persistent, pending reminder gets its due_date pushed forward
// by one reminder-check interval instead of being silenced.
func (h *Handler) handleReschedulePersistent(w http.ResponseWriter, r *http.Request) {
	ctx := ctxOrBackground(r)
	now := h.deps.Now()

	reminders, err := h.deps.Graph.QueryReminders(ctx, "pending", "")
	if err != nil {
		writeError(w, "reschedule_persistent", err)
		return
	}

	rescheduled := 0
	for _, rem := range reminders {
		persistent, _ := rem.Attributes["persistent"].(bool)
		if !persistent {
			continue
		}
		due, ok := parseDueDateAttr(rem.Attributes["due_date"])
		if !ok || due.After(now) {
			continue
		}
		next := now.Add(proactiveReminderCheckIntervalMinutes * time.Minute)
		if err := h.deps.Graph.UpdateReminder(ctx, rem.ID, map[string]any{"due_date": next.Format(time.RFC3339)}); err != nil {
			writeError(w, "reschedule_persistent", err)
			return
		}
		rescheduled++
	}
	writeJSON(w, http.StatusOK, map[string]int{"rescheduled": rescheduled})
}

func overdueReminders(reminders []graphstore.Entity, now time.Time) []graphstore.Entity {
	var overdue []graphstore.Entity
	for _, rem := range reminders {
		if due, ok := parseDueDateAttr(rem.Attributes["due_date"]); ok && due.Before(now) {
			overdue = append(overdue, rem)
		}
	}
	return overdue
}

func parseDueDateAttr(v any) (time.Time, bool) {
	s, ok := v.(string)
	if !ok || s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
