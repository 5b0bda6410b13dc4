package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/khazna/khazna/internal/push"
)

// runMorningSummary implements spec §4.9's "Morning summary (07:00 local):
// GET morning-summary endpoint → push to client" — today's plan plus any
// spending alerts.
func (s *Scheduler) runMorningSummary(ctx context.Context) error {
	now := s.localNow()
	plan, err := s.deps.Graph.QueryDailyPlan(ctx, now)
	if err != nil {
		return fmt.Errorf("morning summary: daily plan: %w", err)
	}
	alerts, err := s.deps.Graph.QuerySpendingAlerts(ctx, now)
	if err != nil {
		return fmt.Errorf("morning summary: spending alerts: %w", err)
	}

	s.deps.Push.Broadcast(push.Event{
		Type: "morning_summary",
		Payload: map[string]any{
			"daily_plan":      plan,
			"spending_alerts": alerts,
		},
	})
	return nil
}

// runNoonCheckin implements spec §4.9's "Noon check-in (13:00): overdue
// reminders; skip if empty."
func (s *Scheduler) runNoonCheckin(ctx context.Context) error {
	now := s.localNow()
	reminders, err := s.deps.Graph.QueryReminders(ctx, "pending", "")
	if err != nil {
		return fmt.Errorf("noon checkin: query reminders: %w", err)
	}

	var overdue []any
	for _, r := range reminders {
		due, ok := parseDueDate(r.Attributes["due_date"])
		if ok && due.Before(now) {
			overdue = append(overdue, r)
		}
	}
	if len(overdue) == 0 {
		return nil
	}

	s.deps.Push.Broadcast(push.Event{
		Type:    "noon_checkin",
		Payload: map[string]any{"overdue_reminders": overdue},
	})
	return nil
}

// runEveningSummary implements spec §4.9's "Evening summary (21:00):
// completed-today + tomorrow."
func (s *Scheduler) runEveningSummary(ctx context.Context) error {
	now := s.localNow()
	today := now.Format("2006-01-02")
	year, month, day := now.Date()
	tomorrowStart := time.Date(year, month, day+1, 0, 0, 0, 0, now.Location())
	tomorrowEnd := tomorrowStart.AddDate(0, 0, 1)

	doneTasks, err := s.deps.Graph.QueryTasks(ctx, "", "done")
	if err != nil {
		return fmt.Errorf("evening summary: tasks: %w", err)
	}
	var completedToday []string
	for _, t := range doneTasks {
		if t.UpdatedAt.In(now.Location()).Format("2006-01-02") == today {
			completedToday = append(completedToday, t.Name)
		}
	}

	doneReminders, err := s.deps.Graph.QueryReminders(ctx, "done", "")
	if err != nil {
		return fmt.Errorf("evening summary: done reminders: %w", err)
	}
	for _, r := range doneReminders {
		if r.UpdatedAt.In(now.Location()).Format("2006-01-02") == today {
			completedToday = append(completedToday, r.Name)
		}
	}

	pendingReminders, err := s.deps.Graph.QueryReminders(ctx, "pending", "")
	if err != nil {
		return fmt.Errorf("evening summary: pending reminders: %w", err)
	}
	var tomorrow []any
	for _, r := range pendingReminders {
		due, ok := parseDueDate(r.Attributes["due_date"])
		if ok && !due.Before(tomorrowStart) && due.Before(tomorrowEnd) {
			tomorrow = append(tomorrow, r)
		}
	}

	s.deps.Push.Broadcast(push.Event{
		Type: "evening_summary",
		Payload: map[string]any{
			"completed_today":    completedToday,
			"tomorrow_reminders": tomorrow,
		},
	})
	return nil
}

// runReminderCheck implements spec §4.9's "Reminder check (30-min
// interval): for each due reminder, notify then advance_recurring_reminder
// if recurring, else mark notified; persistent reminders are re-scheduled
// for the next nag cycle."
func (s *Scheduler) runReminderCheck(ctx context.Context) error {
	now := s.localNow()
	reminders, err := s.deps.Graph.QueryReminders(ctx, "pending", "")
	if err != nil {
		return fmt.Errorf("reminder check: query: %w", err)
	}

	var due []any
	for _, r := range reminders {
		dueAt, ok := parseDueDate(r.Attributes["due_date"])
		if !ok || dueAt.After(now) {
			continue
		}
		due = append(due, r)

		reminderType, _ := r.Attributes["reminder_type"].(string)
		recurrence, _ := r.Attributes["recurrence"].(string)
		persistent, _ := r.Attributes["persistent"].(bool)

		switch {
		case reminderType == "recurring" && recurrence != "":
			if _, err := s.deps.Graph.AdvanceRecurringReminder(ctx, r.Name, recurrence); err != nil {
				s.deps.Logger.Error("reminder check: advance recurring", "reminder", r.Name, "error", err)
			}
		case persistent:
			// Re-schedule for the next nag cycle instead of silencing it —
			// a persistent reminder stays pending until explicitly done.
			if err := s.deps.Graph.UpdateReminder(ctx, r.ID, map[string]any{
				"due_date": now.Add(time.Duration(s.cfg.ReminderCheckIntervalMinutes) * time.Minute).Format(time.RFC3339),
			}); err != nil {
				s.deps.Logger.Error("reminder check: reschedule persistent", "reminder", r.Name, "error", err)
			}
		default:
			if err := s.deps.Graph.UpdateReminder(ctx, r.ID, map[string]any{"status": "notified"}); err != nil {
				s.deps.Logger.Error("reminder check: mark notified", "reminder", r.Name, "error", err)
			}
		}
	}
	if len(due) == 0 {
		return nil
	}

	s.deps.Push.Broadcast(push.Event{
		Type:    "due_reminders",
		Payload: map[string]any{"due_reminders": due},
	})
	return nil
}

// runSmartAlerts implements spec §4.9's "Smart alerts (6-hour interval):
// stalled projects (no task update in N days), old debts (older than N
// days). Skip if empty."
func (s *Scheduler) runSmartAlerts(ctx context.Context) error {
	now := s.localNow()

	stalled, err := s.deps.Graph.QueryStalledProjects(ctx, now.AddDate(0, 0, -s.cfg.StalledProjectDays))
	if err != nil {
		return fmt.Errorf("smart alerts: stalled projects: %w", err)
	}
	oldDebts, err := s.deps.Graph.QueryOldDebts(ctx, now.AddDate(0, 0, -s.cfg.OldDebtDays))
	if err != nil {
		return fmt.Errorf("smart alerts: old debts: %w", err)
	}
	if len(stalled) == 0 && len(oldDebts) == 0 {
		return nil
	}

	s.deps.Push.Broadcast(push.Event{
		Type: "smart_alerts",
		Payload: map[string]any{
			"stalled_projects": stalled,
			"old_debts":        oldDebts,
		},
	})
	return nil
}

// runDailyBackup implements spec §4.9's "Daily backup (configurable hour):
// snapshot graph, vector, memory to data/backups/{timestamp}/; retain N
// days."
func (s *Scheduler) runDailyBackup(ctx context.Context) error {
	snap, err := s.deps.Backup.Run(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("daily backup: run: %w", err)
	}
	if err := s.deps.Backup.Retain(s.cfg.RetentionDays); err != nil {
		return fmt.Errorf("daily backup: retain: %w", err)
	}

	s.deps.Push.Broadcast(push.Event{
		Type:    "backup_complete",
		Payload: snap,
	})
	return nil
}

// parseDueDate reads a due_date attribute (stored as an RFC3339 string) off
// an entity's attribute map.
func parseDueDate(v any) (time.Time, bool) {
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
