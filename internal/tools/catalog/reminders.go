package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/antzucaro/matchr"

	"github.com/khazna/khazna/internal/entityresolve"
	"github.com/khazna/khazna/internal/graphsvc"
	"github.com/khazna/khazna/internal/graphstore"
	"github.com/khazna/khazna/internal/tools"
	"github.com/khazna/khazna/pkg/llmgateway"
)

// fuzzyTitleThreshold is the Jaro-Winkler cutoff used when matching a
// user-supplied reminder/task title against existing entities (spec §11
// domain stack: "resolves the Open Question on fuzzy metric: Jaro-Winkler,
// threshold 0.82" — reused here for reminder auto-dismissal / update /
// delete matching per spec §4.1 post-processing step 5).
const fuzzyTitleThreshold = 0.82

type searchRemindersArgs struct {
	Status string `json:"status,omitempty"`
	Query  string `json:"query,omitempty"`
}

type createReminderArgs struct {
	Title        string `json:"title"`
	DueDate      string `json:"due_date"`
	ReminderType string `json:"reminder_type,omitempty"`
	Recurrence   string `json:"recurrence,omitempty"`
	Priority     string `json:"priority,omitempty"`
	Description  string `json:"description,omitempty"`
	Persistent   bool   `json:"persistent,omitempty"`
	Prayer       string `json:"prayer,omitempty"`
}

type updateReminderArgs struct {
	Title   string `json:"title"`
	DueDate string `json:"due_date,omitempty"`
	Status  string `json:"status,omitempty"`
}

type deleteReminderArgs struct {
	Title string `json:"title"`
}

func reminderTools(deps Deps) []tools.Tool {
	return []tools.Tool{
		{
			Definition: llmgateway.ToolDefinition{
				Name:        "search_reminders",
				Description: "List reminders, optionally filtered by status (pending|done|dismissed) and/or a substring match on the title.",
				Parameters: objectSchema(map[string]any{
					"status": stringProp("Filter by status. Omit to match all."),
					"query":  stringProp("Substring to match against reminder titles."),
				}),
				ReadOnly: true,
			},
			Handler:     handlerFunc(searchRemindersHandler(deps)),
			Class:       tools.ClassRead,
			DeclaredP50: 100,
			DeclaredMax: 500,
		},
		{
			Definition: llmgateway.ToolDefinition{
				Name:        "create_reminder",
				Description: "Create a new reminder. due_date must be an ISO-8601 timestamp. reminder_type is one of one_time|recurring|persistent|event_based|financial; recurrence (daily|weekly|monthly|yearly) is required when reminder_type is recurring.",
				Parameters: objectSchema(map[string]any{
					"title":         stringProp("The reminder's text."),
					"due_date":      stringProp("ISO-8601 due date/time."),
					"reminder_type": stringProp("one_time|recurring|persistent|event_based|financial. Defaults to one_time."),
					"recurrence":    stringProp("daily|weekly|monthly|yearly, required when reminder_type is recurring."),
					"priority":      stringProp("Optional priority label."),
					"description":   stringProp("Optional longer description."),
					"persistent":    boolProp("Whether the reminder should keep resurfacing until dismissed."),
					"prayer":        stringProp("Optional associated prayer name for prayer-relative reminders."),
				}, "title", "due_date"),
			},
			Handler:     handlerFunc(createReminderHandler(deps)),
			Class:       tools.ClassWrite,
			DeclaredP50: 150,
			DeclaredMax: 1000,
		},
		{
			Definition: llmgateway.ToolDefinition{
				Name:        "update_reminder",
				Description: "Update an existing reminder's due date and/or status, matched by title (fuzzy match tolerant of minor wording differences).",
				Parameters: objectSchema(map[string]any{
					"title":    stringProp("The reminder's title, as the user referred to it."),
					"due_date": stringProp("New ISO-8601 due date/time."),
					"status":   stringProp("New status (pending|done|dismissed)."),
				}, "title"),
			},
			Handler:     handlerFunc(updateReminderHandler(deps)),
			Class:       tools.ClassWrite,
			DeclaredP50: 200,
			DeclaredMax: 1000,
		},
		{
			Definition: llmgateway.ToolDefinition{
				Name:        "delete_reminder",
				Description: "Delete a reminder, matched by title (fuzzy match tolerant of minor wording differences).",
				Parameters: objectSchema(map[string]any{
					"title": stringProp("The reminder's title, as the user referred to it."),
				}, "title"),
			},
			Handler:     handlerFunc(deleteReminderHandler(deps)),
			Class:       tools.ClassWrite,
			DeclaredP50: 150,
			DeclaredMax: 1000,
		},
	}
}

func searchRemindersHandler(deps Deps) func(context.Context, searchRemindersArgs) (string, error) {
	return func(ctx context.Context, a searchRemindersArgs) (string, error) {
		results, err := deps.Graph.QueryReminders(ctx, a.Status, a.Query)
		return encodeRead(results, err)
	}
}

func createReminderHandler(deps Deps) func(context.Context, createReminderArgs) (string, error) {
	return func(ctx context.Context, a createReminderArgs) (string, error) {
		due, err := time.Parse(time.RFC3339, a.DueDate)
		if err != nil {
			return encodeWrite("Reminder", "", "", fmt.Errorf("invalid due_date %q: %w", a.DueDate, err))
		}
		id, err := deps.Graph.UpsertReminder(ctx, graphsvc.ReminderParams{
			Title:        a.Title,
			DueDate:      due,
			ReminderType: a.ReminderType,
			Recurrence:   a.Recurrence,
			Priority:     a.Priority,
			Description:  a.Description,
			Persistent:   a.Persistent,
			Prayer:       a.Prayer,
		})
		return encodeWrite("Reminder", id, "reminder set: "+a.Title, err)
	}
}

func updateReminderHandler(deps Deps) func(context.Context, updateReminderArgs) (string, error) {
	return func(ctx context.Context, a updateReminderArgs) (string, error) {
		reminder, err := findReminderByTitle(ctx, deps, a.Title)
		if err != nil {
			return encodeWrite("Reminder", "", "", err)
		}
		if reminder == nil {
			return encodeWrite("Reminder", "", "", fmt.Errorf("no reminder matching %q found", a.Title))
		}
		updates := map[string]any{}
		if a.DueDate != "" {
			due, parseErr := time.Parse(time.RFC3339, a.DueDate)
			if parseErr != nil {
				return encodeWrite("Reminder", "", "", fmt.Errorf("invalid due_date %q: %w", a.DueDate, parseErr))
			}
			updates["due_date"] = due.Format(time.RFC3339)
		}
		if a.Status != "" {
			updates["status"] = a.Status
		}
		err = deps.Graph.UpdateReminder(ctx, reminder.ID, updates)
		return encodeWrite("Reminder", reminder.ID, "reminder updated: "+reminder.Name, err)
	}
}

func deleteReminderHandler(deps Deps) func(context.Context, deleteReminderArgs) (string, error) {
	return func(ctx context.Context, a deleteReminderArgs) (string, error) {
		reminder, err := findReminderByTitle(ctx, deps, a.Title)
		if err != nil {
			return encodeWrite("Reminder", "", "", err)
		}
		if reminder == nil {
			return encodeWrite("Reminder", "", "", fmt.Errorf("no reminder matching %q found", a.Title))
		}
		err = deps.Graph.DeleteReminder(ctx, reminder.ID)
		return encodeWrite("Reminder", reminder.ID, "reminder deleted: "+reminder.Name, err)
	}
}

// findReminderByTitle implements spec §9's three-step retry order: strip a
// trailing parenthetical annotation and try an exact/substring match,
// retry with the raw query if the cleaned one found nothing, then fall
// back to fuzzy (Jaro-Winkler) matching across all pending reminders.
func findReminderByTitle(ctx context.Context, deps Deps, title string) (*graphstore.Entity, error) {
	cleaned := entityresolve.StripParenthetical(title)

	for _, candidate := range []string{cleaned, title} {
		matches, err := deps.Graph.QueryReminders(ctx, "", candidate)
		if err != nil {
			return nil, err
		}
		if len(matches) == 1 {
			return &matches[0], nil
		}
		if len(matches) > 1 {
			return &matches[0], nil
		}
	}

	all, err := deps.Graph.QueryReminders(ctx, "", "")
	if err != nil {
		return nil, err
	}
	best, bestScore := -1, 0.0
	needle := strings.ToLower(cleaned)
	for i, r := range all {
		score := matchr.JaroWinkler(needle, strings.ToLower(r.Name), false)
		if score > bestScore {
			bestScore, best = score, i
		}
	}
	if best >= 0 && bestScore >= fuzzyTitleThreshold {
		return &all[best], nil
	}
	return nil, nil
}
