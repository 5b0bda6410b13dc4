package graphsvc

import (
	"context"
	"fmt"
	"time"

	"github.com/khazna/khazna/internal/apperr"
	"github.com/khazna/khazna/internal/graphstore"
)

// DeleteProject removes projectName and cascades to its tasks, sections,
// lists, and list entries (spec §4.4).
func (s *Service) DeleteProject(ctx context.Context, projectName string) error {
	project, err := s.graph.GetEntityByName(ctx, "Project", projectName)
	if err != nil {
		return apperr.BackendUnavailable("graphsvc.DeleteProject.lookup", err)
	}
	if project == nil {
		return apperr.NotFound("graphsvc.DeleteProject", fmt.Errorf("project %q not found", projectName))
	}

	for _, entityType := range []string{"Task", "Section", "List"} {
		children, err := s.graph.FindEntities(ctx, graphstore.EntityFilter{
			Type:           entityType,
			AttributeQuery: map[string]any{"project": project.Name},
		})
		if err != nil {
			return apperr.BackendUnavailable("graphsvc.DeleteProject.find", err)
		}
		for _, child := range children {
			if entityType == "List" {
				entries, err := s.graph.GetRelationships(ctx, child.ID, graphstore.WithRelTypes("HAS_ENTRY"))
				if err == nil {
					for _, e := range entries {
						_ = s.graph.DeleteEntity(ctx, e.TargetID)
					}
				}
			}
			if err := s.graph.DeleteEntity(ctx, child.ID); err != nil {
				return apperr.Fatal("graphsvc.DeleteProject.deleteChild", err)
			}
		}
	}

	if err := s.graph.DeleteEntity(ctx, project.ID); err != nil {
		return apperr.Fatal("graphsvc.DeleteProject.deleteProject", err)
	}
	return nil
}

// MergeProjects re-links source's HAS_SECTION and BELONGS_TO edges onto
// target, unions name_aliases, and deletes source (spec §4.4, §4.5 alias
// merge).
func (s *Service) MergeProjects(ctx context.Context, sourceName, targetName string) error {
	source, err := s.graph.GetEntityByName(ctx, "Project", sourceName)
	if err != nil {
		return apperr.BackendUnavailable("graphsvc.MergeProjects.lookupSource", err)
	}
	if source == nil {
		return apperr.NotFound("graphsvc.MergeProjects", fmt.Errorf("project %q not found", sourceName))
	}
	target, err := s.graph.GetEntityByName(ctx, "Project", targetName)
	if err != nil {
		return apperr.BackendUnavailable("graphsvc.MergeProjects.lookupTarget", err)
	}
	if target == nil {
		return apperr.NotFound("graphsvc.MergeProjects", fmt.Errorf("project %q not found", targetName))
	}

	outgoing, err := s.graph.GetRelationships(ctx, source.ID, graphstore.WithOutgoing())
	if err != nil {
		return apperr.BackendUnavailable("graphsvc.MergeProjects.outgoing", err)
	}
	for _, rel := range outgoing {
		if err := s.graph.AddRelationship(ctx, graphstore.Relationship{
			SourceID: target.ID, TargetID: rel.TargetID, RelType: rel.RelType,
			Attributes: rel.Attributes, CreatedAt: s.now(),
		}); err != nil {
			return apperr.Fatal("graphsvc.MergeProjects.relink", err)
		}
	}

	incoming, err := s.graph.GetRelationships(ctx, source.ID, graphstore.WithIncoming())
	if err != nil {
		return apperr.BackendUnavailable("graphsvc.MergeProjects.incoming", err)
	}
	for _, rel := range incoming {
		if err := s.graph.AddRelationship(ctx, graphstore.Relationship{
			SourceID: rel.SourceID, TargetID: target.ID, RelType: rel.RelType,
			Attributes: rel.Attributes, CreatedAt: s.now(),
		}); err != nil {
			return apperr.Fatal("graphsvc.MergeProjects.relink", err)
		}
	}

	aliases := addAlias(stringsFrom(target.Attributes["name_aliases"]), source.Name)
	for _, a := range stringsFrom(source.Attributes["name_aliases"]) {
		aliases = addAlias(aliases, a)
	}
	if err := s.graph.UpdateEntity(ctx, target.ID, map[string]any{"name_aliases": aliases}); err != nil {
		return apperr.Fatal("graphsvc.MergeProjects.aliases", err)
	}

	if err := s.graph.DeleteEntity(ctx, source.ID); err != nil {
		return apperr.Fatal("graphsvc.MergeProjects.deleteSource", err)
	}
	return nil
}

// AdvanceRecurringReminder moves the reminder's due_date forward by one
// recurrence unit, repeating until the new date is in the future (spec
// invariant §8: due_date > now() after advancement). recurrence must be
// one of daily|weekly|monthly|yearly.
func (s *Service) AdvanceRecurringReminder(ctx context.Context, title, recurrence string) (time.Time, error) {
	reminder, err := s.graph.GetEntityByName(ctx, "Reminder", title)
	if err != nil {
		return time.Time{}, apperr.BackendUnavailable("graphsvc.AdvanceRecurringReminder.lookup", err)
	}
	if reminder == nil {
		return time.Time{}, apperr.NotFound("graphsvc.AdvanceRecurringReminder", fmt.Errorf("reminder %q not found", title))
	}
	dueStr, _ := reminder.Attributes["due_date"].(string)
	due, err := time.Parse(time.RFC3339, dueStr)
	if err != nil {
		return time.Time{}, apperr.Validation("graphsvc.AdvanceRecurringReminder", fmt.Errorf("unparseable due_date %q: %w", dueStr, err))
	}

	now := s.now()
	for !due.After(now) {
		due = advanceOnce(due, recurrence)
	}

	if err := s.graph.UpdateEntity(ctx, reminder.ID, map[string]any{
		"due_date": due.Format(time.RFC3339),
		"status":   "pending",
	}); err != nil {
		return time.Time{}, apperr.Fatal("graphsvc.AdvanceRecurringReminder.update", err)
	}
	return due, nil
}

// advanceOnce moves t forward by one unit of recurrence. Calendar-aware
// like Python's relativedelta: monthly/yearly keep the day-of-month, clamped
// to the last day of a shorter target month (Jan 31 + 1 month = Feb 28).
func advanceOnce(t time.Time, recurrence string) time.Time {
	switch recurrence {
	case "daily":
		return t.AddDate(0, 0, 1)
	case "weekly":
		return t.AddDate(0, 0, 7)
	case "monthly", "yearly":
		years, months := 0, 1
		if recurrence == "yearly" {
			years, months = 1, 0
		}
		next := t.AddDate(years, months, 0)
		if next.Day() != t.Day() {
			// AddDate overflowed into the following month; step back to the
			// last day of the target month.
			next = next.AddDate(0, 0, -next.Day())
		}
		return next
	default:
		return t.AddDate(0, 0, 1)
	}
}
