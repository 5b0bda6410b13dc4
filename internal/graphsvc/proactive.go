// Proactive-summary reads backing the Scheduler's jobs (spec §4.9):
// spending alerts, stalled projects, and old debts.
package graphsvc

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/khazna/khazna/internal/apperr"
	"github.com/khazna/khazna/internal/graphstore"
)

// spendingAlertMultiple is the "40% above 3-month average" threshold the
// original morning-summary job uses: a category only alerts once current
// spend exceeds 1.4x its trailing 3-month average.
const spendingAlertMultiple = 1.4

// SpendingAlert flags one category whose current-month spend is
// significantly above its trailing 3-month average.
type SpendingAlert struct {
	Category      string
	CurrentTotal  float64
	ThreeMonthAvg float64
	PercentOver   float64
}

// QuerySpendingAlerts compares this month's per-category Expense totals
// against the trailing 3-month average and returns every category running
// more than [spendingAlertMultiple] over that average.
func (s *Service) QuerySpendingAlerts(ctx context.Context, at time.Time) ([]SpendingAlert, error) {
	expenses, err := s.graph.FindEntities(ctx, graphstore.EntityFilter{Type: "Expense"})
	if err != nil {
		return nil, apperr.BackendUnavailable("graphsvc.QuerySpendingAlerts", err)
	}

	curPrefix := at.Format("2006-01")
	avgTotals := map[string]float64{}
	curTotals := map[string]float64{}
	for _, e := range expenses {
		date, _ := e.Attributes["date"].(string)
		amount, _ := e.Attributes["amount"].(float64)
		category, _ := e.Attributes["category"].(string)
		if category == "" {
			category = "uncategorized"
		}
		if strings.HasPrefix(date, curPrefix) {
			curTotals[category] += amount
			continue
		}
		for i := 1; i <= 3; i++ {
			if strings.HasPrefix(date, monthPrefix(at.Year(), int(at.Month())-i)) {
				avgTotals[category] += amount
				break
			}
		}
	}

	var alerts []SpendingAlert
	for category, current := range curTotals {
		avg := avgTotals[category] / 3.0
		if avg <= 0 || current <= avg*spendingAlertMultiple {
			continue
		}
		alerts = append(alerts, SpendingAlert{
			Category:      category,
			CurrentTotal:  current,
			ThreeMonthAvg: avg,
			PercentOver:   (current - avg) / avg * 100,
		})
	}
	return alerts, nil
}

// StalledProject is a Project with no Task activity in longer than a
// configured threshold.
type StalledProject struct {
	Name         string
	Status       string
	LastActivity time.Time
	TaskCount    int
}

// QueryStalledProjects returns active/in-progress Projects whose most
// recent Task update (or, absent tasks, the project's own timestamps) is
// older than since.
func (s *Service) QueryStalledProjects(ctx context.Context, since time.Time) ([]StalledProject, error) {
	projects, err := s.graph.FindEntities(ctx, graphstore.EntityFilter{Type: "Project"})
	if err != nil {
		return nil, apperr.BackendUnavailable("graphsvc.QueryStalledProjects.projects", err)
	}
	tasks, err := s.graph.FindEntities(ctx, graphstore.EntityFilter{Type: "Task"})
	if err != nil {
		return nil, apperr.BackendUnavailable("graphsvc.QueryStalledProjects.tasks", err)
	}

	var stalled []StalledProject
	for _, p := range projects {
		status, _ := p.Attributes["status"].(string)
		if status != "" && status != "active" && status != "in_progress" {
			continue
		}

		last := p.UpdatedAt
		if p.CreatedAt.After(last) {
			last = p.CreatedAt
		}
		taskCount := 0
		for _, t := range tasks {
			belongsTo, _ := t.Attributes["project"].(string)
			if belongsTo != p.Name {
				continue
			}
			taskCount++
			if t.UpdatedAt.After(last) {
				last = t.UpdatedAt
			}
		}

		if last.Before(since) {
			stalled = append(stalled, StalledProject{
				Name: p.Name, Status: status, LastActivity: last, TaskCount: taskCount,
			})
		}
	}
	return stalled, nil
}

// OldDebt is an open/partial debt the user owes that has stood unpaid
// longer than a configured threshold.
type OldDebt struct {
	Person    string
	Amount    float64
	Reason    string
	CreatedAt time.Time
	Status    string
}

// QueryOldDebts returns open/partial debts with direction "i_owe" created
// before cutoff, largest amount first.
func (s *Service) QueryOldDebts(ctx context.Context, cutoff time.Time) ([]OldDebt, error) {
	debts, err := s.graph.FindEntities(ctx, graphstore.EntityFilter{
		Type:           "Debt",
		AttributeQuery: map[string]any{"direction": string(DebtIOwe)},
	})
	if err != nil {
		return nil, apperr.BackendUnavailable("graphsvc.QueryOldDebts", err)
	}

	var old []OldDebt
	for _, d := range debts {
		status, _ := d.Attributes["status"].(string)
		if status != "open" && status != "partial" {
			continue
		}
		created := d.CreatedAt
		if !created.Before(cutoff) {
			continue
		}
		person := relatedPersonName(ctx, s, d.ID)
		old = append(old, OldDebt{
			Person:    person,
			Amount:    attrFloat(d.Attributes["amount"]),
			Reason:    fmt.Sprintf("%v", d.Attributes["reason"]),
			CreatedAt: created,
			Status:    status,
		})
	}
	sort.Slice(old, func(i, j int) bool { return old[i].Amount > old[j].Amount })
	return old, nil
}

func relatedPersonName(ctx context.Context, s *Service, debtID string) string {
	neighbors, err := s.graph.Neighbors(ctx, debtID, 1, graphstore.TraverseRelTypes("INVOLVES"))
	if err != nil || len(neighbors) == 0 {
		return ""
	}
	return neighbors[0].Name
}

func attrTime(v any) time.Time {
	s, ok := v.(string)
	if !ok || s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func attrFloat(v any) float64 {
	f, _ := v.(float64)
	return f
}
