package graphsvc

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/khazna/khazna/internal/apperr"
	"github.com/khazna/khazna/internal/graphstore"
)

// maxContextLines caps multi-hop retrieval context before it goes to the
// LLM (spec §4.7).
const maxContextLines = 30

// QueryPersonContext returns the Person entity named name along with its
// multi-hop neighbourhood (spec §4.7): hops 1-2 unrestricted, hop 3
// restricted to the fixed relationship set.
func (s *Service) QueryPersonContext(ctx context.Context, name string) (*graphstore.Entity, []graphstore.Entity, error) {
	person, err := s.graph.GetEntityByName(ctx, "Person", name)
	if err != nil {
		return nil, nil, apperr.BackendUnavailable("graphsvc.QueryPersonContext", err)
	}
	if person == nil {
		return nil, nil, nil
	}
	neighbors, err := s.queryEntityContext(ctx, person.ID, 3)
	if err != nil {
		return person, nil, err
	}
	return person, neighbors, nil
}

// queryEntityContext implements the shared multi-hop retrieval algorithm
// described in spec §4.7.
func (s *Service) queryEntityContext(ctx context.Context, entityID string, maxHops int) ([]graphstore.Entity, error) {
	hop3Types := []string{"BELONGS_TO", "INVOLVES", "WORKS_AT", "RELATED_TO", "TAGGED_WITH", "STORED_IN", "SIMILAR_TO"}

	seen := map[string]bool{entityID: true}
	frontier := []string{entityID}
	var results []graphstore.Entity

	for hop := 1; hop <= maxHops && len(results) < maxContextLines; hop++ {
		var opts []graphstore.TraversalOpt
		if hop == 3 {
			opts = append(opts, graphstore.TraverseRelTypes(hop3Types...))
		}
		var next []string
		for _, id := range frontier {
			neighbors, err := s.graph.Neighbors(ctx, id, 1, opts...)
			if err != nil {
				return nil, apperr.BackendUnavailable("graphsvc.queryEntityContext", err)
			}
			for _, n := range neighbors {
				if seen[n.ID] {
					continue
				}
				seen[n.ID] = true
				results = append(results, n)
				next = append(next, n.ID)
				if len(results) >= maxContextLines {
					break
				}
			}
			if len(results) >= maxContextLines {
				break
			}
		}
		frontier = next
		if len(frontier) == 0 {
			break
		}
	}
	return results, nil
}

// QueryProjectDetails returns a Project and its Task/Section/Sprint
// children.
func (s *Service) QueryProjectDetails(ctx context.Context, name string) (*graphstore.Entity, []graphstore.Entity, error) {
	project, err := s.graph.GetEntityByName(ctx, "Project", name)
	if err != nil {
		return nil, nil, apperr.BackendUnavailable("graphsvc.QueryProjectDetails", err)
	}
	if project == nil {
		return nil, nil, nil
	}
	var children []graphstore.Entity
	for _, t := range []string{"Task", "Section", "Sprint"} {
		found, err := s.graph.FindEntities(ctx, graphstore.EntityFilter{
			Type: t, AttributeQuery: map[string]any{"project": project.Name},
		})
		if err != nil {
			return project, children, apperr.BackendUnavailable("graphsvc.QueryProjectDetails.children", err)
		}
		children = append(children, found...)
	}
	return project, children, nil
}

// QueryProjectsOverview returns every Project entity, most recently
// updated first.
func (s *Service) QueryProjectsOverview(ctx context.Context) ([]graphstore.Entity, error) {
	projects, err := s.graph.FindEntities(ctx, graphstore.EntityFilter{Type: "Project"})
	if err != nil {
		return nil, apperr.BackendUnavailable("graphsvc.QueryProjectsOverview", err)
	}
	sort.Slice(projects, func(i, j int) bool { return projects[i].UpdatedAt.After(projects[j].UpdatedAt) })
	return projects, nil
}

// selfRAGRetryNumerator/selfRAGRetryDenominator require at least half of the
// primary retrieval's results to survive the Self-RAG filter; fewer than
// that and the retry policy flips retrieval strategy.
const selfRAGRetryNumerator, selfRAGRetryDenominator = 1, 2

// QueryRetrieval performs the GraphRAG retrieval behind the search_knowledge
// tool. Vector similarity ([graphstore.GraphRAGQuerier.QueryWithEmbedding])
// is the primary strategy; any result scoring below selfRAGThreshold is
// discarded by the Self-RAG filter. When that filter rejects more than half
// of what the primary strategy found — or the primary strategy found
// nothing at all — the retry policy flips to full-text search
// ([graphstore.GraphRAGQuerier.QueryWithContext]) instead of handing the
// caller a starved result set.
func (s *Service) QueryRetrieval(ctx context.Context, query string, embedding []float32, topK int, selfRAGThreshold float64) ([]graphstore.ContextResult, error) {
	primary, err := s.graph.QueryWithEmbedding(ctx, embedding, topK, nil)
	if err != nil {
		return nil, apperr.BackendUnavailable("graphsvc.QueryRetrieval", err)
	}

	filtered := make([]graphstore.ContextResult, 0, len(primary))
	for _, r := range primary {
		if r.Score >= selfRAGThreshold {
			filtered = append(filtered, r)
		}
	}

	if len(primary) > 0 && len(filtered)*selfRAGRetryDenominator >= len(primary)*selfRAGRetryNumerator {
		return filtered, nil
	}

	retried, err := s.graph.QueryWithContext(ctx, query, nil)
	if err != nil {
		return nil, apperr.BackendUnavailable("graphsvc.QueryRetrieval.retry", err)
	}
	return retried, nil
}

// QueryKnowledge searches Knowledge entities whose name contains query.
func (s *Service) QueryKnowledge(ctx context.Context, query string, limit int) ([]graphstore.Entity, error) {
	results, err := s.graph.FindEntities(ctx, graphstore.EntityFilter{Type: "Knowledge", Name: query, Limit: limit})
	if err != nil {
		return nil, apperr.BackendUnavailable("graphsvc.QueryKnowledge", err)
	}
	return results, nil
}

// QueryTasks returns Task entities, optionally scoped to project and
// status. Empty strings match all.
func (s *Service) QueryTasks(ctx context.Context, project, status string) ([]graphstore.Entity, error) {
	filter := graphstore.EntityFilter{Type: "Task"}
	attrs := map[string]any{}
	if project != "" {
		attrs["project"] = project
	}
	if status != "" {
		attrs["status"] = status
	}
	if len(attrs) > 0 {
		filter.AttributeQuery = attrs
	}
	tasks, err := s.graph.FindEntities(ctx, filter)
	if err != nil {
		return nil, apperr.BackendUnavailable("graphsvc.QueryTasks", err)
	}
	return tasks, nil
}

// QueryInventory returns Item entities, optionally scoped by category or
// location substring.
func (s *Service) QueryInventory(ctx context.Context, category, location string) ([]graphstore.Entity, error) {
	filter := graphstore.EntityFilter{Type: "Item"}
	attrs := map[string]any{}
	if category != "" {
		attrs["category"] = normalizeKey(category)
	}
	if len(attrs) > 0 {
		filter.AttributeQuery = attrs
	}
	items, err := s.graph.FindEntities(ctx, filter)
	if err != nil {
		return nil, apperr.BackendUnavailable("graphsvc.QueryInventory", err)
	}
	if location == "" {
		return items, nil
	}
	filtered := items[:0]
	needle := normalizeKey(location)
	for _, it := range items {
		if loc, _ := it.Attributes["location"].(string); strings.Contains(normalizeKey(loc), needle) {
			filtered = append(filtered, it)
		}
	}
	return filtered, nil
}

// FindDuplicateInventory returns groups of Item entities whose names are
// exact case-insensitive matches (method="name") — the vector-similarity
// variant (method="vector") is implemented by the ingestion/tool layer
// using the vector store directly, since this package has no embedding
// dependency.
func (s *Service) FindDuplicateInventory(ctx context.Context) ([][]graphstore.Entity, error) {
	items, err := s.graph.FindEntities(ctx, graphstore.EntityFilter{Type: "Item"})
	if err != nil {
		return nil, apperr.BackendUnavailable("graphsvc.FindDuplicateInventory", err)
	}
	byName := map[string][]graphstore.Entity{}
	for _, it := range items {
		key := normalizeKey(it.Name)
		byName[key] = append(byName[key], it)
	}
	var groups [][]graphstore.Entity
	for _, g := range byName {
		if len(g) > 1 {
			groups = append(groups, g)
		}
	}
	return groups, nil
}

// DailyPlan bundles the entities relevant to spec §4.9's proactive
// summaries and the get_daily_plan tool.
type DailyPlan struct {
	TasksDueToday    []graphstore.Entity
	RemindersDueToday []graphstore.Entity
	ActiveFocus      []graphstore.Entity
}

// QueryDailyPlan returns today's tasks, reminders, and any focus sessions
// still open.
func (s *Service) QueryDailyPlan(ctx context.Context, at time.Time) (*DailyPlan, error) {
	today := at.Format("2006-01-02")

	reminders, err := s.graph.FindEntities(ctx, graphstore.EntityFilter{Type: "Reminder", AttributeQuery: map[string]any{"status": "pending"}})
	if err != nil {
		return nil, apperr.BackendUnavailable("graphsvc.QueryDailyPlan.reminders", err)
	}
	var dueToday []graphstore.Entity
	for _, r := range reminders {
		due, _ := r.Attributes["due_date"].(string)
		if strings.HasPrefix(due, today) {
			dueToday = append(dueToday, r)
		}
	}

	tasks, err := s.graph.FindEntities(ctx, graphstore.EntityFilter{Type: "Task"})
	if err != nil {
		return nil, apperr.BackendUnavailable("graphsvc.QueryDailyPlan.tasks", err)
	}
	var tasksToday []graphstore.Entity
	for _, t := range tasks {
		if end, _ := t.Attributes["end_time"].(string); strings.HasPrefix(end, today) {
			tasksToday = append(tasksToday, t)
		}
	}

	focus, err := s.graph.FindEntities(ctx, graphstore.EntityFilter{Type: "FocusSession", AttributeQuery: map[string]any{"completed": false}})
	if err != nil {
		return nil, apperr.BackendUnavailable("graphsvc.QueryDailyPlan.focus", err)
	}

	return &DailyPlan{TasksDueToday: tasksToday, RemindersDueToday: dueToday, ActiveFocus: focus}, nil
}

// FinancialReport aggregates Expense entities for a given month/year.
type FinancialReport struct {
	Month           int
	Year            int
	Total           float64
	ByCategory      map[string]float64
	ExpenseCount    int
	CompareTotal    float64 // previous period total, when Compare is requested.
}

// QueryFinancialReport aggregates expenses for month/year, optionally
// including the prior month's total for comparison.
func (s *Service) QueryFinancialReport(ctx context.Context, month, year int, compare bool) (*FinancialReport, error) {
	expenses, err := s.graph.FindEntities(ctx, graphstore.EntityFilter{Type: "Expense"})
	if err != nil {
		return nil, apperr.BackendUnavailable("graphsvc.QueryFinancialReport", err)
	}
	report := &FinancialReport{Month: month, Year: year, ByCategory: map[string]float64{}}
	prefix := monthPrefix(year, month)
	prevPrefix := monthPrefix(year, month-1)
	if month == 1 {
		prevPrefix = monthPrefix(year-1, 12)
	}
	for _, e := range expenses {
		date, _ := e.Attributes["date"].(string)
		amount, _ := e.Attributes["amount"].(float64)
		category, _ := e.Attributes["category"].(string)
		if strings.HasPrefix(date, prefix) {
			report.Total += amount
			report.ByCategory[category] += amount
			report.ExpenseCount++
		} else if compare && strings.HasPrefix(date, prevPrefix) {
			report.CompareTotal += amount
		}
	}
	return report, nil
}

func monthPrefix(year, month int) string {
	for month < 1 {
		month += 12
		year--
	}
	for month > 12 {
		month -= 12
		year++
	}
	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC).Format("2006-01")
}

// QueryDebts returns Debt entities, optionally scoped by direction
// ("i_owe"|"owed_to_me") and status.
func (s *Service) QueryDebts(ctx context.Context, direction, status string) ([]graphstore.Entity, error) {
	attrs := map[string]any{}
	if direction != "" {
		attrs["direction"] = direction
	}
	if status != "" {
		attrs["status"] = status
	}
	filter := graphstore.EntityFilter{Type: "Debt"}
	if len(attrs) > 0 {
		filter.AttributeQuery = attrs
	}
	debts, err := s.graph.FindEntities(ctx, filter)
	if err != nil {
		return nil, apperr.BackendUnavailable("graphsvc.QueryDebts", err)
	}
	return debts, nil
}

// DebtSummary totals outstanding debt by direction.
type DebtSummary struct {
	TotalIOwe     float64
	TotalOwedToMe float64
}

// GetDebtSummary sums open/partial debts by direction.
func (s *Service) GetDebtSummary(ctx context.Context) (*DebtSummary, error) {
	debts, err := s.graph.FindEntities(ctx, graphstore.EntityFilter{Type: "Debt"})
	if err != nil {
		return nil, apperr.BackendUnavailable("graphsvc.GetDebtSummary", err)
	}
	summary := &DebtSummary{}
	for _, d := range debts {
		status, _ := d.Attributes["status"].(string)
		if status == "paid" {
			continue
		}
		amount, _ := d.Attributes["amount"].(float64)
		direction, _ := d.Attributes["direction"].(string)
		switch DebtDirection(direction) {
		case DebtIOwe:
			summary.TotalIOwe += amount
		case DebtOwedTo:
			summary.TotalOwedToMe += amount
		}
	}
	return summary, nil
}

// QueryReminders returns Reminder entities, optionally scoped by status
// and a substring query over the title.
func (s *Service) QueryReminders(ctx context.Context, status, query string) ([]graphstore.Entity, error) {
	filter := graphstore.EntityFilter{Type: "Reminder", Name: query}
	if status != "" {
		filter.AttributeQuery = map[string]any{"status": status}
	}
	reminders, err := s.graph.FindEntities(ctx, filter)
	if err != nil {
		return nil, apperr.BackendUnavailable("graphsvc.QueryReminders", err)
	}
	return reminders, nil
}

// QuerySprintStatus returns Sprint entities for a project, most recent
// first.
func (s *Service) QuerySprintStatus(ctx context.Context, project string) ([]graphstore.Entity, error) {
	sprints, err := s.graph.FindEntities(ctx, graphstore.EntityFilter{
		Type: "Sprint", AttributeQuery: map[string]any{"project": project},
	})
	if err != nil {
		return nil, apperr.BackendUnavailable("graphsvc.QuerySprintStatus", err)
	}
	return sprints, nil
}

// FocusStats aggregates FocusSession counts and minutes; TotalMinutes sums
// every session, completed or not.
type FocusStats struct {
	SessionCount   int
	TotalMinutes   int
	CompletedCount int
}

// QueryFocusStats aggregates focus-session history, optionally scoped to a
// task name.
func (s *Service) QueryFocusStats(ctx context.Context, task string) (*FocusStats, error) {
	filter := graphstore.EntityFilter{Type: "FocusSession"}
	if task != "" {
		filter.AttributeQuery = map[string]any{"task": task}
	}
	sessions, err := s.graph.FindEntities(ctx, filter)
	if err != nil {
		return nil, apperr.BackendUnavailable("graphsvc.QueryFocusStats", err)
	}
	stats := &FocusStats{SessionCount: len(sessions)}
	for _, sess := range sessions {
		stats.TotalMinutes += intAttr(sess.Attributes, "duration_min")
		if completed, _ := sess.Attributes["completed"].(bool); completed {
			stats.CompletedCount++
		}
	}
	return stats, nil
}

// FormatContext renders entities for LLM consumption, stripping internal
// bookkeeping properties (spec §4.4 "Property hiding") and capping at
// maxContextLines (spec §4.7).
func FormatContext(entities []graphstore.Entity) []graphstore.Entity {
	if len(entities) > maxContextLines {
		entities = entities[:maxContextLines]
	}
	out := make([]graphstore.Entity, len(entities))
	for i, e := range entities {
		e.Attributes = stripInternal(e.Attributes)
		out[i] = e
	}
	return out
}
