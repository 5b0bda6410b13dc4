package catalog

import (
	"context"
	"time"

	"github.com/khazna/khazna/internal/tools"
	"github.com/khazna/khazna/pkg/llmgateway"
)

type getDailyPlanArgs struct {
	Date string `json:"date,omitempty"`
}

type getProductivityStatsArgs struct {
	Task    string `json:"task,omitempty"`
	Project string `json:"project,omitempty"`
}

func planningTools(deps Deps) []tools.Tool {
	return []tools.Tool{
		{
			Definition: llmgateway.ToolDefinition{
				Name:        "get_daily_plan",
				Description: "Get today's (or a given date's) plan: tasks due, reminders due, and any open focus sessions.",
				Parameters: objectSchema(map[string]any{
					"date": stringProp("ISO-8601 date. Defaults to today."),
				}),
				ReadOnly: true,
			},
			Handler:     handlerFunc(getDailyPlanHandler(deps)),
			Class:       tools.ClassRead,
			DeclaredP50: 250,
			DeclaredMax: 1500,
		},
		{
			Definition: llmgateway.ToolDefinition{
				Name:        "get_productivity_stats",
				Description: "Get focus-session and sprint productivity stats, optionally scoped to a task or project.",
				Parameters: objectSchema(map[string]any{
					"task":    stringProp("Scope focus-session stats to this task name."),
					"project": stringProp("Scope sprint status to this project name."),
				}),
				ReadOnly: true,
			},
			Handler:     handlerFunc(getProductivityStatsHandler(deps)),
			Class:       tools.ClassDeep,
			DeclaredP50: 300,
			DeclaredMax: 2000,
		},
	}
}

func getDailyPlanHandler(deps Deps) func(context.Context, getDailyPlanArgs) (string, error) {
	return func(ctx context.Context, a getDailyPlanArgs) (string, error) {
		at := time.Now()
		if a.Date != "" {
			parsed, err := time.Parse("2006-01-02", a.Date)
			if err != nil {
				return encodeRead(nil, err)
			}
			at = parsed
		}
		plan, err := deps.Graph.QueryDailyPlan(ctx, at)
		return encodeRead(plan, err)
	}
}

func getProductivityStatsHandler(deps Deps) func(context.Context, getProductivityStatsArgs) (string, error) {
	return func(ctx context.Context, a getProductivityStatsArgs) (string, error) {
		focus, err := deps.Graph.QueryFocusStats(ctx, a.Task)
		if err != nil {
			return encodeRead(nil, err)
		}
		sprints, err := deps.Graph.QuerySprintStatus(ctx, a.Project)
		if err != nil {
			return encodeRead(nil, err)
		}
		return encodeRead(map[string]any{
			"focus":   focus,
			"sprints": sprints,
		}, nil)
	}
}
