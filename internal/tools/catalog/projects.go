package catalog

import (
	"context"
	"fmt"

	"github.com/khazna/khazna/internal/graphsvc"
	"github.com/khazna/khazna/internal/tools"
	"github.com/khazna/khazna/pkg/llmgateway"
)

type manageTasksArgs struct {
	Action            string `json:"action"`
	Name              string `json:"name,omitempty"`
	Status            string `json:"status,omitempty"`
	Project           string `json:"project,omitempty"`
	Sprint            string `json:"sprint,omitempty"`
	EstimatedDuration string `json:"estimated_duration,omitempty"`
	EnergyLevel       string `json:"energy_level,omitempty"`
	StartTime         string `json:"start_time,omitempty"`
	EndTime           string `json:"end_time,omitempty"`
}

type manageProjectsArgs struct {
	Action      string `json:"action"`
	Name        string `json:"name,omitempty"`
	Status      string `json:"status,omitempty"`
	Priority    string `json:"priority,omitempty"`
	Description string `json:"description,omitempty"`
}

type mergeProjectsArgs struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

func projectTools(deps Deps) []tools.Tool {
	return []tools.Tool{
		{
			Definition: llmgateway.ToolDefinition{
				Name:        "manage_tasks",
				Description: "Create, update, or list tasks. action is one of upsert|list. upsert requires name; project is auto-linked by name match when omitted. list filters by project and/or status.",
				Parameters: objectSchema(map[string]any{
					"action":             stringProp("upsert|list."),
					"name":               stringProp("Task name, required for upsert."),
					"status":             stringProp("todo|in_progress|done|cancelled."),
					"project":            stringProp("Project this task belongs to; auto-linked by name match when omitted on upsert."),
					"sprint":             stringProp("Sprint this task belongs to."),
					"estimated_duration": stringProp("Free-form estimate, e.g. '2h'."),
					"energy_level":       stringProp("high|medium|low."),
					"start_time":         stringProp("ISO-8601 planned start time."),
					"end_time":           stringProp("ISO-8601 planned end time."),
				}, "action"),
			},
			Handler:     handlerFunc(manageTasksHandler(deps)),
			Class:       tools.ClassWrite,
			DeclaredP50: 200,
			DeclaredMax: 1500,
		},
		{
			Definition: llmgateway.ToolDefinition{
				Name:        "manage_projects",
				Description: "Create, update, delete, or overview projects. action is one of upsert|overview|delete. upsert/delete require name.",
				Parameters: objectSchema(map[string]any{
					"action":      stringProp("upsert|overview|delete."),
					"name":        stringProp("Project name, required for upsert and delete."),
					"status":      stringProp("todo|active|on_hold|done|cancelled."),
					"priority":    stringProp("Optional priority label."),
					"description": stringProp("Optional longer description."),
				}, "action"),
			},
			Handler:     handlerFunc(manageProjectsHandler(deps)),
			Class:       tools.ClassWrite,
			DeclaredP50: 200,
			DeclaredMax: 1500,
		},
		{
			Definition: llmgateway.ToolDefinition{
				Name:        "merge_projects",
				Description: "Merge a duplicate project into another, re-pointing its tasks, sprints, and other relationships, then deleting the source.",
				Parameters: objectSchema(map[string]any{
					"source": stringProp("The project to merge away."),
					"target": stringProp("The project to keep."),
				}, "source", "target"),
			},
			Handler:     handlerFunc(mergeProjectsHandler(deps)),
			Class:       tools.ClassWrite,
			DeclaredP50: 300,
			DeclaredMax: 2000,
		},
	}
}

func manageTasksHandler(deps Deps) func(context.Context, manageTasksArgs) (string, error) {
	return func(ctx context.Context, a manageTasksArgs) (string, error) {
		switch a.Action {
		case "upsert":
			id, err := deps.Graph.UpsertTask(ctx, graphsvc.TaskParams{
				Name:              a.Name,
				Status:            a.Status,
				Project:           a.Project,
				Sprint:            a.Sprint,
				EstimatedDuration: a.EstimatedDuration,
				EnergyLevel:       a.EnergyLevel,
				StartTime:         a.StartTime,
				EndTime:           a.EndTime,
			})
			return encodeWrite("Task", id, "task saved: "+a.Name, err)
		case "list":
			tasks, err := deps.Graph.QueryTasks(ctx, a.Project, a.Status)
			return encodeRead(tasks, err)
		default:
			return encodeWrite("Task", "", "", fmt.Errorf("unknown action %q, expected upsert|list", a.Action))
		}
	}
}

func manageProjectsHandler(deps Deps) func(context.Context, manageProjectsArgs) (string, error) {
	return func(ctx context.Context, a manageProjectsArgs) (string, error) {
		switch a.Action {
		case "upsert":
			id, err := deps.Graph.UpsertProject(ctx, graphsvc.ProjectParams{
				Name:        a.Name,
				Status:      a.Status,
				Priority:    a.Priority,
				Description: a.Description,
			})
			return encodeWrite("Project", id, "project saved: "+a.Name, err)
		case "overview":
			projects, err := deps.Graph.QueryProjectsOverview(ctx)
			return encodeRead(projects, err)
		case "delete":
			err := deps.Graph.DeleteProject(ctx, a.Name)
			return encodeWrite("Project", "", "project deleted: "+a.Name, err)
		default:
			return encodeWrite("Project", "", "", fmt.Errorf("unknown action %q, expected upsert|overview|delete", a.Action))
		}
	}
}

func mergeProjectsHandler(deps Deps) func(context.Context, mergeProjectsArgs) (string, error) {
	return func(ctx context.Context, a mergeProjectsArgs) (string, error) {
		err := deps.Graph.MergeProjects(ctx, a.Source, a.Target)
		return encodeWrite("Project", "", fmt.Sprintf("merged %s into %s", a.Source, a.Target), err)
	}
}
