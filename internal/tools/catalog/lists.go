package catalog

import (
	"context"
	"fmt"

	"github.com/khazna/khazna/internal/graphsvc"
	"github.com/khazna/khazna/internal/tools"
	"github.com/khazna/khazna/pkg/llmgateway"
)

type manageListsArgs struct {
	Action  string `json:"action"`
	Name    string `json:"name,omitempty"`
	Type    string `json:"type,omitempty"`
	Project string `json:"project,omitempty"`
	List    string `json:"list,omitempty"`
	Text    string `json:"text,omitempty"`
	Checked bool   `json:"checked,omitempty"`
	Order   int    `json:"order,omitempty"`
}

func listTools(deps Deps) []tools.Tool {
	return []tools.Tool{
		{
			Definition: llmgateway.ToolDefinition{
				Name:        "manage_lists",
				Description: "Create lists (shopping, ideas, checklists, reference) and manage their entries. action is one of create_list|add_entry|check_entry. create_list requires name; add_entry and check_entry require list and text.",
				Parameters: objectSchema(map[string]any{
					"action":  stringProp("create_list|add_entry|check_entry."),
					"name":    stringProp("List name, required for create_list."),
					"type":    stringProp("shopping|ideas|checklist|reference, for create_list. Defaults to checklist."),
					"project": stringProp("Optional project this list belongs to, for create_list."),
					"list":    stringProp("The list's name, for add_entry/check_entry."),
					"text":    stringProp("The entry's text, for add_entry/check_entry."),
					"checked": boolProp("Whether the entry is checked off, for add_entry/check_entry."),
					"order":   intProp("Optional sort order, for add_entry."),
				}, "action"),
			},
			Handler:     handlerFunc(manageListsHandler(deps)),
			Class:       tools.ClassWrite,
			DeclaredP50: 200,
			DeclaredMax: 1500,
		},
	}
}

func manageListsHandler(deps Deps) func(context.Context, manageListsArgs) (string, error) {
	return func(ctx context.Context, a manageListsArgs) (string, error) {
		switch a.Action {
		case "create_list":
			listType := a.Type
			if listType == "" {
				listType = "checklist"
			}
			id, err := deps.Graph.UpsertList(ctx, graphsvc.ListParams{
				Name:    a.Name,
				Type:    listType,
				Project: a.Project,
			})
			return encodeWrite("List", id, "list created: "+a.Name, err)
		case "add_entry":
			id, err := deps.Graph.UpsertListEntry(ctx, graphsvc.ListEntryParams{
				List:    a.List,
				Text:    a.Text,
				Checked: a.Checked,
				Order:   a.Order,
			})
			return encodeWrite("ListEntry", id, "added to "+a.List+": "+a.Text, err)
		case "check_entry":
			id, err := deps.Graph.CheckListEntry(ctx, a.List, a.Text)
			return encodeWrite("ListEntry", id, "checked off in "+a.List+": "+a.Text, err)
		default:
			return encodeWrite("List", "", "", fmt.Errorf("unknown action %q, expected create_list|add_entry|check_entry", a.Action))
		}
	}
}
