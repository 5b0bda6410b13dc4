package catalog

import (
	"context"
	"fmt"

	"github.com/khazna/khazna/internal/graphsvc"
	"github.com/khazna/khazna/internal/tools"
	"github.com/khazna/khazna/pkg/llmgateway"
)

type manageInventoryArgs struct {
	Action      string  `json:"action"`
	Name        string  `json:"name,omitempty"`
	Quantity    float64 `json:"quantity,omitempty"`
	Location    string  `json:"location,omitempty"`
	Category    string  `json:"category,omitempty"`
	Brand       string  `json:"brand,omitempty"`
	Condition   string  `json:"condition,omitempty"`
	Barcode     string  `json:"barcode,omitempty"`
	BarcodeType string  `json:"barcode_type,omitempty"`
}

func inventoryTools(deps Deps) []tools.Tool {
	return []tools.Tool{
		{
			Definition: llmgateway.ToolDefinition{
				Name:        "manage_inventory",
				Description: "Manage household/personal inventory items. action is one of add|list|find_duplicates. add requires name; list filters by category and/or location; find_duplicates groups items that appear to be the same physical thing logged more than once (by barcode or name+location).",
				Parameters: objectSchema(map[string]any{
					"action":       stringProp("add|list|find_duplicates."),
					"name":         stringProp("Item name, required for add."),
					"quantity":     numberProp("How many, for add. Defaults to 1."),
					"location":     stringProp("Where it's stored."),
					"category":     stringProp("Item category; auto-guessed when omitted on add."),
					"brand":        stringProp("Optional brand."),
					"condition":    stringProp("Optional condition note."),
					"barcode":      stringProp("Optional scanned barcode."),
					"barcode_type": stringProp("Barcode symbology, e.g. EAN13, when barcode is set."),
				}, "action"),
			},
			Handler:     handlerFunc(manageInventoryHandler(deps)),
			Class:       tools.ClassWrite,
			DeclaredP50: 200,
			DeclaredMax: 1500,
		},
	}
}

func manageInventoryHandler(deps Deps) func(context.Context, manageInventoryArgs) (string, error) {
	return func(ctx context.Context, a manageInventoryArgs) (string, error) {
		switch a.Action {
		case "add":
			quantity := a.Quantity
			if quantity <= 0 {
				quantity = 1
			}
			id, err := deps.Graph.UpsertItem(ctx, graphsvc.ItemParams{
				Name:        a.Name,
				Quantity:    quantity,
				Location:    a.Location,
				Category:    a.Category,
				Brand:       a.Brand,
				Condition:   a.Condition,
				Barcode:     a.Barcode,
				BarcodeType: a.BarcodeType,
			})
			return encodeWrite("Item", id, fmt.Sprintf("added %.0fx %s", quantity, a.Name), err)
		case "list":
			items, err := deps.Graph.QueryInventory(ctx, a.Category, a.Location)
			return encodeRead(items, err)
		case "find_duplicates":
			groups, err := deps.Graph.FindDuplicateInventory(ctx)
			return encodeRead(groups, err)
		default:
			return encodeWrite("Item", "", "", fmt.Errorf("unknown action %q, expected add|list|find_duplicates", a.Action))
		}
	}
}
