package fileproc

import (
	"context"
	"encoding/json"

	"github.com/khazna/khazna/internal/graphsvc"
	"github.com/khazna/khazna/internal/ner"
)

type invoiceAnalysis struct {
	Vendor   string  `json:"vendor"`
	Total    float64 `json:"total"`
	Currency string  `json:"currency"`
	Date     string  `json:"date"`
	Items    []struct {
		Name  string  `json:"name"`
		Price float64 `json:"price"`
	} `json:"items"`
}

// autoCreateExpense implements spec §4.3's "Auto-expense" rule:
// invoice-class images with a parsed numeric total > 0 auto-create an
// Expense with the parsed vendor and a heuristically guessed category.
func (s *Service) autoCreateExpense(ctx context.Context, rawAnalysis string) (string, error) {
	var a invoiceAnalysis
	if err := json.Unmarshal([]byte(rawAnalysis), &a); err != nil || a.Total <= 0 {
		return "", nil
	}

	itemNames := ""
	for i, it := range a.Items {
		if i > 0 {
			itemNames += ", "
		}
		itemNames += it.Name
	}

	currency := a.Currency
	if currency == "" {
		currency = "SAR"
	}

	return s.deps.Graph.UpsertExpense(ctx, graphsvc.ExpenseParams{
		Amount:   a.Total,
		Currency: currency,
		Category: ner.GuessExpenseCategory(a.Vendor, itemNames),
		Vendor:   a.Vendor,
		Date:     a.Date,
	})
}
