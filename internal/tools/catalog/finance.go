package catalog

import (
	"context"
	"fmt"

	"github.com/khazna/khazna/internal/graphsvc"
	"github.com/khazna/khazna/internal/tools"
	"github.com/khazna/khazna/pkg/llmgateway"
)

type addExpenseArgs struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency,omitempty"`
	Category string  `json:"category,omitempty"`
	Vendor   string  `json:"vendor,omitempty"`
	Date     string  `json:"date,omitempty"`
}

type getExpenseReportArgs struct {
	Month   int  `json:"month,omitempty"`
	Year    int  `json:"year,omitempty"`
	Compare bool `json:"compare,omitempty"`
}

type getDebtSummaryArgs struct{}

type recordDebtArgs struct {
	Person    string  `json:"person"`
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency,omitempty"`
	Direction string  `json:"direction,omitempty"`
	Reason    string  `json:"reason,omitempty"`
}

type payDebtArgs struct {
	DebtID string  `json:"debt_id"`
	Amount float64 `json:"amount"`
	Date   string  `json:"date,omitempty"`
}

func financeTools(deps Deps) []tools.Tool {
	return []tools.Tool{
		{
			Definition: llmgateway.ToolDefinition{
				Name:        "add_expense",
				Description: "Record a new expense. Category is auto-detected from the vendor when not supplied.",
				Parameters: objectSchema(map[string]any{
					"amount":   numberProp("Amount spent."),
					"currency": stringProp("Currency code, e.g. SAR. Defaults to SAR."),
					"category": stringProp("Optional expense category; auto-guessed when omitted."),
					"vendor":   stringProp("Where the money was spent."),
					"date":     stringProp("ISO-8601 date. Defaults to today."),
				}, "amount"),
			},
			Handler:     handlerFunc(addExpenseHandler(deps)),
			Class:       tools.ClassWrite,
			DeclaredP50: 150,
			DeclaredMax: 1000,
		},
		{
			Definition: llmgateway.ToolDefinition{
				Name:        "get_expense_report",
				Description: "Get a monthly spending report broken down by category, optionally compared to the prior month.",
				Parameters: objectSchema(map[string]any{
					"month":   intProp("1-12. Defaults to the current month."),
					"year":    intProp("Defaults to the current year."),
					"compare": boolProp("Include the prior month's total for comparison."),
				}),
				ReadOnly: true,
			},
			Handler:     handlerFunc(getExpenseReportHandler(deps)),
			Class:       tools.ClassRead,
			DeclaredP50: 200,
			DeclaredMax: 1000,
		},
		{
			Definition: llmgateway.ToolDefinition{
				Name:        "get_debt_summary",
				Description: "Get total outstanding debt, broken down into what I owe versus what is owed to me.",
				Parameters:  objectSchema(map[string]any{}),
				ReadOnly:    true,
			},
			Handler:     handlerFunc(getDebtSummaryHandler(deps)),
			Class:       tools.ClassRead,
			DeclaredP50: 150,
			DeclaredMax: 800,
		},
		{
			Definition: llmgateway.ToolDefinition{
				Name:        "record_debt",
				Description: "Record a new debt, either money I owe someone or money owed to me. direction is i_owe or owed_to_me; any phrasing not matching one of those defaults to i_owe.",
				Parameters: objectSchema(map[string]any{
					"person":    stringProp("The other party's name."),
					"amount":    numberProp("Debt amount."),
					"currency":  stringProp("Currency code. Defaults to SAR."),
					"direction": stringProp("i_owe or owed_to_me."),
					"reason":    stringProp("Optional reason for the debt."),
				}, "person", "amount"),
			},
			Handler:     handlerFunc(recordDebtHandler(deps)),
			Class:       tools.ClassWrite,
			DeclaredP50: 200,
			DeclaredMax: 1000,
		},
		{
			Definition: llmgateway.ToolDefinition{
				Name:        "pay_debt",
				Description: "Record a payment against an existing debt. The debt's status becomes 'paid' once the remaining amount reaches zero, 'partial' otherwise.",
				Parameters: objectSchema(map[string]any{
					"debt_id": stringProp("The debt's ID, from get_debt_summary or search results."),
					"amount":  numberProp("Amount paid."),
					"date":    stringProp("ISO-8601 date. Defaults to today."),
				}, "debt_id", "amount"),
			},
			Handler:     handlerFunc(payDebtHandler(deps)),
			Class:       tools.ClassWrite,
			DeclaredP50: 200,
			DeclaredMax: 1000,
		},
	}
}

func addExpenseHandler(deps Deps) func(context.Context, addExpenseArgs) (string, error) {
	return func(ctx context.Context, a addExpenseArgs) (string, error) {
		currency := a.Currency
		if currency == "" {
			currency = "SAR"
		}
		id, err := deps.Graph.UpsertExpense(ctx, graphsvc.ExpenseParams{
			Amount:   a.Amount,
			Currency: currency,
			Category: a.Category,
			Vendor:   a.Vendor,
			Date:     a.Date,
		})
		return encodeWrite("Expense", id, fmt.Sprintf("logged %.2f %s at %s", a.Amount, currency, a.Vendor), err)
	}
}

func getExpenseReportHandler(deps Deps) func(context.Context, getExpenseReportArgs) (string, error) {
	return func(ctx context.Context, a getExpenseReportArgs) (string, error) {
		report, err := deps.Graph.QueryFinancialReport(ctx, a.Month, a.Year, a.Compare)
		return encodeRead(report, err)
	}
}

func getDebtSummaryHandler(deps Deps) func(context.Context, getDebtSummaryArgs) (string, error) {
	return func(ctx context.Context, _ getDebtSummaryArgs) (string, error) {
		summary, err := deps.Graph.GetDebtSummary(ctx)
		return encodeRead(summary, err)
	}
}

func recordDebtHandler(deps Deps) func(context.Context, recordDebtArgs) (string, error) {
	return func(ctx context.Context, a recordDebtArgs) (string, error) {
		currency := a.Currency
		if currency == "" {
			currency = "SAR"
		}
		id, err := deps.Graph.UpsertDebt(ctx, graphsvc.DebtParams{
			Person:    a.Person,
			Amount:    a.Amount,
			Currency:  currency,
			Direction: graphsvc.NormalizeDebtDirection(a.Direction),
			Reason:    a.Reason,
		})
		return encodeWrite("Debt", id, fmt.Sprintf("recorded debt with %s: %.2f %s", a.Person, a.Amount, currency), err)
	}
}

func payDebtHandler(deps Deps) func(context.Context, payDebtArgs) (string, error) {
	return func(ctx context.Context, a payDebtArgs) (string, error) {
		status, remaining, err := deps.Graph.PayDebt(ctx, a.DebtID, a.Amount, a.Date)
		if err != nil {
			return encodeWrite("Debt", a.DebtID, "", err)
		}
		return encodeWrite("Debt", a.DebtID, fmt.Sprintf("payment recorded, status=%s, remaining=%.2f", status, remaining), nil)
	}
}
