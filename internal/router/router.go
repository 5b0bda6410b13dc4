// Package router implements the zero-latency heuristic layer described in
// §4.6: a specificity-ordered regex router that maps a chat message to a
// route label without an LLM call, plus the action-vs-query classifier that
// decides whether a turn without explicit tool calls still needs
// auto-extraction side effects, and the confirmation/selection parsers used
// when the orchestrator asks the user to disambiguate.
package router

import "regexp"

// Route is a stable route label. Route names mirror the reference
// implementation's route strings so existing client expectations
// ("graph_debt_summary", etc.) carry over unchanged.
type Route string

const (
	RouteDebtPayment          Route = "graph_debt_payment"
	RouteDebtSummary          Route = "graph_debt_summary"
	RouteFinancialReport      Route = "graph_financial_report"
	RouteFinancial            Route = "graph_financial"
	RouteInventoryDuplicates  Route = "graph_inventory_duplicates"
	RouteInventoryReport      Route = "graph_inventory_report"
	RouteInventoryMove        Route = "graph_inventory_move"
	RouteInventoryUsage       Route = "graph_inventory_usage"
	RouteInventoryUnused      Route = "graph_inventory_unused"
	RouteInventory            Route = "graph_inventory"
	RouteReminderAction       Route = "graph_reminder_action"
	RouteReminder             Route = "graph_reminder"
	RouteUnknown              Route = ""
)

// routeRule is one entry of the specificity-ordered route table. The first
// matching rule wins; order matters (§4.6: debt-payment before
// debt-summary before financial-report before financial; inventory
// duplicates before report before move before usage before unused before
// generic inventory).
type routeRule struct {
	pattern *regexp.Regexp
	route   Route
}

var routeTable = []routeRule{
	{regexp.MustCompile(`(?i)(سددت|سدد|دفعت دين|pay(ed)? (off )?debt|debt payment)`), RouteDebtPayment},
	{regexp.MustCompile(`(?i)(ملخص الديون|كم علي|كم لي|debt summary|how much debt|owe summary)`), RouteDebtSummary},
	{regexp.MustCompile(`(?i)(تقرير مالي|financial report|spending report|monthly report)`), RouteFinancialReport},
	{regexp.MustCompile(`(?i)(مصروف|صرفت|دفعت|expense|spent|paid|financial)`), RouteFinancial},
	{regexp.MustCompile(`(?i)(مكرر|duplicate items?|similar items?)`), RouteInventoryDuplicates},
	{regexp.MustCompile(`(?i)(تقرير المخزون|inventory report)`), RouteInventoryReport},
	{regexp.MustCompile(`(?i)(نقلت|حركت|حطيته في|حطيتها في|moved|relocated|transferred)`), RouteInventoryMove},
	{regexp.MustCompile(`(?i)(استخدمت|استعملت|used (up )?|consumed)`), RouteInventoryUsage},
	{regexp.MustCompile(`(?i)(ما استخدمته|unused items?|not used)`), RouteInventoryUnused},
	{regexp.MustCompile(`(?i)(المخزون|عندي |inventory|item)`), RouteInventory},
	{regexp.MustCompile(`(?i)(ذكرني|أضف تذكير|set reminder|remind me|create reminder)`), RouteReminderAction},
	{regexp.MustCompile(`(?i)(تذكير|reminder)`), RouteReminder},
}

// alwaysAction and alwaysQuery are routes whose action/query classification
// is deterministic regardless of message text (§4.6).
var (
	alwaysAction = map[Route]bool{RouteDebtPayment: true, RouteReminderAction: true}
	alwaysQuery  = map[Route]bool{RouteDebtSummary: true, RouteFinancialReport: true}
)

// ClassifyIntent matches text against the specificity-ordered route table.
// Returns RouteUnknown when nothing matches — callers fall back to an LLM
// classify call in that case (§4.6: "no match falls back to an LLM classify
// call").
func ClassifyIntent(text string) Route {
	for _, rule := range routeTable {
		if rule.pattern.MatchString(text) {
			return rule.route
		}
	}
	return RouteUnknown
}

var (
	actionPatterns = regexp.MustCompile(`(?i)(صرفت|دفعت|سددت|سدد|رجع|سجل|ذكرني|أضف|ضيف|حط|اشتريت|عندي |شريت|` +
		`استخدمت|ضاع|خلص|عطيت|رميت|انكسر|نقلت|حركت|حطيته في|حطيتها في|moved|relocated|transferred|` +
		`spent|paid|record|add|bought|create|register|remind me|set reminder|i have|stored|used|gave away|lost|broke)`)

	queryPatterns = regexp.MustCompile(`(?i)(كم|وش|مين|ملخص|تقرير|عرض|ابي اعرف|اعرض|` +
		`how much|who|what|show|list|summary|report|display|tell me)`)

	deletePatterns = regexp.MustCompile(`(?i)(احذف|حذف|امحي|امسح|شيل|ازل|الغي|الغاء|كنسل|فك|` +
		`delete|remove|cancel|erase|clear|drop|wipe)`)
)

// IsActionIntent decides whether text expresses an action (write) or a
// query (read) for the given route, per §4.6. Deterministic routes skip
// pattern matching entirely; ambiguous routes default to query when both or
// neither pattern set matches — never silently mutate state on an ambiguous
// utterance.
func IsActionIntent(text string, route Route) bool {
	if alwaysAction[route] {
		return true
	}
	if alwaysQuery[route] {
		return false
	}
	hasAction := actionPatterns.MatchString(text)
	hasQuery := queryPatterns.MatchString(text)
	if hasAction && !hasQuery {
		return true
	}
	return false
}

// IsDeleteIntent reports whether text expresses a delete/remove/cancel
// intent. Only delete intents require a confirmation round-trip; every
// other side effect executes directly.
func IsDeleteIntent(text string) bool {
	return deletePatterns.MatchString(text)
}
