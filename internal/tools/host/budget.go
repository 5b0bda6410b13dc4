package host

import (
	"cmp"
	"slices"

	"github.com/khazna/khazna/internal/tools"
	"github.com/khazna/khazna/pkg/llmgateway"
)

// budgetEnforcer filters tool definitions based on the active class ceiling.
// The zero value is ready for use.
type budgetEnforcer struct{}

// filterTools returns only the tool definitions whose class is ≤ maxClass,
// sorted by effective latency ascending (fastest first).
func (e *budgetEnforcer) filterTools(entries []toolEntry, maxClass tools.Class) []llmgateway.ToolDefinition {
	var result []toolEntry
	for i := range entries {
		if entries[i].class <= maxClass {
			result = append(result, entries[i])
		}
	}

	slices.SortFunc(result, func(a, b toolEntry) int {
		return cmp.Compare(a.effectiveP50(), b.effectiveP50())
	})

	defs := make([]llmgateway.ToolDefinition, len(result))
	for i, e := range result {
		defs[i] = e.def
	}
	return defs
}

// effectiveP50 returns the best-known P50 latency for sorting purposes.
func (e toolEntry) effectiveP50() int64 {
	if e.measurements != nil && e.measurements.Count() > 0 {
		return e.measuredP50Ms
	}
	return e.declaredP50Ms
}
