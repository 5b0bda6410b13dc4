package chatengine

import (
	"encoding/json"
	"fmt"
	"strings"
)

// fallbackReply synthesises an Arabic reply directly from raw tool results
// when the LLM call that should have produced the final answer times out
// or returns malformed output (spec §4.1 step 4, `_fallback_reply`). It
// never fabricates success: a tool trace with is_error true is rendered as
// a failure line, not silently dropped.
func fallbackReply(traces []ToolCallTrace) string {
	if len(traces) == 0 {
		return "حدث خطأ في معالجة الطلب، حاول مرة أخرى."
	}

	var lines []string
	for _, t := range traces {
		if t.IsError {
			lines = append(lines, fmt.Sprintf("تعذّر تنفيذ %s: %s", t.Name, summariseResult(t.Result)))
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %s", t.Name, summariseResult(t.Result)))
	}
	return strings.Join(lines, "\n")
}

// summariseResult renders a tool's JSON payload as a short human-readable
// line, falling back to the raw string when it isn't an object (or isn't
// valid JSON at all).
func summariseResult(raw string) string {
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return raw
	}
	if summary, ok := obj["summary"].(string); ok && summary != "" {
		return summary
	}
	if errMsg, ok := obj["error"].(string); ok && errMsg != "" {
		return errMsg
	}
	return raw
}
