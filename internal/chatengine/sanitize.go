package chatengine

import "regexp"

// toolsAvailableRe matches the "Tools available: ..." / tool-listing blocks
// some Open WebUI retrieval pipelines inject ahead of the user's actual
// message. internalKeywordsRe catches stray system/function-call markup
// that leaks through the same path. Both must be stripped before the
// message reaches working memory — polluted memory poisons future
// searches (spec §4.1 post-processing step 6).
var (
	toolsAvailableRe = regexp.MustCompile(`(?is)tools?\s+available\s*:.*?(?:\n\n|$)`)
	internalKeywordsRe = regexp.MustCompile(`(?i)(###\s*task\b|<\|?(system|function_call|tool_call)\|?>|\[/?INST\])`)
)

// sanitizeForMemory strips Open WebUI retrieval-injection artefacts from a
// user message before it is written to working memory or used as
// auto-extraction input.
func sanitizeForMemory(message string) string {
	cleaned := toolsAvailableRe.ReplaceAllString(message, "")
	cleaned = internalKeywordsRe.ReplaceAllString(cleaned, "")
	return cleaned
}
