package entityresolve

import (
	"regexp"
	"strings"
)

// parenRE matches a parenthetical annotation the model tends to echo back
// in tool arguments, e.g. "(متأخرة)" or "(overdue)".
var parenRE = regexp.MustCompile(`\s*\([^)]*\)\s*`)

// StripParenthetical removes parenthetical annotations from a query string
// before attempting a title/name match. Callers retry in this order: the
// cleaned query, then the original query unchanged, then vector similarity
// (§4.5) — StripParenthetical only ever produces the first of those three.
func StripParenthetical(s string) string {
	return strings.TrimSpace(parenRE.ReplaceAllString(s, " "))
}
