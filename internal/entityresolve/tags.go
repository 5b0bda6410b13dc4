package entityresolve

import "strings"

// tagAliases canonicalizes common English tag spellings onto the Arabic
// term the assistant otherwise surfaces tags in, so "finance" and "مالية"
// collapse onto one Tag node instead of two.
var tagAliases = map[string]string{
	"programming": "برمجة", "coding": "برمجة", "code": "برمجة",
	"finance": "مالية", "money": "مالية",
	"health": "صحة", "medical": "صحة",
	"work": "عمل", "job": "عمل",
	"home": "منزل", "house": "منزل",
	"food": "طعام", "cooking": "طبخ",
	"travel":    "سفر",
	"education": "تعليم", "learning": "تعليم",
	"shopping": "تسوق",
	"car":      "سيارة", "auto": "سيارة",
	"tech": "تقنية", "technology": "تقنية",
}

// normalizeTag lowercases and trims tag, then maps it through tagAliases.
// Tags with no alias entry pass through unchanged (lowercased/trimmed).
func normalizeTag(tag string) string {
	t := strings.ToLower(strings.TrimSpace(tag))
	if t == "" {
		return ""
	}
	if ar, ok := tagAliases[t]; ok {
		return ar
	}
	return t
}
