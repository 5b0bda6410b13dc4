package tools

import "regexp"

// storableRe matches biographical verbs and nouns in either Arabic or
// English, bilingual by design since messages arrive in either language
// (spec §9). Ported from the original's _STORABLE_RE.
var storableRe = regexp.MustCompile(
	`(?i)(يعمل|يشتغل|يدرس|عمره|ساكن|متزوج|عنده|تخرج|يحب|` +
		`works at|lives in|married|born|age|graduated|likes|` +
		`شركة|جامعة|مدرسة|company|university|school)`,
)

// WriteTools is the set of tool names classified as mutating — a turn in
// which one of these fired already captured its fact via the write tool
// itself, so auto-extraction is skipped for that turn.
var WriteTools = map[string]bool{
	"create_reminder": true, "delete_reminder": true, "update_reminder": true,
	"add_expense": true, "record_debt": true, "pay_debt": true, "store_note": true,
	"manage_inventory": true, "manage_tasks": true, "manage_projects": true,
	"merge_projects": true, "manage_lists": true,
}

// AutoExtractSafeTypes are the entity types auto-extraction is allowed to
// create from casual conversation. Project, Task, Idea, Sprint, and similar
// planning entities require explicit user intent through a tool call
// instead, to avoid a stray mention spawning a phantom project.
var AutoExtractSafeTypes = map[string]bool{
	"Person": true, "Company": true, "Knowledge": true, "Location": true,
}

// LooksBiographical reports whether msg contains a biographical cue worth
// spending an extraction LLM call on. Called on every turn in which no
// write tool fired (spec §4.1 post-processing step 5); this keeps routine
// read-only turns from triggering extraction on every message.
func LooksBiographical(msg string) bool {
	return storableRe.MatchString(msg)
}
