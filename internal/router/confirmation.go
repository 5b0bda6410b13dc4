package router

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	confirmYes = regexp.MustCompile(`(?i)^(نعم|أي|ايوا|اي|تمام|اوكي|ماشي|صح|أكيد|اكيد|يب|طيب|` +
		`yes|ok|okay|sure|yep|yeah|yea|confirm|go ahead)$`)

	confirmNo = regexp.MustCompile(`(?i)^(لا|لأ|الغي|الغ|كنسل|خلاص لا|ما ابي|لا شكراً|` +
		`no|nah|nope|cancel|nevermind|never mind|stop)$`)

	numberSelection = regexp.MustCompile(`^\d+$`)
)

// Confirmation is the outcome of [ParseConfirmation].
type Confirmation int

const (
	// ConfirmationNone means text is neither a yes nor a no.
	ConfirmationNone Confirmation = iota
	ConfirmationYes
	ConfirmationNo
)

// ParseConfirmation checks whether text is a bare yes/no confirmation,
// matched against a bilingual Arabic/English word list (§4.6, used when the
// orchestrator asks the user to confirm a pending delete action).
func ParseConfirmation(text string) Confirmation {
	text = strings.TrimSpace(text)
	switch {
	case confirmYes.MatchString(text):
		return ConfirmationYes
	case confirmNo.MatchString(text):
		return ConfirmationNo
	default:
		return ConfirmationNone
	}
}

// ParseSelection parses text as a bare positive integer selection, used
// when the orchestrator asks the user to pick among multiple entity
// matches by number. ok is false when text is not a plain number.
func ParseSelection(text string) (n int, ok bool) {
	text = strings.TrimSpace(text)
	if !numberSelection.MatchString(text) {
		return 0, false
	}
	v, err := strconv.Atoi(text)
	if err != nil {
		return 0, false
	}
	return v, true
}
