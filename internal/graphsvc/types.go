package graphsvc

import "time"

// PersonParams are the recognised fields for [Service.UpsertPerson].
type PersonParams struct {
	Name             string
	NameAr           string
	Company          string
	DateOfBirth      string // Gregorian ISO date; empty when unknown.
	DateOfBirthHijri string // set when the source year was < 1900 (spec §9).
	IDNumber         string
}

// ProjectParams are the recognised fields for [Service.UpsertProject].
type ProjectParams struct {
	Name        string
	Status      string // todo|active|on_hold|done|cancelled
	Priority    string
	Description string
}

// TaskParams are the recognised fields for [Service.UpsertTask].
type TaskParams struct {
	Name              string
	Status            string // todo|in_progress|done|cancelled
	Project           string
	Sprint            string
	EstimatedDuration string
	EnergyLevel       string // high|medium|low
	StartTime         string
	EndTime           string
}

// KnowledgeParams are the recognised fields for [Service.UpsertKnowledge].
type KnowledgeParams struct {
	Title            string
	Content          string
	Topic            string
	Category         string // auto-guessed from Title+Content when empty.
	ReferenceNumbers []string
}

// ExpenseParams are the recognised fields for [Service.UpsertExpense].
type ExpenseParams struct {
	Amount   float64
	Currency string
	Category string // auto-guessed from Vendor when empty.
	Vendor   string
	Date     string
}

// DebtDirection is the canonical direction of a Debt (spec §3: "Direction
// is normalised from any LLM variant").
type DebtDirection string

const (
	DebtIOwe    DebtDirection = "i_owe"
	DebtOwedTo  DebtDirection = "owed_to_me"
	debtUnknown DebtDirection = ""
)

// NormalizeDebtDirection maps any LLM-produced variant onto the two
// canonical values, defaulting to [DebtIOwe] when the phrasing is
// ambiguous — spec §3 requires the field to always resolve to one of the
// two after ingestion.
func NormalizeDebtDirection(raw string) DebtDirection {
	switch normalizeKey(raw) {
	case "i_owe", "iowe", "owe", "i owe", "أنا أدين", "علي":
		return DebtIOwe
	case "owed_to_me", "owedtome", "owed", "they owe", "لي":
		return DebtOwedTo
	default:
		return DebtIOwe
	}
}

// DebtParams are the recognised fields for [Service.UpsertDebt].
type DebtParams struct {
	Person    string
	Amount    float64
	Currency  string
	Direction DebtDirection
	Reason    string
}

// ReminderParams are the recognised fields for [Service.UpsertReminder].
type ReminderParams struct {
	Title        string
	DueDate      time.Time
	ReminderType string // one_time|recurring|persistent|event_based|financial
	Recurrence   string // daily|weekly|monthly|yearly (only when ReminderType == "recurring")
	Priority     string
	Description  string
	Persistent   bool
	Prayer       string
}

// ItemParams are the recognised fields for [Service.UpsertItem].
type ItemParams struct {
	Name        string
	Quantity    float64
	Location    string
	Category    string
	Brand       string
	Condition   string
	Barcode     string
	BarcodeType string
}

// SprintParams are the recognised fields for [Service.UpsertSprint].
type SprintParams struct {
	Name      string
	StartDate string
	EndDate   string
	Project   string
	Goal      string
	Status    string // active|completed
}

// FocusSessionParams are the recognised fields for
// [Service.UpsertFocusSession].
type FocusSessionParams struct {
	StartTime  time.Time
	EndTime    *time.Time
	DurationMin int
	Task       string
	Completed  bool
}

// ListParams are the recognised fields for [Service.UpsertList].
type ListParams struct {
	Name    string
	Type    string // shopping|ideas|checklist|reference
	Project string
}

// ListEntryParams are the recognised fields for [Service.UpsertListEntry].
type ListEntryParams struct {
	List    string
	Text    string
	Checked bool
	Order   int
}

// Fact is one entity extracted from a chunk of ingested text, in the
// duck-typed shape the extraction prompt produces: a type, a name, and a
// free-form attribute bag. Unknown attribute keys are dropped at the
// ingestion boundary (spec §9) rather than causing an error.
type Fact struct {
	Type       string
	Name       string
	Attributes map[string]any

	// Relationships lists outgoing edges this fact asserts, keyed by
	// relationship type to the name of another fact (resolved in the same
	// batch) or an existing entity.
	Relationships []FactRelationship
}

// FactRelationship is one outgoing edge asserted by a [Fact].
type FactRelationship struct {
	RelType    string
	TargetName string
	TargetType string
}
