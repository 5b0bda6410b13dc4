// Package tools defines the shared [Tool] type and budget classes used by
// the built-in tool catalog (internal/tools/catalog) and its dispatcher
// (internal/tools/host). Each tool carries an LLM-facing schema together
// with the in-process handler invoked when the orchestrator dispatches a
// tool call (spec §4.1).
package tools

import (
	"context"

	"github.com/khazna/khazna/pkg/llmgateway"
)

// Class controls which tools are visible at a given point in the
// tool-calling loop. Unlike the teacher's purely latency-based
// mcp.BudgetTier, Class also encodes read/write semantics (spec §4.1's
// write-tool set) in addition to a latency ceiling, since this spec's
// tools are all in-process graph/vector calls rather than external MCP
// servers of unknown cost.
type Class int

const (
	// ClassRead tools only read application state. Safe to call freely,
	// including during auto-extraction post-processing.
	ClassRead Class = iota

	// ClassWrite tools mutate application state (spec §4.1 step 4's
	// _WRITE_TOOLS set). A turn in which a write tool executed skips
	// auto-extraction — the write already captured the fact.
	ClassWrite

	// ClassDeep tools run multi-hop graph traversals or cross-entity
	// aggregation and carry a higher latency budget.
	ClassDeep
)

// String returns the human-readable name of the class.
func (c Class) String() string {
	switch c {
	case ClassRead:
		return "READ"
	case ClassWrite:
		return "WRITE"
	case ClassDeep:
		return "DEEP"
	default:
		return "UNKNOWN"
	}
}

// MaxLatencyMs returns the per-call timeout enforced by the dispatcher for
// tools of this class (spec §5's per-iteration deadline).
func (c Class) MaxLatencyMs() int {
	switch c {
	case ClassRead:
		return 500
	case ClassWrite:
		return 1500
	case ClassDeep:
		return 4000
	default:
		return 500
	}
}

// Tool represents a built-in tool ready for registration with the tool
// host.
type Tool struct {
	// Definition is the tool's LLM-facing schema: name, description, and
	// JSON Schema parameter specification. Definition.ReadOnly marks
	// ClassRead tools.
	Definition llmgateway.ToolDefinition

	// Handler executes the tool with JSON-encoded args and returns a
	// JSON-encoded result string on success, or a descriptive error.
	// Implementations must be safe for concurrent use and must respect
	// context cancellation.
	Handler func(ctx context.Context, args string) (string, error)

	// Class assigns the tool's latency budget and read/write semantics.
	Class Class

	// DeclaredP50 is the tool author's declared median execution latency
	// in milliseconds, used to order tools in the host's AvailableTools
	// until live measurements are available.
	DeclaredP50 int64

	// DeclaredMax is the tool author's declared p99 upper bound. The host
	// stores it but does not enforce it; the per-call timeout comes from
	// [Class.MaxLatencyMs].
	DeclaredMax int64
}
