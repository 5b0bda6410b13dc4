// Package chatengine implements the tool-calling orchestrator described in
// spec §4.1: the chat core that runs the LLM tool loop, streams responses,
// and schedules post-processing (working-memory writes, auto-extraction,
// periodic summarisation, reminder auto-dismissal). Grounded on the
// teacher's internal/agent (turn loop shape) and internal/mcp/bridge
// (parallel tool dispatch), generalised from a single voice turn to the
// multi-iteration text loop this spec requires.
package chatengine

import (
	"time"

	"github.com/khazna/khazna/internal/graphsvc"
	"github.com/khazna/khazna/internal/memstore"
	"github.com/khazna/khazna/internal/ner"
	"github.com/khazna/khazna/internal/tools/host"
	"github.com/khazna/khazna/pkg/llmgateway"
)

// maxIterations caps the tool-calling loop (spec §4.1 step 3: "Cap at 3
// iterations. On the 3rd iteration, force a text reply.").
const maxIterations = 3

// defaultDailySummaryInterval and defaultCoreMemoryInterval are the message
// counts that trigger periodic summarisation (spec §4.1 step 4's "every N
// messages ... default 10" / "every M messages ... default 20").
const (
	defaultDailySummaryInterval = 10
	defaultCoreMemoryInterval   = 20
)

// Deps bundles everything the orchestrator needs to run a turn.
type Deps struct {
	Gateway  *llmgateway.Gateway
	Memory   *memstore.Store
	Graph    *graphsvc.Service
	Tools    *host.Host
	NER      *ner.Recognizer
	Timezone *time.Location

	DailySummaryInterval int
	CoreMemoryInterval   int
}

// Service is the tool-calling orchestrator. The zero value is not usable;
// construct with [New].
type Service struct {
	deps Deps
}

// New returns a ready-to-use Service.
func New(deps Deps) *Service {
	if deps.DailySummaryInterval <= 0 {
		deps.DailySummaryInterval = defaultDailySummaryInterval
	}
	if deps.CoreMemoryInterval <= 0 {
		deps.CoreMemoryInterval = defaultCoreMemoryInterval
	}
	if deps.Timezone == nil {
		deps.Timezone = time.UTC
	}
	return &Service{deps: deps}
}

// ToolCallTrace records one executed tool call for the response's trace[]
// and tool_calls[] fields.
type ToolCallTrace struct {
	Name       string `json:"name"`
	Arguments  string `json:"arguments"`
	Result     string `json:"result"`
	IsError    bool   `json:"is_error"`
	DurationMs int64  `json:"duration_ms"`
	Iteration  int    `json:"iteration"`
}

// ChatResult is the non-streaming chat() contract (spec §4.1).
type ChatResult struct {
	Reply     string           `json:"reply"`
	Sources   []string         `json:"sources"`
	Route     string           `json:"route"`
	ToolCalls []ToolCallTrace  `json:"tool_calls"`
	Trace     []string         `json:"trace"`
}

// StreamEventType enumerates the chat_stream() sequence's event kinds.
type StreamEventType string

const (
	StreamMeta     StreamEventType = "meta"
	StreamToken    StreamEventType = "token"
	StreamToolCall StreamEventType = "tool_call"
	StreamDone     StreamEventType = "done"
)

// StreamEvent is one element of the chat_stream() sequence.
type StreamEvent struct {
	Type     StreamEventType `json:"type"`
	Text     string          `json:"text,omitempty"`
	ToolCall *ToolCallTrace  `json:"tool_call,omitempty"`
	Result   *ChatResult     `json:"result,omitempty"`
}
