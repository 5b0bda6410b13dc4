// Package host provides the in-process dispatcher for Khazna's built-in
// tool catalog (internal/tools/catalog).
//
// Unlike the teacher's mcphost — which connects to external MCP servers
// over stdio/streamable-HTTP — every tool this spec defines is a Go
// function operating on the Graph Store, Vector Store, or memory layer
// directly (spec §4.1: "Dynamic tool dispatch: represent each tool as a
// record {name, schema, handler} in a lookup table"). Host keeps the
// teacher's registry/calibration/budget-tier architecture and drops the
// subprocess/HTTP transport plumbing, since there is no external server to
// connect to.
//
// Typical usage:
//
//	h := host.New()
//	for _, t := range catalog.New(deps) {
//		_ = h.Register(t)
//	}
//	h.Calibrate(ctx)
//	defs := h.AvailableTools(tools.ClassDeep)
//	result, err := h.ExecuteTool(ctx, "search_knowledge", `{"query":"..."}`)
package host

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/khazna/khazna/internal/tools"
	"github.com/khazna/khazna/pkg/llmgateway"
)

// defaultWindowSize is the default capacity of each tool's rolling window.
const defaultWindowSize = 100

// toolEntry holds all metadata for a single registered tool.
type toolEntry struct {
	def           llmgateway.ToolDefinition
	handler       func(ctx context.Context, args string) (string, error)
	declaredP50Ms int64
	declaredMaxMs int64
	measuredP50Ms int64
	measuredP99Ms int64
	callCount     int64
	errorCount    int64
	class         tools.Class
	degraded      bool
	measurements  *rollingWindow
}

// Result holds the outcome of a single tool execution.
type Result struct {
	// Content is the tool's textual output, typically a JSON string ready
	// for insertion into an LLM context window.
	Content string

	// IsError indicates that the tool returned an application-level error
	// (as opposed to a dispatch failure returned via the Go error return
	// value).
	IsError bool

	// DurationMs is the wall-clock time in milliseconds the handler took.
	DurationMs int64
}

// Host is a concurrency-safe registry and dispatcher for built-in tools.
//
// The zero value is NOT usable; create instances with [New].
type Host struct {
	mu    sync.RWMutex
	tools map[string]toolEntry

	enforcer budgetEnforcer
}

// New creates and returns a ready-to-use Host with no tools registered.
func New() *Host {
	return &Host{tools: make(map[string]toolEntry)}
}

// Register adds t to the catalog, assigning an initial [tools.Class] based
// on t.Class (the author's own declared class takes precedence over a
// latency-derived guess, since this spec's read/write split is semantic,
// not purely timing-based).
//
// If a tool with the same name is already registered it is replaced.
// Register is safe for concurrent use.
func (h *Host) Register(t tools.Tool) error {
	if t.Definition.Name == "" {
		return fmt.Errorf("tools/host: tool must have a non-empty name")
	}
	if t.Handler == nil {
		return fmt.Errorf("tools/host: tool %q must have a non-nil handler", t.Definition.Name)
	}

	entry := toolEntry{
		def:           t.Definition,
		handler:       t.Handler,
		declaredP50Ms: t.DeclaredP50,
		declaredMaxMs: t.DeclaredMax,
		class:         t.Class,
		measurements:  newRollingWindow(defaultWindowSize),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.tools[t.Definition.Name] = entry
	return nil
}

// AvailableTools returns all tool definitions whose class is ≤ maxClass,
// sorted by estimated latency ascending (fastest first).
func (h *Host) AvailableTools(maxClass tools.Class) []llmgateway.ToolDefinition {
	h.mu.RLock()
	entries := make([]toolEntry, 0, len(h.tools))
	for _, e := range h.tools {
		entries = append(entries, e)
	}
	h.mu.RUnlock()

	return h.enforcer.filterTools(entries, maxClass)
}

// ExecuteTool calls the named tool with JSON-encoded args and returns the
// result. A per-call deadline is derived from the tool's class
// (tools.Class.MaxLatencyMs) unless ctx already carries a tighter one
// (spec §5's per-iteration deadline).
//
// A non-nil *Result is returned on success even when [Result.IsError] is
// true (application-level error). A Go error is returned only when the
// tool name is unknown.
func (h *Host) ExecuteTool(ctx context.Context, name string, args string) (*Result, error) {
	h.mu.RLock()
	entry, ok := h.tools[name]
	h.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("tools/host: tool %q not found", name)
	}

	deadline := time.Duration(entry.class.MaxLatencyMs()) * time.Millisecond
	callCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	start := time.Now()
	output, err := entry.handler(callCtx, args)
	durationMs := time.Since(start).Milliseconds()

	isError := err != nil
	h.recordAndUpdateClass(name, durationMs, isError)

	if err != nil {
		return &Result{Content: err.Error(), IsError: true, DurationMs: durationMs}, nil
	}
	return &Result{Content: output, DurationMs: durationMs}, nil
}

// recordAndUpdateClass records a measurement and bumps a tool's class up
// one level when its error rate in the rolling window exceeds 30%
// (teacher's health-demotion rule, mcphost.recordAndUpdateTier).
func (h *Host) recordAndUpdateClass(name string, durationMs int64, isError bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	entry, ok := h.tools[name]
	if !ok {
		return
	}

	entry.measurements.Record(durationMs, isError)
	entry.callCount++
	if isError {
		entry.errorCount++
	}

	entry.measuredP50Ms = entry.measurements.P50()
	entry.measuredP99Ms = entry.measurements.P99()

	errRate := entry.measurements.ErrorRate()
	entry.degraded = errRate > 0.3
	if entry.degraded && entry.class < tools.ClassDeep {
		entry.class++
	}

	h.tools[name] = entry
}

// Close releases the registry. After Close returns the Host must not be
// used again.
func (h *Host) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.tools = make(map[string]toolEntry)
	return nil
}
