// Package catalog builds the 19 named tools the chat orchestrator offers
// the LLM (spec §4.1's tool catalog). Each constructor returns a
// ready-to-register [tools.Tool] closing over the Graph Service, Vector
// Store, and entity resolver it needs — mirroring the teacher's
// internal/mcp/tools/memorytool.NewTools shape (one package, a handler
// constructor per tool, a single aggregator at the bottom).
package catalog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/khazna/khazna/internal/entityresolve"
	"github.com/khazna/khazna/internal/graphsvc"
	"github.com/khazna/khazna/internal/tools"
	"github.com/khazna/khazna/pkg/embeddings"
)

// Deps bundles everything a tool handler might need. Not every tool uses
// every field.
type Deps struct {
	Graph    *graphsvc.Service
	Embed    embeddings.Provider
	Resolver *entityresolve.Resolver

	// SelfRAGThreshold is the minimum GraphRAG relevance score a
	// search_knowledge result must clear to survive the Self-RAG filter
	// (thresholds.self_rag in config).
	SelfRAGThreshold float64
}

// writeResult is the envelope every write tool returns (spec §4.1: "Write
// tools execute their effect and return {ok, entity_kind, entity_id,
// summary}").
type writeResult struct {
	OK         bool   `json:"ok"`
	EntityKind string `json:"entity_kind,omitempty"`
	EntityID   string `json:"entity_id,omitempty"`
	Summary    string `json:"summary,omitempty"`
	Error      string `json:"error,omitempty"`
}

// encodeWrite renders a writeResult, never returning a Go error — tool
// failures surface as {ok:false, error} in the payload, never as an
// exception the LLM can't see (spec §7: "the response NEVER fabricates a
// success").
func encodeWrite(kind, id, summary string, err error) (string, error) {
	res := writeResult{EntityKind: kind, EntityID: id, Summary: summary}
	if err != nil {
		res.OK = false
		res.Error = err.Error()
	} else {
		res.OK = true
	}
	data, encErr := json.Marshal(res)
	if encErr != nil {
		return "", fmt.Errorf("catalog: failed to encode write result: %w", encErr)
	}
	return string(data), nil
}

// encodeRead renders any read-tool payload as JSON, or an {ok:false,
// error} envelope on failure.
func encodeRead(payload any, err error) (string, error) {
	if err != nil {
		data, _ := json.Marshal(writeResult{OK: false, Error: err.Error()})
		return string(data), nil
	}
	data, encErr := json.Marshal(payload)
	if encErr != nil {
		return "", fmt.Errorf("catalog: failed to encode read result: %w", encErr)
	}
	return string(data), nil
}

func decodeArgs[T any](args string) (T, error) {
	var a T
	if args == "" || args == "{}" {
		return a, nil
	}
	if err := json.Unmarshal([]byte(args), &a); err != nil {
		return a, fmt.Errorf("catalog: failed to parse arguments: %w", err)
	}
	return a, nil
}

func objectSchema(properties map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	} else {
		schema["required"] = []string{}
	}
	return schema
}

func stringProp(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

func numberProp(desc string) map[string]any {
	return map[string]any{"type": "number", "description": desc}
}

func intProp(desc string) map[string]any {
	return map[string]any{"type": "integer", "description": desc}
}

func boolProp(desc string) map[string]any {
	return map[string]any{"type": "boolean", "description": desc}
}

// New builds the full set of 19 catalog tools, wired to deps.
func New(deps Deps) []tools.Tool {
	var catalog []tools.Tool
	catalog = append(catalog, knowledgeTools(deps)...)
	catalog = append(catalog, reminderTools(deps)...)
	catalog = append(catalog, financeTools(deps)...)
	catalog = append(catalog, planningTools(deps)...)
	catalog = append(catalog, inventoryTools(deps)...)
	catalog = append(catalog, projectTools(deps)...)
	catalog = append(catalog, listTools(deps)...)
	return catalog
}

// handlerFunc adapts a typed handler into the [tools.Tool.Handler] shape.
func handlerFunc[T any](fn func(ctx context.Context, a T) (string, error)) func(context.Context, string) (string, error) {
	return func(ctx context.Context, args string) (string, error) {
		a, err := decodeArgs[T](args)
		if err != nil {
			return encodeWrite("", "", "", err)
		}
		return fn(ctx, a)
	}
}
