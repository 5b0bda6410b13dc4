package chatengine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/khazna/khazna/internal/router"
	"github.com/khazna/khazna/internal/tools"
	"github.com/khazna/khazna/pkg/llmgateway"
)

// Chat runs one non-streaming turn of the tool-calling loop (spec §4.1's
// chat(message, session_id) contract) and schedules post-processing in the
// background once the reply is ready.
func (s *Service) Chat(ctx context.Context, message, sessionID string) (*ChatResult, error) {
	message = sanitizeForMemory(message)

	systemPrompt, err := s.composeSystemPrompt(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("chatengine: compose system prompt: %w", err)
	}
	turns, err := s.deps.Memory.WorkingMemory(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("chatengine: load working memory: %w", err)
	}
	messages := composeMessages(turns, message)

	catalog := s.deps.Tools.AvailableTools(tools.ClassDeep)

	var allTraces []ToolCallTrace
	var reply string
	malformed := false

	for iteration := 1; iteration <= maxIterations; iteration++ {
		forceText := iteration == maxIterations
		req := llmgateway.CompletionRequest{
			SystemPrompt: systemPrompt,
			Messages:     messages,
			Temperature:  0.3,
		}
		if !forceText {
			req.Tools = catalog
		}

		resp, err := s.deps.Gateway.Provider().Complete(ctx, req)
		if err != nil {
			reply = fallbackReply(allTraces)
			malformed = true
			break
		}

		if len(resp.ToolCalls) == 0 || forceText {
			reply = resp.Content
			if reply == "" && len(allTraces) > 0 {
				reply = fallbackReply(allTraces)
				malformed = true
			}
			break
		}

		traces, err := s.dispatchToolCalls(ctx, resp.ToolCalls, iteration)
		if err != nil {
			reply = fallbackReply(allTraces)
			malformed = true
			break
		}
		allTraces = append(allTraces, traces...)
		messages = appendToolMessages(messages, resp.ToolCalls, traces)
	}

	result := &ChatResult{
		Reply:     reply,
		Sources:   sourcesFromTraces(allTraces),
		Route:     string(router.ClassifyIntent(message)),
		ToolCalls: allTraces,
		Trace:     renderTrace(allTraces, malformed),
	}

	go s.postProcess(context.WithoutCancel(ctx), message, reply, sessionID, allTraces)

	return result, nil
}

// sourcesFromTraces pulls the file/chunk identifiers a search_knowledge
// call surfaced, so the caller can cite what backed the reply (spec §4.1's
// sources[] field). Chunks with no FileID came from a tool-asserted fact
// rather than an ingested file and are skipped.
func sourcesFromTraces(traces []ToolCallTrace) []string {
	seen := map[string]bool{}
	var sources []string
	for _, t := range traces {
		if t.Name != "search_knowledge" || t.IsError {
			continue
		}
		var results []struct {
			Chunk struct {
				FileID string `json:"FileID"`
			} `json:"Chunk"`
		}
		if err := json.Unmarshal([]byte(t.Result), &results); err != nil {
			continue
		}
		for _, r := range results {
			fileID := r.Chunk.FileID
			if fileID == "" || seen[fileID] {
				continue
			}
			seen[fileID] = true
			sources = append(sources, fileID)
		}
	}
	return sources
}

// renderTrace renders a short human-readable execution trace for
// diagnostics (spec §4.1's trace[] field).
func renderTrace(traces []ToolCallTrace, malformed bool) []string {
	lines := make([]string, 0, len(traces)+1)
	for _, t := range traces {
		status := "ok"
		if t.IsError {
			status = "error"
		}
		lines = append(lines, fmt.Sprintf("iter %d: %s (%s, %dms)", t.Iteration, t.Name, status, t.DurationMs))
	}
	if malformed {
		lines = append(lines, "fallback reply synthesised from tool results")
	}
	return lines
}

// ChatStream runs the streaming variant of the loop (spec §4.1's
// chat_stream contract), emitting meta/token/tool_call/done events on out.
// out is closed when the turn completes or ctx is cancelled.
func (s *Service) ChatStream(ctx context.Context, message, sessionID string, out chan<- StreamEvent) {
	defer close(out)
	message = sanitizeForMemory(message)

	systemPrompt, err := s.composeSystemPrompt(ctx, sessionID)
	if err != nil {
		out <- StreamEvent{Type: StreamDone, Result: &ChatResult{Reply: fallbackReply(nil)}}
		return
	}
	turns, err := s.deps.Memory.WorkingMemory(ctx, sessionID)
	if err != nil {
		out <- StreamEvent{Type: StreamDone, Result: &ChatResult{Reply: fallbackReply(nil)}}
		return
	}
	messages := composeMessages(turns, message)
	catalog := s.deps.Tools.AvailableTools(tools.ClassDeep)

	var allTraces []ToolCallTrace
	var reply string
	malformed := false

	out <- StreamEvent{Type: StreamMeta}

	for iteration := 1; iteration <= maxIterations; iteration++ {
		forceText := iteration == maxIterations
		req := llmgateway.CompletionRequest{
			SystemPrompt: systemPrompt,
			Messages:     messages,
			Temperature:  0.3,
		}
		if !forceText {
			req.Tools = catalog
		}

		chunks, err := s.deps.Gateway.Provider().StreamCompletion(ctx, req)
		if err != nil {
			reply = fallbackReply(allTraces)
			malformed = true
			break
		}

		var toolCalls []llmgateway.ToolCall
		var built string
		interrupted := false
		for chunk := range chunks {
			if len(chunk.ToolCalls) > 0 {
				toolCalls = chunk.ToolCalls
				interrupted = true
				continue
			}
			if chunk.Text != "" {
				built += chunk.Text
				out <- StreamEvent{Type: StreamToken, Text: chunk.Text}
			}
		}

		if !interrupted || forceText {
			reply = built
			if reply == "" && len(allTraces) > 0 {
				reply = fallbackReply(allTraces)
				malformed = true
			}
			break
		}

		traces, err := s.dispatchToolCalls(ctx, toolCalls, iteration)
		if err != nil {
			reply = fallbackReply(allTraces)
			malformed = true
			break
		}
		for i := range traces {
			out <- StreamEvent{Type: StreamToolCall, ToolCall: &traces[i]}
		}
		allTraces = append(allTraces, traces...)
		messages = appendToolMessages(messages, toolCalls, traces)
	}

	result := &ChatResult{
		Reply:     reply,
		Sources:   sourcesFromTraces(allTraces),
		Route:     string(router.ClassifyIntent(message)),
		ToolCalls: allTraces,
		Trace:     renderTrace(allTraces, malformed),
	}
	out <- StreamEvent{Type: StreamDone, Result: result}

	go s.postProcess(context.WithoutCancel(ctx), message, reply, sessionID, allTraces)
}
