package chatengine

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/khazna/khazna/pkg/llmgateway"
)

// dispatchResult pairs an executed tool call with its outcome, retaining
// the call's original catalog-call index so results can be re-ordered back
// to a stable, deterministic sequence after concurrent execution (spec §5:
// "tool calls of a single LLM iteration execute concurrently but their
// results are appended to the LLM context in stable catalog order").
type dispatchResult struct {
	index int
	call  llmgateway.ToolCall
	trace ToolCallTrace
}

// dispatchToolCalls executes every call in calls concurrently via the tool
// host and returns traces in the same order calls were given.
func (s *Service) dispatchToolCalls(ctx context.Context, calls []llmgateway.ToolCall, iteration int) ([]ToolCallTrace, error) {
	results := make([]dispatchResult, len(calls))

	g, gctx := errgroup.WithContext(ctx)
	for i, call := range calls {
		i, call := i, call
		g.Go(func() error {
			result, err := s.deps.Tools.ExecuteTool(gctx, call.Name, call.Arguments)
			trace := ToolCallTrace{
				Name:      call.Name,
				Arguments: call.Arguments,
				Iteration: iteration,
			}
			if err != nil {
				trace.IsError = true
				trace.Result = err.Error()
			} else {
				trace.Result = result.Content
				trace.IsError = result.IsError
				trace.DurationMs = result.DurationMs
			}
			results[i] = dispatchResult{index: i, call: call, trace: trace}
			return nil
		})
	}
	// Errors from individual tools never propagate here — they are
	// already captured as {ok:false, error} in the trace per spec §4.1's
	// failure semantics. Only a cancelled ctx aborts the group early.
	if err := g.Wait(); err != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}

	traces := make([]ToolCallTrace, len(results))
	for _, r := range results {
		traces[r.index] = r.trace
	}
	return traces, nil
}

// appendToolMessages converts traces into the assistant tool_calls message
// plus one "tool" message per result, appended to messages in the same
// stable order the tool calls were issued in.
func appendToolMessages(messages []llmgateway.Message, calls []llmgateway.ToolCall, traces []ToolCallTrace) []llmgateway.Message {
	messages = append(messages, llmgateway.Message{Role: "assistant", ToolCalls: calls})
	for i, call := range calls {
		messages = append(messages, llmgateway.Message{
			Role:       "tool",
			Content:    traces[i].Result,
			ToolCallID: call.ID,
			Name:       call.Name,
		})
	}
	return messages
}
