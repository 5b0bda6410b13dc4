// Package mock provides a test double for the llmgateway.Provider interface.
//
// Use Provider in unit tests to verify that callers send correct
// CompletionRequests and to feed controlled responses without a live LLM
// backend. All fields are safe to set before calling any method; mutating
// them during a concurrent call is the caller's responsibility.
package mock

import (
	"context"
	"sync"

	"github.com/khazna/khazna/pkg/llmgateway"
)

// StreamCall records a single invocation of StreamCompletion.
type StreamCall struct {
	Ctx context.Context
	Req llmgateway.CompletionRequest
}

// CompleteCall records a single invocation of Complete.
type CompleteCall struct {
	Ctx context.Context
	Req llmgateway.CompletionRequest
}

// CountTokensCall records a single invocation of CountTokens.
type CountTokensCall struct {
	Messages []llmgateway.Message
}

// Provider is a mock implementation of llmgateway.Provider. Zero values for
// response fields cause methods to return zero values and nil errors. Set
// the Err fields to inject errors.
//
// CompleteResponses, when non-empty, is consumed one entry per call to
// Complete (in order); once exhausted, CompleteResponse is returned for all
// further calls. This lets a test script a short sequence of distinct
// replies — e.g. the orchestrator's first-iteration tool-call response
// followed by its second-iteration final text — without needing a richer
// stateful fake.
type Provider struct {
	mu sync.Mutex

	StreamChunks []llmgateway.Chunk
	StreamErr    error

	CompleteResponse  *llmgateway.CompletionResponse
	CompleteResponses []*llmgateway.CompletionResponse
	CompleteErr       error

	TokenCount     int
	CountTokensErr error

	ModelCapabilities llmgateway.ModelCapabilities

	StreamCalls      []StreamCall
	CompleteCalls    []CompleteCall
	CountTokensCalls []CountTokensCall

	CapabilitiesCallCount int
}

func (p *Provider) StreamCompletion(ctx context.Context, req llmgateway.CompletionRequest) (<-chan llmgateway.Chunk, error) {
	p.mu.Lock()
	if p.StreamErr != nil {
		err := p.StreamErr
		p.StreamCalls = append(p.StreamCalls, StreamCall{Ctx: ctx, Req: req})
		p.mu.Unlock()
		return nil, err
	}
	chunks := make([]llmgateway.Chunk, len(p.StreamChunks))
	copy(chunks, p.StreamChunks)
	p.StreamCalls = append(p.StreamCalls, StreamCall{Ctx: ctx, Req: req})
	p.mu.Unlock()

	ch := make(chan llmgateway.Chunk, len(chunks))
	go func() {
		defer close(ch)
		for _, c := range chunks {
			select {
			case <-ctx.Done():
				return
			case ch <- c:
			}
		}
	}()
	return ch, nil
}

func (p *Provider) Complete(ctx context.Context, req llmgateway.CompletionRequest) (*llmgateway.CompletionResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CompleteCalls = append(p.CompleteCalls, CompleteCall{Ctx: ctx, Req: req})
	if len(p.CompleteResponses) > 0 {
		idx := len(p.CompleteCalls) - 1
		if idx < len(p.CompleteResponses) {
			return p.CompleteResponses[idx], p.CompleteErr
		}
	}
	return p.CompleteResponse, p.CompleteErr
}

func (p *Provider) CountTokens(messages []llmgateway.Message) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	msgs := make([]llmgateway.Message, len(messages))
	copy(msgs, messages)
	p.CountTokensCalls = append(p.CountTokensCalls, CountTokensCall{Messages: msgs})
	return p.TokenCount, p.CountTokensErr
}

func (p *Provider) Capabilities() llmgateway.ModelCapabilities {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CapabilitiesCallCount++
	return p.ModelCapabilities
}

// Reset clears all recorded calls.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.StreamCalls = nil
	p.CompleteCalls = nil
	p.CountTokensCalls = nil
	p.CapabilitiesCallCount = 0
}

var _ llmgateway.Provider = (*Provider)(nil)
