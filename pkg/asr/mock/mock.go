// Package mock provides a test double for asr.Provider.
package mock

import (
	"context"
	"sync"

	"github.com/khazna/khazna/pkg/asr"
)

// Provider is a mock implementation of asr.Provider.
type Provider struct {
	mu sync.Mutex

	// Result is returned by every Transcribe call when TranscribeErr is nil.
	Result asr.Result

	// TranscribeErr, if non-nil, is returned as the error from Transcribe.
	TranscribeErr error

	// Calls records every request passed to Transcribe.
	Calls []asr.Request
}

// Transcribe records the call and returns Result, TranscribeErr.
func (p *Provider) Transcribe(ctx context.Context, req asr.Request) (asr.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = append(p.Calls, req)
	if p.TranscribeErr != nil {
		return asr.Result{}, p.TranscribeErr
	}
	return p.Result, nil
}

var _ asr.Provider = (*Provider)(nil)
