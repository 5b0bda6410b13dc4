// Package whisper provides an [asr.Provider] backed by the whisper.cpp Go
// bindings (CGO). The whisper.cpp static library and headers must be
// available at link time via LIBRARY_PATH and C_INCLUDE_PATH.
package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
	"github.com/khazna/khazna/pkg/asr"
)

// Provider implements asr.Provider using a whisper.cpp model loaded once at
// startup and shared across calls. whisper.cpp contexts are not
// goroutine-safe, so callers (the file processor's single-flight lock) must
// serialise concurrent Transcribe calls.
type Provider struct {
	model           whisperlib.Model
	defaultLanguage string
}

// Option configures a Provider.
type Option func(*Provider)

// WithDefaultLanguage sets the language code used when a [asr.Request]
// leaves Language empty. Defaults to "ar" since ingestion audio is
// overwhelmingly Arabic voice notes.
func WithDefaultLanguage(lang string) Option {
	return func(p *Provider) { p.defaultLanguage = lang }
}

// New loads the whisper.cpp model from modelPath and returns a ready
// Provider. The caller must call Close when finished.
func New(modelPath string, opts ...Option) (*Provider, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}
	p := &Provider{model: model, defaultLanguage: "ar"}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Close releases the whisper model.
func (p *Provider) Close() error {
	if p.model != nil {
		return p.model.Close()
	}
	return nil
}

// Transcribe implements asr.Provider. It converts req.PCM to mono float32
// samples, runs a single whisper.cpp inference pass, and concatenates all
// recognised segments.
func (p *Provider) Transcribe(ctx context.Context, req asr.Request) (asr.Result, error) {
	if err := ctx.Err(); err != nil {
		return asr.Result{}, fmt.Errorf("whisper: %w", err)
	}

	lang := req.Language
	if lang == "" {
		lang = p.defaultLanguage
	}

	samples := pcmToFloat32Mono(req.PCM, 1)

	wctx, err := p.model.NewContext()
	if err != nil {
		return asr.Result{}, fmt.Errorf("whisper: create context: %w", err)
	}
	if err := wctx.SetLanguage(lang); err != nil {
		return asr.Result{}, fmt.Errorf("whisper: set language %q: %w", lang, err)
	}
	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return asr.Result{}, fmt.Errorf("whisper: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return asr.Result{}, fmt.Errorf("whisper: read segment: %w", err)
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}

	return asr.Result{Text: strings.Join(parts, " "), Language: lang}, nil
}

var _ asr.Provider = (*Provider)(nil)
