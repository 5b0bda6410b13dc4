// Package asr defines the Provider interface for speech-to-text backends
// used by the file processor's audio ingestion branch (§4.3). Unlike a
// live-voice pipeline, ingestion ASR is always one-shot: a complete audio
// file in, a transcript out.
//
// Implementations must be safe for concurrent use, though the only shipped
// implementation (whisper) is explicitly single-flighted by its caller
// because the underlying model is GPU/CPU-bound and not safely reentrant.
package asr

import "context"

// Request describes a single transcription job.
type Request struct {
	// PCM is mono 16-bit signed little-endian PCM audio at SampleRate Hz.
	PCM []byte

	// SampleRate is the sample rate of PCM in Hz.
	SampleRate int

	// Language is a BCP-47 or whisper.cpp language code (e.g. "ar", "en").
	// Empty lets the provider auto-detect.
	Language string
}

// Result is the outcome of a transcription job.
type Result struct {
	// Text is the concatenated transcript across all recognised segments.
	Text string

	// Language is the language the provider detected or was told to use.
	Language string
}

// Provider is the abstraction over any one-shot ASR backend.
type Provider interface {
	// Transcribe runs inference over req and returns the recognised text.
	// Implementations must respect ctx cancellation.
	Transcribe(ctx context.Context, req Request) (Result, error)
}
