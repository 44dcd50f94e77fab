// Package stt provides speech-to-text transcription for voicegate.
package stt

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// Common errors. None of these are fatal to the host process; callers are
// expected to degrade (e.g. fall back to an alternate recognition path) when
// the engine is unavailable.
var (
	ErrEngineUnavailable   = errors.New("no speech engine available")
	ErrModelNotFound       = errors.New("speech model file not found")
	ErrTranscriptionFailed = errors.New("transcription failed")
	ErrBusy                = errors.New("transcription already in flight")
)

// Token is a sub-word unit with millisecond timestamps. Immutable once
// produced by a provider.
type Token struct {
	Text        string  `json:"text"`
	StartMs     int64   `json:"start_ms"`
	EndMs       int64   `json:"end_ms"`
	Probability float64 `json:"probability,omitempty"`
}

// Segment is a time-aligned span of transcribed text. Tokens may be empty
// when the provider does not report token-level timing.
type Segment struct {
	Text    string  `json:"text"`
	StartMs int64   `json:"start_ms"`
	EndMs   int64   `json:"end_ms"`
	Tokens  []Token `json:"tokens,omitempty"`
}

// TranscriptionResult is produced once per flushed audio chunk and never
// mutated afterwards.
type TranscriptionResult struct {
	Text       string    `json:"text"`
	Segments   []Segment `json:"segments,omitempty"`
	Language   string    `json:"language"`
	DurationMs int64     `json:"duration_ms"`
}

// Options configures provider construction.
type Options struct {
	SampleRate int
	Language   string
	ModelSize  string
	ModelPath  string // Resolved model file; empty for providers that do not need one
	ServerURL  string // whisper-http only
}

// Provider is a single speech-recognition backend. Providers are discovered
// at initialization: a factory that cannot run in the current environment
// returns an error and the engine moves on to the next one.
type Provider interface {
	// Name returns the provider identifier (e.g. "whisper-cli").
	Name() string

	// Transcribe converts mono float32 samples in [-1,1] to text.
	// Not reentrant; the engine guarantees at most one in-flight call.
	Transcribe(ctx context.Context, samples []float32) (*TranscriptionResult, error)

	// Close releases provider resources. Safe to call multiple times.
	Close() error
}

// ProviderFactory constructs a Provider, or fails when the backend is not
// usable (binary missing, server unreachable, model absent).
type ProviderFactory func(opts Options, logger zerolog.Logger) (Provider, error)
