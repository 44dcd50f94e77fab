// Package tts provides streaming text-to-speech synthesis for voicegate.
package tts

import (
	"context"
	"errors"
)

// ErrProviderUnavailable means no synthesis provider has credentials
// configured. It is reported through Outcome, never raised.
var ErrProviderUnavailable = errors.New("TTS provider unavailable")

// Directive overrides client defaults for a single Speak call. Zero values
// mean "use the configured default".
type Directive struct {
	VoiceID    string
	ModelID    string
	Stability  float64
	Similarity float64
	Speed      float64
}

// Outcome is the result of a Speak call. Speak never fails with an error;
// every failure mode lands here so callers have exactly one path to handle.
type Outcome struct {
	Completed   bool
	Interrupted bool
	Err         string
}

// Provider is a single synthesis backend that streams audio fragments to
// emit as they arrive from the network.
type Provider interface {
	// Name returns the provider identifier (e.g. "elevenlabs").
	Name() string

	// Available reports whether the provider can synthesize (credentials
	// present).
	Available() bool

	// Stream synthesizes text and calls emit for each audio fragment. It
	// returns context.Canceled when aborted mid-stream and must not call
	// emit after the context is done.
	Stream(ctx context.Context, text string, d Directive, emit func(chunk []byte)) error
}

// Config holds TTS client defaults, updatable at runtime.
type Config struct {
	Provider   string // elevenlabs, cartesia, or "" for first available
	APIKey     string
	VoiceID    string
	ModelID    string
	Stability  float64
	Similarity float64
	Speed      float64
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Provider:   "elevenlabs",
		VoiceID:    ElevenLabsDefaultVoice,
		ModelID:    "eleven_monolingual_v1",
		Stability:  0.5,
		Similarity: 0.75,
		Speed:      1.0,
	}
}
