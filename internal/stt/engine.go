package stt

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Engine wraps an ordered list of provider factories behind a single
// transcription interface. Initialization tries each factory in turn and the
// first success wins; the rest of the system never sees which backend is
// active.
type Engine struct {
	mu          sync.Mutex
	logger      zerolog.Logger
	opts        Options
	factories   []ProviderFactory
	provider    Provider
	initialized bool
	inFlight    atomic.Bool
}

// EngineConfig selects and parameterizes the provider chain.
type EngineConfig struct {
	Engine     string // "whisper-cli", "whisper-http", or "auto"
	ModelSize  string
	ModelPath  string // Explicit model file; overrides the search paths
	Language   string
	ServerURL  string
	SampleRate int
}

// NewEngine creates an Engine. Construction never fails; provider discovery
// happens in Initialize.
func NewEngine(cfg EngineConfig, logger zerolog.Logger) *Engine {
	opts := Options{
		SampleRate: cfg.SampleRate,
		Language:   cfg.Language,
		ModelSize:  cfg.ModelSize,
		ModelPath:  cfg.ModelPath,
		ServerURL:  cfg.ServerURL,
	}
	if opts.SampleRate <= 0 {
		opts.SampleRate = 16000
	}
	if opts.Language == "" {
		opts.Language = "en"
	}
	if opts.ModelSize == "" {
		opts.ModelSize = "base"
	}

	var factories []ProviderFactory
	switch cfg.Engine {
	case "whisper-cli":
		factories = []ProviderFactory{NewWhisperCLI}
	case "whisper-http":
		factories = []ProviderFactory{NewWhisperHTTP}
	default: // auto
		factories = []ProviderFactory{NewWhisperCLI, NewWhisperHTTP}
	}

	return &Engine{
		logger:    logger.With().Str("component", "stt-engine").Logger(),
		opts:      opts,
		factories: factories,
	}
}

// Initialize discovers a usable provider. Idempotent: once a provider is
// active, subsequent calls return nil without side effects.
func (e *Engine) Initialize() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.initialized {
		return nil
	}

	opts := e.opts
	if opts.ModelPath == "" {
		opts.ModelPath = findModel(opts.ModelSize)
	}

	var modelMissing bool
	for _, factory := range e.factories {
		provider, err := factory(opts, e.logger)
		if err != nil {
			if errors.Is(err, ErrModelNotFound) {
				modelMissing = true
			}
			e.logger.Debug().Err(err).Msg("Provider unavailable, trying next")
			continue
		}

		e.provider = provider
		e.initialized = true
		e.logger.Info().Str("provider", provider.Name()).Msg("Speech engine initialized")
		return nil
	}

	if modelMissing {
		return ErrModelNotFound
	}
	return ErrEngineUnavailable
}

// Transcribe converts one audio chunk to text. At most one call may be in
// flight per Engine; a concurrent call fails fast with ErrBusy rather than
// queueing inside the engine.
func (e *Engine) Transcribe(ctx context.Context, samples []float32) (*TranscriptionResult, error) {
	e.mu.Lock()
	provider := e.provider
	initialized := e.initialized
	e.mu.Unlock()

	if !initialized || provider == nil {
		return nil, ErrEngineUnavailable
	}

	if !e.inFlight.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer e.inFlight.Store(false)

	result, err := provider.Transcribe(ctx, samples)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTranscriptionFailed, err)
	}
	return result, nil
}

// Provider returns the name of the active provider, or "" before
// initialization.
func (e *Engine) Provider() string {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.provider == nil {
		return ""
	}
	return e.provider.Name()
}

// Dispose releases provider resources. Safe to call multiple times; a
// disposed engine can be re-initialized.
func (e *Engine) Dispose() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.provider != nil {
		if err := e.provider.Close(); err != nil {
			e.logger.Warn().Err(err).Msg("Provider close failed")
		}
		e.provider = nil
	}
	e.initialized = false
}

// findModel searches the default model locations for a ggml model file of
// the given size. Returns "" when nothing is found; providers that need a
// model report ErrModelNotFound.
func findModel(size string) string {
	name := fmt.Sprintf("ggml-%s.bin", size)

	var candidates []string
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates,
			filepath.Join(home, ".voicegate", "models", name),
			filepath.Join(home, ".whisper", name),
		)
	}
	candidates = append(candidates, filepath.Join("models", name))

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
