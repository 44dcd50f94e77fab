package tts

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/averyhollis/voicegate/internal/bus"
)

// Client wraps the provider chain behind the speak/stop contract. Speak
// never returns an error: failures resolve as an Outcome, and Stop aborts
// the in-flight synthesis for barge-in.
type Client struct {
	mu        sync.Mutex
	cfg       Config
	providers []Provider
	events    *bus.EventBus
	logger    zerolog.Logger

	// emitMu serializes chunk emission against Stop: Stop acquires it
	// after cancelling, so no audio-chunk event lands after Stop returns.
	emitMu sync.Mutex

	cancel   context.CancelFunc
	speakGen uint64
	speaking bool
}

// NewClient creates a Client publishing synthesis events on events. The
// provider chain is built from the config: a named provider pins the chain
// to it, otherwise all known providers are tried in order at Speak time.
func NewClient(cfg Config, events *bus.EventBus, logger zerolog.Logger) *Client {
	c := &Client{
		cfg:    cfg,
		events: events,
		logger: logger.With().Str("component", "tts").Logger(),
	}
	c.rebuildProviders()
	return c
}

func (c *Client) rebuildProviders() {
	elevenlabs := NewElevenLabs(c.cfg.APIKey, c.logger)
	cartesia := NewCartesia(c.cfg.APIKey, c.logger)

	switch c.cfg.Provider {
	case "elevenlabs":
		c.providers = []Provider{elevenlabs}
	case "cartesia":
		c.providers = []Provider{cartesia}
	default:
		c.providers = []Provider{elevenlabs, cartesia}
	}
}

// UpdateConfig replaces the client defaults without interrupting an
// in-flight synthesis; the new settings apply from the next Speak.
func (c *Client) UpdateConfig(cfg Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg = cfg
	c.rebuildProviders()
}

// IsSpeaking reports whether a synthesis is in flight.
func (c *Client) IsSpeaking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speaking
}

// Stop aborts any in-flight synthesis immediately. No audio-chunk events
// are emitted after Stop returns, and the in-flight Speak resolves with
// Completed false, Interrupted true. Safe to call when idle; a subsequent
// Speak is always safe.
func (c *Client) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()

	// An emit that passed its cancellation check before the cancel landed
	// may still be publishing; taking the lock orders Stop after it.
	c.emitMu.Lock()
	c.emitMu.Unlock()
}

// Speak synthesizes text and streams audio-chunk events as fragments
// arrive. Empty text completes immediately without events. A Speak while
// one is already in flight interrupts the earlier one first.
func (c *Client) Speak(ctx context.Context, text string, d *Directive) Outcome {
	if strings.TrimSpace(text) == "" {
		return Outcome{Completed: true}
	}

	// Barge-in over ourselves: one voice at a time.
	c.Stop()

	provider := c.pickProvider()
	if provider == nil {
		c.logger.Warn().Msg("No TTS provider available")
		return Outcome{Err: ErrProviderUnavailable.Error()}
	}

	directive := c.mergeDirective(d)

	speakCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.speaking = true
	c.speakGen++
	gen := c.speakGen
	c.mu.Unlock()

	defer func() {
		cancel()
		c.mu.Lock()
		// An overlapping Speak has already replaced our registration;
		// leave its cancel state alone.
		if c.speakGen == gen {
			c.speaking = false
			c.cancel = nil
		}
		c.mu.Unlock()
	}()

	c.publish(bus.EventTypeSpeakingStart, map[string]any{"text": text})

	emit := func(chunk []byte) {
		c.emitMu.Lock()
		defer c.emitMu.Unlock()
		if speakCtx.Err() != nil {
			return
		}
		c.publish(bus.EventTypeAudioChunk, map[string]any{"audio": chunk})
	}

	err := provider.Stream(speakCtx, text, directive, emit)
	if err != nil {
		if errors.Is(err, context.Canceled) || speakCtx.Err() != nil {
			c.logger.Debug().Msg("Synthesis interrupted")
			c.publish(bus.EventTypeSpeakComplete, map[string]any{"completed": false, "interrupted": true})
			return Outcome{Interrupted: true}
		}
		c.logger.Error().Err(err).Str("provider", provider.Name()).Msg("Synthesis failed")
		c.publish(bus.EventTypeSpeakComplete, map[string]any{"completed": false, "error": err.Error()})
		return Outcome{Err: err.Error()}
	}

	c.publish(bus.EventTypeAudioComplete, nil)
	c.publish(bus.EventTypeSpeakComplete, map[string]any{"completed": true})
	return Outcome{Completed: true}
}

func (c *Client) pickProvider() Provider {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, p := range c.providers {
		if p.Available() {
			return p
		}
	}
	return nil
}

// mergeDirective overlays per-call overrides on the configured defaults.
func (c *Client) mergeDirective(d *Directive) Directive {
	c.mu.Lock()
	cfg := c.cfg
	c.mu.Unlock()

	merged := Directive{
		VoiceID:    cfg.VoiceID,
		ModelID:    cfg.ModelID,
		Stability:  cfg.Stability,
		Similarity: cfg.Similarity,
		Speed:      cfg.Speed,
	}
	if d == nil {
		return merged
	}
	if d.VoiceID != "" {
		merged.VoiceID = d.VoiceID
	}
	if d.ModelID != "" {
		merged.ModelID = d.ModelID
	}
	if d.Stability != 0 {
		merged.Stability = d.Stability
	}
	if d.Similarity != 0 {
		merged.Similarity = d.Similarity
	}
	if d.Speed != 0 {
		merged.Speed = d.Speed
	}
	return merged
}

func (c *Client) publish(t bus.EventType, data map[string]any) {
	if c.events != nil {
		c.events.PublishSync(bus.Event{Type: t, Data: data})
	}
}
