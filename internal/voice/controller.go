package voice

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/averyhollis/voicegate/internal/audio"
	"github.com/averyhollis/voicegate/internal/bus"
	"github.com/averyhollis/voicegate/internal/config"
	"github.com/averyhollis/voicegate/internal/stt"
	"github.com/averyhollis/voicegate/internal/tts"
	"github.com/averyhollis/voicegate/internal/wakeword"
)

// State is the controller's coarse conversation state.
type State string

const (
	StateIdle       State = "idle"
	StateListening  State = "listening"
	StateProcessing State = "processing"
	StateSpeaking   State = "speaking"
	StateError      State = "error"
)

// Controller owns the listen/speak loop. It feeds microphone audio to the
// segmenter, filters and routes transcripts (through the wake-word gate in
// wake-word mode, straight to the bus in conversation mode), and drives
// synthesis with barge-in: new speech while speaking interrupts playback.
//
// All outward notification happens on the event bus; the controller never
// calls back into the host directly.
type Controller struct {
	events *bus.EventBus
	logger zerolog.Logger

	engine    *stt.Engine
	segmenter *audio.Segmenter
	gate      *wakeword.Gate
	filter    *stt.Filter
	speech    *tts.Client
	history   *History

	mu      sync.Mutex
	cfg     *config.Config
	state   State
	running bool
}

// NewController wires the full pipeline from configuration. Nothing runs
// until Start.
func NewController(cfg *config.Config, events *bus.EventBus, logger zerolog.Logger) *Controller {
	engine := stt.NewEngine(stt.EngineConfig{
		Engine:     cfg.STT.Engine,
		ModelSize:  cfg.STT.ModelSize,
		ModelPath:  cfg.STT.ModelPath,
		Language:   cfg.STT.Language,
		ServerURL:  cfg.STT.ServerURL,
		SampleRate: cfg.VAD.SampleRate,
	}, logger)

	segmenter := audio.NewSegmenter(audio.Config{
		SampleRate:       cfg.VAD.SampleRate,
		MinChunkDuration: cfg.VAD.MinChunkDuration,
		MaxChunkDuration: cfg.VAD.MaxChunkDuration,
		SilenceThreshold: cfg.VAD.SilenceThreshold,
		SilenceDuration:  cfg.VAD.SilenceDuration,
	}, engine, newClassifier(cfg.VAD, logger), logger)

	gate := wakeword.NewGate(wakeword.Config{
		Triggers:          cfg.Wake.Triggers,
		MinPostTriggerGap: cfg.Wake.MinPostTriggerGap,
		MinCommandWords:   cfg.Wake.MinCommandWords,
	}, loadConfusions(cfg.Wake.ConfusionFile, logger))

	speech := tts.NewClient(tts.Config{
		Provider:   cfg.TTS.Provider,
		APIKey:     cfg.TTS.APIKey,
		VoiceID:    cfg.TTS.VoiceID,
		ModelID:    cfg.TTS.ModelID,
		Stability:  cfg.TTS.Stability,
		Similarity: cfg.TTS.Similarity,
		Speed:      cfg.TTS.Speed,
	}, events, logger)

	c := &Controller{
		events:    events,
		logger:    logger,
		engine:    engine,
		segmenter: segmenter,
		gate:      gate,
		filter:    stt.NewFilter(nil),
		speech:    speech,
		history: NewHistory(HistoryConfig{
			MaxExchanges: cfg.Voice.HistorySize,
			Expiry:       cfg.Voice.HistoryExpiry,
		}),
		cfg:   cfg,
		state: StateIdle,
	}

	segmenter.OnTranscript(c.handleTranscript)
	segmenter.OnError(c.handleError)
	return c
}

func newClassifier(cfg config.VADConfig, logger zerolog.Logger) audio.Classifier {
	if cfg.Classifier == "webrtc" {
		cls, err := audio.NewWebRTCClassifier(cfg.SampleRate, 2)
		if err == nil {
			return cls
		}
		logger.Warn().Err(err).Msg("webrtc vad unavailable, using peak classifier")
	}
	return &audio.PeakClassifier{Threshold: cfg.SilenceThreshold}
}

func loadConfusions(path string, logger zerolog.Logger) wakeword.ConfusionTable {
	if path == "" {
		return wakeword.DefaultConfusionTable()
	}
	table, err := wakeword.LoadConfusionTable(path)
	if err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("confusion table unreadable, using defaults")
		return wakeword.DefaultConfusionTable()
	}
	return table
}

// Start brings the pipeline up and begins listening. Safe to call again
// after a failed start: a missing model or unreachable engine leaves the
// controller in StateError and Start retries initialization.
func (c *Controller) Start() error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	if err := c.segmenter.Start(); err != nil {
		c.setState(StateError, err.Error())
		return err
	}

	c.mu.Lock()
	c.running = true
	c.mu.Unlock()
	c.setState(StateListening, "listening")
	return nil
}

// Stop tears the pipeline down. Playback is cancelled, the segmenter
// performs its final flush, and the controller returns to StateIdle.
func (c *Controller) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	c.mu.Unlock()

	c.speech.Stop()
	c.segmenter.Stop()
	c.setState(StateIdle, "stopped")
}

// Running reports whether the pipeline is active.
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// State returns the current conversation state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// FeedAudio forwards captured samples into the segmenter. A no-op while
// stopped.
func (c *Controller) FeedAudio(samples []float32) {
	c.segmenter.FeedAudio(samples)
}

// IsSpeaking reports whether synthesis playback is active.
func (c *Controller) IsSpeaking() bool {
	return c.speech.IsSpeaking()
}

// Interrupt cancels any in-progress synthesis without stopping the
// pipeline.
func (c *Controller) Interrupt() {
	c.speech.Stop()
}

// History exposes the conversation history for prompt assembly.
func (c *Controller) History() *History {
	return c.history
}

// Speak synthesizes text, moving through StateSpeaking and back to
// StateListening (or StateIdle when stopped). The returned outcome reports
// completion, interruption by barge-in or Stop, or a provider error; it is
// never an error value because a failed synthesis does not fail the
// conversation.
func (c *Controller) Speak(ctx context.Context, text string) tts.Outcome {
	if text == "" {
		return tts.Outcome{Completed: true}
	}

	c.setState(StateSpeaking, "speaking")
	outcome := c.speech.Speak(ctx, text, nil)
	c.restoreListening()
	return outcome
}

// Respond speaks replyText and, when it completes, records the exchange in
// history so follow-up detection has the turn available.
func (c *Controller) Respond(ctx context.Context, userText, replyText string) tts.Outcome {
	outcome := c.Speak(ctx, replyText)
	if outcome.Completed {
		c.history.Add(userText, replyText)
	}
	return outcome
}

// UpdateConfig applies new configuration to the running pipeline. Gate and
// synthesis settings take effect immediately; segmenter and engine settings
// apply on the next Start.
func (c *Controller) UpdateConfig(cfg *config.Config) {
	c.mu.Lock()
	c.cfg = cfg
	c.mu.Unlock()

	c.gate.SetConfig(wakeword.Config{
		Triggers:          cfg.Wake.Triggers,
		MinPostTriggerGap: cfg.Wake.MinPostTriggerGap,
		MinCommandWords:   cfg.Wake.MinCommandWords,
	})
	c.speech.UpdateConfig(tts.Config{
		Provider:   cfg.TTS.Provider,
		APIKey:     cfg.TTS.APIKey,
		VoiceID:    cfg.TTS.VoiceID,
		ModelID:    cfg.TTS.ModelID,
		Stability:  cfg.TTS.Stability,
		Similarity: cfg.TTS.Similarity,
		Speed:      cfg.TTS.Speed,
	})
	c.logger.Info().Msg("configuration applied")
}

// handleTranscript runs on the segmenter's flush goroutine, so successive
// bus emissions here are ordered.
func (c *Controller) handleTranscript(result *stt.TranscriptionResult) {
	cleaned, hasSpeech := c.filter.Clean(result.Text)
	if !hasSpeech {
		c.logger.Debug().Str("text", result.Text).Msg("transcript filtered")
		return
	}

	// Barge-in: the user talked over playback.
	if c.speech.IsSpeaking() {
		c.logger.Info().Msg("speech during playback, interrupting")
		c.speech.Stop()
	}

	c.mu.Lock()
	wakeMode := c.cfg.Voice.WakeWordMode
	speakOnWake := c.cfg.Voice.SpeakOnWake
	c.mu.Unlock()

	if !wakeMode {
		c.events.PublishSync(bus.Event{
			Type: bus.EventTypeTranscript,
			Data: map[string]any{
				"text":       cleaned,
				"durationMs": result.DurationMs,
				"language":   result.Language,
				"followUp":   c.history.IsFollowUp(cleaned),
			},
		})
		return
	}

	c.setState(StateProcessing, "processing")
	match := c.gate.Match(result)
	if match == nil {
		c.logger.Debug().Str("text", cleaned).Msg("no wake word")
		c.restoreListening()
		return
	}

	c.logger.Info().
		Str("wakeWord", match.WakeWord).
		Str("command", match.Command).
		Float64("postGap", match.PostGapSeconds).
		Msg("wake word detected")

	c.events.PublishSync(bus.Event{
		Type: bus.EventTypeWakeWord,
		Data: map[string]any{
			"wakeWord":       match.WakeWord,
			"command":        match.Command,
			"transcript":     match.Transcript,
			"postGapSeconds": match.PostGapSeconds,
		},
	})

	if speakOnWake && match.Command == "" {
		// Bare trigger with no command: acknowledge so the user knows we
		// heard them.
		c.Speak(context.Background(), "Yes?")
		return
	}
	c.restoreListening()
}

func (c *Controller) handleError(err error) {
	c.logger.Error().Err(err).Msg("transcription error")
	c.events.Publish(bus.Event{
		Type: bus.EventTypeError,
		Data: map[string]any{"error": err.Error()},
	})
}

// restoreListening returns to StateListening while running, StateIdle
// otherwise.
func (c *Controller) restoreListening() {
	c.mu.Lock()
	running := c.running
	c.mu.Unlock()
	if running {
		c.setState(StateListening, "listening")
	} else {
		c.setState(StateIdle, "stopped")
	}
}

func (c *Controller) setState(next State, status string) {
	c.mu.Lock()
	prev := c.state
	if prev == next {
		c.mu.Unlock()
		return
	}
	c.state = next
	verbose := c.cfg.Voice.StatusVerbose
	c.mu.Unlock()

	evt := c.logger.Debug()
	if verbose {
		evt = c.logger.Info()
	}
	evt.Str("from", string(prev)).Str("to", string(next)).Msg("state change")

	c.events.PublishSync(bus.Event{
		Type: bus.EventTypeStateChange,
		Data: map[string]any{
			"state":         string(next),
			"previousState": string(prev),
			"statusText":    status,
		},
	})
}
