package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
)

const (
	ElevenLabsEndpoint     = "https://api.elevenlabs.io/v1"
	ElevenLabsDefaultVoice = "21m00Tcm4TlvDq8ikWAM" // Rachel - calm, natural female
)

// ElevenLabs streams synthesis over HTTPS: one POST per utterance, audio
// fragments emitted as the response body arrives.
type ElevenLabs struct {
	apiKey  string
	baseURL string
	client  *http.Client
	logger  zerolog.Logger
}

// NewElevenLabs creates the provider. An empty key falls back to the
// ELEVENLABS_API_KEY environment variable.
func NewElevenLabs(apiKey string, logger zerolog.Logger) *ElevenLabs {
	if apiKey == "" {
		apiKey = os.Getenv("ELEVENLABS_API_KEY")
	}

	return &ElevenLabs{
		apiKey:  apiKey,
		baseURL: ElevenLabsEndpoint,
		client:  &http.Client{Timeout: 60 * time.Second},
		logger:  logger.With().Str("provider", "elevenlabs").Logger(),
	}
}

// Name returns the provider identifier.
func (p *ElevenLabs) Name() string {
	return "elevenlabs"
}

// Available reports whether an API key is configured.
func (p *ElevenLabs) Available() bool {
	return p.apiKey != ""
}

// Stream synthesizes text via the streaming endpoint, emitting fragments as
// they arrive so playback can begin before synthesis finishes.
func (p *ElevenLabs) Stream(ctx context.Context, text string, d Directive, emit func([]byte)) error {
	voiceID := d.VoiceID
	if voiceID == "" {
		voiceID = ElevenLabsDefaultVoice
	}

	settings := map[string]float64{
		"stability":        d.Stability,
		"similarity_boost": d.Similarity,
	}
	if d.Speed != 0 && d.Speed != 1.0 {
		settings["speed"] = d.Speed
	}

	payload := map[string]any{
		"text":           text,
		"model_id":       d.ModelID,
		"voice_settings": settings,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/text-to-speech/%s/stream", p.baseURL, voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", p.apiKey)
	req.Header.Set("Accept", "audio/mpeg")

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return context.Canceled
		}
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("synthesis API error %d: %s", resp.StatusCode, string(body))
	}

	var total int
	buf := make([]byte, 4096)
	for {
		if ctx.Err() != nil {
			return context.Canceled
		}

		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			emit(chunk)
			total += n
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			if ctx.Err() != nil {
				return context.Canceled
			}
			return fmt.Errorf("stream read: %w", readErr)
		}
	}

	p.logger.Info().
		Str("voice", voiceID).
		Int("audioBytes", total).
		Dur("elapsed", time.Since(start)).
		Msg("Synthesis stream complete")
	return nil
}
