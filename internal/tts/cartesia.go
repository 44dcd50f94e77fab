package tts

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	CartesiaWSEndpoint = "wss://api.cartesia.ai/tts/websocket"
	CartesiaAPIVersion = "2025-04-16"
	CartesiaModel      = "sonic-3"
	CartesiaSampleRate = 22050
)

// Cartesia streams synthesis over a WebSocket for lower first-chunk latency
// than the HTTP path. One connection per utterance; cancellation closes it.
type Cartesia struct {
	apiKey   string
	endpoint string
	logger   zerolog.Logger
}

// NewCartesia creates the provider. An empty key falls back to the
// CARTESIA_API_KEY environment variable.
func NewCartesia(apiKey string, logger zerolog.Logger) *Cartesia {
	if apiKey == "" {
		apiKey = os.Getenv("CARTESIA_API_KEY")
	}

	return &Cartesia{
		apiKey:   apiKey,
		endpoint: CartesiaWSEndpoint,
		logger:   logger.With().Str("provider", "cartesia").Logger(),
	}
}

// Name returns the provider identifier.
func (p *Cartesia) Name() string {
	return "cartesia"
}

// Available reports whether an API key is configured.
func (p *Cartesia) Available() bool {
	return p.apiKey != ""
}

// cartesiaRequest is the generation request format.
type cartesiaRequest struct {
	ModelID      string         `json:"model_id"`
	Transcript   string         `json:"transcript"`
	Voice        cartesiaVoice  `json:"voice"`
	Language     string         `json:"language"`
	ContextID    string         `json:"context_id,omitempty"`
	OutputFormat cartesiaFormat `json:"output_format"`
	Continue     bool           `json:"continue"`
}

type cartesiaVoice struct {
	Mode string `json:"mode"`
	ID   string `json:"id,omitempty"`
}

type cartesiaFormat struct {
	Container  string `json:"container"`
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sample_rate"`
}

// cartesiaResponse covers the message types the stream can carry.
type cartesiaResponse struct {
	Type      string `json:"type"`
	Done      bool   `json:"done"`
	ContextID string `json:"context_id,omitempty"`
	Data      string `json:"data,omitempty"`  // type="chunk", base64 audio
	Error     string `json:"error,omitempty"` // type="error"
}

// Stream synthesizes text over the WebSocket, emitting decoded PCM
// fragments as chunk messages arrive.
func (p *Cartesia) Stream(ctx context.Context, text string, d Directive, emit func([]byte)) error {
	url := fmt.Sprintf("%s?api_key=%s&cartesia_version=%s", p.endpoint, p.apiKey, CartesiaAPIVersion)

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, http.Header{})
	if err != nil {
		if ctx.Err() != nil {
			return context.Canceled
		}
		return fmt.Errorf("websocket dial: %w", err)
	}
	defer conn.Close()

	// Close the connection when the context dies so the read loop below
	// unblocks promptly on Stop.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	modelID := d.ModelID
	if modelID == "" || modelID == DefaultConfig().ModelID {
		modelID = CartesiaModel
	}

	req := cartesiaRequest{
		ModelID:    modelID,
		Transcript: text,
		Voice:      cartesiaVoice{Mode: "id", ID: d.VoiceID},
		Language:   "en",
		ContextID:  fmt.Sprintf("voicegate-%d", time.Now().UnixNano()),
		OutputFormat: cartesiaFormat{
			Container:  "raw",
			Encoding:   "pcm_s16le",
			SampleRate: CartesiaSampleRate,
		},
	}

	if err := conn.WriteJSON(req); err != nil {
		return fmt.Errorf("write request: %w", err)
	}

	for {
		var resp cartesiaResponse
		if err := conn.ReadJSON(&resp); err != nil {
			if ctx.Err() != nil {
				return context.Canceled
			}
			return fmt.Errorf("stream read: %w", err)
		}

		switch resp.Type {
		case "chunk":
			audio, err := base64.StdEncoding.DecodeString(resp.Data)
			if err != nil {
				p.logger.Warn().Err(err).Msg("Bad audio chunk, skipping")
				continue
			}
			emit(audio)
		case "error":
			return fmt.Errorf("synthesis error: %s", resp.Error)
		case "done":
			return nil
		}

		if resp.Done {
			return nil
		}
	}
}
