package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// WhisperHTTP transcribes audio through an OpenAI-compatible transcription
// server (go-whisper, LocalAI, faster-whisper-server). Used as the fallback
// when no local whisper binary is installed.
type WhisperHTTP struct {
	serverURL  string
	language   string
	sampleRate int
	client     *http.Client
	logger     zerolog.Logger
}

// NewWhisperHTTP is the ProviderFactory for the HTTP backend. It probes the
// server once so an unreachable server fails discovery instead of the first
// transcription.
func NewWhisperHTTP(opts Options, logger zerolog.Logger) (Provider, error) {
	if opts.ServerURL == "" {
		return nil, fmt.Errorf("%w: no transcription server configured", ErrEngineUnavailable)
	}

	client := &http.Client{Timeout: 60 * time.Second}

	probeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, opts.ServerURL+"/health", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: transcription server unreachable: %v", ErrEngineUnavailable, err)
	}
	resp.Body.Close()

	return &WhisperHTTP{
		serverURL:  opts.ServerURL,
		language:   opts.Language,
		sampleRate: opts.SampleRate,
		client:     client,
		logger:     logger.With().Str("provider", "whisper-http").Logger(),
	}, nil
}

// Name returns the provider identifier.
func (w *WhisperHTTP) Name() string {
	return "whisper-http"
}

// Transcribe posts the chunk as a WAV file and parses the verbose JSON
// response, including word timestamps when the server reports them.
func (w *WhisperHTTP) Transcribe(ctx context.Context, samples []float32) (*TranscriptionResult, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", "chunk.wav")
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if err := EncodeWAV(part, samples, w.sampleRate); err != nil {
		return nil, fmt.Errorf("failed to encode WAV: %w", err)
	}
	if err := writer.WriteField("language", w.language); err != nil {
		return nil, err
	}
	if err := writer.WriteField("response_format", "verbose_json"); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	url := w.serverURL + "/v1/audio/transcriptions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transcription request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("transcription server returned %d: %s", resp.StatusCode, string(msg))
	}

	var out verboseJSON
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	result := &TranscriptionResult{
		Text:       out.Text,
		Language:   out.Language,
		DurationMs: int64(len(samples)) * 1000 / int64(w.sampleRate),
	}
	if result.Language == "" {
		result.Language = w.language
	}

	for _, seg := range out.Segments {
		segment := Segment{
			Text:    seg.Text,
			StartMs: secondsToMs(seg.Start),
			EndMs:   secondsToMs(seg.End),
		}
		for _, word := range seg.Words {
			segment.Tokens = append(segment.Tokens, Token{
				Text:        word.Word,
				StartMs:     secondsToMs(word.Start),
				EndMs:       secondsToMs(word.End),
				Probability: word.Probability,
			})
		}
		result.Segments = append(result.Segments, segment)
	}

	return result, nil
}

// verboseJSON mirrors the OpenAI verbose_json transcription response.
type verboseJSON struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
		Words []struct {
			Word        string  `json:"word"`
			Start       float64 `json:"start"`
			End         float64 `json:"end"`
			Probability float64 `json:"probability"`
		} `json:"words,omitempty"`
	} `json:"segments,omitempty"`
}

func secondsToMs(s float64) int64 {
	return int64(math.Round(s * 1000))
}

// Close is a no-op for the HTTP backend.
func (w *WhisperHTTP) Close() error {
	return nil
}
