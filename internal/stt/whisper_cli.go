package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// WhisperCLI transcribes audio by shelling out to a whisper.cpp binary with
// JSON output, which carries both segment and token timestamps.
type WhisperCLI struct {
	binaryPath string
	modelPath  string
	language   string
	sampleRate int
	tempDir    string
	logger     zerolog.Logger
}

// NewWhisperCLI is the ProviderFactory for the whisper.cpp CLI backend.
// It fails with ErrEngineUnavailable when no binary is discoverable and
// with ErrModelNotFound when a binary exists but no model file does.
func NewWhisperCLI(opts Options, logger zerolog.Logger) (Provider, error) {
	binaryPath := findWhisperBinary()
	if binaryPath == "" {
		return nil, fmt.Errorf("%w: whisper binary not found", ErrEngineUnavailable)
	}

	if opts.ModelPath == "" {
		return nil, fmt.Errorf("%w: searched default locations for ggml-%s.bin", ErrModelNotFound, opts.ModelSize)
	}
	if _, err := os.Stat(opts.ModelPath); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, opts.ModelPath)
	}

	tempDir, err := os.MkdirTemp("", "voicegate-whisper-")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	return &WhisperCLI{
		binaryPath: binaryPath,
		modelPath:  opts.ModelPath,
		language:   opts.Language,
		sampleRate: opts.SampleRate,
		tempDir:    tempDir,
		logger:     logger.With().Str("provider", "whisper-cli").Logger(),
	}, nil
}

// findWhisperBinary locates a whisper.cpp executable. Homebrew installs
// whisper-cli; older builds ship plain whisper or main.
func findWhisperBinary() string {
	for _, name := range []string{"whisper-cli", "whisper-cpp", "whisper"} {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	locations := []string{
		"/opt/homebrew/bin/whisper-cli",
		"/opt/homebrew/bin/whisper",
		"/usr/local/bin/whisper-cli",
		"/usr/local/bin/whisper",
		"/usr/bin/whisper",
	}
	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Name returns the provider identifier.
func (w *WhisperCLI) Name() string {
	return "whisper-cli"
}

// Transcribe writes the samples to a temp WAV, runs whisper.cpp with full
// JSON output, and parses segment and token timestamps from the result.
func (w *WhisperCLI) Transcribe(ctx context.Context, samples []float32) (*TranscriptionResult, error) {
	base := filepath.Join(w.tempDir, fmt.Sprintf("chunk_%d", time.Now().UnixNano()))
	wavPath := base + ".wav"
	jsonPath := base + ".json"

	if err := WriteWAVFile(wavPath, samples, w.sampleRate); err != nil {
		return nil, fmt.Errorf("failed to write WAV file: %w", err)
	}
	defer os.Remove(wavPath)
	defer os.Remove(jsonPath)

	args := []string{
		"--model", w.modelPath,
		"--language", w.language,
		"--no-prints",
		"--output-json-full",
		"--output-file", base,
		wavPath,
	}

	cmd := exec.CommandContext(ctx, w.binaryPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("whisper failed: %w, stderr: %s", err, stderr.String())
	}

	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, fmt.Errorf("whisper produced no JSON output: %w", err)
	}

	result, err := parseWhisperJSON(data)
	if err != nil {
		return nil, err
	}

	result.DurationMs = int64(len(samples)) * 1000 / int64(w.sampleRate)
	if result.Language == "" {
		result.Language = w.language
	}
	return result, nil
}

// whisperJSON mirrors whisper.cpp's --output-json-full format.
type whisperJSON struct {
	Result struct {
		Language string `json:"language"`
	} `json:"result"`
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text   string `json:"text"`
		Tokens []struct {
			Text    string `json:"text"`
			Offsets struct {
				From int64 `json:"from"`
				To   int64 `json:"to"`
			} `json:"offsets"`
			P float64 `json:"p"`
		} `json:"tokens"`
	} `json:"transcription"`
}

func parseWhisperJSON(data []byte) (*TranscriptionResult, error) {
	var out whisperJSON
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse whisper JSON: %w", err)
	}

	result := &TranscriptionResult{
		Language: out.Result.Language,
	}

	var textParts []string
	for _, seg := range out.Transcription {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}

		segment := Segment{
			Text:    text,
			StartMs: seg.Offsets.From,
			EndMs:   seg.Offsets.To,
		}

		for _, tok := range seg.Tokens {
			tokText := strings.TrimSpace(tok.Text)
			// whisper emits control tokens like [_BEG_] and [_TT_123]
			if tokText == "" || strings.HasPrefix(tokText, "[_") {
				continue
			}
			segment.Tokens = append(segment.Tokens, Token{
				Text:        tokText,
				StartMs:     tok.Offsets.From,
				EndMs:       tok.Offsets.To,
				Probability: tok.P,
			})
		}

		result.Segments = append(result.Segments, segment)
		textParts = append(textParts, text)
	}

	result.Text = strings.Join(textParts, " ")
	return result, nil
}

// Close removes the provider's temp directory. Safe to call multiple times.
func (w *WhisperCLI) Close() error {
	if w.tempDir != "" {
		os.RemoveAll(w.tempDir)
		w.tempDir = ""
	}
	return nil
}
