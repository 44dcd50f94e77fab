// Package config provides configuration management for voicegate.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all library configuration, hot-swappable at runtime.
type Config struct {
	Wake  WakeConfig  `mapstructure:"wake"`
	STT   STTConfig   `mapstructure:"stt"`
	TTS   TTSConfig   `mapstructure:"tts"`
	VAD   VADConfig   `mapstructure:"vad"`
	Voice VoiceConfig `mapstructure:"voice"`
}

// WakeConfig configures wake-word matching.
type WakeConfig struct {
	Triggers          []string `mapstructure:"triggers"`             // Priority order, first match wins
	MinPostTriggerGap float64  `mapstructure:"min_post_trigger_gap"` // Seconds of silence after trigger
	MinCommandWords   int      `mapstructure:"min_command_words"`
	ConfusionFile     string   `mapstructure:"confusion_file"` // Optional YAML confusion table
}

// STTConfig configures speech-to-text.
type STTConfig struct {
	Engine    string `mapstructure:"engine"` // whisper-cli, whisper-http
	ModelSize string `mapstructure:"model_size"`
	ModelPath string `mapstructure:"model_path"` // Explicit model file, overrides search
	Language  string `mapstructure:"language"`
	ServerURL string `mapstructure:"server_url"` // whisper-http only
}

// TTSConfig configures text-to-speech.
type TTSConfig struct {
	Provider   string  `mapstructure:"provider"` // elevenlabs, cartesia
	APIKey     string  `mapstructure:"api_key"`
	VoiceID    string  `mapstructure:"voice_id"`
	ModelID    string  `mapstructure:"model_id"`
	Stability  float64 `mapstructure:"stability"`
	Similarity float64 `mapstructure:"similarity"`
	Speed      float64 `mapstructure:"speed"`
}

// VADConfig configures the stream segmenter.
type VADConfig struct {
	SampleRate       int           `mapstructure:"sample_rate"`
	MinChunkDuration time.Duration `mapstructure:"min_chunk_duration"`
	MaxChunkDuration time.Duration `mapstructure:"max_chunk_duration"`
	SilenceThreshold float64       `mapstructure:"silence_threshold"` // Peak amplitude, 0-1
	SilenceDuration  time.Duration `mapstructure:"silence_duration"`
	Classifier       string        `mapstructure:"classifier"` // peak (default) or webrtc
}

// VoiceConfig configures the conversation controller.
type VoiceConfig struct {
	WakeWordMode  bool          `mapstructure:"wake_word_mode"`
	HistorySize   int           `mapstructure:"history_size"`
	HistoryExpiry time.Duration `mapstructure:"history_expiry"`
	SpeakOnWake   bool          `mapstructure:"speak_on_wake"`
	StatusVerbose bool          `mapstructure:"status_verbose"`
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() *Config {
	return &Config{
		Wake: WakeConfig{
			Triggers:          []string{"hey milady", "milady"},
			MinPostTriggerGap: 0.45,
			MinCommandWords:   1,
		},
		STT: STTConfig{
			Engine:    "auto",
			ModelSize: "base",
			Language:  "en",
			ServerURL: "http://localhost:8899",
		},
		TTS: TTSConfig{
			Provider:   "elevenlabs",
			VoiceID:    "21m00Tcm4TlvDq8ikWAM",
			ModelID:    "eleven_monolingual_v1",
			Stability:  0.5,
			Similarity: 0.75,
			Speed:      1.0,
		},
		VAD: VADConfig{
			SampleRate:       16000,
			MinChunkDuration: 1 * time.Second,
			MaxChunkDuration: 30 * time.Second,
			SilenceThreshold: 0.01,
			SilenceDuration:  1500 * time.Millisecond,
			Classifier:       "peak",
		},
		Voice: VoiceConfig{
			WakeWordMode:  true,
			HistorySize:   10,
			HistoryExpiry: 5 * time.Minute,
			SpeakOnWake:   false,
		},
	}
}

// Dir returns the voicegate configuration directory, creating it if needed.
func Dir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	configDir := filepath.Join(homeDir, ".voicegate")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", err
	}
	return configDir, nil
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	configDir, err := Dir()
	if err != nil {
		return cfg, err
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	viper.SetEnvPrefix("VOICEGATE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return cfg, err
		}
		// Config file not found, write defaults for next time
		if err := Save(cfg); err != nil {
			return cfg, err
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Save writes the configuration to file. Keys are written exactly as Load
// reads them, so a saved file round-trips through a fresh process; durations
// are written in Go duration syntax ("1.5s"), which viper's unmarshal hook
// parses back.
func Save(cfg *Config) error {
	configDir, err := Dir()
	if err != nil {
		return err
	}

	v := viper.New()
	v.Set("wake", map[string]any{
		"triggers":             cfg.Wake.Triggers,
		"min_post_trigger_gap": cfg.Wake.MinPostTriggerGap,
		"min_command_words":    cfg.Wake.MinCommandWords,
		"confusion_file":       cfg.Wake.ConfusionFile,
	})
	v.Set("stt", map[string]any{
		"engine":     cfg.STT.Engine,
		"model_size": cfg.STT.ModelSize,
		"model_path": cfg.STT.ModelPath,
		"language":   cfg.STT.Language,
		"server_url": cfg.STT.ServerURL,
	})
	v.Set("tts", map[string]any{
		"provider":   cfg.TTS.Provider,
		"api_key":    cfg.TTS.APIKey,
		"voice_id":   cfg.TTS.VoiceID,
		"model_id":   cfg.TTS.ModelID,
		"stability":  cfg.TTS.Stability,
		"similarity": cfg.TTS.Similarity,
		"speed":      cfg.TTS.Speed,
	})
	v.Set("vad", map[string]any{
		"sample_rate":        cfg.VAD.SampleRate,
		"min_chunk_duration": cfg.VAD.MinChunkDuration.String(),
		"max_chunk_duration": cfg.VAD.MaxChunkDuration.String(),
		"silence_threshold":  cfg.VAD.SilenceThreshold,
		"silence_duration":   cfg.VAD.SilenceDuration.String(),
		"classifier":         cfg.VAD.Classifier,
	})
	v.Set("voice", map[string]any{
		"wake_word_mode": cfg.Voice.WakeWordMode,
		"history_size":   cfg.Voice.HistorySize,
		"history_expiry": cfg.Voice.HistoryExpiry.String(),
		"speak_on_wake":  cfg.Voice.SpeakOnWake,
		"status_verbose": cfg.Voice.StatusVerbose,
	})

	path := filepath.Join(configDir, "config.yaml")
	return v.WriteConfigAs(path)
}

// Path returns the expected config file path (the file may not exist yet).
func Path() (string, error) {
	configDir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.yaml"), nil
}
