package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if len(cfg.Wake.Triggers) == 0 || cfg.Wake.Triggers[0] != "hey milady" {
		t.Errorf("triggers = %v", cfg.Wake.Triggers)
	}
	if cfg.Wake.MinPostTriggerGap != 0.45 {
		t.Errorf("min post trigger gap = %v, want 0.45", cfg.Wake.MinPostTriggerGap)
	}
	if cfg.VAD.SampleRate != 16000 {
		t.Errorf("sample rate = %d, want 16000", cfg.VAD.SampleRate)
	}
	if cfg.VAD.MaxChunkDuration != 30*time.Second {
		t.Errorf("max chunk = %v, want 30s", cfg.VAD.MaxChunkDuration)
	}
	if cfg.STT.Engine != "auto" {
		t.Errorf("stt engine = %q, want auto", cfg.STT.Engine)
	}
	if cfg.TTS.Provider != "elevenlabs" {
		t.Errorf("tts provider = %q, want elevenlabs", cfg.TTS.Provider)
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg := DefaultConfig()
	cfg.Wake.Triggers = []string{"computer"}
	cfg.Wake.MinPostTriggerGap = 0.6
	cfg.STT.ModelSize = "small"
	cfg.VAD.SilenceDuration = 2 * time.Second

	if err := Save(cfg); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded.Wake.Triggers) != 1 || loaded.Wake.Triggers[0] != "computer" {
		t.Errorf("triggers = %v, want [computer]", loaded.Wake.Triggers)
	}
	if loaded.Wake.MinPostTriggerGap != 0.6 {
		t.Errorf("gap = %v, want 0.6", loaded.Wake.MinPostTriggerGap)
	}
	if loaded.STT.ModelSize != "small" {
		t.Errorf("model size = %q, want small", loaded.STT.ModelSize)
	}
	if loaded.VAD.SilenceDuration != 2*time.Second {
		t.Errorf("silence duration = %v, want 2s", loaded.VAD.SilenceDuration)
	}
}

// A saved file must be readable by a process that never saw the in-memory
// config: the keys on disk have to match the mapstructure tags Load decodes.
func TestSave_FreshProcessReadsFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg := DefaultConfig()
	cfg.Wake.MinPostTriggerGap = 0.8
	cfg.VAD.SampleRate = 22050
	cfg.VAD.SilenceDuration = 900 * time.Millisecond
	cfg.Voice.SpeakOnWake = true

	if err := Save(cfg); err != nil {
		t.Fatalf("save: %v", err)
	}

	path, err := Path()
	if err != nil {
		t.Fatalf("path: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read config file: %v", err)
	}
	for _, key := range []string{
		"min_post_trigger_gap", "min_command_words", "sample_rate",
		"min_chunk_duration", "silence_duration", "speak_on_wake",
	} {
		if !strings.Contains(string(raw), key+":") {
			t.Errorf("written file missing key %q:\n%s", key, raw)
		}
	}

	// Fresh viper instance, as a new process would build.
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		t.Fatalf("fresh read: %v", err)
	}
	var got Config
	if err := v.Unmarshal(&got); err != nil {
		t.Fatalf("fresh unmarshal: %v", err)
	}
	if got.Wake.MinPostTriggerGap != 0.8 {
		t.Errorf("gap = %v, want 0.8", got.Wake.MinPostTriggerGap)
	}
	if got.VAD.SampleRate != 22050 {
		t.Errorf("sample rate = %d, want 22050", got.VAD.SampleRate)
	}
	if got.VAD.SilenceDuration != 900*time.Millisecond {
		t.Errorf("silence duration = %v, want 900ms", got.VAD.SilenceDuration)
	}
	if !got.Voice.SpeakOnWake {
		t.Error("speak_on_wake = false, want true")
	}
}

func TestPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path, err := Path()
	if err != nil {
		t.Fatalf("path: %v", err)
	}
	want := filepath.Join(home, ".voicegate", "config.yaml")
	if path != want {
		t.Errorf("path = %q, want %q", path, want)
	}
	if !strings.HasSuffix(path, "config.yaml") {
		t.Errorf("path must end in config.yaml, got %q", path)
	}
}
