package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/averyhollis/voicegate/internal/bus"
	"github.com/averyhollis/voicegate/internal/tts"
)

var sayCmd = &cobra.Command{
	Use:   "say <text>",
	Short: "Synthesize text with the configured TTS provider",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSay,
}

func init() {
	rootCmd.AddCommand(sayCmd)
}

func runSay(command *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logger.Close()

	cfg := loadConfig()
	client := tts.NewClient(tts.Config{
		Provider:   cfg.TTS.Provider,
		APIKey:     cfg.TTS.APIKey,
		VoiceID:    cfg.TTS.VoiceID,
		ModelID:    cfg.TTS.ModelID,
		Stability:  cfg.TTS.Stability,
		Similarity: cfg.TTS.Similarity,
		Speed:      cfg.TTS.Speed,
	}, bus.NewEventBus(), logger.Component("tts"))

	outcome := client.Speak(context.Background(), strings.Join(args, " "), nil)
	switch {
	case outcome.Completed:
		return nil
	case outcome.Interrupted:
		return fmt.Errorf("synthesis interrupted")
	default:
		return fmt.Errorf("synthesis failed: %s", outcome.Err)
	}
}
