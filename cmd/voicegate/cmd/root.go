package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/averyhollis/voicegate/internal/config"
	"github.com/averyhollis/voicegate/internal/logging"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "voicegate",
	Short: "Wake-word gated voice front end",
	Long: `voicegate listens to the microphone, segments speech on silence,
transcribes it with whisper, and gates the results behind a fuzzy
timing-aware wake word. Detected commands and transcripts are printed as
they arrive; replies can be spoken back with streaming TTS.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

func newLogger() (*logging.Logger, error) {
	cfg := logging.DefaultConfig()
	if verbose {
		cfg.Level = logging.LevelDebug
	}
	return logging.New(cfg)
}

func loadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config unreadable, using defaults: %v\n", err)
		return config.DefaultConfig()
	}
	return cfg
}
