package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/averyhollis/voicegate/internal/audio"
	"github.com/averyhollis/voicegate/internal/bus"
	"github.com/averyhollis/voicegate/internal/config"
	"github.com/averyhollis/voicegate/internal/voice"
)

var (
	listenDevice   string
	listenNoWake   bool
	listenNoReload bool
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Capture the microphone and print wake-word commands",
	RunE:  runListen,
}

func init() {
	listenCmd.Flags().StringVar(&listenDevice, "device", "", "input device name (default: system default)")
	listenCmd.Flags().BoolVar(&listenNoWake, "no-wake", false, "emit every transcript instead of gating on the wake word")
	listenCmd.Flags().BoolVar(&listenNoReload, "no-reload", false, "disable config hot reload")
	rootCmd.AddCommand(listenCmd)
}

func runListen(command *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logger.Close()

	cfg := loadConfig()
	if listenNoWake {
		cfg.Voice.WakeWordMode = false
	}

	events := bus.NewEventBus()
	events.Subscribe(bus.EventTypeWakeWord, func(e bus.Event) {
		fmt.Printf("[wake] %s → %q (gap %.2fs)\n",
			e.Data["wakeWord"], e.Data["command"], e.Data["postGapSeconds"])
	})
	events.Subscribe(bus.EventTypeTranscript, func(e bus.Event) {
		fmt.Printf("[heard] %s\n", e.Data["text"])
	})
	events.Subscribe(bus.EventTypeStateChange, func(e bus.Event) {
		if verbose {
			fmt.Printf("[state] %s\n", e.Data["state"])
		}
	})
	events.Subscribe(bus.EventTypeError, func(e bus.Event) {
		fmt.Fprintf(os.Stderr, "[error] %s\n", e.Data["error"])
	})

	controller := voice.NewController(cfg, events, logger.Component("voice"))
	if err := controller.Start(); err != nil {
		return fmt.Errorf("start pipeline: %w", err)
	}
	defer controller.Stop()

	if !listenNoReload {
		watcher, err := config.NewWatcher(logger.Component("config"), func(next *config.Config) {
			controller.UpdateConfig(next)
		})
		if err != nil {
			logger.Component("config").Warn().Err(err).Msg("hot reload unavailable")
		} else {
			defer watcher.Close()
		}
	}

	capture, err := audio.NewCapture(cfg.VAD.SampleRate, listenDevice)
	if err != nil {
		return fmt.Errorf("audio capture: %w", err)
	}
	defer capture.Close()

	if err := capture.Start(controller.FeedAudio); err != nil {
		return fmt.Errorf("audio capture: %w", err)
	}

	fmt.Println("listening (ctrl-c to stop)")
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	fmt.Println("\nstopping")
	return nil
}
