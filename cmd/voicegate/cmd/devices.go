package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/averyhollis/voicegate/internal/audio"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List audio input devices",
	RunE: func(command *cobra.Command, args []string) error {
		devices, err := audio.ListInputDevices()
		if err != nil {
			return err
		}
		for _, dev := range devices {
			marker := " "
			if dev.Default {
				marker = "*"
			}
			fmt.Printf("%s %s (%d ch, %.0f Hz)\n", marker, dev.Name, dev.Channels, dev.SampleRate)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}
