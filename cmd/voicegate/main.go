package main

import (
	"os"

	"github.com/averyhollis/voicegate/cmd/voicegate/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
