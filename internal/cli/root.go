// Package cli implements the Gearfall command-line interface using Cobra.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "gearfall",
	Short: "Gearfall idle game task-queue engine",
	Long: `Gearfall runs the background task-queue engine for the Gearfall idle
game: per-player activity queues, scheduled completion and rewards,
offline catch-up, and real-time multi-connection sync.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
