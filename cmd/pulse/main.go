// Command pulse runs the resource-decay and lifecycle-prediction engine:
// a simulation core that tracks a decaying/recovering energy resource and
// a registry of evolving patterns, and publishes derived health state to
// subscribers.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// configPath is the --config flag shared by all subcommands
	configPath string

	rootCmd = &cobra.Command{
		Use:   "pulse",
		Short: "Resource-decay and lifecycle-prediction engine",
		Long: `Pulse tracks a bounded, continuously decaying/recovering energy resource
and a registry of evolving patterns. Each pattern progresses through a
discrete lifecycle driven by rolling statistical analysis of its own
metric history.

The engine is a library first; this CLI hosts it as a process:

  pulse run          start the engine and its periodic drivers
  pulse status       print the current system health summary
  pulse config init  write a default configuration file`,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "pulse.yaml",
		"Path to the YAML configuration file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
