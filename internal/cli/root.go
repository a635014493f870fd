// Package cli wires the reduction pipeline into the testsift command tree.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/hansjm10/testsift/internal/config"
)

var (
	cfgFile string
	verbose bool

	// Build information - set via ldflags.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "testsift",
	Short: "Reduce noisy test output to a token-bounded report",
	Long: `testsift collapses repeated log lines from recorded test runs and
truncates the assembled report to a model's token budget, keeping the lines
most likely to explain each failure.

Quick Start:
  testsift reduce run.json                  # Reduce with defaults
  testsift reduce run.json --model gpt-4    # Budget for a specific model
  testsift view report.json                 # Browse failures interactively
  testsift watch run.json -o report.json    # Re-reduce whenever the run updates`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	return config.Load(cfgFile)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.config/testsift/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(newReduceCmd())
	rootCmd.AddCommand(newViewCmd())
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newVersionCmd())
}
