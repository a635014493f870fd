package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hansjm10/testsift/internal/watcher"
)

func newWatchCmd() *cobra.Command {
	var (
		model    string
		outPath  string
		debounce time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch <run.json>",
		Short: "Re-reduce the report whenever the run artifact changes",
		Long: `Watch monitors a run artifact and re-runs the reduction each time the
file is rewritten, debouncing bursts of writes. Intended to sit next to a
test runner in watch mode.

Example:
  testsift watch run.json -o report.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if model != "" {
				cfg.Truncation.Model = model
			}
			if outPath == "" {
				return fmt.Errorf("watch requires --output; stdout would interleave reports")
			}
			cfg.Output.Path = outPath
			if err := cfg.Validate(); err != nil {
				return err
			}

			inPath := args[0]
			reduceOnce := func(path string) {
				if err := runReduce(cmd, cfg, path, true); err != nil {
					slog.Error("reduction failed", "path", path, "error", err)
					return
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "%s reduced -> %s\n", path, outPath)
			}

			// Initial pass so the report exists before the first change.
			if _, err := os.Stat(inPath); err == nil {
				reduceOnce(inPath)
			}

			w, err := watcher.New(inPath, debounce, reduceOnce, slog.Default())
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			fmt.Fprintf(cmd.ErrOrStderr(), "watching %s (ctrl-c to stop)\n", inPath)
			if err := w.Run(ctx); err != nil && err != context.Canceled {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&model, "model", "m", "", "target model for the token budget")
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "report file to rewrite on each change")
	cmd.Flags().DurationVar(&debounce, "debounce", watcher.DefaultDebounce, "delay before reducing after a change")
	return cmd
}
