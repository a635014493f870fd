package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hansjm10/testsift/internal/config"
	"github.com/hansjm10/testsift/internal/dedup"
	"github.com/hansjm10/testsift/internal/output"
	"github.com/hansjm10/testsift/internal/report"
	"github.com/hansjm10/testsift/internal/truncate"
)

func newReduceCmd() *cobra.Command {
	var (
		model     string
		maxTokens int
		format    string
		outPath   string
		noDedup   bool
		quiet     bool
	)

	cmd := &cobra.Command{
		Use:   "reduce <run.json>",
		Short: "Reduce a recorded run to a token-bounded report",
		Long: `Reduce reads a recorded run artifact (per-test console events and
results), collapses duplicate log lines, truncates each failure's console
output, and shrinks the whole report until it fits the model's token budget.

Examples:
  testsift reduce run.json
  testsift reduce run.json --model gpt-4 --max-tokens 4000
  testsift reduce run.json --format yaml -o report.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if model != "" {
				cfg.Truncation.Model = model
			}
			if maxTokens > 0 {
				cfg.Truncation.MaxTokens = maxTokens
			}
			if format != "" {
				cfg.Output.Format = format
			}
			if outPath != "" {
				cfg.Output.Path = outPath
			}
			if noDedup {
				cfg.Dedup.Enabled = false
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runReduce(cmd, cfg, args[0], quiet)
		},
	}

	cmd.Flags().StringVarP(&model, "model", "m", "", "target model for the token budget")
	cmd.Flags().IntVar(&maxTokens, "max-tokens", 0, "override the model's token budget")
	cmd.Flags().StringVarP(&format, "format", "f", "", "report format: json or yaml")
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "write the report to a file instead of stdout")
	cmd.Flags().BoolVar(&noDedup, "no-dedup", false, "disable duplicate collapsing")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "suppress the summary")
	return cmd
}

func runReduce(cmd *cobra.Command, cfg *config.Config, inPath string, quiet bool) error {
	in, err := os.Open(inPath)
	if err != nil {
		return fmt.Errorf("opening run artifact: %w", err)
	}
	defer in.Close()

	run, err := report.LoadRun(in)
	if err != nil {
		return err
	}

	rep, lateRes, dedupStats, err := reduceRun(cfg, run)
	if err != nil {
		return err
	}

	if err := writeReport(cfg, rep); err != nil {
		return err
	}

	if !quiet {
		f := output.NewFormatter(cmd.ErrOrStderr(), cfg.Output.Color)
		f.Summary(rep, lateRes, dedupStats, truncate.Stats{})
		f.FailureTable(rep.Failures)
	}
	return nil
}

// reduceRun is the whole pipeline for one artifact: dedup-aware assembly,
// then late truncation against the effective budget.
func reduceRun(cfg *config.Config, run *report.RawRun) (*report.Report, report.LateResult, dedup.Stats, error) {
	var cache *dedup.Cache
	if cfg.Dedup.Enabled {
		var err error
		cache, err = dedup.NewCache(cfg.Dedup)
		if err != nil {
			return nil, report.LateResult{}, dedup.Stats{}, err
		}
	}

	asm := report.NewAssembler(cache, report.AssembleOptions{
		EarlyMode: report.EarlyMode(cfg.Truncation.EarlyMode),
	}, slog.Default())
	rep := asm.Assemble(run)
	if err := rep.Validate(); err != nil {
		return nil, report.LateResult{}, dedup.Stats{}, err
	}

	late := report.NewLate(slog.Default())
	lateRes := late.Truncate(rep, cfg.EffectiveBudget())

	var stats dedup.Stats
	if cache != nil {
		stats = cache.Stats()
	}
	return rep, lateRes, stats, nil
}

func writeReport(cfg *config.Config, rep *report.Report) error {
	var w io.Writer = os.Stdout
	if cfg.Output.Path != "" {
		f, err := os.Create(cfg.Output.Path)
		if err != nil {
			return fmt.Errorf("creating report file: %w", err)
		}
		defer f.Close()
		w = f
	}
	return encodeReport(w, cfg.Output.Format, rep)
}

func encodeReport(w io.Writer, format string, rep *report.Report) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(rep)
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}
}
