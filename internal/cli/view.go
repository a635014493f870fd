package cli

import (
	"encoding/json"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/hansjm10/testsift/internal/output"
	"github.com/hansjm10/testsift/internal/report"
	"github.com/hansjm10/testsift/internal/tui"
)

func newViewCmd() *cobra.Command {
	var plain bool

	cmd := &cobra.Command{
		Use:   "view <report.json>",
		Short: "Browse a reduced report's failures interactively",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rep, err := loadReport(args[0])
			if err != nil {
				return err
			}

			if plain || !isatty.IsTerminal(os.Stdout.Fd()) {
				return printPlainReport(cmd, rep)
			}
			p := tea.NewProgram(tui.New(rep), tea.WithAltScreen())
			_, err = p.Run()
			return err
		},
	}

	cmd.Flags().BoolVar(&plain, "plain", false, "print instead of opening the interactive viewer")
	return cmd
}

func loadReport(path string) (*report.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading report: %w", err)
	}
	var rep report.Report
	if err := json.Unmarshal(data, &rep); err != nil {
		return nil, fmt.Errorf("parsing report: %w", err)
	}
	return &rep, nil
}

// printPlainReport is the non-interactive fallback for pipes and --plain.
func printPlainReport(cmd *cobra.Command, rep *report.Report) error {
	width := 80
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 40 {
		width = w
	}

	f := output.NewFormatter(cmd.OutOrStdout(), "never")
	s := rep.Summary
	f.Textln("%d total: %d passed, %d failed, %d skipped", s.Total, s.Passed, s.Failed, s.Skipped)
	for _, fail := range rep.Failures {
		f.Line()
		f.Textln("--- %s", fail.Name)
		f.Textln("%s", output.Truncate(fail.Message, width))
		if fail.StackTrace != "" {
			f.Textln("%s", fail.StackTrace)
		}
		for _, sec := range fail.Console {
			f.Textln("[console.%s]", sec.Category)
			f.Textln("%s", sec.Content)
		}
	}
	return nil
}
