// Package output renders the CLI's human-facing text: styled run summaries
// and plain-text tables.
package output

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"

	"github.com/hansjm10/testsift/internal/dedup"
	"github.com/hansjm10/testsift/internal/report"
	"github.com/hansjm10/testsift/internal/truncate"
)

// Formatter writes styled terminal output. With color disabled the styles
// are zero values and render as plain text.
type Formatter struct {
	writer io.Writer

	pass lipgloss.Style
	fail lipgloss.Style
	skip lipgloss.Style
	bold lipgloss.Style
	dim  lipgloss.Style
}

// NewFormatter creates a formatter for w. colorMode is auto, always or
// never; auto enables color only when w is a terminal.
func NewFormatter(w io.Writer, colorMode string) *Formatter {
	color := false
	switch colorMode {
	case "always":
		color = true
	case "never":
	default:
		if file, ok := w.(*os.File); ok {
			color = (isatty.IsTerminal(file.Fd()) || isatty.IsCygwinTerminal(file.Fd())) &&
				termenv.EnvColorProfile() != termenv.Ascii
		}
	}

	f := &Formatter{writer: w}
	if color {
		f.pass = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
		f.fail = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
		f.skip = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
		f.bold = lipgloss.NewStyle().Bold(true)
		f.dim = lipgloss.NewStyle().Faint(true)
	}
	return f
}

// Summary prints the run totals, what reduction removed, and the cumulative
// dedup/truncation counters.
func (f *Formatter) Summary(rep *report.Report, late report.LateResult, ded dedup.Stats, trunc truncate.Stats) {
	s := rep.Summary
	f.Textln("%s  %s  %s",
		f.pass.Render(CountStr(s.Passed, "passed", "passed")),
		f.fail.Render(CountStr(s.Failed, "failed", "failed")),
		f.skip.Render(CountStr(s.Skipped, "skipped", "skipped")))

	if late.WasTruncated {
		f.Textln("report reduced %s -> %s tokens",
			f.bold.Render(fmt.Sprintf("%d", late.TokensBefore)),
			f.bold.Render(fmt.Sprintf("%d", late.TokensAfter)))
		if late.DroppedPassed+late.DroppedSkipped+late.DroppedFailed > 0 {
			f.Textln(f.dim.Render(fmt.Sprintf("dropped: %d passed, %d skipped, %d failed",
				late.DroppedPassed, late.DroppedSkipped, late.DroppedFailed)))
		}
	} else {
		f.Textln("report within budget at %s tokens", f.bold.Render(fmt.Sprintf("%d", late.TokensAfter)))
	}

	if ded.TotalProcessed > 0 {
		f.Textln("dedup: %d of %s collapsed, %d evictions",
			ded.DuplicatesDetected,
			CountStr(ded.TotalProcessed, "message", "messages"),
			ded.Evictions)
	}
	if trunc.TotalTruncations > 0 {
		f.Textln("truncation: %s, %d tokens saved (avg %.0f)",
			CountStr(trunc.TotalTruncations, "fragment", "fragments"),
			trunc.TotalTokensSaved, trunc.AverageTokensSaved)
	}
}

// FailureTable prints one row per failure with its reduced size.
func (f *Formatter) FailureTable(failures []report.Failure) {
	if len(failures) == 0 {
		return
	}
	t := NewTable(f.writer, "TEST", "MESSAGE")
	for _, fail := range failures {
		t.AddRow(Truncate(fail.Name, 48), Truncate(fail.Message, 72))
	}
	t.Render()
}
