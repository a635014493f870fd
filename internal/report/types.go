// Package report defines the bounded report produced for language model
// consumption and the early (per-fragment) and late (whole-report)
// truncators that keep it inside the token budget.
package report

import (
	"encoding/json"
	"fmt"

	"github.com/hansjm10/testsift/internal/tokens"
)

// TestSummary identifies a non-failing test in the report.
type TestSummary struct {
	Name       string `json:"name"`
	DurationMs int64  `json:"duration_ms,omitempty"`
}

// ConsoleSection groups a failure's captured console output by level
// category.
type ConsoleSection struct {
	Category string `json:"category"` // debug, log, info, warn, error
	Content  string `json:"content"`
}

// Failure carries everything the model needs to diagnose one failing test.
// Late truncation shrinks or removes fields; it never adds any.
type Failure struct {
	Name        string           `json:"name"`
	Message     string           `json:"message"`
	StackTrace  string           `json:"stack_trace,omitempty"`
	CodeContext string           `json:"code_context,omitempty"`
	Expected    string           `json:"expected,omitempty"`
	Actual      string           `json:"actual,omitempty"`
	Console     []ConsoleSection `json:"console,omitempty"`
	DurationMs  int64            `json:"duration_ms,omitempty"`
}

// RunSummary totals the run the report describes.
type RunSummary struct {
	Total      int   `json:"total"`
	Passed     int   `json:"passed"`
	Failed     int   `json:"failed"`
	Skipped    int   `json:"skipped"`
	DurationMs int64 `json:"duration_ms,omitempty"`
}

// Report is the assembled run report handed to the late truncator and then
// to the encoder.
type Report struct {
	Summary  RunSummary    `json:"summary"`
	Failures []Failure     `json:"failures,omitempty"`
	Passed   []TestSummary `json:"passed,omitempty"`
	Skipped  []TestSummary `json:"skipped,omitempty"`
	Warnings []string      `json:"warnings,omitempty"`
}

// Tokens estimates the serialized size of the report. The late truncator
// re-measures between phases with this.
func (r *Report) Tokens() int {
	b, err := json.Marshal(r)
	if err != nil {
		// Marshal of these types cannot fail; keep the signature simple.
		return 0
	}
	return tokens.EstimateTokens(string(b))
}

// Validate rejects structurally impossible reports before reduction.
func (r *Report) Validate() error {
	if r.Summary.Total < 0 || r.Summary.Failed < 0 {
		return fmt.Errorf("report: negative counters in summary")
	}
	for i, f := range r.Failures {
		if f.Name == "" {
			return fmt.Errorf("report: failure %d has no name", i)
		}
	}
	return nil
}
