package report

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/hansjm10/testsift/internal/dedup"
	"github.com/hansjm10/testsift/internal/priority"
)

// RawEvent is one captured console line from a recorded run.
type RawEvent struct {
	Level     string `json:"level"`
	Text      string `json:"text"`
	ElapsedMs int64  `json:"elapsed_ms,omitempty"`
}

// RawTest is one test's recorded outcome and output.
type RawTest struct {
	Name        string     `json:"name"`
	Status      string     `json:"status"` // passed, failed, skipped
	DurationMs  int64      `json:"duration_ms,omitempty"`
	Message     string     `json:"message,omitempty"`
	StackTrace  string     `json:"stack_trace,omitempty"`
	CodeContext string     `json:"code_context,omitempty"`
	Expected    string     `json:"expected,omitempty"`
	Actual      string     `json:"actual,omitempty"`
	Events      []RawEvent `json:"events,omitempty"`
}

// RawRun is the artifact a test runner records for later reduction.
type RawRun struct {
	Tests []RawTest `json:"tests"`
}

// LoadRun decodes a recorded run artifact.
func LoadRun(r io.Reader) (*RawRun, error) {
	var run RawRun
	dec := json.NewDecoder(r)
	if err := dec.Decode(&run); err != nil {
		return nil, fmt.Errorf("decoding run artifact: %w", err)
	}
	return &run, nil
}

// AssembleOptions tunes how raw runs become reports.
type AssembleOptions struct {
	// SectionTokens is the early-truncation budget per console section.
	SectionTokens int
	EarlyMode     EarlyMode
}

// DefaultAssembleOptions returns the standard assembly settings.
func DefaultAssembleOptions() AssembleOptions {
	return AssembleOptions{SectionTokens: 500, EarlyMode: ModeSmart}
}

// Assembler turns a recorded run into a Report: repeated console lines are
// collapsed through the dedup cache and each failure's console sections are
// early-truncated as they are built.
type Assembler struct {
	cache  *dedup.Cache
	early  *Early
	opts   AssembleOptions
	logger *slog.Logger
}

// NewAssembler creates an assembler. cache may be nil to skip dedup.
func NewAssembler(cache *dedup.Cache, opts AssembleOptions, logger *slog.Logger) *Assembler {
	if opts.SectionTokens <= 0 {
		opts.SectionTokens = DefaultAssembleOptions().SectionTokens
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{
		cache:  cache,
		early:  NewEarly(opts.EarlyMode),
		opts:   opts,
		logger: logger,
	}
}

// Assemble builds the report. Late truncation is the caller's next step.
func (a *Assembler) Assemble(run *RawRun) *Report {
	rep := &Report{}
	for _, t := range run.Tests {
		rep.Summary.Total++
		rep.Summary.DurationMs += t.DurationMs
		switch t.Status {
		case "failed":
			rep.Summary.Failed++
			rep.Failures = append(rep.Failures, a.assembleFailure(t))
		case "skipped":
			rep.Summary.Skipped++
			rep.Skipped = append(rep.Skipped, TestSummary{Name: t.Name, DurationMs: t.DurationMs})
		default:
			rep.Summary.Passed++
			rep.Passed = append(rep.Passed, TestSummary{Name: t.Name, DurationMs: t.DurationMs})
		}
	}
	return rep
}

func (a *Assembler) assembleFailure(t RawTest) Failure {
	f := Failure{
		Name:        t.Name,
		Message:     t.Message,
		StackTrace:  t.StackTrace,
		CodeContext: t.CodeContext,
		Expected:    t.Expected,
		Actual:      t.Actual,
		DurationMs:  t.DurationMs,
	}

	byLevel := make(map[string][]string)
	for _, ev := range t.Events {
		level := dedup.Level(ev.Level)
		text := ev.Text
		if a.cache != nil && a.cache.Enabled() {
			entry := dedup.LogEntry{Message: ev.Text, Level: level, TestID: t.Name}
			if a.cache.IsDuplicate(entry) {
				continue
			}
		}
		byLevel[string(level)] = append(byLevel[string(level)], text)
	}

	// Repeat counts from the cache, attached to the surviving line.
	if a.cache != nil && a.cache.Enabled() {
		for levelName, lines := range byLevel {
			for i, line := range lines {
				key := a.cache.Key(dedup.LogEntry{Message: line, Level: dedup.Level(levelName)})
				if meta, ok := a.cache.Metadata(key); ok && meta.Count > 1 {
					lines[i] = fmt.Sprintf("%s (repeated %d times)", line, meta.Count)
				}
			}
		}
	}

	categories := make([]string, 0, len(byLevel))
	for level := range byLevel {
		categories = append(categories, level)
	}
	sort.Strings(categories)

	for _, level := range categories {
		content := joinLines(byLevel[level])
		res := a.early.Truncate(content, a.opts.SectionTokens, contentTypeFor(level))
		if res.WasTruncated {
			a.logger.Debug("console section reduced",
				"test", t.Name, "category", level,
				"strategy", res.StrategyUsed, "tokens_saved", res.TokensSaved)
		}
		f.Console = append(f.Console, ConsoleSection{Category: level, Content: res.Content})
	}
	return f
}

func contentTypeFor(level string) priority.ContentType {
	switch level {
	case "error":
		return priority.ContentError
	default:
		return priority.ContentConsole
	}
}

func joinLines(lines []string) string {
	out := ""
	for i, l := range lines {
		if i > 0 {
			out += "\n"
		}
		out += l
	}
	return out
}
