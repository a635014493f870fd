package report

import (
	"fmt"
	"log/slog"
	"strings"
)

// Category character allowances for the per-failure console pass. Debug
// output is dropped outright; errors get the largest allowance.
var categoryCaps = map[string]int{
	"error": 2000,
	"warn":  1000,
	"info":  600,
	"log":   600,
	"debug": 0,
}

const (
	lateMaxFrames       = 10
	lateCodeContextCap  = 400
	lateValueCap        = 200
	lateMessageCap      = 500
	lateMaxRounds       = 3
	lateMaxKeptFailures = 5
)

// LateResult summarizes what the late truncator removed.
type LateResult struct {
	TokensBefore   int      `json:"tokens_before"`
	TokensAfter    int      `json:"tokens_after"`
	WasTruncated   bool     `json:"was_truncated"`
	PhasesApplied  []string `json:"phases_applied,omitempty"`
	DroppedPassed  int      `json:"dropped_passed,omitempty"`
	DroppedSkipped int      `json:"dropped_skipped,omitempty"`
	DroppedFailed  int      `json:"dropped_failed,omitempty"`
}

// Late enforces the global token budget on an assembled report. It runs
// three ordered phases, re-measuring the serialized report between steps
// and stopping as soon as the budget is met. Fields are only ever removed
// or shrunk.
type Late struct {
	logger *slog.Logger
}

// NewLate creates a late truncator; logger defaults to slog.Default().
func NewLate(logger *slog.Logger) *Late {
	if logger == nil {
		logger = slog.Default()
	}
	return &Late{logger: logger}
}

// Truncate mutates r in place until its serialized estimate fits budget, or
// until every phase is exhausted.
func (l *Late) Truncate(r *Report, budget int) LateResult {
	res := LateResult{TokensBefore: r.Tokens()}
	if res.TokensBefore <= budget {
		res.TokensAfter = res.TokensBefore
		return res
	}
	res.WasTruncated = true

	// Phase 1: whole low-value sections, passed before skipped.
	if len(r.Passed) > 0 {
		res.DroppedPassed = len(r.Passed)
		r.Passed = nil
		res.PhasesApplied = append(res.PhasesApplied, "drop-passed")
		if done := l.measure(r, budget, &res); done {
			return res
		}
	}
	if len(r.Skipped) > 0 {
		res.DroppedSkipped = len(r.Skipped)
		r.Skipped = nil
		res.PhasesApplied = append(res.PhasesApplied, "drop-skipped")
		if done := l.measure(r, budget, &res); done {
			return res
		}
	}

	// Phase 2: per-failure category caps and fixed structural limits.
	for i := range r.Failures {
		l.capFailure(&r.Failures[i], 1)
	}
	res.PhasesApplied = append(res.PhasesApplied, "cap-failures")
	if done := l.measure(r, budget, &res); done {
		return res
	}

	// Phase 3: progressively harsher rounds.
	for round := 2; round <= lateMaxRounds+1; round++ {
		for i := range r.Failures {
			l.capFailure(&r.Failures[i], round)
		}
		res.PhasesApplied = append(res.PhasesApplied, fmt.Sprintf("shrink-round-%d", round-1))
		if done := l.measure(r, budget, &res); done {
			return res
		}
	}

	// Final measure: excess failures beyond the first five go.
	if len(r.Failures) > lateMaxKeptFailures {
		res.DroppedFailed = len(r.Failures) - lateMaxKeptFailures
		r.Failures = r.Failures[:lateMaxKeptFailures]
		r.Warnings = append(r.Warnings,
			fmt.Sprintf("%d failure(s) dropped to satisfy the token budget", res.DroppedFailed))
		res.PhasesApplied = append(res.PhasesApplied, "drop-failures")
	}
	res.TokensAfter = r.Tokens()
	if res.TokensAfter > budget {
		l.logger.Warn("report still over budget after all phases",
			"tokens", res.TokensAfter, "budget", budget)
	}
	return res
}

// measure re-estimates the report and records it; returns true when the
// budget is satisfied.
func (l *Late) measure(r *Report, budget int, res *LateResult) bool {
	res.TokensAfter = r.Tokens()
	if res.TokensAfter <= budget {
		l.logger.Debug("report within budget",
			"tokens", res.TokensAfter, "budget", budget,
			"phases", strings.Join(res.PhasesApplied, ","))
		return true
	}
	return false
}

// capFailure applies the round's limits to one failure. Round 1 is the
// phase-2 baseline; later rounds halve the caps again each time and collapse
// code context from round 3 on.
func (l *Late) capFailure(f *Failure, round int) {
	divisor := 1 << (round - 1)

	kept := f.Console[:0]
	for _, sec := range f.Console {
		allow, ok := categoryCaps[sec.Category]
		if !ok {
			allow = categoryCaps["log"]
		}
		allow /= divisor
		if allow <= 0 {
			continue
		}
		sec.Content = capTail(sec.Content, allow)
		kept = append(kept, sec)
	}
	f.Console = kept
	if len(f.Console) == 0 {
		f.Console = nil
	}

	f.StackTrace = capFrames(f.StackTrace, lateMaxFrames/divisor)
	f.Expected = capHead(f.Expected, lateValueCap/divisor)
	f.Actual = capHead(f.Actual, lateValueCap/divisor)
	if round >= 3 {
		f.CodeContext = ""
		f.Message = capHead(f.Message, lateMessageCap/divisor)
	} else {
		f.CodeContext = capHead(f.CodeContext, lateCodeContextCap/divisor)
	}
}

// capTail keeps the last n bytes of s; console output closest to the
// failure is the most valuable.
func capTail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	const marker = "[earlier output truncated]\n"
	start := len(s) - n
	for start < len(s) && s[start]&0xC0 == 0x80 {
		start++
	}
	return marker + s[start:]
}

// capHead keeps the first n bytes of s.
func capHead(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && s[cut]&0xC0 == 0x80 {
		cut--
	}
	return s[:cut] + "..."
}

// capFrames keeps the header and the top maxFrames frame lines of a stack
// trace, noting how many were omitted.
func capFrames(stack string, maxFrames int) string {
	if stack == "" {
		return ""
	}
	if maxFrames < 1 {
		maxFrames = 1
	}
	lines := strings.Split(stack, "\n")
	var sb strings.Builder
	frames := 0
	omitted := 0
	for _, line := range lines {
		if !strings.HasPrefix(strings.TrimSpace(line), "at ") {
			if frames == 0 {
				sb.WriteString(line)
				sb.WriteString("\n")
			}
			continue
		}
		if frames < maxFrames {
			sb.WriteString(line)
			sb.WriteString("\n")
		} else {
			omitted++
		}
		frames++
	}
	if omitted > 0 {
		fmt.Fprintf(&sb, "    ... %d more frame(s)\n", omitted)
	}
	return strings.TrimSuffix(sb.String(), "\n")
}
