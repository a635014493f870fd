package report

import (
	"strings"
	"testing"
)

func paddedSummaries(prefix string, n, pad int) []TestSummary {
	out := make([]TestSummary, n)
	for i := range out {
		out[i] = TestSummary{Name: prefix + strings.Repeat("x", pad)}
	}
	return out
}

func TestLateWithinBudgetIsNoop(t *testing.T) {
	l := NewLate(nil)

	r := &Report{
		Summary:  RunSummary{Total: 2, Passed: 1, Failed: 1},
		Passed:   []TestSummary{{Name: "TestOK"}},
		Failures: []Failure{{Name: "TestBad", Message: "Error: nope"}},
	}
	res := l.Truncate(r, 10000)
	if res.WasTruncated {
		t.Error("report within budget must not be touched")
	}
	if res.TokensBefore != res.TokensAfter {
		t.Errorf("tokens changed: %d -> %d", res.TokensBefore, res.TokensAfter)
	}
	if len(res.PhasesApplied) != 0 {
		t.Errorf("PhasesApplied = %v, want none", res.PhasesApplied)
	}
	if r.Passed == nil {
		t.Error("passed section dropped without need")
	}
}

func TestLateDropsPassedFirstAndStops(t *testing.T) {
	l := NewLate(nil)

	r := &Report{
		Summary:  RunSummary{Total: 12, Passed: 10, Failed: 1, Skipped: 1},
		Passed:   paddedSummaries("TestPassed", 10, 100),
		Skipped:  []TestSummary{{Name: "TestSkippedOne"}},
		Failures: []Failure{{Name: "TestCheckout", Message: "Error: total mismatch"}},
	}
	res := l.Truncate(r, 150)
	if !res.WasTruncated {
		t.Fatal("WasTruncated = false")
	}
	if r.Passed != nil {
		t.Error("passed section should be dropped")
	}
	if len(r.Skipped) != 1 {
		t.Error("skipped section dropped although the budget was already met")
	}
	if len(r.Failures) != 1 || r.Failures[0].Message != "Error: total mismatch" {
		t.Error("failures touched although the budget was already met")
	}
	if len(res.PhasesApplied) != 1 || res.PhasesApplied[0] != "drop-passed" {
		t.Errorf("PhasesApplied = %v, want [drop-passed]", res.PhasesApplied)
	}
	if res.DroppedPassed != 10 {
		t.Errorf("DroppedPassed = %d, want 10", res.DroppedPassed)
	}
	if res.TokensAfter > 150 {
		t.Errorf("TokensAfter = %d, want <= 150", res.TokensAfter)
	}
}

func TestLateDropsSkippedAfterPassed(t *testing.T) {
	l := NewLate(nil)

	r := &Report{
		Summary:  RunSummary{Total: 16, Passed: 10, Failed: 1, Skipped: 5},
		Passed:   paddedSummaries("TestPassed", 10, 100),
		Skipped:  paddedSummaries("TestSkipped", 5, 100),
		Failures: []Failure{{Name: "TestCheckout", Message: "Error: total mismatch",
			Console: []ConsoleSection{{Category: "log", Content: "short log line"}}}},
	}
	res := l.Truncate(r, 100)
	if r.Passed != nil || r.Skipped != nil {
		t.Error("both low-value sections should be dropped")
	}
	if got := r.Failures[0].Console[0].Content; got != "short log line" {
		t.Errorf("failure console modified to %q although phase 1 sufficed", got)
	}
	want := []string{"drop-passed", "drop-skipped"}
	if len(res.PhasesApplied) != 2 || res.PhasesApplied[0] != want[0] || res.PhasesApplied[1] != want[1] {
		t.Errorf("PhasesApplied = %v, want %v", res.PhasesApplied, want)
	}
}

func TestLateCapsFailureCategories(t *testing.T) {
	l := NewLate(nil)

	stack := "Error: oversized"
	for i := 0; i < 15; i++ {
		stack += "\n    at frame" + strings.Repeat("f", i%3) + " (src/app.js:1:1)"
	}
	r := &Report{
		Summary: RunSummary{Total: 1, Failed: 1},
		Failures: []Failure{{
			Name:    "TestBig",
			Message: "Error: too much output",
			Console: []ConsoleSection{
				{Category: "debug", Content: strings.Repeat("d", 3000)},
				{Category: "error", Content: strings.Repeat("x", 4900) + "FINAL LINE"},
			},
			StackTrace:  stack,
			Expected:    strings.Repeat("E", 500),
			Actual:      strings.Repeat("A", 500),
			CodeContext: strings.Repeat("c", 1000),
		}},
	}
	res := l.Truncate(r, 900)
	if !res.WasTruncated {
		t.Fatal("WasTruncated = false")
	}
	if len(res.PhasesApplied) != 1 || res.PhasesApplied[0] != "cap-failures" {
		t.Errorf("PhasesApplied = %v, want [cap-failures]", res.PhasesApplied)
	}

	f := r.Failures[0]
	for _, sec := range f.Console {
		if sec.Category == "debug" {
			t.Error("debug output should be dropped entirely")
		}
	}
	var errSec *ConsoleSection
	for i := range f.Console {
		if f.Console[i].Category == "error" {
			errSec = &f.Console[i]
		}
	}
	if errSec == nil {
		t.Fatal("error section dropped")
	}
	if !strings.HasPrefix(errSec.Content, "[earlier output truncated]") {
		t.Error("capped section missing truncation marker")
	}
	if !strings.HasSuffix(errSec.Content, "FINAL LINE") {
		t.Error("tail of error output lost; the end is the valuable part")
	}
	if len(errSec.Content) > 2000+len("[earlier output truncated]\n") {
		t.Errorf("error section %d bytes, want <= cap", len(errSec.Content))
	}
	if !strings.Contains(f.StackTrace, "5 more frame(s)") {
		t.Errorf("stack not capped to 10 frames: %q", f.StackTrace)
	}
	if !strings.Contains(f.StackTrace, "Error: oversized") {
		t.Error("stack header dropped")
	}
	if len(f.Expected) > 203 || !strings.HasSuffix(f.Expected, "...") {
		t.Errorf("expected value not capped: %d bytes", len(f.Expected))
	}
	if len(f.CodeContext) > 403 {
		t.Errorf("code context not capped: %d bytes", len(f.CodeContext))
	}
}

func TestLateDropsExcessFailuresLast(t *testing.T) {
	l := NewLate(nil)

	failures := make([]Failure, 8)
	for i := range failures {
		failures[i] = Failure{
			Name:    strings.Repeat("n", 300) + string(rune('a'+i)),
			Message: "Error: irreducible",
		}
	}
	r := &Report{
		Summary:  RunSummary{Total: 8, Failed: 8},
		Failures: failures,
	}
	res := l.Truncate(r, 300)
	if len(r.Failures) != 5 {
		t.Fatalf("kept %d failures, want 5", len(r.Failures))
	}
	if res.DroppedFailed != 3 {
		t.Errorf("DroppedFailed = %d, want 3", res.DroppedFailed)
	}
	last := res.PhasesApplied[len(res.PhasesApplied)-1]
	if last != "drop-failures" {
		t.Errorf("dropping failures must be the final phase, got %v", res.PhasesApplied)
	}
	if len(r.Warnings) == 0 {
		t.Error("dropped failures should leave a warning in the report")
	}
}

func TestCapFrames(t *testing.T) {
	stack := "TypeError: bad"
	for i := 0; i < 6; i++ {
		stack += "\n    at fn (src/a.js:1:1)"
	}
	got := capFrames(stack, 4)
	if !strings.HasPrefix(got, "TypeError: bad") {
		t.Error("header dropped")
	}
	if !strings.Contains(got, "2 more frame(s)") {
		t.Errorf("omission marker missing: %q", got)
	}
	if got := capFrames("", 4); got != "" {
		t.Errorf("empty stack should stay empty, got %q", got)
	}
}
