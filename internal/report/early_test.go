package report

import (
	"strings"
	"testing"

	"github.com/hansjm10/testsift/internal/priority"
)

func TestEarlyReturnsUnchangedWhenContentFits(t *testing.T) {
	e := NewEarly(ModeSmart)

	content := "just a short line"
	res := e.Truncate(content, 100, priority.ContentConsole)
	if res.WasTruncated {
		t.Error("content within budget must not be truncated")
	}
	if res.Content != content {
		t.Errorf("Content = %q, want unchanged", res.Content)
	}
}

func TestEarlyTinyBudgetPlaceholder(t *testing.T) {
	e := NewEarly(ModeSmart)

	content := strings.Repeat("lots of output here\n", 50)
	first := e.Truncate(content, 5, priority.ContentConsole)
	second := e.Truncate(content+"more", 3, priority.ContentError)

	if first.Content != tinyBudgetPlaceholder || second.Content != tinyBudgetPlaceholder {
		t.Errorf("tiny budgets must yield the fixed placeholder, got %q / %q",
			first.Content, second.Content)
	}
	if !first.WasTruncated || first.StrategyUsed != "placeholder" {
		t.Errorf("placeholder result mislabeled: %+v", first)
	}
}

func TestEarlySimpleKeepsHeadAndTail(t *testing.T) {
	e := NewEarly(ModeSimple)

	content := "HEAD-" + strings.Repeat("a", 400) + "-TAIL"
	res := e.Truncate(content, 20, priority.ContentConsole)
	if !res.WasTruncated {
		t.Fatal("WasTruncated = false")
	}
	if res.StrategyUsed != string(ModeSimple) {
		t.Errorf("StrategyUsed = %q", res.StrategyUsed)
	}
	if !strings.HasPrefix(res.Content, "HEAD-") {
		t.Error("head of content dropped")
	}
	if !strings.HasSuffix(res.Content, "-TAIL") {
		t.Error("tail of content dropped")
	}
	if !strings.Contains(res.Content, "\n...\n") {
		t.Error("omission marker missing")
	}
	if res.TokenCount > 20 {
		t.Errorf("TokenCount = %d exceeds budget", res.TokenCount)
	}
}

func TestEarlySmartKeepsImportantLines(t *testing.T) {
	e := NewEarly(ModeSmart)

	lines := make([]string, 40)
	for i := range lines {
		lines[i] = "routine setup chatter"
	}
	lines[25] = "Error: fixture teardown failed"
	content := strings.Join(lines, "\n")

	res := e.Truncate(content, 40, priority.ContentConsole)
	if res.StrategyUsed != "smart" {
		t.Errorf("StrategyUsed = %q", res.StrategyUsed)
	}
	if !strings.Contains(res.Content, "Error: fixture teardown failed") {
		t.Error("important line dropped")
	}
}

func TestEarlySmartFallsBackToSimple(t *testing.T) {
	e := NewEarly(ModeSmart)

	lines := make([]string, 40)
	for i := range lines {
		lines[i] = "nothing important on this line"
	}
	res := e.Truncate(strings.Join(lines, "\n"), 30, priority.ContentConsole)
	if res.StrategyUsed != string(ModeSimple) {
		t.Errorf("StrategyUsed = %q, want simple fallback", res.StrategyUsed)
	}
}

func TestEarlyPriorityFill(t *testing.T) {
	e := NewEarly(ModePriority)

	lines := make([]string, 30)
	for i := range lines {
		lines[i] = "background noise without signal"
	}
	lines[12] = "Error: connection reset by peer"
	content := strings.Join(lines, "\n")

	res := e.Truncate(content, 40, priority.ContentConsole)
	if !res.WasTruncated {
		t.Fatal("WasTruncated = false")
	}
	if res.StrategyUsed != string(ModePriority) {
		t.Errorf("StrategyUsed = %q", res.StrategyUsed)
	}
	if !strings.Contains(res.Content, "Error: connection reset by peer") {
		t.Error("highest-scoring line dropped")
	}
}

func TestEarlyErrorContentTakesStackPath(t *testing.T) {
	e := NewEarly(ModeSmart)

	trace := "Error: boom\n"
	for i := 0; i < 20; i++ {
		trace += "    at helper (node_modules/lib/index.js:10:1)\n"
	}
	trace += "    at run (src/main.js:3:1)"

	res := e.Truncate(trace, 30, priority.ContentError)
	if res.StrategyUsed != "stack-trace" {
		t.Errorf("StrategyUsed = %q, want stack-trace", res.StrategyUsed)
	}
	if !strings.Contains(res.Content, "src/main.js") {
		t.Error("user frame dropped")
	}
}
