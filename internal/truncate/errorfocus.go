package truncate

import (
	"sort"
	"strings"

	"github.com/hansjm10/testsift/internal/priority"
	"github.com/hansjm10/testsift/internal/tokens"
)

// ErrorFocused builds context windows around error, assertion and failure
// lines and greedily keeps the best-scoring windows. The first error line is
// always included.
type ErrorFocused struct {
	// ContextBefore/ContextAfter size the window around each error line.
	ContextBefore int
	ContextAfter  int
}

// NewErrorFocused returns an ErrorFocused with 2 lines of leading and 3
// lines of trailing context.
func NewErrorFocused() *ErrorFocused {
	return &ErrorFocused{ContextBefore: 2, ContextAfter: 3}
}

// Name implements Strategy.
func (s *ErrorFocused) Name() string { return "error-focused" }

// Priority implements Strategy.
func (s *ErrorFocused) Priority() int { return 40 }

// CanTruncate implements Strategy: applicable when the content carries
// error or assertion signal.
func (s *ErrorFocused) CanTruncate(content string, tctx *Context) bool {
	if tctx != nil && (tctx.ContentType == priority.ContentError || tctx.ContentType == priority.ContentAssertion) {
		return true
	}
	return errorMarkerRe.MatchString(content) || assertionMarkerRe.MatchString(content)
}

// EstimateSavings implements Strategy.
func (s *ErrorFocused) EstimateSavings(content string, maxTokens int) int {
	saved := tokens.EstimateTokens(content) - maxTokens
	if saved < 0 {
		return 0
	}
	return saved
}

// Truncate implements Strategy.
func (s *ErrorFocused) Truncate(content string, maxTokens int, _ *Context) (*Result, error) {
	original := tokens.EstimateTokens(content)
	lines := strings.Split(content, "\n")

	windows := s.errorWindows(lines)
	if len(windows) == 0 {
		return &Result{
			Content:    content,
			TokenCount: original,
			Warnings:   []string{"error-focused: no error lines found"},
		}, nil
	}

	// The first error window is guaranteed, even if it alone busts the
	// budget; remaining windows are taken best-first while they fit.
	budget := maxTokens
	chosen := []block{windows[0]}
	budget -= blockTokens(lines, windows[0])

	rest := make([]block, len(windows)-1)
	copy(rest, windows[1:])
	sort.Slice(rest, func(i, j int) bool { return rest[i].score > rest[j].score })
	for _, w := range rest {
		cost := blockTokens(lines, w)
		if cost > budget {
			continue
		}
		chosen = append(chosen, w)
		budget -= cost
	}
	sort.Slice(chosen, func(i, j int) bool { return chosen[i].start < chosen[j].start })

	var sb strings.Builder
	prevEnd := -1
	for _, w := range chosen {
		if w.start > prevEnd+1 {
			sb.WriteString("...\n")
		}
		for i := w.start; i <= w.end; i++ {
			sb.WriteString(lines[i])
			sb.WriteString("\n")
		}
		prevEnd = w.end
	}
	if prevEnd < len(lines)-1 {
		sb.WriteString("...")
	}
	assembled := strings.TrimSuffix(sb.String(), "\n")

	result := &Result{
		Content:      assembled,
		TokenCount:   tokens.EstimateTokens(assembled),
		WasTruncated: true,
		StrategyUsed: s.Name(),
	}
	result.TokensSaved = original - result.TokenCount
	return result, nil
}

// errorWindows returns merged context windows around error lines, in
// positional order.
func (s *ErrorFocused) errorWindows(lines []string) []block {
	var windows []block
	for i, line := range lines {
		score := 0
		switch {
		case errorMarkerRe.MatchString(line):
			score = 100
		case assertionMarkerRe.MatchString(line):
			score = 80
		default:
			continue
		}
		start, end := i-s.ContextBefore, i+s.ContextAfter
		if start < 0 {
			start = 0
		}
		if end > len(lines)-1 {
			end = len(lines) - 1
		}
		if n := len(windows); n > 0 && start <= windows[n-1].end+1 {
			// Overlapping windows merge.
			if end > windows[n-1].end {
				windows[n-1].end = end
			}
			if score > windows[n-1].score {
				windows[n-1].score = score
			}
			continue
		}
		windows = append(windows, block{start: start, end: end, score: score})
	}
	return windows
}
