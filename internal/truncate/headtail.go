package truncate

import (
	"fmt"
	"strings"

	"github.com/hansjm10/testsift/internal/tokens"
)

// HeadTail keeps a ratio of lines from the start and end of the content,
// joined by an omission marker. It is the generic fallback strategy: lowest
// dispatch priority, applicable to everything.
type HeadTail struct {
	// HeadRatio is the fraction of kept lines taken from the head;
	// the remainder comes from the tail.
	HeadRatio float64
}

// NewHeadTail returns a HeadTail with an even head/tail split.
func NewHeadTail() *HeadTail {
	return &HeadTail{HeadRatio: 0.5}
}

// Name implements Strategy.
func (s *HeadTail) Name() string { return "head-tail" }

// Priority implements Strategy.
func (s *HeadTail) Priority() int { return 10 }

// CanTruncate implements Strategy: head/tail applies to any non-empty
// content.
func (s *HeadTail) CanTruncate(content string, _ *Context) bool {
	return content != ""
}

// EstimateSavings implements Strategy.
func (s *HeadTail) EstimateSavings(content string, maxTokens int) int {
	saved := tokens.EstimateTokens(content) - maxTokens
	if saved < 0 {
		return 0
	}
	return saved
}

// Truncate shrinks the kept head/tail line counts iteratively until the
// assembled output fits maxTokens. When keeping head plus tail would cover
// nearly all of the content anyway, it refuses and returns the content
// unchanged.
func (s *HeadTail) Truncate(content string, maxTokens int, _ *Context) (*Result, error) {
	original := tokens.EstimateTokens(content)
	lines := strings.Split(content, "\n")
	total := len(lines)

	ratio := s.HeadRatio
	if ratio <= 0 || ratio >= 1 {
		ratio = 0.5
	}

	var assembled string
	kept := total - 1
	for ; kept >= 2; kept-- {
		head := int(float64(kept) * ratio)
		if head < 1 {
			head = 1
		}
		tail := kept - head
		if tail < 1 {
			tail = 1
			head = kept - 1
		}
		omitted := total - head - tail
		if omitted < 1 {
			continue
		}
		assembled = strings.Join(lines[:head], "\n") +
			fmt.Sprintf("\n... %d line(s) omitted ...\n", omitted) +
			strings.Join(lines[total-tail:], "\n")
		if tokens.EstimateTokens(assembled) <= maxTokens {
			break
		}
	}

	if kept >= int(float64(total)*0.9) {
		// Nearly nothing would be removed; not worth replacing content
		// with a marker.
		return &Result{
			Content:    content,
			TokenCount: original,
			Warnings:   []string{"head-tail: content too small to benefit from truncation"},
		}, nil
	}

	result := &Result{
		Content:      assembled,
		TokenCount:   tokens.EstimateTokens(assembled),
		WasTruncated: true,
		StrategyUsed: s.Name(),
	}
	result.TokensSaved = original - result.TokenCount
	if result.TokenCount > maxTokens {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("head-tail: minimum head+tail still exceeds budget (%d > %d tokens)", result.TokenCount, maxTokens))
	}
	return result, nil
}
