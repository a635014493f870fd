package truncate

import (
	"regexp"
	"sort"
	"strings"

	"github.com/hansjm10/testsift/internal/priority"
	"github.com/hansjm10/testsift/internal/tokens"
)

var (
	errorMarkerRe     = regexp.MustCompile(`(?i)\b(error|exception|fatal|panic|fail(ed|ure)?)\b`)
	assertionMarkerRe = regexp.MustCompile(`(?i)\b(assert(ion)?|expect(ed)?|actual|received)\b`)
	warningMarkerRe   = regexp.MustCompile(`(?i)\b(warn(ing)?|deprecat(ed|ion))\b`)
	codeMarkerRe      = regexp.MustCompile(`(?i)\b(func|function|class|struct|interface|def|return)\b`)
	numberRe          = regexp.MustCompile(`\d`)
	quotedRe          = regexp.MustCompile(`"[^"]+"|'[^']+'`)
)

// ScoreLine rates a single line's diagnostic importance.
func ScoreLine(line string, contentType priority.ContentType) int {
	score := 0
	switch {
	case errorMarkerRe.MatchString(line):
		score += 100
	case assertionMarkerRe.MatchString(line):
		score += 80
	case warningMarkerRe.MatchString(line):
		score += 40
	case codeMarkerRe.MatchString(line):
		score += 30
	}
	if numberRe.MatchString(line) {
		score += 10
	}
	if quotedRe.MatchString(line) {
		score += 10
	}
	trimmed := strings.TrimSpace(line)
	switch contentType {
	case priority.ContentStackTrace:
		if strings.HasPrefix(trimmed, "at ") {
			score += 20
		}
	case priority.ContentError, priority.ContentAssertion:
		if strings.Contains(trimmed, ":") {
			score += 5
		}
	}
	return score
}

// block is a contiguous run of selected lines with the score of its best
// line.
type block struct {
	start, end int // inclusive line indices
	score      int
}

// Smart selects the highest-scoring lines with one line of surrounding
// context, greedily filling the budget with the best context blocks. Any
// internal failure falls back to head/tail.
type Smart struct {
	fallback *HeadTail
}

// NewSmart returns a Smart strategy with a head/tail fallback.
func NewSmart() *Smart {
	return &Smart{fallback: NewHeadTail()}
}

// Name implements Strategy.
func (s *Smart) Name() string { return "smart" }

// Priority implements Strategy.
func (s *Smart) Priority() int { return 30 }

// CanTruncate implements Strategy: smart selection needs enough lines to
// choose between.
func (s *Smart) CanTruncate(content string, _ *Context) bool {
	return strings.Count(content, "\n") >= 2
}

// EstimateSavings implements Strategy.
func (s *Smart) EstimateSavings(content string, maxTokens int) int {
	saved := tokens.EstimateTokens(content) - maxTokens
	if saved < 0 {
		return 0
	}
	return saved
}

// Truncate implements Strategy.
func (s *Smart) Truncate(content string, maxTokens int, tctx *Context) (*Result, error) {
	original := tokens.EstimateTokens(content)
	lines := strings.Split(content, "\n")

	contentType := priority.ContentGeneric
	if tctx != nil {
		contentType = tctx.ContentType
	}

	blocks := selectBlocks(lines, contentType)
	if len(blocks) == 0 {
		// Nothing scored as important; head/tail does better than an
		// arbitrary pick.
		return s.fallback.Truncate(content, maxTokens, tctx)
	}

	// Greedy fill by score, then re-order chosen blocks by position.
	sort.Slice(blocks, func(i, j int) bool { return blocks[i].score > blocks[j].score })

	const markerOverhead = 2 // tokens per omission marker
	budget := maxTokens
	var chosen []block
	for _, b := range blocks {
		cost := blockTokens(lines, b) + markerOverhead
		if cost > budget {
			continue
		}
		chosen = append(chosen, b)
		budget -= cost
	}
	if len(chosen) == 0 {
		return s.fallback.Truncate(content, maxTokens, tctx)
	}
	sort.Slice(chosen, func(i, j int) bool { return chosen[i].start < chosen[j].start })

	var sb strings.Builder
	prevEnd := -1
	for _, b := range chosen {
		if b.start > prevEnd+1 {
			sb.WriteString("...\n")
		}
		for i := b.start; i <= b.end; i++ {
			sb.WriteString(lines[i])
			sb.WriteString("\n")
		}
		prevEnd = b.end
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

// minSelectScore keeps lines whose only signal is an incidental number or
// quote out of the selection; such features boost keyword matches rather
// than qualify on their own.
const minSelectScore = 30

// selectBlocks finds important lines, expands each match with one line of
// context either side, and merges overlapping ranges.
func selectBlocks(lines []string, contentType priority.ContentType) []block {
	var blocks []block
	for i, line := range lines {
		score := ScoreLine(line, contentType)
		if score < minSelectScore {
			continue
		}
		start, end := i-1, i+1
		if start < 0 {
			start = 0
		}
		if end > len(lines)-1 {
			end = len(lines) - 1
		}
		if n := len(blocks); n > 0 && start <= blocks[n-1].end+1 {
			if end > blocks[n-1].end {
				blocks[n-1].end = end
			}
			if score > blocks[n-1].score {
				blocks[n-1].score = score
			}
			continue
		}
		blocks = append(blocks, block{start: start, end: end, score: score})
	}
	return blocks
}

func blockTokens(lines []string, b block) int {
	n := 0
	for i := b.start; i <= b.end; i++ {
		n += tokens.EstimateTokens(lines[i]) + 1
	}
	return n
}
