package report

import (
	"sort"
	"strings"

	"github.com/hansjm10/testsift/internal/priority"
	"github.com/hansjm10/testsift/internal/tokens"
	"github.com/hansjm10/testsift/internal/truncate"
)

// EarlyMode selects the per-fragment reduction heuristic applied while the
// report is assembled.
type EarlyMode string

const (
	// ModeSimple keeps a proportional head and tail by characters.
	ModeSimple EarlyMode = "simple"
	// ModeSmart keeps keyword-scored lines with context, falling back to
	// simple when nothing scores.
	ModeSmart EarlyMode = "smart"
	// ModePriority scales the budget by the fragment's preservation ratio
	// and fills it important-line-first.
	ModePriority EarlyMode = "priority"
)

// minHeuristicBudget is the token budget below which heuristics are
// pointless; smaller budgets get a fixed placeholder.
const minHeuristicBudget = 10

// tinyBudgetPlaceholder replaces content when the budget cannot fit any
// meaningful excerpt. It is the same string for any input.
const tinyBudgetPlaceholder = "[output omitted]"

// Early reduces individual report fragments at assembly time.
type Early struct {
	Mode  EarlyMode
	stack *truncate.StackTrace
	smart *truncate.Smart
}

// NewEarly returns an Early truncator; mode defaults to ModeSmart.
func NewEarly(mode EarlyMode) *Early {
	if mode == "" {
		mode = ModeSmart
	}
	return &Early{
		Mode:  mode,
		stack: truncate.NewStackTrace(),
		smart: truncate.NewSmart(),
	}
}

// Truncate reduces one fragment to maxTokens. Error-category fragments that
// contain stack frames take the frame-aware path regardless of mode.
func (e *Early) Truncate(content string, maxTokens int, contentType priority.ContentType) *truncate.Result {
	count := tokens.EstimateTokens(content)
	if content == "" || count <= maxTokens {
		return &truncate.Result{Content: content, TokenCount: count}
	}

	if maxTokens < minHeuristicBudget {
		return &truncate.Result{
			Content:      tinyBudgetPlaceholder,
			TokenCount:   tokens.EstimateTokens(tinyBudgetPlaceholder),
			TokensSaved:  count - tokens.EstimateTokens(tinyBudgetPlaceholder),
			WasTruncated: true,
			StrategyUsed: "placeholder",
		}
	}

	tctx := &truncate.Context{
		MaxTokens:   maxTokens,
		ContentType: contentType,
		Priority:    priority.Determine(content, contentType),
	}

	if (contentType == priority.ContentError || contentType == priority.ContentStackTrace) &&
		e.stack.CanTruncate(content, nil) {
		if res, err := e.stack.Truncate(content, maxTokens, tctx); err == nil && res.WasTruncated {
			return res
		}
	}

	switch e.Mode {
	case ModeSmart:
		if res, err := e.smart.Truncate(content, maxTokens, tctx); err == nil &&
			res.WasTruncated && res.StrategyUsed == e.smart.Name() {
			return res
		}
		return e.simple(content, maxTokens, count)
	case ModePriority:
		return e.priorityFill(content, maxTokens, count, tctx.Priority)
	default:
		return e.simple(content, maxTokens, count)
	}
}

// simple keeps a character-proportional head and tail joined by a marker.
func (e *Early) simple(content string, maxTokens, original int) *truncate.Result {
	const marker = "\n...\n"
	allowed := maxTokens*4 - len(marker)
	if allowed < 2 {
		allowed = 2
	}
	head := allowed * 6 / 10
	tail := allowed - head
	head = runeSafeCut(content, head)
	out := content[:head] + marker + content[len(content)-runeSafeTail(content, tail):]
	return &truncate.Result{
		Content:      out,
		TokenCount:   tokens.EstimateTokens(out),
		TokensSaved:  original - tokens.EstimateTokens(out),
		WasTruncated: true,
		StrategyUsed: string(ModeSimple),
	}
}

// priorityFill shrinks the budget by the fragment's preservation ratio and
// then keeps the highest-scoring lines that fit, in original order.
func (e *Early) priorityFill(content string, maxTokens, original int, p priority.Priority) *truncate.Result {
	budget := int(float64(maxTokens) * priority.PreservationRatio(p))
	if budget < 1 {
		budget = 1
	}

	lines := strings.Split(content, "\n")
	type scored struct {
		index int
		line  string
		score int
	}
	ranked := make([]scored, len(lines))
	for i, line := range lines {
		ranked[i] = scored{index: i, line: line, score: truncate.ScoreLine(line, priority.ContentConsole)}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	kept := make(map[int]bool)
	remaining := budget
	for _, s := range ranked {
		cost := tokens.EstimateTokens(s.line) + 1
		if cost > remaining {
			continue
		}
		kept[s.index] = true
		remaining -= cost
	}
	if len(kept) == 0 {
		return e.simple(content, budget, original)
	}

	var sb strings.Builder
	gap := false
	for i, line := range lines {
		if !kept[i] {
			gap = true
			continue
		}
		if gap && sb.Len() > 0 {
			sb.WriteString("...\n")
		}
		gap = false
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	out := strings.TrimSuffix(sb.String(), "\n")
	return &truncate.Result{
		Content:      out,
		TokenCount:   tokens.EstimateTokens(out),
		TokensSaved:  original - tokens.EstimateTokens(out),
		WasTruncated: true,
		StrategyUsed: string(ModePriority),
	}
}

// runeSafeCut returns a byte offset <= n that does not split a rune.
func runeSafeCut(s string, n int) int {
	if n >= len(s) {
		return len(s)
	}
	for n > 0 && s[n]&0xC0 == 0x80 {
		n--
	}
	return n
}

// runeSafeTail returns a byte length <= n for a suffix that starts on a rune
// boundary.
func runeSafeTail(s string, n int) int {
	if n >= len(s) {
		return len(s)
	}
	start := len(s) - n
	for start < len(s) && s[start]&0xC0 == 0x80 {
		start++
	}
	return len(s) - start
}
