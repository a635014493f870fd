package truncate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/hansjm10/testsift/internal/priority"
	"github.com/hansjm10/testsift/internal/tokens"
)

// frameRe matches "at fn (file:line:col)", "at file:line:col" and common
// variants such as "at fn (native)".
var frameRe = regexp.MustCompile(`^\s*at\s+(?:(?P<fn>[^(\s][^(]*?)\s+\((?P<loc>[^)]*)\)|(?P<bareloc>\S+))\s*$`)

type frameKind int

const (
	frameUser frameKind = iota
	frameDependency
)

type stackFrame struct {
	raw   string
	loc   string
	kind  frameKind
	index int
}

// StackTrace understands stack frame structure: the error header is always
// kept, user-code frames are prioritized with a guaranteed minimum, and
// remaining budget goes to the highest-value dependency frames. Omitted
// runs become a "N more frame(s)" marker in their original position.
type StackTrace struct {
	// MinUserFrames is the number of user-code frames kept even when the
	// budget disagrees.
	MinUserFrames int
}

// NewStackTrace returns a StackTrace guaranteeing 3 user frames.
func NewStackTrace() *StackTrace {
	return &StackTrace{MinUserFrames: 3}
}

// Name implements Strategy.
func (s *StackTrace) Name() string { return "stack-trace" }

// Priority implements Strategy.
func (s *StackTrace) Priority() int { return 50 }

// CanTruncate implements Strategy.
func (s *StackTrace) CanTruncate(content string, tctx *Context) bool {
	if tctx != nil && tctx.ContentType == priority.ContentStackTrace {
		return true
	}
	for _, line := range strings.Split(content, "\n") {
		if frameRe.MatchString(line) {
			return true
		}
	}
	return false
}

// EstimateSavings implements Strategy.
func (s *StackTrace) EstimateSavings(content string, maxTokens int) int {
	saved := tokens.EstimateTokens(content) - maxTokens
	if saved < 0 {
		return 0
	}
	return saved
}

// Truncate implements Strategy.
func (s *StackTrace) Truncate(content string, maxTokens int, _ *Context) (*Result, error) {
	original := tokens.EstimateTokens(content)
	lines := strings.Split(content, "\n")

	var header []string
	var frames []stackFrame
	for _, line := range lines {
		m := frameRe.FindStringSubmatch(line)
		if m == nil {
			if len(frames) == 0 {
				header = append(header, line)
			}
			continue
		}
		loc := m[frameRe.SubexpIndex("loc")]
		if loc == "" {
			loc = m[frameRe.SubexpIndex("bareloc")]
		}
		frames = append(frames, stackFrame{
			raw:   line,
			loc:   loc,
			kind:  classifyFrame(loc),
			index: len(frames),
		})
	}

	if len(frames) == 0 {
		return &Result{
			Content:    content,
			TokenCount: original,
			Warnings:   []string{"stack-trace: no frames recognized"},
		}, nil
	}

	headerText := strings.Join(header, "\n")
	budget := maxTokens - tokens.EstimateTokens(headerText)

	keep := make([]bool, len(frames))
	userKept := 0
	for _, f := range frames {
		if f.kind != frameUser {
			continue
		}
		cost := tokens.EstimateTokens(f.raw) + 1
		if userKept < s.MinUserFrames || cost <= budget {
			keep[f.index] = true
			userKept++
			budget -= cost
		}
	}
	// Dependency frames scored by proximity to the error (earlier is
	// better).
	for _, f := range frames {
		if f.kind != frameDependency {
			continue
		}
		cost := tokens.EstimateTokens(f.raw) + 1
		if cost <= budget {
			keep[f.index] = true
			budget -= cost
		}
	}

	var sb strings.Builder
	if headerText != "" {
		sb.WriteString(headerText)
		sb.WriteString("\n")
	}
	omitted := 0
	flush := func() {
		if omitted > 0 {
			fmt.Fprintf(&sb, "    ... %d more frame(s)\n", omitted)
			omitted = 0
		}
	}
	for i, f := range frames {
		if keep[i] {
			flush()
			sb.WriteString(f.raw)
			sb.WriteString("\n")
		} else {
			omitted++
		}
	}
	flush()
	assembled := strings.TrimSuffix(sb.String(), "\n")

	result := &Result{
		Content:      assembled,
		TokenCount:   tokens.EstimateTokens(assembled),
		WasTruncated: true,
		StrategyUsed: s.Name(),
	}
	result.TokensSaved = original - result.TokenCount
	if result.TokensSaved < 0 {
		result.TokensSaved = 0
		result.WasTruncated = false
		result.Content = content
		result.TokenCount = original
	}
	return result, nil
}

// classifyFrame labels a frame location as user code or dependency code.
func classifyFrame(loc string) frameKind {
	switch {
	case strings.Contains(loc, "node_modules"),
		strings.HasPrefix(loc, "node:"),
		strings.HasPrefix(loc, "internal/"),
		loc == "native":
		return frameDependency
	default:
		return frameUser
	}
}
