// Package priority classifies content fragments by diagnostic importance and
// supplies the preservation ratios truncation strategies size their budgets
// with.
package priority

import "regexp"

// Priority orders content from most to least preserved.
type Priority int

const (
	Critical Priority = iota
	High
	Medium
	Low
	Disposable
)

// String returns the canonical name of a priority.
func (p Priority) String() string {
	switch p {
	case Critical:
		return "critical"
	case High:
		return "high"
	case Medium:
		return "medium"
	case Low:
		return "low"
	case Disposable:
		return "disposable"
	default:
		return "unknown"
	}
}

// MoreImportant reports whether p outranks other.
func (p Priority) MoreImportant(other Priority) bool {
	return p < other
}

// ContentType tags what kind of fragment is being classified.
type ContentType string

const (
	ContentError      ContentType = "error"
	ContentStackTrace ContentType = "stack-trace"
	ContentConsole    ContentType = "console"
	ContentCode       ContentType = "code"
	ContentAssertion  ContentType = "assertion"
	ContentGeneric    ContentType = "generic"
)

// typeDefaults seeds classification per content type before rules run.
var typeDefaults = map[ContentType]Priority{
	ContentError:      Critical,
	ContentStackTrace: High,
	ContentAssertion:  High,
	ContentCode:       Medium,
	ContentConsole:    Low,
	ContentGeneric:    Low,
}

// rule upgrades (never downgrades) a fragment's priority when its pattern
// matches. Rules are evaluated in order; the first match wins.
type rule struct {
	pattern  *regexp.Regexp
	priority Priority
}

var rules = []rule{
	{regexp.MustCompile(`(?i)\b(error|exception|fatal|panic|fail(ed|ure)?)\b`), Critical},
	{regexp.MustCompile(`(?i)\b(assert(ion)?|expect(ed)?|actual)\b`), Critical},
	{regexp.MustCompile(`(?i)\b(func|function|class|struct|interface|def|module)\b`), High},
	{regexp.MustCompile(`(?i)\b(warn(ing)?|deprecat(ed|ion))\b`), Medium},
	{regexp.MustCompile(`(?i)\b(debug|verbose|trace)\b`), Low},
	{regexp.MustCompile(`^\s*\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}`), Disposable},
}

// Determine classifies a fragment: the per-type default, upgraded by the
// first matching rule.
func Determine(content string, contentType ContentType) Priority {
	p, ok := typeDefaults[contentType]
	if !ok {
		p = Low
	}
	for _, r := range rules {
		if r.pattern.MatchString(content) {
			if r.priority.MoreImportant(p) {
				p = r.priority
			}
			break
		}
	}
	return p
}

// preservationRatios is the fixed lookup table strategies use to size their
// output budget per priority.
var preservationRatios = map[Priority]float64{
	Critical:   0.9,
	High:       0.7,
	Medium:     0.5,
	Low:        0.3,
	Disposable: 0.1,
}

// PreservationRatio returns the fraction of allotted tokens a priority is
// entitled to keep.
func PreservationRatio(p Priority) float64 {
	if r, ok := preservationRatios[p]; ok {
		return r
	}
	return preservationRatios[Low]
}
