// Package truncate enforces token budgets on content fragments through a
// pluggable, priority-aware strategy system.
package truncate

import (
	"github.com/hansjm10/testsift/internal/priority"
)

// Context is the read-only value threaded through a single truncation call.
// It is never shared or mutated across calls.
type Context struct {
	Model             string
	MaxTokens         int
	ContentType       priority.ContentType
	Priority          priority.Priority
	PreserveStructure bool
	Metadata          map[string]string
}

// Result reports the outcome of one truncation.
type Result struct {
	Content      string   `json:"content"`
	TokenCount   int      `json:"token_count"`
	TokensSaved  int      `json:"tokens_saved"`
	WasTruncated bool     `json:"was_truncated"`
	StrategyUsed string   `json:"strategy_used,omitempty"`
	Warnings     []string `json:"warnings,omitempty"`
}

// Strategy is the common interface all truncation strategies implement.
// Priority orders strategies when several can handle the same content
// (higher runs first).
type Strategy interface {
	Name() string
	Priority() int
	CanTruncate(content string, tctx *Context) bool
	Truncate(content string, maxTokens int, tctx *Context) (*Result, error)
	EstimateSavings(content string, maxTokens int) int
}
