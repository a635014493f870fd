package truncate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/hansjm10/testsift/internal/priority"
	"github.com/hansjm10/testsift/internal/tokens"
)

// FallbackStrategyName labels results produced by the last-resort
// character-ratio truncation.
const FallbackStrategyName = "aggressive-fallback"

// Options configures a single engine call.
type Options struct {
	// MaxTokens caps the model's effective budget when positive.
	MaxTokens   int
	ContentType priority.ContentType
	// Preferred orders specific strategies ahead of priority dispatch.
	Preferred []string
	// MaxAttempts bounds how many strategies are tried (default 3).
	MaxAttempts int
	// AggressiveFallback enables last-resort character truncation when no
	// strategy satisfies the budget.
	AggressiveFallback bool
	PreserveStructure  bool
}

// DefaultOptions returns the standard engine options.
func DefaultOptions() Options {
	return Options{
		MaxAttempts:        3,
		AggressiveFallback: true,
	}
}

// Stats accumulates engine behavior across calls. Counters move only on
// results with WasTruncated=true.
type Stats struct {
	TotalTruncations   int            `json:"total_truncations"`
	TotalTokensSaved   int            `json:"total_tokens_saved"`
	AverageTokensSaved float64        `json:"average_tokens_saved"`
	ByStrategy         map[string]int `json:"by_strategy"`
	ByContentType      map[string]int `json:"by_content_type"`
}

// Engine orchestrates strategy selection, retries, aggressive fallback and
// statistics.
type Engine struct {
	registry *Registry
	counter  tokens.Counter
	logger   *slog.Logger

	mu            sync.Mutex
	truncations   int
	tokensSaved   int
	byStrategy    map[string]int
	byContentType map[string]int
}

// NewEngine creates an engine. registry defaults to DefaultRegistry(),
// counter to the estimator, logger to slog.Default().
func NewEngine(registry *Registry, counter tokens.Counter, logger *slog.Logger) *Engine {
	if registry == nil {
		registry = DefaultRegistry()
	}
	if counter == nil {
		counter = tokens.EstimateCounter{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		registry:      registry,
		counter:       counter,
		logger:        logger,
		byStrategy:    make(map[string]int),
		byContentType: make(map[string]int),
	}
}

// count measures content, falling back to the estimator when the exact
// counter fails.
func (e *Engine) count(ctx context.Context, content, model string) int {
	n, err := e.counter.CountTokens(ctx, content, model)
	if err != nil {
		e.logger.Debug("token counter failed, using estimate", "error", err)
		return tokens.EstimateTokens(content)
	}
	return n
}

// Truncate enforces the model's effective budget on content. Strategies are
// tried in dispatch order until one produces output that actually fits;
// otherwise the engine falls back to character-ratio truncation (when
// enabled) or returns the content unchanged with a failure warning.
func (e *Engine) Truncate(ctx context.Context, content, model string, opts Options) Result {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultOptions().MaxAttempts
	}
	if content == "" {
		return Result{}
	}

	budget := tokens.EffectiveMaxTokens(model, opts.MaxTokens)
	count := e.count(ctx, content, model)
	if count <= budget {
		return Result{Content: content, TokenCount: count}
	}

	tctx := &Context{
		Model:             model,
		MaxTokens:         budget,
		ContentType:       opts.ContentType,
		Priority:          priority.Determine(content, opts.ContentType),
		PreserveStructure: opts.PreserveStructure,
	}

	var warnings []string
	var closest *Result
	attempts := 0
	for _, strat := range e.registry.Select(content, tctx, opts.Preferred) {
		if attempts >= opts.MaxAttempts {
			break
		}
		attempts++

		res, err := strat.Truncate(content, budget, tctx)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", strat.Name(), err))
			e.logger.Debug("truncation strategy failed", "strategy", strat.Name(), "error", err)
			continue
		}
		if !res.WasTruncated {
			warnings = append(warnings, res.Warnings...)
			continue
		}

		// Verify the attempt actually fits before accepting it.
		measured := e.count(ctx, res.Content, model)
		res.TokenCount = measured
		res.TokensSaved = count - measured
		if measured <= budget {
			res.Warnings = append(res.Warnings, warnings...)
			e.record(res, opts.ContentType)
			return *res
		}
		if closest == nil || measured < closest.TokenCount {
			closest = res
		}
	}

	if !opts.AggressiveFallback {
		return Result{
			Content:    content,
			TokenCount: count,
			Warnings: append(warnings,
				fmt.Sprintf("no strategy satisfied the %d token budget; content returned unchanged", budget)),
		}
	}

	// Last resort: character-ratio truncation, applied to the closest
	// strategy attempt when one exists so its selection work is not lost.
	source := content
	if closest != nil {
		source = closest.Content
	}
	fallback := aggressiveTruncate(source, budget)
	result := Result{
		Content:      fallback,
		TokenCount:   e.count(ctx, fallback, model),
		TokensSaved:  count - tokens.EstimateTokens(fallback),
		WasTruncated: true,
		StrategyUsed: FallbackStrategyName,
		Warnings:     warnings,
	}
	e.record(&result, opts.ContentType)
	return result
}

// aggressiveTruncate cuts content to the character budget implied by
// maxTokens, preferring to end on a sentence or word boundary, and appends
// an explicit truncation marker.
func aggressiveTruncate(content string, maxTokens int) string {
	const marker = "\n...[content truncated]"
	allowed := maxTokens*4 - 3 - len(marker)
	if allowed <= 0 {
		return strings.TrimSpace(marker)
	}
	if len(content) <= allowed {
		return content
	}

	cut := allowed
	// Do not split a multi-byte rune.
	for cut > 0 && content[cut]&0xC0 == 0x80 {
		cut--
	}
	slice := content[:cut]
	if idx := strings.LastIndex(slice, ". "); idx >= allowed/2 {
		slice = slice[:idx+1]
	} else if idx := strings.LastIndexAny(slice, " \n\t"); idx >= allowed/2 {
		slice = slice[:idx]
	}
	return slice + marker
}

func (e *Engine) record(res *Result, contentType priority.ContentType) {
	if !res.WasTruncated {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.truncations++
	e.tokensSaved += res.TokensSaved
	e.byStrategy[res.StrategyUsed]++
	key := string(contentType)
	if key == "" {
		key = string(priority.ContentGeneric)
	}
	e.byContentType[key]++
}

// Stats returns a snapshot of cumulative counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := Stats{
		TotalTruncations: e.truncations,
		TotalTokensSaved: e.tokensSaved,
		ByStrategy:       make(map[string]int, len(e.byStrategy)),
		ByContentType:    make(map[string]int, len(e.byContentType)),
	}
	if e.truncations > 0 {
		s.AverageTokensSaved = float64(e.tokensSaved) / float64(e.truncations)
	}
	for k, v := range e.byStrategy {
		s.ByStrategy[k] = v
	}
	for k, v := range e.byContentType {
		s.ByContentType[k] = v
	}
	return s
}

// ResetStats zeroes the cumulative counters.
func (e *Engine) ResetStats() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.truncations = 0
	e.tokensSaved = 0
	e.byStrategy = make(map[string]int)
	e.byContentType = make(map[string]int)
}
