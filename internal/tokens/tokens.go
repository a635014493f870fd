// Package tokens provides token budget computation and estimation for
// language model consumption limits.
package tokens

import "context"

// ModelLimits describes the token capacity of a target model.
type ModelLimits struct {
	ContextWindow int     // total tokens the model accepts
	SafetyMargin  float64 // fraction reserved for response headroom
}

// modelLimits maps known model identifiers to their capacity. Models not in
// the table fall back to defaultLimits.
var modelLimits = map[string]ModelLimits{
	"gpt-4":             {ContextWindow: 8192, SafetyMargin: 0.10},
	"gpt-4-turbo":       {ContextWindow: 128000, SafetyMargin: 0.10},
	"gpt-4o":            {ContextWindow: 128000, SafetyMargin: 0.10},
	"gpt-4o-mini":       {ContextWindow: 128000, SafetyMargin: 0.10},
	"gpt-3.5-turbo":     {ContextWindow: 16385, SafetyMargin: 0.10},
	"claude-3-opus":     {ContextWindow: 200000, SafetyMargin: 0.10},
	"claude-3-5-sonnet": {ContextWindow: 200000, SafetyMargin: 0.10},
	"claude-3-haiku":    {ContextWindow: 200000, SafetyMargin: 0.10},
	"gemini-1.5-pro":    {ContextWindow: 1000000, SafetyMargin: 0.05},
	"gemini-1.5-flash":  {ContextWindow: 1000000, SafetyMargin: 0.05},
}

// defaultLimits is the conservative fallback for unknown models.
var defaultLimits = ModelLimits{ContextWindow: 8192, SafetyMargin: 0.15}

// LimitsFor returns the capacity table entry for a model, falling back to
// the conservative default for unknown models.
func LimitsFor(model string) ModelLimits {
	if l, ok := modelLimits[model]; ok {
		return l
	}
	return defaultLimits
}

// EffectiveMaxTokens computes the usable token budget for a model: the
// context window (capped by customMax when customMax > 0) reduced by the
// model's safety margin. Pure: identical inputs always produce identical
// results within a process.
func EffectiveMaxTokens(model string, customMax int) int {
	limits := LimitsFor(model)
	window := limits.ContextWindow
	if customMax > 0 && customMax < window {
		window = customMax
	}
	return int(float64(window) * (1 - limits.SafetyMargin))
}

// EstimateTokens gives a cheap synchronous approximation of the token count
// of text (~4 characters per token, rounded up). The pipeline must behave
// correctly when only this estimator is available.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

// Counter counts tokens exactly for a specific model. Implementations live
// outside this module; only the integer-count contract is consumed here.
type Counter interface {
	CountTokens(ctx context.Context, text, model string) (int, error)
}

// CounterFunc adapts a function to the Counter interface.
type CounterFunc func(ctx context.Context, text, model string) (int, error)

// CountTokens calls f.
func (f CounterFunc) CountTokens(ctx context.Context, text, model string) (int, error) {
	return f(ctx, text, model)
}

// EstimateCounter is a Counter backed by EstimateTokens. It is the default
// when no model-specific tokenizer is supplied.
type EstimateCounter struct{}

// CountTokens returns the estimator's approximation and never fails.
func (EstimateCounter) CountTokens(_ context.Context, text, _ string) (int, error) {
	return EstimateTokens(text), nil
}
