// Package config loads and validates the pipeline configuration from TOML,
// layered as env > file > defaults. Invalid limits fail at load time, not
// at first use.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"

	"github.com/hansjm10/testsift/internal/capture"
	"github.com/hansjm10/testsift/internal/dedup"
	"github.com/hansjm10/testsift/internal/tokens"
)

// TruncationConfig tunes the truncation engine and the early/late passes.
type TruncationConfig struct {
	Model              string   `toml:"model"`
	MaxTokens          int      `toml:"max_tokens"` // 0 means the model's full window
	MaxAttempts        int      `toml:"max_attempts"`
	AggressiveFallback bool     `toml:"aggressive_fallback"`
	EarlyMode          string   `toml:"early_mode"` // simple, smart, priority
	Preferred          []string `toml:"preferred_strategies"`
}

// OutputConfig controls how the CLI writes the reduced report.
type OutputConfig struct {
	Format string `toml:"format"` // json or yaml
	Path   string `toml:"path"`   // empty means stdout
	Color  string `toml:"color"`  // auto, always, never
}

// Config is the root configuration.
type Config struct {
	Dedup      dedup.Config     `toml:"dedup"`
	Capture    capture.Config   `toml:"capture"`
	Truncation TruncationConfig `toml:"truncation"`
	Output     OutputConfig     `toml:"output"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Dedup:   dedup.DefaultConfig(),
		Capture: capture.DefaultConfig(),
		Truncation: TruncationConfig{
			Model:              "claude-3-5-sonnet",
			MaxAttempts:        3,
			AggressiveFallback: true,
			EarlyMode:          "smart",
		},
		Output: OutputConfig{
			Format: "json",
			Color:  "auto",
		},
	}
}

// DefaultPath returns ~/.config/testsift/config.toml, or the bare filename
// when the home directory cannot be resolved.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.toml"
	}
	return filepath.Join(home, ".config", "testsift", "config.toml")
}

// Load reads path (DefaultPath when empty) over the defaults, applies
// environment overrides, and validates the result. A missing file is not an
// error; a malformed one is.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	cfg := Default()
	if data, err := os.ReadFile(path); err == nil {
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv layers TESTSIFT_* variables over the file values.
func applyEnv(cfg *Config) {
	if v := os.Getenv("TESTSIFT_MODEL"); v != "" {
		cfg.Truncation.Model = v
	}
	if v := os.Getenv("TESTSIFT_MAX_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Truncation.MaxTokens = n
		}
	}
	if v := os.Getenv("TESTSIFT_DEDUP_ENABLED"); v != "" {
		cfg.Dedup.Enabled = v == "1" || v == "true"
	}
	if v := os.Getenv("TESTSIFT_FORMAT"); v != "" {
		cfg.Output.Format = v
	}
}

// Validate rejects impossible limits. It is the single fail-fast gate for
// configuration errors.
func (c *Config) Validate() error {
	if c.Dedup.MaxEntries <= 0 {
		return fmt.Errorf("config: dedup.max_entries must be positive, got %d", c.Dedup.MaxEntries)
	}
	if c.Capture.Buffer.MaxBytes <= 0 || c.Capture.Buffer.MaxLines <= 0 {
		return fmt.Errorf("config: capture.buffer limits must be positive, got %d bytes / %d lines",
			c.Capture.Buffer.MaxBytes, c.Capture.Buffer.MaxLines)
	}
	if c.Truncation.MaxTokens < 0 {
		return fmt.Errorf("config: truncation.max_tokens must not be negative, got %d", c.Truncation.MaxTokens)
	}
	if c.Truncation.MaxAttempts <= 0 {
		return fmt.Errorf("config: truncation.max_attempts must be positive, got %d", c.Truncation.MaxAttempts)
	}
	switch c.Truncation.EarlyMode {
	case "simple", "smart", "priority":
	default:
		return fmt.Errorf("config: unknown early_mode %q", c.Truncation.EarlyMode)
	}
	switch c.Output.Format {
	case "json", "yaml":
	default:
		return fmt.Errorf("config: output.format must be \"json\" or \"yaml\", got %q", c.Output.Format)
	}
	switch c.Output.Color {
	case "auto", "always", "never":
	default:
		return fmt.Errorf("config: output.color must be auto, always or never, got %q", c.Output.Color)
	}
	return nil
}

// EffectiveBudget resolves the truncation section to a concrete token
// budget.
func (c *Config) EffectiveBudget() int {
	return tokens.EffectiveMaxTokens(c.Truncation.Model, c.Truncation.MaxTokens)
}
