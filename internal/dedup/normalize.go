// Package dedup collapses repeated console lines per (level, content) key
// with bounded, LRU-evicted memory.
package dedup

import (
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/charmbracelet/x/ansi"
	"github.com/zeebo/blake3"
)

var (
	// ISO-8601 timestamps, with optional fractional seconds and zone.
	isoTimestampRe = regexp.MustCompile(`\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}(?:\.\d+)?(?:Z|[+-]\d{2}:?\d{2})?`)
	// Unix timestamps: 13-digit millisecond values first so the 10-digit
	// pattern does not split them.
	unixMillisRe = regexp.MustCompile(`\b\d{13}\b`)
	unixSecsRe   = regexp.MustCompile(`\b\d{10}\b`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// NormalizerConfig selects which normalization steps run before hashing.
// Each step is optional; the zero value disables everything.
type NormalizerConfig struct {
	StripANSI          bool `toml:"strip_ansi"`
	StripTimestamps    bool `toml:"strip_timestamps"`
	CollapseWhitespace bool `toml:"collapse_whitespace"`
	Lowercase          bool `toml:"lowercase"`
}

// DefaultNormalizerConfig enables every normalization step.
func DefaultNormalizerConfig() NormalizerConfig {
	return NormalizerConfig{
		StripANSI:          true,
		StripTimestamps:    true,
		CollapseWhitespace: true,
		Lowercase:          true,
	}
}

// Normalize applies the configured steps to a message. Idempotent:
// Normalize(Normalize(x)) == Normalize(x).
func (c NormalizerConfig) Normalize(message string) string {
	s := message
	if c.StripANSI {
		s = ansi.Strip(s)
	}
	if c.StripTimestamps {
		s = isoTimestampRe.ReplaceAllString(s, "")
		s = unixMillisRe.ReplaceAllString(s, "")
		s = unixSecsRe.ReplaceAllString(s, "")
	}
	if c.CollapseWhitespace {
		s = whitespaceRe.ReplaceAllString(s, " ")
		s = strings.TrimSpace(s)
	}
	if c.Lowercase {
		s = strings.ToLower(s)
	}
	return s
}

// hashLength is the number of hex characters kept from the content hash.
// Stability matters here, not collision resistance.
const hashLength = 16

// HashContent returns a short stable hash of already-normalized content.
func HashContent(normalized string) string {
	sum := blake3.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])[:hashLength]
}
