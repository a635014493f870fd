// Package capture isolates console output per concurrently-running test and
// tears buffers down after a grace period.
package capture

import (
	"fmt"
	"sync"
	"time"

	"github.com/hansjm10/testsift/internal/dedup"
)

// Origin records how an event reached a buffer.
type Origin string

const (
	// OriginIntercepted marks output routed through the patched console.
	OriginIntercepted Origin = "intercepted"
	// OriginTask marks output flushed explicitly via Ingest.
	OriginTask Origin = "task"
)

// DedupInfo is attached to the first occurrence of a repeated line after
// the stop-time replay through the deduplication cache.
type DedupInfo struct {
	Count     int       `json:"count"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
	Sources   []string  `json:"sources,omitempty"`
}

// ConsoleEvent is one captured console line, owned exclusively by a single
// per-test buffer.
type ConsoleEvent struct {
	Level     dedup.Level `json:"level"`
	Text      string      `json:"text"`
	Origin    Origin      `json:"origin"`
	ElapsedMs int64       `json:"elapsed_ms,omitempty"`
	Timestamp time.Time   `json:"timestamp,omitempty"`
	TestID    string      `json:"test_id,omitempty"`
	Dedup     *DedupInfo  `json:"dedup,omitempty"`
}

// BufferLimits bounds a per-test buffer.
type BufferLimits struct {
	MaxBytes int `toml:"max_bytes"`
	MaxLines int `toml:"max_lines"`
}

// DefaultBufferLimits returns the standard per-test bounds.
func DefaultBufferLimits() BufferLimits {
	return BufferLimits{MaxBytes: 256 * 1024, MaxLines: 1000}
}

// Buffer is a bounded, ordered list of console events for one test. On the
// first overflow it appends exactly one truncation marker and drops
// everything afterwards.
type Buffer struct {
	mu         sync.Mutex
	limits     BufferLimits
	events     []ConsoleEvent
	totalBytes int
	truncated  bool
	seenKeys   map[string]struct{}
}

// NewBuffer creates a buffer with the given limits.
func NewBuffer(limits BufferLimits) *Buffer {
	return &Buffer{
		limits:   limits,
		seenKeys: make(map[string]struct{}),
	}
}

// AddOptions carries the optional parameters of Add.
type AddOptions struct {
	Timestamp time.Time
	ElapsedMs int64
	TestID    string
	// DedupKey, when non-empty, is checked against the buffer's per-buffer
	// seen set: a key already recorded in this buffer drops the line.
	DedupKey string
	// Duplicate marks a line the caller already knows is a repeat.
	Duplicate bool
}

// Add appends a console line. Returns false when the line was dropped:
// buffer already truncated, over the byte/line limit, a known duplicate, or
// a dedup key this buffer has already recorded. Byte accounting uses the
// UTF-8 byte length of the serialized text.
func (b *Buffer) Add(level dedup.Level, args []any, origin Origin, opts AddOptions) bool {
	text := FormatArgs(args)
	return b.AddText(level, text, origin, opts)
}

// AddText is Add for pre-serialized text.
func (b *Buffer) AddText(level dedup.Level, text string, origin Origin, opts AddOptions) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.truncated {
		return false
	}
	if opts.Duplicate {
		return false
	}
	if opts.DedupKey != "" {
		if _, seen := b.seenKeys[opts.DedupKey]; seen {
			return false
		}
	}

	newBytes := len(text)
	if b.totalBytes+newBytes > b.limits.MaxBytes || len(b.events) >= b.limits.MaxLines {
		b.events = append(b.events, ConsoleEvent{
			Level:     dedup.LevelLog,
			Text:      fmt.Sprintf("[output truncated: limits reached (%d bytes / %d lines)]", b.limits.MaxBytes, b.limits.MaxLines),
			Origin:    origin,
			Timestamp: opts.Timestamp,
			TestID:    opts.TestID,
		})
		b.truncated = true
		return false
	}

	if opts.DedupKey != "" {
		b.seenKeys[opts.DedupKey] = struct{}{}
	}
	b.events = append(b.events, ConsoleEvent{
		Level:     level,
		Text:      text,
		Origin:    origin,
		ElapsedMs: opts.ElapsedMs,
		Timestamp: opts.Timestamp,
		TestID:    opts.TestID,
	})
	b.totalBytes += newBytes
	return true
}

// Events returns a copy of the buffered events in order.
func (b *Buffer) Events() []ConsoleEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]ConsoleEvent, len(b.events))
	copy(out, b.events)
	return out
}

// Len returns the number of buffered events.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}

// TotalBytes returns the accumulated byte count of accepted text.
func (b *Buffer) TotalBytes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.totalBytes
}

// Truncated reports whether the buffer hit its limits.
func (b *Buffer) Truncated() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.truncated
}
