package dedup

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Level classifies a console line.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
	LevelLog   Level = "log"
)

// LogEntry is the immutable input to deduplication.
type LogEntry struct {
	Message   string
	Level     Level
	Timestamp time.Time
	TestID    string
}

// Entry tracks one deduplication key: the first message seen for the key
// plus occurrence bookkeeping. Mutated in place on repeats.
type Entry struct {
	Key               string
	Level             Level
	OriginalMessage   string
	NormalizedMessage string
	FirstSeen         time.Time
	LastSeen          time.Time
	Count             int
	Sources           map[string]struct{}

	// seq orders entries by insertion so LRU eviction breaks lastSeen ties
	// first-inserted-first-evicted.
	seq uint64
}

// clone returns a copy safe to hand to callers.
func (e *Entry) clone() Entry {
	c := *e
	if e.Sources != nil {
		c.Sources = make(map[string]struct{}, len(e.Sources))
		for k := range e.Sources {
			c.Sources[k] = struct{}{}
		}
	}
	return c
}

// SourceIDs returns the tracked test IDs in sorted order.
func (e *Entry) SourceIDs() []string {
	if len(e.Sources) == 0 {
		return nil
	}
	ids := make([]string, 0, len(e.Sources))
	for id := range e.Sources {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Stats reports cumulative cache behavior.
type Stats struct {
	TotalProcessed      int `json:"total_processed"`
	UniqueEntries       int `json:"unique_entries"`
	DuplicatesDetected  int `json:"duplicates_detected"`
	Evictions           int `json:"evictions"`
	CurrentCacheEntries int `json:"current_cache_entries"`
}

// Config configures a Cache.
type Config struct {
	Enabled      bool             `toml:"enabled"`
	MaxEntries   int              `toml:"max_entries"`
	TrackSources bool             `toml:"track_sources"`
	Normalizer   NormalizerConfig `toml:"normalizer"`
}

// DefaultConfig returns the standard cache configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:      true,
		MaxEntries:   1000,
		TrackSources: true,
		Normalizer:   DefaultNormalizerConfig(),
	}
}

// Cache is a bounded keyed store of (level, content hash) -> Entry. Safe for
// concurrent use; the single mutex covers lookups, inserts and eviction.
type Cache struct {
	mu      sync.Mutex
	cfg     Config
	entries map[string]*Entry
	nextSeq uint64

	processed  int
	duplicates int
	evictions  int
}

// NewCache validates the configuration and constructs a cache.
// A non-positive MaxEntries is a configuration error.
func NewCache(cfg Config) (*Cache, error) {
	if cfg.MaxEntries <= 0 {
		return nil, fmt.Errorf("dedup: max_entries must be positive, got %d", cfg.MaxEntries)
	}
	return &Cache{
		cfg:     cfg,
		entries: make(map[string]*Entry),
	}, nil
}

// Key derives the deduplication key for an entry: level plus a stable hash
// of the normalized message. Pure and deterministic for a fixed normalizer
// configuration.
func (c *Cache) Key(e LogEntry) string {
	return string(e.Level) + ":" + HashContent(c.cfg.Normalizer.Normalize(e.Message))
}

// IsDuplicate reports whether an equivalent entry has been seen before.
// The first call for a key inserts a new Entry with Count=1 and returns
// false; later calls return true and update the entry's bookkeeping. When
// the cache is disabled it always returns false and records nothing.
func (c *Cache) IsDuplicate(e LogEntry) bool {
	if !c.cfg.Enabled {
		return false
	}

	seen := e.Timestamp
	if seen.IsZero() {
		seen = time.Now()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.processed++
	key := c.Key(e)

	if existing, ok := c.entries[key]; ok {
		existing.Count++
		if seen.After(existing.LastSeen) {
			existing.LastSeen = seen
		}
		if c.cfg.TrackSources && e.TestID != "" {
			existing.Sources[e.TestID] = struct{}{}
		}
		c.duplicates++
		return true
	}

	if len(c.entries) >= c.cfg.MaxEntries {
		c.evictOldest()
	}

	entry := &Entry{
		Key:               key,
		Level:             e.Level,
		OriginalMessage:   e.Message,
		NormalizedMessage: c.cfg.Normalizer.Normalize(e.Message),
		FirstSeen:         seen,
		LastSeen:          seen,
		Count:             1,
		Sources:           make(map[string]struct{}),
		seq:               c.nextSeq,
	}
	c.nextSeq++
	if c.cfg.TrackSources && e.TestID != "" {
		entry.Sources[e.TestID] = struct{}{}
	}
	c.entries[key] = entry
	return false
}

// evictOldest removes the entry with the smallest LastSeen, breaking ties by
// insertion order. O(n) scan: eviction is rare relative to lookups.
// Caller holds c.mu.
func (c *Cache) evictOldest() {
	var victim *Entry
	for _, e := range c.entries {
		if victim == nil {
			victim = e
			continue
		}
		if e.LastSeen.Before(victim.LastSeen) ||
			(e.LastSeen.Equal(victim.LastSeen) && e.seq < victim.seq) {
			victim = e
		}
	}
	if victim != nil {
		delete(c.entries, victim.Key)
		c.evictions++
	}
}

// Metadata returns a copy of the entry for a key, or ok=false when the key
// is unknown (never an error).
func (c *Cache) Metadata(key string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return Entry{}, false
	}
	return e.clone(), true
}

// AllEntries returns copies of every cached entry in insertion order.
func (c *Cache) AllEntries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

// Size returns the current number of cached entries.
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Enabled reports whether deduplication is active.
func (c *Cache) Enabled() bool {
	return c.cfg.Enabled
}

// Stats returns cumulative counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	unique := c.processed - c.duplicates
	return Stats{
		TotalProcessed:      c.processed,
		UniqueEntries:       unique,
		DuplicatesDetected:  c.duplicates,
		Evictions:           c.evictions,
		CurrentCacheEntries: len(c.entries),
	}
}

// Clear resets all entries and counters.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*Entry)
	c.nextSeq = 0
	c.processed = 0
	c.duplicates = 0
	c.evictions = 0
}
