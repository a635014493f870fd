package dedup

import (
	"testing"
	"time"
)

func newTestCache(t *testing.T, cfg Config) *Cache {
	t.Helper()
	c, err := NewCache(cfg)
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	return c
}

func TestNewCacheValidation(t *testing.T) {
	for _, max := range []int{0, -1, -100} {
		if _, err := NewCache(Config{Enabled: true, MaxEntries: max}); err == nil {
			t.Errorf("NewCache with MaxEntries=%d should fail", max)
		}
	}
}

func TestIsDuplicateFirstFalseThenTrue(t *testing.T) {
	c := newTestCache(t, DefaultConfig())

	e := LogEntry{Message: "connection refused", Level: LevelError, TestID: "t1"}
	if c.IsDuplicate(e) {
		t.Fatal("first occurrence reported as duplicate")
	}
	for i := 0; i < 4; i++ {
		if !c.IsDuplicate(e) {
			t.Fatalf("occurrence %d not reported as duplicate", i+2)
		}
	}

	meta, ok := c.Metadata(c.Key(e))
	if !ok {
		t.Fatal("metadata missing for known key")
	}
	if meta.Count != 5 {
		t.Errorf("Count = %d, want 5", meta.Count)
	}
}

func TestNormalizedVariantsShareKey(t *testing.T) {
	c := newTestCache(t, DefaultConfig())

	if c.IsDuplicate(LogEntry{Message: "Request  Failed", Level: LevelWarn}) {
		t.Fatal("first occurrence reported as duplicate")
	}
	// ANSI, whitespace and case variance normalize to the same content.
	if !c.IsDuplicate(LogEntry{Message: "\x1b[33mrequest failed\x1b[0m", Level: LevelWarn}) {
		t.Error("normalized variant not detected as duplicate")
	}
}

func TestLevelsNeverShareKeys(t *testing.T) {
	c := newTestCache(t, DefaultConfig())

	msg := "identical message"
	levels := []Level{LevelDebug, LevelInfo, LevelWarn, LevelError, LevelLog}
	for _, lv := range levels {
		if c.IsDuplicate(LogEntry{Message: msg, Level: lv}) {
			t.Errorf("level %s reported as duplicate of another level", lv)
		}
	}
	if c.Size() != len(levels) {
		t.Errorf("Size = %d, want %d", c.Size(), len(levels))
	}
}

func TestEvictionKeepsSizeBounded(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxEntries = 3
	c := newTestCache(t, cfg)

	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	msgs := []string{"first", "second", "third", "fourth"}
	for i, m := range msgs {
		c.IsDuplicate(LogEntry{Message: m, Level: LevelInfo, Timestamp: base.Add(time.Duration(i) * time.Second)})
	}

	if c.Size() != 3 {
		t.Fatalf("Size = %d, want 3 after inserting 4 uniques", c.Size())
	}

	// The first message had the smallest lastSeen and must be gone.
	if _, ok := c.Metadata(c.Key(LogEntry{Message: "first", Level: LevelInfo})); ok {
		t.Error("oldest entry survived eviction")
	}

	// Re-inserting the evicted message counts as a new unique entry.
	reinserted := LogEntry{Message: "first", Level: LevelInfo, Timestamp: base.Add(10 * time.Second)}
	if c.IsDuplicate(reinserted) {
		t.Error("evicted message reported as duplicate on re-insert")
	}
	meta, ok := c.Metadata(c.Key(reinserted))
	if !ok {
		t.Fatal("re-inserted entry missing")
	}
	if meta.Count != 1 {
		t.Errorf("re-inserted Count = %d, want 1", meta.Count)
	}

	stats := c.Stats()
	if stats.Evictions != 2 {
		t.Errorf("Evictions = %d, want 2", stats.Evictions)
	}
}

func TestEvictionTieBreaksByInsertionOrder(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxEntries = 2
	c := newTestCache(t, cfg)

	ts := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	c.IsDuplicate(LogEntry{Message: "alpha", Level: LevelInfo, Timestamp: ts})
	c.IsDuplicate(LogEntry{Message: "beta", Level: LevelInfo, Timestamp: ts})
	c.IsDuplicate(LogEntry{Message: "gamma", Level: LevelInfo, Timestamp: ts})

	if _, ok := c.Metadata(c.Key(LogEntry{Message: "alpha", Level: LevelInfo})); ok {
		t.Error("first-inserted entry should be evicted on lastSeen tie")
	}
	if _, ok := c.Metadata(c.Key(LogEntry{Message: "beta", Level: LevelInfo})); !ok {
		t.Error("second-inserted entry unexpectedly evicted")
	}
}

func TestDisabledCacheDoesNothing(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = false
	c := newTestCache(t, cfg)

	e := LogEntry{Message: "repeated", Level: LevelInfo}
	for i := 0; i < 3; i++ {
		if c.IsDuplicate(e) {
			t.Fatal("disabled cache reported a duplicate")
		}
	}
	if c.Size() != 0 {
		t.Errorf("disabled cache stored %d entries", c.Size())
	}
	if got := c.Stats().TotalProcessed; got != 0 {
		t.Errorf("disabled cache processed %d entries", got)
	}
}

func TestSourceTracking(t *testing.T) {
	c := newTestCache(t, DefaultConfig())

	c.IsDuplicate(LogEntry{Message: "shared line", Level: LevelLog, TestID: "suite/a"})
	c.IsDuplicate(LogEntry{Message: "shared line", Level: LevelLog, TestID: "suite/b"})
	c.IsDuplicate(LogEntry{Message: "shared line", Level: LevelLog, TestID: "suite/a"})

	meta, ok := c.Metadata(c.Key(LogEntry{Message: "shared line", Level: LevelLog}))
	if !ok {
		t.Fatal("metadata missing")
	}
	ids := meta.SourceIDs()
	if len(ids) != 2 || ids[0] != "suite/a" || ids[1] != "suite/b" {
		t.Errorf("SourceIDs = %v, want [suite/a suite/b]", ids)
	}
}

func TestMetadataUnknownKey(t *testing.T) {
	c := newTestCache(t, DefaultConfig())
	if _, ok := c.Metadata("error:deadbeefdeadbeef"); ok {
		t.Error("unknown key returned metadata")
	}
}

func TestLastSeenAdvances(t *testing.T) {
	c := newTestCache(t, DefaultConfig())

	t0 := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	e := LogEntry{Message: "tick", Level: LevelInfo, Timestamp: t0}
	c.IsDuplicate(e)
	e.Timestamp = t0.Add(5 * time.Second)
	c.IsDuplicate(e)

	meta, _ := c.Metadata(c.Key(e))
	if !meta.FirstSeen.Equal(t0) {
		t.Errorf("FirstSeen = %v, want %v", meta.FirstSeen, t0)
	}
	if !meta.LastSeen.Equal(t0.Add(5 * time.Second)) {
		t.Errorf("LastSeen = %v, want %v", meta.LastSeen, t0.Add(5*time.Second))
	}
}

func TestClearResetsEverything(t *testing.T) {
	c := newTestCache(t, DefaultConfig())

	e := LogEntry{Message: "once", Level: LevelInfo}
	c.IsDuplicate(e)
	c.IsDuplicate(e)
	c.Clear()

	if c.Size() != 0 {
		t.Errorf("Size after Clear = %d", c.Size())
	}
	if s := c.Stats(); s.TotalProcessed != 0 || s.DuplicatesDetected != 0 {
		t.Errorf("stats not reset: %+v", s)
	}
	if c.IsDuplicate(e) {
		t.Error("entry still known after Clear")
	}
}

func TestStats(t *testing.T) {
	c := newTestCache(t, DefaultConfig())

	c.IsDuplicate(LogEntry{Message: "a", Level: LevelInfo})
	c.IsDuplicate(LogEntry{Message: "a", Level: LevelInfo})
	c.IsDuplicate(LogEntry{Message: "b", Level: LevelInfo})

	s := c.Stats()
	if s.TotalProcessed != 3 {
		t.Errorf("TotalProcessed = %d, want 3", s.TotalProcessed)
	}
	if s.UniqueEntries != 2 {
		t.Errorf("UniqueEntries = %d, want 2", s.UniqueEntries)
	}
	if s.DuplicatesDetected != 1 {
		t.Errorf("DuplicatesDetected = %d, want 1", s.DuplicatesDetected)
	}
	if s.CurrentCacheEntries != 2 {
		t.Errorf("CurrentCacheEntries = %d, want 2", s.CurrentCacheEntries)
	}
}
