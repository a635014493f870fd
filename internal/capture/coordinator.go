package capture

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hansjm10/testsift/internal/dedup"
)

// TestContext identifies the test whose body is currently executing. It is
// threaded explicitly through context.Context rather than held in global
// state, so concurrently running tests never observe each other's buffers.
type TestContext struct {
	TestID    string
	StartTime time.Time
}

type ctxKey struct{}

// WithTest attaches a test context to ctx.
func WithTest(ctx context.Context, tc TestContext) context.Context {
	return context.WithValue(ctx, ctxKey{}, tc)
}

// TestFrom extracts the ambient test context, if any.
func TestFrom(ctx context.Context) (TestContext, bool) {
	tc, ok := ctx.Value(ctxKey{}).(TestContext)
	return tc, ok
}

// Config configures the capture coordinator.
type Config struct {
	// GracePeriod is the delay between StopCapture and buffer destruction,
	// admitting late asynchronous output the runner may still flush.
	GracePeriod time.Duration `toml:"grace_period"`
	Buffer      BufferLimits  `toml:"buffer"`
}

// DefaultConfig returns the standard coordinator configuration.
func DefaultConfig() Config {
	return Config{
		GracePeriod: 100 * time.Millisecond,
		Buffer:      DefaultBufferLimits(),
	}
}

// CaptureResult is the per-test output of StopCapture.
type CaptureResult struct {
	Entries    []ConsoleEvent `json:"entries"`
	Truncated  bool           `json:"truncated,omitempty"`
	TotalBytes int            `json:"total_bytes,omitempty"`
}

type captureState int

const (
	stateCapturing captureState = iota
	stateStoppedPendingCleanup
)

type testCapture struct {
	buf     *Buffer
	state   captureState
	started time.Time

	// gen invalidates scheduled cleanups: a cleanup only runs when the
	// generation it captured still matches. This is the sole race guard for
	// retried tests reusing a testID.
	gen   uint64
	timer *time.Timer
}

// Coordinator maps test IDs to per-test buffers, routes ambient console
// writes, and manages deferred buffer teardown.
type Coordinator struct {
	mu     sync.Mutex
	cfg    Config
	cache  *dedup.Cache
	logger *slog.Logger
	tests  map[string]*testCapture
}

// NewCoordinator creates a coordinator. cache may be nil to disable
// deduplication; logger defaults to slog.Default().
func NewCoordinator(cfg Config, cache *dedup.Cache, logger *slog.Logger) *Coordinator {
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = DefaultConfig().GracePeriod
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		cfg:    cfg,
		cache:  cache,
		logger: logger,
		tests:  make(map[string]*testCapture),
	}
}

// StartCapture begins (or resumes) capture for a test and returns the
// context value to thread through the test body. A pending cleanup for the
// same testID is invalidated. With forceNew the existing buffer is cleared
// first, so a retried attempt never mixes with stale data.
func (co *Coordinator) StartCapture(testID string, forceNew bool) TestContext {
	co.mu.Lock()
	defer co.mu.Unlock()

	tc, ok := co.tests[testID]
	if !ok {
		tc = &testCapture{
			buf:     NewBuffer(co.cfg.Buffer),
			started: time.Now(),
		}
		co.tests[testID] = tc
		return TestContext{TestID: testID, StartTime: tc.started}
	}

	tc.gen++
	if tc.timer != nil {
		tc.timer.Stop()
		tc.timer = nil
	}
	if forceNew {
		tc.buf = NewBuffer(co.cfg.Buffer)
		tc.started = time.Now()
	}
	tc.state = stateCapturing
	return TestContext{TestID: testID, StartTime: tc.started}
}

// Write routes an intercepted console call to the ambient test's buffer.
// Events with no ambient test context are dropped; callers that capture
// output outside the ambient mechanism use Ingest instead. Never panics.
func (co *Coordinator) Write(ctx context.Context, level dedup.Level, args ...any) (recorded bool) {
	defer func() {
		if r := recover(); r != nil {
			co.logger.Error("console routing failed", "level", level, "panic", r)
			recorded = false
		}
	}()

	tc, ok := TestFrom(ctx)
	if !ok {
		return false
	}
	now := time.Now()

	co.mu.Lock()
	active, ok := co.tests[tc.TestID]
	co.mu.Unlock()
	if !ok {
		return false
	}

	return active.buf.Add(level, args, OriginIntercepted, AddOptions{
		Timestamp: now,
		ElapsedMs: now.Sub(tc.StartTime).Milliseconds(),
		TestID:    tc.TestID,
	})
}

// Ingest records output captured outside the ambient-context mechanism,
// creating the buffer if needed. Like StartCapture it invalidates any
// pending cleanup for the testID.
func (co *Coordinator) Ingest(testID string, level dedup.Level, args []any, elapsed time.Duration) bool {
	co.mu.Lock()
	tc, ok := co.tests[testID]
	if !ok {
		tc = &testCapture{
			buf:     NewBuffer(co.cfg.Buffer),
			started: time.Now(),
		}
		co.tests[testID] = tc
	} else {
		tc.gen++
		if tc.timer != nil {
			tc.timer.Stop()
			tc.timer = nil
		}
		tc.state = stateCapturing
	}
	buf := tc.buf
	co.mu.Unlock()

	return buf.Add(level, args, OriginTask, AddOptions{
		Timestamp: time.Now(),
		ElapsedMs: elapsed.Milliseconds(),
		TestID:    testID,
	})
}

// StopCapture reads the test's events, collapses duplicates when a
// deduplicator is attached, and schedules buffer destruction after the
// grace period. Unknown test IDs yield an empty result.
func (co *Coordinator) StopCapture(testID string) CaptureResult {
	co.mu.Lock()
	tc, ok := co.tests[testID]
	if !ok {
		co.mu.Unlock()
		return CaptureResult{}
	}

	events := tc.buf.Events()
	result := CaptureResult{
		Truncated:  tc.buf.Truncated(),
		TotalBytes: tc.buf.TotalBytes(),
	}

	tc.state = stateStoppedPendingCleanup
	tc.gen++
	gen := tc.gen
	if tc.timer != nil {
		tc.timer.Stop()
	}
	tc.timer = time.AfterFunc(co.cfg.GracePeriod, func() {
		co.cleanup(testID, gen)
	})
	co.mu.Unlock()

	result.Entries = co.collapse(events)
	return result
}

// cleanup destroys a buffer once the grace period elapses, unless the
// generation advanced in the meantime (test restarted or ingested).
func (co *Coordinator) cleanup(testID string, gen uint64) {
	co.mu.Lock()
	defer co.mu.Unlock()

	tc, ok := co.tests[testID]
	if !ok {
		return
	}
	if tc.gen != gen || tc.state != stateStoppedPendingCleanup {
		co.logger.Debug("skipping stale buffer cleanup", "test_id", testID, "scheduled_gen", gen, "current_gen", tc.gen)
		return
	}
	delete(co.tests, testID)
}

// collapse replays events through the deduplication cache, keeping only the
// first occurrence per key in emission order and attaching repeat metadata
// to it when the key was seen more than once.
func (co *Coordinator) collapse(events []ConsoleEvent) []ConsoleEvent {
	if co.cache == nil || !co.cache.Enabled() {
		return events
	}

	out := make([]ConsoleEvent, 0, len(events))
	firstIndex := make(map[string]int)

	for _, ev := range events {
		entry := dedup.LogEntry{
			Message:   ev.Text,
			Level:     ev.Level,
			Timestamp: ev.Timestamp,
			TestID:    ev.TestID,
		}
		key := co.cache.Key(entry)
		co.cache.IsDuplicate(entry)
		if _, seen := firstIndex[key]; seen {
			continue
		}
		firstIndex[key] = len(out)
		out = append(out, ev)
	}

	for key, idx := range firstIndex {
		meta, ok := co.cache.Metadata(key)
		if !ok || meta.Count <= 1 {
			continue
		}
		out[idx].Dedup = &DedupInfo{
			Count:     meta.Count,
			FirstSeen: meta.FirstSeen,
			LastSeen:  meta.LastSeen,
			Sources:   meta.SourceIDs(),
		}
	}
	return out
}

// ClearBuffer destroys a test's buffer immediately, with no grace period.
func (co *Coordinator) ClearBuffer(testID string) {
	co.mu.Lock()
	defer co.mu.Unlock()
	tc, ok := co.tests[testID]
	if !ok {
		return
	}
	tc.gen++
	if tc.timer != nil {
		tc.timer.Stop()
	}
	delete(co.tests, testID)
}

// Reset synchronously cancels all pending cleanup timers and releases every
// buffer.
func (co *Coordinator) Reset() {
	co.mu.Lock()
	defer co.mu.Unlock()
	for id, tc := range co.tests {
		tc.gen++
		if tc.timer != nil {
			tc.timer.Stop()
		}
		delete(co.tests, id)
	}
}

// Active returns the number of live capture buffers.
func (co *Coordinator) Active() int {
	co.mu.Lock()
	defer co.mu.Unlock()
	return len(co.tests)
}
