package capture

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/hansjm10/testsift/internal/dedup"
)

// Levels lists every console level in severity order.
var Levels = []dedup.Level{
	dedup.LevelDebug,
	dedup.LevelLog,
	dedup.LevelInfo,
	dedup.LevelWarn,
	dedup.LevelError,
}

// EmitFunc writes one console line for a level.
type EmitFunc func(ctx context.Context, args ...any)

// Console is the process console surface: a table of per-level emit
// functions. It is the one place global mutable state is unavoidable, kept
// as a thin, separately patchable boundary.
type Console struct {
	mu   sync.RWMutex
	out  io.Writer
	emit map[dedup.Level]EmitFunc
}

// NewConsole creates a console writing to out (os.Stderr when nil).
func NewConsole(out io.Writer) *Console {
	if out == nil {
		out = os.Stderr
	}
	c := &Console{
		out:  out,
		emit: make(map[dedup.Level]EmitFunc, len(Levels)),
	}
	for _, lv := range Levels {
		c.emit[lv] = c.defaultEmit(lv)
	}
	return c
}

func (c *Console) defaultEmit(level dedup.Level) EmitFunc {
	return func(_ context.Context, args ...any) {
		fmt.Fprintf(c.out, "[%s] %s\n", level, FormatArgs(args))
	}
}

func (c *Console) get(level dedup.Level) EmitFunc {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.emit[level]
}

func (c *Console) set(level dedup.Level, fn EmitFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.emit[level] = fn
}

// Debug writes a debug-level line.
func (c *Console) Debug(ctx context.Context, args ...any) { c.get(dedup.LevelDebug)(ctx, args...) }

// Log writes a log-level line.
func (c *Console) Log(ctx context.Context, args ...any) { c.get(dedup.LevelLog)(ctx, args...) }

// Info writes an info-level line.
func (c *Console) Info(ctx context.Context, args ...any) { c.get(dedup.LevelInfo)(ctx, args...) }

// Warn writes a warn-level line.
func (c *Console) Warn(ctx context.Context, args ...any) { c.get(dedup.LevelWarn)(ctx, args...) }

// Error writes an error-level line.
func (c *Console) Error(ctx context.Context, args ...any) { c.get(dedup.LevelError)(ctx, args...) }

// Interceptor owns the original-vs-wrapped emit table for a console.
// Patch and Unpatch are idempotent; Unpatch restores the exact original
// function references.
type Interceptor struct {
	mu        sync.Mutex
	console   *Console
	coord     *Coordinator
	logger    *slog.Logger
	originals map[dedup.Level]EmitFunc
}

// NewInterceptor wires a console surface to a coordinator.
func NewInterceptor(console *Console, coord *Coordinator, logger *slog.Logger) *Interceptor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Interceptor{
		console: console,
		coord:   coord,
		logger:  logger,
	}
}

// Patch wraps every console level so intercepted calls are routed to the
// ambient test's buffer before the original behavior runs. Routing failures
// are caught and logged; the original console output always still executes.
// Calling Patch on an already patched console is a no-op.
func (i *Interceptor) Patch() {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.originals != nil {
		return
	}
	i.originals = make(map[dedup.Level]EmitFunc, len(Levels))
	for _, lv := range Levels {
		orig := i.console.get(lv)
		i.originals[lv] = orig
		level := lv
		i.console.set(lv, func(ctx context.Context, args ...any) {
			i.route(ctx, level, args)
			orig(ctx, args...)
		})
	}
}

func (i *Interceptor) route(ctx context.Context, level dedup.Level, args []any) {
	defer func() {
		if r := recover(); r != nil {
			i.logger.Error("console interception failed", "level", level, "panic", r)
		}
	}()
	i.coord.Write(ctx, level, args...)
}

// Unpatch restores the original emit functions. Safe to call repeatedly.
func (i *Interceptor) Unpatch() {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.originals == nil {
		return
	}
	for lv, orig := range i.originals {
		i.console.set(lv, orig)
	}
	i.originals = nil
}

// Patched reports whether the console is currently wrapped.
func (i *Interceptor) Patched() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.originals != nil
}
