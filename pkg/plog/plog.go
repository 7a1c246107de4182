// Package plog is the process-wide structured logger. Console output is colorized
// with tint and split by level between stdout and stderr; an optional sink (the
// log file) receives every record as plain slog text.
package plog

import (
	"context"
	"io"
	"log/slog"
	"math"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

// Log levels. LevelNotice sits between Debug and Info and is used for
// per-entry detail that is too chatty for Info but useful when tracing a pass.
const (
	LevelDebug  = slog.LevelDebug
	LevelNotice = slog.Level(-2)
	LevelInfo   = slog.LevelInfo
	LevelWarn   = slog.LevelWarn
	LevelError  = slog.LevelError
)

// LevelDispatchHandler is a slog.Handler that writes log records to different
// handlers based on the record's level. INFO and below go to one handler,
// while WARNING and above go to another.
type LevelDispatchHandler struct {
	stdoutHandler slog.Handler
	stderrHandler slog.Handler
}

// Enabled checks if the level is enabled for either of the underlying handlers.
func (h *LevelDispatchHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.stdoutHandler.Enabled(ctx, level) || h.stderrHandler.Enabled(ctx, level)
}

// Handle dispatches the record to the appropriate handler.
func (h *LevelDispatchHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelWarn {
		return h.stderrHandler.Handle(ctx, r)
	}
	return h.stdoutHandler.Handle(ctx, r)
}

// WithAttrs returns a new LevelDispatchHandler with the given attributes added.
func (h *LevelDispatchHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &LevelDispatchHandler{
		stdoutHandler: h.stdoutHandler.WithAttrs(attrs),
		stderrHandler: h.stderrHandler.WithAttrs(attrs),
	}
}

// WithGroup returns a new LevelDispatchHandler with the given group.
func (h *LevelDispatchHandler) WithGroup(name string) slog.Handler {
	return &LevelDispatchHandler{
		stdoutHandler: h.stdoutHandler.WithGroup(name),
		stderrHandler: h.stderrHandler.WithGroup(name),
	}
}

// MultiHandler forwards every record to all handlers that accept its level.
type MultiHandler struct {
	handlers []slog.Handler
}

// NewMultiHandler creates a MultiHandler over the given handlers.
func NewMultiHandler(handlers ...slog.Handler) *MultiHandler {
	return &MultiHandler{handlers: handlers}
}

func (h *MultiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *MultiHandler) Handle(ctx context.Context, r slog.Record) error {
	var err error
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, r.Level) {
			if e := handler.Handle(ctx, r.Clone()); e != nil {
				err = e
			}
		}
	}
	return err
}

func (h *MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithAttrs(attrs)
	}
	return NewMultiHandler(handlers...)
}

func (h *MultiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithGroup(name)
	}
	return NewMultiHandler(handlers...)
}

var (
	level     = new(slog.LevelVar)
	quietMode atomic.Bool // Use an atomic bool for safe concurrent reads.

	mu             sync.Mutex
	consoleHandler slog.Handler
	sinkHandler    slog.Handler
	defaultLogger  atomic.Pointer[slog.Logger]
	sinkLogger     atomic.Pointer[slog.Logger]
)

// replaceLevel renders the custom NOTICE level by name instead of "DEBUG+2".
func replaceLevel(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey && len(groups) == 0 {
		if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelNotice {
			a.Value = slog.StringValue("NOTICE")
		}
	}
	return a
}

func newTextHandler(w io.Writer) slog.Handler {
	return slog.NewTextHandler(w, &slog.HandlerOptions{Level: level, ReplaceAttr: replaceLevel})
}

func newTintHandler(f *os.File) slog.Handler {
	return tint.NewHandler(f, &tint.Options{
		Level:       level,
		TimeFormat:  "2006-01-02T15:04:05.000Z07:00",
		NoColor:     !isatty.IsTerminal(f.Fd()),
		ReplaceAttr: replaceLevel,
	})
}

// rebuild recomposes the default and sink loggers. Callers must hold mu.
func rebuild() {
	if sinkHandler == nil {
		defaultLogger.Store(slog.New(consoleHandler))
		sinkLogger.Store(slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)})))
		return
	}
	defaultLogger.Store(slog.New(NewMultiHandler(consoleHandler, sinkHandler)))
	sinkLogger.Store(slog.New(sinkHandler))
}

func init() {
	level.Set(LevelInfo)
	mu.Lock()
	defer mu.Unlock()
	consoleHandler = &LevelDispatchHandler{
		stdoutHandler: newTintHandler(os.Stdout),
		stderrHandler: newTintHandler(os.Stderr),
	}
	rebuild()
}

// SetOutput redirects the console output, primarily for testing.
func SetOutput(w io.Writer) {
	// When redirecting output for tests, ensure quiet mode is off
	// so that all levels are written to the provided writer.
	quietMode.Store(false)
	mu.Lock()
	defer mu.Unlock()
	consoleHandler = newTextHandler(w)
	rebuild()
}

// AttachSink adds w as a second destination that receives every record.
// Passing nil detaches the current sink.
func AttachSink(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	if w == nil {
		sinkHandler = nil
	} else {
		sinkHandler = newTextHandler(w)
	}
	rebuild()
}

// Sink returns a logger that writes only to the attached sink. Without a sink
// it discards everything.
func Sink() *slog.Logger {
	return sinkLogger.Load()
}

// SetLevel sets the minimum level for console and sink.
func SetLevel(l slog.Level) {
	level.Set(l)
}

// LevelFromString maps a level name to its slog.Level, defaulting to Info.
func LevelFromString(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "notice":
		return LevelNotice
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// IsValidLevel reports whether s names a known level.
func IsValidLevel(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug", "notice", "info", "warn", "warning", "error":
		return true
	}
	return false
}

// SetQuiet enables or disables quiet mode for the global logger.
// In quiet mode, INFO level logs are suppressed.
func SetQuiet(quiet bool) {
	quietMode.Store(quiet)
}

// IsQuiet returns true if the global logger is in quiet mode.
func IsQuiet() bool {
	return quietMode.Load()
}

// Debug logs a debug message.
func Debug(msg string, args ...any) {
	defaultLogger.Load().Debug(msg, args...)
}

// Notice logs a message at the NOTICE level.
func Notice(msg string, args ...any) {
	defaultLogger.Load().Log(context.Background(), LevelNotice, msg, args...)
}

// Info logs an informational message.
func Info(msg string, args ...any) {
	if quietMode.Load() {
		return
	}
	defaultLogger.Load().Info(msg, args...)
}

// Warn logs a warning message.
func Warn(msg string, args ...any) {
	defaultLogger.Load().Warn(msg, args...)
}

// Error logs an error message.
func Error(msg string, args ...any) {
	defaultLogger.Load().Error(msg, args...)
}
