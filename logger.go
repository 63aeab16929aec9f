package scenestate

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
)

// nopHandler is a slog.Handler that silently discards all log records.
// Enabled returns false so callers skip message formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger. Accessed atomically so that
// SetLogger can be called concurrently with logging from any goroutine.
var loggerPtr atomic.Pointer[slog.Logger]

var (
	sinksMu sync.Mutex
	sinks   []LoggerSetter
)

func init() {
	loggerPtr.Store(newNopLogger())
}

// LoggerSetter is implemented by components that keep their own logger
// reference, such as backends holding a device-scoped logger.
type LoggerSetter interface {
	SetLogger(*slog.Logger)
}

// SetLogger configures the logger for scenestate and all its sub-packages.
// By default nothing is logged. Pass nil to restore the silent default.
//
// Log levels used by scenestate:
//   - [slog.LevelDebug]: per-frame diagnostics (recache, drained work, pipeline misses)
//   - [slog.LevelInfo]: lifecycle events (backend selected, context created)
//   - [slog.LevelWarn]: non-fatal failures (atom realization, resource errors)
//
// Example:
//
//	scenestate.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)

	sinksMu.Lock()
	attached := slices.Clone(sinks)
	sinksMu.Unlock()
	for _, s := range attached {
		s.SetLogger(l)
	}
}

// Logger returns the current logger. Sub-packages call this to share
// one configuration without import cycles.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

// AttachLogger hands the current logger to s and keeps s updated on every
// later SetLogger call until DetachLogger is called.
func AttachLogger(s LoggerSetter) {
	if s == nil {
		return
	}
	sinksMu.Lock()
	if !slices.Contains(sinks, s) {
		sinks = append(sinks, s)
	}
	sinksMu.Unlock()
	s.SetLogger(Logger())
}

// DetachLogger stops propagating logger changes to s.
func DetachLogger(s LoggerSetter) {
	sinksMu.Lock()
	defer sinksMu.Unlock()
	if i := slices.Index(sinks, s); i >= 0 {
		sinks = slices.Delete(sinks, i, i+1)
	}
}
