package telemetry

import (
	"fmt"
	"log/slog"
)

// Logger is an optional interface for observability during execution.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: logging must be best-effort; Logf should not panic.
// - Ownership: format/args are read-only.
type Logger interface {
	// Logf logs a formatted message.
	Logf(format string, args ...any)
}

// LoggerFunc adapts a function into a Logger.
type LoggerFunc func(format string, args ...any)

// Logf calls f.
func (f LoggerFunc) Logf(format string, args ...any) {
	f(format, args...)
}

type slogLogger struct {
	l *slog.Logger
}

// NewSlogLogger adapts a slog.Logger. Messages are logged at info level.
func NewSlogLogger(l *slog.Logger) Logger {
	if l == nil {
		l = slog.Default()
	}
	return slogLogger{l: l}
}

func (s slogLogger) Logf(format string, args ...any) {
	s.l.Info(fmt.Sprintf(format, args...))
}

// Nop returns a Logger that discards everything.
func Nop() Logger {
	return LoggerFunc(func(string, ...any) {})
}

// Logf logs through l when it is non-nil.
func Logf(l Logger, format string, args ...any) {
	if l != nil {
		l.Logf(format, args...)
	}
}
