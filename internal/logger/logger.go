// Package logger provides the logging interface used by dqo connections, with adapters for
// log/slog and logrus, and a Sanitizer that masks sensitive bound parameters.
package logger

import (
	"io"
	"log/slog"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger defines the logging interface used by dqo.
// Implementations should handle structured logging with key-value pairs.
type Logger interface {
	// Debug logs debug-level messages with optional key-value pairs
	Debug(msg string, args ...any)
	// Info logs informational messages with optional key-value pairs
	Info(msg string, args ...any)
	// Warn logs warning messages with optional key-value pairs
	Warn(msg string, args ...any)
	// Error logs error messages with optional key-value pairs
	Error(msg string, args ...any)
}

// NoopLogger is a logger that does nothing (zero overhead when logging is disabled).
// This is the default logger used when no logger is configured.
type NoopLogger struct{}

// Debug does nothing.
func (n *NoopLogger) Debug(_ string, _ ...any) {}

// Info does nothing.
func (n *NoopLogger) Info(_ string, _ ...any) {}

// Warn does nothing.
func (n *NoopLogger) Warn(_ string, _ ...any) {}

// Error does nothing.
func (n *NoopLogger) Error(_ string, _ ...any) {}

// SlogAdapter wraps log/slog.Logger to implement the Logger interface.
// This allows seamless integration with the standard library's structured logging.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new logger adapter wrapping an slog.Logger.
// The provided logger must not be nil.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Debug logs a debug-level message with structured key-value pairs.
func (a *SlogAdapter) Debug(msg string, args ...any) {
	a.logger.Debug(msg, args...)
}

// Info logs an info-level message with structured key-value pairs.
func (a *SlogAdapter) Info(msg string, args ...any) {
	a.logger.Info(msg, args...)
}

// Warn logs a warning-level message with structured key-value pairs.
func (a *SlogAdapter) Warn(msg string, args ...any) {
	a.logger.Warn(msg, args...)
}

// Error logs an error-level message with structured key-value pairs.
func (a *SlogAdapter) Error(msg string, args ...any) {
	a.logger.Error(msg, args...)
}

// LogrusAdapter wraps a logrus logger. Key-value pairs become logrus fields.
type LogrusAdapter struct {
	logger logrus.FieldLogger
}

// NewLogrusAdapter creates a new logger adapter wrapping a logrus.FieldLogger.
func NewLogrusAdapter(logger logrus.FieldLogger) *LogrusAdapter {
	return &LogrusAdapter{logger: logger}
}

// Debug logs a debug-level message with structured key-value pairs.
func (a *LogrusAdapter) Debug(msg string, args ...any) {
	a.logger.WithFields(fields(args)).Debug(msg)
}

// Info logs an info-level message with structured key-value pairs.
func (a *LogrusAdapter) Info(msg string, args ...any) {
	a.logger.WithFields(fields(args)).Info(msg)
}

// Warn logs a warning-level message with structured key-value pairs.
func (a *LogrusAdapter) Warn(msg string, args ...any) {
	a.logger.WithFields(fields(args)).Warn(msg)
}

// Error logs an error-level message with structured key-value pairs.
func (a *LogrusAdapter) Error(msg string, args ...any) {
	a.logger.WithFields(fields(args)).Error(msg)
}

// fields pairs up args; a dangling key gets the value "!MISSING".
func fields(args []any) logrus.Fields {
	f := make(logrus.Fields, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			key = "!BADKEY"
		}
		if i+1 < len(args) {
			f[key] = args[i+1]
		} else {
			f[key] = "!MISSING"
		}
	}
	return f
}

// New builds a Logger by backend name ("slog", "logrus" or "none") writing text at
// level ("debug", "info", "warn", "error") to w.
func New(backend, level string, w io.Writer) Logger {
	switch strings.ToLower(backend) {
	case "logrus":
		l := logrus.New()
		l.SetOutput(w)
		lvl, err := logrus.ParseLevel(level)
		if err != nil {
			lvl = logrus.InfoLevel
		}
		l.SetLevel(lvl)
		return NewLogrusAdapter(l)
	case "slog":
		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			lvl = slog.LevelInfo
		}
		return NewSlogAdapter(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})))
	default:
		return &NoopLogger{}
	}
}
