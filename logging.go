// logging.go: Pluggable logging for the reloading wrapper
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package clapreload

import (
	"context"
	"fmt"
	"sync"
)

// loggerContextKey is a custom type for context keys to avoid collisions
type loggerContextKey string

const (
	// Context keys for logger storage
	loggerKey loggerContextKey = "logger"
)

// Logger defines the pluggable logging interface used by every component of
// the wrapper.
//
// The wrapper is loaded inside a host process, so log output is its only
// user-visible error surface. Reload failures, skipped swap steps and watcher
// problems are all reported through this interface and never propagated to
// the host as plugin faults.
//
// Implementations shipped with the package:
//   - ZapAdapter: wraps *zap.Logger, the default when the wrapper is exported
//   - NoOpLogger: silent logger for minimal setups
//   - TestLogger: captures messages for assertions
//
// Example usage:
//
//	zl, _ := zap.NewDevelopment()
//	reloading, err := clapreload.Wrap(path, entry, clapreload.WithLogger(zl))
type Logger interface {
	// Debug logs a debug message with optional key-value pairs
	Debug(msg string, args ...any)

	// Info logs an info message with optional key-value pairs
	Info(msg string, args ...any)

	// Warn logs a warning message with optional key-value pairs
	Warn(msg string, args ...any)

	// Error logs an error message with optional key-value pairs
	Error(msg string, args ...any)

	// With returns a new logger with persistent context key-value pairs
	With(args ...any) Logger
}

// NewLogger creates a Logger from supported logger types.
//
// Supported types:
//   - Logger interface: used directly
//   - *zap.Logger: wrapped in a ZapAdapter
//   - nil: NoOpLogger for silent operation
//
// Unsupported types fall back to a NoOpLogger; a wrapper running inside a
// host must never panic because of a logging misconfiguration.
func NewLogger(logger any) Logger {
	switch l := logger.(type) {
	case Logger:
		return l
	case nil:
		return NewNoOpLogger()
	default:
		if adapter := newZapAdapterFromAny(l); adapter != nil {
			return adapter
		}
		return NewNoOpLogger()
	}
}

// NoOpLogger discards all log messages.
type NoOpLogger struct{}

// NewNoOpLogger creates a new no-operation logger.
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

// Debug implements Logger interface (no-op)
func (n *NoOpLogger) Debug(msg string, args ...any) {}

// Info implements Logger interface (no-op)
func (n *NoOpLogger) Info(msg string, args ...any) {}

// Warn implements Logger interface (no-op)
func (n *NoOpLogger) Warn(msg string, args ...any) {}

// Error implements Logger interface (no-op)
func (n *NoOpLogger) Error(msg string, args ...any) {}

// With implements Logger interface (no-op)
func (n *NoOpLogger) With(args ...any) Logger {
	return n
}

// TestLogger captures log messages so that tests can assert on them.
//
// Loggers derived with With share the same message sink as their parent, so
// a component logging through a scoped child is still visible to the test.
type TestLogger struct {
	sink   *testLogSink
	fields []any
}

type testLogSink struct {
	mu       sync.RWMutex
	messages []TestLogMessage
}

// TestLogMessage represents a captured log message for testing.
type TestLogMessage struct {
	Level   string
	Message string
	Args    []any
}

// NewTestLogger creates a new test logger.
func NewTestLogger() *TestLogger {
	return &TestLogger{sink: &testLogSink{}}
}

func (t *TestLogger) record(level, msg string, args []any) {
	all := make([]any, 0, len(t.fields)+len(args))
	all = append(all, t.fields...)
	all = append(all, args...)

	t.sink.mu.Lock()
	defer t.sink.mu.Unlock()
	t.sink.messages = append(t.sink.messages, TestLogMessage{
		Level:   level,
		Message: msg,
		Args:    all,
	})
}

// Debug implements Logger interface (captures message)
func (t *TestLogger) Debug(msg string, args ...any) { t.record("DEBUG", msg, args) }

// Info implements Logger interface (captures message)
func (t *TestLogger) Info(msg string, args ...any) { t.record("INFO", msg, args) }

// Warn implements Logger interface (captures message)
func (t *TestLogger) Warn(msg string, args ...any) { t.record("WARN", msg, args) }

// Error implements Logger interface (captures message)
func (t *TestLogger) Error(msg string, args ...any) { t.record("ERROR", msg, args) }

// With implements Logger interface (returns a child sharing the sink)
func (t *TestLogger) With(args ...any) Logger {
	fields := make([]any, 0, len(t.fields)+len(args))
	fields = append(fields, t.fields...)
	fields = append(fields, args...)
	return &TestLogger{sink: t.sink, fields: fields}
}

// Messages returns a snapshot of the captured messages.
func (t *TestLogger) Messages() []TestLogMessage {
	t.sink.mu.RLock()
	defer t.sink.mu.RUnlock()
	out := make([]TestLogMessage, len(t.sink.messages))
	copy(out, t.sink.messages)
	return out
}

// HasMessage checks if the logger captured a message with the given level and text.
func (t *TestLogger) HasMessage(level, message string) bool {
	t.sink.mu.RLock()
	defer t.sink.mu.RUnlock()
	for _, msg := range t.sink.messages {
		if msg.Level == level && msg.Message == message {
			return true
		}
	}
	return false
}

// CountLevel returns how many messages were captured at the given level.
func (t *TestLogger) CountLevel(level string) int {
	t.sink.mu.RLock()
	defer t.sink.mu.RUnlock()
	n := 0
	for _, msg := range t.sink.messages {
		if msg.Level == level {
			n++
		}
	}
	return n
}

// Clear removes all captured messages.
func (t *TestLogger) Clear() {
	t.sink.mu.Lock()
	defer t.sink.mu.Unlock()
	t.sink.messages = t.sink.messages[:0]
}

// String renders the captured messages, handy in assertion failures.
func (t *TestLogger) String() string {
	t.sink.mu.RLock()
	defer t.sink.mu.RUnlock()
	s := ""
	for _, msg := range t.sink.messages {
		s += fmt.Sprintf("[%s] %s %v\n", msg.Level, msg.Message, msg.Args)
	}
	return s
}

// DefaultLogger returns the logger used when none is configured.
//
// A wrapper loaded by a host writes to stderr through zap; if zap cannot be
// built the wrapper stays silent.
func DefaultLogger() Logger {
	adapter, err := NewDefaultZapAdapter("info")
	if err != nil {
		return NewNoOpLogger()
	}
	return adapter
}

// DiscardLogger creates a logger that discards all output.
func DiscardLogger() Logger {
	return NewNoOpLogger()
}

// LoggerFromContext extracts a logger from context if available.
//
// Falls back to a NoOpLogger if no logger is found in the context.
func LoggerFromContext(ctx context.Context) Logger {
	if logger, ok := ctx.Value(loggerKey).(Logger); ok {
		return logger
	}
	return NewNoOpLogger()
}

// ContextWithLogger adds a logger to the context.
func ContextWithLogger(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}
