// logging_zap.go: Logger adapter over go.uber.org/zap
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package clapreload

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapAdapter implements Logger on top of a zap SugaredLogger.
//
// The adapter keeps a reference to the AtomicLevel the logger was built with
// (when known) so the configuration watcher can change verbosity at runtime
// without rebuilding loggers that components already captured.
type ZapAdapter struct {
	sugar *zap.SugaredLogger
	level *zap.AtomicLevel
}

// NewZapAdapter wraps an existing zap logger.
func NewZapAdapter(logger *zap.Logger) *ZapAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapAdapter{sugar: logger.Sugar()}
}

// NewDefaultZapAdapter builds a development-style zap logger writing to
// stderr with a runtime-adjustable level.
func NewDefaultZapAdapter(level string) (*ZapAdapter, error) {
	atomicLevel := zap.NewAtomicLevel()
	if err := atomicLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, NewConfigValidationError("invalid log level: "+level, err)
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.Level = atomicLevel
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.DisableStacktrace = true

	logger, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, NewConfigValidationError("failed to build zap logger", err)
	}

	adapter := NewZapAdapter(logger.Named("clap-reload"))
	adapter.level = &atomicLevel
	return adapter, nil
}

func newZapAdapterFromAny(v any) *ZapAdapter {
	switch l := v.(type) {
	case *zap.Logger:
		return NewZapAdapter(l)
	case *zap.SugaredLogger:
		return &ZapAdapter{sugar: l}
	default:
		return nil
	}
}

// Debug implements Logger
func (z *ZapAdapter) Debug(msg string, args ...any) { z.sugar.Debugw(msg, args...) }

// Info implements Logger
func (z *ZapAdapter) Info(msg string, args ...any) { z.sugar.Infow(msg, args...) }

// Warn implements Logger
func (z *ZapAdapter) Warn(msg string, args ...any) { z.sugar.Warnw(msg, args...) }

// Error implements Logger
func (z *ZapAdapter) Error(msg string, args ...any) { z.sugar.Errorw(msg, args...) }

// With implements Logger
func (z *ZapAdapter) With(args ...any) Logger {
	return &ZapAdapter{sugar: z.sugar.With(args...), level: z.level}
}

// SetLevel changes the level of the underlying logger if it was built with an
// AtomicLevel. It reports whether the level was applied.
func (z *ZapAdapter) SetLevel(level string) bool {
	if z.level == nil {
		return false
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return false
	}
	z.level.SetLevel(lvl)
	return true
}

// Level returns the current level, or an empty string when the level is not
// adjustable.
func (z *ZapAdapter) Level() string {
	if z.level == nil {
		return ""
	}
	return z.level.Level().String()
}

// Sync flushes buffered log entries.
func (z *ZapAdapter) Sync() error {
	return z.sugar.Sync()
}

// levelSetter is implemented by loggers whose verbosity can change at runtime.
type levelSetter interface {
	SetLevel(level string) bool
}
