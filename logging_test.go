// logging_test.go: logging interface tests
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package clapreload

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestLogger_BasicMessageCapture tests the core logging functionality
func TestLogger_BasicMessageCapture(t *testing.T) {
	tests := []struct {
		name    string
		logFunc func(*TestLogger, string, ...any)
		level   string
		message string
		args    []any
	}{
		{"Debug_SimpleMessage", (*TestLogger).Debug, "DEBUG", "debug message", nil},
		{"Info_SimpleMessage", (*TestLogger).Info, "INFO", "info message", nil},
		{"Warn_SimpleMessage", (*TestLogger).Warn, "WARN", "warn message", nil},
		{"Error_SimpleMessage", (*TestLogger).Error, "ERROR", "error message", nil},
		{"Info_WithStructuredArgs", (*TestLogger).Info, "INFO", "bundle reloaded", []any{"generation", 3, "path", "/plugins/gain.clap"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := NewTestLogger()
			tt.logFunc(logger, tt.message, tt.args...)

			messages := logger.Messages()
			require.Len(t, messages, 1)
			assert.Equal(t, tt.level, messages[0].Level)
			assert.Equal(t, tt.message, messages[0].Message)
			if tt.args != nil {
				assert.Equal(t, tt.args, messages[0].Args)
			}
		})
	}
}

// TestLogger_TestUtilities tests HasMessage, CountLevel and Clear
func TestLogger_TestUtilities(t *testing.T) {
	logger := NewTestLogger()
	logger.Info("bundle loaded", "generation", 1)
	logger.Error("reload failed")
	logger.Error("swap aborted")

	assert.True(t, logger.HasMessage("INFO", "bundle loaded"))
	assert.False(t, logger.HasMessage("DEBUG", "bundle loaded"), "level must match")
	assert.Equal(t, 2, logger.CountLevel("ERROR"))
	assert.Contains(t, logger.String(), "[ERROR] swap aborted")

	logger.Clear()
	assert.Empty(t, logger.Messages())
	assert.False(t, logger.HasMessage("INFO", "bundle loaded"))
}

// TestLogger_WithMethod tests that children share the parent's sink
func TestLogger_WithMethod(t *testing.T) {
	parent := NewTestLogger()
	child := parent.With("component", "watcher")
	grandchild := child.With("path", "/plugins/gain.clap")

	grandchild.Warn("watch failed", "error", "denied")

	messages := parent.Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, []any{"component", "watcher", "path", "/plugins/gain.clap", "error", "denied"}, messages[0].Args)

	parent.Info("parent message")
	require.Len(t, parent.Messages(), 2)
	assert.Len(t, parent.Messages()[1].Args, 0, "parent fields are unaffected by children")
}

// TestLogger_ContextIntegration tests storing loggers in a context
func TestLogger_ContextIntegration(t *testing.T) {
	logger := NewTestLogger()
	ctx := ContextWithLogger(context.Background(), logger)

	LoggerFromContext(ctx).Info("from context")
	assert.True(t, logger.HasMessage("INFO", "from context"))

	fallback := LoggerFromContext(context.Background())
	assert.IsType(t, &NoOpLogger{}, fallback)
}

// TestLogger_FactoryAndNoOp tests NewLogger type dispatch
func TestLogger_FactoryAndNoOp(t *testing.T) {
	testLogger := NewTestLogger()
	assert.Same(t, testLogger, NewLogger(testLogger))

	assert.IsType(t, &NoOpLogger{}, NewLogger(nil))
	assert.IsType(t, &NoOpLogger{}, NewLogger("not a logger"), "unsupported types never panic")
	assert.IsType(t, &ZapAdapter{}, NewLogger(zap.NewNop()))
	assert.IsType(t, &ZapAdapter{}, NewLogger(zap.NewNop().Sugar()))

	noop := NewNoOpLogger()
	assert.NotPanics(t, func() {
		noop.Debug("x")
		noop.Info("x")
		noop.Warn("x")
		noop.Error("x", "k", "v")
	})
	assert.Same(t, noop, noop.With("k", "v"))
	assert.IsType(t, &NoOpLogger{}, DiscardLogger())
}

// TestLogger_ThreadSafety tests concurrent logging into one sink
func TestLogger_ThreadSafety(t *testing.T) {
	logger := NewTestLogger()
	const goroutines, perGoroutine = 8, 50

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			child := logger.With("worker", id)
			for i := 0; i < perGoroutine; i++ {
				child.Info("tick", "i", i)
			}
		}(g)
	}
	wg.Wait()

	assert.Equal(t, goroutines*perGoroutine, logger.CountLevel("INFO"))
}

// TestZapAdapter_ForwardsFields tests the zap adapter with an observer core
func TestZapAdapter_ForwardsFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	adapter := NewZapAdapter(zap.New(core))

	adapter.With("component", "watcher").Info("Published new bundle", "generation", 4)
	adapter.Error("Failed to reload bundle")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "Published new bundle", entries[0].Message)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	ctx := entries[0].ContextMap()
	assert.Equal(t, "watcher", ctx["component"])
	assert.Equal(t, int64(4), ctx["generation"])
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)

	assert.False(t, adapter.SetLevel("debug"), "external loggers have a fixed level")
	assert.Equal(t, "", adapter.Level())
}

// TestZapAdapter_RuntimeLevel tests level changes on the default adapter
func TestZapAdapter_RuntimeLevel(t *testing.T) {
	adapter, err := NewDefaultZapAdapter("info")
	require.NoError(t, err)
	assert.Equal(t, "info", adapter.Level())

	child := adapter.With("plugin_id", testPluginID).(*ZapAdapter)
	assert.True(t, child.SetLevel("warn"))
	assert.Equal(t, "warn", adapter.Level(), "children share the level")
	assert.False(t, adapter.SetLevel("loud"))

	_, err = NewDefaultZapAdapter("loud")
	NewTestAssertions(t).AssertErrorCode(err, ErrCodeConfigValidationError, "invalid level")

	assert.NotNil(t, DefaultLogger())
}

// TestLoggerInterface_Compliance checks every implementation satisfies Logger
func TestLoggerInterface_Compliance(t *testing.T) {
	var _ Logger = &NoOpLogger{}
	var _ Logger = &TestLogger{}
	var _ Logger = &ZapAdapter{}
	var _ levelSetter = &ZapAdapter{}
}
