// config_test.go: Wrapper configuration defaults, validation and file loading tests
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package clapreload

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.True(t, cfg.HotReload)
	assert.Equal(t, 750*time.Millisecond, cfg.DebounceWindow)
	assert.Equal(t, 50*time.Millisecond, cfg.CrossfadeDuration)
	assert.Equal(t, 200*time.Millisecond, cfg.CheckInterval)
	assert.Equal(t, 40, cfg.MaxSymlinkDepth)
	assert.Equal(t, "ReloadableEntry", cfg.EntrySymbol)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.Audit.Enabled, "audit is opt-in")
	require.NoError(t, cfg.Validate())
}

func TestConfig_ApplyDefaults(t *testing.T) {
	cfg := Config{CrossfadeDuration: 5 * time.Millisecond}
	cfg.ApplyDefaults()

	assert.False(t, cfg.HotReload, "HotReload is never forced on")
	assert.Equal(t, 5*time.Millisecond, cfg.CrossfadeDuration, "explicit values survive")
	assert.Equal(t, DefaultDebounceWindow, cfg.DebounceWindow)
	assert.Equal(t, DefaultCheckInterval, cfg.CheckInterval)
	assert.Equal(t, DefaultMaxSymlinkDepth, cfg.MaxSymlinkDepth)
	assert.Equal(t, DefaultEntrySymbol, cfg.EntrySymbol)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, DefaultConfigPollInterval, cfg.ConfigPollInterval)
	require.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		valid  bool
	}{
		{"defaults", func(*Config) {}, true},
		{"zero_debounce", func(c *Config) { c.DebounceWindow = 0 }, true},
		{"negative_debounce", func(c *Config) { c.DebounceWindow = -time.Millisecond }, false},
		{"zero_crossfade", func(c *Config) { c.CrossfadeDuration = 0 }, true},
		{"negative_crossfade", func(c *Config) { c.CrossfadeDuration = -time.Millisecond }, false},
		{"huge_crossfade", func(c *Config) { c.CrossfadeDuration = 11 * time.Second }, false},
		{"tiny_check_interval", func(c *Config) { c.CheckInterval = time.Millisecond }, false},
		{"zero_symlink_depth", func(c *Config) { c.MaxSymlinkDepth = 0 }, false},
		{"blank_entry_symbol", func(c *Config) { c.EntrySymbol = "  " }, false},
		{"negative_poll", func(c *Config) { c.ConfigPollInterval = -time.Second }, false},
		{"debug_level", func(c *Config) { c.LogLevel = "debug" }, true},
		{"unknown_level", func(c *Config) { c.LogLevel = "verbose" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			NewTestAssertions(t).AssertErrorCode(err, ErrCodeConfigValidationError, tt.name)
		})
	}
}

func TestConfig_RuntimeSettings(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CrossfadeDuration = 80 * time.Millisecond
	cfg.LogLevel = "warn"

	assert.Equal(t, RuntimeSettings{
		CrossfadeDuration: 80 * time.Millisecond,
		CheckInterval:     DefaultCheckInterval,
		LogLevel:          "warn",
	}, cfg.RuntimeSettings())
}

func TestLoadConfigFile_JSON(t *testing.T) {
	env := NewTestEnvironment(t)
	path := env.CreateTempFile("reload.json", `{
		"hot_reload": false,
		"debounce_window": "250ms",
		"crossfade_duration": "20ms",
		"max_symlink_depth": 8,
		"log_level": "DEBUG",
		"audit": {"enabled": true, "output_file": "/var/log/reload.jsonl"}
	}`)

	cfg, err := LoadConfigFile(path, DefaultConfig())
	require.NoError(t, err)

	assert.False(t, cfg.HotReload)
	assert.Equal(t, 250*time.Millisecond, cfg.DebounceWindow)
	assert.Equal(t, 20*time.Millisecond, cfg.CrossfadeDuration)
	assert.Equal(t, DefaultCheckInterval, cfg.CheckInterval, "absent keys keep the base value")
	assert.Equal(t, 8, cfg.MaxSymlinkDepth)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.Audit.Enabled)
	assert.Equal(t, "/var/log/reload.jsonl", cfg.Audit.OutputFile)
}

func TestLoadConfigFile_YAML(t *testing.T) {
	env := NewTestEnvironment(t)
	path := env.CreateTempFile("reload.yaml", strings.Join([]string{
		"crossfade_duration: 120ms",
		"check_interval: 1s",
		"entry_symbol: DevEntry",
		"temp_dir: /tmp/clap",
	}, "\n"))

	cfg, err := LoadConfigFile(path, DefaultConfig())
	require.NoError(t, err)

	assert.True(t, cfg.HotReload, "hot_reload absent keeps the base value")
	assert.Equal(t, 120*time.Millisecond, cfg.CrossfadeDuration)
	assert.Equal(t, time.Second, cfg.CheckInterval)
	assert.Equal(t, "DevEntry", cfg.EntrySymbol)
	assert.Equal(t, "/tmp/clap", cfg.TempDir)
}

func TestLoadConfigFile_Errors(t *testing.T) {
	env := NewTestEnvironment(t)
	base := DefaultConfig()

	tests := []struct {
		name string
		path string
		code string
	}{
		{"empty_path", "", ErrCodeConfigPathError},
		{"missing_file", filepath.Join(env.TempDir(), "absent.yaml"), ErrCodeConfigNotFound},
		{"directory", env.TempDir(), ErrCodeConfigPathError},
		{"unsupported_format", env.CreateTempFile("reload.ini", "a=b"), ErrCodeConfigPathError},
		{"malformed_json", env.CreateTempFile("broken.json", "{"), ErrCodeConfigParseError},
		{"bad_duration", env.CreateTempFile("dur.json", `{"crossfade_duration": "soon"}`), ErrCodeConfigValidationError},
		{"invalid_value", env.CreateTempFile("level.json", `{"log_level": "loud"}`), ErrCodeConfigValidationError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadConfigFile(tt.path, base)
			NewTestAssertions(t).AssertErrorCode(err, tt.code, tt.name)
			assert.Equal(t, base, cfg, "base returned unchanged on error")
		})
	}
}

func TestLoadConfigFile_TooLarge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "huge.json")
	require.NoError(t, os.WriteFile(path, make([]byte, maxConfigFileSize+1), 0600))

	_, err := LoadConfigFile(path, DefaultConfig())
	NewTestAssertions(t).AssertErrorCode(err, ErrCodeConfigPathError, "oversized file")
}
