// config.go: Wrapper configuration, defaults, validation and file loading
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package clapreload

import (
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/agilira/argus"
	"gopkg.in/yaml.v3"
)

// Default configuration values.
const (
	DefaultDebounceWindow     = 750 * time.Millisecond
	DefaultCrossfadeDuration  = 50 * time.Millisecond
	DefaultCheckInterval      = 200 * time.Millisecond
	DefaultMaxSymlinkDepth    = 40
	DefaultEntrySymbol        = "ReloadableEntry"
	DefaultLogLevel           = "info"
	DefaultConfigPollInterval = 2 * time.Second

	maxConfigFileSize = 1024 * 1024
)

// Config holds every tunable of the reloading wrapper.
//
// A Config is resolved once when the wrapper entry is initialized: defaults,
// then the optional config file, then CLAP_RELOAD_ environment overrides.
// The subset exposed by RuntimeSettings can change afterwards through the
// ConfigWatcher.
type Config struct {
	// HotReload enables bundle watching. When false the wrapper behaves as a
	// static pass-through of the compiled-in entry.
	HotReload bool `json:"hot_reload" yaml:"hot_reload"`

	// DebounceWindow coalesces bursts of filesystem events.
	DebounceWindow time.Duration `json:"debounce_window" yaml:"debounce_window"`

	// CrossfadeDuration is the length of the audio crossfade on swaps.
	CrossfadeDuration time.Duration `json:"crossfade_duration" yaml:"crossfade_duration"`

	// CheckInterval is the period of the host timer polling for new bundles.
	CheckInterval time.Duration `json:"check_interval" yaml:"check_interval"`

	// MaxSymlinkDepth bounds symlink chain resolution.
	MaxSymlinkDepth int `json:"max_symlink_depth" yaml:"max_symlink_depth"`

	// EntrySymbol is the exported symbol looked up in reloaded bundles.
	EntrySymbol string `json:"entry_symbol" yaml:"entry_symbol"`

	// TempDir receives private copies of bundles before loading. Empty means
	// the system temporary directory.
	TempDir string `json:"temp_dir,omitempty" yaml:"temp_dir,omitempty"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level" yaml:"log_level"`

	// ConfigFile is an optional JSON or YAML file watched for runtime changes.
	ConfigFile string `json:"-" yaml:"-"`

	// ConfigPollInterval is the argus poll interval for ConfigFile.
	ConfigPollInterval time.Duration `json:"config_poll_interval" yaml:"config_poll_interval"`

	// EnvFile is an optional dotenv file loaded before environment overrides.
	EnvFile string `json:"-" yaml:"-"`

	// Audit configures the argus audit trail of reload and swap events.
	Audit argus.AuditConfig `json:"audit" yaml:"audit"`
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		HotReload:          true,
		DebounceWindow:     DefaultDebounceWindow,
		CrossfadeDuration:  DefaultCrossfadeDuration,
		CheckInterval:      DefaultCheckInterval,
		MaxSymlinkDepth:    DefaultMaxSymlinkDepth,
		EntrySymbol:        DefaultEntrySymbol,
		LogLevel:           DefaultLogLevel,
		ConfigPollInterval: DefaultConfigPollInterval,
		Audit: argus.AuditConfig{
			Enabled:       false,
			OutputFile:    "clap-reload-audit.jsonl",
			MinLevel:      argus.AuditInfo,
			BufferSize:    256,
			FlushInterval: 5 * time.Second,
		},
	}
}

// ApplyDefaults fills zero values with defaults. HotReload is left alone.
func (c *Config) ApplyDefaults() {
	defaults := DefaultConfig()

	if c.DebounceWindow == 0 {
		c.DebounceWindow = defaults.DebounceWindow
	}
	if c.CrossfadeDuration == 0 {
		c.CrossfadeDuration = defaults.CrossfadeDuration
	}
	if c.CheckInterval == 0 {
		c.CheckInterval = defaults.CheckInterval
	}
	if c.MaxSymlinkDepth == 0 {
		c.MaxSymlinkDepth = defaults.MaxSymlinkDepth
	}
	if c.EntrySymbol == "" {
		c.EntrySymbol = defaults.EntrySymbol
	}
	if c.LogLevel == "" {
		c.LogLevel = defaults.LogLevel
	}
	if c.ConfigPollInterval == 0 {
		c.ConfigPollInterval = defaults.ConfigPollInterval
	}
}

// Validate checks that the configuration values are usable.
func (c *Config) Validate() error {
	if c.DebounceWindow < 0 {
		return NewConfigValidationError("debounce_window cannot be negative", nil)
	}
	if c.CrossfadeDuration < 0 {
		return NewConfigValidationError("crossfade_duration cannot be negative", nil)
	}
	if c.CrossfadeDuration > 10*time.Second {
		return NewConfigValidationError("crossfade_duration cannot exceed 10s", nil)
	}
	if c.CheckInterval < 10*time.Millisecond {
		return NewConfigValidationError("check_interval must be at least 10ms", nil)
	}
	if c.MaxSymlinkDepth < 1 {
		return NewConfigValidationError("max_symlink_depth must be positive", nil)
	}
	if strings.TrimSpace(c.EntrySymbol) == "" {
		return NewConfigValidationError("entry_symbol is required", nil)
	}
	if c.ConfigPollInterval < 0 {
		return NewConfigValidationError("config_poll_interval cannot be negative", nil)
	}
	if !validLogLevel(c.LogLevel) {
		return NewConfigValidationError("invalid log_level, must be one of: debug, info, warn, error", nil)
	}
	return nil
}

func validLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}

// RuntimeSettings returns the runtime-tunable subset of the configuration.
func (c *Config) RuntimeSettings() RuntimeSettings {
	return RuntimeSettings{
		CrossfadeDuration: c.CrossfadeDuration,
		CheckInterval:     c.CheckInterval,
		LogLevel:          c.LogLevel,
	}
}

// RuntimeSettings are the values that may change while a wrapper is running.
type RuntimeSettings struct {
	CrossfadeDuration time.Duration `json:"crossfade_duration" yaml:"crossfade_duration"`
	CheckInterval     time.Duration `json:"check_interval" yaml:"check_interval"`
	LogLevel          string        `json:"log_level" yaml:"log_level"`
}

// fileConfig mirrors Config with durations as strings so the same file can
// be written in JSON or YAML.
type fileConfig struct {
	HotReload          *bool              `json:"hot_reload" yaml:"hot_reload"`
	DebounceWindow     string             `json:"debounce_window" yaml:"debounce_window"`
	CrossfadeDuration  string             `json:"crossfade_duration" yaml:"crossfade_duration"`
	CheckInterval      string             `json:"check_interval" yaml:"check_interval"`
	MaxSymlinkDepth    int                `json:"max_symlink_depth" yaml:"max_symlink_depth"`
	EntrySymbol        string             `json:"entry_symbol" yaml:"entry_symbol"`
	TempDir            string             `json:"temp_dir" yaml:"temp_dir"`
	LogLevel           string             `json:"log_level" yaml:"log_level"`
	ConfigPollInterval string             `json:"config_poll_interval" yaml:"config_poll_interval"`
	Audit              *fileAuditSettings `json:"audit" yaml:"audit"`
}

type fileAuditSettings struct {
	Enabled    bool   `json:"enabled" yaml:"enabled"`
	OutputFile string `json:"output_file" yaml:"output_file"`
}

// LoadConfigFile reads a JSON or YAML configuration file and overlays it on
// base. The format is detected from the file extension.
func LoadConfigFile(path string, base Config) (Config, error) {
	if path == "" {
		return base, NewConfigPathError(path, "empty config file path")
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return base, NewConfigNotFoundError(path)
		}
		return base, NewConfigFileError(path, "cannot access config file", err)
	}
	if !info.Mode().IsRegular() {
		return base, NewConfigPathError(path, "config path is not a regular file")
	}
	if info.Size() > maxConfigFileSize {
		return base, NewConfigPathError(path, "config file too large")
	}

	content, err := os.ReadFile(path) // #nosec G304 -- path is operator supplied configuration
	if err != nil {
		return base, NewConfigFileError(path, "failed to read file", err)
	}

	var fc fileConfig
	switch format := argus.DetectFormat(path); format {
	case argus.FormatJSON:
		err = json.Unmarshal(content, &fc)
	case argus.FormatYAML:
		err = yaml.Unmarshal(content, &fc)
	default:
		return base, NewConfigPathError(path, "unsupported config format")
	}
	if err != nil {
		return base, NewConfigParseError(path, err)
	}

	cfg, err := fc.overlay(base)
	if err != nil {
		return base, err
	}
	if err := cfg.Validate(); err != nil {
		return base, err
	}
	return cfg, nil
}

func (fc fileConfig) overlay(base Config) (Config, error) {
	cfg := base
	if fc.HotReload != nil {
		cfg.HotReload = *fc.HotReload
	}

	durations := []struct {
		name  string
		value string
		dst   *time.Duration
	}{
		{"debounce_window", fc.DebounceWindow, &cfg.DebounceWindow},
		{"crossfade_duration", fc.CrossfadeDuration, &cfg.CrossfadeDuration},
		{"check_interval", fc.CheckInterval, &cfg.CheckInterval},
		{"config_poll_interval", fc.ConfigPollInterval, &cfg.ConfigPollInterval},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.value)
		if err != nil {
			return base, NewConfigValidationError("invalid duration for "+d.name, err)
		}
		*d.dst = parsed
	}

	if fc.MaxSymlinkDepth != 0 {
		cfg.MaxSymlinkDepth = fc.MaxSymlinkDepth
	}
	if fc.EntrySymbol != "" {
		cfg.EntrySymbol = fc.EntrySymbol
	}
	if fc.TempDir != "" {
		cfg.TempDir = fc.TempDir
	}
	if fc.LogLevel != "" {
		cfg.LogLevel = strings.ToLower(fc.LogLevel)
	}
	if fc.Audit != nil {
		cfg.Audit.Enabled = fc.Audit.Enabled
		if fc.Audit.OutputFile != "" {
			cfg.Audit.OutputFile = fc.Audit.OutputFile
		}
	}
	return cfg, nil
}

// ResolveConfig builds the effective configuration: defaults, the optional
// config file, then the environment.
func ResolveConfig(base Config) (Config, error) {
	cfg := base
	cfg.ApplyDefaults()

	if err := LoadDotEnv(cfg.EnvFile); err != nil {
		return cfg, err
	}

	if file := os.Getenv(EnvPrefix + "CONFIG_FILE"); file != "" && cfg.ConfigFile == "" {
		cfg.ConfigFile = file
	}
	if cfg.ConfigFile != "" {
		loaded, err := LoadConfigFile(cfg.ConfigFile, cfg)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	withEnv, err := ApplyEnvOverrides(cfg)
	if err != nil {
		return cfg, err
	}
	if err := withEnv.Validate(); err != nil {
		return cfg, err
	}
	return withEnv, nil
}

// Option configures a wrapper created by Wrap.
type Option func(*wrapOptions)

type wrapOptions struct {
	config      Config
	configSet   bool
	logger      Logger
	opener      BundleOpener
	metrics     *ReloadMetrics
	skipEnv     bool
	watcherFunc func(WatcherConfig) (fileWatcher, error)
}

// WithConfig sets the base configuration.
func WithConfig(cfg Config) Option {
	return func(o *wrapOptions) {
		o.config = cfg
		o.configSet = true
	}
}

// WithLogger sets the logger. Anything accepted by NewLogger may be passed.
func WithLogger(logger any) Option {
	return func(o *wrapOptions) {
		o.logger = NewLogger(logger)
	}
}

// WithBundleOpener replaces the platform bundle opener.
func WithBundleOpener(opener BundleOpener) Option {
	return func(o *wrapOptions) {
		o.opener = opener
	}
}

// WithMetrics shares a metrics collector with the caller.
func WithMetrics(metrics *ReloadMetrics) Option {
	return func(o *wrapOptions) {
		o.metrics = metrics
	}
}

// WithoutEnvironment disables dotenv and CLAP_RELOAD_ overrides.
func WithoutEnvironment() Option {
	return func(o *wrapOptions) {
		o.skipEnv = true
	}
}

func withFileWatcherFactory(fn func(WatcherConfig) (fileWatcher, error)) Option {
	return func(o *wrapOptions) {
		o.watcherFunc = fn
	}
}
