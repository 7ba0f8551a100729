// config_watcher.go: Hot reload of runtime settings with Argus
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package clapreload

import (
	"sync"
	"sync/atomic"

	"github.com/agilira/argus"
)

// ConfigWatcher watches the configuration file and publishes the runtime
// settings it contains. Only RuntimeSettings change after startup; the rest
// of the file is read once by ResolveConfig.
//
// New crossfade durations apply to the next activation, new check intervals
// to the next wrapper, and log levels immediately.
type ConfigWatcher struct {
	path   string
	base   Config
	logger Logger
	audit  *auditTrail

	watcher *argus.Watcher
	current atomic.Pointer[RuntimeSettings]

	enabled  atomic.Bool
	stopped  atomic.Bool
	stopOnce sync.Once
	mutex    sync.Mutex
}

// NewConfigWatcher creates a watcher for cfg.ConfigFile. cfg is the resolved
// configuration the file was already applied to.
func NewConfigWatcher(cfg Config, logger Logger) (*ConfigWatcher, error) {
	if cfg.ConfigFile == "" {
		return nil, NewConfigPathError("", "no config file to watch")
	}
	if logger == nil {
		logger = NewNoOpLogger()
	}
	poll := cfg.ConfigPollInterval
	if poll <= 0 {
		poll = DefaultConfigPollInterval
	}

	cw := &ConfigWatcher{
		path:   cfg.ConfigFile,
		base:   cfg,
		logger: logger.With("component", "config_watcher"),
	}
	settings := cfg.RuntimeSettings()
	cw.current.Store(&settings)

	cw.watcher = argus.New(argus.Config{
		PollInterval:         poll,
		CacheTTL:             poll / 2,
		MaxWatchedFiles:      1,
		Audit:                cfg.Audit,
		OptimizationStrategy: argus.OptimizationSingleEvent,
		ErrorHandler: func(err error, path string) {
			cw.logger.Error("Config file watching error", "error", err, "file", path)
		},
	})
	return cw, nil
}

// Start begins watching. A stopped watcher cannot be restarted.
func (cw *ConfigWatcher) Start() error {
	if cw.stopped.Load() {
		return NewConfigWatcherError("watcher has been stopped and cannot be restarted", nil)
	}

	cw.mutex.Lock()
	defer cw.mutex.Unlock()

	if !cw.enabled.CompareAndSwap(false, true) {
		return NewConfigWatcherError("watcher is already running", nil)
	}

	if err := cw.watcher.Watch(cw.path, cw.handleConfigChange); err != nil {
		cw.enabled.Store(false)
		return NewConfigWatcherError("failed to watch config file", err)
	}
	if err := cw.watcher.Start(); err != nil {
		cw.enabled.Store(false)
		return NewConfigWatcherError("failed to start argus watcher", err)
	}

	cw.logger.Info("Config watcher started", "path", cw.path)
	cw.audit.event("config_watcher_started", map[string]interface{}{"path": cw.path})
	return nil
}

// Stop stops watching. It is safe to call more than once.
func (cw *ConfigWatcher) Stop() error {
	var stopErr error
	cw.stopOnce.Do(func() {
		cw.mutex.Lock()
		defer cw.mutex.Unlock()

		cw.stopped.Store(true)
		if !cw.enabled.CompareAndSwap(true, false) {
			return
		}
		if err := cw.watcher.Stop(); err != nil {
			stopErr = NewConfigWatcherError("failed to stop argus watcher", err)
			return
		}
		cw.logger.Info("Config watcher stopped", "path", cw.path)
	})
	return stopErr
}

// IsRunning reports whether the watcher is active.
func (cw *ConfigWatcher) IsRunning() bool {
	return cw.enabled.Load() && !cw.stopped.Load()
}

// Current returns the latest runtime settings.
func (cw *ConfigWatcher) Current() RuntimeSettings {
	return *cw.current.Load()
}

func (cw *ConfigWatcher) handleConfigChange(event argus.ChangeEvent) {
	if event.IsDelete {
		cw.logger.Warn("Config file was deleted, keeping current settings", "path", event.Path)
		cw.audit.event("config_file_deleted", map[string]interface{}{"path": event.Path})
		return
	}

	cfg, err := LoadConfigFile(event.Path, cw.base)
	if err != nil {
		cw.logger.Error("Failed to reload config file", "path", event.Path, "error", err)
		cw.audit.event("config_reload_failed", map[string]interface{}{
			"path":  event.Path,
			"error": err.Error(),
		})
		return
	}

	next := cfg.RuntimeSettings()
	old := cw.current.Swap(&next)
	changes := runtimeSettingsChanges(*old, next)
	if len(changes) == 0 {
		return
	}

	if next.LogLevel != old.LogLevel {
		if setter, ok := cw.logger.(levelSetter); ok && !setter.SetLevel(next.LogLevel) {
			cw.logger.Warn("Log level not applied", "level", next.LogLevel)
		}
	}

	cw.logger.Info("Runtime settings reloaded", "changes", changes)
	cw.audit.event("runtime_settings_changed", map[string]interface{}{
		"path":    event.Path,
		"changes": changes,
	})
}

func runtimeSettingsChanges(old, next RuntimeSettings) []string {
	var changes []string
	if old.CrossfadeDuration != next.CrossfadeDuration {
		changes = append(changes, "crossfade_duration: "+old.CrossfadeDuration.String()+" -> "+next.CrossfadeDuration.String())
	}
	if old.CheckInterval != next.CheckInterval {
		changes = append(changes, "check_interval: "+old.CheckInterval.String()+" -> "+next.CheckInterval.String())
	}
	if old.LogLevel != next.LogLevel {
		changes = append(changes, "log_level: "+old.LogLevel+" -> "+next.LogLevel)
	}
	return changes
}

// staticSettings serves a fixed RuntimeSettings when no config file is watched.
func staticSettings(s RuntimeSettings) func() RuntimeSettings {
	return func() RuntimeSettings { return s }
}
