// entry.go: Reloading entry, the export point of a hot-reloadable bundle
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package clapreload

import (
	"sync"
	"unicode/utf8"
)

// ReloadingEntry is the Entry a bundle exports in place of its own. Every
// plugin it creates is a Wrapper following the bundle file on disk.
//
// When hot reload is disabled or no watch can be set up, the entry serves
// the compiled-in entry without ever swapping.
type ReloadingEntry struct {
	path        string
	cfg         Config
	logger      Logger
	metrics     *ReloadMetrics
	audit       *auditTrail
	descriptors []Descriptor

	watcher       *WatcherMaster
	static        *Bundle
	configWatcher *ConfigWatcher
	settings      func() RuntimeSettings

	closeOnce sync.Once
	closeErr  error
}

// Wrap creates the reloading entry for the bundle at bundlePath. entry is
// the compiled-in entry of that bundle; it may be nil, in which case the
// bundle must be loadable from disk.
//
// Failures to watch the bundle are not errors: the entry falls back to
// serving the initial bundle statically.
func Wrap(bundlePath string, entry Entry, opts ...Option) (*ReloadingEntry, error) {
	o := wrapOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	cfg, err := resolveWrapConfig(o)
	if err != nil {
		return nil, err
	}

	logger := o.logger
	if logger == nil {
		if adapter, zerr := NewDefaultZapAdapter(cfg.LogLevel); zerr == nil {
			logger = adapter
		} else {
			logger = NewNoOpLogger()
		}
	}
	logger = logger.With("bundle", bundlePath)

	if bundlePath == "" || !utf8.ValidString(bundlePath) {
		return nil, NewInvalidBundlePathError(bundlePath)
	}

	metrics := o.metrics
	if metrics == nil {
		metrics = NewReloadMetrics()
	}

	audit, err := newAuditTrail(cfg.Audit, "clap_reload")
	if err != nil {
		logger.Warn("Audit trail disabled", "error", err)
		audit = nil
	}

	e := &ReloadingEntry{
		path:     bundlePath,
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
		audit:    audit,
		settings: staticSettings(cfg.RuntimeSettings()),
	}

	loader := NewBundleLoader(o.opener, cfg, logger, metrics)
	initial, err := e.loadInitialBundle(loader, entry)
	if err != nil {
		_ = audit.close()
		return nil, err
	}
	e.descriptors = initial.Descriptors()

	if cfg.HotReload {
		watcher, werr := newWatcherMaster(initial, WatcherConfig{
			Path:            bundlePath,
			DebounceWindow:  cfg.DebounceWindow,
			MaxSymlinkDepth: cfg.MaxSymlinkDepth,
		}, watcherDeps{
			loader:      loader,
			logger:      logger,
			metrics:     metrics,
			audit:       audit,
			watcherFunc: o.watcherFunc,
		})
		if werr != nil {
			logger.Warn("Hot reload unavailable, serving bundle statically", "error", werr)
		} else {
			e.watcher = watcher
		}
	}
	if e.watcher == nil {
		e.static = initial
	}

	if cfg.ConfigFile != "" {
		e.startConfigWatcher()
	}

	logger.Info("Reloading entry ready",
		"plugins", len(e.descriptors),
		"hot_reload", e.watcher != nil,
		"generation", initial.Generation())
	audit.event("entry_initialized", map[string]interface{}{
		"path":       bundlePath,
		"plugins":    len(e.descriptors),
		"hot_reload": e.watcher != nil,
	})
	return e, nil
}

func resolveWrapConfig(o wrapOptions) (Config, error) {
	base := DefaultConfig()
	if o.configSet {
		base = o.config
	}
	if !o.skipEnv {
		return ResolveConfig(base)
	}

	cfg := base
	cfg.ApplyDefaults()
	if cfg.ConfigFile != "" {
		loaded, err := LoadConfigFile(cfg.ConfigFile, cfg)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// loadInitialBundle prefers the bundle on disk when it already exposes a
// different entry than the compiled-in one, which happens when the file was
// rebuilt after the host loaded it.
func (e *ReloadingEntry) loadInitialBundle(loader *BundleLoader, entry Entry) (*Bundle, error) {
	if entry == nil {
		result, err := loader.LoadIfChanged(nil, e.path)
		if err != nil {
			return nil, err
		}
		return result.Bundle, nil
	}

	static := NewStaticBundle(e.path, entry)
	result, err := loader.LoadIfChanged(static, e.path)
	switch {
	case err != nil:
		e.logger.Debug("Using compiled-in entry", "reason", err)
		return static, nil
	case result.Status == LoadChanged:
		e.logger.Info("Bundle on disk differs from compiled-in entry, using it",
			"generation", result.Bundle.Generation())
		return result.Bundle, nil
	default:
		return static, nil
	}
}

func (e *ReloadingEntry) startConfigWatcher() {
	cw, err := NewConfigWatcher(e.cfg, e.logger)
	if err != nil {
		e.logger.Warn("Config watcher unavailable", "error", err)
		return
	}
	cw.audit = e.audit
	if err := cw.Start(); err != nil {
		e.logger.Warn("Config watcher unavailable", "error", err)
		return
	}
	e.configWatcher = cw
	e.settings = cw.Current
}

// Descriptors implements Entry. The list is the one of the initial bundle;
// plugins added by later builds need the host to rescan the bundle.
func (e *ReloadingEntry) Descriptors() []Descriptor {
	out := make([]Descriptor, len(e.descriptors))
	for i, d := range e.descriptors {
		out[i] = d.Clone()
	}
	return out
}

// CreatePlugin implements Entry.
func (e *ReloadingEntry) CreatePlugin(host Host, pluginID string) (Plugin, error) {
	found := false
	for _, d := range e.descriptors {
		if d.ID == pluginID {
			found = true
			break
		}
	}
	if !found {
		return nil, NewPluginNotFoundError(pluginID)
	}

	var receiver *BundleReceiver
	bundle := e.static
	if e.watcher != nil {
		receiver = e.watcher.NewReceiver(host.RequestCallback)
		bundle = receiver.Current()
	}

	w, err := newWrapper(host, pluginID, bundle, receiver, wrapperDeps{
		logger:   e.logger,
		metrics:  e.metrics,
		audit:    e.audit,
		settings: e.settings,
	})
	if err != nil {
		if receiver != nil {
			receiver.Close()
		}
		return nil, err
	}
	return w, nil
}

// IsHotReloading reports whether the entry follows the bundle on disk.
func (e *ReloadingEntry) IsHotReloading() bool { return e.watcher != nil }

// Watcher returns the bundle watcher, or nil when serving statically.
func (e *ReloadingEntry) Watcher() *WatcherMaster { return e.watcher }

// Metrics returns the metrics shared by the entry and its wrappers.
func (e *ReloadingEntry) Metrics() *ReloadMetrics { return e.metrics }

// Config returns the resolved configuration.
func (e *ReloadingEntry) Config() Config { return e.cfg }

// Close stops watching. Wrappers already created keep their instances.
func (e *ReloadingEntry) Close() error {
	e.closeOnce.Do(func() {
		if e.watcher != nil {
			e.closeErr = e.watcher.Close()
		}
		if e.configWatcher != nil {
			if err := e.configWatcher.Stop(); err != nil {
				e.logger.Warn("Failed to stop config watcher", "error", err)
			}
		}
		if err := e.audit.close(); err != nil {
			e.logger.Warn("Failed to close audit trail", "error", err)
		}
	})
	return e.closeErr
}
