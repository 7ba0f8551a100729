// watcher.go: WatcherMaster, owner of the watcher thread and the bundle fanout
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package clapreload

import (
	"sync"
	"time"
)

// WatcherConfig configures a WatcherMaster.
type WatcherConfig struct {
	// Path is the nominal bundle path, possibly a symlink.
	Path string

	// DebounceWindow coalesces bursts of events.
	DebounceWindow time.Duration

	// MaxSymlinkDepth bounds symlink resolution.
	MaxSymlinkDepth int
}

// WatcherMaster watches a bundle path and publishes every new bundle found
// there to the receivers it hands out.
type WatcherMaster struct {
	producer *BundleProducer
	factory  *BundleReceiverFactory
	thread   *fileWatcherThread
	logger   Logger

	closeOnce sync.Once
	closeErr  error
}

type watcherDeps struct {
	loader      *BundleLoader
	logger      Logger
	metrics     *ReloadMetrics
	audit       *auditTrail
	watcherFunc func(WatcherConfig) (fileWatcher, error)
}

// NewWatcherMaster starts watching cfg.Path with initial as the current
// bundle. It fails with ErrCodeWatcherUnavailable when no watch at all could
// be registered; callers then fall back to the static bundle.
func NewWatcherMaster(initial *Bundle, cfg WatcherConfig, loader *BundleLoader, logger Logger, metrics *ReloadMetrics) (*WatcherMaster, error) {
	return newWatcherMaster(initial, cfg, watcherDeps{
		loader:  loader,
		logger:  logger,
		metrics: metrics,
	})
}

func newWatcherMaster(initial *Bundle, cfg WatcherConfig, deps watcherDeps) (*WatcherMaster, error) {
	if deps.logger == nil {
		deps.logger = NewNoOpLogger()
	}
	if deps.metrics == nil {
		deps.metrics = NewReloadMetrics()
	}
	if deps.watcherFunc == nil {
		deps.watcherFunc = newFSNotifyWatcher
	}
	if cfg.DebounceWindow <= 0 {
		cfg.DebounceWindow = DefaultDebounceWindow
	}
	if cfg.MaxSymlinkDepth <= 0 {
		cfg.MaxSymlinkDepth = DefaultMaxSymlinkDepth
	}
	logger := deps.logger.With("component", "watcher", "path", cfg.Path)

	if cfg.Path == "" {
		return nil, NewWatcherUnavailableError(cfg.Path, NewInvalidBundlePathError(cfg.Path))
	}

	chain, err := ResolveSymlinkedPath(cfg.Path, cfg.MaxSymlinkDepth)
	if err != nil {
		logger.Warn("Symlink chain resolution stopped early", "error", err)
	}

	fw, err := deps.watcherFunc(cfg)
	if err != nil {
		return nil, NewWatcherUnavailableError(cfg.Path, err)
	}

	result := WatchAll(fw, chain, nil)
	for _, werr := range result.Errors {
		logger.Debug("Could not watch path", "error", werr)
	}
	if !result.HasAnySuccess() {
		_ = fw.Close()
		var cause error
		if len(result.Errors) > 0 {
			cause = result.Errors[0]
		}
		return nil, NewWatcherUnavailableError(cfg.Path, cause)
	}

	producer, factory := NewBundleFanout(initial)

	thread := &fileWatcherThread{
		path:     cfg.Path,
		maxDepth: cfg.MaxSymlinkDepth,
		watcher:  fw,
		loader:   deps.loader,
		producer: producer,
		logger:   logger,
		metrics:  deps.metrics,
		audit:    deps.audit,
		chain:    chain,
		watched:  make(map[string]struct{}, len(result.Watched)),
		current:  initial,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, p := range result.Watched {
		thread.watched[p] = struct{}{}
	}
	thread.debouncer = NewDebouncer(cfg.DebounceWindow, thread.handleBatch)

	go thread.run()

	logger.Info("Watching bundle for changes",
		"chain", chain.Paths(),
		"watches", result.Successes,
		"watch_errors", len(result.Errors),
		"debounce", cfg.DebounceWindow)

	return &WatcherMaster{
		producer: producer,
		factory:  factory,
		thread:   thread,
		logger:   logger,
	}, nil
}

// NewReceiver returns a receiver starting at the current bundle. notify may
// be nil.
func (m *WatcherMaster) NewReceiver(notify func()) *BundleReceiver {
	return m.factory.NewReceiverWithNotify(notify)
}

// Current returns the latest published bundle.
func (m *WatcherMaster) Current() *Bundle { return m.producer.Current() }

// Chain returns the symlink chain currently watched.
func (m *WatcherMaster) Chain() SymlinkChain { return m.thread.currentChain() }

// CheckNow runs a reload check synchronously, bypassing the debouncer.
func (m *WatcherMaster) CheckNow() { m.thread.checkNow() }

// Close stops the watcher thread. Receivers keep their current bundle.
func (m *WatcherMaster) Close() error {
	m.closeOnce.Do(func() {
		m.closeErr = m.thread.shutdown()
		m.logger.Info("Bundle watcher stopped")
	})
	return m.closeErr
}
