// watcher_events.go: Filesystem event loop driving bundle reloads
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package clapreload

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// fileWatcher is the subset of fsnotify used by the watcher thread.
type fileWatcher interface {
	Add(name string) error
	Remove(name string) error
	Close() error
	Events() <-chan fsnotify.Event
	Errors() <-chan error
}

type fsnotifyWatcher struct {
	w *fsnotify.Watcher
}

func newFSNotifyWatcher(WatcherConfig) (fileWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &fsnotifyWatcher{w: w}, nil
}

func (f *fsnotifyWatcher) Add(name string) error         { return f.w.Add(name) }
func (f *fsnotifyWatcher) Remove(name string) error      { return f.w.Remove(name) }
func (f *fsnotifyWatcher) Close() error                  { return f.w.Close() }
func (f *fsnotifyWatcher) Events() <-chan fsnotify.Event { return f.w.Events }
func (f *fsnotifyWatcher) Errors() <-chan error          { return f.w.Errors }

// relevantOps are the operations that can change the bytes behind a path.
const relevantOps = fsnotify.Create | fsnotify.Write | fsnotify.Remove | fsnotify.Rename

// fileWatcherThread owns the fsnotify watcher and reacts to debounced
// batches. It performs blocking I/O, hashing and dynamic loading, and never
// runs on a host thread.
type fileWatcherThread struct {
	path     string
	maxDepth int

	watcher   fileWatcher
	debouncer *Debouncer
	loader    *BundleLoader
	producer  *BundleProducer

	logger  Logger
	metrics *ReloadMetrics
	audit   *auditTrail

	// mu guards the fields below, touched by the event loop and by batches
	mu      sync.Mutex
	chain   SymlinkChain
	watched map[string]struct{}
	current *Bundle

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// run is the event loop. It returns when stop is closed or the watcher
// channels are closed.
func (t *fileWatcherThread) run() {
	defer close(t.done)

	events := t.watcher.Events()
	errs := t.watcher.Errors()
	for {
		select {
		case <-t.stop:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Op&relevantOps == 0 {
				continue
			}
			t.debouncer.Add(filepath.Clean(ev.Name))
		case err, ok := <-errs:
			if !ok {
				return
			}
			t.logger.Error("File watcher error", "error", err)
			t.metrics.RecordWatcherError()
		}
	}
}

// handleBatch processes one debounced batch of changed paths.
func (t *fileWatcherThread) handleBatch(paths []string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	oldChain := t.chain
	relevant := false
	for _, p := range paths {
		if oldChain.Contains(p) {
			relevant = true
			break
		}
	}

	// A repointed link changes the chain itself; re-resolve before loading so
	// the new final target is the one read.
	newChain, err := ResolveSymlinkedPath(t.path, t.maxDepth)
	if err != nil {
		t.logger.Warn("Symlink chain resolution stopped early", "path", t.path, "error", err)
	}
	if !relevant {
		for _, p := range paths {
			if newChain.Contains(p) {
				relevant = true
				break
			}
		}
	}
	if !relevant {
		return
	}

	t.chain = newChain
	t.watchChainLocked()

	t.reloadLocked(newChain.Final())
}

// watchChainLocked adds watches for chain nodes not yet watched.
func (t *fileWatcherThread) watchChainLocked() {
	result := WatchAll(t.watcher, t.chain, t.watched)
	for _, p := range result.Watched {
		t.watched[p] = struct{}{}
	}
	for _, err := range result.Errors {
		t.logger.Debug("Could not watch path", "error", err)
	}
}

func (t *fileWatcherThread) reloadLocked(final string) {
	started := t.metrics.now()
	result, err := t.loader.LoadIfChanged(t.current, final)
	if err != nil {
		t.metrics.RecordFailure()
		t.logger.Error("Failed to reload bundle", "path", final, "error", NewReloadFailedError(final, err))
		t.audit.event("bundle_reload_failed", map[string]interface{}{
			"path":  final,
			"error": err.Error(),
		})
		return
	}

	if result.Status == LoadUnchanged {
		t.logger.Debug("Bundle unchanged, keeping current bundle", "path", final)
		return
	}

	previous := t.current
	t.current = result.Bundle
	reached := t.producer.Produce(result.Bundle)
	t.metrics.RecordReloadLatency(t.metrics.since(started))

	t.logger.Info("Published new bundle",
		"path", final,
		"generation", result.Bundle.Generation(),
		"hash", result.Bundle.hashLabel(),
		"receivers", reached)

	ctx := map[string]interface{}{
		"path":       final,
		"generation": result.Bundle.Generation(),
		"hash":       result.Bundle.hashLabel(),
		"receivers":  reached,
	}
	if previous != nil {
		ctx["previous_generation"] = previous.Generation()
	}
	t.audit.event("bundle_reloaded", ctx)
}

// checkNow reloads synchronously as if every chain node had changed.
func (t *fileWatcherThread) checkNow() {
	t.mu.Lock()
	paths := t.chain.Paths()
	t.mu.Unlock()
	t.handleBatch(paths)
}

func (t *fileWatcherThread) shutdown() error {
	var err error
	t.stopOnce.Do(func() {
		close(t.stop)
		t.debouncer.Stop()
		err = t.watcher.Close()
		<-t.done
	})
	return err
}

// currentChain returns a copy of the watched chain.
func (t *fileWatcherThread) currentChain() SymlinkChain {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append(SymlinkChain(nil), t.chain...)
}
