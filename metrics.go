// metrics.go: Reload and swap counters
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package clapreload

import (
	"sync/atomic"
	"time"

	"github.com/agilira/go-timecache"
)

// ReloadMetrics tracks operational counters of the reload pipeline and the
// swap protocol. All methods are safe for concurrent use, including from the
// audio thread, and are no-ops on a nil receiver.
type ReloadMetrics struct {
	BundlesLoaded     atomic.Int64
	BundlesUnchanged  atomic.Int64
	ReloadFailures    atomic.Int64
	WatcherErrors     atomic.Int64
	InstanceSwaps     atomic.Int64
	SwapFailures      atomic.Int64
	DeferredRestarts  atomic.Int64
	CrossfadesStarted atomic.Int64
	CrossfadesDone    atomic.Int64
	InstancesRetired  atomic.Int64

	lastReloadNanos   atomic.Int64
	lastReloadLatency atomic.Int64
	lastSwapNanos     atomic.Int64
}

// ReloadMetricsSnapshot is a point-in-time copy of ReloadMetrics.
type ReloadMetricsSnapshot struct {
	BundlesLoaded     int64         `json:"bundles_loaded"`
	BundlesUnchanged  int64         `json:"bundles_unchanged"`
	ReloadFailures    int64         `json:"reload_failures"`
	WatcherErrors     int64         `json:"watcher_errors"`
	InstanceSwaps     int64         `json:"instance_swaps"`
	SwapFailures      int64         `json:"swap_failures"`
	DeferredRestarts  int64         `json:"deferred_restarts"`
	CrossfadesStarted int64         `json:"crossfades_started"`
	CrossfadesDone    int64         `json:"crossfades_done"`
	InstancesRetired  int64         `json:"instances_retired"`
	LastReload        time.Time     `json:"last_reload"`
	LastReloadLatency time.Duration `json:"last_reload_latency"`
	LastSwap          time.Time     `json:"last_swap"`
}

// NewReloadMetrics creates an empty metrics collector.
func NewReloadMetrics() *ReloadMetrics {
	return &ReloadMetrics{}
}

func (m *ReloadMetrics) now() int64 {
	return timecache.CachedTimeNano()
}

func (m *ReloadMetrics) since(startNanos int64) time.Duration {
	return time.Duration(timecache.CachedTimeNano() - startNanos)
}

// RecordLoad counts a newly loaded bundle.
func (m *ReloadMetrics) RecordLoad() {
	if m == nil {
		return
	}
	m.BundlesLoaded.Add(1)
	m.lastReloadNanos.Store(timecache.CachedTimeNano())
}

// RecordUnchanged counts a load attempt that found the current bundle.
func (m *ReloadMetrics) RecordUnchanged() {
	if m == nil {
		return
	}
	m.BundlesUnchanged.Add(1)
}

// RecordFailure counts a failed load attempt.
func (m *ReloadMetrics) RecordFailure() {
	if m == nil {
		return
	}
	m.ReloadFailures.Add(1)
}

// RecordWatcherError counts an error reported by the filesystem watcher.
func (m *ReloadMetrics) RecordWatcherError() {
	if m == nil {
		return
	}
	m.WatcherErrors.Add(1)
}

// RecordReloadLatency stores the time between a batch and its publication.
func (m *ReloadMetrics) RecordReloadLatency(d time.Duration) {
	if m == nil {
		return
	}
	m.lastReloadLatency.Store(int64(d))
}

// RecordSwap counts a completed main-thread instance swap.
func (m *ReloadMetrics) RecordSwap() {
	if m == nil {
		return
	}
	m.InstanceSwaps.Add(1)
	m.lastSwapNanos.Store(timecache.CachedTimeNano())
}

// RecordSwapFailure counts a swap aborted before replacing the instance.
func (m *ReloadMetrics) RecordSwapFailure() {
	if m == nil {
		return
	}
	m.SwapFailures.Add(1)
}

// RecordDeferredRestart counts a swap that required a host restart.
func (m *ReloadMetrics) RecordDeferredRestart() {
	if m == nil {
		return
	}
	m.DeferredRestarts.Add(1)
}

// RecordCrossfadeStarted counts a crossfade started on the audio thread.
func (m *ReloadMetrics) RecordCrossfadeStarted() {
	if m == nil {
		return
	}
	m.CrossfadesStarted.Add(1)
}

// RecordCrossfadeDone counts a completed crossfade.
func (m *ReloadMetrics) RecordCrossfadeDone() {
	if m == nil {
		return
	}
	m.CrossfadesDone.Add(1)
}

// RecordRetired counts old instances released after a swap.
func (m *ReloadMetrics) RecordRetired(n int) {
	if m == nil || n == 0 {
		return
	}
	m.InstancesRetired.Add(int64(n))
}

// Snapshot returns a copy of the counters.
func (m *ReloadMetrics) Snapshot() ReloadMetricsSnapshot {
	if m == nil {
		return ReloadMetricsSnapshot{}
	}
	s := ReloadMetricsSnapshot{
		BundlesLoaded:     m.BundlesLoaded.Load(),
		BundlesUnchanged:  m.BundlesUnchanged.Load(),
		ReloadFailures:    m.ReloadFailures.Load(),
		WatcherErrors:     m.WatcherErrors.Load(),
		InstanceSwaps:     m.InstanceSwaps.Load(),
		SwapFailures:      m.SwapFailures.Load(),
		DeferredRestarts:  m.DeferredRestarts.Load(),
		CrossfadesStarted: m.CrossfadesStarted.Load(),
		CrossfadesDone:    m.CrossfadesDone.Load(),
		InstancesRetired:  m.InstancesRetired.Load(),
		LastReloadLatency: time.Duration(m.lastReloadLatency.Load()),
	}
	if ns := m.lastReloadNanos.Load(); ns != 0 {
		s.LastReload = time.Unix(0, ns)
	}
	if ns := m.lastSwapNanos.Load(); ns != 0 {
		s.LastSwap = time.Unix(0, ns)
	}
	return s
}
