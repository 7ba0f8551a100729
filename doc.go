// Package clapreload provides hot reloading for audio plugin bundles.
//
// A bundle exports a ReloadingEntry in place of its own Entry. Every plugin
// the host creates through it is a Wrapper that owns the real plugin
// instance and forwards every call to it. When the bundle file on disk is
// rebuilt, the new binary is loaded in the background and each wrapper swaps
// its instance for a fresh one on the host's main thread:
//
//   - plugin state is saved from the old instance and loaded into the new one
//   - the parameter list is diffed and the host receives the smallest rescan
//     that describes the change
//   - an open editor is rebuilt at the same place, size and visibility
//   - while audio runs, the new processor is handed to the audio thread,
//     held notes are replayed into it and both outputs are crossfaded
//   - changes the host cannot absorb while active (new parameters, a new
//     audio port layout) are deferred and a restart is requested instead
//
// Key Features:
//   - Symlink-aware file watching with fsnotify and event debouncing
//   - Content hashing (BLAKE2b) so touching a file never triggers a swap
//   - Lock-free, allocation-free handoff between main and audio threads
//   - Structured errors (go-errors), zap logging, argus audit trail
//   - Runtime settings hot-reloaded from a JSON or YAML file through argus
//   - Configuration from files, dotenv and CLAP_RELOAD_ environment variables
//
// Basic Usage:
//
//	// In the bundle, next to the plugin implementation.
//	var ReloadableEntry clapreload.Entry = myEntry
//
//	// In the host adapter.
//	entry, err := clapreload.Wrap("/path/to/bundle.so", myEntry)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer entry.Close()
//
//	plugin, err := entry.CreatePlugin(host, "com.example.gain")
//
// Building Bundles:
// With the default opener a bundle is a Go plugin. The runtime keeps every
// plugin it loaded and rejects a new one whose plugin path was seen before,
// so each rebuild must be given a fresh path:
//
//	go build -buildmode=plugin -ldflags="-pluginpath=gain-$(date +%s)" -o gain.clap ./gain
//
// A rebuild without one is reported with ErrCodePluginPathReused and the
// running instance is kept.
//
// Threading:
// Every Wrapper method runs on the host's main thread. The Processor returned
// by Wrapper.Activate runs on the audio thread and never blocks, locks or
// allocates. The background watcher only talks to wrappers through a fanout
// of immutable Bundle values.
//
// Copyright (c) 2025 AGILira - A. Giordano
// SPDX-License-Identifier: MPL-2.0
package clapreload
