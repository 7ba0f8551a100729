// bundle.go: Immutable handle to a loaded plugin bundle
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package clapreload

import (
	"encoding/hex"
	"sync/atomic"
	"time"

	"github.com/agilira/go-timecache"
)

// BundleHash is a BLAKE2b-256 digest of a bundle file.
type BundleHash [32]byte

// String returns the hex encoding of the hash.
func (h BundleHash) String() string { return hex.EncodeToString(h[:]) }

// Short returns the first 12 hex characters, enough for log lines.
func (h BundleHash) Short() string { return h.String()[:12] }

var bundleGeneration atomic.Uint64

// Bundle is a loaded plugin binary: its entry, a snapshot of its descriptors
// and the content hash it was loaded from.
//
// A Bundle never changes after creation. A reload always produces a new
// Bundle; instances keep whichever bundle they were created from alive for
// as long as they reference it.
type Bundle struct {
	path        string
	entry       Entry
	descriptors []Descriptor
	hash        BundleHash
	hashKnown   bool
	loadedAt    time.Time
	generation  uint64
	static      bool
}

func newBundle(path string, entry Entry, hash *BundleHash) *Bundle {
	b := &Bundle{
		path:       path,
		entry:      entry,
		loadedAt:   timecache.CachedTime(),
		generation: bundleGeneration.Add(1),
	}
	if hash != nil {
		b.hash = *hash
		b.hashKnown = true
	}
	for _, d := range entry.Descriptors() {
		b.descriptors = append(b.descriptors, d.Clone())
	}
	return b
}

// NewStaticBundle wraps a compiled-in entry. Static bundles are used as the
// initial bundle and as the fallback when hot reload is unavailable.
func NewStaticBundle(path string, entry Entry) *Bundle {
	b := newBundle(path, entry, nil)
	b.static = true
	return b
}

// Path returns the path the bundle was loaded for.
func (b *Bundle) Path() string { return b.path }

// Entry returns the bundle entry.
func (b *Bundle) Entry() Entry { return b.entry }

// Descriptors returns a copy of the descriptors captured at load time.
func (b *Bundle) Descriptors() []Descriptor {
	out := make([]Descriptor, len(b.descriptors))
	for i, d := range b.descriptors {
		out[i] = d.Clone()
	}
	return out
}

// Descriptor returns the descriptor with the given plugin id.
func (b *Bundle) Descriptor(pluginID string) (Descriptor, bool) {
	for _, d := range b.descriptors {
		if d.ID == pluginID {
			return d.Clone(), true
		}
	}
	return Descriptor{}, false
}

// Hash returns the content hash, if it was computed.
func (b *Bundle) Hash() (BundleHash, bool) { return b.hash, b.hashKnown }

// LoadedAt returns when the bundle was loaded.
func (b *Bundle) LoadedAt() time.Time { return b.loadedAt }

// Generation is a process-wide counter incremented on every load.
func (b *Bundle) Generation() uint64 { return b.generation }

// IsStatic reports whether the bundle is the compiled-in entry.
func (b *Bundle) IsStatic() bool { return b.static }

// sameEntry reports whether both bundles expose the same entry value.
func (b *Bundle) sameEntry(other Entry) bool {
	if b == nil || other == nil {
		return false
	}
	return entriesEqual(b.entry, other)
}

// entriesEqual compares entries by identity. Non-comparable dynamic types
// are never equal.
func entriesEqual(a, b Entry) (equal bool) {
	defer func() {
		if recover() != nil {
			equal = false
		}
	}()
	return a == b
}

// hashLabel renders the hash for logs.
func (b *Bundle) hashLabel() string {
	if !b.hashKnown {
		return "unknown"
	}
	return b.hash.Short()
}
