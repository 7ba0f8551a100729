// bundle_loader.go: Change-aware bundle loading
//
// BundleLoader is the only place that looks at content hashes and entry
// identity. Callers get a LoadResult and never compare raw entries
// themselves.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package clapreload

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/blake2b"
)

// BundleOpener loads a bundle file and resolves its entry symbol.
type BundleOpener interface {
	Open(path, symbol string) (Entry, error)
}

// BundleOpenerFunc adapts a function to BundleOpener.
type BundleOpenerFunc func(path, symbol string) (Entry, error)

// Open implements BundleOpener.
func (f BundleOpenerFunc) Open(path, symbol string) (Entry, error) { return f(path, symbol) }

// LoadStatus is the outcome of a load attempt that did not fail.
type LoadStatus int

const (
	// LoadUnchanged means the file holds the bundle already in use.
	LoadUnchanged LoadStatus = iota
	// LoadChanged means a new bundle was loaded.
	LoadChanged
)

// String returns the status name.
func (s LoadStatus) String() string {
	if s == LoadChanged {
		return "changed"
	}
	return "unchanged"
}

// LoadResult is returned by LoadIfChanged. Bundle is set only for LoadChanged.
type LoadResult struct {
	Status LoadStatus
	Bundle *Bundle
}

// BundleLoader loads bundles through private temporary copies.
type BundleLoader struct {
	opener   BundleOpener
	symbol   string
	tempDir  string
	logger   Logger
	metrics  *ReloadMetrics
	hashFile func(path string) (BundleHash, error)
}

// NewBundleLoader creates a loader. A nil opener selects the platform default.
func NewBundleLoader(opener BundleOpener, cfg Config, logger Logger, metrics *ReloadMetrics) *BundleLoader {
	if opener == nil {
		opener = NewDefaultBundleOpener()
	}
	if logger == nil {
		logger = NewNoOpLogger()
	}
	if metrics == nil {
		metrics = NewReloadMetrics()
	}
	symbol := cfg.EntrySymbol
	if symbol == "" {
		symbol = DefaultEntrySymbol
	}
	return &BundleLoader{
		opener:   opener,
		symbol:   symbol,
		tempDir:  cfg.TempDir,
		logger:   logger.With("component", "bundle_loader"),
		metrics:  metrics,
		hashFile: HashBundleFile,
	}
}

// HashBundleFile computes the BLAKE2b-256 digest of a file.
func HashBundleFile(path string) (BundleHash, error) {
	var sum BundleHash

	f, err := os.Open(path) // #nosec G304 -- bundle path is chosen by the host
	if err != nil {
		return sum, NewBundleHashError(path, err)
	}
	defer func() { _ = f.Close() }()

	h, err := blake2b.New256(nil)
	if err != nil {
		return sum, NewBundleHashError(path, err)
	}
	if _, err := io.Copy(h, f); err != nil {
		return sum, NewBundleHashError(path, err)
	}
	copy(sum[:], h.Sum(nil))
	return sum, nil
}

// LoadIfChanged loads the bundle at path unless it is the bundle already in
// use by current.
//
// The file is hashed first; a hash matching current short-circuits without
// touching the opener. Otherwise the file is copied to a private temporary
// file, which is opened and then removed on every exit path. If the opener
// hands back the entry current already uses, the result is LoadUnchanged.
//
// A hashing failure never blocks a reload: the attempt continues without a
// known hash. Copy and open failures are returned as retryable errors.
func (l *BundleLoader) LoadIfChanged(current *Bundle, path string) (LoadResult, error) {
	if path == "" || !utf8.ValidString(path) {
		return LoadResult{}, NewInvalidBundlePathError(path)
	}

	hash, hashErr := l.hashFile(path)
	hashKnown := hashErr == nil
	if hashErr != nil {
		l.logger.Warn("Bundle hash unavailable, continuing without it", "path", path, "error", hashErr)
	}

	if hashKnown && current != nil {
		if currentHash, ok := current.Hash(); ok && currentHash == hash {
			l.metrics.RecordUnchanged()
			return LoadResult{Status: LoadUnchanged}, nil
		}
	}

	tmpPath, err := l.copyToTemp(path)
	if err != nil {
		return LoadResult{}, err
	}
	defer l.removeTemp(tmpPath)

	entry, err := l.opener.Open(tmpPath, l.symbol)
	if err != nil {
		if ErrorCodeOf(err) == ErrCodePluginPathReused {
			l.logger.Error("Rebuilt bundle reuses the plugin path of a loaded build, rebuild it with a unique -pluginpath",
				"path", path,
				"code", ErrCodePluginPathReused)
		}
		return LoadResult{}, err
	}
	if entry == nil {
		return LoadResult{}, NewEntryTypeError(path, l.symbol, "nil Entry")
	}

	if current.sameEntry(entry) {
		l.metrics.RecordUnchanged()
		return LoadResult{Status: LoadUnchanged}, nil
	}

	var hashPtr *BundleHash
	if hashKnown {
		hashPtr = &hash
	}
	bundle := newBundle(path, entry, hashPtr)
	l.metrics.RecordLoad()

	l.logger.Info("Loaded new bundle",
		"path", path,
		"hash", bundle.hashLabel(),
		"generation", bundle.Generation(),
		"plugins", len(bundle.descriptors))

	return LoadResult{Status: LoadChanged, Bundle: bundle}, nil
}

// pluginAlreadyLoaded is how the Go runtime rejects a plugin whose plugin
// path matches one it has loaded before.
const pluginAlreadyLoaded = "plugin already loaded"

// classifyOpenError turns an error from opening a bundle image into a
// structured error.
func classifyOpenError(path string, err error) error {
	if strings.Contains(err.Error(), pluginAlreadyLoaded) {
		return NewPluginPathReusedError(path, err)
	}
	return NewBundleOpenError(path, err)
}

func (l *BundleLoader) copyToTemp(path string) (string, error) {
	src, err := os.Open(path) // #nosec G304 -- bundle path is chosen by the host
	if err != nil {
		return "", NewBundleCopyError(path, err)
	}
	defer func() { _ = src.Close() }()

	dst, err := os.CreateTemp(l.tempDir, "clap-reload-*"+filepath.Ext(path))
	if err != nil {
		return "", NewBundleCopyError(path, err)
	}
	tmpPath := dst.Name()

	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		l.removeTemp(tmpPath)
		return "", NewBundleCopyError(path, err)
	}
	if err := dst.Close(); err != nil {
		l.removeTemp(tmpPath)
		return "", NewBundleCopyError(path, err)
	}
	return tmpPath, nil
}

func (l *BundleLoader) removeTemp(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		l.logger.Warn("Failed to remove temporary bundle copy", "path", path, "error", err)
	}
}
