// symlinks.go: Symlink chain resolution for watched bundle paths
//
// A bundle path handed to a host is often a symlink into a build directory,
// sometimes through several hops. Every hop can change independently: the
// final file can be rewritten, or an intermediate link repointed. The chain
// resolved here is the set of paths that must be watched.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package clapreload

import (
	"os"
	"path/filepath"
)

// SymlinkedPath is one node of a resolved chain.
type SymlinkedPath struct {
	Path      string
	IsSymlink bool
}

// SymlinkChain is the ordered chain from the nominal path to the final file.
type SymlinkChain []SymlinkedPath

// Final returns the last node of the chain, the path that is actually loaded.
func (c SymlinkChain) Final() string {
	if len(c) == 0 {
		return ""
	}
	return c[len(c)-1].Path
}

// Contains reports whether path is one of the nodes of the chain.
func (c SymlinkChain) Contains(path string) bool {
	clean := filepath.Clean(path)
	for _, node := range c {
		if node.Path == clean {
			return true
		}
	}
	return false
}

// Paths returns the node paths in chain order.
func (c SymlinkChain) Paths() []string {
	out := make([]string, len(c))
	for i, node := range c {
		out[i] = node.Path
	}
	return out
}

// WatchTargets returns every node and every node's parent directory, without
// duplicates, in the order they should be registered.
func (c SymlinkChain) WatchTargets() []string {
	seen := make(map[string]struct{}, len(c)*2)
	out := make([]string, 0, len(c)*2)
	add := func(p string) {
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	for _, node := range c {
		add(node.Path)
		add(filepath.Dir(node.Path))
	}
	return out
}

// ResolveSymlinkedPath follows path through symlinks until it reaches a node
// that is not a symlink or cannot be read. A broken link stays in the chain
// as its leaf. Relative targets are resolved against the directory holding
// the link.
//
// Resolution stops with a SymlinkLoop error, returning the chain built so
// far, when a node repeats or the chain grows beyond maxDepth links.
func ResolveSymlinkedPath(path string, maxDepth int) (SymlinkChain, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxSymlinkDepth
	}

	current := filepath.Clean(path)
	chain := make(SymlinkChain, 0, 2)
	visited := make(map[string]struct{})

	for {
		if _, seen := visited[current]; seen {
			return chain, NewSymlinkLoopError(path, len(chain))
		}
		visited[current] = struct{}{}

		info, err := os.Lstat(current)
		if err != nil || info.Mode()&os.ModeSymlink == 0 {
			chain = append(chain, SymlinkedPath{Path: current})
			return chain, nil
		}

		target, err := os.Readlink(current)
		if err != nil {
			chain = append(chain, SymlinkedPath{Path: current, IsSymlink: true})
			return chain, nil
		}
		chain = append(chain, SymlinkedPath{Path: current, IsSymlink: true})

		if len(chain) > maxDepth {
			return chain, NewSymlinkLoopError(path, len(chain))
		}

		if !filepath.IsAbs(target) {
			target = filepath.Join(filepath.Dir(current), target)
		}
		current = filepath.Clean(target)
	}
}

// pathWatcher registers non-recursive watches. *fsnotify.Watcher satisfies it.
type pathWatcher interface {
	Add(name string) error
}

// WatchResult summarizes a WatchAll call.
type WatchResult struct {
	Watched   []string
	Successes int
	Errors    []error
}

// HasAnySuccess reports whether at least one watch was registered.
func (r WatchResult) HasAnySuccess() bool { return r.Successes > 0 }

// WatchAll registers a watch on every chain node and its parent directory.
// Individual failures are collected; only a result without any success means
// hot reload is unavailable. Paths already present in skip are not
// registered again.
func WatchAll(w pathWatcher, chain SymlinkChain, skip map[string]struct{}) WatchResult {
	var result WatchResult
	for _, target := range chain.WatchTargets() {
		if _, ok := skip[target]; ok {
			result.Successes++
			continue
		}
		if err := w.Add(target); err != nil {
			result.Errors = append(result.Errors, NewWatchPathError(target, err))
			continue
		}
		result.Successes++
		result.Watched = append(result.Watched, target)
	}
	return result
}
