// bundle_opener_other.go: Bundle opener fallback for platforms without Go plugins
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

//go:build !linux && !darwin && !freebsd

package clapreload

import "runtime"

type unsupportedOpener struct{}

// NewDefaultBundleOpener returns an opener that always fails; wrappers on
// this platform run their compiled-in entry without hot reload unless a
// BundleOpener is supplied with WithBundleOpener.
func NewDefaultBundleOpener() BundleOpener {
	return unsupportedOpener{}
}

func (unsupportedOpener) Open(path, symbol string) (Entry, error) {
	return nil, NewOpenerUnsupportedError(runtime.GOOS)
}
