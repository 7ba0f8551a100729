// bundle_opener_plugin.go: Bundle opener backed by the Go plugin package
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

//go:build linux || darwin || freebsd

package clapreload

import (
	"fmt"
	"plugin"
)

// GoPluginOpener loads bundles built with -buildmode=plugin.
//
// The entry symbol may be declared as a variable of type Entry, as a value
// implementing Entry, or as a func() Entry.
//
// The Go runtime never unloads a plugin and refuses a second one with the
// same plugin path, which by default is derived from the package. Every
// build that should be hot reloaded needs its own path:
//
//	go build -buildmode=plugin -ldflags="-pluginpath=gain-$(date +%s)" -o gain.clap ./gain
//
// A rebuild that reuses a loaded path fails with ErrCodePluginPathReused.
type GoPluginOpener struct{}

// NewDefaultBundleOpener returns the opener for this platform.
func NewDefaultBundleOpener() BundleOpener {
	return GoPluginOpener{}
}

// Open implements BundleOpener.
func (GoPluginOpener) Open(path, symbol string) (Entry, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, classifyOpenError(path, err)
	}

	sym, err := p.Lookup(symbol)
	if err != nil {
		return nil, NewEntrySymbolError(path, symbol, err)
	}

	switch v := sym.(type) {
	case *Entry:
		if *v == nil {
			return nil, NewEntryTypeError(path, symbol, "nil Entry")
		}
		return *v, nil
	case func() Entry:
		entry := v()
		if entry == nil {
			return nil, NewEntryTypeError(path, symbol, "nil Entry")
		}
		return entry, nil
	case Entry:
		return v, nil
	default:
		return nil, NewEntryTypeError(path, symbol, fmt.Sprintf("%T", sym))
	}
}
