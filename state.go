// state.go: Plugin state forwarding and transfer between instances
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package clapreload

import (
	"bytes"
	"io"
)

// transferState saves the state of from and loads it into to. It reports
// false without error when either side has no state support.
func transferState(from, to *pluginInstance) (bool, error) {
	src, ok := from.state()
	if !ok {
		return false, nil
	}
	dst, ok := to.state()
	if !ok {
		return false, nil
	}

	var buf bytes.Buffer
	if err := src.SaveState(&buf); err != nil {
		return false, NewStateTransferError("save", err)
	}
	if err := dst.LoadState(&buf); err != nil {
		return false, NewStateTransferError("load", err)
	}
	return true, nil
}

// SaveState implements StateExtension by forwarding to the current instance.
func (w *Wrapper) SaveState(out io.Writer) error {
	inst, err := w.currentInstance()
	if err != nil {
		return err
	}
	state, ok := inst.state()
	if !ok {
		return NewExtensionUnsupportedError("state")
	}
	return state.SaveState(out)
}

// LoadState implements StateExtension by forwarding to the current instance.
func (w *Wrapper) LoadState(in io.Reader) error {
	inst, err := w.currentInstance()
	if err != nil {
		return err
	}
	state, ok := inst.state()
	if !ok {
		return NewExtensionUnsupportedError("state")
	}
	return state.LoadState(in)
}
