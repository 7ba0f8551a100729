// wrapper_host.go: Host handle given to wrapped plugin instances
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package clapreload

import "sync/atomic"

// wrapperHost is what a wrapped plugin sees as its host. Thread-safe
// requests go straight to the real host; GUI and latency notifications are
// buffered and forwarded on the main thread; main-thread calls such as
// parameter rescans and timer registration are routed through the wrapper
// so that only the current instance can affect the host.
type wrapperHost struct {
	wrapper *Wrapper
	parent  Host

	// handle of the instance this host was given to; set right after the
	// instance is registered.
	handle InstanceHandle

	// set on the main thread once another instance replaced this one; read
	// from any thread
	retired atomic.Bool
}

func newWrapperHost(w *Wrapper) *wrapperHost {
	return &wrapperHost{wrapper: w, parent: w.host}
}

// retire drops every later GUI and latency request of the instance.
func (h *wrapperHost) retire() { h.retired.Store(true) }

// Host

func (h *wrapperHost) Info() HostInfo  { return h.parent.Info() }
func (h *wrapperHost) RequestRestart() { h.parent.RequestRestart() }
func (h *wrapperHost) RequestProcess() { h.parent.RequestProcess() }

// RequestCallback marks the callback for the wrapped plugin and asks the
// host for a main-thread callback on its behalf.
func (h *wrapperHost) RequestCallback() {
	h.wrapper.requests.callback.Store(true)
	h.parent.RequestCallback()
}

// HostGUI

func (h *wrapperHost) ResizeHintsChanged() {
	if h.retired.Load() {
		return
	}
	h.wrapper.requests.gui.resizeHintsChanged.Store(true)
	h.parent.RequestCallback()
}

func (h *wrapperHost) RequestResize(width, height uint32) error {
	if h.retired.Load() {
		return NewStaleInstanceHandleError(h.handle)
	}
	h.wrapper.requests.gui.resize.Store(&GUISize{Width: width, Height: height})
	h.parent.RequestCallback()
	return nil
}

func (h *wrapperHost) RequestShow() error {
	if h.retired.Load() {
		return NewStaleInstanceHandleError(h.handle)
	}
	h.wrapper.requests.gui.show.Store(true)
	h.parent.RequestCallback()
	return nil
}

func (h *wrapperHost) RequestHide() error {
	if h.retired.Load() {
		return NewStaleInstanceHandleError(h.handle)
	}
	h.wrapper.requests.gui.hide.Store(true)
	h.parent.RequestCallback()
	return nil
}

func (h *wrapperHost) GUIClosed(wasDestroyed bool) {
	if h.retired.Load() {
		return
	}
	if wasDestroyed {
		h.wrapper.requests.gui.destroyed.Store(true)
	} else {
		h.wrapper.requests.gui.closed.Store(true)
	}
	h.parent.RequestCallback()
}

// HostLatency

func (h *wrapperHost) LatencyChanged() {
	if h.retired.Load() {
		return
	}
	h.wrapper.requests.latencyChanged.Store(true)
	h.parent.RequestCallback()
}

// HostTimer

func (h *wrapperHost) RegisterTimer(periodMillis uint32) (TimerID, error) {
	return h.wrapper.registerInstanceTimer(h.handle, periodMillis)
}

func (h *wrapperHost) UnregisterTimer(id TimerID) error {
	return h.wrapper.unregisterInstanceTimer(h.handle, id)
}

// HostParams

func (h *wrapperHost) RescanParams(flags ParamRescanFlags) {
	h.wrapper.instanceRescanParams(h.handle, flags)
}

func (h *wrapperHost) ClearParam(id uint32, flags uint32) {
	if h.handle != h.wrapper.current {
		return
	}
	if params, ok := h.parent.(HostParams); ok {
		params.ClearParam(id, flags)
	}
}

func (h *wrapperHost) RequestParamFlush() {
	if params, ok := h.parent.(HostParams); ok {
		params.RequestParamFlush()
	}
}

// HostAudioPorts

func (h *wrapperHost) IsAudioPortsRescanSupported(flags AudioPortsRescanFlags) bool {
	ports, ok := h.parent.(HostAudioPorts)
	return ok && ports.IsAudioPortsRescanSupported(flags)
}

func (h *wrapperHost) RescanAudioPorts(flags AudioPortsRescanFlags) {
	h.wrapper.instanceRescanAudioPorts(h.handle, flags)
}

// HostNotePorts

func (h *wrapperHost) SupportedNoteDialects() uint32 {
	if ports, ok := h.parent.(HostNotePorts); ok {
		return ports.SupportedNoteDialects()
	}
	return NoteDialectCLAP
}

func (h *wrapperHost) RescanNotePorts(flags uint32) {
	if h.handle != h.wrapper.current {
		return
	}
	if ports, ok := h.parent.(HostNotePorts); ok {
		ports.RescanNotePorts(flags)
	}
}
