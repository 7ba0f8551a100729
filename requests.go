// requests.go: Buffered host requests issued by wrapped plugin instances
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package clapreload

import (
	"sync/atomic"
)

// guiRequests buffers GUI notifications a wrapped plugin may send from any
// thread. They are forwarded to the host on the main thread.
type guiRequests struct {
	resizeHintsChanged atomic.Bool
	resize             atomic.Pointer[GUISize]
	show               atomic.Bool
	hide               atomic.Bool
	closed             atomic.Bool
	destroyed          atomic.Bool
}

// pluginRequests is shared by every instance created by one wrapper.
type pluginRequests struct {
	callback       atomic.Bool
	latencyChanged atomic.Bool
	gui            guiRequests
}

func newPluginRequests() *pluginRequests {
	return &pluginRequests{}
}

// takeCallback reports and clears a pending main-thread callback request.
func (r *pluginRequests) takeCallback() bool {
	return r.callback.Swap(false)
}

// process forwards pending requests to the host. It must run on the main
// thread.
func (r *pluginRequests) process(host Host, logger Logger) {
	if r.latencyChanged.Swap(false) {
		if latency, ok := host.(HostLatency); ok {
			latency.LatencyChanged()
		}
	}
	r.gui.process(host, logger)
}

func (g *guiRequests) process(host Host, logger Logger) {
	hintsChanged := g.resizeHintsChanged.Swap(false)
	resize := g.resize.Swap(nil)
	show := g.show.Swap(false)
	hide := g.hide.Swap(false)
	closed := g.closed.Swap(false)
	destroyed := g.destroyed.Swap(false)

	hostGUI, ok := host.(HostGUI)
	if !ok {
		return
	}

	// Nothing else is meaningful once the editor is gone.
	if destroyed {
		hostGUI.GUIClosed(true)
		return
	}

	if resize != nil {
		if err := hostGUI.RequestResize(resize.Width, resize.Height); err != nil {
			logger.Debug("Host refused GUI resize", "width", resize.Width, "height", resize.Height, "error", err)
		}
	}
	if show {
		if err := hostGUI.RequestShow(); err != nil {
			logger.Debug("Host refused to show GUI", "error", err)
		}
	}
	if hide {
		if err := hostGUI.RequestHide(); err != nil {
			logger.Debug("Host refused to hide GUI", "error", err)
		}
	}
	if hintsChanged {
		hostGUI.ResizeHintsChanged()
	}
	if closed {
		hostGUI.GUIClosed(false)
	}
}

// pending reports whether any buffered request waits for the main thread.
func (r *pluginRequests) pending() bool {
	g := &r.gui
	return r.latencyChanged.Load() || g.resizeHintsChanged.Load() || g.resize.Load() != nil ||
		g.show.Load() || g.hide.Load() || g.closed.Load() || g.destroyed.Load()
}
