// gui.go: Editor forwarding and reattachment across instance swaps
//
// The wrapper remembers every GUI call the host made so the editor of a
// freshly swapped instance can be rebuilt in the same place, at the same
// size, in the same visibility.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package clapreload

// guiState mirrors the host's view of the editor.
type guiState struct {
	created bool
	config  GUIConfig

	size      *GUISize
	scale     *float64
	shown     bool
	title     *string
	parent    *Window
	transient *Window
}

func (g *guiState) reset() {
	*g = guiState{}
}

// transfer tears down the editor of from and rebuilds it on to. Every step
// is best effort: failures are reported to logStep and the remaining steps
// still run where they make sense.
func (g *guiState) transfer(from, to *pluginInstance, host Host, logStep func(step string, err error) bool) {
	if old, ok := from.gui(); ok {
		if g.shown {
			_ = old.HideGUI()
		}
		if g.created {
			old.DestroyGUI()
		}
	}

	gui, ok := to.gui()
	if !ok || !g.created {
		return
	}

	if !gui.IsAPISupported(g.config) {
		logStep("gui_create", NewGUITransferError("create", NewExtensionUnsupportedError("gui api "+g.config.API)))
		return
	}
	if err := gui.CreateGUI(g.config); err != nil {
		logStep("gui_create", NewGUITransferError("create", err))
		return
	}

	if g.config.IsFloating {
		if g.transient != nil {
			if err := gui.SetTransient(*g.transient); err != nil {
				logStep("gui_transient", NewGUITransferError("set_transient", err))
			}
		}
		if g.title != nil {
			gui.SuggestTitle(*g.title)
		}
	} else {
		if g.scale != nil {
			if err := gui.SetScale(*g.scale); err != nil {
				logStep("gui_scale", NewGUITransferError("set_scale", err))
			}
		}

		if gui.CanResize() {
			if g.size != nil {
				if err := gui.SetSize(*g.size); err != nil {
					logStep("gui_size", NewGUITransferError("set_size", err))
				}
			}
		} else if hostGUI, ok := host.(HostGUI); ok {
			if size, ok := gui.GUISize(); ok && (g.size == nil || *g.size != size) {
				if err := hostGUI.RequestResize(size.Width, size.Height); err != nil {
					logStep("gui_request_resize", NewGUITransferError("request_resize", err))
				} else {
					g.size = &size
				}
			}
		}

		if g.parent != nil {
			if err := gui.SetParent(*g.parent); err != nil {
				logStep("gui_parent", NewGUITransferError("set_parent", err))
			}
		}
	}

	if g.shown {
		if err := gui.ShowGUI(); err != nil {
			logStep("gui_show", NewGUITransferError("show", err))
		}
	}
}

// currentGUI returns the GUI extension of the current instance.
func (w *Wrapper) currentGUI() (GUIExtension, error) {
	inst, err := w.currentInstance()
	if err != nil {
		return nil, err
	}
	gui, ok := inst.gui()
	if !ok {
		return nil, NewExtensionUnsupportedError("gui")
	}
	return gui, nil
}

// IsAPISupported implements GUIExtension.
func (w *Wrapper) IsAPISupported(config GUIConfig) bool {
	gui, err := w.currentGUI()
	return err == nil && gui.IsAPISupported(config)
}

// PreferredAPI implements GUIExtension.
func (w *Wrapper) PreferredAPI() (GUIConfig, bool) {
	gui, err := w.currentGUI()
	if err != nil {
		return GUIConfig{}, false
	}
	return gui.PreferredAPI()
}

// CreateGUI implements GUIExtension.
func (w *Wrapper) CreateGUI(config GUIConfig) error {
	gui, err := w.currentGUI()
	if err != nil {
		return err
	}
	if err := gui.CreateGUI(config); err != nil {
		return err
	}
	w.gui.created = true
	w.gui.config = config
	return nil
}

// DestroyGUI implements GUIExtension.
func (w *Wrapper) DestroyGUI() {
	gui, err := w.currentGUI()
	if err != nil {
		return
	}
	gui.DestroyGUI()
	w.gui.reset()
}

// SetScale implements GUIExtension.
func (w *Wrapper) SetScale(scale float64) error {
	gui, err := w.currentGUI()
	if err != nil {
		return err
	}
	if err := gui.SetScale(scale); err != nil {
		return err
	}
	w.gui.scale = &scale
	return nil
}

// GUISize implements GUIExtension.
func (w *Wrapper) GUISize() (GUISize, bool) {
	gui, err := w.currentGUI()
	if err != nil {
		return GUISize{}, false
	}
	return gui.GUISize()
}

// CanResize implements GUIExtension.
func (w *Wrapper) CanResize() bool {
	gui, err := w.currentGUI()
	return err == nil && gui.CanResize()
}

// ResizeHints implements GUIExtension.
func (w *Wrapper) ResizeHints() (GUIResizeHints, bool) {
	gui, err := w.currentGUI()
	if err != nil {
		return GUIResizeHints{}, false
	}
	return gui.ResizeHints()
}

// AdjustSize implements GUIExtension.
func (w *Wrapper) AdjustSize(size GUISize) (GUISize, bool) {
	gui, err := w.currentGUI()
	if err != nil {
		return GUISize{}, false
	}
	return gui.AdjustSize(size)
}

// SetSize implements GUIExtension.
func (w *Wrapper) SetSize(size GUISize) error {
	gui, err := w.currentGUI()
	if err != nil {
		return err
	}
	if err := gui.SetSize(size); err != nil {
		return err
	}
	w.gui.size = &size
	return nil
}

// SetParent implements GUIExtension.
func (w *Wrapper) SetParent(window Window) error {
	gui, err := w.currentGUI()
	if err != nil {
		return err
	}
	if err := gui.SetParent(window); err != nil {
		return err
	}
	w.gui.parent = &window
	return nil
}

// SetTransient implements GUIExtension.
func (w *Wrapper) SetTransient(window Window) error {
	gui, err := w.currentGUI()
	if err != nil {
		return err
	}
	if err := gui.SetTransient(window); err != nil {
		return err
	}
	w.gui.transient = &window
	return nil
}

// SuggestTitle implements GUIExtension.
func (w *Wrapper) SuggestTitle(title string) {
	gui, err := w.currentGUI()
	if err != nil {
		return
	}
	gui.SuggestTitle(title)
	w.gui.title = &title
}

// ShowGUI implements GUIExtension.
func (w *Wrapper) ShowGUI() error {
	gui, err := w.currentGUI()
	if err != nil {
		return err
	}
	if err := gui.ShowGUI(); err != nil {
		return err
	}
	w.gui.shown = true
	return nil
}

// HideGUI implements GUIExtension.
func (w *Wrapper) HideGUI() error {
	gui, err := w.currentGUI()
	if err != nil {
		return err
	}
	if err := gui.HideGUI(); err != nil {
		return err
	}
	w.gui.shown = false
	return nil
}
