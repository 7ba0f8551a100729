// wrapper_swap.go: Main-thread instance hot-swap
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package clapreload

// logStepError is the policy for swap sub-steps: a failed step is logged and
// the swap goes on. It reports whether err was non-nil.
func (w *Wrapper) logStepError(step string, err error) bool {
	if err == nil {
		return false
	}
	w.logger.Warn("Hot-swap step failed",
		"step", step,
		"code", ErrorCodeOf(err),
		"error", err)
	return true
}

// checkForNewBundles swaps to the newest bundle published since the last
// check, if any.
func (w *Wrapper) checkForNewBundles() {
	if w.receiver == nil || !w.initialized || w.destroyed {
		return
	}
	if !w.receiver.ReceiveNewBundle() {
		return
	}
	bundle := w.receiver.Current()
	if bundle == nil {
		return
	}
	if err := w.swapTo(bundle); err != nil {
		w.metrics.RecordSwapFailure()
		w.logger.Error("Hot-swap aborted, keeping current instance",
			"generation", bundle.Generation(),
			"code", ErrorCodeOf(err),
			"error", err)
		w.audit.event("instance_swap_failed", map[string]interface{}{
			"plugin_id":  w.pluginID,
			"generation": bundle.Generation(),
			"error":      err.Error(),
		})
	}
}

// swapTo replaces the current instance with a new one created from bundle.
//
// Everything that can fail or that decides the outcome (instantiation, state
// transfer, parameter diff, port layout) is done before the current instance
// is replaced. An error is only returned when nothing was replaced.
func (w *Wrapper) swapTo(bundle *Bundle) error {
	oldHandle := w.current
	oldInst, err := w.registry.get(oldHandle)
	if err != nil {
		return err
	}

	newInst, newHandle, err := w.createInitializedInstance(bundle)
	if err != nil {
		return err
	}

	transferred, err := transferState(oldInst, newInst)
	w.logStepError("state_transfer", err)

	newParams, _ := newInst.params()
	diff := w.params.Diff(newParams)
	flags := diff.Flags | ParamRescanText
	layout := readAudioPortsLayout(newInst)
	layoutChanged := !layout.equal(w.audioPorts)

	active := w.channel != nil
	restart := active && (flags.RequiresRestart() || layoutChanged || w.restartPending)

	// Commit.
	if oldInst.host != nil {
		oldInst.host.retire()
	}
	w.params.Apply(diff)
	w.audioPorts = layout
	w.current = newHandle
	w.reported = reportExtensions(newInst)

	w.reportParamRescan(flags)
	if layoutChanged {
		if active {
			w.deferredPortRescan = true
		} else {
			w.rescanHostAudioPorts()
		}
	}

	w.gui.transfer(oldInst, newInst, w.host, w.logStepError)

	switch {
	case !active:
		w.destroyInstance(oldHandle)
	case !restart:
		restart = !w.handOverToAudioThread(newInst, newHandle, oldInst, oldHandle)
	}
	if active && restart {
		w.deferUntilRestart(oldInst, oldHandle)
	}

	w.metrics.RecordSwap()
	w.logger.Info("Swapped plugin instance",
		"generation", bundle.Generation(),
		"hash", bundle.hashLabel(),
		"rescan", flags.String(),
		"params_added", len(diff.Added),
		"params_removed", len(diff.Removed),
		"params_updated", len(diff.Updated),
		"state_transferred", transferred,
		"active", active,
		"restart", restart)
	w.audit.event("instance_swapped", map[string]interface{}{
		"plugin_id":  w.pluginID,
		"generation": bundle.Generation(),
		"hash":       bundle.hashLabel(),
		"rescan":     flags.String(),
		"restart":    restart,
	})
	return nil
}

// handOverToAudioThread activates the new instance with the current audio
// configuration and sends its processor to the audio thread. It reports
// false when activation failed and a restart is needed instead.
func (w *Wrapper) handOverToAudioThread(newInst *pluginInstance, newHandle InstanceHandle, oldInst *pluginInstance, oldHandle InstanceHandle) bool {
	if w.audioConfig == nil {
		w.logStepError("activate", NewMissingAudioConfigError())
		return false
	}
	proc, err := newInst.plugin.Activate(*w.audioConfig)
	if err == nil && proc == nil {
		newInst.plugin.Deactivate()
		err = NewActivationError(w.pluginID, nil)
	}
	if err != nil {
		w.logStepError("activate", NewActivationError(w.pluginID, err))
		return false
	}
	newInst.activated = true
	newInst.processor = proc

	next := newActiveProcessor(newHandle, proc)
	if oldInst.activated {
		w.channel.sendNewProcessor(next, oldHandle)
	} else {
		w.channel.sendNewProcessor(next, InstanceHandle{})
		w.destroyInstance(oldHandle)
	}
	w.host.RequestProcess()
	return true
}

// deferUntilRestart keeps the old instance alive until the host deactivates
// the wrapper, and asks the host to do so.
func (w *Wrapper) deferUntilRestart(oldInst *pluginInstance, oldHandle InstanceHandle) {
	if oldInst.activated {
		// Its processor is still running on the audio thread.
		w.channel.deferDestroy(oldHandle)
	} else {
		w.destroyInstance(oldHandle)
	}
	w.restartPending = true
	w.metrics.RecordDeferredRestart()
	w.host.RequestRestart()
}
