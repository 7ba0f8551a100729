// wrapper.go: The plugin handed to the host in place of the wrapped plugin
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package clapreload

import (
	"fmt"
)

// SwapState describes how a wrapper reacts to new bundles.
type SwapState int

const (
	// SwapIdle: the wrapper runs a static bundle and never swaps.
	SwapIdle SwapState = iota
	// SwapWatchingInactive: new bundles replace the instance directly.
	SwapWatchingInactive
	// SwapWatchingActive: new bundles are handed to the audio thread or
	// wait for a host restart.
	SwapWatchingActive
)

// String returns the state name.
func (s SwapState) String() string {
	switch s {
	case SwapIdle:
		return "idle"
	case SwapWatchingInactive:
		return "watching_inactive"
	case SwapWatchingActive:
		return "watching_active"
	default:
		return fmt.Sprintf("SwapState(%d)", int(s))
	}
}

type timerState struct {
	initialized    bool
	bundleTimer    TimerID
	hasBundleTimer bool
	owners         map[TimerID]InstanceHandle
}

// Wrapper is one plugin instance as seen by the host. It owns the wrapped
// instance (and, during swaps, its predecessors) and forwards every call to
// the current one.
//
// Apart from the thread-safe requests of the wrapped plugin, every method
// must be called on the host's main thread. The audio thread only ever sees
// the processor returned by Activate.
type Wrapper struct {
	host     Host
	pluginID string

	logger   Logger
	metrics  *ReloadMetrics
	audit    *auditTrail
	settings func() RuntimeSettings

	registry *instanceRegistry
	current  InstanceHandle
	receiver *BundleReceiver
	requests *pluginRequests
	timers   timerState

	channel     *mainThreadChannel
	audioConfig *AudioConfig
	audioPorts  audioPortsLayout
	params      *ParamInfoCache
	gui         guiState
	reported    ReportedExtensions

	// restart bookkeeping while active
	restartPending     bool
	deferredRescan     ParamRescanFlags
	deferredPortRescan bool

	initialized bool
	destroyed   bool
}

type wrapperDeps struct {
	logger   Logger
	metrics  *ReloadMetrics
	audit    *auditTrail
	settings func() RuntimeSettings
}

// newWrapper creates the wrapper and the wrapped instance from bundle. The
// wrapped instance is initialized by Init.
func newWrapper(host Host, pluginID string, bundle *Bundle, receiver *BundleReceiver, deps wrapperDeps) (*Wrapper, error) {
	if deps.logger == nil {
		deps.logger = NewNoOpLogger()
	}
	if deps.settings == nil {
		defaults := DefaultConfig()
		deps.settings = staticSettings(defaults.RuntimeSettings())
	}

	w := &Wrapper{
		host:     host,
		pluginID: pluginID,
		logger:   deps.logger.With("plugin_id", pluginID),
		metrics:  deps.metrics,
		audit:    deps.audit,
		settings: deps.settings,
		registry: newInstanceRegistry(),
		receiver: receiver,
		requests: newPluginRequests(),
		timers:   timerState{owners: make(map[TimerID]InstanceHandle)},
		params:   NewParamInfoCache(nil),
	}

	inst, handle, err := w.createInstance(bundle)
	if err != nil {
		return nil, err
	}
	w.current = handle
	w.reported = reportExtensions(inst)
	return w, nil
}

// createInstance instantiates the wrapped plugin from bundle and registers
// it. The plugin is not initialized.
func (w *Wrapper) createInstance(bundle *Bundle) (*pluginInstance, InstanceHandle, error) {
	if _, ok := bundle.Descriptor(w.pluginID); !ok {
		return nil, InstanceHandle{}, NewPluginNotFoundError(w.pluginID)
	}

	host := newWrapperHost(w)
	plugin, err := bundle.Entry().CreatePlugin(host, w.pluginID)
	if err != nil {
		return nil, InstanceHandle{}, NewInstanceCreationError(w.pluginID, err)
	}
	if plugin == nil {
		return nil, InstanceHandle{}, NewInstanceCreationError(w.pluginID, nil)
	}

	inst := &pluginInstance{
		plugin:   plugin,
		bundle:   bundle,
		pluginID: w.pluginID,
		host:     host,
	}
	handle := w.registry.insert(inst)
	host.handle = handle
	return inst, handle, nil
}

// createInitializedInstance is createInstance followed by Init.
func (w *Wrapper) createInitializedInstance(bundle *Bundle) (*pluginInstance, InstanceHandle, error) {
	inst, handle, err := w.createInstance(bundle)
	if err != nil {
		return nil, InstanceHandle{}, err
	}
	if err := inst.plugin.Init(); err != nil {
		w.discardInstance(handle)
		return nil, InstanceHandle{}, NewInstanceInitError(w.pluginID, err)
	}
	return inst, handle, nil
}

// discardInstance drops an instance that never became current.
func (w *Wrapper) discardInstance(h InstanceHandle) {
	inst, err := w.registry.remove(h)
	if err != nil {
		return
	}
	inst.plugin.Destroy()
}

func (w *Wrapper) currentInstance() (*pluginInstance, error) {
	if w.destroyed {
		return nil, NewWrapperDestroyedError()
	}
	return w.registry.get(w.current)
}

// Init implements Plugin.
func (w *Wrapper) Init() error {
	inst, err := w.currentInstance()
	if err != nil {
		return err
	}
	if w.initialized {
		return nil
	}
	if err := inst.plugin.Init(); err != nil {
		return NewInstanceInitError(w.pluginID, err)
	}
	w.initialized = true

	ext, _ := inst.params()
	w.params = NewParamInfoCache(ext)
	w.audioPorts = readAudioPortsLayout(inst)

	w.logger.Debug("Wrapper initialized",
		"params", w.params.Len(),
		"output_ports", len(w.audioPorts.outputChannels),
		"hot_reload", w.receiver != nil)
	return nil
}

// Destroy implements Plugin. Every instance still owned by the wrapper is
// destroyed.
func (w *Wrapper) Destroy() {
	if w.destroyed {
		return
	}
	if w.channel != nil {
		w.Deactivate()
	}

	if w.timers.hasBundleTimer {
		if timer, ok := w.host.(HostTimer); ok {
			_ = timer.UnregisterTimer(w.timers.bundleTimer)
		}
		w.timers.hasBundleTimer = false
	}

	for _, h := range w.registry.handles() {
		w.destroyInstance(h)
	}
	if w.receiver != nil {
		w.receiver.Close()
	}
	w.destroyed = true
	w.logger.Debug("Wrapper destroyed")
}

// destroyInstance deactivates and destroys an instance and releases the
// timers it registered.
func (w *Wrapper) destroyInstance(h InstanceHandle) {
	inst, err := w.registry.remove(h)
	if err != nil {
		w.logger.Warn("Instance already released", "error", err)
		return
	}
	inst.destroy()

	for id, owner := range w.timers.owners {
		if owner != h {
			continue
		}
		delete(w.timers.owners, id)
		if timer, ok := w.host.(HostTimer); ok {
			_ = timer.UnregisterTimer(id)
		}
	}
	if h != w.current {
		w.metrics.RecordRetired(1)
	}
}

// Activate implements Plugin. The returned processor performs the
// audio-thread side of every swap until Deactivate.
func (w *Wrapper) Activate(config AudioConfig) (Processor, error) {
	inst, err := w.currentInstance()
	if err != nil {
		return nil, err
	}
	if w.channel != nil {
		return nil, NewAlreadyActivatedError()
	}
	if config.SampleRate <= 0 || config.MaxFramesCount == 0 || config.MinFramesCount > config.MaxFramesCount {
		return nil, NewMissingAudioConfigError()
	}

	proc, err := inst.plugin.Activate(config)
	if err != nil {
		return nil, NewActivationError(w.pluginID, err)
	}
	if proc == nil {
		inst.plugin.Deactivate()
		return nil, NewActivationError(w.pluginID, nil)
	}
	inst.activated = true
	inst.processor = proc

	cfg := config
	w.audioConfig = &cfg
	w.audioPorts = readAudioPortsLayout(inst)

	mainSide, audioSide := newProcessorChannels()
	w.channel = mainSide

	settings := w.settings()
	return newAudioProcessor(audioProcessorConfig{
		channel:        audioSide,
		initial:        newActiveProcessor(w.current, proc),
		fader:          NewCrossFader(config.SampleRate, settings.CrossfadeDuration),
		outputChannels: w.audioPorts.outputChannels,
		maxFrames:      config.MaxFramesCount,
		metrics:        w.metrics,
	}), nil
}

// Deactivate implements Plugin. The host has stopped using the processor
// returned by Activate, so every retired instance is released now and any
// rescan that was not allowed while active is reported.
func (w *Wrapper) Deactivate() {
	if w.channel == nil {
		return
	}
	released := w.channel.consume(w.destroyInstance)
	w.channel = nil
	w.audioConfig = nil

	if inst, err := w.registry.get(w.current); err == nil {
		inst.deactivate()
	}

	if released > 0 {
		w.logger.Debug("Released retired instances", "count", released)
	}

	w.restartPending = false
	if w.deferredRescan != 0 {
		flags := w.deferredRescan | ParamRescanText
		w.deferredRescan = 0
		if params, ok := w.host.(HostParams); ok {
			params.RescanParams(flags)
		}
	}
	if w.deferredPortRescan {
		w.deferredPortRescan = false
		w.rescanHostAudioPorts()
	}
}

// OnMainThread implements Plugin.
func (w *Wrapper) OnMainThread() {
	if w.destroyed {
		return
	}
	w.initTimers()
	w.tick()

	if w.requests.takeCallback() {
		if inst, err := w.registry.get(w.current); err == nil {
			inst.plugin.OnMainThread()
		}
	}
}

// tick is the periodic main-thread work: forward buffered requests, pick up
// new bundles and release instances the audio thread returned.
func (w *Wrapper) tick() {
	w.requests.process(w.host, w.logger)
	w.checkForNewBundles()
	if w.channel != nil {
		_, rejected := w.channel.destroyAwaiting(w.destroyInstance)
		if !rejected.IsZero() && rejected == w.current {
			w.restartAfterRejectedProcessor()
		}
	}
}

// restartAfterRejectedProcessor handles a processor the audio thread could
// not start. The audio thread kept the previous processor, so the host must
// restart the wrapper before the current instance can be heard.
func (w *Wrapper) restartAfterRejectedProcessor() {
	w.logger.Warn("New processor failed to start, requesting restart",
		"code", ErrCodeProcessingNotStarted)
	if w.restartPending {
		return
	}
	w.restartPending = true
	w.metrics.RecordDeferredRestart()
	w.host.RequestRestart()
}

// initTimers registers the bundle check timer on the first main-thread
// callback. Some hosts misbehave when timers are registered during Init.
func (w *Wrapper) initTimers() {
	if w.timers.initialized {
		return
	}
	w.timers.initialized = true
	if w.receiver == nil {
		return
	}
	timer, ok := w.host.(HostTimer)
	if !ok {
		w.logger.Debug("Host has no timer support, relying on callbacks")
		return
	}
	period := w.settings().CheckInterval
	if period <= 0 {
		period = DefaultCheckInterval
	}
	id, err := timer.RegisterTimer(uint32(period.Milliseconds())) // #nosec G115 -- validated positive duration
	if err != nil {
		w.logger.Warn("Bundle check timer unavailable", "error", NewTimerRegistrationError(err))
		return
	}
	w.timers.bundleTimer = id
	w.timers.hasBundleTimer = true
}

func (w *Wrapper) registerInstanceTimer(owner InstanceHandle, periodMillis uint32) (TimerID, error) {
	timer, ok := w.host.(HostTimer)
	if !ok {
		return 0, NewExtensionUnsupportedError("timer")
	}
	id, err := timer.RegisterTimer(periodMillis)
	if err != nil {
		return 0, NewTimerRegistrationError(err)
	}
	w.timers.owners[id] = owner
	return id, nil
}

func (w *Wrapper) unregisterInstanceTimer(owner InstanceHandle, id TimerID) error {
	if w.timers.owners[id] != owner {
		return NewTimerRegistrationError(fmt.Errorf("timer %d not owned by instance", id))
	}
	delete(w.timers.owners, id)
	timer, ok := w.host.(HostTimer)
	if !ok {
		return NewExtensionUnsupportedError("timer")
	}
	return timer.UnregisterTimer(id)
}

// instanceRescanParams handles a rescan requested by a wrapped instance.
// Only the current instance may change what the host sees.
func (w *Wrapper) instanceRescanParams(from InstanceHandle, flags ParamRescanFlags) {
	if from != w.current {
		return
	}
	inst, err := w.registry.get(from)
	if err != nil {
		return
	}
	ext, _ := inst.params()
	flags |= w.params.Update(ext)
	w.reportParamRescan(flags)
}

// reportParamRescan sends flags to the host, holding back ParamRescanAll
// while active.
func (w *Wrapper) reportParamRescan(flags ParamRescanFlags) {
	params, ok := w.host.(HostParams)
	if !ok || flags == 0 {
		return
	}
	if w.channel != nil && flags.RequiresRestart() {
		w.deferredRescan |= flags
		flags &^= ParamRescanAll
		w.host.RequestRestart()
	}
	if flags != 0 {
		params.RescanParams(flags)
	}
}

func (w *Wrapper) instanceRescanAudioPorts(from InstanceHandle, flags AudioPortsRescanFlags) {
	if from != w.current {
		return
	}
	ports, ok := w.host.(HostAudioPorts)
	if !ok {
		return
	}
	if w.channel != nil && flags&AudioPortsRescanList != 0 {
		w.deferredPortRescan = true
		w.host.RequestRestart()
		return
	}
	ports.RescanAudioPorts(flags)
}

// rescanHostAudioPorts tells the host the port list changed.
func (w *Wrapper) rescanHostAudioPorts() {
	ports, ok := w.host.(HostAudioPorts)
	if !ok || !ports.IsAudioPortsRescanSupported(AudioPortsRescanList) {
		return
	}
	ports.RescanAudioPorts(AudioPortsRescanList)
}

// SwapState reports how the wrapper currently handles new bundles.
func (w *Wrapper) SwapState() SwapState {
	switch {
	case w.receiver == nil:
		return SwapIdle
	case w.channel != nil:
		return SwapWatchingActive
	default:
		return SwapWatchingInactive
	}
}

// ReportedExtensions lists the extensions a host adapter should advertise.
func (w *Wrapper) ReportedExtensions() ReportedExtensions { return w.reported }

// CurrentBundle returns the bundle of the current instance.
func (w *Wrapper) CurrentBundle() *Bundle {
	inst, err := w.currentInstance()
	if err != nil {
		return nil
	}
	return inst.bundle
}

// PendingDestruction returns how many retired instances wait for the audio
// thread.
func (w *Wrapper) PendingDestruction() int {
	if w.channel == nil {
		return 0
	}
	return w.channel.pending()
}

// Metrics returns the metrics collector shared with the entry.
func (w *Wrapper) Metrics() *ReloadMetrics { return w.metrics }
