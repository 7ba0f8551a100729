// extensions.go: Extensions the wrapper forwards to the current instance
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package clapreload

import (
	"slices"
)

// ReportedExtensions lists the optional extensions the wrapped plugin
// supports. The wrapper implements every extension interface in Go; a host
// adapter should only advertise the ones reported here. GUI and timer
// support are always reported since the wrapper needs them itself.
type ReportedExtensions struct {
	AudioPorts bool `json:"audio_ports"`
	NotePorts  bool `json:"note_ports"`
	Params     bool `json:"params"`
	State      bool `json:"state"`
	Latency    bool `json:"latency"`
	GUI        bool `json:"gui"`
	Timer      bool `json:"timer"`
}

func reportExtensions(inst *pluginInstance) ReportedExtensions {
	_, audioPorts := inst.audioPorts()
	_, notePorts := inst.notePorts()
	_, params := inst.params()
	_, state := inst.state()
	_, latency := inst.latency()
	return ReportedExtensions{
		AudioPorts: audioPorts,
		NotePorts:  notePorts,
		Params:     params,
		State:      state,
		Latency:    latency,
		GUI:        true,
		Timer:      true,
	}
}

// defaultOutputChannels is the layout assumed for plugins without an audio
// ports extension: one stereo port.
var defaultOutputChannels = []uint32{2}

// audioPortsLayout is the output channel count of every output port.
type audioPortsLayout struct {
	outputChannels []uint32
}

func readAudioPortsLayout(inst *pluginInstance) audioPortsLayout {
	ports, ok := inst.audioPorts()
	if !ok {
		return audioPortsLayout{outputChannels: slices.Clone(defaultOutputChannels)}
	}
	count := ports.AudioPortCount(false)
	layout := audioPortsLayout{outputChannels: make([]uint32, 0, count)}
	for i := uint32(0); i < count; i++ {
		info, ok := ports.AudioPortInfo(i, false)
		if !ok {
			continue
		}
		layout.outputChannels = append(layout.outputChannels, info.ChannelCount)
	}
	return layout
}

func (l audioPortsLayout) equal(other audioPortsLayout) bool {
	return slices.Equal(l.outputChannels, other.outputChannels)
}

// Audio ports

// AudioPortCount implements AudioPortsExtension.
func (w *Wrapper) AudioPortCount(isInput bool) uint32 {
	inst, err := w.currentInstance()
	if err != nil {
		return 0
	}
	ports, ok := inst.audioPorts()
	if !ok {
		if isInput {
			return 0
		}
		return uint32(len(defaultOutputChannels))
	}
	return ports.AudioPortCount(isInput)
}

// AudioPortInfo implements AudioPortsExtension.
func (w *Wrapper) AudioPortInfo(index uint32, isInput bool) (AudioPortInfo, bool) {
	inst, err := w.currentInstance()
	if err != nil {
		return AudioPortInfo{}, false
	}
	ports, ok := inst.audioPorts()
	if !ok {
		if isInput || index != 0 {
			return AudioPortInfo{}, false
		}
		return AudioPortInfo{ID: 0, Name: "Main", ChannelCount: 2, PortType: "stereo"}, true
	}
	return ports.AudioPortInfo(index, isInput)
}

// Note ports

// NotePortCount implements NotePortsExtension.
func (w *Wrapper) NotePortCount(isInput bool) uint32 {
	inst, err := w.currentInstance()
	if err != nil {
		return 0
	}
	ports, ok := inst.notePorts()
	if !ok {
		return 0
	}
	return ports.NotePortCount(isInput)
}

// NotePortInfo implements NotePortsExtension.
func (w *Wrapper) NotePortInfo(index uint32, isInput bool) (NotePortInfo, bool) {
	inst, err := w.currentInstance()
	if err != nil {
		return NotePortInfo{}, false
	}
	ports, ok := inst.notePorts()
	if !ok {
		return NotePortInfo{}, false
	}
	return ports.NotePortInfo(index, isInput)
}

// Latency implements LatencyExtension.
func (w *Wrapper) Latency() uint32 {
	inst, err := w.currentInstance()
	if err != nil {
		return 0
	}
	latency, ok := inst.latency()
	if !ok {
		return 0
	}
	return latency.Latency()
}

// Params
//
// Count and info are served from the cache so the host always sees the list
// it was last told about. Values and conversions go to the live instance.

// ParamCount implements ParamsExtension.
func (w *Wrapper) ParamCount() uint32 {
	return uint32(w.params.Len()) // #nosec G115 -- bounded by the wrapped plugin's uint32 count
}

// ParamInfo implements ParamsExtension.
func (w *Wrapper) ParamInfo(index uint32) (ParamInfo, bool) {
	return w.params.At(index)
}

func (w *Wrapper) currentParams() (ParamsExtension, error) {
	inst, err := w.currentInstance()
	if err != nil {
		return nil, err
	}
	params, ok := inst.params()
	if !ok {
		return nil, NewExtensionUnsupportedError("params")
	}
	return params, nil
}

// ParamValue implements ParamsExtension.
func (w *Wrapper) ParamValue(id uint32) (float64, bool) {
	params, err := w.currentParams()
	if err != nil {
		return 0, false
	}
	return params.ParamValue(id)
}

// ParamValueToText implements ParamsExtension.
func (w *Wrapper) ParamValueToText(id uint32, value float64) (string, error) {
	params, err := w.currentParams()
	if err != nil {
		return "", err
	}
	text, err := params.ParamValueToText(id, value)
	if err != nil {
		return "", NewParamCallError("value_to_text", id, err)
	}
	return text, nil
}

// ParamTextToValue implements ParamsExtension.
func (w *Wrapper) ParamTextToValue(id uint32, text string) (float64, error) {
	params, err := w.currentParams()
	if err != nil {
		return 0, err
	}
	value, err := params.ParamTextToValue(id, text)
	if err != nil {
		return 0, NewParamCallError("text_to_value", id, err)
	}
	return value, nil
}

// FlushParams implements ParamsExtension. It is only valid while the
// wrapper is not active; the audio thread flushes through the processor.
func (w *Wrapper) FlushParams(in InputEvents, out OutputEvents) {
	params, err := w.currentParams()
	if err != nil {
		return
	}
	if out == nil {
		out = discardEvents{}
	}
	params.FlushParams(eventsOrEmpty(in), out)
}

// Timer

// OnTimer implements TimerExtension. The wrapper's own bundle check timer
// polls for new bundles; any other id is routed to the instance that
// registered it.
func (w *Wrapper) OnTimer(id TimerID) {
	if w.timers.hasBundleTimer && id == w.timers.bundleTimer {
		w.tick()
		return
	}
	owner, ok := w.timers.owners[id]
	if !ok {
		return
	}
	inst, err := w.registry.get(owner)
	if err != nil {
		delete(w.timers.owners, id)
		return
	}
	if timer, ok := inst.timer(); ok {
		timer.OnTimer(id)
	}
}
