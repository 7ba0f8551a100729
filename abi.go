// abi.go: Plugin ABI contract consumed and exposed by the reloading wrapper
//
// The wrapper sits between a host and a wrapped plugin bundle, so every type in
// this file is used in both directions: the wrapper calls these interfaces on
// the wrapped plugin and implements the very same interfaces towards the host.
// Optional extensions are discovered with type assertions.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package clapreload

import (
	"io"
)

// Descriptor describes one plugin exposed by a bundle entry.
type Descriptor struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Vendor      string   `json:"vendor,omitempty" yaml:"vendor,omitempty"`
	URL         string   `json:"url,omitempty" yaml:"url,omitempty"`
	ManualURL   string   `json:"manual_url,omitempty" yaml:"manual_url,omitempty"`
	SupportURL  string   `json:"support_url,omitempty" yaml:"support_url,omitempty"`
	Version     string   `json:"version,omitempty" yaml:"version,omitempty"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Features    []string `json:"features,omitempty" yaml:"features,omitempty"`
}

// Clone returns a deep copy of the descriptor.
func (d Descriptor) Clone() Descriptor {
	clone := d
	if d.Features != nil {
		clone.Features = append([]string(nil), d.Features...)
	}
	return clone
}

// HostInfo identifies the host application.
type HostInfo struct {
	Name    string `json:"name"`
	Vendor  string `json:"vendor"`
	URL     string `json:"url"`
	Version string `json:"version"`
}

// Entry is the exported descriptor table of a plugin bundle.
//
// Implementations must be pointer types (or otherwise comparable) so that two
// loads of the same binary image can be recognized through interface equality.
type Entry interface {
	// Descriptors lists the plugins the bundle can instantiate.
	Descriptors() []Descriptor

	// CreatePlugin instantiates the plugin with the given id. The returned
	// plugin is not initialized yet.
	CreatePlugin(host Host, pluginID string) (Plugin, error)
}

// Host is the host-side handle given to a plugin instance.
//
// RequestRestart, RequestProcess and RequestCallback are thread-safe.
type Host interface {
	Info() HostInfo
	RequestRestart()
	RequestProcess()
	RequestCallback()
}

// AudioConfig is the audio configuration given on activation.
type AudioConfig struct {
	SampleRate     float64 `json:"sample_rate"`
	MinFramesCount uint32  `json:"min_frames_count"`
	MaxFramesCount uint32  `json:"max_frames_count"`
}

// Plugin is the main-thread view of an instantiated plugin.
type Plugin interface {
	Init() error
	Destroy()

	// Activate prepares audio processing and returns the processor that the
	// audio thread will drive. A plugin has at most one processor at a time.
	Activate(config AudioConfig) (Processor, error)

	// Deactivate releases the processor returned by Activate. It must only be
	// called once the audio thread no longer uses that processor.
	Deactivate()

	// OnMainThread is called after the plugin requested a callback.
	OnMainThread()
}

// ProcessStatus is returned by Processor.Process.
type ProcessStatus int

const (
	ProcessError ProcessStatus = iota
	ProcessContinue
	ProcessContinueIfNotQuiet
	ProcessTail
	ProcessSleep
)

// String returns a human-readable representation of the status.
func (s ProcessStatus) String() string {
	switch s {
	case ProcessContinue:
		return "continue"
	case ProcessContinueIfNotQuiet:
		return "continue_if_not_quiet"
	case ProcessTail:
		return "tail"
	case ProcessSleep:
		return "sleep"
	default:
		return "error"
	}
}

// Processor is the audio-thread view of an activated plugin.
type Processor interface {
	StartProcessing() error
	StopProcessing()
	Reset()
	Process(process *Process) (ProcessStatus, error)
}

// AudioPortInfo describes one audio port.
type AudioPortInfo struct {
	ID           uint32 `json:"id"`
	Name         string `json:"name"`
	Flags        uint32 `json:"flags"`
	ChannelCount uint32 `json:"channel_count"`
	PortType     string `json:"port_type,omitempty"`
	InPlacePair  uint32 `json:"in_place_pair"`
}

// AudioPortsExtension is implemented by plugins exposing audio ports.
type AudioPortsExtension interface {
	AudioPortCount(isInput bool) uint32
	AudioPortInfo(index uint32, isInput bool) (AudioPortInfo, bool)
}

// NotePortInfo describes one note port.
type NotePortInfo struct {
	ID                uint32 `json:"id"`
	Name              string `json:"name"`
	SupportedDialects uint32 `json:"supported_dialects"`
	PreferredDialect  uint32 `json:"preferred_dialect"`
}

// Note dialects.
const (
	NoteDialectCLAP uint32 = 1 << iota
	NoteDialectMIDI
	NoteDialectMIDIMPE
	NoteDialectMIDI2
)

// NotePortsExtension is implemented by plugins exposing note ports.
type NotePortsExtension interface {
	NotePortCount(isInput bool) uint32
	NotePortInfo(index uint32, isInput bool) (NotePortInfo, bool)
}

// ParamsExtension is the main-thread parameter interface.
type ParamsExtension interface {
	ParamCount() uint32
	ParamInfo(index uint32) (ParamInfo, bool)
	ParamValue(id uint32) (float64, bool)
	ParamValueToText(id uint32, value float64) (string, error)
	ParamTextToValue(id uint32, text string) (float64, error)
	FlushParams(in InputEvents, out OutputEvents)
}

// ProcessorParamsExtension is implemented by processors able to flush
// parameter changes while active.
type ProcessorParamsExtension interface {
	FlushParams(in InputEvents, out OutputEvents)
}

// StateExtension serializes the plugin state as an opaque byte stream.
type StateExtension interface {
	SaveState(w io.Writer) error
	LoadState(r io.Reader) error
}

// GUIConfig selects a windowing API and embedding mode.
type GUIConfig struct {
	API        string `json:"api"`
	IsFloating bool   `json:"is_floating"`
}

// GUISize is a size in pixels.
type GUISize struct {
	Width  uint32 `json:"width"`
	Height uint32 `json:"height"`
}

// GUIResizeHints describes how the GUI can be resized.
type GUIResizeHints struct {
	CanResizeHorizontally bool   `json:"can_resize_horizontally"`
	CanResizeVertically   bool   `json:"can_resize_vertically"`
	PreserveAspectRatio   bool   `json:"preserve_aspect_ratio"`
	AspectRatioWidth      uint32 `json:"aspect_ratio_width"`
	AspectRatioHeight     uint32 `json:"aspect_ratio_height"`
}

// Window is a platform window reference.
type Window struct {
	API    string  `json:"api"`
	Handle uintptr `json:"handle"`
}

// GUIExtension is implemented by plugins with an editor.
type GUIExtension interface {
	IsAPISupported(config GUIConfig) bool
	PreferredAPI() (GUIConfig, bool)
	CreateGUI(config GUIConfig) error
	DestroyGUI()
	SetScale(scale float64) error
	GUISize() (GUISize, bool)
	CanResize() bool
	ResizeHints() (GUIResizeHints, bool)
	AdjustSize(size GUISize) (GUISize, bool)
	SetSize(size GUISize) error
	SetParent(window Window) error
	SetTransient(window Window) error
	SuggestTitle(title string)
	ShowGUI() error
	HideGUI() error
}

// LatencyExtension reports processing latency in samples.
type LatencyExtension interface {
	Latency() uint32
}

// TimerID identifies a registered host timer.
type TimerID uint32

// TimerExtension is implemented by plugins receiving host timer ticks.
type TimerExtension interface {
	OnTimer(id TimerID)
}

// HostParams is implemented by hosts supporting the params extension.
type HostParams interface {
	RescanParams(flags ParamRescanFlags)
	ClearParam(id uint32, flags uint32)
	RequestParamFlush()
}

// HostGUI is implemented by hosts embedding plugin editors.
type HostGUI interface {
	ResizeHintsChanged()
	RequestResize(width, height uint32) error
	RequestShow() error
	RequestHide() error
	GUIClosed(wasDestroyed bool)
}

// HostLatency is implemented by hosts accepting latency change notifications.
type HostLatency interface {
	LatencyChanged()
}

// HostTimer is implemented by hosts providing main-thread timers.
type HostTimer interface {
	RegisterTimer(periodMillis uint32) (TimerID, error)
	UnregisterTimer(id TimerID) error
}

// AudioPortsRescanFlags select what changed in the audio port layout.
type AudioPortsRescanFlags uint32

const (
	AudioPortsRescanNames AudioPortsRescanFlags = 1 << iota
	AudioPortsRescanFlagsChanged
	AudioPortsRescanChannelCount
	AudioPortsRescanPortType
	AudioPortsRescanInPlacePair
	AudioPortsRescanList
)

// HostAudioPorts is implemented by hosts supporting audio port rescans.
type HostAudioPorts interface {
	IsAudioPortsRescanSupported(flags AudioPortsRescanFlags) bool
	RescanAudioPorts(flags AudioPortsRescanFlags)
}

// HostNotePorts is implemented by hosts supporting note port rescans.
type HostNotePorts interface {
	SupportedNoteDialects() uint32
	RescanNotePorts(flags uint32)
}
