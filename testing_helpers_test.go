// testing_helpers_test.go: Shared fakes and helpers for wrapper tests
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package clapreload

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

// TestEnvironment provides cross-platform test utilities
type TestEnvironment struct {
	t       *testing.T
	dir     string
	cleanup []func()
	mu      sync.Mutex
}

// NewTestEnvironment creates a new test environment with automatic cleanup
func NewTestEnvironment(t *testing.T) *TestEnvironment {
	env := &TestEnvironment{t: t, dir: t.TempDir()}
	t.Cleanup(env.Cleanup)
	return env
}

// TempDir returns the environment's temporary directory
func (te *TestEnvironment) TempDir() string { return te.dir }

// CreateTempFile creates a file with the given name and content
func (te *TestEnvironment) CreateTempFile(name, content string) string {
	te.t.Helper()
	path := filepath.Join(te.dir, name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		te.t.Fatalf("Failed to create temp file: %v", err)
	}
	return path
}

// AddCleanupFunc registers fn to run when the test ends
func (te *TestEnvironment) AddCleanupFunc(fn func()) {
	te.mu.Lock()
	defer te.mu.Unlock()
	te.cleanup = append(te.cleanup, fn)
}

// Cleanup runs registered cleanup functions in reverse order
func (te *TestEnvironment) Cleanup() {
	te.mu.Lock()
	fns := te.cleanup
	te.cleanup = nil
	te.mu.Unlock()
	for i := len(fns) - 1; i >= 0; i-- {
		fns[i]()
	}
}

// TestAssertions provides enhanced test assertion helpers
type TestAssertions struct {
	t *testing.T
}

// NewTestAssertions creates new test assertion helper
func NewTestAssertions(t *testing.T) *TestAssertions {
	return &TestAssertions{t: t}
}

// AssertNoError asserts that error is nil, with context
func (ta *TestAssertions) AssertNoError(err error, context string) {
	ta.t.Helper()
	if err != nil {
		ta.t.Fatalf("Expected no error in %s, got: %v", context, err)
	}
}

// AssertError asserts that error is not nil, with context
func (ta *TestAssertions) AssertError(err error, context string) {
	ta.t.Helper()
	if err == nil {
		ta.t.Fatalf("Expected error in %s, got nil", context)
	}
}

// AssertEqual asserts that two values are equal
func (ta *TestAssertions) AssertEqual(expected, actual interface{}, context string) {
	ta.t.Helper()
	if expected != actual {
		ta.t.Fatalf("Expected %v in %s, got %v", expected, context, actual)
	}
}

// AssertTrue asserts that condition is true
func (ta *TestAssertions) AssertTrue(condition bool, context string) {
	ta.t.Helper()
	if !condition {
		ta.t.Fatalf("Expected true condition in %s", context)
	}
}

// AssertFalse asserts that condition is false
func (ta *TestAssertions) AssertFalse(condition bool, context string) {
	ta.t.Helper()
	if condition {
		ta.t.Fatalf("Expected false condition in %s", context)
	}
}

// AssertNotNil asserts that value is not nil
func (ta *TestAssertions) AssertNotNil(value interface{}, context string) {
	ta.t.Helper()
	if value == nil {
		ta.t.Fatalf("Expected non-nil value in %s", context)
	}
}

// AssertErrorCode asserts that err carries the structured error code
func (ta *TestAssertions) AssertErrorCode(err error, code string, context string) {
	ta.t.Helper()
	if err == nil {
		ta.t.Fatalf("Expected error %s in %s, got nil", code, context)
	}
	if got := ErrorCodeOf(err); got != code {
		ta.t.Fatalf("Expected error code %s in %s, got %q (%v)", code, context, got, err)
	}
}

// WaitForCondition waits for a condition to be true with timeout
func (ta *TestAssertions) WaitForCondition(condition func() bool, timeout time.Duration, message string) {
	ta.t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	ta.t.Fatalf("Condition not met within %v: %s", timeout, message)
}

// CrossPlatformHelpers provides OS-aware test utilities
type CrossPlatformHelpers struct{}

// IsWindows returns true if running on Windows
func (cph *CrossPlatformHelpers) IsWindows() bool {
	return runtime.GOOS == "windows"
}

// SkipWithoutSymlinks skips tests that need unprivileged symlinks
func (cph *CrossPlatformHelpers) SkipWithoutSymlinks(t *testing.T) {
	t.Helper()
	if cph.IsWindows() {
		t.Skip("symlinks need elevated privileges on Windows")
	}
}

// Global helper instances
var CrossPlatform = &CrossPlatformHelpers{}

const testPluginID = "com.agilira.test.gain"

// Host fakes

// fakeHost implements Host and every host extension the wrapper uses.
// Request counters are atomic since the watcher calls RequestCallback from
// its own goroutine.
type fakeHost struct {
	callbacks atomic.Int32
	restarts  atomic.Int32
	processes atomic.Int32

	mu              sync.Mutex
	rescans         []ParamRescanFlags
	cleared         []uint32
	paramFlushes    int
	portRescans     []AudioPortsRescanFlags
	notePortRescans []uint32
	resizes         []GUISize
	guiEvents       []string
	latencyChanges  int
	timers          map[TimerID]uint32
	nextTimer       TimerID
	unregistered    []TimerID
}

func newFakeHost() *fakeHost {
	return &fakeHost{timers: make(map[TimerID]uint32), nextTimer: 100}
}

func (h *fakeHost) Info() HostInfo {
	return HostInfo{Name: "fake-host", Vendor: "AGILira", Version: "1.0.0"}
}
func (h *fakeHost) RequestRestart()  { h.restarts.Add(1) }
func (h *fakeHost) RequestProcess()  { h.processes.Add(1) }
func (h *fakeHost) RequestCallback() { h.callbacks.Add(1) }

func (h *fakeHost) RescanParams(flags ParamRescanFlags) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rescans = append(h.rescans, flags)
}

func (h *fakeHost) ClearParam(id uint32, flags uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cleared = append(h.cleared, id)
}

func (h *fakeHost) RequestParamFlush() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.paramFlushes++
}

func (h *fakeHost) ResizeHintsChanged() { h.guiEvent("hints") }

func (h *fakeHost) RequestResize(width, height uint32) error {
	h.mu.Lock()
	h.resizes = append(h.resizes, GUISize{Width: width, Height: height})
	h.mu.Unlock()
	h.guiEvent("resize")
	return nil
}

func (h *fakeHost) RequestShow() error { h.guiEvent("show"); return nil }
func (h *fakeHost) RequestHide() error { h.guiEvent("hide"); return nil }

func (h *fakeHost) GUIClosed(wasDestroyed bool) {
	h.guiEvent("closed:" + strconv.FormatBool(wasDestroyed))
}

func (h *fakeHost) guiEvent(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.guiEvents = append(h.guiEvents, name)
}

func (h *fakeHost) LatencyChanged() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.latencyChanges++
}

func (h *fakeHost) RegisterTimer(periodMillis uint32) (TimerID, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextTimer++
	h.timers[h.nextTimer] = periodMillis
	return h.nextTimer, nil
}

func (h *fakeHost) UnregisterTimer(id TimerID) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.timers[id]; !ok {
		return fmt.Errorf("unknown timer %d", id)
	}
	delete(h.timers, id)
	h.unregistered = append(h.unregistered, id)
	return nil
}

func (h *fakeHost) IsAudioPortsRescanSupported(flags AudioPortsRescanFlags) bool { return true }

func (h *fakeHost) RescanAudioPorts(flags AudioPortsRescanFlags) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.portRescans = append(h.portRescans, flags)
}

func (h *fakeHost) SupportedNoteDialects() uint32 { return NoteDialectCLAP | NoteDialectMIDI }

func (h *fakeHost) RescanNotePorts(flags uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.notePortRescans = append(h.notePortRescans, flags)
}

func (h *fakeHost) Rescans() []ParamRescanFlags {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]ParamRescanFlags(nil), h.rescans...)
}

func (h *fakeHost) GUIEvents() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.guiEvents...)
}

func (h *fakeHost) TimerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.timers)
}

// bareHost supports no extension at all.
type bareHost struct {
	callbacks atomic.Int32
}

func (h *bareHost) Info() HostInfo   { return HostInfo{Name: "bare-host"} }
func (h *bareHost) RequestRestart()  {}
func (h *bareHost) RequestProcess()  {}
func (h *bareHost) RequestCallback() { h.callbacks.Add(1) }

// Plugin fakes

func volumeParam() ParamInfo {
	return ParamInfo{ID: 1, Name: "Volume", Flags: ParamIsAutomatable, MinValue: 0, MaxValue: 1, DefaultValue: 0.5}
}

func driveParam() ParamInfo {
	return ParamInfo{ID: 2, Name: "Drive", Flags: ParamIsAutomatable, MinValue: 0, MaxValue: 1, DefaultValue: 0}
}

// fakePlugin is a gain plugin writing a constant to every output sample.
type fakePlugin struct {
	label  string
	host   Host
	output float32

	params         []ParamInfo
	values         map[uint32]float64
	state          []byte
	loaded         []byte
	outputChannels []uint32

	initErr           error
	activateErr       error
	saveErr           error
	processorStartErr error

	initCount       int
	activateCount   int
	deactivateCount int
	mainThreadCount int
	destroyed       bool
	processor       *fakeProcessor

	guiCalls     []string
	guiCanResize bool
	guiSize      GUISize
	timerTicks   []TimerID
}

func newFakePlugin(label string, output float32, params ...ParamInfo) *fakePlugin {
	values := make(map[uint32]float64, len(params))
	for _, p := range params {
		values[p.ID] = p.DefaultValue
	}
	return &fakePlugin{
		label:          label,
		output:         output,
		params:         params,
		values:         values,
		state:          []byte("state:" + label),
		outputChannels: []uint32{2},
		guiCanResize:   true,
		guiSize:        GUISize{Width: 400, Height: 300},
	}
}

func (p *fakePlugin) Init() error {
	p.initCount++
	return p.initErr
}

func (p *fakePlugin) Destroy() { p.destroyed = true }

func (p *fakePlugin) Activate(config AudioConfig) (Processor, error) {
	p.activateCount++
	if p.activateErr != nil {
		return nil, p.activateErr
	}
	p.processor = &fakeProcessor{value: p.output, startErr: p.processorStartErr}
	return p.processor, nil
}

func (p *fakePlugin) Deactivate() {
	p.deactivateCount++
	p.processor = nil
}

func (p *fakePlugin) OnMainThread() { p.mainThreadCount++ }

func (p *fakePlugin) ParamCount() uint32 { return uint32(len(p.params)) }

func (p *fakePlugin) ParamInfo(index uint32) (ParamInfo, bool) {
	if int(index) >= len(p.params) {
		return ParamInfo{}, false
	}
	return p.params[index], true
}

func (p *fakePlugin) ParamValue(id uint32) (float64, bool) {
	v, ok := p.values[id]
	return v, ok
}

func (p *fakePlugin) ParamValueToText(id uint32, value float64) (string, error) {
	if _, ok := p.values[id]; !ok {
		return "", fmt.Errorf("unknown param %d", id)
	}
	return strconv.FormatFloat(value, 'f', 2, 64), nil
}

func (p *fakePlugin) ParamTextToValue(id uint32, text string) (float64, error) {
	if _, ok := p.values[id]; !ok {
		return 0, fmt.Errorf("unknown param %d", id)
	}
	return strconv.ParseFloat(text, 64)
}

func (p *fakePlugin) FlushParams(in InputEvents, out OutputEvents) {}

func (p *fakePlugin) SaveState(w io.Writer) error {
	if p.saveErr != nil {
		return p.saveErr
	}
	_, err := w.Write(p.state)
	return err
}

func (p *fakePlugin) LoadState(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	p.loaded = data
	return nil
}

func (p *fakePlugin) AudioPortCount(isInput bool) uint32 {
	if isInput {
		return 0
	}
	return uint32(len(p.outputChannels))
}

func (p *fakePlugin) AudioPortInfo(index uint32, isInput bool) (AudioPortInfo, bool) {
	if isInput || int(index) >= len(p.outputChannels) {
		return AudioPortInfo{}, false
	}
	return AudioPortInfo{ID: index, Name: "Out", ChannelCount: p.outputChannels[index]}, true
}

func (p *fakePlugin) IsAPISupported(config GUIConfig) bool { return config.API != "unsupported" }

func (p *fakePlugin) PreferredAPI() (GUIConfig, bool) {
	return GUIConfig{API: "x11"}, true
}

func (p *fakePlugin) CreateGUI(config GUIConfig) error {
	p.guiCalls = append(p.guiCalls, "create")
	return nil
}

func (p *fakePlugin) DestroyGUI() { p.guiCalls = append(p.guiCalls, "destroy") }

func (p *fakePlugin) SetScale(scale float64) error {
	p.guiCalls = append(p.guiCalls, "scale")
	return nil
}

func (p *fakePlugin) GUISize() (GUISize, bool) { return p.guiSize, true }

func (p *fakePlugin) CanResize() bool { return p.guiCanResize }

func (p *fakePlugin) ResizeHints() (GUIResizeHints, bool) {
	return GUIResizeHints{CanResizeHorizontally: true, CanResizeVertically: true}, true
}

func (p *fakePlugin) AdjustSize(size GUISize) (GUISize, bool) { return size, true }

func (p *fakePlugin) SetSize(size GUISize) error {
	p.guiCalls = append(p.guiCalls, "size")
	p.guiSize = size
	return nil
}

func (p *fakePlugin) SetParent(window Window) error {
	p.guiCalls = append(p.guiCalls, "parent")
	return nil
}

func (p *fakePlugin) SetTransient(window Window) error {
	p.guiCalls = append(p.guiCalls, "transient")
	return nil
}

func (p *fakePlugin) SuggestTitle(title string) { p.guiCalls = append(p.guiCalls, "title") }

func (p *fakePlugin) ShowGUI() error {
	p.guiCalls = append(p.guiCalls, "show")
	return nil
}

func (p *fakePlugin) HideGUI() error {
	p.guiCalls = append(p.guiCalls, "hide")
	return nil
}

func (p *fakePlugin) Latency() uint32 { return 0 }

func (p *fakePlugin) OnTimer(id TimerID) { p.timerTicks = append(p.timerTicks, id) }

// minimalPlugin implements no extension.
type minimalPlugin struct {
	destroyed bool
}

func (p *minimalPlugin) Init() error { return nil }
func (p *minimalPlugin) Destroy()    { p.destroyed = true }
func (p *minimalPlugin) Activate(config AudioConfig) (Processor, error) {
	return &fakeProcessor{value: 1}, nil
}
func (p *minimalPlugin) Deactivate()   {}
func (p *minimalPlugin) OnMainThread() {}

// fakeProcessor fills every output sample with value and records the events
// it received.
type fakeProcessor struct {
	value    float32
	startErr error
	status   ProcessStatus // ProcessContinue when zero

	started bool
	starts  int
	stops   int
	resets  int
	blocks  int
	flushes int
	events  []Event
}

func (p *fakeProcessor) StartProcessing() error {
	if p.startErr != nil {
		return p.startErr
	}
	p.started = true
	p.starts++
	return nil
}

func (p *fakeProcessor) StopProcessing() {
	p.started = false
	p.stops++
}

func (p *fakeProcessor) Reset() { p.resets++ }

func (p *fakeProcessor) Process(process *Process) (ProcessStatus, error) {
	p.blocks++
	if process.InEvents != nil {
		for i := 0; i < process.InEvents.Len(); i++ {
			p.events = append(p.events, process.InEvents.Get(i))
		}
	}
	for port := range process.AudioOutputs {
		buf := &process.AudioOutputs[port]
		for ch := range buf.Channels {
			for i := 0; i < int(process.FramesCount) && i < len(buf.Channels[ch]); i++ {
				buf.Channels[ch][i] = p.value
			}
		}
		buf.ConstantMask = (uint64(1) << uint(len(buf.Channels))) - 1
	}
	if p.status == ProcessError {
		return ProcessContinue, nil
	}
	return p.status, nil
}

func (p *fakeProcessor) FlushParams(in InputEvents, out OutputEvents) { p.flushes++ }

// fakeEntry builds plugins with build. It is a pointer type, so two loads
// returning the same *fakeEntry are recognized as the same image.
type fakeEntry struct {
	descriptors []Descriptor
	build       func() Plugin
	createErr   error
	created     []Plugin
}

func newFakeEntry(build func() Plugin) *fakeEntry {
	return &fakeEntry{
		descriptors: []Descriptor{{ID: testPluginID, Name: "Test Gain", Vendor: "AGILira", Version: "1.0.0"}},
		build:       build,
	}
}

// gainEntry returns an entry creating fakePlugins with the given output
// value and parameters.
func gainEntry(label string, output float32, params ...ParamInfo) *fakeEntry {
	return newFakeEntry(func() Plugin { return newFakePlugin(label, output, params...) })
}

func (e *fakeEntry) Descriptors() []Descriptor { return e.descriptors }

func (e *fakeEntry) CreatePlugin(host Host, pluginID string) (Plugin, error) {
	if e.createErr != nil {
		return nil, e.createErr
	}
	found := false
	for _, d := range e.descriptors {
		if d.ID == pluginID {
			found = true
		}
	}
	if !found {
		return nil, fmt.Errorf("no plugin %s", pluginID)
	}
	p := e.build()
	if fp, ok := p.(*fakePlugin); ok {
		fp.host = host
	}
	e.created = append(e.created, p)
	return p, nil
}

// lastPlugin returns the most recently created fakePlugin.
func (e *fakeEntry) lastPlugin() *fakePlugin {
	if len(e.created) == 0 {
		return nil
	}
	p, _ := e.created[len(e.created)-1].(*fakePlugin)
	return p
}

// switchingOpener returns whichever entry was set last.
type switchingOpener struct {
	mu    sync.Mutex
	entry Entry
	err   error
	opens int
}

func (o *switchingOpener) set(entry Entry) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.entry = entry
}

func (o *switchingOpener) fail(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.err = err
}

func (o *switchingOpener) Open(path, symbol string) (Entry, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opens++
	if o.err != nil {
		return nil, o.err
	}
	return o.entry, nil
}

func (o *switchingOpener) Opens() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opens
}

// fakeFileWatcher stands in for fsnotify.
type fakeFileWatcher struct {
	mu      sync.Mutex
	added   []string
	fail    map[string]bool
	failAll bool
	closed  bool
	events  chan fsnotify.Event
	errors  chan error
}

func newFakeFileWatcher() *fakeFileWatcher {
	return &fakeFileWatcher{
		fail:   make(map[string]bool),
		events: make(chan fsnotify.Event, 16),
		errors: make(chan error, 4),
	}
}

func (f *fakeFileWatcher) Add(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll || f.fail[name] {
		return fmt.Errorf("cannot watch %s", name)
	}
	f.added = append(f.added, name)
	return nil
}

func (f *fakeFileWatcher) Remove(name string) error { return nil }

func (f *fakeFileWatcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeFileWatcher) Events() <-chan fsnotify.Event { return f.events }
func (f *fakeFileWatcher) Errors() <-chan error          { return f.errors }

func (f *fakeFileWatcher) Added() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.added...)
}

func (f *fakeFileWatcher) factory() func(WatcherConfig) (fileWatcher, error) {
	return func(WatcherConfig) (fileWatcher, error) { return f, nil }
}

// Audio helpers

// newTestProcess allocates a process call with one output port.
func newTestProcess(frames uint32, channels int, events InputEvents) *Process {
	out := AudioBuffer{Channels: make([][]float32, channels)}
	for ch := range out.Channels {
		out.Channels[ch] = make([]float32, frames)
	}
	return &Process{
		SteadyTime:   -1,
		FramesCount:  frames,
		AudioOutputs: []AudioBuffer{out},
		InEvents:     events,
		OutEvents:    NewEventBuffer(16),
	}
}

func eventList(events ...Event) *EventBuffer {
	b := NewEventBuffer(len(events) + 1)
	for _, ev := range events {
		b.TryPush(ev)
	}
	return b
}

var testAudioConfig = AudioConfig{SampleRate: 48000, MinFramesCount: 1, MaxFramesCount: 64}

// noFadeSettings makes swaps replace the processor within one block.
func noFadeSettings() RuntimeSettings {
	c := DefaultConfig()
	s := c.RuntimeSettings()
	s.CrossfadeDuration = 0
	return s
}

// newTestWrapper creates and initializes a wrapper following a fanout
// seeded with bundle. Publishing to the returned producer simulates a
// rebuilt bundle.
func newTestWrapper(t *testing.T, host Host, bundle *Bundle, logger Logger) (*Wrapper, *BundleProducer) {
	t.Helper()
	return newTestWrapperWithSettings(t, host, bundle, logger, noFadeSettings)
}

// newTestWrapperWithSettings is newTestWrapper with explicit runtime settings.
func newTestWrapperWithSettings(t *testing.T, host Host, bundle *Bundle, logger Logger, settings func() RuntimeSettings) (*Wrapper, *BundleProducer) {
	t.Helper()
	producer, factory := NewBundleFanout(bundle)
	receiver := factory.NewReceiverWithNotify(host.RequestCallback)
	if logger == nil {
		logger = NewTestLogger()
	}
	w, err := newWrapper(host, testPluginID, bundle, receiver, wrapperDeps{
		logger:   logger,
		metrics:  NewReloadMetrics(),
		settings: settings,
	})
	if err != nil {
		t.Fatalf("newWrapper: %v", err)
	}
	if err := w.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(w.Destroy)
	return w, producer
}
