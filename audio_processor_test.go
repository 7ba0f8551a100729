// audio_processor_test.go: Audio-thread swap, crossfade and note replay tests
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package clapreload

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type audioFixture struct {
	main    *mainThreadChannel
	proc    *audioProcessor
	metrics *ReloadMetrics
	first   *fakeProcessor
	handle  InstanceHandle
}

func newAudioFixture(fader *CrossFader) *audioFixture {
	mainSide, audioSide := newProcessorChannels()
	first := &fakeProcessor{value: 0}
	handle := InstanceHandle{index: 0, generation: 1}
	metrics := NewReloadMetrics()
	proc := newAudioProcessor(audioProcessorConfig{
		channel:        audioSide,
		initial:        newActiveProcessor(handle, first),
		fader:          fader,
		outputChannels: []uint32{1},
		maxFrames:      16,
		metrics:        metrics,
	})
	return &audioFixture{main: mainSide, proc: proc, metrics: metrics, first: first, handle: handle}
}

func (f *audioFixture) destroyed() []InstanceHandle {
	var out []InstanceHandle
	f.main.destroyAwaiting(func(h InstanceHandle) { out = append(out, h) })
	return out
}

func TestAudioProcessor_PassThrough(t *testing.T) {
	fx := newAudioFixture(&CrossFader{})

	process := newTestProcess(4, 1, eventList(ParamValueEvent(0, 1, 0.3)))
	status, err := fx.proc.Process(process)
	require.NoError(t, err)
	assert.Equal(t, ProcessContinue, status)

	assert.True(t, fx.first.started, "processing is started on the first block")
	assert.Equal(t, 1, fx.first.blocks)
	require.Len(t, fx.first.events, 1)
	assert.Equal(t, EventParamValue, fx.first.events[0].Type)
	assert.Equal(t, fx.handle, fx.proc.currentHandle())
}

func TestAudioProcessor_CrossfadeSwap(t *testing.T) {
	fx := newAudioFixture(&CrossFader{remaining: 4, total: 4})

	_, err := fx.proc.Process(newTestProcess(4, 1, nil))
	require.NoError(t, err)

	next := &fakeProcessor{value: 1}
	nextHandle := InstanceHandle{index: 1, generation: 1}
	fx.main.sendNewProcessor(newActiveProcessor(nextHandle, next), fx.handle)
	assert.Equal(t, 1, fx.main.pending())

	process := newTestProcess(4, 1, nil)
	_, err = fx.proc.Process(process)
	require.NoError(t, err)

	// new*(1-r) + old*r with r stepping down from 1.
	assert.InDeltaSlice(t, []float32{0, 0.25, 0.5, 0.75}, process.AudioOutputs[0].Channels[0], 1e-6)
	assert.True(t, next.started)
	assert.Equal(t, nextHandle, fx.proc.currentHandle())

	// The fade ended with the block: the old processor is back on the main thread.
	assert.False(t, fx.proc.isFading())
	assert.Equal(t, 1, fx.first.stops)
	assert.Equal(t, []InstanceHandle{fx.handle}, fx.destroyed())
	assert.Equal(t, 0, fx.main.pending())

	process = newTestProcess(4, 1, nil)
	_, err = fx.proc.Process(process)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 1, 1, 1}, process.AudioOutputs[0].Channels[0])

	snap := fx.metrics.Snapshot()
	assert.Equal(t, int64(1), snap.CrossfadesStarted)
	assert.Equal(t, int64(1), snap.CrossfadesDone)
}

func TestAudioProcessor_FadeSpansBlocks(t *testing.T) {
	fx := newAudioFixture(&CrossFader{remaining: 8, total: 8})
	_, err := fx.proc.Process(newTestProcess(4, 1, nil))
	require.NoError(t, err)

	next := &fakeProcessor{value: 1}
	fx.main.sendNewProcessor(newActiveProcessor(InstanceHandle{index: 1, generation: 1}, next), fx.handle)

	_, err = fx.proc.Process(newTestProcess(4, 1, nil))
	require.NoError(t, err)
	assert.True(t, fx.proc.isFading())
	assert.Empty(t, fx.destroyed(), "old processor is still fading out")

	process := newTestProcess(4, 1, nil)
	_, err = fx.proc.Process(process)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{0.5, 0.625, 0.75, 0.875}, process.AudioOutputs[0].Channels[0], 1e-6)
	assert.False(t, fx.proc.isFading())
	assert.Len(t, fx.destroyed(), 1)
}

func TestAudioProcessor_BothProcessorsHearHostWhileFading(t *testing.T) {
	fx := newAudioFixture(&CrossFader{remaining: 64, total: 64})
	_, err := fx.proc.Process(newTestProcess(4, 1, nil))
	require.NoError(t, err)

	next := &fakeProcessor{value: 1}
	fx.main.sendNewProcessor(newActiveProcessor(InstanceHandle{index: 1, generation: 1}, next), fx.handle)

	hostEvents := eventList(ParamValueEvent(2, 1, 0.5))
	_, err = fx.proc.Process(newTestProcess(4, 1, hostEvents))
	require.NoError(t, err)

	require.True(t, fx.proc.isFading())
	assert.Len(t, next.events, 1, "incoming processor hears the host")
	assert.Len(t, fx.first.events, 1, "outgoing processor hears the host too")
}

func TestAudioProcessor_ReplaysHeldNotes(t *testing.T) {
	fx := newAudioFixture(&CrossFader{})

	_, err := fx.proc.Process(newTestProcess(4, 1, eventList(NoteOnEvent(1, 0, 0, 60, 5, 0.7))))
	require.NoError(t, err)

	next := &fakeProcessor{value: 1}
	fx.main.sendNewProcessor(newActiveProcessor(InstanceHandle{index: 1, generation: 1}, next), fx.handle)

	_, err = fx.proc.Process(newTestProcess(4, 1, eventList(ParamValueEvent(0, 1, 0.2), ParamValueEvent(3, 1, 0.4))))
	require.NoError(t, err)

	require.Len(t, next.events, 3)
	assert.Equal(t, EventNoteOn, next.events[0].Type, "replayed note comes first")
	assert.Equal(t, int16(60), next.events[0].Key)
	assert.Equal(t, uint32(0), next.events[0].Time)
	assert.Equal(t, EventParamValue, next.events[1].Type)
	assert.Equal(t, EventParamValue, next.events[2].Type)

	// Replay happens once.
	_, err = fx.proc.Process(newTestProcess(4, 1, nil))
	require.NoError(t, err)
	assert.Len(t, next.events, 3)
}

func TestAudioProcessor_SupersededProcessorIsDisposed(t *testing.T) {
	fx := newAudioFixture(&CrossFader{})
	_, err := fx.proc.Process(newTestProcess(4, 1, nil))
	require.NoError(t, err)

	h2 := InstanceHandle{index: 1, generation: 1}
	h3 := InstanceHandle{index: 2, generation: 1}
	second := &fakeProcessor{value: 2}
	third := &fakeProcessor{value: 3}
	fx.main.sendNewProcessor(newActiveProcessor(h2, second), fx.handle)
	fx.main.sendNewProcessor(newActiveProcessor(h3, third), h2)

	process := newTestProcess(4, 1, nil)
	_, err = fx.proc.Process(process)
	require.NoError(t, err)

	assert.Equal(t, 0, second.blocks, "superseded processor never runs")
	assert.Equal(t, []float32{3, 3, 3, 3}, process.AudioOutputs[0].Channels[0])
	assert.ElementsMatch(t, []InstanceHandle{fx.handle, h2}, fx.destroyed())
}

func TestAudioProcessor_StartFailureKeepsCurrent(t *testing.T) {
	fx := newAudioFixture(&CrossFader{})
	_, err := fx.proc.Process(newTestProcess(4, 1, nil))
	require.NoError(t, err)

	broken := &fakeProcessor{value: 9, startErr: errors.New("no DSP")}
	brokenHandle := InstanceHandle{index: 1, generation: 1}
	fx.main.sendNewProcessor(newActiveProcessor(brokenHandle, broken), InstanceHandle{})

	process := newTestProcess(4, 1, nil)
	_, err = fx.proc.Process(process)
	require.NoError(t, err)

	assert.Equal(t, fx.handle, fx.proc.currentHandle())
	assert.Equal(t, []float32{0, 0, 0, 0}, process.AudioOutputs[0].Channels[0])
	assert.Equal(t, int64(1), fx.metrics.Snapshot().SwapFailures)

	released, rejected := fx.main.destroyAwaiting(func(InstanceHandle) {})
	assert.Equal(t, 0, released)
	assert.Equal(t, brokenHandle, rejected, "main thread learns which processor was rejected")
}

func TestAudioProcessor_FadeReportsIncomingStatus(t *testing.T) {
	fx := newAudioFixture(&CrossFader{remaining: 64, total: 64})
	_, err := fx.proc.Process(newTestProcess(4, 1, nil))
	require.NoError(t, err)

	next := &fakeProcessor{value: 1, status: ProcessSleep}
	fx.main.sendNewProcessor(newActiveProcessor(InstanceHandle{index: 1, generation: 1}, next), fx.handle)

	status, err := fx.proc.Process(newTestProcess(4, 1, nil))
	require.NoError(t, err)
	require.True(t, fx.proc.isFading())
	assert.Equal(t, ProcessSleep, status, "status of the incoming processor while fading")

	next.status = ProcessTail
	status, err = fx.proc.Process(newTestProcess(4, 1, nil))
	require.NoError(t, err)
	assert.Equal(t, ProcessTail, status)
}

func TestProcessorChannel_DisposalDoesNotAllocate(t *testing.T) {
	mainSide, audioSide := newProcessorChannels()
	const runs = 50
	procs := make([]*activeProcessor, runs+1)
	for i := range procs {
		procs[i] = newActiveProcessor(InstanceHandle{index: uint32(i), generation: 1}, &fakeProcessor{})
	}

	next := 0
	allocs := testing.AllocsPerRun(runs, func() {
		audioSide.sendForDisposal(procs[next])
		next++
	})
	assert.Zero(t, allocs)

	// A processor is handed back once even if disposed twice.
	audioSide.sendForDisposal(procs[0])
	count := 0
	for {
		if _, ok := mainSide.retired.pop(); !ok {
			break
		}
		count++
	}
	assert.Equal(t, runs+1, count)
}

func TestAudioProcessor_SwapWhileStopped(t *testing.T) {
	fx := newAudioFixture(&CrossFader{remaining: 100, total: 100})
	require.NoError(t, fx.proc.StartProcessing())
	fx.proc.StopProcessing()
	assert.Equal(t, 1, fx.first.stops)

	next := &fakeProcessor{value: 1}
	nextHandle := InstanceHandle{index: 1, generation: 1}
	fx.main.sendNewProcessor(newActiveProcessor(nextHandle, next), fx.handle)

	require.NoError(t, fx.proc.StartProcessing())
	assert.Equal(t, nextHandle, fx.proc.currentHandle())
	assert.False(t, fx.proc.isFading(), "no fade without a running stream")
	assert.True(t, next.started)
	assert.Equal(t, []InstanceHandle{fx.handle}, fx.destroyed())
}

func TestAudioProcessor_ResetFinishesFade(t *testing.T) {
	fx := newAudioFixture(&CrossFader{remaining: 64, total: 64})
	_, err := fx.proc.Process(newTestProcess(4, 1, eventList(NoteOnEvent(0, 0, 0, 60, 1, 1))))
	require.NoError(t, err)

	next := &fakeProcessor{value: 1}
	fx.main.sendNewProcessor(newActiveProcessor(InstanceHandle{index: 1, generation: 1}, next), fx.handle)
	_, err = fx.proc.Process(newTestProcess(4, 1, nil))
	require.NoError(t, err)
	require.True(t, fx.proc.isFading())

	fx.proc.Reset()
	assert.False(t, fx.proc.isFading())
	assert.Equal(t, 1, next.resets)
	assert.Equal(t, 0, fx.proc.notes.Len())
	assert.Len(t, fx.destroyed(), 1)
}

func TestAudioProcessor_FlushParamsForwarded(t *testing.T) {
	fx := newAudioFixture(&CrossFader{})
	fx.proc.FlushParams(nil, nil)
	assert.Equal(t, 1, fx.first.flushes)
}

func TestAudioProcessor_ProcessWithoutCall(t *testing.T) {
	fx := newAudioFixture(&CrossFader{})
	_, err := fx.proc.Process(nil)
	NewTestAssertions(t).AssertErrorCode(err, ErrCodeNotActivated, "process without call")
}

func TestAudioProcessor_StartError(t *testing.T) {
	fx := newAudioFixture(&CrossFader{})
	fx.first.startErr = errors.New("device busy")

	status, err := fx.proc.Process(newTestProcess(4, 1, nil))
	assert.Equal(t, ProcessError, status)
	NewTestAssertions(t).AssertErrorCode(err, ErrCodeProcessingNotStarted, "start failure")
}

func TestProcessorChannel_ConsumeReleasesEverything(t *testing.T) {
	mainSide, audioSide := newProcessorChannels()
	h1 := InstanceHandle{index: 0, generation: 1}
	h2 := InstanceHandle{index: 1, generation: 1}

	mainSide.sendNewProcessor(newActiveProcessor(h2, &fakeProcessor{}), h1)
	mainSide.deferDestroy(InstanceHandle{})
	assert.Equal(t, 1, mainSide.pending(), "zero handles are ignored")

	latest, ok := audioSide.checkForNewProcessor()
	require.True(t, ok)
	assert.Equal(t, h2, latest.handle)

	var destroyed []InstanceHandle
	released := mainSide.consume(func(h InstanceHandle) { destroyed = append(destroyed, h) })
	assert.Equal(t, 1, released)
	assert.Equal(t, []InstanceHandle{h1}, destroyed)
	assert.Equal(t, 0, mainSide.pending())
}
