// audio_processor.go: Audio-thread side of the instance hot-swap
//
// The processor returned to the host by Wrapper.Activate. It relays every
// block to the current wrapped processor and, when the main thread hands
// over a new one, swaps it in between two blocks: held notes are replayed
// into the new processor and both renders are crossfaded until the old one
// can be handed back for destruction.
//
// Nothing in this file blocks, locks or allocates once activation is done.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package clapreload

type audioProcessor struct {
	channel *audioProcessorChannel

	current   *activeProcessor
	fadingOut *activeProcessor
	pending   *activeProcessor

	fader   *CrossFader
	buffers *outputBuffers
	notes   *NoteTracker

	recovered    *EventBuffer
	merged       *EventBuffer
	hasRecovered bool

	processing bool
	metrics    *ReloadMetrics

	// reused process arguments
	mainCall Process
	fadeCall Process
}

type audioProcessorConfig struct {
	channel         *audioProcessorChannel
	initial         *activeProcessor
	fader           *CrossFader
	outputChannels  []uint32
	maxFrames       uint32
	eventCapacity   int
	metrics         *ReloadMetrics
	maxTrackedNotes int
}

// defaultEventCapacity sizes the scratch event lists used to merge recovered
// notes with host events.
const defaultEventCapacity = 1024

func newAudioProcessor(cfg audioProcessorConfig) *audioProcessor {
	if cfg.eventCapacity <= 0 {
		cfg.eventCapacity = defaultEventCapacity
	}
	tracked := cfg.maxTrackedNotes
	if tracked <= 0 {
		tracked = DefaultMaxTrackedNotes
	}
	return &audioProcessor{
		channel:   cfg.channel,
		current:   cfg.initial,
		fader:     cfg.fader,
		buffers:   newOutputBuffers(cfg.outputChannels, cfg.maxFrames),
		notes:     NewNoteTracker(tracked),
		recovered: NewEventBuffer(tracked),
		merged:    NewEventBuffer(cfg.eventCapacity + tracked),
		metrics:   cfg.metrics,
	}
}

// pollChannel picks up the newest processor sent by the main thread. A
// processor still pending from an earlier block is superseded.
func (a *audioProcessor) pollChannel() {
	next, ok := a.channel.checkForNewProcessor()
	if !ok {
		return
	}
	if a.pending != nil {
		a.channel.sendForDisposal(a.pending)
	}
	a.pending = next
}

// beginSwap makes the pending processor current and starts a crossfade from
// the previous one. Held notes are queued for replay.
func (a *audioProcessor) beginSwap() {
	next := a.pending
	a.pending = nil

	if a.processing {
		if err := next.startProcessing(); err != nil {
			// Keep the running processor; the rejected one goes back.
			a.channel.sendRejected(next)
			a.metrics.RecordSwapFailure()
			return
		}
	}

	previous := a.current
	a.current = next

	a.recovered.Clear()
	a.notes.RecoverNotes(a.recovered)
	a.hasRecovered = a.recovered.Len() > 0

	if previous == nil {
		return
	}
	a.fader.Reset()
	if a.fader.IsDone() {
		a.channel.sendForDisposal(previous)
		return
	}
	a.fadingOut = previous
	a.metrics.RecordCrossfadeStarted()
}

// swapImmediately replaces the current processor with the pending one
// without a fade. Used when the host is not processing.
func (a *audioProcessor) swapImmediately() {
	a.finishFade()
	if a.pending == nil {
		return
	}
	previous := a.current
	a.current = a.pending
	a.pending = nil
	if previous != nil {
		a.channel.sendForDisposal(previous)
	}
}

// finishFade drops the fading-out processor at once.
func (a *audioProcessor) finishFade() {
	if a.fadingOut == nil {
		return
	}
	a.channel.sendForDisposal(a.fadingOut)
	a.fadingOut = nil
	a.fader.Finish()
	a.metrics.RecordCrossfadeDone()
}

// Process implements Processor.
func (a *audioProcessor) Process(p *Process) (ProcessStatus, error) {
	if p == nil || a.current == nil {
		return ProcessError, NewNotActivatedError("process")
	}

	a.pollChannel()
	if a.pending != nil && a.fadingOut == nil {
		a.beginSwap()
	}

	if err := a.current.startProcessing(); err != nil {
		return ProcessError, NewProcessingNotStartedError(err)
	}
	a.processing = true

	hostEvents := eventsOrEmpty(p.InEvents)
	in := hostEvents
	if a.hasRecovered {
		a.merged.MergeSorted(a.recovered, hostEvents)
		in = a.merged
		a.recovered.Clear()
		a.hasRecovered = false
	}
	a.notes.HandleEvents(hostEvents)

	out := p.OutEvents
	if out == nil {
		out = discardEvents{}
	}

	if a.fadingOut == nil {
		a.mainCall = p.withOutputs(p.AudioOutputs, in, out)
		return a.current.proc.Process(&a.mainCall)
	}

	frames := p.FramesCount
	a.mainCall = p.withOutputs(a.buffers.buffersFor(true, frames), in, out)
	status, err := a.current.proc.Process(&a.mainCall)

	// The outgoing processor keeps hearing the host but its events are dropped.
	a.fadeCall = p.withOutputs(a.buffers.buffersFor(false, frames), hostEvents, discardEvents{})
	_, _ = a.fadingOut.proc.Process(&a.fadeCall)

	a.buffers.outputCrossfade(a.fader, p.AudioOutputs, frames)

	if a.fader.IsDone() {
		a.channel.sendForDisposal(a.fadingOut)
		a.fadingOut = nil
		a.metrics.RecordCrossfadeDone()
	}

	if err != nil {
		return ProcessError, err
	}
	return status, nil
}

// StartProcessing implements Processor. A processor that arrived while the
// host was not processing is swapped in directly.
func (a *audioProcessor) StartProcessing() error {
	a.pollChannel()
	a.swapImmediately()
	if a.current == nil {
		return NewNotActivatedError("start_processing")
	}
	if err := a.current.startProcessing(); err != nil {
		return NewProcessingNotStartedError(err)
	}
	a.processing = true
	return nil
}

// StopProcessing implements Processor.
func (a *audioProcessor) StopProcessing() {
	a.pollChannel()
	a.swapImmediately()
	if a.current != nil {
		a.current.stopProcessing()
	}
	a.processing = false
}

// Reset implements Processor. Any running fade is completed and held notes
// are forgotten.
func (a *audioProcessor) Reset() {
	a.finishFade()
	a.notes.Clear()
	a.recovered.Clear()
	a.hasRecovered = false
	if a.current != nil {
		a.current.proc.Reset()
	}
}

// FlushParams implements ProcessorParamsExtension.
func (a *audioProcessor) FlushParams(in InputEvents, out OutputEvents) {
	if a.current == nil {
		return
	}
	if ext, ok := a.current.proc.(ProcessorParamsExtension); ok {
		if out == nil {
			out = discardEvents{}
		}
		ext.FlushParams(eventsOrEmpty(in), out)
	}
}

// isFading reports whether a crossfade is running.
func (a *audioProcessor) isFading() bool { return a.fadingOut != nil }

// currentHandle returns the instance whose processor is current.
func (a *audioProcessor) currentHandle() InstanceHandle {
	if a.current == nil {
		return InstanceHandle{}
	}
	return a.current.handle
}
