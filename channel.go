// channel.go: Processor handoff between the main thread and the audio thread
//
// A pair of SPSC queues connects the two sides while the wrapper is active:
// main -> audio carries freshly activated processors, audio -> main carries
// processors the audio thread will never touch again. The main side also
// remembers which old instances wait for their processor to come back
// before they can be deactivated and destroyed.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package clapreload

// activeProcessor is what the audio thread holds: a processor plus the
// handle of the instance that owns it.
type activeProcessor struct {
	handle  InstanceHandle
	proc    Processor
	started bool

	// set by the audio thread when the processor could not be started
	rejected bool

	// queue node used to hand the processor back, allocated up front
	disposal *spscNode[*activeProcessor]
}

// newActiveProcessor wraps proc for the audio thread. It must be called on
// the main thread.
func newActiveProcessor(handle InstanceHandle, proc Processor) *activeProcessor {
	p := &activeProcessor{handle: handle, proc: proc}
	p.disposal = &spscNode[*activeProcessor]{value: p}
	return p
}

func (p *activeProcessor) startProcessing() error {
	if p.started {
		return nil
	}
	if err := p.proc.StartProcessing(); err != nil {
		return err
	}
	p.started = true
	return nil
}

func (p *activeProcessor) stopProcessing() {
	if !p.started {
		return
	}
	p.proc.StopProcessing()
	p.started = false
}

// newProcessorChannels creates a connected channel pair.
func newProcessorChannels() (*mainThreadChannel, *audioProcessorChannel) {
	toAudio := newSPSCQueue[*activeProcessor]()
	toMain := newSPSCQueue[*activeProcessor]()
	return &mainThreadChannel{outgoing: toAudio, retired: toMain},
		&audioProcessorChannel{incoming: toAudio, disposal: toMain}
}

// audioProcessorChannel is the audio-thread end. It never blocks or locks.
type audioProcessorChannel struct {
	incoming *spscQueue[*activeProcessor]
	disposal *spscQueue[*activeProcessor]
}

// checkForNewProcessor returns the newest pending processor. Older pending
// processors were superseded before they ever ran and go straight back for
// disposal.
func (c *audioProcessorChannel) checkForNewProcessor() (*activeProcessor, bool) {
	latest, ok := c.incoming.pop()
	if !ok {
		return nil, false
	}
	for {
		next, more := c.incoming.pop()
		if !more {
			return latest, true
		}
		c.sendForDisposal(latest)
		latest = next
	}
}

// sendForDisposal hands a processor back to the main thread. Each processor
// is handed back at most once.
func (c *audioProcessorChannel) sendForDisposal(p *activeProcessor) {
	if p == nil || p.disposal == nil {
		return
	}
	p.stopProcessing()
	node := p.disposal
	p.disposal = nil
	c.disposal.pushNode(node)
}

// sendRejected hands back a processor that failed to start so the main
// thread can ask the host for a restart.
func (c *audioProcessorChannel) sendRejected(p *activeProcessor) {
	if p == nil {
		return
	}
	p.rejected = true
	c.sendForDisposal(p)
}

// mainThreadChannel is the main-thread end.
type mainThreadChannel struct {
	outgoing *spscQueue[*activeProcessor]
	retired  *spscQueue[*activeProcessor]

	awaitingDestruction []InstanceHandle
}

// sendNewProcessor queues p for the audio thread; old stays alive until the
// audio thread returns a processor owned by it.
func (c *mainThreadChannel) sendNewProcessor(p *activeProcessor, old InstanceHandle) {
	c.deferDestroy(old)
	c.outgoing.push(p)
}

// deferDestroy keeps old alive until the audio side is done with it.
func (c *mainThreadChannel) deferDestroy(old InstanceHandle) {
	if old.IsZero() {
		return
	}
	c.awaitingDestruction = append(c.awaitingDestruction, old)
}

// destroyAwaiting matches every retired processor to the awaiting instance
// owning it and calls destroy for that instance. It returns how many
// instances were released, and the owner of the last processor the audio
// thread rejected (zero when none was).
func (c *mainThreadChannel) destroyAwaiting(destroy func(InstanceHandle)) (released int, rejected InstanceHandle) {
	for {
		p, ok := c.retired.pop()
		if !ok {
			return released, rejected
		}
		if p.rejected {
			rejected = p.handle
		}
		for i, h := range c.awaitingDestruction {
			if h == p.handle {
				c.awaitingDestruction = append(c.awaitingDestruction[:i], c.awaitingDestruction[i+1:]...)
				destroy(h)
				released++
				break
			}
		}
	}
}

// consume is called once audio processing has stopped for good: every
// queued processor is dropped and every awaiting instance is destroyed.
func (c *mainThreadChannel) consume(destroy func(InstanceHandle)) int {
	for {
		if _, ok := c.outgoing.pop(); !ok {
			break
		}
	}
	for {
		if _, ok := c.retired.pop(); !ok {
			break
		}
	}
	awaiting := c.awaitingDestruction
	c.awaitingDestruction = nil
	for _, h := range awaiting {
		destroy(h)
	}
	return len(awaiting)
}

// pending returns how many instances wait for destruction.
func (c *mainThreadChannel) pending() int { return len(c.awaitingDestruction) }
