// output_buffers.go: Scratch output buffers used while crossfading
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package clapreload

// outputBuffers holds two private renders of every output port, one for the
// incoming processor and one for the processor fading out. Storage is
// allocated once at activation, sized for the largest block.
type outputBuffers struct {
	main       []AudioBuffer
	fadingOut  []AudioBuffer
	frameCount uint32
}

func newOutputBuffers(channelsPerPort []uint32, maxFrames uint32) *outputBuffers {
	return &outputBuffers{
		main:       allocatePorts(channelsPerPort, maxFrames),
		fadingOut:  allocatePorts(channelsPerPort, maxFrames),
		frameCount: maxFrames,
	}
}

func allocatePorts(channelsPerPort []uint32, frames uint32) []AudioBuffer {
	ports := make([]AudioBuffer, len(channelsPerPort))
	for i, count := range channelsPerPort {
		ports[i].Channels = make([][]float32, count)
		for ch := range ports[i].Channels {
			ports[i].Channels[ch] = make([]float32, frames)
		}
	}
	return ports
}

// buffersFor returns the scratch ports for a block of frames, trimmed to the
// frame count. main selects the incoming render.
func (b *outputBuffers) buffersFor(main bool, frames uint32) []AudioBuffer {
	ports := b.fadingOut
	if main {
		ports = b.main
	}
	if frames > b.frameCount {
		frames = b.frameCount
	}
	for p := range ports {
		ports[p].ConstantMask = 0
		for ch := range ports[p].Channels {
			ports[p].Channels[ch] = ports[p].Channels[ch][:frames:b.frameCount]
		}
	}
	return ports
}

// outputCrossfade blends both renders into the host outputs and advances the
// fader by the frames processed.
func (b *outputBuffers) outputCrossfade(fader *CrossFader, outputs []AudioBuffer, frames uint32) {
	if frames > b.frameCount {
		frames = b.frameCount
	}
	for p := range outputs {
		if p >= len(b.main) {
			break
		}
		in, out := &b.main[p], &b.fadingOut[p]
		for ch := range outputs[p].Channels {
			if ch >= len(in.Channels) {
				break
			}
			fader.ApplyCrossfade(in.Channels[ch], out.Channels[ch], outputs[p].Channels[ch])
		}
		outputs[p].ConstantMask = combineConstantMasks(in, out)
	}
	fader.Advance(frames)
}
