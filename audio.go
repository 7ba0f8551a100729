// audio.go: Audio buffers and the per-block process call
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package clapreload

// AudioBuffer is one audio port of a process call: a slice of channels of
// 32-bit float samples.
type AudioBuffer struct {
	Channels [][]float32

	// ConstantMask has bit n set when every sample of channel n holds the
	// same value.
	ConstantMask uint64

	// Latency of this port in samples.
	Latency uint32
}

// ChannelCount returns the number of channels in the buffer.
func (b *AudioBuffer) ChannelCount() int { return len(b.Channels) }

// Process is the argument of Processor.Process.
type Process struct {
	// SteadyTime is a monotonically increasing sample counter, or -1 when the
	// host does not provide one.
	SteadyTime int64

	// FramesCount is the number of frames in this block.
	FramesCount uint32

	AudioInputs  []AudioBuffer
	AudioOutputs []AudioBuffer

	InEvents  InputEvents
	OutEvents OutputEvents
}

// withOutputs returns a shallow copy of p rendering into outputs with the
// given event lists.
func (p *Process) withOutputs(outputs []AudioBuffer, in InputEvents, out OutputEvents) Process {
	return Process{
		SteadyTime:   p.SteadyTime,
		FramesCount:  p.FramesCount,
		AudioInputs:  p.AudioInputs,
		AudioOutputs: outputs,
		InEvents:     in,
		OutEvents:    out,
	}
}

// combineConstantMasks merges the constant masks of two renders that were
// crossfaded into one output. A channel stays flagged constant only when both
// sources were constant with the same value, so the blend is constant too.
func combineConstantMasks(a, b *AudioBuffer) uint64 {
	both := a.ConstantMask & b.ConstantMask
	if both == 0 {
		return 0
	}
	var mask uint64
	n := len(a.Channels)
	if len(b.Channels) < n {
		n = len(b.Channels)
	}
	if n > 64 {
		n = 64
	}
	for ch := 0; ch < n; ch++ {
		bit := uint64(1) << uint(ch)
		if both&bit == 0 {
			continue
		}
		if len(a.Channels[ch]) == 0 || len(b.Channels[ch]) == 0 {
			continue
		}
		if a.Channels[ch][0] == b.Channels[ch][0] {
			mask |= bit
		}
	}
	return mask
}
