// cross_fader.go: Linear crossfade between an incoming and an outgoing processor
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package clapreload

import (
	"math"
	"time"
)

// CrossFader blends the output of a new processor over the output of the one
// it replaces. The fade position is kept in samples so it stays exact across
// blocks of any size.
type CrossFader struct {
	remaining uint32
	total     uint32
}

// NewCrossFader creates a fader lasting duration at sampleRate. A fader is
// created in the started state; call Reset before each new fade.
func NewCrossFader(sampleRate float64, duration time.Duration) *CrossFader {
	samples := math.Floor(duration.Seconds() * sampleRate)
	if samples < 0 || math.IsNaN(samples) {
		samples = 0
	}
	if samples > math.MaxUint32 {
		samples = math.MaxUint32
	}
	total := uint32(samples)
	return &CrossFader{remaining: total, total: total}
}

// Reset restarts the fade from the beginning.
func (f *CrossFader) Reset() { f.remaining = f.total }

// Finish jumps to the end of the fade.
func (f *CrossFader) Finish() { f.remaining = 0 }

// ApplyCrossfade writes fadeIn*(1-r) + fadeOut*r into out, where r starts at
// remaining/total and decreases by 1/total per sample, never below zero.
// The fade position itself is only moved by Advance.
func (f *CrossFader) ApplyCrossfade(fadeIn, fadeOut, out []float32) {
	n := len(out)
	if len(fadeIn) < n {
		n = len(fadeIn)
	}
	if len(fadeOut) < n {
		n = len(fadeOut)
	}
	if f.total == 0 {
		copy(out[:n], fadeIn[:n])
		return
	}

	ratio := float32(f.remaining) / float32(f.total)
	step := 1 / float32(f.total)
	for i := 0; i < n; i++ {
		out[i] = fadeIn[i]*(1-ratio) + fadeOut[i]*ratio
		ratio -= step
		if ratio < 0 {
			ratio = 0
		}
	}
}

// Advance moves the fade forward by frames samples.
func (f *CrossFader) Advance(frames uint32) {
	if frames >= f.remaining {
		f.remaining = 0
		return
	}
	f.remaining -= frames
}

// IsDone reports whether the fade has completed.
func (f *CrossFader) IsDone() bool { return f.remaining == 0 }

// Remaining returns the samples left in the fade.
func (f *CrossFader) Remaining() uint32 { return f.remaining }

// Total returns the fade length in samples.
func (f *CrossFader) Total() uint32 { return f.total }
