// SPDX-License-Identifier: MIT
/*
Package pipeline connects capture to analysis: it assembles normalized
sample packets into fixed-size frames, drives the FFT and smoothing
stages, and publishes the latest display snapshot through an atomic
pointer for any number of concurrent readers.
*/
package pipeline

import (
	"sync/atomic"
)

// sealedQueueDepth bounds how many complete frames can wait for
// analysis before the oldest is discarded.
const sealedQueueDepth = 4

// Assembler accumulates variable-length sample packets into
// frames of exactly frameSize samples. Complete frames go into a
// bounded queue with drop-oldest overflow so a stalled consumer never
// blocks the capture path. Frames are recycled through a free list.
//
// Push is called from the capture side, NextFrame and Release from the
// analysis side. One goroutine per side.
type Assembler struct {
	frameSize int
	partial   []float64 // in-progress frame, len < frameSize
	sealed    chan []float64
	free      chan []float64
	dropped   atomic.Uint64
}

// NewAssembler creates an Assembler producing frames of frameSize
// samples.
func NewAssembler(frameSize int) *Assembler {
	a := &Assembler{
		sealed: make(chan []float64, sealedQueueDepth),
		free:   make(chan []float64, sealedQueueDepth+1),
	}
	a.Reset(frameSize)
	return a
}

// Reset discards all buffered state and switches to a new frame size.
// Both sides must be quiescent when Reset is called.
func (a *Assembler) Reset(frameSize int) {
	for {
		select {
		case <-a.sealed:
		default:
			a.drainFree()
			a.frameSize = frameSize
			a.partial = make([]float64, 0, frameSize)
			return
		}
	}
}

func (a *Assembler) drainFree() {
	for {
		select {
		case <-a.free:
		default:
			return
		}
	}
}

// Push appends samples to the in-progress frame, sealing and queueing
// a frame each time it fills. A packet larger than the remaining space
// spills into the next frame, so no samples are lost at frame
// boundaries. When the sealed queue is full the oldest frame is
// dropped to make room.
func (a *Assembler) Push(samples []float64) {
	for len(samples) > 0 {
		space := a.frameSize - len(a.partial)
		n := len(samples)
		if n > space {
			n = space
		}
		a.partial = append(a.partial, samples[:n]...)
		samples = samples[n:]

		if len(a.partial) == a.frameSize {
			a.seal()
		}
	}
}

func (a *Assembler) seal() {
	frame := a.partial

	select {
	case a.sealed <- frame:
	default:
		// Queue full: evict the oldest frame and retry. The evicted
		// buffer goes back on the free list.
		select {
		case old := <-a.sealed:
			a.recycle(old)
			a.dropped.Add(1)
		default:
		}
		select {
		case a.sealed <- frame:
		default:
			a.recycle(frame)
			a.dropped.Add(1)
		}
	}

	a.partial = a.nextBuffer()
}

func (a *Assembler) nextBuffer() []float64 {
	select {
	case buf := <-a.free:
		if cap(buf) >= a.frameSize {
			return buf[:0]
		}
	default:
	}
	return make([]float64, 0, a.frameSize)
}

func (a *Assembler) recycle(frame []float64) {
	select {
	case a.free <- frame:
	default:
	}
}

// NextFrame returns a complete frame if one is ready. It never blocks.
// The caller must hand the frame back with Release when done.
func (a *Assembler) NextFrame() ([]float64, bool) {
	select {
	case frame := <-a.sealed:
		return frame, true
	default:
		return nil, false
	}
}

// Release returns a frame obtained from NextFrame to the free list.
func (a *Assembler) Release(frame []float64) {
	a.recycle(frame)
}

// Pending reports whether at least one sealed frame is waiting.
func (a *Assembler) Pending() bool { return len(a.sealed) > 0 }

// Dropped returns the number of complete frames discarded because the
// analysis side fell behind.
func (a *Assembler) Dropped() uint64 { return a.dropped.Load() }

// FrameSize returns the current frame size in samples.
func (a *Assembler) FrameSize() int { return a.frameSize }
