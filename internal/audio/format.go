// SPDX-License-Identifier: MIT
/*
Package audio provides the capture side of the pipeline: the backend
abstraction over platform audio APIs, the PortAudio implementation,
sample format normalization, and WAV recording of the captured stream.
*/
package audio

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnsupportedFormat is returned when a capture buffer arrives in
	// an encoding outside the recognized set. It is fatal to the device
	// session (triggers reconnect logic), never silently coerced.
	ErrUnsupportedFormat = errors.New("unsupported sample format")

	// ErrDeviceUnavailable is returned when a device cannot be found or
	// opened. Recoverable: the coordinator retries with backoff.
	ErrDeviceUnavailable = errors.New("audio device unavailable")
)

// SampleFormat identifies the encoding of a raw capture buffer.
type SampleFormat int

const (
	FormatInt16 SampleFormat = iota
	FormatUint16
	FormatFloat32
)

func (f SampleFormat) String() string {
	switch f {
	case FormatInt16:
		return "int16"
	case FormatUint16:
		return "uint16"
	case FormatFloat32:
		return "float32"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// RawBuffer is one block of samples as delivered by a capture device,
// tagged with the metadata needed to decode it. Exactly one payload
// slice is populated, matching Format. Samples are interleaved when
// Channels > 1.
type RawBuffer struct {
	Format     SampleFormat
	Channels   int
	SampleRate float64
	Timestamp  time.Time

	I16 []int16
	U16 []uint16
	F32 []float32
}

// Frames returns the number of sample frames (per-channel sample
// groups) in the buffer.
func (b *RawBuffer) Frames() int {
	if b.Channels <= 0 {
		return 0
	}
	switch b.Format {
	case FormatInt16:
		return len(b.I16) / b.Channels
	case FormatUint16:
		return len(b.U16) / b.Channels
	case FormatFloat32:
		return len(b.F32) / b.Channels
	default:
		return 0
	}
}

// Normalizer converts raw capture buffers into the canonical
// floating-point mono stream the analyzer consumes. The output buffer
// is reused across calls (grow-only), so there is no per-sample
// allocation in the steady state. Not safe for concurrent use; owned
// by the analysis goroutine.
type Normalizer struct {
	out []float64
}

// NewNormalizer creates a Normalizer with capacity for the given frame
// count (a hint; the buffer grows as needed).
func NewNormalizer(capacityHint int) *Normalizer {
	if capacityHint < 0 {
		capacityHint = 0
	}
	return &Normalizer{out: make([]float64, 0, capacityHint)}
}

// Normalize converts buf into mono float64 samples in [-1, 1],
// downmixing channels by averaging. The returned slice is valid until
// the next call. Unrecognized encodings return ErrUnsupportedFormat.
func (n *Normalizer) Normalize(buf *RawBuffer) ([]float64, error) {
	if buf.Channels <= 0 {
		return nil, fmt.Errorf("%w: %d channels", ErrUnsupportedFormat, buf.Channels)
	}

	frames := buf.Frames()
	if cap(n.out) < frames {
		n.out = make([]float64, frames)
	}
	n.out = n.out[:frames]

	ch := buf.Channels
	inv := 1.0 / float64(ch)

	switch buf.Format {
	case FormatInt16:
		// int16 full scale is 32768.
		for i := 0; i < frames; i++ {
			var sum float64
			for c := 0; c < ch; c++ {
				sum += float64(buf.I16[i*ch+c]) / 32768.0
			}
			n.out[i] = sum * inv
		}
	case FormatUint16:
		// uint16 is signed at midpoint 32768: shift down after scaling.
		for i := 0; i < frames; i++ {
			var sum float64
			for c := 0; c < ch; c++ {
				sum += float64(buf.U16[i*ch+c])/32768.0 - 1.0
			}
			n.out[i] = sum * inv
		}
	case FormatFloat32:
		for i := 0; i < frames; i++ {
			var sum float64
			for c := 0; c < ch; c++ {
				sum += float64(buf.F32[i*ch+c])
			}
			n.out[i] = sum * inv
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, buf.Format)
	}

	return n.out, nil
}
