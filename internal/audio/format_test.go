// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"math"
	"testing"
)

func TestNormalizeInt16Mono(t *testing.T) {
	n := NewNormalizer(8)
	buf := &RawBuffer{
		Format:     FormatInt16,
		Channels:   1,
		SampleRate: 48000,
		I16:        []int16{0, 16384, -16384, 32767, -32768},
	}

	out, err := n.Normalize(buf)
	if err != nil {
		t.Fatal(err)
	}

	expected := []float64{0, 0.5, -0.5, 32767.0 / 32768.0, -1.0}
	for i, want := range expected {
		if math.Abs(out[i]-want) > 1e-9 {
			t.Errorf("sample %d: got %f, want %f", i, out[i], want)
		}
	}
}

func TestNormalizeUint16(t *testing.T) {
	n := NewNormalizer(4)
	buf := &RawBuffer{
		Format:     FormatUint16,
		Channels:   1,
		SampleRate: 48000,
		U16:        []uint16{32768, 0, 65535},
	}

	out, err := n.Normalize(buf)
	if err != nil {
		t.Fatal(err)
	}

	// Midpoint 32768 maps to zero; 0 maps to -1.
	if math.Abs(out[0]) > 1e-9 {
		t.Errorf("midpoint should map to 0, got %f", out[0])
	}
	if math.Abs(out[1]+1.0) > 1e-9 {
		t.Errorf("zero should map to -1, got %f", out[1])
	}
	if out[2] <= 0.99 || out[2] > 1.0 {
		t.Errorf("max should map near +1, got %f", out[2])
	}
}

func TestNormalizeStereoDownmix(t *testing.T) {
	n := NewNormalizer(4)
	buf := &RawBuffer{
		Format:     FormatFloat32,
		Channels:   2,
		SampleRate: 48000,
		F32:        []float32{1.0, 0.0, 0.5, 0.5, -1.0, 1.0},
	}

	out, err := n.Normalize(buf)
	if err != nil {
		t.Fatal(err)
	}

	expected := []float64{0.5, 0.5, 0.0}
	if len(out) != len(expected) {
		t.Fatalf("expected %d mono samples, got %d", len(expected), len(out))
	}
	for i, want := range expected {
		if math.Abs(out[i]-want) > 1e-6 {
			t.Errorf("sample %d: got %f, want %f", i, out[i], want)
		}
	}
}

func TestNormalizeSurroundDownmix(t *testing.T) {
	n := NewNormalizer(1)
	buf := &RawBuffer{
		Format:     FormatFloat32,
		Channels:   6,
		SampleRate: 48000,
		F32:        []float32{1, 1, 1, 1, 1, 1},
	}

	out, err := n.Normalize(buf)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || math.Abs(out[0]-1.0) > 1e-6 {
		t.Errorf("6-channel unity downmix: got %v", out)
	}
}

func TestNormalizeUnsupportedFormat(t *testing.T) {
	n := NewNormalizer(4)
	buf := &RawBuffer{
		Format:     SampleFormat(99),
		Channels:   2,
		SampleRate: 48000,
	}

	_, err := n.Normalize(buf)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}

	// Zero channels is also unusable.
	buf = &RawBuffer{Format: FormatInt16, Channels: 0, I16: []int16{1, 2}}
	if _, err := n.Normalize(buf); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat for 0 channels, got %v", err)
	}
}

func TestNormalizeReusesBuffer(t *testing.T) {
	n := NewNormalizer(1024)
	buf := &RawBuffer{
		Format:     FormatInt16,
		Channels:   2,
		SampleRate: 48000,
		I16:        make([]int16, 960),
	}

	// Warm-up then verify the steady state allocates nothing.
	if _, err := n.Normalize(buf); err != nil {
		t.Fatal(err)
	}
	allocs := testing.AllocsPerRun(100, func() {
		_, _ = n.Normalize(buf)
	})
	if allocs > 0 {
		t.Errorf("expected zero allocations in Normalize, got %.1f", allocs)
	}
}

func TestRawBufferFrames(t *testing.T) {
	buf := &RawBuffer{Format: FormatInt16, Channels: 2, I16: make([]int16, 960)}
	if got := buf.Frames(); got != 480 {
		t.Errorf("Frames() = %d, want 480", got)
	}

	buf = &RawBuffer{Format: FormatFloat32, Channels: 0}
	if got := buf.Frames(); got != 0 {
		t.Errorf("Frames() with 0 channels = %d, want 0", got)
	}
}
