package utils

import (
	"math"
	"testing"
)

func TestGenerateSineWave(t *testing.T) {
	const (
		size       = 4800
		sampleRate = 48000.0
		frequency  = 480.0
	)

	buffer := GenerateSineWave(size, sampleRate, frequency)

	if len(buffer) != size {
		t.Fatalf("expected %d samples, got %d", size, len(buffer))
	}

	// First sample of a sine is always zero.
	if buffer[0] != 0 {
		t.Errorf("expected first sample 0, got %f", buffer[0])
	}

	// Amplitude bound.
	for i, s := range buffer {
		if math.Abs(s) > 0.9+1e-12 {
			t.Fatalf("sample %d out of range: %f", i, s)
		}
	}

	// 480 Hz at 48 kHz has a period of exactly 100 samples.
	if math.Abs(buffer[100]-buffer[0]) > 1e-9 {
		t.Errorf("expected periodic signal, sample 100 = %f", buffer[100])
	}
}

func TestGenerateComplexWaveIsBounded(t *testing.T) {
	buffer := GenerateComplexWave(2048, 48000)
	for i, s := range buffer {
		if math.Abs(s) > 1.0 {
			t.Fatalf("sample %d exceeds unit range: %f", i, s)
		}
	}
}

func TestFindPeakBin(t *testing.T) {
	magnitudes := []float64{0.1, 0.5, 3.2, 0.4, 2.8, 0.0}

	if got := FindPeakBin(magnitudes, 0, len(magnitudes)-1); got != 2 {
		t.Errorf("expected peak at bin 2, got %d", got)
	}

	// Restricted range skips the global peak.
	if got := FindPeakBin(magnitudes, 3, 5); got != 4 {
		t.Errorf("expected peak at bin 4, got %d", got)
	}

	// Out-of-range bounds are clamped.
	if got := FindPeakBin(magnitudes, -10, 100); got != 2 {
		t.Errorf("expected clamped search to find bin 2, got %d", got)
	}

	if got := FindPeakBin(nil, 0, 10); got != 0 {
		t.Errorf("expected 0 for empty input, got %d", got)
	}
}
