// SPDX-License-Identifier: MIT
package analysis

import (
	"math"
	"testing"

	"spectro/internal/config"
	"spectro/pkg/utils"
)

func testMapperConfig() *config.Config {
	cfg := config.NewConfig()
	cfg.Sensitivity = 0
	return cfg
}

func TestNewBarMapperRanges(t *testing.T) {
	const (
		fftSize    = 1024
		sampleRate = 48000.0
		bars       = 64
	)
	m, err := NewBarMapper(fftSize, sampleRate, bars, testMapperConfig())
	if err != nil {
		t.Fatalf("NewBarMapper failed: %v", err)
	}
	if m.BarCount() != bars {
		t.Fatalf("BarCount = %d, want %d", m.BarCount(), bars)
	}

	binCount := fftSize/2 + 1
	prevEnd := 1
	for i := 0; i < bars; i++ {
		start, end := m.BinRange(i)
		if start < 1 {
			t.Errorf("bar %d includes DC bin (start %d)", i, start)
		}
		if end <= start {
			t.Errorf("bar %d is empty: [%d, %d)", i, start, end)
		}
		if start < prevEnd {
			t.Errorf("bar %d overlaps previous: start %d < prev end %d", i, start, prevEnd)
		}
		prevEnd = end
	}
	if _, end := m.BinRange(bars - 1); end != binCount {
		t.Errorf("top bar ends at bin %d, want Nyquist bin %d", end, binCount)
	}
}

func TestNewBarMapperValidation(t *testing.T) {
	cfg := testMapperConfig()
	if _, err := NewBarMapper(1024, 48000, 0, cfg); err == nil {
		t.Error("expected error for zero bars")
	}
	bad := testMapperConfig()
	bad.NoiseFloorDB = 10
	if _, err := NewBarMapper(1024, 48000, 64, bad); err == nil {
		t.Error("expected error for non-negative noise floor")
	}
}

// Any bar count inside the configured range must map, even when it
// exceeds the number of FFT bins: starved bars borrow, and once bins
// run out the leftover bars share the top bin.
func TestNewBarMapperMoreBarsThanBins(t *testing.T) {
	const (
		fftSize    = 512
		sampleRate = 48000.0
		bars       = 512 // usable bins: fftSize/2 = 256
	)
	m, err := NewBarMapper(fftSize, sampleRate, bars, testMapperConfig())
	if err != nil {
		t.Fatalf("NewBarMapper failed: %v", err)
	}
	if m.BarCount() != bars {
		t.Fatalf("BarCount = %d, want %d", m.BarCount(), bars)
	}

	binCount := fftSize/2 + 1
	for i := 0; i < bars; i++ {
		start, end := m.BinRange(i)
		if start < 1 || end <= start || end > binCount {
			t.Errorf("bar %d has unusable range [%d, %d)", i, start, end)
		}
	}
	if _, end := m.BinRange(bars - 1); end != binCount {
		t.Errorf("top bar ends at bin %d, want Nyquist bin %d", end, binCount)
	}

	mags := make([]float64, binCount)
	for i := range mags {
		mags[i] = 0.5
	}
	targets := m.Aggregate(SpectrumResult{Magnitudes: mags, SampleRate: sampleRate, FFTSize: fftSize})
	if len(targets) != bars {
		t.Fatalf("Aggregate returned %d values, want %d", len(targets), bars)
	}
	for i, v := range targets {
		if v < 0 || v > 1 {
			t.Errorf("bar %d = %f, want [0,1]", i, v)
		}
	}
}

func TestAggregateRange(t *testing.T) {
	const (
		fftSize    = 1024
		sampleRate = 48000.0
		bars       = 64
	)
	m, err := NewBarMapper(fftSize, sampleRate, bars, testMapperConfig())
	if err != nil {
		t.Fatalf("NewBarMapper failed: %v", err)
	}
	a, err := NewAnalyzer(fftSize, sampleRate, Hann)
	if err != nil {
		t.Fatalf("NewAnalyzer failed: %v", err)
	}

	result := a.Analyze(utils.GenerateComplexWave(fftSize, sampleRate))
	targets := m.Aggregate(result)

	if len(targets) != bars {
		t.Fatalf("Aggregate returned %d values, want %d", len(targets), bars)
	}
	for i, v := range targets {
		if v < 0 || v > 1 {
			t.Errorf("bar %d = %f, want [0,1]", i, v)
		}
	}
}

func TestAggregateSilenceIsZero(t *testing.T) {
	m, err := NewBarMapper(1024, 48000, 64, testMapperConfig())
	if err != nil {
		t.Fatalf("NewBarMapper failed: %v", err)
	}
	silent := SpectrumResult{
		Magnitudes: make([]float64, 513),
		SampleRate: 48000,
		FFTSize:    1024,
	}
	for i, v := range m.Aggregate(silent) {
		if v != 0 {
			t.Errorf("bar %d = %f for silence, want 0", i, v)
		}
	}
}

// A bar covering bins of identical magnitude must produce that
// magnitude regardless of the aggregation policy.
func TestAggregatePoliciesAgreeOnConstantBins(t *testing.T) {
	mags := make([]float64, 513)
	for i := range mags {
		mags[i] = 0.5
	}
	result := SpectrumResult{Magnitudes: mags, SampleRate: 48000, FFTSize: 1024}

	peakCfg := testMapperConfig()
	avgCfg := testMapperConfig()
	avgCfg.Aggregation = config.AggregateAverage

	pm, err := NewBarMapper(1024, 48000, 64, peakCfg)
	if err != nil {
		t.Fatalf("NewBarMapper failed: %v", err)
	}
	am, err := NewBarMapper(1024, 48000, 64, avgCfg)
	if err != nil {
		t.Fatalf("NewBarMapper failed: %v", err)
	}

	peak := pm.Aggregate(result)
	avg := am.Aggregate(result)
	for i := range peak {
		if math.Abs(peak[i]-avg[i]) > 1e-12 {
			t.Errorf("bar %d: peak %f != average %f on constant bins", i, peak[i], avg[i])
		}
	}
}

func TestAggregateLocatesTone(t *testing.T) {
	const (
		fftSize    = 1024
		sampleRate = 48000.0
		bars       = 64
		freq       = 440.0
	)
	m, err := NewBarMapper(fftSize, sampleRate, bars, testMapperConfig())
	if err != nil {
		t.Fatalf("NewBarMapper failed: %v", err)
	}
	a, err := NewAnalyzer(fftSize, sampleRate, Hann)
	if err != nil {
		t.Fatalf("NewAnalyzer failed: %v", err)
	}

	targets := m.Aggregate(a.Analyze(utils.GenerateSineWave(fftSize, sampleRate, freq)))

	loudest := 0
	for i, v := range targets {
		if v > targets[loudest] {
			loudest = i
		}
	}
	start, end := m.BinRange(loudest)
	binWidth := sampleRate / float64(fftSize)
	lo := float64(start) * binWidth
	hi := float64(end) * binWidth
	// Spectral leakage can push the winner one bar to either side.
	if freq < lo-binWidth || freq > hi+binWidth {
		t.Errorf("loudest bar %d spans [%.1f, %.1f) Hz, want near %.1f Hz", loudest, lo, hi, freq)
	}
}

func TestAggregateZeroAllocations(t *testing.T) {
	m, err := NewBarMapper(1024, 48000, 64, testMapperConfig())
	if err != nil {
		t.Fatalf("NewBarMapper failed: %v", err)
	}
	result := SpectrumResult{
		Magnitudes: make([]float64, 513),
		SampleRate: 48000,
		FFTSize:    1024,
	}
	allocs := testing.AllocsPerRun(100, func() {
		_ = m.Aggregate(result)
	})
	if allocs > 0 {
		t.Errorf("Aggregate allocated %f times per run, want 0", allocs)
	}
}

func TestRecommendedBars(t *testing.T) {
	cases := []struct {
		sampleRate float64
		fftSize    int
		want       int
	}{
		{48000, 512, 32},
		{48000, 1024, 64},
		{48000, 2048, 96},
		{48000, 4096, 128},
		{48000, 8192, 150},
		{192000, 1024, 32},
		{192000, 512, 16},
	}
	for _, tc := range cases {
		if got := RecommendedBars(tc.sampleRate, tc.fftSize); got != tc.want {
			t.Errorf("RecommendedBars(%.0f, %d) = %d, want %d", tc.sampleRate, tc.fftSize, got, tc.want)
		}
	}
}

func BenchmarkAggregate(b *testing.B) {
	m, err := NewBarMapper(2048, 48000, 96, testMapperConfig())
	if err != nil {
		b.Fatalf("NewBarMapper failed: %v", err)
	}
	a, err := NewAnalyzer(2048, 48000, Hann)
	if err != nil {
		b.Fatalf("NewAnalyzer failed: %v", err)
	}
	result := a.Analyze(utils.GenerateComplexWave(2048, 48000))

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = m.Aggregate(result)
	}
}
