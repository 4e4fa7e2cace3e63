// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math"

	"spectro/internal/config"
)

// silenceEpsilon keeps log10 finite for empty bins.
const silenceEpsilon = 1e-10

// binRange is a half-open run of FFT bins [start, end) feeding one bar.
type binRange struct {
	start int
	end   int
}

// BarMapper aggregates FFT bin magnitudes into a fixed number of
// display bars on a logarithmic frequency axis, then converts each
// bar to a normalized [0,1] value against the configured noise floor.
//
// Bin ranges are precomputed at construction; Aggregate reuses its
// output slice, so the hot path does not allocate.
type BarMapper struct {
	ranges       []binRange
	targets      []float64
	aggregation  config.Aggregation
	sensitivity  float64
	noiseFloorDB float64
}

// NewBarMapper builds the bin-to-bar mapping for the given analysis
// parameters. barCount bars span [one bin width, Nyquist] with
// geometric (equal-ratio) boundaries, so each octave gets about the
// same number of bars. The DC bin is never included. Every bar gets at
// least one bin: a bar whose span rounds to zero bins borrows the
// nearest one, and when there are more bars than bins the leftover
// bars share the top bin, so the mapper never refuses a bar count.
func NewBarMapper(fftSize int, sampleRate float64, barCount int, cfg *config.Config) (*BarMapper, error) {
	if barCount <= 0 {
		return nil, fmt.Errorf("bar count must be positive, got %d", barCount)
	}
	if cfg.NoiseFloorDB >= 0 {
		return nil, fmt.Errorf("noise floor must be negative, got %f dB", cfg.NoiseFloorDB)
	}

	binCount := fftSize/2 + 1
	binWidth := sampleRate / float64(fftSize)
	fMin := binWidth
	nyquist := sampleRate / 2.0
	ratio := math.Pow(nyquist/fMin, 1.0/float64(barCount))

	ranges := make([]binRange, barCount)
	prevEnd := 1 // skip DC
	for i := 0; i < barCount; i++ {
		hi := fMin * math.Pow(ratio, float64(i+1))
		end := int(math.Round(hi / binWidth))
		if end > binCount {
			end = binCount
		}
		start := prevEnd
		if start >= binCount {
			// Bins exhausted: remaining bars share the top bin.
			start = binCount - 1
		}
		// A bar whose frequency span is narrower than one bin borrows
		// the nearest bin above so every bar renders something.
		if end <= start {
			end = start + 1
		}
		if end > binCount {
			end = binCount
			start = end - 1
		}
		ranges[i] = binRange{start: start, end: end}
		if end > prevEnd {
			prevEnd = end
		}
	}
	// The top bar always reaches Nyquist.
	ranges[barCount-1].end = binCount
	if ranges[barCount-1].start >= ranges[barCount-1].end {
		ranges[barCount-1].start = ranges[barCount-1].end - 1
	}

	return &BarMapper{
		ranges:       ranges,
		targets:      make([]float64, barCount),
		aggregation:  cfg.Aggregation,
		sensitivity:  cfg.Sensitivity,
		noiseFloorDB: cfg.NoiseFloorDB,
	}, nil
}

// BarCount returns the number of display bars.
func (m *BarMapper) BarCount() int { return len(m.ranges) }

// BinRange returns the half-open FFT bin range [start, end) feeding
// bar i.
func (m *BarMapper) BinRange(i int) (start, end int) {
	return m.ranges[i].start, m.ranges[i].end
}

// Aggregate reduces the spectrum to per-bar target values in [0,1].
// Bins are combined on linear magnitudes (peak or average per the
// configured policy), then converted to dB, offset by the sensitivity
// gain, and normalized against the noise floor. The returned slice is
// reused across calls.
func (m *BarMapper) Aggregate(result SpectrumResult) []float64 {
	mags := result.Magnitudes
	for i, r := range m.ranges {
		var v float64
		if m.aggregation == config.AggregateAverage {
			sum := 0.0
			for b := r.start; b < r.end; b++ {
				sum += mags[b]
			}
			v = sum / float64(r.end-r.start)
		} else {
			for b := r.start; b < r.end; b++ {
				if mags[b] > v {
					v = mags[b]
				}
			}
		}

		db := 20.0*math.Log10(v+silenceEpsilon) + m.sensitivity
		norm := (db - m.noiseFloorDB) / (-m.noiseFloorDB)
		if norm < 0 {
			norm = 0
		} else if norm > 1 {
			norm = 1
		}
		m.targets[i] = norm
	}
	return m.targets
}

// RecommendedBars suggests a bar count for the given analysis
// parameters: enough bars to use the available resolution without
// mapping several bars onto the same bin at the low end. Higher sample
// rates widen the bins, so fewer bars resolve cleanly at the same FFT
// size.
func RecommendedBars(sampleRate float64, fftSize int) int {
	var bars int
	switch {
	case fftSize <= 512:
		bars = 32
	case fftSize <= 1024:
		bars = 64
	case fftSize <= 2048:
		bars = 96
	case fftSize <= 4096:
		bars = 128
	default:
		bars = 150
	}
	if sampleRate > 96000 {
		bars /= 2
	}
	if bars < 16 {
		bars = 16
	}
	return bars
}
