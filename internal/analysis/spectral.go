// SPDX-License-Identifier: MIT
/*
Package analysis implements the frequency-domain half of the pipeline:
windowed FFT analysis, logarithmic bin-to-bar aggregation, and the
per-bar attack/release smoothing with peak-hold indicators.

All hot-path methods operate on pre-allocated workspaces; nothing here
allocates per frame once constructed.
*/
package analysis

import (
	"fmt"
	"math/cmplx"
	"strings"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"

	applog "spectro/internal/log"
	"spectro/pkg/bitint"
)

// WindowFunc selects the FFT window function.
type WindowFunc int

const (
	Hann WindowFunc = iota
	Hamming
	Blackman
	BlackmanNuttall
	Nuttall
	Lanczos
	BartlettHann
)

// ParseWindowFunc converts a string name (case-insensitive) to a
// WindowFunc, returning Hann and an error if the name is unknown.
func ParseWindowFunc(name string) (WindowFunc, error) {
	switch strings.ToLower(name) {
	case "hann", "hanning", "":
		return Hann, nil
	case "hamming":
		return Hamming, nil
	case "blackman":
		return Blackman, nil
	case "blackmannuttall":
		return BlackmanNuttall, nil
	case "nuttall":
		return Nuttall, nil
	case "lanczos":
		return Lanczos, nil
	case "bartletthann":
		return BartlettHann, nil
	default:
		return Hann, fmt.Errorf("unknown window function name: %q", name)
	}
}

// applyWindow fills coeffs with the selected window's coefficients.
// gonum's window functions multiply in place, so the slice is seeded
// with ones first.
func applyWindow(coeffs []float64, windowType WindowFunc) {
	for i := range coeffs {
		coeffs[i] = 1.0
	}
	switch windowType {
	case Hamming:
		window.Hamming(coeffs)
	case Blackman:
		window.Blackman(coeffs)
	case BlackmanNuttall:
		window.BlackmanNuttall(coeffs)
	case Nuttall:
		window.Nuttall(coeffs)
	case Lanczos:
		window.Lanczos(coeffs)
	case BartlettHann:
		window.BartlettHann(coeffs)
	default:
		window.Hann(coeffs)
	}
}

// SpectrumResult is one frame's magnitude spectrum plus the parameters
// needed for Hz-per-bin math downstream. The Magnitudes slice aliases
// the producing Analyzer's workspace and is valid until its next
// Analyze call; it is handed off, never shared concurrently.
type SpectrumResult struct {
	Magnitudes []float64 // length FFTSize/2 + 1, non-negative
	SampleRate float64
	FFTSize    int
}

// FrequencyForBin returns the center frequency (Hz) of bin i.
func (r SpectrumResult) FrequencyForBin(i int) float64 {
	if i < 0 || i >= len(r.Magnitudes) {
		return 0
	}
	return float64(i) * (r.SampleRate / float64(r.FFTSize))
}

// Pre-allocated buffers for FFT calculations.
type workspace struct {
	input     []float64    // windowed input samples
	output    []complex128 // FFT complex output
	magnitude []float64    // per-bin magnitudes
	window    []float64    // window coefficients
}

// Analyzer performs windowed real-to-complex FFT analysis over frames
// of a fixed size. The FFT size is immutable: changing it means
// constructing a new Analyzer (the coordinator's full-reset path),
// which keeps the window coefficients cache-stable during a run.
type Analyzer struct {
	fftSize    int
	sampleRate float64
	fft        *fourier.FFT
	workspace  workspace
}

// NewAnalyzer creates an Analyzer for the given FFT size and sample
// rate. fftSize must be a power of two.
func NewAnalyzer(fftSize int, sampleRate float64, windowType WindowFunc) (*Analyzer, error) {
	if !bitint.IsPowerOfTwo(fftSize) {
		return nil, fmt.Errorf("fft size must be a power of 2, got %d", fftSize)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %f", sampleRate)
	}

	windowCoeffs := make([]float64, fftSize)
	applyWindow(windowCoeffs, windowType)

	// Real FFT output is N/2 + 1 complex bins.
	outputSize := fftSize/2 + 1

	latency := float64(fftSize) / sampleRate * 1000.0
	applog.Debugf("Analysis: analyzer ready (size %d, %.0f Hz, %.2f Hz/bin, %.1f ms %s latency)",
		fftSize, sampleRate, sampleRate/float64(fftSize), latency, latencyClass(latency))

	return &Analyzer{
		fftSize:    fftSize,
		sampleRate: sampleRate,
		fft:        fourier.NewFFT(fftSize),
		workspace: workspace{
			input:     make([]float64, fftSize),
			output:    make([]complex128, outputSize),
			magnitude: make([]float64, outputSize),
			window:    windowCoeffs,
		},
	}, nil
}

// Analyze windows the frame, runs the FFT, and reduces to per-bin
// magnitudes. The frame must hold exactly FFTSize samples (shorter
// input is zero-padded, which only happens during device dropout).
// Hot path: zero allocations.
func (a *Analyzer) Analyze(frame []float64) SpectrumResult {
	n := len(frame)
	for i := range a.workspace.input {
		if i < n {
			a.workspace.input[i] = frame[i] * a.workspace.window[i]
		} else {
			a.workspace.input[i] = 0
		}
	}

	a.fft.Coefficients(a.workspace.output, a.workspace.input)
	for i, c := range a.workspace.output {
		a.workspace.magnitude[i] = cmplx.Abs(c)
	}

	return SpectrumResult{
		Magnitudes: a.workspace.magnitude,
		SampleRate: a.sampleRate,
		FFTSize:    a.fftSize,
	}
}

// FFTSize returns the configured FFT size.
func (a *Analyzer) FFTSize() int { return a.fftSize }

// SampleRate returns the configured sample rate in Hz.
func (a *Analyzer) SampleRate() float64 { return a.sampleRate }

// LatencyMs returns the intrinsic analysis latency in milliseconds:
// the time it takes to gather one full frame. Physical, not a bug
// surface; exposed as a diagnostic.
func (a *Analyzer) LatencyMs() float64 {
	return float64(a.fftSize) / a.sampleRate * 1000.0
}

// ResolutionHz returns the frequency width of one FFT bin.
func (a *Analyzer) ResolutionHz() float64 {
	return a.sampleRate / float64(a.fftSize)
}

// latencyClass buckets an analysis latency for log readability.
func latencyClass(latencyMs float64) string {
	switch {
	case latencyMs < 25:
		return "low"
	case latencyMs < 60:
		return "medium"
	default:
		return "high"
	}
}
