// SPDX-License-Identifier: MIT
package pipeline

import "time"

// Bar is one display bar: the smoothed value actually rendered, the
// raw target it is converging toward, and the peak-hold marker. All
// three are normalized to [0,1].
type Bar struct {
	Value  float64 `json:"value"`
	Target float64 `json:"target"`
	Peak   float64 `json:"peak"`
}

// Diagnostics carries per-run health counters and the analysis
// parameters a frontend needs to label its axes.
type Diagnostics struct {
	ProcessingTime  time.Duration `json:"processingTimeNs"`
	LatencyMs       float64       `json:"latencyMs"`
	ResolutionHz    float64       `json:"resolutionHz"`
	FramesProcessed uint64        `json:"framesProcessed"`
	FramesDropped   uint64        `json:"framesDropped"`
	CaptureDropouts uint64        `json:"captureDropouts"`
	SampleRate      float64       `json:"sampleRate"`
	FFTSize         int           `json:"fftSize"`
	BarCount        int           `json:"barCount"`
}

// Snapshot is one immutable frame of display state. A Snapshot is
// never mutated after publication; readers on any goroutine may hold
// one indefinitely.
type Snapshot struct {
	Bars      []Bar       `json:"bars"`
	Waveform  []float64   `json:"waveform,omitempty"`
	Diag      Diagnostics `json:"diagnostics"`
	Timestamp time.Time   `json:"timestamp"`
}
