// SPDX-License-Identifier: MIT
package analysis

import "time"

// Smoother applies asymmetric attack/release smoothing to bar targets
// and tracks a peak-hold indicator per bar.
//
// The smoothing factor is frame-rate independent: for an elapsed time
// dt and a time constant tau, the step factor is min(dt/tau, 1), so a
// value converges toward its target at the same perceptual rate no
// matter how often Update is called.
type Smoother struct {
	values        []float64
	peaks         []float64
	holdRemaining []time.Duration
	lastUpdate    time.Time

	attack      time.Duration
	release     time.Duration
	peakHold    time.Duration
	peakRelease time.Duration
}

// NewSmoother creates a Smoother for barCount bars. Time constants of
// zero mean instant response on that edge.
func NewSmoother(barCount int, attack, release, peakHold, peakRelease time.Duration) *Smoother {
	return &Smoother{
		values:        make([]float64, barCount),
		peaks:         make([]float64, barCount),
		holdRemaining: make([]time.Duration, barCount),
		attack:        attack,
		release:       release,
		peakHold:      peakHold,
		peakRelease:   peakRelease,
	}
}

// Reset resizes the smoother to barCount bars and zeroes all state.
// Used when the display geometry changes mid-run.
func (s *Smoother) Reset(barCount int) {
	if cap(s.values) < barCount {
		s.values = make([]float64, barCount)
		s.peaks = make([]float64, barCount)
		s.holdRemaining = make([]time.Duration, barCount)
	} else {
		s.values = s.values[:barCount]
		s.peaks = s.peaks[:barCount]
		s.holdRemaining = s.holdRemaining[:barCount]
		for i := range s.values {
			s.values[i] = 0
			s.peaks[i] = 0
			s.holdRemaining[i] = 0
		}
	}
	s.lastUpdate = time.Time{}
}

// SetTimeConstants swaps the smoothing time constants without touching
// per-bar state, so live tuning does not blank the display.
func (s *Smoother) SetTimeConstants(attack, release, peakHold, peakRelease time.Duration) {
	s.attack = attack
	s.release = release
	s.peakHold = peakHold
	s.peakRelease = peakRelease
}

// stepFactor converts elapsed time and a time constant into a
// per-update interpolation factor in [0,1].
func stepFactor(dt, tau time.Duration) float64 {
	if tau <= 0 {
		return 1
	}
	f := float64(dt) / float64(tau)
	if f > 1 {
		return 1
	}
	return f
}

// Update moves every bar toward its target using the attack constant
// for rising edges and the release constant for falling edges, and
// advances the peak indicators. targets must have exactly BarCount
// entries. Hot path: zero allocations.
func (s *Smoother) Update(targets []float64, now time.Time) {
	var dt time.Duration
	if !s.lastUpdate.IsZero() {
		dt = now.Sub(s.lastUpdate)
		if dt < 0 {
			dt = 0
		}
	}
	s.lastUpdate = now

	attackF := stepFactor(dt, s.attack)
	releaseF := stepFactor(dt, s.release)
	peakF := stepFactor(dt, s.peakRelease)

	for i, target := range targets {
		v := s.values[i]
		if target > v {
			v += (target - v) * attackF
		} else {
			v += (target - v) * releaseF
		}
		s.values[i] = v

		// Peak snaps up instantly and rearms the hold timer; after the
		// hold expires it decays, but never below the current value.
		if v >= s.peaks[i] {
			s.peaks[i] = v
			s.holdRemaining[i] = s.peakHold
		} else if s.holdRemaining[i] > 0 {
			s.holdRemaining[i] -= dt
		} else {
			p := s.peaks[i] - s.peaks[i]*peakF
			if p < v {
				p = v
			}
			s.peaks[i] = p
		}
	}
}

// Values returns the smoothed bar values. The slice is live state;
// callers copy before publishing.
func (s *Smoother) Values() []float64 { return s.values }

// Peaks returns the peak-hold values, aligned with Values.
func (s *Smoother) Peaks() []float64 { return s.peaks }

// BarCount returns the number of bars tracked.
func (s *Smoother) BarCount() int { return len(s.values) }
