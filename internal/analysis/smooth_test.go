// SPDX-License-Identifier: MIT
package analysis

import (
	"testing"
	"time"
)

func stepTimes(s *Smoother, targets []float64, start time.Time, step time.Duration, n int) time.Time {
	now := start
	for i := 0; i < n; i++ {
		now = now.Add(step)
		s.Update(targets, now)
	}
	return now
}

func TestSmootherConvergesWithoutOvershoot(t *testing.T) {
	s := NewSmoother(1, 20*time.Millisecond, 200*time.Millisecond, time.Second, 1500*time.Millisecond)
	targets := []float64{0.8}

	start := time.Now()
	s.Update(targets, start)
	stepTimes(s, targets, start, 10*time.Millisecond, 50)

	v := s.Values()[0]
	if v > 0.8 {
		t.Errorf("value %f overshot target 0.8", v)
	}
	if v < 0.79 {
		t.Errorf("value %f did not converge to 0.8", v)
	}
}

func TestSmootherAttackFasterThanRelease(t *testing.T) {
	s := NewSmoother(1, 20*time.Millisecond, 200*time.Millisecond, 0, 1500*time.Millisecond)

	start := time.Now()
	s.Update([]float64{0}, start)
	now := start.Add(10 * time.Millisecond)
	s.Update([]float64{1}, now)
	rise := s.Values()[0]

	// Converge to 1, then drop the target and measure one falling step.
	now = stepTimes(s, []float64{1}, now, 10*time.Millisecond, 50)
	high := s.Values()[0]
	now = now.Add(10 * time.Millisecond)
	s.Update([]float64{0}, now)
	fall := high - s.Values()[0]

	if rise <= fall {
		t.Errorf("rise step %f not faster than fall step %f", rise, fall)
	}
}

func TestSmootherInstantWithZeroTimeConstants(t *testing.T) {
	s := NewSmoother(1, 0, 0, 0, 0)
	start := time.Now()
	s.Update([]float64{0.6}, start)
	s.Update([]float64{0.6}, start.Add(time.Millisecond))
	if got := s.Values()[0]; got != 0.6 {
		t.Errorf("value = %f, want instant 0.6", got)
	}
}

func TestPeakHoldThenDecay(t *testing.T) {
	s := NewSmoother(1, 0, 0, 100*time.Millisecond, 400*time.Millisecond)

	start := time.Now()
	s.Update([]float64{0.9}, start)
	if got := s.Peaks()[0]; got != 0.9 {
		t.Fatalf("peak = %f after hit, want 0.9", got)
	}

	// Drop the signal. During the hold window the peak must stay put.
	now := start.Add(50 * time.Millisecond)
	s.Update([]float64{0}, now)
	if got := s.Peaks()[0]; got != 0.9 {
		t.Errorf("peak = %f during hold, want 0.9", got)
	}

	// Well past the hold window the peak decays below its held value.
	now = stepTimes(s, []float64{0}, now, 50*time.Millisecond, 8)
	if got := s.Peaks()[0]; got >= 0.9 {
		t.Errorf("peak = %f after hold expired, want < 0.9", got)
	}
}

func TestPeakNeverBelowValue(t *testing.T) {
	s := NewSmoother(1, 0, 0, 10*time.Millisecond, 50*time.Millisecond)
	start := time.Now()
	s.Update([]float64{1}, start)
	now := stepTimes(s, []float64{0.5}, start, 20*time.Millisecond, 30)
	_ = now
	if v, p := s.Values()[0], s.Peaks()[0]; p < v {
		t.Errorf("peak %f fell below value %f", p, v)
	}
}

func TestSetTimeConstantsPreservesState(t *testing.T) {
	s := NewSmoother(2, 0, 0, time.Second, time.Second)
	start := time.Now()
	s.Update([]float64{0.7, 0.4}, start)

	s.SetTimeConstants(20*time.Millisecond, 200*time.Millisecond, time.Second, 1500*time.Millisecond)

	if v := s.Values(); v[0] != 0.7 || v[1] != 0.4 {
		t.Errorf("values = %v after constant swap, want [0.7 0.4]", v)
	}
	if p := s.Peaks(); p[0] != 0.7 || p[1] != 0.4 {
		t.Errorf("peaks = %v after constant swap, want [0.7 0.4]", p)
	}

	// The new constants govern the next update: a 10 ms step against a
	// 200 ms release moves 5% of the way down, not all the way.
	now := start.Add(10 * time.Millisecond)
	s.Update([]float64{0, 0}, now)
	v := s.Values()[0]
	if v <= 0.6 || v >= 0.7 {
		t.Errorf("value = %f after release step, want a partial decay from 0.7", v)
	}
}

func TestSmootherReset(t *testing.T) {
	s := NewSmoother(4, 0, 0, time.Second, time.Second)
	s.Update([]float64{1, 1, 1, 1}, time.Now())

	s.Reset(8)
	if s.BarCount() != 8 {
		t.Fatalf("BarCount = %d after Reset, want 8", s.BarCount())
	}
	for i, v := range s.Values() {
		if v != 0 {
			t.Errorf("value[%d] = %f after Reset, want 0", i, v)
		}
	}
	for i, p := range s.Peaks() {
		if p != 0 {
			t.Errorf("peak[%d] = %f after Reset, want 0", i, p)
		}
	}
}

func TestSmootherUpdateZeroAllocations(t *testing.T) {
	s := NewSmoother(64, 20*time.Millisecond, 200*time.Millisecond, time.Second, 1500*time.Millisecond)
	targets := make([]float64, 64)
	for i := range targets {
		targets[i] = 0.5
	}
	now := time.Now()

	allocs := testing.AllocsPerRun(100, func() {
		now = now.Add(10 * time.Millisecond)
		s.Update(targets, now)
	})
	if allocs > 0 {
		t.Errorf("Update allocated %f times per run, want 0", allocs)
	}
}
