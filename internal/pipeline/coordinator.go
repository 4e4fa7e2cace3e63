// SPDX-License-Identifier: MIT
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"spectro/internal/analysis"
	"spectro/internal/audio"
	"spectro/internal/config"
	applog "spectro/internal/log"
)

// State is the coordinator's lifecycle state, readable from any
// goroutine.
type State int32

const (
	StateIdle State = iota
	StateCapturing
	StateReconfiguring
	StateDegraded
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCapturing:
		return "capturing"
	case StateReconfiguring:
		return "reconfiguring"
	case StateDegraded:
		return "degraded"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

const (
	// Capture silence for longer than this counts as a dropout.
	dropoutThreshold = 100 * time.Millisecond

	// Reconnect backoff bounds for a lost device.
	backoffInitial = 250 * time.Millisecond
	backoffMax     = 4 * time.Second

	// Samples of normalized audio carried in each snapshot's waveform.
	waveformPoints = 512
)

// errReconfigure signals that the active session must be reopened
// because a session-level parameter changed.
var errReconfigure = errors.New("session parameters changed")

// Coordinator owns the capture-to-snapshot loop. It opens a capture
// session on the configured device, normalizes and assembles incoming
// audio, runs analysis and smoothing, and publishes an immutable
// Snapshot after every processed frame.
//
// Configuration is re-read from the store on every cycle: display
// changes (bars, gain, smoothing) apply in place, session changes
// (device, sample rate, FFT size) trigger a full reset. Device loss
// moves the coordinator to StateDegraded and it retries with capped
// exponential backoff while the last good snapshot stays published.
type Coordinator struct {
	backend  audio.Backend
	store    *config.Store
	recorder *audio.Recorder

	state  atomic.Int32
	latest atomic.Pointer[Snapshot]

	framesProcessed atomic.Uint64
	captureDropouts atomic.Uint64

	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// stages bundles the per-session processing chain. Rebuilt whole on a
// full reset, piecewise on display-only changes.
type stages struct {
	normalizer *audio.Normalizer
	assembler  *Assembler
	analyzer   *analysis.Analyzer
	mapper     *analysis.BarMapper
	smoother   *analysis.Smoother

	cfg      *config.Config
	waveform []float64
}

// NewCoordinator creates a Coordinator. recorder may be nil; when set
// and armed, every normalized mono batch is appended to the recording.
func NewCoordinator(backend audio.Backend, store *config.Store, recorder *audio.Recorder) *Coordinator {
	c := &Coordinator{
		backend:  backend,
		store:    store,
		recorder: recorder,
	}
	c.state.Store(int32(StateIdle))
	return c
}

// State returns the current lifecycle state.
func (c *Coordinator) State() State { return State(c.state.Load()) }

// Latest returns the most recently published snapshot, or nil before
// the first frame. The snapshot is immutable.
func (c *Coordinator) Latest() *Snapshot { return c.latest.Load() }

// Start launches the capture loop. It returns immediately; use Stop
// for an orderly shutdown.
func (c *Coordinator) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.wg.Add(1)
	go c.run(ctx)
}

// Stop terminates the capture loop and blocks until it has exited.
// Safe to call more than once.
func (c *Coordinator) Stop() {
	c.once.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		c.wg.Wait()
		c.state.Store(int32(StateStopped))
	})
}

func (c *Coordinator) run(ctx context.Context) {
	defer c.wg.Done()

	backoff := backoffInitial
	for {
		if ctx.Err() != nil {
			return
		}

		err := c.capture(ctx)
		switch {
		case err == nil || errors.Is(err, context.Canceled):
			return
		case errors.Is(err, errReconfigure):
			c.state.Store(int32(StateReconfiguring))
			backoff = backoffInitial
			continue
		}

		c.state.Store(int32(StateDegraded))
		applog.Warnf("Pipeline: capture failed, retrying in %v: %v", backoff, err)

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > backoffMax {
			backoff = backoffMax
		}
	}
}

// capture opens one session and processes it until the context ends,
// the device fails, or a session-level parameter changes.
func (c *Coordinator) capture(ctx context.Context) error {
	cfg := c.store.Snapshot()

	session, err := c.backend.Open(audio.SessionParams{
		Device:          cfg.Device,
		Channels:        cfg.Channels,
		SampleRate:      cfg.SampleRate,
		FramesPerBuffer: audio.DefaultFramesPerBuffer,
	})
	if err != nil {
		return fmt.Errorf("opening capture session: %w", err)
	}
	defer session.Stop()

	spec := session.Spec()
	st, err := buildStages(cfg, spec)
	if err != nil {
		return fmt.Errorf("building pipeline stages: %w", err)
	}

	if err := session.Start(); err != nil {
		return fmt.Errorf("starting capture session: %w", err)
	}
	c.state.Store(int32(StateCapturing))
	applog.Infof("Pipeline: capturing %q at %.0f Hz (fft %d, %d bars)",
		cfg.Device, spec.SampleRate, cfg.FFTSize, cfg.Bars)
	if rec := analysis.RecommendedBars(spec.SampleRate, cfg.FFTSize); rec != cfg.Bars {
		applog.Debugf("Pipeline: %d bars configured, %d recommended for fft %d at %.0f Hz",
			cfg.Bars, rec, cfg.FFTSize, spec.SampleRate)
	}

	idle := time.NewTimer(dropoutThreshold)
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case buf, ok := <-session.Buffers():
			if !ok {
				return audio.ErrDeviceUnavailable
			}
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(dropoutThreshold)

			if err := c.processBuffer(st, buf); err != nil {
				return err
			}

			latest := c.store.Snapshot()
			if sessionChanged(st.cfg, latest) {
				return errReconfigure
			}
			if displayChanged(st.cfg, latest) {
				if err := st.applyDisplay(latest, spec); err != nil {
					return fmt.Errorf("applying config change: %w", err)
				}
			}

		case <-idle.C:
			c.captureDropouts.Add(1)
			idle.Reset(dropoutThreshold)
		}
	}
}

// sessionChanged reports whether a change requires reopening the
// capture session.
func sessionChanged(prev, next *config.Config) bool {
	return prev.Device != next.Device ||
		prev.Channels != next.Channels ||
		prev.SampleRate != next.SampleRate ||
		prev.FFTSize != next.FFTSize
}

// displayChanged reports whether any in-place tunable changed.
func displayChanged(prev, next *config.Config) bool {
	return prev.Bars != next.Bars ||
		prev.Window != next.Window ||
		prev.Aggregation != next.Aggregation ||
		prev.Sensitivity != next.Sensitivity ||
		prev.NoiseFloorDB != next.NoiseFloorDB ||
		prev.AttackTime != next.AttackTime ||
		prev.ReleaseTime != next.ReleaseTime ||
		prev.PeakHold != next.PeakHold ||
		prev.PeakRelease != next.PeakRelease
}

func buildStages(cfg *config.Config, spec audio.StreamSpec) (*stages, error) {
	windowFn, err := analysis.ParseWindowFunc(cfg.Window)
	if err != nil {
		return nil, err
	}
	analyzer, err := analysis.NewAnalyzer(cfg.FFTSize, spec.SampleRate, windowFn)
	if err != nil {
		return nil, err
	}
	mapper, err := analysis.NewBarMapper(cfg.FFTSize, spec.SampleRate, cfg.Bars, cfg)
	if err != nil {
		return nil, err
	}
	return &stages{
		normalizer: audio.NewNormalizer(cfg.FFTSize),
		assembler:  NewAssembler(cfg.FFTSize),
		analyzer:   analyzer,
		mapper:     mapper,
		smoother: analysis.NewSmoother(cfg.Bars,
			cfg.AttackTime, cfg.ReleaseTime, cfg.PeakHold, cfg.PeakRelease),
		cfg:      cfg,
		waveform: make([]float64, 0, waveformPoints),
	}, nil
}

// applyDisplay rebuilds the display-side stages in place after a
// tunable changed. The capture session and assembler keep running.
func (st *stages) applyDisplay(cfg *config.Config, spec audio.StreamSpec) error {
	windowFn, err := analysis.ParseWindowFunc(cfg.Window)
	if err != nil {
		return err
	}
	if cfg.Window != st.cfg.Window {
		analyzer, err := analysis.NewAnalyzer(cfg.FFTSize, spec.SampleRate, windowFn)
		if err != nil {
			return err
		}
		st.analyzer = analyzer
	}
	mapper, err := analysis.NewBarMapper(cfg.FFTSize, spec.SampleRate, cfg.Bars, cfg)
	if err != nil {
		return err
	}
	st.mapper = mapper
	if cfg.Bars != st.cfg.Bars {
		// Bar geometry changed: per-bar envelope state is meaningless
		// under the new geometry, and frames queued under the old one
		// are discarded so the first new snapshot is fully consistent.
		st.smoother = analysis.NewSmoother(cfg.Bars,
			cfg.AttackTime, cfg.ReleaseTime, cfg.PeakHold, cfg.PeakRelease)
		st.assembler.Reset(cfg.FFTSize)
	} else {
		// Tunable-only change: keep the envelopes and peaks so the
		// display does not blank on a settings tweak.
		st.smoother.SetTimeConstants(
			cfg.AttackTime, cfg.ReleaseTime, cfg.PeakHold, cfg.PeakRelease)
	}
	st.cfg = cfg
	applog.Infof("Pipeline: display settings applied (%d bars, %s)", cfg.Bars, cfg.AggName)
	return nil
}

func (c *Coordinator) processBuffer(st *stages, buf *audio.RawBuffer) error {
	samples, err := st.normalizer.Normalize(buf)
	if err != nil {
		return fmt.Errorf("normalizing capture buffer: %w", err)
	}

	if c.recorder != nil && c.recorder.Active() {
		if err := c.recorder.Write(samples); err != nil {
			applog.Errorf("Pipeline: recording write failed: %v", err)
		}
	}

	st.keepWaveform(samples)
	st.assembler.Push(samples)

	for {
		frame, ok := st.assembler.NextFrame()
		if !ok {
			return nil
		}
		started := time.Now()
		result := st.analyzer.Analyze(frame)
		targets := st.mapper.Aggregate(result)
		st.smoother.Update(targets, started)
		st.assembler.Release(frame)

		c.framesProcessed.Add(1)
		c.publish(st, targets, time.Since(started))
	}
}

// keepWaveform retains the most recent normalized samples for the
// snapshot's oscilloscope trace.
func (st *stages) keepWaveform(samples []float64) {
	if len(samples) >= waveformPoints {
		st.waveform = append(st.waveform[:0], samples[len(samples)-waveformPoints:]...)
		return
	}
	overflow := len(st.waveform) + len(samples) - waveformPoints
	if overflow > 0 {
		n := copy(st.waveform, st.waveform[overflow:])
		st.waveform = st.waveform[:n]
	}
	st.waveform = append(st.waveform, samples...)
}

// publish assembles an immutable snapshot and swaps it in for readers.
// Snapshots outlive the hot loop, so the slices are fresh allocations.
func (c *Coordinator) publish(st *stages, targets []float64, elapsed time.Duration) {
	values := st.smoother.Values()
	peaks := st.smoother.Peaks()

	bars := make([]Bar, len(values))
	for i := range bars {
		bars[i] = Bar{Value: values[i], Target: targets[i], Peak: peaks[i]}
	}
	waveform := make([]float64, len(st.waveform))
	copy(waveform, st.waveform)

	c.latest.Store(&Snapshot{
		Bars:     bars,
		Waveform: waveform,
		Diag: Diagnostics{
			ProcessingTime:  elapsed,
			LatencyMs:       st.analyzer.LatencyMs(),
			ResolutionHz:    st.analyzer.ResolutionHz(),
			FramesProcessed: c.framesProcessed.Load(),
			FramesDropped:   st.assembler.Dropped(),
			CaptureDropouts: c.captureDropouts.Load(),
			SampleRate:      st.analyzer.SampleRate(),
			FFTSize:         st.analyzer.FFTSize(),
			BarCount:        len(bars),
		},
		Timestamp: time.Now(),
	})
}
