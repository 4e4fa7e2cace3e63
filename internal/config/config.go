// Package config defines the pipeline configuration, its recognized
// ranges, and the atomic snapshot store used to hand configuration
// across goroutines without tearing.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"spectro/pkg/bitint"
)

// ErrInvalidConfig marks configuration values outside the recognized
// ranges. Such configs are rejected before application; the previous
// valid config stays active.
var ErrInvalidConfig = errors.New("invalid config")

// Recognized ranges and defaults for the analysis pipeline.
const (
	MinFFTSize = 512
	MaxFFTSize = 8192
	MinBars    = 16
	MaxBars    = 512

	MinSampleRate = 8000
	MaxSampleRate = 192000

	// Sensitivity is a display gain in dB applied after aggregation.
	MinSensitivityDB = -40.0
	MaxSensitivityDB = 40.0

	DefaultDevice      = "" // empty selects the system default device
	DefaultChannels    = 2
	DefaultSampleRate  = 48000
	DefaultFFTSize     = 2048
	DefaultBars        = 64
	DefaultWindow      = "hann"
	DefaultSensitivity = 0.0
	// Bars below the noise floor clamp to zero; the floor also sets the
	// bottom of the normalized display range.
	DefaultNoiseFloorDB = -60.0

	DefaultAttackTime  = 20 * time.Millisecond
	DefaultReleaseTime = 200 * time.Millisecond
	DefaultPeakHold    = 1 * time.Second
	DefaultPeakRelease = 1500 * time.Millisecond
)

// Aggregation selects how the bins inside one bar's frequency range are
// reduced to a single value.
type Aggregation int

const (
	// AggregatePeak takes the maximum bin magnitude: sharp, responsive
	// to transients.
	AggregatePeak Aggregation = iota
	// AggregateAverage takes the mean bin magnitude: smoother, less
	// transient-sensitive.
	AggregateAverage
)

func (a Aggregation) String() string {
	if a == AggregateAverage {
		return "average"
	}
	return "peak"
}

// ParseAggregation converts a string name (case-insensitive) to an
// Aggregation. Unknown names return AggregatePeak and an error.
func ParseAggregation(name string) (Aggregation, error) {
	switch strings.ToLower(name) {
	case "peak", "max":
		return AggregatePeak, nil
	case "average", "avg", "mean":
		return AggregateAverage, nil
	default:
		return AggregatePeak, fmt.Errorf("%w: unknown aggregation %q", ErrInvalidConfig, name)
	}
}

// Config holds all runtime options for the analysis pipeline. A Config
// value is treated as immutable once handed to the Store; stages read a
// snapshot pointer once per cycle and never see partial updates.
type Config struct {
	// Capture settings.
	Device     string  `yaml:"device"`      // device name, empty for system default
	Channels   int     `yaml:"channels"`    // channels to request from the device
	SampleRate float64 `yaml:"sample_rate"` // preferred rate; the device's native rate wins

	// Analysis settings.
	FFTSize     int         `yaml:"fft_size"` // power of two, MinFFTSize..MaxFFTSize
	Bars        int         `yaml:"bars"`     // display bars, MinBars..MaxBars
	Window      string      `yaml:"window"`   // window function name (hann, hamming, ...)
	Aggregation Aggregation `yaml:"-"`
	AggName     string      `yaml:"aggregation"` // textual form for file/flag parsing

	// Display shaping.
	Sensitivity  float64 `yaml:"sensitivity_db"` // gain (dB) applied after aggregation
	NoiseFloorDB float64 `yaml:"noise_floor_db"` // threshold (dB) below which bars clamp to zero

	// Smoothing time constants.
	AttackTime  time.Duration `yaml:"attack_time"`
	ReleaseTime time.Duration `yaml:"release_time"`
	PeakHold    time.Duration `yaml:"peak_hold"`
	PeakRelease time.Duration `yaml:"peak_release"`

	// Recording settings.
	Record     bool   `yaml:"record"`
	OutputFile string `yaml:"output_file"`

	// Transport settings.
	WebSocketAddr    string        `yaml:"websocket_addr"` // empty disables the WebSocket broadcaster
	UDPTargetAddress string        `yaml:"udp_target"`     // empty disables the UDP publisher
	UDPSendInterval  time.Duration `yaml:"udp_interval"`

	// Debug settings.
	LogLevel string `yaml:"log_level"`
	Command  string `yaml:"-"` // one-off command (e.g. "list"), CLI only
}

// NewConfig returns a Config populated with defaults. The result is the
// base onto which file, environment, and flag values are layered.
func NewConfig() *Config {
	return &Config{
		Device:           DefaultDevice,
		Channels:         DefaultChannels,
		SampleRate:       DefaultSampleRate,
		FFTSize:          DefaultFFTSize,
		Bars:             DefaultBars,
		Window:           DefaultWindow,
		Aggregation:      AggregatePeak,
		AggName:          AggregatePeak.String(),
		Sensitivity:      DefaultSensitivity,
		NoiseFloorDB:     DefaultNoiseFloorDB,
		AttackTime:       DefaultAttackTime,
		ReleaseTime:      DefaultReleaseTime,
		PeakHold:         DefaultPeakHold,
		PeakRelease:      DefaultPeakRelease,
		UDPSendInterval:  33 * time.Millisecond, // ~30Hz
		LogLevel:         "info",
	}
}

// Validate checks every field against its recognized range. All
// violations are reported as ErrInvalidConfig so callers can reject the
// config wholesale without applying any part of it.
func (c *Config) Validate() error {
	if !bitint.IsPowerOfTwo(c.FFTSize) {
		return fmt.Errorf("%w: fft_size %d is not a power of two", ErrInvalidConfig, c.FFTSize)
	}
	if c.FFTSize < MinFFTSize || c.FFTSize > MaxFFTSize {
		return fmt.Errorf("%w: fft_size %d outside %d..%d", ErrInvalidConfig, c.FFTSize, MinFFTSize, MaxFFTSize)
	}
	if c.Bars < MinBars || c.Bars > MaxBars {
		return fmt.Errorf("%w: bars %d outside %d..%d", ErrInvalidConfig, c.Bars, MinBars, MaxBars)
	}
	if c.SampleRate < MinSampleRate || c.SampleRate > MaxSampleRate {
		return fmt.Errorf("%w: sample_rate %.0f outside %d..%d", ErrInvalidConfig, c.SampleRate, MinSampleRate, MaxSampleRate)
	}
	if c.Channels < 1 {
		return fmt.Errorf("%w: channels %d must be >= 1", ErrInvalidConfig, c.Channels)
	}
	if c.Sensitivity < MinSensitivityDB || c.Sensitivity > MaxSensitivityDB {
		return fmt.Errorf("%w: sensitivity_db %.1f outside %.0f..%.0f", ErrInvalidConfig, c.Sensitivity, MinSensitivityDB, MaxSensitivityDB)
	}
	if c.NoiseFloorDB >= 0 {
		return fmt.Errorf("%w: noise_floor_db %.1f must be negative", ErrInvalidConfig, c.NoiseFloorDB)
	}
	if c.AttackTime <= 0 || c.ReleaseTime <= 0 {
		return fmt.Errorf("%w: attack/release times must be positive", ErrInvalidConfig)
	}
	if c.PeakHold < 0 || c.PeakRelease <= 0 {
		return fmt.Errorf("%w: peak hold/release times invalid", ErrInvalidConfig)
	}
	if _, err := ParseAggregation(c.AggName); c.AggName != "" && err != nil {
		return err
	}
	return nil
}

// resolveAggregation syncs the typed Aggregation field from its textual
// form after file or flag parsing. Call after Validate.
func (c *Config) resolveAggregation() {
	if c.AggName == "" {
		c.AggName = c.Aggregation.String()
		return
	}
	agg, err := ParseAggregation(c.AggName)
	if err == nil {
		c.Aggregation = agg
	}
}
