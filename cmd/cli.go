// SPDX-License-Identifier: MIT
// Package cmd parses the command line into a validated configuration.
package cmd

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"spectro/internal/config"
)

// ParseArgs builds the effective configuration from defaults, the
// config file, environment overrides, and finally command-line flags.
// A flag only overrides the file value when it was actually passed.
func ParseArgs() (*config.Config, error) {
	var (
		cfgPath string
		flags   = config.NewConfig()
		result  *config.Config
	)

	rootCmd := &cobra.Command{
		Use:           "spectro",
		Short:         "Real-time audio spectrum analyzer",
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			applyFlagOverrides(cmd, cfg, flags)
			if err := cfg.Validate(); err != nil {
				return err
			}
			result = cfg
			return nil
		},
	}

	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available audio input devices",
		Run: func(cmd *cobra.Command, args []string) {
			result = config.NewConfig()
			result.Command = "list"
		},
	}
	rootCmd.AddCommand(listCmd)

	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "",
		"Path to YAML config file. Default searches spectro.yaml, config.yaml.")

	// Capture settings
	rootCmd.PersistentFlags().StringVarP(&flags.Device, "device", "d", config.DefaultDevice,
		"Input device name. Use 'list' command to see available devices.")
	rootCmd.PersistentFlags().IntVarP(&flags.Channels, "channels", "c", config.DefaultChannels,
		"Number of channels to capture (1=mono, 2=stereo)")
	rootCmd.PersistentFlags().Float64VarP(&flags.SampleRate, "sample-rate", "s", config.DefaultSampleRate,
		"Preferred sample rate in Hertz (the device's native rate wins)")

	// Analysis settings
	rootCmd.PersistentFlags().IntVarP(&flags.FFTSize, "fft-size", "f", config.DefaultFFTSize,
		"FFT size in samples (power of two)")
	rootCmd.PersistentFlags().IntVarP(&flags.Bars, "bars", "n", config.DefaultBars,
		"Number of display bars")
	rootCmd.PersistentFlags().StringVarP(&flags.Window, "window", "w", config.DefaultWindow,
		"Window function (hann, hamming, blackman, ...)")
	rootCmd.PersistentFlags().StringVarP(&flags.AggName, "aggregation", "a", config.AggregatePeak.String(),
		"Bin aggregation per bar: peak or average")

	// Display shaping
	rootCmd.PersistentFlags().Float64Var(&flags.Sensitivity, "sensitivity", config.DefaultSensitivity,
		"Display gain in dB applied after aggregation")
	rootCmd.PersistentFlags().Float64Var(&flags.NoiseFloorDB, "noise-floor", config.DefaultNoiseFloorDB,
		"Noise floor in dB; bars below it clamp to zero")
	rootCmd.PersistentFlags().DurationVar(&flags.AttackTime, "attack", config.DefaultAttackTime,
		"Rise smoothing time constant")
	rootCmd.PersistentFlags().DurationVar(&flags.ReleaseTime, "release", config.DefaultReleaseTime,
		"Fall smoothing time constant")
	rootCmd.PersistentFlags().DurationVar(&flags.PeakHold, "peak-hold", config.DefaultPeakHold,
		"How long a peak marker holds before decaying")
	rootCmd.PersistentFlags().DurationVar(&flags.PeakRelease, "peak-release", config.DefaultPeakRelease,
		"Peak marker decay time constant")

	// Recording
	rootCmd.PersistentFlags().BoolVarP(&flags.Record, "record", "r", false,
		"Record normalized capture audio to a WAV file")
	rootCmd.PersistentFlags().StringVarP(&flags.OutputFile, "output", "o", "",
		"Recording file name. Default is recording-DD-MM-YYYY-HHMMSS.wav")

	// Transports
	rootCmd.PersistentFlags().StringVar(&flags.WebSocketAddr, "websocket", "",
		"WebSocket listen address (e.g. :8080); empty disables")
	rootCmd.PersistentFlags().StringVar(&flags.UDPTargetAddress, "udp-target", "",
		"UDP target address (e.g. 127.0.0.1:9090); empty disables")
	rootCmd.PersistentFlags().DurationVar(&flags.UDPSendInterval, "udp-interval", 33*time.Millisecond,
		"Snapshot publish interval for the transports")

	// Debug
	rootCmd.PersistentFlags().StringVar(&flags.LogLevel, "log-level", "info",
		"Log level: debug, info, warn, error")

	rootCmd.SetArgs(os.Args[1:])
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}

	if result != nil && result.Record && result.OutputFile == "" {
		result.OutputFile = "recording-" +
			time.Now().UTC().Format("02-01-2006-150405") + ".wav"
	}

	return result, nil
}

// applyFlagOverrides copies flag values onto cfg, but only for flags
// the user actually passed, so the config file keeps authority over
// untouched settings.
func applyFlagOverrides(cmd *cobra.Command, cfg, flags *config.Config) {
	set := cmd.Flags()
	if set.Changed("device") {
		cfg.Device = flags.Device
	}
	if set.Changed("channels") {
		cfg.Channels = flags.Channels
	}
	if set.Changed("sample-rate") {
		cfg.SampleRate = flags.SampleRate
	}
	if set.Changed("fft-size") {
		cfg.FFTSize = flags.FFTSize
	}
	if set.Changed("bars") {
		cfg.Bars = flags.Bars
	}
	if set.Changed("window") {
		cfg.Window = flags.Window
	}
	if set.Changed("aggregation") {
		cfg.AggName = flags.AggName
	}
	if set.Changed("sensitivity") {
		cfg.Sensitivity = flags.Sensitivity
	}
	if set.Changed("noise-floor") {
		cfg.NoiseFloorDB = flags.NoiseFloorDB
	}
	if set.Changed("attack") {
		cfg.AttackTime = flags.AttackTime
	}
	if set.Changed("release") {
		cfg.ReleaseTime = flags.ReleaseTime
	}
	if set.Changed("peak-hold") {
		cfg.PeakHold = flags.PeakHold
	}
	if set.Changed("peak-release") {
		cfg.PeakRelease = flags.PeakRelease
	}
	if set.Changed("record") {
		cfg.Record = flags.Record
	}
	if set.Changed("output") {
		cfg.OutputFile = flags.OutputFile
	}
	if set.Changed("websocket") {
		cfg.WebSocketAddr = flags.WebSocketAddr
	}
	if set.Changed("udp-target") {
		cfg.UDPTargetAddress = flags.UDPTargetAddress
	}
	if set.Changed("udp-interval") {
		cfg.UDPSendInterval = flags.UDPSendInterval
	}
	if set.Changed("log-level") {
		cfg.LogLevel = flags.LogLevel
	}
}
