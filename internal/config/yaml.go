// SPDX-License-Identifier: MIT
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at path. If path is
// empty it searches default locations ("spectro.yaml", "config.yaml").
// If no file is found the built-in defaults are used. Environment
// overrides are applied after the file, and the final result is
// validated before being returned.
func LoadConfig(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		candidates := []string{
			"spectro.yaml",
			"config.yaml",
		}
		for _, candidate := range candidates {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration rejected: %w", err)
	}
	cfg.resolveAggregation()

	return cfg, nil
}

// applyEnvOverrides layers SPECTRO_* environment variables over the
// loaded configuration. Unparseable values are ignored rather than
// failing startup.
func (cfg *Config) applyEnvOverrides() {
	if val, ok := os.LookupEnv("SPECTRO_LOG_LEVEL"); ok {
		cfg.LogLevel = val
	}
	if val, ok := os.LookupEnv("SPECTRO_DEVICE"); ok {
		cfg.Device = val
	}
	if val, ok := os.LookupEnv("SPECTRO_FFT_SIZE"); ok {
		if iVal, err := strconv.Atoi(val); err == nil {
			cfg.FFTSize = iVal
		}
	}
	if val, ok := os.LookupEnv("SPECTRO_BARS"); ok {
		if iVal, err := strconv.Atoi(val); err == nil {
			cfg.Bars = iVal
		}
	}
	if val, ok := os.LookupEnv("SPECTRO_UDP_TARGET"); ok {
		cfg.UDPTargetAddress = val
	}
	if val, ok := os.LookupEnv("SPECTRO_UDP_INTERVAL"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			cfg.UDPSendInterval = dur
		}
	}
	if val, ok := os.LookupEnv("SPECTRO_WEBSOCKET_ADDR"); ok {
		cfg.WebSocketAddr = val
	}
}
