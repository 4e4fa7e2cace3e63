package config

import "sync/atomic"

// Store publishes configuration to the pipeline as an atomically-swapped
// immutable snapshot. Writers (the settings collaborator) swap a whole
// new Config in; readers load the pointer once per processing cycle and
// never observe a partially-applied update.
type Store struct {
	current atomic.Pointer[Config]
}

// NewStore creates a Store seeded with cfg. The seed is validated; an
// invalid seed fails construction rather than producing a store that
// readers could load a bad config from.
func NewStore(cfg *Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.resolveAggregation()
	s := &Store{}
	snap := *cfg
	s.current.Store(&snap)
	return s, nil
}

// Snapshot returns the current config. The returned pointer is shared
// and must be treated as read-only; it stays coherent even if Update
// runs concurrently.
func (s *Store) Snapshot() *Config {
	return s.current.Load()
}

// Update validates cfg and, if it passes, swaps it in wholesale. On
// validation failure the previous config remains active and the error
// wraps ErrInvalidConfig.
func (s *Store) Update(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	cfg.resolveAggregation()
	s.current.Store(&cfg)
	return nil
}
