package config

import (
	"fmt"
	"sync"

	"github.com/kroegman/neartrip/internal/logger"
)

// Store holds the current configuration snapshot and replaces it
// atomically on reload. Readers always observe a complete, validated
// snapshot; a failed reload leaves the previous one in place.
type Store struct {
	path string
	log  logger.Logger

	mu       sync.RWMutex
	current  *Config
	watchers []func(*Config)
}

// NewStore loads the config file at path, creating it with defaults when
// absent, and returns a Store publishing that first snapshot.
func NewStore(path string, log logger.Logger) (*Store, error) {
	cfg, err := LoadOrCreate(path)
	if err != nil {
		return nil, err
	}
	return &Store{path: path, log: log, current: cfg}, nil
}

// Path returns the config file path the store reads and writes.
func (s *Store) Path() string { return s.path }

// SetLogger swaps the store's logger. The store is created before the
// application logger exists, because the log level comes from the
// configuration it loads.
func (s *Store) SetLogger(log logger.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = log
}

// Get returns the current snapshot. The returned value is shared and
// must be treated as read-only; use Clone before deriving changes.
func (s *Store) Get() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Reload re-reads the config file. On parse or validation failure the
// previous snapshot is retained and the error returned.
func (s *Store) Reload() error {
	cfg, err := Load(s.path)
	if err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	s.publish(cfg)
	s.logger().Info("configuration reloaded",
		logger.String("path", s.path),
		logger.Int("stations", len(cfg.Stations)))
	return nil
}

// Replace validates cfg, persists it to the config file, and publishes
// it as the current snapshot. Used by the admin surface.
func (s *Store) Replace(cfg *Config) error {
	next := cfg.Clone()
	if err := next.validate(); err != nil {
		return fmt.Errorf("replace: invalid configuration: %w", err)
	}
	if err := Write(s.path, next); err != nil {
		return fmt.Errorf("replace: %w", err)
	}
	s.publish(next)
	s.logger().Info("configuration replaced",
		logger.Int("stations", len(next.Stations)))
	return nil
}

func (s *Store) logger() logger.Logger {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.log
}

// Watch registers fn to be called with every snapshot published after a
// successful Reload or Replace.
func (s *Store) Watch(fn func(*Config)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watchers = append(s.watchers, fn)
}

func (s *Store) publish(cfg *Config) {
	s.mu.Lock()
	s.current = cfg
	watchers := make([]func(*Config), len(s.watchers))
	copy(watchers, s.watchers)
	s.mu.Unlock()

	for _, fn := range watchers {
		fn(cfg)
	}
}
