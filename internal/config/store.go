package config

import (
	"errors"
	"sync"
)

// ErrNoCurrentConfig is returned by Current before a config has been saved
// for the session or after Clear.
var ErrNoCurrentConfig = errors.New("no school configuration for this session")

// Store holds the active session's resolved school configuration. It is
// scoped to the session: saved once at login, re-saved on branch switch, and
// cleared on logout.
type Store struct {
	mu      sync.RWMutex
	current *SchoolConfig
}

// NewStore returns an empty session config store.
func NewStore() *Store {
	return &Store{}
}

// SaveCurrent records cfg as the session's active school configuration.
func (s *Store) SaveCurrent(cfg *SchoolConfig) error {
	if cfg == nil {
		return errors.New("cannot save nil school configuration")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *cfg
	s.current = &c
	return nil
}

// Current returns the session's active school configuration.
func (s *Store) Current() (*SchoolConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil, ErrNoCurrentConfig
	}
	c := *s.current
	return &c, nil
}

// Clear drops the session's configuration, typically on logout.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
}
