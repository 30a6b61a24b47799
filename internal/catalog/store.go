// Cartwright - Budget-Aware Cart Substitution Engine
// Copyright 2026 P. Telford (ptelford)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ptelford/cartwright

package catalog

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Store serves the current catalog snapshot and swaps it atomically on
// reload. Readers always see a complete, immutable snapshot.
type Store struct {
	path   string
	logger zerolog.Logger

	current atomic.Pointer[Snapshot]

	mu    sync.Mutex
	mtime time.Time
}

// OpenStore loads the catalog from path and returns a store serving it.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func OpenStore(path string, logger zerolog.Logger) (*Store, error) {
	s := &Store{
		path:   path,
		logger: logger.With().Str("component", "catalog").Logger(),
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat catalog: %w", err)
	}

	snap, err := LoadFile(path)
	if err != nil {
		return nil, err
	}

	s.current.Store(snap)
	s.mtime = info.ModTime()
	s.logger.Info().
		Str("version", snap.Version()).
		Int("products", snap.Len()).
		Msg("catalog loaded")
	return s, nil
}

// NewStoreFromSnapshot returns a store serving a fixed snapshot. Used in
// tests.
func NewStoreFromSnapshot(snap *Snapshot) *Store {
	s := &Store{logger: zerolog.Nop()}
	s.current.Store(snap)
	return s
}

// Snapshot returns the current catalog snapshot.
func (s *Store) Snapshot() *Snapshot {
	return s.current.Load()
}

// Reload re-reads the catalog file when its mtime advanced. It returns
// true when a new snapshot was installed. A load failure keeps the
// current snapshot.
func (s *Store) Reload() (bool, error) {
	if s.path == "" {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := os.Stat(s.path)
	if err != nil {
		return false, fmt.Errorf("stat catalog: %w", err)
	}
	if !info.ModTime().After(s.mtime) {
		return false, nil
	}

	snap, err := LoadFile(s.path)
	if err != nil {
		return false, fmt.Errorf("reload catalog: %w", err)
	}

	s.current.Store(snap)
	s.mtime = info.ModTime()
	s.logger.Info().
		Str("version", snap.Version()).
		Int("products", snap.Len()).
		Msg("catalog reloaded")
	return true, nil
}
