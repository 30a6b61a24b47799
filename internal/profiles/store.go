// Cartwright - Budget-Aware Cart Substitution Engine
// Copyright 2026 P. Telford (ptelford)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ptelford/cartwright

// Package profiles reads the per-user embedding profiles published by the
// external training job. Profiles live in a Badger keyspace so a model
// publish is a plain key write; Cartwright never creates or updates
// profiles itself outside of tests.
//
// A missing profile is the designed cold-start signal, reported as
// ErrNotFound rather than an error condition.
package profiles

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// ErrNotFound indicates the user has no published profile (cold start).
var ErrNotFound = errors.New("profile not found")

// keyPrefix namespaces profile keys within the Badger keyspace.
const keyPrefix = "profile:"

// Profile is a user's learned preference state.
type Profile struct {
	// UserID is the user identifier.
	UserID string `json:"user_id"`

	// Embedding is the learned preference vector (fixed dimension,
	// matching the catalog product embeddings).
	Embedding []float64 `json:"embedding"`

	// PriceSensitivity is the learned price-sensitivity coefficient
	// in [0, 1]. Zero when not learned.
	PriceSensitivity float64 `json:"price_sensitivity,omitempty"`
}

// Store provides read access to user profiles.
type Store interface {
	// Get returns the profile for a user, or ErrNotFound when the user
	// has no purchase history.
	Get(userID string) (*Profile, error)

	// Close releases the underlying storage.
	Close() error
}

// BadgerStore is a Badger-backed profile store.
type BadgerStore struct {
	db     *badger.DB
	logger zerolog.Logger
}

// Options configures a BadgerStore.
type Options struct {
	// Path is the Badger data directory. Ignored when InMemory is set.
	Path string

	// InMemory runs Badger without disk persistence (tests, ephemeral
	// deployments).
	InMemory bool
}

// Open opens the profile keyspace.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func Open(opts Options, logger zerolog.Logger) (*BadgerStore, error) {
	badgerOpts := badger.DefaultOptions(opts.Path).
		WithInMemory(opts.InMemory).
		WithLogger(nil)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("open profile store: %w", err)
	}

	return &BadgerStore{
		db:     db,
		logger: logger.With().Str("component", "profiles").Logger(),
	}, nil
}

// Get returns the profile for a user, or ErrNotFound when absent.
func (s *BadgerStore) Get(userID string) (*Profile, error) {
	if userID == "" {
		return nil, ErrNotFound
	}

	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + userID))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get profile %s: %w", userID, err)
	}

	var p Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode profile %s: %w", userID, err)
	}

	return &p, nil
}

// Put writes a profile. Used by the publish path of the external training
// job and by tests.
func (s *BadgerStore) Put(p *Profile) error {
	if p == nil || p.UserID == "" {
		return fmt.Errorf("profile requires a user id")
	}

	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode profile %s: %w", p.UserID, err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPrefix+p.UserID), raw)
	})
	if err != nil {
		return fmt.Errorf("put profile %s: %w", p.UserID, err)
	}

	return nil
}

// Close releases the Badger keyspace.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// Ensure BadgerStore implements the interface.
var _ Store = (*BadgerStore)(nil)
