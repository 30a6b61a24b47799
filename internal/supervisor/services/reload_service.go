// Cartwright - Budget-Aware Cart Substitution Engine
// Copyright 2026 P. Telford (ptelford)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ptelford/cartwright

package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// CatalogReloader re-reads the catalog artifact when it changed on disk.
type CatalogReloader interface {
	Reload() (bool, error)
}

// CatalogReloadService polls the catalog file and hot-swaps the snapshot
// when a new catalog generation lands.
type CatalogReloadService struct {
	reloader CatalogReloader
	interval time.Duration
	logger   zerolog.Logger
	name     string
}

// NewCatalogReloadService creates the catalog reload watcher.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewCatalogReloadService(reloader CatalogReloader, interval time.Duration, logger zerolog.Logger) *CatalogReloadService {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &CatalogReloadService{
		reloader: reloader,
		interval: interval,
		logger:   logger.With().Str("service", "catalog-reload").Logger(),
		name:     "catalog-reload",
	}
}

// Serve implements suture.Service. Reload failures are logged and
// retried on the next tick; the previous snapshot keeps serving.
func (s *CatalogReloadService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", s.interval).Msg("catalog reload watcher running")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.reloader.Reload(); err != nil {
				s.logger.Warn().Err(err).Msg("catalog reload failed")
			}
		}
	}
}

// String implements fmt.Stringer for supervisor logging.
func (s *CatalogReloadService) String() string {
	return s.name
}
