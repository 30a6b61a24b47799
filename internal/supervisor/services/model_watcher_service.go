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

// ModelReloader reloads the ranking model artifact.
type ModelReloader interface {
	Reload() error
}

// ModelWatcherService reloads the ranking model on a schedule so a new
// artifact dropped by the training pipeline is picked up without
// waiting for request traffic to trigger the opportunistic reload.
type ModelWatcherService struct {
	reloader ModelReloader
	interval time.Duration
	logger   zerolog.Logger
	name     string
}

// NewModelWatcherService creates the model watcher.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewModelWatcherService(reloader ModelReloader, interval time.Duration, logger zerolog.Logger) *ModelWatcherService {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &ModelWatcherService{
		reloader: reloader,
		interval: interval,
		logger:   logger.With().Str("service", "model-watcher").Logger(),
		name:     "model-watcher",
	}
}

// Serve implements suture.Service. A failed reload keeps the current
// model and retries on the next tick.
func (s *ModelWatcherService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", s.interval).Msg("model watcher running")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.reloader.Reload(); err != nil {
				s.logger.Debug().Err(err).Msg("model reload skipped")
			}
		}
	}
}

// String implements fmt.Stringer for supervisor logging.
func (s *ModelWatcherService) String() string {
	return s.name
}
