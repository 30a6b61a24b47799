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

// SessionPruner removes expired intent sessions.
type SessionPruner interface {
	Prune() int
}

// JanitorService periodically prunes expired intent sessions so the
// tracker's memory stays bounded by active traffic.
type JanitorService struct {
	pruner   SessionPruner
	interval time.Duration
	logger   zerolog.Logger
	name     string
}

// NewJanitorService creates the session janitor.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewJanitorService(pruner SessionPruner, interval time.Duration, logger zerolog.Logger) *JanitorService {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &JanitorService{
		pruner:   pruner,
		interval: interval,
		logger:   logger.With().Str("service", "janitor").Logger(),
		name:     "session-janitor",
	}
}

// Serve implements suture.Service.
func (s *JanitorService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", s.interval).Msg("session janitor running")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if pruned := s.pruner.Prune(); pruned > 0 {
				s.logger.Debug().Int("pruned", pruned).Msg("expired sessions removed")
			}
		}
	}
}

// String implements fmt.Stringer for supervisor logging.
func (s *JanitorService) String() string {
	return s.name
}
