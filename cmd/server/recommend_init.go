// Cartwright - Budget-Aware Cart Substitution Engine
// Copyright 2026 P. Telford (ptelford)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ptelford/cartwright

package main

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ptelford/cartwright/internal/catalog"
	"github.com/ptelford/cartwright/internal/config"
	"github.com/ptelford/cartwright/internal/profiles"
	"github.com/ptelford/cartwright/internal/recommend"
	"github.com/ptelford/cartwright/internal/recommend/intent"
	"github.com/ptelford/cartwright/internal/recommend/ranking"
)

// engineConfig maps the application config onto the engine config.
func engineConfig(cfg *config.RecommendConfig) *recommend.Config {
	return &recommend.Config{
		Weights: recommend.BlendWeights{
			CF:       cfg.CFWeight,
			Semantic: cfg.SemanticWeight,
		},
		Limits: recommend.LimitsConfig{
			TopK:          cfg.TopK,
			MaxPerItem:    cfg.MaxPerItem,
			FallbackPool:  cfg.FallbackPool,
			MaxCartItems:  cfg.MaxCartItems,
			ScoreTimeout:  cfg.ScoreTimeout,
			RerankTimeout: cfg.RerankTimeout,
		},
		Guardrails: recommend.GuardrailConfig{
			QualityMinSimilarity:  cfg.QualityMinSimilarity,
			BalancedMinSimilarity: cfg.BalancedMinSimilarity,
			TargetDiscount:        cfg.TargetDiscount,
			EconomyPriceBand:      cfg.EconomyPriceBand,
			BalancedPriceBand:     cfg.BalancedPriceBand,
			MinDiscount:           cfg.MinDiscount,
			MaxDiscount:           cfg.MaxDiscount,
		},
		Cache: recommend.CacheConfig{
			Enabled:    cfg.CacheEnabled,
			TTL:        cfg.CacheTTL,
			MaxEntries: cfg.CacheMaxEntries,
		},
		OnlyWhenOverBudget: cfg.OnlyWhenOverBudget,
		PremiumAnchorPrice: cfg.PremiumAnchorPrice,
	}
}

// initRecommendEngine assembles the recommendation pipeline: the two
// candidate scorers, the intent tracker, and the optional learned
// re-ranker.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func initRecommendEngine(cfg *config.Config, catalogStore *catalog.Store, profileStore profiles.Store, logger zerolog.Logger) (*recommend.Engine, *intent.Tracker, *ranking.Reranker, error) {
	engine, err := recommend.NewEngine(engineConfig(&cfg.Recommend), logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create engine: %w", err)
	}

	engine.SetSnapshotProvider(catalogStore)
	engine.SetProfileStore(profileStore)
	engine.SetScorers(
		recommend.NewCFScorer(profileStore, catalogStore, cfg.Recommend.TopK),
		recommend.NewSemanticScorer(catalogStore, cfg.Recommend.TopK),
	)

	tracker := intent.NewTracker(intent.Config{
		Alpha:          cfg.Intent.Alpha,
		InitialEMA:     cfg.Intent.InitialEMA,
		UpperThreshold: cfg.Intent.UpperThreshold,
		LowerThreshold: cfg.Intent.LowerThreshold,
		Cooldown:       cfg.Intent.Cooldown,
		SessionTTL:     cfg.Intent.SessionTTL,
	}, logger)
	engine.SetIntentTracker(tracker)

	var reranker *ranking.Reranker
	if cfg.Ranker.ModelPath != "" {
		reranker = ranking.NewReranker(ranking.Config{
			ModelPath:        cfg.Ranker.ModelPath,
			ReloadInterval:   cfg.Ranker.ReloadInterval,
			FailureThreshold: cfg.Ranker.FailureThreshold,
			BreakerTimeout:   cfg.Ranker.BreakerTimeout,
		}, catalogStore, logger)
		engine.SetReranker(reranker)
	}

	return engine, tracker, reranker, nil
}
