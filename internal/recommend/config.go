// Cartwright - Budget-Aware Cart Substitution Engine
// Copyright 2026 P. Telford (ptelford)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ptelford/cartwright

package recommend

import (
	"fmt"
	"time"
)

// Config contains all configuration for the recommendation engine.
type Config struct {
	// Weights defines the convex combination of the two scorers.
	Weights BlendWeights `json:"weights"`

	// Limits contains operational limits.
	Limits LimitsConfig `json:"limits"`

	// Guardrails contains the per-mode admissibility constraints.
	Guardrails GuardrailConfig `json:"guardrails"`

	// Cache contains response caching parameters.
	Cache CacheConfig `json:"cache"`

	// OnlyWhenOverBudget suppresses suggestions while the cart total is
	// within budget. Default: true.
	OnlyWhenOverBudget bool `json:"only_when_over_budget"`

	// PremiumAnchorPrice is the unit price above which a cart item counts
	// as a premium anchor for ranking features. Default: 15.0.
	PremiumAnchorPrice float64 `json:"premium_anchor_price"`
}

// BlendWeights defines the relative contribution of each scorer.
// Weights are normalized at runtime, so they don't need to sum to 1.0.
type BlendWeights struct {
	// CF is the weight for the collaborative-filtering scorer.
	CF float64 `json:"cf"`

	// Semantic is the weight for the semantic-similarity scorer.
	Semantic float64 `json:"semantic"`
}

// Normalize returns a copy with weights normalized to sum to 1.0.
func (w BlendWeights) Normalize() BlendWeights {
	sum := w.CF + w.Semantic
	if sum == 0 {
		return BlendWeights{CF: 0.5, Semantic: 0.5}
	}
	return BlendWeights{CF: w.CF / sum, Semantic: w.Semantic / sum}
}

// LimitsConfig contains operational limits.
type LimitsConfig struct {
	// TopK is how many candidates each scorer returns. Default: 100.
	TopK int `json:"top_k"`

	// MaxPerItem is the maximum suggestions per cart item. Default: 3.
	MaxPerItem int `json:"max_per_item"`

	// FallbackPool is how many top blended candidates Tier 2 considers.
	// Default: 5.
	FallbackPool int `json:"fallback_pool"`

	// MaxCartItems bounds the cart size accepted per request.
	// Default: 100.
	MaxCartItems int `json:"max_cart_items"`

	// ScoreTimeout is the maximum time for one item's scorer pass.
	// Default: 2s.
	ScoreTimeout time.Duration `json:"score_timeout"`

	// RerankTimeout is the maximum time for one item's re-ranking pass.
	// Exceeding it falls back to the blended order. Default: 50ms.
	RerankTimeout time.Duration `json:"rerank_timeout"`
}

// GuardrailConfig contains the per-mode admissibility constraints.
type GuardrailConfig struct {
	// QualityMinSimilarity is the minimum similarity to the original
	// item in quality mode. Default: 0.60.
	QualityMinSimilarity float64 `json:"quality_min_similarity"`

	// BalancedMinSimilarity is the minimum similarity in balanced mode.
	// Default: 0.50.
	BalancedMinSimilarity float64 `json:"balanced_min_similarity"`

	// TargetDiscount is the relative discount economy mode aims for.
	// Default: 0.25.
	TargetDiscount float64 `json:"target_discount"`

	// EconomyPriceBand is the tolerated relative deviation around the
	// economy target price. Default: 0.15.
	EconomyPriceBand float64 `json:"economy_price_band"`

	// BalancedPriceBand is the tolerated relative deviation around the
	// original price in balanced mode. Default: 0.20.
	BalancedPriceBand float64 `json:"balanced_price_band"`

	// MinDiscount rejects suggestions whose relative saving is below
	// this value. Zero disables the check.
	MinDiscount float64 `json:"min_discount"`

	// MaxDiscount rejects suggestions whose relative saving exceeds
	// this value (implausible discounts). Zero disables the check.
	MaxDiscount float64 `json:"max_discount"`
}

// CacheConfig contains response caching parameters.
type CacheConfig struct {
	// Enabled controls whether response caching is active.
	// Default: true.
	Enabled bool `json:"enabled"`

	// TTL is the cache entry time-to-live. Default: 1m.
	TTL time.Duration `json:"ttl"`

	// MaxEntries is the maximum number of cached responses.
	// Default: 4096.
	MaxEntries int `json:"max_entries"`
}

// DefaultConfig returns a Config with production defaults.
func DefaultConfig() *Config {
	return &Config{
		Weights: BlendWeights{
			CF:       0.6,
			Semantic: 0.4,
		},
		Limits: LimitsConfig{
			TopK:          100,
			MaxPerItem:    3,
			FallbackPool:  5,
			MaxCartItems:  100,
			ScoreTimeout:  2 * time.Second,
			RerankTimeout: 50 * time.Millisecond,
		},
		Guardrails: GuardrailConfig{
			QualityMinSimilarity:  0.60,
			BalancedMinSimilarity: 0.50,
			TargetDiscount:        0.25,
			EconomyPriceBand:      0.15,
			BalancedPriceBand:     0.20,
			MinDiscount:           0,
			MaxDiscount:           0,
		},
		Cache: CacheConfig{
			Enabled:    true,
			TTL:        1 * time.Minute,
			MaxEntries: 4096,
		},
		OnlyWhenOverBudget: true,
		PremiumAnchorPrice: 15.0,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Weights.CF < 0 || c.Weights.Semantic < 0 {
		return fmt.Errorf("weights must be non-negative, got cf=%f semantic=%f", c.Weights.CF, c.Weights.Semantic)
	}
	if c.Weights.CF+c.Weights.Semantic == 0 {
		return fmt.Errorf("at least one scorer weight must be positive")
	}

	if c.Limits.TopK < 1 {
		return fmt.Errorf("limits.top_k must be positive, got %d", c.Limits.TopK)
	}
	if c.Limits.MaxPerItem < 1 {
		return fmt.Errorf("limits.max_per_item must be positive, got %d", c.Limits.MaxPerItem)
	}
	if c.Limits.FallbackPool < c.Limits.MaxPerItem {
		return fmt.Errorf("limits.fallback_pool must be >= limits.max_per_item, got %d < %d",
			c.Limits.FallbackPool, c.Limits.MaxPerItem)
	}
	if c.Limits.ScoreTimeout <= 0 {
		return fmt.Errorf("limits.score_timeout must be positive, got %v", c.Limits.ScoreTimeout)
	}
	if c.Limits.RerankTimeout <= 0 {
		return fmt.Errorf("limits.rerank_timeout must be positive, got %v", c.Limits.RerankTimeout)
	}

	g := c.Guardrails
	for name, v := range map[string]float64{
		"quality_min_similarity":  g.QualityMinSimilarity,
		"balanced_min_similarity": g.BalancedMinSimilarity,
		"target_discount":         g.TargetDiscount,
		"economy_price_band":      g.EconomyPriceBand,
		"balanced_price_band":     g.BalancedPriceBand,
		"min_discount":            g.MinDiscount,
		"max_discount":            g.MaxDiscount,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("guardrails.%s must be in [0, 1], got %f", name, v)
		}
	}
	if g.MaxDiscount > 0 && g.MinDiscount > g.MaxDiscount {
		return fmt.Errorf("guardrails.min_discount must be <= guardrails.max_discount")
	}

	if c.Cache.Enabled {
		if c.Cache.TTL <= 0 {
			return fmt.Errorf("cache.ttl must be positive, got %v", c.Cache.TTL)
		}
		if c.Cache.MaxEntries < 1 {
			return fmt.Errorf("cache.max_entries must be positive, got %d", c.Cache.MaxEntries)
		}
	}

	return nil
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	// Direct field copy - all nested structs contain only value types
	out := *c
	return &out
}
