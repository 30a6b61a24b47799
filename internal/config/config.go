// Cartwright - Budget-Aware Cart Substitution Engine
// Copyright 2026 P. Telford (ptelford)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ptelford/cartwright

// Package config loads application configuration with layered sources:
// built-in defaults, an optional YAML file, then environment variables.
// Precedence is ENV > file > defaults. Config is immutable after Load and
// safe for concurrent reads.
package config

import (
	"fmt"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
	Catalog   CatalogConfig   `koanf:"catalog"`
	Profiles  ProfilesConfig  `koanf:"profiles"`
	Recommend RecommendConfig `koanf:"recommend"`
	Ranker    RankerConfig    `koanf:"ranker"`
	Intent    IntentConfig    `koanf:"intent"`
	Security  SecurityConfig  `koanf:"security"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"min=1s"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"min=1s"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// CatalogConfig holds product catalog settings.
type CatalogConfig struct {
	// Path is the catalog JSON file. Required.
	Path string `koanf:"path" validate:"required"`

	// ReloadInterval bounds how often the catalog file mtime is
	// re-checked for hot reload. Zero disables reload.
	ReloadInterval time.Duration `koanf:"reload_interval"`
}

// ProfilesConfig holds the user profile store settings.
type ProfilesConfig struct {
	// Path is the Badger database directory. Ignored when InMemory.
	Path string `koanf:"path"`

	// InMemory runs the profile store without persistence. Intended for
	// tests and demos.
	InMemory bool `koanf:"in_memory"`
}

// RecommendConfig holds recommendation pipeline settings. Field meanings
// match the engine configuration they map onto.
type RecommendConfig struct {
	CFWeight       float64 `koanf:"cf_weight" validate:"min=0,max=1"`
	SemanticWeight float64 `koanf:"semantic_weight" validate:"min=0,max=1"`

	TopK          int           `koanf:"top_k" validate:"min=1"`
	MaxPerItem    int           `koanf:"max_per_item" validate:"min=1"`
	FallbackPool  int           `koanf:"fallback_pool" validate:"min=1"`
	MaxCartItems  int           `koanf:"max_cart_items" validate:"min=1"`
	ScoreTimeout  time.Duration `koanf:"score_timeout" validate:"min=1ms"`
	RerankTimeout time.Duration `koanf:"rerank_timeout" validate:"min=1ms"`

	QualityMinSimilarity  float64 `koanf:"quality_min_similarity" validate:"min=0,max=1"`
	BalancedMinSimilarity float64 `koanf:"balanced_min_similarity" validate:"min=0,max=1"`
	TargetDiscount        float64 `koanf:"target_discount" validate:"min=0,max=1"`
	EconomyPriceBand      float64 `koanf:"economy_price_band" validate:"min=0,max=1"`
	BalancedPriceBand     float64 `koanf:"balanced_price_band" validate:"min=0,max=1"`
	MinDiscount           float64 `koanf:"min_discount" validate:"min=0"`
	MaxDiscount           float64 `koanf:"max_discount" validate:"min=0"`

	CacheEnabled    bool          `koanf:"cache_enabled"`
	CacheTTL        time.Duration `koanf:"cache_ttl"`
	CacheMaxEntries int           `koanf:"cache_max_entries"`

	OnlyWhenOverBudget bool    `koanf:"only_when_over_budget"`
	PremiumAnchorPrice float64 `koanf:"premium_anchor_price" validate:"min=0"`
}

// RankerConfig holds learned re-ranker settings.
type RankerConfig struct {
	// ModelPath is the GBDT model artifact. Empty disables the stage.
	ModelPath string `koanf:"model_path"`

	ReloadInterval   time.Duration `koanf:"reload_interval"`
	FailureThreshold uint32        `koanf:"failure_threshold" validate:"min=1"`
	BreakerTimeout   time.Duration `koanf:"breaker_timeout" validate:"min=1s"`
}

// IntentConfig holds session intent tracking settings.
type IntentConfig struct {
	Alpha          float64       `koanf:"alpha" validate:"gt=0,lte=1"`
	InitialEMA     float64       `koanf:"initial_ema" validate:"min=0,max=1"`
	UpperThreshold float64       `koanf:"upper_threshold" validate:"min=0,max=1"`
	LowerThreshold float64       `koanf:"lower_threshold" validate:"min=0,max=1"`
	Cooldown       time.Duration `koanf:"cooldown"`
	SessionTTL     time.Duration `koanf:"session_ttl" validate:"min=1m"`

	// JanitorInterval is how often expired sessions are pruned.
	JanitorInterval time.Duration `koanf:"janitor_interval" validate:"min=1s"`
}

// SecurityConfig holds API protection settings.
type SecurityConfig struct {
	RateLimitReqs     int           `koanf:"rate_limit_reqs" validate:"min=1"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window" validate:"min=1s"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
}

// Validate checks cross-field constraints the struct tags cannot express.
func (c *Config) Validate() error {
	if sum := c.Recommend.CFWeight + c.Recommend.SemanticWeight; sum <= 0 {
		return fmt.Errorf("recommend: blend weights must sum to a positive value, got %.3f", sum)
	}
	if c.Intent.LowerThreshold >= c.Intent.UpperThreshold {
		return fmt.Errorf("intent: lower threshold %.2f must be below upper threshold %.2f",
			c.Intent.LowerThreshold, c.Intent.UpperThreshold)
	}
	if c.Recommend.MinDiscount > 0 && c.Recommend.MaxDiscount > 0 &&
		c.Recommend.MinDiscount >= c.Recommend.MaxDiscount {
		return fmt.Errorf("recommend: min discount %.2f must be below max discount %.2f",
			c.Recommend.MinDiscount, c.Recommend.MaxDiscount)
	}
	return nil
}
