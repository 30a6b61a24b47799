// Cartwright - Budget-Aware Cart Substitution Engine
// Copyright 2026 P. Telford (ptelford)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ptelford/cartwright

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/ptelford/cartwright/internal/validation"
)

// DefaultConfigPaths lists where config files are searched, in order.
// The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/cartwright/config.yaml",
	"/etc/cartwright/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// envPrefix namespaces environment variable overrides, e.g.
// CARTWRIGHT_SERVER_PORT -> server.port.
const envPrefix = "CARTWRIGHT_"

// defaultConfig returns a Config with all defaults applied. These are
// layered first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8440,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Catalog: CatalogConfig{
			Path:           "/data/catalog.json",
			ReloadInterval: 5 * time.Minute,
		},
		Profiles: ProfilesConfig{
			Path:     "/data/profiles",
			InMemory: false,
		},
		Recommend: RecommendConfig{
			CFWeight:       0.6,
			SemanticWeight: 0.4,

			TopK:          100,
			MaxPerItem:    3,
			FallbackPool:  5,
			MaxCartItems:  100,
			ScoreTimeout:  2 * time.Second,
			RerankTimeout: 50 * time.Millisecond,

			QualityMinSimilarity:  0.60,
			BalancedMinSimilarity: 0.50,
			TargetDiscount:        0.25,
			EconomyPriceBand:      0.15,
			BalancedPriceBand:     0.20,
			MinDiscount:           0, // disabled
			MaxDiscount:           0, // disabled

			CacheEnabled:    true,
			CacheTTL:        time.Minute,
			CacheMaxEntries: 4096,

			OnlyWhenOverBudget: true,
			PremiumAnchorPrice: 15.0,
		},
		Ranker: RankerConfig{
			ModelPath:        "", // reranker disabled unless configured
			ReloadInterval:   30 * time.Second,
			FailureThreshold: 5,
			BreakerTimeout:   30 * time.Second,
		},
		Intent: IntentConfig{
			Alpha:           0.3,
			InitialEMA:      0.5,
			UpperThreshold:  0.65,
			LowerThreshold:  0.35,
			Cooldown:        45 * time.Second,
			SessionTTL:      2 * time.Hour,
			JanitorInterval: 5 * time.Minute,
		},
		Security: SecurityConfig{
			RateLimitReqs:     100,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
			CORSOrigins:       []string{"*"},
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file, and
// CARTWRIGHT_* environment variables, then validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	envProvider := env.Provider(envPrefix, ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := validation.ValidateStruct(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first existing config file path, preferring
// the CONFIG_PATH override.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths lists config paths parsed as comma-separated slices
// when supplied via environment variables.
var sliceConfigPaths = []string{
	"security.cors_origins",
}

// processSliceFields converts comma-separated env strings to slices for
// known slice fields.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps CARTWRIGHT_* environment variable names to koanf
// paths. The first underscore after the prefix separates the section from
// the key:
//
//	CARTWRIGHT_SERVER_PORT                      -> server.port
//	CARTWRIGHT_RECOMMEND_ONLY_WHEN_OVER_BUDGET  -> recommend.only_when_over_budget
//	CARTWRIGHT_RANKER_MODEL_PATH                -> ranker.model_path
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
	return strings.Replace(key, "_", ".", 1)
}
