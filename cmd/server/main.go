// Cartwright - Budget-Aware Cart Substitution Engine
// Copyright 2026 P. Telford (ptelford)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ptelford/cartwright

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/ptelford/cartwright/internal/api"
	"github.com/ptelford/cartwright/internal/catalog"
	"github.com/ptelford/cartwright/internal/config"
	"github.com/ptelford/cartwright/internal/logging"
	"github.com/ptelford/cartwright/internal/profiles"
	"github.com/ptelford/cartwright/internal/supervisor"
	"github.com/ptelford/cartwright/internal/supervisor/services"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logger := logging.Logger()

	logging.Info().
		Str("version", version).
		Str("catalog_path", cfg.Catalog.Path).
		Str("model_path", cfg.Ranker.ModelPath).
		Msg("Starting Cartwright")

	catalogStore, err := catalog.OpenStore(cfg.Catalog.Path, logger)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load catalog")
	}

	profileStore, err := profiles.Open(profiles.Options{
		Path:     cfg.Profiles.Path,
		InMemory: cfg.Profiles.InMemory,
	}, logger)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open profile store")
	}
	defer func() {
		if err := profileStore.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing profile store")
		}
	}()

	engine, tracker, reranker, err := initRecommendEngine(cfg, catalogStore, profileStore, logger)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize recommendation engine")
	}

	handler := api.NewHandler(engine, tracker, catalogStore, version)
	if reranker != nil {
		handler.SetRerankerStatus(reranker)
	}

	mw := api.NewMiddleware(&api.MiddlewareConfig{
		CORSAllowedOrigins: cfg.Security.CORSOrigins,
		RateLimitRequests:  cfg.Security.RateLimitReqs,
		RateLimitWindow:    cfg.Security.RateLimitWindow,
		RateLimitDisabled:  cfg.Security.RateLimitDisabled,
	})
	router := api.NewRouter(handler, mw)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	tree.AddMaintenanceService(services.NewJanitorService(tracker, cfg.Intent.JanitorInterval, logger))
	if cfg.Catalog.ReloadInterval > 0 {
		tree.AddMaintenanceService(services.NewCatalogReloadService(catalogStore, cfg.Catalog.ReloadInterval, logger))
	}
	if reranker != nil && cfg.Ranker.ReloadInterval > 0 {
		tree.AddMaintenanceService(services.NewModelWatcherService(reranker, cfg.Ranker.ReloadInterval, logger))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info().Str("addr", server.Addr).Msg("Server listening")

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Fatal().Err(err).Msg("Supervisor tree failed")
	}

	logging.Info().Msg("Shutdown complete")
}
