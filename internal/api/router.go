// Cartwright - Budget-Aware Cart Substitution Engine
// Copyright 2026 P. Telford (ptelford)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ptelford/cartwright

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router wires handlers and middleware into the HTTP mux.
type Router struct {
	handler    *Handler
	middleware *Middleware
}

// NewRouter creates a router.
func NewRouter(handler *Handler, mw *Middleware) *Router {
	return &Router{
		handler:    handler,
		middleware: mw,
	}
}

// Setup builds the chi mux with the full middleware stack.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to all routes in order.
	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.middleware.CORS())
	r.Use(RequestLogging())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.middleware.RateLimit())

		r.With(RequestMetrics("recommendations")).
			Post("/recommendations", router.handler.Recommendations)

		r.Route("/sessions/{id}", func(r chi.Router) {
			r.With(RequestMetrics("session_events")).
				Post("/events", router.handler.SessionEvents)
			r.With(RequestMetrics("session_intent")).
				Get("/intent", router.handler.SessionIntent)
		})

		r.With(RequestMetrics("health")).
			Get("/health", router.handler.Health)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
