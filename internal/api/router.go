// Cowatch - Distributed Room Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cowatch

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/cowatch/internal/middleware"
)

// RouterConfig configures NewRouter.
type RouterConfig struct {
	CORSOrigins []string
	// UpgradeRateLimit is WebSocket upgrades per IP per minute; 0 disables it.
	UpgradeRateLimit int
	// HealthRateLimit is health requests per IP per minute; 0 disables it.
	HealthRateLimit int
}

// DefaultRouterConfig returns permissive defaults for development.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		CORSOrigins:      []string{"*"},
		UpgradeRateLimit: 60,
		HealthRateLimit:  1000,
	}
}

// NewRouter builds the HTTP surface:
//
//	GET /ws/{roomID}      WebSocket gateway
//	GET /healthz          liveness
//	GET /readyz           readiness with cluster mode
//	GET /api/v1/status    cluster and connection report
//	GET /metrics          Prometheus
func NewRouter(h *Handler, ws http.Handler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         86400,
	}))

	r.Group(func(r chi.Router) {
		r.Use(limitByIP(cfg.HealthRateLimit))
		r.Get("/healthz", h.HealthLive)
		r.Get("/readyz", h.HealthReady)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.PrometheusMetrics)

		r.With(limitByIP(cfg.UpgradeRateLimit)).Method(http.MethodGet, "/ws/{roomID}", ws)
		r.Get("/api/v1/status", h.Status)
	})

	r.Handle("/metrics", promhttp.Handler())

	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)
	return r
}

func limitByIP(perMinute int) func(http.Handler) http.Handler {
	if perMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.LimitByIP(perMinute, time.Minute)
}
