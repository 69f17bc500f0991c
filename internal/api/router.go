// Pulse - External Activity Sync and Adaptive Polling Engine
// Copyright 2026 Remco Stoeten (remcostoeten)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/remcostoeten/pulse

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/remcostoeten/pulse/internal/config"
)

// Router assembles the HTTP surface from the handlers and the security
// configuration.
type Router struct {
	handler *Handler
	cfg     *config.Config
}

// NewRouter creates the router.
func NewRouter(handler *Handler, cfg *config.Config) *Router {
	return &Router{handler: handler, cfg: cfg}
}

// Setup builds the full route tree.
func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   rt.cfg.Security.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Cron-Secret"},
		AllowCredentials: false,
		MaxAge:           86400,
	}))
	r.Use(PrometheusMetrics)

	reqs := rt.cfg.Security.RateLimitReqs
	if reqs <= 0 {
		reqs = 100
	}
	window := rt.cfg.Security.RateLimitWindow
	if window <= 0 {
		window = time.Minute
	}

	// Health probes get a permissive limit so monitors can poll freely.
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(httprate.LimitByIP(1000, time.Minute))
		r.Get("/", rt.handler.Health)
		r.Get("/live", rt.handler.HealthLive)
		r.Get("/ready", rt.handler.HealthReady)
	})

	// Login gets the strictest limit, keyed by IP, against brute force.
	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(httprate.LimitByIP(5, 5*time.Minute))
		r.Post("/login", rt.handler.Login)
	})

	// Read endpoints share the configured general limit.
	r.Route("/api/v1/activity", func(r chi.Router) {
		r.Use(httprate.LimitByIP(reqs, window))
		r.Get("/github", rt.handler.GitHubActivity)
		r.Get("/spotify/current", rt.handler.SpotifyCurrent)
		r.Get("/spotify/recent", rt.handler.SpotifyRecent)
		r.Get("/combined", rt.handler.CombinedActivity)
	})
	r.Route("/api/v1/github", func(r chi.Router) {
		r.Use(httprate.LimitByIP(reqs, window))
		r.Get("/commits", rt.handler.CommitLookup)
		r.Get("/contributions", rt.handler.Contributions)
	})

	r.Route("/api/v1/sync", func(r chi.Router) {
		r.Use(httprate.LimitByIP(reqs, window))
		r.Post("/", rt.handler.TriggerSync)
		r.Get("/status", rt.handler.SyncStatus)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
