// Forkcast - Personalized Recipe Recommendation Service
// Copyright 2026 Forkcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/forkcast/forkcast

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/forkcast/forkcast/internal/config"
	"github.com/forkcast/forkcast/internal/middleware"
)

// NewRouter builds the chi router with all routes and middleware wired.
func NewRouter(h *Handlers, cfg config.APIConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestLogger)
	r.Use(middleware.Prometheus)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health and metrics stay outside the rate limit so probes never 429.
	r.Get("/api/health", h.HandleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		if cfg.RateLimitReqs > 0 {
			r.Use(httprate.LimitByIP(cfg.RateLimitReqs, cfg.RateLimitWindow))
		}

		r.Route("/api/recommendations", func(r chi.Router) {
			r.Post("/recipes", h.HandleRecommendations)
			r.Post("/batch", h.HandleBatchRecommendations)
			r.Post("/cold-start", h.HandleColdStart)
			r.Get("/recipes/{recipeID}/similar", h.HandleSimilarRecipes)
			r.Get("/users/{userID}/similar", h.HandleSimilarUsers)
		})

		r.Route("/api/sync", func(r chi.Router) {
			r.Post("/users", h.HandleSyncUsers)
			r.Post("/recipes", h.HandleSyncRecipes)
			r.Post("/interactions", h.HandleSyncInteractions)
		})
	})

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		NewResponseWriter(w, req).NotFound("Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		NewResponseWriter(w, req).Error(http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "Method not allowed")
	})

	return r
}
