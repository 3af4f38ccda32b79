// Forkcast - Personalized Recipe Recommendation Service
// Copyright 2026 Forkcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/forkcast/forkcast

package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/forkcast/forkcast/internal/recsys"
)

// Recommender is the engine contract consumed by the HTTP handlers. Tests
// substitute a fake.
type Recommender interface {
	GetRecommendations(ctx context.Context, req recsys.Request) (*recsys.Result, error)
	GetBatchRecommendations(ctx context.Context, userIDs []int, topK int) []recsys.BatchEntry
	GetColdStartRecommendations(ctx context.Context, prefs *recsys.Preferences, topK int) (*recsys.Result, error)
	GetSimilarUsers(ctx context.Context, userID, topK int) ([]recsys.SimilarUser, error)
	GetSimilarRecipes(ctx context.Context, recipeID, topK int) ([]recsys.SimilarRecipe, error)
	InvalidateUser(ctx context.Context, userID int) (int, error)
	InvalidateRecipe(ctx context.Context, recipeID int) (int, error)
	Config() recsys.Config
	Status() recsys.Status
	CachePing(ctx context.Context) error
}

// EventSource reports liveness of the interaction event consumer.
type EventSource interface {
	Running() bool
}

// Handlers holds the dependencies shared by all route handlers.
type Handlers struct {
	engine    Recommender
	events    EventSource
	startTime time.Time
	version   string
}

// NewHandlers creates the handler set. events may be nil when the event
// consumer is disabled.
func NewHandlers(engine Recommender, events EventSource, version string) *Handlers {
	return &Handlers{
		engine:    engine,
		events:    events,
		startTime: time.Now(),
		version:   version,
	}
}

// urlParamInt extracts a positive integer URL parameter. It writes the error
// response itself and reports success.
func urlParamInt(rw *ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := chi.URLParam(r, name)
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		rw.BadRequest("Parameter " + name + " must be a positive integer")
		return 0, false
	}
	return v, true
}

// queryTopK parses the optional top_k query parameter, falling back to the
// engine default and clamping to the configured maximum.
func (h *Handlers) queryTopK(rw *ResponseWriter, r *http.Request) (int, bool) {
	cfg := h.engine.Config()
	raw := r.URL.Query().Get("top_k")
	if raw == "" {
		return cfg.DefaultTopK, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 || v > cfg.MaxTopK {
		rw.BadRequest("Query parameter top_k must be between 1 and " + strconv.Itoa(cfg.MaxTopK))
		return 0, false
	}
	return v, true
}
