// Forkcast - Personalized Recipe Recommendation Service
// Copyright 2026 Forkcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/forkcast/forkcast

package api

import (
	"net/http"
	"time"
)

// Health states reported by /api/health.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// HandleHealth serves GET /api/health. The service is healthy when models,
// cache and the event consumer are all up, degraded when models are loaded
// but an auxiliary component is down, and unhealthy when no model can serve
// at all. Only unhealthy returns a non-200 status, so load balancers keep
// routing to a degraded instance.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	modelStatus := h.engine.Status()
	modelsLoaded := modelStatus.TwoTowerLoaded || modelStatus.ALSLoaded || modelStatus.PopularityLoaded

	cacheUp := h.engine.CachePing(r.Context()) == nil

	eventsUp := true
	eventsState := "disabled"
	if h.events != nil {
		eventsUp = h.events.Running()
		eventsState = "down"
		if eventsUp {
			eventsState = "running"
		}
	}

	status := StatusHealthy
	code := http.StatusOK
	switch {
	case !modelsLoaded:
		status = StatusUnhealthy
		code = http.StatusServiceUnavailable
	case !cacheUp || !eventsUp:
		status = StatusDegraded
	}

	cacheState := "down"
	if cacheUp {
		cacheState = "up"
	}

	payload := map[string]interface{}{
		"status":         status,
		"version":        h.version,
		"uptime_seconds": int64(time.Since(h.startTime).Seconds()),
		"models":         modelStatus,
		"components": map[string]string{
			"cache":  cacheState,
			"events": eventsState,
		},
	}

	if code != http.StatusOK {
		rw.ErrorWithDetails(code, ErrCodeServiceUnavailable, "No recommendation model is loaded", payload)
		return
	}
	rw.Success(payload)
}
