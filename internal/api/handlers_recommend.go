// Forkcast - Personalized Recipe Recommendation Service
// Copyright 2026 Forkcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/forkcast/forkcast

package api

import (
	"fmt"
	"net/http"

	"github.com/forkcast/forkcast/internal/recsys"
)

// HandleRecommendations serves POST /api/recommendations/recipes.
func (h *Handlers) HandleRecommendations(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req RecommendationRequest
	if !decodeAndValidate(rw, r, &req) {
		return
	}

	cfg := h.engine.Config()
	engineReq := recsys.Request{
		UserID:          req.UserID,
		TopK:            req.TopK,
		ExcludeIDs:      req.ExcludeIDs,
		Filters:         req.Filters,
		ApplyDiversity:  true,
		DiversityWeight: cfg.DiversityWeight,
	}
	if req.ApplyDiversity != nil {
		engineReq.ApplyDiversity = *req.ApplyDiversity
	}
	if req.DiversityWeight != nil {
		engineReq.DiversityWeight = *req.DiversityWeight
	}

	result, err := h.engine.GetRecommendations(r.Context(), engineReq)
	if err != nil {
		if recsys.IsNotFound(err) {
			rw.NotFound("User not found in any model")
			return
		}
		rw.InternalError(err)
		return
	}

	rw.Success(result)
}

// HandleBatchRecommendations serves POST /api/recommendations/batch.
func (h *Handlers) HandleBatchRecommendations(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req BatchRequest
	if !decodeAndValidate(rw, r, &req) {
		return
	}
	if max := h.engine.Config().MaxBatchSize; max > 0 && len(req.UserIDs) > max {
		rw.BadRequest(fmt.Sprintf("Batch size %d exceeds the maximum of %d users", len(req.UserIDs), max))
		return
	}

	entries := h.engine.GetBatchRecommendations(r.Context(), req.UserIDs, req.TopK)
	rw.Success(map[string]interface{}{
		"results": entries,
		"count":   len(entries),
	})
}

// HandleColdStart serves POST /api/recommendations/cold-start.
func (h *Handlers) HandleColdStart(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req ColdStartRequest
	if !decodeAndValidate(rw, r, &req) {
		return
	}

	result, err := h.engine.GetColdStartRecommendations(r.Context(), req.Preferences, req.TopK)
	if err != nil {
		rw.InternalError(err)
		return
	}

	rw.Success(result)
}

// HandleSimilarRecipes serves GET /api/recommendations/recipes/{recipeID}/similar.
func (h *Handlers) HandleSimilarRecipes(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	recipeID, ok := urlParamInt(rw, r, "recipeID")
	if !ok {
		return
	}
	topK, ok := h.queryTopK(rw, r)
	if !ok {
		return
	}

	similar, err := h.engine.GetSimilarRecipes(r.Context(), recipeID, topK)
	if err != nil {
		if recsys.IsNotFound(err) {
			rw.NotFound("Recipe not found in model")
			return
		}
		rw.InternalError(err)
		return
	}

	rw.Success(map[string]interface{}{
		"recipe_id": recipeID,
		"similar":   similar,
	})
}

// HandleSimilarUsers serves GET /api/recommendations/users/{userID}/similar.
func (h *Handlers) HandleSimilarUsers(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	userID, ok := urlParamInt(rw, r, "userID")
	if !ok {
		return
	}
	topK, ok := h.queryTopK(rw, r)
	if !ok {
		return
	}

	similar, err := h.engine.GetSimilarUsers(r.Context(), userID, topK)
	if err != nil {
		if recsys.IsNotFound(err) {
			rw.NotFound("User not found in model")
			return
		}
		rw.InternalError(err)
		return
	}

	rw.Success(map[string]interface{}{
		"user_id": userID,
		"similar": similar,
	})
}
