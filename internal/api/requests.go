// Forkcast - Personalized Recipe Recommendation Service
// Copyright 2026 Forkcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/forkcast/forkcast

package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/forkcast/forkcast/internal/recsys"
	"github.com/forkcast/forkcast/internal/validation"
)

// maxBodySize bounds request bodies to prevent memory exhaustion.
const maxBodySize = 1 << 20 // 1MB

// RecommendationRequest is the body of POST /api/recommendations/recipes.
type RecommendationRequest struct {
	UserID          int             `json:"user_id" validate:"required,gt=0"`
	TopK            int             `json:"top_k" validate:"omitempty,gte=1,lte=100"`
	ExcludeIDs      []int           `json:"exclude_ids" validate:"omitempty,max=1000,dive,gt=0"`
	Filters         *recsys.Filters `json:"filters"`
	ApplyDiversity  *bool           `json:"apply_diversity"`
	DiversityWeight *float64        `json:"diversity_weight" validate:"omitempty,gte=0,lte=1"`
}

// BatchRequest is the body of POST /api/recommendations/batch.
type BatchRequest struct {
	UserIDs []int `json:"user_ids" validate:"required,min=1,max=100,unique,dive,gt=0"`
	TopK    int   `json:"top_k" validate:"omitempty,gte=1,lte=100"`
}

// ColdStartRequest is the body of POST /api/recommendations/cold-start.
type ColdStartRequest struct {
	Preferences *recsys.Preferences `json:"preferences"`
	TopK        int                 `json:"top_k" validate:"omitempty,gte=1,lte=100"`
}

// SyncUsersRequest is the body of POST /api/sync/users: a batch of changed
// user records from the main backend. Records missing an identifier are
// counted as failures, never rejected up front.
type SyncUsersRequest struct {
	Users []SyncUserRecord `json:"users" validate:"required,min=1,max=1000"`
}

// SyncUserRecord identifies one changed user. Upstreams send either
// user_id or id.
type SyncUserRecord struct {
	UserID int `json:"user_id"`
	ID     int `json:"id"`
}

func (r SyncUserRecord) id() int {
	if r.UserID > 0 {
		return r.UserID
	}
	return r.ID
}

// SyncRecipesRequest is the body of POST /api/sync/recipes.
type SyncRecipesRequest struct {
	Recipes []SyncRecipeRecord `json:"recipes" validate:"required,min=1,max=1000"`
}

// SyncRecipeRecord identifies one changed recipe. Upstreams send either
// recipe_id or id.
type SyncRecipeRecord struct {
	RecipeID int `json:"recipe_id"`
	ID       int `json:"id"`
}

func (r SyncRecipeRecord) id() int {
	if r.RecipeID > 0 {
		return r.RecipeID
	}
	return r.ID
}

// SyncInteractionsRequest is the body of POST /api/sync/interactions.
type SyncInteractionsRequest struct {
	Interactions []SyncInteractionRecord `json:"interactions" validate:"required,min=1,max=1000"`
}

// SyncInteractionRecord is one new interaction. Only the user matters for
// invalidation here; recipe-level effects flow through the event stream.
type SyncInteractionRecord struct {
	UserID          int    `json:"user_id"`
	RecipeID        int    `json:"recipe_id"`
	InteractionType string `json:"interaction_type"`
}

// decodeAndValidate decodes a JSON body into dst and validates it. It writes
// the error response itself and reports whether the handler should proceed.
// A body that fails to parse is unprocessable; a body that parses but fails
// validation is a bad request.
func decodeAndValidate(rw *ResponseWriter, r *http.Request, dst interface{}) bool {
	body := http.MaxBytesReader(nil, r.Body, maxBodySize)
	defer func() { _, _ = io.Copy(io.Discard, body) }()

	if err := json.NewDecoder(body).Decode(dst); err != nil {
		rw.UnprocessableEntity("Request body is not valid JSON", err.Error())
		return false
	}

	if err := validation.ValidateStruct(dst); err != nil {
		var verr *validation.RequestValidationError
		if errors.As(err, &verr) {
			rw.ValidationError("Request validation failed", verr.Fields)
		} else {
			rw.ValidationError("Request validation failed", err.Error())
		}
		return false
	}
	return true
}
