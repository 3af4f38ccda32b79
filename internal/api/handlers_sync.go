// Forkcast - Personalized Recipe Recommendation Service
// Copyright 2026 Forkcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/forkcast/forkcast

package api

import (
	"fmt"
	"net/http"
)

// SyncResult reports the per-item outcome of a sync batch. Items are
// processed independently; a bad record never aborts the rest.
type SyncResult struct {
	Success        bool     `json:"success"`
	ItemsProcessed int      `json:"items_processed"`
	ItemsFailed    int      `json:"items_failed"`
	Message        string   `json:"message"`
	Errors         []string `json:"errors,omitempty"`
}

// HandleSyncUsers serves POST /api/sync/users: the upstream system sends a
// batch of changed users, and each one's cached results are stale.
func (h *Handlers) HandleSyncUsers(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req SyncUsersRequest
	if !decodeAndValidate(rw, r, &req) {
		return
	}

	var processed, failed int
	var errs []string
	for _, record := range req.Users {
		userID := record.id()
		if userID <= 0 {
			failed++
			errs = append(errs, "User record missing user_id")
			continue
		}
		if _, err := h.engine.InvalidateUser(r.Context(), userID); err != nil {
			failed++
			errs = append(errs, fmt.Sprintf("user %d: %v", userID, err))
			continue
		}
		processed++
	}

	rw.Success(SyncResult{
		Success:        failed == 0,
		ItemsProcessed: processed,
		ItemsFailed:    failed,
		Message:        fmt.Sprintf("Synced %d users, %d failed", processed, failed),
		Errors:         errs,
	})
}

// HandleSyncRecipes serves POST /api/sync/recipes. A recipe change can move
// rankings for every user, so each record triggers the service-wide
// invalidation.
func (h *Handlers) HandleSyncRecipes(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req SyncRecipesRequest
	if !decodeAndValidate(rw, r, &req) {
		return
	}

	var processed, failed int
	var errs []string
	for _, record := range req.Recipes {
		recipeID := record.id()
		if recipeID <= 0 {
			failed++
			errs = append(errs, "Recipe record missing recipe_id")
			continue
		}
		if _, err := h.engine.InvalidateRecipe(r.Context(), recipeID); err != nil {
			failed++
			errs = append(errs, fmt.Sprintf("recipe %d: %v", recipeID, err))
			continue
		}
		processed++
	}

	rw.Success(SyncResult{
		Success:        failed == 0,
		ItemsProcessed: processed,
		ItemsFailed:    failed,
		Message:        fmt.Sprintf("Synced %d recipes, %d failed", processed, failed),
		Errors:         errs,
	})
}

// HandleSyncInteractions serves POST /api/sync/interactions: the synchronous
// twin of the Kafka consumer, for upstreams that prefer HTTP callbacks. Each
// affected user is invalidated once regardless of how many interactions the
// batch carries for them.
func (h *Handlers) HandleSyncInteractions(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req SyncInteractionsRequest
	if !decodeAndValidate(rw, r, &req) {
		return
	}

	var processed, failed int
	var errs []string
	affected := make(map[int]struct{})
	for _, record := range req.Interactions {
		if record.UserID <= 0 {
			failed++
			errs = append(errs, "Interaction record missing user_id")
			continue
		}
		affected[record.UserID] = struct{}{}
		processed++
	}

	for userID := range affected {
		if _, err := h.engine.InvalidateUser(r.Context(), userID); err != nil {
			errs = append(errs, fmt.Sprintf("user %d: %v", userID, err))
		}
	}

	rw.Success(SyncResult{
		Success:        failed == 0 && len(errs) == 0,
		ItemsProcessed: processed,
		ItemsFailed:    failed,
		Message:        fmt.Sprintf("Synced %d interactions, invalidated cache for %d users", processed, len(affected)),
		Errors:         errs,
	})
}
