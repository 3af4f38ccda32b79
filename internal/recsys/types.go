// Forkcast - Personalized Recipe Recommendation Service
// Copyright 2026 Forkcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/forkcast/forkcast

// Package recsys implements the recommendation serving pipeline: pretrained
// model inference with a strict fallback chain, attribute filtering, MMR
// diversity re-ranking, result caching and metadata enrichment.
package recsys

import (
	"context"
	"time"
)

// Model names reported in responses and metrics.
const (
	ModelTwoTower   = "two_tower"
	ModelALS        = "als"
	ModelPopularity = "popularity"
	ModelColdStart  = "cold_start"
)

// Strategy is one interchangeable recommendation source. Implementations are
// pure functions over immutable in-memory model state: no side effects, safe
// for unlimited concurrent use.
type Strategy interface {
	// Name returns the strategy identifier used in responses and metrics.
	Name() string

	// Recommend returns up to topK candidate recipe IDs ranked by descending
	// relevance, with scores min-max normalized to [0,1]. IDs in exclude are
	// masked out before ranking.
	//
	// Returns ErrNotFound when userID is absent from the strategy's ID
	// mapping; any other error is an inference failure local to this
	// strategy.
	Recommend(ctx context.Context, userID, topK int, exclude map[int]struct{}) ([]int, []float64, error)
}

// Filters restricts candidates by recipe attributes. Zero values mean
// "no constraint".
type Filters struct {
	DietaryType   string `json:"dietary_type,omitempty"`
	Cuisine       string `json:"cuisine,omitempty"`
	MaxCookTime   int    `json:"max_cook_time,omitempty"`
	MinCookTime   int    `json:"min_cook_time,omitempty"`
	Difficulty    string `json:"difficulty,omitempty"`
	MaxCalories   int    `json:"max_calories,omitempty"`
	CookingMethod string `json:"cooking_method,omitempty"`
}

// IsZero reports whether no filter field is set.
func (f *Filters) IsZero() bool {
	return f == nil || *f == Filters{}
}

// Preferences describes a cold-start request: declared tastes instead of a
// learned embedding.
type Preferences struct {
	Dietary     []string `json:"dietary,omitempty"`
	Cuisines    []string `json:"cuisines,omitempty"`
	MaxCookTime int      `json:"max_cook_time,omitempty"`
	Difficulty  string   `json:"difficulty,omitempty"`
}

// Request carries everything affecting one recommendation result. All fields
// participate in the cache fingerprint.
type Request struct {
	UserID          int
	TopK            int
	ExcludeIDs      []int
	Filters         *Filters
	ApplyDiversity  bool
	DiversityWeight float64
}

// Recommendation is one enriched result entry.
type Recommendation struct {
	RecipeID           int     `json:"recipe_id"`
	Title              string  `json:"title"`
	Score              float64 `json:"score"`
	Reason             string  `json:"reason"`
	Cuisine            string  `json:"cuisine,omitempty"`
	DietaryType        string  `json:"dietary_type,omitempty"`
	CookTime           int     `json:"cook_time,omitempty"`
	Difficulty         string  `json:"difficulty,omitempty"`
	CaloriesPerServing int     `json:"calories_per_serving,omitempty"`
	AvgRating          float64 `json:"avg_rating,omitempty"`
	Chef               string  `json:"chef,omitempty"`
	Likes              int     `json:"likes"`
	Comments           int     `json:"comments"`
}

// Result is a complete recommendation response for one user.
type Result struct {
	UserID          int              `json:"user_id"`
	Recommendations []Recommendation `json:"recommendations"`
	ModelUsed       string           `json:"model_used"`
	Cached          bool             `json:"cached"`
	LatencyMS       float64          `json:"latency_ms"`
	TotalCandidates int              `json:"total_candidates,omitempty"`
}

// BatchEntry is one user's slot in a batch result. A per-user failure yields
// an empty recommendation list and an error string, never a failed batch.
type BatchEntry struct {
	UserID          int              `json:"user_id"`
	Recommendations []Recommendation `json:"recommendations"`
	ModelUsed       string           `json:"model_used,omitempty"`
	Error           string           `json:"error,omitempty"`
}

// SimilarUser is one entry of a similar-users result.
type SimilarUser struct {
	UserID     int     `json:"user_id"`
	Similarity float64 `json:"similarity"`
}

// SimilarRecipe is one entry of a similar-recipes result.
type SimilarRecipe struct {
	RecipeID   int     `json:"recipe_id"`
	Title      string  `json:"title,omitempty"`
	Similarity float64 `json:"similarity"`
}

// RecipeMetadata is a recipe row from the upstream relational store, used to
// enrich bare (id, score) pairs into presentable recommendations.
type RecipeMetadata struct {
	ID                 int
	Title              string
	Cuisine            string
	DietaryType        string
	CookTime           int
	Difficulty         string
	CaloriesPerServing int
	AvgRating          float64
	Chef               string
	Likes              int
	Comments           int
	ImageURL           string
}

// MetadataStore looks up recipe metadata in bulk by ID list.
type MetadataStore interface {
	GetRecipes(ctx context.Context, ids []int) (map[int]RecipeMetadata, error)
}

// AttributeClient fetches current user attributes from the upstream system.
// Implementations must bound the call with a timeout; failures degrade to
// the attribute snapshot shipped with the model artifacts.
type AttributeClient interface {
	GetUserAttributes(ctx context.Context, userID int) (map[string]interface{}, error)
}

// Status describes the loaded model state for the health endpoint.
type Status struct {
	TwoTowerLoaded        bool      `json:"two_tower_loaded"`
	ALSLoaded             bool      `json:"als_loaded"`
	PopularityLoaded      bool      `json:"popularity_loaded"`
	EmbeddingsPrecomputed bool      `json:"embeddings_precomputed"`
	Version               string    `json:"version,omitempty"`
	TrainedAt             time.Time `json:"trained_at"`
}
