// Forkcast - Personalized Recipe Recommendation Service
// Copyright 2026 Forkcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/forkcast/forkcast

package recsys

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/forkcast/forkcast/internal/cache"
)

// fakeMetaStore serves canned metadata rows and counts calls.
type fakeMetaStore struct {
	rows  map[int]RecipeMetadata
	err   error
	calls int
}

func (f *fakeMetaStore) GetRecipes(_ context.Context, ids []int) (map[int]RecipeMetadata, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[int]RecipeMetadata, len(ids))
	for _, id := range ids {
		if row, ok := f.rows[id]; ok {
			out[id] = row
		}
	}
	return out, nil
}

func testEngineConfig() Config {
	return Config{
		CacheTTL:        0,
		OverFetchFactor: 3,
		DefaultTopK:     10,
		MaxTopK:         100,
		DiversityWeight: 0.3,
		MaxBatchSize:    100,
	}
}

// testRegistry is a popularity-only registry with attribute snapshots.
func testRegistry() *Registry {
	reg := popularityRegistry(
		popEntry{id: 1, score: 0.9},
		popEntry{id: 2, score: 0.8},
		popEntry{id: 3, score: 0.7},
		popEntry{id: 4, score: 0.6},
		popEntry{id: 5, score: 0.5},
	)
	reg.recipeAttrs = map[int]map[string]interface{}{
		1: {"title": "Pad Thai", "cuisine": "Thai", "dietary_type": "Regular", "cook_time": 30, "difficulty": "medium"},
		2: {"title": "Green Salad", "cuisine": "American", "dietary_type": "Vegan", "cook_time": 10, "difficulty": "easy"},
		3: {"title": "Beef Stew", "cuisine": "French", "dietary_type": "Regular", "cook_time": 120, "difficulty": "hard"},
		4: {"title": "Tofu Curry", "cuisine": "Indian", "dietary_type": "Vegan", "cook_time": 45, "difficulty": "medium"},
		5: {"title": "Pancakes", "cuisine": "American", "dietary_type": "Vegetarian", "cook_time": 20, "difficulty": "easy"},
	}
	return reg
}

func testMetaRows() map[int]RecipeMetadata {
	rows := make(map[int]RecipeMetadata)
	for id, attrs := range testRegistry().recipeAttrs {
		rows[id] = RecipeMetadata{
			ID:       id,
			Title:    attrs["title"].(string),
			Cuisine:  attrs["cuisine"].(string),
			ImageURL: fmt.Sprintf("https://img.example.com/%d.jpg", id),
		}
	}
	return rows
}

func newTestEngine(t *testing.T, store cache.Store, meta MetadataStore) *Engine {
	t.Helper()
	reg := testRegistry()
	orchestrator := NewOrchestrator(zerolog.Nop(), NewPopularity(reg))
	return NewEngine(reg, orchestrator, store, meta, testEngineConfig(), zerolog.Nop())
}

func TestEngine_GetRecommendations_CacheRoundTrip(t *testing.T) {
	store := cache.NewMemoryStore()
	defer store.Close()
	engine := newTestEngine(t, store, &fakeMetaStore{rows: testMetaRows()})
	req := Request{UserID: 42, TopK: 3, ApplyDiversity: true, DiversityWeight: 0.3}

	first, err := engine.GetRecommendations(context.Background(), req)
	if err != nil {
		t.Fatalf("GetRecommendations() error = %v", err)
	}
	if first.Cached {
		t.Error("first call reported cached")
	}
	if first.ModelUsed != ModelPopularity {
		t.Errorf("model = %q, want %q", first.ModelUsed, ModelPopularity)
	}
	if len(first.Recommendations) != 3 {
		t.Fatalf("len = %d, want 3", len(first.Recommendations))
	}

	second, err := engine.GetRecommendations(context.Background(), req)
	if err != nil {
		t.Fatalf("second GetRecommendations() error = %v", err)
	}
	if !second.Cached {
		t.Error("second call not served from cache")
	}
	for i := range first.Recommendations {
		if second.Recommendations[i].RecipeID != first.Recommendations[i].RecipeID {
			t.Errorf("cached entry %d id = %d, want %d",
				i, second.Recommendations[i].RecipeID, first.Recommendations[i].RecipeID)
		}
	}
}

func TestEngine_GetRecommendations_ExclusionInvariant(t *testing.T) {
	engine := newTestEngine(t, cache.NewDisabled(), &fakeMetaStore{rows: testMetaRows()})

	result, err := engine.GetRecommendations(context.Background(), Request{
		UserID:     42,
		TopK:       3,
		ExcludeIDs: []int{1, 2},
	})
	if err != nil {
		t.Fatalf("GetRecommendations() error = %v", err)
	}
	for _, rec := range result.Recommendations {
		if rec.RecipeID == 1 || rec.RecipeID == 2 {
			t.Errorf("excluded recipe %d present in results", rec.RecipeID)
		}
	}
}

func TestEngine_GetRecommendations_Filters(t *testing.T) {
	engine := newTestEngine(t, cache.NewDisabled(), &fakeMetaStore{rows: testMetaRows()})

	result, err := engine.GetRecommendations(context.Background(), Request{
		UserID:  42,
		TopK:    5,
		Filters: &Filters{DietaryType: "vegan"},
	})
	if err != nil {
		t.Fatalf("GetRecommendations() error = %v", err)
	}
	if len(result.Recommendations) != 2 {
		t.Fatalf("len = %d, want 2 vegan recipes", len(result.Recommendations))
	}
	for _, rec := range result.Recommendations {
		if rec.RecipeID != 2 && rec.RecipeID != 4 {
			t.Errorf("non-vegan recipe %d passed the filter", rec.RecipeID)
		}
	}
}

func TestEngine_GetRecommendations_DropsPlaceholderRows(t *testing.T) {
	rows := testMetaRows()
	row := rows[1]
	row.ImageURL = "https://placehold.co/600x400"
	rows[1] = row

	engine := newTestEngine(t, cache.NewDisabled(), &fakeMetaStore{rows: rows})
	result, err := engine.GetRecommendations(context.Background(), Request{UserID: 42, TopK: 5})
	if err != nil {
		t.Fatalf("GetRecommendations() error = %v", err)
	}
	for _, rec := range result.Recommendations {
		if rec.RecipeID == 1 {
			t.Error("placeholder-image recipe 1 present in results")
		}
	}
}

func TestEngine_GetRecommendations_MetaFailureDegradesToBare(t *testing.T) {
	engine := newTestEngine(t, cache.NewDisabled(), &fakeMetaStore{err: fmt.Errorf("connection refused")})

	result, err := engine.GetRecommendations(context.Background(), Request{UserID: 42, TopK: 2})
	if err != nil {
		t.Fatalf("GetRecommendations() error = %v", err)
	}
	if len(result.Recommendations) != 2 {
		t.Fatalf("len = %d, want 2 bare entries", len(result.Recommendations))
	}
	if result.Recommendations[0].Title != "Pad Thai" {
		t.Errorf("title = %q, want snapshot title %q", result.Recommendations[0].Title, "Pad Thai")
	}
}

func TestEngine_GetRecommendations_PopularityReason(t *testing.T) {
	engine := newTestEngine(t, cache.NewDisabled(), &fakeMetaStore{rows: testMetaRows()})

	result, err := engine.GetRecommendations(context.Background(), Request{UserID: 42, TopK: 1})
	if err != nil {
		t.Fatalf("GetRecommendations() error = %v", err)
	}
	if result.Recommendations[0].Reason != "Popular recipe" {
		t.Errorf("reason = %q, want %q", result.Recommendations[0].Reason, "Popular recipe")
	}
}

func TestEngine_InvalidateUser_RemovesOnlyThatUser(t *testing.T) {
	store := cache.NewMemoryStore()
	defer store.Close()
	engine := newTestEngine(t, store, &fakeMetaStore{rows: testMetaRows()})

	for _, userID := range []int{1, 2} {
		if _, err := engine.GetRecommendations(context.Background(), Request{UserID: userID, TopK: 2}); err != nil {
			t.Fatalf("priming user %d: %v", userID, err)
		}
	}

	deleted, err := engine.InvalidateUser(context.Background(), 1)
	if err != nil {
		t.Fatalf("InvalidateUser() error = %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	result, err := engine.GetRecommendations(context.Background(), Request{UserID: 2, TopK: 2})
	if err != nil {
		t.Fatalf("GetRecommendations() error = %v", err)
	}
	if !result.Cached {
		t.Error("user 2 entry was invalidated by user 1 invalidation")
	}
}

func TestEngine_InvalidateRecipe_RemovesAllEntries(t *testing.T) {
	store := cache.NewMemoryStore()
	defer store.Close()
	engine := newTestEngine(t, store, &fakeMetaStore{rows: testMetaRows()})

	for _, userID := range []int{1, 2, 3} {
		if _, err := engine.GetRecommendations(context.Background(), Request{UserID: userID, TopK: 2}); err != nil {
			t.Fatalf("priming user %d: %v", userID, err)
		}
	}

	deleted, err := engine.InvalidateRecipe(context.Background(), 99)
	if err != nil {
		t.Fatalf("InvalidateRecipe() error = %v", err)
	}
	if deleted != 3 {
		t.Errorf("deleted = %d, want 3", deleted)
	}
}

func TestEngine_GetBatchRecommendations(t *testing.T) {
	engine := newTestEngine(t, cache.NewDisabled(), &fakeMetaStore{rows: testMetaRows()})

	entries := engine.GetBatchRecommendations(context.Background(), []int{10, 20, 30}, 2)
	if len(entries) != 3 {
		t.Fatalf("len = %d, want 3", len(entries))
	}
	for i, entry := range entries {
		if entry.Error != "" {
			t.Errorf("entry %d unexpected error %q", i, entry.Error)
		}
		if len(entry.Recommendations) != 2 {
			t.Errorf("entry %d len = %d, want 2", i, len(entry.Recommendations))
		}
	}
}

func TestEngine_GetBatchRecommendations_PerUserFailure(t *testing.T) {
	// An empty catalog makes every strategy fail, which must surface as
	// per-entry errors rather than a failed batch.
	reg := popularityRegistry()
	orchestrator := NewOrchestrator(zerolog.Nop(), NewPopularity(reg))
	engine := NewEngine(reg, orchestrator, cache.NewDisabled(), nil, testEngineConfig(), zerolog.Nop())

	entries := engine.GetBatchRecommendations(context.Background(), []int{1, 2}, 2)
	if len(entries) != 2 {
		t.Fatalf("len = %d, want 2", len(entries))
	}
	for i, entry := range entries {
		if entry.Error == "" {
			t.Errorf("entry %d missing error string", i)
		}
		if entry.Recommendations == nil || len(entry.Recommendations) != 0 {
			t.Errorf("entry %d recommendations = %v, want empty list", i, entry.Recommendations)
		}
	}
}

func TestEngine_GetColdStartRecommendations(t *testing.T) {
	engine := newTestEngine(t, cache.NewDisabled(), &fakeMetaStore{rows: testMetaRows()})

	t.Run("preferences filter candidates", func(t *testing.T) {
		result, err := engine.GetColdStartRecommendations(context.Background(), &Preferences{
			Dietary: []string{"Vegan"},
		}, 5)
		if err != nil {
			t.Fatalf("GetColdStartRecommendations() error = %v", err)
		}
		if result.ModelUsed != ModelColdStart {
			t.Errorf("model = %q, want %q", result.ModelUsed, ModelColdStart)
		}
		if len(result.Recommendations) != 2 {
			t.Fatalf("len = %d, want 2", len(result.Recommendations))
		}
		if !strings.Contains(result.Recommendations[0].Reason, "preferences") {
			t.Errorf("reason = %q, want preference wording", result.Recommendations[0].Reason)
		}
	})

	t.Run("nil preferences serve pure popularity", func(t *testing.T) {
		result, err := engine.GetColdStartRecommendations(context.Background(), nil, 3)
		if err != nil {
			t.Fatalf("GetColdStartRecommendations() error = %v", err)
		}
		if len(result.Recommendations) != 3 {
			t.Errorf("len = %d, want 3", len(result.Recommendations))
		}
		if result.Recommendations[0].RecipeID != 1 {
			t.Errorf("first id = %d, want most popular 1", result.Recommendations[0].RecipeID)
		}
	})

	t.Run("max cook time preference", func(t *testing.T) {
		result, err := engine.GetColdStartRecommendations(context.Background(), &Preferences{
			MaxCookTime: 25,
		}, 5)
		if err != nil {
			t.Fatalf("GetColdStartRecommendations() error = %v", err)
		}
		for _, rec := range result.Recommendations {
			if rec.RecipeID != 2 && rec.RecipeID != 5 {
				t.Errorf("recipe %d exceeds 25 minute limit", rec.RecipeID)
			}
		}
	})
}

func TestEngine_GetSimilarUsers(t *testing.T) {
	reg := testRegistry()
	reg.userMapping = &idMapping{toIndex: map[int]int{100: 0, 200: 1, 300: 2}, toID: []int{100, 200, 300}}
	reg.userEmbeddings = [][]float64{
		{1, 0},
		{0.9, 0.1},
		{0, 1},
	}
	orchestrator := NewOrchestrator(zerolog.Nop(), NewPopularity(reg))
	engine := NewEngine(reg, orchestrator, cache.NewDisabled(), nil, testEngineConfig(), zerolog.Nop())

	t.Run("nearest user first, self excluded", func(t *testing.T) {
		similar, err := engine.GetSimilarUsers(context.Background(), 100, 2)
		if err != nil {
			t.Fatalf("GetSimilarUsers() error = %v", err)
		}
		if len(similar) != 2 {
			t.Fatalf("len = %d, want 2", len(similar))
		}
		if similar[0].UserID != 200 {
			t.Errorf("nearest = %d, want 200", similar[0].UserID)
		}
		for _, s := range similar {
			if s.UserID == 100 {
				t.Error("query user present in its own results")
			}
		}
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := engine.GetSimilarUsers(context.Background(), 999, 2)
		if !IsNotFound(err) {
			t.Errorf("error = %v, want ErrNotFound", err)
		}
	})
}

func TestEngine_GetBatchRecommendations_ClampsToMaxBatchSize(t *testing.T) {
	cfg := testEngineConfig()
	cfg.MaxBatchSize = 2
	reg := testRegistry()
	orchestrator := NewOrchestrator(zerolog.Nop(), NewPopularity(reg))
	engine := NewEngine(reg, orchestrator, cache.NewDisabled(), &fakeMetaStore{rows: testMetaRows()}, cfg, zerolog.Nop())

	entries := engine.GetBatchRecommendations(context.Background(), []int{10, 20, 30}, 2)
	if len(entries) != 2 {
		t.Fatalf("len = %d, want batch clamped to 2", len(entries))
	}
	if entries[0].UserID != 10 || entries[1].UserID != 20 {
		t.Errorf("entries = %d, %d, want first two users kept", entries[0].UserID, entries[1].UserID)
	}
}

func TestEngine_GetSimilarUsers_Cached(t *testing.T) {
	reg := testRegistry()
	reg.userMapping = &idMapping{toIndex: map[int]int{100: 0, 200: 1, 300: 2}, toID: []int{100, 200, 300}}
	reg.userEmbeddings = [][]float64{
		{1, 0},
		{0.9, 0.1},
		{0, 1},
	}
	store := cache.NewMemoryStore()
	defer store.Close()
	orchestrator := NewOrchestrator(zerolog.Nop(), NewPopularity(reg))
	engine := NewEngine(reg, orchestrator, store, nil, testEngineConfig(), zerolog.Nop())

	first, err := engine.GetSimilarUsers(context.Background(), 100, 2)
	if err != nil {
		t.Fatalf("GetSimilarUsers() error = %v", err)
	}
	if store.Len() != 1 {
		t.Fatalf("cache entries = %d, want 1", store.Len())
	}

	// Drop the embedding table; the second call must be served from the
	// cache to succeed at all.
	reg.userEmbeddings = nil
	second, err := engine.GetSimilarUsers(context.Background(), 100, 2)
	if err != nil {
		t.Fatalf("cached GetSimilarUsers() error = %v", err)
	}
	if len(second) != len(first) || second[0].UserID != first[0].UserID {
		t.Errorf("cached result = %+v, want %+v", second, first)
	}
}

func TestEngine_GetSimilarRecipes_Cached(t *testing.T) {
	reg := testRegistry()
	reg.recipeMapping = &idMapping{toIndex: map[int]int{1: 0, 2: 1, 3: 2}, toID: []int{1, 2, 3}}
	reg.recipeEmbeddings = [][]float64{
		{1, 0},
		{0.95, 0.05},
		{0, 1},
	}
	store := cache.NewMemoryStore()
	defer store.Close()
	orchestrator := NewOrchestrator(zerolog.Nop(), NewPopularity(reg))
	engine := NewEngine(reg, orchestrator, store, nil, testEngineConfig(), zerolog.Nop())

	first, err := engine.GetSimilarRecipes(context.Background(), 1, 2)
	if err != nil {
		t.Fatalf("GetSimilarRecipes() error = %v", err)
	}
	if store.Len() != 1 {
		t.Fatalf("cache entries = %d, want 1", store.Len())
	}

	second, err := engine.GetSimilarRecipes(context.Background(), 1, 2)
	if err != nil {
		t.Fatalf("cached GetSimilarRecipes() error = %v", err)
	}
	if second[0].RecipeID != first[0].RecipeID || second[0].Title != first[0].Title {
		t.Errorf("cached result = %+v, want %+v", second, first)
	}
}

func TestEngine_GetSimilarRecipes(t *testing.T) {
	reg := testRegistry()
	reg.recipeMapping = &idMapping{toIndex: map[int]int{1: 0, 2: 1, 3: 2}, toID: []int{1, 2, 3}}
	reg.recipeEmbeddings = [][]float64{
		{1, 0},
		{0.95, 0.05},
		{0, 1},
	}
	orchestrator := NewOrchestrator(zerolog.Nop(), NewPopularity(reg))
	engine := NewEngine(reg, orchestrator, cache.NewDisabled(), nil, testEngineConfig(), zerolog.Nop())

	similar, err := engine.GetSimilarRecipes(context.Background(), 1, 2)
	if err != nil {
		t.Fatalf("GetSimilarRecipes() error = %v", err)
	}
	if similar[0].RecipeID != 2 {
		t.Errorf("nearest = %d, want 2", similar[0].RecipeID)
	}
	if similar[0].Title != "Green Salad" {
		t.Errorf("title = %q, want %q", similar[0].Title, "Green Salad")
	}
	for _, s := range similar {
		if s.RecipeID == 1 {
			t.Error("query recipe present in its own results")
		}
	}
}

func TestMatchesFilters(t *testing.T) {
	attrs := map[string]interface{}{
		"dietary_type": "Vegan", "cuisine": "Thai", "cook_time": 30,
		"difficulty": "easy", "calories_per_serving": 400,
	}

	tests := []struct {
		name    string
		filters Filters
		want    bool
	}{
		{"zero filters pass", Filters{}, true},
		{"case-insensitive category match", Filters{DietaryType: "vegan"}, true},
		{"category mismatch", Filters{Cuisine: "Italian"}, false},
		{"max cook time inside", Filters{MaxCookTime: 40}, true},
		{"max cook time exceeded", Filters{MaxCookTime: 20}, false},
		{"min cook time not met", Filters{MinCookTime: 60}, false},
		{"max calories inside", Filters{MaxCalories: 500}, true},
		{"combined all pass", Filters{DietaryType: "Vegan", MaxCookTime: 30}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := matchesFilters(attrs, &tt.filters); got != tt.want {
				t.Errorf("matchesFilters() = %v, want %v", got, tt.want)
			}
		})
	}

	t.Run("nil attrs fail non-empty filter", func(t *testing.T) {
		if matchesFilters(nil, &Filters{DietaryType: "Vegan"}) {
			t.Error("recipe without attributes passed a filter")
		}
	})
}
