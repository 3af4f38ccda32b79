// Forkcast - Personalized Recipe Recommendation Service
// Copyright 2026 Forkcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/forkcast/forkcast

package recsys

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/forkcast/forkcast/internal/cache"
	"github.com/forkcast/forkcast/internal/metrics"
	"github.com/forkcast/forkcast/internal/recsys/reranking"
)

// placeholderImagePrefix marks metadata rows without real content. Rows
// carrying it are dropped from responses rather than surfaced as errors.
const placeholderImagePrefix = "https://placehold.co"

// Config holds the engine's pipeline settings.
type Config struct {
	CacheTTL        time.Duration
	OverFetchFactor int
	DefaultTopK     int
	MaxTopK         int
	DiversityWeight float64
	MaxBatchSize    int
}

// Engine orchestrates the full recommendation pipeline: cache lookup,
// fallback inference with over-fetch, attribute filtering, MMR diversity
// re-ranking, metadata enrichment and cache write-back.
type Engine struct {
	reg          *Registry
	orchestrator *Orchestrator
	store        cache.Store
	meta         MetadataStore
	cfg          Config
	logger       zerolog.Logger
}

// cachedPayload is the serialized form of a cacheable result.
type cachedPayload struct {
	Recommendations []Recommendation `json:"recommendations"`
	ModelUsed       string           `json:"model_used"`
	TotalCandidates int              `json:"total_candidates"`
}

// NewEngine creates the recommendation engine. meta may be nil, in which
// case responses degrade to bare entries built from the artifact snapshot.
func NewEngine(reg *Registry, orchestrator *Orchestrator, store cache.Store, meta MetadataStore, cfg Config, logger zerolog.Logger) *Engine {
	if store == nil {
		store = cache.NewDisabled()
	}
	return &Engine{
		reg:          reg,
		orchestrator: orchestrator,
		store:        store,
		meta:         meta,
		cfg:          cfg,
		logger:       logger.With().Str("component", "recsys").Logger(),
	}
}

// Config returns the engine's pipeline settings.
func (e *Engine) Config() Config { return e.cfg }

// Status reports the loaded model state for the health endpoint.
func (e *Engine) Status() Status { return e.reg.Status() }

// CachePing reports whether the cache backend is reachable.
func (e *Engine) CachePing(ctx context.Context) error { return e.store.Ping(ctx) }

// GetRecommendations serves one personalized recommendation request.
func (e *Engine) GetRecommendations(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	e.normalizeRequest(&req)

	key := e.cacheKey(req)
	if payload, ok := e.cacheGet(ctx, key); ok {
		metrics.CacheHits.Inc()
		return &Result{
			UserID:          req.UserID,
			Recommendations: payload.Recommendations,
			ModelUsed:       payload.ModelUsed,
			Cached:          true,
			LatencyMS:       latencyMS(start),
			TotalCandidates: payload.TotalCandidates,
		}, nil
	}
	metrics.CacheMisses.Inc()

	exclude := buildExcludeSet(req.ExcludeIDs)
	ids, scores, model, err := e.orchestrator.Recommend(ctx, req.UserID, req.TopK*e.cfg.OverFetchFactor, exclude)
	if err != nil {
		metrics.Errors.WithLabelValues("inference").Inc()
		return nil, err
	}
	totalCandidates := len(ids)

	ids, scores = e.filterCandidates(ids, scores, req.Filters)
	selected := e.diversify(ctx, ids, scores, req)
	recommendations := e.enrich(ctx, selected, model)

	metrics.ModelUsage.WithLabelValues(model).Inc()
	metrics.RecommendationsServed.WithLabelValues(model).Add(float64(len(recommendations)))

	e.cacheSet(ctx, key, cachedPayload{
		Recommendations: recommendations,
		ModelUsed:       model,
		TotalCandidates: totalCandidates,
	})

	return &Result{
		UserID:          req.UserID,
		Recommendations: recommendations,
		ModelUsed:       model,
		Cached:          false,
		LatencyMS:       latencyMS(start),
		TotalCandidates: totalCandidates,
	}, nil
}

// GetBatchRecommendations processes up to MaxBatchSize users independently
// and sequentially; IDs beyond the limit are dropped. A per-user failure
// yields an empty entry with an error string; it never fails the batch.
func (e *Engine) GetBatchRecommendations(ctx context.Context, userIDs []int, topK int) []BatchEntry {
	if max := e.cfg.MaxBatchSize; max > 0 && len(userIDs) > max {
		userIDs = userIDs[:max]
	}
	entries := make([]BatchEntry, 0, len(userIDs))
	for _, userID := range userIDs {
		result, err := e.GetRecommendations(ctx, Request{
			UserID:          userID,
			TopK:            topK,
			ApplyDiversity:  true,
			DiversityWeight: e.cfg.DiversityWeight,
		})
		if err != nil {
			e.logger.Error().Err(err).Int("user_id", userID).Msg("batch entry failed")
			entries = append(entries, BatchEntry{
				UserID:          userID,
				Recommendations: []Recommendation{},
				Error:           err.Error(),
			})
			continue
		}
		entries = append(entries, BatchEntry{
			UserID:          userID,
			Recommendations: result.Recommendations,
			ModelUsed:       result.ModelUsed,
		})
	}
	return entries
}

// GetColdStartRecommendations serves a user with no learned embedding:
// popularity-ranked candidates filtered by declared preferences.
func (e *Engine) GetColdStartRecommendations(ctx context.Context, prefs *Preferences, topK int) (*Result, error) {
	start := time.Now()
	if topK <= 0 {
		topK = e.cfg.DefaultTopK
	}

	popularity := NewPopularity(e.reg)
	ids, scores, err := popularity.Recommend(ctx, 0, topK*e.cfg.OverFetchFactor, nil)
	if err != nil {
		metrics.Errors.WithLabelValues("inference").Inc()
		return nil, err
	}
	totalCandidates := len(ids)

	kept := make([]reranking.Candidate, 0, topK)
	for i, id := range ids {
		if !matchesPreferences(e.reg.RecipeAttrs(id), prefs) {
			continue
		}
		kept = append(kept, reranking.Candidate{ID: id, Score: scores[i]})
		if len(kept) == topK {
			break
		}
	}

	recommendations := e.enrich(ctx, kept, ModelColdStart)
	metrics.ModelUsage.WithLabelValues(ModelColdStart).Inc()
	metrics.RecommendationsServed.WithLabelValues(ModelColdStart).Add(float64(len(recommendations)))

	return &Result{
		Recommendations: recommendations,
		ModelUsed:       ModelColdStart,
		LatencyMS:       latencyMS(start),
		TotalCandidates: totalCandidates,
	}, nil
}

// GetSimilarUsers finds the users closest to userID in embedding space,
// preferring the two-tower space and falling back to ALS factors. Results
// are cached under their own key prefix, expiring with the regular TTL.
func (e *Engine) GetSimilarUsers(ctx context.Context, userID, topK int) ([]SimilarUser, error) {
	if topK <= 0 {
		topK = e.cfg.DefaultTopK
	}

	key := cache.BuildKey("similar_users", map[string]interface{}{
		"user_id": userID,
		"top_k":   topK,
	})
	var cached []SimilarUser
	if e.cacheGetInto(ctx, key, &cached) {
		metrics.CacheHits.Inc()
		return cached, nil
	}
	metrics.CacheMisses.Inc()

	var similar []SimilarUser
	if idx, ok := e.reg.userMapping.index(userID); ok && len(e.reg.userEmbeddings) > 0 {
		similar = similarUsersIn(e.reg.userEmbeddings, e.reg.userMapping, idx, topK)
	} else if idx, ok := e.reg.alsUserMapping.index(userID); ok && len(e.reg.alsUserFactors) > 0 {
		similar = similarUsersIn(e.reg.alsUserFactors, e.reg.alsUserMapping, idx, topK)
	} else {
		return nil, ErrNotFound
	}

	e.cacheSetJSON(ctx, key, similar)
	return similar, nil
}

// GetSimilarRecipes finds the recipes closest to recipeID in the
// precomputed two-tower embedding space, caching like GetSimilarUsers.
func (e *Engine) GetSimilarRecipes(ctx context.Context, recipeID, topK int) ([]SimilarRecipe, error) {
	if topK <= 0 {
		topK = e.cfg.DefaultTopK
	}

	idx, ok := e.reg.recipeMapping.index(recipeID)
	if !ok || len(e.reg.recipeEmbeddings) == 0 {
		return nil, ErrNotFound
	}

	key := cache.BuildKey("similar_recipes", map[string]interface{}{
		"recipe_id": recipeID,
		"top_k":     topK,
	})
	var cached []SimilarRecipe
	if e.cacheGetInto(ctx, key, &cached) {
		metrics.CacheHits.Inc()
		return cached, nil
	}
	metrics.CacheMisses.Inc()

	query := e.reg.recipeEmbeddings[idx]
	scores := make([]float64, len(e.reg.recipeEmbeddings))
	for i, emb := range e.reg.recipeEmbeddings {
		scores[i] = cosineSimilarity(query, emb)
	}

	selected := topKIndices(scores, topK, func(i int) bool { return i == idx })
	similar := make([]SimilarRecipe, len(selected))
	for i, s := range selected {
		id := e.reg.recipeMapping.toID[s]
		similar[i] = SimilarRecipe{
			RecipeID:   id,
			Title:      e.reg.RecipeTitle(id),
			Similarity: scores[s],
		}
	}

	e.cacheSetJSON(ctx, key, similar)
	return similar, nil
}

// InvalidateUser deletes the cached entries for one user.
func (e *Engine) InvalidateUser(ctx context.Context, userID int) (int, error) {
	deleted, err := e.store.DeletePattern(ctx, cache.UserKeyPattern(userID))
	if err != nil {
		metrics.Errors.WithLabelValues("cache").Inc()
		e.logger.Warn().Err(err).Int("user_id", userID).Msg("user cache invalidation failed")
		return deleted, err
	}
	e.logger.Debug().Int("user_id", userID).Int("deleted", deleted).Msg("user cache invalidated")
	return deleted, nil
}

// InvalidateRecipe conservatively deletes every recommendation cache entry:
// a recipe change can ripple through any user's candidate ranking, and an
// exact dependency index is out of scope.
func (e *Engine) InvalidateRecipe(ctx context.Context, recipeID int) (int, error) {
	deleted, err := e.store.DeletePattern(ctx, cache.AllKeysPattern())
	if err != nil {
		metrics.Errors.WithLabelValues("cache").Inc()
		e.logger.Warn().Err(err).Int("recipe_id", recipeID).Msg("recipe cache invalidation failed")
		return deleted, err
	}
	e.logger.Debug().Int("recipe_id", recipeID).Int("deleted", deleted).Msg("recommendation cache invalidated")
	return deleted, nil
}

// normalizeRequest applies defaults and clamps before fingerprinting, so
// equivalent requests share a cache entry.
func (e *Engine) normalizeRequest(req *Request) {
	if req.TopK <= 0 {
		req.TopK = e.cfg.DefaultTopK
	}
	if req.TopK > e.cfg.MaxTopK {
		req.TopK = e.cfg.MaxTopK
	}
	if req.DiversityWeight < 0 {
		req.DiversityWeight = 0
	}
	if req.DiversityWeight > 1 {
		req.DiversityWeight = 1
	}
	if req.Filters.IsZero() {
		req.Filters = nil
	}
	sort.Ints(req.ExcludeIDs)
}

// cacheKey fingerprints every parameter affecting the result. The key is
// prefix-scoped by user so invalidation can target one user's entries.
func (e *Engine) cacheKey(req Request) string {
	prefix := fmt.Sprintf("%s:user:%d", cache.KeyPrefix, req.UserID)
	params := map[string]interface{}{
		"top_k":     req.TopK,
		"diversity": req.ApplyDiversity,
	}
	if req.ApplyDiversity {
		params["lambda"] = req.DiversityWeight
	}
	if len(req.ExcludeIDs) > 0 {
		params["exclude"] = req.ExcludeIDs
	}
	if req.Filters != nil {
		params["filters"] = req.Filters
	}
	return cache.BuildKey(prefix, params)
}

// cacheGet reads and decodes a cached recommendation payload.
func (e *Engine) cacheGet(ctx context.Context, key string) (*cachedPayload, bool) {
	var payload cachedPayload
	if !e.cacheGetInto(ctx, key, &payload) {
		return nil, false
	}
	return &payload, true
}

// cacheSet stores a recommendation payload.
func (e *Engine) cacheSet(ctx context.Context, key string, payload cachedPayload) {
	e.cacheSetJSON(ctx, key, payload)
}

// cacheGetInto reads a cached value into dst. Backend failures and corrupt
// payloads degrade to a miss.
func (e *Engine) cacheGetInto(ctx context.Context, key string, dst interface{}) bool {
	data, err := e.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrNotFound) {
			metrics.Errors.WithLabelValues("cache").Inc()
			e.logger.Warn().Err(err).Msg("cache read failed, treating as miss")
		}
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		e.logger.Warn().Err(err).Str("key", key).Msg("cache payload corrupt, treating as miss")
		return false
	}
	return true
}

// cacheSetJSON stores a value. Backend failures are a logged no-op.
func (e *Engine) cacheSetJSON(ctx context.Context, key string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		e.logger.Warn().Err(err).Msg("cache payload marshal failed")
		return
	}
	if err := e.store.Set(ctx, key, data, e.cfg.CacheTTL); err != nil {
		metrics.Errors.WithLabelValues("cache").Inc()
		e.logger.Warn().Err(err).Msg("cache write failed, continuing uncached")
	}
}

// filterCandidates keeps the (id, score) pairs satisfying the filters.
func (e *Engine) filterCandidates(ids []int, scores []float64, f *Filters) ([]int, []float64) {
	if f.IsZero() {
		return ids, scores
	}
	keptIDs := ids[:0]
	keptScores := scores[:0]
	for i, id := range ids {
		if matchesFilters(e.reg.RecipeAttrs(id), f) {
			keptIDs = append(keptIDs, id)
			keptScores = append(keptScores, scores[i])
		}
	}
	return keptIDs, keptScores
}

// diversify applies MMR when requested and worthwhile, otherwise truncates
// to topK.
func (e *Engine) diversify(ctx context.Context, ids []int, scores []float64, req Request) []reranking.Candidate {
	candidates := make([]reranking.Candidate, len(ids))
	for i, id := range ids {
		candidates[i] = reranking.Candidate{ID: id, Score: scores[i]}
	}

	if !req.ApplyDiversity || len(candidates) <= req.TopK {
		if len(candidates) > req.TopK {
			candidates = candidates[:req.TopK]
		}
		return candidates
	}

	embeddings := make(map[int][]float64, len(ids))
	for _, id := range ids {
		if emb := e.reg.RecipeEmbeddingByID(id); emb != nil {
			embeddings[id] = emb
		}
	}
	return reranking.NewMMR(req.DiversityWeight).Rerank(ctx, candidates, embeddings, req.TopK)
}

// enrich turns (id, score) pairs into presentable recommendations using the
// relational metadata store. Rows carrying the placeholder image sentinel
// are dropped. Store unavailability degrades to bare entries built from the
// artifact snapshot.
func (e *Engine) enrich(ctx context.Context, selected []reranking.Candidate, model string) []Recommendation {
	reason := reasonFor(model)
	if e.meta == nil {
		return e.bareRecommendations(selected, reason)
	}

	ids := make([]int, len(selected))
	for i, c := range selected {
		ids[i] = c.ID
	}
	rows, err := e.meta.GetRecipes(ctx, ids)
	if err != nil {
		metrics.Errors.WithLabelValues("metadata").Inc()
		e.logger.Warn().Err(err).Msg("metadata enrichment failed, serving bare entries")
		return e.bareRecommendations(selected, reason)
	}

	recommendations := make([]Recommendation, 0, len(selected))
	for _, c := range selected {
		row, ok := rows[c.ID]
		if !ok {
			continue
		}
		if strings.HasPrefix(row.ImageURL, placeholderImagePrefix) {
			continue
		}
		recommendations = append(recommendations, Recommendation{
			RecipeID:           c.ID,
			Title:              row.Title,
			Score:              clampScore(c.Score),
			Reason:             reason,
			Cuisine:            row.Cuisine,
			DietaryType:        row.DietaryType,
			CookTime:           row.CookTime,
			Difficulty:         row.Difficulty,
			CaloriesPerServing: row.CaloriesPerServing,
			AvgRating:          row.AvgRating,
			Chef:               row.Chef,
			Likes:              row.Likes,
			Comments:           row.Comments,
		})
	}
	return recommendations
}

func (e *Engine) bareRecommendations(selected []reranking.Candidate, reason string) []Recommendation {
	recommendations := make([]Recommendation, len(selected))
	for i, c := range selected {
		recommendations[i] = Recommendation{
			RecipeID: c.ID,
			Title:    e.reg.RecipeTitle(c.ID),
			Score:    clampScore(c.Score),
			Reason:   reason,
		}
	}
	return recommendations
}

// similarUsersIn ranks all users in one embedding table by cosine
// similarity to the query row.
func similarUsersIn(embeddings [][]float64, mapping *idMapping, queryIdx, topK int) []SimilarUser {
	query := embeddings[queryIdx]
	scores := make([]float64, len(embeddings))
	for i, emb := range embeddings {
		scores[i] = cosineSimilarity(query, emb)
	}

	selected := topKIndices(scores, topK, func(i int) bool { return i == queryIdx })
	similar := make([]SimilarUser, len(selected))
	for i, s := range selected {
		similar[i] = SimilarUser{UserID: mapping.toID[s], Similarity: scores[s]}
	}
	return similar
}

func reasonFor(model string) string {
	switch model {
	case ModelPopularity:
		return "Popular recipe"
	case ModelColdStart:
		return "Popular recipe matching your preferences"
	default:
		return fmt.Sprintf("Personalized by %s model", model)
	}
}

func buildExcludeSet(ids []int) map[int]struct{} {
	if len(ids) == 0 {
		return nil
	}
	set := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

func latencyMS(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
