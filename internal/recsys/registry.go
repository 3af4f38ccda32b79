// Forkcast - Personalized Recipe Recommendation Service
// Copyright 2026 Forkcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/forkcast/forkcast

package recsys

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/forkcast/forkcast/internal/recsys/feature"
)

// userCategoricalAttrs lists the user attributes encoded as one-hot columns
// in the trained feature schema.
var userCategoricalAttrs = []string{"gender", "location", "user_segment"}

// recipeCategoricalAttrs lists the recipe attributes encoded as one-hot columns.
var recipeCategoricalAttrs = []string{"cuisine", "dietary_type", "difficulty", "cooking_method"}

// userCategoricalDefaults maps categorical user attributes to the category
// assumed for users the upstream system knows nothing about.
var userCategoricalDefaults = map[string]string{"user_segment": "General Users"}

// engagementSignals are the recipe attributes averaged into a popularity
// score when no precomputed one is present.
var engagementSignals = []string{"view_count", "save_count", "like_count", "avg_rating"}

// ModelConfig describes the trained model artifacts.
type ModelConfig struct {
	EmbeddingDim   int       `json:"embedding_dim"`
	UserFeatures   []string  `json:"user_features"`
	RecipeFeatures []string  `json:"recipe_features"`
	Version        string    `json:"version"`
	TrainedAt      time.Time `json:"trained_at"`
}

// idMapping is a bidirectional mapping between external stable IDs and the
// dense 0..N-1 indices required by embedding tables. An external ID either
// fully exists or is absent.
type idMapping struct {
	toIndex map[int]int
	toID    []int
}

func (m *idMapping) index(id int) (int, bool) {
	if m == nil {
		return 0, false
	}
	idx, ok := m.toIndex[id]
	return idx, ok
}

func (m *idMapping) size() int {
	if m == nil {
		return 0
	}
	return len(m.toID)
}

// popEntry is one row of the popularity table.
type popEntry struct {
	id    int
	score float64
}

// Registry holds all pretrained model state: ID mappings, encoder weights,
// factor matrices, the popularity table, feature builders and entity
// attribute snapshots. It is built once at startup and immutable afterwards,
// so concurrent readers need no locking.
type Registry struct {
	cfg    ModelConfig
	logger zerolog.Logger

	// Two-tower model.
	userMapping   *idMapping
	recipeMapping *idMapping
	userTower     *encoder
	recipeTower   *encoder
	userBuilder   *feature.Builder
	recipeBuilder *feature.Builder

	// Precomputed L2-normalized embeddings, indexed by dense index.
	recipeEmbeddings [][]float64
	userEmbeddings   [][]float64

	// ALS model. Its mappings may cover a different population than the
	// two-tower model.
	alsUserMapping *idMapping
	alsItemMapping *idMapping
	alsUserFactors [][]float64
	alsItemFactors [][]float64

	// Popularity table, sorted by descending score.
	popularity     []popEntry
	popularityByID map[int]float64

	// Attribute snapshots shipped with the artifacts.
	userAttrs   map[int]map[string]interface{}
	recipeAttrs map[int]map[string]interface{}
}

// LoadRegistry reads all model artifacts from dir and precomputes the
// candidate-side embeddings. The two-tower and ALS artifacts are optional:
// a missing model simply disables its strategy. The recipe attribute table
// is required since the popularity fallback is derived from it.
func LoadRegistry(dir string, logger zerolog.Logger) (*Registry, error) {
	r := &Registry{logger: logger}

	if err := readJSONFile(filepath.Join(dir, "model_config.json"), &r.cfg); err != nil {
		return nil, fmt.Errorf("loading model config: %w", err)
	}

	var err error
	if r.recipeAttrs, err = loadAttrTable(filepath.Join(dir, "recipes.json")); err != nil {
		return nil, fmt.Errorf("loading recipe attributes: %w", err)
	}
	if len(r.recipeAttrs) == 0 {
		return nil, fmt.Errorf("recipe attribute table is empty")
	}
	if r.userAttrs, err = loadAttrTable(filepath.Join(dir, "users.json")); err != nil {
		return nil, fmt.Errorf("loading user attributes: %w", err)
	}

	scalers, err := loadScalers(filepath.Join(dir, "scalers.json"))
	if err != nil {
		return nil, fmt.Errorf("loading scalers: %w", err)
	}
	r.userBuilder = feature.NewBuilder(
		feature.CompileSchema(r.cfg.UserFeatures, userCategoricalAttrs, userCategoricalDefaults),
		scalers["user"], logger)
	r.recipeBuilder = feature.NewBuilder(
		feature.CompileSchema(r.cfg.RecipeFeatures, recipeCategoricalAttrs, nil),
		scalers["recipe"], logger)

	if err := r.loadTwoTower(filepath.Join(dir, "two_tower")); err != nil {
		return nil, fmt.Errorf("loading two-tower artifacts: %w", err)
	}
	if err := r.loadALS(filepath.Join(dir, "als")); err != nil {
		return nil, fmt.Errorf("loading als artifacts: %w", err)
	}
	r.buildPopularity()

	if r.twoTowerLoaded() {
		if err := r.precomputeEmbeddings(); err != nil {
			return nil, fmt.Errorf("precomputing embeddings: %w", err)
		}
	}

	logger.Info().
		Bool("two_tower", r.twoTowerLoaded()).
		Bool("als", r.alsLoaded()).
		Int("recipes", len(r.recipeAttrs)).
		Int("popularity_entries", len(r.popularity)).
		Str("version", r.cfg.Version).
		Msg("model registry loaded")

	return r, nil
}

// loadTwoTower reads the tower-pair artifacts. A missing directory disables
// the strategy; a present but inconsistent one is a startup error.
func (r *Registry) loadTwoTower(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		r.logger.Warn().Str("dir", dir).Msg("two-tower artifacts absent, strategy disabled")
		return nil
	}

	var raw struct {
		Users   map[string]int `json:"users"`
		Recipes map[string]int `json:"recipes"`
	}
	if err := readJSONFile(filepath.Join(dir, "mappings.json"), &raw); err != nil {
		return err
	}
	userMapping, err := buildMapping(raw.Users)
	if err != nil {
		return fmt.Errorf("user mapping: %w", err)
	}
	recipeMapping, err := buildMapping(raw.Recipes)
	if err != nil {
		return fmt.Errorf("recipe mapping: %w", err)
	}

	userTower := &encoder{}
	if err := readJSONFile(filepath.Join(dir, "user_tower.json"), userTower); err != nil {
		return err
	}
	recipeTower := &encoder{}
	if err := readJSONFile(filepath.Join(dir, "recipe_tower.json"), recipeTower); err != nil {
		return err
	}
	if err := userTower.validate(r.userBuilder.Dim(), r.cfg.EmbeddingDim); err != nil {
		return fmt.Errorf("user tower: %w", err)
	}
	if err := recipeTower.validate(r.recipeBuilder.Dim(), r.cfg.EmbeddingDim); err != nil {
		return fmt.Errorf("recipe tower: %w", err)
	}

	r.userMapping = userMapping
	r.recipeMapping = recipeMapping
	r.userTower = userTower
	r.recipeTower = recipeTower
	return nil
}

// loadALS reads the factor-model artifacts. A missing directory disables
// the strategy.
func (r *Registry) loadALS(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		r.logger.Warn().Str("dir", dir).Msg("als artifacts absent, strategy disabled")
		return nil
	}

	var rawMappings struct {
		Users   map[string]int `json:"users"`
		Recipes map[string]int `json:"recipes"`
	}
	if err := readJSONFile(filepath.Join(dir, "mappings.json"), &rawMappings); err != nil {
		return err
	}
	userMapping, err := buildMapping(rawMappings.Users)
	if err != nil {
		return fmt.Errorf("user mapping: %w", err)
	}
	itemMapping, err := buildMapping(rawMappings.Recipes)
	if err != nil {
		return fmt.Errorf("item mapping: %w", err)
	}

	var factors struct {
		UserFactors [][]float64 `json:"user_factors"`
		ItemFactors [][]float64 `json:"item_factors"`
	}
	if err := readJSONFile(filepath.Join(dir, "factors.json"), &factors); err != nil {
		return err
	}
	if len(factors.UserFactors) != userMapping.size() {
		return fmt.Errorf("user factor rows %d != mapping size %d",
			len(factors.UserFactors), userMapping.size())
	}
	if len(factors.ItemFactors) != itemMapping.size() {
		return fmt.Errorf("item factor rows %d != mapping size %d",
			len(factors.ItemFactors), itemMapping.size())
	}

	r.alsUserMapping = userMapping
	r.alsItemMapping = itemMapping
	r.alsUserFactors = factors.UserFactors
	r.alsItemFactors = factors.ItemFactors
	return nil
}

// buildPopularity derives the popularity table from the recipe attribute
// snapshot: a precomputed popularity_score field wins, otherwise the
// engagement signals are min-max normalized across the catalog and
// averaged, otherwise every recipe scores 1.0.
func (r *Registry) buildPopularity() {
	ids := make([]int, 0, len(r.recipeAttrs))
	for id := range r.recipeAttrs {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	scores := precomputedPopularity(r.recipeAttrs, ids)
	if scores == nil {
		scores = derivedPopularity(r.recipeAttrs, ids)
	}

	r.popularity = make([]popEntry, len(ids))
	r.popularityByID = make(map[int]float64, len(ids))
	for i, id := range ids {
		r.popularity[i] = popEntry{id: id, score: scores[i]}
		r.popularityByID[id] = scores[i]
	}
	sort.SliceStable(r.popularity, func(i, j int) bool {
		return r.popularity[i].score > r.popularity[j].score
	})
}

// precomputedPopularity returns per-ID popularity_score values, or nil when
// the field is absent from the snapshot.
func precomputedPopularity(attrs map[int]map[string]interface{}, ids []int) []float64 {
	scores := make([]float64, len(ids))
	found := false
	for i, id := range ids {
		if v, ok := attrs[id]["popularity_score"]; ok {
			if f, ok := toFloat(v); ok {
				scores[i] = f
				found = true
			}
		}
	}
	if !found {
		return nil
	}
	return scores
}

// derivedPopularity averages min-max normalized engagement signals.
func derivedPopularity(attrs map[int]map[string]interface{}, ids []int) []float64 {
	scores := make([]float64, len(ids))
	signalsUsed := 0
	for _, signal := range engagementSignals {
		col := make([]float64, len(ids))
		present := false
		for i, id := range ids {
			if f, ok := toFloat(attrs[id][signal]); ok {
				col[i] = f
				present = true
			}
		}
		if !present {
			continue
		}
		minMaxNormalize(col)
		for i := range scores {
			scores[i] += col[i]
		}
		signalsUsed++
	}

	if signalsUsed == 0 {
		for i := range scores {
			scores[i] = 1.0
		}
		return scores
	}
	for i := range scores {
		scores[i] /= float64(signalsUsed)
	}
	return scores
}

// precomputeEmbeddings runs every mapped entity through its tower once and
// stores the L2-normalized embeddings for fast batched dot-product scoring.
func (r *Registry) precomputeEmbeddings() error {
	r.recipeEmbeddings = make([][]float64, r.recipeMapping.size())
	for idx, id := range r.recipeMapping.toID {
		emb, err := r.recipeTower.forward(r.recipeBuilder.Build(r.recipeAttrs[id]))
		if err != nil {
			return fmt.Errorf("recipe %d: %w", id, err)
		}
		l2Normalize(emb)
		r.recipeEmbeddings[idx] = emb
	}

	r.userEmbeddings = make([][]float64, r.userMapping.size())
	for idx, id := range r.userMapping.toID {
		emb, err := r.userTower.forward(r.userBuilder.Build(r.userAttrs[id]))
		if err != nil {
			return fmt.Errorf("user %d: %w", id, err)
		}
		l2Normalize(emb)
		r.userEmbeddings[idx] = emb
	}
	return nil
}

// UserEmbedding computes the query-side embedding for the given attributes.
func (r *Registry) UserEmbedding(attrs map[string]interface{}) ([]float64, error) {
	if r.userTower == nil {
		return nil, fmt.Errorf("two-tower model not loaded")
	}
	emb, err := r.userTower.forward(r.userBuilder.Build(attrs))
	if err != nil {
		return nil, err
	}
	l2Normalize(emb)
	return emb, nil
}

// RecipeEmbeddingByID returns the precomputed embedding for an external
// recipe ID, or nil when the recipe is outside the two-tower mapping.
func (r *Registry) RecipeEmbeddingByID(id int) []float64 {
	idx, ok := r.recipeMapping.index(id)
	if !ok || r.recipeEmbeddings == nil {
		return nil
	}
	return r.recipeEmbeddings[idx]
}

// UserAttrs returns the artifact attribute snapshot for a user, or nil.
func (r *Registry) UserAttrs(id int) map[string]interface{} {
	return r.userAttrs[id]
}

// RecipeAttrs returns the artifact attribute snapshot for a recipe, or nil.
func (r *Registry) RecipeAttrs(id int) map[string]interface{} {
	return r.recipeAttrs[id]
}

// RecipeTitle returns the title from the attribute snapshot, or "".
func (r *Registry) RecipeTitle(id int) string {
	if s, ok := r.recipeAttrs[id]["title"].(string); ok {
		return s
	}
	return ""
}

func (r *Registry) twoTowerLoaded() bool { return r.userTower != nil && r.recipeTower != nil }

func (r *Registry) alsLoaded() bool { return len(r.alsUserFactors) > 0 && len(r.alsItemFactors) > 0 }

// Status reports which models are loaded, for the health endpoint.
func (r *Registry) Status() Status {
	return Status{
		TwoTowerLoaded:        r.twoTowerLoaded(),
		ALSLoaded:             r.alsLoaded(),
		PopularityLoaded:      len(r.popularity) > 0,
		EmbeddingsPrecomputed: len(r.recipeEmbeddings) > 0,
		Version:               r.cfg.Version,
		TrainedAt:             r.cfg.TrainedAt,
	}
}

// buildMapping converts a JSON string-keyed ID table into a bidirectional
// mapping, verifying the indices form a dense 0..N-1 range.
func buildMapping(raw map[string]int) (*idMapping, error) {
	m := &idMapping{
		toIndex: make(map[int]int, len(raw)),
		toID:    make([]int, len(raw)),
	}
	seen := make([]bool, len(raw))
	for key, idx := range raw {
		id, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("non-integer ID %q", key)
		}
		if idx < 0 || idx >= len(raw) {
			return nil, fmt.Errorf("index %d out of range for %d entries", idx, len(raw))
		}
		if seen[idx] {
			return nil, fmt.Errorf("duplicate index %d", idx)
		}
		seen[idx] = true
		m.toIndex[id] = idx
		m.toID[idx] = id
	}
	return m, nil
}

// loadAttrTable reads an optional {id: attrs} table. A missing file yields
// an empty table.
func loadAttrTable(path string) (map[int]map[string]interface{}, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return map[int]map[string]interface{}{}, nil
	}
	var raw map[string]map[string]interface{}
	if err := readJSONFile(path, &raw); err != nil {
		return nil, err
	}
	table := make(map[int]map[string]interface{}, len(raw))
	for key, attrs := range raw {
		id, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("non-integer ID %q in %s", key, path)
		}
		table[id] = attrs
	}
	return table, nil
}

// loadScalers reads the optional per-entity-type scaler file.
func loadScalers(path string) (map[string]*feature.Scaler, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return map[string]*feature.Scaler{}, nil
	}
	var scalers map[string]*feature.Scaler
	if err := readJSONFile(path, &scalers); err != nil {
		return nil, err
	}
	return scalers, nil
}

func readJSONFile(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return nil
}

// toFloat coerces JSON numeric values to float64.
func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
