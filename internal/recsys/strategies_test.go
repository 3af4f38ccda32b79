// Forkcast - Personalized Recipe Recommendation Service
// Copyright 2026 Forkcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/forkcast/forkcast

package recsys

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/rs/zerolog"
)

// popularityRegistry builds a registry with only a popularity table.
func popularityRegistry(entries ...popEntry) *Registry {
	byID := make(map[int]float64, len(entries))
	for _, e := range entries {
		byID[e.id] = e.score
	}
	return &Registry{popularity: entries, popularityByID: byID, logger: zerolog.Nop()}
}

func TestPopularity_Recommend(t *testing.T) {
	reg := popularityRegistry(
		popEntry{id: 10, score: 0.9},
		popEntry{id: 20, score: 0.5},
		popEntry{id: 30, score: 0.1},
	)
	strategy := NewPopularity(reg)

	t.Run("excluded id is skipped", func(t *testing.T) {
		ids, scores, err := strategy.Recommend(context.Background(), 1, 2, map[int]struct{}{10: {}})
		if err != nil {
			t.Fatalf("Recommend() error = %v", err)
		}
		if len(ids) != 2 || ids[0] != 20 || ids[1] != 30 {
			t.Errorf("ids = %v, want [20 30]", ids)
		}
		// Normalized over the returned slice: max maps to ~1, min to 0.
		if math.Abs(scores[0]-1) > 1e-6 {
			t.Errorf("scores[0] = %f, want ~1", scores[0])
		}
		if scores[1] != 0 {
			t.Errorf("scores[1] = %f, want 0", scores[1])
		}
	})

	t.Run("topK larger than table", func(t *testing.T) {
		ids, _, err := strategy.Recommend(context.Background(), 1, 10, nil)
		if err != nil {
			t.Fatalf("Recommend() error = %v", err)
		}
		if len(ids) != 3 {
			t.Errorf("len = %d, want 3", len(ids))
		}
	})

	t.Run("empty table is an inference error", func(t *testing.T) {
		_, _, err := NewPopularity(popularityRegistry()).Recommend(context.Background(), 1, 5, nil)
		var infErr *InferenceError
		if !errors.As(err, &infErr) {
			t.Fatalf("error = %v, want InferenceError", err)
		}
	})
}

func TestALS_Recommend(t *testing.T) {
	reg := &Registry{
		logger:         zerolog.Nop(),
		alsUserMapping: &idMapping{toIndex: map[int]int{100: 0}, toID: []int{100}},
		alsItemMapping: &idMapping{toIndex: map[int]int{1: 0, 2: 1, 3: 2}, toID: []int{1, 2, 3}},
		alsUserFactors: [][]float64{{1, 0}},
		alsItemFactors: [][]float64{{0.2, 0}, {0.9, 0}, {0.5, 0}},
	}
	strategy := NewALS(reg)

	t.Run("ranks by factor dot product", func(t *testing.T) {
		ids, scores, err := strategy.Recommend(context.Background(), 100, 3, nil)
		if err != nil {
			t.Fatalf("Recommend() error = %v", err)
		}
		want := []int{2, 3, 1}
		for i := range want {
			if ids[i] != want[i] {
				t.Errorf("ids[%d] = %d, want %d", i, ids[i], want[i])
			}
		}
		if math.Abs(scores[0]-1) > 1e-6 || scores[2] != 0 {
			t.Errorf("scores = %v, want [~1 _ 0]", scores)
		}
	})

	t.Run("exclusion never reaches results", func(t *testing.T) {
		ids, _, err := strategy.Recommend(context.Background(), 100, 3, map[int]struct{}{2: {}})
		if err != nil {
			t.Fatalf("Recommend() error = %v", err)
		}
		for _, id := range ids {
			if id == 2 {
				t.Error("excluded id 2 present in results")
			}
		}
	})

	t.Run("unmapped user is not found", func(t *testing.T) {
		_, _, err := strategy.Recommend(context.Background(), 999, 3, nil)
		if !IsNotFound(err) {
			t.Errorf("error = %v, want ErrNotFound", err)
		}
	})

	t.Run("factor dim mismatch is an inference error", func(t *testing.T) {
		broken := &Registry{
			logger:         zerolog.Nop(),
			alsUserMapping: reg.alsUserMapping,
			alsItemMapping: reg.alsItemMapping,
			alsUserFactors: [][]float64{{1, 0, 0}},
			alsItemFactors: reg.alsItemFactors,
		}
		_, _, err := NewALS(broken).Recommend(context.Background(), 100, 3, nil)
		var infErr *InferenceError
		if !errors.As(err, &infErr) {
			t.Fatalf("error = %v, want InferenceError", err)
		}
		if infErr.Strategy != ModelALS {
			t.Errorf("strategy = %q, want %q", infErr.Strategy, ModelALS)
		}
	})
}

func TestTwoTower_Recommend(t *testing.T) {
	// Precomputed embeddings only: user 100 points at (1,0), so recipe 1
	// outranks recipe 2 outranks recipe 3.
	reg := &Registry{
		logger:        zerolog.Nop(),
		userMapping:   &idMapping{toIndex: map[int]int{100: 0}, toID: []int{100}},
		recipeMapping: &idMapping{toIndex: map[int]int{1: 0, 2: 1, 3: 2}, toID: []int{1, 2, 3}},
		userEmbeddings: [][]float64{
			{1, 0},
		},
		recipeEmbeddings: [][]float64{
			{0.95, 0.1},
			{0.5, 0.5},
			{0, 1},
		},
	}
	strategy := NewTwoTower(reg, nil)

	t.Run("ranks by embedding dot product", func(t *testing.T) {
		ids, scores, err := strategy.Recommend(context.Background(), 100, 2, nil)
		if err != nil {
			t.Fatalf("Recommend() error = %v", err)
		}
		if len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
			t.Errorf("ids = %v, want [1 2]", ids)
		}
		for _, s := range scores {
			if s < 0 || s > 1 {
				t.Errorf("score %f outside [0,1]", s)
			}
		}
	})

	t.Run("exclusion is respected", func(t *testing.T) {
		ids, _, err := strategy.Recommend(context.Background(), 100, 2, map[int]struct{}{1: {}})
		if err != nil {
			t.Fatalf("Recommend() error = %v", err)
		}
		if ids[0] != 2 {
			t.Errorf("ids[0] = %d, want 2", ids[0])
		}
	})

	t.Run("unmapped user is not found", func(t *testing.T) {
		_, _, err := strategy.Recommend(context.Background(), 999, 2, nil)
		if !IsNotFound(err) {
			t.Errorf("error = %v, want ErrNotFound", err)
		}
	})
}

// stubStrategy is a canned Strategy for orchestrator tests.
type stubStrategy struct {
	name   string
	ids    []int
	scores []float64
	err    error
	calls  int
}

func (s *stubStrategy) Name() string { return s.name }

func (s *stubStrategy) Recommend(context.Context, int, int, map[int]struct{}) ([]int, []float64, error) {
	s.calls++
	return s.ids, s.scores, s.err
}

func TestOrchestrator_Recommend(t *testing.T) {
	t.Run("first success wins", func(t *testing.T) {
		first := &stubStrategy{name: ModelTwoTower, ids: []int{1}, scores: []float64{1}}
		second := &stubStrategy{name: ModelPopularity, ids: []int{9}, scores: []float64{1}}
		o := NewOrchestrator(zerolog.Nop(), first, second)

		ids, _, model, err := o.Recommend(context.Background(), 1, 5, nil)
		if err != nil {
			t.Fatalf("Recommend() error = %v", err)
		}
		if model != ModelTwoTower {
			t.Errorf("model = %q, want %q", model, ModelTwoTower)
		}
		if ids[0] != 1 {
			t.Errorf("ids = %v, want [1]", ids)
		}
		if second.calls != 0 {
			t.Error("second strategy called despite first succeeding")
		}
	})

	t.Run("not-found advances the chain", func(t *testing.T) {
		first := &stubStrategy{name: ModelTwoTower, err: ErrNotFound}
		second := &stubStrategy{name: ModelALS, ids: []int{7}, scores: []float64{1}}
		o := NewOrchestrator(zerolog.Nop(), first, second)

		_, _, model, err := o.Recommend(context.Background(), 1, 5, nil)
		if err != nil {
			t.Fatalf("Recommend() error = %v", err)
		}
		if model != ModelALS {
			t.Errorf("model = %q, want %q", model, ModelALS)
		}
	})

	t.Run("inference error advances the chain", func(t *testing.T) {
		first := &stubStrategy{name: ModelTwoTower, err: inferenceErr(ModelTwoTower, "boom")}
		second := &stubStrategy{name: ModelPopularity, ids: []int{3}, scores: []float64{1}}
		o := NewOrchestrator(zerolog.Nop(), first, second)

		_, _, model, err := o.Recommend(context.Background(), 1, 5, nil)
		if err != nil {
			t.Fatalf("Recommend() error = %v", err)
		}
		if model != ModelPopularity {
			t.Errorf("model = %q, want %q", model, ModelPopularity)
		}
	})

	t.Run("all failing returns last error", func(t *testing.T) {
		first := &stubStrategy{name: ModelTwoTower, err: ErrNotFound}
		second := &stubStrategy{name: ModelALS, err: inferenceErr(ModelALS, "bad factors")}
		o := NewOrchestrator(zerolog.Nop(), first, second)

		_, _, _, err := o.Recommend(context.Background(), 1, 5, nil)
		var infErr *InferenceError
		if !errors.As(err, &infErr) {
			t.Fatalf("error = %v, want the last InferenceError", err)
		}
	})

	t.Run("no strategies", func(t *testing.T) {
		o := NewOrchestrator(zerolog.Nop())
		_, _, _, err := o.Recommend(context.Background(), 1, 5, nil)
		if !errors.Is(err, ErrNoStrategies) {
			t.Errorf("error = %v, want ErrNoStrategies", err)
		}
	})
}
