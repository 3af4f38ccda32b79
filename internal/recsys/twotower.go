// Forkcast - Personalized Recipe Recommendation Service
// Copyright 2026 Forkcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/forkcast/forkcast

package recsys

import "context"

// AttrsFunc supplies current attributes for a user, or nil when none are
// available. It must never fail: attribute lookup problems degrade to the
// artifact snapshot, then to schema defaults.
type AttrsFunc func(ctx context.Context, userID int) map[string]interface{}

// TwoTower scores the precomputed candidate embeddings against a query
// embedding computed on demand, via a single batched dot product over the
// shared inner-product space.
type TwoTower struct {
	reg   *Registry
	attrs AttrsFunc
}

// NewTwoTower creates the tower-pair strategy. attrs may be nil, in which
// case query embeddings come from the precomputed table.
func NewTwoTower(reg *Registry, attrs AttrsFunc) *TwoTower {
	return &TwoTower{reg: reg, attrs: attrs}
}

func (t *TwoTower) Name() string { return ModelTwoTower }

func (t *TwoTower) Recommend(ctx context.Context, userID, topK int, exclude map[int]struct{}) ([]int, []float64, error) {
	idx, ok := t.reg.userMapping.index(userID)
	if !ok {
		return nil, nil, ErrNotFound
	}
	if len(t.reg.recipeEmbeddings) == 0 {
		return nil, nil, inferenceErr(ModelTwoTower, "recipe embeddings not precomputed")
	}

	queryEmb, err := t.queryEmbedding(ctx, userID, idx)
	if err != nil {
		return nil, nil, err
	}

	scores := make([]float64, len(t.reg.recipeEmbeddings))
	for i, emb := range t.reg.recipeEmbeddings {
		scores[i] = dot(queryEmb, emb)
	}

	selected := topKIndices(scores, topK, func(i int) bool {
		_, excluded := exclude[t.reg.recipeMapping.toID[i]]
		return excluded
	})

	ids := make([]int, len(selected))
	ranked := make([]float64, len(selected))
	for i, s := range selected {
		ids[i] = t.reg.recipeMapping.toID[s]
		ranked[i] = scores[s]
	}
	minMaxNormalize(ranked)
	return ids, ranked, nil
}

// queryEmbedding computes the user's embedding from current attributes,
// falling back to the artifact snapshot and finally to the precomputed row.
func (t *TwoTower) queryEmbedding(ctx context.Context, userID, idx int) ([]float64, error) {
	var attrs map[string]interface{}
	if t.attrs != nil {
		attrs = t.attrs(ctx, userID)
	}
	if attrs == nil {
		attrs = t.reg.UserAttrs(userID)
	}
	if attrs == nil && len(t.reg.userEmbeddings) > idx {
		return t.reg.userEmbeddings[idx], nil
	}

	emb, err := t.reg.UserEmbedding(attrs)
	if err != nil {
		return nil, inferenceErr(ModelTwoTower, "query embedding: %v", err)
	}
	return emb, nil
}

var _ Strategy = (*TwoTower)(nil)
