// Forkcast - Personalized Recipe Recommendation Service
// Copyright 2026 Forkcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/forkcast/forkcast

package recsys

import "context"

// ALS scores candidates as the dot product of the query user's latent
// factor vector against all item factor vectors. Its ID mappings may cover
// a different population than the two-tower model, so a user absent there
// can still be served here.
type ALS struct {
	reg *Registry
}

// NewALS creates the factor-model strategy.
func NewALS(reg *Registry) *ALS {
	return &ALS{reg: reg}
}

func (a *ALS) Name() string { return ModelALS }

func (a *ALS) Recommend(_ context.Context, userID, topK int, exclude map[int]struct{}) ([]int, []float64, error) {
	idx, ok := a.reg.alsUserMapping.index(userID)
	if !ok {
		return nil, nil, ErrNotFound
	}
	if len(a.reg.alsItemFactors) == 0 {
		return nil, nil, inferenceErr(ModelALS, "item factors not loaded")
	}

	userFactors := a.reg.alsUserFactors[idx]
	scores := make([]float64, len(a.reg.alsItemFactors))
	for i, itemFactors := range a.reg.alsItemFactors {
		if len(itemFactors) != len(userFactors) {
			return nil, nil, inferenceErr(ModelALS, "factor dim mismatch: user %d, item %d",
				len(userFactors), len(itemFactors))
		}
		scores[i] = dot(userFactors, itemFactors)
	}

	selected := topKIndices(scores, topK, func(i int) bool {
		_, excluded := exclude[a.reg.alsItemMapping.toID[i]]
		return excluded
	})

	ids := make([]int, len(selected))
	ranked := make([]float64, len(selected))
	for i, s := range selected {
		ids[i] = a.reg.alsItemMapping.toID[s]
		ranked[i] = scores[s]
	}
	minMaxNormalize(ranked)
	return ids, ranked, nil
}

var _ Strategy = (*ALS)(nil)
