// Forkcast - Personalized Recipe Recommendation Service
// Copyright 2026 Forkcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/forkcast/forkcast

package recsys

import "context"

// Popularity serves the global popularity table. It has no query entity
// requirement and never fails while the table is non-empty, making it the
// guaranteed terminal strategy of the fallback chain and the basis for
// cold-start recommendations.
type Popularity struct {
	reg *Registry
}

// NewPopularity creates the popularity strategy.
func NewPopularity(reg *Registry) *Popularity {
	return &Popularity{reg: reg}
}

func (p *Popularity) Name() string { return ModelPopularity }

func (p *Popularity) Recommend(_ context.Context, _ int, topK int, exclude map[int]struct{}) ([]int, []float64, error) {
	if len(p.reg.popularity) == 0 {
		return nil, nil, inferenceErr(ModelPopularity, "popularity table is empty")
	}

	ids := make([]int, 0, topK)
	scores := make([]float64, 0, topK)
	for _, entry := range p.reg.popularity {
		if _, excluded := exclude[entry.id]; excluded {
			continue
		}
		ids = append(ids, entry.id)
		scores = append(scores, entry.score)
		if len(ids) == topK {
			break
		}
	}
	minMaxNormalize(scores)
	return ids, scores, nil
}

var _ Strategy = (*Popularity)(nil)
