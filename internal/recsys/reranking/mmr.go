// Forkcast - Personalized Recipe Recommendation Service
// Copyright 2026 Forkcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/forkcast/forkcast

// Package reranking provides diversity-aware re-ranking of relevance-ordered
// candidate lists.
package reranking

import (
	"context"
	"math"

	"github.com/forkcast/forkcast/internal/metrics"
)

const epsilon = 1e-8

// Candidate is one (recipe, relevance) pair entering re-ranking.
type Candidate struct {
	ID    int
	Score float64
}

// MMR implements Maximal Marginal Relevance re-ranking over candidate
// embeddings. Given an over-fetched, relevance-sorted candidate list it
// greedily re-selects a topK subset trading off relevance against novelty
// relative to the already-selected items:
//
//	mmr = (1 - lambda) * relevance + lambda * diversity
//	diversity = 1 - max(cosine(candidate, selected))
//
// lambda=0 reduces to pure relevance ranking; lambda=1 selects purely for
// novelty. The greedy loop is O(topK * len(candidates)), acceptable since
// candidates are bounded by the over-fetch factor.
type MMR struct {
	lambda float64
}

// NewMMR creates an MMR re-ranker with the given diversity weight.
// Lambda is clamped to [0, 1].
func NewMMR(lambda float64) *MMR {
	if lambda < 0 {
		lambda = 0
	}
	if lambda > 1 {
		lambda = 1
	}
	return &MMR{lambda: lambda}
}

// Lambda returns the configured diversity weight.
func (m *MMR) Lambda() float64 { return m.lambda }

// Rerank selects topK candidates balancing relevance and diversity.
// candidates must already be sorted by descending relevance.
//
// Degenerate inputs pass through unchanged: when len(candidates) <= topK
// the input is returned as-is (same order, same scores), and when no
// candidate has an embedding the list is truncated to topK without
// re-ranking. Candidates lacking an embedding during selection are treated
// as maximally novel.
func (m *MMR) Rerank(ctx context.Context, candidates []Candidate, embeddings map[int][]float64, topK int) []Candidate {
	if topK <= 0 || len(candidates) <= topK {
		return candidates
	}
	if !anyEmbedded(candidates, embeddings) {
		return candidates[:topK]
	}

	relevance := make([]float64, len(candidates))
	for i, c := range candidates {
		relevance[i] = c.Score
	}
	normalize(relevance)

	// Seed with the highest-relevance candidate: index 0 of the
	// relevance-sorted input.
	selected := make([]Candidate, 0, topK)
	selected = append(selected, candidates[0])
	remaining := make([]int, 0, len(candidates)-1)
	for i := 1; i < len(candidates); i++ {
		remaining = append(remaining, i)
	}

	for len(selected) < topK && len(remaining) > 0 {
		bestPos := -1
		bestScore := math.Inf(-1)

		for pos, ci := range remaining {
			diversity := 1.0
			if emb, ok := embeddings[candidates[ci].ID]; ok {
				maxSim := math.Inf(-1)
				for _, s := range selected {
					if selEmb, ok := embeddings[s.ID]; ok {
						if sim := cosine(emb, selEmb); sim > maxSim {
							maxSim = sim
						}
					}
				}
				if !math.IsInf(maxSim, -1) {
					diversity = 1 - maxSim
				}
			}

			score := (1-m.lambda)*relevance[ci] + m.lambda*diversity
			// Strict > keeps input order on ties.
			if score > bestScore {
				bestScore = score
				bestPos = pos
			}
		}

		selected = append(selected, candidates[remaining[bestPos]])
		remaining = append(remaining[:bestPos], remaining[bestPos+1:]...)
	}

	metrics.DiversityScore.Observe(meanDissimilarity(selected, embeddings))
	return selected
}

// anyEmbedded reports whether at least one candidate has an embedding.
func anyEmbedded(candidates []Candidate, embeddings map[int][]float64) bool {
	for _, c := range candidates {
		if _, ok := embeddings[c.ID]; ok {
			return true
		}
	}
	return false
}

// meanDissimilarity returns 1 - avg(cosine) over all selected pairs with
// embeddings, for monitoring diversity drift. A selection with fewer than
// two embedded items scores a neutral 0.
func meanDissimilarity(selected []Candidate, embeddings map[int][]float64) float64 {
	var sum float64
	pairs := 0
	for i := 0; i < len(selected); i++ {
		embI, ok := embeddings[selected[i].ID]
		if !ok {
			continue
		}
		for j := i + 1; j < len(selected); j++ {
			if embJ, ok := embeddings[selected[j].ID]; ok {
				sum += cosine(embI, embJ)
				pairs++
			}
		}
	}
	if pairs == 0 {
		return 0
	}
	return 1 - sum/float64(pairs)
}

// normalize rescales scores to [0,1] in place with an epsilon-guarded
// denominator; all-equal inputs map to all zeros.
func normalize(scores []float64) {
	if len(scores) == 0 {
		return
	}
	lo, hi := scores[0], scores[0]
	for _, s := range scores[1:] {
		if s < lo {
			lo = s
		}
		if s > hi {
			hi = s
		}
	}
	span := hi - lo + epsilon
	for i, s := range scores {
		scores[i] = (s - lo) / span
	}
}

// cosine returns the cosine similarity of two vectors with epsilon-guarded
// denominators. Mismatched or empty vectors score 0.
func cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	return dot / (math.Sqrt(normA)*math.Sqrt(normB) + epsilon)
}
