// Forkcast - Personalized Recipe Recommendation Service
// Copyright 2026 Forkcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/forkcast/forkcast

package recsys

import "math"

// scoreEpsilon guards min-max and cosine denominators against division by zero.
const scoreEpsilon = 1e-8

// minMaxNormalize rescales scores to [0,1] in place using the slice's own
// min and max. When all scores are equal the epsilon denominator maps them
// all to zero.
func minMaxNormalize(scores []float64) {
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
	span := hi - lo + scoreEpsilon
	for i, s := range scores {
		scores[i] = (s - lo) / span
	}
}

// dot returns the inner product of two equal-length vectors.
func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// cosineSimilarity returns the cosine of the angle between a and b, with
// epsilon-guarded denominators. Mismatched or empty vectors score 0.
func cosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dotProd, normA, normB float64
	for i := range a {
		dotProd += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	return dotProd / (math.Sqrt(normA)*math.Sqrt(normB) + scoreEpsilon)
}

// l2Normalize scales v to unit length in place. Zero vectors are left as-is.
func l2Normalize(v []float64) {
	var norm float64
	for _, x := range v {
		norm += x * x
	}
	norm = math.Sqrt(norm)
	if norm < scoreEpsilon {
		return
	}
	for i := range v {
		v[i] /= norm
	}
}

// topKIndices returns the indices of the k largest scores in descending
// score order, skipping indices for which skip returns true. Ties keep the
// lower index first.
func topKIndices(scores []float64, k int, skip func(i int) bool) []int {
	idx := make([]int, 0, len(scores))
	for i := range scores {
		if skip == nil || !skip(i) {
			idx = append(idx, i)
		}
	}
	// Partial selection sort: k is small (<= 300) relative to candidates.
	if k > len(idx) {
		k = len(idx)
	}
	for i := 0; i < k; i++ {
		best := i
		for j := i + 1; j < len(idx); j++ {
			if scores[idx[j]] > scores[idx[best]] {
				best = j
			}
		}
		idx[i], idx[best] = idx[best], idx[i]
	}
	return idx[:k]
}
