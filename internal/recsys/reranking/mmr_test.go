// Forkcast - Personalized Recipe Recommendation Service
// Copyright 2026 Forkcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/forkcast/forkcast

package reranking

import (
	"context"
	"math"
	"testing"
)

func TestNewMMR(t *testing.T) {
	tests := []struct {
		name       string
		lambda     float64
		wantLambda float64
	}{
		{"normal value", 0.3, 0.3},
		{"zero value", 0.0, 0.0},
		{"one value", 1.0, 1.0},
		{"negative clamped to zero", -0.5, 0.0},
		{"above one clamped to one", 1.5, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mmr := NewMMR(tt.lambda)
			if mmr == nil {
				t.Fatal("NewMMR() returned nil")
			}
			if mmr.Lambda() != tt.wantLambda {
				t.Errorf("Lambda() = %f, want %f", mmr.Lambda(), tt.wantLambda)
			}
		})
	}
}

func TestMMR_Rerank_IdentityWhenFewCandidates(t *testing.T) {
	candidates := []Candidate{
		{ID: 1, Score: 0.9},
		{ID: 2, Score: 0.5},
	}
	embeddings := map[int][]float64{
		1: {1, 0},
		2: {0, 1},
	}

	tests := []struct {
		name string
		topK int
	}{
		{"exactly topK", 2},
		{"fewer than topK", 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NewMMR(0.3).Rerank(context.Background(), candidates, embeddings, tt.topK)
			if len(result) != len(candidates) {
				t.Fatalf("len = %d, want %d", len(result), len(candidates))
			}
			for i := range result {
				if result[i].ID != candidates[i].ID || result[i].Score != candidates[i].Score {
					t.Errorf("result[%d] = %+v, want %+v", i, result[i], candidates[i])
				}
			}
		})
	}
}

func TestMMR_Rerank_TruncatesWithoutEmbeddings(t *testing.T) {
	candidates := []Candidate{
		{ID: 1, Score: 0.9},
		{ID: 2, Score: 0.8},
		{ID: 3, Score: 0.7},
		{ID: 4, Score: 0.6},
	}

	result := NewMMR(0.5).Rerank(context.Background(), candidates, nil, 2)
	if len(result) != 2 {
		t.Fatalf("len = %d, want 2", len(result))
	}
	if result[0].ID != 1 || result[1].ID != 2 {
		t.Errorf("got IDs [%d %d], want [1 2]", result[0].ID, result[1].ID)
	}
}

func TestMMR_Rerank_SeedsWithTopCandidate(t *testing.T) {
	candidates := []Candidate{
		{ID: 1, Score: 0.9},
		{ID: 2, Score: 0.8},
		{ID: 3, Score: 0.7},
	}
	embeddings := map[int][]float64{
		1: {1, 0},
		2: {1, 0},
		3: {0, 1},
	}

	// Even at lambda=1 the first selection is the relevance leader.
	result := NewMMR(1.0).Rerank(context.Background(), candidates, embeddings, 2)
	if result[0].ID != 1 {
		t.Errorf("first selected = %d, want 1", result[0].ID)
	}
}

func TestMMR_Rerank_PrefersDiverseCandidate(t *testing.T) {
	// ID 2 is a near-duplicate of the seed; ID 3 is orthogonal. With a
	// meaningful diversity weight the orthogonal candidate wins the second
	// slot despite lower relevance.
	candidates := []Candidate{
		{ID: 1, Score: 1.0},
		{ID: 2, Score: 0.95},
		{ID: 3, Score: 0.6},
		{ID: 4, Score: 0.5},
	}
	embeddings := map[int][]float64{
		1: {1, 0},
		2: {0.999, 0.04},
		3: {0, 1},
		4: {0.7, 0.7},
	}

	result := NewMMR(0.8).Rerank(context.Background(), candidates, embeddings, 2)
	if len(result) != 2 {
		t.Fatalf("len = %d, want 2", len(result))
	}
	if result[0].ID != 1 {
		t.Errorf("first selected = %d, want 1", result[0].ID)
	}
	if result[1].ID != 3 {
		t.Errorf("second selected = %d, want diverse candidate 3", result[1].ID)
	}
}

func TestMMR_Rerank_LambdaZeroKeepsRelevanceOrder(t *testing.T) {
	candidates := []Candidate{
		{ID: 1, Score: 1.0},
		{ID: 2, Score: 0.9},
		{ID: 3, Score: 0.8},
		{ID: 4, Score: 0.7},
	}
	embeddings := map[int][]float64{
		1: {1, 0},
		2: {1, 0},
		3: {1, 0},
		4: {0, 1},
	}

	result := NewMMR(0).Rerank(context.Background(), candidates, embeddings, 3)
	want := []int{1, 2, 3}
	for i, id := range want {
		if result[i].ID != id {
			t.Errorf("result[%d].ID = %d, want %d", i, result[i].ID, id)
		}
	}
}

func TestMMR_Rerank_MissingEmbeddingIsMaximallyNovel(t *testing.T) {
	// ID 3 has no embedding so its diversity term is fixed at 1.0, beating
	// the near-duplicate ID 2 under a high lambda.
	candidates := []Candidate{
		{ID: 1, Score: 1.0},
		{ID: 2, Score: 0.9},
		{ID: 3, Score: 0.3},
	}
	embeddings := map[int][]float64{
		1: {1, 0},
		2: {1, 0},
	}

	result := NewMMR(0.9).Rerank(context.Background(), candidates, embeddings, 2)
	if result[1].ID != 3 {
		t.Errorf("second selected = %d, want unembedded candidate 3", result[1].ID)
	}
}

func TestMMR_Rerank_EmptyInput(t *testing.T) {
	result := NewMMR(0.3).Rerank(context.Background(), nil, nil, 5)
	if len(result) != 0 {
		t.Errorf("len = %d, want 0", len(result))
	}
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{"identical", []float64{1, 0}, []float64{1, 0}, 1.0},
		{"orthogonal", []float64{1, 0}, []float64{0, 1}, 0.0},
		{"opposite", []float64{1, 0}, []float64{-1, 0}, -1.0},
		{"mismatched length", []float64{1, 0}, []float64{1}, 0.0},
		{"empty", nil, nil, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cosine(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("cosine() = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	t.Run("spreads to unit range", func(t *testing.T) {
		scores := []float64{2, 4, 6}
		normalize(scores)
		if scores[0] != 0 {
			t.Errorf("min = %f, want 0", scores[0])
		}
		if math.Abs(scores[2]-1) > 1e-6 {
			t.Errorf("max = %f, want ~1", scores[2])
		}
	})

	t.Run("all equal maps to zeros", func(t *testing.T) {
		scores := []float64{5, 5, 5}
		normalize(scores)
		for i, s := range scores {
			if s != 0 {
				t.Errorf("scores[%d] = %f, want 0", i, s)
			}
		}
	})
}
