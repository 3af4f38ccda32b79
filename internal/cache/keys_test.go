// Forkcast - Personalized Recipe Recommendation Service
// Copyright 2026 Forkcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/forkcast/forkcast

package cache

import (
	"strings"
	"testing"
)

func TestBuildKey_Deterministic(t *testing.T) {
	params := map[string]interface{}{
		"top_k":     10,
		"diversity": true,
		"lambda":    0.3,
	}

	first := BuildKey("recommendations:user:42", params)
	for i := 0; i < 20; i++ {
		if got := BuildKey("recommendations:user:42", params); got != first {
			t.Fatalf("key not deterministic: %q vs %q", got, first)
		}
	}
}

func TestBuildKey_SortedParams(t *testing.T) {
	key := BuildKey("recommendations:user:42", map[string]interface{}{
		"top_k":     10,
		"diversity": true,
	})
	want := "recommendations:user:42:diversity:true:top_k:10"
	if key != want {
		t.Errorf("key = %q, want %q", key, want)
	}
}

func TestBuildKey_CompositeValuesHashed(t *testing.T) {
	key := BuildKey("recommendations:user:42", map[string]interface{}{
		"exclude": []int{1, 2, 3},
	})
	parts := strings.Split(key, ":")
	hash := parts[len(parts)-1]
	if len(hash) != 8 {
		t.Errorf("composite value digest %q, want 8 hex chars", hash)
	}

	other := BuildKey("recommendations:user:42", map[string]interface{}{
		"exclude": []int{1, 2, 4},
	})
	if other == key {
		t.Error("different slices produced identical keys")
	}
}

func TestBuildKey_NilValue(t *testing.T) {
	key := BuildKey("p", map[string]interface{}{"filters": nil})
	if key != "p:filters:none" {
		t.Errorf("key = %q, want %q", key, "p:filters:none")
	}
}

func TestUserKeyPattern(t *testing.T) {
	if got := UserKeyPattern(42); got != "recommendations:user:42:*" {
		t.Errorf("UserKeyPattern() = %q", got)
	}
}

func TestAllKeysPattern(t *testing.T) {
	if got := AllKeysPattern(); got != "recommendations:*" {
		t.Errorf("AllKeysPattern() = %q", got)
	}
}

func TestKeyScopedUnderUserPattern(t *testing.T) {
	// Keys built on the per-user prefix must be reachable by the user
	// invalidation glob.
	key := BuildKey("recommendations:user:42", map[string]interface{}{"top_k": 10})
	if !strings.HasPrefix(key, "recommendations:user:42:") {
		t.Errorf("key %q escapes the user invalidation scope", key)
	}
}
