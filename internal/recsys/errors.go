// Forkcast - Personalized Recipe Recommendation Service
// Copyright 2026 Forkcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/forkcast/forkcast

package recsys

import (
	"errors"
	"fmt"
)

// ErrNotFound signals that the query entity is absent from a strategy's ID
// mapping. The fallback orchestrator recovers it by advancing to the next
// strategy; it only reaches API clients from operations with no fallback
// (similar users, similar recipes).
var ErrNotFound = errors.New("entity not found in model mapping")

// ErrNoStrategies is returned when the orchestrator has nothing to try.
// It indicates a total-system misconfiguration (not even a popularity table)
// and is allowed to propagate as a hard failure.
var ErrNoStrategies = errors.New("no recommendation strategies available")

// InferenceError wraps an internal computation failure in one strategy.
// It triggers fallback rather than failing the request.
type InferenceError struct {
	Strategy string
	Err      error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("%s inference failed: %v", e.Strategy, e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }

// inferenceErr builds an InferenceError for the given strategy.
func inferenceErr(strategy string, format string, args ...interface{}) error {
	return &InferenceError{Strategy: strategy, Err: fmt.Errorf(format, args...)}
}

// IsNotFound reports whether err is a missing-entity condition.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
