// Forkcast - Personalized Recipe Recommendation Service
// Copyright 2026 Forkcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/forkcast/forkcast

package recsys

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/forkcast/forkcast/internal/metrics"
)

// Orchestrator runs the strategies in strict priority order, recovering
// per-strategy failures by falling through to the next one. With the
// popularity strategy last, the chain cannot fail on a non-empty catalog.
type Orchestrator struct {
	strategies []Strategy
	logger     zerolog.Logger
}

// NewOrchestrator creates a fallback chain over the given strategies, tried
// in slice order.
func NewOrchestrator(logger zerolog.Logger, strategies ...Strategy) *Orchestrator {
	return &Orchestrator{strategies: strategies, logger: logger}
}

// Recommend attempts each strategy until one succeeds and returns its
// ranked IDs, normalized scores and the winning strategy name.
//
// A NotFound from one strategy is expected (the user may simply be outside
// that model's training population) and logged at warn; an inference error
// is logged at error with a per-strategy failure metric. Either advances
// the chain.
func (o *Orchestrator) Recommend(ctx context.Context, userID, topK int, exclude map[int]struct{}) ([]int, []float64, string, error) {
	if len(o.strategies) == 0 {
		return nil, nil, "", ErrNoStrategies
	}

	var lastErr error
	for _, strategy := range o.strategies {
		start := time.Now()
		ids, scores, err := strategy.Recommend(ctx, userID, topK, exclude)
		metrics.InferenceDuration.WithLabelValues(strategy.Name()).Observe(time.Since(start).Seconds())

		if err == nil {
			return ids, scores, strategy.Name(), nil
		}
		lastErr = err

		if errors.Is(err, ErrNotFound) {
			o.logger.Warn().
				Int("user_id", userID).
				Str("model", strategy.Name()).
				Msg("user not in model mapping, trying next strategy")
			continue
		}

		metrics.ModelFailures.WithLabelValues(strategy.Name()).Inc()
		o.logger.Error().
			Err(err).
			Int("user_id", userID).
			Str("model", strategy.Name()).
			Msg("strategy inference failed, trying next strategy")
	}

	return nil, nil, "", lastErr
}
