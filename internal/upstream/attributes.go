// Forkcast - Personalized Recipe Recommendation Service
// Copyright 2026 Forkcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/forkcast/forkcast

// Package upstream provides clients for the backend system owning the
// canonical entity data. Calls are timeout-bounded and wrapped in a circuit
// breaker; every failure degrades to local defaults rather than failing a
// recommendation request.
package upstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"github.com/forkcast/forkcast/internal/recsys"
)

// AttributeClient fetches current user attributes over HTTP.
type AttributeClient struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[map[string]interface{}]
	logger  zerolog.Logger
}

// NewAttributeClient creates the client. timeout bounds each request; the
// breaker opens after repeated failures so a dead upstream costs nothing
// per request.
func NewAttributeClient(baseURL string, timeout time.Duration, logger zerolog.Logger) *AttributeClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	c := &AttributeClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger.With().Str("component", "upstream").Logger(),
	}
	c.breaker = gobreaker.NewCircuitBreaker[map[string]interface{}](gobreaker.Settings{
		Name:    "user-attributes",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state change")
		},
	})
	return c
}

// GetUserAttributes fetches the user's attribute dictionary. Any failure
// (timeout, open breaker, non-200, bad payload) is returned as an error;
// callers degrade to the artifact snapshot.
func (c *AttributeClient) GetUserAttributes(ctx context.Context, userID int) (map[string]interface{}, error) {
	return c.breaker.Execute(func() (map[string]interface{}, error) {
		return c.fetch(ctx, userID)
	})
}

func (c *AttributeClient) fetch(ctx context.Context, userID int) (map[string]interface{}, error) {
	url := fmt.Sprintf("%s/api/users/%d/features", c.baseURL, userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("attribute service returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	var attrs map[string]interface{}
	if err := json.Unmarshal(body, &attrs); err != nil {
		return nil, fmt.Errorf("decoding attributes: %w", err)
	}
	return attrs, nil
}

var _ recsys.AttributeClient = (*AttributeClient)(nil)
