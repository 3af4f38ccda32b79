// Forkcast - Personalized Recipe Recommendation Service
// Copyright 2026 Forkcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/forkcast/forkcast

// Package events consumes upstream interaction events and translates them
// into cache invalidation. It never touches model state: invalidation goes
// through the same contract as the synchronous sync endpoints.
package events

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/forkcast/forkcast/internal/metrics"
)

// Event is one interaction record from the stream.
type Event struct {
	UserID          int    `json:"user_id"`
	RecipeID        int    `json:"recipe_id"`
	InteractionType string `json:"interaction_type"`
	Timestamp       string `json:"timestamp"`
}

// Invalidator is the cache invalidation contract shared with the sync
// endpoints.
type Invalidator interface {
	InvalidateUser(ctx context.Context, userID int) (int, error)
	InvalidateRecipe(ctx context.Context, recipeID int) (int, error)
}

// reader abstracts kafka.Reader for testing.
type reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Config holds consumer settings.
type Config struct {
	Brokers   []string
	Topic     string
	GroupID   string
	QueueSize int
}

// Consumer reads interaction events and invalidates affected cache entries.
// A fetch goroutine pushes decoded events onto a buffered channel; Serve's
// worker drains it and performs the invalidation calls, so slow cache
// backends never stall the Kafka fetch loop.
type Consumer struct {
	reader      reader
	invalidator Invalidator
	queue       chan Event
	logger      zerolog.Logger
	running     atomic.Bool
}

// NewConsumer creates a consumer connected to the given brokers.
func NewConsumer(cfg Config, invalidator Invalidator, logger zerolog.Logger) *Consumer {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.Topic,
		GroupID:        cfg.GroupID,
		MinBytes:       1,
		MaxBytes:       10 << 20,
		CommitInterval: time.Second,
		StartOffset:    kafka.LastOffset,
	})
	return newConsumer(r, invalidator, cfg.QueueSize, logger)
}

func newConsumer(r reader, invalidator Invalidator, queueSize int, logger zerolog.Logger) *Consumer {
	return &Consumer{
		reader:      r,
		invalidator: invalidator,
		queue:       make(chan Event, queueSize),
		logger:      logger.With().Str("component", "events").Logger(),
	}
}

// Running reports whether the consumer is actively serving, for the health
// endpoint.
func (c *Consumer) Running() bool {
	return c.running.Load()
}

// Serve runs the consumer until ctx is cancelled. It implements
// suture.Service; a returned error triggers a supervised restart with
// backoff, so broker unavailability is never fatal to the process.
func (c *Consumer) Serve(ctx context.Context) error {
	c.running.Store(true)
	defer c.running.Store(false)

	workerCtx, cancelWorker := context.WithCancel(context.Background())
	defer cancelWorker()
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.invalidationWorker(workerCtx)
	}()

	c.logger.Info().Msg("interaction event consumer started")
	err := c.fetchLoop(ctx)

	cancelWorker()
	<-done
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// fetchLoop reads and decodes messages, pushing them onto the queue.
func (c *Consumer) fetchLoop(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Error().Err(err).Msg("fetching interaction event failed")
			metrics.Errors.WithLabelValues("events").Inc()
			return err
		}

		var event Event
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			c.logger.Warn().Err(err).Int64("offset", msg.Offset).Msg("skipping malformed interaction event")
			metrics.EventsProcessed.WithLabelValues("skipped").Inc()
		} else {
			select {
			case c.queue <- event:
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error().Err(err).Msg("committing interaction event failed")
		}
	}
}

// invalidationWorker drains the queue and performs the cache invalidation
// calls. Invalidation failures are already logged and metered by the
// engine; the worker just records the outcome.
func (c *Consumer) invalidationWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-c.queue:
			c.handle(ctx, event)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, event Event) {
	if event.UserID <= 0 {
		metrics.EventsProcessed.WithLabelValues("skipped").Inc()
		return
	}

	failed := false
	if _, err := c.invalidator.InvalidateUser(ctx, event.UserID); err != nil {
		failed = true
	}
	// Any interaction moves the engagement signals behind the derived
	// popularity table, so a present recipe_id always invalidates the
	// recipe-scoped entries too.
	if event.RecipeID > 0 {
		if _, err := c.invalidator.InvalidateRecipe(ctx, event.RecipeID); err != nil {
			failed = true
		}
	}

	if failed {
		metrics.EventsProcessed.WithLabelValues("failed").Inc()
		return
	}
	metrics.EventsProcessed.WithLabelValues("processed").Inc()
	c.logger.Debug().
		Int("user_id", event.UserID).
		Str("type", event.InteractionType).
		Msg("interaction event processed")
}

// Close releases the underlying Kafka reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}

// String names the service in supervisor logs.
func (c *Consumer) String() string { return "interaction-event-consumer" }
