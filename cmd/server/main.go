// Forkcast - Personalized Recipe Recommendation Service
// Copyright 2026 Forkcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/forkcast/forkcast

// Command server runs the Forkcast recommendation API: it loads the
// pretrained model artifacts, wires the cache, metadata store and event
// consumer, and serves HTTP under suture supervision.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/forkcast/forkcast/internal/api"
	"github.com/forkcast/forkcast/internal/cache"
	"github.com/forkcast/forkcast/internal/config"
	"github.com/forkcast/forkcast/internal/events"
	"github.com/forkcast/forkcast/internal/logging"
	"github.com/forkcast/forkcast/internal/recsys"
	"github.com/forkcast/forkcast/internal/store"
	"github.com/forkcast/forkcast/internal/upstream"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	if err := run(); err != nil {
		logging.Fatal().Err(err).Msg("Server exited with error")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logger := logging.With().Str("component", "server").Logger()
	logger.Info().Str("version", version).Str("environment", cfg.Server.Environment).Msg("Starting Forkcast")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry, err := recsys.LoadRegistry(cfg.Models.Path, logging.With().Str("component", "registry").Logger())
	if err != nil {
		return fmt.Errorf("loading model artifacts from %s: %w", cfg.Models.Path, err)
	}

	cacheStore := buildCacheStore(ctx, cfg)
	defer func() { _ = cacheStore.Close() }()

	var meta recsys.MetadataStore
	if cfg.Metadata.Enabled {
		recipes, err := store.NewRecipeStore(ctx, cfg.Metadata.DSN, cfg.Metadata.QueryTimeout)
		if err != nil {
			return fmt.Errorf("connecting to metadata store: %w", err)
		}
		defer recipes.Close()
		meta = recipes
		logger.Info().Msg("Recipe metadata store connected")
	} else {
		logger.Warn().Msg("Metadata store disabled, responses will carry bare model fields")
	}

	var attrs recsys.AttributeClient
	if cfg.Attributes.Enabled {
		attrs = upstream.NewAttributeClient(cfg.Attributes.BaseURL, cfg.Attributes.Timeout,
			logging.With().Str("component", "attributes").Logger())
		logger.Info().Str("base_url", cfg.Attributes.BaseURL).Msg("User attribute client enabled")
	}

	engine := buildEngine(cfg, registry, cacheStore, meta, attrs)

	var consumer *events.Consumer
	if cfg.Kafka.Enabled {
		consumer = events.NewConsumer(events.Config{
			Brokers:   cfg.Kafka.Brokers,
			Topic:     cfg.Kafka.Topic,
			GroupID:   cfg.Kafka.GroupID,
			QueueSize: cfg.Kafka.QueueSize,
		}, engine, logging.With().Logger())
		defer func() { _ = consumer.Close() }()
	} else {
		logger.Warn().Msg("Kafka consumer disabled, cache invalidation relies on sync endpoints only")
	}

	var eventSource api.EventSource
	if consumer != nil {
		eventSource = consumer
	}
	handlers := api.NewHandlers(engine, eventSource, version)
	router := api.NewRouter(handlers, cfg.API)

	sup := suture.NewSimple("forkcast")
	sup.Add(&httpService{
		addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		handler: router,
		timeout: cfg.Server.Timeout,
	})
	if consumer != nil {
		sup.Add(consumer)
	}

	logger.Info().Str("addr", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)).Msg("Serving")
	err = sup.Serve(ctx)
	if errors.Is(err, context.Canceled) {
		logger.Info().Msg("Shutdown complete")
		return nil
	}
	return err
}

// buildCacheStore selects the cache backend. A Redis backend that cannot be
// reached at startup degrades to the in-memory store rather than failing the
// process.
func buildCacheStore(ctx context.Context, cfg *config.Config) cache.Store {
	if !cfg.Cache.Enabled {
		logging.Warn().Msg("Result caching disabled")
		return cache.NewDisabled()
	}

	switch cfg.Cache.Backend {
	case "redis":
		redisStore, err := cache.NewRedisStore(ctx, cache.RedisOptions{
			Addr:     cfg.Cache.RedisAddr,
			DB:       cfg.Cache.RedisDB,
			Password: cfg.Cache.RedisPassword,
		})
		if err != nil {
			logging.Warn().Err(err).Msg("Redis unreachable, falling back to in-memory cache")
			return cache.NewMemoryStore()
		}
		logging.Info().Str("addr", cfg.Cache.RedisAddr).Msg("Redis result cache connected")
		return redisStore
	case "memory":
		return cache.NewMemoryStore()
	default:
		logging.Warn().Str("backend", cfg.Cache.Backend).Msg("Unknown cache backend, caching disabled")
		return cache.NewDisabled()
	}
}

// buildEngine assembles the strategy chain and the serving engine.
func buildEngine(cfg *config.Config, registry *recsys.Registry, cacheStore cache.Store,
	meta recsys.MetadataStore, attrs recsys.AttributeClient) *recsys.Engine {

	var attrsFn recsys.AttrsFunc
	if attrs != nil {
		attrsFn = func(ctx context.Context, userID int) map[string]interface{} {
			result, err := attrs.GetUserAttributes(ctx, userID)
			if err != nil {
				return nil
			}
			return result
		}
	}

	var strategies []recsys.Strategy
	if registry.Status().TwoTowerLoaded {
		strategies = append(strategies, recsys.NewTwoTower(registry, attrsFn))
	}
	if registry.Status().ALSLoaded {
		strategies = append(strategies, recsys.NewALS(registry))
	}
	strategies = append(strategies, recsys.NewPopularity(registry))

	orchestrator := recsys.NewOrchestrator(logging.With().Str("component", "fallback").Logger(), strategies...)

	return recsys.NewEngine(registry, orchestrator, cacheStore, meta, recsys.Config{
		CacheTTL:        cfg.Cache.TTL,
		OverFetchFactor: cfg.Recommend.OverFetchFactor,
		DefaultTopK:     cfg.Recommend.DefaultTopK,
		MaxTopK:         cfg.Recommend.MaxTopK,
		DiversityWeight: cfg.Recommend.DiversityWeight,
		MaxBatchSize:    cfg.Recommend.MaxBatchSize,
	}, logging.With().Str("component", "engine").Logger())
}

// httpService runs the HTTP server as a suture.Service.
type httpService struct {
	addr    string
	handler http.Handler
	timeout time.Duration
}

// Serve starts the listener and blocks until ctx is cancelled, then shuts
// down gracefully with a bounded deadline.
func (s *httpService) Serve(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       s.timeout,
		WriteTimeout:      s.timeout,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return ctx.Err()
}

func (s *httpService) String() string { return "http-server" }
