// Forkcast - Personalized Recipe Recommendation Service
// Copyright 2026 Forkcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/forkcast/forkcast

// Package config loads and validates application configuration via Koanf v2
// with layered sources (highest priority wins): environment variables,
// config file (config.yaml), built-in defaults.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the Forkcast server.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Logging    LoggingConfig    `koanf:"logging"`
	Models     ModelsConfig     `koanf:"models"`
	Cache      CacheConfig      `koanf:"cache"`
	Recommend  RecommendConfig  `koanf:"recommend"`
	Kafka      KafkaConfig      `koanf:"kafka"`
	Metadata   MetadataConfig   `koanf:"metadata"`
	Attributes AttributesConfig `koanf:"attributes"`
	API        APIConfig        `koanf:"api"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host        string        `koanf:"host"`
	Port        int           `koanf:"port"`
	Timeout     time.Duration `koanf:"timeout"`
	Environment string        `koanf:"environment"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// ModelsConfig locates the pretrained model artifacts.
type ModelsConfig struct {
	// Path is the directory holding the serialized artifacts: model config,
	// ID mappings, encoder weights, ALS factors, popularity table, scalers
	// and entity attribute tables.
	Path string `koanf:"path"`
}

// CacheConfig holds result-cache settings.
type CacheConfig struct {
	// Enabled turns result caching on. The service is fully functional with
	// caching disabled, at reduced throughput.
	Enabled bool `koanf:"enabled"`

	// Backend selects the cache implementation: redis or memory.
	Backend string `koanf:"backend"`

	RedisAddr     string `koanf:"redis_addr"`
	RedisDB       int    `koanf:"redis_db"`
	RedisPassword string `koanf:"redis_password"`

	// TTL is the expiry applied to cached recommendation payloads.
	TTL time.Duration `koanf:"ttl"`
}

// RecommendConfig holds recommendation pipeline settings.
type RecommendConfig struct {
	DefaultTopK int `koanf:"default_top_k"`
	MaxTopK     int `koanf:"max_top_k"`

	// OverFetchFactor is the candidate headroom requested from the fallback
	// chain before filtering and diversity re-ranking truncate to top_k.
	OverFetchFactor int `koanf:"over_fetch_factor"`

	// DiversityWeight is the default MMR lambda: 0 is pure relevance,
	// 1 is pure diversity.
	DiversityWeight float64 `koanf:"diversity_weight"`

	MaxBatchSize int `koanf:"max_batch_size"`
}

// KafkaConfig holds interaction event stream settings.
type KafkaConfig struct {
	Enabled   bool     `koanf:"enabled"`
	Brokers   []string `koanf:"brokers"`
	Topic     string   `koanf:"topic"`
	GroupID   string   `koanf:"group_id"`
	QueueSize int      `koanf:"queue_size"`
}

// MetadataConfig holds the recipe metadata store (Postgres) settings.
type MetadataConfig struct {
	Enabled      bool          `koanf:"enabled"`
	DSN          string        `koanf:"dsn"`
	QueryTimeout time.Duration `koanf:"query_timeout"`
}

// AttributesConfig holds the upstream user-attribute service settings.
type AttributesConfig struct {
	Enabled bool          `koanf:"enabled"`
	BaseURL string        `koanf:"base_url"`
	Timeout time.Duration `koanf:"timeout"`
}

// APIConfig holds API surface settings.
type APIConfig struct {
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
	CORSOrigins     []string      `koanf:"cors_origins"`
}

// defaultConfig returns a Config struct with all sensible default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8000,
			Timeout:     30 * time.Second,
			Environment: "development",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Models: ModelsConfig{
			Path: "/data/models",
		},
		Cache: CacheConfig{
			Enabled:   true,
			Backend:   "redis",
			RedisAddr: "127.0.0.1:6379",
			RedisDB:   0,
			TTL:       time.Hour,
		},
		Recommend: RecommendConfig{
			DefaultTopK:     10,
			MaxTopK:         100,
			OverFetchFactor: 3,
			DiversityWeight: 0.3,
			MaxBatchSize:    100,
		},
		Kafka: KafkaConfig{
			Enabled:   false,
			Brokers:   []string{"127.0.0.1:9092"},
			Topic:     "interactions",
			GroupID:   "forkcast-consumer",
			QueueSize: 256,
		},
		Metadata: MetadataConfig{
			Enabled:      false,
			DSN:          "",
			QueryTimeout: 5 * time.Second,
		},
		Attributes: AttributesConfig{
			Enabled: false,
			BaseURL: "",
			Timeout: 5 * time.Second,
		},
		API: APIConfig{
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
		},
	}
}

// Validate checks the configuration for values that would prevent the server
// from operating correctly.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1..65535, got %d", c.Server.Port)
	}
	if c.Models.Path == "" {
		return fmt.Errorf("models.path must not be empty")
	}
	if c.Cache.Enabled && c.Cache.Backend != "redis" && c.Cache.Backend != "memory" {
		return fmt.Errorf("cache.backend must be redis or memory, got %q", c.Cache.Backend)
	}
	if c.Recommend.DefaultTopK < 1 || c.Recommend.DefaultTopK > c.Recommend.MaxTopK {
		return fmt.Errorf("recommend.default_top_k must be in 1..%d, got %d",
			c.Recommend.MaxTopK, c.Recommend.DefaultTopK)
	}
	if c.Recommend.OverFetchFactor < 1 {
		return fmt.Errorf("recommend.over_fetch_factor must be >= 1, got %d", c.Recommend.OverFetchFactor)
	}
	if c.Recommend.DiversityWeight < 0 || c.Recommend.DiversityWeight > 1 {
		return fmt.Errorf("recommend.diversity_weight must be in [0,1], got %f", c.Recommend.DiversityWeight)
	}
	if c.Recommend.MaxBatchSize < 1 {
		return fmt.Errorf("recommend.max_batch_size must be >= 1, got %d", c.Recommend.MaxBatchSize)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers must not be empty when kafka is enabled")
	}
	if c.Metadata.Enabled && c.Metadata.DSN == "" {
		return fmt.Errorf("metadata.dsn must not be empty when metadata store is enabled")
	}
	if c.Attributes.Enabled && c.Attributes.BaseURL == "" {
		return fmt.Errorf("attributes.base_url must not be empty when attribute service is enabled")
	}
	return nil
}
