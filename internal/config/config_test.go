// Forkcast - Personalized Recipe Recommendation Service
// Copyright 2026 Forkcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/forkcast/forkcast

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	// Point CONFIG_PATH at a nonexistent file marker-free temp dir so a
	// developer's local config.yaml cannot leak into the test.
	t.Setenv(ConfigPathEnvVar, "")
	t.Chdir(t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8000 {
		t.Errorf("server.port = %d, want 8000", cfg.Server.Port)
	}
	if cfg.Cache.TTL != time.Hour {
		t.Errorf("cache.ttl = %v, want 1h", cfg.Cache.TTL)
	}
	if cfg.Recommend.DefaultTopK != 10 || cfg.Recommend.MaxTopK != 100 {
		t.Errorf("recommend defaults = %d/%d, want 10/100", cfg.Recommend.DefaultTopK, cfg.Recommend.MaxTopK)
	}
	if cfg.Recommend.OverFetchFactor != 3 {
		t.Errorf("over_fetch_factor = %d, want 3", cfg.Recommend.OverFetchFactor)
	}
	if cfg.Recommend.DiversityWeight != 0.3 {
		t.Errorf("diversity_weight = %f, want 0.3", cfg.Recommend.DiversityWeight)
	}
	if cfg.Kafka.Topic != "interactions" {
		t.Errorf("kafka.topic = %q, want interactions", cfg.Kafka.Topic)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte("server:\n  port: 9100\ncache:\n  backend: memory\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("writing config file: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("server.port = %d, want file value 9100", cfg.Server.Port)
	}
	if cfg.Cache.Backend != "memory" {
		t.Errorf("cache.backend = %q, want memory", cfg.Cache.Backend)
	}
	// Untouched sections keep defaults.
	if cfg.Recommend.DefaultTopK != 10 {
		t.Errorf("recommend.default_top_k = %d, want default 10", cfg.Recommend.DefaultTopK)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 9100\n"), 0o600); err != nil {
		t.Fatalf("writing config file: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("FORKCAST_SERVER_PORT", "9200")
	t.Setenv("FORKCAST_CACHE_REDIS_ADDR", "redis.internal:6379")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9200 {
		t.Errorf("server.port = %d, want env value 9200", cfg.Server.Port)
	}
	if cfg.Cache.RedisAddr != "redis.internal:6379" {
		t.Errorf("cache.redis_addr = %q, want env value", cfg.Cache.RedisAddr)
	}
}

func TestEnvKeyTransform(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"FORKCAST_SERVER_PORT", "server.port"},
		{"FORKCAST_CACHE_REDIS_ADDR", "cache.redis_addr"},
		{"FORKCAST_RECOMMEND_DEFAULT_TOP_K", "recommend.default_top_k"},
		{"FORKCAST_KAFKA_GROUP_ID", "kafka.group_id"},
	}
	for _, tt := range tests {
		if got := envKeyTransform(tt.in); got != tt.want {
			t.Errorf("envKeyTransform(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults are valid", func(*Config) {}, false},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }, true},
		{"empty models path", func(c *Config) { c.Models.Path = "" }, true},
		{"bad cache backend", func(c *Config) { c.Cache.Backend = "memcached" }, true},
		{"disabled cache skips backend check", func(c *Config) {
			c.Cache.Enabled = false
			c.Cache.Backend = "memcached"
		}, false},
		{"default top k above max", func(c *Config) { c.Recommend.DefaultTopK = 200 }, true},
		{"zero over fetch", func(c *Config) { c.Recommend.OverFetchFactor = 0 }, true},
		{"diversity weight above one", func(c *Config) { c.Recommend.DiversityWeight = 1.5 }, true},
		{"kafka enabled without brokers", func(c *Config) {
			c.Kafka.Enabled = true
			c.Kafka.Brokers = nil
		}, true},
		{"metadata enabled without dsn", func(c *Config) { c.Metadata.Enabled = true }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
