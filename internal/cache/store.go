// Forkcast - Personalized Recipe Recommendation Service
// Copyright 2026 Forkcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/forkcast/forkcast

// Package cache provides the result cache for recommendation payloads:
// a key-value store with TTL expiry, prefix-based bulk invalidation and
// deterministic key fingerprinting.
//
// Cached values are opaque serialized payloads; the cache never inspects
// them. Callers must treat every backend failure as non-fatal: a miss on
// read, a no-op on write. The service stays fully functional with caching
// disabled, at reduced throughput.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the key is absent or expired.
var ErrNotFound = errors.New("cache: key not found")

// Store is the contract shared by all cache backends.
type Store interface {
	// Get retrieves the payload stored under key.
	// Returns ErrNotFound when the key is absent or expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a payload under key with the given TTL.
	// A non-positive TTL stores the payload without expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// DeletePattern removes all keys matching a glob pattern
	// (e.g. "recommendations:user:42:*") and returns the count deleted.
	DeletePattern(ctx context.Context, pattern string) (int, error)

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// Disabled is a Store that caches nothing. It stands in when caching is
// turned off so callers never need a nil check.
type Disabled struct{}

// NewDisabled returns the no-op cache backend.
func NewDisabled() *Disabled { return &Disabled{} }

func (*Disabled) Get(context.Context, string) ([]byte, error) { return nil, ErrNotFound }

func (*Disabled) Set(context.Context, string, []byte, time.Duration) error { return nil }

func (*Disabled) DeletePattern(context.Context, string) (int, error) { return 0, nil }

func (*Disabled) Ping(context.Context) error { return nil }

func (*Disabled) Close() error { return nil }

var _ Store = (*Disabled)(nil)
