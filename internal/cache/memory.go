// Forkcast - Personalized Recipe Recommendation Service
// Copyright 2026 Forkcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/forkcast/forkcast

package cache

import (
	"context"
	"path"
	"sync"
	"time"
)

// entry is a cached payload with its expiry.
type entry struct {
	data      []byte
	expiresAt time.Time // zero means no expiry
}

// MemoryStore is a thread-safe in-process cache with TTL support. It backs
// single-instance deployments and tests; multi-instance deployments should
// use RedisStore so invalidation reaches every replica.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]entry
	done    chan struct{}
	once    sync.Once
}

// NewMemoryStore creates an in-process cache. A background goroutine sweeps
// expired entries every minute until Close is called.
func NewMemoryStore() *MemoryStore {
	m := &MemoryStore{
		entries: make(map[string]entry),
		done:    make(chan struct{}),
	}
	go m.sweepLoop()
	return m
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return nil, ErrNotFound
	}
	return e.data, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := entry{data: value}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}
	m.mu.Lock()
	m.entries[key] = e
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) DeletePattern(_ context.Context, pattern string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	deleted := 0
	for key := range m.entries {
		// Keys never contain '/', so path.Match gives glob semantics.
		if ok, err := path.Match(pattern, key); err != nil {
			return deleted, err
		} else if ok {
			delete(m.entries, key)
			deleted++
		}
	}
	return deleted, nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) Close() error {
	m.once.Do(func() { close(m.done) })
	return nil
}

// Len returns the number of entries currently held, including not yet swept
// expired ones.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *MemoryStore) sweepLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

func (m *MemoryStore) sweep() {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, e := range m.entries {
		if !e.expiresAt.IsZero() && now.After(e.expiresAt) {
			delete(m.entries, key)
		}
	}
}

var _ Store = (*MemoryStore)(nil)
