// Package cache provides caching implementations for Bulkhead membership
// resolution.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/xraph/bulkhead"
	"github.com/xraph/bulkhead/id"
)

// Compile-time interface check.
var _ bulkhead.Cache = (*Memory)(nil)

// Memory is an in-memory cache with TTL-based expiration, keyed by user
// identity. It never caches ambiguous resolutions: only a user's single
// active organization is stored.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]*entry
	ttl     time.Duration
	maxSize int
}

type entry struct {
	orgID     id.OrgID
	expiresAt time.Time
}

// MemoryOption configures the memory cache.
type MemoryOption func(*Memory)

// WithTTL sets the cache entry time-to-live.
func WithTTL(ttl time.Duration) MemoryOption {
	return func(m *Memory) { m.ttl = ttl }
}

// WithMaxSize sets the maximum number of cache entries.
func WithMaxSize(n int) MemoryOption {
	return func(m *Memory) { m.maxSize = n }
}

// NewMemory creates a new in-memory cache.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		entries: make(map[string]*entry),
		ttl:     time.Minute,
		maxSize: 10000,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns the cached organization for a user.
func (m *Memory) Get(_ context.Context, userID string) (id.OrgID, bool) {
	m.mu.RLock()
	e, ok := m.entries[userID]
	m.mu.RUnlock()
	if !ok {
		return id.Nil, false
	}
	if time.Now().After(e.expiresAt) {
		m.mu.Lock()
		delete(m.entries, userID)
		m.mu.Unlock()
		return id.Nil, false
	}
	return e.orgID, true
}

// Set stores a resolved organization for a user.
func (m *Memory) Set(_ context.Context, userID string, orgID id.OrgID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.entries) >= m.maxSize {
		m.evictExpired()
		if len(m.entries) >= m.maxSize {
			m.evictOne()
		}
	}

	m.entries[userID] = &entry{
		orgID:     orgID,
		expiresAt: time.Now().Add(m.ttl),
	}
}

// Invalidate removes the cached resolution for a user.
func (m *Memory) Invalidate(_ context.Context, userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, userID)
}

// evictExpired removes all expired entries. Must hold write lock.
func (m *Memory) evictExpired() {
	now := time.Now()
	for k, e := range m.entries {
		if now.After(e.expiresAt) {
			delete(m.entries, k)
		}
	}
}

// evictOne removes one arbitrary entry. Must hold write lock.
func (m *Memory) evictOne() {
	for k := range m.entries {
		delete(m.entries, k)
		return
	}
}
