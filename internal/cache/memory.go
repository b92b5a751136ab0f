package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

type memoryEntry struct {
	value     json.RawMessage
	expiresAt time.Time
	tags      []Tag
}

// Memory is a thread-safe in-memory store with per-entry TTL and lazy
// eviction on read.
type Memory struct {
	mu    sync.Mutex
	now   func() time.Time
	items map[string]memoryEntry
}

// MemoryOption configures a Memory store.
type MemoryOption func(*Memory)

// WithClock replaces time.Now, mainly for expiry tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

// NewMemory creates an empty in-memory store.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		now:   time.Now,
		items: make(map[string]memoryEntry),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns the cached value for key, or false if missing or expired.
// Expired entries are removed.
func (m *Memory) Get(_ context.Context, key string) (json.RawMessage, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.items[key]
	if !ok {
		return nil, false
	}
	if m.now().After(entry.expiresAt) {
		delete(m.items, key)
		return nil, false
	}
	return entry.value, true
}

// Set stores value with expiresAt = now + ttl.
func (m *Memory) Set(_ context.Context, key string, value json.RawMessage, ttl time.Duration, tags ...Tag) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items[key] = memoryEntry{
		value:     value,
		expiresAt: m.now().Add(ttl),
		tags:      append([]Tag(nil), tags...),
	}
}

// Delete removes an entry from the store.
func (m *Memory) Delete(_ context.Context, key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
}

// InvalidateTags removes every entry tagged with any of tags.
func (m *Memory) InvalidateTags(_ context.Context, tags ...Tag) error {
	if len(tags) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, entry := range m.items {
		if hasAnyTag(entry.tags, tags) {
			delete(m.items, key)
		}
	}
	return nil
}

// Clear removes all entries.
func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = make(map[string]memoryEntry)
	return nil
}

// Len returns the number of stored entries, expired ones included until
// they are next read.
func (m *Memory) Len(_ context.Context) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

func hasAnyTag(have, want []Tag) bool {
	for _, h := range have {
		for _, w := range want {
			if h == w {
				return true
			}
		}
	}
	return false
}
