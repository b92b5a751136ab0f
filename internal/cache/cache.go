// Package cache provides the response store behind the client's read
// endpoints. Entries are keyed by logical resource name and carry tags so
// a mutating call can drop a whole category at once. The default in-process
// implementation is Memory; Redis is available for shared deployments.
//
// Stores have no size bound. The key space is one entry per logical resource
// type, not per parameter set, so it is small and fixed.
package cache

import (
	"context"
	"encoding/json"
	"time"
)

// Tag names a category of cache entries that are invalidated together.
type Tag string

// Store defines the interface for response caching. A failing Get or Set
// behaves like an empty cache. A failing InvalidateTags or Clear is
// reported, because entries that should be gone may still be readable.
type Store interface {
	// Get returns the value for key, or false if missing or expired.
	Get(ctx context.Context, key string) (json.RawMessage, bool)
	// Set stores value under key for ttl, replacing any prior entry and tags.
	Set(ctx context.Context, key string, value json.RawMessage, ttl time.Duration, tags ...Tag)
	// Delete removes a single entry.
	Delete(ctx context.Context, key string)
	// InvalidateTags removes every entry carrying at least one of tags.
	InvalidateTags(ctx context.Context, tags ...Tag) error
	// Clear removes all entries.
	Clear(ctx context.Context) error
	// Len returns the number of entries currently stored.
	Len(ctx context.Context) int
}
