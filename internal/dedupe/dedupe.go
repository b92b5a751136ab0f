// Package dedupe collapses concurrent calls for the same key into a single
// execution. It is a typed wrapper over golang.org/x/sync/singleflight that
// also lets a caller stop waiting when its context ends without disturbing
// the shared call or the callers still attached to it.
package dedupe

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Group de-duplicates calls by key. The zero value is ready to use.
type Group[V any] struct {
	sf singleflight.Group

	mu      sync.Mutex
	pending map[string]struct{}
}

// Do runs fn unless a call for key is already in flight, in which case the
// caller attaches to that call. Every attached caller observes the same
// value or error. joined reports whether this caller attached to a call
// started by someone else.
//
// The registration for key is removed once fn returns, whatever the
// outcome. If ctx ends first Do returns ctx.Err(); fn keeps running for the
// remaining callers, so it must not depend on the caller's ctx.
func (g *Group[V]) Do(ctx context.Context, key string, fn func() (V, error)) (v V, joined bool, err error) {
	started := false
	ch := g.sf.DoChan(key, func() (interface{}, error) {
		started = true
		g.track(key, true)
		defer g.track(key, false)
		return fn()
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return v, !started, res.Err
		}
		v, _ = res.Val.(V)
		return v, !started, nil
	case <-ctx.Done():
		return v, false, ctx.Err()
	}
}

// Pending returns the keys with a call in flight, sorted.
func (g *Group[V]) Pending() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	keys := make([]string, 0, len(g.pending))
	for k := range g.pending {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (g *Group[V]) track(key string, inFlight bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pending == nil {
		g.pending = make(map[string]struct{})
	}
	if inFlight {
		g.pending[key] = struct{}{}
		return
	}
	delete(g.pending, key)
}
