// Package ratelimit throttles repeated attempts per key (a phone number, a
// remote address) with token buckets. The fake backend uses it to refuse
// PIN guessing on login the way the production backend does.
package ratelimit

import (
	"sync"
	"time"
)

// Bucket is a single token bucket. It is not safe for concurrent use on its
// own; Keyed serialises access.
type Bucket struct {
	rate   float64 // tokens per second
	burst  float64
	tokens float64
	last   time.Time
}

func newBucket(rate, burst float64, now time.Time) *Bucket {
	return &Bucket{rate: rate, burst: burst, tokens: burst, last: now}
}

func (b *Bucket) refill(now time.Time) {
	if elapsed := now.Sub(b.last).Seconds(); elapsed > 0 {
		b.tokens += elapsed * b.rate
		if b.tokens > b.burst {
			b.tokens = b.burst
		}
	}
	b.last = now
}

// take consumes one token at now.
func (b *Bucket) take(now time.Time) bool {
	b.refill(now)
	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// full reports whether the bucket has refilled completely, meaning the key
// carries no history worth keeping.
func (b *Bucket) full(now time.Time) bool {
	b.refill(now)
	return b.tokens >= b.burst
}

// RetryAfter is how long until the next token is available.
func (b *Bucket) retryAfter() time.Duration {
	if b.tokens >= 1 || b.rate <= 0 {
		return 0
	}
	return time.Duration((1 - b.tokens) / b.rate * float64(time.Second))
}

// Keyed holds one Bucket per key, all sharing the same rate and burst.
type Keyed struct {
	mu      sync.Mutex
	rate    float64
	burst   float64
	now     func() time.Time
	buckets map[string]*Bucket
}

// Option configures a Keyed limiter.
type Option func(*Keyed)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(k *Keyed) { k.now = now }
}

// NewKeyed allows burst attempts per key, refilled at ratePerSecond. A
// non-positive burst defaults to 1.
func NewKeyed(ratePerSecond, burst float64, opts ...Option) *Keyed {
	if burst <= 0 {
		burst = 1
	}
	k := &Keyed{
		rate:    ratePerSecond,
		burst:   burst,
		now:     time.Now,
		buckets: make(map[string]*Bucket),
	}
	for _, o := range opts {
		o(k)
	}
	return k
}

// Allow consumes one attempt for key. When it returns false, retryAfter
// says when the next attempt will be accepted.
func (k *Keyed) Allow(key string) (ok bool, retryAfter time.Duration) {
	k.mu.Lock()
	defer k.mu.Unlock()
	now := k.now()
	b, found := k.buckets[key]
	if !found {
		b = newBucket(k.rate, k.burst, now)
		k.buckets[key] = b
	}
	if b.take(now) {
		return true, 0
	}
	return false, b.retryAfter()
}

// Reset forgets key, e.g. after a successful login.
func (k *Keyed) Reset(key string) {
	k.mu.Lock()
	delete(k.buckets, key)
	k.mu.Unlock()
}

// Prune drops keys whose buckets have fully refilled and returns how many
// remain.
func (k *Keyed) Prune() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	now := k.now()
	for key, b := range k.buckets {
		if b.full(now) {
			delete(k.buckets, key)
		}
	}
	return len(k.buckets)
}
