package cache

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func TestMemory_ImplementsStore(_ *testing.T) {
	var _ Store = (*Memory)(nil)
}

func TestMemory_SetAndGet(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()
	c.Set(ctx, "balance", json.RawMessage(`{"balance":1000}`), time.Minute, "balance")

	got, ok := c.Get(ctx, "balance")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if string(got) != `{"balance":1000}` {
		t.Errorf("unexpected value %s", got)
	}
}

func TestMemory_Miss(t *testing.T) {
	c := NewMemory()
	if _, ok := c.Get(context.Background(), "missing"); ok {
		t.Error("expected cache miss")
	}
}

func TestMemory_ExpiryBoundary(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2026, 1, 14, 9, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: start}
	c := NewMemory(WithClock(clock.Now))

	c.Set(ctx, "balance", json.RawMessage(`1`), 30*time.Second)
	expiresAt := start.Add(30 * time.Second)

	clock.Set(expiresAt.Add(-time.Millisecond))
	if _, ok := c.Get(ctx, "balance"); !ok {
		t.Fatal("expected hit 1ms before expiry")
	}

	clock.Set(expiresAt.Add(time.Millisecond))
	if _, ok := c.Get(ctx, "balance"); ok {
		t.Fatal("expected miss 1ms after expiry")
	}
	if c.Len(ctx) != 0 {
		t.Errorf("expected expired entry to be evicted, len=%d", c.Len(ctx))
	}
}

func TestMemory_Overwrite(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()
	c.Set(ctx, "elections", json.RawMessage(`"old"`), time.Minute)
	c.Set(ctx, "elections", json.RawMessage(`"new"`), time.Minute)

	got, ok := c.Get(ctx, "elections")
	if !ok {
		t.Fatal("expected hit")
	}
	if string(got) != `"new"` {
		t.Errorf("expected new, got %s", got)
	}
	if c.Len(ctx) != 1 {
		t.Errorf("expected len 1, got %d", c.Len(ctx))
	}
}

func TestMemory_Delete(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()
	c.Set(ctx, "balance", json.RawMessage(`1`), time.Minute)
	c.Set(ctx, "elections", json.RawMessage(`2`), time.Minute)
	c.Delete(ctx, "balance")

	if _, ok := c.Get(ctx, "balance"); ok {
		t.Error("expected miss after delete")
	}
	if _, ok := c.Get(ctx, "elections"); !ok {
		t.Error("expected unrelated key to survive delete")
	}
}

func TestMemory_InvalidateTags(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()
	c.Set(ctx, "withdrawalHistory", json.RawMessage(`[]`), time.Minute, "withdrawals")
	c.Set(ctx, "adminWithdrawals", json.RawMessage(`[]`), time.Minute, "withdrawals")
	c.Set(ctx, "betHistory", json.RawMessage(`[]`), time.Minute, "bets")
	c.Set(ctx, "balance", json.RawMessage(`1`), time.Minute, "balance")

	if err := c.InvalidateTags(ctx, "withdrawals", "balance"); err != nil {
		t.Fatalf("InvalidateTags() error: %v", err)
	}

	for _, key := range []string{"withdrawalHistory", "adminWithdrawals", "balance"} {
		if _, ok := c.Get(ctx, key); ok {
			t.Errorf("expected %s to be invalidated", key)
		}
	}
	if _, ok := c.Get(ctx, "betHistory"); !ok {
		t.Error("expected betHistory to remain cached")
	}
}

func TestMemory_InvalidateTagsNoSubstringMatch(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()
	c.Set(ctx, "betHistory", json.RawMessage(`[]`), time.Minute, "bets")
	c.InvalidateTags(ctx, "bet")

	if _, ok := c.Get(ctx, "betHistory"); !ok {
		t.Error("tag invalidation must match whole tags only")
	}
}

func TestMemory_Clear(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()
	c.Set(ctx, "a", json.RawMessage(`1`), time.Minute)
	c.Set(ctx, "b", json.RawMessage(`2`), time.Minute)
	c.Clear(ctx)

	if c.Len(ctx) != 0 {
		t.Errorf("expected len 0 after clear, got %d", c.Len(ctx))
	}
}

func TestMemory_Concurrent(_ *testing.T) {
	ctx := context.Background()
	c := NewMemory()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := string(rune('a' + i%26))
			c.Set(ctx, key, json.RawMessage(`1`), time.Minute, Tag(key))
			c.Get(ctx, key)
			c.InvalidateTags(ctx, Tag(key))
			c.Len(ctx)
		}(i)
	}
	wg.Wait()
}
