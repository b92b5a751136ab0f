package ratelimit

import (
	"testing"
	"time"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestKeyed_AllowsBurstThenBlocks(t *testing.T) {
	clk := &clock{t: time.Unix(0, 0)}
	k := NewKeyed(1.0/60, 3, WithClock(clk.now))

	for i := 0; i < 3; i++ {
		if ok, _ := k.Allow("0700000001"); !ok {
			t.Fatalf("attempt %d: expected allow within burst", i+1)
		}
	}
	ok, retry := k.Allow("0700000001")
	if ok {
		t.Fatal("expected block after burst exhausted")
	}
	if retry < 59*time.Second || retry > time.Minute {
		t.Errorf("retryAfter = %v, want about 1m", retry)
	}
}

func TestKeyed_RefillsOverTime(t *testing.T) {
	clk := &clock{t: time.Unix(0, 0)}
	k := NewKeyed(1, 1, WithClock(clk.now))

	k.Allow("a")
	if ok, _ := k.Allow("a"); ok {
		t.Fatal("expected block")
	}
	clk.advance(500 * time.Millisecond)
	if ok, _ := k.Allow("a"); ok {
		t.Fatal("expected block just before refill")
	}
	clk.advance(500 * time.Millisecond)
	if ok, _ := k.Allow("a"); !ok {
		t.Fatal("expected allow after refill")
	}
}

func TestKeyed_KeysAreIndependent(t *testing.T) {
	k := NewKeyed(0.001, 1)
	k.Allow("a")
	if ok, _ := k.Allow("b"); !ok {
		t.Fatal("expected fresh bucket for b")
	}
}

func TestKeyed_Reset(t *testing.T) {
	k := NewKeyed(0.001, 1)
	k.Allow("a")
	k.Reset("a")
	if ok, _ := k.Allow("a"); !ok {
		t.Fatal("expected allow after reset")
	}
}

func TestKeyed_Prune(t *testing.T) {
	clk := &clock{t: time.Unix(0, 0)}
	k := NewKeyed(1, 2, WithClock(clk.now))
	k.Allow("a")
	k.Allow("b")
	k.Allow("b")

	clk.advance(time.Second)
	if n := k.Prune(); n != 1 {
		t.Errorf("Prune() left %d keys, want 1 (b still refilling)", n)
	}
	clk.advance(time.Second)
	if n := k.Prune(); n != 0 {
		t.Errorf("Prune() left %d keys, want 0", n)
	}
}

func TestNewKeyed_DefaultBurst(t *testing.T) {
	k := NewKeyed(0.001, 0)
	if ok, _ := k.Allow("a"); !ok {
		t.Fatal("expected first attempt allowed")
	}
	if ok, _ := k.Allow("a"); ok {
		t.Fatal("expected burst of 1")
	}
}
