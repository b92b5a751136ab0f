package dedupe

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestGroup_SingleCallForConcurrentCallers(t *testing.T) {
	var g Group[[]string]
	var calls atomic.Int32
	release := make(chan struct{})

	const n = 20
	var (
		wg      sync.WaitGroup
		results = make([][]string, n)
		errs    = make([]error, n)
		joined  atomic.Int32
		ready   sync.WaitGroup
	)
	ready.Add(n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ready.Done()
			v, j, err := g.Do(context.Background(), "elections", func() ([]string, error) {
				calls.Add(1)
				<-release
				return []string{"presidential"}, nil
			})
			results[i], errs[i] = v, err
			if j {
				joined.Add(1)
			}
		}(i)
	}

	ready.Wait()
	waitForPending(t, &g, "elections")
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Fatalf("expected 1 underlying call, got %d", got)
	}
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: unexpected error %v", i, errs[i])
		}
		if len(results[i]) != 1 || results[i][0] != "presidential" {
			t.Fatalf("caller %d: unexpected result %v", i, results[i])
		}
	}
	if joined.Load() > n-1 {
		t.Errorf("at most %d callers can have joined, got %d", n-1, joined.Load())
	}
	if len(g.Pending()) != 0 {
		t.Errorf("expected no pending keys, got %v", g.Pending())
	}
}

func TestGroup_ErrorSharedAndRegistrationRemoved(t *testing.T) {
	var g Group[int]
	boom := errors.New("upstream down")
	release := make(chan struct{})
	var calls atomic.Int32

	var wg, ready sync.WaitGroup
	errs := make([]error, 5)
	ready.Add(len(errs))
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ready.Done()
			_, _, errs[i] = g.Do(context.Background(), "balance", func() (int, error) {
				calls.Add(1)
				<-release
				return 0, boom
			})
		}(i)
	}
	ready.Wait()
	waitForPending(t, &g, "balance")
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for i, err := range errs {
		if !errors.Is(err, boom) {
			t.Fatalf("caller %d: expected shared error, got %v", i, err)
		}
	}

	v, joined, err := g.Do(context.Background(), "balance", func() (int, error) {
		calls.Add(1)
		return 7, nil
	})
	if err != nil || v != 7 || joined {
		t.Fatalf("expected fresh call after failure, got v=%d joined=%v err=%v", v, joined, err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 underlying calls, got %d", calls.Load())
	}
}

func TestGroup_DistinctKeysRunIndependently(t *testing.T) {
	var g Group[string]
	var calls atomic.Int32
	var wg sync.WaitGroup
	for _, key := range []string{"balance", "elections", "betHistory"} {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			v, _, err := g.Do(context.Background(), key, func() (string, error) {
				calls.Add(1)
				return key, nil
			})
			if err != nil || v != key {
				t.Errorf("key %s: got %q err=%v", key, v, err)
			}
		}(key)
	}
	wg.Wait()
	if calls.Load() != 3 {
		t.Fatalf("expected 3 calls, got %d", calls.Load())
	}
}

func TestGroup_CallerContextCancelled(t *testing.T) {
	var g Group[int]
	release := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		v, _, err := g.Do(context.Background(), "betHistory", func() (int, error) {
			<-release
			return 42, nil
		})
		if err != nil || v != 42 {
			t.Errorf("owner: got v=%d err=%v", v, err)
		}
	}()
	waitForPending(t, &g, "betHistory")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := g.Do(ctx, "betHistory", func() (int, error) {
		t.Error("cancelled caller must not start a second call")
		return 0, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	close(release)
	<-done
	if len(g.Pending()) != 0 {
		t.Fatalf("expected registration cleanup, pending=%v", g.Pending())
	}
}

func waitForPending(t *testing.T, g interface{ Pending() []string }, key string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for _, k := range g.Pending() {
			if k == key {
				return
			}
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("key %q never became pending", key)
}
