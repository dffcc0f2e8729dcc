package collect

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestLimiter_SpacesCalls(t *testing.T) {
	// 1200/min = one call per 50ms.
	l := NewLimiter(DefaultRateLimit)
	l.Add(Source{ID: 1, RateLimitPerMinute: 1200})

	ctx := context.Background()
	const calls = 4

	start := time.Now()
	for i := 0; i < calls; i++ {
		if err := l.Wait(ctx, 1); err != nil {
			t.Fatalf("wait: %v", err)
		}
	}
	elapsed := time.Since(start)

	if min := 3 * 50 * time.Millisecond; elapsed < min {
		t.Errorf("%d calls took %v, expected at least %v", calls, elapsed, min)
	}
}

func TestLimiter_ConcurrentCallersSerialized(t *testing.T) {
	l := NewLimiter(DefaultRateLimit)
	l.Add(Source{ID: 1, RateLimitPerMinute: 1200}) // 50ms interval

	ctx := context.Background()
	const callers = 4

	var mu sync.Mutex
	var starts []time.Time

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Wait(ctx, 1); err != nil {
				t.Errorf("wait: %v", err)
				return
			}
			mu.Lock()
			starts = append(starts, time.Now())
			mu.Unlock()
		}()
	}
	wg.Wait()

	// Two concurrent callers must never both proceed inside one interval.
	for i := range starts {
		for j := i + 1; j < len(starts); j++ {
			gap := starts[j].Sub(starts[i])
			if gap < 0 {
				gap = -gap
			}
			if gap < 40*time.Millisecond { // small slack under the 50ms interval
				t.Errorf("calls %d and %d started %v apart", i, j, gap)
			}
		}
	}
}

func TestLimiter_DefaultsForUnknownSource(t *testing.T) {
	l := NewLimiter(6000) // 10ms default interval

	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := l.Wait(ctx, 99); err != nil { // never Added
			t.Fatalf("wait: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("3 calls took %v, expected at least 20ms", elapsed)
	}
}

func TestLimiter_InvalidConfiguredLimitFallsBack(t *testing.T) {
	l := NewLimiter(6000) // 10ms default interval
	l.Add(Source{ID: 1, RateLimitPerMinute: -5})

	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := l.Wait(ctx, 1); err != nil {
			t.Fatalf("wait: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("expected default interval applied, 3 calls took %v", elapsed)
	}
}

func TestLimiter_WaitHonoursCancellation(t *testing.T) {
	l := NewLimiter(DefaultRateLimit)
	l.Add(Source{ID: 1, RateLimitPerMinute: 1}) // 60s interval

	ctx := context.Background()
	if err := l.Wait(ctx, 1); err != nil { // consume the initial token
		t.Fatalf("first wait: %v", err)
	}

	cancelCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := l.Wait(cancelCtx, 1)
	if err == nil {
		t.Fatal("expected error from cancelled wait")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("cancelled wait blocked for %v", elapsed)
	}
}
