package collect

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultRateLimit is the conservative per-minute budget applied to sources
// with no configured (or an invalid) limit.
const DefaultRateLimit = 60

// Limiter holds one token bucket per source. Each bucket has burst 1, so
// two calls to the same source never start closer together than
// 60s/rate_limit_per_minute. rate.Limiter serializes its own reservation
// bookkeeping, which is exactly the read-wait-stamp atomicity the per-source
// interval needs under concurrent callers.
type Limiter struct {
	mu               sync.Mutex
	defaultPerMinute int
	buckets          map[int64]*rate.Limiter
}

func NewLimiter(defaultPerMinute int) *Limiter {
	if defaultPerMinute <= 0 {
		defaultPerMinute = DefaultRateLimit
	}
	return &Limiter{
		defaultPerMinute: defaultPerMinute,
		buckets:          make(map[int64]*rate.Limiter),
	}
}

// Add registers a bucket for src. Non-positive configured limits fall back
// to the default.
func (l *Limiter) Add(src Source) {
	perMinute := src.RateLimitPerMinute
	if perMinute <= 0 {
		perMinute = l.defaultPerMinute
	}
	interval := time.Minute / time.Duration(perMinute)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.buckets[src.ID] = rate.NewLimiter(rate.Every(interval), 1)
}

// Wait blocks until the source's next slot, or until ctx is done. Sources
// never registered with Add get a default bucket on first use.
func (l *Limiter) Wait(ctx context.Context, sourceID int64) error {
	l.mu.Lock()
	b, ok := l.buckets[sourceID]
	if !ok {
		interval := time.Minute / time.Duration(l.defaultPerMinute)
		b = rate.NewLimiter(rate.Every(interval), 1)
		l.buckets[sourceID] = b
	}
	l.mu.Unlock()

	return b.Wait(ctx)
}
