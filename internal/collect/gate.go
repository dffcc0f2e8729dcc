package collect

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// DefaultMaxConcurrent bounds simultaneous in-flight fetches when the
// operator does not configure a limit.
const DefaultMaxConcurrent = 10

// Gate is the global bound on in-flight fetches, shared across all sources.
type Gate struct {
	sem *semaphore.Weighted
	max int
}

func NewGate(maxConcurrent int) *Gate {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	return &Gate{
		sem: semaphore.NewWeighted(int64(maxConcurrent)),
		max: maxConcurrent,
	}
}

// Acquire blocks until a permit is free or ctx is done. Callers must pair
// every successful Acquire with Release on all exit paths.
func (g *Gate) Acquire(ctx context.Context) error {
	return g.sem.Acquire(ctx, 1)
}

func (g *Gate) Release() {
	g.sem.Release(1)
}

// Max returns the configured permit count.
func (g *Gate) Max() int { return g.max }
