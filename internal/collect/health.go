package collect

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// failedThreshold is the consecutive-failure count at which a degraded
// source is marked failed.
const failedThreshold = 3

// HealthTracker drives the per-source health state machine:
//
//	active --failure--> degraded --3rd consecutive failure--> failed
//	degraded/failed --success--> active (failure count reset)
//
// There is no terminal state; a single success fully reopens a failed
// source. The status is observational: it is recorded and reported but
// never consulted to block scheduling.
type HealthTracker struct {
	mu       sync.Mutex
	repo     HealthRepository
	statuses map[int64]*HealthStatus
}

func NewHealthTracker(repo HealthRepository) *HealthTracker {
	return &HealthTracker{
		repo:     repo,
		statuses: make(map[int64]*HealthStatus),
	}
}

// Update folds one fetch outcome into the source's health and upserts the
// row. Skipped outcomes count as successes: the source answered, it just
// had nothing for the target.
func (t *HealthTracker) Update(ctx context.Context, sourceID int64, outcome Status, duration time.Duration) {
	t.mu.Lock()
	hs, ok := t.statuses[sourceID]
	if !ok {
		hs = &HealthStatus{SourceID: sourceID, Status: HealthActive}
		t.statuses[sourceID] = hs
	}

	now := time.Now().UTC()
	switch outcome {
	case StatusSuccess, StatusSkipped:
		hs.Status = HealthActive
		hs.ConsecutiveFailures = 0
		hs.LastSuccessAt = now
		if outcome == StatusSuccess {
			hs.AvgResponseTimeMs = rollAvg(hs.AvgResponseTimeMs, float64(duration.Milliseconds()))
		}
	default:
		hs.ConsecutiveFailures++
		hs.LastFailureAt = now
		if hs.ConsecutiveFailures >= failedThreshold {
			hs.Status = HealthFailed
		} else {
			hs.Status = HealthDegraded
		}
	}
	snapshot := *hs
	t.mu.Unlock()

	if t.repo == nil {
		return
	}
	if err := t.repo.Upsert(ctx, &snapshot); err != nil {
		slog.Error("health: upsert status", "source", sourceID, "error", err)
	}
}

// Status returns the tracked health for sourceID, defaulting to active for
// sources with no observations yet.
func (t *HealthTracker) Status(sourceID int64) HealthStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	if hs, ok := t.statuses[sourceID]; ok {
		return *hs
	}
	return HealthStatus{SourceID: sourceID, Status: HealthActive}
}

// rollAvg is an exponentially weighted response-time average, seeded with
// the first observation.
func rollAvg(avg, sample float64) float64 {
	if avg == 0 {
		return sample
	}
	return avg*0.8 + sample*0.2
}
