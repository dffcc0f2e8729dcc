package health

import (
	"context"
	"testing"
	"time"

	"github.com/joungwon-dreams/joungwon-stocks-sub002/internal/collect"
	"github.com/joungwon-dreams/joungwon-stocks-sub002/internal/platform/sqlite"
)

func setupTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestUpsert_InsertsThenUpdates(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db.DB)
	ctx := context.Background()

	hs := &collect.HealthStatus{
		SourceID:            1,
		Status:              collect.HealthDegraded,
		ConsecutiveFailures: 1,
		LastFailureAt:       time.Now().UTC(),
		AvgResponseTimeMs:   80,
	}
	if err := repo.Upsert(ctx, hs); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	hs.Status = collect.HealthFailed
	hs.ConsecutiveFailures = 3
	if err := repo.Upsert(ctx, hs); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	statuses, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(statuses) != 1 {
		t.Fatalf("upsert must keep one row per source, got %d", len(statuses))
	}
	if statuses[0].Status != collect.HealthFailed || statuses[0].ConsecutiveFailures != 3 {
		t.Errorf("update not applied: %+v", statuses[0])
	}
}

func TestGet_RoundTripsTimestamps(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db.DB)
	ctx := context.Background()

	success := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	hs := &collect.HealthStatus{
		SourceID:          2,
		Status:            collect.HealthActive,
		LastSuccessAt:     success,
		AvgResponseTimeMs: 120.5,
	}
	if err := repo.Upsert(ctx, hs); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := repo.Get(ctx, 2)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("expected a row")
	}
	if !got.LastSuccessAt.Equal(success) {
		t.Errorf("expected last success %v, got %v", success, got.LastSuccessAt)
	}
	if !got.LastFailureAt.IsZero() {
		t.Errorf("expected zero last failure, got %v", got.LastFailureAt)
	}
	if got.AvgResponseTimeMs != 120.5 {
		t.Errorf("expected avg 120.5, got %v", got.AvgResponseTimeMs)
	}
}

func TestGet_MissingSourceReturnsNil(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db.DB)

	got, err := repo.Get(context.Background(), 404)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for unknown source, got %+v", got)
	}
}
