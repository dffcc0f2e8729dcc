package execution

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

func newRecord(runID, target string, status collect.Status) *collect.ExecutionRecord {
	now := time.Now().UTC()
	return &collect.ExecutionRecord{
		RunID:          runID,
		SourceID:       1,
		TargetID:       target,
		Status:         status,
		StartedAt:      now.Add(-250 * time.Millisecond),
		CompletedAt:    now,
		DurationMs:     250,
		ErrorKind:      collect.ErrKindNone,
		RecordsFetched: 3,
	}
}

func TestInsert_And_ListRecent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db.DB)
	ctx := context.Background()

	rec := newRecord("run-1", "AAPL", collect.StatusSuccess)
	if err := repo.Insert(ctx, rec); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if rec.ID == 0 {
		t.Fatal("expected non-zero ID")
	}

	recs, err := repo.ListRecent(ctx, 10)
	if err != nil {
		t.Fatalf("list recent: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	got := recs[0]
	if got.RunID != "run-1" || got.TargetID != "AAPL" || got.Status != collect.StatusSuccess {
		t.Errorf("unexpected record: %+v", got)
	}
	if got.RecordsFetched != 3 || got.DurationMs != 250 {
		t.Errorf("metrics not round-tripped: %+v", got)
	}
	if got.StartedAt.IsZero() || got.CompletedAt.IsZero() {
		t.Error("timestamps not round-tripped")
	}
}

func TestInsert_PreservesErrorFields(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db.DB)
	ctx := context.Background()

	rec := newRecord("run-1", "AAPL", collect.StatusFailed)
	rec.ErrorKind = collect.ErrKindConnection
	rec.ErrorMessage = "connection refused"
	rec.RetryCount = 2
	if err := repo.Insert(ctx, rec); err != nil {
		t.Fatalf("insert: %v", err)
	}

	recs, _ := repo.ListRecent(ctx, 1)
	if recs[0].ErrorKind != collect.ErrKindConnection || recs[0].ErrorMessage != "connection refused" {
		t.Errorf("error fields lost: %+v", recs[0])
	}
	if recs[0].RetryCount != 2 {
		t.Errorf("expected retry count 2, got %d", recs[0].RetryCount)
	}
}

func TestListRecent_NewestFirst(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db.DB)
	ctx := context.Background()

	for _, target := range []string{"A", "B", "C"} {
		if err := repo.Insert(ctx, newRecord("run-1", target, collect.StatusSuccess)); err != nil {
			t.Fatal(err)
		}
	}

	recs, err := repo.ListRecent(ctx, 2)
	if err != nil {
		t.Fatalf("list recent: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0].TargetID != "C" || recs[1].TargetID != "B" {
		t.Errorf("expected newest first, got %s then %s", recs[0].TargetID, recs[1].TargetID)
	}
}

func TestListByRun(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db.DB)
	ctx := context.Background()

	_ = repo.Insert(ctx, newRecord("run-1", "A", collect.StatusSuccess))
	_ = repo.Insert(ctx, newRecord("run-2", "B", collect.StatusFailed))
	_ = repo.Insert(ctx, newRecord("run-1", "C", collect.StatusSkipped))

	recs, err := repo.ListByRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("list by run: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records for run-1, got %d", len(recs))
	}
	if recs[0].TargetID != "A" || recs[1].TargetID != "C" {
		t.Errorf("expected insertion order, got %s then %s", recs[0].TargetID, recs[1].TargetID)
	}
}
