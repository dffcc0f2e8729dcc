package target

import (
	"context"
	"testing"

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

func TestListTop_RankOrderAndLimit(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db.DB)
	ctx := context.Background()

	for _, tt := range []collect.Target{
		{Symbol: "MSFT", Rank: 2, IsActive: true},
		{Symbol: "AAPL", Rank: 1, IsActive: true},
		{Symbol: "GOOG", Rank: 3, IsActive: true},
		{Symbol: "GONE", Rank: 0, IsActive: false},
	} {
		if err := repo.Create(ctx, &tt); err != nil {
			t.Fatalf("create %s: %v", tt.Symbol, err)
		}
	}

	targets, err := repo.ListTop(ctx, 2)
	if err != nil {
		t.Fatalf("list top: %v", err)
	}
	if len(targets) != 2 {
		t.Fatalf("expected 2 targets, got %d", len(targets))
	}
	if targets[0].Symbol != "AAPL" || targets[1].Symbol != "MSFT" {
		t.Errorf("unexpected order: %s, %s", targets[0].Symbol, targets[1].Symbol)
	}
}

func TestListTop_ZeroLimitUsesDefault(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db.DB)
	ctx := context.Background()

	if err := repo.Create(ctx, &collect.Target{Symbol: "AAPL", Rank: 1, IsActive: true}); err != nil {
		t.Fatal(err)
	}

	targets, err := repo.ListTop(ctx, 0)
	if err != nil {
		t.Fatalf("list top: %v", err)
	}
	if len(targets) != 1 {
		t.Errorf("expected 1 target, got %d", len(targets))
	}
}
