package target

import (
	"context"
	"database/sql"

	"github.com/joungwon-dreams/joungwon-stocks-sub002/internal/apperror"
	"github.com/joungwon-dreams/joungwon-stocks-sub002/internal/collect"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// ListTop returns up to limit active targets, best rank first. This is the
// default target list used when a run is started without explicit symbols.
func (r *Repository) ListTop(ctx context.Context, limit int) ([]collect.Target, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `SELECT id, symbol, name, rank, is_active
		FROM targets
		WHERE is_active = 1
		ORDER BY rank ASC, symbol ASC
		LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, apperror.Wrap(apperror.Internal, "list top targets", err)
	}
	defer func() { _ = rows.Close() }()

	var targets []collect.Target
	for rows.Next() {
		var t collect.Target
		var active int
		if err := rows.Scan(&t.ID, &t.Symbol, &t.Name, &t.Rank, &active); err != nil {
			return nil, apperror.Wrap(apperror.Internal, "scan target", err)
		}
		t.IsActive = active == 1
		targets = append(targets, t)
	}
	return targets, rows.Err()
}

func (r *Repository) Create(ctx context.Context, t *collect.Target) error {
	const query = `INSERT INTO targets (symbol, name, rank, is_active) VALUES (?, ?, ?, ?)`

	active := 0
	if t.IsActive {
		active = 1
	}
	res, err := r.db.ExecContext(ctx, query, t.Symbol, t.Name, t.Rank, active)
	if err != nil {
		return apperror.Wrap(apperror.Internal, "create target", err)
	}
	t.ID, _ = res.LastInsertId()
	return nil
}
