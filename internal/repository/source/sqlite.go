package source

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

// ListActive returns active sources ordered by tier ascending then
// reliability descending, the order the orchestrator schedules them in.
func (r *Repository) ListActive(ctx context.Context) ([]collect.Source, error) {
	const query = `SELECT id, name, adapter_kind, tier, rate_limit_per_minute, reliability_score, is_active
		FROM sources
		WHERE is_active = 1
		ORDER BY tier ASC, reliability_score DESC, name ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, apperror.Wrap(apperror.Internal, "list active sources", err)
	}
	defer func() { _ = rows.Close() }()

	var sources []collect.Source
	for rows.Next() {
		var s collect.Source
		var active int
		if err := rows.Scan(&s.ID, &s.Name, &s.AdapterKind, &s.Tier, &s.RateLimitPerMinute, &s.ReliabilityScore, &active); err != nil {
			return nil, apperror.Wrap(apperror.Internal, "scan source", err)
		}
		s.IsActive = active == 1
		sources = append(sources, s)
	}
	return sources, rows.Err()
}

// List returns every registered source regardless of active flag.
func (r *Repository) List(ctx context.Context) ([]collect.Source, error) {
	const query = `SELECT id, name, adapter_kind, tier, rate_limit_per_minute, reliability_score, is_active
		FROM sources
		ORDER BY tier ASC, reliability_score DESC, name ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, apperror.Wrap(apperror.Internal, "list sources", err)
	}
	defer func() { _ = rows.Close() }()

	var sources []collect.Source
	for rows.Next() {
		var s collect.Source
		var active int
		if err := rows.Scan(&s.ID, &s.Name, &s.AdapterKind, &s.Tier, &s.RateLimitPerMinute, &s.ReliabilityScore, &active); err != nil {
			return nil, apperror.Wrap(apperror.Internal, "scan source", err)
		}
		s.IsActive = active == 1
		sources = append(sources, s)
	}
	return sources, rows.Err()
}

func (r *Repository) Create(ctx context.Context, s *collect.Source) error {
	const query = `INSERT INTO sources (name, adapter_kind, tier, rate_limit_per_minute, reliability_score, is_active)
		VALUES (?, ?, ?, ?, ?, ?)`

	active := 0
	if s.IsActive {
		active = 1
	}
	res, err := r.db.ExecContext(ctx, query, s.Name, s.AdapterKind, s.Tier, s.RateLimitPerMinute, s.ReliabilityScore, active)
	if err != nil {
		return apperror.Wrap(apperror.Internal, "create source", err)
	}
	s.ID, _ = res.LastInsertId()
	return nil
}
