package health

import (
	"context"
	"database/sql"
	"time"

	"github.com/joungwon-dreams/joungwon-stocks-sub002/internal/apperror"
	"github.com/joungwon-dreams/joungwon-stocks-sub002/internal/collect"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Upsert writes the health row for the status's source, one row per source.
func (r *Repository) Upsert(ctx context.Context, hs *collect.HealthStatus) error {
	const query = `INSERT INTO health_statuses
		(source_id, status, consecutive_failures, last_success_at, last_failure_at, avg_response_time_ms, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		ON CONFLICT(source_id) DO UPDATE SET
			status = excluded.status,
			consecutive_failures = excluded.consecutive_failures,
			last_success_at = excluded.last_success_at,
			last_failure_at = excluded.last_failure_at,
			avg_response_time_ms = excluded.avg_response_time_ms,
			updated_at = excluded.updated_at`

	_, err := r.db.ExecContext(ctx, query,
		hs.SourceID, string(hs.Status), hs.ConsecutiveFailures,
		nullTime(hs.LastSuccessAt), nullTime(hs.LastFailureAt),
		hs.AvgResponseTimeMs,
	)
	if err != nil {
		return apperror.Wrap(apperror.Internal, "upsert health status", err)
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, sourceID int64) (*collect.HealthStatus, error) {
	const query = `SELECT source_id, status, consecutive_failures, last_success_at, last_failure_at, avg_response_time_ms
		FROM health_statuses WHERE source_id = ?`

	hs := &collect.HealthStatus{}
	var status string
	var success, failure sql.NullString
	err := r.db.QueryRowContext(ctx, query, sourceID).Scan(
		&hs.SourceID, &status, &hs.ConsecutiveFailures, &success, &failure, &hs.AvgResponseTimeMs,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperror.Wrap(apperror.Internal, "get health status", err)
	}
	hs.Status = collect.HealthState(status)
	hs.LastSuccessAt = parseTime(success)
	hs.LastFailureAt = parseTime(failure)
	return hs, nil
}

func (r *Repository) List(ctx context.Context) ([]collect.HealthStatus, error) {
	const query = `SELECT source_id, status, consecutive_failures, last_success_at, last_failure_at, avg_response_time_ms
		FROM health_statuses ORDER BY source_id ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, apperror.Wrap(apperror.Internal, "list health statuses", err)
	}
	defer func() { _ = rows.Close() }()

	var statuses []collect.HealthStatus
	for rows.Next() {
		var hs collect.HealthStatus
		var status string
		var success, failure sql.NullString
		if err := rows.Scan(&hs.SourceID, &status, &hs.ConsecutiveFailures, &success, &failure, &hs.AvgResponseTimeMs); err != nil {
			return nil, apperror.Wrap(apperror.Internal, "scan health status", err)
		}
		hs.Status = collect.HealthState(status)
		hs.LastSuccessAt = parseTime(success)
		hs.LastFailureAt = parseTime(failure)
		statuses = append(statuses, hs)
	}
	return statuses, rows.Err()
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s sql.NullString) time.Time {
	if !s.Valid {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339Nano, s.String)
	return t
}
