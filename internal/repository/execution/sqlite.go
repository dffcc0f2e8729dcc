package execution

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

// Insert appends one execution record. The table is append-only; records
// are never updated or deleted by the application.
func (r *Repository) Insert(ctx context.Context, rec *collect.ExecutionRecord) error {
	const query = `INSERT INTO execution_records
		(run_id, source_id, target_id, status, started_at, completed_at, duration_ms, error_kind, error_message, retry_count, records_fetched)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	res, err := r.db.ExecContext(ctx, query,
		rec.RunID, rec.SourceID, rec.TargetID, string(rec.Status),
		rec.StartedAt.UTC().Format(time.RFC3339Nano),
		rec.CompletedAt.UTC().Format(time.RFC3339Nano),
		rec.DurationMs, string(rec.ErrorKind), rec.ErrorMessage,
		rec.RetryCount, rec.RecordsFetched,
	)
	if err != nil {
		return apperror.Wrap(apperror.Internal, "insert execution record", err)
	}
	rec.ID, _ = res.LastInsertId()
	return nil
}

// ListRecent returns the newest records first, capped at limit.
func (r *Repository) ListRecent(ctx context.Context, limit int) ([]collect.ExecutionRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	const query = `SELECT id, run_id, source_id, target_id, status, started_at, completed_at,
		duration_ms, error_kind, error_message, retry_count, records_fetched
		FROM execution_records
		ORDER BY id DESC
		LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, apperror.Wrap(apperror.Internal, "list execution records", err)
	}
	defer func() { _ = rows.Close() }()

	return scanRecords(rows)
}

// ListByRun returns every record of one run in insertion order.
func (r *Repository) ListByRun(ctx context.Context, runID string) ([]collect.ExecutionRecord, error) {
	const query = `SELECT id, run_id, source_id, target_id, status, started_at, completed_at,
		duration_ms, error_kind, error_message, retry_count, records_fetched
		FROM execution_records
		WHERE run_id = ?
		ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, apperror.Wrap(apperror.Internal, "list run records", err)
	}
	defer func() { _ = rows.Close() }()

	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]collect.ExecutionRecord, error) {
	var recs []collect.ExecutionRecord
	for rows.Next() {
		var rec collect.ExecutionRecord
		var status, kind, startedStr, completedStr string
		if err := rows.Scan(
			&rec.ID, &rec.RunID, &rec.SourceID, &rec.TargetID, &status,
			&startedStr, &completedStr, &rec.DurationMs, &kind,
			&rec.ErrorMessage, &rec.RetryCount, &rec.RecordsFetched,
		); err != nil {
			return nil, apperror.Wrap(apperror.Internal, "scan execution record", err)
		}
		rec.Status = collect.Status(status)
		rec.ErrorKind = collect.ErrorKind(kind)
		rec.StartedAt, _ = time.Parse(time.RFC3339Nano, startedStr)
		rec.CompletedAt, _ = time.Parse(time.RFC3339Nano, completedStr)
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
