package collected

import (
	"context"
	"database/sql"
	"time"

	"github.com/joungwon-dreams/joungwon-stocks-sub002/internal/apperror"
	"github.com/joungwon-dreams/joungwon-stocks-sub002/internal/collect"
)

const dateFormat = "2006-01-02"

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Upsert writes the collected payload, keyed on (target, source, data type,
// collection date). Re-collection overwrites the payload and refreshes the
// collected_at timestamp, so re-running a collection is idempotent.
func (r *Repository) Upsert(ctx context.Context, rec *collect.CollectedRecord) error {
	const query = `INSERT INTO collected_records
		(target_id, source_id, data_type, payload, collection_date, collected_at)
		VALUES (?, ?, ?, ?, ?, strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		ON CONFLICT(target_id, source_id, data_type, collection_date) DO UPDATE SET
			payload = excluded.payload,
			collected_at = excluded.collected_at`

	_, err := r.db.ExecContext(ctx, query,
		rec.TargetID, rec.SourceID, rec.DataType,
		string(rec.Payload), rec.CollectionDate.UTC().Format(dateFormat),
	)
	if err != nil {
		return apperror.Wrap(apperror.Internal, "upsert collected record", err)
	}
	return nil
}

// Get returns the record for the upsert key, or nil when absent.
func (r *Repository) Get(ctx context.Context, targetID string, sourceID int64, dataType string, date time.Time) (*collect.CollectedRecord, error) {
	const query = `SELECT id, target_id, source_id, data_type, payload, collection_date, collected_at
		FROM collected_records
		WHERE target_id = ? AND source_id = ? AND data_type = ? AND collection_date = ?`

	rec := &collect.CollectedRecord{}
	var payload, dateStr, collectedStr string
	err := r.db.QueryRowContext(ctx, query,
		targetID, sourceID, dataType, date.UTC().Format(dateFormat),
	).Scan(&rec.ID, &rec.TargetID, &rec.SourceID, &rec.DataType, &payload, &dateStr, &collectedStr)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperror.Wrap(apperror.Internal, "get collected record", err)
	}
	rec.Payload = []byte(payload)
	rec.CollectionDate, _ = time.Parse(dateFormat, dateStr)
	rec.CollectedAt, _ = time.Parse(time.RFC3339, collectedStr)
	return rec, nil
}

// CountForTarget reports how many rows exist for a target, across sources.
func (r *Repository) CountForTarget(ctx context.Context, targetID string) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM collected_records WHERE target_id = ?`, targetID,
	).Scan(&n)
	if err != nil {
		return 0, apperror.Wrap(apperror.Internal, "count collected records", err)
	}
	return n, nil
}
