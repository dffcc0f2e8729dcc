// Package collect implements the data-collection scheduling core: source
// adapters, per-source rate limiting, a global concurrency gate, bounded
// retries, per-source health tracking, and the orchestrator that fans out
// (source, target) work tier by tier.
package collect

import (
	"context"
	"time"
)

// Source is a registered external data provider. Rows are loaded once per
// run during Initialize and treated as immutable afterwards.
type Source struct {
	ID                 int64   `json:"id"`
	Name               string  `json:"name"`
	AdapterKind        string  `json:"adapterKind"`
	Tier               int     `json:"tier"`
	RateLimitPerMinute int     `json:"rateLimitPerMinute"`
	ReliabilityScore   float64 `json:"reliabilityScore"`
	IsActive           bool    `json:"isActive"`
}

// Target is the entity queried per fetch, identified by its ticker symbol.
type Target struct {
	ID       int64  `json:"id"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name,omitempty"`
	Rank     int    `json:"rank"`
	IsActive bool   `json:"isActive"`
}

type SourceRepository interface {
	// ListActive returns active sources ordered by tier ascending, then
	// reliability score descending.
	ListActive(ctx context.Context) ([]Source, error)
}

type TargetRepository interface {
	// ListTop returns up to limit active targets ordered by rank.
	ListTop(ctx context.Context, limit int) ([]Target, error)
}

// Status classifies the outcome of one fetch attempt.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusTimeout Status = "timeout"
	StatusSkipped Status = "skipped"
)

// HealthState is the per-source health classification.
type HealthState string

const (
	HealthActive   HealthState = "active"
	HealthDegraded HealthState = "degraded"
	HealthFailed   HealthState = "failed"
)

// ExecutionRecord is the append-only audit row written for every fetch
// attempt, one row per attempt regardless of outcome.
type ExecutionRecord struct {
	ID             int64     `json:"id"`
	RunID          string    `json:"runId"`
	SourceID       int64     `json:"sourceId"`
	TargetID       string    `json:"targetId"`
	Status         Status    `json:"status"`
	StartedAt      time.Time `json:"startedAt"`
	CompletedAt    time.Time `json:"completedAt"`
	DurationMs     int64     `json:"durationMs"`
	ErrorKind      ErrorKind `json:"errorKind"`
	ErrorMessage   string    `json:"errorMessage,omitempty"`
	RetryCount     int       `json:"retryCount"`
	RecordsFetched int64     `json:"recordsFetched"`
}

// HealthStatus is the upserted per-source health row.
type HealthStatus struct {
	SourceID            int64       `json:"sourceId"`
	Status              HealthState `json:"status"`
	ConsecutiveFailures int         `json:"consecutiveFailures"`
	LastSuccessAt       time.Time   `json:"lastSuccessAt,omitzero"`
	LastFailureAt       time.Time   `json:"lastFailureAt,omitzero"`
	AvgResponseTimeMs   float64     `json:"avgResponseTimeMs"`
}

// CollectedRecord is the persisted payload of a successful fetch, upserted
// on (target, source, data type, collection date) so re-collection is
// idempotent.
type CollectedRecord struct {
	ID             int64     `json:"id"`
	TargetID       string    `json:"targetId"`
	SourceID       int64     `json:"sourceId"`
	DataType       string    `json:"dataType"`
	Payload        []byte    `json:"payload"`
	CollectionDate time.Time `json:"collectionDate"`
	CollectedAt    time.Time `json:"collectedAt"`
}

type ExecutionRepository interface {
	Insert(ctx context.Context, rec *ExecutionRecord) error
}

type HealthRepository interface {
	Upsert(ctx context.Context, hs *HealthStatus) error
}

type CollectedRepository interface {
	Upsert(ctx context.Context, rec *CollectedRecord) error
}
