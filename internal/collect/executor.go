package collect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// maxErrorMessage caps the error text stored on an execution record.
const maxErrorMessage = 500

// Observer receives scheduling-core events, typically for metrics.
// Implementations must be safe for concurrent use.
type Observer interface {
	FetchObserved(source string, status Status, duration time.Duration)
	InFlightAdd(delta int)
	LimiterWaited(source string, wait time.Duration)
}

// NopObserver discards all events.
type NopObserver struct{}

func (NopObserver) FetchObserved(string, Status, time.Duration) {}
func (NopObserver) InFlightAdd(int)                             {}
func (NopObserver) LimiterWaited(string, time.Duration)         {}

// Executor is the single instrumentation boundary around one source's
// adapter. Every invocation, whatever its outcome, produces exactly one
// execution record and one health update. Adapter panics are caught here
// and classified unknown; they never propagate to the orchestrator.
type Executor struct {
	source     Source
	adapter    Adapter
	executions ExecutionRepository
	collected  CollectedRepository
	health     *HealthTracker
	observer   Observer
}

func NewExecutor(src Source, adapter Adapter, executions ExecutionRepository, collected CollectedRepository, health *HealthTracker, observer Observer) *Executor {
	if observer == nil {
		observer = NopObserver{}
	}
	return &Executor{
		source:     src,
		adapter:    adapter,
		executions: executions,
		collected:  collected,
		health:     health,
		observer:   observer,
	}
}

func (e *Executor) Source() Source { return e.source }

// Execute performs one fetch attempt for target and records it. attempt is
// the zero-based retry ordinal stamped onto the record. The returned status
// is the classified outcome; the returned error is nil for success and
// no-data outcomes and carries the classified failure otherwise, so a retry
// policy can decide whether to try again.
func (e *Executor) Execute(ctx context.Context, runID string, target Target, attempt int) (Status, error) {
	started := time.Now().UTC()
	res, err := e.fetch(ctx, target)
	completed := time.Now().UTC()
	duration := completed.Sub(started)

	status, kind := classify(err)

	rec := &ExecutionRecord{
		RunID:        runID,
		SourceID:     e.source.ID,
		TargetID:     target.Symbol,
		Status:       status,
		StartedAt:    started,
		CompletedAt:  completed,
		DurationMs:   duration.Milliseconds(),
		ErrorKind:    kind,
		ErrorMessage: truncate(errText(err), maxErrorMessage),
		RetryCount:   attempt,
	}
	if res != nil {
		rec.RecordsFetched = res.Records
	}

	if status == StatusSuccess && res != nil && e.collected != nil {
		cr := &CollectedRecord{
			TargetID:       target.Symbol,
			SourceID:       e.source.ID,
			DataType:       res.DataType,
			Payload:        res.Payload,
			CollectionDate: started.Truncate(24 * time.Hour),
		}
		if uerr := e.collected.Upsert(ctx, cr); uerr != nil {
			slog.Error("executor: save collected record",
				"source", e.source.Name, "target", target.Symbol, "error", uerr)
		}
	}

	// The record is the audit trail; write it even when the run context is
	// already cancelled.
	if e.executions != nil {
		if ierr := e.executions.Insert(context.WithoutCancel(ctx), rec); ierr != nil {
			slog.Error("executor: save execution record",
				"source", e.source.Name, "target", target.Symbol, "error", ierr)
		}
	}

	if e.health != nil {
		e.health.Update(context.WithoutCancel(ctx), e.source.ID, status, duration)
	}
	e.observer.FetchObserved(e.source.Name, status, duration)

	if err != nil && status != StatusSkipped {
		slog.Warn("fetch failed",
			"source", e.source.Name,
			"target", target.Symbol,
			"kind", kind,
			"attempt", attempt,
			"error", truncate(err.Error(), maxErrorMessage),
		)
		return status, err
	}
	return status, nil
}

// fetch invokes the adapter, converting panics into unknown fetch errors so
// a misbehaving adapter cannot take down the run.
func (e *Executor) fetch(ctx context.Context, target Target) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = &FetchError{Kind: ErrKindUnknown, Err: fmt.Errorf("adapter panic: %v", r)}
		}
	}()
	return e.adapter.Fetch(ctx, target)
}

// classify maps a fetch error to the record status and error kind. No-data
// is a skip, never a failure.
func classify(err error) (Status, ErrorKind) {
	if err == nil {
		return StatusSuccess, ErrKindNone
	}
	if errors.Is(err, ErrNoData) {
		return StatusSkipped, ErrKindNone
	}
	kind := KindOf(err)
	if kind == ErrKindTimeout {
		return StatusTimeout, kind
	}
	return StatusFailed, kind
}

func errText(err error) string {
	if err == nil || errors.Is(err, ErrNoData) {
		return ""
	}
	return err.Error()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
