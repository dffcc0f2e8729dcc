package collect

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Deps wires the orchestrator's collaborators. Everything the orchestrator
// owns lives on the instance; there are no package-level registries.
type Deps struct {
	Sources    SourceRepository
	Targets    TargetRepository
	Executions ExecutionRepository
	Collected  CollectedRepository
	Health     HealthRepository
	Factory    *Factory
	Observer   Observer

	MaxConcurrent    int
	MaxRetries       int
	RetryBaseDelay   time.Duration
	DefaultRateLimit int
	TargetLimit      int

	// Closer, when set, is released by Shutdown (typically the database).
	Closer io.Closer
}

// Tally counts unit outcomes. A unit's final attempt determines its bucket.
type Tally struct {
	Success int `json:"success"`
	Failed  int `json:"failed"`
	Timeout int `json:"timeout"`
	Skipped int `json:"skipped"`
}

func (t *Tally) add(s Status) {
	switch s {
	case StatusSuccess:
		t.Success++
	case StatusTimeout:
		t.Timeout++
	case StatusSkipped:
		t.Skipped++
	default:
		t.Failed++
	}
}

// Units returns the total number of counted units.
func (t Tally) Units() int { return t.Success + t.Failed + t.Timeout + t.Skipped }

// RunSummary aggregates one collection run.
type RunSummary struct {
	RunID       string            `json:"runId"`
	StartedAt   time.Time         `json:"startedAt"`
	CompletedAt time.Time         `json:"completedAt"`
	Targets     int               `json:"targets"`
	Total       Tally             `json:"total"`
	ByTier      map[int]*Tally    `json:"byTier"`
	BySource    map[string]*Tally `json:"bySource"`
}

// Orchestrator fans every (source, target) pair out through the concurrency
// gate, the source's rate limiter, the retry policy, and the executor,
// tier by tier. One misbehaving pair never prevents any other pair from
// being attempted.
type Orchestrator struct {
	deps    Deps
	gate    *Gate
	limiter *Limiter
	retry   RetryPolicy
	tracker *HealthTracker

	sources   []Source
	executors map[int64]*Executor

	closeOnce sync.Once
}

func NewOrchestrator(deps Deps) *Orchestrator {
	if deps.Observer == nil {
		deps.Observer = NopObserver{}
	}
	if deps.TargetLimit <= 0 {
		deps.TargetLimit = 50
	}
	return &Orchestrator{
		deps:      deps,
		gate:      NewGate(deps.MaxConcurrent),
		limiter:   NewLimiter(deps.DefaultRateLimit),
		retry:     NewRetryPolicy(deps.MaxRetries, deps.RetryBaseDelay),
		tracker:   NewHealthTracker(deps.Health),
		executors: make(map[int64]*Executor),
	}
}

// Initialize loads the active source registry and builds one adapter, one
// executor, and one rate-limiter bucket per source. Sources whose
// adapter_kind has no registered constructor are skipped with a warning.
func (o *Orchestrator) Initialize(ctx context.Context) error {
	sources, err := o.deps.Sources.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("load sources: %w", err)
	}

	o.sources = o.sources[:0]
	for _, src := range sources {
		adapter, err := o.deps.Factory.New(src)
		if err != nil {
			slog.Warn("skipping source with no adapter", "source", src.Name, "kind", src.AdapterKind)
			continue
		}
		o.limiter.Add(src)
		o.executors[src.ID] = NewExecutor(src, adapter, o.deps.Executions, o.deps.Collected, o.tracker, o.deps.Observer)
		o.sources = append(o.sources, src)

		if !adapter.SelfCheck(ctx) {
			slog.Warn("source self-check failed; upstream schema may have drifted",
				"source", src.Name, "kind", src.AdapterKind)
		}
	}

	if len(o.sources) == 0 {
		return fmt.Errorf("no usable sources in registry")
	}
	slog.Info("orchestrator initialized", "sources", len(o.sources), "max_concurrent", o.gate.Max())
	return nil
}

// Run collects every (source, target) pair. When targets is empty the
// default top-ranked active targets are used. Tiers run strictly in order:
// all of tier N's units complete before tier N+1 starts. Within a tier,
// units race freely for gate and limiter permits.
func (o *Orchestrator) Run(ctx context.Context, targets []Target) (*RunSummary, error) {
	if len(o.executors) == 0 {
		return nil, fmt.Errorf("orchestrator not initialized")
	}

	if len(targets) == 0 {
		var err error
		targets, err = o.deps.Targets.ListTop(ctx, o.deps.TargetLimit)
		if err != nil {
			return nil, fmt.Errorf("load default targets: %w", err)
		}
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("no targets to collect")
	}

	summary := &RunSummary{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Targets:   len(targets),
		ByTier:    make(map[int]*Tally),
		BySource:  make(map[string]*Tally),
	}
	var mu sync.Mutex

	slog.Info("collection run started", "run", summary.RunID, "sources", len(o.sources), "targets", len(targets))

	for _, tier := range o.tiers() {
		g, tierCtx := errgroup.WithContext(ctx)
		for _, src := range o.tierSources(tier) {
			exec := o.executors[src.ID]

			if hs := o.tracker.Status(src.ID); hs.Status == HealthFailed {
				// Health is observational: failed sources still run, loudly.
				slog.Warn("scheduling source currently marked failed",
					"source", src.Name, "consecutive_failures", hs.ConsecutiveFailures)
			}

			for _, target := range targets {
				g.Go(func() error {
					status := o.runUnit(tierCtx, summary.RunID, exec, target)
					mu.Lock()
					summary.Total.add(status)
					tierTally(summary.ByTier, tier).add(status)
					sourceTally(summary.BySource, src.Name).add(status)
					mu.Unlock()
					return nil
				})
			}
		}
		// Sequential barrier: drain the tier before starting the next one.
		_ = g.Wait()

		if ctx.Err() != nil {
			break
		}
	}

	summary.CompletedAt = time.Now().UTC()
	slog.Info("collection run finished",
		"run", summary.RunID,
		"units", summary.Total.Units(),
		"success", summary.Total.Success,
		"failed", summary.Total.Failed,
		"timeout", summary.Total.Timeout,
		"skipped", summary.Total.Skipped,
		"duration", summary.CompletedAt.Sub(summary.StartedAt).String(),
	)
	return summary, ctx.Err()
}

// runUnit executes one (source, target) pair: gate, limiter, then the retry
// loop around the executor. Permits are released on every path. Units that
// never got to fetch because the run was cancelled still leave a record.
func (o *Orchestrator) runUnit(ctx context.Context, runID string, exec *Executor, target Target) Status {
	if err := o.gate.Acquire(ctx); err != nil {
		return o.recordCancelled(ctx, runID, exec, target, err)
	}
	defer o.gate.Release()

	o.deps.Observer.InFlightAdd(1)
	defer o.deps.Observer.InFlightAdd(-1)

	waitStart := time.Now()
	if err := o.limiter.Wait(ctx, exec.Source().ID); err != nil {
		return o.recordCancelled(ctx, runID, exec, target, err)
	}
	o.deps.Observer.LimiterWaited(exec.Source().Name, time.Since(waitStart))

	var last Status
	_ = o.retry.Do(ctx, func(ctx context.Context, attempt int) error {
		status, err := exec.Execute(ctx, runID, target, attempt)
		last = status
		return err
	})
	return last
}

// recordCancelled writes the best-effort timeout record for a unit whose
// run ended before it could fetch, so cancellation leaves no silent gaps.
func (o *Orchestrator) recordCancelled(ctx context.Context, runID string, exec *Executor, target Target, cause error) Status {
	now := time.Now().UTC()
	rec := &ExecutionRecord{
		RunID:        runID,
		SourceID:     exec.Source().ID,
		TargetID:     target.Symbol,
		Status:       StatusTimeout,
		StartedAt:    now,
		CompletedAt:  now,
		ErrorKind:    ErrKindTimeout,
		ErrorMessage: fmt.Sprintf("run cancelled before fetch: %v", cause),
	}
	if o.deps.Executions != nil {
		if err := o.deps.Executions.Insert(context.WithoutCancel(ctx), rec); err != nil {
			slog.Error("save cancellation record", "source", exec.Source().Name, "target", target.Symbol, "error", err)
		}
	}
	return StatusTimeout
}

// Health returns the tracked health snapshot for every initialized source.
func (o *Orchestrator) Health() []HealthStatus {
	out := make([]HealthStatus, 0, len(o.sources))
	for _, src := range o.sources {
		out = append(out, o.tracker.Status(src.ID))
	}
	return out
}

// Sources returns the sources loaded by Initialize, in scheduling order.
func (o *Orchestrator) Sources() []Source {
	return o.sources
}

// Shutdown releases held resources. It is idempotent and safe to call after
// a failed Initialize.
func (o *Orchestrator) Shutdown() error {
	var err error
	o.closeOnce.Do(func() {
		if o.deps.Closer != nil {
			err = o.deps.Closer.Close()
		}
	})
	return err
}

// tiers returns the distinct tiers of the loaded sources, ascending.
func (o *Orchestrator) tiers() []int {
	seen := make(map[int]bool)
	var tiers []int
	for _, src := range o.sources {
		if !seen[src.Tier] {
			seen[src.Tier] = true
			tiers = append(tiers, src.Tier)
		}
	}
	sort.Ints(tiers)
	return tiers
}

// tierSources returns the sources of one tier in registry order (reliability
// descending within the tier).
func (o *Orchestrator) tierSources(tier int) []Source {
	var out []Source
	for _, src := range o.sources {
		if src.Tier == tier {
			out = append(out, src)
		}
	}
	return out
}

func tierTally(m map[int]*Tally, tier int) *Tally {
	if m[tier] == nil {
		m[tier] = &Tally{}
	}
	return m[tier]
}

func sourceTally(m map[string]*Tally, name string) *Tally {
	if m[name] == nil {
		m[name] = &Tally{}
	}
	return m[name]
}
