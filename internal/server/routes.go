package server

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/joungwon-dreams/joungwon-stocks-sub002/internal/collect"
)

// SourceLister reads the full source registry.
type SourceLister interface {
	List(ctx context.Context) ([]collect.Source, error)
}

// HealthLister reads all persisted health statuses.
type HealthLister interface {
	List(ctx context.Context) ([]collect.HealthStatus, error)
}

// ExecutionLister reads recent execution records.
type ExecutionLister interface {
	ListRecent(ctx context.Context, limit int) ([]collect.ExecutionRecord, error)
}

// Deps are the read-side collaborators of the HTTP API.
type Deps struct {
	Sources    SourceLister
	Health     HealthLister
	Executions ExecutionLister
}

// NewHandler creates the full HTTP handler with routes and middleware.
// Exported for use in tests (e.g., httptest.NewServer).
func NewHandler(deps Deps, gatherer prometheus.Gatherer) http.Handler {
	return newMux(deps, gatherer)
}

func newMux(deps Deps, gatherer prometheus.Gatherer) http.Handler {
	h := &handler{deps: deps}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.health)
	mux.HandleFunc("GET /api/v1/sources", h.listSources)
	mux.HandleFunc("GET /api/v1/executions", h.listExecutions)
	if gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	// Apply middleware stack: recovery -> requestID -> logging
	var handler http.Handler = mux
	handler = logging(handler)
	handler = requestID(handler)
	handler = recovery(handler)

	return handler
}
