package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/joungwon-dreams/joungwon-stocks-sub002/internal/apperror"
	"github.com/joungwon-dreams/joungwon-stocks-sub002/internal/collect"
)

type stubSourceLister struct {
	sources []collect.Source
	err     error
}

func (s *stubSourceLister) List(context.Context) ([]collect.Source, error) {
	return s.sources, s.err
}

type stubHealthLister struct {
	statuses []collect.HealthStatus
}

func (s *stubHealthLister) List(context.Context) ([]collect.HealthStatus, error) {
	return s.statuses, nil
}

type stubExecutionLister struct {
	records   []collect.ExecutionRecord
	lastLimit int
}

func (s *stubExecutionLister) ListRecent(_ context.Context, limit int) ([]collect.ExecutionRecord, error) {
	s.lastLimit = limit
	if limit < len(s.records) {
		return s.records[:limit], nil
	}
	return s.records, nil
}

func newTestHandler(deps Deps) http.Handler {
	return NewHandler(deps, prometheus.NewRegistry())
}

func TestHealthEndpoint(t *testing.T) {
	h := newTestHandler(Deps{
		Sources:    &stubSourceLister{},
		Health:     &stubHealthLister{},
		Executions: &stubExecutionLister{},
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp APIResponse[map[string]string]
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Data["status"] != "ok" {
		t.Errorf("expected status ok, got %s", resp.Data["status"])
	}
}

func TestListSources_JoinsHealth(t *testing.T) {
	h := newTestHandler(Deps{
		Sources: &stubSourceLister{sources: []collect.Source{
			{ID: 1, Name: "yahoo", AdapterKind: "yahoo-chart", Tier: 1},
			{ID: 2, Name: "stooq", AdapterKind: "stooq-csv", Tier: 2},
		}},
		Health: &stubHealthLister{statuses: []collect.HealthStatus{
			{SourceID: 1, Status: collect.HealthDegraded, ConsecutiveFailures: 2},
		}},
		Executions: &stubExecutionLister{},
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/sources", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp APIResponse[[]sourceView]
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Data) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(resp.Data))
	}
	if resp.Data[0].Health == nil || resp.Data[0].Health.Status != collect.HealthDegraded {
		t.Errorf("expected source 1 to carry degraded health, got %+v", resp.Data[0].Health)
	}
	if resp.Data[1].Health != nil {
		t.Errorf("expected source 2 to have no health status, got %+v", resp.Data[1].Health)
	}
}

func TestListExecutions(t *testing.T) {
	lister := &stubExecutionLister{records: []collect.ExecutionRecord{
		{ID: 3, SourceID: 1, TargetID: "AAPL", Status: collect.StatusSuccess, StartedAt: time.Now()},
		{ID: 2, SourceID: 1, TargetID: "MSFT", Status: collect.StatusFailed, ErrorKind: collect.ErrKindConnection, StartedAt: time.Now()},
	}}
	h := newTestHandler(Deps{
		Sources:    &stubSourceLister{},
		Health:     &stubHealthLister{},
		Executions: lister,
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/executions?limit=1", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if lister.lastLimit != 1 {
		t.Errorf("expected limit 1 passed through, got %d", lister.lastLimit)
	}

	var resp APIResponse[[]collect.ExecutionRecord]
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Data) != 1 || resp.Data[0].TargetID != "AAPL" {
		t.Errorf("unexpected records: %+v", resp.Data)
	}
}

func TestListSources_MapsAppErrors(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "wrapped internal",
			err:        apperror.Wrap(apperror.Internal, "list sources", errors.New("disk I/O error")),
			wantStatus: http.StatusInternalServerError,
			wantMsg:    "list sources",
		},
		{
			name:       "not found",
			err:        apperror.New(apperror.NotFound, "registry is empty"),
			wantStatus: http.StatusNotFound,
			wantMsg:    "registry is empty",
		},
		{
			name:       "plain error",
			err:        errors.New("driver: bad connection"),
			wantStatus: http.StatusInternalServerError,
			wantMsg:    "internal server error",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newTestHandler(Deps{
				Sources:    &stubSourceLister{err: tc.err},
				Health:     &stubHealthLister{},
				Executions: &stubExecutionLister{},
			})

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/sources", nil))

			if rec.Code != tc.wantStatus {
				t.Fatalf("expected %d, got %d", tc.wantStatus, rec.Code)
			}
			var resp APIResponse[string]
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if resp.Message != tc.wantMsg {
				t.Errorf("expected message %q, got %q", tc.wantMsg, resp.Message)
			}
		})
	}
}

func TestListExecutions_RejectsBadLimit(t *testing.T) {
	h := newTestHandler(Deps{
		Sources:    &stubSourceLister{},
		Health:     &stubHealthLister{},
		Executions: &stubExecutionLister{},
	})

	for _, limit := range []string{"0", "-5", "abc"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/executions?limit="+limit, nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("limit=%s: expected 400, got %d", limit, rec.Code)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_counter_total"})
	reg.MustRegister(c)
	c.Inc()

	h := NewHandler(Deps{
		Sources:    &stubSourceLister{},
		Health:     &stubHealthLister{},
		Executions: &stubExecutionLister{},
	}, reg)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body := rec.Body.String(); !strings.Contains(body, "test_counter_total 1") {
		t.Errorf("expected metric in output, got:\n%s", body)
	}
}
