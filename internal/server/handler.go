package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/joungwon-dreams/joungwon-stocks-sub002/internal/apperror"
	"github.com/joungwon-dreams/joungwon-stocks-sub002/internal/collect"
)

type handler struct {
	deps Deps
}

// respondError maps an application error to its HTTP status. Plain errors
// are reported as internal without leaking their text to the client.
func respondError(w http.ResponseWriter, err error) {
	var ae *apperror.AppError
	if errors.As(err, &ae) {
		if ae.HTTPStatus() >= http.StatusInternalServerError {
			slog.Error("request failed", "code", ae.Code(), "error", err)
		}
		writeError(w, ae.HTTPStatus(), ae.Message())
		return
	}
	slog.Error("request failed", "error", err)
	writeError(w, http.StatusInternalServerError, "internal server error")
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// sourceView joins a registry row with its persisted health status.
type sourceView struct {
	collect.Source
	Health *collect.HealthStatus `json:"health,omitempty"`
}

func (h *handler) listSources(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sources, err := h.deps.Sources.List(ctx)
	if err != nil {
		respondError(w, err)
		return
	}
	statuses, err := h.deps.Health.List(ctx)
	if err != nil {
		respondError(w, err)
		return
	}

	bySource := make(map[int64]collect.HealthStatus, len(statuses))
	for _, hs := range statuses {
		bySource[hs.SourceID] = hs
	}

	views := make([]sourceView, 0, len(sources))
	for _, s := range sources {
		v := sourceView{Source: s}
		if hs, ok := bySource[s.ID]; ok {
			v.Health = &hs
		}
		views = append(views, v)
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *handler) listExecutions(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(w, apperror.New(apperror.BadRequest, "limit must be a positive integer"))
			return
		}
		limit = n
	}

	recs, err := h.deps.Executions.ListRecent(r.Context(), limit)
	if err != nil {
		respondError(w, err)
		return
	}
	if recs == nil {
		recs = []collect.ExecutionRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}
