// Package metrics exposes Prometheus instrumentation for the collection
// core. All collectors are owned by a Metrics instance registered against
// an injected registry; there is no package-level state.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/joungwon-dreams/joungwon-stocks-sub002/internal/collect"
)

type Metrics struct {
	fetchTotal    *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
	inFlight      prometheus.Gauge
	limiterWait   *prometheus.HistogramVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		fetchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "collector",
			Name:      "fetch_total",
			Help:      "Fetch attempts by source and outcome.",
		}, []string{"source", "status"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "collector",
			Name:      "fetch_duration_seconds",
			Help:      "Fetch attempt duration by source.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "collector",
			Name:      "fetches_in_flight",
			Help:      "Fetch units currently holding a concurrency permit.",
		}),
		limiterWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "collector",
			Name:      "rate_limit_wait_seconds",
			Help:      "Time spent waiting on the per-source rate limiter.",
			Buckets:   []float64{.005, .05, .25, 1, 5, 15, 30, 60},
		}, []string{"source"}),
	}
	reg.MustRegister(m.fetchTotal, m.fetchDuration, m.inFlight, m.limiterWait)
	return m
}

// FetchObserved implements collect.Observer.
func (m *Metrics) FetchObserved(source string, status collect.Status, d time.Duration) {
	m.fetchTotal.WithLabelValues(source, string(status)).Inc()
	m.fetchDuration.WithLabelValues(source).Observe(d.Seconds())
}

// InFlightAdd implements collect.Observer.
func (m *Metrics) InFlightAdd(delta int) {
	m.inFlight.Add(float64(delta))
}

// LimiterWaited implements collect.Observer.
func (m *Metrics) LimiterWaited(source string, wait time.Duration) {
	m.limiterWait.WithLabelValues(source).Observe(wait.Seconds())
}
