// Copyright 2025 Certen Protocol
//
// Prometheus metrics shared by every long-running component (Observer,
// Validity Prover, Block Builder, Withdrawal Server, worker pool).
// Grounded on the HTTP-instrumentation middleware and promhttp wiring
// from the mini-service example in the pack: a *Metrics struct holding
// promauto-registered collectors, an HTTP middleware that records one
// request's method/path/status/duration, and domain counters the
// non-HTTP components (worker pool, withdrawal aggregator, validity
// prover) increment through the narrow Metrics interface each of those
// packages declares for itself.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every Prometheus collector this module registers.
// Components that only need a subset reach it through their own package's
// Metrics interface.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPActiveRequests  prometheus.Gauge

	TasksProcessedTotal  *prometheus.CounterVec
	TaskDurationSeconds  *prometheus.HistogramVec
	WithdrawalsRelayed   *prometheus.CounterVec
	BlockProposalsTotal  *prometheus.CounterVec
	ObserverEventsTotal  *prometheus.CounterVec
	LastWitnessedBlock   prometheus.Gauge
}

// New registers a fresh set of collectors against reg. Passing
// prometheus.NewRegistry() (rather than the global DefaultRegisterer)
// keeps repeated calls in tests from panicking on duplicate
// registration; cmd/ entrypoints likewise pass their own
// prometheus.NewRegistry() and serve it through Handler.
func New(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests processed, labeled by method, path and status.",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		HTTPActiveRequests: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_active_requests",
			Help:      "Number of HTTP requests currently being served.",
		}),
		TasksProcessedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_tasks_processed_total",
			Help:      "Worker pool tasks processed, labeled by task kind and outcome.",
		}, []string{"kind", "outcome"}),
		TaskDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "worker_task_duration_seconds",
			Help:      "Worker pool task processing duration in seconds, labeled by task kind.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		WithdrawalsRelayed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "withdrawals_relayed_total",
			Help:      "Withdrawal aggregator relay attempts, labeled by outcome.",
		}, []string{"outcome"}),
		BlockProposalsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "block_proposals_total",
			Help:      "Block Builder proposals finalized, labeled by kind.",
		}, []string{"kind"}),
		ObserverEventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observer_events_total",
			Help:      "On-chain events durably persisted by the observer, labeled by event type.",
		}, []string{"event_type"}),
		LastWitnessedBlock: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "validity_prover_last_witnessed_block",
			Help:      "Highest block number for which a witness has been built.",
		}),
	}
}

// Handler exposes the collectors registered against reg for scraping.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// HTTPMiddleware wraps next so every request's method, path, status and
// duration are recorded, mirroring the teacher example's
// middleware.Metrics(m) wrapping a ResponseWriter that tracks the status
// code written.
func (m *Metrics) HTTPMiddleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		m.HTTPActiveRequests.Inc()
		defer m.HTTPActiveRequests.Dec()

		rw := newResponseWriter(w)
		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(rw.statusCode)
		m.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path, status).Observe(duration)
	})
}

// RecordEventsPersisted satisfies pkg/observer.Metrics.
func (m *Metrics) RecordEventsPersisted(eventType string, count int) {
	m.ObserverEventsTotal.WithLabelValues(eventType).Add(float64(count))
}

// RecordGap satisfies pkg/observer.Metrics.
func (m *Metrics) RecordGap(eventType string) {
	m.ObserverEventsTotal.WithLabelValues(eventType + "_gap").Inc()
}

// RecordTaskProcessed satisfies pkg/worker.Metrics.
func (m *Metrics) RecordTaskProcessed(kind, outcome string, duration time.Duration) {
	m.TasksProcessedTotal.WithLabelValues(kind, outcome).Inc()
	m.TaskDurationSeconds.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordWithdrawalRelay satisfies pkg/withdrawal.Metrics.
func (m *Metrics) RecordWithdrawalRelay(outcome string) {
	m.WithdrawalsRelayed.WithLabelValues(outcome).Inc()
}

// RecordBlockProposal satisfies pkg/blockbuilder.Metrics.
func (m *Metrics) RecordBlockProposal(kind string) {
	m.BlockProposalsTotal.WithLabelValues(kind).Inc()
}

// RecordWitnessBuilt satisfies pkg/validityprover.Metrics.
func (m *Metrics) RecordWitnessBuilt(blockNumber uint64) {
	m.LastWitnessedBlock.Set(float64(blockNumber))
}

// responseWriter wraps http.ResponseWriter to capture the status code a
// handler wrote, defaulting to 200 the way net/http itself does when a
// handler never calls WriteHeader.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}
