package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Admission outcomes.
const (
	OutcomeAllowed  = "allowed"
	OutcomeRejected = "rejected"
	OutcomeSkipped  = "skipped"
	OutcomeDegraded = "degraded"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Admission metrics
	AdmissionDecisions *prometheus.CounterVec
	StoreFallbacks     *prometheus.CounterVec
	StoreBackend       *prometheus.GaugeVec

	// Judge metrics
	JudgeRequests *prometheus.CounterVec
	JudgeDuration *prometheus.HistogramVec

	// Event metrics
	EventsConsumed *prometheus.CounterVec
}

// New creates a Metrics instance registered with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a Metrics instance registered with registerer.
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)

	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "compiler_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "operation", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "compiler_http_request_duration_seconds",
				Help:    "HTTP request latencies in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "operation"},
		),
		AdmissionDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "compiler_admission_decisions_total",
				Help: "Admission gate decisions per policy",
			},
			[]string{"policy", "outcome"},
		),
		StoreFallbacks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "compiler_ratelimit_store_fallbacks_total",
				Help: "Increments served by the in-process counter store",
			},
			[]string{"reason"},
		),
		StoreBackend: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "compiler_ratelimit_store_backend",
				Help: "Active rate limit counter backend (1 = active)",
			},
			[]string{"backend"},
		),
		JudgeRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "compiler_judge_requests_total",
				Help: "Requests sent to the remote judge",
			},
			[]string{"operation", "status"},
		),
		JudgeDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "compiler_judge_request_duration_seconds",
				Help:    "Remote judge latencies in seconds",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"operation"},
		),
		EventsConsumed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "compiler_events_consumed_total",
				Help: "Activity events consumed per topic and outcome",
			},
			[]string{"topic", "outcome"},
		),
	}
}

// ObserveDecision counts one admission decision.
func (m *Metrics) ObserveDecision(policy, outcome string) {
	m.AdmissionDecisions.WithLabelValues(policy, outcome).Inc()
}

// ObserveFallback counts one increment served locally.
func (m *Metrics) ObserveFallback(reason string) {
	m.StoreFallbacks.WithLabelValues(reason).Inc()
}

// SetBackend flips the backend gauge to the active store.
func (m *Metrics) SetBackend(connected bool) {
	redis, memory := 0.0, 1.0
	if connected {
		redis, memory = 1, 0
	}

	m.StoreBackend.WithLabelValues("redis").Set(redis)
	m.StoreBackend.WithLabelValues("memory").Set(memory)
}

// ObserveJudge records one judge call. status is the upstream HTTP status, 0 when unreachable.
func (m *Metrics) ObserveJudge(operation string, status int, elapsed time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}

	m.JudgeRequests.WithLabelValues(operation, label).Inc()
	m.JudgeDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// ObserveRequest records one served HTTP request.
func (m *Metrics) ObserveRequest(method, operation string, status int, elapsed time.Duration) {
	m.RequestsTotal.WithLabelValues(method, operation, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(method, operation).Observe(elapsed.Seconds())
}

// ObserveEvent counts one consumed activity event.
func (m *Metrics) ObserveEvent(topic, outcome string) {
	m.EventsConsumed.WithLabelValues(topic, outcome).Inc()
}
