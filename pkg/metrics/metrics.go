// Package metrics provides Prometheus collectors for submissions, analysis
// calls, legacy parsing and HTTP handling
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "siteprogress"

// Submission outcomes. Each attempt ends in exactly one of them; analysis
// failures show up in the analysis status counter instead.
const (
	OutcomeSaved          = "saved"
	OutcomeValidation     = "validation_failed"
	OutcomeStorageFailure = "storage_failed"
	OutcomeCancelled      = "cancelled"
)

// Metrics holds every collector of the service. All methods are safe on a
// nil receiver so components can run without metrics in tests.
type Metrics struct {
	registry *prometheus.Registry

	submissionsTotal  *prometheus.CounterVec
	analysisDuration  prometheus.Histogram
	analysisStatus    *prometheus.CounterVec
	parseMissesTotal  *prometheus.CounterVec
	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
}

// New creates and registers the collectors on registry.
func New(registry *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{
		registry: registry,
		submissionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "submissions_total",
				Help:      "Submission attempts by outcome",
			},
			[]string{"outcome"},
		),
		analysisDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "analysis_duration_seconds",
				Help:      "Time spent waiting for the image analysis service",
				Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10), // 250ms to ~2min
			},
		),
		analysisStatus: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "analysis_status_total",
				Help:      "Analysis results by verification status",
			},
			[]string{"status"},
		),
		parseMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "legacy_parse_misses_total",
				Help:      "Legacy description fragments that could not be recovered",
			},
			[]string{"reason"},
		),
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by route and status code",
			},
			[]string{"method", "route", "code"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Time taken for HTTP requests",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}

	for _, c := range []prometheus.Collector{
		m.submissionsTotal, m.analysisDuration, m.analysisStatus,
		m.parseMissesTotal, m.httpRequestsTotal, m.httpDuration,
	} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveSubmission counts one submission attempt.
func (m *Metrics) ObserveSubmission(outcome string) {
	if m == nil {
		return
	}
	m.submissionsTotal.WithLabelValues(outcome).Inc()
}

// ObserveAnalysis records the duration and resulting status of one call.
func (m *Metrics) ObserveAnalysis(d time.Duration, status string) {
	if m == nil {
		return
	}
	m.analysisDuration.Observe(d.Seconds())
	m.analysisStatus.WithLabelValues(status).Inc()
}

// ObserveParseMiss counts one unrecoverable legacy fragment.
func (m *Metrics) ObserveParseMiss(reason string) {
	if m == nil {
		return
	}
	m.parseMissesTotal.WithLabelValues(reason).Inc()
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, route, code string, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, route, code).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
