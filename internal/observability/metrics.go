// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace prefixes every metric name.
const Namespace = "trust_engine"

// Metrics holds the pipeline's Prometheus collectors. A nil *Metrics is
// valid and records nothing, so components can run without metrics.
type Metrics struct {
	// AnalysesTotal counts pipeline invocations by input type and outcome
	// ("ok" or an error kind).
	AnalysesTotal *prometheus.CounterVec

	// StageDuration observes per-stage latency in seconds.
	StageDuration *prometheus.HistogramVec

	// CacheLookups counts analysis cache lookups by result ("hit" or "miss").
	CacheLookups *prometheus.CounterVec

	// CacheEvictions counts entries removed by the background sweeper.
	CacheEvictions prometheus.Counter

	// ProviderAttempts counts provider calls by phase and outcome.
	ProviderAttempts *prometheus.CounterVec

	// ProviderRetries counts retries scheduled by phase.
	ProviderRetries *prometheus.CounterVec

	// ProviderDuration observes provider call latency by phase.
	ProviderDuration *prometheus.HistogramVec

	// TrustScores observes the distribution of overall trust scores.
	TrustScores prometheus.Histogram

	// HTTPRequests counts API requests by route and status code.
	HTTPRequests *prometheus.CounterVec
}

// NewMetrics registers all collectors with reg. Tests pass a fresh
// prometheus.NewRegistry(); the server uses the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		AnalysesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "analyses_total",
			Help:      "Total number of study analyses by input type and outcome",
		}, []string{"input_type", "outcome"}),
		StageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages in seconds",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}, []string{"stage"}),
		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "cache_lookups_total",
			Help:      "Total number of analysis cache lookups by result",
		}, []string{"result"}),
		CacheEvictions: f.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "cache_evictions_total",
			Help:      "Total number of expired cache entries removed by the sweeper",
		}),
		ProviderAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "provider_attempts_total",
			Help:      "Total number of analysis provider calls by phase and outcome",
		}, []string{"phase", "outcome"}),
		ProviderRetries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "provider_retries_total",
			Help:      "Total number of analysis provider retries by phase",
		}, []string{"phase"}),
		ProviderDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "provider_duration_seconds",
			Help:      "Duration of analysis provider calls in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
		}, []string{"phase"}),
		TrustScores: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "trust_score",
			Help:      "Distribution of overall trust scores",
			Buckets:   prometheus.LinearBuckets(0, 10, 11),
		}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "http_requests_total",
			Help:      "Total number of API requests by route and status",
		}, []string{"route", "status"}),
	}
}

// ObserveAnalysis records one finished pipeline run.
func (m *Metrics) ObserveAnalysis(inputType, outcome string) {
	if m == nil {
		return
	}
	m.AnalysesTotal.WithLabelValues(inputType, outcome).Inc()
}

// ObserveStage records how long a pipeline stage took.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// ObserveCache records a cache hit or miss.
func (m *Metrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// ObserveEvictions records entries removed by a sweep.
func (m *Metrics) ObserveEvictions(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.CacheEvictions.Add(float64(n))
}

// ObserveProviderAttempt records one provider call.
func (m *Metrics) ObserveProviderAttempt(phase, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.ProviderAttempts.WithLabelValues(phase, outcome).Inc()
	m.ProviderDuration.WithLabelValues(phase).Observe(d.Seconds())
}

// ObserveRetry records a scheduled provider retry.
func (m *Metrics) ObserveRetry(phase string) {
	if m == nil {
		return
	}
	m.ProviderRetries.WithLabelValues(phase).Inc()
}

// ObserveScore records a final trust score.
func (m *Metrics) ObserveScore(overall int) {
	if m == nil {
		return
	}
	m.TrustScores.Observe(float64(overall))
}

// ObserveHTTP records one API response.
func (m *Metrics) ObserveHTTP(route string, status int) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, statusLabel(status)).Inc()
}

func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
