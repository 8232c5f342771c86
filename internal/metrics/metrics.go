// Package metrics holds the Prometheus instruments of the sync pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder wraps the sync metrics. A nil *Recorder is valid and records nothing.
type Recorder struct {
	categoryRuns     *prometheus.CounterVec
	categoryDuration *prometheus.HistogramVec
	marketValues     *prometheus.CounterVec
	upstreamErrors   *prometheus.CounterVec
	rateLimited      prometheus.Counter
	breakerTrips     prometheus.Counter
	activeSessions   prometheus.Gauge
}

// New creates the instruments and registers them with reg.
func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		categoryRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mfl_sync_category_runs_total",
				Help: "Category sync runs by terminal status",
			},
			[]string{"category", "status"},
		),
		categoryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mfl_sync_category_duration_seconds",
				Help:    "Category sync duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"category"},
		),
		marketValues: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mfl_sync_market_values_total",
				Help: "Market values calculated by valuation method",
			},
			[]string{"method"},
		),
		upstreamErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mfl_sync_upstream_errors_total",
				Help: "Failed upstream API calls by endpoint",
			},
			[]string{"endpoint"},
		),
		rateLimited: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "mfl_sync_market_data_rate_limited_total",
				Help: "Market-data calls denied by the sliding window",
			},
		),
		breakerTrips: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "mfl_sync_market_data_breaker_trips_total",
				Help: "Sessions that stopped fetching market data after repeated failures",
			},
		),
		activeSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "mfl_sync_active_sessions",
				Help: "Sync sessions currently running",
			},
		),
	}

	reg.MustRegister(
		r.categoryRuns,
		r.categoryDuration,
		r.marketValues,
		r.upstreamErrors,
		r.rateLimited,
		r.breakerTrips,
		r.activeSessions,
	)
	return r
}

// CategoryFinished records a category reaching a terminal status.
func (r *Recorder) CategoryFinished(category, status string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.categoryRuns.WithLabelValues(category, status).Inc()
	r.categoryDuration.WithLabelValues(category).Observe(elapsed.Seconds())
}

// MarketValue records a stored valuation.
func (r *Recorder) MarketValue(method string) {
	if r == nil {
		return
	}
	r.marketValues.WithLabelValues(method).Inc()
}

// UpstreamError records a failed API call.
func (r *Recorder) UpstreamError(endpoint string) {
	if r == nil {
		return
	}
	r.upstreamErrors.WithLabelValues(endpoint).Inc()
}

// RateLimited records a denied market-data call.
func (r *Recorder) RateLimited() {
	if r == nil {
		return
	}
	r.rateLimited.Inc()
}

// BreakerTripped records the market-data cutoff engaging.
func (r *Recorder) BreakerTripped() {
	if r == nil {
		return
	}
	r.breakerTrips.Inc()
}

// SessionStarted and SessionEnded track running sessions.
func (r *Recorder) SessionStarted() {
	if r == nil {
		return
	}
	r.activeSessions.Inc()
}

func (r *Recorder) SessionEnded() {
	if r == nil {
		return
	}
	r.activeSessions.Dec()
}
