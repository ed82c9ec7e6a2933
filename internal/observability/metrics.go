// Package observability defines the Prometheus metrics for the GardenWatch
// service and the handler that exposes them.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus counters for the alert engine and its
// collaborators. A nil *Metrics is safe everywhere: every record method
// no-ops, so tests that don't care about telemetry pass nil.
type Metrics struct {
	registry *prometheus.Registry

	AlertsComputed   prometheus.Counter
	AlertCacheHits   prometheus.Counter
	AlertCacheMisses prometheus.Counter
	EmptyWindows     prometheus.Counter

	WeatherCacheHits   prometheus.Counter
	WeatherCacheMisses prometheus.Counter

	UpstreamFailures *prometheus.CounterVec // label: kind={auth,not_found,timeout,unavailable,rate_limited}

	Notifications *prometheus.CounterVec // label: outcome={delivered,gone,failed}
	BatchesSaved  prometheus.Counter

	RequestDuration *prometheus.HistogramVec // labels: method, path, status
}

// NewMetrics creates the metric set on its own registry so repeated
// construction (tests, multiple binaries) never collides with the default
// registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		AlertsComputed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gardenwatch",
			Name:      "alerts_computed_total",
			Help:      "Total alert bundles computed from fresh forecasts.",
		}),
		AlertCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gardenwatch",
			Name:      "alert_cache_hits_total",
			Help:      "Total alert reads served from the bucket cache.",
		}),
		AlertCacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gardenwatch",
			Name:      "alert_cache_misses_total",
			Help:      "Total alert reads that triggered a compute cycle.",
		}),
		EmptyWindows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gardenwatch",
			Name:      "alert_empty_windows_total",
			Help:      "Total compute cycles abandoned because a forecast window had no samples.",
		}),
		WeatherCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gardenwatch",
			Name:      "weather_cache_hits_total",
			Help:      "Total current-weather reads served from the TTL cache.",
		}),
		WeatherCacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gardenwatch",
			Name:      "weather_cache_misses_total",
			Help:      "Total current-weather reads fetched from the provider.",
		}),
		UpstreamFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gardenwatch",
			Name:      "upstream_failures_total",
			Help:      "Forecast provider failures by kind.",
		}, []string{"kind"}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gardenwatch",
			Name:      "notifications_total",
			Help:      "Push delivery attempts by outcome.",
		}, []string{"outcome"}),
		BatchesSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gardenwatch",
			Name:      "notification_batches_saved_total",
			Help:      "Total batch writes of sent notifications.",
		}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "gardenwatch",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method, route, and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
	}

	reg.MustRegister(
		m.AlertsComputed,
		m.AlertCacheHits,
		m.AlertCacheMisses,
		m.EmptyWindows,
		m.WeatherCacheHits,
		m.WeatherCacheMisses,
		m.UpstreamFailures,
		m.Notifications,
		m.BatchesSaved,
		m.RequestDuration,
	)

	return m
}

// Handler returns the HTTP handler serving the metric endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Nil-safe record helpers. Services hold a *Metrics that may be nil in tests.

func (m *Metrics) RecordAlertComputed() {
	if m != nil {
		m.AlertsComputed.Inc()
	}
}

func (m *Metrics) RecordAlertCacheHit() {
	if m != nil {
		m.AlertCacheHits.Inc()
	}
}

func (m *Metrics) RecordAlertCacheMiss() {
	if m != nil {
		m.AlertCacheMisses.Inc()
	}
}

func (m *Metrics) RecordEmptyWindow() {
	if m != nil {
		m.EmptyWindows.Inc()
	}
}

func (m *Metrics) RecordWeatherCacheHit() {
	if m != nil {
		m.WeatherCacheHits.Inc()
	}
}

func (m *Metrics) RecordWeatherCacheMiss() {
	if m != nil {
		m.WeatherCacheMisses.Inc()
	}
}

func (m *Metrics) RecordUpstreamFailure(kind string) {
	if m != nil {
		m.UpstreamFailures.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) RecordNotification(outcome string) {
	if m != nil {
		m.Notifications.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) RecordBatchSaved() {
	if m != nil {
		m.BatchesSaved.Inc()
	}
}

func (m *Metrics) RecordRequest(method, path, status string, duration time.Duration) {
	if m != nil {
		m.RequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
	}
}
