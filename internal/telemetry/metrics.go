// Package telemetry wires tokenguard's observable counters and histograms
// to Prometheus. Every metric is optional: the zero-value Recorder
// (NoopRecorder) is a safe default so the validator core never depends on
// a running registry.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder is the metrics capability the Validator and the OIDC handler
// are injected with. It deliberately has no Prometheus types in its
// signature so alternative backends can implement it too.
type Recorder interface {
	ObserveValidation(outcome string)
	ObserveCacheAccess(cacheName string, hit bool)
	ObserveUpstreamFetch(host string, duration time.Duration, success bool)
}

// NoopRecorder discards everything. It is the default when a caller does
// not supply a Recorder.
type NoopRecorder struct{}

func (NoopRecorder) ObserveValidation(string)                          {}
func (NoopRecorder) ObserveCacheAccess(string, bool)                   {}
func (NoopRecorder) ObserveUpstreamFetch(string, time.Duration, bool)  {}

// PrometheusRecorder is the production Recorder, registering its
// collectors on the supplied registry (use prometheus.DefaultRegisterer
// for the process-wide registry).
type PrometheusRecorder struct {
	validations    *prometheus.CounterVec
	cacheAccesses  *prometheus.CounterVec
	upstreamLatency *prometheus.HistogramVec
}

// NewPrometheusRecorder creates and registers tokenguard's metrics on reg.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	r := &PrometheusRecorder{
		validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tokenguard",
			Name:      "validations_total",
			Help:      "Token validations by outcome (success or taxonomy error kind).",
		}, []string{"outcome"}),
		cacheAccesses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tokenguard",
			Name:      "cache_accesses_total",
			Help:      "Cache accesses by cache name and hit/miss.",
		}, []string{"cache", "result"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tokenguard",
			Name:      "upstream_fetch_seconds",
			Help:      "Latency of outbound discovery/JWKS HTTP fetches by host and outcome.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"host", "result"}),
	}
	reg.MustRegister(r.validations, r.cacheAccesses, r.upstreamLatency)
	return r
}

func (r *PrometheusRecorder) ObserveValidation(outcome string) {
	r.validations.WithLabelValues(outcome).Inc()
}

func (r *PrometheusRecorder) ObserveCacheAccess(cacheName string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheAccesses.WithLabelValues(cacheName, result).Inc()
}

func (r *PrometheusRecorder) ObserveUpstreamFetch(host string, duration time.Duration, success bool) {
	result := "error"
	if success {
		result = "ok"
	}
	r.upstreamLatency.WithLabelValues(host, result).Observe(duration.Seconds())
}
