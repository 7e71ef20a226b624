package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the ratio pipeline.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	FetchTotal    *prometheus.CounterVec   // labels: provider, outcome
	FetchDuration *prometheus.HistogramVec // labels: provider
	CacheLookups  *prometheus.CounterVec   // labels: result=hit|miss|error

	PipelineRuns     *prometheus.CounterVec // labels: pair, outcome
	OptionalDegraded *prometheus.CounterVec // labels: pair
	DeriveDuration   prometheus.Histogram
	SeriesPoints     *prometheus.GaugeVec // labels: pair, series
}

// NewMetrics creates the collectors on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		FetchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ratioscope_fetch_total",
			Help: "Provider fetches by outcome (ok, rate_limited, fetch_failed, provider_error)",
		}, []string{"provider", "outcome"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ratioscope_fetch_duration_seconds",
			Help:    "Provider request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ratioscope_cache_lookups_total",
			Help: "Provider response cache lookups",
		}, []string{"result"}),
		PipelineRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ratioscope_pipeline_runs_total",
			Help: "Pair pipeline runs by outcome (ready, failed)",
		}, []string{"pair", "outcome"}),
		OptionalDegraded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ratioscope_optional_leg_degraded_total",
			Help: "Optional leg fetches absorbed as degraded",
		}, []string{"pair"}),
		DeriveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ratioscope_derive_duration_seconds",
			Help:    "Ratio and indicator derivation latency",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
		SeriesPoints: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ratioscope_series_points",
			Help: "Number of points in the latest derived series",
		}, []string{"pair", "series"}),
	}

	m.Registry.MustRegister(
		m.FetchTotal,
		m.FetchDuration,
		m.CacheLookups,
		m.PipelineRuns,
		m.OptionalDegraded,
		m.DeriveDuration,
		m.SeriesPoints,
	)
	return m
}

// ObserveFetch records one provider request.
func (m *Metrics) ObserveFetch(provider, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.FetchTotal.WithLabelValues(provider, outcome).Inc()
	m.FetchDuration.WithLabelValues(provider).Observe(d.Seconds())
}

// ObserveCache records a response cache lookup.
func (m *Metrics) ObserveCache(result string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// ObserveRun records a finished pipeline run.
func (m *Metrics) ObserveRun(pair, outcome string) {
	if m == nil {
		return
	}
	m.PipelineRuns.WithLabelValues(pair, outcome).Inc()
}

// ObserveDegraded records an absorbed optional-leg failure.
func (m *Metrics) ObserveDegraded(pair string) {
	if m == nil {
		return
	}
	m.OptionalDegraded.WithLabelValues(pair).Inc()
}

// ObserveDerive records derivation latency and the resulting series sizes.
func (m *Metrics) ObserveDerive(pair string, d time.Duration, sizes map[string]int) {
	if m == nil {
		return
	}
	m.DeriveDuration.Observe(d.Seconds())
	for series, n := range sizes {
		m.SeriesPoints.WithLabelValues(pair, series).Set(float64(n))
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
