package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"courtedge/internal/models"
)

// Registry holds the Prometheus metrics for the analyze pipeline.
type Registry struct {
	UpstreamRequests *prometheus.CounterVec
	CacheHits        *prometheus.CounterVec
	CacheMisses      *prometheus.CounterVec
	Retries          *prometheus.CounterVec
	BreakerState     *prometheus.GaugeVec

	UnitDuration *prometheus.HistogramVec
	RunDuration  prometheus.Histogram
	ActiveUnits  prometheus.Gauge

	Recommendations *prometheus.CounterVec
	UnitErrors      *prometheus.CounterVec
}

// NewRegistry creates the pipeline metrics and registers them with reg
// (the default registerer when nil).
func NewRegistry(reg prometheus.Registerer) *Registry {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	r := &Registry{
		UpstreamRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "courtedge_upstream_requests_total",
				Help: "Upstream fetches by upstream and outcome",
			},
			[]string{"upstream", "outcome"},
		),
		CacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "courtedge_cache_hits_total",
				Help: "Cache hits by upstream",
			},
			[]string{"upstream"},
		),
		CacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "courtedge_cache_misses_total",
				Help: "Cache misses by upstream",
			},
			[]string{"upstream"},
		),
		Retries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "courtedge_retries_total",
				Help: "Retry attempts by upstream",
			},
			[]string{"upstream"},
		),
		BreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "courtedge_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
			},
			[]string{"upstream"},
		),
		UnitDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "courtedge_unit_duration_seconds",
				Help:    "Per-game unit processing duration",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"result"},
		),
		RunDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "courtedge_run_duration_seconds",
				Help:    "Whole analyze run duration",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
			},
		),
		ActiveUnits: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "courtedge_active_units",
				Help: "Game units currently being processed",
			},
		),
		Recommendations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "courtedge_recommendations_total",
				Help: "Recommendations emitted by tier",
			},
			[]string{"tier"},
		),
		UnitErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "courtedge_unit_errors_total",
				Help: "Unit errors by kind",
			},
			[]string{"kind"},
		),
	}

	reg.MustRegister(
		r.UpstreamRequests, r.CacheHits, r.CacheMisses, r.Retries,
		r.BreakerState, r.UnitDuration, r.RunDuration, r.ActiveUnits,
		r.Recommendations, r.UnitErrors,
	)
	log.Debug().Msg("metrics registry initialized")
	return r
}

// NewNopRegistry creates an unregistered registry for tests.
func NewNopRegistry() *Registry {
	return NewRegistry(prometheus.NewRegistry())
}

// RecordFetch counts one upstream fetch outcome.
func (r *Registry) RecordFetch(upstream, outcome string) {
	r.UpstreamRequests.WithLabelValues(upstream, outcome).Inc()
}

// RecordCache counts a cache hit or miss.
func (r *Registry) RecordCache(upstream string, hit bool) {
	if hit {
		r.CacheHits.WithLabelValues(upstream).Inc()
	} else {
		r.CacheMisses.WithLabelValues(upstream).Inc()
	}
}

// ObserveUnit records one finished game unit.
func (r *Registry) ObserveUnit(result string, d time.Duration) {
	r.UnitDuration.WithLabelValues(result).Observe(d.Seconds())
}

// RecordRecommendations counts emitted recommendations by tier.
func (r *Registry) RecordRecommendations(recs []models.Recommendation) {
	for _, rec := range recs {
		r.Recommendations.WithLabelValues(string(rec.Tier)).Inc()
	}
}

// Handler exposes the default Prometheus handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
