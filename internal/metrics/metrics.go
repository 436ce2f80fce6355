package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels requests that produced a usable result.
	OutcomeSuccess = "success"
	// OutcomeError labels requests that failed on transport, status or parse.
	OutcomeError = "error"
	// OutcomeNoMatch labels provider answers that carried no data.
	OutcomeNoMatch = "no_match"

	// ResultHit labels cache lookups served from a live entry.
	ResultHit = "hit"
	// ResultMiss labels cache lookups that fell through to computation.
	ResultMiss = "miss"

	// TierBasic labels the route-only forecast tier.
	TierBasic = "basic"
	// TierFull labels the observation-correlated forecast tier.
	TierFull = "full"
)

var (
	providerRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "turbcast",
			Name:      "provider_requests_total",
			Help:      "Route provider attempts, partitioned by provider and outcome.",
		},
		[]string{"provider", "outcome"},
	)

	cacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "turbcast",
			Name:      "cache_lookups_total",
			Help:      "Forecast cache lookups, partitioned by tier and result.",
		},
		[]string{"tier", "result"},
	)

	cacheEvictionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "turbcast",
			Name:      "cache_evictions_total",
			Help:      "Entries evicted from the forecast cache to stay under capacity.",
		},
	)

	forecastsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "turbcast",
			Name:      "forecasts_total",
			Help:      "Forecast computations, partitioned by tier and outcome.",
		},
		[]string{"tier", "outcome"},
	)

	forecastDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "turbcast",
			Name:      "forecast_seconds",
			Help:      "Forecast computation latency in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"tier"},
	)

	observationsCorrelated = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "turbcast",
			Name:      "observations_per_forecast",
			Help:      "Number of pilot reports correlated into a full forecast.",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50, 100},
		},
	)
)

// Register attaches turbcast collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		providerRequestsTotal,
		cacheLookupsTotal,
		cacheEvictionsTotal,
		forecastsTotal,
		forecastDurationSeconds,
		observationsCorrelated,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveProviderRequest records one route provider attempt.
func ObserveProviderRequest(provider, outcome string) {
	providerRequestsTotal.WithLabelValues(provider, outcome).Inc()
}

// ObserveCacheLookup records a cache hit or miss for a tier.
func ObserveCacheLookup(tier, result string) {
	cacheLookupsTotal.WithLabelValues(tier, result).Inc()
}

// ObserveCacheEviction records one capacity eviction.
func ObserveCacheEviction() {
	cacheEvictionsTotal.Inc()
}

// ObserveForecast records a forecast computation's duration and outcome.
func ObserveForecast(tier string, duration time.Duration, outcome string) {
	label := outcome
	if label != OutcomeError {
		label = OutcomeSuccess
	}
	forecastsTotal.WithLabelValues(tier, label).Inc()
	if duration < 0 {
		duration = 0
	}
	forecastDurationSeconds.WithLabelValues(tier).Observe(duration.Seconds())
}

// ObserveCorrelatedObservations records how many reports fed a full forecast.
func ObserveCorrelatedObservations(count int) {
	observationsCorrelated.Observe(float64(count))
}
