package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics
var (
	SimulationsRun = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leaguesim_simulations_total",
		Help: "Total number of simulation runs by kind (season, rounds)",
	}, []string{"kind"})

	SimulationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "leaguesim_simulation_duration_seconds",
		Help:    "Wall time of a full simulation run",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"kind"})

	TrialsRun = promauto.NewCounter(prometheus.CounterOpts{
		Name: "leaguesim_trials_total",
		Help: "Total number of season trials sampled",
	})

	MalformedMatches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "leaguesim_malformed_matches_total",
		Help: "Matches skipped because a team reference or score was missing",
	})

	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leaguesim_cache_lookups_total",
		Help: "Cache lookups by blob kind and result (hit, miss, stale)",
	}, []string{"kind", "result"})

	CacheRebuilds = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leaguesim_cache_rebuilds_total",
		Help: "Cache rebuilds by blob kind and outcome (ok, error, throttled)",
	}, []string{"kind", "outcome"})

	CacheRebuildsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "leaguesim_cache_rebuilds_in_flight",
		Help: "Detached cache rebuilds currently running",
	})
)
