package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	scenarioCacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "content_scenario_cache_hits_total",
		Help: "Scenario loads served from the in-memory cache.",
	})
	scenarioCacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "content_scenario_cache_misses_total",
		Help: "Scenario loads that re-read and re-validated the file.",
	})
	scenarioLoadErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "content_scenario_load_errors_total",
		Help: "Scenario loads that failed, by kind (not_found|schema|io).",
	}, []string{"kind"})
	scenarioReloads = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "content_reloads_total",
		Help: "Full cache invalidations triggered via reload.",
	})
)

func init() {
	register(scenarioCacheHits, scenarioCacheMisses, scenarioLoadErrors, scenarioReloads)
}

func IncScenarioCacheHit()          { scenarioCacheHits.Inc() }
func IncScenarioCacheMiss()         { scenarioCacheMisses.Inc() }
func IncScenarioLoadError(k string) { scenarioLoadErrors.WithLabelValues(k).Inc() }
func IncContentReload()             { scenarioReloads.Inc() }
