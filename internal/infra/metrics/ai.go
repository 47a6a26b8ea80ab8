package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	aiCallLatencyMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ai_calls_latency_ms",
		Help:    "Completion call latency distribution in milliseconds.",
		Buckets: []float64{10, 25, 50, 100, 200, 400, 800, 1600, 3000, 5000},
	}, []string{"provider", "success"})
	aiFallbacks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ai_fallback_responses_total",
		Help: "Turns answered with a canned utterance after retry exhaustion.",
	})
)

func init() {
	register(aiCallLatencyMs, aiFallbacks)
}

func ObserveAICall(provider string, d time.Duration, ok bool) {
	aiCallLatencyMs.WithLabelValues(provider, strconv.FormatBool(ok)).
		Observe(float64(d.Milliseconds()))
}
func IncAIFallback() { aiFallbacks.Inc() }
