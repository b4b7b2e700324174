package manager

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reflexiad",
			Subsystem: "control",
			Name:      "requests_total",
			Help:      "Generation requests by outcome (hit, miss, bypass, invalid, rejected, error)",
		},
		[]string{"outcome"},
	)

	tierSwitchesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "reflexiad",
			Subsystem: "control",
			Name:      "tier_switches_total",
			Help:      "Completed backend tier reconfigurations",
		},
	)

	complexityScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "reflexiad",
			Subsystem: "control",
			Name:      "complexity_score",
			Help:      "Distribution of prompt complexity scores",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		},
	)

	memoryUsedPct = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "reflexiad",
			Subsystem: "control",
			Name:      "memory_used_percent",
			Help:      "Host memory in use at the last control decision",
		},
	)

	cacheShrinksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "reflexiad",
			Subsystem: "control",
			Name:      "cache_shrinks_total",
			Help:      "Cache budget reductions triggered by memory pressure",
		},
	)
)

func init() {
	prometheus.MustRegister(requestsTotal, tierSwitchesTotal, complexityScore, memoryUsedPct, cacheShrinksTotal)
}
