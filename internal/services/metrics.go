// Package services — Prometheus instrumentation for the identity core.
//
// Label cardinality is bounded by design: the only label is the resolver's
// branch name, a closed set defined by the sealed outcome hierarchy.
package services

import "github.com/prometheus/client_golang/prometheus"

var (
	// resolverOutcomes counts resolutions by fired state-machine branch.
	resolverOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resolver_outcomes_total",
			Help: "Total identity resolutions by state-machine branch.",
		},
		[]string{"outcome"},
	)

	// resolverConflicts counts resolutions that exhausted their retries.
	resolverConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "resolver_conflicts_total",
			Help: "Resolutions abandoned after exhausting retries under contention.",
		},
	)

	// mergesTotal counts completed record merges.
	mergesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "recipient_merges_total",
			Help: "Total completed recipient record merges.",
		},
	)

	// mergeDuration records how long the re-keying of a merge takes.
	mergeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recipient_merge_duration_seconds",
			Help:    "Duration of recipient merges in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(resolverOutcomes, resolverConflicts, mergesTotal, mergeDuration)
}
