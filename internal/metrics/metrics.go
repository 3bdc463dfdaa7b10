// Package metrics defines the Prometheus collectors exported by sqlundo.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Key constants are exported primarily for documentation reasons. Typically,
// they will not be used programmatically outside of defining the collectors.
const (
	ReplaysTotalKey            = "sqlundo_replays_total"
	ReplayedStatementsTotalKey = "sqlundo_replayed_statements_total"
	TrimmedGroupsTotalKey      = "sqlundo_trimmed_groups_total"
	ReplayDurationSecondsKey   = "sqlundo_replay_duration_seconds"
	ReplayOutcomeApplied       = "applied"
	ReplayOutcomeNoop          = "noop"
	ReplayOutcomeFailed        = "failed"
)

// Collectors for history replay and retention.
var (
	ReplaysTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: ReplaysTotalKey,
		Help: "Cumulative number of undo and redo requests, by outcome.",
	}, []string{"direction", "outcome"})
	ReplayedStatementsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: ReplayedStatementsTotalKey,
		Help: "Cumulative number of compensating statements executed.",
	}, []string{"direction"})
	TrimmedGroupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: TrimmedGroupsTotalKey,
		Help: "Cumulative number of groups discarded by the retention limit.",
	}, []string{"log"})
	ReplayDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    ReplayDurationSecondsKey,
		Help:    "Duration of undo and redo replays.",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
	}, []string{"direction"})
)

// Collectors returns every sqlundo collector for registration.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		ReplaysTotal,
		ReplayedStatementsTotal,
		TrimmedGroupsTotal,
		ReplayDurationSeconds,
	}
}
