// Package metrics holds the Prometheus collectors of the reminder pipeline.
//
// Logs remain the primary record of individual failures; these counters only
// show rates and the number of pending jobs. Label values are drawn from small
// fixed sets (origin, reason, result, watcher name) so cardinality stays bounded.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// JobsScheduled counts jobs inserted into the job store by origin.
	JobsScheduled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminder_jobs_scheduled_total",
			Help: "Reminder jobs inserted into the job store.",
		},
		[]string{"origin"},
	)

	// JobsFired counts jobs whose timer expired and was claimed for delivery.
	JobsFired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reminder_jobs_fired_total",
			Help: "Reminder jobs that reached their fire-time.",
		},
	)

	// JobsCancelled counts jobs cancelled before firing, by reason
	// (voted, replaced, unsubscribed, shutdown).
	JobsCancelled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminder_jobs_cancelled_total",
			Help: "Reminder jobs cancelled before firing.",
		},
		[]string{"reason"},
	)

	// JobsPending gauges the jobs currently held by the job store.
	JobsPending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "reminder_jobs_pending",
			Help: "Reminder jobs currently scheduled.",
		},
	)

	// Deliveries counts send attempts by result (ok, transient, unreachable, skipped).
	Deliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminder_deliveries_total",
			Help: "Reminder delivery attempts by result.",
		},
		[]string{"result"},
	)

	// WatcherCycles counts watcher poll cycles by watcher and result (ok, error, skipped).
	WatcherCycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watcher_cycles_total",
			Help: "Proposal watcher poll cycles.",
		},
		[]string{"watcher", "result"},
	)

	// WatcherProposals counts proposals observed by watchers by outcome
	// (new, duplicate, rejected, failed).
	WatcherProposals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watcher_proposals_total",
			Help: "Proposals observed by watchers.",
		},
		[]string{"watcher", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(JobsScheduled, JobsFired, JobsCancelled, JobsPending, Deliveries, WatcherCycles, WatcherProposals)
}
