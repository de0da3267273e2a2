package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Command metrics
	CommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "starhost_commands_total",
			Help: "Total number of commands processed by verb and status",
		},
		[]string{"verb", "status"},
	)

	CommandDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "starhost_command_duration_seconds",
			Help:    "Command processing duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	ConnectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "starhost_connections_active",
			Help: "Number of currently open client connections",
		},
	)

	// Scheduler metrics
	SchedulerRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "starhost_scheduler_runs_total",
			Help: "Total number of scheduler engine runs by action and outcome",
		},
		[]string{"action", "outcome"},
	)

	EventsQueued = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "starhost_events_queued",
			Help: "Number of scheduler events by queue",
		},
		[]string{"queue"},
	)

	GamesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "starhost_games_total",
			Help: "Total number of games by state",
		},
		[]string{"state"},
	)

	// Turn metrics
	TurnSubmissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "starhost_turn_submissions_total",
			Help: "Total number of turn submissions by resulting state",
		},
		[]string{"state"},
	)
)

// Register registers all metrics with the default registry. Called once
// at startup.
func Register() {
	prometheus.MustRegister(
		CommandsTotal,
		CommandDuration,
		ConnectionsActive,
		SchedulerRunsTotal,
		EventsQueued,
		GamesTotal,
		TurnSubmissionsTotal,
	)
}
