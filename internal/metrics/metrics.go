// Package metrics exposes Prometheus collectors for the orchestration core.
// Registered via promauto on the default registry; served at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CommandsCreated counts pending commands created, by command type.
	CommandsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pso_commands_created_total",
		Help: "Pending device commands created, by command type.",
	}, []string{"type"})

	// CommandsAcknowledged counts commands acknowledged by devices.
	CommandsAcknowledged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pso_commands_acknowledged_total",
		Help: "Pending device commands acknowledged.",
	})

	// TalkSessionsStarted counts talk sessions started.
	TalkSessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pso_talk_sessions_started_total",
		Help: "Talk sessions started.",
	})

	// TalkSessionsStopped counts talk sessions stopped, by stop reason.
	TalkSessionsStopped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pso_talk_sessions_stopped_total",
		Help: "Talk sessions stopped, by stop reason.",
	}, []string{"reason"})

	// RecordingsStarted counts recording sessions started.
	RecordingsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pso_recordings_started_total",
		Help: "Recording sessions started.",
	})

	// RecordingsStopped counts per-item stop outcomes, by final status.
	RecordingsStopped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pso_recordings_stopped_total",
		Help: "Recording stop outcomes, by final status.",
	}, []string{"status"})

	// PresenceTransitions counts presence status writes, by new status.
	PresenceTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pso_presence_transitions_total",
		Help: "Presence status transitions, by new status.",
	}, []string{"status"})

	// BroadcastFailures counts group broadcasts that failed after retry.
	BroadcastFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pso_broadcast_failures_total",
		Help: "Group broadcasts that failed after retry, by event type.",
	}, []string{"event"})
)
