// Package telemetry emits operational events (command issued, session
// started, recording completed) to a Kafka topic for the telemetry worker to
// ship to Loki. Emission is fire-and-forget from request handlers.
package telemetry

import "time"

// Event is one operational telemetry event. Serialized as JSON on the wire.
type Event struct {
	ID        string            `json:"id"`
	EventType string            `json:"eventType"`
	ActorID   string            `json:"actorId,omitempty"`
	SubjectID string            `json:"subjectId,omitempty"`
	Source    string            `json:"source"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}
