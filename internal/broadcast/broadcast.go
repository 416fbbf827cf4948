// Package broadcast is the realtime fan-out capability. The core publishes
// session and availability transitions to named groups; delivery to connected
// clients is the fabric's concern. Calls are best-effort from the caller's
// perspective and must never fail the state transition they accompany.
package broadcast

import "context"

// Broadcaster sends a payload to a named realtime group.
type Broadcaster interface {
	SendToGroup(ctx context.Context, group string, payload any) error
}

// Event is the broadcast envelope. Key is an idempotency key (entity ID plus
// event type) so consumers can drop a retried or duplicated delivery.
type Event struct {
	Type string `json:"type"`
	Key  string `json:"key,omitempty"`
	Data any    `json:"data"`
}

// NewEvent builds an Event with the idempotency key derived from the entity
// ID and event type.
func NewEvent(eventType, entityID string, data any) Event {
	key := ""
	if entityID != "" {
		key = entityID + ":" + eventType
	}
	return Event{Type: eventType, Key: key, Data: data}
}

// Well-known groups and group prefixes.
const (
	// GroupStatus receives contact-manager availability changes.
	GroupStatus = "status"
	// DeviceGroupPrefix + psoID addresses a PSO's device channel.
	DeviceGroupPrefix = "device."
	// PSOGroupPrefix + psoID addresses a PSO's realtime UI channel.
	PSOGroupPrefix = "pso."
)
