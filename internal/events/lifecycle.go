// Package events defines the connection-lifecycle events consumed from the
// realtime fabric. The raw message is parsed once at the boundary into a
// closed event type; everything downstream switches on the phase.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"pso-control-plane/backend/internal/errs"
)

// Phase is the connection lifecycle phase.
type Phase string

const (
	PhaseConnect      Phase = "connect"
	PhaseConnected    Phase = "connected"
	PhaseDisconnected Phase = "disconnected"
)

// Valid reports whether p is a known phase.
func (p Phase) Valid() bool {
	return p == PhaseConnect || p == PhaseConnected || p == PhaseDisconnected
}

// LifecycleEvent is one connection transition for a user.
type LifecycleEvent struct {
	Phase        Phase     `json:"phase"`
	UserID       string    `json:"userId"`
	ConnectionID string    `json:"connectionId,omitempty"`
	At           time.Time `json:"at"`
}

// ParseLifecycleEvent decodes and validates a raw lifecycle message. An
// unknown phase or missing user is a Validation error; the worker logs it
// and moves on without touching the core.
func ParseLifecycleEvent(data []byte) (*LifecycleEvent, error) {
	var ev LifecycleEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, errs.Wrap(errs.KindValidation, "malformed lifecycle event", err)
	}
	if !ev.Phase.Valid() {
		return nil, errs.E(errs.KindValidation, fmt.Sprintf("unknown lifecycle phase %q", ev.Phase))
	}
	if ev.UserID == "" {
		return nil, errs.E(errs.KindValidation, "lifecycle event missing user id")
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	return &ev, nil
}
