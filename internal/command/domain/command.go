package domain

import "time"

// CommandType is a device instruction kind.
type CommandType string

const (
	CommandStart CommandType = "start"
	CommandStop  CommandType = "stop"
)

// Valid reports whether t is a known command type.
func (t CommandType) Valid() bool {
	return t == CommandStart || t == CommandStop
}

// PendingCommand is an instruction queued for delivery to a PSO's device.
// At most one un-acknowledged command exists per subject; a newer command
// replaces the older one ("last command wins"). Rows are never deleted
// except by replacement.
type PendingCommand struct {
	ID             string
	SubjectID      string
	Type           CommandType
	IssuedAt       time.Time
	Reason         string
	Acknowledged   bool
	AcknowledgedAt *time.Time
	Published      bool
	PublishedAt    *time.Time
	InitiatorID    string
}
