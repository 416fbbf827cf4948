// Package domain holds the recording model: an egress-backed capture of a
// room, Active from egress start until completed or failed.
package domain

import "time"

// CommandType distinguishes start from stop intents. The orchestrator
// rejects a mismatched type before any external call is made.
type CommandType string

const (
	CommandStart CommandType = "START"
	CommandStop  CommandType = "STOP"
)

// RecordingCommand wraps a recording intent.
type RecordingCommand struct {
	Type         CommandType
	RoomName     string
	InitiatorID  string
	SubjectID    string
	SubjectLabel string
}

// Status is the recording session lifecycle state.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// RecordingSession is one egress capture. BlobPath is computed
// deterministically before the egress call, so the destination is known even
// if the egress service later reports a different final path.
type RecordingSession struct {
	ID           string
	RoomName     string
	EgressID     string
	InitiatorID  string
	SubjectID    string
	SubjectLabel string
	Status       Status
	StartedAt    time.Time
	StoppedAt    *time.Time
	BlobPath     string
	BlobURL      string
}
