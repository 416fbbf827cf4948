// Package domain holds the presence model: a per-user online/offline status
// plus an interval history of online periods.
package domain

import "time"

// Status is the user's connection state.
type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
)

// Presence is the user's current status, overwritten in place.
type Presence struct {
	UserID     string
	Status     Status
	LastSeenAt time.Time
}

// HistoryInterval is one online period. Open while EndedAt is nil; at most
// one open interval exists per user.
type HistoryInterval struct {
	ID        string
	UserID    string
	StartedAt time.Time
	EndedAt   *time.Time
}
