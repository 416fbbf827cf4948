// Package domain holds the talk session model: a supervisor-to-PSO voice
// session that is Active until stopped, then terminal.
package domain

import "time"

// StopReason records why a talk session ended.
type StopReason string

const (
	StopUserStop               StopReason = "user_stop"
	StopPSODisconnected        StopReason = "pso_disconnected"
	StopSupervisorDisconnected StopReason = "supervisor_disconnected"
	StopBrowserRefresh         StopReason = "browser_refresh"
	StopConnectionError        StopReason = "connection_error"
	StopUnknown                StopReason = "unknown"
)

// Valid reports whether r is a known stop reason.
func (r StopReason) Valid() bool {
	switch r {
	case StopUserStop, StopPSODisconnected, StopSupervisorDisconnected,
		StopBrowserRefresh, StopConnectionError, StopUnknown:
		return true
	}
	return false
}

// NormalizeStopReason maps s to a known reason, falling back to unknown so a
// client sending a novel reason string never fails the stop.
func NormalizeStopReason(s string) StopReason {
	r := StopReason(s)
	if r.Valid() {
		return r
	}
	return StopUnknown
}

// TalkSession is one supervisor-to-PSO session. Active while StoppedAt is
// nil; stopping is terminal, there is no reactivation.
type TalkSession struct {
	ID           string
	SupervisorID string
	PSOID        string
	StartedAt    time.Time
	StoppedAt    *time.Time
	StopReason   StopReason
}

// Active reports whether the session has not been stopped.
func (s *TalkSession) Active() bool {
	return s != nil && s.StoppedAt == nil
}
