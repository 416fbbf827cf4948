// Package domain holds the contact-manager availability model. Absence of a
// profile row means the user is not a Contact Manager, which is a valid
// state, not an error.
package domain

import "time"

// Status is a contact manager's availability.
type Status string

const (
	StatusUnavailable   Status = "unavailable"
	StatusAvailable     Status = "available"
	StatusOnBreak       Status = "on_break"
	StatusOnAnotherTask Status = "on_another_task"
)

// Valid reports whether s is a known availability status.
func (s Status) Valid() bool {
	switch s {
	case StatusUnavailable, StatusAvailable, StatusOnBreak, StatusOnAnotherTask:
		return true
	}
	return false
}

// Profile is one contact manager's availability row, overwritten in place.
type Profile struct {
	UserID    string
	Status    Status
	UpdatedAt time.Time
}
