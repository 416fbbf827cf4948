package domain

import (
	"strings"
	"time"
)

// Role is a platform role. PSOs carry devices; supervisors observe and
// command them; contact managers staff the contact center.
type Role string

const (
	RolePSO            Role = "pso"
	RoleSupervisor     Role = "supervisor"
	RoleAdmin          Role = "admin"
	RoleContactManager Role = "contact_manager"
)

// User represents a platform user.
type User struct {
	ID        string
	Email     string
	FirstName string
	LastName  string
	Role      Role
	Active    bool
	CreatedAt time.Time
	DeletedAt *time.Time // nil when not deleted
}

// IsActiveSubject reports whether the user can be the target or caller of
// device commands and talk sessions: active and not soft-deleted.
func (u *User) IsActiveSubject() bool {
	return u != nil && u.Active && u.DeletedAt == nil
}

// DisplayName returns "First Last", falling back to the email when both
// name fields are empty.
func (u *User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Email
	}
	return name
}
