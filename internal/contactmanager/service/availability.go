// Package service implements contact-manager availability. The disconnect
// handler runs on the generic event pipeline, so every failure comes back as
// a typed result rather than a panic or an unhandled error.
package service

import (
	"context"
	"time"

	"pso-control-plane/backend/internal/broadcast"
	"pso-control-plane/backend/internal/contactmanager/domain"
	cmrepo "pso-control-plane/backend/internal/contactmanager/repository"
	"pso-control-plane/backend/internal/errs"
	"pso-control-plane/backend/internal/logging"
)

// DisconnectResult reports what a disconnect event did. A user without a
// profile is reported as not a Contact Manager, with no writes performed.
type DisconnectResult struct {
	IsContactManager bool
	Message          string
	Profile          *domain.Profile
}

// Availability manages contact-manager status.
type Availability struct {
	profiles    cmrepo.Repository
	broadcaster broadcast.Broadcaster

	now func() time.Time
}

// NewAvailability wires the availability service. broadcaster may be nil.
func NewAvailability(profiles cmrepo.Repository, broadcaster broadcast.Broadcaster) *Availability {
	return &Availability{profiles: profiles, broadcaster: broadcaster, now: time.Now}
}

// HandleDisconnect marks the user unavailable if they are a Contact Manager.
// A user with no profile yields a success result and no writes. Store and
// broadcast failures come back as kinded errors.
func (a *Availability) HandleDisconnect(ctx context.Context, userID string) (*DisconnectResult, error) {
	if userID == "" {
		return nil, errs.E(errs.KindValidation, "user id is required")
	}
	profile, err := a.profiles.Get(ctx, userID)
	if err != nil {
		return nil, errs.Wrap(errs.KindStore, "load contact manager profile", err)
	}
	if profile == nil {
		return &DisconnectResult{
			IsContactManager: false,
			Message:          "user is not a Contact Manager",
		}, nil
	}

	updated, err := a.SetStatus(ctx, userID, domain.StatusUnavailable)
	if err != nil {
		return nil, err
	}
	return &DisconnectResult{
		IsContactManager: true,
		Message:          "contact manager marked unavailable",
		Profile:          updated,
	}, nil
}

// SetStatus overwrites the manager's availability and announces it on the
// status group. Unlike the session broadcasts, a failed announcement here is
// surfaced to the caller: consumers staff the contact center off this signal.
func (a *Availability) SetStatus(ctx context.Context, userID string, status domain.Status) (*domain.Profile, error) {
	if !status.Valid() {
		return nil, errs.E(errs.KindValidation, "unknown availability status")
	}
	profile := &domain.Profile{
		UserID:    userID,
		Status:    status,
		UpdatedAt: a.now().UTC(),
	}
	if err := a.profiles.Upsert(ctx, profile); err != nil {
		return nil, errs.Wrap(errs.KindStore, "persist contact manager status", err)
	}

	if a.broadcaster != nil {
		ev := broadcast.NewEvent("cm-status", userID, map[string]any{
			"managerId": userID,
			"status":    string(status),
			"updatedAt": profile.UpdatedAt,
		})
		if err := a.broadcaster.SendToGroup(ctx, broadcast.GroupStatus, ev); err != nil {
			return nil, errs.Wrap(errs.KindExternal, "broadcast contact manager status", err)
		}
	}
	return profile, nil
}

// Get returns the user's profile, or nil when not a Contact Manager.
func (a *Availability) Get(ctx context.Context, userID string) (*domain.Profile, error) {
	profile, err := a.profiles.Get(ctx, userID)
	if err != nil {
		return nil, errs.Wrap(errs.KindStore, "load contact manager profile", err)
	}
	return profile, nil
}

// List returns all profiles. Used by the contact-center dashboard.
func (a *Availability) List(ctx context.Context) ([]*domain.Profile, error) {
	profiles, err := a.profiles.List(ctx)
	if err != nil {
		logging.Warn().Err(err).Msg("contactmanager: list failed")
		return nil, errs.Wrap(errs.KindStore, "list contact manager profiles", err)
	}
	return profiles, nil
}
