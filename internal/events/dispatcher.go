package events

import (
	"context"

	"pso-control-plane/backend/internal/contactmanager/service"
	"pso-control-plane/backend/internal/logging"
	talkdomain "pso-control-plane/backend/internal/talksession/domain"
	talkservice "pso-control-plane/backend/internal/talksession/service"
	userdomain "pso-control-plane/backend/internal/user/domain"
	userrepo "pso-control-plane/backend/internal/user/repository"
)

// PresenceTracker is the slice of the presence service the dispatcher needs.
type PresenceTracker interface {
	SetOnline(ctx context.Context, userID string) error
	SetOffline(ctx context.Context, userID string) error
}

// Dispatcher routes parsed lifecycle events to the presence tracker, the
// contact-manager availability handler, and the talk session manager. One
// failing consumer never blocks the others; the pipeline must survive any
// single bad event.
type Dispatcher struct {
	presence     PresenceTracker
	availability *service.Availability
	talkSessions *talkservice.Service
	users        userrepo.Repository
}

func NewDispatcher(presence PresenceTracker, availability *service.Availability, talkSessions *talkservice.Service, users userrepo.Repository) *Dispatcher {
	return &Dispatcher{
		presence:     presence,
		availability: availability,
		talkSessions: talkSessions,
		users:        users,
	}
}

// Handle applies one lifecycle event. Errors from individual consumers are
// logged and do not abort the remaining ones.
func (d *Dispatcher) Handle(ctx context.Context, ev *LifecycleEvent) {
	switch ev.Phase {
	case PhaseConnect, PhaseConnected:
		if err := d.presence.SetOnline(ctx, ev.UserID); err != nil {
			logging.Warn().Str("user_id", ev.UserID).Err(err).Msg("lifecycle: set online failed")
		}
	case PhaseDisconnected:
		d.handleDisconnect(ctx, ev)
	}
}

func (d *Dispatcher) handleDisconnect(ctx context.Context, ev *LifecycleEvent) {
	if err := d.presence.SetOffline(ctx, ev.UserID); err != nil {
		logging.Warn().Str("user_id", ev.UserID).Err(err).Msg("lifecycle: set offline failed")
	}

	if d.availability != nil {
		result, err := d.availability.HandleDisconnect(ctx, ev.UserID)
		if err != nil {
			logging.Warn().Str("user_id", ev.UserID).Err(err).Msg("lifecycle: contact manager disconnect failed")
		} else if result.IsContactManager {
			logging.Info().Str("user_id", ev.UserID).Msg("lifecycle: contact manager marked unavailable")
		}
	}

	if d.talkSessions != nil {
		reason := d.disconnectReason(ctx, ev.UserID)
		stopped, err := d.talkSessions.StopAllForUser(ctx, ev.UserID, reason)
		if err != nil {
			logging.Warn().Str("user_id", ev.UserID).Err(err).Msg("lifecycle: talk session stop failed")
		} else if stopped > 0 {
			logging.Info().Str("user_id", ev.UserID).Int("stopped", stopped).Msg("lifecycle: talk sessions stopped")
		}
	}
}

// disconnectReason picks the stop reason from the user's role. An
// unresolvable user still stops their sessions, with reason unknown.
func (d *Dispatcher) disconnectReason(ctx context.Context, userID string) talkdomain.StopReason {
	u, err := d.users.GetByID(ctx, userID)
	if err != nil || u == nil {
		return talkdomain.StopUnknown
	}
	switch u.Role {
	case userdomain.RolePSO:
		return talkdomain.StopPSODisconnected
	case userdomain.RoleSupervisor, userdomain.RoleAdmin:
		return talkdomain.StopSupervisorDisconnected
	}
	return talkdomain.StopUnknown
}
