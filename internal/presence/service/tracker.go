// Package service implements the presence tracker. Transitions are
// idempotent: repeated connect or disconnect events for the same user leave
// a single open or closed history interval.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"pso-control-plane/backend/internal/broadcast"
	"pso-control-plane/backend/internal/errs"
	"pso-control-plane/backend/internal/logging"
	"pso-control-plane/backend/internal/metrics"
	"pso-control-plane/backend/internal/presence/domain"
	presencerepo "pso-control-plane/backend/internal/presence/repository"
)

// Tracker maintains presence rows and history intervals.
type Tracker struct {
	presence    presencerepo.Repository
	broadcaster broadcast.Broadcaster

	now func() time.Time
}

// NewTracker wires the presence tracker. broadcaster may be nil.
func NewTracker(presence presencerepo.Repository, broadcaster broadcast.Broadcaster) *Tracker {
	return &Tracker{presence: presence, broadcaster: broadcaster, now: time.Now}
}

// SetOnline upserts the user online and opens a history interval unless one
// is already open.
func (t *Tracker) SetOnline(ctx context.Context, userID string) error {
	if userID == "" {
		return errs.E(errs.KindValidation, "user id is required")
	}
	now := t.now().UTC()
	if err := t.presence.Upsert(ctx, &domain.Presence{
		UserID: userID, Status: domain.StatusOnline, LastSeenAt: now,
	}); err != nil {
		return errs.Wrap(errs.KindStore, "upsert presence", err)
	}
	opened, err := t.presence.OpenHistory(ctx, uuid.New().String(), userID, now)
	if err != nil {
		return errs.Wrap(errs.KindStore, "open presence history", err)
	}
	if opened {
		metrics.PresenceTransitions.WithLabelValues(string(domain.StatusOnline)).Inc()
		t.announce(ctx, userID, domain.StatusOnline, now)
	}
	return nil
}

// SetOffline upserts the user offline and closes the open history interval,
// if any. Repeated disconnects are a no-op after the first.
func (t *Tracker) SetOffline(ctx context.Context, userID string) error {
	if userID == "" {
		return errs.E(errs.KindValidation, "user id is required")
	}
	now := t.now().UTC()
	if err := t.presence.Upsert(ctx, &domain.Presence{
		UserID: userID, Status: domain.StatusOffline, LastSeenAt: now,
	}); err != nil {
		return errs.Wrap(errs.KindStore, "upsert presence", err)
	}
	closed, err := t.presence.CloseOpenHistory(ctx, userID, now)
	if err != nil {
		return errs.Wrap(errs.KindStore, "close presence history", err)
	}
	if closed {
		metrics.PresenceTransitions.WithLabelValues(string(domain.StatusOffline)).Inc()
		t.announce(ctx, userID, domain.StatusOffline, now)
	}
	return nil
}

// announce broadcasts the transition to the status group. Best-effort.
func (t *Tracker) announce(ctx context.Context, userID string, status domain.Status, at time.Time) {
	if t.broadcaster == nil {
		return
	}
	ev := broadcast.NewEvent("presence-changed", userID, map[string]any{
		"userId":     userID,
		"status":     string(status),
		"lastSeenAt": at,
	})
	if err := t.broadcaster.SendToGroup(ctx, broadcast.GroupStatus, ev); err != nil {
		metrics.BroadcastFailures.WithLabelValues("presence-changed").Inc()
		logging.Warn().Str("user_id", userID).Err(err).Msg("presence: broadcast failed")
	}
}

// Get returns the user's presence, or nil when the user was never seen.
func (t *Tracker) Get(ctx context.Context, userID string) (*domain.Presence, error) {
	p, err := t.presence.Get(ctx, userID)
	if err != nil {
		return nil, errs.Wrap(errs.KindStore, "get presence", err)
	}
	return p, nil
}

// History returns the user's intervals, newest first.
func (t *Tracker) History(ctx context.Context, userID string, limit int) ([]*domain.HistoryInterval, error) {
	intervals, err := t.presence.ListHistory(ctx, userID, limit)
	if err != nil {
		return nil, errs.Wrap(errs.KindStore, "list presence history", err)
	}
	return intervals, nil
}
