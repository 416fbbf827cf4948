// Package service implements the talk session state machine: Active until
// stopped, first stop wins, duplicate starts for a pair conflict.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"pso-control-plane/backend/internal/audit"
	"pso-control-plane/backend/internal/broadcast"
	"pso-control-plane/backend/internal/errs"
	"pso-control-plane/backend/internal/logging"
	"pso-control-plane/backend/internal/metrics"
	"pso-control-plane/backend/internal/talksession/domain"
	sessionrepo "pso-control-plane/backend/internal/talksession/repository"
	"pso-control-plane/backend/internal/telemetry"
	userdomain "pso-control-plane/backend/internal/user/domain"
	userrepo "pso-control-plane/backend/internal/user/repository"
)

var (
	// ErrTalkSessionAlreadyActive is returned when the (supervisor, pso)
	// pair already has an active session.
	ErrTalkSessionAlreadyActive = errs.E(errs.KindConflict, "talk session already active for this pair")
	// ErrTalkSessionNotFound is returned when a stop names an unknown session.
	ErrTalkSessionNotFound = errs.E(errs.KindNotFound, "talk session not found")
	// ErrPSONotFound is returned when the target PSO cannot be resolved or is inactive.
	ErrPSONotFound = errs.E(errs.KindNotFound, "pso not found or inactive")
)

// ActiveSessionInfo describes the PSO's active session, if any. Supervisor
// fields are best-effort: a deleted supervisor leaves them empty while the
// session is still reported active.
type ActiveSessionInfo struct {
	HasActiveSession bool
	SessionID        string
	SupervisorEmail  string
	SupervisorName   string
}

// SessionView is a listing row with display names resolved.
type SessionView struct {
	ID             string
	SupervisorID   string
	SupervisorName string
	PSOID          string
	PSOName        string
	StartedAt      time.Time
	StoppedAt      *time.Time
	StopReason     domain.StopReason
}

// Service orchestrates talk sessions.
type Service struct {
	sessions    sessionrepo.Repository
	users       userrepo.Repository
	broadcaster broadcast.Broadcaster
	auditor     audit.AuditLogger
	emitter     telemetry.EventEmitter

	now func() time.Time
}

// NewService wires the talk session manager. broadcaster, auditor, and
// emitter may be nil.
func NewService(sessions sessionrepo.Repository, users userrepo.Repository, broadcaster broadcast.Broadcaster, auditor audit.AuditLogger, emitter telemetry.EventEmitter) *Service {
	return &Service{
		sessions:    sessions,
		users:       users,
		broadcaster: broadcaster,
		auditor:     auditor,
		emitter:     emitter,
		now:         time.Now,
	}
}

// Start creates an active session from supervisor to the PSO with psoEmail
// and announces it on the PSO's realtime channel. A concurrent or repeated
// start for the same pair returns ErrTalkSessionAlreadyActive.
func (s *Service) Start(ctx context.Context, supervisorID, psoEmail string) (*domain.TalkSession, error) {
	if psoEmail == "" {
		return nil, errs.E(errs.KindValidation, "pso email is required")
	}
	pso, err := s.users.GetByEmail(ctx, psoEmail)
	if err != nil {
		return nil, errs.Wrap(errs.KindStore, "resolve pso", err)
	}
	if !pso.IsActiveSubject() || pso.Role != userdomain.RolePSO {
		return nil, ErrPSONotFound
	}

	session := &domain.TalkSession{
		ID:           uuid.New().String(),
		SupervisorID: supervisorID,
		PSOID:        pso.ID,
		StartedAt:    s.now().UTC(),
	}
	if err := s.sessions.CreateActive(ctx, session); err != nil {
		if errors.Is(err, sessionrepo.ErrDuplicateActive) {
			return nil, ErrTalkSessionAlreadyActive
		}
		return nil, errs.Wrap(errs.KindStore, "create talk session", err)
	}

	metrics.TalkSessionsStarted.Inc()
	if s.auditor != nil {
		s.auditor.LogEvent(ctx, supervisorID, "talksession.start", session.ID,
			fmt.Sprintf(`{"psoId":%q}`, pso.ID))
	}
	telemetry.EmitAsync(s.emitter, ctx, &telemetry.Event{
		ID:        uuid.New().String(),
		EventType: "talksession.started",
		ActorID:   supervisorID,
		SubjectID: pso.ID,
		Source:    "api",
		Metadata:  map[string]string{"sessionId": session.ID},
		CreatedAt: s.now().UTC(),
	})

	supervisor, err := s.users.GetByID(ctx, supervisorID)
	if err != nil || supervisor == nil {
		supervisor = &userdomain.User{ID: supervisorID}
	}
	s.send(ctx, pso.ID, "talk-start", session.ID, map[string]any{
		"sessionId":       session.ID,
		"supervisorId":    supervisorID,
		"supervisorEmail": supervisor.Email,
		"supervisorName":  supervisor.DisplayName(),
	})
	return session, nil
}

// Stop ends the session. The first stop sets stoppedAt/stopReason and
// broadcasts "talk-stop"; stopping an already-stopped session returns the
// existing stopped state without error or a duplicate broadcast.
func (s *Service) Stop(ctx context.Context, sessionID string, reason domain.StopReason) (*domain.TalkSession, error) {
	if sessionID == "" {
		return nil, errs.E(errs.KindValidation, "session id is required")
	}
	if !reason.Valid() {
		reason = domain.StopUnknown
	}

	session, stoppedNow, err := s.sessions.Stop(ctx, sessionID, s.now().UTC(), reason)
	if err != nil {
		return nil, errs.Wrap(errs.KindStore, "stop talk session", err)
	}
	if session == nil {
		return nil, ErrTalkSessionNotFound
	}
	if !stoppedNow {
		return session, nil
	}

	metrics.TalkSessionsStopped.WithLabelValues(string(reason)).Inc()
	if s.auditor != nil {
		s.auditor.LogEvent(ctx, "", "talksession.stop", session.ID,
			fmt.Sprintf(`{"reason":%q}`, reason))
	}
	telemetry.EmitAsync(s.emitter, ctx, &telemetry.Event{
		ID:        uuid.New().String(),
		EventType: "talksession.stopped",
		SubjectID: session.PSOID,
		Source:    "api",
		Metadata:  map[string]string{"sessionId": session.ID, "reason": string(reason)},
		CreatedAt: s.now().UTC(),
	})
	s.send(ctx, session.PSOID, "talk-stop", session.ID, map[string]any{
		"sessionId": session.ID,
		"reason":    string(reason),
	})
	return session, nil
}

// GetActiveTalkSession reports whether the PSO with psoEmail has an active
// session. An unresolvable supervisor does not fail the query; the session
// is reported active with supervisor fields left empty.
func (s *Service) GetActiveTalkSession(ctx context.Context, psoEmail string) (ActiveSessionInfo, error) {
	if psoEmail == "" {
		return ActiveSessionInfo{}, errs.E(errs.KindValidation, "pso email is required")
	}
	pso, err := s.users.GetByEmail(ctx, psoEmail)
	if err != nil {
		return ActiveSessionInfo{}, errs.Wrap(errs.KindStore, "resolve pso", err)
	}
	if pso == nil {
		return ActiveSessionInfo{}, ErrPSONotFound
	}

	active, err := s.sessions.FindActiveByPSO(ctx, pso.ID)
	if err != nil {
		return ActiveSessionInfo{}, errs.Wrap(errs.KindStore, "find active talk session", err)
	}
	if len(active) == 0 {
		return ActiveSessionInfo{}, nil
	}

	session := active[0]
	info := ActiveSessionInfo{HasActiveSession: true, SessionID: session.ID}
	supervisor, err := s.users.GetByID(ctx, session.SupervisorID)
	if err != nil {
		logging.Warn().Str("session_id", session.ID).Err(err).Msg("talksession: supervisor lookup failed")
		return info, nil
	}
	if supervisor != nil {
		info.SupervisorEmail = supervisor.Email
		info.SupervisorName = supervisor.DisplayName()
	}
	return info, nil
}

// List returns sessions newest first with display names resolved
// best-effort and the total count for pagination.
func (s *Service) List(ctx context.Context, limit, offset int) ([]SessionView, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	sessions, total, err := s.sessions.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, errs.Wrap(errs.KindStore, "list talk sessions", err)
	}

	ids := make([]string, 0, len(sessions)*2)
	for _, sess := range sessions {
		ids = append(ids, sess.SupervisorID, sess.PSOID)
	}
	names, err := s.users.GetByIDs(ctx, ids)
	if err != nil {
		logging.Warn().Err(err).Msg("talksession: name hydration failed")
		names = map[string]*userdomain.User{}
	}

	views := make([]SessionView, 0, len(sessions))
	for _, sess := range sessions {
		v := SessionView{
			ID:           sess.ID,
			SupervisorID: sess.SupervisorID,
			PSOID:        sess.PSOID,
			StartedAt:    sess.StartedAt,
			StoppedAt:    sess.StoppedAt,
			StopReason:   sess.StopReason,
		}
		if u := names[sess.SupervisorID]; u != nil {
			v.SupervisorName = u.DisplayName()
		}
		if u := names[sess.PSOID]; u != nil {
			v.PSOName = u.DisplayName()
		}
		views = append(views, v)
	}
	return views, total, nil
}

// StopAllForUser stops every active session the user participates in, as
// either supervisor or PSO. Used by the connection-lifecycle worker on
// disconnect. Idempotent: sessions already stopped are skipped. Returns the
// number of sessions stopped by this call.
func (s *Service) StopAllForUser(ctx context.Context, userID string, reason domain.StopReason) (int, error) {
	if userID == "" {
		return 0, errs.E(errs.KindValidation, "user id is required")
	}

	asPSO, err := s.sessions.FindActiveByPSO(ctx, userID)
	if err != nil {
		return 0, errs.Wrap(errs.KindStore, "find sessions by pso", err)
	}
	asSupervisor, err := s.sessions.FindActiveBySupervisor(ctx, userID)
	if err != nil {
		return 0, errs.Wrap(errs.KindStore, "find sessions by supervisor", err)
	}

	stopped := 0
	for _, sess := range append(asPSO, asSupervisor...) {
		if _, err := s.Stop(ctx, sess.ID, reason); err != nil {
			logging.Warn().Str("session_id", sess.ID).Err(err).Msg("talksession: disconnect stop failed")
			continue
		}
		stopped++
	}
	return stopped, nil
}

// send broadcasts to the PSO's realtime channel. Best-effort.
func (s *Service) send(ctx context.Context, psoID, eventType, sessionID string, data map[string]any) {
	if s.broadcaster == nil {
		return
	}
	ev := broadcast.NewEvent(eventType, sessionID, data)
	if err := s.broadcaster.SendToGroup(ctx, broadcast.PSOGroupPrefix+psoID, ev); err != nil {
		metrics.BroadcastFailures.WithLabelValues(eventType).Inc()
		logging.Warn().Str("session_id", sessionID).Str("event", eventType).Err(err).
			Msg("talksession: broadcast failed")
	}
}
