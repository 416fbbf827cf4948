// Package service implements the recording orchestrator: egress start/stop
// coordination, deterministic blob paths, and batch stop with per-item
// failure isolation.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"pso-control-plane/backend/internal/audit"
	"pso-control-plane/backend/internal/blobsign"
	"pso-control-plane/backend/internal/egress"
	"pso-control-plane/backend/internal/errs"
	"pso-control-plane/backend/internal/logging"
	"pso-control-plane/backend/internal/metrics"
	"pso-control-plane/backend/internal/recording/domain"
	recordingrepo "pso-control-plane/backend/internal/recording/repository"
	"pso-control-plane/backend/internal/telemetry"
	userdomain "pso-control-plane/backend/internal/user/domain"
	userrepo "pso-control-plane/backend/internal/user/repository"
)

// ErrNoActiveRecordings is returned by StopRecording when no active session
// matches the target within the lookback window. Distinct from a batch that
// matched but partly failed.
var ErrNoActiveRecordings = errs.E(errs.KindNotFound, "no active recordings for target")

// RecordingStartError wraps any failure while starting a recording: a
// mistyped command, a failed egress call, or a store failure. The cause is
// kinded, so handlers map it to the right status.
type RecordingStartError struct {
	Err error
}

func (e *RecordingStartError) Error() string {
	return fmt.Sprintf("start recording: %v", e.Err)
}

func (e *RecordingStartError) Unwrap() error { return e.Err }

// RecordingStopError wraps a top-level failure while stopping recordings.
// Per-item failures inside the batch are reported in the results, not here.
type RecordingStopError struct {
	Err error
}

func (e *RecordingStopError) Error() string {
	return fmt.Sprintf("stop recording: %v", e.Err)
}

func (e *RecordingStopError) Unwrap() error { return e.Err }

// StopItem is the outcome of stopping one matched session.
type StopItem struct {
	SessionID   string
	RoomName    string
	Status      domain.Status
	BlobPath    string
	PlaybackURL string
	Error       string
}

// StopSummary is the batch stop result. Total counts matched sessions;
// Completed counts the ones that stopped cleanly.
type StopSummary struct {
	Message   string
	Total     int
	Completed int
	Results   []StopItem
}

// RecordingView is a listing row with display names resolved.
type RecordingView struct {
	ID            string
	RoomName      string
	InitiatorID   string
	InitiatorName string
	SubjectID     string
	SubjectName   string
	SubjectLabel  string
	Status        domain.Status
	StartedAt     time.Time
	StoppedAt     *time.Time
	PlaybackURL   string
}

// Orchestrator coordinates egress, the recording store, and blob signing.
type Orchestrator struct {
	recordings recordingrepo.Repository
	users      userrepo.Repository
	egress     egress.Client
	signer     blobsign.Signer
	auditor    audit.AuditLogger
	emitter    telemetry.EventEmitter
	lookback   time.Duration
	sasTTL     time.Duration

	now func() time.Time
}

// NewOrchestrator wires the recording orchestrator. auditor and emitter may
// be nil. lookback bounds how far back StopRecording matches active
// sessions; sasTTL bounds signed playback URLs.
func NewOrchestrator(recordings recordingrepo.Repository, users userrepo.Repository, egressClient egress.Client, signer blobsign.Signer, auditor audit.AuditLogger, emitter telemetry.EventEmitter, lookback, sasTTL time.Duration) *Orchestrator {
	return &Orchestrator{
		recordings: recordings,
		users:      users,
		egress:     egressClient,
		signer:     signer,
		auditor:    auditor,
		emitter:    emitter,
		lookback:   lookback,
		sasTTL:     sasTTL,
		now:        time.Now,
	}
}

// StartRecording validates cmd, computes the blob destination, starts
// egress, and persists the active session. A non-START command fails before
// any external call.
func (o *Orchestrator) StartRecording(ctx context.Context, cmd domain.RecordingCommand) (*domain.RecordingSession, error) {
	if cmd.Type != domain.CommandStart {
		return nil, &RecordingStartError{Err: errs.E(errs.KindValidation,
			fmt.Sprintf("expected START command, got %q", cmd.Type))}
	}
	if cmd.RoomName == "" {
		return nil, &RecordingStartError{Err: errs.E(errs.KindValidation, "room name is required")}
	}

	startedAt := o.now().UTC()
	blobPath := buildBlobPath(cmd, startedAt)

	egressID, err := o.egress.StartRecording(ctx, cmd.RoomName)
	if err != nil {
		return nil, &RecordingStartError{Err: errs.Wrap(errs.KindExternal, "egress start", err)}
	}

	session := &domain.RecordingSession{
		ID:           uuid.New().String(),
		RoomName:     cmd.RoomName,
		EgressID:     egressID,
		InitiatorID:  cmd.InitiatorID,
		SubjectID:    cmd.SubjectID,
		SubjectLabel: cmd.SubjectLabel,
		Status:       domain.StatusActive,
		StartedAt:    startedAt,
		BlobPath:     blobPath,
	}
	if err := o.recordings.CreateActive(ctx, session); err != nil {
		return nil, &RecordingStartError{Err: errs.Wrap(errs.KindStore, "persist recording session", err)}
	}

	metrics.RecordingsStarted.Inc()
	if o.auditor != nil {
		o.auditor.LogEvent(ctx, cmd.InitiatorID, "recording.start", session.ID,
			fmt.Sprintf(`{"roomName":%q,"subjectId":%q}`, cmd.RoomName, cmd.SubjectID))
	}
	telemetry.EmitAsync(o.emitter, ctx, &telemetry.Event{
		ID:        uuid.New().String(),
		EventType: "recording.started",
		ActorID:   cmd.InitiatorID,
		SubjectID: cmd.SubjectID,
		Source:    "api",
		Metadata:  map[string]string{"sessionId": session.ID, "roomName": cmd.RoomName},
		CreatedAt: startedAt,
	})
	return session, nil
}

// StopRecording stops every active session matching cmd's target within the
// lookback window. Sessions are stopped independently: one failure marks
// that item failed and the batch continues. Returns ErrNoActiveRecordings
// when nothing matches.
func (o *Orchestrator) StopRecording(ctx context.Context, cmd domain.RecordingCommand) (*StopSummary, error) {
	if cmd.Type != domain.CommandStop {
		return nil, &RecordingStopError{Err: errs.E(errs.KindValidation,
			fmt.Sprintf("expected STOP command, got %q", cmd.Type))}
	}
	if cmd.SubjectID == "" && cmd.RoomName == "" {
		return nil, &RecordingStopError{Err: errs.E(errs.KindValidation, "subject id or room name is required")}
	}

	since := o.now().Add(-o.lookback)
	var (
		sessions []*domain.RecordingSession
		err      error
	)
	if cmd.SubjectID != "" {
		sessions, err = o.recordings.FindActiveBySubject(ctx, cmd.SubjectID, since)
	} else {
		sessions, err = o.recordings.FindActiveByRoom(ctx, cmd.RoomName, since)
	}
	if err != nil {
		return nil, &RecordingStopError{Err: errs.Wrap(errs.KindStore, "find active recordings", err)}
	}
	if len(sessions) == 0 {
		return nil, ErrNoActiveRecordings
	}

	summary := &StopSummary{Total: len(sessions)}
	for _, session := range sessions {
		summary.Results = append(summary.Results, o.stopOne(ctx, session))
	}
	for _, item := range summary.Results {
		if item.Status == domain.StatusCompleted {
			summary.Completed++
		}
	}
	summary.Message = fmt.Sprintf("stopped %d of %d recordings", summary.Completed, summary.Total)

	if o.auditor != nil {
		o.auditor.LogEvent(ctx, cmd.InitiatorID, "recording.stop", cmd.SubjectID+cmd.RoomName,
			fmt.Sprintf(`{"total":%d,"completed":%d}`, summary.Total, summary.Completed))
	}
	return summary, nil
}

// stopOne stops a single session. Failures are captured in the item, never
// returned, so the batch keeps going.
func (o *Orchestrator) stopOne(ctx context.Context, session *domain.RecordingSession) StopItem {
	item := StopItem{SessionID: session.ID, RoomName: session.RoomName}
	stoppedAt := o.now().UTC()

	result, err := o.egress.StopRecording(ctx, session.EgressID)
	if err != nil {
		item.Status = domain.StatusFailed
		item.Error = err.Error()
		metrics.RecordingsStopped.WithLabelValues(string(domain.StatusFailed)).Inc()
		logging.Warn().Str("session_id", session.ID).Str("egress_id", session.EgressID).Err(err).
			Msg("recording: egress stop failed")
		if markErr := o.recordings.MarkFailed(ctx, session.ID, stoppedAt); markErr != nil {
			logging.Error().Str("session_id", session.ID).Err(markErr).Msg("recording: mark failed")
		}
		return item
	}

	blobPath := session.BlobPath
	if result.Path != "" {
		blobPath = result.Path
	}
	item.BlobPath = blobPath
	item.PlaybackURL = o.playbackURL(blobPath, true)

	if err := o.recordings.Complete(ctx, session.ID, stoppedAt, blobPath, result.URL); err != nil {
		item.Status = domain.StatusFailed
		item.Error = err.Error()
		metrics.RecordingsStopped.WithLabelValues(string(domain.StatusFailed)).Inc()
		logging.Error().Str("session_id", session.ID).Err(err).Msg("recording: complete failed")
		return item
	}

	item.Status = domain.StatusCompleted
	metrics.RecordingsStopped.WithLabelValues(string(domain.StatusCompleted)).Inc()
	telemetry.EmitAsync(o.emitter, ctx, &telemetry.Event{
		ID:        uuid.New().String(),
		EventType: "recording.completed",
		SubjectID: session.SubjectID,
		Source:    "api",
		Metadata:  map[string]string{"sessionId": session.ID, "blobPath": blobPath},
		CreatedAt: stoppedAt,
	})
	return item
}

// ListRecordings returns sessions newest first. Initiator and subject names
// are hydrated best-effort: a failed lookup leaves the name blank. signed
// selects SAS playback URLs over plain ones.
func (o *Orchestrator) ListRecordings(ctx context.Context, limit, offset int, signed bool) ([]RecordingView, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	sessions, total, err := o.recordings.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, errs.Wrap(errs.KindStore, "list recordings", err)
	}

	ids := make([]string, 0, len(sessions)*2)
	for _, s := range sessions {
		ids = append(ids, s.InitiatorID, s.SubjectID)
	}
	names, err := o.users.GetByIDs(ctx, ids)
	if err != nil {
		logging.Warn().Err(err).Msg("recording: name hydration failed")
		names = map[string]*userdomain.User{}
	}

	views := make([]RecordingView, 0, len(sessions))
	for _, s := range sessions {
		v := RecordingView{
			ID:           s.ID,
			RoomName:     s.RoomName,
			InitiatorID:  s.InitiatorID,
			SubjectID:    s.SubjectID,
			SubjectLabel: s.SubjectLabel,
			Status:       s.Status,
			StartedAt:    s.StartedAt,
			StoppedAt:    s.StoppedAt,
			PlaybackURL:  o.playbackURL(s.BlobPath, signed),
		}
		if u := names[s.InitiatorID]; u != nil {
			v.InitiatorName = u.DisplayName()
		}
		if u := names[s.SubjectID]; u != nil {
			v.SubjectName = u.DisplayName()
		}
		views = append(views, v)
	}
	return views, total, nil
}

// playbackURL returns the signed or plain URL for path. A signing failure
// falls back to the plain URL rather than failing the caller.
func (o *Orchestrator) playbackURL(path string, signed bool) string {
	if path == "" || o.signer == nil {
		return ""
	}
	if !signed {
		return o.signer.URL(path)
	}
	url, err := o.signer.Sign(path, o.sasTTL)
	if err != nil {
		logging.Warn().Str("path", path).Err(err).Msg("recording: sign playback url failed")
		return o.signer.URL(path)
	}
	return url
}

// buildBlobPath derives the deterministic destination for a capture:
// recordings/<label>/<date>/<room>-<unixts>-<shortid>.mp4.
func buildBlobPath(cmd domain.RecordingCommand, at time.Time) string {
	label := sanitizeLabel(cmd.SubjectLabel)
	if label == "" {
		label = sanitizeLabel(cmd.SubjectID)
	}
	if label == "" {
		label = "unassigned"
	}
	short := strings.SplitN(uuid.New().String(), "-", 2)[0]
	return fmt.Sprintf("recordings/%s/%s/%s-%d-%s.mp4",
		label, at.Format("2006-01-02"), sanitizeLabel(cmd.RoomName), at.Unix(), short)
}

func sanitizeLabel(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('-')
		}
	}
	return b.String()
}
