// Package service implements the command dispatcher: single outstanding
// command per subject, lazy staleness expiry on fetch, all-or-nothing
// acknowledgment, and publish tracking against the broadcast fabric.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"pso-control-plane/backend/internal/audit"
	"pso-control-plane/backend/internal/broadcast"
	"pso-control-plane/backend/internal/command/domain"
	commandrepo "pso-control-plane/backend/internal/command/repository"
	"pso-control-plane/backend/internal/errs"
	"pso-control-plane/backend/internal/logging"
	"pso-control-plane/backend/internal/metrics"
	"pso-control-plane/backend/internal/telemetry"
	userdomain "pso-control-plane/backend/internal/user/domain"
	userrepo "pso-control-plane/backend/internal/user/repository"
)

// ErrSubjectNotFound is returned when a caller or command target does not
// resolve to an active PSO.
var ErrSubjectNotFound = errs.E(errs.KindNotFound, "subject not found or inactive")

// CommandNotFoundError reports acknowledge requests naming IDs that do not
// exist. No ID in the request is acknowledged when this is returned.
type CommandNotFoundError struct {
	MissingIDs []string
}

func (e *CommandNotFoundError) Error() string {
	return "command ids not found: " + strings.Join(e.MissingIDs, ", ")
}

func (e *CommandNotFoundError) Unwrap() error {
	return errs.E(errs.KindNotFound, "command ids not found")
}

// CommandFetchError wraps a store failure during pending-command retrieval.
type CommandFetchError struct {
	Err error
}

func (e *CommandFetchError) Error() string {
	return fmt.Sprintf("fetch pending commands: %v", e.Err)
}

func (e *CommandFetchError) Unwrap() error {
	return errs.Wrap(errs.KindStore, "load pending commands", e.Err)
}

// Dispatcher orchestrates pending device commands.
type Dispatcher struct {
	commands    commandrepo.Repository
	users       userrepo.Repository
	broadcaster broadcast.Broadcaster
	auditor     audit.AuditLogger
	emitter     telemetry.EventEmitter
	staleAfter  time.Duration

	now func() time.Time
}

// NewDispatcher wires the dispatcher. broadcaster, auditor, and emitter may
// be nil (commands are then created without delivery, auditing, or
// telemetry). staleAfter <= 0 disables staleness expiry.
func NewDispatcher(commands commandrepo.Repository, users userrepo.Repository, broadcaster broadcast.Broadcaster, auditor audit.AuditLogger, emitter telemetry.EventEmitter, staleAfter time.Duration) *Dispatcher {
	return &Dispatcher{
		commands:    commands,
		users:       users,
		broadcaster: broadcaster,
		auditor:     auditor,
		emitter:     emitter,
		staleAfter:  staleAfter,
		now:         time.Now,
	}
}

// CreatePendingCommand replaces the subject's outstanding command with a new
// one ("last command wins") and hands it to the broadcast fabric for
// delivery. Delivery is best-effort: a broadcast failure leaves the command
// pending and un-published, to be picked up by the device's next fetch.
func (d *Dispatcher) CreatePendingCommand(ctx context.Context, subjectID string, cmdType domain.CommandType, issuedAt time.Time, reason, initiatorID string) (*domain.PendingCommand, error) {
	if subjectID == "" {
		return nil, errs.E(errs.KindValidation, "subject id is required")
	}
	if !cmdType.Valid() {
		return nil, errs.E(errs.KindValidation, fmt.Sprintf("unknown command type %q", cmdType))
	}
	if _, err := d.activePSO(ctx, subjectID); err != nil {
		return nil, err
	}
	if issuedAt.IsZero() {
		issuedAt = d.now().UTC()
	}

	cmd := &domain.PendingCommand{
		ID:          uuid.New().String(),
		SubjectID:   subjectID,
		Type:        cmdType,
		IssuedAt:    issuedAt,
		Reason:      reason,
		InitiatorID: initiatorID,
	}
	if err := d.commands.Replace(ctx, cmd); err != nil {
		return nil, errs.Wrap(errs.KindStore, "replace pending command", err)
	}

	metrics.CommandsCreated.WithLabelValues(string(cmdType)).Inc()
	if d.auditor != nil {
		d.auditor.LogEvent(ctx, initiatorID, "command.create", cmd.ID,
			fmt.Sprintf(`{"subjectId":%q,"type":%q}`, subjectID, cmdType))
	}
	telemetry.EmitAsync(d.emitter, ctx, &telemetry.Event{
		ID:        uuid.New().String(),
		EventType: "command.created",
		ActorID:   initiatorID,
		SubjectID: subjectID,
		Source:    "api",
		Metadata:  map[string]string{"commandId": cmd.ID, "type": string(cmdType)},
		CreatedAt: d.now().UTC(),
	})

	d.publish(ctx, cmd)
	return cmd, nil
}

// publish hands cmd to the device group and records publication on success.
func (d *Dispatcher) publish(ctx context.Context, cmd *domain.PendingCommand) {
	if d.broadcaster == nil {
		return
	}
	ev := broadcast.NewEvent("command", cmd.ID, map[string]any{
		"commandId": cmd.ID,
		"type":      string(cmd.Type),
		"issuedAt":  cmd.IssuedAt,
		"reason":    cmd.Reason,
	})
	if err := d.broadcaster.SendToGroup(ctx, broadcast.DeviceGroupPrefix+cmd.SubjectID, ev); err != nil {
		metrics.BroadcastFailures.WithLabelValues("command").Inc()
		logging.Warn().Str("command_id", cmd.ID).Str("subject_id", cmd.SubjectID).Err(err).
			Msg("command: broadcast failed, left un-published")
		return
	}
	if err := d.MarkAsPublished(ctx, cmd.ID); err != nil {
		logging.Warn().Str("command_id", cmd.ID).Err(err).Msg("command: mark published failed")
		return
	}
	now := d.now().UTC()
	cmd.Published = true
	cmd.PublishedAt = &now
}

// FetchPendingCommands resolves the caller to an active PSO and returns the
// most recent outstanding command, or an empty slice when none is pending. A
// command older than the staleness threshold is treated as expired and not
// returned; the row is kept for audit.
func (d *Dispatcher) FetchPendingCommands(ctx context.Context, callerID string) ([]*domain.PendingCommand, error) {
	subject, err := d.activePSO(ctx, callerID)
	if err != nil {
		return nil, err
	}

	pending, err := d.commands.ListPendingBySubject(ctx, subject.ID)
	if err != nil {
		return nil, &CommandFetchError{Err: err}
	}
	if len(pending) == 0 {
		return nil, nil
	}

	latest := pending[0]
	if d.staleAfter > 0 && d.now().Sub(latest.IssuedAt) > d.staleAfter {
		return nil, nil
	}
	return []*domain.PendingCommand{latest}, nil
}

// AcknowledgeCommands marks all ids as acknowledged. All-or-nothing: if any
// id does not exist, none are acknowledged and the error names the missing
// ids. Re-acknowledging an already-acknowledged id is not an error.
func (d *Dispatcher) AcknowledgeCommands(ctx context.Context, ids []string, callerID string) (int64, error) {
	if _, err := d.activePSO(ctx, callerID); err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, errs.E(errs.KindValidation, "command ids are required")
	}

	existing, err := d.commands.ExistingIDs(ctx, ids)
	if err != nil {
		return 0, errs.Wrap(errs.KindStore, "check command ids", err)
	}
	known := make(map[string]bool, len(existing))
	for _, id := range existing {
		known[id] = true
	}
	var missing []string
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if !known[id] && !seen[id] {
			missing = append(missing, id)
			seen[id] = true
		}
	}
	if len(missing) > 0 {
		return 0, &CommandNotFoundError{MissingIDs: missing}
	}

	count, err := d.commands.MarkAcknowledged(ctx, ids, d.now().UTC())
	if err != nil {
		return 0, errs.Wrap(errs.KindStore, "acknowledge commands", err)
	}
	metrics.CommandsAcknowledged.Add(float64(count))
	if d.auditor != nil {
		d.auditor.LogEvent(ctx, callerID, "command.acknowledge", strings.Join(ids, ","),
			fmt.Sprintf(`{"count":%d}`, count))
	}
	return count, nil
}

// MarkAsPublished records that the command was handed to the broadcast
// fabric for delivery.
func (d *Dispatcher) MarkAsPublished(ctx context.Context, id string) error {
	if id == "" {
		return errs.E(errs.KindValidation, "command id is required")
	}
	if err := d.commands.MarkPublished(ctx, id, d.now().UTC()); err != nil {
		return errs.Wrap(errs.KindStore, "mark command published", err)
	}
	return nil
}

// activePSO resolves id to an active, non-deleted PSO.
func (d *Dispatcher) activePSO(ctx context.Context, id string) (*userdomain.User, error) {
	if id == "" {
		return nil, ErrSubjectNotFound
	}
	u, err := d.users.GetByID(ctx, id)
	if err != nil {
		return nil, errs.Wrap(errs.KindStore, "resolve subject", err)
	}
	if !u.IsActiveSubject() || u.Role != userdomain.RolePSO {
		return nil, ErrSubjectNotFound
	}
	return u, nil
}
