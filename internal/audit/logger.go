// Package audit writes best-effort audit events for command, session, and
// recording mutations. A failure in the audit path is logged and swallowed
// so it never masks or replaces the error returned to the caller.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	auditdomain "pso-control-plane/backend/internal/audit/domain"
	auditrepo "pso-control-plane/backend/internal/audit/repository"
	"pso-control-plane/backend/internal/logging"
)

// SentinelActorID is used for audit events with no resolvable actor
// (e.g. disconnect events arriving without caller context).
const SentinelActorID = "_system"

// IPExtractor returns the client IP from the request context.
type IPExtractor func(context.Context) string

// AuditLogger writes a single audit event with explicit action/resource.
// LogEvent is best-effort: failures are logged and do not affect the caller.
type AuditLogger interface {
	LogEvent(ctx context.Context, actorID, action, resource, metadata string)
}

// Logger implements AuditLogger using the audit repository and an optional IP extractor.
type Logger struct {
	repo        auditrepo.Repository
	ipExtractor IPExtractor
}

// NewLogger returns an AuditLogger that persists to repo and uses ipExtractor for client IP.
// ipExtractor may be nil; then IP is recorded as "unknown".
func NewLogger(repo auditrepo.Repository, ipExtractor IPExtractor) *Logger {
	return &Logger{repo: repo, ipExtractor: ipExtractor}
}

// LogEvent writes one audit log entry. Best-effort: errors are logged and not returned.
func (l *Logger) LogEvent(ctx context.Context, actorID, action, resource, metadata string) {
	if l.repo == nil {
		return
	}
	ip := "unknown"
	if l.ipExtractor != nil {
		ip = l.ipExtractor(ctx)
	}
	if actorID == "" {
		actorID = SentinelActorID
	}
	entry := &auditdomain.AuditLog{
		ID:        uuid.New().String(),
		ActorID:   actorID,
		Action:    action,
		Resource:  resource,
		IP:        ip,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
	if err := l.repo.Create(ctx, entry); err != nil {
		logging.Warn().Str("action", action).Str("resource", resource).Err(err).Msg("audit: failed to log event")
	}
}
