package audit

import (
	"context"
	"errors"
	"sync"
	"testing"

	auditdomain "pso-control-plane/backend/internal/audit/domain"
)

type memAuditRepo struct {
	mu      sync.Mutex
	entries []*auditdomain.AuditLog
	failure error
}

func (r *memAuditRepo) Create(ctx context.Context, a *auditdomain.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failure != nil {
		return r.failure
	}
	r.entries = append(r.entries, a)
	return nil
}

func (r *memAuditRepo) List(ctx context.Context, limit, offset int32) ([]*auditdomain.AuditLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries, nil
}

func TestLogEventPersistsEntry(t *testing.T) {
	repo := &memAuditRepo{}
	l := NewLogger(repo, func(context.Context) string { return "10.0.0.1" })

	l.LogEvent(context.Background(), "sup-1", "create", "command", "cmd-1")

	if len(repo.entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(repo.entries))
	}
	e := repo.entries[0]
	if e.ActorID != "sup-1" || e.Action != "create" || e.Resource != "command" || e.IP != "10.0.0.1" {
		t.Errorf("entry = %+v", e)
	}
	if e.ID == "" || e.CreatedAt.IsZero() {
		t.Error("ID and CreatedAt must be set")
	}
}

func TestLogEventSentinelActor(t *testing.T) {
	repo := &memAuditRepo{}
	l := NewLogger(repo, nil)

	l.LogEvent(context.Background(), "", "stop", "talk_session", "")

	if repo.entries[0].ActorID != SentinelActorID {
		t.Errorf("ActorID = %q, want %q", repo.entries[0].ActorID, SentinelActorID)
	}
	if repo.entries[0].IP != "unknown" {
		t.Errorf("IP = %q, want unknown", repo.entries[0].IP)
	}
}

func TestLogEventSwallowsStoreFailure(t *testing.T) {
	repo := &memAuditRepo{failure: errors.New("db down")}
	l := NewLogger(repo, nil)

	// Must not panic or propagate.
	l.LogEvent(context.Background(), "sup-1", "create", "command", "")
}

func TestLogEventNilRepoNoop(t *testing.T) {
	l := NewLogger(nil, nil)
	l.LogEvent(context.Background(), "sup-1", "create", "command", "")
}
