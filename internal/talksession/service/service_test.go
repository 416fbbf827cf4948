package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"pso-control-plane/backend/internal/broadcast"
	"pso-control-plane/backend/internal/errs"
	"pso-control-plane/backend/internal/talksession/domain"
	sessionrepo "pso-control-plane/backend/internal/talksession/repository"
	userdomain "pso-control-plane/backend/internal/user/domain"
)

type memSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*domain.TalkSession
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{sessions: map[string]*domain.TalkSession{}}
}

func (r *memSessionRepo) CreateActive(ctx context.Context, s *domain.TalkSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.sessions {
		if existing.SupervisorID == s.SupervisorID && existing.PSOID == s.PSOID && existing.Active() {
			return sessionrepo.ErrDuplicateActive
		}
	}
	cp := *s
	r.sessions[s.ID] = &cp
	return nil
}

func (r *memSessionRepo) Stop(ctx context.Context, id string, at time.Time, reason domain.StopReason) (*domain.TalkSession, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, false, nil
	}
	if !s.Active() {
		cp := *s
		return &cp, false, nil
	}
	s.StoppedAt = &at
	s.StopReason = reason
	cp := *s
	return &cp, true, nil
}

func (r *memSessionRepo) GetByID(ctx context.Context, id string) (*domain.TalkSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (r *memSessionRepo) FindActiveByPSO(ctx context.Context, psoID string) ([]*domain.TalkSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.TalkSession
	for _, s := range r.sessions {
		if s.PSOID == psoID && s.Active() {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memSessionRepo) FindActiveBySupervisor(ctx context.Context, supervisorID string) ([]*domain.TalkSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.TalkSession
	for _, s := range r.sessions {
		if s.SupervisorID == supervisorID && s.Active() {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memSessionRepo) List(ctx context.Context, limit, offset int) ([]*domain.TalkSession, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.TalkSession
	for _, s := range r.sessions {
		cp := *s
		out = append(out, &cp)
	}
	return out, len(out), nil
}

type memUserRepo struct {
	mu    sync.Mutex
	users map[string]*userdomain.User
}

func newMemUserRepo(users ...*userdomain.User) *memUserRepo {
	r := &memUserRepo{users: map[string]*userdomain.User{}}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *memUserRepo) GetByID(ctx context.Context, id string) (*userdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.users[id], nil
}

func (r *memUserRepo) GetByEmail(ctx context.Context, email string) (*userdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (r *memUserRepo) GetByIDs(ctx context.Context, ids []string) (map[string]*userdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[string]*userdomain.User{}
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

func (r *memUserRepo) Create(ctx context.Context, u *userdomain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.ID] = u
	return nil
}

type memBroadcaster struct {
	mu     sync.Mutex
	groups []string
	events []broadcast.Event
	err    error
}

func (b *memBroadcaster) SendToGroup(ctx context.Context, group string, payload any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.groups = append(b.groups, group)
	if ev, ok := payload.(broadcast.Event); ok {
		b.events = append(b.events, ev)
	}
	return nil
}

func testUsers() *memUserRepo {
	return newMemUserRepo(
		&userdomain.User{ID: "sup-1", Email: "sup@example.com", FirstName: "Sam", LastName: "Ward", Role: userdomain.RoleSupervisor, Active: true},
		&userdomain.User{ID: "pso-1", Email: "pso@example.com", FirstName: "Pat", LastName: "Okoro", Role: userdomain.RolePSO, Active: true},
	)
}

func TestStartTalkSession(t *testing.T) {
	ctx := context.Background()
	b := &memBroadcaster{}
	svc := NewService(newMemSessionRepo(), testUsers(), b, nil, nil)

	session, err := svc.Start(ctx, "sup-1", "pso@example.com")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if session.PSOID != "pso-1" || !session.Active() {
		t.Errorf("session = %+v", session)
	}
	if len(b.groups) != 1 || b.groups[0] != "pso.pso-1" {
		t.Errorf("broadcast groups = %v", b.groups)
	}
	if len(b.events) != 1 || b.events[0].Type != "talk-start" {
		t.Fatalf("events = %+v", b.events)
	}
	data := b.events[0].Data.(map[string]any)
	if data["supervisorName"] != "Sam Ward" {
		t.Errorf("talk-start data = %v", data)
	}
}

func TestStartTalkSessionDuplicatePair(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemSessionRepo(), testUsers(), nil, nil, nil)

	if _, err := svc.Start(ctx, "sup-1", "pso@example.com"); err != nil {
		t.Fatalf("first start: %v", err)
	}
	_, err := svc.Start(ctx, "sup-1", "pso@example.com")
	if !errors.Is(err, ErrTalkSessionAlreadyActive) {
		t.Errorf("err = %v, want ErrTalkSessionAlreadyActive", err)
	}
	if errs.KindOf(err) != errs.KindConflict {
		t.Errorf("kind = %v, want KindConflict", errs.KindOf(err))
	}
}

func TestStartTalkSessionUnknownPSO(t *testing.T) {
	svc := NewService(newMemSessionRepo(), testUsers(), nil, nil, nil)
	_, err := svc.Start(context.Background(), "sup-1", "nobody@example.com")
	if !errors.Is(err, ErrPSONotFound) {
		t.Errorf("err = %v, want ErrPSONotFound", err)
	}
}

func TestStopTalkSessionIdempotent(t *testing.T) {
	ctx := context.Background()
	b := &memBroadcaster{}
	svc := NewService(newMemSessionRepo(), testUsers(), b, nil, nil)

	session, _ := svc.Start(ctx, "sup-1", "pso@example.com")

	first, err := svc.Stop(ctx, session.ID, domain.StopUserStop)
	if err != nil {
		t.Fatalf("first stop: %v", err)
	}
	if first.Active() || first.StopReason != domain.StopUserStop {
		t.Errorf("first stop = %+v", first)
	}

	second, err := svc.Stop(ctx, session.ID, domain.StopBrowserRefresh)
	if err != nil {
		t.Fatalf("second stop must not error: %v", err)
	}
	if second.StopReason != domain.StopUserStop {
		t.Errorf("second stop changed reason: %+v", second)
	}
	if second.StoppedAt == nil || !second.StoppedAt.Equal(*first.StoppedAt) {
		t.Errorf("second stop changed stoppedAt: %+v vs %+v", second.StoppedAt, first.StoppedAt)
	}

	stops := 0
	for _, ev := range b.events {
		if ev.Type == "talk-stop" {
			stops++
		}
	}
	if stops != 1 {
		t.Errorf("talk-stop broadcasts = %d, want 1", stops)
	}
}

func TestStopTalkSessionUnknown(t *testing.T) {
	svc := NewService(newMemSessionRepo(), testUsers(), nil, nil, nil)
	_, err := svc.Stop(context.Background(), "nope", domain.StopUserStop)
	if !errors.Is(err, ErrTalkSessionNotFound) {
		t.Errorf("err = %v, want ErrTalkSessionNotFound", err)
	}
}

func TestStopTalkSessionUnknownReasonNormalized(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemSessionRepo(), testUsers(), nil, nil, nil)
	session, _ := svc.Start(ctx, "sup-1", "pso@example.com")

	stopped, err := svc.Stop(ctx, session.ID, domain.StopReason("meteor strike"))
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if stopped.StopReason != domain.StopUnknown {
		t.Errorf("reason = %q, want unknown", stopped.StopReason)
	}
}

func TestGetActiveTalkSession(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemSessionRepo(), testUsers(), nil, nil, nil)
	session, _ := svc.Start(ctx, "sup-1", "pso@example.com")

	info, err := svc.GetActiveTalkSession(ctx, "pso@example.com")
	if err != nil {
		t.Fatalf("get active: %v", err)
	}
	if !info.HasActiveSession || info.SessionID != session.ID {
		t.Errorf("info = %+v", info)
	}
	if info.SupervisorEmail != "sup@example.com" || info.SupervisorName != "Sam Ward" {
		t.Errorf("supervisor fields = %+v", info)
	}
}

func TestGetActiveTalkSessionSupervisorDeleted(t *testing.T) {
	ctx := context.Background()
	users := testUsers()
	svc := NewService(newMemSessionRepo(), users, nil, nil, nil)
	session, _ := svc.Start(ctx, "sup-1", "pso@example.com")

	users.mu.Lock()
	delete(users.users, "sup-1")
	users.mu.Unlock()

	info, err := svc.GetActiveTalkSession(ctx, "pso@example.com")
	if err != nil {
		t.Fatalf("get active: %v", err)
	}
	if !info.HasActiveSession || info.SessionID != session.ID {
		t.Errorf("session must still be reported active: %+v", info)
	}
	if info.SupervisorEmail != "" || info.SupervisorName != "" {
		t.Errorf("supervisor fields should be empty: %+v", info)
	}
}

func TestGetActiveTalkSessionNone(t *testing.T) {
	svc := NewService(newMemSessionRepo(), testUsers(), nil, nil, nil)
	info, err := svc.GetActiveTalkSession(context.Background(), "pso@example.com")
	if err != nil {
		t.Fatalf("get active: %v", err)
	}
	if info.HasActiveSession {
		t.Errorf("info = %+v, want no active session", info)
	}
}

func TestStopAllForUser(t *testing.T) {
	ctx := context.Background()
	users := testUsers()
	users.Create(ctx, &userdomain.User{ID: "pso-2", Email: "pso2@example.com", Role: userdomain.RolePSO, Active: true})
	repo := newMemSessionRepo()
	svc := NewService(repo, users, nil, nil, nil)

	s1, _ := svc.Start(ctx, "sup-1", "pso@example.com")
	s2, _ := svc.Start(ctx, "sup-1", "pso2@example.com")

	stopped, err := svc.StopAllForUser(ctx, "sup-1", domain.StopSupervisorDisconnected)
	if err != nil {
		t.Fatalf("stop all: %v", err)
	}
	if stopped != 2 {
		t.Errorf("stopped = %d, want 2", stopped)
	}
	for _, id := range []string{s1.ID, s2.ID} {
		got, _ := repo.GetByID(ctx, id)
		if got.Active() || got.StopReason != domain.StopSupervisorDisconnected {
			t.Errorf("session %s = %+v", id, got)
		}
	}

	again, err := svc.StopAllForUser(ctx, "sup-1", domain.StopSupervisorDisconnected)
	if err != nil || again != 0 {
		t.Errorf("second pass = %d, %v; want 0, nil", again, err)
	}
}
