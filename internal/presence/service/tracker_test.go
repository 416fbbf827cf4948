package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"pso-control-plane/backend/internal/presence/domain"
)

type memPresenceRepo struct {
	mu        sync.Mutex
	presence  map[string]*domain.Presence
	intervals []*domain.HistoryInterval
}

func newMemPresenceRepo() *memPresenceRepo {
	return &memPresenceRepo{presence: map[string]*domain.Presence{}}
}

func (r *memPresenceRepo) Upsert(ctx context.Context, p *domain.Presence) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.presence[p.UserID] = &cp
	return nil
}

func (r *memPresenceRepo) Get(ctx context.Context, userID string) (*domain.Presence, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.presence[userID]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *memPresenceRepo) OpenHistory(ctx context.Context, id, userID string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, h := range r.intervals {
		if h.UserID == userID && h.EndedAt == nil {
			return false, nil
		}
	}
	r.intervals = append(r.intervals, &domain.HistoryInterval{ID: id, UserID: userID, StartedAt: at})
	return true, nil
}

func (r *memPresenceRepo) CloseOpenHistory(ctx context.Context, userID string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, h := range r.intervals {
		if h.UserID == userID && h.EndedAt == nil {
			t := at
			h.EndedAt = &t
			return true, nil
		}
	}
	return false, nil
}

func (r *memPresenceRepo) ListHistory(ctx context.Context, userID string, limit int) ([]*domain.HistoryInterval, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.HistoryInterval
	for _, h := range r.intervals {
		if h.UserID == userID {
			cp := *h
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memPresenceRepo) countIntervals(userID string) (open, closed int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, h := range r.intervals {
		if h.UserID != userID {
			continue
		}
		if h.EndedAt == nil {
			open++
		} else {
			closed++
		}
	}
	return
}

func TestSetOnlineOpensSingleInterval(t *testing.T) {
	ctx := context.Background()
	repo := newMemPresenceRepo()
	tracker := NewTracker(repo, nil)

	if err := tracker.SetOnline(ctx, "pso-1"); err != nil {
		t.Fatalf("set online: %v", err)
	}
	if err := tracker.SetOnline(ctx, "pso-1"); err != nil {
		t.Fatalf("second set online: %v", err)
	}

	open, closed := repo.countIntervals("pso-1")
	if open != 1 || closed != 0 {
		t.Errorf("intervals = %d open, %d closed; want 1, 0", open, closed)
	}
	p, _ := tracker.Get(ctx, "pso-1")
	if p == nil || p.Status != domain.StatusOnline {
		t.Errorf("presence = %+v", p)
	}
}

func TestSetOfflineIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := newMemPresenceRepo()
	tracker := NewTracker(repo, nil)

	if err := tracker.SetOnline(ctx, "pso-1"); err != nil {
		t.Fatalf("set online: %v", err)
	}
	if err := tracker.SetOffline(ctx, "pso-1"); err != nil {
		t.Fatalf("set offline: %v", err)
	}
	if err := tracker.SetOffline(ctx, "pso-1"); err != nil {
		t.Fatalf("repeated set offline must not error: %v", err)
	}

	open, closed := repo.countIntervals("pso-1")
	if open != 0 || closed != 1 {
		t.Errorf("intervals = %d open, %d closed; want 0, 1", open, closed)
	}
	p, _ := tracker.Get(ctx, "pso-1")
	if p == nil || p.Status != domain.StatusOffline {
		t.Errorf("presence = %+v", p)
	}
}

func TestSetOfflineWithoutPriorOnline(t *testing.T) {
	ctx := context.Background()
	repo := newMemPresenceRepo()
	tracker := NewTracker(repo, nil)

	if err := tracker.SetOffline(ctx, "pso-1"); err != nil {
		t.Fatalf("offline with no open interval must be a no-op: %v", err)
	}
	open, closed := repo.countIntervals("pso-1")
	if open != 0 || closed != 0 {
		t.Errorf("intervals = %d open, %d closed; want none", open, closed)
	}
}

func TestReconnectCycleLeavesClosedIntervals(t *testing.T) {
	ctx := context.Background()
	repo := newMemPresenceRepo()
	tracker := NewTracker(repo, nil)

	for i := 0; i < 3; i++ {
		if err := tracker.SetOnline(ctx, "pso-1"); err != nil {
			t.Fatalf("set online: %v", err)
		}
		if err := tracker.SetOffline(ctx, "pso-1"); err != nil {
			t.Fatalf("set offline: %v", err)
		}
	}
	open, closed := repo.countIntervals("pso-1")
	if open != 0 || closed != 3 {
		t.Errorf("intervals = %d open, %d closed; want 0, 3", open, closed)
	}
}

func TestGetNeverSeen(t *testing.T) {
	tracker := NewTracker(newMemPresenceRepo(), nil)
	p, err := tracker.Get(context.Background(), "ghost")
	if err != nil || p != nil {
		t.Errorf("got %+v, %v; want nil, nil", p, err)
	}
}
