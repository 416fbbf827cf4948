package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"pso-control-plane/backend/internal/command/domain"
	"pso-control-plane/backend/internal/command/service"
	"pso-control-plane/backend/internal/server/middleware"
	userdomain "pso-control-plane/backend/internal/user/domain"
)

type memCommandRepo struct {
	mu       sync.Mutex
	commands map[string]*domain.PendingCommand
}

func newMemCommandRepo() *memCommandRepo {
	return &memCommandRepo{commands: map[string]*domain.PendingCommand{}}
}

func (r *memCommandRepo) Replace(ctx context.Context, cmd *domain.PendingCommand) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, c := range r.commands {
		if c.SubjectID == cmd.SubjectID && !c.Acknowledged {
			delete(r.commands, id)
		}
	}
	cp := *cmd
	r.commands[cmd.ID] = &cp
	return nil
}

func (r *memCommandRepo) ListPendingBySubject(ctx context.Context, subjectID string) ([]*domain.PendingCommand, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.PendingCommand
	for _, c := range r.commands {
		if c.SubjectID == subjectID && !c.Acknowledged {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memCommandRepo) ExistingIDs(ctx context.Context, ids []string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, id := range ids {
		if _, ok := r.commands[id]; ok {
			out = append(out, id)
		}
	}
	return out, nil
}

func (r *memCommandRepo) MarkAcknowledged(ctx context.Context, ids []string, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, id := range ids {
		if c, ok := r.commands[id]; ok {
			c.Acknowledged = true
			c.AcknowledgedAt = &at
			n++
		}
	}
	return n, nil
}

func (r *memCommandRepo) MarkPublished(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.commands[id]; ok {
		c.Published = true
		c.PublishedAt = &at
	}
	return nil
}

type memUserRepo struct {
	users map[string]*userdomain.User
}

func (r *memUserRepo) GetByID(ctx context.Context, id string) (*userdomain.User, error) {
	return r.users[id], nil
}

func (r *memUserRepo) GetByEmail(ctx context.Context, email string) (*userdomain.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (r *memUserRepo) GetByIDs(ctx context.Context, ids []string) (map[string]*userdomain.User, error) {
	out := map[string]*userdomain.User{}
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

func (r *memUserRepo) Create(ctx context.Context, u *userdomain.User) error {
	r.users[u.ID] = u
	return nil
}

func newTestRouter() (*chi.Mux, *memCommandRepo) {
	commands := newMemCommandRepo()
	users := &memUserRepo{users: map[string]*userdomain.User{
		"sup-1": {ID: "sup-1", Role: userdomain.RoleSupervisor, Active: true},
		"pso-1": {ID: "pso-1", Role: userdomain.RolePSO, Active: true},
	}}
	dispatcher := service.NewDispatcher(commands, users, nil, nil, nil, 2*time.Minute)
	h := NewHandler(dispatcher, users)
	r := chi.NewRouter()
	h.Routes(r)
	return r, commands
}

func doAs(t *testing.T, router http.Handler, callerID, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if callerID != "" {
		req = req.WithContext(middleware.WithCallerID(req.Context(), callerID))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateCommandHTTP(t *testing.T) {
	router, _ := newTestRouter()
	rec := doAs(t, router, "sup-1", http.MethodPost, "/commands",
		`{"subjectId":"pso-1","commandType":"start","reason":"shift"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		ID          string `json:"id"`
		SubjectID   string `json:"subjectId"`
		CommandType string `json:"commandType"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ID == "" || resp.SubjectID != "pso-1" || resp.CommandType != "start" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestCreateCommandForbiddenForPSO(t *testing.T) {
	router, _ := newTestRouter()
	rec := doAs(t, router, "pso-1", http.MethodPost, "/commands",
		`{"subjectId":"pso-1","commandType":"start"}`)
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestCreateCommandUnauthenticated(t *testing.T) {
	router, _ := newTestRouter()
	rec := doAs(t, router, "", http.MethodPost, "/commands",
		`{"subjectId":"pso-1","commandType":"start"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestFetchPendingHTTP(t *testing.T) {
	router, _ := newTestRouter()
	doAs(t, router, "sup-1", http.MethodPost, "/commands",
		`{"subjectId":"pso-1","commandType":"stop"}`)

	rec := doAs(t, router, "pso-1", http.MethodGet, "/commands/pending", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		HasPending bool `json:"hasPending"`
		Commands   []struct {
			CommandType string `json:"commandType"`
		} `json:"commands"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.HasPending || len(resp.Commands) != 1 || resp.Commands[0].CommandType != "stop" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestAcknowledgeMissingIDsHTTP(t *testing.T) {
	router, _ := newTestRouter()
	rec := doAs(t, router, "pso-1", http.MethodPost, "/commands/ack",
		`{"commandIds":["cmd-missing"]}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404; body %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "cmd-missing") {
		t.Errorf("error body should name the missing id: %s", rec.Body.String())
	}
}
