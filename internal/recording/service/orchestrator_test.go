package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"pso-control-plane/backend/internal/egress"
	"pso-control-plane/backend/internal/errs"
	"pso-control-plane/backend/internal/recording/domain"
	userdomain "pso-control-plane/backend/internal/user/domain"
)

type memRecordingRepo struct {
	mu       sync.Mutex
	sessions map[string]*domain.RecordingSession
}

func newMemRecordingRepo() *memRecordingRepo {
	return &memRecordingRepo{sessions: map[string]*domain.RecordingSession{}}
}

func (r *memRecordingRepo) CreateActive(ctx context.Context, s *domain.RecordingSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.sessions[s.ID] = &cp
	return nil
}

func (r *memRecordingRepo) findActive(match func(*domain.RecordingSession) bool, since time.Time) []*domain.RecordingSession {
	var out []*domain.RecordingSession
	for _, s := range r.sessions {
		if s.Status == domain.StatusActive && match(s) && !s.StartedAt.Before(since) {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out
}

func (r *memRecordingRepo) FindActiveBySubject(ctx context.Context, subjectID string, since time.Time) ([]*domain.RecordingSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.findActive(func(s *domain.RecordingSession) bool { return s.SubjectID == subjectID }, since), nil
}

func (r *memRecordingRepo) FindActiveByRoom(ctx context.Context, roomName string, since time.Time) ([]*domain.RecordingSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.findActive(func(s *domain.RecordingSession) bool { return s.RoomName == roomName }, since), nil
}

func (r *memRecordingRepo) Complete(ctx context.Context, id string, at time.Time, blobPath, blobURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return errors.New("no such session")
	}
	s.Status = domain.StatusCompleted
	s.StoppedAt = &at
	s.BlobPath = blobPath
	s.BlobURL = blobURL
	return nil
}

func (r *memRecordingRepo) MarkFailed(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return errors.New("no such session")
	}
	s.Status = domain.StatusFailed
	s.StoppedAt = &at
	return nil
}

func (r *memRecordingRepo) List(ctx context.Context, limit, offset int) ([]*domain.RecordingSession, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.RecordingSession
	for _, s := range r.sessions {
		cp := *s
		out = append(out, &cp)
	}
	return out, len(out), nil
}

type memUserRepo struct {
	users map[string]*userdomain.User
	err   error
}

func (r *memUserRepo) GetByID(ctx context.Context, id string) (*userdomain.User, error) {
	return r.users[id], nil
}

func (r *memUserRepo) GetByEmail(ctx context.Context, email string) (*userdomain.User, error) {
	return nil, nil
}

func (r *memUserRepo) GetByIDs(ctx context.Context, ids []string) (map[string]*userdomain.User, error) {
	if r.err != nil {
		return nil, r.err
	}
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

type fakeEgress struct {
	mu       sync.Mutex
	starts   []string
	stops    []string
	startErr error
	stopErr  map[string]error // keyed by egress id
	nextID   int
}

func (f *fakeEgress) StartRecording(ctx context.Context, roomName string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return "", f.startErr
	}
	f.starts = append(f.starts, roomName)
	f.nextID++
	return "eg-" + roomName, nil
}

func (f *fakeEgress) StopRecording(ctx context.Context, egressID string) (egress.StopResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops = append(f.stops, egressID)
	if err := f.stopErr[egressID]; err != nil {
		return egress.StopResult{}, err
	}
	return egress.StopResult{Path: "final/" + egressID + ".mp4", URL: "https://blobs/" + egressID}, nil
}

type fakeSigner struct{}

func (fakeSigner) Sign(path string, ttl time.Duration) (string, error) {
	return "https://blobs/" + path + "?sig=abc", nil
}

func (fakeSigner) URL(path string) string { return "https://blobs/" + path }

func newTestOrchestrator(repo *memRecordingRepo, eg *fakeEgress, users *memUserRepo) *Orchestrator {
	if users == nil {
		users = &memUserRepo{users: map[string]*userdomain.User{}}
	}
	return NewOrchestrator(repo, users, eg, fakeSigner{}, nil, nil, time.Hour, 15*time.Minute)
}

func startCmd(room, subject string) domain.RecordingCommand {
	return domain.RecordingCommand{
		Type: domain.CommandStart, RoomName: room,
		InitiatorID: "sup-1", SubjectID: subject, SubjectLabel: "Pat Okoro",
	}
}

func TestStartRecording(t *testing.T) {
	repo := newMemRecordingRepo()
	eg := &fakeEgress{}
	o := newTestOrchestrator(repo, eg, nil)

	session, err := o.StartRecording(context.Background(), startCmd("room-1", "pso-1"))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if session.EgressID != "eg-room-1" || session.Status != domain.StatusActive {
		t.Errorf("session = %+v", session)
	}
	if !strings.HasPrefix(session.BlobPath, "recordings/pat-okoro/") || !strings.HasSuffix(session.BlobPath, ".mp4") {
		t.Errorf("blobPath = %q", session.BlobPath)
	}
	if !strings.Contains(session.BlobPath, "room-1-") {
		t.Errorf("blobPath should embed the room name: %q", session.BlobPath)
	}
	if _, ok := repo.sessions[session.ID]; !ok {
		t.Error("session not persisted")
	}
}

func TestStartRecordingWrongTypeNeverCallsEgress(t *testing.T) {
	eg := &fakeEgress{}
	o := newTestOrchestrator(newMemRecordingRepo(), eg, nil)

	cmd := startCmd("room-1", "pso-1")
	cmd.Type = domain.CommandStop
	_, err := o.StartRecording(context.Background(), cmd)

	var startErr *RecordingStartError
	if !errors.As(err, &startErr) {
		t.Fatalf("err = %T, want *RecordingStartError", err)
	}
	if errs.KindOf(err) != errs.KindValidation {
		t.Errorf("kind = %v, want KindValidation", errs.KindOf(err))
	}
	if len(eg.starts) != 0 {
		t.Errorf("egress was called: %v", eg.starts)
	}
}

func TestStartRecordingEgressFailure(t *testing.T) {
	eg := &fakeEgress{startErr: errors.New("egress unavailable")}
	repo := newMemRecordingRepo()
	o := newTestOrchestrator(repo, eg, nil)

	_, err := o.StartRecording(context.Background(), startCmd("room-1", "pso-1"))
	var startErr *RecordingStartError
	if !errors.As(err, &startErr) {
		t.Fatalf("err = %T, want *RecordingStartError", err)
	}
	if errs.KindOf(err) != errs.KindExternal {
		t.Errorf("kind = %v, want KindExternal", errs.KindOf(err))
	}
	if !strings.Contains(err.Error(), "egress unavailable") {
		t.Errorf("cause lost: %v", err)
	}
	if len(repo.sessions) != 0 {
		t.Error("no session should be persisted after egress failure")
	}
}

func TestStopRecordingWrongType(t *testing.T) {
	o := newTestOrchestrator(newMemRecordingRepo(), &fakeEgress{}, nil)
	cmd := startCmd("room-1", "pso-1")
	_, err := o.StopRecording(context.Background(), cmd)
	var stopErr *RecordingStopError
	if !errors.As(err, &stopErr) {
		t.Fatalf("err = %T, want *RecordingStopError", err)
	}
}

func TestStopRecordingNoMatches(t *testing.T) {
	o := newTestOrchestrator(newMemRecordingRepo(), &fakeEgress{}, nil)
	cmd := domain.RecordingCommand{Type: domain.CommandStop, SubjectID: "pso-1"}
	_, err := o.StopRecording(context.Background(), cmd)
	if !errors.Is(err, ErrNoActiveRecordings) {
		t.Errorf("err = %v, want ErrNoActiveRecordings", err)
	}
}

func TestStopRecordingBatchIsolatesFailures(t *testing.T) {
	ctx := context.Background()
	repo := newMemRecordingRepo()
	eg := &fakeEgress{stopErr: map[string]error{}}
	o := newTestOrchestrator(repo, eg, nil)

	s1, _ := o.StartRecording(ctx, startCmd("room-1", "pso-1"))
	s2, _ := o.StartRecording(ctx, startCmd("room-2", "pso-1"))
	eg.stopErr[s2.EgressID] = errors.New("egress timeout")

	summary, err := o.StopRecording(ctx, domain.RecordingCommand{Type: domain.CommandStop, SubjectID: "pso-1"})
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if summary.Total != 2 || summary.Completed != 1 {
		t.Errorf("summary = %+v", summary)
	}
	if len(summary.Results) != 2 {
		t.Fatalf("results = %d, want 2", len(summary.Results))
	}

	byID := map[string]StopItem{}
	for _, item := range summary.Results {
		byID[item.SessionID] = item
	}
	ok := byID[s1.ID]
	if ok.Status != domain.StatusCompleted || ok.PlaybackURL == "" || !strings.Contains(ok.PlaybackURL, "sig=") {
		t.Errorf("completed item = %+v", ok)
	}
	failed := byID[s2.ID]
	if failed.Status != domain.StatusFailed || !strings.Contains(failed.Error, "egress timeout") {
		t.Errorf("failed item = %+v", failed)
	}

	if repo.sessions[s1.ID].Status != domain.StatusCompleted {
		t.Errorf("s1 status = %s", repo.sessions[s1.ID].Status)
	}
	if repo.sessions[s2.ID].Status != domain.StatusFailed {
		t.Errorf("s2 status = %s", repo.sessions[s2.ID].Status)
	}
}

func TestStopRecordingPrefersSubjectOverRoom(t *testing.T) {
	ctx := context.Background()
	repo := newMemRecordingRepo()
	eg := &fakeEgress{}
	o := newTestOrchestrator(repo, eg, nil)

	target, _ := o.StartRecording(ctx, startCmd("room-1", "pso-1"))
	other, _ := o.StartRecording(ctx, startCmd("room-1", "pso-2"))

	summary, err := o.StopRecording(ctx, domain.RecordingCommand{
		Type: domain.CommandStop, SubjectID: "pso-1", RoomName: "room-1",
	})
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if summary.Total != 1 || summary.Results[0].SessionID != target.ID {
		t.Errorf("summary = %+v", summary)
	}
	if repo.sessions[other.ID].Status != domain.StatusActive {
		t.Error("other subject's recording should stay active")
	}
}

func TestStopRecordingLookbackWindow(t *testing.T) {
	ctx := context.Background()
	repo := newMemRecordingRepo()
	o := newTestOrchestrator(repo, &fakeEgress{}, nil)

	old := &domain.RecordingSession{
		ID: "rec-old", RoomName: "room-1", EgressID: "eg-old", SubjectID: "pso-1",
		Status: domain.StatusActive, StartedAt: time.Now().Add(-2 * time.Hour), BlobPath: "recordings/x.mp4",
	}
	repo.CreateActive(ctx, old)

	_, err := o.StopRecording(ctx, domain.RecordingCommand{Type: domain.CommandStop, SubjectID: "pso-1"})
	if !errors.Is(err, ErrNoActiveRecordings) {
		t.Errorf("err = %v; sessions outside the lookback must not match", err)
	}
}

func TestListRecordingsHydratesNamesBestEffort(t *testing.T) {
	ctx := context.Background()
	repo := newMemRecordingRepo()
	users := &memUserRepo{users: map[string]*userdomain.User{
		"sup-1": {ID: "sup-1", FirstName: "Sam", LastName: "Ward"},
	}}
	o := newTestOrchestrator(repo, &fakeEgress{}, users)

	if _, err := o.StartRecording(ctx, startCmd("room-1", "pso-ghost")); err != nil {
		t.Fatalf("start: %v", err)
	}

	views, total, err := o.ListRecordings(ctx, 10, 0, true)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 || len(views) != 1 {
		t.Fatalf("total = %d, views = %d", total, len(views))
	}
	v := views[0]
	if v.InitiatorName != "Sam Ward" {
		t.Errorf("initiator name = %q", v.InitiatorName)
	}
	if v.SubjectName != "" {
		t.Errorf("missing subject should leave the name blank, got %q", v.SubjectName)
	}
	if !strings.Contains(v.PlaybackURL, "sig=") {
		t.Errorf("signed url expected, got %q", v.PlaybackURL)
	}

	plain, _, err := o.ListRecordings(ctx, 10, 0, false)
	if err != nil {
		t.Fatalf("list plain: %v", err)
	}
	if strings.Contains(plain[0].PlaybackURL, "sig=") {
		t.Errorf("plain url expected, got %q", plain[0].PlaybackURL)
	}
}

func TestListRecordingsLookupFailureLeavesNamesBlank(t *testing.T) {
	ctx := context.Background()
	repo := newMemRecordingRepo()
	users := &memUserRepo{users: map[string]*userdomain.User{}, err: errors.New("db down")}
	o := newTestOrchestrator(repo, &fakeEgress{}, users)

	if _, err := o.StartRecording(ctx, startCmd("room-1", "pso-1")); err != nil {
		t.Fatalf("start: %v", err)
	}
	views, _, err := o.ListRecordings(ctx, 10, 0, false)
	if err != nil {
		t.Fatalf("list must not fail on hydration error: %v", err)
	}
	if views[0].InitiatorName != "" || views[0].SubjectName != "" {
		t.Errorf("names should be blank: %+v", views[0])
	}
}
