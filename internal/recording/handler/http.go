// Package handler exposes the recording orchestrator over HTTP.
package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"pso-control-plane/backend/internal/platform/rbac"
	"pso-control-plane/backend/internal/recording/domain"
	"pso-control-plane/backend/internal/recording/service"
	"pso-control-plane/backend/internal/server/httpx"
	userdomain "pso-control-plane/backend/internal/user/domain"
	userrepo "pso-control-plane/backend/internal/user/repository"
)

type Handler struct {
	recordings *service.Orchestrator
	users      userrepo.Repository
}

func NewHandler(recordings *service.Orchestrator, users userrepo.Repository) *Handler {
	return &Handler{recordings: recordings, users: users}
}

// Routes mounts the recording endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/recordings/start", h.start)
	r.Post("/recordings/stop", h.stop)
	r.Get("/recordings", h.list)
}

type startRequest struct {
	RoomName     string `json:"roomName" validate:"required"`
	SubjectID    string `json:"subjectId"`
	SubjectLabel string `json:"subjectLabel"`
}

type recordingResponse struct {
	ID        string    `json:"id"`
	RoomName  string    `json:"roomName"`
	SubjectID string    `json:"subjectId,omitempty"`
	Status    string    `json:"status"`
	StartedAt time.Time `json:"startedAt"`
	BlobPath  string    `json:"blobPath"`
}

func (h *Handler) start(w http.ResponseWriter, r *http.Request) {
	caller, err := rbac.RequireRole(r.Context(), h.users, userdomain.RoleSupervisor, userdomain.RoleAdmin)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	var req startRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, err)
		return
	}
	session, err := h.recordings.StartRecording(r.Context(), domain.RecordingCommand{
		Type:         domain.CommandStart,
		RoomName:     req.RoomName,
		InitiatorID:  caller.ID,
		SubjectID:    req.SubjectID,
		SubjectLabel: req.SubjectLabel,
	})
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, recordingResponse{
		ID:        session.ID,
		RoomName:  session.RoomName,
		SubjectID: session.SubjectID,
		Status:    string(session.Status),
		StartedAt: session.StartedAt,
		BlobPath:  session.BlobPath,
	})
}

type stopRequest struct {
	SubjectID string `json:"subjectId"`
	RoomName  string `json:"roomName"`
}

type stopItemResponse struct {
	SessionID   string `json:"sessionId"`
	RoomName    string `json:"roomName"`
	Status      string `json:"status"`
	BlobPath    string `json:"blobPath,omitempty"`
	PlaybackURL string `json:"playbackUrl,omitempty"`
	Error       string `json:"error,omitempty"`
}

type stopResponse struct {
	Message   string             `json:"message"`
	Total     int                `json:"total"`
	Completed int                `json:"completed"`
	Results   []stopItemResponse `json:"results"`
}

func (h *Handler) stop(w http.ResponseWriter, r *http.Request) {
	caller, err := rbac.RequireRole(r.Context(), h.users, userdomain.RoleSupervisor, userdomain.RoleAdmin)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	var req stopRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, err)
		return
	}
	summary, err := h.recordings.StopRecording(r.Context(), domain.RecordingCommand{
		Type:        domain.CommandStop,
		RoomName:    req.RoomName,
		InitiatorID: caller.ID,
		SubjectID:   req.SubjectID,
	})
	if err != nil {
		httpx.Error(w, err)
		return
	}
	resp := stopResponse{
		Message:   summary.Message,
		Total:     summary.Total,
		Completed: summary.Completed,
		Results:   []stopItemResponse{},
	}
	for _, item := range summary.Results {
		resp.Results = append(resp.Results, stopItemResponse{
			SessionID:   item.SessionID,
			RoomName:    item.RoomName,
			Status:      string(item.Status),
			BlobPath:    item.BlobPath,
			PlaybackURL: item.PlaybackURL,
			Error:       item.Error,
		})
	}
	httpx.JSON(w, http.StatusOK, resp)
}

type listItemResponse struct {
	ID            string     `json:"id"`
	RoomName      string     `json:"roomName"`
	InitiatorID   string     `json:"initiatorId"`
	InitiatorName string     `json:"initiatorName,omitempty"`
	SubjectID     string     `json:"subjectId,omitempty"`
	SubjectName   string     `json:"subjectName,omitempty"`
	SubjectLabel  string     `json:"subjectLabel,omitempty"`
	Status        string     `json:"status"`
	StartedAt     time.Time  `json:"startedAt"`
	StoppedAt     *time.Time `json:"stoppedAt,omitempty"`
	PlaybackURL   string     `json:"playbackUrl,omitempty"`
}

type listResponse struct {
	Recordings []listItemResponse `json:"recordings"`
	Total      int                `json:"total"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	if _, err := rbac.RequireRole(r.Context(), h.users, userdomain.RoleSupervisor, userdomain.RoleAdmin); err != nil {
		httpx.Error(w, err)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	signed := r.URL.Query().Get("signed") != "false"

	views, total, err := h.recordings.ListRecordings(r.Context(), limit, offset, signed)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	resp := listResponse{Recordings: []listItemResponse{}, Total: total}
	for _, v := range views {
		resp.Recordings = append(resp.Recordings, listItemResponse{
			ID:            v.ID,
			RoomName:      v.RoomName,
			InitiatorID:   v.InitiatorID,
			InitiatorName: v.InitiatorName,
			SubjectID:     v.SubjectID,
			SubjectName:   v.SubjectName,
			SubjectLabel:  v.SubjectLabel,
			Status:        string(v.Status),
			StartedAt:     v.StartedAt,
			StoppedAt:     v.StoppedAt,
			PlaybackURL:   v.PlaybackURL,
		})
	}
	httpx.JSON(w, http.StatusOK, resp)
}
