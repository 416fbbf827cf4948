// Package handler exposes talk session management over HTTP.
package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"pso-control-plane/backend/internal/platform/rbac"
	"pso-control-plane/backend/internal/server/httpx"
	"pso-control-plane/backend/internal/talksession/domain"
	"pso-control-plane/backend/internal/talksession/service"
	userdomain "pso-control-plane/backend/internal/user/domain"
	userrepo "pso-control-plane/backend/internal/user/repository"
)

type Handler struct {
	sessions *service.Service
	users    userrepo.Repository
}

func NewHandler(sessions *service.Service, users userrepo.Repository) *Handler {
	return &Handler{sessions: sessions, users: users}
}

// Routes mounts the talk session endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/talk-sessions", h.start)
	r.Post("/talk-sessions/{id}/stop", h.stop)
	r.Get("/talk-sessions/active", h.getActive)
	r.Get("/talk-sessions", h.list)
}

type startRequest struct {
	PSOEmail string `json:"psoEmail" validate:"required,email"`
}

type sessionResponse struct {
	ID           string     `json:"id"`
	SupervisorID string     `json:"supervisorId"`
	PSOID        string     `json:"psoId"`
	StartedAt    time.Time  `json:"startedAt"`
	StoppedAt    *time.Time `json:"stoppedAt,omitempty"`
	StopReason   string     `json:"stopReason,omitempty"`
}

func toSessionResponse(s *domain.TalkSession) sessionResponse {
	return sessionResponse{
		ID:           s.ID,
		SupervisorID: s.SupervisorID,
		PSOID:        s.PSOID,
		StartedAt:    s.StartedAt,
		StoppedAt:    s.StoppedAt,
		StopReason:   string(s.StopReason),
	}
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
	session, err := h.sessions.Start(r.Context(), caller.ID, req.PSOEmail)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toSessionResponse(session))
}

type stopRequest struct {
	StopReason string `json:"stopReason"`
}

func (h *Handler) stop(w http.ResponseWriter, r *http.Request) {
	if _, err := rbac.RequireCaller(r.Context(), h.users); err != nil {
		httpx.Error(w, err)
		return
	}
	var req stopRequest
	// body is optional; a bare stop defaults to user_stop
	if r.Body != nil && r.ContentLength > 0 {
		if err := httpx.Decode(r, &req); err != nil {
			httpx.Error(w, err)
			return
		}
	}
	reason := domain.StopUserStop
	if req.StopReason != "" {
		reason = domain.NormalizeStopReason(req.StopReason)
	}
	session, err := h.sessions.Stop(r.Context(), chi.URLParam(r, "id"), reason)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toSessionResponse(session))
}

type activeResponse struct {
	HasActiveSession bool   `json:"hasActiveSession"`
	SessionID        string `json:"sessionId,omitempty"`
	SupervisorEmail  string `json:"supervisorEmail,omitempty"`
	SupervisorName   string `json:"supervisorName,omitempty"`
}

func (h *Handler) getActive(w http.ResponseWriter, r *http.Request) {
	if _, err := rbac.RequireCaller(r.Context(), h.users); err != nil {
		httpx.Error(w, err)
		return
	}
	info, err := h.sessions.GetActiveTalkSession(r.Context(), r.URL.Query().Get("psoEmail"))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, activeResponse{
		HasActiveSession: info.HasActiveSession,
		SessionID:        info.SessionID,
		SupervisorEmail:  info.SupervisorEmail,
		SupervisorName:   info.SupervisorName,
	})
}

type sessionListItem struct {
	ID             string     `json:"id"`
	SupervisorID   string     `json:"supervisorId"`
	SupervisorName string     `json:"supervisorName,omitempty"`
	PSOID          string     `json:"psoId"`
	PSOName        string     `json:"psoName,omitempty"`
	StartedAt      time.Time  `json:"startedAt"`
	StoppedAt      *time.Time `json:"stoppedAt,omitempty"`
	StopReason     string     `json:"stopReason,omitempty"`
}

type sessionListResponse struct {
	Sessions []sessionListItem `json:"sessions"`
	Total    int               `json:"total"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	if _, err := rbac.RequireRole(r.Context(), h.users, userdomain.RoleSupervisor, userdomain.RoleAdmin); err != nil {
		httpx.Error(w, err)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	views, total, err := h.sessions.List(r.Context(), limit, offset)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	resp := sessionListResponse{Sessions: []sessionListItem{}, Total: total}
	for _, v := range views {
		resp.Sessions = append(resp.Sessions, sessionListItem{
			ID:             v.ID,
			SupervisorID:   v.SupervisorID,
			SupervisorName: v.SupervisorName,
			PSOID:          v.PSOID,
			PSOName:        v.PSOName,
			StartedAt:      v.StartedAt,
			StoppedAt:      v.StoppedAt,
			StopReason:     string(v.StopReason),
		})
	}
	httpx.JSON(w, http.StatusOK, resp)
}
