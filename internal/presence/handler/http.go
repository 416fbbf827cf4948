// Package handler exposes presence over HTTP. The connection-lifecycle
// worker drives most transitions; these endpoints cover explicit updates and
// reads.
package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"pso-control-plane/backend/internal/errs"
	"pso-control-plane/backend/internal/platform/rbac"
	"pso-control-plane/backend/internal/presence/domain"
	"pso-control-plane/backend/internal/presence/service"
	"pso-control-plane/backend/internal/server/httpx"
	userrepo "pso-control-plane/backend/internal/user/repository"
)

type Handler struct {
	tracker *service.Tracker
	users   userrepo.Repository
}

func NewHandler(tracker *service.Tracker, users userrepo.Repository) *Handler {
	return &Handler{tracker: tracker, users: users}
}

// Routes mounts the presence endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/presence", h.update)
	r.Get("/presence/{userID}", h.get)
	r.Get("/presence/{userID}/history", h.history)
}

type updateRequest struct {
	Status string `json:"status" validate:"required,oneof=online offline"`
}

// update sets the caller's own presence.
func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	caller, err := rbac.RequireCaller(r.Context(), h.users)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	var req updateRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, err)
		return
	}
	switch domain.Status(req.Status) {
	case domain.StatusOnline:
		err = h.tracker.SetOnline(r.Context(), caller.ID)
	case domain.StatusOffline:
		err = h.tracker.SetOffline(r.Context(), caller.ID)
	}
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusNoContent, nil)
}

type presenceResponse struct {
	UserID     string    `json:"userId"`
	Status     string    `json:"status"`
	LastSeenAt time.Time `json:"lastSeenAt"`
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	if _, err := rbac.RequireCaller(r.Context(), h.users); err != nil {
		httpx.Error(w, err)
		return
	}
	p, err := h.tracker.Get(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	if p == nil {
		httpx.Error(w, errs.E(errs.KindNotFound, "no presence recorded for user"))
		return
	}
	httpx.JSON(w, http.StatusOK, presenceResponse{
		UserID:     p.UserID,
		Status:     string(p.Status),
		LastSeenAt: p.LastSeenAt,
	})
}

type historyItem struct {
	ID        string     `json:"id"`
	StartedAt time.Time  `json:"startedAt"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`
}

type historyResponse struct {
	UserID    string        `json:"userId"`
	Intervals []historyItem `json:"intervals"`
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	if _, err := rbac.RequireCaller(r.Context(), h.users); err != nil {
		httpx.Error(w, err)
		return
	}
	userID := chi.URLParam(r, "userID")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	intervals, err := h.tracker.History(r.Context(), userID, limit)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	resp := historyResponse{UserID: userID, Intervals: []historyItem{}}
	for _, iv := range intervals {
		resp.Intervals = append(resp.Intervals, historyItem{ID: iv.ID, StartedAt: iv.StartedAt, EndedAt: iv.EndedAt})
	}
	httpx.JSON(w, http.StatusOK, resp)
}
