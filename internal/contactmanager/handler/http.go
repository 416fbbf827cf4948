// Package handler exposes contact-manager availability over HTTP.
package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"pso-control-plane/backend/internal/contactmanager/domain"
	"pso-control-plane/backend/internal/contactmanager/service"
	"pso-control-plane/backend/internal/errs"
	"pso-control-plane/backend/internal/platform/rbac"
	"pso-control-plane/backend/internal/server/httpx"
	userdomain "pso-control-plane/backend/internal/user/domain"
	userrepo "pso-control-plane/backend/internal/user/repository"
)

type Handler struct {
	availability *service.Availability
	users        userrepo.Repository
}

func NewHandler(availability *service.Availability, users userrepo.Repository) *Handler {
	return &Handler{availability: availability, users: users}
}

// Routes mounts the availability endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Put("/contact-managers/status", h.setOwnStatus)
	r.Get("/contact-managers", h.list)
	r.Get("/contact-managers/{userID}", h.get)
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

type profileResponse struct {
	ManagerID string    `json:"managerId"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func toProfileResponse(p *domain.Profile) profileResponse {
	return profileResponse{ManagerID: p.UserID, Status: string(p.Status), UpdatedAt: p.UpdatedAt}
}

// setOwnStatus lets a contact manager update their own availability.
func (h *Handler) setOwnStatus(w http.ResponseWriter, r *http.Request) {
	caller, err := rbac.RequireRole(r.Context(), h.users, userdomain.RoleContactManager)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	var req statusRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, err)
		return
	}
	profile, err := h.availability.SetStatus(r.Context(), caller.ID, domain.Status(req.Status))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toProfileResponse(profile))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	if _, err := rbac.RequireCaller(r.Context(), h.users); err != nil {
		httpx.Error(w, err)
		return
	}
	profile, err := h.availability.Get(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	if profile == nil {
		httpx.Error(w, errs.E(errs.KindNotFound, "user is not a Contact Manager"))
		return
	}
	httpx.JSON(w, http.StatusOK, toProfileResponse(profile))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	if _, err := rbac.RequireCaller(r.Context(), h.users); err != nil {
		httpx.Error(w, err)
		return
	}
	profiles, err := h.availability.List(r.Context())
	if err != nil {
		httpx.Error(w, err)
		return
	}
	out := []profileResponse{}
	for _, p := range profiles {
		out = append(out, toProfileResponse(p))
	}
	httpx.JSON(w, http.StatusOK, out)
}
