// Package handler exposes the command dispatcher over HTTP.
package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"pso-control-plane/backend/internal/command/domain"
	"pso-control-plane/backend/internal/command/service"
	"pso-control-plane/backend/internal/errs"
	"pso-control-plane/backend/internal/platform/rbac"
	"pso-control-plane/backend/internal/server/httpx"
	"pso-control-plane/backend/internal/server/middleware"
	userdomain "pso-control-plane/backend/internal/user/domain"
	userrepo "pso-control-plane/backend/internal/user/repository"
)

// Handler serves the command endpoints.
type Handler struct {
	dispatcher *service.Dispatcher
	users      userrepo.Repository
}

func NewHandler(dispatcher *service.Dispatcher, users userrepo.Repository) *Handler {
	return &Handler{dispatcher: dispatcher, users: users}
}

// Routes mounts the command endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/commands", h.create)
	r.Get("/commands/pending", h.fetchPending)
	r.Post("/commands/ack", h.acknowledge)
}

type createCommandRequest struct {
	SubjectID   string `json:"subjectId" validate:"required"`
	CommandType string `json:"commandType" validate:"required"`
	Reason      string `json:"reason"`
}

type commandResponse struct {
	ID             string     `json:"id"`
	SubjectID      string     `json:"subjectId"`
	CommandType    string     `json:"commandType"`
	IssuedAt       time.Time  `json:"issuedAt"`
	Reason         string     `json:"reason,omitempty"`
	Acknowledged   bool       `json:"acknowledged"`
	AcknowledgedAt *time.Time `json:"acknowledgedAt,omitempty"`
	Published      bool       `json:"published"`
	PublishedAt    *time.Time `json:"publishedAt,omitempty"`
}

func toCommandResponse(c *domain.PendingCommand) commandResponse {
	return commandResponse{
		ID:             c.ID,
		SubjectID:      c.SubjectID,
		CommandType:    string(c.Type),
		IssuedAt:       c.IssuedAt,
		Reason:         c.Reason,
		Acknowledged:   c.Acknowledged,
		AcknowledgedAt: c.AcknowledgedAt,
		Published:      c.Published,
		PublishedAt:    c.PublishedAt,
	}
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	caller, err := rbac.RequireRole(r.Context(), h.users, userdomain.RoleSupervisor, userdomain.RoleAdmin)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	var req createCommandRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, err)
		return
	}
	cmd, err := h.dispatcher.CreatePendingCommand(r.Context(), req.SubjectID,
		domain.CommandType(req.CommandType), time.Time{}, req.Reason, caller.ID)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toCommandResponse(cmd))
}

type pendingResponse struct {
	HasPending bool              `json:"hasPending"`
	Commands   []commandResponse `json:"commands"`
}

func (h *Handler) fetchPending(w http.ResponseWriter, r *http.Request) {
	callerID, ok := middleware.GetCallerID(r.Context())
	if !ok {
		httpx.Error(w, errs.E(errs.KindUnauthenticated, "caller identity required"))
		return
	}
	pending, err := h.dispatcher.FetchPendingCommands(r.Context(), callerID)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	resp := pendingResponse{HasPending: len(pending) > 0, Commands: []commandResponse{}}
	for _, c := range pending {
		resp.Commands = append(resp.Commands, toCommandResponse(c))
	}
	httpx.JSON(w, http.StatusOK, resp)
}

type acknowledgeRequest struct {
	CommandIDs []string `json:"commandIds" validate:"required,min=1"`
}

type acknowledgeResponse struct {
	Acknowledged int64 `json:"acknowledged"`
}

func (h *Handler) acknowledge(w http.ResponseWriter, r *http.Request) {
	callerID, ok := middleware.GetCallerID(r.Context())
	if !ok {
		httpx.Error(w, errs.E(errs.KindUnauthenticated, "caller identity required"))
		return
	}
	var req acknowledgeRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, err)
		return
	}
	count, err := h.dispatcher.AcknowledgeCommands(r.Context(), req.CommandIDs, callerID)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, acknowledgeResponse{Acknowledged: count})
}
