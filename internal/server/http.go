// Package server assembles the HTTP API: middleware chain, health and
// metrics endpoints, and the per-feature route groups.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	commandhandler "pso-control-plane/backend/internal/command/handler"
	cmhandler "pso-control-plane/backend/internal/contactmanager/handler"
	presencehandler "pso-control-plane/backend/internal/presence/handler"
	recordinghandler "pso-control-plane/backend/internal/recording/handler"
	"pso-control-plane/backend/internal/security"
	"pso-control-plane/backend/internal/server/middleware"
	talkhandler "pso-control-plane/backend/internal/talksession/handler"
)

// Handlers carries the per-feature route groups mounted under /api/v1.
type Handlers struct {
	Commands        *commandhandler.Handler
	TalkSessions    *talkhandler.Handler
	Recordings      *recordinghandler.Handler
	Presence        *presencehandler.Handler
	ContactManagers *cmhandler.Handler
}

// NewRouter builds the API router. verifier may be nil in development; the
// auth middleware then trusts the X-Caller-ID header.
func NewRouter(verifier *security.Verifier, h Handlers) *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(middleware.Auth(verifier))
		if h.Commands != nil {
			h.Commands.Routes(api)
		}
		if h.TalkSessions != nil {
			h.TalkSessions.Routes(api)
		}
		if h.Recordings != nil {
			h.Recordings.Routes(api)
		}
		if h.Presence != nil {
			h.Presence.Routes(api)
		}
		if h.ContactManagers != nil {
			h.ContactManagers.Routes(api)
		}
	})

	return r
}
