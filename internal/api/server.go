// Package api exposes the approval workflow over JSON/HTTP.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/tOgg1/leasedesk/internal/auth"
	"github.com/tOgg1/leasedesk/internal/db"
	"github.com/tOgg1/leasedesk/internal/logging"
	"github.com/tOgg1/leasedesk/internal/signer"
	"github.com/tOgg1/leasedesk/internal/workflow"
)

// Server holds the HTTP handlers' dependencies.
type Server struct {
	store   *db.Store
	engine  *workflow.Engine
	signers *signer.Registry
	issuer  *auth.Issuer
	logger  zerolog.Logger
}

// NewServer creates a Server.
func NewServer(store *db.Store, engine *workflow.Engine, signers *signer.Registry, issuer *auth.Issuer) *Server {
	return &Server{
		store:   store,
		engine:  engine,
		signers: signers,
		issuer:  issuer,
		logger:  logging.Component("api"),
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestID)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(api chi.Router) {
		api.Post("/auth/login", s.handleLogin)

		api.Group(func(authed chi.Router) {
			authed.Use(s.authenticate)

			authed.Get("/me", s.handleMe)
			authed.Post("/me/password", s.handleChangePassword)

			authed.Post("/rental-requests", s.handleSubmitRequest)
			authed.Get("/rental-requests", s.handleListRequests)
			authed.Get("/rental-requests/{id}", s.handleGetRequest)
			authed.Get("/rental-requests/{id}/history", s.handleRequestHistory)

			authed.Get("/approvals/pending", s.handlePendingApprovals)
			authed.Post("/approvals/{id}/approve", s.handleApprove)
			authed.Post("/approvals/{id}/decline", s.handleDecline)

			authed.Get("/contracts", s.handleListContracts)
			authed.With(adminOnly).Patch("/contracts/{id}", s.handleUpdateContract)

			authed.Get("/notifications", s.handleListNotifications)
			authed.Post("/notifications/{id}/read", s.handleMarkRead)

			authed.Get("/signers", s.handleListSigners)
			authed.Get("/regions/{id}/chain", s.handleResolveChain)
			authed.Group(func(admin chi.Router) {
				admin.Use(adminOnly)
				admin.Post("/signers", s.handleCreateSigner)
				admin.Patch("/signers/{id}", s.handleUpdateSigner)
				admin.Delete("/signers/{id}", s.handleDeleteSigner)
			})
		})
	})

	return r
}
