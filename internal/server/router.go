package server

import (
	"crypto/rsa"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter returns a configured chi.Router for the watchdogd status API.
//
// Route layout:
//
//	GET  /healthz            – liveness probe (no authentication required)
//	GET  /api/v1/watches     – active watches (JWT when configured)
//	GET  /api/v1/changes     – recent change journal (JWT when configured)
//	POST /api/v1/touch       – force-trigger watches on a path (JWT when configured)
//
// pubKey is the RSA public key used to verify RS256 Bearer tokens on all
// /api routes. Pass nil to disable authentication.
func NewRouter(srv *Server, pubKey *rsa.PublicKey) http.Handler {
	r := chi.NewRouter()

	// Built-in chi middleware for observability and hygiene.
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Health check – no authentication.
	r.Get("/healthz", srv.handleHealthz)

	r.Route("/api/v1", func(r chi.Router) {
		if pubKey != nil {
			r.Use(JWTMiddleware(JWTConfig{PublicKey: pubKey, Logger: srv.logger}))
		}

		r.Get("/watches", srv.handleGetWatches)
		r.Get("/changes", srv.handleGetChanges)
		r.Post("/touch", srv.handleTouch)
	})

	return r
}
