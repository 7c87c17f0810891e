package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// HealthCheck reports whether a dependency is usable
type HealthCheck func(ctx context.Context) error

// NewRouter builds the HTTP routes. health may be nil.
func NewRouter(investments *InvestmentHandler, callbacks *CallbackHandler, health HealthCheck) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(limitBody)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if health != nil {
			if err := health(r.Context()); err != nil {
				writeError(w, r, http.StatusServiceUnavailable, "unhealthy", err.Error())
				return
			}
		}
		writeSuccess(w, http.StatusOK, "ok", nil)
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/mpesa/callback", callbacks.handleCallback)
		r.Get("/plans", investments.plans)

		r.Route("/investments", func(r chi.Router) {
			r.Use(requireOwner)
			r.Post("/", investments.create)
			r.Get("/", investments.list)
			r.Get("/stats", investments.stats)
			r.Get("/payment-status/{checkoutRequestId}", investments.paymentStatus)
			r.Get("/{id}", investments.get)
			r.Post("/{id}/retry", investments.retry)
		})
	})

	return r
}
