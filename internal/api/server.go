package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"coverpool/internal/observability"
)

// NewRouter creates the router with all routes configured. Write endpoints
// enqueue commands onto the NATS command stream and return 202; read
// endpoints serve projection state with as_of_sequence freshness.
func NewRouter(h *Handler, health *observability.HealthChecker) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Caller-ID"},
		AllowCredentials: false,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/pool", func(r chi.Router) {
			r.Get("/", h.GetPool)
			r.Get("/history", h.GetPoolHistory)
			r.Post("/fund", h.Fund)
		})

		r.Route("/policies", func(r chi.Router) {
			r.Get("/{id}", h.GetPolicy)
			r.Post("/purchase", h.Purchase)
			r.Post("/increase", h.Increase)
			r.Post("/cancel", h.Cancel)
			r.Post("/pause", h.Pause)
			r.Post("/deactivate", h.Deactivate)
		})

		r.Route("/claims", func(r chi.Router) {
			r.Post("/", h.Claim)
			r.Post("/partial", h.PartialClaim)
		})

		r.Route("/accounts", func(r chi.Router) {
			r.Get("/{id}", h.GetAccount)
			r.Get("/{id}/entries", h.GetEntryHistory)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/params", h.SetParam)
			r.Post("/surplus", h.WithdrawSurplus)
			r.Post("/refund", h.Refund)
			r.Post("/freeze", h.Freeze)
			r.Get("/integrity", h.VerifyIntegrity)
		})
	})

	r.Get("/healthz", health.LivenessHandler)
	r.Get("/readyz", health.ReadinessHandler)
	r.Handle("/metrics", promhttp.Handler())

	return r
}
