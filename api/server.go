/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the admin panel frontend

ROUTE GROUPS:
  /api/tax/*          Weekly tax track
  /api/performance/*  Weekly bonus track
  /api/config/*       Bracket and bonus configuration (admin)
  /api/employees/*    Employee directory
  /api/sales          Sales ledger ingestion
  /api/services       Service ledger ingestion
  /api/periods/*      Period inspection

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.
  Run behind the panel's auth proxy in production.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Tax track
		r.Route("/tax", func(r chi.Router) {
			r.Get("/", h.ListTaxRecords)
			r.Post("/calculate", h.CalculateTax)
			r.Post("/finalize", h.FinalizeTax)
			r.Get("/{date}", h.GetTaxRecord)
		})

		// Performance track
		r.Route("/performance", func(r chi.Router) {
			r.Get("/", h.ListPerformanceRecords)
			r.Post("/calculate", h.CalculatePerformance)
			r.Post("/finalize", h.FinalizePerformance)
		})

		// Configuration (admin)
		r.Route("/config", func(r chi.Router) {
			r.Get("/brackets", h.GetBrackets)
			r.Put("/brackets", h.PutBrackets)
			r.Get("/bonus", h.GetBonusParams)
			r.Put("/bonus", h.PutBonusParams)
		})

		// Ledger ingestion
		r.Route("/employees", func(r chi.Router) {
			r.Get("/", h.ListEmployees)
			r.Post("/", h.CreateEmployee)
		})
		r.Post("/sales", h.RecordSale)
		r.Post("/services", h.RecordSession)

		// Periods
		r.Get("/periods/current", h.GetCurrentPeriod)
	})

	return r
}
