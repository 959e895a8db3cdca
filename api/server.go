/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the clerk UI
  5. Identity:   JWT subject or X-Actor-ID header
  6. RateLimit:  Per-client token bucket (optional)

ROUTE GROUPS:
  /api/appointments/*   Booking, rescheduling, cancellation, audit
  /api/holidays/*       Closing and reopening agency days
  /api/agencies/*       Quota, overrides, availability, holiday list
  /api/customers        Directory seeding
  /api/scenarios/*      Demo data (development only)
  /healthz              Liveness

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterOptions configures the cross-cutting middleware.
type RouterOptions struct {
	AllowedOrigins []string

	// JWTSecret enables bearer-token identity; empty trusts X-Actor-ID.
	JWTSecret []byte

	// Limiter is optional.
	Limiter *RateLimiter
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", ActorHeader},
		AllowCredentials: true,
	}))
	r.Use(Identity(opts.JWTSecret))
	if opts.Limiter != nil {
		r.Use(opts.Limiter.Middleware)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeOK(w, http.StatusOK, "ok", nil)
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/appointments", func(r chi.Router) {
			r.Get("/", h.ListAppointments)
			r.Post("/", h.CreateAppointment)
			r.Get("/{id}", h.GetAppointment)
			r.Put("/{id}", h.UpdateAppointment)
			r.Patch("/{id}/cancel", h.CancelAppointment)
			r.Get("/{id}/audit", h.AppointmentAudit)
		})

		r.Route("/holidays", func(r chi.Router) {
			r.Post("/", h.CreateHoliday)
			r.Delete("/{id}", h.DeleteHoliday)
		})

		r.Route("/agencies", func(r chi.Router) {
			r.Post("/", h.CreateAgency)
			r.Get("/{id}/holidays", h.ListHolidays)
			r.Get("/{id}/quota", h.GetQuota)
			r.Put("/{id}/quota", h.SetQuota)
			r.Get("/{id}/quota/overrides", h.ListQuotaOverrides)
			r.Put("/{id}/quota/overrides/{date}", h.SetQuotaOverride)
			r.Delete("/{id}/quota/overrides/{date}", h.DeleteQuotaOverride)
			r.Get("/{id}/availability", h.Availability)
		})

		r.Post("/customers", h.CreateCustomer)

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}
