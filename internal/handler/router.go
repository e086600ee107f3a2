package handler

import (
	"log/slog"
	"net/http"

	"github.com/Shivanand-hulikatti/event-seat-registration/internal/auth"
	"github.com/Shivanand-hulikatti/event-seat-registration/internal/metrics"
	"github.com/Shivanand-hulikatti/event-seat-registration/internal/service"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// Config bundles what the router needs.
type Config struct {
	Events        *service.EventService
	Registrations *service.RegistrationService
	Auth          *auth.Authenticator
	// Limiter guards register and cancel. Nil disables rate limiting.
	Limiter    Limiter
	Logger     *slog.Logger
	CORSOrigin string
	UserHeader string
}

// NewRouter builds the HTTP API.
func NewRouter(cfg Config) http.Handler {
	events := NewEventHandler(cfg.Events, cfg.Logger)
	regs := NewRegistrationHandler(cfg.Registrations, cfg.Logger)

	limit := func(route string) func(http.Handler) http.Handler {
		if cfg.Limiter == nil {
			return func(next http.Handler) http.Handler { return next }
		}
		return RateLimit(cfg.Limiter, route, cfg.Logger)
	}

	r := chi.NewRouter()

	// Global middleware stack
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(Logger(cfg.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(CORS(cfg.CORSOrigin, cfg.UserHeader))

	r.Get("/health", HealthCheck)
	r.Handle("/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(Authenticate(cfg.Auth, cfg.Logger))

		r.Route("/events", func(r chi.Router) {
			r.Post("/", events.CreateEvent)
			r.Get("/", events.ListEvents)
			r.Get("/{id}", events.GetEvent)
			r.Get("/{id}/registrations", events.ListRegistrations)

			r.With(RequireUser, limit("register")).Post("/{id}/register", regs.Register)
			r.With(RequireUser, limit("cancel")).Delete("/{id}/register", regs.Cancel)
		})

		r.With(RequireUser).Get("/me/dashboard", regs.Dashboard)
	})

	return r
}
