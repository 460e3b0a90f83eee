// Package server exposes the HTTP API: account signup and login, session
// cookies, and the itinerary generation and history endpoints.
package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tripweave/tripweave/auth"
	"github.com/tripweave/tripweave/metrics"
	"github.com/tripweave/tripweave/store"
	"github.com/tripweave/tripweave/trip"
)

// sessionCookie is the cookie carrying the opaque session token. Server-side
// TTL is authoritative, so the cookie itself has no expiry.
const sessionCookie = "tw_session"

// Server wires the HTTP handlers to the application services.
type Server struct {
	users       store.UserStore
	trips       *trip.Service
	sessions    auth.Sessions
	limiter     auth.Limiter
	metrics     *metrics.Metrics
	logger      *slog.Logger
	defaultLang string
}

// Option configures a Server.
type Option func(*Server)

// WithLimiter enables the per-user generation rate limit.
func WithLimiter(l auth.Limiter) Option {
	return func(s *Server) {
		s.limiter = l
	}
}

// WithMetrics enables HTTP metrics and the /metrics endpoint.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithDefaultLanguage sets the language used when a request omits one.
func WithDefaultLanguage(lang string) Option {
	return func(s *Server) {
		if lang != "" {
			s.defaultLang = lang
		}
	}
}

// New creates a Server. Without options there is no rate limit, no metrics
// endpoint, and the default language is English.
func New(users store.UserStore, trips *trip.Service, sessions auth.Sessions, opts ...Option) *Server {
	s := &Server{
		users:       users,
		trips:       trips,
		sessions:    sessions,
		logger:      slog.Default(),
		defaultLang: "en",
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Handler builds the route tree. Everything under /api except the auth
// endpoints requires a session.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.withRequestID)
	r.Use(s.instrument)

	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/signup", s.handleSignup)
		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/logout", s.handleLogout)

		r.Group(func(r chi.Router) {
			r.Use(s.requireSession)

			r.Get("/me", s.handleMe)
			r.Route("/itineraries", func(r chi.Router) {
				r.With(s.rateLimitGeneration).Post("/", s.handleCreateItinerary)
				r.Get("/", s.handleListItineraries)
				r.Get("/{id}", s.handleGetItinerary)
				r.Delete("/{id}", s.handleDeleteItinerary)
			})
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
