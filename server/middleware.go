package server

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/tripweave/tripweave/auth"
)

type contextKey string

const (
	requestIDKey contextKey = "tripweave-request-id"
	userIDKey    contextKey = "tripweave-session-user"
)

func requestIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

func userIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(userIDKey).(string); ok {
		return v
	}
	return ""
}

// withRequestID tags every request with a uuid, honoring one supplied by an
// upstream proxy.
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", id)

		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// instrument logs every request and records HTTP metrics against the chi
// route pattern, keeping label cardinality bounded.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)

		s.logger.Info("Request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration", elapsed,
			"request_id", requestIDFrom(r.Context()))

		s.metrics.RecordHTTPRequest(r.Method, chi.RouteContext(r.Context()).RoutePattern(), status, elapsed)
	})
}

// requireSession resolves the session cookie and stashes the user id on the
// context. Resolution slides the session TTL forward.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookie)
		if err != nil || cookie.Value == "" {
			s.writeError(w, http.StatusUnauthorized, "authentication required", "")
			return
		}

		userID, err := s.sessions.UserID(r.Context(), cookie.Value)
		if errors.Is(err, auth.ErrNoSession) {
			s.writeError(w, http.StatusUnauthorized, "session expired or invalid", "")
			return
		}
		if err != nil {
			s.logger.Error("Session lookup failed", "error", err)
			s.writeError(w, http.StatusInternalServerError, "internal error", "")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// rateLimitGeneration enforces the per-user generation quota. A failing
// limiter backend logs and lets the request through rather than taking the
// API down with it.
func (s *Server) rateLimitGeneration(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter == nil {
			next.ServeHTTP(w, r)
			return
		}

		ok, retryAfter, err := s.limiter.Allow(r.Context(), userIDFrom(r.Context()))
		if err != nil {
			s.logger.Warn("Rate limit check failed", "error", err)
			next.ServeHTTP(w, r)
			return
		}
		if !ok {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
			s.writeError(w, http.StatusTooManyRequests, "generation quota exceeded, try again later", "")
			return
		}

		next.ServeHTTP(w, r)
	})
}
