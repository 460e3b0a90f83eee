package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/tripweave/tripweave/auth"
	"github.com/tripweave/tripweave/store"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var body credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body", "")
		return
	}

	email := strings.TrimSpace(body.Email)
	if email == "" || !strings.Contains(email, "@") {
		s.writeError(w, http.StatusBadRequest, "a valid email is required", "")
		return
	}
	if err := auth.ValidatePassword(body.Password); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	}

	hash, err := auth.HashPassword(body.Password)
	if err != nil {
		s.logger.Error("Password hashing failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error", "")
		return
	}

	u := &store.User{Email: email, PasswordHash: hash}
	if err := s.users.CreateUser(r.Context(), u); err != nil {
		if errors.Is(err, store.ErrEmailTaken) {
			s.writeError(w, http.StatusConflict, "email already registered", "")
			return
		}
		s.logger.Error("User creation failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error", "")
		return
	}

	s.logger.Info("User signed up", "user_id", u.ID)
	s.writeJSON(w, http.StatusCreated, u)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body", "")
		return
	}

	// Unknown email and wrong password are deliberately the same answer.
	u, err := s.users.GetUserByEmail(r.Context(), body.Email)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusUnauthorized, "invalid credentials", "")
		return
	}
	if err != nil {
		s.logger.Error("User lookup failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error", "")
		return
	}
	if !auth.CheckPassword(u.PasswordHash, body.Password) {
		s.writeError(w, http.StatusUnauthorized, "invalid credentials", "")
		return
	}

	token, err := s.sessions.Create(r.Context(), u.ID)
	if err != nil {
		s.logger.Error("Session creation failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error", "")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	s.logger.Info("User logged in", "user_id", u.ID)
	s.writeJSON(w, http.StatusOK, u)
}

// handleLogout destroys the session if one is presented. It succeeds either
// way, so it is safe to retry.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookie); err == nil && cookie.Value != "" {
		if err := s.sessions.Destroy(r.Context(), cookie.Value); err != nil {
			s.logger.Warn("Session destroy failed", "error", err)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	u, err := s.users.GetUser(r.Context(), userIDFrom(r.Context()))
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusUnauthorized, "account no longer exists", "")
		return
	}
	if err != nil {
		s.logger.Error("User lookup failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error", "")
		return
	}
	s.writeJSON(w, http.StatusOK, u)
}
