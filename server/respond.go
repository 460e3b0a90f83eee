package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tripweave/tripweave/planner"
)

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("Failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg, kind string) {
	s.writeJSON(w, status, errorResponse{Error: msg, Kind: kind})
}

// writeGenerationError maps a failed generation run to a status code. The
// cascade's own failure modes surface as gateway errors: the upstream
// models failed, not this service.
func (s *Server) writeGenerationError(w http.ResponseWriter, err error) {
	var cerr *planner.ClassifiedError
	if !errors.As(err, &cerr) {
		s.logger.Error("Generation failed outside the cascade", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error", "")
		return
	}

	status := http.StatusBadGateway
	switch cerr.Kind {
	case planner.KindValidation:
		status = http.StatusBadRequest
	case planner.KindTimeout:
		status = http.StatusGatewayTimeout
	case planner.KindRateLimit:
		status = http.StatusServiceUnavailable
		w.Header().Set("Retry-After", "30")
	}

	s.writeError(w, status, cerr.Error(), string(cerr.Kind))
}
