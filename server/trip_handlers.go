package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tripweave/tripweave/itinerary"
	"github.com/tripweave/tripweave/store"
)

type createItineraryRequest struct {
	Destination string `json:"destination"`
	Duration    int    `json:"duration"`
	Language    string `json:"language"`

	// Refresh skips the generation cache and forces a fresh cascade run.
	Refresh bool `json:"refresh"`
}

type listItinerariesResponse struct {
	Items []*store.Itinerary `json:"items"`
	Total int                `json:"total"`
}

func (s *Server) handleCreateItinerary(w http.ResponseWriter, r *http.Request) {
	var body createItineraryRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body", "")
		return
	}

	lang := body.Language
	if lang == "" {
		lang = s.defaultLang
	}

	req := itinerary.TripRequest{Destination: body.Destination, Duration: body.Duration}
	rec, err := s.trips.Generate(r.Context(), userIDFrom(r.Context()), req, lang, body.Refresh)
	if err != nil {
		s.writeGenerationError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleListItineraries(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	items, total, err := s.trips.History(r.Context(), userIDFrom(r.Context()), limit, offset)
	if err != nil {
		s.logger.Error("History lookup failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error", "")
		return
	}

	s.writeJSON(w, http.StatusOK, listItinerariesResponse{Items: items, Total: total})
}

func (s *Server) handleGetItinerary(w http.ResponseWriter, r *http.Request) {
	rec, err := s.trips.Get(r.Context(), userIDFrom(r.Context()), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "itinerary not found", "")
		return
	}
	if err != nil {
		s.logger.Error("Itinerary lookup failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error", "")
		return
	}

	s.writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDeleteItinerary(w http.ResponseWriter, r *http.Request) {
	err := s.trips.Delete(r.Context(), userIDFrom(r.Context()), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "itinerary not found", "")
		return
	}
	if err != nil {
		s.logger.Error("Itinerary delete failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error", "")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
