// Package trip is the application service behind the HTTP API. It ties the
// generation pipeline to persistence, the generation cache, and lifecycle
// events.
package trip

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tripweave/tripweave/cache"
	"github.com/tripweave/tripweave/events"
	"github.com/tripweave/tripweave/itinerary"
	"github.com/tripweave/tripweave/metrics"
	"github.com/tripweave/tripweave/planner"
	"github.com/tripweave/tripweave/store"
)

// Generator produces validated itineraries. *planner.Generator satisfies it.
type Generator interface {
	Generate(ctx context.Context, req itinerary.TripRequest, lang string) (*planner.Generation, error)
}

// Service coordinates one generation request end to end: cache lookup,
// cascade run, persistence, event publishing.
type Service struct {
	generator   Generator
	itineraries store.ItineraryStore
	cache       *cache.Cache
	events      events.Publisher
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithCache enables the generation cache.
func WithCache(c *cache.Cache) Option {
	return func(s *Service) {
		s.cache = c
	}
}

// WithEvents sets the lifecycle event publisher.
func WithEvents(p events.Publisher) Option {
	return func(s *Service) {
		s.events = p
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// New creates the service. Without options there is no cache, events are
// discarded, and metrics are disabled.
func New(generator Generator, itineraries store.ItineraryStore, opts ...Option) *Service {
	s := &Service{
		generator:   generator,
		itineraries: itineraries,
		events:      events.Noop{},
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Generate produces an itinerary for the user and persists it. Identical
// requests are served from the cache unless bypassCache is set; a cache hit
// still creates a record the user owns. Failures come back as the
// generator's *planner.ClassifiedError.
func (s *Service) Generate(ctx context.Context, userID string, req itinerary.TripRequest, lang string, bypassCache bool) (*store.Itinerary, error) {
	req.Destination = strings.TrimSpace(req.Destination)

	if s.cache != nil && !bypassCache {
		if plan, model, ok := s.cache.Get(req.Destination, req.Duration, lang); ok {
			s.metrics.RecordCacheEvent("hit")

			rec := &store.Itinerary{
				UserID:      userID,
				Destination: req.Destination,
				Duration:    req.Duration,
				Language:    lang,
				Model:       model,
				Payload:     plan,
			}
			if err := s.itineraries.CreateItinerary(ctx, rec); err != nil {
				return nil, fmt.Errorf("persist itinerary: %w", err)
			}

			s.logger.Info("Generation served from cache",
				"destination", req.Destination,
				"duration", req.Duration,
				"language", lang,
				"model", model)

			s.publishGenerated(ctx, rec, 0)
			return rec, nil
		}
		s.metrics.RecordCacheEvent("miss")
	}

	start := time.Now()
	gen, err := s.generator.Generate(planner.WithUserID(ctx, userID), req, lang)
	if err != nil {
		var cerr *planner.ClassifiedError
		kind, model, attempts := "", "", 0
		if errors.As(err, &cerr) {
			kind, model, attempts = string(cerr.Kind), cerr.Model, cerr.Attempts
		}

		s.metrics.RecordGeneration("error", kind, time.Since(start))
		s.publishFailed(ctx, userID, req, lang, model, attempts, kind, err)
		return nil, err
	}
	s.metrics.RecordGeneration("success", "", time.Since(start))

	rec := &store.Itinerary{
		UserID:      userID,
		Destination: req.Destination,
		Duration:    req.Duration,
		Language:    lang,
		Model:       gen.Model,
		Payload:     gen.Itinerary,
	}
	if err := s.itineraries.CreateItinerary(ctx, rec); err != nil {
		return nil, fmt.Errorf("persist itinerary: %w", err)
	}

	if s.cache != nil {
		s.cache.Put(req.Destination, req.Duration, lang, gen.Itinerary, gen.Model)
	}

	s.publishGenerated(ctx, rec, gen.Attempts)
	return rec, nil
}

// History returns one page of the user's itineraries, newest first, plus
// the total count.
func (s *Service) History(ctx context.Context, userID string, limit, offset int) ([]*store.Itinerary, int, error) {
	return s.itineraries.ListItineraries(ctx, userID, limit, offset)
}

// Get returns one itinerary. A record owned by someone else is
// store.ErrNotFound, indistinguishable from a missing one.
func (s *Service) Get(ctx context.Context, userID, id string) (*store.Itinerary, error) {
	return s.itineraries.GetItinerary(ctx, userID, id)
}

// Delete removes one itinerary under the same ownership rule as Get.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	return s.itineraries.DeleteItinerary(ctx, userID, id)
}

func (s *Service) publishGenerated(ctx context.Context, rec *store.Itinerary, attempts int) {
	ev := events.Generated{
		ItineraryID: rec.ID,
		UserID:      rec.UserID,
		Destination: rec.Destination,
		Duration:    rec.Duration,
		Language:    rec.Language,
		Model:       rec.Model,
		Attempts:    attempts,
		CreatedAt:   rec.CreatedAt,
	}
	if err := s.events.PublishGenerated(ctx, ev); err != nil {
		s.logger.Warn("Failed to publish event",
			"subject", events.SubjectGenerated,
			"itinerary_id", rec.ID,
			"error", err)
	}
}

func (s *Service) publishFailed(ctx context.Context, userID string, req itinerary.TripRequest, lang, model string, attempts int, kind string, cause error) {
	ev := events.Failed{
		UserID:      userID,
		Destination: req.Destination,
		Duration:    req.Duration,
		Language:    lang,
		Model:       model,
		Attempts:    attempts,
		ErrorKind:   kind,
		Error:       cause.Error(),
	}
	if err := s.events.PublishFailed(ctx, ev); err != nil {
		s.logger.Warn("Failed to publish event",
			"subject", events.SubjectFailed,
			"error", err)
	}
}
