// Package planner implements the generation pipeline: prompt construction,
// a prioritized model cascade with per-model retry and exponential backoff,
// a timeout guard around every invocation, and decoding of model output
// into validated itineraries. The cascade is strictly sequential: a later
// model is only tried after the earlier one is confirmed unusable.
package planner

import (
	"context"
	"log/slog"
	"time"

	"github.com/tripweave/tripweave/itinerary"
	"github.com/tripweave/tripweave/llm"
	"github.com/tripweave/tripweave/model"
)

// Observer receives cascade telemetry. Implemented by the metrics package;
// a nil observer disables observation.
type Observer interface {
	// ObserveAttempt counts one model invocation; result is "success" or
	// the classified error kind.
	ObserveAttempt(model, result string)

	// ObserveAdvance counts the cascade giving up on a model.
	ObserveAdvance(model string)
}

// Generation is a successful run's result plus how it was obtained.
type Generation struct {
	Itinerary *itinerary.Itinerary
	Model     string
	Attempts  int
	Elapsed   time.Duration
}

// Generator runs trip requests through the model cascade. It is constructed
// explicitly with its invoker and registry; there is no process-wide state.
// Concurrent Generate calls are independent.
type Generator struct {
	invoker  llm.Invoker
	registry *model.Registry
	retry    RetryConfig
	timeout  time.Duration
	logger   *slog.Logger
	metrics  Observer
	recorder CallRecorder
	sleep    func(ctx context.Context, d time.Duration) error
}

// Option configures a Generator.
type Option func(*Generator)

// WithRetryConfig sets the per-model retry policy.
func WithRetryConfig(rc RetryConfig) Option {
	return func(g *Generator) {
		g.retry = rc
	}
}

// WithTimeout bounds the wall-clock time of each model invocation.
func WithTimeout(d time.Duration) Option {
	return func(g *Generator) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) {
		g.logger = logger
	}
}

// WithMetrics sets the telemetry observer.
func WithMetrics(o Observer) Option {
	return func(g *Generator) {
		g.metrics = o
	}
}

// WithCallRecorder sets the best-effort call recorder.
func WithCallRecorder(r CallRecorder) Option {
	return func(g *Generator) {
		g.recorder = r
	}
}

// WithSleep replaces the backoff sleep. The replacement must return the
// context error when interrupted. Tests use this to assert exact delays
// without waiting them out.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(g *Generator) {
		g.sleep = fn
	}
}

// New creates a Generator over the given invoker and cascade registry.
func New(invoker llm.Invoker, registry *model.Registry, opts ...Option) *Generator {
	g := &Generator{
		invoker:  invoker,
		registry: registry,
		retry:    DefaultRetryConfig(),
		timeout:  DefaultTimeout,
		logger:   slog.Default(),
		sleep:    sleepContext,
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Generate runs one trip request through the cascade and returns the first
// validated itinerary, or exactly one *ClassifiedError. Models are tried in
// registry order, skipping endpoints whose health circuit is open; within a
// model, transient failures are retried with exponential backoff up to
// MaxAttempts, structural failures advance the cascade immediately, and
// auth failures abort the whole run.
func (g *Generator) Generate(ctx context.Context, req itinerary.TripRequest, lang string) (*Generation, error) {
	if err := req.Validate(); err != nil {
		return nil, &ClassifiedError{Kind: KindValidation, Message: err.Error()}
	}

	// The prompt is identical for every model and attempt.
	prompt := BuildPrompt(req, lang)
	cascade := g.registry.AvailableCascade()
	start := time.Now()

	g.logger.Info("Starting generation",
		"destination", req.Destination,
		"duration", req.Duration,
		"language", lang,
		"cascade", cascade)

	totalAttempts := 0
	var lastErr *ClassifiedError

	for _, modelName := range cascade {
		itin, attempts, cerr := g.tryModel(ctx, modelName, prompt, req)
		totalAttempts += attempts

		if cerr == nil {
			g.registry.MarkSuccess(modelName)

			gen := &Generation{
				Itinerary: itin,
				Model:     modelName,
				Attempts:  totalAttempts,
				Elapsed:   time.Since(start),
			}

			g.logger.Info("Generation succeeded",
				"model", modelName,
				"attempts", totalAttempts,
				"duration", gen.Elapsed)

			g.recordCall(ctx, CallRecord{
				Model:    modelName,
				Attempts: totalAttempts,
				Outcome:  "success",
				Latency:  gen.Elapsed,
			})

			return gen, nil
		}

		g.registry.MarkFailure(modelName)

		lastErr = cerr
		lastErr.Attempts = totalAttempts

		// Auth failures are global misconfiguration; trying further
		// models would fail the same way.
		if cerr.Kind.Fatal() {
			break
		}

		g.observeAdvance(modelName)
		g.logger.Warn("Advancing cascade",
			"from_model", modelName,
			"kind", string(cerr.Kind),
			"attempts", totalAttempts)

		// A dead parent context would only burn attempts on the
		// remaining models.
		if ctx.Err() != nil {
			break
		}
	}

	if lastErr == nil {
		lastErr = &ClassifiedError{Kind: KindUnknown, Message: "no models available in cascade"}
	}

	g.logger.Error("Generation failed",
		"kind", string(lastErr.Kind),
		"model", lastErr.Model,
		"attempts", totalAttempts,
		"duration", time.Since(start))

	g.recordCall(ctx, CallRecord{
		Model:     lastErr.Model,
		Attempts:  totalAttempts,
		Outcome:   "error",
		ErrorKind: string(lastErr.Kind),
		Latency:   time.Since(start),
	})

	return nil, lastErr
}

// tryModel runs up to MaxAttempts guarded invocations against one model.
// It returns the per-model attempt count and, on failure, the last
// classified error; Generate overwrites its Attempts with the run total.
func (g *Generator) tryModel(ctx context.Context, modelName, prompt string, req itinerary.TripRequest) (*itinerary.Itinerary, int, *ClassifiedError) {
	var lastErr *ClassifiedError

	for attempt := 1; attempt <= g.retry.MaxAttempts; attempt++ {
		itin, err := g.invokeOnce(ctx, modelName, prompt, req)
		if err == nil {
			g.observeAttempt(modelName, "success")
			return itin, attempt, nil
		}

		kind := classify(err)
		g.observeAttempt(modelName, string(kind))
		lastErr = &ClassifiedError{
			Kind:     kind,
			Message:  err.Error(),
			Model:    modelName,
			Attempts: attempt,
		}

		g.logger.Warn("Model attempt failed",
			"model", modelName,
			"attempt", attempt,
			"max_attempts", g.retry.MaxAttempts,
			"kind", string(kind),
			"error", err)

		// Fatal and structural failures forfeit the remaining attempts.
		if !kind.Retryable() {
			return nil, attempt, lastErr
		}

		if ctx.Err() != nil {
			return nil, attempt, lastErr
		}

		if attempt < g.retry.MaxAttempts {
			backoff := g.backoffDelay(attempt)
			g.logger.Debug("Backing off before retry",
				"model", modelName,
				"attempt", attempt,
				"backoff", backoff)

			if err := g.sleep(ctx, backoff); err != nil {
				return nil, attempt, lastErr
			}
		}
	}

	return nil, g.retry.MaxAttempts, lastErr
}

// invokeOnce is the timeout guard around a single invocation. The
// invocation runs in its own goroutine with a buffered result channel, so
// a provider that ignores cancellation is abandoned and its late result
// can never be observed by a later attempt.
func (g *Generator) invokeOnce(ctx context.Context, modelName, prompt string, req itinerary.TripRequest) (*itinerary.Itinerary, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	type outcome struct {
		text string
		err  error
	}
	ch := make(chan outcome, 1)

	go func() {
		text, err := g.invoker.Invoke(attemptCtx, modelName, prompt)
		ch <- outcome{text: text, err: err}
	}()

	select {
	case <-attemptCtx.Done():
		return nil, attemptCtx.Err()
	case out := <-ch:
		if out.err != nil {
			return nil, out.err
		}

		raw, err := llm.ExtractJSON(out.text)
		if err != nil {
			return nil, err
		}

		return itinerary.Decode([]byte(raw), req)
	}
}

// backoffDelay computes the exponential backoff before retry attempt+1.
func (g *Generator) backoffDelay(attempt int) time.Duration {
	multiplier := 1.0
	for i := 1; i < attempt; i++ {
		multiplier *= g.retry.BackoffMultiplier
	}

	backoff := time.Duration(float64(g.retry.BackoffBase) * multiplier)
	if backoff > g.retry.MaxBackoff {
		backoff = g.retry.MaxBackoff
	}
	return backoff
}

// recordCall stores a call record if a recorder is configured. Failures
// are logged but never affect the generation result.
func (g *Generator) recordCall(ctx context.Context, rec CallRecord) {
	if g.recorder == nil {
		return
	}

	rec.UserID = UserIDFrom(ctx)
	if err := g.recorder.RecordCall(ctx, rec); err != nil {
		g.logger.Warn("Failed to record generation call",
			"model", rec.Model,
			"outcome", rec.Outcome,
			"error", err)
	}
}

func (g *Generator) observeAttempt(model, result string) {
	if g.metrics != nil {
		g.metrics.ObserveAttempt(model, result)
	}
}

func (g *Generator) observeAdvance(model string) {
	if g.metrics != nil {
		g.metrics.ObserveAdvance(model)
	}
}

// sleepContext waits d or until the context is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
