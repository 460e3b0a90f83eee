package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/tripweave/tripweave/auth"
	"github.com/tripweave/tripweave/cache"
	"github.com/tripweave/tripweave/config"
	"github.com/tripweave/tripweave/events"
	"github.com/tripweave/tripweave/llm"
	"github.com/tripweave/tripweave/llm/providers"
	"github.com/tripweave/tripweave/metrics"
	"github.com/tripweave/tripweave/model"
	"github.com/tripweave/tripweave/planner"
	"github.com/tripweave/tripweave/server"
	"github.com/tripweave/tripweave/store"
	"github.com/tripweave/tripweave/trip"
)

// dataStore is what the service needs from a storage backend. Both the
// Postgres and the in-memory store satisfy it.
type dataStore interface {
	store.UserStore
	store.ItineraryStore
	planner.CallRecorder
}

// App wires all components together: config in, serving HTTP out.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	registry *model.Registry
	metrics  *metrics.Metrics
	trips    *trip.Service
	api      *server.Server

	// Connections owned by the app; nil when the in-process fallback is
	// active.
	pg     *store.Postgres
	redis  *backend.Client
	events events.Publisher
}

// NewApp builds the service from configuration. External backends are
// optional: without a database DSN, a Redis address, or a NATS URL the app
// falls back to process-local equivalents, which is enough for dev.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics.New(),
	}

	a.registry = model.NewRegistry(cfg.Generation.Cascade, endpointsFromConfig(cfg.Endpoints))

	client := llm.NewClient(a.registry,
		llm.WithProviders(providers.NewOpenAI(), providers.NewAnthropic(), providers.NewGemini()),
		llm.WithLogger(logger))

	st, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}

	generator := planner.New(client, a.registry,
		planner.WithRetryConfig(planner.RetryConfig{
			MaxAttempts:       cfg.Generation.MaxAttempts,
			BackoffBase:       cfg.Generation.BackoffBase.Duration(),
			BackoffMultiplier: cfg.Generation.BackoffMultiplier,
			MaxBackoff:        cfg.Generation.MaxBackoff.Duration(),
		}),
		planner.WithTimeout(cfg.Generation.Timeout.Duration()),
		planner.WithMetrics(a.metrics),
		planner.WithCallRecorder(st),
		planner.WithLogger(logger))

	sessions, limiter, err := a.openAuth(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.events = a.openEvents()

	a.trips = trip.New(generator, st,
		trip.WithCache(cache.New(cfg.Cache.Size, cfg.Cache.TTL.Duration())),
		trip.WithEvents(a.events),
		trip.WithMetrics(a.metrics),
		trip.WithLogger(logger))

	a.api = server.New(st, a.trips, sessions,
		server.WithLimiter(limiter),
		server.WithMetrics(a.metrics),
		server.WithLogger(logger),
		server.WithDefaultLanguage(cfg.Generation.Language))

	return a, nil
}

// openStore connects to Postgres, or falls back to the in-memory store when
// no DSN is configured.
func (a *App) openStore(ctx context.Context) (dataStore, error) {
	dsn := a.cfg.Database.DSN
	if dsn == "" {
		a.logger.Warn("No database configured, using in-memory store; data is lost on restart")
		return store.NewMemory(), nil
	}

	pg, err := store.NewPostgres(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := pg.Migrate(ctx); err != nil {
		pg.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}

	a.pg = pg
	a.logger.Info("Connected to Postgres")
	return pg, nil
}

// openAuth builds the session store and the generation quota limiter,
// backed by Redis when an address is configured.
func (a *App) openAuth(ctx context.Context) (auth.Sessions, auth.Limiter, error) {
	ttl := a.cfg.Auth.SessionTTL.Duration()
	limit := a.cfg.RateLimit.GenerationsPerHour

	addr := a.cfg.Redis.Addr
	if addr == "" {
		a.logger.Warn("No Redis configured, sessions and quotas are process-local")
		return auth.NewMemorySessions(ttl), auth.NewMemoryLimiter(limit, time.Hour), nil
	}

	client := backend.NewClient(&backend.Options{
		Addr:     addr,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}

	a.redis = client
	a.logger.Info("Connected to Redis", "addr", addr)
	return auth.NewRedisSessions(client, ttl), auth.NewRedisLimiter(client, limit, time.Hour), nil
}

// openEvents connects the event publisher. Events are best-effort, so a
// missing or unreachable broker degrades to a no-op instead of failing
// startup.
func (a *App) openEvents() events.Publisher {
	url := a.cfg.NATS.URL
	if url == "" {
		a.logger.Info("No NATS configured, events disabled")
		return events.Noop{}
	}

	pub, err := events.Connect(url)
	if err != nil {
		a.logger.Warn("NATS unreachable, events disabled", "url", url, "error", err)
		return events.Noop{}
	}

	a.logger.Info("Connected to NATS", "url", url)
	return pub
}

// Serve runs the HTTP server until ctx is canceled or the listener fails.
// When configPath is set the file is watched and the model cascade is
// reloaded on change.
func (a *App) Serve(ctx context.Context, configPath string) error {
	srv := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           a.api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Channel to listen for errors coming from the listener.
	serverErrors := make(chan error, 1)

	go func() {
		a.logger.Info("HTTP server listening",
			"addr", srv.Addr,
			"version", Version,
			"cascade", a.cfg.Generation.Cascade)
		serverErrors <- srv.ListenAndServe()
	}()

	if configPath != "" {
		go func() {
			if err := config.Watch(ctx, configPath, a.logger, a.applyConfig); err != nil {
				a.logger.Warn("Config watcher stopped", "error", err)
			}
		}()
	}

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case <-ctx.Done():
		a.logger.Info("Shutdown signal received")

		// Give outstanding requests a deadline for completion.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("Graceful shutdown did not complete", "error", err)
			if err := srv.Close(); err != nil {
				return fmt.Errorf("close server: %w", err)
			}
		}

		a.logger.Info("Shutdown complete")
		return nil
	}
}

// applyConfig applies a reloaded config file. Only the cascade and its
// endpoints take effect at runtime; connection targets need a restart.
func (a *App) applyConfig(cfg *config.Config) {
	a.registry.Reload(cfg.Generation.Cascade, endpointsFromConfig(cfg.Endpoints))
	a.logger.Info("Model cascade reloaded", "cascade", cfg.Generation.Cascade)
}

// Close releases the app's external connections.
func (a *App) Close() {
	if n, ok := a.events.(*events.NATS); ok && n != nil {
		n.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.pg != nil {
		a.pg.Close()
	}
}

func runServe(configPath, logLevel string) error {
	logger := setupLogger(logLevel)

	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := NewApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	return app.Serve(ctx, configPath)
}

// endpointsFromConfig converts config endpoint entries to registry
// endpoints.
func endpointsFromConfig(in map[string]config.EndpointConfig) map[string]*model.Endpoint {
	out := make(map[string]*model.Endpoint, len(in))
	for name, ep := range in {
		out[name] = &model.Endpoint{
			Provider:  ep.Provider,
			URL:       ep.URL,
			Model:     ep.Model,
			MaxTokens: ep.MaxTokens,
		}
	}
	return out
}
