// Package llm talks to language model APIs. It resolves model names through
// the cascade registry, dispatches to a provider, and returns raw completion
// text. One call is one attempt: retry, fallback, and timeout policy belong
// to the caller.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/tripweave/tripweave/model"
)

// Invoker is the capability the generation pipeline consumes: one prompt
// in, raw model text out.
type Invoker interface {
	Invoke(ctx context.Context, model, prompt string) (string, error)
}

// Provider implements one model API family.
type Provider interface {
	// Name returns the provider identifier (e.g. "openai", "anthropic").
	Name() string

	// Generate sends a single prompt to the endpoint and returns the raw
	// completion text. The transport is owned by the client.
	Generate(ctx context.Context, hc *http.Client, ep *model.Endpoint, prompt string) (string, error)
}

// Client dispatches invocations to providers via the model registry.
// Providers are registered explicitly at construction; there is no
// process-wide provider state.
type Client struct {
	registry   *model.Registry
	providers  map[string]Provider
	httpClient *http.Client
	logger     *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithProviders registers providers the client can dispatch to.
func WithProviders(ps ...Provider) ClientOption {
	return func(c *Client) {
		for _, p := range ps {
			c.providers[p.Name()] = p
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a client over the given registry.
func NewClient(registry *model.Registry, opts ...ClientOption) *Client {
	c := &Client{
		registry:  registry,
		providers: make(map[string]Provider),
		httpClient: &http.Client{
			Timeout: 180 * time.Second, // Allow time for slow model responses
		},
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Invoke resolves the model name and makes exactly one attempt against its
// provider.
func (c *Client) Invoke(ctx context.Context, modelName, prompt string) (string, error) {
	ep, err := c.registry.Endpoint(modelName)
	if err != nil {
		return "", err
	}

	provider, ok := c.providers[ep.Provider]
	if !ok {
		return "", fmt.Errorf("no provider %q registered for model %q", ep.Provider, modelName)
	}

	c.logger.Debug("Sending model request",
		"model", modelName,
		"provider", ep.Provider,
		"prompt_bytes", len(prompt))

	start := time.Now()
	text, err := provider.Generate(ctx, c.httpClient, ep, prompt)
	if err != nil {
		c.logger.Debug("Model request failed",
			"model", modelName,
			"provider", ep.Provider,
			"duration", time.Since(start),
			"error", err)
		return "", err
	}

	c.logger.Debug("Model request completed",
		"model", modelName,
		"provider", ep.Provider,
		"duration", time.Since(start),
		"response_bytes", len(text))

	return text, nil
}
