// Package model manages the generation cascade: named model endpoints, the
// order they are tried in, and per-endpoint health tracking.
package model

import (
	"fmt"
	"sync"
)

// Endpoint defines an available model endpoint.
type Endpoint struct {
	// Provider is the API family (openai, anthropic, gemini).
	Provider string `json:"provider"`

	// URL is the API base URL. Empty uses the provider default.
	URL string `json:"url,omitempty"`

	// Model is the identifier sent to the provider.
	Model string `json:"model"`

	// MaxTokens caps the response length. 0 uses the provider default.
	MaxTokens int `json:"max_tokens,omitempty"`
}

// Registry holds the configured endpoints and the cascade order. It is safe
// for concurrent use; Reload swaps the whole configuration atomically so a
// generation run in flight keeps the cascade it started with.
type Registry struct {
	mu        sync.RWMutex
	endpoints map[string]*Endpoint
	cascade   []string
	health    *healthState
}

// NewRegistry creates a registry from an ordered cascade of model names and
// their endpoint configurations.
func NewRegistry(cascade []string, endpoints map[string]*Endpoint) *Registry {
	return &Registry{
		endpoints: cloneEndpoints(endpoints),
		cascade:   append([]string(nil), cascade...),
		health:    newHealthState(DefaultHealthConfig()),
	}
}

// Cascade returns the configured model order. The returned slice is a copy;
// callers may not observe later reloads mid-run.
func (r *Registry) Cascade() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]string(nil), r.cascade...)
}

// Endpoint returns the endpoint for a model name, or an error if the model
// is not configured.
func (r *Registry) Endpoint(name string) (*Endpoint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ep, ok := r.endpoints[name]
	if !ok {
		return nil, fmt.Errorf("model %q is not configured", name)
	}
	return ep, nil
}

// Reload replaces the cascade and endpoints in one step. Health state is
// kept so a reload does not reset open circuits.
func (r *Registry) Reload(cascade []string, endpoints map[string]*Endpoint) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cascade = append([]string(nil), cascade...)
	r.endpoints = cloneEndpoints(endpoints)
}

// SetEndpoint updates or adds a single endpoint.
func (r *Registry) SetEndpoint(name string, ep *Endpoint) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.endpoints == nil {
		r.endpoints = make(map[string]*Endpoint)
	}
	cp := *ep
	r.endpoints[name] = &cp
}

// ListEndpoints returns all configured endpoint names.
func (r *Registry) ListEndpoints() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.endpoints))
	for name := range r.endpoints {
		names = append(names, name)
	}
	return names
}

// ModelStatus pairs a cascade entry with its endpoint and current health,
// for diagnostics endpoints.
type ModelStatus struct {
	Name     string          `json:"name"`
	Endpoint *Endpoint       `json:"endpoint"`
	Health   *EndpointHealth `json:"health,omitempty"`
}

// Snapshot reports the cascade in order with endpoint and health details.
func (r *Registry) Snapshot() []ModelStatus {
	r.mu.RLock()
	cascade := append([]string(nil), r.cascade...)
	r.mu.RUnlock()

	out := make([]ModelStatus, 0, len(cascade))
	for _, name := range cascade {
		ep, err := r.Endpoint(name)
		if err != nil {
			continue
		}
		cp := *ep
		out = append(out, ModelStatus{
			Name:     name,
			Endpoint: &cp,
			Health:   r.Health(name),
		})
	}
	return out
}

func cloneEndpoints(in map[string]*Endpoint) map[string]*Endpoint {
	out := make(map[string]*Endpoint, len(in))
	for name, ep := range in {
		cp := *ep
		out[name] = &cp
	}
	return out
}
