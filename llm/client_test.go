package llm_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripweave/tripweave/llm"
	"github.com/tripweave/tripweave/llm/providers"
	"github.com/tripweave/tripweave/model"
)

func newTestRegistry(url string) *model.Registry {
	return model.NewRegistry(
		[]string{"test-model"},
		map[string]*model.Endpoint{
			"test-model": {
				Provider: "openai",
				URL:      url,
				Model:    "test-model",
			},
		},
	)
}

func TestClient_Invoke_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		resp := map[string]any{
			"id":     "chatcmpl-123",
			"object": "chat.completion",
			"model":  "test-model",
			"choices": []map[string]any{
				{
					"index": 0,
					"message": map[string]string{
						"role":    "assistant",
						"content": `{"destination": "Kyoto"}`,
					},
					"finish_reason": "stop",
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := llm.NewClient(newTestRegistry(server.URL),
		llm.WithProviders(providers.NewOpenAI()),
		llm.WithHTTPClient(server.Client()))

	text, err := client.Invoke(context.Background(), "test-model", "plan a trip")

	require.NoError(t, err)
	assert.Equal(t, `{"destination": "Kyoto"}`, text)
}

func TestClient_Invoke_UnknownModel(t *testing.T) {
	client := llm.NewClient(newTestRegistry("http://localhost:1"),
		llm.WithProviders(providers.NewOpenAI()))

	_, err := client.Invoke(context.Background(), "no-such-model", "hi")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no-such-model")
	assert.Contains(t, err.Error(), "not configured")
}

func TestClient_Invoke_UnregisteredProvider(t *testing.T) {
	registry := model.NewRegistry(
		[]string{"claude-haiku"},
		map[string]*model.Endpoint{
			"claude-haiku": {Provider: "anthropic", Model: "claude-3-5-haiku-20241022"},
		},
	)

	// Only the OpenAI provider is registered.
	client := llm.NewClient(registry, llm.WithProviders(providers.NewOpenAI()))

	_, err := client.Invoke(context.Background(), "claude-haiku", "hi")

	require.Error(t, err)
	assert.Contains(t, err.Error(), `no provider "anthropic" registered`)
}

func TestClient_Invoke_APIErrorPassesThrough(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error": "model not found"}`))
	}))
	defer server.Close()

	client := llm.NewClient(newTestRegistry(server.URL),
		llm.WithProviders(providers.NewOpenAI()),
		llm.WithHTTPClient(server.Client()))

	_, err := client.Invoke(context.Background(), "test-model", "hi")

	var apiErr *llm.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
}
