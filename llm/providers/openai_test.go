package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripweave/tripweave/llm"
	"github.com/tripweave/tripweave/model"
)

func TestOpenAI_Name(t *testing.T) {
	p := NewOpenAI()
	assert.Equal(t, "openai", p.Name())
}

func TestOpenAI_BuildURL(t *testing.T) {
	p := NewOpenAI()

	tests := []struct {
		name    string
		baseURL string
		want    string
	}{
		{
			name:    "empty uses default",
			baseURL: "",
			want:    "https://api.openai.com/v1/chat/completions",
		},
		{
			name:    "local ollama",
			baseURL: "http://localhost:11434/v1",
			want:    "http://localhost:11434/v1/chat/completions",
		},
		{
			name:    "trailing slash handled",
			baseURL: "https://api.openai.com/v1/",
			want:    "https://api.openai.com/v1/chat/completions",
		},
		{
			name:    "full path kept as-is",
			baseURL: "http://localhost:8089/v1/chat/completions",
			want:    "http://localhost:8089/v1/chat/completions",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.buildURL(tt.baseURL)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOpenAI_Generate(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-api-key")

	var gotReq openAIRequest
	var gotAuth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		gotAuth = r.Header.Get("Authorization")

		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"model": "gpt-4o-mini",
			"choices": [{
				"index": 0,
				"message": {"role": "assistant", "content": "{\"destination\":\"Kyoto\"}"},
				"finish_reason": "stop"
			}]
		}`))
	}))
	defer srv.Close()

	p := NewOpenAI()
	ep := &model.Endpoint{Provider: "openai", URL: srv.URL + "/v1", Model: "gpt-4o-mini", MaxTokens: 2048}

	text, err := p.Generate(context.Background(), srv.Client(), ep, "plan a trip")
	require.NoError(t, err)

	assert.Equal(t, `{"destination":"Kyoto"}`, text)
	assert.Equal(t, "Bearer test-api-key", gotAuth)
	assert.Equal(t, "gpt-4o-mini", gotReq.Model)
	require.Len(t, gotReq.Messages, 1)
	assert.Equal(t, "user", gotReq.Messages[0].Role)
	assert.Equal(t, "plan a trip", gotReq.Messages[0].Content)
	require.NotNil(t, gotReq.MaxTokens)
	assert.Equal(t, 2048, *gotReq.MaxTokens)
}

func TestOpenAI_Generate_OmitsMaxTokensWhenUnset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openAIRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Nil(t, req.MaxTokens)

		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`))
	}))
	defer srv.Close()

	p := NewOpenAI()
	ep := &model.Endpoint{Provider: "openai", URL: srv.URL, Model: "llama3"}

	text, err := p.Generate(context.Background(), srv.Client(), ep, "hi")
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
}

func TestOpenAI_Generate_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": "rate limit exceeded"}`))
	}))
	defer srv.Close()

	p := NewOpenAI()
	ep := &model.Endpoint{Provider: "openai", URL: srv.URL, Model: "gpt-4o-mini"}

	_, err := p.Generate(context.Background(), srv.Client(), ep, "hi")
	require.Error(t, err)

	var apiErr *llm.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.Status)
	assert.Contains(t, apiErr.Error(), "429")
	assert.Contains(t, apiErr.Error(), "rate limit exceeded")
}

func TestOpenAI_Generate_TruncatesLongErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(strings.Repeat("x", 500)))
	}))
	defer srv.Close()

	p := NewOpenAI()
	ep := &model.Endpoint{Provider: "openai", URL: srv.URL, Model: "gpt-4o-mini"}

	_, err := p.Generate(context.Background(), srv.Client(), ep, "hi")

	var apiErr *llm.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Len(t, apiErr.Body, 203) // 200 chars + "..."
	assert.True(t, strings.HasSuffix(apiErr.Body, "..."))
}

func TestOpenAI_Generate_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	p := NewOpenAI()
	ep := &model.Endpoint{Provider: "openai", URL: srv.URL, Model: "gpt-4o-mini"}

	_, err := p.Generate(context.Background(), srv.Client(), ep, "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}

func TestOpenAI_Generate_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewOpenAI()
	ep := &model.Endpoint{Provider: "openai", URL: srv.URL, Model: "gpt-4o-mini"}

	_, err := p.Generate(ctx, srv.Client(), ep, "hi")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}
