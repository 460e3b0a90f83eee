// Package providers implements model API adapters.
package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/tripweave/tripweave/llm"
	"github.com/tripweave/tripweave/model"
)

// maxResponseSize limits the model response body to prevent memory exhaustion.
const maxResponseSize = 10 * 1024 * 1024 // 10MB

// OpenAI implements the OpenAI-compatible chat completions API. The same
// wire format is served by OpenAI, OpenRouter, Ollama, vLLM, and the mock
// model server, so one adapter covers all of them; only the base URL and
// the API key differ per endpoint.
type OpenAI struct{}

// NewOpenAI creates the OpenAI-compatible provider.
func NewOpenAI() *OpenAI {
	return &OpenAI{}
}

// Name returns the provider identifier.
func (o *OpenAI) Name() string {
	return "openai"
}

// buildURL constructs the chat completions endpoint.
func (o *OpenAI) buildURL(baseURL string) string {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	if strings.HasSuffix(baseURL, "/chat/completions") {
		return baseURL
	}

	return baseURL + "/chat/completions"
}

// setHeaders adds OpenAI-compatible authentication headers.
func (o *OpenAI) setHeaders(req *http.Request) {
	// Optional for local servers (Ollama, vLLM, mock-model).
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
}

// openAIRequest is the OpenAI-compatible request format.
type openAIRequest struct {
	Model     string          `json:"model"`
	Messages  []openAIMessage `json:"messages"`
	MaxTokens *int            `json:"max_tokens,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// openAIResponse is the OpenAI-compatible response format.
type openAIResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// Generate sends one chat completion request and returns the completion text.
func (o *OpenAI) Generate(ctx context.Context, hc *http.Client, ep *model.Endpoint, prompt string) (string, error) {
	req := openAIRequest{
		Model:    ep.Model,
		Messages: []openAIMessage{{Role: "user", Content: prompt}},
	}
	if ep.MaxTokens > 0 {
		req.MaxTokens = &ep.MaxTokens
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("build request body: %w", err)
	}

	respBody, err := post(ctx, hc, o.buildURL(ep.URL), body, o.setHeaders)
	if err != nil {
		return "", err
	}

	var resp openAIResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("parse openai response: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	return resp.Choices[0].Message.Content, nil
}

// post executes a single JSON POST against a model endpoint. Non-200
// statuses become *llm.APIError so callers can classify them.
func post(ctx context.Context, hc *http.Client, url string, body []byte, setHeaders func(*http.Request)) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create HTTP request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	setHeaders(httpReq)

	httpResp, err := hc.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, llm.NewAPIError(httpResp.StatusCode, respBody)
	}

	return respBody, nil
}
