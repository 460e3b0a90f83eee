package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/tripweave/tripweave/model"
)

// anthropicVersion is the API version to use.
const anthropicVersion = "2023-06-01"

// defaultAnthropicMaxTokens applies when the endpoint does not set a limit;
// the messages API requires max_tokens.
const defaultAnthropicMaxTokens = 4096

// Anthropic implements the Anthropic messages API.
type Anthropic struct{}

// NewAnthropic creates the Anthropic provider.
func NewAnthropic() *Anthropic {
	return &Anthropic{}
}

// Name returns the provider identifier.
func (a *Anthropic) Name() string {
	return "anthropic"
}

// buildURL constructs the Anthropic messages endpoint.
func (a *Anthropic) buildURL(baseURL string) string {
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}
	baseURL = strings.TrimSuffix(baseURL, "/")
	return baseURL + "/v1/messages"
}

// setHeaders adds Anthropic-specific authentication headers.
func (a *Anthropic) setHeaders(req *http.Request) {
	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		req.Header.Set("x-api-key", apiKey)
	}
	req.Header.Set("anthropic-version", anthropicVersion)
}

// anthropicRequest is the Anthropic API request format.
type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// anthropicResponse is the Anthropic API response format.
type anthropicResponse struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Role    string `json:"role"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Model      string `json:"model"`
	StopReason string `json:"stop_reason"`
}

// Generate sends one messages request and returns the concatenated text blocks.
func (a *Anthropic) Generate(ctx context.Context, hc *http.Client, ep *model.Endpoint, prompt string) (string, error) {
	maxTokens := ep.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	req := anthropicRequest{
		Model:     ep.Model,
		MaxTokens: maxTokens,
		Messages:  []anthropicMessage{{Role: "user", Content: prompt}},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("build request body: %w", err)
	}

	respBody, err := post(ctx, hc, a.buildURL(ep.URL), body, a.setHeaders)
	if err != nil {
		return "", err
	}

	var resp anthropicResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("parse anthropic response: %w", err)
	}

	var content strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}

	if content.Len() == 0 {
		return "", fmt.Errorf("no text content in response")
	}

	return content.String(), nil
}
