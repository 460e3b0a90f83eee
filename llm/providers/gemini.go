package providers

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	genai "google.golang.org/genai"

	"github.com/tripweave/tripweave/model"
)

// Gemini implements the Google Gemini API through the official genai SDK.
// The SDK reads GEMINI_API_KEY from the environment and owns its own
// transport, so the shared HTTP client is not used here.
type Gemini struct {
	mu  sync.Mutex
	cli *genai.Client
}

// NewGemini creates the Gemini provider. The underlying SDK client is
// built lazily on first use so construction never needs a context.
func NewGemini() *Gemini {
	return &Gemini{}
}

// Name returns the provider identifier.
func (g *Gemini) Name() string {
	return "gemini"
}

func (g *Gemini) client(ctx context.Context) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.cli != nil {
		return g.cli, nil
	}

	cli, err := genai.NewClient(ctx, &genai.ClientConfig{Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	g.cli = cli
	return cli, nil
}

// Generate sends one content request and returns the first candidate text.
func (g *Gemini) Generate(ctx context.Context, _ *http.Client, ep *model.Endpoint, prompt string) (string, error) {
	cli, err := g.client(ctx)
	if err != nil {
		return "", err
	}

	resp, err := cli.Models.GenerateContent(ctx, ep.Model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: prompt}}}},
		&genai.GenerateContentConfig{ResponseMIMEType: "application/json"},
	)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no candidates in response")
	}

	return resp.Candidates[0].Content.Parts[0].Text, nil
}
