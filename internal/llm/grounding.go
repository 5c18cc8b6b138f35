package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/jonathan/resume-tailor/internal/prompts"
)

// URLGrounder reads a job posting through the model's URL context tool, so
// pages are fetched by the provider rather than by this process
type URLGrounder struct {
	client *genai.Client
	model  string
}

// NewURLGrounder creates a grounder on the Gemini API backend
func NewURLGrounder(ctx context.Context, config *Config, apiKey string) (*URLGrounder, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, &TerminalError{Message: "API key is required"}
	}
	if config == nil {
		config = DefaultConfig()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &URLGrounder{client: client, model: config.GetModel(config.GroundingTier)}, nil
}

// Ground returns the posting text found at sourceURL
func (g *URLGrounder) Ground(ctx context.Context, sourceURL string) (string, error) {
	if g == nil || g.client == nil {
		return "", &TerminalError{Message: "grounder is not initialized"}
	}
	if g.model == "" {
		return "", &TerminalError{Message: "no model configured for grounding"}
	}

	prompt, err := prompts.RenderGrounding(sourceURL)
	if err != nil {
		return "", &TerminalError{Message: "failed to render grounding prompt", Cause: err}
	}

	cfg := &genai.GenerateContentConfig{
		Tools: []*genai.Tool{{URLContext: &genai.URLContext{}}},
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), cfg)
	if err != nil {
		return "", Classify(err, "failed to ground job posting")
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", &TerminalError{Message: "grounding returned no text for " + sourceURL}
	}
	return text, nil
}

// Close is a no-op; the genai client holds no resources that need releasing
func (g *URLGrounder) Close() error {
	return nil
}
