package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/jonathan/resume-tailor/internal/prompts"
	"github.com/jonathan/resume-tailor/internal/types"
)

// Generator turns an assembled request into tailored content
type Generator interface {
	Generate(ctx context.Context, req *types.GenerationRequest) (*types.GenerationResult, error)
}

// Grounder fetches the text of a job posting given only its URL
type Grounder interface {
	Ground(ctx context.Context, sourceURL string) (string, error)
}

// Client is the full generation surface used by the pipeline
type Client interface {
	Generator
	Grounder
	// Close releases any resources held by the client
	Close() error
}

// NewClient creates the Gemini-backed client described by config. The result
// is rate limited when config.RequestsPerMinute is positive.
func NewClient(ctx context.Context, config *Config, apiKey string) (Client, error) {
	if config == nil {
		config = DefaultConfig()
	}

	gen, err := NewGeminiClient(ctx, config, apiKey)
	if err != nil {
		return nil, err
	}
	grounder, err := NewURLGrounder(ctx, config, apiKey)
	if err != nil {
		_ = gen.Close()
		return nil, err
	}

	var client Client = &geminiService{GeminiClient: gen, URLGrounder: grounder}
	if interval := config.Interval(); interval > 0 {
		client = NewRateLimited(client, interval, config.Burst)
	}
	return client, nil
}

type geminiService struct {
	*GeminiClient
	*URLGrounder
}

func (s *geminiService) Close() error {
	return errors.Join(s.GeminiClient.Close(), s.URLGrounder.Close())
}

// GeminiClient implements Generator for Google Gemini
type GeminiClient struct {
	client *genai.Client
	config *Config
}

// NewGeminiClient creates a new Gemini client
func NewGeminiClient(ctx context.Context, config *Config, apiKey string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, &TerminalError{Message: "API key is required"}
	}
	if config == nil {
		config = DefaultConfig()
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{
		client: client,
		config: config,
	}, nil
}

// Generate renders the request, calls the configured generation model in
// JSON mode and parses the reply into a GenerationResult
func (c *GeminiClient) Generate(ctx context.Context, req *types.GenerationRequest) (*types.GenerationResult, error) {
	modelName := c.config.GetModel(c.config.GenerationTier)
	if modelName == "" {
		return nil, &TerminalError{Message: fmt.Sprintf("no model configured for tier %s", c.config.GenerationTier)}
	}

	prompt, err := prompts.Render(req)
	if err != nil {
		return nil, &TerminalError{Message: "failed to render prompt", Cause: err}
	}

	model := c.client.GenerativeModel(modelName)
	model.ResponseMIMEType = "application/json"
	if req.Temperature > 0 {
		model.SetTemperature(float32(req.Temperature))
	}
	if req.MaxOutputTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxOutputTokens))
	}

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, Classify(err, "failed to generate content")
	}

	text, err := extractTextFromResponse(resp)
	if err != nil {
		return nil, err
	}

	result, err := ParseGenerationResult(text)
	if err != nil {
		return nil, err
	}
	result.Model = modelName
	if u := resp.UsageMetadata; u != nil {
		result.Usage.PromptTokens = int(u.PromptTokenCount)
		result.Usage.CompletionTokens = int(u.CandidatesTokenCount)
		result.Usage.TotalTokens = int(u.TotalTokenCount)
	}
	return result, nil
}

// Close releases resources held by the client
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// extractTextFromResponse extracts text from Gemini API response
func extractTextFromResponse(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", &TerminalError{Message: "no candidates in response"}
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonMaxTokens {
		return "", &TerminalError{Message: "response truncated at max output tokens"}
	}
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", &TerminalError{Message: "no content in response"}
	}

	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}

	if len(parts) == 0 {
		return "", &TerminalError{Message: "no text parts in response"}
	}

	return strings.Join(parts, ""), nil
}
