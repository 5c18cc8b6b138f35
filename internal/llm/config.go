// Package llm provides the generation client used to produce tailored resume
// content, plus URL grounding for job postings supplied only as a link.
package llm

import "time"

// ModelTier represents the capability level of a model
type ModelTier string

const (
	// TierLite is for simple tasks such as grounding a job posting from a URL
	TierLite ModelTier = "lite"
	// TierStandard is for structured output
	TierStandard ModelTier = "standard"
	// TierAdvanced is for the heaviest tailoring prompts
	TierAdvanced ModelTier = "advanced"
)

// Provider represents an LLM provider
type Provider string

// ProviderGemini is the Google Gemini provider
const ProviderGemini Provider = "gemini"

// Config holds the model configuration for the generation client
type Config struct {
	Provider Provider
	Models   map[ModelTier]string

	// GenerationTier selects the model used for tailoring
	GenerationTier ModelTier
	// GroundingTier selects the model used to read job posting URLs
	GroundingTier ModelTier

	// RequestsPerMinute bounds outbound calls per process; zero disables the limit
	RequestsPerMinute int
	// Burst is the number of calls allowed at once before the limit applies
	Burst int
}

// DefaultConfig returns the default configuration (currently Gemini)
func DefaultConfig() *Config {
	return DefaultGeminiConfig()
}

// DefaultGeminiConfig returns the default Gemini configuration
func DefaultGeminiConfig() *Config {
	return &Config{
		Provider: ProviderGemini,
		Models: map[ModelTier]string{
			TierLite:     "gemini-2.5-flash-lite",
			TierStandard: "gemini-2.5-flash",
			TierAdvanced: "gemini-2.5-pro",
		},
		GenerationTier:    TierStandard,
		GroundingTier:     TierLite,
		RequestsPerMinute: 60,
		Burst:             4,
	}
}

// GetModel returns the model name for a given tier
func (c *Config) GetModel(tier ModelTier) string {
	if model, ok := c.Models[tier]; ok {
		return model
	}
	// Fallback chain: try standard, then lite
	if model, ok := c.Models[TierStandard]; ok {
		return model
	}
	if model, ok := c.Models[TierLite]; ok {
		return model
	}
	return ""
}

// WithModel returns a new Config with a specific model for a tier
func (c *Config) WithModel(tier ModelTier, model string) *Config {
	newConfig := *c
	newConfig.Models = make(map[ModelTier]string, len(c.Models)+1)
	for k, v := range c.Models {
		newConfig.Models[k] = v
	}
	newConfig.Models[tier] = model
	return &newConfig
}

// Interval returns the spacing between calls implied by RequestsPerMinute
func (c *Config) Interval() time.Duration {
	if c.RequestsPerMinute <= 0 {
		return 0
	}
	return time.Minute / time.Duration(c.RequestsPerMinute)
}
