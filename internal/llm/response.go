package llm

import (
	"encoding/json"
	"strings"

	"github.com/jonathan/resume-tailor/internal/schemas"
	"github.com/jonathan/resume-tailor/internal/types"
)

// ParseGenerationResult validates a raw model reply against the generation
// result schema and maps it to tailored content. Any violation is terminal.
func ParseGenerationResult(raw string) (*types.GenerationResult, error) {
	cleaned := CleanJSONBlock(raw)
	if cleaned == "" {
		return nil, &TerminalError{Message: "empty model response"}
	}

	if err := schemas.Validate(schemas.GenerationResult, cleaned); err != nil {
		return nil, &TerminalError{Message: "model response does not match schema", Cause: err}
	}

	var content types.TailoredContent
	if err := json.Unmarshal([]byte(cleaned), &content); err != nil {
		return nil, &TerminalError{Message: "failed to decode model response", Cause: err}
	}

	normalizeContent(&content)
	return &types.GenerationResult{Content: content}, nil
}

// normalizeContent trims text, drops empty bullets and rebuilds the flat
// bullet list in section order
func normalizeContent(c *types.TailoredContent) {
	c.Title = strings.TrimSpace(c.Title)
	c.Summary = strings.TrimSpace(c.Summary)
	c.CoverLetter = strings.TrimSpace(c.CoverLetter)

	for i := range c.Sections {
		c.Sections[i].Name = strings.TrimSpace(c.Sections[i].Name)
		c.Sections[i].Bullets = trimAll(c.Sections[i].Bullets)
	}
	c.Bullets = trimAll(c.Bullets)
	c.Bullets = c.AllBullets()
	if c.Bullets == nil {
		c.Bullets = []string{}
	}
	c.Suggestions = trimAll(c.Suggestions)
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
