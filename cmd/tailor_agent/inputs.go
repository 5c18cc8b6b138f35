package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/jonathan/resume-tailor/internal/parsing"
	"github.com/jonathan/resume-tailor/internal/schemas"
	"github.com/jonathan/resume-tailor/internal/types"
)

// readJobText loads a job posting from disk. HTML is reduced to text.
func readJobText(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read job file %s: %w", path, err)
	}
	return parsing.ReadableText(string(content))
}

// readExperience loads an experience file and checks it against the
// experience_snapshot schema before decoding
func readExperience(path string) (*types.ExperienceSnapshot, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read experience file %s: %w", path, err)
	}
	if err := schemas.Validate(schemas.ExperienceSnapshot, string(content)); err != nil {
		return nil, fmt.Errorf("invalid experience file %s: %w", path, err)
	}

	var snapshot types.ExperienceSnapshot
	if err := json.Unmarshal(content, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal experience JSON: %w", err)
	}
	return &snapshot, nil
}

// readContent loads tailored content to be scored
func readContent(path string) (*types.TailoredContent, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read content file %s: %w", path, err)
	}
	var tc types.TailoredContent
	if err := json.Unmarshal(content, &tc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal content JSON: %w", err)
	}
	return &tc, nil
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}

func mustMarkRequired(cmd interface{ MarkFlagRequired(string) error }, names ...string) {
	for _, name := range names {
		if err := cmd.MarkFlagRequired(name); err != nil {
			panic(fmt.Sprintf("failed to mark %s flag as required: %v", name, err))
		}
	}
}
