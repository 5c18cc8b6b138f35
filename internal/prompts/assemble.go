package prompts

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/jonathan/resume-tailor/internal/schemas"
	"github.com/jonathan/resume-tailor/internal/types"
)

// Payload bounds
const (
	DefaultMaxBytes     = 24 * 1024
	DefaultExcerptChars = 2000
)

// AssembleOptions bounds the generation payload
type AssembleOptions struct {
	// MaxBytes is the largest allowed rendered prompt, as sent to the model
	MaxBytes int
	// ExcerptChars caps the job text excerpt; negative disables the excerpt
	ExcerptChars int
}

// PayloadTooLargeError is returned when the rendered prompt exceeds MaxBytes
// even with every experience entry dropped
type PayloadTooLargeError struct {
	Size  int
	Limit int
}

func (e *PayloadTooLargeError) Error() string {
	return fmt.Sprintf("generation prompt is %d bytes without experience entries, limit is %d", e.Size, e.Limit)
}

// Assemble builds the generation request from ranked experience, requirements
// and preferences. When the prompt Render produces from it exceeds MaxBytes,
// entries are dropped from the tail of the ranking until it fits. The result depends only
// on the inputs.
func Assemble(ranked []types.RankedEntry, reqs *types.RequirementSet, prefs types.Preferences, job types.JobSnapshot, opts AssembleOptions) (*types.GenerationRequest, error) {
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	if opts.ExcerptChars == 0 {
		opts.ExcerptChars = DefaultExcerptChars
	}
	if reqs == nil {
		reqs = types.NewRequirementSet()
	}

	instructions, err := renderInstructions(prefs)
	if err != nil {
		return nil, err
	}
	outputSchema, err := schemas.Get(schemas.GenerationResult)
	if err != nil {
		return nil, err
	}

	digests := make([]types.ExperienceDigest, 0, len(ranked))
	for i, r := range ranked {
		if r.Entry == nil {
			continue
		}
		digests = append(digests, digestEntry(i+1, r))
	}

	req := &types.GenerationRequest{
		Instructions:    instructions,
		JobTitle:        job.Title,
		Company:         job.Company,
		JobExcerpt:      excerpt(job.Text, opts.ExcerptChars),
		Requirements:    digestRequirements(reqs),
		OutputSchema:    outputSchema,
		Preferences:     preferenceFlags(prefs),
		Temperature:     prefs.Temperature,
		MaxOutputTokens: prefs.MaxOutputTokens,
	}

	for n := len(digests); n >= 0; n-- {
		req.Experience = digests[:n]
		size, err := PromptSize(req)
		if err != nil {
			return nil, err
		}
		if size <= opts.MaxBytes {
			return req, nil
		}
		if n == 0 {
			return nil, &PayloadTooLargeError{Size: size, Limit: opts.MaxBytes}
		}
	}
	// unreachable: the loop returns at n == 0
	return nil, &PayloadTooLargeError{Limit: opts.MaxBytes}
}

// PromptSize returns the number of bytes of the prompt rendered from req
func PromptSize(req *types.GenerationRequest) (int, error) {
	prompt, err := Render(req)
	if err != nil {
		return 0, err
	}
	return len(prompt), nil
}

// Render produces the prompt text sent to the model
func Render(req *types.GenerationRequest) (string, error) {
	payload, err := json.MarshalIndent(struct {
		JobTitle     string                   `json:"job_title,omitempty"`
		Company      string                   `json:"company,omitempty"`
		JobExcerpt   string                   `json:"job_excerpt,omitempty"`
		Experience   []types.ExperienceDigest `json:"experience"`
		Requirements types.RequirementDigest  `json:"requirements"`
		Preferences  types.PreferenceFlags    `json:"preferences"`
		OutputSchema json.RawMessage          `json:"output_schema"`
	}{
		JobTitle:     req.JobTitle,
		Company:      req.Company,
		JobExcerpt:   req.JobExcerpt,
		Experience:   req.Experience,
		Requirements: req.Requirements,
		Preferences:  req.Preferences,
		OutputSchema: json.RawMessage(req.OutputSchema),
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal prompt payload: %w", err)
	}

	template, err := Get(TailoringFile, "request")
	if err != nil {
		return "", err
	}
	return Format(template, map[string]string{
		"Instructions": req.Instructions,
		"Payload":      string(payload),
	}), nil
}

// RenderGrounding produces the prompt asking the model to read a job posting URL
func RenderGrounding(url string) (string, error) {
	template, err := Get(TailoringFile, "grounding")
	if err != nil {
		return "", err
	}
	return Format(template, map[string]string{"URL": url}), nil
}

func renderInstructions(prefs types.Preferences) (string, error) {
	template, err := Get(TailoringFile, "instructions")
	if err != nil {
		return "", err
	}
	summaryKey, coverKey := "summary-off", "cover-letter-off"
	if prefs.IncludeSummary {
		summaryKey = "summary-on"
	}
	if prefs.IncludeCoverLetter {
		coverKey = "cover-letter-on"
	}
	summaryRule, err := Get(TailoringFile, summaryKey)
	if err != nil {
		return "", err
	}
	coverRule, err := Get(TailoringFile, coverKey)
	if err != nil {
		return "", err
	}

	return Format(template, map[string]string{
		"MinBullets":      strconv.Itoa(prefs.MinBullets),
		"MaxBullets":      strconv.Itoa(prefs.MaxBullets),
		"Sections":        strings.Join(prefs.Sections, ", "),
		"Tone":            prefs.Tone,
		"SummaryRule":     summaryRule,
		"CoverLetterRule": coverRule,
	}), nil
}

func digestEntry(rank int, r types.RankedEntry) types.ExperienceDigest {
	e := r.Entry
	return types.ExperienceDigest{
		Rank:         rank,
		Score:        roundScore(r.Score),
		Type:         string(e.Type),
		Title:        e.Title,
		Organization: e.Organization,
		Period:       period(e),
		Skills:       append([]string{}, e.Skills...),
		Achievements: append([]string{}, e.Achievements...),
	}
}

func digestRequirements(reqs *types.RequirementSet) types.RequirementDigest {
	d := types.RequirementDigest{
		RequiredSkills:  append([]string{}, reqs.RequiredSkills...),
		PreferredSkills: append([]string{}, reqs.PreferredSkills...),
		Keywords:        append([]string{}, reqs.Keywords...),
		Certifications:  append([]string(nil), reqs.Certifications...),
		MinYears:        reqs.MinYears,
	}
	if reqs.Education != nil {
		d.Education = reqs.Education.String()
	}
	return d
}

func preferenceFlags(p types.Preferences) types.PreferenceFlags {
	return types.PreferenceFlags{
		Sections:           append([]string{}, p.Sections...),
		Tone:               p.Tone,
		MinBullets:         p.MinBullets,
		MaxBullets:         p.MaxBullets,
		IncludeSummary:     p.IncludeSummary,
		IncludeCoverLetter: p.IncludeCoverLetter,
	}
}

func period(e *types.ExperienceEntry) string {
	end := e.EndDate
	if e.Current {
		end = "present"
	}
	switch {
	case e.StartDate != "" && end != "":
		return e.StartDate + " - " + end
	case e.StartDate != "":
		return e.StartDate
	default:
		return end
	}
}

func excerpt(text string, limit int) string {
	text = strings.TrimSpace(text)
	if limit < 0 {
		return ""
	}
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return string(runes[:limit])
}

func roundScore(v float64) float64 {
	return float64(int64(v*1000+0.5)) / 1000
}
