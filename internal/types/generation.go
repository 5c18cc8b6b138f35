package types

// ExperienceDigest is the compact form of a ranked entry sent to the generator
type ExperienceDigest struct {
	Rank         int      `json:"rank"`
	Score        float64  `json:"score"`
	Type         string   `json:"type"`
	Title        string   `json:"title"`
	Organization string   `json:"organization,omitempty"`
	Period       string   `json:"period,omitempty"`
	Skills       []string `json:"skills"`
	Achievements []string `json:"achievements"`
}

// RequirementDigest is the requirement set as the generator sees it
type RequirementDigest struct {
	RequiredSkills  []string `json:"required_skills"`
	PreferredSkills []string `json:"preferred_skills"`
	Keywords        []string `json:"keywords"`
	Certifications  []string `json:"certifications,omitempty"`
	MinYears        *int     `json:"min_years,omitempty"`
	Education       string   `json:"education,omitempty"`
}

// PreferenceFlags are the generation preferences carried in the payload
type PreferenceFlags struct {
	Sections           []string `json:"sections"`
	Tone               string   `json:"tone"`
	MinBullets         int      `json:"min_bullets"`
	MaxBullets         int      `json:"max_bullets"`
	IncludeSummary     bool     `json:"include_summary"`
	IncludeCoverLetter bool     `json:"include_cover_letter"`
}

// GenerationRequest is the bounded payload handed to the generation client
type GenerationRequest struct {
	Instructions string             `json:"instructions"`
	JobTitle     string             `json:"job_title,omitempty"`
	Company      string             `json:"company,omitempty"`
	JobExcerpt   string             `json:"job_excerpt,omitempty"`
	Experience   []ExperienceDigest `json:"experience"`
	Requirements RequirementDigest  `json:"requirements"`
	OutputSchema string             `json:"output_schema"`
	Preferences  PreferenceFlags    `json:"preferences"`

	// Sampling settings are passed to the model, not serialized into the prompt
	Temperature     float64 `json:"-"`
	MaxOutputTokens int     `json:"-"`
}

// GenerationResult is the structured output of a generation call
type GenerationResult struct {
	Content TailoredContent `json:"content"`
	Usage   Usage           `json:"usage"`
	Model   string          `json:"model,omitempty"`
}
