package types

// Section is a named group of generated bullets
type Section struct {
	Name    string   `json:"name"`
	Bullets []string `json:"bullets"`
}

// TailoredContent is the generated resume content for a session
type TailoredContent struct {
	Title       string    `json:"title,omitempty"`
	Sections    []Section `json:"sections"`
	Bullets     []string  `json:"bullets"`
	Summary     string    `json:"summary,omitempty"`
	CoverLetter string    `json:"cover_letter,omitempty"`
	Suggestions []string  `json:"suggestions"`
}

// Clone returns a deep copy
func (c TailoredContent) Clone() TailoredContent {
	sections := make([]Section, len(c.Sections))
	for i, s := range c.Sections {
		sections[i] = Section{Name: s.Name, Bullets: append([]string(nil), s.Bullets...)}
	}
	c.Sections = sections
	c.Bullets = append([]string(nil), c.Bullets...)
	c.Suggestions = append([]string(nil), c.Suggestions...)
	return c
}

// AllBullets returns section bullets followed by flat bullets, without duplicates
func (c *TailoredContent) AllBullets() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(b string) {
		if b == "" || seen[b] {
			return
		}
		seen[b] = true
		out = append(out, b)
	}
	for _, s := range c.Sections {
		for _, b := range s.Bullets {
			add(b)
		}
	}
	for _, b := range c.Bullets {
		add(b)
	}
	return out
}

// BulletQuality is the per-bullet ATS check result
type BulletQuality struct {
	Text          string  `json:"text"`
	Score         float64 `json:"score"`
	HasMetric     bool    `json:"has_metric"`
	HasActionVerb bool    `json:"has_action_verb"`
	Capitalized   bool    `json:"capitalized"`
	Length        int     `json:"length"`
}

// ATSMetadata is the compatibility score of tailored content against a requirement set
type ATSMetadata struct {
	Overall               float64         `json:"overall"`
	RequiredScore         float64         `json:"required_score"`
	KeywordScore          float64         `json:"keyword_score"`
	PreferredScore        float64         `json:"preferred_score"`
	MissingRequiredSkills []string        `json:"missing_required_skills"`
	MatchedKeywords       []string        `json:"matched_keywords"`
	Bullets               []BulletQuality `json:"bullets"`
}

// Clone returns a deep copy
func (a ATSMetadata) Clone() ATSMetadata {
	a.MissingRequiredSkills = append([]string(nil), a.MissingRequiredSkills...)
	a.MatchedKeywords = append([]string(nil), a.MatchedKeywords...)
	a.Bullets = append([]BulletQuality(nil), a.Bullets...)
	return a
}
