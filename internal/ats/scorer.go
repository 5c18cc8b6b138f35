// Package ats scores tailored resume content against a job's requirement set
// the way an applicant tracking system would. Scoring is pure and deterministic.
package ats

import (
	"fmt"
	"math"
	"strings"

	"github.com/jonathan/resume-tailor/internal/parsing"
	"github.com/jonathan/resume-tailor/internal/types"
	"github.com/jonathan/resume-tailor/internal/vocab"
)

// Weights of the three sub-scores in the overall score
type Weights struct {
	Required  float64 `mapstructure:"required" json:"required"`
	Keyword   float64 `mapstructure:"keyword" json:"keyword"`
	Preferred float64 `mapstructure:"preferred" json:"preferred"`
}

// DefaultWeights returns the standard 0.60/0.30/0.10 split
func DefaultWeights() Weights {
	return Weights{Required: 0.60, Keyword: 0.30, Preferred: 0.10}
}

// Validate checks that each weight is in [0,1] and that they sum to 1
func (w Weights) Validate() error {
	for name, v := range map[string]float64{"required": w.Required, "keyword": w.Keyword, "preferred": w.Preferred} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s weight %.2f outside [0,1]", name, v)
		}
	}
	if sum := w.Required + w.Keyword + w.Preferred; math.Abs(sum-1) > 1e-6 {
		return fmt.Errorf("weights sum to %.4f, want 1", sum)
	}
	return nil
}

// Scorer computes ATS metadata
type Scorer struct {
	weights Weights
	vocab   *vocab.Vocabulary
}

// NewScorer creates a scorer with the given weights over the default vocabulary
func NewScorer(w Weights) (*Scorer, error) {
	if err := w.Validate(); err != nil {
		return nil, fmt.Errorf("invalid ATS weights: %w", err)
	}
	return &Scorer{weights: w, vocab: vocab.Default()}, nil
}

// Score uses the default weights
func Score(reqs *types.RequirementSet, content *types.TailoredContent) *types.ATSMetadata {
	s := &Scorer{weights: DefaultWeights(), vocab: vocab.Default()}
	return s.Score(reqs, content)
}

// Score computes the overall and sub-scores, the gaps and per-bullet quality.
// A sub-score whose requirement list is empty is 100.
func (s *Scorer) Score(reqs *types.RequirementSet, content *types.TailoredContent) *types.ATSMetadata {
	if reqs == nil {
		reqs = types.NewRequirementSet()
	}
	if content == nil {
		content = &types.TailoredContent{}
	}
	text := contentText(content)

	matchedRequired, missingRequired := s.partition(text, reqs.RequiredSkills)
	matchedPreferred, _ := s.partition(text, reqs.PreferredSkills)
	matchedKeywords, _ := s.partition(text, reqs.Keywords)

	requiredScore := ratio(len(matchedRequired), len(reqs.RequiredSkills))
	keywordScore := ratio(len(matchedKeywords), len(reqs.Keywords))
	preferredScore := ratio(len(matchedPreferred), len(reqs.PreferredSkills))
	overall := requiredScore*s.weights.Required +
		keywordScore*s.weights.Keyword +
		preferredScore*s.weights.Preferred

	bullets := content.AllBullets()
	quality := make([]types.BulletQuality, 0, len(bullets))
	for _, b := range bullets {
		quality = append(quality, s.ScoreBullet(b))
	}

	return &types.ATSMetadata{
		Overall:               round2(clamp(overall)),
		RequiredScore:         round2(requiredScore),
		KeywordScore:          round2(keywordScore),
		PreferredScore:        round2(preferredScore),
		MissingRequiredSkills: missingRequired,
		MatchedKeywords:       matchedKeywords,
		Bullets:               quality,
	}
}

// partition splits terms into those present in text and those absent, keeping order
func (s *Scorer) partition(text string, terms []string) (matched, missing []string) {
	matched, missing = []string{}, []string{}
	for _, term := range terms {
		if s.mentions(text, term) {
			matched = append(matched, term)
		} else {
			missing = append(missing, term)
		}
	}
	return matched, missing
}

// mentions checks the term and every alias the vocabulary knows for it
func (s *Scorer) mentions(text, term string) bool {
	canonical, ok := s.vocab.Canonical(term)
	if !ok {
		return parsing.ContainsPhrase(text, term, false)
	}
	for _, p := range s.vocab.Phrases(canonical) {
		if parsing.ContainsPhrase(text, p.Phrase, p.CaseSensitive) {
			return true
		}
	}
	return false
}

// contentText joins the parts of the content an ATS reads. The cover letter
// is a separate document and is not scored.
func contentText(c *types.TailoredContent) string {
	parts := []string{c.Title, c.Summary}
	for _, sec := range c.Sections {
		parts = append(parts, sec.Bullets...)
	}
	parts = append(parts, c.Bullets...)
	return strings.Join(parts, "\n")
}

func ratio(matched, total int) float64 {
	if total == 0 {
		return 100
	}
	return float64(matched) / float64(total) * 100
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
