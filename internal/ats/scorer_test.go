package ats

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/resume-tailor/internal/types"
)

func requirements(required, preferred, keywords []string) *types.RequirementSet {
	r := types.NewRequirementSet()
	r.RequiredSkills = required
	r.PreferredSkills = preferred
	r.Keywords = keywords
	return r
}

func TestScore_MissingRequiredSkill(t *testing.T) {
	reqs := requirements(
		[]string{"Python", "Kubernetes"},
		[]string{"GraphQL"},
		[]string{"Python", "Kubernetes", "GraphQL"},
	)
	content := &types.TailoredContent{
		Sections: []types.Section{{
			Name:    "Highlights",
			Bullets: []string{"Built data services in Python for the billing team"},
		}},
	}

	meta := Score(reqs, content)

	assert.Equal(t, 50.0, meta.RequiredScore)
	assert.Equal(t, 0.0, meta.PreferredScore)
	assert.Equal(t, 33.33, meta.KeywordScore)
	assert.Equal(t, 40.0, meta.Overall)
	assert.Equal(t, []string{"Kubernetes"}, meta.MissingRequiredSkills)
	assert.Equal(t, []string{"Python"}, meta.MatchedKeywords)
	require.Len(t, meta.Bullets, 1)
}

func TestScore_EmptyRequirementsScoreFull(t *testing.T) {
	meta := Score(types.NewRequirementSet(), &types.TailoredContent{Bullets: []string{"Shipped things"}})

	assert.Equal(t, 100.0, meta.RequiredScore)
	assert.Equal(t, 100.0, meta.KeywordScore)
	assert.Equal(t, 100.0, meta.PreferredScore)
	assert.Equal(t, 100.0, meta.Overall)
	assert.NotNil(t, meta.MissingRequiredSkills)
	assert.Empty(t, meta.MissingRequiredSkills)
}

func TestScore_NilInputs(t *testing.T) {
	meta := Score(nil, nil)
	assert.Equal(t, 100.0, meta.Overall)
	assert.Empty(t, meta.Bullets)
}

func TestScore_MatchesAliases(t *testing.T) {
	reqs := requirements([]string{"Kubernetes", "PostgreSQL"}, nil, nil)
	content := &types.TailoredContent{
		Summary: "Runs k8s clusters backed by postgres.",
	}

	meta := Score(reqs, content)
	assert.Equal(t, 100.0, meta.RequiredScore)
	assert.Empty(t, meta.MissingRequiredSkills)
}

func TestScore_CaseSensitiveTerm(t *testing.T) {
	reqs := requirements([]string{"Go"}, nil, nil)

	meta := Score(reqs, &types.TailoredContent{Summary: "Ready to go live with services."})
	assert.Equal(t, []string{"Go"}, meta.MissingRequiredSkills)

	meta = Score(reqs, &types.TailoredContent{Summary: "Wrote services in Go."})
	assert.Empty(t, meta.MissingRequiredSkills)
}

func TestScore_IgnoresCoverLetter(t *testing.T) {
	reqs := requirements([]string{"Terraform"}, nil, nil)
	content := &types.TailoredContent{CoverLetter: "I love Terraform."}

	meta := Score(reqs, content)
	assert.Equal(t, 0.0, meta.RequiredScore)
}

func TestScore_Idempotent(t *testing.T) {
	reqs := requirements([]string{"Python", "AWS"}, []string{"Docker"}, []string{"Python", "AWS", "Docker", "Leadership"})
	content := &types.TailoredContent{
		Title:   "Senior Engineer",
		Summary: "Python engineer with AWS depth.",
		Bullets: []string{"Led migration of 40 services to AWS with zero downtime across three regions"},
	}

	first, err := json.Marshal(Score(reqs, content))
	require.NoError(t, err)
	second, err := json.Marshal(Score(reqs, content))
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

func TestScore_OverallWithinBounds(t *testing.T) {
	cases := []*types.TailoredContent{
		{},
		{Summary: "Python"},
		{Summary: "Python AWS Docker Leadership"},
	}
	reqs := requirements([]string{"Python", "AWS"}, []string{"Docker"}, []string{"Python", "AWS", "Docker", "Leadership"})
	for _, c := range cases {
		meta := Score(reqs, c)
		assert.GreaterOrEqual(t, meta.Overall, 0.0)
		assert.LessOrEqual(t, meta.Overall, 100.0)
	}
}

func TestNewScorer_CustomWeights(t *testing.T) {
	s, err := NewScorer(Weights{Required: 1})
	require.NoError(t, err)

	meta := s.Score(requirements([]string{"Python", "Rust"}, nil, []string{"Rust"}), &types.TailoredContent{Summary: "Python"})
	assert.Equal(t, 50.0, meta.Overall)
}

func TestWeights_Validate(t *testing.T) {
	assert.NoError(t, DefaultWeights().Validate())
	assert.Error(t, Weights{Required: 0.5, Keyword: 0.2}.Validate())
	assert.Error(t, Weights{Required: 1.2, Keyword: -0.2}.Validate())

	_, err := NewScorer(Weights{})
	assert.Error(t, err)
}
