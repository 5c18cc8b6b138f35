package parsing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/resume-tailor/internal/types"
	"github.com/jonathan/resume-tailor/internal/vocab"
)

const backendPosting = `Senior Backend Engineer

Requirements:
- 5+ years of experience with Python and Kubernetes
- Strong communication skills

Nice to have:
- GraphQL
- AWS Certified Solutions Architect
`

func TestExtractRequirements_EmptyText(t *testing.T) {
	for _, text := range []string{"", "   \n\t  "} {
		reqs, err := ExtractRequirements(text)
		assert.Nil(t, reqs)
		var extractionErr *ExtractionError
		require.True(t, errors.As(err, &extractionErr))
	}
}

func TestExtractRequirements_HeadingContext(t *testing.T) {
	reqs, err := ExtractRequirements(backendPosting)
	require.NoError(t, err)

	assert.Equal(t, []string{"Python", "Kubernetes"}, reqs.RequiredSkills)
	assert.Equal(t, []string{"GraphQL"}, reqs.PreferredSkills)
	assert.Equal(t, []string{"AWS Certified Solutions Architect"}, reqs.Certifications)
	assert.Equal(t, []string{"Python", "Kubernetes", "Communication", "GraphQL", "AWS Certified Solutions Architect"}, reqs.Keywords)
	require.NotNil(t, reqs.MinYears)
	assert.Equal(t, 5, *reqs.MinYears)
	assert.Nil(t, reqs.Education)
}

func TestExtractRequirements_SentenceCueOverridesHeading(t *testing.T) {
	reqs, err := ExtractRequirements("Requirements:\n- Go experience\n- Docker is a plus")
	require.NoError(t, err)
	assert.Equal(t, []string{"Go"}, reqs.RequiredSkills)
	assert.Equal(t, []string{"Docker"}, reqs.PreferredSkills)
}

func TestExtractRequirements_InlineCues(t *testing.T) {
	reqs, err := ExtractRequirements("Python is required. Familiarity with Terraform is preferred.")
	require.NoError(t, err)
	assert.Equal(t, []string{"Python"}, reqs.RequiredSkills)
	assert.Equal(t, []string{"Terraform"}, reqs.PreferredSkills)
}

func TestExtractRequirements_RequiredWinsOverPreferred(t *testing.T) {
	reqs, err := ExtractRequirements("Kafka preferred. Kafka is a must have for this team.")
	require.NoError(t, err)
	assert.Equal(t, []string{"Kafka"}, reqs.RequiredSkills)
	assert.Empty(t, reqs.PreferredSkills)
}

func TestExtractRequirements_RepeatedSkillDefaultsToRequired(t *testing.T) {
	reqs, err := ExtractRequirements("We build services in Python. Our Python stack runs on AWS.")
	require.NoError(t, err)
	assert.Equal(t, []string{"Python"}, reqs.RequiredSkills)
	assert.Equal(t, []string{"AWS"}, reqs.PreferredSkills)
}

func TestExtractor_RepeatThresholdIsConfigurable(t *testing.T) {
	e := NewExtractor(vocab.Default())
	e.RepeatThreshold = 3
	reqs, err := e.Extract("We build services in Python. Our Python stack runs on AWS.")
	require.NoError(t, err)
	assert.Empty(t, reqs.RequiredSkills)
	assert.Equal(t, []string{"Python", "AWS"}, reqs.PreferredSkills)
}

func TestExtractRequirements_MultiWordPhrasesFirst(t *testing.T) {
	reqs, err := ExtractRequirements("You will use Spring Boot and machine learning daily.")
	require.NoError(t, err)
	assert.Equal(t, []string{"Spring Boot", "Machine Learning"}, reqs.Keywords)
	assert.NotContains(t, reqs.Keywords, "Spring")
}

func TestExtractRequirements_SymbolTerms(t *testing.T) {
	reqs, err := ExtractRequirements("Strong C++ and C# skills required. Node.js and CI/CD experience is a plus.")
	require.NoError(t, err)
	assert.Equal(t, []string{"C++", "C#"}, reqs.RequiredSkills)
	assert.Equal(t, []string{"Node.js", "CI/CD"}, reqs.PreferredSkills)
}

func TestExtractRequirements_Aliases(t *testing.T) {
	reqs, err := ExtractRequirements("Experience with k8s and golang required")
	require.NoError(t, err)
	assert.Equal(t, []string{"Kubernetes", "Go"}, reqs.RequiredSkills)
}

func TestExtractRequirements_CaseSensitiveTerms(t *testing.T) {
	reqs, err := ExtractRequirements("You should go the extra mile and help the team grow.")
	require.NoError(t, err)
	assert.NotContains(t, reqs.Keywords, "Go")
}

func TestExtractRequirements_YearsMaximumWins(t *testing.T) {
	reqs, err := ExtractRequirements("3-5 years of backend experience. 7+ years in industry.")
	require.NoError(t, err)
	require.NotNil(t, reqs.MinYears)
	assert.Equal(t, 7, *reqs.MinYears)
}

func TestExtractRequirements_YearsIgnoresUnrelatedNumbers(t *testing.T) {
	reqs, err := ExtractRequirements("Our company has served clients for 30 years.")
	require.NoError(t, err)
	assert.Nil(t, reqs.MinYears)
}

func TestExtractRequirements_HighestEducationWins(t *testing.T) {
	reqs, err := ExtractRequirements("Bachelor's degree required; Master's or PhD preferred.")
	require.NoError(t, err)
	require.NotNil(t, reqs.Education)
	assert.Equal(t, types.EducationPhD, *reqs.Education)
}

func TestExtractRequirements_NoMatchesIsEmptyNotError(t *testing.T) {
	reqs, err := ExtractRequirements("We are a friendly bakery downtown.")
	require.NoError(t, err)
	assert.True(t, reqs.IsEmpty())
	assert.NotNil(t, reqs.Keywords)
	assert.NotNil(t, reqs.RequiredSkills)
	assert.NotNil(t, reqs.PreferredSkills)
	assert.NotNil(t, reqs.Certifications)
}

func TestExtractRequirements_HTMLInput(t *testing.T) {
	reqs, err := ExtractRequirements("<ul><li>Python required</li><li>Kafka preferred</li></ul>")
	require.NoError(t, err)
	assert.Equal(t, []string{"Python"}, reqs.RequiredSkills)
	assert.Equal(t, []string{"Kafka"}, reqs.PreferredSkills)
}

func TestExtractRequirements_Deterministic(t *testing.T) {
	first, err := ExtractRequirements(backendPosting)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := ExtractRequirements(backendPosting)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestExtractYears(t *testing.T) {
	tests := []struct {
		in     string
		want   int
		wantOK bool
	}{
		{"5+ years of experience", 5, true},
		{"2 to 4 years building apis", 4, true},
		{"3-5 years of experience", 5, true},
		{"5 - 3 yrs", 5, true},
		{"3 years of experience in go", 3, true},
		{"3 years in go", 0, false},
		{"10+ yrs", 10, true},
		{"120+ years of heritage", 0, false},
		{"covid-2019 years", 0, false},
	}
	for _, tt := range tests {
		got, ok := extractYears(tt.in)
		assert.Equal(t, tt.wantOK, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
