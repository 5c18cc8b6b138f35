package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGenerationResult(t *testing.T) {
	raw := "```json\n" + `{
  "title": " Senior Data Engineer ",
  "summary": "Data engineer with a decade of pipelines.",
  "sections": [
    {"name": "Professional Highlights", "bullets": ["Built Airflow DAGs for 40 teams", "  ", "Cut costs by 20%"]},
    {"name": "Leadership", "bullets": ["Cut costs by 20%", "Mentored 6 engineers"]}
  ],
  "suggestions": ["Add a Kubernetes project"]
}` + "\n```"

	result, err := ParseGenerationResult(raw)
	require.NoError(t, err)

	c := result.Content
	assert.Equal(t, "Senior Data Engineer", c.Title)
	require.Len(t, c.Sections, 2)
	assert.Equal(t, []string{"Built Airflow DAGs for 40 teams", "Cut costs by 20%"}, c.Sections[0].Bullets)
	assert.Equal(t, []string{
		"Built Airflow DAGs for 40 teams",
		"Cut costs by 20%",
		"Mentored 6 engineers",
	}, c.Bullets)
	assert.Equal(t, []string{"Add a Kubernetes project"}, c.Suggestions)
}

func TestParseGenerationResult_SchemaViolation(t *testing.T) {
	_, err := ParseGenerationResult(`{"title": "x", "suggestions": []}`)

	var te *TerminalError
	require.ErrorAs(t, err, &te)
	assert.Contains(t, te.Message, "schema")
	assert.False(t, IsTransient(err))
}

func TestParseGenerationResult_Garbage(t *testing.T) {
	_, err := ParseGenerationResult("I could not do that.")
	var te *TerminalError
	assert.ErrorAs(t, err, &te)

	_, err = ParseGenerationResult("   ")
	assert.ErrorAs(t, err, &te)
}
