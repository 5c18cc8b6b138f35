package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePreferences_Defaults(t *testing.T) {
	prefs, err := DecodePreferences(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultPreferences(), prefs)
	assert.NoError(t, prefs.Validate())
}

func TestDecodePreferences_SectionsFromString(t *testing.T) {
	prefs, err := DecodePreferences(map[string]any{
		"sections": "Experience\nProjects, Leadership,,",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Experience", "Projects", "Leadership"}, prefs.Sections)
	assert.Equal(t, DefaultTone, prefs.Tone)
	assert.True(t, prefs.IncludeSummary)
}

func TestDecodePreferences_SectionsFromList(t *testing.T) {
	prefs, err := DecodePreferences(map[string]any{
		"sections": []any{"Experience", " experience ", "Skills"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Experience", "Skills"}, prefs.Sections)
}

func TestDecodePreferences_WeakTypes(t *testing.T) {
	prefs, err := DecodePreferences(map[string]any{
		"min_bullets":          "2",
		"max_bullets":          "4",
		"include_summary":      "false",
		"include_cover_letter": true,
		"temperature":          "0.7",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, prefs.MinBullets)
	assert.Equal(t, 4, prefs.MaxBullets)
	assert.False(t, prefs.IncludeSummary)
	assert.True(t, prefs.IncludeCoverLetter)
	assert.InDelta(t, 0.7, prefs.Temperature, 1e-9)
}

func TestDecodePreferences_ClampsBulletBounds(t *testing.T) {
	prefs, err := DecodePreferences(map[string]any{
		"min_bullets": 0,
		"max_bullets": 0,
		"sections":    "",
		"tone":        "   ",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, prefs.MinBullets)
	assert.Equal(t, 1, prefs.MaxBullets)
	assert.Equal(t, []string{DefaultSection}, prefs.Sections)
	assert.Equal(t, DefaultTone, prefs.Tone)
}

func TestDecodePreferences_UnknownKey(t *testing.T) {
	_, err := DecodePreferences(map[string]any{"colour": "blue"})
	assert.Error(t, err)
}

func TestPreferences_Validate(t *testing.T) {
	prefs := DefaultPreferences()
	prefs.MaxBullets = 2
	assert.Error(t, prefs.Validate(), "max below min")

	prefs = DefaultPreferences()
	prefs.Temperature = 3
	assert.Error(t, prefs.Validate())

	prefs = DefaultPreferences()
	prefs.MaxBullets = 11
	assert.Error(t, prefs.Validate())
}
