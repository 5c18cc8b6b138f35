package parsing

import (
	"strings"

	"github.com/jonathan/resume-tailor/internal/vocab"
)

// NormalizeSkillName maps a skill spelling to its canonical vocabulary name.
// Unknown skills are trimmed and given a leading capital when all lower case.
func NormalizeSkillName(skillName string) string {
	normalized := strings.Join(strings.Fields(skillName), " ")
	if normalized == "" {
		return ""
	}

	if canonical, ok := vocab.Default().Canonical(normalized); ok {
		return canonical
	}

	// Mixed or upper case is kept as written (acronyms, product names)
	if normalized != strings.ToLower(normalized) {
		return normalized
	}
	if !strings.Contains(normalized, " ") {
		return strings.ToUpper(normalized[:1]) + normalized[1:]
	}
	return normalized
}

// NormalizeSkills canonicalizes a skill list and removes duplicates, keeping first occurrences
func NormalizeSkills(skills []string) []string {
	out := make([]string, 0, len(skills))
	seen := make(map[string]bool, len(skills))
	for _, s := range skills {
		n := NormalizeSkillName(s)
		key := strings.ToLower(n)
		if n == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, n)
	}
	return out
}
