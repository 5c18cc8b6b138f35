// Package ranking scores experience entries against a requirement set and selects the top K.
package ranking

import (
	"strings"
	"time"

	"github.com/jonathan/resume-tailor/internal/parsing"
	"github.com/jonathan/resume-tailor/internal/types"
)

// Weights for scoring components. They sum to 1 so scores stay in [0,1].
const (
	requiredOverlapWeight  = 0.45
	preferredOverlapWeight = 0.20
	achievementWeight      = 0.20
	recencyWeight          = 0.15
)

// achievementCap is the number of quantified achievements that earns full credit
const achievementCap = 3

// recencyWindowYears is how long an entry stays relevant after it ends
const recencyWindowYears = 5.0

// scoreEntry computes the weighted relevance score of one entry
func scoreEntry(entry *types.ExperienceEntry, required, preferred map[string]bool, now time.Time) float64 {
	skills := entrySkills(entry)
	requiredFrac := overlapFraction(skills, required)
	preferredFrac := overlapFraction(skills, preferred)

	return requiredOverlapWeight*requiredFrac +
		preferredOverlapWeight*preferredFrac +
		achievementWeight*computeAchievementScore(entry) +
		recencyWeight*computeRecencyScore(entry, now)
}

// entrySkills returns the entry's canonical skill keys
func entrySkills(entry *types.ExperienceEntry) []string {
	normalized := parsing.NormalizeSkills(entry.Skills)
	keys := make([]string, len(normalized))
	for i, s := range normalized {
		keys[i] = strings.ToLower(s)
	}
	return keys
}

// overlapFraction is the share of the entry's skills found in target
func overlapFraction(skills []string, target map[string]bool) float64 {
	if len(skills) == 0 || len(target) == 0 {
		return 0
	}
	matched := 0
	for _, s := range skills {
		if target[s] {
			matched++
		}
	}
	return float64(matched) / float64(len(skills))
}

// computeAchievementScore counts quantified achievement lines, capped
func computeAchievementScore(entry *types.ExperienceEntry) float64 {
	count := 0
	for _, a := range entry.Achievements {
		if parsing.ContainsMetric(a) {
			count++
		}
	}
	if count > achievementCap {
		count = achievementCap
	}
	return float64(count) / achievementCap
}

// computeRecencyScore decays linearly from 1 to 0 over the years since the
// entry was last active. Current entries score 1; entries without dates score 0.
func computeRecencyScore(entry *types.ExperienceEntry, now time.Time) float64 {
	if entry.Current {
		return 1.0
	}
	lastActive, ok := entry.End()
	if !ok {
		lastActive, ok = entry.Start()
	}
	if !ok {
		return 0.0
	}

	years := now.Sub(lastActive).Hours() / 24 / 365
	if years <= 1 {
		return 1.0
	}
	score := 1.0 - years/recencyWindowYears
	if score < 0 {
		return 0.0
	}
	return score
}

// skillSet lower-cases a canonical skill list into a lookup set
func skillSet(skills []string) map[string]bool {
	set := make(map[string]bool, len(skills))
	for _, s := range skills {
		set[strings.ToLower(parsing.NormalizeSkillName(s))] = true
	}
	return set
}
