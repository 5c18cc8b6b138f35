package ats

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/jonathan/resume-tailor/internal/parsing"
	"github.com/jonathan/resume-tailor/internal/types"
	"github.com/jonathan/resume-tailor/internal/vocab"
)

// Bullet length window in characters
const (
	MinBulletLength = 100
	MaxBulletLength = 180
)

// Points per bullet check; they sum to 100
const (
	actionVerbPoints     = 30
	metricPoints         = 30
	lengthPoints         = 25
	capitalizationPoints = 15
)

// ScoreBullet rates a single bullet with the default vocabulary
func ScoreBullet(text string) types.BulletQuality {
	s := &Scorer{weights: DefaultWeights(), vocab: vocab.Default()}
	return s.ScoreBullet(text)
}

// ScoreBullet rates a bullet on its opening verb, a quantified result, its
// length and its leading capital
func (s *Scorer) ScoreBullet(text string) types.BulletQuality {
	text = strings.TrimSpace(text)
	length := utf8.RuneCountInString(text)

	q := types.BulletQuality{
		Text:          text,
		HasActionVerb: s.startsWithActionVerb(text),
		HasMetric:     parsing.ContainsMetric(text),
		Capitalized:   startsWithCapital(text),
		Length:        length,
	}

	score := 0
	if q.HasActionVerb {
		score += actionVerbPoints
	}
	if q.HasMetric {
		score += metricPoints
	}
	if length >= MinBulletLength && length <= MaxBulletLength {
		score += lengthPoints
	}
	if q.Capitalized {
		score += capitalizationPoints
	}
	q.Score = float64(score)
	return q
}

func (s *Scorer) startsWithActionVerb(text string) bool {
	words := strings.Fields(text)
	if len(words) == 0 {
		return false
	}
	return s.vocab.IsActionVerb(words[0])
}

func startsWithCapital(text string) bool {
	r, _ := utf8.DecodeRuneInString(text)
	return unicode.IsUpper(r)
}
