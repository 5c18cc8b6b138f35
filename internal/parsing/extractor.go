// Package parsing turns raw job description text into a structured requirement set.
package parsing

import (
	"bytes"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/jonathan/resume-tailor/internal/types"
	"github.com/jonathan/resume-tailor/internal/vocab"
)

// DefaultRepeatThreshold is how many mentions make an unmarked skill required
const DefaultRepeatThreshold = 2

// maxPlausibleYears discards numbers such as "founded 120 years ago"
const maxPlausibleYears = 50

var (
	sentenceEnd = regexp.MustCompile(`[.!?;](\s+|$)`)
	yearsRange  = regexp.MustCompile(`\b(\d{1,2})\s*\+?\s*(?:-|to)\s*(\d{1,2})\s*\+?\s*(?:years?|yrs?)\b`)
	yearsSingle = regexp.MustCompile(`\b(\d{1,2})\s*(\+)?\s*(?:years?|yrs?)\b`)
)

type cue int

const (
	cueNone cue = iota
	cueRequired
	cuePreferred
)

type sentence struct {
	text string
	cue  cue
}

type termStats struct {
	canonical string
	kind      vocab.TermKind
	first     int
	count     int
	required  bool
	preferred bool
}

// Extractor recognises vocabulary terms in job text. It is safe for concurrent use.
type Extractor struct {
	vocab         *vocab.Vocabulary
	terms         []vocab.Term
	requiredCues  [][]byte
	preferredCues [][]byte

	// RepeatThreshold classifies skills that no sentence marks as required or
	// preferred: at least this many mentions means required.
	RepeatThreshold int
}

// NewExtractor creates an extractor over the given vocabulary
func NewExtractor(v *vocab.Vocabulary) *Extractor {
	return &Extractor{
		vocab:           v,
		terms:           v.Terms(),
		requiredCues:    toBytes(v.RequiredCues()),
		preferredCues:   toBytes(v.PreferredCues()),
		RepeatThreshold: DefaultRepeatThreshold,
	}
}

func toBytes(in []string) [][]byte {
	out := make([][]byte, len(in))
	for i, s := range in {
		out[i] = []byte(s)
	}
	return out
}

var (
	defaultExtractorOnce sync.Once
	defaultExtractor     *Extractor
)

// ExtractRequirements parses job text with the default vocabulary
func ExtractRequirements(text string) (*types.RequirementSet, error) {
	defaultExtractorOnce.Do(func() {
		defaultExtractor = NewExtractor(vocab.Default())
	})
	return defaultExtractor.Extract(text)
}

// Extract parses job text into a RequirementSet. Empty text is an
// *ExtractionError; text without any recognised term yields an empty set.
func (e *Extractor) Extract(text string) (*types.RequirementSet, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &ExtractionError{Message: "job text is empty"}
	}

	readable, err := ReadableText(text)
	if err != nil {
		return nil, &ExtractionError{Message: "could not read HTML job text", Cause: err}
	}
	text = foldDiacritics(readable)
	if text == "" {
		return nil, &ExtractionError{Message: "job text has no readable content"}
	}

	sentences := e.segment(text)
	stats := make(map[string]*termStats)
	order := 0
	var years *int

	for _, s := range sentences {
		for _, canonical := range e.matchTerms(s.text) {
			st, ok := stats[canonical]
			if !ok {
				kind, _ := e.vocab.KindOf(canonical)
				st = &termStats{canonical: canonical, kind: kind, first: order}
				stats[canonical] = st
				order++
			}
			st.count++
			switch s.cue {
			case cueRequired:
				st.required = true
			case cuePreferred:
				st.preferred = true
			}
		}

		if y, ok := extractYears(foldCase(s.text)); ok && (years == nil || y > *years) {
			v := y
			years = &v
		}
	}

	reqs := types.NewRequirementSet()
	reqs.MinYears = years
	reqs.Education = e.extractEducation(foldCase(text))

	ordered := make([]*termStats, 0, len(stats))
	for _, st := range stats {
		ordered = append(ordered, st)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].first < ordered[j].first })

	threshold := e.RepeatThreshold
	if threshold < 1 {
		threshold = DefaultRepeatThreshold
	}

	for _, st := range ordered {
		reqs.Keywords = append(reqs.Keywords, st.canonical)
		switch st.kind {
		case vocab.KindCertification:
			reqs.Certifications = append(reqs.Certifications, st.canonical)
		case vocab.KindTechnical:
			if classifyRequired(st, threshold) {
				reqs.RequiredSkills = append(reqs.RequiredSkills, st.canonical)
			} else {
				reqs.PreferredSkills = append(reqs.PreferredSkills, st.canonical)
			}
		}
	}

	return reqs, nil
}

func classifyRequired(st *termStats, threshold int) bool {
	switch {
	case st.required:
		return true
	case st.preferred:
		return false
	default:
		return st.count >= threshold
	}
}

// segment splits text into sentences and attaches a requirement cue to each.
// A heading line ("Nice to have:") sets the cue for the lines below it until
// the next heading; a cue inside a sentence overrides the heading.
func (e *Extractor) segment(text string) []sentence {
	var out []sentence
	context := cueNone

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(line, "-*#> \t"))
		if line == "" {
			continue
		}

		if isHeading(line) {
			context = e.cueOf(line)
			out = append(out, sentence{text: line, cue: context})
			continue
		}

		for _, part := range splitSentences(line) {
			c := e.cueOf(part)
			if c == cueNone {
				c = context
			}
			out = append(out, sentence{text: part, cue: c})
		}
	}
	return out
}

func isHeading(line string) bool {
	return strings.HasSuffix(line, ":") && len(strings.Fields(line)) <= 8
}

func splitSentences(line string) []string {
	var parts []string
	start := 0
	for _, loc := range sentenceEnd.FindAllStringIndex(line, -1) {
		if p := strings.TrimSpace(line[start:loc[0]]); p != "" {
			parts = append(parts, p)
		}
		start = loc[1]
	}
	if p := strings.TrimSpace(line[start:]); p != "" {
		parts = append(parts, p)
	}
	return parts
}

func (e *Extractor) cueOf(s string) cue {
	lower := []byte(foldCase(s))
	for _, c := range e.requiredCues {
		if indexWord(lower, c, 0) >= 0 {
			return cueRequired
		}
	}
	for _, c := range e.preferredCues {
		if indexWord(lower, c, 0) >= 0 {
			return cuePreferred
		}
	}
	return cueNone
}

// matchTerms returns canonical names of the terms in s in order of position.
// Longer phrases are matched first and masked so their parts are not counted again.
func (e *Extractor) matchTerms(s string) []string {
	exact := []byte(s)
	lower := []byte(foldCase(s))

	type hit struct {
		pos       int
		canonical string
	}
	var hits []hit

	for _, term := range e.terms {
		buf := lower
		if term.CaseSensitive {
			buf = exact
		}
		phrase := []byte(term.Phrase)
		for from := 0; ; {
			idx := indexWord(buf, phrase, from)
			if idx < 0 {
				break
			}
			hits = append(hits, hit{pos: idx, canonical: term.Canonical})
			mask(exact, idx, len(phrase))
			mask(lower, idx, len(phrase))
			from = idx + len(phrase)
		}
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.canonical
	}
	return out
}

func (e *Extractor) extractEducation(lower string) *types.EducationLevel {
	buf := []byte(lower)
	for _, p := range e.vocab.EducationPhrases() {
		if indexWord(buf, []byte(p.Phrase), 0) >= 0 {
			level := p.Level
			return &level
		}
	}
	return nil
}

// extractYears returns the experience requirement stated in one sentence.
// A range contributes its upper bound, so the largest number matched wins.
// Bare "N years" needs "experience" in the same sentence to count.
func extractYears(lower string) (int, bool) {
	best, found := 0, false
	consider := func(n int) {
		if n > 0 && n <= maxPlausibleYears && (!found || n > best) {
			best, found = n, true
		}
	}

	for _, m := range yearsRange.FindAllStringSubmatch(lower, -1) {
		lo, _ := strconv.Atoi(m[1])
		hi, _ := strconv.Atoi(m[2])
		consider(max(lo, hi))
	}
	rest := yearsRange.ReplaceAllString(lower, " ")

	mentionsExperience := strings.Contains(rest, "experience")
	for _, m := range yearsSingle.FindAllStringSubmatch(rest, -1) {
		if m[2] == "" && !mentionsExperience {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		consider(n)
	}
	return best, found
}

// indexWord finds phrase in buf at or after from, requiring that it is not
// glued to a letter or digit on either side.
func indexWord(buf, phrase []byte, from int) int {
	for from <= len(buf) {
		rel := bytes.Index(buf[from:], phrase)
		if rel < 0 {
			return -1
		}
		start := from + rel
		end := start + len(phrase)
		if boundaryBefore(buf, start) && boundaryAfter(buf, end) {
			return start
		}
		from = start + 1
	}
	return -1
}

func boundaryBefore(buf []byte, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRune(buf[:i])
	return !isWordRune(r)
}

func boundaryAfter(buf []byte, i int) bool {
	if i >= len(buf) {
		return true
	}
	r, _ := utf8.DecodeRune(buf[i:])
	return !isWordRune(r)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func mask(buf []byte, start, n int) {
	for i := start; i < start+n && i < len(buf); i++ {
		buf[i] = ' '
	}
}

// foldCase lower-cases s without changing its byte length so offsets stay valid
func foldCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		l := unicode.ToLower(r)
		if utf8.RuneLen(l) != utf8.RuneLen(r) {
			l = r
		}
		b.WriteRune(l)
	}
	return b.String()
}
