// Package vocab provides the keyword vocabulary used to recognise skills,
// certifications, action verbs and education levels. The vocabulary is
// embedded at compile time and loaded once into read-only state.
package vocab

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/jonathan/resume-tailor/internal/types"
)

//go:embed vocabulary.yaml
var vocabularyFile []byte

// TermKind classifies a recognised term
type TermKind int

// Term kinds
const (
	KindTechnical TermKind = iota
	KindSoft
	KindCertification
)

func (k TermKind) String() string {
	switch k {
	case KindTechnical:
		return "technical"
	case KindSoft:
		return "soft"
	case KindCertification:
		return "certification"
	default:
		return "unknown"
	}
}

// Term is a phrase that maps to a canonical name
type Term struct {
	// Phrase is the matching form: lower case unless CaseSensitive
	Phrase        string
	Canonical     string
	Kind          TermKind
	CaseSensitive bool
}

// EducationPhrase maps a degree phrase to its level
type EducationPhrase struct {
	Phrase string
	Level  types.EducationLevel
}

// Vocabulary is an immutable index over the vocabulary file.
// All accessors return copies.
type Vocabulary struct {
	terms         []Term
	canonical     map[string]string
	kinds         map[string]TermKind
	verbs         map[string]bool
	education     []EducationPhrase
	requiredCues  []string
	preferredCues []string
}

type vocabularyFileFormat struct {
	TechnicalSkills []string            `yaml:"technical_skills"`
	CaseSensitive   []string            `yaml:"case_sensitive"`
	SoftSkills      []string            `yaml:"soft_skills"`
	Certifications  []string            `yaml:"certifications"`
	Aliases         map[string]string   `yaml:"aliases"`
	ActionVerbs     []string            `yaml:"action_verbs"`
	Education       map[string][]string `yaml:"education"`
	RequiredCues    []string            `yaml:"required_cues"`
	PreferredCues   []string            `yaml:"preferred_cues"`
}

var (
	defaultOnce  sync.Once
	defaultVocab *Vocabulary
)

// Default returns the process-wide vocabulary built from the embedded file.
// It panics if the embedded file is malformed, which is a build defect.
func Default() *Vocabulary {
	defaultOnce.Do(func() {
		v, err := Load(vocabularyFile)
		if err != nil {
			panic(fmt.Sprintf("failed to load embedded vocabulary: %v", err))
		}
		defaultVocab = v
	})
	return defaultVocab
}

// Load parses a vocabulary document
func Load(data []byte) (*Vocabulary, error) {
	var file vocabularyFileFormat
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse vocabulary: %w", err)
	}

	v := &Vocabulary{
		canonical: make(map[string]string),
		kinds:     make(map[string]TermKind),
		verbs:     make(map[string]bool),
	}

	seen := make(map[string]bool)
	addTerm := func(phrase, canonical string, kind TermKind, caseSensitive bool) error {
		phrase = strings.TrimSpace(phrase)
		if phrase == "" {
			return fmt.Errorf("empty phrase for %q", canonical)
		}
		if !caseSensitive {
			phrase = strings.ToLower(phrase)
		}
		if seen[phrase] {
			return fmt.Errorf("duplicate phrase %q", phrase)
		}
		seen[phrase] = true
		v.terms = append(v.terms, Term{Phrase: phrase, Canonical: canonical, Kind: kind, CaseSensitive: caseSensitive})
		v.canonical[strings.ToLower(phrase)] = canonical
		v.kinds[canonical] = kind
		return nil
	}

	groups := []struct {
		names         []string
		kind          TermKind
		caseSensitive bool
	}{
		{file.TechnicalSkills, KindTechnical, false},
		{file.CaseSensitive, KindTechnical, true},
		{file.SoftSkills, KindSoft, false},
		{file.Certifications, KindCertification, false},
	}
	for _, g := range groups {
		for _, name := range g.names {
			if err := addTerm(name, strings.TrimSpace(name), g.kind, g.caseSensitive); err != nil {
				return nil, err
			}
		}
	}

	aliases := make([]string, 0, len(file.Aliases))
	for alias := range file.Aliases {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)
	for _, alias := range aliases {
		target := file.Aliases[alias]
		kind, ok := v.kinds[target]
		if !ok {
			return nil, fmt.Errorf("alias %q points to unknown term %q", alias, target)
		}
		if err := addTerm(alias, target, kind, false); err != nil {
			return nil, err
		}
	}

	sort.SliceStable(v.terms, func(i, j int) bool {
		li, lj := utf8.RuneCountInString(v.terms[i].Phrase), utf8.RuneCountInString(v.terms[j].Phrase)
		if li != lj {
			return li > lj
		}
		return v.terms[i].Phrase < v.terms[j].Phrase
	})

	for _, verb := range file.ActionVerbs {
		v.verbs[strings.ToLower(strings.TrimSpace(verb))] = true
	}

	levels := map[string]types.EducationLevel{
		"phd":       types.EducationPhD,
		"master":    types.EducationMaster,
		"bachelor":  types.EducationBachelor,
		"associate": types.EducationAssociate,
	}
	for name, phrases := range file.Education {
		level, ok := levels[name]
		if !ok {
			return nil, fmt.Errorf("unknown education level %q", name)
		}
		for _, p := range phrases {
			v.education = append(v.education, EducationPhrase{Phrase: strings.ToLower(p), Level: level})
		}
	}
	sort.Slice(v.education, func(i, j int) bool {
		if v.education[i].Level != v.education[j].Level {
			return v.education[i].Level > v.education[j].Level
		}
		return v.education[i].Phrase < v.education[j].Phrase
	})

	v.requiredCues = lowerAll(file.RequiredCues)
	v.preferredCues = lowerAll(file.PreferredCues)
	return v, nil
}

// Terms returns every matchable phrase, longest first
func (v *Vocabulary) Terms() []Term {
	return append([]Term(nil), v.terms...)
}

// Canonical returns the canonical name for a skill, certification or alias
func (v *Vocabulary) Canonical(name string) (string, bool) {
	c, ok := v.canonical[strings.ToLower(strings.TrimSpace(name))]
	return c, ok
}

// Phrases returns every term that resolves to canonical, including aliases
func (v *Vocabulary) Phrases(canonical string) []Term {
	var out []Term
	for _, t := range v.terms {
		if t.Canonical == canonical {
			out = append(out, t)
		}
	}
	return out
}

// KindOf returns the kind of a canonical term
func (v *Vocabulary) KindOf(canonical string) (TermKind, bool) {
	k, ok := v.kinds[canonical]
	return k, ok
}

// IsActionVerb reports whether word is a recognised action verb in past
// tense or base form. Surrounding punctuation is ignored.
func (v *Vocabulary) IsActionVerb(word string) bool {
	w := strings.ToLower(strings.Trim(word, ".,;:!?\"'()[]"))
	if w == "" {
		return false
	}
	if v.verbs[w] {
		return true
	}
	// base forms: develop -> developed, automate -> automated
	return v.verbs[w+"ed"] || v.verbs[w+"d"]
}

// ActionVerbs returns the sorted verb list
func (v *Vocabulary) ActionVerbs() []string {
	out := make([]string, 0, len(v.verbs))
	for verb := range v.verbs {
		out = append(out, verb)
	}
	sort.Strings(out)
	return out
}

// EducationPhrases returns degree phrases, highest level first
func (v *Vocabulary) EducationPhrases() []EducationPhrase {
	return append([]EducationPhrase(nil), v.education...)
}

// RequiredCues returns phrases that mark a sentence as stating hard requirements
func (v *Vocabulary) RequiredCues() []string {
	return append([]string(nil), v.requiredCues...)
}

// PreferredCues returns phrases that mark a sentence as stating nice-to-haves
func (v *Vocabulary) PreferredCues() []string {
	return append([]string(nil), v.preferredCues...)
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, strings.ToLower(strings.TrimSpace(s)))
	}
	return out
}
