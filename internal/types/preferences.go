package types

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
)

// Defaults applied to every session's generation preferences
const (
	DefaultSection         = "Professional Highlights"
	DefaultTone            = "confident and metric-driven"
	DefaultMinBullets      = 3
	DefaultMaxBullets      = 5
	DefaultTemperature     = 0.35
	DefaultMaxOutputTokens = 900
)

var validate = validator.New()

// Preferences controls what the generator is asked to produce
type Preferences struct {
	Sections           []string `json:"sections" mapstructure:"sections" validate:"min=1,max=8,dive,required,max=80"`
	Tone               string   `json:"tone" mapstructure:"tone" validate:"max=120"`
	MinBullets         int      `json:"min_bullets" mapstructure:"min_bullets" validate:"min=1,max=10"`
	MaxBullets         int      `json:"max_bullets" mapstructure:"max_bullets" validate:"min=1,max=10,gtefield=MinBullets"`
	IncludeSummary     bool     `json:"include_summary" mapstructure:"include_summary"`
	IncludeCoverLetter bool     `json:"include_cover_letter" mapstructure:"include_cover_letter"`
	Temperature        float64  `json:"temperature" mapstructure:"temperature" validate:"gte=0,lte=2"`
	MaxOutputTokens    int      `json:"max_output_tokens" mapstructure:"max_output_tokens" validate:"min=64,max=8192"`
}

// DefaultPreferences returns the preferences used when a request specifies none
func DefaultPreferences() Preferences {
	return Preferences{
		Sections:        []string{DefaultSection},
		Tone:            DefaultTone,
		MinBullets:      DefaultMinBullets,
		MaxBullets:      DefaultMaxBullets,
		IncludeSummary:  true,
		Temperature:     DefaultTemperature,
		MaxOutputTokens: DefaultMaxOutputTokens,
	}
}

// Clone returns a copy that shares no slices with p
func (p Preferences) Clone() Preferences {
	p.Sections = append([]string(nil), p.Sections...)
	return p
}

// Validate checks field bounds
func (p Preferences) Validate() error {
	return validate.Struct(p)
}

// DecodePreferences builds Preferences from loosely typed input such as a form
// or a JSON object. Sections may be a list or a newline/comma separated string
// and numbers may arrive as strings. Missing keys keep their defaults.
func DecodePreferences(raw map[string]any) (Preferences, error) {
	prefs := DefaultPreferences()
	if len(raw) == 0 {
		return prefs, nil
	}
	if _, ok := raw["sections"]; ok {
		// decoding into a non-nil slice only overwrites a prefix
		prefs.Sections = nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       splitSectionsHook,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           &prefs,
	})
	if err != nil {
		return prefs, fmt.Errorf("failed to create preferences decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return prefs, fmt.Errorf("failed to decode preferences: %w", err)
	}

	prefs.normalize()
	return prefs, nil
}

func (p *Preferences) normalize() {
	sections := make([]string, 0, len(p.Sections))
	seen := make(map[string]bool)
	for _, s := range p.Sections {
		s = strings.TrimSpace(s)
		if s == "" || seen[strings.ToLower(s)] {
			continue
		}
		seen[strings.ToLower(s)] = true
		sections = append(sections, s)
	}
	if len(sections) == 0 {
		sections = []string{DefaultSection}
	}
	p.Sections = sections

	p.Tone = strings.TrimSpace(p.Tone)
	if p.Tone == "" {
		p.Tone = DefaultTone
	}
	if p.MinBullets < 1 {
		p.MinBullets = 1
	}
	if p.MaxBullets < p.MinBullets {
		p.MaxBullets = p.MinBullets
	}
}

func splitSectionsHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != reflect.TypeOf([]string{}) {
		return data, nil
	}
	s, _ := data.(string)
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == '\n' || r == ','
	})
	return parts, nil
}
