package types

import (
	"encoding/json"
	"fmt"
)

// EducationLevel is an ordered degree floor
type EducationLevel int

// Education levels in ascending order
const (
	EducationAssociate EducationLevel = iota + 1
	EducationBachelor
	EducationMaster
	EducationPhD
)

var educationNames = map[EducationLevel]string{
	EducationAssociate: "associate",
	EducationBachelor:  "bachelor",
	EducationMaster:    "master",
	EducationPhD:       "phd",
}

// ParseEducationLevel maps a level name to an EducationLevel
func ParseEducationLevel(s string) (EducationLevel, error) {
	for level, name := range educationNames {
		if name == s {
			return level, nil
		}
	}
	return 0, fmt.Errorf("unknown education level %q", s)
}

func (l EducationLevel) String() string {
	if name, ok := educationNames[l]; ok {
		return name
	}
	return "unknown"
}

// MarshalJSON implements json.Marshaler
func (l EducationLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// UnmarshalJSON implements json.Unmarshaler
func (l *EducationLevel) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseEducationLevel(name)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// RequirementSet is the structured form of a job description.
// Slices are ordered sets in first-appearance order; RequiredSkills and
// PreferredSkills are disjoint.
type RequirementSet struct {
	Keywords        []string        `json:"keywords"`
	RequiredSkills  []string        `json:"required_skills"`
	PreferredSkills []string        `json:"preferred_skills"`
	MinYears        *int            `json:"min_years,omitempty"`
	Certifications  []string        `json:"certifications"`
	Education       *EducationLevel `json:"education,omitempty"`
}

// NewRequirementSet returns an empty set with non-nil slices
func NewRequirementSet() *RequirementSet {
	return &RequirementSet{
		Keywords:        []string{},
		RequiredSkills:  []string{},
		PreferredSkills: []string{},
		Certifications:  []string{},
	}
}

// IsEmpty reports whether nothing was recognized
func (r *RequirementSet) IsEmpty() bool {
	return r == nil || (len(r.Keywords) == 0 && len(r.RequiredSkills) == 0 &&
		len(r.PreferredSkills) == 0 && len(r.Certifications) == 0 &&
		r.MinYears == nil && r.Education == nil)
}
