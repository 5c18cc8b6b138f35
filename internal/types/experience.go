package types

import (
	"fmt"
	"strings"
	"time"
)

// EntryType classifies an experience entry
type EntryType string

// Entry types
const (
	EntryWork      EntryType = "work"
	EntryEducation EntryType = "education"
	EntryProject   EntryType = "project"
	EntryVolunteer EntryType = "volunteer"
)

// Priority orders entry types for ranking tie-breaks. Lower is preferred.
func (t EntryType) Priority() int {
	switch t {
	case EntryWork:
		return 0
	case EntryProject:
		return 1
	case EntryVolunteer:
		return 2
	case EntryEducation:
		return 3
	default:
		return 4
	}
}

// ExperienceEntry is a single item of a user's experience history
type ExperienceEntry struct {
	ID           string    `json:"id"`
	Type         EntryType `json:"type" validate:"required,oneof=work education project volunteer"`
	Title        string    `json:"title"`
	Organization string    `json:"organization,omitempty"`
	StartDate    string    `json:"start_date,omitempty"`
	EndDate      string    `json:"end_date,omitempty"`
	Current      bool      `json:"current,omitempty"`
	Skills       []string  `json:"skills"`
	Achievements []string  `json:"achievements"`
	Description  string    `json:"description,omitempty"`
}

// Clone returns a copy that shares no slices with e
func (e ExperienceEntry) Clone() ExperienceEntry {
	e.Skills = append([]string(nil), e.Skills...)
	e.Achievements = append([]string(nil), e.Achievements...)
	return e
}

// Start parses StartDate. ok is false when the date is missing or malformed.
func (e ExperienceEntry) Start() (time.Time, bool) {
	return ParseExperienceDate(e.StartDate)
}

// End parses EndDate. ok is false when the date is missing or malformed.
func (e ExperienceEntry) End() (time.Time, bool) {
	return ParseExperienceDate(e.EndDate)
}

// ExperienceSnapshot is an owned copy of a user's experience graph taken at
// session creation. It holds no references to live records.
type ExperienceSnapshot struct {
	Entries []ExperienceEntry `json:"entries" validate:"dive"`
}

// Clone returns a deep copy of the snapshot
func (s ExperienceSnapshot) Clone() ExperienceSnapshot {
	if s.Entries == nil {
		return ExperienceSnapshot{Entries: []ExperienceEntry{}}
	}
	out := make([]ExperienceEntry, len(s.Entries))
	for i, e := range s.Entries {
		out[i] = e.Clone()
	}
	return ExperienceSnapshot{Entries: out}
}

var experienceDateLayouts = []string{"2006-01-02", "2006-01", "2006"}

// ParseExperienceDate parses YYYY-MM-DD, YYYY-MM or YYYY dates
func ParseExperienceDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range experienceDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// RankedEntry is a relevance score plus a reference into an experience snapshot.
// It is derived per run and never persisted.
type RankedEntry struct {
	Score float64          `json:"score"`
	Index int              `json:"index"`
	Entry *ExperienceEntry `json:"-"`
}

// String is used in CLI output
func (r RankedEntry) String() string {
	if r.Entry == nil {
		return fmt.Sprintf("#%d (%.3f)", r.Index, r.Score)
	}
	return fmt.Sprintf("#%d %s (%.3f)", r.Index, r.Entry.Title, r.Score)
}
