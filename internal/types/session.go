// Package types provides type definitions for structured data used throughout the resume-tailor system.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a tailoring session
type Status int

// Status values. The zero value is invalid so an unset status never
// serializes as a real state.
const (
	StatusUnknown Status = iota
	StatusPending
	StatusProcessing
	StatusCompleted
	StatusFailed
)

// External representations. Consumers depend on the exact casing.
var statusNames = map[Status]string{
	StatusPending:    "PENDING",
	StatusProcessing: "PROCESSING",
	StatusCompleted:  "COMPLETED",
	StatusFailed:     "FAILED",
}

// ParseStatus maps an external status string to a Status.
// Only the exact upper-case names are accepted.
func ParseStatus(s string) (Status, error) {
	for status, name := range statusNames {
		if name == s {
			return status, nil
		}
	}
	return StatusUnknown, fmt.Errorf("unknown session status %q", s)
}

// String returns the external representation of the status
func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

// Valid reports whether s is one of the defined states
func (s Status) Valid() bool {
	_, ok := statusNames[s]
	return ok
}

// IsTerminal reports whether no further transition is allowed
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// MarshalJSON implements json.Marshaler
func (s Status) MarshalJSON() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("cannot marshal invalid status %d", int(s))
	}
	return json.Marshal(s.String())
}

// UnmarshalJSON implements json.Unmarshaler
func (s *Status) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseStatus(name)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// TailoringSession is one request to tailor resume content for a job.
// Content and ATS are populated together or not at all.
type TailoringSession struct {
	ID                  uuid.UUID          `json:"id"`
	OwnerID             uuid.UUID          `json:"owner_id"`
	Status              Status             `json:"status"`
	Version             int64              `json:"version"`
	Attempts            int                `json:"attempts"`
	Job                 JobSnapshot        `json:"job"`
	Experience          ExperienceSnapshot `json:"experience"`
	Preferences         Preferences        `json:"preferences"`
	Content             *TailoredContent   `json:"content,omitempty"`
	ATS                 *ATSMetadata       `json:"ats,omitempty"`
	Usage               Usage              `json:"usage"`
	Trace               []TraceEntry       `json:"trace,omitempty"`
	FailureReason       string             `json:"failure_reason,omitempty"`
	FailureStage        string             `json:"failure_stage,omitempty"`
	CreatedAt           time.Time          `json:"created_at"`
	UpdatedAt           time.Time          `json:"updated_at"`
	StartedProcessingAt *time.Time         `json:"started_processing_at,omitempty"`
	CompletedAt         *time.Time         `json:"completed_at,omitempty"`
	// RetryAt holds a PENDING retry back until the given instant
	RetryAt *time.Time `json:"retry_at,omitempty"`
}

// Clone returns a deep copy of the session
func (s *TailoringSession) Clone() *TailoringSession {
	if s == nil {
		return nil
	}
	out := *s
	out.Job = s.Job.Clone()
	out.Experience = s.Experience.Clone()
	out.Preferences = s.Preferences.Clone()
	if s.Content != nil {
		c := s.Content.Clone()
		out.Content = &c
	}
	if s.ATS != nil {
		a := s.ATS.Clone()
		out.ATS = &a
	}
	out.Trace = append([]TraceEntry(nil), s.Trace...)
	out.StartedProcessingAt = cloneTime(s.StartedProcessingAt)
	out.CompletedAt = cloneTime(s.CompletedAt)
	out.RetryAt = cloneTime(s.RetryAt)
	return &out
}

// HasResult reports whether the session carries tailored content and its score
func (s *TailoringSession) HasResult() bool {
	return s.Content != nil && s.ATS != nil
}

// JobSnapshot is the job text captured for a session. It is immutable once CapturedAt is set.
type JobSnapshot struct {
	Title      string     `json:"title,omitempty"`
	Company    string     `json:"company,omitempty"`
	SourceURL  string     `json:"source_url,omitempty"`
	RawText    string     `json:"raw_text,omitempty"`
	Text       string     `json:"text,omitempty"`
	Grounded   bool       `json:"grounded"`
	CapturedAt *time.Time `json:"captured_at,omitempty"`
}

// Captured reports whether the job text has been frozen
func (j JobSnapshot) Captured() bool {
	return j.CapturedAt != nil
}

// Clone returns a copy that shares no pointers with j
func (j JobSnapshot) Clone() JobSnapshot {
	j.CapturedAt = cloneTime(j.CapturedAt)
	return j
}

// Usage records token and word counters for a generation
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
	WordsGenerated   int `json:"words_generated"`
}

// TraceEntry is one line of a session's debug trace
type TraceEntry struct {
	Stage      string    `json:"stage"`
	Message    string    `json:"message"`
	At         time.Time `json:"at"`
	DurationMs int64     `json:"duration_ms,omitempty"`
	Error      string    `json:"error,omitempty"`
	Attempt    int       `json:"attempt"`
}

// String renders the entry the way operators read it in logs
func (e TraceEntry) String() string {
	line := fmt.Sprintf("[%s] %s: %s", e.At.UTC().Format(time.RFC3339), e.Stage, e.Message)
	if e.DurationMs > 0 {
		line += fmt.Sprintf(" (%dms)", e.DurationMs)
	}
	if e.Error != "" {
		line += " error=" + e.Error
	}
	return line
}

// FormatTrace renders a trace as newline separated entries
func FormatTrace(entries []TraceEntry) string {
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = e.String()
	}
	return strings.Join(lines, "\n")
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
