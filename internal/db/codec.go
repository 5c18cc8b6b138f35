package db

import (
	"encoding/json"
	"fmt"

	"github.com/jonathan/resume-tailor/internal/types"
)

// sessionDocs holds the JSON columns of a session row
type sessionDocs struct {
	job         []byte
	experience  []byte
	preferences []byte
	content     []byte
	ats         []byte
	usage       []byte
	trace       []byte
}

func encodeSession(s *types.TailoringSession) (*sessionDocs, error) {
	var d sessionDocs
	var err error
	if d.job, err = json.Marshal(s.Job); err != nil {
		return nil, fmt.Errorf("failed to marshal job snapshot: %w", err)
	}
	if d.experience, err = json.Marshal(s.Experience); err != nil {
		return nil, fmt.Errorf("failed to marshal experience snapshot: %w", err)
	}
	if d.preferences, err = json.Marshal(s.Preferences); err != nil {
		return nil, fmt.Errorf("failed to marshal preferences: %w", err)
	}
	if s.Content != nil {
		if d.content, err = json.Marshal(s.Content); err != nil {
			return nil, fmt.Errorf("failed to marshal content: %w", err)
		}
	}
	if s.ATS != nil {
		if d.ats, err = json.Marshal(s.ATS); err != nil {
			return nil, fmt.Errorf("failed to marshal ATS metadata: %w", err)
		}
	}
	if d.usage, err = json.Marshal(s.Usage); err != nil {
		return nil, fmt.Errorf("failed to marshal usage: %w", err)
	}
	trace := s.Trace
	if trace == nil {
		trace = []types.TraceEntry{}
	}
	if d.trace, err = json.Marshal(trace); err != nil {
		return nil, fmt.Errorf("failed to marshal trace: %w", err)
	}
	return &d, nil
}

func (d *sessionDocs) decodeInto(s *types.TailoringSession) error {
	if err := json.Unmarshal(d.job, &s.Job); err != nil {
		return fmt.Errorf("failed to decode job snapshot: %w", err)
	}
	if err := json.Unmarshal(d.experience, &s.Experience); err != nil {
		return fmt.Errorf("failed to decode experience snapshot: %w", err)
	}
	if s.Experience.Entries == nil {
		s.Experience.Entries = []types.ExperienceEntry{}
	}
	if err := json.Unmarshal(d.preferences, &s.Preferences); err != nil {
		return fmt.Errorf("failed to decode preferences: %w", err)
	}
	if len(d.content) > 0 {
		s.Content = &types.TailoredContent{}
		if err := json.Unmarshal(d.content, s.Content); err != nil {
			return fmt.Errorf("failed to decode content: %w", err)
		}
	}
	if len(d.ats) > 0 {
		s.ATS = &types.ATSMetadata{}
		if err := json.Unmarshal(d.ats, s.ATS); err != nil {
			return fmt.Errorf("failed to decode ATS metadata: %w", err)
		}
	}
	if len(d.usage) > 0 {
		if err := json.Unmarshal(d.usage, &s.Usage); err != nil {
			return fmt.Errorf("failed to decode usage: %w", err)
		}
	}
	if len(d.trace) > 0 {
		if err := json.Unmarshal(d.trace, &s.Trace); err != nil {
			return fmt.Errorf("failed to decode trace: %w", err)
		}
	}
	if len(s.Trace) == 0 {
		s.Trace = nil
	}
	return nil
}

// nullable maps an absent document to SQL NULL
func nullable(doc []byte) any {
	if doc == nil {
		return nil
	}
	return doc
}
