package db

import (
	"encoding/json"
	"fmt"

	"github.com/jonathan/resume-tailor/internal/types"
)

func encodeGraph(graph *types.ExperienceSnapshot) ([]byte, error) {
	if graph == nil {
		graph = &types.ExperienceSnapshot{}
	}
	clone := graph.Clone()
	doc, err := json.Marshal(clone)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal experience graph: %w", err)
	}
	return doc, nil
}

func decodeGraph(doc []byte) (*types.ExperienceSnapshot, error) {
	var graph types.ExperienceSnapshot
	if err := json.Unmarshal(doc, &graph); err != nil {
		return nil, fmt.Errorf("failed to decode experience graph: %w", err)
	}
	if graph.Entries == nil {
		graph.Entries = []types.ExperienceEntry{}
	}
	return &graph, nil
}
