package ranking

import (
	"sort"
	"time"

	"github.com/jonathan/resume-tailor/internal/types"
)

// DefaultTopK is the number of entries kept when Options.TopK is unset
const DefaultTopK = 5

// Options controls experience ranking
type Options struct {
	TopK int
	// Now anchors recency scoring; zero means time.Now()
	Now time.Time
}

type scored struct {
	ranked    types.RankedEntry
	hasSkills bool
	start     time.Time
	hasStart  bool
}

// RankExperience scores every entry of the snapshot against reqs and returns
// the best TopK, highest score first. Entries without skills are kept but
// ranked after all others. Ties fall back to the more recent start date, then
// to entry type (work, project, volunteer, education), then to snapshot order.
// The returned entries point into snapshot.
func RankExperience(snapshot *types.ExperienceSnapshot, reqs *types.RequirementSet, opts Options) []types.RankedEntry {
	if snapshot == nil || len(snapshot.Entries) == 0 {
		return []types.RankedEntry{}
	}
	if reqs == nil {
		reqs = types.NewRequirementSet()
	}

	topK := opts.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	required := skillSet(reqs.RequiredSkills)
	preferred := skillSet(reqs.PreferredSkills)

	candidates := make([]scored, len(snapshot.Entries))
	for i := range snapshot.Entries {
		entry := &snapshot.Entries[i]
		start, hasStart := entry.Start()
		candidates[i] = scored{
			ranked: types.RankedEntry{
				Score: scoreEntry(entry, required, preferred, now),
				Index: i,
				Entry: entry,
			},
			hasSkills: len(entrySkills(entry)) > 0,
			start:     start,
			hasStart:  hasStart,
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return less(candidates[i], candidates[j])
	})

	if len(candidates) > topK {
		candidates = candidates[:topK]
	}

	out := make([]types.RankedEntry, len(candidates))
	for i, c := range candidates {
		out[i] = c.ranked
	}
	return out
}

func less(a, b scored) bool {
	if a.hasSkills != b.hasSkills {
		return a.hasSkills
	}
	if a.ranked.Score != b.ranked.Score {
		return a.ranked.Score > b.ranked.Score
	}
	if a.hasStart != b.hasStart {
		return a.hasStart
	}
	if !a.start.Equal(b.start) {
		return a.start.After(b.start)
	}
	pa, pb := a.ranked.Entry.Type.Priority(), b.ranked.Entry.Type.Priority()
	if pa != pb {
		return pa < pb
	}
	return a.ranked.Index < b.ranked.Index
}
