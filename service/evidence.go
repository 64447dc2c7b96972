package service

import (
	"sort"

	"github.com/tieubaoca/docqa-be/types"
)

// evidencePool accumulates retrieved snippets for one ask request. It is a
// value threaded through the retrieval loop, not shared mutable state: merge
// returns the updated pool. Invariants: at most one entry per chunk id,
// always holding the maximum score ever observed for that id; at most cap
// entries, lowest score evicted on overflow.
type evidencePool struct {
	cap     int
	entries []types.SourceSnippet // sorted by score descending, id ascending
}

func newEvidencePool(cap int) evidencePool {
	return evidencePool{cap: cap}
}

// merge folds new results into the pool under the keep-max-score rule.
// Merging the same snippet twice is idempotent.
func (p evidencePool) merge(results []types.SourceSnippet) evidencePool {
	merged := make(map[string]types.SourceSnippet, len(p.entries)+len(results))
	for _, e := range p.entries {
		merged[e.ID] = e
	}
	for _, r := range results {
		if r.ID == "" {
			continue
		}
		if existing, ok := merged[r.ID]; !ok || r.Score > existing.Score {
			merged[r.ID] = r
		}
	}

	entries := make([]types.SourceSnippet, 0, len(merged))
	for _, e := range merged {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].ID < entries[j].ID
	})
	if len(entries) > p.cap {
		entries = entries[:p.cap]
	}
	return evidencePool{cap: p.cap, entries: entries}
}

func (p evidencePool) len() int {
	return len(p.entries)
}

func (p evidencePool) contains(id string) bool {
	for _, e := range p.entries {
		if e.ID == id {
			return true
		}
	}
	return false
}

// topTwo returns the two best scores. With a single entry the second score
// equals the top score; with none both are zero.
func (p evidencePool) topTwo() (float64, float64) {
	switch len(p.entries) {
	case 0:
		return 0, 0
	case 1:
		return p.entries[0].Score, p.entries[0].Score
	default:
		return p.entries[0].Score, p.entries[1].Score
	}
}

// ranked returns the pooled snippets, best first.
func (p evidencePool) ranked() []types.SourceSnippet {
	return append([]types.SourceSnippet(nil), p.entries...)
}
