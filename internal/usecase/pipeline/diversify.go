package pipeline

import (
	"github.com/kailas-cloud/cityrag/internal/domain/candidate"
	"github.com/kailas-cloud/cityrag/internal/domain/snippet"
)

// Diversify caps how many snippets share a metric key. Groups are emitted in the
// order their key first appears in ranked, each keeping at most maxPerMetric members
// in rank order; the concatenation is truncated to topK.
//
// A lower-ranked snippet from an earlier group can precede a higher-ranked snippet
// from a later group. Callers rely on this ordering.
func Diversify(ranked []candidate.Candidate, topK, maxPerMetric int) []snippet.Snippet {
	if topK <= 0 || maxPerMetric <= 0 || len(ranked) == 0 {
		return []snippet.Snippet{}
	}

	var order []snippet.Group
	groups := make(map[snippet.Group][]snippet.Snippet)
	for i := range ranked {
		key := ranked[i].Snippet.Group()
		g, seen := groups[key]
		if !seen {
			order = append(order, key)
		}
		if len(g) < maxPerMetric {
			groups[key] = append(g, ranked[i].Snippet)
		}
	}

	out := make([]snippet.Snippet, 0, min(topK, len(ranked)))
	for _, key := range order {
		for _, s := range groups[key] {
			if len(out) == topK {
				return out
			}
			out = append(out, s)
		}
	}
	return out
}
