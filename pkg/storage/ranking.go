package storage

import (
	"sort"

	"github.com/felixgeelhaar/taskforge/pkg/domain/history"
)

// rankArtifacts scores candidates against terms, drops those without any
// match or under q.MinRelevance, and returns at most q.EffectiveLimit()
// ordered by relevance then recency.
func rankArtifacts(candidates []history.Artifact, terms []string, q history.Query) []history.Artifact {
	out := make([]history.Artifact, 0, len(candidates))
	for _, a := range candidates {
		if q.Kind != "" && a.Kind != q.Kind {
			continue
		}
		a.Relevance = history.Relevance(terms, a.Summary+" "+string(a.Payload))
		if len(terms) > 0 && a.Relevance == 0 {
			continue
		}
		if a.Relevance < q.MinRelevance {
			continue
		}
		out = append(out, a)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Relevance != out[j].Relevance {
			return out[i].Relevance > out[j].Relevance
		}
		return out[i].RecordedAt.After(out[j].RecordedAt)
	})

	if limit := q.EffectiveLimit(); len(out) > limit {
		out = out[:limit]
	}
	return out
}
