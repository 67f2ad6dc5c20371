package storage

import (
	"math"
	"sort"

	"github.com/scrypster/lifecache/pkg/types"
)

// CosineDistance returns 1 - cosine similarity of a and b over the keys of a.
// Zero vectors are maximally distant.
func CosineDistance(a, b map[string]float64) float64 {
	var dot, na, nb float64
	for k, va := range a {
		vb := b[k]
		dot += va * vb
		na += va * va
		nb += vb * vb
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

// RankByEmotion orders analyzed records by emotional-profile distance to
// scores and returns at most limit of them. Records without a report are
// ignored; ties keep the input order.
func RankByEmotion(records []*types.Record, scores map[string]float64, limit int) []*types.Record {
	type ranked struct {
		rec  *types.Record
		dist float64
	}

	candidates := make([]ranked, 0, len(records))
	for _, r := range records {
		if r.Report == nil {
			continue
		}
		candidates = append(candidates, ranked{rec: r, dist: CosineDistance(scores, r.Report.EmotionScores)})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].dist < candidates[j].dist
	})

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	out := make([]*types.Record, len(candidates))
	for i, c := range candidates {
		out[i] = c.rec
	}
	return out
}
