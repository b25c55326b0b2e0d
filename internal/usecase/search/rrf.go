package search

import (
	"sort"

	"github.com/clipdeck/vidrank/internal/domain"
)

// rrfK is the Reciprocal Rank Fusion constant (standard value from Cormack
// et al. 2009).
const rrfK = 60

// fuseRRF merges ranked lists via Reciprocal Rank Fusion:
// score(d) = sum of 1/(rrfK + idx + 1) over the lists where d appears at
// 0-based position idx. Fusion is rank-based on purpose so BM25 scores and
// vector similarities combine without calibration. Ties break by the best
// source rank a document achieved in any list, then by id ascending. The
// payload of the first list ranking a document is kept.
func fuseRRF(lists ...[]domain.Hit) []domain.Hit {
	type scored struct {
		hit      domain.Hit
		score    float64
		bestRank int
	}

	merged := make(map[string]*scored)

	for _, list := range lists {
		for rank, h := range list {
			contribution := 1.0 / float64(rrfK+rank+1)
			if existing, ok := merged[h.VideoID]; ok {
				existing.score += contribution
				if rank < existing.bestRank {
					existing.bestRank = rank
				}
				continue
			}
			merged[h.VideoID] = &scored{hit: h, score: contribution, bestRank: rank}
		}
	}

	fused := make([]*scored, 0, len(merged))
	for _, s := range merged {
		s.hit.Score = s.score
		fused = append(fused, s)
	}

	sort.Slice(fused, func(i, j int) bool {
		if fused[i].score != fused[j].score {
			return fused[i].score > fused[j].score
		}
		if fused[i].bestRank != fused[j].bestRank {
			return fused[i].bestRank < fused[j].bestRank
		}
		return fused[i].hit.VideoID < fused[j].hit.VideoID
	})

	out := make([]domain.Hit, len(fused))
	for i, s := range fused {
		out[i] = s.hit
	}
	return out
}
