// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cluster

import (
	"fmt"
	"slices"

	"gonum.org/v1/gonum/mat"

	"github.com/pdiddy/taxonomy-engine/internal/validate"
	"github.com/pdiddy/taxonomy-engine/pkg/types"
)

// StreamSelection is the level-1 partition chosen among the k1 candidates.
type StreamSelection struct {
	K      int
	Labels []int

	// Silhouette is the mean silhouette of the chosen partition.
	Silhouette float64

	// Scores holds the silhouette of every feasible candidate, by k.
	Scores []types.CandidateScore

	// Skipped lists candidates that do not fit the corpus (k > n-1).
	Skipped []int
}

// BestScore returns the highest candidate silhouette, which can exceed
// Silhouette when a smaller k won inside the tolerance band.
func (s *StreamSelection) BestScore() float64 {
	best := s.Silhouette
	for _, c := range s.Scores {
		best = max(best, c.Score)
	}
	return best
}

// SelectStreams builds one Ward dendrogram of the fused points, cuts it at
// every candidate k and keeps the cut with the highest silhouette. Scores
// within tolerance of the best count as equal and the smallest k wins.
func SelectStreams(points *mat.Dense, candidates []int, sil validate.Silhouette, tolerance float64) (*StreamSelection, error) {
	n, _ := points.Dims()
	ks := slices.Clone(candidates)
	slices.Sort(ks)
	ks = slices.Compact(ks)

	sel := &StreamSelection{}
	var feasible []int
	for _, k := range ks {
		if k < 2 || k > n-1 {
			sel.Skipped = append(sel.Skipped, k)
			continue
		}
		feasible = append(feasible, k)
	}
	if len(feasible) == 0 {
		return nil, types.NewStageError(types.StageL1, "2 <= k1 <= documents-1",
			fmt.Errorf("%w: no k1 candidate in %v fits %d documents", types.ErrDegenerateClustering, candidates, n))
	}

	dendro := Ward(points, sil.Workers)
	labelings := make([][]int, len(feasible))
	for i, k := range feasible {
		labels, err := dendro.Cut(k)
		if err != nil {
			return nil, types.NewStageError(types.StageL1, "dendrogram cut", err)
		}
		labelings[i] = labels
	}

	scores, err := sil.Score(points, labelings...)
	if err != nil {
		return nil, types.NewStageError(types.StageValidate, "scorable partition", err)
	}
	sel.Scores = make([]types.CandidateScore, len(feasible))
	for i, k := range feasible {
		sel.Scores[i] = types.CandidateScore{Param: float64(k), Score: scores[i]}
	}

	pick, err := validate.SelectBest(sel.Scores, validate.HigherIsBetter, tolerance)
	if err != nil {
		return nil, types.NewStageError(types.StageValidate, "scorable partition", err)
	}
	sel.K = feasible[pick]
	sel.Labels = labelings[pick]
	sel.Silhouette = scores[pick]
	return sel, nil
}
