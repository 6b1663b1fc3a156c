// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package validate

import (
	"errors"
	"math"

	"github.com/pdiddy/taxonomy-engine/pkg/types"
)

// Direction says whether larger or smaller scores are better.
type Direction int

const (
	HigherIsBetter Direction = iota
	LowerIsBetter
)

// ErrNoCandidates is returned when no candidate has a usable score.
var ErrNoCandidates = errors.New("no scored candidates")

// SelectBest returns the index of the best-scoring candidate. Candidates
// whose score lies within tolerance of the best are indistinguishable; among
// those the one with the smallest Param wins, favouring the simpler model.
// NaN scores are ignored.
func SelectBest(scores []types.CandidateScore, dir Direction, tolerance float64) (int, error) {
	return SelectBestBy(scores, dir, tolerance, func(a, b types.CandidateScore) bool {
		return a.Param < b.Param
	})
}

// SelectBestBy is SelectBest with a custom preference among
// indistinguishable candidates: prefer(a, b) reports whether a should win
// over b.
func SelectBestBy(scores []types.CandidateScore, dir Direction, tolerance float64, prefer func(a, b types.CandidateScore) bool) (int, error) {
	best := -1
	for i, c := range scores {
		if math.IsNaN(c.Score) {
			continue
		}
		if best < 0 || better(c.Score, scores[best].Score, dir) {
			best = i
		}
	}
	if best < 0 {
		return -1, ErrNoCandidates
	}

	pick := best
	for i, c := range scores {
		if math.IsNaN(c.Score) || math.Abs(c.Score-scores[best].Score) > tolerance {
			continue
		}
		if prefer(c, scores[pick]) {
			pick = i
		}
	}
	return pick, nil
}

func better(a, b float64, dir Direction) bool {
	if dir == LowerIsBetter {
		return a < b
	}
	return a > b
}
