// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fusion combines the text and citation feature spaces into one
// representation for distance-based clustering.
//
// Both inputs have unit-length (or zero) rows. Row i of the fused matrix is
// [√w_t · text_i, √w_c · coupling_i], so the squared Euclidean distance
// between two fused rows is w_t·d²_text + w_c·d²_coupling: a w_t share of
// the dissimilarity is text-driven and a w_c share citation-driven.
package fusion

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/pdiddy/taxonomy-engine/pkg/types"
)

// NewWeights returns the pair (wt, 1-wt) after validating it.
func NewWeights(wt float64) (types.Weights, error) {
	w := types.Weights{Text: wt, Citation: 1 - wt}
	if err := w.Validate(); err != nil {
		return types.Weights{}, err
	}
	return w, nil
}

// Fuse concatenates the weighted text and coupling rows. It rejects an
// invalid weight pair before doing any work.
func Fuse(text, coupling mat.Matrix, w types.Weights) (*mat.Dense, error) {
	if err := w.Validate(); err != nil {
		return nil, types.NewStageError(types.StageFusion, "weights in [0,1] summing to 1", err)
	}
	tr, tc := text.Dims()
	cr, cc := coupling.Dims()
	if tr != cr {
		return nil, types.NewStageError(types.StageFusion, "matching row counts",
			fmt.Errorf("text has %d rows, coupling has %d", tr, cr))
	}

	st, sc := math.Sqrt(w.Text), math.Sqrt(w.Citation)
	out := mat.NewDense(tr, tc+cc, nil)
	for i := 0; i < tr; i++ {
		row := out.RawRowView(i)
		for j := 0; j < tc; j++ {
			row[j] = st * text.At(i, j)
		}
		for j := 0; j < cc; j++ {
			row[tc+j] = sc * coupling.At(i, j)
		}
	}
	return out, nil
}
