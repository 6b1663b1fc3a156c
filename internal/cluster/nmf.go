// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cluster

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/pdiddy/taxonomy-engine/internal/linalg"
)

// eps keeps multiplicative-update denominators positive.
const eps = 1e-10

// ErrZeroMatrix is returned when the matrix to factorize has no weight.
var ErrZeroMatrix = errors.New("nmf: matrix has no non-zero entries")

// NMF factorizes a non-negative sparse matrix X (m×v) as W·Hᵀ with W m×k
// and H v×k, minimising the Frobenius norm by Lee-Seung multiplicative
// updates.
type NMF struct {
	MaxIter   int
	Tolerance float64
}

// Factorization is the result of one NMF fit.
type Factorization struct {
	W *mat.Dense // document loadings, m×k
	H *mat.Dense // term loadings, v×k

	// RelError is ‖X−W·Hᵀ‖_F / ‖X‖_F of the returned factors.
	RelError float64

	Iterations int

	// Converged is false when MaxIter was reached before the relative
	// change in error fell under Tolerance. The factors are then the best
	// iterate seen.
	Converged bool
}

// Fit factorizes x with k components, initialising from rng.
func (f NMF) Fit(x *linalg.CSR, k int, rng *rand.Rand) (*Factorization, error) {
	m, v := x.Dims()
	if k < 1 || k > m {
		return nil, fmt.Errorf("nmf: %d components for %d rows", k, m)
	}
	xx := x.FrobeniusSq()
	if v == 0 || xx == 0 {
		return nil, ErrZeroMatrix
	}

	var total float64
	for i := 0; i < m; i++ {
		_, vals := x.Row(i)
		total += floats.Sum(vals)
	}
	scale := math.Sqrt(total / float64(m*v) / float64(k))
	w := randomDense(m, k, scale, rng)
	h := randomDense(v, k, scale, rng)

	wtw := mat.NewDense(k, k, nil)
	hth := mat.NewDense(k, k, nil)
	denH := mat.NewDense(v, k, nil)
	denW := mat.NewDense(m, k, nil)

	best := &Factorization{RelError: math.Inf(1)}
	prev := math.Inf(1)
	for it := 1; it <= max(f.MaxIter, 1); it++ {
		wtw.Mul(w.T(), w)
		denH.Mul(h, wtw)
		update(h, x.TMulDense(w), denH)

		xh := x.MulDense(h)
		hth.Mul(h.T(), h)
		rel := relativeError(xx, w, xh, wtw, hth)
		if rel < best.RelError {
			best.W = mat.DenseCopyOf(w)
			best.H = mat.DenseCopyOf(h)
			best.RelError = rel
			best.Iterations = it
		}
		if !math.IsInf(prev, 1) && math.Abs(prev-rel) <= f.Tolerance*prev {
			best.Converged = true
			break
		}
		prev = rel

		denW.Mul(w, hth)
		update(w, xh, denW)
	}
	return best, nil
}

// Assign returns the hard cluster of each row of W: the component with the
// largest loading, lowest index on ties. All-zero rows go to component 0.
func (f *Factorization) Assign() []int {
	m, _ := f.W.Dims()
	labels := make([]int, m)
	for i := range labels {
		row := f.W.RawRowView(i)
		best := 0
		for j, val := range row {
			if val > row[best] {
				best = j
			}
		}
		labels[i] = best
	}
	return labels
}

func randomDense(r, c int, scale float64, rng *rand.Rand) *mat.Dense {
	d := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		row := d.RawRowView(i)
		for j := range row {
			row[j] = scale * rng.Float64()
		}
	}
	return d
}

// update applies a ⊙= num / (den + eps) in place.
func update(a, num, den *mat.Dense) {
	r, _ := a.Dims()
	for i := 0; i < r; i++ {
		ar, nr, dr := a.RawRowView(i), num.RawRowView(i), den.RawRowView(i)
		for j := range ar {
			ar[j] *= nr[j] / (dr[j] + eps)
		}
	}
}

// relativeError expands ‖X−WHᵀ‖² = ‖X‖² − 2·Σ W⊙(XH) + Σ (WᵀW)⊙(HᵀH)
// so the dense reconstruction is never formed.
func relativeError(xx float64, w, xh, wtw, hth *mat.Dense) float64 {
	var cross, gram float64
	r, _ := w.Dims()
	for i := 0; i < r; i++ {
		cross += floats.Dot(w.RawRowView(i), xh.RawRowView(i))
	}
	k, _ := wtw.Dims()
	for i := 0; i < k; i++ {
		gram += floats.Dot(wtw.RawRowView(i), hth.RawRowView(i))
	}
	return math.Sqrt(math.Max(0, xx-2*cross+gram) / xx)
}
