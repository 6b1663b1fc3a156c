// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package linalg

import (
	"errors"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	// oversample is the number of extra random directions kept by the range
	// finder beyond the requested rank.
	oversample = 10

	// powerIters is the number of subspace iterations of the range finder.
	powerIters = 5
)

// exactLimit is the largest dense size (rows*cols) factorized exactly.
// Declared as a var so tests can force the randomized path.
var exactLimit = 2_000_000

// ErrSVD is returned when the underlying dense factorization fails.
var ErrSVD = errors.New("svd did not converge")

// SVD is a rank-k factorization A ≈ U·diag(S)·Vᵀ.
type SVD struct {
	U *mat.Dense // rows × k
	S []float64  // k singular values, descending
	V *mat.Dense // cols × k
}

// Rank returns the number of retained components.
func (s SVD) Rank() int { return len(s.S) }

// Energy returns the sum of squared retained singular values.
func (s SVD) Energy() float64 { return floats.Dot(s.S, s.S) }

// Scores returns U·diag(S), the row coordinates in the latent space.
func (s SVD) Scores() *mat.Dense {
	var out mat.Dense
	out.CloneFrom(s.U)
	r, k := out.Dims()
	for i := 0; i < r; i++ {
		row := out.RawRowView(i)
		for j := 0; j < k; j++ {
			row[j] *= s.S[j]
		}
	}
	return &out
}

// TruncatedSVD factorizes m to rank min(k, rows, cols). Small matrices are
// factorized exactly; larger ones use a seeded randomized range finder with
// subspace iterations followed by an exact SVD of the projected matrix.
func TruncatedSVD(m *CSR, k int, rng *rand.Rand) (SVD, error) {
	r, c := m.Dims()
	k = min(k, r, c)
	if k < 1 {
		return SVD{}, errors.New("svd: empty matrix")
	}
	if r*c <= exactLimit || k+oversample >= min(r, c) {
		return exactSVD(m.Dense(), k)
	}
	return randomizedSVD(m, k, rng)
}

func exactSVD(a *mat.Dense, k int) (SVD, error) {
	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDThin) {
		return SVD{}, ErrSVD
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	values := svd.Values(nil)
	return truncate(&u, values, &v, k), nil
}

func randomizedSVD(m *CSR, k int, rng *rand.Rand) (SVD, error) {
	_, c := m.Dims()
	l := k + oversample

	omega := mat.NewDense(c, l, nil)
	raw := omega.RawMatrix().Data
	for i := range raw {
		raw[i] = rng.NormFloat64()
	}

	q := orthonormalize(m.MulDense(omega))
	for it := 0; it < powerIters; it++ {
		z := orthonormalize(m.TMulDense(q))
		q = orthonormalize(m.MulDense(z))
	}

	// B = Qᵀ·A, computed as (Aᵀ·Q)ᵀ so A is only touched through its rows.
	z := m.TMulDense(q)
	var b mat.Dense
	b.CloneFrom(z.T())

	small, err := exactSVD(&b, k)
	if err != nil {
		return SVD{}, err
	}
	var u mat.Dense
	u.Mul(q, small.U)
	return SVD{U: &u, S: small.S, V: small.V}, nil
}

// truncate keeps the leading k components.
func truncate(u *mat.Dense, s []float64, v *mat.Dense, k int) SVD {
	ur, _ := u.Dims()
	vr, _ := v.Dims()
	var uk, vk mat.Dense
	uk.CloneFrom(u.Slice(0, ur, 0, k))
	vk.CloneFrom(v.Slice(0, vr, 0, k))
	return SVD{U: &uk, S: append([]float64(nil), s[:k]...), V: &vk}
}

// orthonormalize returns a matrix whose columns are an orthonormal basis of
// a's column space (modified Gram-Schmidt, applied twice). Columns that
// vanish numerically are set to zero.
func orthonormalize(a *mat.Dense) *mat.Dense {
	var t mat.Dense
	t.CloneFrom(a.T())
	n, _ := t.Dims()
	for pass := 0; pass < 2; pass++ {
		for i := 0; i < n; i++ {
			vi := t.RawRowView(i)
			for j := 0; j < i; j++ {
				vj := t.RawRowView(j)
				floats.AddScaled(vi, -floats.Dot(vi, vj), vj)
			}
			norm := floats.Norm(vi, 2)
			if norm < 1e-12 {
				for x := range vi {
					vi[x] = 0
				}
				continue
			}
			floats.Scale(1/norm, vi)
		}
	}
	var out mat.Dense
	out.CloneFrom(t.T())
	return &out
}
