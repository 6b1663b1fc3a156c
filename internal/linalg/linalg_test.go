// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package linalg

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

func mustCSR(t *testing.T, rows, cols int, entries [][]Entry) *CSR {
	t.Helper()
	m, err := NewCSR(rows, cols, entries)
	require.NoError(t, err)
	return m
}

func TestNewCSRSortsAndDropsZeros(t *testing.T) {
	m := mustCSR(t, 2, 4, [][]Entry{
		{{Col: 3, Val: 1}, {Col: 0, Val: 2}, {Col: 1, Val: 0}},
		{},
	})
	cols, vals := m.Row(0)
	assert.Equal(t, []int{0, 3}, cols)
	assert.Equal(t, []float64{2, 1}, vals)
	assert.Equal(t, 2, m.NNZ())
	assert.Equal(t, 1.0, m.At(0, 3))
	assert.Equal(t, 0.0, m.At(0, 2))
	assert.Equal(t, 0.0, m.At(1, 0))
	assert.Equal(t, 5.0, m.FrobeniusSq())
}

func TestNewCSRRejectsBadInput(t *testing.T) {
	_, err := NewCSR(1, 2, [][]Entry{{{Col: 2, Val: 1}}})
	assert.Error(t, err)
	_, err = NewCSR(1, 2, [][]Entry{{{Col: 1, Val: 1}, {Col: 1, Val: 2}}})
	assert.Error(t, err)
	_, err = NewCSR(2, 2, [][]Entry{{}})
	assert.Error(t, err)
}

func TestMulDenseMatchesDense(t *testing.T) {
	m := mustCSR(t, 3, 2, [][]Entry{
		{{Col: 0, Val: 1}, {Col: 1, Val: 2}},
		{{Col: 1, Val: 3}},
		{},
	})
	b := mat.NewDense(2, 2, []float64{1, 2, 3, 4})

	var want mat.Dense
	want.Mul(m.Dense(), b)
	assert.True(t, mat.EqualApprox(&want, m.MulDense(b), 1e-12))

	c := mat.NewDense(3, 1, []float64{1, 1, 1})
	var wantT mat.Dense
	wantT.Mul(m.Dense().T(), c)
	assert.True(t, mat.EqualApprox(&wantT, m.TMulDense(c), 1e-12))
}

func TestSelectRowsRestrictsColumns(t *testing.T) {
	m := mustCSR(t, 3, 5, [][]Entry{
		{{Col: 0, Val: 1}},
		{{Col: 2, Val: 2}, {Col: 4, Val: 3}},
		{{Col: 4, Val: 5}},
	})
	sub, colMap := m.SelectRows([]int{1, 2})
	assert.Equal(t, []int{2, 4}, colMap)
	r, c := sub.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 2, c)
	assert.Equal(t, 2.0, sub.At(0, 0))
	assert.Equal(t, 3.0, sub.At(0, 1))
	assert.Equal(t, 5.0, sub.At(1, 1))
}

func TestNormalizeRowsKeepsZeroRows(t *testing.T) {
	d := mat.NewDense(2, 2, []float64{3, 4, 0, 0})
	NormalizeRows(d)
	assert.InDelta(t, 0.6, d.At(0, 0), 1e-12)
	assert.InDelta(t, 0.8, d.At(0, 1), 1e-12)
	assert.Equal(t, 0.0, d.At(1, 0))
}

// lowRank builds a sparse-ish rows×cols matrix of exact rank 3.
func lowRank(t *testing.T, rows, cols int) *CSR {
	t.Helper()
	rng := rand.New(rand.NewPCG(1, 2))
	basis := make([][]float64, 3)
	for b := range basis {
		basis[b] = make([]float64, cols)
		for j := b; j < cols; j += 3 {
			basis[b][j] = 1 + rng.Float64()
		}
	}
	entries := make([][]Entry, rows)
	for i := range entries {
		row := make([]float64, cols)
		for b := range basis {
			floats.AddScaled(row, float64((i+b)%4), basis[b])
		}
		for j, v := range row {
			if v != 0 {
				entries[i] = append(entries[i], Entry{Col: j, Val: v})
			}
		}
	}
	return mustCSR(t, rows, cols, entries)
}

func TestTruncatedSVDRandomizedMatchesExact(t *testing.T) {
	m := lowRank(t, 60, 40)

	exact, err := TruncatedSVD(m, 3, rand.New(rand.NewPCG(7, 7)))
	require.NoError(t, err)

	saved := exactLimit
	exactLimit = 0
	t.Cleanup(func() { exactLimit = saved })

	approx, err := TruncatedSVD(m, 3, rand.New(rand.NewPCG(7, 7)))
	require.NoError(t, err)

	require.Equal(t, 3, approx.Rank())
	for i := range exact.S {
		assert.InDelta(t, exact.S[i], approx.S[i], 1e-6*exact.S[0])
	}
	// Rank-3 input: the three components carry all the energy.
	assert.InDelta(t, m.FrobeniusSq(), approx.Energy(), 1e-6*m.FrobeniusSq())

	// Reconstruction U·S·Vᵀ reproduces the matrix.
	var rec mat.Dense
	rec.Mul(approx.Scores(), approx.V.T())
	assert.True(t, mat.EqualApprox(m.Dense(), &rec, 1e-6))
}

func TestTruncatedSVDCapsRank(t *testing.T) {
	m := mustCSR(t, 2, 3, [][]Entry{
		{{Col: 0, Val: 1}},
		{{Col: 1, Val: 2}},
	})
	s, err := TruncatedSVD(m, 200, rand.New(rand.NewPCG(1, 1)))
	require.NoError(t, err)
	assert.Equal(t, 2, s.Rank())
	assert.InDelta(t, 2.0, s.S[0], 1e-12)
	assert.InDelta(t, 1.0, s.S[1], 1e-12)
	assert.False(t, math.IsNaN(s.Energy()))
}
