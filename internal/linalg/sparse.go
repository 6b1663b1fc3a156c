// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package linalg holds the sparse and low-rank matrix routines shared by the
// text featurizer, the coupling embedding and the factorization step. Dense
// work is delegated to gonum; the compressed sparse row type exists because
// the TF-IDF and coupling matrices are far too sparse to store densely.
package linalg

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// CSR is a compressed sparse row matrix. Within a row, column indexes are
// strictly ascending.
type CSR struct {
	rows, cols int
	indptr     []int
	indices    []int
	data       []float64
}

// Entry is one stored value of a sparse row.
type Entry struct {
	Col int
	Val float64
}

// NewCSR builds a matrix from per-row entries. Entries within a row are
// sorted by column; zero values are dropped; a repeated column is an error.
func NewCSR(rows, cols int, entries [][]Entry) (*CSR, error) {
	if len(entries) != rows {
		return nil, fmt.Errorf("csr: got %d rows of entries, want %d", len(entries), rows)
	}
	m := &CSR{rows: rows, cols: cols, indptr: make([]int, rows+1)}
	for i, row := range entries {
		sorted := append([]Entry(nil), row...)
		sort.Slice(sorted, func(a, b int) bool { return sorted[a].Col < sorted[b].Col })
		for k, e := range sorted {
			if e.Col < 0 || e.Col >= cols {
				return nil, fmt.Errorf("csr: row %d: column %d out of range [0,%d)", i, e.Col, cols)
			}
			if k > 0 && sorted[k-1].Col == e.Col {
				return nil, fmt.Errorf("csr: row %d: repeated column %d", i, e.Col)
			}
			if e.Val == 0 {
				continue
			}
			m.indices = append(m.indices, e.Col)
			m.data = append(m.data, e.Val)
		}
		m.indptr[i+1] = len(m.indices)
	}
	return m, nil
}

// Dims returns the matrix shape.
func (m *CSR) Dims() (r, c int) { return m.rows, m.cols }

// NNZ returns the number of stored values.
func (m *CSR) NNZ() int { return len(m.data) }

// Row returns the column indexes and values of row i. The slices alias the
// matrix and must not be modified.
func (m *CSR) Row(i int) ([]int, []float64) {
	lo, hi := m.indptr[i], m.indptr[i+1]
	return m.indices[lo:hi], m.data[lo:hi]
}

// At returns the value at (i, j), zero when not stored.
func (m *CSR) At(i, j int) float64 {
	cols, vals := m.Row(i)
	k := sort.SearchInts(cols, j)
	if k < len(cols) && cols[k] == j {
		return vals[k]
	}
	return 0
}

// FrobeniusSq returns the sum of squared entries.
func (m *CSR) FrobeniusSq() float64 {
	return floats.Dot(m.data, m.data)
}

// Dense materialises the matrix.
func (m *CSR) Dense() *mat.Dense {
	d := mat.NewDense(max(m.rows, 1), max(m.cols, 1), nil)
	for i := 0; i < m.rows; i++ {
		cols, vals := m.Row(i)
		for k, j := range cols {
			d.Set(i, j, vals[k])
		}
	}
	return d
}

// MulDense returns m * b, where b has m's column count as its row count.
func (m *CSR) MulDense(b *mat.Dense) *mat.Dense {
	br, bc := b.Dims()
	if br != m.cols {
		panic(fmt.Sprintf("csr: MulDense shape mismatch %dx%d * %dx%d", m.rows, m.cols, br, bc))
	}
	out := mat.NewDense(m.rows, bc, nil)
	for i := 0; i < m.rows; i++ {
		dst := out.RawRowView(i)
		cols, vals := m.Row(i)
		for k, j := range cols {
			floats.AddScaled(dst, vals[k], b.RawRowView(j))
		}
	}
	return out
}

// TMulDense returns mᵀ * b, where b has m's row count as its row count.
func (m *CSR) TMulDense(b *mat.Dense) *mat.Dense {
	br, bc := b.Dims()
	if br != m.rows {
		panic(fmt.Sprintf("csr: TMulDense shape mismatch (%dx%d)ᵀ * %dx%d", m.rows, m.cols, br, bc))
	}
	out := mat.NewDense(m.cols, bc, nil)
	for i := 0; i < m.rows; i++ {
		src := b.RawRowView(i)
		cols, vals := m.Row(i)
		for k, j := range cols {
			floats.AddScaled(out.RawRowView(j), vals[k], src)
		}
	}
	return out
}

// SelectRows returns the sub-matrix made of the given rows, in order, with
// columns restricted to those used by at least one selected row. colMap[k]
// is the original column of the sub-matrix's column k.
func (m *CSR) SelectRows(rows []int) (sub *CSR, colMap []int) {
	used := make(map[int]struct{})
	for _, i := range rows {
		cols, _ := m.Row(i)
		for _, j := range cols {
			used[j] = struct{}{}
		}
	}
	colMap = make([]int, 0, len(used))
	for j := range used {
		colMap = append(colMap, j)
	}
	sort.Ints(colMap)
	remap := make(map[int]int, len(colMap))
	for k, j := range colMap {
		remap[j] = k
	}

	sub = &CSR{rows: len(rows), cols: len(colMap), indptr: make([]int, len(rows)+1)}
	for r, i := range rows {
		cols, vals := m.Row(i)
		for k, j := range cols {
			sub.indices = append(sub.indices, remap[j])
			sub.data = append(sub.data, vals[k])
		}
		sub.indptr[r+1] = len(sub.indices)
	}
	return sub, colMap
}

// NormalizeRows scales every row of d to unit Euclidean length. All-zero
// rows are left untouched.
func NormalizeRows(d *mat.Dense) {
	r, _ := d.Dims()
	for i := 0; i < r; i++ {
		row := d.RawRowView(i)
		if n := floats.Norm(row, 2); n > 0 {
			floats.Scale(1/n, row)
		}
	}
}

// ZeroRow sets row i of d to zero.
func ZeroRow(d *mat.Dense, i int) {
	row := d.RawRowView(i)
	for j := range row {
		row[j] = 0
	}
}
