// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package validate scores candidate clusterings and picks the best one.
// Distance-based partitions are scored by the silhouette coefficient;
// factorization-based subdivisions by their reconstruction error, which the
// cluster package computes and this package only ranks.
package validate

import (
	"fmt"
	"math/rand/v2"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/pdiddy/taxonomy-engine/pkg/types"
)

// rowsPerTask is the number of scored points handed to one worker at a time.
const rowsPerTask = 64

// Silhouette computes mean silhouette coefficients under Euclidean distance.
type Silhouette struct {
	// Workers bounds the goroutines used (default GOMAXPROCS).
	Workers int

	// Sample, when positive and smaller than the point count, scores only a
	// seeded random sample of points. Distances are still taken to every point.
	Sample int

	Seed uint64
}

// Score returns the mean silhouette of each labeling of points. Computing
// several labelings together shares the pairwise distances, which dominate
// the cost. Every labeling needs at least 2 and at most n-1 distinct labels.
func (s Silhouette) Score(points *mat.Dense, labelings ...[]int) ([]float64, error) {
	n, _ := points.Dims()
	rows := s.sampleRows(n)
	values, err := s.compute(points, rows, labelings)
	if err != nil {
		return nil, err
	}
	means := make([]float64, len(labelings))
	for l := range values {
		means[l] = floats.Sum(values[l]) / float64(len(rows))
	}
	return means, nil
}

// Samples returns the silhouette of every point under labels. Sample is
// ignored.
func (s Silhouette) Samples(points *mat.Dense, labels []int) ([]float64, error) {
	n, _ := points.Dims()
	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}
	values, err := s.compute(points, rows, [][]int{labels})
	if err != nil {
		return nil, err
	}
	return values[0], nil
}

type labelInfo struct {
	dense []int // labels renumbered 0..k-1
	sizes []int
}

// compute returns values[l][r], the silhouette of point rows[r] under
// labelings[l].
func (s Silhouette) compute(points *mat.Dense, rows []int, labelings [][]int) ([][]float64, error) {
	n, _ := points.Dims()
	infos := make([]labelInfo, len(labelings))
	for l, labels := range labelings {
		if len(labels) != n {
			return nil, fmt.Errorf("labeling %d has %d labels for %d points", l, len(labels), n)
		}
		dense, k := renumber(labels)
		if k < 2 || k > n-1 {
			return nil, fmt.Errorf("%w: %d clusters for %d points", types.ErrDegenerateClustering, k, n)
		}
		sizes := make([]int, k)
		for _, c := range dense {
			sizes[c]++
		}
		infos[l] = labelInfo{dense: dense, sizes: sizes}
	}

	values := make([][]float64, len(labelings))
	for l := range values {
		values[l] = make([]float64, len(rows))
	}

	workers := s.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	var g errgroup.Group
	g.SetLimit(workers)
	for start := 0; start < len(rows); start += rowsPerTask {
		start, end := start, min(start+rowsPerTask, len(rows))
		g.Go(func() error {
			dist := make([]float64, n)
			sums := make([][]float64, len(infos))
			for l, info := range infos {
				sums[l] = make([]float64, len(info.sizes))
			}
			for r := start; r < end; r++ {
				i := rows[r]
				pi := points.RawRowView(i)
				for j := 0; j < n; j++ {
					if j == i {
						dist[j] = 0
						continue
					}
					dist[j] = floats.Distance(pi, points.RawRowView(j), 2)
				}
				for l, info := range infos {
					values[l][r] = pointSilhouette(i, dist, info.dense, info.sizes, sums[l])
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return values, nil
}

// pointSilhouette returns (b-a)/max(a,b) for point i, where a is its mean
// distance to its own cluster and b the smallest mean distance to another
// cluster. Points alone in their cluster score 0.
func pointSilhouette(i int, dist []float64, labels, sizes []int, sums []float64) float64 {
	own := labels[i]
	if sizes[own] <= 1 {
		return 0
	}
	for c := range sums {
		sums[c] = 0
	}
	for j, d := range dist {
		sums[labels[j]] += d
	}
	a := sums[own] / float64(sizes[own]-1)
	b := -1.0
	for c, sum := range sums {
		if c == own {
			continue
		}
		if m := sum / float64(sizes[c]); b < 0 || m < b {
			b = m
		}
	}
	if denom := max(a, b); denom > 0 {
		return (b - a) / denom
	}
	return 0
}

func (s Silhouette) sampleRows(n int) []int {
	if s.Sample <= 0 || s.Sample >= n {
		rows := make([]int, n)
		for i := range rows {
			rows[i] = i
		}
		return rows
	}
	rng := rand.New(rand.NewPCG(s.Seed, 0x73696c686f756574))
	rows := rng.Perm(n)[:s.Sample]
	sort.Ints(rows)
	return rows
}

// renumber maps arbitrary labels onto 0..k-1 in order of first appearance.
func renumber(labels []int) ([]int, int) {
	ids := make(map[int]int)
	out := make([]int, len(labels))
	for i, l := range labels {
		id, ok := ids[l]
		if !ok {
			id = len(ids)
			ids[l] = id
		}
		out[i] = id
	}
	return out, len(ids)
}
