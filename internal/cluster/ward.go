// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cluster

import (
	"fmt"
	"math"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// parallelScan is the active-cluster count above which nearest-neighbour
// searches are split across workers.
var parallelScan = 2048

// Merge is one agglomeration step. A and B are the smallest member rows of
// the two merged clusters.
type Merge struct {
	A, B int
	Cost float64
}

// Dendrogram is a complete Ward agglomeration of n points, merges sorted by
// increasing cost.
type Dendrogram struct {
	n      int
	merges []Merge
}

// Merges returns the agglomeration steps in cost order.
func (d *Dendrogram) Merges() []Merge { return d.merges }

// Ward builds the Ward-linkage dendrogram of the rows of points with the
// nearest-neighbour chain algorithm. Clusters are represented by centroid
// and size; the cost of merging A and B is |A||B|/(|A|+|B|)·‖cA−cB‖², the
// increase in within-cluster sum of squares. Ties resolve to the lowest row
// so the result is deterministic.
func Ward(points *mat.Dense, workers int) *Dendrogram {
	n, dims := points.Dims()
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	w := &ward{
		centroid: make([][]float64, n),
		size:     make([]float64, n),
		active:   make([]int, n),
		workers:  workers,
	}
	for i := 0; i < n; i++ {
		w.centroid[i] = make([]float64, dims)
		copy(w.centroid[i], points.RawRowView(i))
		w.size[i] = 1
		w.active[i] = i
	}

	merges := make([]Merge, 0, max(n-1, 0))
	chain := make([]int, 0, n)
	for len(w.active) > 1 {
		if len(chain) == 0 {
			chain = append(chain, w.active[0])
		}
		top := chain[len(chain)-1]
		prev := -1
		if len(chain) > 1 {
			prev = chain[len(chain)-2]
		}
		nn, cost := w.nearest(top, prev)
		if nn != prev {
			chain = append(chain, nn)
			continue
		}
		chain = chain[:len(chain)-2]
		merges = append(merges, Merge{A: min(top, prev), B: max(top, prev), Cost: cost})
		w.merge(top, prev)
	}

	sort.SliceStable(merges, func(i, j int) bool { return merges[i].Cost < merges[j].Cost })
	return &Dendrogram{n: n, merges: merges}
}

type ward struct {
	centroid [][]float64
	size     []float64
	active   []int // ascending slot ids; a slot is the smallest row of its cluster
	workers  int
}

func (w *ward) cost(a, b int) float64 {
	ca, cb := w.centroid[a], w.centroid[b]
	var d float64
	for i := range ca {
		diff := ca[i] - cb[i]
		d += diff * diff
	}
	return w.size[a] * w.size[b] / (w.size[a] + w.size[b]) * d
}

// nearest returns the cheapest merge partner of top. prev, the previous
// chain element, wins ties so that reciprocal pairs are detected.
func (w *ward) nearest(top, prev int) (int, float64) {
	best, bestCost := -1, math.Inf(1)
	if prev >= 0 {
		best, bestCost = prev, w.cost(top, prev)
	}
	if len(w.active) < parallelScan || w.workers == 1 {
		j, c := w.scan(top, w.active)
		if c < bestCost {
			best, bestCost = j, c
		}
		return best, bestCost
	}

	chunk := (len(w.active) + w.workers - 1) / w.workers
	idx := make([]int, w.workers)
	costs := make([]float64, w.workers)
	var g errgroup.Group
	for p := 0; p < w.workers; p++ {
		lo, hi := p*chunk, min((p+1)*chunk, len(w.active))
		g.Go(func() error {
			idx[p], costs[p] = -1, math.Inf(1)
			if lo < hi {
				idx[p], costs[p] = w.scan(top, w.active[lo:hi])
			}
			return nil
		})
	}
	_ = g.Wait()
	for p := range idx {
		if idx[p] >= 0 && costs[p] < bestCost {
			best, bestCost = idx[p], costs[p]
		}
	}
	return best, bestCost
}

// scan returns the lowest slot in slots with the strictly smallest cost to top.
func (w *ward) scan(top int, slots []int) (int, float64) {
	best, bestCost := -1, math.Inf(1)
	for _, j := range slots {
		if j == top {
			continue
		}
		if c := w.cost(top, j); c < bestCost {
			best, bestCost = j, c
		}
	}
	return best, bestCost
}

// merge folds the higher slot into the lower one.
func (w *ward) merge(a, b int) {
	lo, hi := min(a, b), max(a, b)
	total := w.size[lo] + w.size[hi]
	floats.Scale(w.size[lo]/total, w.centroid[lo])
	floats.AddScaled(w.centroid[lo], w.size[hi]/total, w.centroid[hi])
	w.size[lo] = total
	w.centroid[hi] = nil

	i := sort.SearchInts(w.active, hi)
	w.active = append(w.active[:i], w.active[i+1:]...)
}

// Cut returns the flat partition into k clusters obtained by applying the
// n-k cheapest merges. Labels run 0..k-1 in order of each cluster's
// smallest member row.
func (d *Dendrogram) Cut(k int) ([]int, error) {
	if k < 1 || k > d.n {
		return nil, fmt.Errorf("cut into %d clusters: need 1 <= k <= %d", k, d.n)
	}
	parent := make([]int, d.n)
	for i := range parent {
		parent[i] = i
	}
	find := func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	for _, m := range d.merges[:d.n-k] {
		ra, rb := find(m.A), find(m.B)
		if ra == rb {
			continue
		}
		parent[max(ra, rb)] = min(ra, rb)
	}

	labels := make([]int, d.n)
	ids := make(map[int]int, k)
	for i := range labels {
		r := find(i)
		id, ok := ids[r]
		if !ok {
			id = len(ids)
			ids[r] = id
		}
		labels[i] = id
	}
	return labels, nil
}
