// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package coupling

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
	"gonum.org/v1/gonum/mat"

	"github.com/pdiddy/taxonomy-engine/internal/linalg"
	"github.com/pdiddy/taxonomy-engine/pkg/types"
)

// Graph returns the network as a weighted undirected gonum graph with one
// node per document (node id = row).
func (n *Network) Graph() *simple.WeightedUndirectedGraph {
	g := simple.NewWeightedUndirectedGraph(0, 0)
	for i := 0; i < n.Size(); i++ {
		g.AddNode(simple.Node(int64(i)))
	}
	for i := 0; i < n.Size(); i++ {
		cols, vals := n.Matrix.Row(i)
		for k, j := range cols {
			if j <= i {
				continue
			}
			g.SetWeightedEdge(g.NewWeightedEdge(simple.Node(int64(i)), simple.Node(int64(j)), vals[k]))
		}
	}
	return g
}

// Summarize reports size, density, coverage and connectivity of the network.
func (n *Network) Summarize() types.NetworkSummary {
	size := n.Size()
	s := types.NetworkSummary{Nodes: size, Edges: n.Edges()}
	if size == 0 {
		return s
	}
	if size > 1 {
		s.Density = float64(s.Edges) / (float64(size) * float64(size-1) / 2)
	}
	for i := 0; i < size; i++ {
		if n.Isolated(i) {
			s.Isolated++
		}
	}
	s.Coverage = float64(size-s.Isolated) / float64(size)

	comps := topo.ConnectedComponents(n.Graph())
	s.Components = len(comps)
	largest := 0
	for _, c := range comps {
		largest = max(largest, len(c))
	}
	s.LargestComponentShare = float64(largest) / float64(size)

	s.MeanReferences = float64(n.totalRefs) / float64(size)
	if n.totalRefs > 0 {
		s.InternalCitationRate = float64(n.internalRefs) / float64(n.totalRefs)
	}
	return s
}

// Embed returns a dims-wide dense embedding of the coupling matrix (its
// leading singular directions scaled by the singular values) with unit
// rows. Isolated documents stay at the origin, so only text features can
// place them.
func (n *Network) Embed(dims int, seed uint64) (*mat.Dense, error) {
	size := n.Size()
	dims = min(dims, size)
	if n.Matrix.NNZ() == 0 {
		return mat.NewDense(size, max(dims, 1), nil), nil
	}
	rng := rand.New(rand.NewPCG(seed, 0x636f75706c696e67))
	svd, err := linalg.TruncatedSVD(n.Matrix, dims, rng)
	if err != nil {
		return nil, types.NewStageError(types.StageCoupling, "coupling embedding", err)
	}
	emb := svd.Scores()
	for i := 0; i < size; i++ {
		if n.Isolated(i) {
			linalg.ZeroRow(emb, i)
		}
	}
	linalg.NormalizeRows(emb)
	return emb, nil
}
