// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package coupling

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/pdiddy/taxonomy-engine/pkg/types"
)

func docsWithRefs(refs ...[]string) []types.Document {
	docs := make([]types.Document, len(refs))
	for i, r := range refs {
		docs[i] = types.Document{ID: fmt.Sprintf("D%d", i), Title: "t", Abstract: "a", References: r}
	}
	return docs
}

// bruteForce compares every pair of restricted reference sets directly.
func bruteForce(docs []types.Document) [][]float64 {
	citers := make(map[string]int)
	sets := make([]map[string]struct{}, len(docs))
	for i, d := range docs {
		sets[i] = make(map[string]struct{})
		for _, r := range d.References {
			if _, ok := sets[i][r]; !ok {
				sets[i][r] = struct{}{}
				citers[r]++
			}
		}
	}
	for _, s := range sets {
		for r := range s {
			if citers[r] < 2 {
				delete(s, r)
			}
		}
	}

	out := make([][]float64, len(docs))
	for i := range docs {
		out[i] = make([]float64, len(docs))
		for j := range docs {
			if i == j {
				continue
			}
			inter := 0
			for r := range sets[i] {
				if _, ok := sets[j][r]; ok {
					inter++
				}
			}
			union := len(sets[i]) + len(sets[j]) - inter
			if union > 0 {
				out[i][j] = float64(inter) / float64(union)
			}
		}
	}
	return out
}

func TestBuildMatchesBruteForceOnFourDocuments(t *testing.T) {
	docs := docsWithRefs(
		[]string{"a", "b", "c", "x1"},
		[]string{"b", "c", "d"},
		[]string{"c", "d", "e", "x2", "x3"},
		[]string{"e", "a"},
	)
	net, err := Build(docs, nil)
	require.NoError(t, err)

	want := bruteForce(docs)
	for i := range docs {
		for j := range docs {
			assert.InDelta(t, want[i][j], net.At(i, j), 1e-15, "coupling(%d,%d)", i, j)
		}
	}
	// D0 restricted {a,b,c}, D1 {b,c,d}: 2 shared of 4.
	assert.InDelta(t, 0.5, net.At(0, 1), 1e-15)
	assert.Equal(t, []int{3, 3, 3, 2}, net.InCorpus)
}

func TestBuildMatchesBruteForceRandom(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	refs := make([][]string, 40)
	for i := range refs {
		for k := 0; k < 8; k++ {
			refs[i] = append(refs[i], fmt.Sprintf("R%d", rng.IntN(60)))
		}
	}
	docs := docsWithRefs(refs...)
	net, err := Build(docs, nil)
	require.NoError(t, err)

	want := bruteForce(docs)
	for i := range docs {
		for j := range docs {
			assert.InDelta(t, want[i][j], net.At(i, j), 1e-15)
		}
	}
}

func TestCouplingSymmetricWithEmptyDiagonal(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 6))
	refs := make([][]string, 30)
	for i := range refs {
		for k := 0; k < 5; k++ {
			refs[i] = append(refs[i], fmt.Sprintf("R%d", rng.IntN(25)))
		}
	}
	net, err := Build(docsWithRefs(refs...), nil)
	require.NoError(t, err)

	for i := 0; i < net.Size(); i++ {
		assert.Equal(t, 0.0, net.At(i, i))
		for j := 0; j < net.Size(); j++ {
			assert.Equal(t, net.At(i, j), net.At(j, i))
			assert.GreaterOrEqual(t, net.At(i, j), 0.0)
			assert.LessOrEqual(t, net.At(i, j), 1.0)
		}
	}
}

func TestIsolatedDocument(t *testing.T) {
	docs := docsWithRefs(
		[]string{"a", "b"},
		[]string{"a", "b"},
		nil,
		[]string{"z"},
	)
	net, err := Build(docs, nil)
	require.NoError(t, err)

	assert.True(t, net.Isolated(2))
	assert.True(t, net.Isolated(3), "a reference nobody else cites does not couple")
	assert.Equal(t, 1, net.Edges())
	assert.Equal(t, 1.0, net.At(0, 1))

	cols, _ := net.Matrix.Row(2)
	assert.Empty(t, cols)

	emb, err := net.Embed(4, 1)
	require.NoError(t, err)
	assert.Equal(t, 0.0, floats.Norm(emb.RawRowView(2), 2))
	assert.Equal(t, 0.0, floats.Norm(emb.RawRowView(3), 2))
	assert.InDelta(t, 1.0, floats.Norm(emb.RawRowView(0), 2), 1e-9)
}

func TestEmbedWithoutEdges(t *testing.T) {
	net, err := Build(docsWithRefs(nil, []string{"q"}), nil)
	require.NoError(t, err)
	emb, err := net.Embed(10, 1)
	require.NoError(t, err)
	r, _ := emb.Dims()
	assert.Equal(t, 2, r)
}

func TestSummarize(t *testing.T) {
	docs := docsWithRefs(
		[]string{"a", "b", "D3"},
		[]string{"a"},
		[]string{"c"},
		[]string{"c", "d"},
		nil,
	)
	net, err := Build(docs, nil)
	require.NoError(t, err)

	s := net.Summarize()
	assert.Equal(t, 5, s.Nodes)
	assert.Equal(t, 2, s.Edges)
	assert.InDelta(t, 0.2, s.Density, 1e-12)
	assert.Equal(t, 1, s.Isolated)
	assert.InDelta(t, 0.8, s.Coverage, 1e-12)
	assert.Equal(t, 3, s.Components)
	assert.InDelta(t, 0.4, s.LargestComponentShare, 1e-12)
	assert.InDelta(t, 7.0/5.0, s.MeanReferences, 1e-12)
	assert.InDelta(t, 1.0/7.0, s.InternalCitationRate, 1e-12)
}
