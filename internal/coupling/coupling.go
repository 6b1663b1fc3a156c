// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package coupling builds the bibliographic coupling network of a corpus:
// the sparse, symmetric matrix of Jaccard similarities between documents'
// reference sets.
//
// Comparing every pair of reference lists is quadratic in the corpus size.
// Instead an inverted index maps each reference to the documents citing it;
// for each document only the co-citing documents reachable through its own
// references are scored. Pairs without a shared reference are never touched
// and never stored.
package coupling

import (
	"go.uber.org/zap"

	"github.com/pdiddy/taxonomy-engine/internal/linalg"
	"github.com/pdiddy/taxonomy-engine/pkg/types"
)

// Network is the coupling network of a corpus.
type Network struct {
	// Matrix holds coupling(i, j) for pairs with a shared reference. It is
	// symmetric with an empty diagonal.
	Matrix *linalg.CSR

	// InCorpus[i] is the size of document i's in-corpus reference set: its
	// references that at least one other corpus document also cites.
	InCorpus []int

	totalRefs    int
	internalRefs int
}

// Size returns the number of documents.
func (n *Network) Size() int { return len(n.InCorpus) }

// At returns coupling(i, j).
func (n *Network) At(i, j int) float64 { return n.Matrix.At(i, j) }

// Edges returns the number of coupled (unordered) pairs.
func (n *Network) Edges() int { return n.Matrix.NNZ() / 2 }

// Isolated reports whether document i has no coupling partner.
func (n *Network) Isolated(i int) bool { return n.InCorpus[i] == 0 }

// InvertedIndex maps a reference identifier to the ascending rows of the
// documents citing it.
type InvertedIndex map[string][]int

// NewInvertedIndex indexes the (deduplicated) references of docs.
func NewInvertedIndex(docs []types.Document) InvertedIndex {
	idx := make(InvertedIndex)
	for i, d := range docs {
		for _, r := range uniqueRefs(d.References) {
			idx[r] = append(idx[r], i)
		}
	}
	return idx
}

// Build computes the coupling network of docs in O(n·r) for the index plus
// O(n·k·r) for scoring, where k is the mean number of co-citing documents
// per reference.
func Build(docs []types.Document, log *zap.Logger) (*Network, error) {
	if log == nil {
		log = zap.NewNop()
	}
	n := len(docs)
	index := NewInvertedIndex(docs)

	ids := make(map[string]struct{}, n)
	for _, d := range docs {
		ids[d.ID] = struct{}{}
	}

	refs := make([][]string, n)
	net := &Network{InCorpus: make([]int, n)}
	for i, d := range docs {
		refs[i] = uniqueRefs(d.References)
		for _, r := range refs[i] {
			net.totalRefs++
			if _, ok := ids[r]; ok {
				net.internalRefs++
			}
			if len(index[r]) > 1 {
				net.InCorpus[i]++
			}
		}
	}

	shared := make([]int, n)
	touched := make([]int, 0, 64)
	entries := make([][]linalg.Entry, n)
	candidates := 0

	for i := 0; i < n; i++ {
		for _, r := range refs[i] {
			postings := index[r]
			if len(postings) < 2 {
				continue
			}
			for _, j := range postings {
				if j == i {
					continue
				}
				if shared[j] == 0 {
					touched = append(touched, j)
				}
				shared[j]++
			}
		}

		row := make([]linalg.Entry, 0, len(touched))
		for _, j := range touched {
			union := net.InCorpus[i] + net.InCorpus[j] - shared[j]
			row = append(row, linalg.Entry{Col: j, Val: float64(shared[j]) / float64(union)})
			shared[j] = 0
		}
		candidates += len(touched)
		entries[i] = row
		touched = touched[:0]
	}

	m, err := linalg.NewCSR(n, n, entries)
	if err != nil {
		return nil, types.NewStageError(types.StageCoupling, "sparse coupling matrix", err)
	}
	net.Matrix = m

	log.Info("coupling network built",
		zap.Int("documents", n),
		zap.Int("references", len(index)),
		zap.Int("candidate_pairs", candidates),
		zap.Int("edges", net.Edges()))
	return net, nil
}

func uniqueRefs(refs []string) []string {
	seen := make(map[string]struct{}, len(refs))
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		if r == "" {
			continue
		}
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}
