// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package textfeat

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/pdiddy/taxonomy-engine/internal/linalg"
)

// Vocabulary is the set of stems that survived the document-frequency
// filters, in lexical order. Column j of the TF-IDF matrix is Terms[j].
type Vocabulary struct {
	// Terms holds the stems.
	Terms []string

	// Labels holds the most frequent surface form of each stem.
	Labels []string

	// DF holds each term's document frequency.
	DF []int

	index map[string]int
}

// Len returns the vocabulary size.
func (v *Vocabulary) Len() int { return len(v.Terms) }

// Lookup returns the column of stem.
func (v *Vocabulary) Lookup(stem string) (int, bool) {
	j, ok := v.index[stem]
	return j, ok
}

// buildVocabulary keeps stems occurring in at least minDF documents and in
// no more than maxDF of the n documents.
func buildVocabulary(docs [][]Token, minDF int, maxDF float64) *Vocabulary {
	df := make(map[string]int)
	surface := make(map[string]map[string]int)
	for _, toks := range docs {
		seen := make(map[string]struct{}, len(toks))
		for _, tok := range toks {
			forms := surface[tok.Stem]
			if forms == nil {
				forms = make(map[string]int)
				surface[tok.Stem] = forms
			}
			forms[tok.Surface]++
			if _, ok := seen[tok.Stem]; ok {
				continue
			}
			seen[tok.Stem] = struct{}{}
			df[tok.Stem]++
		}
	}

	maxCount := maxDF * float64(len(docs))
	v := &Vocabulary{index: make(map[string]int)}
	for stem, n := range df {
		if n < minDF || float64(n) > maxCount {
			continue
		}
		v.Terms = append(v.Terms, stem)
	}
	sort.Strings(v.Terms)

	v.Labels = make([]string, len(v.Terms))
	v.DF = make([]int, len(v.Terms))
	for j, stem := range v.Terms {
		v.index[stem] = j
		v.DF[j] = df[stem]
		v.Labels[j] = dominantForm(surface[stem])
	}
	return v
}

// dominantForm returns the most frequent surface form, ties broken lexically.
func dominantForm(forms map[string]int) string {
	best, bestN := "", -1
	for f, n := range forms {
		if n > bestN || (n == bestN && f < best) {
			best, bestN = f, n
		}
	}
	return best
}

// tfidf weights raw term counts by the smoothed inverse document frequency
// ln((1+n)/(1+df)) + 1 and scales each row to unit length.
func tfidf(docs [][]Token, v *Vocabulary) (*linalg.CSR, error) {
	n := len(docs)
	idf := make([]float64, v.Len())
	for j, d := range v.DF {
		idf[j] = math.Log(float64(1+n)/float64(1+d)) + 1
	}

	entries := make([][]linalg.Entry, n)
	for i, toks := range docs {
		counts := make(map[int]float64)
		for _, tok := range toks {
			if j, ok := v.Lookup(tok.Stem); ok {
				counts[j]++
			}
		}
		row := make([]linalg.Entry, 0, len(counts))
		for j, c := range counts {
			row = append(row, linalg.Entry{Col: j, Val: c * idf[j]})
		}
		// Column order keeps the norm's summation order, and so the run, reproducible.
		sort.Slice(row, func(a, b int) bool { return row[a].Col < row[b].Col })
		vals := make([]float64, len(row))
		for k, e := range row {
			vals[k] = e.Val
		}
		if norm := floats.Norm(vals, 2); norm > 0 {
			for k := range row {
				row[k].Val /= norm
			}
		}
		entries[i] = row
	}
	return linalg.NewCSR(n, v.Len(), entries)
}
