// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package textfeat turns titles and abstracts into dense semantic vectors.
// Text is tokenised, stop words are removed and the rest Porter-stemmed;
// the corpus is weighted by TF-IDF under minimum and maximum
// document-frequency filters and reduced by truncated SVD to a fixed number
// of latent dimensions with unit-length rows.
package textfeat

import (
	"fmt"
	"math/rand/v2"
	"sort"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/pdiddy/taxonomy-engine/internal/linalg"
	"github.com/pdiddy/taxonomy-engine/pkg/types"
)

// Features is the text representation of a corpus.
type Features struct {
	// Vectors holds one L2-normalised row per document.
	Vectors *mat.Dense

	// TFIDF is the sparse term-weighted matrix the vectors derive from.
	TFIDF *linalg.CSR

	Vocab *Vocabulary

	// VarianceRetained is the share of the TF-IDF matrix's squared
	// Frobenius norm captured by the retained components.
	VarianceRetained float64
}

// Dims returns the number of latent dimensions.
func (f *Features) Dims() int {
	_, c := f.Vectors.Dims()
	return c
}

// Featurizer builds Features from documents.
type Featurizer struct {
	cfg  types.TextConfig
	seed uint64
	log  *zap.Logger
}

// New returns a featurizer. A nil logger discards output.
func New(cfg types.TextConfig, seed uint64, log *zap.Logger) *Featurizer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Featurizer{cfg: cfg, seed: seed, log: log}
}

// Fit computes the text features of docs. It fails with
// types.ErrFeatureExtraction when the vocabulary is empty after filtering.
func (f *Featurizer) Fit(docs []types.Document) (*Features, error) {
	if len(docs) == 0 {
		return nil, types.NewStageError(types.StageText, "at least one document", types.ErrEmptyCorpus)
	}

	tok := NewTokenizer(NewStopList(f.cfg.ExtraStopWords...))
	tokens := make([][]Token, len(docs))
	for i, d := range docs {
		tokens[i] = tok.Tokenize(d.Text())
	}

	vocab := buildVocabulary(tokens, f.cfg.MinDF, f.cfg.MaxDF)
	if vocab.Len() == 0 {
		return nil, types.NewStageError(types.StageText,
			fmt.Sprintf("non-empty vocabulary under min_df=%d max_df=%g", f.cfg.MinDF, f.cfg.MaxDF),
			types.ErrFeatureExtraction)
	}

	weighted, err := tfidf(tokens, vocab)
	if err != nil {
		return nil, types.NewStageError(types.StageText, "tf-idf matrix", err)
	}

	rng := rand.New(rand.NewPCG(f.seed, 0x7465787466656174))
	svd, err := linalg.TruncatedSVD(weighted, f.cfg.Dims, rng)
	if err != nil {
		return nil, types.NewStageError(types.StageText, "truncated svd", err)
	}

	vectors := svd.Scores()
	for i := range docs {
		// Documents without a vocabulary term carry no text signal.
		if cols, _ := weighted.Row(i); len(cols) == 0 {
			linalg.ZeroRow(vectors, i)
		}
	}
	linalg.NormalizeRows(vectors)

	var retained float64
	if total := weighted.FrobeniusSq(); total > 0 {
		retained = svd.Energy() / total
	}

	f.log.Info("text features built",
		zap.Int("documents", len(docs)),
		zap.Int("vocabulary", vocab.Len()),
		zap.Int("nnz", weighted.NNZ()),
		zap.Int("dims", svd.Rank()),
		zap.Float64("variance_retained", retained))

	return &Features{
		Vectors:          vectors,
		TFIDF:            weighted,
		Vocab:            vocab,
		VarianceRetained: retained,
	}, nil
}

// TopTerms returns the n vocabulary labels with the highest summed TF-IDF
// weight over rows; ties are broken by term so the result is reproducible.
func (f *Features) TopTerms(rows []int, n int) []string {
	weight := make(map[int]float64)
	for _, i := range rows {
		cols, vals := f.TFIDF.Row(i)
		for k, j := range cols {
			weight[j] += vals[k]
		}
	}
	cols := make([]int, 0, len(weight))
	for j := range weight {
		cols = append(cols, j)
	}
	sort.Slice(cols, func(a, b int) bool {
		wa, wb := weight[cols[a]], weight[cols[b]]
		if wa != wb {
			return wa > wb
		}
		return f.Vocab.Terms[cols[a]] < f.Vocab.Terms[cols[b]]
	})
	if len(cols) > n {
		cols = cols[:n]
	}
	out := make([]string, len(cols))
	for k, j := range cols {
		out[k] = f.Vocab.Labels[j]
	}
	return out
}
