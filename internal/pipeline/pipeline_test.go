// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/taxonomy-engine/internal/cluster"
	"github.com/pdiddy/taxonomy-engine/internal/corpus"
	"github.com/pdiddy/taxonomy-engine/pkg/types"
)

var (
	biologyRefs   = []string{"RB1", "RB2", "RB3"}
	astronomyRefs = []string{"RA1", "RA2", "RA3"}
)

// tinyDocuments returns three molecular-biology and three astronomy
// documents with disjoint vocabularies and disjoint reference lists.
func tinyDocuments() []types.Document {
	return []types.Document{
		{ID: "B1", Title: "Protein folding kinetics", Abstract: "Chaperone proteins guide folding of misfolded protein chains.", Year: 2015, Journal: "JB", References: biologyRefs},
		{ID: "A1", Title: "Galaxy rotation curves", Abstract: "Dark matter halos shape galaxy rotation and stellar orbits.", Year: 2018, Journal: "JA", References: astronomyRefs},
		{ID: "B2", Title: "Chaperone assisted folding", Abstract: "Misfolded protein chains recover folding with chaperone proteins.", Year: 2017, Journal: "JB", References: biologyRefs},
		{ID: "A2", Title: "Stellar orbits in galaxy halos", Abstract: "Galaxy halos of dark matter drive stellar rotation curves.", Year: 2020, Journal: "JA", References: astronomyRefs},
		{ID: "B3", Title: "Protein chain misfolding", Abstract: "Folding kinetics of protein chains under chaperone control.", Year: 2019, Journal: "JB", References: biologyRefs},
		{ID: "A3", Title: "Dark matter and rotation", Abstract: "Rotation curves reveal dark matter halos around galaxy disks.", Year: 2021, Journal: "JA", References: astronomyRefs},
	}
}

func tinyConfig() types.Config {
	cfg := types.DefaultConfig()
	cfg.Text.MinDF = 1
	cfg.Text.MaxDF = 1
	cfg.Text.Dims = 4
	cfg.Text.VarianceTarget = 0
	cfg.Coupling.Dims = 2
	cfg.Fusion.TextWeight = 0.6
	cfg.Cluster.K1 = []int{2}
	cfg.Cluster.Workers = 2
	return cfg
}

func run(t *testing.T, cfg types.Config, docs []types.Document) *Result {
	t.Helper()
	c, err := corpus.FromDocuments(docs)
	require.NoError(t, err)
	res, err := New(cfg, nil, nil).RunCorpus(context.Background(), c)
	require.NoError(t, err)
	return res
}

func streamOf(t *testing.T, res *Result, id string) string {
	t.Helper()
	for _, a := range res.Assignments {
		if a.DocID == id {
			return a.L1
		}
	}
	t.Fatalf("document %s not assigned", id)
	return ""
}

func TestTinyCorpusSeparatesCommunities(t *testing.T) {
	res := run(t, tinyConfig(), tinyDocuments())

	require.Len(t, res.Streams, 2)
	assert.Equal(t, 2, res.Summary.K1)
	b, a := streamOf(t, res, "B1"), streamOf(t, res, "A1")
	assert.NotEqual(t, a, b)
	for _, id := range []string{"B2", "B3"} {
		assert.Equal(t, b, streamOf(t, res, id))
	}
	for _, id := range []string{"A2", "A3"} {
		assert.Equal(t, a, streamOf(t, res, id))
	}

	// B1 is row 0, so its stream is numbered first.
	assert.Equal(t, "T01", b)
	assert.InDelta(t, 0.6, res.Summary.Weights.Text, 1e-12)
	assert.InDelta(t, 0.4, res.Summary.Weights.Citation, 1e-12)
}

func TestTinyCorpusPartitionAtEveryLevel(t *testing.T) {
	res := run(t, tinyConfig(), tinyDocuments())
	paths, err := cluster.Paths(res.Streams, 6)
	require.NoError(t, err)
	require.Len(t, paths, 6)

	// Three members are below every k2 candidate: each stream keeps a single
	// subtopic and nothing reaches level 3.
	for _, s := range res.Streams {
		require.Len(t, s.Children, 1)
		assert.Equal(t, s.Members, s.Children[0].Members)
		assert.True(t, s.Children[0].IsLeaf())
	}
	assert.Empty(t, res.Topics[2])
	for _, a := range res.Assignments {
		assert.Empty(t, a.L3)
		assert.True(t, strings.HasPrefix(a.L2, a.L1+"."))
	}
	assert.Len(t, res.Topics[0], 2)
	assert.Len(t, res.Topics[1], 2)
	assert.InDelta(t, (2015+2017+2019)/3.0, res.Topics[0][0].MeanYear, 1e-9)
}

func TestCitationIsolatedDocument(t *testing.T) {
	docs := append(tinyDocuments(), types.Document{
		ID: "B4", Title: "Chaperone folding of protein chains", Abstract: "Protein folding kinetics with chaperone help for misfolded chains.", Year: 2022,
	})
	res := run(t, tinyConfig(), docs)

	assert.Equal(t, 1, res.NetworkSummary.Isolated)
	assert.True(t, res.Network.Isolated(6))
	assert.Equal(t, streamOf(t, res, "B1"), streamOf(t, res, "B4"))
}

func TestRunIsIdempotent(t *testing.T) {
	cfg := tinyConfig()
	cfg.Cluster.Workers = 4
	first := run(t, cfg, tinyDocuments())
	second := run(t, cfg, tinyDocuments())

	assert.Equal(t, first.Documents, second.Documents)
	assert.Equal(t, first.Assignments, second.Assignments)
	assert.Equal(t, first.Topics, second.Topics)
	assert.Equal(t, first.Summary.RunID, second.Summary.RunID)
	assert.Equal(t, first.Summary.K1Scores, second.Summary.K1Scores)

	cfg.Seed++
	third := run(t, cfg, tinyDocuments())
	assert.NotEqual(t, first.Summary.RunID, third.Summary.RunID)
}

func TestWeightSearchReportsEveryCandidate(t *testing.T) {
	cfg := tinyConfig()
	cfg.Fusion.SearchWeights = true
	cfg.Fusion.WeightCandidates = []float64{0.4, 0.6, 0.8}
	res := run(t, cfg, tinyDocuments())

	require.Len(t, res.Summary.WeightScores, 3)
	assert.Contains(t, cfg.Fusion.WeightCandidates, res.Summary.Weights.Text)
	assert.InDelta(t, 1.0, res.Summary.Weights.Text+res.Summary.Weights.Citation, 1e-12)

	best := res.Summary.WeightScores[0].Score
	for _, c := range res.Summary.WeightScores {
		best = max(best, c.Score)
	}
	for _, c := range res.Summary.WeightScores {
		if c.Param == res.Summary.Weights.Text {
			assert.InDelta(t, best, c.Score, cfg.Cluster.ScoreTolerance)
		}
	}
}

func TestInvalidWeightRejectedBeforeRun(t *testing.T) {
	cfg := tinyConfig()
	cfg.Fusion.TextWeight = 1.3
	c, err := corpus.FromDocuments(tinyDocuments())
	require.NoError(t, err)

	_, err = New(cfg, nil, nil).RunCorpus(context.Background(), c)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrInvalidWeight)
	var stageErr *types.StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, types.StageConfig, stageErr.Stage)
}

func TestEmptyVocabularyIsFatal(t *testing.T) {
	cfg := tinyConfig()
	cfg.Text.MinDF = 50
	c, err := corpus.FromDocuments(tinyDocuments())
	require.NoError(t, err)

	_, err = New(cfg, nil, nil).RunCorpus(context.Background(), c)
	assert.ErrorIs(t, err, types.ErrFeatureExtraction)
}

func TestRunLoadsInputAndReportsProgress(t *testing.T) {
	var lines []string
	for _, d := range tinyDocuments() {
		lines = append(lines, `{"id":"`+d.ID+`","title":"`+d.Title+`","abstract":"`+d.Abstract+`","references":["`+strings.Join(d.References, `","`)+`"]}`)
	}
	path := filepath.Join(t.TempDir(), "corpus.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))

	cfg := tinyConfig()
	cfg.InputPath = path
	var out bytes.Buffer
	res, err := New(cfg, nil, &out).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, res.Summary.Documents)
	assert.Contains(t, out.String(), "loaded 6 documents")
	assert.Contains(t, out.String(), "streams: k1=2")
	assert.Contains(t, res.Summary.StageTimings, types.StageCorpus)
}

// themedDocuments returns six themes of six documents each; the first three
// themes share biology references, the last three astronomy references.
func themedDocuments() []types.Document {
	themes := [][]string{
		{"protein", "chaperone", "misfolding", "aggregate"},
		{"genome", "sequencing", "assembly", "contig"},
		{"enzyme", "catalysis", "substrate", "inhibitor"},
		{"galaxy", "halo", "rotation", "stellar"},
		{"exoplanet", "transit", "photometry", "atmosphere"},
		{"supernova", "remnant", "shock", "ejecta"},
	}
	var docs []types.Document
	for th, words := range themes {
		refs := biologyRefs
		if th >= 3 {
			refs = astronomyRefs
		}
		for i := 0; i < 6; i++ {
			abstract := strings.Join(words, " ") + " " + strings.Repeat(words[i%4]+" ", 1+i/4) + "."
			docs = append(docs, types.Document{
				ID:         fmt.Sprintf("D%d%d", th, i),
				Title:      words[i%4] + " " + words[(i+1)%4],
				Abstract:   abstract,
				Year:       2000 + i,
				References: refs,
			})
		}
	}
	return docs
}

func TestIterationCapMarksLowConfidence(t *testing.T) {
	cfg := tinyConfig()
	cfg.Text.Dims = 6
	cfg.Cluster.K2 = []int{2, 3}
	cfg.Cluster.K3 = []int{2}
	cfg.Cluster.MinMembersL3 = 4
	cfg.Cluster.MaxIter = 2
	cfg.Cluster.Tolerance = 1e-12
	res := run(t, cfg, themedDocuments())

	_, err := cluster.Paths(res.Streams, 36)
	require.NoError(t, err)

	var capped []string
	for _, w := range res.Summary.Warnings {
		if strings.Contains(w.Message, "iteration cap") {
			capped = append(capped, w.NodeID)
		}
	}

	var unconverged []string
	for _, table := range res.Topics {
		for _, row := range table {
			if !row.Converged {
				unconverged = append(unconverged, row.ID)
			}
		}
	}
	require.NotEmpty(t, unconverged)
	assert.ElementsMatch(t, unconverged, capped)
	assert.Equal(t, len(unconverged), res.Summary.LowConfidence)

	perLevel := 0
	for _, l := range res.Summary.Levels {
		perLevel += l.LowConfidence
	}
	assert.Equal(t, res.Summary.LowConfidence, perLevel)
}
