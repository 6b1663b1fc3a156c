// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/taxonomy-engine/internal/corpus"
	"github.com/pdiddy/taxonomy-engine/internal/pipeline"
	"github.com/pdiddy/taxonomy-engine/pkg/types"
)

func sampleRun() Run {
	return Run{
		Documents: []types.DocumentRow{
			{DocID: "W1", Year: 2019, Journal: "J1", L1ID: "T01", L1Label: "soil, carbon", L2ID: "T01.01", L2Label: "soil"},
			{DocID: "W2", L1ID: "T02", L1Label: "fire", L2ID: "T02.01", L2Label: "fire", L3ID: "T02.01.01", L3Label: "regime"},
		},
		Topics: [types.MaxLevel][]types.TopicRow{
			{{ID: "T01", Level: 1, Size: 1, Converged: true, Keywords: []string{"soil", "carbon"}, MeanYear: 2019}},
			{{ID: "T01.01", ParentID: "T01", Level: 2, Size: 1, K: 0, Quality: 0.25, Converged: false, Keywords: []string{"soil"}}},
			nil,
		},
		Network: types.NetworkSummary{Nodes: 2},
		Summary: types.RunSummary{RunID: "run-1", Documents: 2, K1: 2},
	}
}

func TestWriteDocumentsCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteDocuments(&buf, sampleRun().Documents))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "doc_id", records[0][0])
	assert.Equal(t, []string{"W1", "2019", "J1", "T01", "soil, carbon", "T01.01", "soil", "", ""}, records[1])
	assert.Equal(t, "", records[2][1], "unknown year is blank")
	assert.Equal(t, "T02.01.01", records[2][7])
}

func TestWriteTopicsCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTopics(&buf, sampleRun().Topics[1]))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, []string{"T01.01", "T01", "2", "1", "0", "0.250000", "0.000000", "false", "soil", "0.0"}, records[1])
}

func TestWriteDirCreatesEveryFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	written, err := WriteDir(dir, sampleRun(), true)
	require.NoError(t, err)

	for _, name := range []string{
		"assignments.csv", "assignments.json",
		"topics_l1.csv", "topics_l1.json",
		"topics_l2.csv", "topics_l3.csv",
		"network.yaml", "summary.yaml",
	} {
		assert.FileExists(t, filepath.Join(dir, name))
	}
	assert.Len(t, written, 10)

	s, err := ReadSummary(dir)
	require.NoError(t, err)
	assert.Equal(t, "run-1", s.RunID)
	assert.Equal(t, 2, s.K1)
}

func TestWriteDirWithoutJSON(t *testing.T) {
	dir := t.TempDir()
	_, err := WriteDir(dir, sampleRun(), false)
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(dir, "assignments.json"))
}

// The same input and seed must give byte-identical assignment tables.
func TestAssignmentTableIdempotent(t *testing.T) {
	docs := []types.Document{
		{ID: "B1", Title: "Protein folding kinetics", Abstract: "Chaperone proteins guide folding of misfolded protein chains.", References: []string{"R1", "R2"}},
		{ID: "A1", Title: "Galaxy rotation curves", Abstract: "Dark matter halos shape galaxy rotation and stellar orbits.", References: []string{"R3", "R4"}},
		{ID: "B2", Title: "Chaperone assisted folding", Abstract: "Misfolded protein chains recover folding with chaperone proteins.", References: []string{"R1", "R2"}},
		{ID: "A2", Title: "Stellar orbits in galaxy halos", Abstract: "Galaxy halos of dark matter drive stellar rotation curves.", References: []string{"R3", "R4"}},
		{ID: "B3", Title: "Protein chain misfolding", Abstract: "Folding kinetics of protein chains under chaperone control.", References: []string{"R1"}},
		{ID: "A3", Title: "Dark matter and rotation", Abstract: "Rotation curves reveal dark matter halos around galaxy disks.", References: []string{"R4"}},
	}
	cfg := types.DefaultConfig()
	cfg.Text.MinDF = 1
	cfg.Text.MaxDF = 1
	cfg.Text.Dims = 4
	cfg.Coupling.Dims = 2
	cfg.Cluster.K1 = []int{2, 3}

	write := func() []byte {
		c, err := corpus.FromDocuments(docs)
		require.NoError(t, err)
		res, err := pipeline.New(cfg, nil, nil).RunCorpus(context.Background(), c)
		require.NoError(t, err)
		dir := t.TempDir()
		_, err = WriteDir(dir, Run{Documents: res.Documents, Topics: res.Topics, Network: res.NetworkSummary, Summary: res.Summary}, false)
		require.NoError(t, err)
		data, err := os.ReadFile(filepath.Join(dir, "assignments.csv"))
		require.NoError(t, err)
		return data
	}
	assert.Equal(t, write(), write())
}
