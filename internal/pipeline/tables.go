// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/pdiddy/taxonomy-engine/internal/cluster"
	"github.com/pdiddy/taxonomy-engine/pkg/types"
)

// labelWords is the number of keywords joined into a topic's display label.
const labelWords = 3

// TopicLabel returns the short display label of a node.
func TopicLabel(node *types.ClusterNode) string {
	if node == nil {
		return ""
	}
	words := node.Keywords
	if len(words) > labelWords {
		words = words[:labelWords]
	}
	return strings.Join(words, ", ")
}

func documentTables(docs []types.Document, paths []cluster.Path) ([]types.Assignment, []types.DocumentRow) {
	assignments := make([]types.Assignment, len(docs))
	rows := make([]types.DocumentRow, len(docs))
	for i, d := range docs {
		p := paths[i]
		a := types.Assignment{DocID: d.ID, L1: p.L1.ID, L2: p.L2.ID}
		row := types.DocumentRow{
			DocID:   d.ID,
			Year:    d.Year,
			Journal: d.Journal,
			L1ID:    p.L1.ID,
			L1Label: TopicLabel(p.L1),
			L2ID:    p.L2.ID,
			L2Label: TopicLabel(p.L2),
		}
		if p.L3 != nil {
			a.L3 = p.L3.ID
			row.L3ID = p.L3.ID
			row.L3Label = TopicLabel(p.L3)
		}
		assignments[i] = a
		rows[i] = row
	}
	return assignments, rows
}

func topicTables(docs []types.Document, streams []*types.ClusterNode) [types.MaxLevel][]types.TopicRow {
	var tables [types.MaxLevel][]types.TopicRow
	types.Walk(streams, func(n *types.ClusterNode) {
		tables[n.Level-1] = append(tables[n.Level-1], types.TopicRow{
			ID:         n.ID,
			ParentID:   n.ParentID,
			Level:      n.Level,
			Size:       n.Size(),
			K:          n.K,
			Quality:    n.Quality,
			Silhouette: n.Silhouette,
			Converged:  n.Converged,
			Keywords:   n.Keywords,
			MeanYear:   meanYear(docs, n.Members),
		})
	})
	return tables
}

// meanYear averages the known publication years of rows; 0 when none is known.
func meanYear(docs []types.Document, rows []int) float64 {
	var years []float64
	for _, r := range rows {
		if y := docs[r].Year; y != 0 {
			years = append(years, float64(y))
		}
	}
	if len(years) == 0 {
		return 0
	}
	return stat.Mean(years, nil)
}

func levelStats(tables [types.MaxLevel][]types.TopicRow) []types.LevelStats {
	var out []types.LevelStats
	for i, rows := range tables {
		if len(rows) == 0 {
			continue
		}
		s := types.LevelStats{Level: i + 1, Topics: len(rows), MinSize: rows[0].Size, MaxSize: rows[0].Size}
		sizes := make([]float64, len(rows))
		for j, r := range rows {
			sizes[j] = float64(r.Size)
			s.MinSize = min(s.MinSize, r.Size)
			s.MaxSize = max(s.MaxSize, r.Size)
			if !r.Converged {
				s.LowConfidence++
			}
		}
		if len(sizes) > 1 {
			s.Mean, s.StdDev = stat.MeanStdDev(sizes, nil)
		} else {
			s.Mean = sizes[0]
		}
		out = append(out, s)
	}
	return out
}
