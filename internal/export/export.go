// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package export writes the tables of a taxonomy run: a document-level
// assignment table and one topic table per level as CSV (optionally JSON),
// plus the network and run summaries as YAML.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/taxonomy-engine/pkg/types"
)

// File names inside the output directory.
const (
	AssignmentsFile = "assignments"
	NetworkFile     = "network.yaml"
	SummaryFile     = "summary.yaml"
)

// keywordSep joins keywords inside one CSV cell.
const keywordSep = "; "

// TopicsFile returns the base name of a level's topic table.
func TopicsFile(level int) string {
	return fmt.Sprintf("topics_l%d", level)
}

// Run is the exportable content of a run.
type Run struct {
	Documents []types.DocumentRow
	Topics    [types.MaxLevel][]types.TopicRow
	Network   types.NetworkSummary
	Summary   types.RunSummary
}

// WriteDir writes every table of run into dir, creating it if needed, and
// returns the paths written. withJSON adds a .json copy of each CSV table.
func WriteDir(dir string, run Run, withJSON bool) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	var written []string
	add := func(name string, write func(io.Writer) error) error {
		path := filepath.Join(dir, name)
		if err := writeFile(path, write); err != nil {
			return err
		}
		written = append(written, path)
		return nil
	}

	if err := add(AssignmentsFile+".csv", func(w io.Writer) error { return WriteDocuments(w, run.Documents) }); err != nil {
		return nil, err
	}
	if withJSON {
		if err := add(AssignmentsFile+".json", func(w io.Writer) error { return writeJSON(w, run.Documents) }); err != nil {
			return nil, err
		}
	}
	for i, rows := range run.Topics {
		base := TopicsFile(i + 1)
		if err := add(base+".csv", func(w io.Writer) error { return WriteTopics(w, rows) }); err != nil {
			return nil, err
		}
		if withJSON {
			if err := add(base+".json", func(w io.Writer) error { return writeJSON(w, rows) }); err != nil {
				return nil, err
			}
		}
	}
	if err := add(NetworkFile, func(w io.Writer) error { return writeYAML(w, run.Network) }); err != nil {
		return nil, err
	}
	if err := add(SummaryFile, func(w io.Writer) error { return writeYAML(w, run.Summary) }); err != nil {
		return nil, err
	}
	return written, nil
}

// WriteDocuments writes the document-level assignment table as CSV.
func WriteDocuments(w io.Writer, rows []types.DocumentRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"doc_id", "year", "journal", "l1_id", "l1_label", "l2_id", "l2_label", "l3_id", "l3_label"}); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, r := range rows {
		year := ""
		if r.Year != 0 {
			year = strconv.Itoa(r.Year)
		}
		if err := cw.Write([]string{r.DocID, year, r.Journal, r.L1ID, r.L1Label, r.L2ID, r.L2Label, r.L3ID, r.L3Label}); err != nil {
			return fmt.Errorf("writing row %s: %w", r.DocID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteTopics writes one level's topic table as CSV.
func WriteTopics(w io.Writer, rows []types.TopicRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"id", "parent_id", "level", "size", "k", "quality", "silhouette", "converged", "keywords", "mean_year"}); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, r := range rows {
		rec := []string{
			r.ID,
			r.ParentID,
			strconv.Itoa(r.Level),
			strconv.Itoa(r.Size),
			strconv.Itoa(r.K),
			formatFloat(r.Quality),
			formatFloat(r.Silhouette),
			strconv.FormatBool(r.Converged),
			strings.Join(r.Keywords, keywordSep),
			strconv.FormatFloat(r.MeanYear, 'f', 1, 64),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("writing topic %s: %w", r.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	return nil
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	return enc.Close()
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

// ReadSummary loads a run summary written by WriteDir.
func ReadSummary(dir string) (*types.RunSummary, error) {
	data, err := os.ReadFile(filepath.Join(dir, SummaryFile))
	if err != nil {
		return nil, fmt.Errorf("reading summary: %w", err)
	}
	var s types.RunSummary
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing summary: %w", err)
	}
	return &s, nil
}
