// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package corpus loads and validates the article records the taxonomy run
// consumes. Records arrive as JSON Lines (one record per line), as a YAML
// or JSON list, or as a CSL bibliography. Malformed records are rejected at
// load time with their position.
package corpus

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/taxonomy-engine/pkg/types"
)

// maxLineCapacity bounds a single JSONL record (4MB).
const maxLineCapacity = 4 * 1024 * 1024

const (
	minYear = 1000
	maxYear = 3000
)

// Corpus is the validated document set of a run.
type Corpus struct {
	// Documents holds the retained records in input order.
	Documents []types.Document

	// Excluded counts records dropped for having an empty abstract.
	Excluded int
}

// Len returns the number of retained documents.
func (c *Corpus) Len() int { return len(c.Documents) }

// Index maps each document id to its row.
func (c *Corpus) Index() map[string]int {
	idx := make(map[string]int, len(c.Documents))
	for i, d := range c.Documents {
		idx[d.ID] = i
	}
	return idx
}

// Load reads a corpus file, choosing the decoder by extension: .jsonl for
// JSON Lines, .yaml for a record list, .csl.yaml for CSL items and .json
// for either a record list or CSL items (see ReadJSON).
func Load(path string) (*Corpus, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening corpus %s: %w", path, err)
	}
	defer f.Close()

	name := strings.ToLower(filepath.Base(path))
	switch {
	case strings.HasSuffix(name, ".csl.yaml"), strings.HasSuffix(name, ".csl.yml"):
		return ReadCSL(f)
	case strings.HasSuffix(name, ".json"):
		return ReadJSON(f)
	}
	switch filepath.Ext(name) {
	case ".jsonl", ".ndjson":
		return ReadJSONL(f)
	case ".yaml", ".yml":
		return ReadYAML(f)
	default:
		return nil, fmt.Errorf("unsupported corpus format %q: use .jsonl, .yaml or CSL (.json, .csl.yaml)", filepath.Ext(path))
	}
}

// ReadJSONL decodes one record per non-empty line.
func ReadJSONL(r io.Reader) (*Corpus, error) {
	scanner := bufio.NewScanner(r)
	buf := make([]byte, 64*1024)
	scanner.Buffer(buf, maxLineCapacity)

	var records []types.Document
	var lines []int
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		var doc types.Document
		if err := json.Unmarshal(line, &doc); err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", types.ErrInvalidRecord, lineNum, err)
		}
		records = append(records, doc)
		lines = append(lines, lineNum)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading corpus: %w", err)
	}
	return build(records, func(i int) string { return fmt.Sprintf("line %d", lines[i]) })
}

// ReadYAML decodes a YAML sequence of records.
func ReadYAML(r io.Reader) (*Corpus, error) {
	var records []types.Document
	if err := yaml.NewDecoder(r).Decode(&records); err != nil {
		if err == io.EOF {
			return nil, types.ErrEmptyCorpus
		}
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidRecord, err)
	}
	return build(records, func(i int) string { return fmt.Sprintf("record %d", i+1) })
}

// recordKeys are fields of the plain record shape that CSL does not define.
var recordKeys = []string{"year", "journal"}

// ReadJSON decodes a JSON array. Arrays whose items carry a plain record
// field (year, journal) are read as records; anything else as CSL-JSON.
func ReadJSON(r io.Reader) (*Corpus, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading corpus: %w", err)
	}
	var items []map[string]any
	if err := yaml.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidRecord, err)
	}
	for _, item := range items {
		for _, key := range recordKeys {
			if _, ok := item[key]; ok {
				return ReadYAML(bytes.NewReader(data))
			}
		}
	}
	return ReadCSL(bytes.NewReader(data))
}

// FromDocuments validates an in-memory record set the same way Load does.
func FromDocuments(docs []types.Document) (*Corpus, error) {
	return build(docs, func(i int) string { return fmt.Sprintf("record %d", i+1) })
}

func build(records []types.Document, where func(int) string) (*Corpus, error) {
	c := &Corpus{}
	seen := make(map[string]string, len(records))

	for i, rec := range records {
		rec.ID = strings.TrimSpace(rec.ID)
		rec.Title = strings.TrimSpace(rec.Title)
		rec.Abstract = strings.TrimSpace(rec.Abstract)
		rec.Journal = strings.TrimSpace(rec.Journal)

		if err := validate(rec); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", types.ErrInvalidRecord, where(i), err)
		}
		if prev, dup := seen[rec.ID]; dup {
			return nil, fmt.Errorf("%w: %s: duplicate id %q (first seen at %s)", types.ErrInvalidRecord, where(i), rec.ID, prev)
		}
		seen[rec.ID] = where(i)

		if rec.Abstract == "" {
			c.Excluded++
			continue
		}
		rec.References = cleanReferences(rec.References)
		c.Documents = append(c.Documents, rec)
	}

	if len(c.Documents) == 0 {
		return nil, types.ErrEmptyCorpus
	}
	return c, nil
}

func validate(d types.Document) error {
	if d.ID == "" {
		return fmt.Errorf("missing id")
	}
	if d.Title == "" {
		return fmt.Errorf("document %q has no title", d.ID)
	}
	if d.Year != 0 && (d.Year < minYear || d.Year > maxYear) {
		return fmt.Errorf("document %q has implausible year %d", d.ID, d.Year)
	}
	return nil
}

// cleanReferences trims identifiers and drops blanks and repeats, keeping
// first-seen order.
func cleanReferences(refs []string) []string {
	if len(refs) == 0 {
		return nil
	}
	out := make([]string, 0, len(refs))
	seen := make(map[string]struct{}, len(refs))
	for _, r := range refs {
		r = strings.TrimSpace(r)
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
