// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package corpus

import (
	"fmt"
	"io"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/taxonomy-engine/pkg/types"
)

// CSLItem is a bibliographic entry in CSL (Citation Style Language) form, as
// exported by reference managers in CSL-JSON or CSL-YAML. References is not
// part of the CSL schema; exports that carry cited-work identifiers put them
// there.
type CSLItem struct {
	ID             string   `yaml:"id"`
	Type           string   `yaml:"type"`
	Title          string   `yaml:"title"`
	Abstract       string   `yaml:"abstract"`
	ContainerTitle string   `yaml:"container-title"`
	ContainerShort string   `yaml:"container-title-short"`
	Issued         *CSLDate `yaml:"issued"`
	DOI            string   `yaml:"DOI"`
	References     []string `yaml:"references"`
}

// CSLDate is a CSL date given as date-parts.
type CSLDate struct {
	DateParts [][]int `yaml:"date-parts"`
}

// Year returns the first year in the date-parts, or 0.
func (d *CSLDate) Year() int {
	if d == nil || len(d.DateParts) == 0 || len(d.DateParts[0]) == 0 {
		return 0
	}
	return d.DateParts[0][0]
}

// Document converts the entry to a corpus record. The DOI stands in for a
// missing id; the short container title is preferred as journal code.
func (c CSLItem) Document() types.Document {
	d := types.Document{
		ID:         strings.TrimSpace(c.ID),
		Title:      c.Title,
		Abstract:   c.Abstract,
		Year:       c.Issued.Year(),
		Journal:    c.ContainerShort,
		References: c.References,
	}
	if d.ID == "" {
		d.ID = strings.TrimSpace(c.DOI)
	}
	if d.Journal == "" {
		d.Journal = c.ContainerTitle
	}
	return d
}

// ReadCSL decodes a CSL-JSON or CSL-YAML list. YAML is a superset of JSON,
// so one decoder serves both.
func ReadCSL(r io.Reader) (*Corpus, error) {
	var items []CSLItem
	if err := yaml.NewDecoder(r).Decode(&items); err != nil {
		if err == io.EOF {
			return nil, types.ErrEmptyCorpus
		}
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidRecord, err)
	}
	records := make([]types.Document, len(items))
	for i, item := range items {
		records[i] = item.Document()
	}
	return build(records, func(i int) string { return fmt.Sprintf("item %d", i+1) })
}
