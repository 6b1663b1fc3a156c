// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the taxonomy-engine
// pipeline: corpus documents, the three-level topic tree, the output tables,
// run configuration and the error taxonomy.
package types

import "strings"

// Document is one corpus item. Documents are immutable once loaded; the
// position of a document in the loaded slice is its row in every matrix of
// the run.
type Document struct {
	// ID is the unique identifier of the work (DOI, OpenAlex id, ...).
	ID string `json:"id" yaml:"id"`

	// Title is the work's title.
	Title string `json:"title" yaml:"title"`

	// Abstract is the work's abstract. Records with an empty abstract are
	// excluded at load time.
	Abstract string `json:"abstract" yaml:"abstract"`

	// Year is the publication year (0 when unknown).
	Year int `json:"year" yaml:"year"`

	// Journal is the journal code.
	Journal string `json:"journal" yaml:"journal"`

	// References lists the identifiers of the works this document cites.
	// They may point outside the corpus.
	References []string `json:"references" yaml:"references"`
}

// Text returns the string fed to the text featurizer: the title followed by
// the abstract twice, doubling the abstract's term weight.
func (d Document) Text() string {
	var b strings.Builder
	b.Grow(len(d.Title) + 2*len(d.Abstract) + 2)
	b.WriteString(d.Title)
	b.WriteByte(' ')
	b.WriteString(d.Abstract)
	b.WriteByte(' ')
	b.WriteString(d.Abstract)
	return b.String()
}
