// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package corpus

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/taxonomy-engine/pkg/types"
)

func TestLoadCSLJSON(t *testing.T) {
	path := writeFile(t, "library.json", `[
  {"id": "smith2019", "type": "article-journal", "title": "Soil carbon",
   "abstract": "Carbon in soils.", "container-title": "Journal of Soils",
   "container-title-short": "J Soils", "issued": {"date-parts": [[2019, 4]]},
   "references": ["R1", "R2"]},
  {"type": "article-journal", "title": "Forest fires", "abstract": "Fire regimes.",
   "container-title": "Fire Ecology", "DOI": "10.1000/fire"},
  {"id": "empty", "title": "No abstract"}
]`)

	c, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 2, c.Len())
	assert.Equal(t, 1, c.Excluded)

	first := c.Documents[0]
	assert.Equal(t, "smith2019", first.ID)
	assert.Equal(t, 2019, first.Year)
	assert.Equal(t, "J Soils", first.Journal)
	assert.Equal(t, []string{"R1", "R2"}, first.References)

	second := c.Documents[1]
	assert.Equal(t, "10.1000/fire", second.ID, "DOI stands in for a missing id")
	assert.Equal(t, "Fire Ecology", second.Journal)
	assert.Zero(t, second.Year)
	assert.Empty(t, second.References)
}

func TestLoadJSONRecordArray(t *testing.T) {
	path := writeFile(t, "corpus.json", `[
  {"id": "W1", "title": "Soil carbon", "abstract": "Carbon in soils.", "year": 2019, "journal": "J1", "references": ["R1"]},
  {"id": "W2", "title": "Forest fires", "abstract": "Fire regimes."}
]`)

	c, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 2, c.Len())
	assert.Equal(t, 2019, c.Documents[0].Year)
	assert.Equal(t, "J1", c.Documents[0].Journal)
	assert.Equal(t, []string{"R1"}, c.Documents[0].References)
}

func TestLoadCSLYAML(t *testing.T) {
	path := writeFile(t, "library.csl.yaml", `
- id: W1
  title: Soil carbon
  abstract: Carbon in soils.
  issued:
    date-parts: [[2021]]
`)
	c, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 1, c.Len())
	assert.Equal(t, 2021, c.Documents[0].Year)
}

func TestReadCSLRejectsInvalidItems(t *testing.T) {
	_, err := ReadCSL(strings.NewReader(`[{"id": "W1", "abstract": "No title."}]`))
	assert.ErrorIs(t, err, types.ErrInvalidRecord)
	assert.Contains(t, err.Error(), "item 1")

	_, err = ReadCSL(strings.NewReader(""))
	assert.ErrorIs(t, err, types.ErrEmptyCorpus)
}
