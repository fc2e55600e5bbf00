// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ingest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/triage-engine/pkg/types"
)

const sampleCSV = "\xef\xbb\xbfID,Article Title,ABSTRACT,Authors,Year,Journal,PMID,Country\n" +
	"a1,\"Exercise and \"\"memory\"\"\",Randomized trial,\"Smith, J.; Doe, A.\",2021,J Trials,123,NZ\n" +
	",No id here,Cohort study,,2019.0,,,\n" +
	",,,,,,,\n" +
	"a3,Third,,Lee K.,not-a-year,,,\n"

func TestParseCSV(t *testing.T) {
	cs, err := Parse(strings.NewReader(sampleCSV), FormatCSV)
	require.NoError(t, err)
	require.Len(t, cs, 3)

	first := cs[0]
	assert.Equal(t, "a1", first.ID)
	assert.Equal(t, 0, first.IngestionIndex)
	assert.Equal(t, `Exercise and "memory"`, first.Title)
	assert.Equal(t, "Randomized trial", first.Abstract)
	assert.Equal(t, []string{"Smith, J.", "Doe, A."}, first.Authors)
	assert.Equal(t, 2021, first.Year)
	assert.Equal(t, "J Trials", first.Journal)
	assert.Equal(t, "123", first.ExternalID)
	assert.Equal(t, types.NeutralScore, first.Score)
	assert.Equal(t, map[string]string{"country": "NZ"}, first.Metadata)

	assert.Equal(t, "citation-1", cs[1].ID)
	assert.Equal(t, 1, cs[1].IngestionIndex)
	assert.Equal(t, 2019, cs[1].Year)
	assert.Nil(t, cs[1].Metadata)

	// The blank row is skipped without consuming an index.
	assert.Equal(t, "a3", cs[2].ID)
	assert.Equal(t, 2, cs[2].IngestionIndex)
	assert.Zero(t, cs[2].Year)
}

func TestParseJSONAndYAML(t *testing.T) {
	jsonDoc := `[
		{"title": "Walking and cognition", "abstract": "Trial", "authors": ["Kim, H.", "Ng, P."], "year": 2020, "doi": "10.1/x"},
		{"id": "j2", "Title": "Yoga", "Abstract": "Pilot", "source": "embase"}
	]`
	yamlDoc := `citations:
  - title: Walking and cognition
    abstract: Trial
    authors: ["Kim, H.", "Ng, P."]
    year: 2020
    doi: 10.1/x
  - id: j2
    Title: Yoga
    Abstract: Pilot
    source: embase
`
	for _, tt := range []struct {
		name   string
		doc    string
		format Format
	}{
		{"json", jsonDoc, FormatJSON},
		{"yaml", yamlDoc, FormatYAML},
	} {
		t.Run(tt.name, func(t *testing.T) {
			cs, err := Parse(strings.NewReader(tt.doc), tt.format)
			require.NoError(t, err)
			require.Len(t, cs, 2)
			assert.Equal(t, "citation-0", cs[0].ID)
			assert.Equal(t, "Walking and cognition", cs[0].Title)
			assert.Equal(t, 2020, cs[0].Year)
			assert.Equal(t, "10.1/x", cs[0].ExternalID)
			assert.Len(t, cs[0].Authors, 2)
			assert.Equal(t, "j2", cs[1].ID)
			assert.Equal(t, "Yoga", cs[1].Title)
			assert.Equal(t, "Pilot", cs[1].Abstract)
			assert.Equal(t, "embase", cs[1].Metadata["source"])
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name   string
		doc    string
		format Format
		want   error
	}{
		{"empty csv", "", FormatCSV, ErrEmpty},
		{"header only", "title,abstract\n", FormatCSV, ErrEmpty},
		{"no title", "name,abstract\nx,y\n", FormatCSV, ErrMissingField},
		{"no abstract", "title,summary\nx,y\n", FormatCSV, ErrMissingField},
		{"duplicate id", "id,title,abstract\na,x,y\na,z,w\n", FormatCSV, ErrDuplicateID},
		{"all blank", "title,abstract\n,\n", FormatCSV, ErrEmpty},
		{"empty json list", "[]", FormatJSON, ErrEmpty},
		{"json record without abstract", `[{"title":"a","abstract":"x"},{"title":"b"}]`, FormatJSON, ErrMissingField},
		{"yaml record without title", "- title: a\n  abstract: x\n- abstract: y\n", FormatYAML, ErrMissingField},
		{"only empty json objects", `[{}, {"title": ""}]`, FormatJSON, ErrEmpty},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.doc), tt.format)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := Parse(strings.NewReader(`[{"title":"a","abstract":"x"},{"title":"b"}]`), FormatJSON)
	assert.ErrorContains(t, err, "record 2 has no abstract field")

	cs, err := Parse(strings.NewReader(`[{"title":"a","abstract":"x"},{},{"title":"c","abstract":""}]`), FormatJSON)
	require.NoError(t, err)
	require.Len(t, cs, 2)
	assert.Equal(t, 1, cs[1].IngestionIndex)

	_, err = Parse(strings.NewReader(`{"title": "x"}`), FormatJSON)
	assert.Error(t, err)
	_, err = Parse(strings.NewReader("x"), Format("xlsx"))
	assert.Error(t, err)
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{".csv": FormatCSV, "JSON": FormatJSON, ".yml": FormatYAML, "yaml": FormatYAML, "csl": FormatCSL} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat(".xlsx")
	assert.Error(t, err)
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "citations.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o644))

	cs, err := ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, cs, 3)

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

const sampleCSLYAML = `- id: smith2021
  type: article-journal
  title: Exercise and memory
  abstract: Randomized trial in older adults.
  author:
    - family: Smith
      given: Jane
    - literal: Trial Group
  container-title: J Trials
  issued:
    date-parts: [[2021, 5]]
  DOI: 10.1000/xyz
- title: Untitled abstract only
  abstract: Cohort study.
  PMID: "998877"
`

const sampleCSLJSON = `[
	{"id": "smith2021", "type": "article-journal", "title": "Exercise and memory",
	 "author": [{"family": "Smith", "given": "Jane"}],
	 "issued": {"date-parts": [[2021]]}, "DOI": "10.1000/xyz"}
]`

func TestParseCSL(t *testing.T) {
	cs, err := Parse(strings.NewReader(sampleCSLYAML), FormatCSL)
	require.NoError(t, err)
	require.Len(t, cs, 2)

	first := cs[0]
	assert.Equal(t, "smith2021", first.ID)
	assert.Equal(t, []string{"Jane Smith", "Trial Group"}, first.Authors)
	assert.Equal(t, 2021, first.Year)
	assert.Equal(t, "J Trials", first.Journal)
	assert.Equal(t, "10.1000/xyz", first.ExternalID)
	assert.Equal(t, map[string]string{"type": "article-journal"}, first.Metadata)

	second := cs[1]
	assert.Equal(t, "citation-1", second.ID)
	assert.Equal(t, "998877", second.ExternalID)
	assert.Equal(t, 0, second.Year)

	fromJSON, err := Parse(strings.NewReader(sampleCSLJSON), FormatCSL)
	require.NoError(t, err)
	require.Len(t, fromJSON, 1)
	assert.Equal(t, first.ID, fromJSON[0].ID)
	assert.Equal(t, []string{"Jane Smith"}, fromJSON[0].Authors)
	assert.Equal(t, 2021, fromJSON[0].Year)

	_, err = Parse(strings.NewReader("  "), FormatCSL)
	assert.ErrorIs(t, err, ErrEmpty)
}
