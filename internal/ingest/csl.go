// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/triage-engine/pkg/types"
)

// readCSL reads a CSL-YAML or CSL-JSON list as exported by reference
// managers. Items map onto the same fields as the other formats, so id,
// duplicate, and blank-row rules apply unchanged.
func readCSL(r io.Reader) ([]record, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading csl: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, ErrEmpty
	}

	var items []types.CSLItem
	if data[0] == '[' {
		err = json.Unmarshal(data, &items)
	} else {
		err = yaml.Unmarshal(data, &items)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding csl: %w", err)
	}

	records := make([]record, 0, len(items))
	for _, it := range items {
		authors := make([]string, 0, len(it.Author))
		for _, a := range it.Author {
			if s := a.String(); s != "" {
				authors = append(authors, s)
			}
		}
		rec := record{
			{key: "id", value: it.ID},
			{key: "title", value: it.Title},
			{key: "abstract", value: it.Abstract},
			{key: "authors", value: strings.Join(authors, "; ")},
			{key: "journal", value: it.ContainerTitle},
			{key: "doi", value: it.DOI},
			{key: "pmid", value: it.PMID},
			{key: "type", value: it.Type},
		}
		if y := it.Issued.Year(); y != 0 {
			rec = append(rec, field{key: "year", value: strconv.Itoa(y)})
		}
		records = append(records, rec)
	}
	return records, nil
}
