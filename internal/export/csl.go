// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package export

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/triage-engine/pkg/types"
)

// WriteCSL writes the citations classified Relevant as a CSL-YAML list in
// ranking order, ready for a reference manager or Pandoc. A project with no
// relevant citation yields an empty list.
func (e *Exporter) WriteCSL(w io.Writer, _ types.Session, st types.ProjectState) error {
	cs, err := ranked(st)
	if err != nil {
		return err
	}

	items := make([]types.CSLItem, 0, len(cs))
	for _, c := range cs {
		if c.Score < types.RelevanceThreshold {
			break
		}
		items = append(items, toCSLItem(c))
	}

	enc := yaml.NewEncoder(w)
	if err := enc.Encode(items); err != nil {
		return fmt.Errorf("writing csl: %w", err)
	}
	return enc.Close()
}

func toCSLItem(c types.Citation) types.CSLItem {
	item := types.CSLItem{
		ID:             c.ID,
		Type:           "article-journal",
		Title:          c.Title,
		Abstract:       c.Abstract,
		ContainerTitle: c.Journal,
		Note:           "relevance score " + strconv.FormatFloat(c.Score, 'f', -1, 64),
	}
	for _, a := range c.Authors {
		item.Author = append(item.Author, types.ParseCSLName(a))
	}
	if c.Year != 0 {
		item.Issued = &types.CSLDate{DateParts: [][]int{{c.Year}}}
	}

	switch id := c.ExternalID; {
	case strings.HasPrefix(id, "10."):
		item.DOI = id
	case id != "" && strings.Trim(id, "0123456789") == "":
		item.PMID = id
	}
	return item
}
