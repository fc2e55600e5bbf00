// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ingest turns citation files into Citation records. CSV, JSON and
// YAML files are accepted. Every record must carry a title and an abstract
// field, matched case-insensitively; records without an id get the
// synthetic id citation-<ingestionIndex>. Columns the engine does not model
// are kept as opaque metadata.
package ingest

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/triage-engine/pkg/types"
)

// Format identifies a citation file encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatCSL  Format = "csl"
)

var (
	// ErrEmpty is returned when a file holds no usable citation.
	ErrEmpty = errors.New("no citations found")

	// ErrMissingField is returned when a record lacks a title or abstract field.
	ErrMissingField = errors.New("missing required field")

	// ErrDuplicateID is returned when two records carry the same id.
	ErrDuplicateID = errors.New("duplicate citation id")
)

// ParseFormat maps a format name or file extension to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "csl":
		return FormatCSL, nil
	default:
		return "", fmt.Errorf("unsupported citation format %q (want csv, json, yaml, or csl)", s)
	}
}

// ReadFile parses the citation file at path, choosing the format from its
// extension.
func ReadFile(path string) ([]types.Citation, error) {
	format, err := ParseFormat(filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	return ParseFile(path, format)
}

// ParseFile parses the citation file at path as format.
func ParseFile(path string, format Format) ([]types.Citation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	cs, err := Parse(f, format)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cs, nil
}

// Parse reads citations from r. Records whose title and abstract are both
// blank are skipped and do not consume an ingestion index.
func Parse(r io.Reader, format Format) ([]types.Citation, error) {
	var (
		records []record
		err     error
	)
	switch format {
	case FormatCSV:
		records, err = readCSV(r)
	case FormatJSON:
		records, err = readJSON(r)
	case FormatYAML:
		records, err = readYAML(r)
	case FormatCSL:
		records, err = readCSL(r)
	default:
		return nil, fmt.Errorf("unsupported citation format %q", format)
	}
	if err != nil {
		return nil, err
	}
	return build(records)
}

// field is one key/value pair of a source record, in source order.
type field struct {
	key   string
	value string
}

type record []field

// blank reports whether every value of r is empty.
func (r record) blank() bool {
	for _, f := range r {
		if strings.TrimSpace(f.value) != "" {
			return false
		}
	}
	return true
}

func build(records []record) ([]types.Citation, error) {
	if len(records) == 0 {
		return nil, ErrEmpty
	}

	var out []types.Citation
	seen := make(map[string]int)
	for n, rec := range records {
		titleKey := matchKey(rec, "title")
		abstractKey := matchKey(rec, "abstract")
		if titleKey == "" || abstractKey == "" {
			if rec.blank() {
				continue
			}
			missing := "title"
			if titleKey != "" {
				missing = "abstract"
			}
			return nil, fmt.Errorf("record %d has no %s field: %w", n+1, missing, ErrMissingField)
		}

		c := types.Citation{
			IngestionIndex: len(out),
			Score:          types.NeutralScore,
		}
		for _, f := range rec {
			v := strings.TrimSpace(f.value)
			switch lk := strings.ToLower(strings.TrimSpace(f.key)); {
			case titleKey != "" && f.key == titleKey:
				c.Title = v
			case abstractKey != "" && f.key == abstractKey:
				c.Abstract = v
			case lk == "id":
				c.ID = v
			case lk == "authors" || lk == "author":
				c.Authors = splitAuthors(v)
			case lk == "year":
				if y, err := strconv.Atoi(strings.TrimSuffix(v, ".0")); err == nil {
					c.Year = y
				}
			case lk == "journal":
				c.Journal = v
			case lk == "external_id" || lk == "pmid" || lk == "doi":
				if c.ExternalID == "" {
					c.ExternalID = v
				}
			default:
				if v == "" {
					continue
				}
				if c.Metadata == nil {
					c.Metadata = make(map[string]string)
				}
				c.Metadata[lk] = v
			}
		}

		if c.Title == "" && c.Abstract == "" {
			continue
		}
		if c.ID == "" {
			c.ID = fmt.Sprintf("citation-%d", c.IngestionIndex)
		}
		if prev, ok := seen[c.ID]; ok {
			return nil, fmt.Errorf("record %d repeats id %s of record %d: %w", n+1, c.ID, prev+1, ErrDuplicateID)
		}
		seen[c.ID] = n
		out = append(out, c)
	}

	if len(out) == 0 {
		return nil, ErrEmpty
	}
	return out, nil
}

// matchKey returns the key of rec that names want: an exact
// case-insensitive match first, then the first key containing want.
func matchKey(rec record, want string) string {
	for _, f := range rec {
		if strings.EqualFold(strings.TrimSpace(f.key), want) {
			return f.key
		}
	}
	for _, f := range rec {
		if strings.Contains(strings.ToLower(f.key), want) {
			return f.key
		}
	}
	return ""
}

func splitAuthors(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	for _, a := range strings.Split(v, ";") {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

func readCSV(r io.Reader) ([]record, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading csv: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("reading csv header: %w", err)
	}

	var records []record
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading csv: %w", err)
		}
		rec := make(record, 0, len(header))
		for i, key := range header {
			v := ""
			if i < len(row) {
				v = row[i]
			}
			rec = append(rec, field{key: key, value: v})
		}
		records = append(records, rec)
	}
	return records, nil
}

func readJSON(r io.Reader) ([]record, error) {
	var raw any
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		if err == io.EOF {
			return nil, ErrEmpty
		}
		return nil, fmt.Errorf("decoding json: %w", err)
	}
	return fromDocument(raw)
}

func readYAML(r io.Reader) ([]record, error) {
	var raw any
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil {
		if err == io.EOF {
			return nil, ErrEmpty
		}
		return nil, fmt.Errorf("decoding yaml: %w", err)
	}
	return fromDocument(raw)
}

// fromDocument accepts a list of objects or an object with a "citations"
// list.
func fromDocument(raw any) ([]record, error) {
	if m, ok := raw.(map[string]any); ok {
		raw = m["citations"]
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("expected a list of citation objects")
	}

	records := make([]record, 0, len(list))
	for i, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("citation %d is not an object", i+1)
		}
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		rec := make(record, 0, len(keys))
		for _, k := range keys {
			rec = append(rec, field{key: k, value: stringify(obj[k])})
		}
		records = append(records, rec)
	}
	return records, nil
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case []any:
		parts := make([]string, 0, len(x))
		for _, p := range x {
			parts = append(parts, stringify(p))
		}
		return strings.Join(parts, "; ")
	default:
		return fmt.Sprint(x)
	}
}
