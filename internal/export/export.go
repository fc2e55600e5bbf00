// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package export renders a project's final ranking. The delimited artifact
// has one row per citation in ranking order; the report formats add the
// training history.
package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/triage-engine/internal/ranking"
	"github.com/pdiddy/triage-engine/pkg/types"
)

// Header is the first line of the delimited artifact.
const Header = "ID,Title,Relevance Score,Classification"

// ErrEmptyExport is returned when the project holds no citations.
var ErrEmptyExport = errors.New("nothing to export: project has no citations")

// Format selects an export encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatCSL  Format = "csl"
)

// ParseFormat maps a name to a Format; empty means CSV.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "csv":
		return FormatCSV, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "json":
		return FormatJSON, nil
	case "csl":
		return FormatCSL, nil
	default:
		return "", fmt.Errorf("unsupported export format %q (want csv, yaml, json, or csl)", s)
	}
}

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	switch f {
	case FormatYAML, FormatCSL:
		return "application/yaml"
	case FormatJSON:
		return "application/json"
	default:
		return "text/csv"
	}
}

// Row is one exported citation.
type Row struct {
	ID             string  `json:"id" yaml:"id"`
	Title          string  `json:"title" yaml:"title"`
	Score          float64 `json:"score" yaml:"score"`
	Classification string  `json:"classification" yaml:"classification"`
}

// Rows returns the export rows of st in ranking order.
func Rows(st types.ProjectState) ([]Row, error) {
	cs, err := ranked(st)
	if err != nil {
		return nil, err
	}
	rows := make([]Row, len(cs))
	for i, c := range cs {
		rows[i] = Row{
			ID:             c.ID,
			Title:          c.Title,
			Score:          c.Score,
			Classification: c.Classification(),
		}
	}
	return rows, nil
}

// ranked returns a copy of the citations of st in ranking order.
func ranked(st types.ProjectState) ([]types.Citation, error) {
	if len(st.Citations) == 0 {
		return nil, ErrEmptyExport
	}
	cs := make([]types.Citation, len(st.Citations))
	copy(cs, st.Citations)
	return ranking.Sort(cs, ranking.Descending), nil
}

// Exporter writes exports and records who asked for them.
type Exporter struct {
	log *zap.Logger
	now func() time.Time
}

// New returns an Exporter. A nil logger discards.
func New(log *zap.Logger) *Exporter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Exporter{log: log, now: time.Now}
}

// Write renders st to w in format f.
func (e *Exporter) Write(w io.Writer, f Format, sess types.Session, st types.ProjectState) error {
	var err error
	switch f {
	case FormatCSV:
		err = e.WriteCSV(w, sess, st)
	case FormatYAML, FormatJSON:
		err = e.writeReport(w, f, sess, st)
	case FormatCSL:
		err = e.WriteCSL(w, sess, st)
	default:
		err = fmt.Errorf("unsupported export format %q", f)
	}
	if err != nil {
		return err
	}
	e.log.Info("project exported",
		zap.String("project", st.ID), zap.String("format", string(f)),
		zap.Int("citations", len(st.Citations)), zap.String("actor", sess.Actor),
		zap.String("request_id", sess.RequestID))
	return nil
}

// WriteCSV writes the delimited artifact. Every field is quoted and embedded
// quotes are doubled.
func (e *Exporter) WriteCSV(w io.Writer, _ types.Session, st types.ProjectState) error {
	rows, err := Rows(st)
	if err != nil {
		return err
	}

	var b strings.Builder
	b.WriteString(Header)
	b.WriteByte('\n')
	for _, r := range rows {
		b.WriteString(quote(r.ID))
		b.WriteByte(',')
		b.WriteString(quote(r.Title))
		b.WriteByte(',')
		b.WriteString(quote(strconv.FormatFloat(r.Score, 'f', -1, 64)))
		b.WriteByte(',')
		b.WriteString(quote(r.Classification))
		b.WriteByte('\n')
	}
	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("writing export: %w", err)
	}
	return nil
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// Report is the structured export with history.
type Report struct {
	ProjectID        string              `json:"project_id" yaml:"project_id"`
	Name             string              `json:"name" yaml:"name"`
	Status           types.Status        `json:"status" yaml:"status"`
	CurrentIteration int                 `json:"current_iteration" yaml:"current_iteration"`
	MaxIterations    int                 `json:"max_iterations" yaml:"max_iterations"`
	ExportedBy       string              `json:"exported_by,omitempty" yaml:"exported_by,omitempty"`
	ExportedAt       time.Time           `json:"exported_at" yaml:"exported_at"`
	Keywords         types.KeywordFilter `json:"keywords" yaml:"keywords"`
	Relevant         int                 `json:"relevant" yaml:"relevant"`
	Irrelevant       int                 `json:"irrelevant" yaml:"irrelevant"`
	Citations        []Row               `json:"citations" yaml:"citations"`
	History          []IterationSummary  `json:"history" yaml:"history"`
}

// IterationSummary is the export form of a TrainingIteration.
type IterationSummary struct {
	Index         int       `json:"index" yaml:"index"`
	RelevantIDs   []string  `json:"relevant_ids" yaml:"relevant_ids"`
	IrrelevantIDs []string  `json:"irrelevant_ids" yaml:"irrelevant_ids"`
	Agreement     float64   `json:"agreement" yaml:"agreement"`
	TrainedBy     string    `json:"trained_by,omitempty" yaml:"trained_by,omitempty"`
	Timestamp     time.Time `json:"timestamp" yaml:"timestamp"`
}

// BuildReport assembles the structured export of st.
func (e *Exporter) BuildReport(sess types.Session, st types.ProjectState) (Report, error) {
	rows, err := Rows(st)
	if err != nil {
		return Report{}, err
	}
	r := Report{
		ProjectID:        st.ID,
		Name:             st.Name,
		Status:           st.Status,
		CurrentIteration: st.CurrentIteration,
		MaxIterations:    st.MaxIterations,
		ExportedBy:       sess.Actor,
		ExportedAt:       e.now().UTC(),
		Keywords:         st.Keywords,
		Citations:        rows,
		History:          make([]IterationSummary, len(st.History)),
	}
	for _, row := range rows {
		if row.Score >= types.RelevanceThreshold {
			r.Relevant++
		} else {
			r.Irrelevant++
		}
	}
	for i, it := range st.History {
		r.History[i] = IterationSummary{
			Index:         it.Index,
			RelevantIDs:   it.RelevantIDs(),
			IrrelevantIDs: it.IrrelevantIDs(),
			Agreement:     it.Agreement,
			TrainedBy:     it.TrainedBy,
			Timestamp:     it.Timestamp,
		}
	}
	return r, nil
}

func (e *Exporter) writeReport(w io.Writer, f Format, sess types.Session, st types.ProjectState) error {
	r, err := e.BuildReport(sess, st)
	if err != nil {
		return err
	}

	var data []byte
	if f == FormatYAML {
		data, err = yaml.Marshal(&r)
	} else {
		data, err = json.MarshalIndent(r, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", f, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing export: %w", err)
	}
	return nil
}
