// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the triage engine: the
// citation records under review, the per-project triage state, and the
// configuration of each component.
package types

// NeutralScore is the relevance score assigned to a citation at ingestion.
const NeutralScore = 0.5

// RelevanceThreshold separates Relevant from Irrelevant classifications.
const RelevanceThreshold = 0.5

// Citation is a bibliographic record under triage. Every field except Score
// is fixed at ingestion.
type Citation struct {
	// ID is unique within a project and stable across iterations.
	ID string `json:"id" yaml:"id"`

	// IngestionIndex is the zero-based position in the uploaded file. It
	// breaks ties when two citations share a score.
	IngestionIndex int `json:"ingestion_index" yaml:"ingestion_index"`

	// Title is the citation title.
	Title string `json:"title" yaml:"title"`

	// Abstract is the citation abstract. May be empty.
	Abstract string `json:"abstract,omitempty" yaml:"abstract,omitempty"`

	// Authors lists the authors in source order.
	Authors []string `json:"authors,omitempty" yaml:"authors,omitempty"`

	// Year is the publication year, zero when unknown.
	Year int `json:"year,omitempty" yaml:"year,omitempty"`

	// Journal is the journal or venue.
	Journal string `json:"journal,omitempty" yaml:"journal,omitempty"`

	// ExternalID is an identifier from the source database (PMID, DOI).
	ExternalID string `json:"external_id,omitempty" yaml:"external_id,omitempty"`

	// Score is the current relevance score in [0, 1].
	Score float64 `json:"score" yaml:"score"`

	// Metadata keeps source columns that have no named field. It never
	// affects scoring or ranking.
	Metadata map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Classification returns "Relevant" when the score reaches the relevance
// threshold and "Irrelevant" otherwise.
func (c Citation) Classification() string {
	if c.Score >= RelevanceThreshold {
		return "Relevant"
	}
	return "Irrelevant"
}

// Text returns the title and abstract joined for feature extraction.
func (c Citation) Text() string {
	if c.Abstract == "" {
		return c.Title
	}
	return c.Title + " " + c.Abstract
}

// Clone returns a deep copy so snapshots never alias live records.
func (c Citation) Clone() Citation {
	out := c
	if c.Authors != nil {
		out.Authors = append([]string(nil), c.Authors...)
	}
	if c.Metadata != nil {
		out.Metadata = make(map[string]string, len(c.Metadata))
		for k, v := range c.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}
