// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "strings"

// CSLItem is a bibliographic entry in CSL (Citation Style Language) form.
// Field names follow the CSL-JSON/CSL-YAML schema so reference managers and
// Pandoc can read and produce it.
type CSLItem struct {
	ID             string    `yaml:"id" json:"id"`
	Type           string    `yaml:"type" json:"type"`
	Title          string    `yaml:"title" json:"title"`
	Author         []CSLName `yaml:"author,omitempty" json:"author,omitempty"`
	Abstract       string    `yaml:"abstract,omitempty" json:"abstract,omitempty"`
	ContainerTitle string    `yaml:"container-title,omitempty" json:"container-title,omitempty"`
	Issued         *CSLDate  `yaml:"issued,omitempty" json:"issued,omitempty"`
	DOI            string    `yaml:"DOI,omitempty" json:"DOI,omitempty"`
	PMID           string    `yaml:"PMID,omitempty" json:"PMID,omitempty"`
	Note           string    `yaml:"note,omitempty" json:"note,omitempty"`
}

// CSLName is a person's name in CSL form.
type CSLName struct {
	Family  string `yaml:"family,omitempty" json:"family,omitempty"`
	Given   string `yaml:"given,omitempty" json:"given,omitempty"`
	Literal string `yaml:"literal,omitempty" json:"literal,omitempty"`
}

// String renders the name as "Given Family", or the literal form.
func (n CSLName) String() string {
	if n.Literal != "" {
		return n.Literal
	}
	return strings.TrimSpace(n.Given + " " + n.Family)
}

// ParseCSLName splits a full name on its last space: everything before is
// given, the last token is family. Single-token names use the literal field.
func ParseCSLName(name string) CSLName {
	name = strings.TrimSpace(name)
	if name == "" {
		return CSLName{}
	}
	idx := strings.LastIndex(name, " ")
	if idx < 0 {
		return CSLName{Literal: name}
	}
	return CSLName{
		Given:  name[:idx],
		Family: name[idx+1:],
	}
}

// CSLDate is a date in CSL form using date-parts.
type CSLDate struct {
	DateParts [][]int `yaml:"date-parts" json:"date-parts"`
}

// Year returns the first year in the date, zero when absent.
func (d *CSLDate) Year() int {
	if d == nil || len(d.DateParts) == 0 || len(d.DateParts[0]) == 0 {
		return 0
	}
	return d.DateParts[0][0]
}
