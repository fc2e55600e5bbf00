// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Status is the lifecycle state of a project's triage.
type Status string

const (
	StatusCollecting Status = "collecting"
	StatusTraining   Status = "training"
	StatusScoring    Status = "scoring"
	StatusComplete   Status = "complete"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusCollecting, StatusTraining, StatusScoring, StatusComplete:
		return true
	}
	return false
}

// Label is the judgement a reviewer attaches to a citation.
type Label string

const (
	LabelRelevant   Label = "relevant"
	LabelIrrelevant Label = "irrelevant"
)

// KeywordFilter holds the include/exclude keyword sets chosen for a project.
// The triage engine stores it as opaque metadata.
type KeywordFilter struct {
	Include []string `json:"include" yaml:"include"`
	Exclude []string `json:"exclude" yaml:"exclude"`
}

// TrainingIteration is the immutable record of one committed train step.
type TrainingIteration struct {
	// Index is the 1-based iteration number.
	Index int `json:"index" yaml:"index"`

	// Relevant holds the citations labeled relevant, in labeling order,
	// as they were when the step started.
	Relevant []Citation `json:"relevant" yaml:"relevant"`

	// Irrelevant holds the citations labeled irrelevant, in labeling order.
	Irrelevant []Citation `json:"irrelevant" yaml:"irrelevant"`

	// Agreement is the fraction of this iteration's labels that the
	// pre-training ranking already classified the same way.
	Agreement float64 `json:"agreement" yaml:"agreement"`

	// TrainedBy is the session actor that triggered the step.
	TrainedBy string `json:"trained_by,omitempty" yaml:"trained_by,omitempty"`

	// Timestamp is when the step committed.
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
}

// RelevantIDs returns the ids of the relevant snapshot in order.
func (t TrainingIteration) RelevantIDs() []string {
	return citationIDs(t.Relevant)
}

// IrrelevantIDs returns the ids of the irrelevant snapshot in order.
func (t TrainingIteration) IrrelevantIDs() []string {
	return citationIDs(t.Irrelevant)
}

func citationIDs(cs []Citation) []string {
	ids := make([]string, len(cs))
	for i, c := range cs {
		ids[i] = c.ID
	}
	return ids
}

// ProjectState is the aggregate root for one project's triage.
type ProjectState struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`

	// Citations is ordered by ingestion index.
	Citations []Citation `json:"citations" yaml:"citations"`

	Keywords KeywordFilter `json:"keywords" yaml:"keywords"`

	History []TrainingIteration `json:"history" yaml:"history"`

	CurrentIteration int    `json:"current_iteration" yaml:"current_iteration"`
	MaxIterations    int    `json:"max_iterations" yaml:"max_iterations"`
	Quota            int    `json:"quota" yaml:"quota"`
	Status           Status `json:"status" yaml:"status"`

	// Pending selection for the current iteration, in labeling order.
	PendingRelevant   []string `json:"pending_relevant,omitempty" yaml:"pending_relevant,omitempty"`
	PendingIrrelevant []string `json:"pending_irrelevant,omitempty" yaml:"pending_irrelevant,omitempty"`

	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// Session identifies who is acting on a project. It is passed explicitly to
// write operations and exports.
type Session struct {
	Actor     string
	RequestID string
}
