// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package selection tracks the bounded relevant and irrelevant label picks of
// a single triage iteration. A Set has no I/O; the iteration controller owns
// it and decides when it is persisted or cleared.
package selection

import (
	"errors"
	"fmt"

	"github.com/pdiddy/triage-engine/pkg/types"
)

// DefaultQuota is the number of labels required on each side when none is
// configured.
const DefaultQuota = 5

var (
	// ErrConflictingSelection is returned when a citation is labeled while
	// it already carries the opposite label.
	ErrConflictingSelection = errors.New("conflicting selection")

	// ErrCapacityExceeded is returned when the target label set is full.
	ErrCapacityExceeded = errors.New("capacity exceeded")
)

// Op records a single toggle applied to a Set.
type Op struct {
	CitationID string
	Label      types.Label
	Added      bool
}

// Set holds the relevant and irrelevant picks of one iteration. The zero
// value is not usable; call New.
type Set struct {
	quota      int
	relevant   []string
	irrelevant []string
	ops        []Op
}

// New returns an empty Set that accepts up to quota labels per side.
// A non-positive quota falls back to DefaultQuota.
func New(quota int) *Set {
	if quota <= 0 {
		quota = DefaultQuota
	}
	return &Set{quota: quota}
}

// Restore rebuilds a Set from persisted picks, keeping their order. It fails
// if the picks violate disjointness or the quota.
func Restore(quota int, relevant, irrelevant []string) (*Set, error) {
	s := New(quota)
	for _, id := range relevant {
		if err := s.ToggleRelevant(id); err != nil {
			return nil, fmt.Errorf("restoring relevant %s: %w", id, err)
		}
	}
	for _, id := range irrelevant {
		if err := s.ToggleIrrelevant(id); err != nil {
			return nil, fmt.Errorf("restoring irrelevant %s: %w", id, err)
		}
	}
	s.ops = nil
	return s, nil
}

// Quota returns the per-side label limit.
func (s *Set) Quota() int { return s.quota }

// ToggleRelevant adds id to the relevant picks, or removes it if present.
func (s *Set) ToggleRelevant(id string) error {
	return s.toggle(id, types.LabelRelevant)
}

// ToggleIrrelevant adds id to the irrelevant picks, or removes it if present.
func (s *Set) ToggleIrrelevant(id string) error {
	return s.toggle(id, types.LabelIrrelevant)
}

// Toggle dispatches on label.
func (s *Set) Toggle(id string, label types.Label) error {
	switch label {
	case types.LabelRelevant, types.LabelIrrelevant:
		return s.toggle(id, label)
	default:
		return fmt.Errorf("unknown label %q", label)
	}
}

func (s *Set) toggle(id string, label types.Label) error {
	target, other := &s.relevant, &s.irrelevant
	if label == types.LabelIrrelevant {
		target, other = &s.irrelevant, &s.relevant
	}

	if indexOf(*other, id) >= 0 {
		return fmt.Errorf("citation %s is already %s: %w", id, opposite(label), ErrConflictingSelection)
	}

	if i := indexOf(*target, id); i >= 0 {
		*target = append((*target)[:i:i], (*target)[i+1:]...)
		s.ops = append(s.ops, Op{CitationID: id, Label: label, Added: false})
		return nil
	}

	if len(*target) >= s.quota {
		return fmt.Errorf("%s picks already hold %d citations: %w", label, s.quota, ErrCapacityExceeded)
	}
	*target = append(*target, id)
	s.ops = append(s.ops, Op{CitationID: id, Label: label, Added: true})
	return nil
}

// IsReadyToTrain reports whether both sides have reached the quota.
func (s *Set) IsReadyToTrain() bool {
	return len(s.relevant) >= s.quota && len(s.irrelevant) >= s.quota
}

// Relevant returns a copy of the relevant picks in labeling order.
func (s *Set) Relevant() []string { return append([]string(nil), s.relevant...) }

// Irrelevant returns a copy of the irrelevant picks in labeling order.
func (s *Set) Irrelevant() []string { return append([]string(nil), s.irrelevant...) }

// LabelOf returns the label held by id, if any.
func (s *Set) LabelOf(id string) (types.Label, bool) {
	if indexOf(s.relevant, id) >= 0 {
		return types.LabelRelevant, true
	}
	if indexOf(s.irrelevant, id) >= 0 {
		return types.LabelIrrelevant, true
	}
	return "", false
}

// Len returns the number of relevant and irrelevant picks.
func (s *Set) Len() (relevant, irrelevant int) {
	return len(s.relevant), len(s.irrelevant)
}

// Ops returns every toggle applied since the Set was created or cleared.
func (s *Set) Ops() []Op { return append([]Op(nil), s.ops...) }

// Clear empties both sides and the operation log.
func (s *Set) Clear() {
	s.relevant = nil
	s.irrelevant = nil
	s.ops = nil
}

// Clone returns an independent copy.
func (s *Set) Clone() *Set {
	return &Set{
		quota:      s.quota,
		relevant:   s.Relevant(),
		irrelevant: s.Irrelevant(),
		ops:        s.Ops(),
	}
}

func opposite(l types.Label) types.Label {
	if l == types.LabelRelevant {
		return types.LabelIrrelevant
	}
	return types.LabelRelevant
}

func indexOf(ids []string, id string) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}
