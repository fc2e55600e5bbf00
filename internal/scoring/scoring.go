// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package scoring defines the contract a re-ranking model satisfies and the
// models shipped with the engine. A model maps the full citation set, the
// current iteration's labeled examples, and the previous scores to a fresh
// score map. Models are interchangeable; the iteration controller does not
// know which one is installed.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/pdiddy/triage-engine/pkg/types"
)

// Input carries everything a model may read. Models must not mutate it.
type Input struct {
	// Citations is the full citation set in ingestion order.
	Citations []types.Citation

	// Relevant and Irrelevant are the labeled examples of this iteration.
	Relevant   []types.Citation
	Irrelevant []types.Citation

	// Previous maps citation id to its committed score.
	Previous map[string]float64
}

// Model re-scores a citation set from labeled examples.
type Model interface {
	// Name identifies the model in logs and metrics.
	Name() string

	// Rescore returns a new score for every citation in in.Citations.
	// Identical inputs must produce identical outputs.
	Rescore(ctx context.Context, in Input) (map[string]float64, error)
}

// ErrIncompleteScores is returned by Normalize when the model omitted a
// citation or produced a non-finite score.
var ErrIncompleteScores = errors.New("incomplete score map")

// Normalize checks a model's output against the contract and returns a new
// map in which labeled citations are pinned (1.0 relevant, 0.0 irrelevant)
// and every other score is clamped to [0, 1]. The raw map is not modified.
func Normalize(in Input, raw map[string]float64) (map[string]float64, error) {
	out := make(map[string]float64, len(in.Citations))
	for _, c := range in.Citations {
		v, ok := raw[c.ID]
		if !ok {
			return nil, fmt.Errorf("citation %s has no score: %w", c.ID, ErrIncompleteScores)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("citation %s scored %v: %w", c.ID, v, ErrIncompleteScores)
		}
		out[c.ID] = Clamp(v)
	}
	for _, c := range in.Relevant {
		out[c.ID] = 1.0
	}
	for _, c := range in.Irrelevant {
		out[c.ID] = 0.0
	}
	return out, nil
}

// Clamp limits v to [0, 1].
func Clamp(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// PreviousScores extracts the current score of every citation.
func PreviousScores(cs []types.Citation) map[string]float64 {
	m := make(map[string]float64, len(cs))
	for _, c := range cs {
		m[c.ID] = c.Score
	}
	return m
}
