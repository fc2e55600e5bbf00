// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package scoring

import (
	"context"
	"encoding/binary"
	"hash/fnv"
)

// DefaultStep is the largest move an unlabeled score can make in one
// iteration when the similarity gap is maximal.
const DefaultStep = 0.5

// Similarity is the reference model. Each unlabeled citation moves from its
// previous score by Step times the gap between its mean Jaccard similarity
// to the relevant examples and to the irrelevant examples. A non-zero Jitter
// adds a perturbation in [-Jitter, +Jitter] derived from Seed and the
// citation id, so reruns with the same seed reproduce exactly.
type Similarity struct {
	Step   float64
	Jitter float64
	Seed   int64
}

// NewSimilarity returns a Similarity model with the given step; a
// non-positive step uses DefaultStep.
func NewSimilarity(step float64) *Similarity {
	if step <= 0 {
		step = DefaultStep
	}
	return &Similarity{Step: step}
}

// Name implements Model.
func (m *Similarity) Name() string { return "similarity" }

// Rescore implements Model.
func (m *Similarity) Rescore(ctx context.Context, in Input) (map[string]float64, error) {
	relTokens := tokenSets(in.Relevant)
	irrTokens := tokenSets(in.Irrelevant)

	pinned := make(map[string]float64, len(in.Relevant)+len(in.Irrelevant))
	for _, c := range in.Relevant {
		pinned[c.ID] = 1.0
	}
	for _, c := range in.Irrelevant {
		pinned[c.ID] = 0.0
	}

	step := m.Step
	if step <= 0 {
		step = DefaultStep
	}

	out := make(map[string]float64, len(in.Citations))
	for i, c := range in.Citations {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if v, ok := pinned[c.ID]; ok {
			out[c.ID] = v
			continue
		}

		prev, ok := in.Previous[c.ID]
		if !ok {
			prev = c.Score
		}

		tokens := Tokenize(c.Text())
		delta := meanSimilarity(tokens, relTokens) - meanSimilarity(tokens, irrTokens)
		out[c.ID] = Clamp(prev + step*delta + m.jitter(c.ID))
	}
	return out, nil
}

func (m *Similarity) jitter(id string) float64 {
	if m.Jitter <= 0 {
		return 0
	}
	h := fnv.New64a()
	var seed [8]byte
	binary.LittleEndian.PutUint64(seed[:], uint64(m.Seed))
	h.Write(seed[:])
	h.Write([]byte(id))
	u := float64(h.Sum64()>>11) / float64(1<<53)
	return (2*u - 1) * m.Jitter
}

func meanSimilarity(tokens map[string]struct{}, examples []map[string]struct{}) float64 {
	if len(examples) == 0 {
		return 0
	}
	var sum float64
	for _, ex := range examples {
		sum += Jaccard(tokens, ex)
	}
	return sum / float64(len(examples))
}
