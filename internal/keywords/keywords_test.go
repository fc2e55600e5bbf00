// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package keywords

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/triage-engine/pkg/types"
)

func TestSuggestFallsBackToDefaults(t *testing.T) {
	cs := []types.Citation{{ID: "a", Title: "exercise"}, {ID: "b", Title: "memory"}}
	got := Suggest(cs, 10)
	assert.Equal(t, Defaults(), got)
	assert.Contains(t, got.Include, "randomized controlled trial")
	assert.Contains(t, got.Exclude, "mouse model")
}

func TestSuggestRanksByDocumentFrequency(t *testing.T) {
	cs := []types.Citation{
		{ID: "1", Title: "Aerobic exercise improves memory", Abstract: "Randomized trial in older adults"},
		{ID: "2", Title: "Aerobic exercise in mice", Abstract: "Hippocampal neurogenesis in mice"},
		{ID: "3", Title: "Resistance exercise and memory", Abstract: "Randomized trial"},
		{ID: "4", Title: "Narrative review", Abstract: "Exercise literature"},
	}

	got := Suggest(cs, 6)
	require.Len(t, append(got.Include, got.Exclude...), 6)
	// "exercise" occurs in all four citations and ranks first.
	assert.Equal(t, "exercise", got.Include[0])
	assert.Contains(t, got.Include, "aerobic exercise")
	assert.NotContains(t, got.Include, "mice")

	all := Suggest(cs, 100)
	assert.Contains(t, all.Exclude, "mice")
	assert.Contains(t, all.Exclude, "narrative review")
	assert.Contains(t, all.Include, "randomized trial")

	// Deterministic across calls.
	assert.Equal(t, all, Suggest(cs, 100))
}

func TestIsExcluded(t *testing.T) {
	tests := []struct {
		term string
		want bool
	}{
		{"mice", true},
		{"transgenic mouse", true},
		{"cell", true},
		{"meta analysis", true},
		{"case report", true},
		{"hazard ratio", false},
		{"migration rate", false},
		{"cellular", false},
		{"exercise", false},
	}
	for _, tt := range tests {
		t.Run(tt.term, func(t *testing.T) {
			assert.Equal(t, tt.want, IsExcluded(tt.term))
		})
	}
}

func TestNormalize(t *testing.T) {
	got := Normalize(types.KeywordFilter{
		Include: []string{"  Exercise ", "exercise", "Older   Adults", ""},
		Exclude: nil,
	})
	assert.Equal(t, []string{"exercise", "older adults"}, got.Include)
	assert.Equal(t, []string{}, got.Exclude)
}
