// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/triage-engine/pkg/types"
)

func sampleInput() Input {
	cs := []types.Citation{
		{ID: "c0", IngestionIndex: 0, Title: "Randomized controlled trial of statins in cardiovascular patients", Score: 0.5},
		{ID: "c1", IngestionIndex: 1, Title: "Statin therapy randomized trial cardiovascular outcomes", Score: 0.5},
		{ID: "c2", IngestionIndex: 2, Title: "Mouse model of hepatic lipid metabolism in vitro", Score: 0.5},
		{ID: "c3", IngestionIndex: 3, Title: "In vitro hepatic cell lipid assay in mouse tissue", Score: 0.5},
		{ID: "c4", IngestionIndex: 4, Title: "Cardiovascular outcomes of statin trial in elderly patients", Score: 0.5},
		{ID: "c5", IngestionIndex: 5, Title: "Hepatic lipid metabolism in mouse cell lines", Score: 0.5},
	}
	return Input{
		Citations:  cs,
		Relevant:   []types.Citation{cs[0]},
		Irrelevant: []types.Citation{cs[2]},
		Previous:   PreviousScores(cs),
	}
}

func TestSimilarityPinsLabels(t *testing.T) {
	in := sampleInput()
	scores, err := NewSimilarity(0).Rescore(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, 1.0, scores["c0"])
	assert.Equal(t, 0.0, scores["c2"])
	assert.Len(t, scores, len(in.Citations))
}

func TestSimilarityMovesTowardExamples(t *testing.T) {
	scores, err := NewSimilarity(0).Rescore(context.Background(), sampleInput())
	require.NoError(t, err)

	assert.Greater(t, scores["c1"], 0.5, "close to relevant example")
	assert.Greater(t, scores["c4"], 0.5, "close to relevant example")
	assert.Less(t, scores["c3"], 0.5, "close to irrelevant example")
	assert.Less(t, scores["c5"], 0.5, "close to irrelevant example")
	for id, s := range scores {
		assert.GreaterOrEqual(t, s, 0.0, id)
		assert.LessOrEqual(t, s, 1.0, id)
	}
}

func TestSimilarityIsDeterministic(t *testing.T) {
	m := &Similarity{Step: 0.7, Jitter: 0.1, Seed: 42}
	a, err := m.Rescore(context.Background(), sampleInput())
	require.NoError(t, err)
	b, err := m.Rescore(context.Background(), sampleInput())
	require.NoError(t, err)
	assert.Equal(t, a, b)

	other := &Similarity{Step: 0.7, Jitter: 0.1, Seed: 43}
	c, err := other.Rescore(context.Background(), sampleInput())
	require.NoError(t, err)
	assert.NotEqual(t, a, c, "different seed perturbs differently")
	assert.Equal(t, 1.0, c["c0"])
	assert.Equal(t, 0.0, c["c2"])
}

func TestSimilarityDoesNotMutateInput(t *testing.T) {
	in := sampleInput()
	prev := make(map[string]float64, len(in.Previous))
	for k, v := range in.Previous {
		prev[k] = v
	}
	titles := make([]string, len(in.Citations))
	for i, c := range in.Citations {
		titles[i] = c.Title
	}

	_, err := NewSimilarity(0).Rescore(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, prev, in.Previous)
	for i, c := range in.Citations {
		assert.Equal(t, 0.5, c.Score)
		assert.Equal(t, titles[i], c.Title)
	}
}

func TestSimilarityClamps(t *testing.T) {
	in := sampleInput()
	in.Previous["c1"] = 0.99
	in.Previous["c3"] = 0.01
	scores, err := (&Similarity{Step: 10}).Rescore(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, 1.0, scores["c1"])
	assert.Equal(t, 0.0, scores["c3"])
}

func TestSimilarityHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewSimilarity(0).Rescore(ctx, sampleInput())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNormalize(t *testing.T) {
	in := sampleInput()

	t.Run("pins and clamps", func(t *testing.T) {
		raw := map[string]float64{"c0": 0.2, "c1": 1.7, "c2": 0.9, "c3": -3, "c4": 0.4, "c5": 0.6}
		out, err := Normalize(in, raw)
		require.NoError(t, err)
		assert.Equal(t, map[string]float64{"c0": 1, "c1": 1, "c2": 0, "c3": 0, "c4": 0.4, "c5": 0.6}, out)
		assert.Equal(t, 0.2, raw["c0"], "raw map untouched")
	})

	t.Run("missing citation", func(t *testing.T) {
		_, err := Normalize(in, map[string]float64{"c0": 1})
		assert.ErrorIs(t, err, ErrIncompleteScores)
	})

	t.Run("non-finite score", func(t *testing.T) {
		raw := map[string]float64{"c0": 1, "c1": math.NaN(), "c2": 0, "c3": 0, "c4": 0, "c5": 0}
		_, err := Normalize(in, raw)
		assert.ErrorIs(t, err, ErrIncompleteScores)
	})
}

func TestTokenize(t *testing.T) {
	got := Tokenize("The Effect of IL-6 on COVID-19: a randomized, controlled trial")
	_, hasThe := got["the"]
	_, hasEffect := got["effect"]
	_, hasCovid := got["covid"]
	_, hasOn := got["on"]
	assert.False(t, hasThe)
	assert.True(t, hasEffect)
	assert.True(t, hasCovid)
	assert.False(t, hasOn)
}

func TestJaccard(t *testing.T) {
	a := Tokenize("alpha beta gamma")
	b := Tokenize("beta gamma delta")
	assert.InDelta(t, 0.5, Jaccard(a, b), 1e-9)
	assert.Equal(t, 0.0, Jaccard(map[string]struct{}{}, map[string]struct{}{}))
	assert.Equal(t, 1.0, Jaccard(a, a))
}

func TestRemoteRescore(t *testing.T) {
	var got remoteRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		scores := map[string]float64{}
		for i, c := range got.Citations {
			scores[c.ID] = float64(i) / 10
		}
		json.NewEncoder(w).Encode(remoteResponse{Scores: scores})
	}))
	defer ts.Close()

	m, err := NewRemote(ts.Client(), types.ScoringConfig{RemoteURL: ts.URL, RemoteAPIKey: "secret"})
	require.NoError(t, err)

	in := sampleInput()
	scores, err := m.Rescore(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, []string{"c0"}, got.RelevantIDs)
	assert.Equal(t, []string{"c2"}, got.IrrelevantIDs)
	assert.Len(t, got.Citations, 6)
	assert.InDelta(t, 0.3, scores["c3"], 1e-9)
}

func TestRemoteErrorStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not fitted", http.StatusInternalServerError)
	}))
	defer ts.Close()

	m, err := NewRemote(ts.Client(), types.ScoringConfig{RemoteURL: ts.URL})
	require.NoError(t, err)
	_, err = m.Rescore(context.Background(), sampleInput())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not fitted")
}

func TestFromConfig(t *testing.T) {
	tests := []struct {
		cfg     types.ScoringConfig
		want    string
		wantErr bool
	}{
		{types.ScoringConfig{}, "similarity", false},
		{types.ScoringConfig{Backend: types.ScoringSimilarity, Step: 0.3}, "similarity", false},
		{types.ScoringConfig{Backend: types.ScoringRemote, RemoteURL: "http://localhost:1"}, "remote", false},
		{types.ScoringConfig{Backend: types.ScoringRemote}, "", true},
		{types.ScoringConfig{Backend: "svm"}, "", true},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%s", tt.cfg.Backend, tt.cfg.RemoteURL), func(t *testing.T) {
			m, err := FromConfig(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.Name())
		})
	}
}
