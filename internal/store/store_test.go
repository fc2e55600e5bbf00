// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/triage-engine/internal/scoring"
	"github.com/pdiddy/triage-engine/internal/triage"
	"github.com/pdiddy/triage-engine/pkg/types"
)

// --- test helpers ---

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(types.StoreConfig{Path: filepath.Join(t.TempDir(), "db", "triage.db")})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleProject(id string, n int) types.ProjectState {
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	st := types.ProjectState{
		ID:               id,
		Name:             "Exercise and cognition",
		Quota:            2,
		MaxIterations:    3,
		CurrentIteration: 1,
		Status:           types.StatusCollecting,
		Keywords: types.KeywordFilter{
			Include: []string{"exercise"},
			Exclude: []string{"mice"},
		},
		CreatedAt: created,
		UpdatedAt: created,
	}
	for i := 0; i < n; i++ {
		st.Citations = append(st.Citations, types.Citation{
			ID:             fmt.Sprintf("c%d", i),
			IngestionIndex: i,
			Title:          fmt.Sprintf("Title %d with \"quotes\"", i),
			Abstract:       "Abstract text",
			Authors:        []string{"Smith, J.", "Doe, A."},
			Year:           2020 + i,
			Journal:        "Journal of Trials",
			ExternalID:     fmt.Sprintf("pmid:%d", 1000+i),
			Score:          types.NeutralScore,
			Metadata:       map[string]string{"source": "pubmed"},
		})
	}
	return st
}

func TestCreateAndLoadProject(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	st := sampleProject("p1", 4)
	st.PendingRelevant = []string{"c2", "c0"}
	st.PendingIrrelevant = []string{"c3"}

	require.NoError(t, s.CreateProject(ctx, st))

	got, err := s.LoadProject(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, st.ID, got.ID)
	assert.Equal(t, st.Name, got.Name)
	assert.Equal(t, st.Quota, got.Quota)
	assert.Equal(t, st.MaxIterations, got.MaxIterations)
	assert.Equal(t, st.Status, got.Status)
	assert.Equal(t, st.Keywords, got.Keywords)
	assert.Equal(t, st.Citations, got.Citations)
	assert.True(t, st.CreatedAt.Equal(got.CreatedAt))
	assert.Equal(t, []string{"c2", "c0"}, got.PendingRelevant)
	assert.Equal(t, []string{"c3"}, got.PendingIrrelevant)
	assert.Empty(t, got.History)
}

func TestCreateDuplicateProject(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateProject(ctx, sampleProject("p1", 2)))
	assert.Error(t, s.CreateProject(ctx, sampleProject("p1", 2)))
}

func TestLoadMissingProject(t *testing.T) {
	s := testStore(t)
	_, err := s.LoadProject(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoadProjectRejectsCorruptColumns(t *testing.T) {
	tests := []struct {
		name string
		stmt string
		want string
	}{
		{"authors", `UPDATE citations SET authors = '{not json' WHERE id = 'c1'`, "decoding authors of c1"},
		{"metadata", `UPDATE citations SET metadata = '[1,' WHERE id = 'c0'`, "decoding metadata of c0"},
		{"include keywords", `UPDATE projects SET keywords_include = 'garbage'`, "decoding include keywords"},
		{"exclude keywords", `UPDATE projects SET keywords_exclude = '{"a":1}'`, "decoding exclude keywords"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testStore(t)
			ctx := context.Background()
			require.NoError(t, s.CreateProject(ctx, sampleProject("p1", 2)))

			_, err := s.db.ExecContext(ctx, tt.stmt)
			require.NoError(t, err)

			_, err = s.LoadProject(ctx, "p1")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestListAndDeleteProjects(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	older := sampleProject("old", 3)
	newer := sampleProject("new", 5)
	newer.CreatedAt = older.CreatedAt.Add(time.Hour)
	require.NoError(t, s.CreateProject(ctx, older))
	require.NoError(t, s.CreateProject(ctx, newer))

	list, err := s.ListProjects(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "new", list[0].ID)
	assert.Equal(t, 5, list[0].Citations)
	assert.Equal(t, "old", list[1].ID)
	assert.Equal(t, 3, list[1].Citations)

	require.NoError(t, s.DeleteProject(ctx, "old"))
	assert.ErrorIs(t, s.DeleteProject(ctx, "old"), ErrNotFound)

	_, err = s.LoadProject(ctx, "old")
	assert.ErrorIs(t, err, ErrNotFound)

	var n int
	require.NoError(t, s.db.QueryRow(`SELECT count(*) FROM citations WHERE project_id = 'old'`).Scan(&n))
	assert.Zero(t, n)
}

func TestSaveSelectionReplaces(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateProject(ctx, sampleProject("p1", 4)))

	require.NoError(t, s.SaveSelection(ctx, "p1", []string{"c0"}, []string{"c1"}))
	require.NoError(t, s.SaveSelection(ctx, "p1", []string{"c3", "c0"}, nil))

	got, err := s.LoadProject(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"c3", "c0"}, got.PendingRelevant)
	assert.Empty(t, got.PendingIrrelevant)

	assert.ErrorIs(t, s.SaveSelection(ctx, "nope", nil, nil), ErrNotFound)
}

func TestSaveStatusAndKeywords(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateProject(ctx, sampleProject("p1", 2)))

	require.NoError(t, s.SaveStatus(ctx, "p1", types.StatusComplete, 2))
	kf := types.KeywordFilter{Include: []string{"trial", "cohort"}, Exclude: []string{"rat"}}
	require.NoError(t, s.SaveKeywords(ctx, "p1", kf))

	got, err := s.LoadProject(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, types.StatusComplete, got.Status)
	assert.Equal(t, 2, got.CurrentIteration)
	assert.Equal(t, kf, got.Keywords)

	assert.ErrorIs(t, s.SaveStatus(ctx, "nope", types.StatusComplete, 2), ErrNotFound)
}

func TestCommitIteration(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	st := sampleProject("p1", 4)
	require.NoError(t, s.CreateProject(ctx, st))
	require.NoError(t, s.SaveSelection(ctx, "p1", []string{"c0", "c1"}, []string{"c2", "c3"}))

	ts := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	commit := triage.Commit{
		Scores: map[string]float64{"c0": 1, "c1": 1, "c2": 0, "c3": 0},
		Iteration: types.TrainingIteration{
			Index:      1,
			Relevant:   []types.Citation{st.Citations[0], st.Citations[1]},
			Irrelevant: []types.Citation{st.Citations[2], st.Citations[3]},
			Agreement:  0.5,
			TrainedBy:  "reviewer",
			Timestamp:  ts,
		},
		NextIteration: 2,
		Status:        types.StatusCollecting,
	}
	require.NoError(t, s.CommitIteration(ctx, "p1", commit))

	got, err := s.LoadProject(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.CurrentIteration)
	assert.Equal(t, types.StatusCollecting, got.Status)
	assert.Empty(t, got.PendingRelevant)
	assert.Empty(t, got.PendingIrrelevant)
	assert.Equal(t, 1.0, got.Citations[0].Score)
	assert.Equal(t, 0.0, got.Citations[3].Score)

	require.Len(t, got.History, 1)
	h := got.History[0]
	assert.Equal(t, 1, h.Index)
	assert.Equal(t, "reviewer", h.TrainedBy)
	assert.Equal(t, 0.5, h.Agreement)
	assert.True(t, ts.Equal(h.Timestamp))
	assert.Equal(t, []string{"c0", "c1"}, h.RelevantIDs())
	assert.Equal(t, []string{"c2", "c3"}, h.IrrelevantIDs())
	// Snapshots keep the scores at labeling time.
	assert.Equal(t, types.NeutralScore, h.Relevant[0].Score)
	assert.Equal(t, st.Citations[0].Title, h.Relevant[0].Title)
}

func TestCommitIterationIsAtomic(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	st := sampleProject("p1", 3)
	require.NoError(t, s.CreateProject(ctx, st))
	require.NoError(t, s.SaveSelection(ctx, "p1", []string{"c0"}, []string{"c1"}))
	before, err := s.LoadProject(ctx, "p1")
	require.NoError(t, err)

	err = s.CommitIteration(ctx, "p1", triage.Commit{
		Scores:        map[string]float64{"c0": 1, "c1": 0, "ghost": 0.7},
		Iteration:     types.TrainingIteration{Index: 1, Timestamp: time.Now()},
		NextIteration: 2,
		Status:        types.StatusCollecting,
	})
	require.Error(t, err)

	after, err := s.LoadProject(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, before, after)

	err = s.CommitIteration(ctx, "nope", triage.Commit{Iteration: types.TrainingIteration{Index: 1}})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestControllerRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	st := sampleProject("p1", 6)
	require.NoError(t, s.CreateProject(ctx, st))

	opts := triage.Options{Model: scoring.NewSimilarity(0), Persister: s}
	c, err := triage.New(st, opts)
	require.NoError(t, err)

	sess := types.Session{Actor: "reviewer"}
	require.NoError(t, c.ToggleRelevant(ctx, sess, "c0"))
	require.NoError(t, c.ToggleRelevant(ctx, sess, "c1"))
	require.NoError(t, c.ToggleIrrelevant(ctx, sess, "c4"))
	require.NoError(t, c.ToggleIrrelevant(ctx, sess, "c5"))
	_, err = c.Train(ctx, sess)
	require.NoError(t, err)
	require.NoError(t, c.ToggleRelevant(ctx, sess, "c2"))

	loaded, err := s.LoadProject(ctx, "p1")
	require.NoError(t, err)
	restored, err := triage.New(loaded, opts)
	require.NoError(t, err)

	want := c.Snapshot()
	got := restored.Snapshot()
	assert.Equal(t, want.Citations, got.Citations)
	assert.Equal(t, want.CurrentIteration, got.CurrentIteration)
	assert.Equal(t, want.PendingRelevant, got.PendingRelevant)
	require.Len(t, got.History, 1)
	assert.Equal(t, want.History[0].RelevantIDs(), got.History[0].RelevantIDs())
	assert.True(t, want.History[0].Timestamp.Equal(got.History[0].Timestamp))
}
