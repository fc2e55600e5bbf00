// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/triage-engine/internal/triage"
	"github.com/pdiddy/triage-engine/pkg/types"
)

func TestLoadConfigDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	cfg, err := loadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, types.DefaultEngineConfig(), cfg)
}

func TestLoadConfigOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("triage.quota", 3)
	v.Set("triage.training_timeout", "30s")
	v.Set("scoring.backend", "remote")
	v.Set("scoring.jitter", 0.1)
	v.Set("store.path", "/tmp/x.db")
	v.Set("server.port", 0)

	cfg, err := loadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Triage.Quota)
	assert.Equal(t, 30*time.Second, cfg.Triage.TrainingTimeout)
	assert.Equal(t, types.ScoringRemote, cfg.Scoring.Backend)
	assert.Equal(t, 0.1, cfg.Scoring.Jitter)
	assert.Equal(t, "/tmp/x.db", cfg.Store.Path)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadConfigRejects(t *testing.T) {
	tests := []struct {
		key   string
		value any
	}{
		{key: "scoring.jitter", value: 1.5},
		{key: "logging.format", value: "xml"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			v := viper.New()
			setDefaults(v)
			v.Set(tt.key, tt.value)
			_, err := loadConfig(v)
			assert.Error(t, err)
		})
	}
}

func run(t *testing.T, args ...string) string {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute(), buf.String())
	return buf.String()
}

func TestCLIWorkflow(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "triage.db")
	t.Setenv("TRIAGE_ENGINE_TRIAGE_QUOTA", "1")
	t.Setenv("TRIAGE_ENGINE_TRIAGE_MAX_ITERATIONS", "2")
	t.Setenv("TRIAGE_ENGINE_LOGGING_LEVEL", "error")

	csvPath := filepath.Join(dir, "citations.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(
		"id,title,abstract,country\n"+
			"c0,aerobic exercise and memory,older adults walking,NZ\n"+
			"c1,mouse model of ageing,mice in cages,US\n"+
			"c2,aerobic training in elderly,walking memory outcomes,UK\n"+
			"c3,rat cognition,cages and mice,US\n"), 0o644))

	out := run(t, "ingest", csvPath)
	assert.Contains(t, out, "4 citations")
	assert.Contains(t, out, "Metadata columns: country")

	out = run(t, "--db", db, "--actor", "ana", "project", "create", "Exercise", csvPath)
	fields := strings.Fields(strings.SplitN(out, "\n", 2)[0])
	require.Len(t, fields, 3)
	id := fields[2]

	run(t, "--db", db, "label", id, "relevant", "c0")
	out = run(t, "--db", db, "label", id, "irrelevant", "c1")
	assert.Contains(t, out, "Ready to train.")

	out = run(t, "--db", db, "--actor", "ana", "train", id)
	assert.Contains(t, out, "Trained iteration 1")

	out = run(t, "--db", db, "next-batch", id, "--json")
	var batch triage.Batch
	require.NoError(t, json.Unmarshal([]byte(out), &batch))
	assert.Equal(t, 2, batch.CurrentIteration)
	require.Len(t, batch.Citations, 2)
	// c2 shares vocabulary with the relevant example.
	assert.Equal(t, "c2", batch.Citations[0].ID)

	out = run(t, "--db", db, "train", id, "--relevant", "c2", "--irrelevant", "c3")
	assert.Contains(t, out, "Triage complete")

	exportPath := filepath.Join(dir, "out", "ranking.csv")
	run(t, "--db", db, "export", id, "-o", exportPath)
	data, err := os.ReadFile(exportPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "ID,Title,Relevance Score,Classification", lines[0])
	assert.True(t, strings.HasSuffix(lines[1], `"1","Relevant"`))
	assert.True(t, strings.HasSuffix(lines[4], `"0","Irrelevant"`))

	out = run(t, "--db", db, "history", id)
	assert.Contains(t, out, "Iteration 1")
	assert.Contains(t, out, "Iteration 2")
	assert.Contains(t, out, "by ana")
}
