// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package secrets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/pdiddy/triage-engine/pkg/types"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T) string
		want  map[string]string
	}{
		{
			name: "trims values and skips blanks, dotfiles and directories",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, ClassifierAPIKey, "  tok_abc  \n")
				writeFile(t, dir, "empty", " \n\t")
				writeFile(t, dir, ".gitkeep", "x")
				require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))
				return dir
			},
			want: map[string]string{ClassifierAPIKey: "tok_abc"},
		},
		{
			name: "missing directory is empty",
			setup: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "absent")
			},
			want: map[string]string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Load(tt.setup(t), zaptest.NewLogger(t))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadSkipsUnreadable(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root can read any file")
	}
	dir := t.TempDir()
	writeFile(t, dir, ClassifierAPIKey, "tok")
	bad := filepath.Join(dir, "locked")
	require.NoError(t, os.WriteFile(bad, []byte("x"), 0o000))

	got, err := Load(dir, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{ClassifierAPIKey: "tok"}, got)
}

func TestApply(t *testing.T) {
	s := map[string]string{ClassifierAPIKey: "from-file"}

	var cfg types.ScoringConfig
	Apply(&cfg, s)
	assert.Equal(t, "from-file", cfg.RemoteAPIKey)

	cfg = types.ScoringConfig{RemoteAPIKey: "from-config"}
	Apply(&cfg, s)
	assert.Equal(t, "from-config", cfg.RemoteAPIKey)
}
