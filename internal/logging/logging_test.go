// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/pdiddy/triage-engine/pkg/types"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     types.LoggingConfig
		level   zapcore.Level
		wantErr bool
	}{
		{"defaults", types.LoggingConfig{}, zapcore.InfoLevel, false},
		{"json debug", types.LoggingConfig{Level: "debug", Format: "json"}, zapcore.DebugLevel, false},
		{"console warn", types.LoggingConfig{Level: "WARN", Format: "Console"}, zapcore.WarnLevel, false},
		{"bad level", types.LoggingConfig{Level: "loud"}, 0, true},
		{"bad format", types.LoggingConfig{Format: "xml"}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, log.Core().Enabled(tt.level))
			assert.False(t, log.Core().Enabled(tt.level-1))
		})
	}
}
