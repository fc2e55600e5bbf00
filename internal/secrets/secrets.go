// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads credentials from a directory of plain-text files.
// Each regular file is one secret: the filename is the key name and the
// trimmed contents are the value.
//
// Known keys: classifier-api-key (bearer token for the remote scoring model).
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/triage-engine/pkg/types"
)

// DefaultDir is the secrets directory relative to the working directory.
const DefaultDir = ".secrets"

// ClassifierAPIKey names the remote classifier credential.
const ClassifierAPIKey = "classifier-api-key"

// Load reads all files in dir and returns a map of filename to trimmed
// contents. A missing directory yields an empty map. Unreadable files are
// logged and skipped.
func Load(dir string, log *zap.Logger) (map[string]string, error) {
	if log == nil {
		log = zap.NewNop()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	out := make(map[string]string)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			log.Warn("could not read secret", zap.String("key", name), zap.Error(err))
			continue
		}
		if value := strings.TrimSpace(string(data)); value != "" {
			out[name] = value
		}
	}
	return out, nil
}

// Apply copies known secrets into cfg. Values already set in cfg win.
func Apply(cfg *types.ScoringConfig, s map[string]string) {
	if cfg.RemoteAPIKey == "" {
		cfg.RemoteAPIKey = s[ClassifierAPIKey]
	}
}
