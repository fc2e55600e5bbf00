// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package scoring

import (
	"fmt"

	"github.com/pdiddy/triage-engine/pkg/types"
)

// FromConfig builds the model selected by cfg.Backend.
func FromConfig(cfg types.ScoringConfig) (Model, error) {
	switch cfg.Backend {
	case types.ScoringSimilarity, "":
		m := NewSimilarity(cfg.Step)
		m.Jitter = cfg.Jitter
		m.Seed = cfg.Seed
		return m, nil
	case types.ScoringRemote:
		return NewRemote(nil, cfg)
	default:
		return nil, fmt.Errorf("unsupported scoring backend %q: use similarity or remote", cfg.Backend)
	}
}
