// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/triage-engine/internal/project"
	"github.com/pdiddy/triage-engine/internal/scoring"
	"github.com/pdiddy/triage-engine/internal/store"
	"github.com/pdiddy/triage-engine/internal/triage"
	"github.com/pdiddy/triage-engine/pkg/types"
)

// setDefaults registers every config key so env overrides resolve even
// when no config file sets them.
func setDefaults(v *viper.Viper) {
	d := types.DefaultEngineConfig()

	v.SetDefault("triage.quota", d.Triage.Quota)
	v.SetDefault("triage.max_iterations", d.Triage.MaxIterations)
	v.SetDefault("triage.training_timeout", d.Triage.TrainingTimeout)
	v.SetDefault("triage.page_size", d.Triage.PageSize)
	v.SetDefault("triage.workers", d.Triage.Workers)

	v.SetDefault("scoring.backend", string(d.Scoring.Backend))
	v.SetDefault("scoring.step", d.Scoring.Step)
	v.SetDefault("scoring.jitter", d.Scoring.Jitter)
	v.SetDefault("scoring.seed", d.Scoring.Seed)
	v.SetDefault("scoring.remote_url", d.Scoring.RemoteURL)
	v.SetDefault("scoring.remote_api_key", d.Scoring.RemoteAPIKey)
	v.SetDefault("scoring.max_retries", d.Scoring.MaxRetries)
	v.SetDefault("scoring.timeout", d.Scoring.Timeout)
	v.SetDefault("scoring.user_agent", d.Scoring.UserAgent)

	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
}

// loadConfig resolves an EngineConfig from v. Empty strings and
// non-positive counts fall back to the defaults.
func loadConfig(v *viper.Viper) (types.EngineConfig, error) {
	cfg := types.DefaultEngineConfig()

	cfg.Triage.Quota = positive(v.GetInt("triage.quota"), cfg.Triage.Quota)
	cfg.Triage.MaxIterations = positive(v.GetInt("triage.max_iterations"), cfg.Triage.MaxIterations)
	if d := v.GetDuration("triage.training_timeout"); d > 0 {
		cfg.Triage.TrainingTimeout = d
	}
	cfg.Triage.PageSize = positive(v.GetInt("triage.page_size"), cfg.Triage.PageSize)
	cfg.Triage.Workers = positive(v.GetInt("triage.workers"), cfg.Triage.Workers)

	cfg.Scoring.Backend = types.ScoringBackend(nonEmpty(v.GetString("scoring.backend"), string(cfg.Scoring.Backend)))
	if s := v.GetFloat64("scoring.step"); s > 0 {
		cfg.Scoring.Step = s
	}
	cfg.Scoring.Jitter = v.GetFloat64("scoring.jitter")
	cfg.Scoring.Seed = v.GetInt64("scoring.seed")
	cfg.Scoring.RemoteURL = v.GetString("scoring.remote_url")
	cfg.Scoring.RemoteAPIKey = v.GetString("scoring.remote_api_key")
	cfg.Scoring.MaxRetries = positive(v.GetInt("scoring.max_retries"), cfg.Scoring.MaxRetries)
	if d := v.GetDuration("scoring.timeout"); d > 0 {
		cfg.Scoring.Timeout = d
	}
	cfg.Scoring.UserAgent = nonEmpty(v.GetString("scoring.user_agent"), cfg.Scoring.UserAgent)

	cfg.Store.Path = nonEmpty(v.GetString("store.path"), cfg.Store.Path)
	cfg.Server.Host = nonEmpty(v.GetString("server.host"), cfg.Server.Host)
	cfg.Server.Port = positive(v.GetInt("server.port"), cfg.Server.Port)
	cfg.Logging.Level = nonEmpty(v.GetString("logging.level"), cfg.Logging.Level)
	cfg.Logging.Format = nonEmpty(v.GetString("logging.format"), cfg.Logging.Format)

	if cfg.Scoring.Jitter < 0 || cfg.Scoring.Jitter > 1 {
		return cfg, fmt.Errorf("scoring.jitter must be within [0, 1], got %v", cfg.Scoring.Jitter)
	}
	switch cfg.Logging.Format {
	case "console", "json":
	default:
		return cfg, fmt.Errorf("logging.format must be console or json, got %q", cfg.Logging.Format)
	}
	return cfg, nil
}

func positive(n, def int) int {
	if n > 0 {
		return n
	}
	return def
}

func nonEmpty(s, def string) string {
	if s != "" {
		return s
	}
	return def
}

// openRegistry opens the store and a project registry over it. reg, when
// non-nil, receives the controller metrics. The returned func releases both.
func openRegistry(reg prometheus.Registerer) (*project.Registry, func(), error) {
	model, err := scoring.FromConfig(engineCfg.Scoring)
	if err != nil {
		return nil, nil, err
	}
	st, err := store.Open(engineCfg.Store)
	if err != nil {
		return nil, nil, err
	}

	var metrics *triage.Metrics
	if reg != nil {
		metrics = triage.NewMetrics(reg)
	}
	projects, err := project.NewRegistry(st, project.Config{
		Triage:  engineCfg.Triage,
		Model:   model,
		Logger:  logger,
		Metrics: metrics,
	})
	if err != nil {
		st.Close()
		return nil, nil, err
	}

	closeFn := func() {
		if err := projects.Close(engineCfg.Triage.TrainingTimeout + 5*time.Second); err != nil {
			fmt.Fprintln(os.Stderr, "Warning:", err)
		}
		st.Close()
	}
	return projects, closeFn, nil
}

// sessionFor builds the session of one CLI invocation.
func sessionFor(cmd *cobra.Command) types.Session {
	actor, _ := cmd.Flags().GetString("actor")
	if actor == "" {
		actor = os.Getenv("USER")
	}
	if actor == "" {
		actor = "cli"
	}
	return types.Session{Actor: actor, RequestID: uuid.NewString()}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
