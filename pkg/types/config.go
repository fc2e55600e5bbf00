// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by components that make
// network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "triage-engine/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// TriageConfig holds settings for the iteration controller.
type TriageConfig struct {
	// Quota is the number of relevant and of irrelevant labels required
	// per iteration (default 5).
	Quota int `json:"quota" yaml:"quota"`

	// MaxIterations is the number of train steps before triage completes
	// automatically (default 10).
	MaxIterations int `json:"max_iterations" yaml:"max_iterations"`

	// TrainingTimeout bounds a single scoring run (default 2m).
	TrainingTimeout time.Duration `json:"training_timeout" yaml:"training_timeout"`

	// PageSize is the default ranking page size (default 5).
	PageSize int `json:"page_size" yaml:"page_size"`

	// Workers bounds how many projects may score concurrently (default 4).
	Workers int `json:"workers" yaml:"workers"`
}

// ScoringBackend selects the scoring model implementation.
type ScoringBackend string

const (
	ScoringSimilarity ScoringBackend = "similarity"
	ScoringRemote     ScoringBackend = "remote"
)

// ScoringConfig holds settings for the scoring model.
type ScoringConfig struct {
	HTTPConfig `yaml:",inline"`

	// Backend selects the model: similarity or remote.
	Backend ScoringBackend `json:"backend" yaml:"backend"`

	// Step scales how far one iteration can move an unlabeled score (default 0.5).
	Step float64 `json:"step" yaml:"step"`

	// Jitter is the half-width of the seeded perturbation added to
	// unlabeled scores. Zero disables it.
	Jitter float64 `json:"jitter" yaml:"jitter"`

	// Seed parameterizes the perturbation.
	Seed int64 `json:"seed" yaml:"seed"`

	// RemoteURL is the classifier endpoint for the remote backend.
	RemoteURL string `json:"remote_url,omitempty" yaml:"remote_url,omitempty"`

	// RemoteAPIKey authenticates against the remote classifier.
	RemoteAPIKey string `json:"remote_api_key,omitempty" yaml:"remote_api_key,omitempty"`

	// MaxRetries is the number of retries on HTTP 429 (default 5).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// StoreConfig holds settings for the SQLite store.
type StoreConfig struct {
	// Path is the database file (default "triage/triage.db").
	Path string `json:"path" yaml:"path"`
}

// ServerConfig holds settings for the HTTP API.
type ServerConfig struct {
	Host string `json:"host" yaml:"host"`
	Port int    `json:"port" yaml:"port"`
}

// LoggingConfig holds settings for the structured logger.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error (default info).
	Level string `json:"level" yaml:"level"`

	// Format is json or console (default console).
	Format string `json:"format" yaml:"format"`
}

// EngineConfig groups all component configurations.
type EngineConfig struct {
	Triage  TriageConfig  `json:"triage" yaml:"triage"`
	Scoring ScoringConfig `json:"scoring" yaml:"scoring"`
	Store   StoreConfig   `json:"store" yaml:"store"`
	Server  ServerConfig  `json:"server" yaml:"server"`
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// DefaultEngineConfig returns the configuration used when no file or
// environment override is present.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Triage: TriageConfig{
			Quota:           5,
			MaxIterations:   10,
			TrainingTimeout: 2 * time.Minute,
			PageSize:        5,
			Workers:         4,
		},
		Scoring: ScoringConfig{
			HTTPConfig: HTTPConfig{
				Timeout:   60 * time.Second,
				UserAgent: "triage-engine/0.1",
			},
			Backend:    ScoringSimilarity,
			Step:       0.5,
			MaxRetries: 5,
		},
		Store:   StoreConfig{Path: "triage/triage.db"},
		Server:  ServerConfig{Host: "localhost", Port: 8080},
		Logging: LoggingConfig{Level: "info", Format: "console"},
	}
}
