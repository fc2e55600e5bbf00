// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package project keeps one iteration controller per project. Controllers
// are created from ingested citations or loaded from the store on first use
// and share one bounded worker pool for scoring runs.
package project

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/pdiddy/triage-engine/internal/keywords"
	"github.com/pdiddy/triage-engine/internal/scoring"
	"github.com/pdiddy/triage-engine/internal/store"
	"github.com/pdiddy/triage-engine/internal/triage"
	"github.com/pdiddy/triage-engine/pkg/types"
)

// ErrNotFound is returned for unknown project ids.
var ErrNotFound = store.ErrNotFound

// Config configures a Registry.
type Config struct {
	Triage  types.TriageConfig
	Model   scoring.Model
	Logger  *zap.Logger
	Metrics *triage.Metrics
}

// Registry owns the controllers of all open projects.
type Registry struct {
	store *store.Store
	cfg   Config
	log   *zap.Logger
	pool  *ants.Pool

	mu          sync.Mutex
	controllers map[string]*triage.Controller
}

// NewRegistry returns a Registry backed by st. Scoring runs execute on a
// pool of cfg.Triage.Workers goroutines.
func NewRegistry(st *store.Store, cfg Config) (*Registry, error) {
	if cfg.Model == nil {
		return nil, fmt.Errorf("scoring model is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	workers := cfg.Triage.Workers
	if workers <= 0 {
		workers = types.DefaultEngineConfig().Triage.Workers
	}

	log := cfg.Logger.Named("project")
	pool, err := ants.NewPool(workers,
		ants.WithNonblocking(true),
		ants.WithPanicHandler(func(p any) {
			log.Error("scoring job panicked", zap.Any("panic", p))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("creating worker pool: %w", err)
	}

	return &Registry{
		store:       st,
		cfg:         cfg,
		log:         log,
		pool:        pool,
		controllers: make(map[string]*triage.Controller),
	}, nil
}

// Close stops the worker pool, waiting up to timeout for running jobs.
func (r *Registry) Close(timeout time.Duration) error {
	if err := r.pool.ReleaseTimeout(timeout); err != nil {
		return fmt.Errorf("releasing worker pool: %w", err)
	}
	return nil
}

// Create stores a new project over citations and returns its controller.
func (r *Registry) Create(ctx context.Context, sess types.Session, name string, citations []types.Citation) (*triage.Controller, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("project name is required")
	}
	if len(citations) == 0 {
		return nil, fmt.Errorf("project %q has no citations", name)
	}

	now := time.Now().UTC()
	st := types.ProjectState{
		ID:               uuid.NewString(),
		Name:             name,
		Citations:        citations,
		Keywords:         types.KeywordFilter{Include: []string{}, Exclude: []string{}},
		CurrentIteration: 1,
		MaxIterations:    r.cfg.Triage.MaxIterations,
		Quota:            r.cfg.Triage.Quota,
		Status:           types.StatusCollecting,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	// Validate before touching the store.
	c, err := r.newController(st)
	if err != nil {
		return nil, fmt.Errorf("creating project %q: %w", name, err)
	}
	if err := r.store.CreateProject(ctx, c.Snapshot()); err != nil {
		return nil, fmt.Errorf("storing project %q: %w", name, err)
	}

	r.mu.Lock()
	r.controllers[st.ID] = c
	r.mu.Unlock()

	r.log.Info("project created",
		zap.String("project", st.ID), zap.String("name", name),
		zap.Int("citations", len(citations)), zap.String("actor", sess.Actor))
	return c, nil
}

// Get returns the controller of project id, loading it on first use.
func (r *Registry) Get(ctx context.Context, id string) (*triage.Controller, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.controllers[id]; ok {
		return c, nil
	}
	st, err := r.store.LoadProject(ctx, id)
	if err != nil {
		return nil, err
	}
	c, err := r.newController(st)
	if err != nil {
		return nil, fmt.Errorf("opening project %s: %w", id, err)
	}
	r.controllers[id] = c
	return c, nil
}

// List returns a summary of every stored project.
func (r *Registry) List(ctx context.Context) ([]store.Summary, error) {
	return r.store.ListProjects(ctx)
}

// Delete removes a project. A project with a train step outstanding cannot
// be deleted.
func (r *Registry) Delete(ctx context.Context, sess types.Session, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.controllers[id]; ok {
		switch c.Progress().Status {
		case types.StatusTraining, types.StatusScoring:
			return triage.ErrTrainingInProgress
		}
	}
	if err := r.store.DeleteProject(ctx, id); err != nil {
		return err
	}
	delete(r.controllers, id)
	r.log.Info("project deleted", zap.String("project", id), zap.String("actor", sess.Actor))
	return nil
}

// SuggestKeywords mines keyword sets from the project's citations.
func (r *Registry) SuggestKeywords(ctx context.Context, id string, limit int) (types.KeywordFilter, error) {
	c, err := r.Get(ctx, id)
	if err != nil {
		return types.KeywordFilter{}, err
	}
	return keywords.Suggest(c.Citations(), limit), nil
}

// SetKeywords normalizes and stores the project's keyword filter.
func (r *Registry) SetKeywords(ctx context.Context, sess types.Session, id string, kf types.KeywordFilter) (types.KeywordFilter, error) {
	c, err := r.Get(ctx, id)
	if err != nil {
		return types.KeywordFilter{}, err
	}
	kf = keywords.Normalize(kf)
	if err := c.SetKeywords(ctx, sess, kf); err != nil {
		return types.KeywordFilter{}, err
	}
	return kf, nil
}

func (r *Registry) newController(st types.ProjectState) (*triage.Controller, error) {
	return triage.New(st, triage.Options{
		Model:     r.cfg.Model,
		Persister: r.store,
		Runner:    r.pool,
		Timeout:   r.cfg.Triage.TrainingTimeout,
		Logger:    r.cfg.Logger,
		Metrics:   r.cfg.Metrics,
	})
}

// IsNotFound reports whether err means the project does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
