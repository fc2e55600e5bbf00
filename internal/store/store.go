// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists project triage state in SQLite. Every controller
// state change maps to one method here; CommitIteration writes a whole train
// step in a single transaction.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/triage-engine/pkg/types"
)

// ErrNotFound is returned when a project id is not in the store.
var ErrNotFound = errors.New("project not found")

// Store manages the triage SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at cfg.Path and creates the schema if
// it does not exist.
func Open(cfg types.StoreConfig) (*Store, error) {
	path := cfg.Path
	if path == "" {
		path = types.DefaultEngineConfig().Store.Path
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS projects (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			quota INTEGER NOT NULL,
			max_iterations INTEGER NOT NULL,
			current_iteration INTEGER NOT NULL,
			status TEXT NOT NULL,
			keywords_include TEXT,
			keywords_exclude TEXT,
			created_at TEXT,
			updated_at TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS citations (
			project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
			id TEXT NOT NULL,
			ingestion_index INTEGER NOT NULL,
			title TEXT,
			abstract TEXT,
			authors TEXT,
			year INTEGER,
			journal TEXT,
			external_id TEXT,
			score REAL NOT NULL,
			metadata TEXT,
			PRIMARY KEY (project_id, id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_citations_order ON citations(project_id, ingestion_index)`,
		`CREATE TABLE IF NOT EXISTS iterations (
			project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
			idx INTEGER NOT NULL,
			trained_by TEXT,
			created_at TEXT,
			agreement REAL,
			PRIMARY KEY (project_id, idx)
		)`,
		`CREATE TABLE IF NOT EXISTS iteration_labels (
			project_id TEXT NOT NULL,
			iteration INTEGER NOT NULL,
			citation_id TEXT NOT NULL,
			relevant INTEGER NOT NULL,
			position INTEGER NOT NULL,
			snapshot TEXT NOT NULL,
			PRIMARY KEY (project_id, iteration, citation_id),
			FOREIGN KEY (project_id, iteration) REFERENCES iterations(project_id, idx) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS selections (
			project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
			citation_id TEXT NOT NULL,
			relevant INTEGER NOT NULL,
			position INTEGER NOT NULL,
			PRIMARY KEY (project_id, citation_id)
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// CreateProject inserts a new project with its citations.
func (s *Store) CreateProject(ctx context.Context, st types.ProjectState) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	include, exclude, err := encodeKeywords(st.Keywords)
	if err != nil {
		return err
	}
	query, args, err := sq.Insert("projects").
		Columns("id", "name", "quota", "max_iterations", "current_iteration", "status",
			"keywords_include", "keywords_exclude", "created_at", "updated_at").
		Values(st.ID, st.Name, st.Quota, st.MaxIterations, st.CurrentIteration, string(st.Status),
			string(include), string(exclude), formatTime(st.CreatedAt), formatTime(st.UpdatedAt)).
		ToSql()
	if err != nil {
		return fmt.Errorf("building project insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting project %s: %w", st.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO citations (project_id, id, ingestion_index, title, abstract, authors,
			year, journal, external_id, score, metadata)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing citation insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range st.Citations {
		authors, err := json.Marshal(nonNil(c.Authors))
		if err != nil {
			return fmt.Errorf("encoding authors of %s: %w", c.ID, err)
		}
		metadata, err := json.Marshal(c.Metadata)
		if err != nil {
			return fmt.Errorf("encoding metadata of %s: %w", c.ID, err)
		}
		_, err = stmt.ExecContext(ctx,
			st.ID, c.ID, c.IngestionIndex, c.Title, c.Abstract, string(authors),
			c.Year, c.Journal, c.ExternalID, c.Score, string(metadata),
		)
		if err != nil {
			return fmt.Errorf("inserting citation %s: %w", c.ID, err)
		}
	}

	if err := saveSelection(ctx, tx, st.ID, st.PendingRelevant, st.PendingIrrelevant); err != nil {
		return err
	}

	return tx.Commit()
}

// Summary is the listing row for a project.
type Summary struct {
	ID               string       `json:"id" yaml:"id"`
	Name             string       `json:"name" yaml:"name"`
	Status           types.Status `json:"status" yaml:"status"`
	CurrentIteration int          `json:"current_iteration" yaml:"current_iteration"`
	MaxIterations    int          `json:"max_iterations" yaml:"max_iterations"`
	Citations        int          `json:"citations" yaml:"citations"`
	CreatedAt        time.Time    `json:"created_at" yaml:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at" yaml:"updated_at"`
}

// ListProjects returns every project, newest first.
func (s *Store) ListProjects(ctx context.Context) ([]Summary, error) {
	query, args, err := sq.Select(
		"p.id", "p.name", "p.status", "p.current_iteration", "p.max_iterations",
		"p.created_at", "p.updated_at", "COUNT(c.id)").
		From("projects p").
		LeftJoin("citations c ON c.project_id = p.id").
		GroupBy("p.id").
		OrderBy("p.created_at DESC", "p.id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building project query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying projects: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var (
			sum              Summary
			status           string
			created, updated sql.NullString
		)
		if err := rows.Scan(&sum.ID, &sum.Name, &status, &sum.CurrentIteration, &sum.MaxIterations,
			&created, &updated, &sum.Citations); err != nil {
			return nil, fmt.Errorf("scanning project: %w", err)
		}
		sum.Status = types.Status(status)
		sum.CreatedAt = parseTime(created.String)
		sum.UpdatedAt = parseTime(updated.String)
		out = append(out, sum)
	}
	return out, rows.Err()
}

// DeleteProject removes a project and everything attached to it.
func (s *Store) DeleteProject(ctx context.Context, id string) error {
	query, args, err := sq.Delete("projects").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("building project delete: %w", err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("deleting project %s: %w", id, err)
	}
	return expectRow(res, id)
}

// SaveSelection replaces the pending selection of a project.
func (s *Store) SaveSelection(ctx context.Context, projectID string, relevant, irrelevant []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := touch(ctx, tx, projectID, sq.Eq{}); err != nil {
		return err
	}
	if err := saveSelection(ctx, tx, projectID, relevant, irrelevant); err != nil {
		return err
	}
	return tx.Commit()
}

// SaveStatus records a status change outside a train step.
func (s *Store) SaveStatus(ctx context.Context, projectID string, status types.Status, currentIteration int) error {
	return touch(ctx, s.db, projectID, sq.Eq{
		"status":            string(status),
		"current_iteration": currentIteration,
	})
}

// SaveKeywords stores the keyword filter of a project.
func (s *Store) SaveKeywords(ctx context.Context, projectID string, kf types.KeywordFilter) error {
	include, exclude, err := encodeKeywords(kf)
	if err != nil {
		return err
	}
	return touch(ctx, s.db, projectID, sq.Eq{
		"keywords_include": string(include),
		"keywords_exclude": string(exclude),
	})
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// touch updates the given project columns plus updated_at.
func touch(ctx context.Context, db execer, projectID string, set sq.Eq) error {
	q := sq.Update("projects").
		Set("updated_at", formatTime(time.Now())).
		Where(sq.Eq{"id": projectID})
	for col, v := range set {
		q = q.Set(col, v)
	}
	query, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("building project update: %w", err)
	}
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating project %s: %w", projectID, err)
	}
	return expectRow(res, projectID)
}

func saveSelection(ctx context.Context, tx *sql.Tx, projectID string, relevant, irrelevant []string) error {
	query, args, err := sq.Delete("selections").Where(sq.Eq{"project_id": projectID}).ToSql()
	if err != nil {
		return fmt.Errorf("building selection delete: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("clearing selection: %w", err)
	}
	if len(relevant) == 0 && len(irrelevant) == 0 {
		return nil
	}

	ins := sq.Insert("selections").Columns("project_id", "citation_id", "relevant", "position")
	for i, id := range relevant {
		ins = ins.Values(projectID, id, 1, i)
	}
	for i, id := range irrelevant {
		ins = ins.Values(projectID, id, 0, i)
	}
	query, args, err = ins.ToSql()
	if err != nil {
		return fmt.Errorf("building selection insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("saving selection: %w", err)
	}
	return nil
}

func expectRow(res sql.Result, projectID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("project %s: %w", projectID, ErrNotFound)
	}
	return nil
}

func encodeKeywords(kf types.KeywordFilter) (include, exclude []byte, err error) {
	if include, err = json.Marshal(nonNil(kf.Include)); err != nil {
		return nil, nil, fmt.Errorf("encoding include keywords: %w", err)
	}
	if exclude, err = json.Marshal(nonNil(kf.Exclude)); err != nil {
		return nil, nil, fmt.Errorf("encoding exclude keywords: %w", err)
	}
	return include, exclude, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
