// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/pdiddy/triage-engine/pkg/types"
)

// LoadProject reads the full state of a project: citations in ingestion
// order, committed history, and the pending selection.
func (s *Store) LoadProject(ctx context.Context, id string) (types.ProjectState, error) {
	st, err := s.loadHeader(ctx, id)
	if err != nil {
		return types.ProjectState{}, err
	}
	if st.Citations, err = s.loadCitations(ctx, id); err != nil {
		return types.ProjectState{}, err
	}
	if st.History, err = s.loadHistory(ctx, id); err != nil {
		return types.ProjectState{}, err
	}
	if st.PendingRelevant, st.PendingIrrelevant, err = s.loadSelection(ctx, id); err != nil {
		return types.ProjectState{}, err
	}
	return st, nil
}

func (s *Store) loadHeader(ctx context.Context, id string) (types.ProjectState, error) {
	query, args, err := sq.Select("id", "name", "quota", "max_iterations", "current_iteration",
		"status", "keywords_include", "keywords_exclude", "created_at", "updated_at").
		From("projects").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return types.ProjectState{}, fmt.Errorf("building project query: %w", err)
	}

	var (
		st               types.ProjectState
		status           string
		include, exclude sql.NullString
		created, updated sql.NullString
	)
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&st.ID, &st.Name, &st.Quota,
		&st.MaxIterations, &st.CurrentIteration, &status, &include, &exclude, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return types.ProjectState{}, fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return types.ProjectState{}, fmt.Errorf("loading project %s: %w", id, err)
	}

	st.Status = types.Status(status)
	if include.Valid && include.String != "" {
		if err := json.Unmarshal([]byte(include.String), &st.Keywords.Include); err != nil {
			return types.ProjectState{}, fmt.Errorf("decoding include keywords of %s: %w", id, err)
		}
	}
	if exclude.Valid && exclude.String != "" {
		if err := json.Unmarshal([]byte(exclude.String), &st.Keywords.Exclude); err != nil {
			return types.ProjectState{}, fmt.Errorf("decoding exclude keywords of %s: %w", id, err)
		}
	}
	st.CreatedAt = parseTime(created.String)
	st.UpdatedAt = parseTime(updated.String)
	return st, nil
}

func (s *Store) loadCitations(ctx context.Context, id string) ([]types.Citation, error) {
	query, args, err := sq.Select("id", "ingestion_index", "title", "abstract", "authors",
		"year", "journal", "external_id", "score", "metadata").
		From("citations").
		Where(sq.Eq{"project_id": id}).
		OrderBy("ingestion_index").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building citation query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying citations: %w", err)
	}
	defer rows.Close()

	var out []types.Citation
	for rows.Next() {
		var (
			c                                  types.Citation
			title, abstract, journal, external sql.NullString
			authors, metadata                  sql.NullString
			year                               sql.NullInt64
		)
		if err := rows.Scan(&c.ID, &c.IngestionIndex, &title, &abstract, &authors,
			&year, &journal, &external, &c.Score, &metadata); err != nil {
			return nil, fmt.Errorf("scanning citation: %w", err)
		}
		c.Title = title.String
		c.Abstract = abstract.String
		c.Journal = journal.String
		c.ExternalID = external.String
		c.Year = int(year.Int64)
		if authors.String != "" && authors.String != "[]" {
			if err := json.Unmarshal([]byte(authors.String), &c.Authors); err != nil {
				return nil, fmt.Errorf("decoding authors of %s: %w", c.ID, err)
			}
		}
		if metadata.String != "" && metadata.String != "null" {
			if err := json.Unmarshal([]byte(metadata.String), &c.Metadata); err != nil {
				return nil, fmt.Errorf("decoding metadata of %s: %w", c.ID, err)
			}
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) loadHistory(ctx context.Context, id string) ([]types.TrainingIteration, error) {
	query, args, err := sq.Select("idx", "trained_by", "created_at", "agreement").
		From("iterations").
		Where(sq.Eq{"project_id": id}).
		OrderBy("idx").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building history query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	var history []types.TrainingIteration
	pos := make(map[int]int)
	for rows.Next() {
		var (
			it        types.TrainingIteration
			trainedBy sql.NullString
			created   sql.NullString
			agreement sql.NullFloat64
		)
		if err := rows.Scan(&it.Index, &trainedBy, &created, &agreement); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning iteration: %w", err)
		}
		it.TrainedBy = trainedBy.String
		it.Timestamp = parseTime(created.String)
		it.Agreement = agreement.Float64
		it.Relevant = []types.Citation{}
		it.Irrelevant = []types.Citation{}
		pos[it.Index] = len(history)
		history = append(history, it)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}
	if len(history) == 0 {
		return nil, nil
	}

	query, args, err = sq.Select("iteration", "relevant", "snapshot").
		From("iteration_labels").
		Where(sq.Eq{"project_id": id}).
		OrderBy("iteration", "relevant DESC", "position").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building label query: %w", err)
	}
	labels, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying labels: %w", err)
	}
	defer labels.Close()

	for labels.Next() {
		var (
			iteration int
			relevant  bool
			snapshot  string
		)
		if err := labels.Scan(&iteration, &relevant, &snapshot); err != nil {
			return nil, fmt.Errorf("scanning label: %w", err)
		}
		var c types.Citation
		if err := json.Unmarshal([]byte(snapshot), &c); err != nil {
			return nil, fmt.Errorf("decoding snapshot for iteration %d: %w", iteration, err)
		}
		i, ok := pos[iteration]
		if !ok {
			continue
		}
		if relevant {
			history[i].Relevant = append(history[i].Relevant, c)
		} else {
			history[i].Irrelevant = append(history[i].Irrelevant, c)
		}
	}
	return history, labels.Err()
}

func (s *Store) loadSelection(ctx context.Context, id string) (relevant, irrelevant []string, err error) {
	query, args, err := sq.Select("citation_id", "relevant").
		From("selections").
		Where(sq.Eq{"project_id": id}).
		OrderBy("position").
		ToSql()
	if err != nil {
		return nil, nil, fmt.Errorf("building selection query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("querying selection: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid string
			rel bool
		)
		if err := rows.Scan(&cid, &rel); err != nil {
			return nil, nil, fmt.Errorf("scanning selection: %w", err)
		}
		if rel {
			relevant = append(relevant, cid)
		} else {
			irrelevant = append(irrelevant, cid)
		}
	}
	return relevant, irrelevant, rows.Err()
}
