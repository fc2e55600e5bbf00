// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/pdiddy/triage-engine/internal/triage"
)

// CommitIteration writes one train step: every score, the iteration record
// with its labeled snapshots, the new counters, and the cleared selection.
// Nothing is written unless all of it is.
func (s *Store) CommitIteration(ctx context.Context, projectID string, c triage.Commit) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	query, args, err := sq.Update("projects").
		Set("current_iteration", c.NextIteration).
		Set("status", string(c.Status)).
		Set("updated_at", formatTime(c.Iteration.Timestamp)).
		Where(sq.Eq{"id": projectID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("building project update: %w", err)
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating project %s: %w", projectID, err)
	}
	if err := expectRow(res, projectID); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		`UPDATE citations SET score = ? WHERE project_id = ? AND id = ?`)
	if err != nil {
		return fmt.Errorf("preparing score update: %w", err)
	}
	defer stmt.Close()

	for id, score := range c.Scores {
		res, err := stmt.ExecContext(ctx, score, projectID, id)
		if err != nil {
			return fmt.Errorf("updating score of %s: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("updating score of %s: citation not stored", id)
		}
	}

	it := c.Iteration
	query, args, err = sq.Insert("iterations").
		Columns("project_id", "idx", "trained_by", "created_at", "agreement").
		Values(projectID, it.Index, it.TrainedBy, formatTime(it.Timestamp), it.Agreement).
		ToSql()
	if err != nil {
		return fmt.Errorf("building iteration insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting iteration %d: %w", it.Index, err)
	}

	if len(it.Relevant)+len(it.Irrelevant) > 0 {
		ins := sq.Insert("iteration_labels").
			Columns("project_id", "iteration", "citation_id", "relevant", "position", "snapshot")
		for i, ct := range it.Relevant {
			snap, err := json.Marshal(ct)
			if err != nil {
				return fmt.Errorf("encoding snapshot of %s: %w", ct.ID, err)
			}
			ins = ins.Values(projectID, it.Index, ct.ID, 1, i, string(snap))
		}
		for i, ct := range it.Irrelevant {
			snap, err := json.Marshal(ct)
			if err != nil {
				return fmt.Errorf("encoding snapshot of %s: %w", ct.ID, err)
			}
			ins = ins.Values(projectID, it.Index, ct.ID, 0, i, string(snap))
		}
		query, args, err = ins.ToSql()
		if err != nil {
			return fmt.Errorf("building label insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("inserting labels of iteration %d: %w", it.Index, err)
		}
	}

	if err := saveSelection(ctx, tx, projectID, nil, nil); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing iteration %d: %w", it.Index, err)
	}
	return nil
}

var _ triage.Persister = (*Store)(nil)
