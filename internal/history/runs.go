package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/backmassage/pngcrunch/internal/optimizer"
	"github.com/backmassage/pngcrunch/internal/pipeline"
)

// Run describes one invocation of the optimizer.
type Run struct {
	ID         string // Assigned by RecordRun when empty.
	StartedAt  time.Time
	FinishedAt time.Time
	Jobs       int
	Threshold  int64
	Stats      pipeline.RunStats
}

// TaskRow is one recorded file.
type TaskRow struct {
	Path           string
	OriginalSize   int64
	FinalSize      int64
	Iterations     int
	Corrupted      int
	EngineFailures int
	Error          string
	Steps          int
}

// RecordRun stores run and its reports in one transaction and returns the
// run ID.
func (s *Store) RecordRun(ctx context.Context, run Run, reports []optimizer.Report) (string, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	st := run.Stats
	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, finished_at, jobs, threshold, total, converged, aborted,
			skipped, corrupted, engine_failures, original_bytes, final_bytes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.StartedAt.UTC(), run.FinishedAt.UTC(), run.Jobs, run.Threshold,
		st.Total, st.Converged, st.Aborted, st.Skipped, st.Corrupted, st.EngineFailures,
		st.TotalOriginalBytes, st.TotalFinalBytes)
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	for _, rep := range reports {
		var errStr sql.NullString
		if rep.Err != nil {
			errStr = sql.NullString{String: rep.Err.Error(), Valid: true}
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO tasks (run_id, path, original_size, final_size, iterations, corrupted, engine_failures, error)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, run.ID, rep.Path, rep.OriginalSize, rep.FinalSize, rep.Iterations, rep.Corrupted, rep.EngineFailures, errStr)
		if err != nil {
			return "", fmt.Errorf("failed to insert task %s: %w", rep.Path, err)
		}
		taskID, err := res.LastInsertId()
		if err != nil {
			return "", fmt.Errorf("failed to read task id: %w", err)
		}

		for i, step := range rep.Steps {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO steps (task_id, seq, iteration, engine, engine_ok, outcome, size_before, size_after)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			`, taskID, i, step.Iteration, step.Engine, step.EngineOK, step.Outcome.String(), step.SizeBefore, step.SizeAfter)
			if err != nil {
				return "", fmt.Errorf("failed to insert step %d of %s: %w", i, rep.Path, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}
	return run.ID, nil
}

// Runs returns the most recent runs first, at most limit of them.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, jobs, threshold, total, converged, aborted,
			skipped, corrupted, engine_failures, original_bytes, final_bytes
		FROM runs ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		st := &r.Stats
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Jobs, &r.Threshold,
			&st.Total, &st.Converged, &st.Aborted, &st.Skipped, &st.Corrupted, &st.EngineFailures,
			&st.TotalOriginalBytes, &st.TotalFinalBytes); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Tasks returns the files recorded for runID in path order.
func (s *Store) Tasks(ctx context.Context, runID string) ([]TaskRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.path, t.original_size, t.final_size, t.iterations, t.corrupted, t.engine_failures,
			COALESCE(t.error, ''), (SELECT COUNT(*) FROM steps s WHERE s.task_id = t.id)
		FROM tasks t WHERE t.run_id = ? ORDER BY t.path
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var out []TaskRow
	for rows.Next() {
		var t TaskRow
		if err := rows.Scan(&t.Path, &t.OriginalSize, &t.FinalSize, &t.Iterations,
			&t.Corrupted, &t.EngineFailures, &t.Error, &t.Steps); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
