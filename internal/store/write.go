package store

import (
	"context"
	"fmt"

	"github.com/roach88/opgraph/internal/ir"
)

// Run is the stored metadata of one run.
type Run struct {
	ID        string
	ProjectID string
	Name      string
	Summary   ir.Value
}

// PutProject inserts a project.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - duplicate IDs are silently ignored.
func (s *Store) PutProject(ctx context.Context, id, name string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (id, name) VALUES (?, ?)
		ON CONFLICT(id) DO NOTHING
	`, id, name)
	if err != nil {
		return fmt.Errorf("put project %s: %w", id, err)
	}
	return nil
}

// PutRun inserts a run after the project's existing runs. The run's
// position within its project fixes the order project-runs reports.
// Uses ON CONFLICT(id) DO NOTHING for idempotency.
//
// Note: The project referenced by ProjectID must exist (foreign key constraint).
func (s *Store) PutRun(ctx context.Context, run Run) error {
	summary := run.Summary
	if summary == nil || ir.IsNull(summary) {
		summary = ir.Object{}
	}
	summaryJSON, err := marshalValue(summary)
	if err != nil {
		return fmt.Errorf("put run %s: %w", run.ID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, project_id, name, summary, seq)
		SELECT ?, ?, ?, ?, COALESCE(MAX(seq), -1) + 1 FROM runs WHERE project_id = ?
		ON CONFLICT(id) DO NOTHING
	`, run.ID, run.ProjectID, run.Name, summaryJSON, run.ProjectID)
	if err != nil {
		return fmt.Errorf("put run %s: %w", run.ID, err)
	}
	return nil
}

// AppendHistory appends rows to a run's history. Steps continue from the
// last stored step.
func (s *Store) AppendHistory(ctx context.Context, runID string, rows ...ir.Value) error {
	var next int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(step), -1) + 1 FROM history WHERE run_id = ?`, runID,
	).Scan(&next)
	if err != nil {
		return fmt.Errorf("append history %s: %w", runID, err)
	}

	for i, row := range rows {
		rowJSON, err := marshalValue(row)
		if err != nil {
			return fmt.Errorf("append history %s step %d: %w", runID, next+int64(i), err)
		}
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO history (run_id, step, row) VALUES (?, ?, ?)`,
			runID, next+int64(i), rowJSON,
		)
		if err != nil {
			return fmt.Errorf("append history %s step %d: %w", runID, next+int64(i), err)
		}
	}
	return nil
}

// PutBlob stores content under its digest and returns the digest.
// Content-addressed: writing the same content twice is a no-op.
func (s *Store) PutBlob(ctx context.Context, content []byte) (string, error) {
	digest := ir.ContentDigest(content)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO blobs (digest, content) VALUES (?, ?)
		ON CONFLICT(digest) DO NOTHING
	`, digest, content)
	if err != nil {
		return "", fmt.Errorf("put blob: %w", err)
	}
	return digest, nil
}

// PutFile stores content and logs it under path for a run. It returns the
// file reference. Re-logging a path keeps the first content.
func (s *Store) PutFile(ctx context.Context, runID, path string, content []byte) (ir.Ref, error) {
	digest, err := s.PutBlob(ctx, content)
	if err != nil {
		return ir.Ref{}, fmt.Errorf("put file %s: %w", path, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO files (run_id, path, digest, size) VALUES (?, ?, ?, ?)
		ON CONFLICT(run_id, path) DO NOTHING
	`, runID, path, digest, len(content))
	if err != nil {
		return ir.Ref{}, fmt.Errorf("put file %s: %w", path, err)
	}

	var stored string
	err = s.db.QueryRowContext(ctx,
		`SELECT digest FROM files WHERE run_id = ? AND path = ?`, runID, path,
	).Scan(&stored)
	if err != nil {
		return ir.Ref{}, fmt.Errorf("put file %s: %w", path, err)
	}
	return ir.Ref{Kind: ir.NameFile, Digest: stored, Path: path}, nil
}
