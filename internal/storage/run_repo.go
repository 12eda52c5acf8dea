package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_run_store.go -package=mocks indexpanel/internal/storage RunStore

import (
	"context"
	"database/sql"
	"fmt"
)

// RunStore defines the interface for run history operations.
type RunStore interface {
	// Insert records a newly started run. run.ID must be set.
	Insert(ctx context.Context, run *Run) error
	// Update overwrites a run row with its final counters and status.
	Update(ctx context.Context, run *Run) error
	// ListRecent returns runs ordered newest-first, at most limit rows.
	ListRecent(ctx context.Context, limit int) ([]*Run, error)
}

// RunRepo provides methods for run history operations.
// It implements the RunStore interface.
type RunRepo struct {
	db *sql.DB
}

// NewRunRepo creates a new RunRepo.
func NewRunRepo(db *sql.DB) *RunRepo {
	return &RunRepo{db: db}
}

// Insert records a newly started run.
func (r *RunRepo) Insert(ctx context.Context, run *Run) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, status) VALUES (?, ?, ?)`,
		run.ID, run.StartedAt, run.Status,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// Update overwrites a run row with its final counters and status.
func (r *RunRepo) Update(ctx context.Context, run *Run) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, status = ?, files_queued = ?, files_processed = ?,
		 files_failed = ?, bytes_processed = ?, chunks_generated = ?, chunks_embedded = ?,
		 snapshot_path = ?, error_message = ? WHERE id = ?`,
		run.FinishedAt, run.Status, run.FilesQueued, run.FilesProcessed,
		run.FilesFailed, run.BytesProcessed, run.ChunksGenerated, run.ChunksEmbedded,
		run.SnapshotPath, run.ErrorMessage, run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	return nil
}

// ListRecent returns runs ordered newest-first.
func (r *RunRepo) ListRecent(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, status, files_queued, files_processed,
		 files_failed, bytes_processed, chunks_generated, chunks_embedded,
		 snapshot_path, error_message
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var runs []*Run
	for rows.Next() {
		var run Run
		var finished sql.NullTime
		if err := rows.Scan(
			&run.ID, &run.StartedAt, &finished, &run.Status, &run.FilesQueued,
			&run.FilesProcessed, &run.FilesFailed, &run.BytesProcessed,
			&run.ChunksGenerated, &run.ChunksEmbedded, &run.SnapshotPath, &run.ErrorMessage,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if finished.Valid {
			t := finished.Time
			run.FinishedAt = &t
		}
		runs = append(runs, &run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return runs, nil
}
