package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_selection_store.go -package=mocks indexpanel/internal/storage SelectionStore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// SelectionStore defines the interface for saved-selection operations.
type SelectionStore interface {
	// Upsert inserts or replaces a selection by name. selection.ID must be set.
	Upsert(ctx context.Context, selection *Selection) error
	// ListAll returns all selections ordered by name.
	ListAll(ctx context.Context) ([]*Selection, error)
	// GetByName gets a selection by name. Returns ErrNotFound if absent.
	GetByName(ctx context.Context, name string) (*Selection, error)
	// Delete removes a selection by name. Returns ErrNotFound if absent.
	Delete(ctx context.Context, name string) error
}

// SelectionRepo provides methods for saved-selection operations.
// It implements the SelectionStore interface.
type SelectionRepo struct {
	db *sql.DB
}

// NewSelectionRepo creates a new SelectionRepo.
func NewSelectionRepo(db *sql.DB) *SelectionRepo {
	return &SelectionRepo{db: db}
}

// Upsert inserts or replaces a selection by name.
func (r *SelectionRepo) Upsert(ctx context.Context, selection *Selection) error {
	includeJSON, err := json.Marshal(selection.Include)
	if err != nil {
		return fmt.Errorf("failed to marshal include patterns: %w", err)
	}
	excludeJSON, err := json.Marshal(selection.Exclude)
	if err != nil {
		return fmt.Errorf("failed to marshal exclude patterns: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO selections (id, name, include_json, exclude_json) VALUES (?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET include_json = excluded.include_json,
		 exclude_json = excluded.exclude_json`,
		selection.ID, selection.Name, string(includeJSON), string(excludeJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert selection: %w", err)
	}
	return nil
}

// ListAll returns all selections ordered by name.
func (r *SelectionRepo) ListAll(ctx context.Context) ([]*Selection, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, include_json, exclude_json, created_at FROM selections ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query selections: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var selections []*Selection
	for rows.Next() {
		selection, err := scanSelection(rows.Scan)
		if err != nil {
			return nil, err
		}
		selections = append(selections, selection)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return selections, nil
}

// GetByName gets a selection by name. Returns ErrNotFound if absent.
func (r *SelectionRepo) GetByName(ctx context.Context, name string) (*Selection, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, include_json, exclude_json, created_at FROM selections WHERE name = ?`,
		name,
	)
	selection, err := scanSelection(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return selection, nil
}

// Delete removes a selection by name. Returns ErrNotFound if absent.
func (r *SelectionRepo) Delete(ctx context.Context, name string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM selections WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("failed to delete selection: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// scanSelection reads one selection row, decoding the pattern JSON columns.
func scanSelection(scan func(dest ...any) error) (*Selection, error) {
	var selection Selection
	var includeJSON, excludeJSON string
	if err := scan(&selection.ID, &selection.Name, &includeJSON, &excludeJSON, &selection.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan selection: %w", err)
	}
	if err := json.Unmarshal([]byte(includeJSON), &selection.Include); err != nil {
		return nil, fmt.Errorf("failed to decode include patterns: %w", err)
	}
	if err := json.Unmarshal([]byte(excludeJSON), &selection.Exclude); err != nil {
		return nil, fmt.Errorf("failed to decode exclude patterns: %w", err)
	}
	return &selection, nil
}
