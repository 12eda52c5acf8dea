package storage

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := Migrate(db); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return db
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	if err := Migrate(db); err != nil {
		t.Errorf("second Migrate() error = %v", err)
	}
}

func TestRunRepoInsertUpdateList(t *testing.T) {
	repo := NewRunRepo(newTestDB(t))
	ctx := context.Background()

	run := &Run{
		ID:        uuid.New().String(),
		StartedAt: time.Now().UTC(),
		Status:    RunStatusRunning,
	}
	if err := repo.Insert(ctx, run); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	finished := time.Now().UTC()
	run.FinishedAt = &finished
	run.Status = RunStatusComplete
	run.FilesQueued = 10
	run.FilesProcessed = 10
	run.ChunksGenerated = 42
	run.ChunksEmbedded = 40
	run.BytesProcessed = 2048
	run.SnapshotPath = "/data/snapshots/index-x.json"
	if err := repo.Update(ctx, run); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	runs, err := repo.ListRecent(ctx, 5)
	if err != nil {
		t.Fatalf("ListRecent() error = %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("ListRecent() = %d runs, want 1", len(runs))
	}
	got := runs[0]
	if got.Status != RunStatusComplete || got.ChunksEmbedded != 40 || got.FinishedAt == nil {
		t.Errorf("ListRecent()[0] = %+v", got)
	}
}

func TestRunRepoListRecentOrder(t *testing.T) {
	repo := NewRunRepo(newTestDB(t))
	ctx := context.Background()

	base := time.Now().UTC()
	for i := 0; i < 3; i++ {
		run := &Run{
			ID:        uuid.New().String(),
			StartedAt: base.Add(time.Duration(i) * time.Minute),
			Status:    RunStatusComplete,
		}
		if err := repo.Insert(ctx, run); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}

	runs, err := repo.ListRecent(ctx, 2)
	if err != nil {
		t.Fatalf("ListRecent() error = %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("ListRecent() = %d runs, want 2", len(runs))
	}
	if !runs[0].StartedAt.After(runs[1].StartedAt) {
		t.Errorf("ListRecent() not newest-first: %v, %v", runs[0].StartedAt, runs[1].StartedAt)
	}
}

func TestSelectionRepoRoundTrip(t *testing.T) {
	repo := NewSelectionRepo(newTestDB(t))
	ctx := context.Background()

	selection := &Selection{
		ID:      uuid.New().String(),
		Name:    "docs",
		Include: []string{"/data/docs"},
		Exclude: []string{"/data/docs/tmp", "**/node_modules"},
	}
	if err := repo.Upsert(ctx, selection); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	got, err := repo.GetByName(ctx, "docs")
	if err != nil {
		t.Fatalf("GetByName() error = %v", err)
	}
	if len(got.Include) != 1 || got.Include[0] != "/data/docs" {
		t.Errorf("GetByName() include = %v", got.Include)
	}
	if len(got.Exclude) != 2 {
		t.Errorf("GetByName() exclude = %v", got.Exclude)
	}

	// Upsert by name replaces the patterns.
	selection.Exclude = nil
	if err := repo.Upsert(ctx, selection); err != nil {
		t.Fatalf("second Upsert() error = %v", err)
	}
	got, err = repo.GetByName(ctx, "docs")
	if err != nil {
		t.Fatalf("GetByName() error = %v", err)
	}
	if len(got.Exclude) != 0 {
		t.Errorf("Upsert() did not replace exclude patterns: %v", got.Exclude)
	}

	all, err := repo.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll() error = %v", err)
	}
	if len(all) != 1 {
		t.Errorf("ListAll() = %d selections, want 1", len(all))
	}
}

func TestSelectionRepoNotFound(t *testing.T) {
	repo := NewSelectionRepo(newTestDB(t))
	ctx := context.Background()

	if _, err := repo.GetByName(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByName() error = %v, want ErrNotFound", err)
	}
	if err := repo.Delete(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete() error = %v, want ErrNotFound", err)
	}
}
