package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Selection is a named, saved include/exclude rule set.
type Selection struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Include   []string  `json:"include"`
	Exclude   []string  `json:"exclude"`
	CreatedAt time.Time `json:"created_at"`
}

// Run is one indexing run's catalog row: its final counters and the
// snapshot it produced.
type Run struct {
	ID              string     `json:"id"`
	StartedAt       time.Time  `json:"started_at"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
	Status          string     `json:"status"`
	FilesQueued     int        `json:"files_queued"`
	FilesProcessed  int        `json:"files_processed"`
	FilesFailed     int        `json:"files_failed"`
	BytesProcessed  int64      `json:"bytes_processed"`
	ChunksGenerated int        `json:"chunks_generated"`
	ChunksEmbedded  int        `json:"chunks_embedded"`
	SnapshotPath    string     `json:"snapshot_path,omitempty"`
	ErrorMessage    string     `json:"error_message,omitempty"`
}

// Run statuses.
const (
	RunStatusRunning  = "running"
	RunStatusComplete = "complete"
	RunStatusStopped  = "stopped"
	RunStatusError    = "error"
)
