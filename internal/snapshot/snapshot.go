package snapshot

import (
	"errors"
	"fmt"
)

// ErrNoSnapshot is returned when no snapshot file exists yet.
var ErrNoSnapshot = errors.New("no snapshot available")

// Record is one indexed chunk: its file identity, text and, when embedding
// succeeded, its vector. The unique key is (FilePath, ChunkIndex).
type Record struct {
	FilePath   string    `json:"filePath"`
	ChunkIndex int       `json:"chunkIndex"`
	Text       string    `json:"text"`
	Embedding  []float32 `json:"embedding,omitempty"`
}

// ChunkID returns the stable chunk identifier derived from the record key.
func (r Record) ChunkID() string {
	return fmt.Sprintf("%s#%d", r.FilePath, r.ChunkIndex)
}

// Config describes how a snapshot's vectors were produced.
type Config struct {
	Type        string `json:"type"`
	Compression string `json:"compression"`
	Dimension   int    `json:"dimension"`
}

// Snapshot is one immutable, complete persisted copy of all chunk records
// for a run. All embedded records in one snapshot share Config.Dimension.
type Snapshot struct {
	Config     Config   `json:"config"`
	Embeddings []Record `json:"embeddings"`
}

// Accumulator collects chunk records during a run. It is written only by the
// controller's sequential flow and read only after the run persists it, so
// it carries no locking of its own.
type Accumulator struct {
	records []Record
}

// NewAccumulator creates an empty Accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// Append takes ownership of a record. Records are never mutated after the
// embedding is attached.
func (a *Accumulator) Append(record Record) {
	a.records = append(a.records, record)
}

// Len reports the number of accumulated records.
func (a *Accumulator) Len() int {
	return len(a.records)
}

// Records exposes the accumulated records in append order.
func (a *Accumulator) Records() []Record {
	return a.records
}
