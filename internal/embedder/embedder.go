package embedder

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_embedder.go -package=mocks indexpanel/internal/embedder Embedder

import (
	"context"
	"errors"
)

// DefaultBatchSize is the fixed upper bound on texts per EmbedBatch call.
const DefaultBatchSize = 10

var (
	// ErrTimeout is returned when the sidecar does not answer a request
	// within the per-request timeout. The caller decides whether to
	// continue without embeddings for that batch.
	ErrTimeout = errors.New("embedding request timed out")
	// ErrNotReady is returned when the sidecar never signalled readiness.
	ErrNotReady = errors.New("embedding process not ready")
	// ErrProcessExited is returned when the sidecar exited unexpectedly.
	// The client does not restart it mid-run; the next indexing start
	// re-initializes.
	ErrProcessExited = errors.New("embedding process exited")
)

// ChunkRef is the metadata-bearing request shape some call sites use in
// place of bare texts.
type ChunkRef struct {
	FilePath   string `json:"filePath"`
	ChunkIndex int    `json:"chunkIndex"`
	Text       string `json:"text"`
}

// Embedder computes embedding vectors for batches of texts. A response must
// contain exactly one vector per input text, in input order, or the call
// fails entirely.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	EmbedRecords(ctx context.Context, records []ChunkRef) ([][]float32, error)
	// Dimension reports the vector width observed on the first successful
	// response, 0 before that.
	Dimension() int
	Close() error
}
