package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"indexpanel/internal/embedder"
	"indexpanel/internal/selection"
	"indexpanel/internal/service"
	"indexpanel/internal/snapshot"
	"indexpanel/internal/storage"
)

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_extractor.go -package=mocks indexpanel/internal/indexer TextExtractor

// TextExtractor turns a file into plain text. An empty string means the
// file produced no indexable content.
type TextExtractor interface {
	Extract(path string) string
}

// EmbedderFactory builds a fresh embedder for each run. Returning an
// error puts the run into embeddings-disabled mode rather than failing it.
type EmbedderFactory func(ctx context.Context) (embedder.Embedder, error)

const defaultPausePoll = 100 * time.Millisecond

// Controller drives indexing runs through the scan, extract, chunk and
// embed stages, persisting a snapshot at the end of every run. All public
// methods are safe for concurrent use.
type Controller struct {
	extractor TextExtractor
	chunker   *Chunker
	store     *snapshot.Store
	runs      storage.RunStore
	factory   EmbedderFactory
	logger    *slog.Logger

	batchSize int
	maxDepth  int
	pausePoll time.Duration

	mu        sync.Mutex
	state     State
	stopWalk  context.CancelFunc
	stopped   bool
	observers []Observer
}

func NewController(extractor TextExtractor, store *snapshot.Store, runs storage.RunStore, factory EmbedderFactory, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		extractor: extractor,
		chunker:   NewChunker(),
		store:     store,
		runs:      runs,
		factory:   factory,
		logger:    logger,
		batchSize: embedder.DefaultBatchSize,
		maxDepth:  selection.DefaultMaxDepth,
		pausePoll: defaultPausePoll,
		state:     State{Phase: PhaseIdle},
	}
}

// SetBatchSize sets the number of chunks sent per embedding call. Values
// below 1 are ignored. Takes effect on the next run.
func (c *Controller) SetBatchSize(n int) {
	if n < 1 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batchSize = n
}

// SetMaxDepth sets the directory recursion bound for the walk. Values
// below 1 are ignored. Takes effect on the next run.
func (c *Controller) SetMaxDepth(n int) {
	if n < 1 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.maxDepth = n
}

// Subscribe registers an observer for progress notifications.
func (c *Controller) Subscribe(obs Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, obs)
}

// Status returns a copy of the current run state.
func (c *Controller) Status() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start begins a new indexing run over the given roots. Only one run may
// be active at a time; starting while a run is in progress returns ErrBusy.
func (c *Controller) Start(ctx context.Context, rules selection.Rules, roots []string) (string, error) {
	if len(roots) == 0 {
		roots = rules.Roots(nil)
	}
	if len(roots) == 0 {
		return "", fmt.Errorf("%w: no roots to index", service.ErrInvalidInput)
	}

	c.mu.Lock()
	if c.state.Phase != PhaseIdle && c.state.Phase != PhaseError {
		err := fmt.Errorf("%w: run %s is %s", service.ErrBusy, c.state.RunID, c.state.Phase)
		c.mu.Unlock()
		return "", err
	}

	runID := uuid.New().String()
	walkCtx, cancel := context.WithCancel(context.Background())
	c.stopWalk = cancel
	c.stopped = false
	c.state = State{Phase: PhaseScanning, RunID: runID}
	c.mu.Unlock()

	c.notifyStats()
	go c.run(runID, rules, roots, walkCtx)
	return runID, nil
}

// Pause suspends the embedding stage. The pause takes effect between
// files; a batch already sent to the embedder is awaited first.
func (c *Controller) Pause() error {
	c.mu.Lock()
	if c.state.Phase != PhaseEmbedding {
		err := fmt.Errorf("%w: cannot pause while %s", service.ErrInvalidInput, c.state.Phase)
		c.mu.Unlock()
		return err
	}
	c.state.Phase = PhasePaused
	c.mu.Unlock()
	c.notifyStats()
	return nil
}

// Resume continues a paused run.
func (c *Controller) Resume() error {
	c.mu.Lock()
	if c.state.Phase != PhasePaused {
		err := fmt.Errorf("%w: cannot resume while %s", service.ErrInvalidInput, c.state.Phase)
		c.mu.Unlock()
		return err
	}
	c.state.Phase = PhaseEmbedding
	c.mu.Unlock()
	c.notifyStats()
	return nil
}

// Stop aborts the active run. Chunks not yet embedded are dropped, but
// everything accumulated so far is still written to a snapshot.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state.Phase {
	case PhaseScanning, PhaseEmbedding, PhasePaused:
	default:
		return fmt.Errorf("%w: no run in progress", service.ErrInvalidInput)
	}
	c.stopped = true
	if c.stopWalk != nil {
		c.stopWalk()
	}
	return nil
}

func (c *Controller) run(runID string, rules selection.Rules, roots []string, walkCtx context.Context) {
	log := c.logger.With("run_id", runID)
	acc := snapshot.NewAccumulator()

	c.mu.Lock()
	batchSize := c.batchSize
	maxDepth := c.maxDepth
	c.mu.Unlock()

	row := &storage.Run{
		ID:        runID,
		StartedAt: time.Now().UTC(),
		Status:    storage.RunStatusRunning,
	}
	if c.runs != nil {
		if err := c.runs.Insert(context.Background(), row); err != nil {
			log.Warn("failed to record run start", "error", err)
		}
	}

	// emb is declared before the recover hook so a panicking run still
	// hands the live sidecar to finish for termination.
	var emb embedder.Embedder
	defer func() {
		if r := recover(); r != nil {
			log.Error("indexing run panicked", "panic", r)
			c.finish(log, acc, emb, row, fmt.Sprintf("internal error: %v", r))
		}
	}()

	if c.factory != nil {
		var err error
		emb, err = c.factory(walkCtx)
		if err != nil {
			log.Warn("embedding unavailable, indexing without vectors", "error", err)
			c.update(func(s *State) { s.EmbeddingDisabled = true })
			emb = nil
		}
	} else {
		c.update(func(s *State) { s.EmbeddingDisabled = true })
	}

	log.Info("scan started", "roots", roots)
	files, err := selection.Walk(walkCtx, roots, rules, maxDepth)
	if err != nil {
		// Cancellation means Stop was called during the scan.
		c.finish(log, acc, emb, row, "")
		return
	}
	c.update(func(s *State) {
		s.Phase = PhaseEmbedding
		s.FilesQueued = len(files)
	})
	c.notifyStats()
	log.Info("scan complete", "files", len(files))

	var pending []embedder.ChunkRef
	for i, path := range files {
		if !c.waitWhilePaused() {
			c.finish(log, acc, emb, row, "")
			return
		}

		text := c.extractor.Extract(path)
		var size int64
		if info, statErr := os.Stat(path); statErr == nil {
			size = info.Size()
		}
		failed := text == "" && size > 0

		var chunks []string
		if text != "" {
			chunks = c.chunker.Chunk(text)
		}
		for idx, chunk := range chunks {
			pending = append(pending, embedder.ChunkRef{
				FilePath:   path,
				ChunkIndex: idx,
				Text:       chunk,
			})
		}

		c.update(func(s *State) {
			s.FilesProcessed++
			s.BytesProcessed += size
			s.ChunksGenerated += len(chunks)
			s.EmbeddingsPending = len(pending)
			if failed {
				s.FilesFailed++
			}
		})
		if i == 0 || (i+1)%progressInterval == 0 {
			c.notifyStats()
		}

		for len(pending) >= batchSize {
			batch := pending[:batchSize]
			pending = pending[batchSize:]
			emb = c.embedBatch(log, emb, acc, batch)
			c.update(func(s *State) { s.EmbeddingsPending = len(pending) })
		}
	}

	if c.isStopped() {
		// Unembedded chunks are discarded on stop.
		c.finish(log, acc, emb, row, "")
		return
	}
	if len(pending) > 0 {
		emb = c.embedBatch(log, emb, acc, pending)
		c.update(func(s *State) { s.EmbeddingsPending = 0 })
	}
	c.finish(log, acc, emb, row, "")
}

// embedBatch sends one batch to the embedder and appends the resulting
// records to the accumulator. On failure the records are kept without
// vectors so the snapshot still covers every chunk. Returns the embedder
// to use for subsequent batches, nil once the sidecar is gone.
func (c *Controller) embedBatch(log *slog.Logger, emb embedder.Embedder, acc *snapshot.Accumulator, batch []embedder.ChunkRef) embedder.Embedder {
	var vectors [][]float32
	if emb != nil {
		var err error
		// A batch in flight can only be awaited or timed out, never
		// preempted, so the request context is independent of Stop.
		vectors, err = emb.EmbedRecords(context.Background(), batch)
		if err != nil {
			log.Error("embedding batch failed", "chunks", len(batch), "error", err)
			vectors = nil
			if errors.Is(err, embedder.ErrProcessExited) {
				_ = emb.Close()
				emb = nil
				c.update(func(s *State) { s.EmbeddingDisabled = true })
			}
		}
	}

	for i, ref := range batch {
		rec := snapshot.Record{
			FilePath:   ref.FilePath,
			ChunkIndex: ref.ChunkIndex,
			Text:       ref.Text,
		}
		if vectors != nil {
			rec.Embedding = vectors[i]
		}
		acc.Append(rec)
	}
	if vectors != nil {
		c.update(func(s *State) { s.ChunksEmbedded += len(batch) })
	}
	return emb
}

// finish writes the snapshot, records the run outcome and returns the
// controller to idle. errMsg is non-empty only for failed runs.
func (c *Controller) finish(log *slog.Logger, acc *snapshot.Accumulator, emb embedder.Embedder, row *storage.Run, errMsg string) {
	if emb != nil {
		_ = emb.Close()
	}

	var snapshotPath string
	if acc.Len() > 0 && c.store != nil {
		dim := 0
		if emb != nil {
			dim = emb.Dimension()
		}
		path, err := c.store.Save(acc.Records(), dim)
		if err != nil {
			log.Error("failed to write snapshot", "error", err)
			if errMsg == "" {
				errMsg = fmt.Sprintf("snapshot write failed: %v", err)
			}
		} else {
			snapshotPath = path
			log.Info("snapshot written", "path", path, "records", acc.Len())
		}
	}

	stopped := c.isStopped()

	c.mu.Lock()
	if errMsg != "" {
		c.state.Phase = PhaseError
		c.state.Error = errMsg
	} else {
		c.state.Phase = PhaseIdle
		c.state.Error = ""
	}
	final := c.state
	if c.stopWalk != nil {
		c.stopWalk()
		c.stopWalk = nil
	}
	c.mu.Unlock()

	if c.runs != nil {
		now := time.Now().UTC()
		row.FinishedAt = &now
		row.FilesQueued = final.FilesQueued
		row.FilesProcessed = final.FilesProcessed
		row.FilesFailed = final.FilesFailed
		row.BytesProcessed = final.BytesProcessed
		row.ChunksGenerated = final.ChunksGenerated
		row.ChunksEmbedded = final.ChunksEmbedded
		row.SnapshotPath = snapshotPath
		row.ErrorMessage = errMsg
		switch {
		case errMsg != "":
			row.Status = storage.RunStatusError
		case stopped:
			row.Status = storage.RunStatusStopped
		default:
			row.Status = storage.RunStatusComplete
		}
		if err := c.runs.Update(context.Background(), row); err != nil {
			log.Warn("failed to record run outcome", "error", err)
		}
	}

	if errMsg != "" {
		log.Error("run failed", "error", errMsg)
		c.notifyError(final, errMsg)
		// The failure is reported; the controller goes back to idle so
		// the next run can start. The error message stays in the state
		// until then.
		c.update(func(s *State) { s.Phase = PhaseIdle })
		return
	}
	log.Info("run finished",
		"files", final.FilesProcessed,
		"chunks", final.ChunksGenerated,
		"embedded", final.ChunksEmbedded,
		"stopped", stopped,
	)
	c.notifyComplete(final)
}

// waitWhilePaused blocks while the run is paused, polling between files.
// Returns false once the run has been stopped.
func (c *Controller) waitWhilePaused() bool {
	for {
		c.mu.Lock()
		stopped := c.stopped
		paused := c.state.Phase == PhasePaused
		c.mu.Unlock()
		if stopped {
			return false
		}
		if !paused {
			return true
		}
		time.Sleep(c.pausePoll)
	}
}

func (c *Controller) isStopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

func (c *Controller) update(fn func(s *State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.state)
}

func (c *Controller) notifyStats() {
	c.mu.Lock()
	state := c.state
	observers := c.observers
	c.mu.Unlock()
	for _, obs := range observers {
		obs.Stats(state)
	}
}

func (c *Controller) notifyComplete(state State) {
	c.mu.Lock()
	observers := c.observers
	c.mu.Unlock()
	for _, obs := range observers {
		obs.Complete(state)
	}
}

func (c *Controller) notifyError(state State, msg string) {
	c.mu.Lock()
	observers := c.observers
	c.mu.Unlock()
	for _, obs := range observers {
		obs.Error(state, msg)
	}
}
