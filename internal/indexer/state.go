package indexer

// Phase names the lifecycle state of the controller.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseScanning  Phase = "scanning"
	PhaseEmbedding Phase = "embedding"
	PhasePaused    Phase = "paused"
	// PhaseError is held only while a failed run reports its error event;
	// the controller then returns to idle with State.Error still set.
	PhaseError Phase = "error"
)

// State is the live progress record of a run. It is mutated only by the
// controller's own sequential flow; observers receive value copies.
type State struct {
	Phase             Phase  `json:"phase"`
	RunID             string `json:"run_id,omitempty"`
	FilesQueued       int    `json:"files_queued"`
	FilesProcessed    int    `json:"files_processed"`
	FilesFailed       int    `json:"files_failed"`
	BytesProcessed    int64  `json:"bytes_processed"`
	ChunksGenerated   int    `json:"chunks_generated"`
	ChunksEmbedded    int    `json:"chunks_embedded"`
	EmbeddingsPending int    `json:"embeddings_pending"`
	EmbeddingDisabled bool   `json:"embedding_disabled,omitempty"`
	Error             string `json:"error,omitempty"`
}

// Observer receives state snapshots on phase transitions and at the
// per-file progress cadence, plus a completion or error notification when
// a run finishes.
type Observer interface {
	Stats(state State)
	Complete(state State)
	Error(state State, message string)
}

// progressInterval is the per-file cadence of observer notifications: the
// first file and every 50th thereafter, never more often.
const progressInterval = 50
