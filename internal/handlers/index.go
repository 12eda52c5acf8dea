package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"indexpanel/internal/contextutil"
	"indexpanel/internal/indexer"
	"indexpanel/internal/selection"
	"indexpanel/internal/service"
	"indexpanel/internal/storage"
)

// SnapshotInfo reports which snapshot the search engine currently serves.
type SnapshotInfo interface {
	SnapshotPath() string
}

// IndexHandler exposes the indexing run controls and live status.
type IndexHandler struct {
	controller *indexer.Controller
	selections storage.SelectionStore
	snapshots  SnapshotInfo
}

// NewIndexHandler creates a new IndexHandler.
func NewIndexHandler(controller *indexer.Controller, selections storage.SelectionStore, snapshots SnapshotInfo) *IndexHandler {
	return &IndexHandler{
		controller: controller,
		selections: selections,
		snapshots:  snapshots,
	}
}

// StartRequest names a stored selection or carries inline rules. Roots
// optionally overrides the walk roots derived from the include patterns.
type StartRequest struct {
	Selection string   `json:"selection,omitempty"`
	Include   []string `json:"include,omitempty"`
	Exclude   []string `json:"exclude,omitempty"`
	Roots     []string `json:"roots,omitempty"`
}

// StartResponse returns the identifier of the run that was started.
type StartResponse struct {
	RunID string `json:"run_id"`
}

// StatusResponse is the live run state plus the served snapshot path.
type StatusResponse struct {
	indexer.State
	SnapshotPath string `json:"snapshot_path,omitempty"`
}

// Start begins a new indexing run.
func (h *IndexHandler) Start(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	rules := selection.Rules{Include: req.Include, Exclude: req.Exclude}
	if req.Selection != "" {
		stored, err := h.selections.GetByName(ctx, req.Selection)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				writeError(w, http.StatusNotFound, "Unknown selection: "+req.Selection)
				return
			}
			writeServiceError(ctx, w, err, "Failed to load selection")
			return
		}
		rules = selection.Rules{Include: stored.Include, Exclude: stored.Exclude}
	}

	runID, err := h.controller.Start(ctx, rules, req.Roots)
	if err != nil {
		writeServiceError(ctx, w, err, "Failed to start indexing")
		return
	}

	logger.InfoContext(ctx, "indexing run started", "run_id", runID, "selection", req.Selection)
	writeJSON(w, http.StatusAccepted, StartResponse{RunID: runID})
}

// Pause suspends the active run between files.
func (h *IndexHandler) Pause(w http.ResponseWriter, r *http.Request) {
	h.control(w, r, h.controller.Pause, "Failed to pause indexing")
}

// Resume continues a paused run.
func (h *IndexHandler) Resume(w http.ResponseWriter, r *http.Request) {
	h.control(w, r, h.controller.Resume, "Failed to resume indexing")
}

// Stop aborts the active run, keeping what was already embedded.
func (h *IndexHandler) Stop(w http.ResponseWriter, r *http.Request) {
	h.control(w, r, h.controller.Stop, "Failed to stop indexing")
}

func (h *IndexHandler) control(w http.ResponseWriter, r *http.Request, op func() error, defaultMsg string) {
	ctx := r.Context()
	if err := op(); err != nil {
		// An out-of-order command is a conflict with the current phase,
		// not a malformed request.
		if errors.Is(err, service.ErrInvalidInput) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeServiceError(ctx, w, err, defaultMsg)
		return
	}
	h.writeStatus(w)
}

// Status reports the current run state.
func (h *IndexHandler) Status(w http.ResponseWriter, r *http.Request) {
	h.writeStatus(w)
}

func (h *IndexHandler) writeStatus(w http.ResponseWriter) {
	resp := StatusResponse{State: h.controller.Status()}
	if h.snapshots != nil {
		resp.SnapshotPath = h.snapshots.SnapshotPath()
	}
	writeJSON(w, http.StatusOK, resp)
}
