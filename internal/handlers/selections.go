package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"indexpanel/internal/contextutil"
	"indexpanel/internal/storage"
)

// SelectionsHandler manages stored include/exclude selections.
type SelectionsHandler struct {
	repo storage.SelectionStore
}

// NewSelectionsHandler creates a new SelectionsHandler.
func NewSelectionsHandler(repo storage.SelectionStore) *SelectionsHandler {
	return &SelectionsHandler{repo: repo}
}

// SaveSelectionRequest creates or replaces a named selection.
type SaveSelectionRequest struct {
	Name    string   `json:"name"`
	Include []string `json:"include"`
	Exclude []string `json:"exclude"`
}

// List returns every stored selection.
func (h *SelectionsHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	selections, err := h.repo.ListAll(ctx)
	if err != nil {
		writeServiceError(ctx, w, err, "Failed to list selections")
		return
	}
	if selections == nil {
		selections = []*storage.Selection{}
	}
	writeJSON(w, http.StatusOK, selections)
}

// Save upserts a selection by name.
func (h *SelectionsHandler) Save(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req SaveSelectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Selection name is required")
		return
	}
	if len(req.Include) == 0 && len(req.Exclude) == 0 {
		writeError(w, http.StatusBadRequest, "Selection needs at least one pattern")
		return
	}

	sel := &storage.Selection{
		ID:      uuid.New().String(),
		Name:    req.Name,
		Include: req.Include,
		Exclude: req.Exclude,
	}
	if err := h.repo.Upsert(ctx, sel); err != nil {
		writeServiceError(ctx, w, err, "Failed to save selection")
		return
	}

	logger.InfoContext(ctx, "selection saved", "name", req.Name)
	writeJSON(w, http.StatusOK, sel)
}

// Delete removes a selection by name.
func (h *SelectionsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	name := chi.URLParam(r, "name")
	if name == "" {
		writeError(w, http.StatusBadRequest, "Selection name is required")
		return
	}

	if err := h.repo.Delete(ctx, name); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Unknown selection: "+name)
			return
		}
		writeServiceError(ctx, w, err, "Failed to delete selection")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
