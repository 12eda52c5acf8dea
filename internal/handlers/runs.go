package handlers

import (
	"net/http"
	"strconv"

	"indexpanel/internal/storage"
)

const defaultRunsLimit = 20

// RunsHandler serves the indexing run history.
type RunsHandler struct {
	repo storage.RunStore
}

// NewRunsHandler creates a new RunsHandler.
func NewRunsHandler(repo storage.RunStore) *RunsHandler {
	return &RunsHandler{repo: repo}
}

func (h *RunsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := defaultRunsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 100 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		limit = parsed
	}

	runs, err := h.repo.ListRecent(ctx, limit)
	if err != nil {
		writeServiceError(ctx, w, err, "Failed to list runs")
		return
	}
	if runs == nil {
		runs = []*storage.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}
