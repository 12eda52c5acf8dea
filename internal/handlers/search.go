package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"indexpanel/internal/contextutil"
	"indexpanel/internal/retrieval"
)

// Searcher answers retrieval queries.
type Searcher interface {
	Search(ctx context.Context, q retrieval.Query) ([]retrieval.Result, error)
}

// SearchHandler handles HTTP search requests.
type SearchHandler struct {
	engine Searcher
}

// NewSearchHandler creates a new SearchHandler.
func NewSearchHandler(engine Searcher) *SearchHandler {
	return &SearchHandler{engine: engine}
}

// SearchResponse wraps the scored results.
type SearchResponse struct {
	Results []retrieval.Result `json:"results"`
	Count   int                `json:"count"`
}

func (h *SearchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var query retrieval.Query
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if query.TopK == 0 {
		query.TopK = retrieval.DefaultTopK
	}

	results, err := h.engine.Search(ctx, query)
	if err != nil {
		writeServiceError(ctx, w, err, "Search failed")
		return
	}

	logger.InfoContext(ctx, "search completed", "results", len(results), "mode", query.Mode)
	writeJSON(w, http.StatusOK, SearchResponse{Results: results, Count: len(results)})
}
