package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"indexpanel/internal/contextutil"
	"indexpanel/internal/rag"
)

// AskHandler handles grounded question answering.
type AskHandler struct {
	ragEngine rag.Engine
}

// NewAskHandler creates a new AskHandler.
func NewAskHandler(ragEngine rag.Engine) *AskHandler {
	return &AskHandler{ragEngine: ragEngine}
}

func (h *AskHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req rag.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "Question is required")
		return
	}

	resp, err := h.ragEngine.Ask(ctx, req)
	if err != nil {
		writeServiceError(ctx, w, err, "Failed to answer question")
		return
	}

	logger.InfoContext(ctx, "question answered", "references", len(resp.References))
	writeJSON(w, http.StatusOK, resp)
}
