package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"indexpanel/internal/contextutil"
	"indexpanel/internal/indexer"
)

// HealthHandler reports the state of the panel's dependencies.
type HealthHandler struct {
	db         *sql.DB
	controller *indexer.Controller
	snapshots  SnapshotInfo
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(db *sql.DB, controller *indexer.Controller, snapshots SnapshotInfo) *HealthHandler {
	return &HealthHandler{
		db:         db,
		controller: controller,
		snapshots:  snapshots,
	}
}

// HealthResponse is the health check payload.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Phase     indexer.Phase     `json:"phase"`
	Checks    map[string]string `json:"checks"`
	Issues    []string          `json:"issues,omitempty"`
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	checks := make(map[string]string)
	var issues []string

	if err := h.db.PingContext(ctx); err != nil {
		logger.WarnContext(ctx, "database health check failed", "error", err)
		checks["database"] = "error"
		issues = append(issues, "database_unavailable")
	} else {
		checks["database"] = "ok"
	}

	// A missing snapshot is expected before the first run finishes, so it
	// degrades the status rather than failing it.
	if h.snapshots != nil && h.snapshots.SnapshotPath() != "" {
		checks["index"] = "ok"
	} else {
		checks["index"] = "missing"
		issues = append(issues, "no_index_loaded")
	}

	status := "healthy"
	httpStatus := http.StatusOK
	switch {
	case checks["database"] == "error":
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	case len(issues) > 0:
		status = "degraded"
	}

	resp := HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Phase:     h.controller.Status().Phase,
		Checks:    checks,
		Issues:    issues,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.ErrorContext(ctx, "failed to encode health response", "error", err)
	}
}
