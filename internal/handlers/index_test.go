package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"indexpanel/internal/indexer"
	"indexpanel/internal/snapshot"
	"indexpanel/internal/storage"
	storagemocks "indexpanel/internal/storage/mocks"
)

type stubExtractor struct{}

func (stubExtractor) Extract(string) string {
	return "Plenty of plain text content so the chunker keeps this chunk around."
}

type stubSnapshots struct {
	path string
}

func (s stubSnapshots) SnapshotPath() string { return s.path }

func newTestController(t *testing.T) *indexer.Controller {
	t.Helper()
	store := snapshot.NewStore(filepath.Join(t.TempDir(), "snapshots"))
	return indexer.NewController(stubExtractor{}, store, nil, nil, nil)
}

func TestIndexStart(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("content"), 0o644); err != nil {
		t.Fatal(err)
	}

	h := NewIndexHandler(newTestController(t), nil, stubSnapshots{})

	body := strings.NewReader(`{"include": ["` + dir + `"]}`)
	req := httptest.NewRequest(http.MethodPost, "/api/index/start", body)
	rec := httptest.NewRecorder()
	h.Start(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("Start status = %d, want 202: %s", rec.Code, rec.Body.String())
	}
	var resp StartResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.RunID == "" {
		t.Error("response missing run_id")
	}

	// Let the background run drain before the temp dir is removed.
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		statusRec := httptest.NewRecorder()
		h.Status(statusRec, httptest.NewRequest(http.MethodGet, "/api/index/status", nil))
		var state StatusResponse
		_ = json.NewDecoder(statusRec.Body).Decode(&state)
		if state.Phase == indexer.PhaseIdle {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("run never finished")
}

func TestIndexStartInvalidBody(t *testing.T) {
	h := NewIndexHandler(newTestController(t), nil, stubSnapshots{})

	req := httptest.NewRequest(http.MethodPost, "/api/index/start", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	h.Start(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Start status = %d, want 400", rec.Code)
	}
}

func TestIndexStartWithoutRoots(t *testing.T) {
	h := NewIndexHandler(newTestController(t), nil, stubSnapshots{})

	req := httptest.NewRequest(http.MethodPost, "/api/index/start", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	h.Start(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Start status = %d, want 400 when nothing to index", rec.Code)
	}
}

func TestIndexStartUnknownSelection(t *testing.T) {
	ctrl := gomock.NewController(t)
	selections := storagemocks.NewMockSelectionStore(ctrl)
	selections.EXPECT().GetByName(gomock.Any(), "missing").Return(nil, storage.ErrNotFound)

	h := NewIndexHandler(newTestController(t), selections, stubSnapshots{})

	req := httptest.NewRequest(http.MethodPost, "/api/index/start", strings.NewReader(`{"selection": "missing"}`))
	rec := httptest.NewRecorder()
	h.Start(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("Start status = %d, want 404 for unknown selection", rec.Code)
	}
}

func TestIndexControlsConflictWhenIdle(t *testing.T) {
	h := NewIndexHandler(newTestController(t), nil, stubSnapshots{})

	for name, handler := range map[string]http.HandlerFunc{
		"pause":  h.Pause,
		"resume": h.Resume,
		"stop":   h.Stop,
	} {
		req := httptest.NewRequest(http.MethodPost, "/api/index/"+name, nil)
		rec := httptest.NewRecorder()
		handler(rec, req)
		if rec.Code != http.StatusConflict {
			t.Errorf("%s status = %d, want 409 while idle", name, rec.Code)
		}
	}
}

func TestIndexStatus(t *testing.T) {
	h := NewIndexHandler(newTestController(t), nil, stubSnapshots{path: "/data/snapshots/index-x.json"})

	req := httptest.NewRequest(http.MethodGet, "/api/index/status", nil)
	rec := httptest.NewRecorder()
	h.Status(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Status status = %d, want 200", rec.Code)
	}
	var resp StatusResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Phase != indexer.PhaseIdle {
		t.Errorf("phase = %q, want idle", resp.Phase)
	}
	if resp.SnapshotPath != "/data/snapshots/index-x.json" {
		t.Errorf("snapshot_path = %q", resp.SnapshotPath)
	}
}
