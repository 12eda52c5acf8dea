package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"indexpanel/internal/retrieval"
	"indexpanel/internal/service"
)

type stubSearcher struct {
	gotQuery retrieval.Query
	results  []retrieval.Result
	err      error
}

func (s *stubSearcher) Search(_ context.Context, q retrieval.Query) ([]retrieval.Result, error) {
	s.gotQuery = q
	return s.results, s.err
}

func TestSearchHandler(t *testing.T) {
	searcher := &stubSearcher{
		results: []retrieval.Result{
			{ChunkID: "/docs/a.txt#0", FilePath: "/docs/a.txt", Score: 0.8, Excerpt: "alpha"},
		},
	}
	h := NewSearchHandler(searcher)

	req := httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader(`{"query": "alpha"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var resp SearchResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Count != 1 || len(resp.Results) != 1 {
		t.Errorf("response = %+v, want one result", resp)
	}
	if searcher.gotQuery.TopK != retrieval.DefaultTopK {
		t.Errorf("top_k = %d, want default applied", searcher.gotQuery.TopK)
	}
}

func TestSearchHandlerErrors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
	}{
		{"invalid body", "{broken", nil, http.StatusBadRequest},
		{"no index", `{"query": "x"}`, service.ErrNoIndex, http.StatusNotFound},
		{"invalid input", `{"query": ""}`, service.ErrInvalidInput, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewSearchHandler(&stubSearcher{err: tt.err})
			req := httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}
