package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"indexpanel/internal/rag"
	"indexpanel/internal/service"
)

type stubRAG struct {
	resp rag.AskResponse
	err  error
}

func (s *stubRAG) Ask(context.Context, rag.AskRequest) (rag.AskResponse, error) {
	return s.resp, s.err
}

func TestAskHandler(t *testing.T) {
	h := NewAskHandler(&stubRAG{
		resp: rag.AskResponse{
			Answer: "Use the installer.",
			References: []rag.Reference{
				{ChunkID: "/docs/setup.md#0", FilePath: "/docs/setup.md"},
			},
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(`{"question": "how"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var resp rag.AskResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Answer == "" || len(resp.References) != 1 {
		t.Errorf("response = %+v", resp)
	}
}

func TestAskHandlerErrors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
	}{
		{"invalid body", "{broken", nil, http.StatusBadRequest},
		{"empty question", `{"question": "  "}`, nil, http.StatusBadRequest},
		{"llm offline", `{"question": "q"}`, service.ErrExternalService, http.StatusBadGateway},
		{"no index", `{"question": "q"}`, service.ErrNoIndex, http.StatusNotFound},
		{"internal", `{"question": "q"}`, errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewAskHandler(&stubRAG{err: tt.err})
			req := httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}
