package retrieval

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/mock/gomock"

	"indexpanel/internal/embedder/mocks"
	"indexpanel/internal/service"
	"indexpanel/internal/snapshot"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newStoreWith(t *testing.T, records []snapshot.Record, dimension int) *snapshot.Store {
	t.Helper()
	store := snapshot.NewStore(filepath.Join(t.TempDir(), "snapshots"))
	if _, err := store.Save(records, dimension); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	return store
}

func TestSearchKeywordTermFraction(t *testing.T) {
	store := newStoreWith(t, []snapshot.Record{
		{FilePath: "/docs/a.txt", ChunkIndex: 0, Text: "alpha and gamma are mentioned here"},
	}, 0)
	engine := NewEngine(store, nil, quietLogger())

	results, err := engine.Search(context.Background(), Query{Text: "alpha beta", Mode: ModeKeyword, TopK: 10})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Search() = %d results, want 1", len(results))
	}
	if results[0].Score != 0.5 {
		t.Errorf("score = %v, want 0.5 (one of two terms matched)", results[0].Score)
	}
	if len(results[0].Highlights) != 1 || results[0].Highlights[0] != "alpha" {
		t.Errorf("highlights = %v, want [alpha]", results[0].Highlights)
	}
}

func TestSearchMatchingIsCaseInsensitive(t *testing.T) {
	store := newStoreWith(t, []snapshot.Record{
		{FilePath: "/docs/a.txt", ChunkIndex: 0, Text: "The Gopher Handbook"},
	}, 0)
	engine := NewEngine(store, nil, quietLogger())

	results, err := engine.Search(context.Background(), Query{Text: "GOPHER", Mode: ModeKeyword, TopK: 10})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 || results[0].Score != 1 {
		t.Errorf("Search() = %v, want one full match", results)
	}
}

func TestSearchNoIndex(t *testing.T) {
	store := snapshot.NewStore(filepath.Join(t.TempDir(), "snapshots"))
	engine := NewEngine(store, nil, quietLogger())

	_, err := engine.Search(context.Background(), Query{Text: "anything", TopK: 10})
	if !errors.Is(err, service.ErrNoIndex) {
		t.Errorf("Search() error = %v, want ErrNoIndex", err)
	}
}

func TestSearchMinScoreFiltersEverything(t *testing.T) {
	store := newStoreWith(t, []snapshot.Record{
		{FilePath: "/docs/a.txt", ChunkIndex: 0, Text: "alpha beta"},
	}, 0)
	engine := NewEngine(store, nil, quietLogger())

	results, err := engine.Search(context.Background(), Query{Text: "alpha", Mode: ModeKeyword, TopK: 10, MinScore: 1.01})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Search() = %d results, want 0 with min score above any possible score", len(results))
	}
}

func TestSearchTopKZeroIsEmpty(t *testing.T) {
	store := newStoreWith(t, []snapshot.Record{
		{FilePath: "/docs/a.txt", ChunkIndex: 0, Text: "alpha"},
	}, 0)
	engine := NewEngine(store, nil, quietLogger())

	results, err := engine.Search(context.Background(), Query{Text: "alpha", Mode: ModeKeyword, TopK: 0})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Search() = %d results, want 0 for top_k 0", len(results))
	}
}

func TestSearchTieKeepsSnapshotOrder(t *testing.T) {
	store := newStoreWith(t, []snapshot.Record{
		{FilePath: "/docs/b.txt", ChunkIndex: 0, Text: "alpha content one"},
		{FilePath: "/docs/a.txt", ChunkIndex: 0, Text: "alpha content two"},
		{FilePath: "/docs/c.txt", ChunkIndex: 0, Text: "alpha content three"},
	}, 0)
	engine := NewEngine(store, nil, quietLogger())

	results, err := engine.Search(context.Background(), Query{Text: "alpha", Mode: ModeKeyword, TopK: 10})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("Search() = %d results, want 3", len(results))
	}
	want := []string{"/docs/b.txt", "/docs/a.txt", "/docs/c.txt"}
	for i, r := range results {
		if r.FilePath != want[i] {
			t.Errorf("result %d = %s, want %s (snapshot order on equal scores)", i, r.FilePath, want[i])
		}
	}
}

func TestSearchSemanticRanksByCosine(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockEmb := mocks.NewMockEmbedder(ctrl)
	mockEmb.EXPECT().EmbedBatch(gomock.Any(), []string{"query"}).
		Return([][]float32{{1, 0}}, nil)

	store := newStoreWith(t, []snapshot.Record{
		{FilePath: "/docs/far.txt", ChunkIndex: 0, Text: "unrelated", Embedding: []float32{0, 1}},
		{FilePath: "/docs/near.txt", ChunkIndex: 0, Text: "relevant", Embedding: []float32{1, 0}},
	}, 2)
	engine := NewEngine(store, mockEmb, quietLogger())

	results, err := engine.Search(context.Background(), Query{Text: "query", Mode: ModeSemantic, TopK: 10})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Search() = %d results, want 1 (orthogonal vector scores zero)", len(results))
	}
	if results[0].FilePath != "/docs/near.txt" {
		t.Errorf("top result = %s, want /docs/near.txt", results[0].FilePath)
	}
	if results[0].Semantic < 0.999 {
		t.Errorf("semantic score = %v, want ~1", results[0].Semantic)
	}
}

func TestSearchHybridWeights(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockEmb := mocks.NewMockEmbedder(ctrl)
	mockEmb.EXPECT().EmbedBatch(gomock.Any(), gomock.Any()).
		Return([][]float32{{1, 0}}, nil)

	store := newStoreWith(t, []snapshot.Record{
		{FilePath: "/docs/a.txt", ChunkIndex: 0, Text: "alpha text", Embedding: []float32{1, 0}},
	}, 2)
	engine := NewEngine(store, mockEmb, quietLogger())

	results, err := engine.Search(context.Background(), Query{Text: "alpha", TopK: 10})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Search() = %d results, want 1", len(results))
	}
	// Perfect semantic and keyword matches combine to 0.7 + 0.3.
	if got := results[0].Score; got < 0.999 || got > 1.001 {
		t.Errorf("hybrid score = %v, want 1.0", got)
	}
}

func TestSearchHybridWithoutVectorsUsesKeywordOnly(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockEmb := mocks.NewMockEmbedder(ctrl)
	// No EmbedBatch expectation: a vectorless snapshot must not embed
	// the query at all.

	store := newStoreWith(t, []snapshot.Record{
		{FilePath: "/docs/a.txt", ChunkIndex: 0, Text: "alpha text"},
	}, 0)
	engine := NewEngine(store, mockEmb, quietLogger())

	results, err := engine.Search(context.Background(), Query{Text: "alpha", TopK: 10})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Search() = %d results, want 1", len(results))
	}
	if got := results[0].Score; got < 0.299 || got > 0.301 {
		t.Errorf("degraded hybrid score = %v, want 0.3 (keyword component only)", got)
	}
}

func TestSearchQueryEmbedFailureDegrades(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockEmb := mocks.NewMockEmbedder(ctrl)
	mockEmb.EXPECT().EmbedBatch(gomock.Any(), gomock.Any()).
		Return(nil, errors.New("sidecar gone"))

	store := newStoreWith(t, []snapshot.Record{
		{FilePath: "/docs/a.txt", ChunkIndex: 0, Text: "alpha text", Embedding: []float32{1, 0}},
	}, 2)
	engine := NewEngine(store, mockEmb, quietLogger())

	results, err := engine.Search(context.Background(), Query{Text: "alpha", TopK: 10})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 || results[0].Semantic != 0 {
		t.Errorf("Search() = %v, want one keyword-only result", results)
	}
}

func TestSearchSemanticFallsBackToKeyword(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockEmb := mocks.NewMockEmbedder(ctrl)
	mockEmb.EXPECT().EmbedBatch(gomock.Any(), gomock.Any()).
		Return(nil, errors.New("sidecar gone"))

	store := newStoreWith(t, []snapshot.Record{
		{FilePath: "/docs/a.txt", ChunkIndex: 0, Text: "alpha text", Embedding: []float32{1, 0}},
	}, 2)
	engine := NewEngine(store, mockEmb, quietLogger())

	results, err := engine.Search(context.Background(), Query{Text: "alpha", Mode: ModeSemantic, TopK: 10})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Search() = %d results, want 1 keyword-scored result", len(results))
	}
	if got := results[0].Score; got < 0.999 || got > 1.001 {
		t.Errorf("fallback score = %v, want 1.0 (keyword match on both terms)", got)
	}
}

func TestSearchValidation(t *testing.T) {
	store := newStoreWith(t, []snapshot.Record{
		{FilePath: "/docs/a.txt", ChunkIndex: 0, Text: "alpha"},
	}, 0)
	engine := NewEngine(store, nil, quietLogger())

	if _, err := engine.Search(context.Background(), Query{Text: "   ", TopK: 10}); !errors.Is(err, service.ErrInvalidInput) {
		t.Errorf("blank query error = %v, want ErrInvalidInput", err)
	}
	if _, err := engine.Search(context.Background(), Query{Text: "alpha", Mode: "fuzzy", TopK: 10}); !errors.Is(err, service.ErrInvalidInput) {
		t.Errorf("unknown mode error = %v, want ErrInvalidInput", err)
	}
}

func TestReloadSwapsToNewestSnapshot(t *testing.T) {
	store := newStoreWith(t, []snapshot.Record{
		{FilePath: "/docs/old.txt", ChunkIndex: 0, Text: "alpha from the first snapshot"},
	}, 0)
	engine := NewEngine(store, nil, quietLogger())

	results, err := engine.Search(context.Background(), Query{Text: "alpha", Mode: ModeKeyword, TopK: 10})
	if err != nil || len(results) != 1 {
		t.Fatalf("initial Search() = %v, %v", results, err)
	}

	if _, err := store.Save([]snapshot.Record{
		{FilePath: "/docs/new.txt", ChunkIndex: 0, Text: "alpha from the second snapshot"},
	}, 0); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := engine.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}

	results, err = engine.Search(context.Background(), Query{Text: "alpha", Mode: ModeKeyword, TopK: 10})
	if err != nil {
		t.Fatalf("Search() after reload error = %v", err)
	}
	if len(results) != 1 || results[0].FilePath != "/docs/new.txt" {
		t.Errorf("Search() after reload = %v, want only the new snapshot's chunk", results)
	}
}

func TestSearchRepeatedQueryIsStable(t *testing.T) {
	store := newStoreWith(t, []snapshot.Record{
		{FilePath: "/docs/a.txt", ChunkIndex: 0, Text: "alpha beta gamma"},
		{FilePath: "/docs/b.txt", ChunkIndex: 0, Text: "alpha delta"},
	}, 0)
	engine := NewEngine(store, nil, quietLogger())

	q := Query{Text: "alpha beta", Mode: ModeKeyword, TopK: 10}
	first, err := engine.Search(context.Background(), q)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	second, err := engine.Search(context.Background(), q)
	if err != nil {
		t.Fatalf("second Search() error = %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("result counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ChunkID != second[i].ChunkID || first[i].Score != second[i].Score {
			t.Errorf("result %d differs between identical queries", i)
		}
	}
}

func TestResultMetadata(t *testing.T) {
	text := "Installation Guide\nRun the installer and follow the prompts to set everything up."
	store := newStoreWith(t, []snapshot.Record{
		{FilePath: "/docs/setup-guide.md", ChunkIndex: 0, Text: text},
	}, 0)
	engine := NewEngine(store, nil, quietLogger())

	results, err := engine.Search(context.Background(), Query{Text: "installer", Mode: ModeKeyword, TopK: 10})
	if err != nil || len(results) != 1 {
		t.Fatalf("Search() = %v, %v", results, err)
	}
	r := results[0]
	if r.Title != "setup-guide" {
		t.Errorf("title = %q, want setup-guide", r.Title)
	}
	if r.Section != "Installation Guide" {
		t.Errorf("section = %q, want the leading heading line", r.Section)
	}
	if r.ChunkID != "/docs/setup-guide.md#0" {
		t.Errorf("chunk id = %q", r.ChunkID)
	}
	if r.Excerpt == "" || r.Text != text {
		t.Errorf("excerpt/text not populated: %+v", r)
	}
}
