package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"indexpanel/internal/embedder"
	"indexpanel/internal/service"
	"indexpanel/internal/snapshot"
)

const (
	semanticWeight = 0.7
	keywordWeight  = 0.3

	// DefaultTopK is the result count used when a request leaves it unset.
	DefaultTopK = 10

	excerptLength = 200
	cacheSize     = 256
)

// Mode selects which scoring passes contribute to the final score.
type Mode string

const (
	ModeHybrid   Mode = "hybrid"
	ModeSemantic Mode = "semantic"
	ModeKeyword  Mode = "keyword"
)

// Query is one search request against the loaded index.
type Query struct {
	Text     string  `json:"query"`
	Mode     Mode    `json:"mode,omitempty"`
	TopK     int     `json:"top_k,omitempty"`
	MinScore float64 `json:"min_score,omitempty"`
}

// Result is one scored chunk. Text carries the full chunk for downstream
// prompt assembly and is not serialized.
type Result struct {
	ChunkID    string   `json:"chunk_id"`
	FilePath   string   `json:"file_path"`
	ChunkIndex int      `json:"chunk_index"`
	Title      string   `json:"title"`
	Section    string   `json:"section,omitempty"`
	Score      float64  `json:"score"`
	Semantic   float64  `json:"semantic_score"`
	Keyword    float64  `json:"keyword_score"`
	Excerpt    string   `json:"excerpt"`
	Highlights []string `json:"highlights,omitempty"`
	Text       string   `json:"-"`
}

// entry is one chunk with its match metadata precomputed at load time.
type entry struct {
	record    snapshot.Record
	textLower string
	title     string
	section   string
}

type index struct {
	entries    []entry
	hasVectors bool
	path       string
}

// Engine answers search queries over the latest snapshot. The index is
// swapped atomically on reload, so searches never block behind indexing.
type Engine struct {
	store  *snapshot.Store
	emb    embedder.Embedder
	logger *slog.Logger

	idx   atomic.Pointer[index]
	mu    sync.Mutex
	cache *lru.Cache[string, []Result]
}

// NewEngine creates an engine over the snapshot store. emb is used to embed
// query text for the semantic pass and may be nil, in which case semantic
// scores are zero and hybrid search degrades to its keyword component.
func NewEngine(store *snapshot.Store, emb embedder.Embedder, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	cache, _ := lru.New[string, []Result](cacheSize)
	return &Engine{
		store:  store,
		emb:    emb,
		logger: logger,
		cache:  cache,
	}
}

// Reload loads the latest snapshot and swaps it in, dropping cached
// results. Returns ErrNoSnapshot when no snapshot has been written yet.
func (e *Engine) Reload() error {
	snap, err := e.store.LoadLatest()
	if err != nil {
		return err
	}
	path, _ := e.store.LatestPath()

	idx := &index{path: path, entries: make([]entry, 0, len(snap.Embeddings))}
	for _, rec := range snap.Embeddings {
		if len(rec.Embedding) > 0 {
			idx.hasVectors = true
		}
		idx.entries = append(idx.entries, entry{
			record:    rec,
			textLower: strings.ToLower(rec.Text),
			title:     deriveTitle(rec.FilePath),
			section:   deriveSection(rec.Text),
		})
	}

	e.mu.Lock()
	e.idx.Store(idx)
	e.cache.Purge()
	e.mu.Unlock()

	e.logger.Info("search index loaded", "path", path, "chunks", len(idx.entries), "vectors", idx.hasVectors)
	return nil
}

// SnapshotPath returns the path of the loaded snapshot, or "" before the
// first successful reload.
func (e *Engine) SnapshotPath() string {
	if idx := e.idx.Load(); idx != nil {
		return idx.path
	}
	return ""
}

// Search scores every chunk against the query and returns the top matches.
// Results below MinScore are dropped before TopK is applied; a TopK of zero
// or less yields an empty result set.
func (e *Engine) Search(ctx context.Context, q Query) ([]Result, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, fmt.Errorf("%w: query text is required", service.ErrInvalidInput)
	}
	if q.Mode == "" {
		q.Mode = ModeHybrid
	}
	switch q.Mode {
	case ModeHybrid, ModeSemantic, ModeKeyword:
	default:
		return nil, fmt.Errorf("%w: unknown mode %q", service.ErrInvalidInput, q.Mode)
	}

	idx := e.idx.Load()
	if idx == nil {
		if err := e.Reload(); err != nil {
			return nil, fmt.Errorf("%w: %v", service.ErrNoIndex, err)
		}
		idx = e.idx.Load()
	}

	if q.TopK <= 0 {
		return []Result{}, nil
	}

	key := cacheKey(q)
	if cached, ok := e.cache.Get(key); ok {
		return cached, nil
	}

	var queryVec []float32
	if q.Mode != ModeKeyword && e.emb != nil && idx.hasVectors {
		vectors, err := e.emb.EmbedBatch(ctx, []string{q.Text})
		if err != nil {
			// Scoring degrades to keyword rather than failing the
			// whole query.
			e.logger.Warn("query embedding failed", "error", err)
		} else if len(vectors) == 1 {
			queryVec = vectors[0]
		}
	}
	terms := queryTerms(q.Text)

	results := make([]Result, 0, len(idx.entries))
	for _, ent := range idx.entries {
		semantic := 0.0
		if queryVec != nil {
			semantic = cosine(queryVec, ent.record.Embedding)
		}
		keyword := keywordScore(terms, ent.textLower)

		var score float64
		switch q.Mode {
		case ModeSemantic:
			score = semantic
			if queryVec == nil {
				// No usable query embedding, fall back to keyword
				// scoring so the query still returns results.
				score = keyword
			}
		case ModeKeyword:
			score = keyword
		default:
			score = semanticWeight*semantic + keywordWeight*keyword
		}
		if score < q.MinScore || score <= 0 {
			continue
		}

		results = append(results, Result{
			ChunkID:    ent.record.ChunkID(),
			FilePath:   ent.record.FilePath,
			ChunkIndex: ent.record.ChunkIndex,
			Title:      ent.title,
			Section:    ent.section,
			Score:      score,
			Semantic:   semantic,
			Keyword:    keyword,
			Excerpt:    makeExcerpt(ent.record.Text),
			Highlights: matchedTerms(terms, ent.textLower),
			Text:       ent.record.Text,
		})
	}

	// Stable sort keeps snapshot order among equal scores.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > q.TopK {
		results = results[:q.TopK]
	}

	e.cache.Add(key, results)
	return results, nil
}

func cacheKey(q Query) string {
	return fmt.Sprintf("%s|%d|%g|%s", q.Mode, q.TopK, q.MinScore, q.Text)
}

// deriveTitle is the file name without its extension.
func deriveTitle(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// deriveSection returns the chunk's leading line when it looks like a
// heading: short and not ending in sentence punctuation.
func deriveSection(text string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(text), "\n")
	line = strings.TrimSpace(line)
	if line == "" || len([]rune(line)) > 80 {
		return ""
	}
	if strings.HasSuffix(line, ".") || strings.HasSuffix(line, ",") {
		return ""
	}
	return line
}

func makeExcerpt(text string) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) <= excerptLength {
		return text
	}
	return strings.TrimSpace(string(runes[:excerptLength])) + "..."
}
