package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"indexpanel/internal/config"
	"indexpanel/internal/embedder"
	"indexpanel/internal/extract"
	"indexpanel/internal/http"
	"indexpanel/internal/indexer"
	"indexpanel/internal/llm"
	"indexpanel/internal/rag"
	"indexpanel/internal/retrieval"
	"indexpanel/internal/snapshot"
	"indexpanel/internal/storage"
)

// reloadOnComplete swaps the search index to the newest snapshot whenever
// an indexing run finishes.
type reloadOnComplete struct {
	engine *retrieval.Engine
}

func (r reloadOnComplete) Stats(indexer.State) {}

func (r reloadOnComplete) Complete(indexer.State) {
	if err := r.engine.Reload(); err != nil && !errors.Is(err, snapshot.ErrNoSnapshot) {
		slog.Error("Failed to reload search index", "error", err)
	}
}

func (r reloadOnComplete) Error(state indexer.State, message string) {
	// A failed run may still have written a partial snapshot.
	r.Complete(state)
}

func main() {
	// Load configuration first (needed for log level)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Configure structured logging with configurable level and format
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	slog.Debug("Logging configured", "level", cfg.LogLevel.String(), "format", cfg.LogFormat)

	// Initialize database
	db, err := storage.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()

	if err := storage.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	slog.Info("Database initialized", "path", cfg.DBPath)

	selectionRepo := storage.NewSelectionRepo(db)
	runRepo := storage.NewRunRepo(db)

	snapshotStore := snapshot.NewStore(cfg.SnapshotDir)
	extractor := extract.New(extract.NewPDFConverter())

	// Each indexing run gets its own sidecar process. A failed start puts
	// the run into embeddings-disabled mode instead of failing it.
	embedderOpts := embedder.Options{
		Command:        cfg.EmbedCommand,
		Model:          cfg.EmbedModel,
		Device:         cfg.EmbedDevice,
		RequestTimeout: cfg.EmbedRequestTimeout,
		StartupTimeout: cfg.EmbedStartupTimeout,
	}
	factory := func(ctx context.Context) (embedder.Embedder, error) {
		return embedder.Start(ctx, embedderOpts)
	}

	controller := indexer.NewController(extractor, snapshotStore, runRepo, factory, logger)
	controller.SetBatchSize(cfg.EmbedBatchSize)
	controller.SetMaxDepth(cfg.WalkMaxDepth)

	// A long-lived sidecar embeds search queries. Without it, hybrid
	// search degrades to its keyword component.
	var queryEmbedder embedder.Embedder
	if client, err := embedder.Start(context.Background(), embedderOpts); err != nil {
		slog.Warn("Query embedding unavailable, semantic search disabled", "error", err)
	} else {
		queryEmbedder = client
		defer func() {
			_ = client.Close()
		}()
	}

	searchEngine := retrieval.NewEngine(snapshotStore, queryEmbedder, logger)
	if err := searchEngine.Reload(); err != nil {
		if errors.Is(err, snapshot.ErrNoSnapshot) {
			slog.Info("No snapshot yet, search available after the first indexing run")
		} else {
			slog.Error("Failed to load search index", "error", err)
		}
	}
	controller.Subscribe(reloadOnComplete{engine: searchEngine})

	llmClient := llm.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModelName)
	ragEngine := rag.NewEngine(searchEngine, llmClient)
	slog.Info("RAG engine initialized", "llm_base_url", cfg.LLMBaseURL, "model", cfg.LLMModelName)

	deps := &http.Deps{
		Controller: controller,
		Searcher:   searchEngine,
		Snapshots:  searchEngine,
		RAGEngine:  ragEngine,
		Selections: selectionRepo,
		Runs:       runRepo,
		DB:         db,
	}
	router := http.NewRouter(deps)

	addr := ":" + cfg.APIPort
	server := &nethttp.Server{
		Addr:    addr,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("Starting API server", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			log.Fatalf("API server failed: %v", err)
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down")

	// Stop any active run so the accumulated work is snapshotted.
	if err := controller.Stop(); err == nil {
		deadline := time.Now().Add(10 * time.Second)
		for time.Now().Before(deadline) {
			phase := controller.Status().Phase
			if phase == indexer.PhaseIdle || phase == indexer.PhaseError {
				break
			}
			time.Sleep(100 * time.Millisecond)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server shutdown failed", "error", err)
	}
}
