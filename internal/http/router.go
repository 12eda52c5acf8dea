package http

import (
	"database/sql"
	_ "embed"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"indexpanel/internal/handlers"
	"indexpanel/internal/indexer"
	"indexpanel/internal/rag"
	"indexpanel/internal/storage"
)

//go:embed panel.html
var panelHTML string

// Deps holds dependencies for the HTTP router.
type Deps struct {
	Controller *indexer.Controller
	Searcher   handlers.Searcher
	Snapshots  handlers.SnapshotInfo
	RAGEngine  rag.Engine
	Selections storage.SelectionStore
	Runs       storage.RunStore
	DB         *sql.DB
}

// NewRouter creates the HTTP router for the control panel API.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(LoggerMiddleware)
	r.Use(CORS)

	indexHandler := handlers.NewIndexHandler(deps.Controller, deps.Selections, deps.Snapshots)
	searchHandler := handlers.NewSearchHandler(deps.Searcher)
	askHandler := handlers.NewAskHandler(deps.RAGEngine)
	selectionsHandler := handlers.NewSelectionsHandler(deps.Selections)
	runsHandler := handlers.NewRunsHandler(deps.Runs)
	healthHandler := handlers.NewHealthHandler(deps.DB, deps.Controller, deps.Snapshots)

	r.Route("/api", func(r chi.Router) {
		r.Route("/index", func(r chi.Router) {
			r.Post("/start", indexHandler.Start)
			r.Post("/pause", indexHandler.Pause)
			r.Post("/resume", indexHandler.Resume)
			r.Post("/stop", indexHandler.Stop)
			r.Get("/status", indexHandler.Status)
		})

		r.Method(http.MethodPost, "/search", searchHandler)
		r.Method(http.MethodPost, "/ask", askHandler)

		r.Get("/selections", selectionsHandler.List)
		r.Post("/selections", selectionsHandler.Save)
		r.Delete("/selections/{name}", selectionsHandler.Delete)

		r.Method(http.MethodGet, "/runs", runsHandler)
		r.Method(http.MethodGet, "/health", healthHandler)
	})

	// Serve the panel page at root
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(panelHTML))
	})

	return r
}
