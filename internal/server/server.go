// Package server exposes session sources, indexing, queries and history over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ppiankov/lexbrief/internal/history"
	"github.com/ppiankov/lexbrief/internal/index"
	"github.com/ppiankov/lexbrief/internal/ingest"
	"github.com/ppiankov/lexbrief/internal/logger"
	"github.com/ppiankov/lexbrief/internal/model"
	"github.com/ppiankov/lexbrief/internal/pipeline"
)

// Engine runs queries and index builds for a session
type Engine interface {
	Run(ctx context.Context, sc *pipeline.SessionContext, query string) (*pipeline.Outcome, error)
	BuildIndex(ctx context.Context, sc *pipeline.SessionContext, fresh bool) (index.BuildReport, error)
}

// HistoryStore is the history contract plus single-entry lookup for downloads
type HistoryStore interface {
	history.Store
	Get(ctx context.Context, sessionID, id string) (*model.HistoryEntry, error)
}

// Options wires the server's collaborators
type Options struct {
	Engine       Engine
	Sources      *ingest.SessionSources
	Ingester     *ingest.Ingester
	History      HistoryStore
	Config       model.ServerConfig
	HistoryLimit int
}

// Server serves the JSON API
type Server struct {
	engine       Engine
	sources      *ingest.SessionSources
	ingester     *ingest.Ingester
	history      HistoryStore
	config       model.ServerConfig
	historyLimit int
}

// New creates a server
func New(opts Options) *Server {
	limit := opts.HistoryLimit
	if limit <= 0 {
		limit = history.DefaultLimit
	}
	return &Server{
		engine:       opts.Engine,
		sources:      opts.Sources,
		ingester:     opts.Ingester,
		history:      opts.History,
		config:       opts.Config,
		historyLimit: limit,
	}
}

// Handler builds the router
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	if logger.IsVerbose() {
		r.Use(chimw.Logger)
	}
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.config.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/sessions/{sid}", func(r chi.Router) {
		r.Use(requireSession)

		r.Get("/sources", s.listSources)
		r.Post("/sources", s.addSource)
		r.Delete("/sources/{index}", s.removeSource)

		r.Post("/index", s.buildIndex)
		r.Post("/queries", s.query)

		r.Get("/history", s.listHistory)
		r.Delete("/history", s.clearHistory)
		r.Get("/history/{id}/download", s.download)
	})

	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       5 * time.Minute,
		WriteTimeout:      10 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Always("Listening on %s", s.config.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	logger.Always("Shutting down...")
	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := model.ValidateSessionID(chi.URLParam(r, "sid")); err != nil {
			writeError(w, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// sessionContext assembles the pipeline context from the persisted source set
func (s *Server) sessionContext(sessionID string) (*pipeline.SessionContext, error) {
	set, err := s.sources.Load(sessionID)
	if err != nil {
		return nil, err
	}
	return &pipeline.SessionContext{
		SessionID: sessionID,
		Sources:   set.List(),
		History:   s.history,
	}, nil
}
