// Package server provides the HTTP API for librarian.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/librarian/internal/config"
	"github.com/hyperjump/librarian/internal/library"
	"go.uber.org/zap"
)

// Server is the HTTP server for the librarian API. Handlers only decode requests,
// call the store and encode responses.
type Server struct {
	store  *library.Store
	config *config.Config
	logger *zap.Logger
	server *http.Server
}

// NewServer creates a server for store. cfg supplies the listen address and the
// settings reported by the status endpoint.
func NewServer(store *library.Store, cfg *config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		store:  store,
		config: cfg,
		logger: logger,
	}
}

// Router returns the HTTP handler with all routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/libraries", func(r chi.Router) {
			r.Post("/", s.handleCreateLibrary)
			r.Get("/", s.handleListLibraries)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetLibrary)
				r.Put("/", s.handleUpdateLibrary)
				r.Delete("/", s.handleDeleteLibrary)
				r.Get("/chunks", s.handleGetChunks)
				r.Delete("/chunks/{chunkID}", s.handleDeleteChunk)
				r.Post("/documents/{docID}/chunks", s.handleAddChunk)
				r.Put("/documents/{docID}/chunks/{chunkID}", s.handleUpdateChunk)
			})
		})
		r.Post("/search", s.handleSearch)
		r.Post("/search/keyword", s.handleKeywordSearch)
		r.Get("/status", s.handleStatus)
	})
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
