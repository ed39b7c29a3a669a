package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hyperjump/librarian/internal/models"
	"github.com/hyperjump/librarian/internal/storage"
	"go.uber.org/zap"
)

func (s *Server) handleCreateLibrary(w http.ResponseWriter, r *http.Request) {
	var lib models.Library
	if err := json.NewDecoder(r.Body).Decode(&lib); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("create library request", zap.String("id", lib.ID), zap.Int("documents", len(lib.Documents)))
	created, err := s.store.CreateLibrary(r.Context(), &lib)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListLibraries(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"libraries": s.store.ListLibraries()})
}

func (s *Server) handleGetLibrary(w http.ResponseWriter, r *http.Request) {
	lib, err := s.store.GetLibrary(chi.URLParam(r, "id"))
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, lib)
}

func (s *Server) handleUpdateLibrary(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var lib models.Library
	if err := json.NewDecoder(r.Body).Decode(&lib); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if lib.ID != "" && lib.ID != id {
		s.respondError(w, http.StatusBadRequest, "library id in body does not match path")
		return
	}
	lib.ID = id
	s.logger.Debug("update library request", zap.String("id", id))
	updated, err := s.store.UpdateLibrary(r.Context(), &lib)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteLibrary(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.logger.Debug("delete library request", zap.String("id", id))
	if err := s.store.DeleteLibrary(r.Context(), id); err != nil {
		s.respondStoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}

func (s *Server) handleGetChunks(w http.ResponseWriter, r *http.Request) {
	chunks, err := s.store.GetChunks(chi.URLParam(r, "id"))
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"chunks": chunks})
}

func (s *Server) handleAddChunk(w http.ResponseWriter, r *http.Request) {
	libraryID, docID := chi.URLParam(r, "id"), chi.URLParam(r, "docID")
	var chunk models.TextChunk
	if err := json.NewDecoder(r.Body).Decode(&chunk); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	stored, found, err := s.store.AddChunk(r.Context(), libraryID, docID, &chunk)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	if !found {
		s.respondError(w, http.StatusNotFound, "document not found")
		return
	}
	s.respondJSON(w, http.StatusCreated, stored)
}

func (s *Server) handleUpdateChunk(w http.ResponseWriter, r *http.Request) {
	var chunk models.TextChunk
	if err := json.NewDecoder(r.Body).Decode(&chunk); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	updated, err := s.store.UpdateChunk(r.Context(),
		chi.URLParam(r, "id"), chi.URLParam(r, "docID"), chi.URLParam(r, "chunkID"), &chunk)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteChunk(w http.ResponseWriter, r *http.Request) {
	libraryID, chunkID := chi.URLParam(r, "id"), chi.URLParam(r, "chunkID")
	if err := s.store.DeleteChunk(r.Context(), libraryID, chunkID); err != nil {
		s.respondStoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"id": chunkID, "status": "deleted"})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var query models.SearchQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("search request", zap.String("query", query.QueryText), zap.Int("top_k", query.TopK))
	response, err := s.store.Search(r.Context(), query)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleKeywordSearch(w http.ResponseWriter, r *http.Request) {
	var query models.KeywordQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	response, err := s.store.KeywordSearch(query)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	resp := map[string]interface{}{
		"libraries": stats.Libraries,
		"documents": stats.Documents,
		"chunks":    stats.Chunks,
		"index":     stats.Index,
		"persisted": stats.Persisted,
	}
	if s.config != nil {
		resp["config"] = map[string]interface{}{
			"storage_driver":       s.config.Storage.Driver,
			"database_path":        s.config.Storage.DatabasePath,
			"embedding_provider":   s.config.Embedding.Provider,
			"embedding_dimensions": s.config.Embedding.Dimensions,
			"num_planes":           s.config.Index.NumPlanes,
			"keyword_backend":      s.config.Index.KeywordBackend,
		}
		if s.config.Storage.Driver == storage.DriverSQLite && s.config.Storage.DatabasePath != ":memory:" {
			if diskBytes, err := storage.DiskUsageBytes(s.config.Storage.DatabasePath); err == nil {
				resp["disk_usage_bytes"] = diskBytes
			}
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// statusFor maps the store's error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, models.ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondStoreError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Int("status", status), zap.Error(err))
	}
	s.respondError(w, status, err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
