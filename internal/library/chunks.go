package library

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/hyperjump/librarian/internal/models"
	"github.com/hyperjump/librarian/internal/storage"
	"go.uber.org/zap"
)

// AddChunk inserts chunk into document docID of library libraryID if no chunk with
// its ID is present there yet. The reported bool is whether the document exists;
// when it does not, nothing is changed. The stored chunk is returned when the
// document exists.
func (s *Store) AddChunk(ctx context.Context, libraryID, docID string, chunk *models.TextChunk) (*models.TextChunk, bool, error) {
	const op = "add chunk"
	if chunk == nil {
		return nil, false, models.NewOpError(op, libraryID, fmt.Errorf("%w: chunk is required", models.ErrBadRequest))
	}
	chunk = chunk.Clone()
	if chunk.ID == "" {
		chunk.ID = uuid.NewString()
	}
	unlock := s.lock(libraryID)
	defer unlock()

	lib, ok := s.cached(libraryID)
	if !ok {
		return nil, false, models.NewOpError(op, libraryID, models.ErrNotFound)
	}
	if len(lib.Documents) == 0 {
		return nil, false, models.NewOpError(op, libraryID, fmt.Errorf("%w: library has no documents", models.ErrBadRequest))
	}
	doc, ok := lib.Documents[docID]
	if !ok {
		return nil, false, nil
	}
	if existing, ok := doc.Chunks[chunk.ID]; ok {
		return s.chunkSnapshot(existing), true, nil
	}

	if len(chunk.Embedding) == 0 {
		vec, err := s.embedText(ctx, chunk.Text)
		if err != nil {
			return nil, true, models.NewOpError(op, chunk.ID, err)
		}
		chunk.Embedding = vec
	}
	if err := s.validateEmbeddings(chunk.Embedding); err != nil {
		return nil, true, models.NewOpError(op, chunk.ID, err)
	}
	row := storage.ChunkRow(libraryID, docID, chunk)
	if err := s.persistRows(ctx, storage.InsertChunks, row); err != nil {
		return nil, true, models.NewOpError(op, chunk.ID, err)
	}

	s.commitMu.Lock()
	if err := s.index.AddChunk(libraryID, docID, chunk); err != nil {
		s.commitMu.Unlock()
		s.compensate(ctx, op, chunk.ID, storage.Batch{Statement: storage.DeleteChunks, Rows: []storage.Row{row}})
		return nil, true, models.NewOpError(op, chunk.ID, indexFailure(err))
	}
	doc.Chunks[chunk.ID] = chunk
	out := chunk.Clone()
	s.commitMu.Unlock()

	s.logger.Debug("chunk added",
		zap.String("library_id", libraryID),
		zap.String("document_id", docID),
		zap.String("chunk_id", chunk.ID))
	return out, true, nil
}

// UpdateChunk replaces chunk chunkID of document docID. The chunk is re-embedded
// when it carries no embedding, or when its text changed and the embedding did not.
func (s *Store) UpdateChunk(ctx context.Context, libraryID, docID, chunkID string, chunk *models.TextChunk) (*models.TextChunk, error) {
	const op = "update chunk"
	if chunk == nil {
		return nil, models.NewOpError(op, chunkID, fmt.Errorf("%w: chunk is required", models.ErrBadRequest))
	}
	unlock := s.lock(libraryID)
	defer unlock()

	lib, ok := s.cached(libraryID)
	if !ok {
		return nil, models.NewOpError(op, libraryID, models.ErrNotFound)
	}
	doc, ok := lib.Documents[docID]
	if !ok {
		return nil, models.NewOpError(op, docID, models.ErrNotFound)
	}
	old, ok := doc.Chunks[chunkID]
	if !ok {
		return nil, models.NewOpError(op, chunkID, models.ErrNotFound)
	}

	updated := chunk.Clone()
	updated.ID = chunkID
	if updated.Text != old.Text && equalEmbeddings(updated.Embedding, old.Embedding) {
		updated.Embedding = nil
	}
	if len(updated.Embedding) == 0 {
		vec, err := s.embedText(ctx, updated.Text)
		if err != nil {
			return nil, models.NewOpError(op, chunkID, err)
		}
		updated.Embedding = vec
	}
	if err := s.validateEmbeddings(updated.Embedding); err != nil {
		return nil, models.NewOpError(op, chunkID, err)
	}
	if err := s.persistRows(ctx, storage.UpdateChunks, storage.ChunkRow(libraryID, docID, updated)); err != nil {
		return nil, models.NewOpError(op, chunkID, err)
	}

	s.commitMu.Lock()
	if err := s.index.UpdateChunk(libraryID, docID, old, updated); err != nil {
		_ = s.index.DeleteChunk(libraryID, docID, updated)
		_ = s.index.AddChunk(libraryID, docID, old)
		s.commitMu.Unlock()
		s.compensate(ctx, op, chunkID, storage.Batch{
			Statement: storage.UpdateChunks,
			Rows:      []storage.Row{storage.ChunkRow(libraryID, docID, old)},
		})
		return nil, models.NewOpError(op, chunkID, indexFailure(err))
	}
	doc.Chunks[chunkID] = updated
	out := updated.Clone()
	s.commitMu.Unlock()

	s.logger.Debug("chunk updated", zap.String("library_id", libraryID), zap.String("chunk_id", chunkID))
	return out, nil
}

// DeleteChunk removes chunkID from whichever document of the library holds it.
func (s *Store) DeleteChunk(ctx context.Context, libraryID, chunkID string) error {
	const op = "delete chunk"
	unlock := s.lock(libraryID)
	defer unlock()

	lib, ok := s.cached(libraryID)
	if !ok {
		return models.NewOpError(op, libraryID, models.ErrNotFound)
	}
	doc, chunk, ok := lib.FindChunk(chunkID)
	if !ok {
		return models.NewOpError(op, chunkID, models.ErrNotFound)
	}
	row := storage.ChunkRow(libraryID, doc.ID, chunk)
	if err := s.persistRows(ctx, storage.DeleteChunks, row); err != nil {
		return models.NewOpError(op, chunkID, err)
	}

	s.commitMu.Lock()
	if err := s.index.DeleteChunk(libraryID, doc.ID, chunk); err != nil {
		_ = s.index.AddChunk(libraryID, doc.ID, chunk)
		s.commitMu.Unlock()
		s.compensate(ctx, op, chunkID, storage.Batch{Statement: storage.InsertChunks, Rows: []storage.Row{row}})
		return models.NewOpError(op, chunkID, indexFailure(err))
	}
	delete(doc.Chunks, chunkID)
	s.commitMu.Unlock()

	s.logger.Debug("chunk deleted",
		zap.String("library_id", libraryID),
		zap.String("document_id", doc.ID),
		zap.String("chunk_id", chunkID))
	return nil
}

func (s *Store) chunkSnapshot(c *models.TextChunk) *models.TextChunk {
	s.commitMu.RLock()
	defer s.commitMu.RUnlock()
	return c.Clone()
}
