package library

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/hyperjump/librarian/internal/models"
	"github.com/hyperjump/librarian/internal/vector"
	"go.uber.org/zap"
)

// Search embeds the query once, takes the LSH candidates from its bucket (restricted
// to q.LibraryID when set) and reranks them by exact cosine similarity. Ties keep
// candidate order. An empty candidate set is a bad request.
func (s *Store) Search(ctx context.Context, q models.SearchQuery) (*models.SearchResponse, error) {
	const op = "search"
	start := time.Now()
	if err := q.Validate(s.defaultTopK, s.maxTopK); err != nil {
		return nil, models.NewOpError(op, "", err)
	}
	if q.LibraryID != "" {
		if _, ok := s.cached(q.LibraryID); !ok {
			return nil, models.NewOpError(op, q.LibraryID, models.ErrNotFound)
		}
	}
	query, err := s.embedText(ctx, q.QueryText)
	if err != nil {
		return nil, models.NewOpError(op, "", err)
	}

	s.commitMu.RLock()
	defer s.commitMu.RUnlock()

	refs, err := s.index.CandidatesForEmbedding(query)
	if err != nil {
		if errors.Is(err, vector.ErrDimensionMismatch) || errors.Is(err, vector.ErrEmptyEmbedding) {
			return nil, models.NewOpError(op, "", fmt.Errorf("%w: %w", models.ErrBadRequest, err))
		}
		return nil, models.NewOpError(op, "", err)
	}
	refs = filterLibrary(refs, q.LibraryID)
	if len(refs) == 0 {
		return nil, models.NewOpError(op, q.LibraryID, fmt.Errorf("%w: no candidates for query", models.ErrBadRequest))
	}

	results := make([]*models.SearchResult, 0, len(refs))
	for _, ref := range refs {
		chunk, err := s.resolve(ref)
		if err != nil {
			return nil, models.NewOpError(op, ref.ChunkID, err)
		}
		results = append(results, &models.SearchResult{
			Chunk:      chunk,
			Similarity: vector.CosineSimilarity(query, chunk.Embedding),
			LibraryID:  ref.LibraryID,
			DocumentID: ref.DocumentID,
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if len(results) > q.TopK {
		results = results[:q.TopK]
	}
	for i, r := range results {
		r.Chunk = r.Chunk.Clone()
		r.Rank = i + 1
	}

	s.logger.Debug("search",
		zap.String("query", q.QueryText),
		zap.Int("candidates", len(refs)),
		zap.Int("results", len(results)))
	return &models.SearchResponse{
		Results:    results,
		Candidates: len(refs),
		QueryTime:  time.Since(start).Milliseconds(),
		Query:      q.QueryText,
	}, nil
}

// KeywordSearch returns the chunks indexed under every whitespace token of the term.
func (s *Store) KeywordSearch(q models.KeywordQuery) (*models.KeywordResponse, error) {
	const op = "keyword search"
	if err := q.Validate(); err != nil {
		return nil, models.NewOpError(op, "", err)
	}

	s.commitMu.RLock()
	defer s.commitMu.RUnlock()

	if q.LibraryID != "" {
		if _, ok := s.libraries[q.LibraryID]; !ok {
			return nil, models.NewOpError(op, q.LibraryID, models.ErrNotFound)
		}
	}
	refs, err := s.index.SearchByKeyword(q.Term)
	if err != nil {
		return nil, models.NewOpError(op, "", err)
	}
	refs = filterLibrary(refs, q.LibraryID)
	hits := make([]*models.KeywordHit, 0, len(refs))
	for _, ref := range refs {
		chunk, err := s.resolve(ref)
		if err != nil {
			return nil, models.NewOpError(op, ref.ChunkID, err)
		}
		hits = append(hits, &models.KeywordHit{
			Chunk:      chunk.Clone(),
			LibraryID:  ref.LibraryID,
			DocumentID: ref.DocumentID,
		})
	}
	return &models.KeywordResponse{Results: hits, Term: q.Term}, nil
}

// resolve looks ref up in the cache. The caller holds the commit lock.
func (s *Store) resolve(ref models.ChunkRef) (*models.TextChunk, error) {
	lib, ok := s.libraries[ref.LibraryID]
	if ok {
		if doc, ok := lib.Documents[ref.DocumentID]; ok {
			if chunk, ok := doc.Chunks[ref.ChunkID]; ok {
				return chunk, nil
			}
		}
	}
	s.logger.Error("index references a chunk missing from the cache",
		zap.String("library_id", ref.LibraryID),
		zap.String("document_id", ref.DocumentID),
		zap.String("chunk_id", ref.ChunkID))
	return nil, fmt.Errorf("%w: chunk %q of library %q is indexed but not cached", models.ErrInconsistent, ref.ChunkID, ref.LibraryID)
}

func filterLibrary(refs []models.ChunkRef, libraryID string) []models.ChunkRef {
	if libraryID == "" {
		return refs
	}
	out := refs[:0:0]
	for _, r := range refs {
		if r.LibraryID == libraryID {
			out = append(out, r)
		}
	}
	return out
}
