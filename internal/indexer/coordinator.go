// Package indexer keeps the LSH vector index and the keyword index mutated together.
package indexer

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperjump/librarian/internal/embedding"
	"github.com/hyperjump/librarian/internal/keyword"
	"github.com/hyperjump/librarian/internal/models"
	"github.com/hyperjump/librarian/internal/vector"
	"go.uber.org/zap"
)

// ErrNoEmbedder is returned by SearchByVector when the coordinator was built without an embedder.
var ErrNoEmbedder = errors.New("no embedder configured")

// Coordinator is the single entry point for index mutation. It never touches
// persistence or the library cache; the only failure it reports for well-formed
// input is an embedding of the wrong dimensionality.
type Coordinator struct {
	vectors  *vector.LSHIndex
	keywords keyword.KeywordIndex
	embedder embedding.Embedder // optional; used by SearchByVector
	logger   *zap.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// WithEmbedder sets the embedder used to turn query text into a vector.
func WithEmbedder(e embedding.Embedder) Option {
	return func(c *Coordinator) { c.embedder = e }
}

// Stats describes index sizes for status reporting.
type Stats struct {
	Vectors    int `json:"vectors"`
	Buckets    int `json:"buckets"`
	Planes     int `json:"planes"`
	Dimensions int `json:"dimensions"`
	Terms      int `json:"terms"`
}

// NewCoordinator composes the given indexes.
func NewCoordinator(vectors *vector.LSHIndex, keywords keyword.KeywordIndex, opts ...Option) *Coordinator {
	c := &Coordinator{
		vectors:  vectors,
		keywords: keywords,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AddChunk adds chunk to both indexes. If the keyword index fails, the vector entry is removed again.
func (c *Coordinator) AddChunk(libraryID, docID string, chunk *models.TextChunk) error {
	if chunk == nil {
		return fmt.Errorf("add chunk: nil chunk")
	}
	if len(chunk.Embedding) == 0 {
		return fmt.Errorf("add chunk %q: %w", chunk.ID, vector.ErrEmptyEmbedding)
	}
	if err := c.vectors.Add(libraryID, docID, chunk); err != nil {
		return err
	}
	if err := c.keywords.Add(libraryID, docID, chunk); err != nil {
		ref := models.ChunkRef{LibraryID: libraryID, DocumentID: docID, ChunkID: chunk.ID}
		_ = c.vectors.Remove(ref, chunk.Embedding)
		return fmt.Errorf("keyword index chunk %q: %w", chunk.ID, err)
	}
	return nil
}

// DeleteChunk removes chunk from both indexes using its stored text and embedding.
// A chunk that was never embedded is only removed from the keyword index.
func (c *Coordinator) DeleteChunk(libraryID, docID string, chunk *models.TextChunk) error {
	if chunk == nil {
		return nil
	}
	var errs []error
	if len(chunk.Embedding) > 0 {
		ref := models.ChunkRef{LibraryID: libraryID, DocumentID: docID, ChunkID: chunk.ID}
		if err := c.vectors.Remove(ref, chunk.Embedding); err != nil {
			errs = append(errs, fmt.Errorf("vector delete chunk %q: %w", chunk.ID, err))
		}
	}
	if err := c.keywords.RemoveChunk(libraryID, docID, chunk); err != nil {
		errs = append(errs, fmt.Errorf("keyword delete chunk %q: %w", chunk.ID, err))
	}
	return errors.Join(errs...)
}

// UpdateChunk replaces old with updated. There is no in-place index mutation.
func (c *Coordinator) UpdateChunk(libraryID, docID string, old, updated *models.TextChunk) error {
	if err := c.DeleteChunk(libraryID, docID, old); err != nil {
		return err
	}
	return c.AddChunk(libraryID, docID, updated)
}

// IndexLibrary adds every chunk of every document. Membership is set-based, so
// indexing the same library twice leaves the indexes as after the first call.
func (c *Coordinator) IndexLibrary(lib *models.Library) error {
	if lib == nil {
		return nil
	}
	var firstErr error
	n := 0
	lib.Walk(func(doc *models.Document, chunk *models.TextChunk) {
		if firstErr != nil {
			return
		}
		if err := c.AddChunk(lib.ID, doc.ID, chunk); err != nil {
			firstErr = fmt.Errorf("index library %q: %w", lib.ID, err)
			return
		}
		n++
	})
	if firstErr != nil {
		return firstErr
	}
	c.logger.Debug("indexed library", zap.String("library_id", lib.ID), zap.Int("chunks", n))
	return nil
}

// DeleteLibrary removes all of lib's chunks from both indexes. Every chunk is
// visited even if an earlier one fails.
func (c *Coordinator) DeleteLibrary(lib *models.Library) error {
	if lib == nil {
		return nil
	}
	var errs []error
	lib.Walk(func(_ *models.Document, chunk *models.TextChunk) {
		if len(chunk.Embedding) > 0 {
			if err := c.vectors.DeleteLibrary(lib.ID, chunk.Embedding); err != nil {
				errs = append(errs, fmt.Errorf("vector delete library %q: %w", lib.ID, err))
			}
		}
		if err := c.keywords.RemoveLibraryChunk(lib.ID, chunk); err != nil {
			errs = append(errs, fmt.Errorf("keyword delete library %q: %w", lib.ID, err))
		}
	})
	c.logger.Debug("unindexed library", zap.String("library_id", lib.ID))
	return errors.Join(errs...)
}

// SearchByVector embeds queryText and returns the LSH candidates with the query embedding.
func (c *Coordinator) SearchByVector(ctx context.Context, queryText string) ([]models.ChunkRef, []float32, error) {
	if c.embedder == nil {
		return nil, nil, ErrNoEmbedder
	}
	emb, err := c.embedder.Embed(ctx, queryText)
	if err != nil {
		return nil, nil, fmt.Errorf("embed query: %w", err)
	}
	refs, err := c.CandidatesForEmbedding(emb)
	if err != nil {
		return nil, nil, err
	}
	return refs, emb, nil
}

// CandidatesForEmbedding returns the refs sharing the query's bucket.
func (c *Coordinator) CandidatesForEmbedding(query []float32) ([]models.ChunkRef, error) {
	return c.vectors.QueryCandidates(query)
}

// SearchByKeyword tokenizes queryText and returns the union of each token's refs,
// in the order they are first seen. A single token is an exact lookup.
func (c *Coordinator) SearchByKeyword(queryText string) ([]models.ChunkRef, error) {
	tokens := keyword.Tokenize(queryText)
	switch len(tokens) {
	case 0:
		return nil, nil
	case 1:
		return c.keywords.Search(tokens[0])
	}
	union := models.NewRefSet()
	for _, tok := range tokens {
		refs, err := c.keywords.Search(tok)
		if err != nil {
			return nil, err
		}
		for _, r := range refs {
			union.Add(r)
		}
	}
	return union.Refs(), nil
}

// ValidateEmbeddings checks dimensionality without mutating any index.
func (c *Coordinator) ValidateEmbeddings(embeddings ...[]float32) error {
	return c.vectors.CheckDimensions(embeddings...)
}

// Stats reports index sizes.
func (c *Coordinator) Stats() Stats {
	return Stats{
		Vectors:    c.vectors.Size(),
		Buckets:    c.vectors.BucketCount(),
		Planes:     c.vectors.NumPlanes(),
		Dimensions: c.vectors.Dimensions(),
		Terms:      c.keywords.Terms(),
	}
}

// Close releases the keyword index.
func (c *Coordinator) Close() error {
	return c.keywords.Close()
}
