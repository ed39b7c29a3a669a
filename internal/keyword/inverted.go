package keyword

import (
	"sync"

	"github.com/hyperjump/librarian/internal/models"
)

// InvertedIndex is the in-memory KeywordIndex.
type InvertedIndex struct {
	mu    sync.RWMutex
	terms map[string]*models.RefSet
}

// NewInvertedIndex returns an empty index.
func NewInvertedIndex() *InvertedIndex {
	return &InvertedIndex{terms: make(map[string]*models.RefSet)}
}

// Add indexes the chunk under every distinct token of its text.
func (x *InvertedIndex) Add(libraryID, docID string, chunk *models.TextChunk) error {
	ref := models.ChunkRef{LibraryID: libraryID, DocumentID: docID, ChunkID: chunk.ID}
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, tok := range Tokenize(chunk.Text) {
		set, ok := x.terms[tok]
		if !ok {
			set = models.NewRefSet()
			x.terms[tok] = set
		}
		set.Add(ref)
	}
	return nil
}

// Search returns the refs under term, or nil.
func (x *InvertedIndex) Search(term string) ([]models.ChunkRef, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	set, ok := x.terms[NormalizeTerm(term)]
	if !ok {
		return nil, nil
	}
	return set.Refs(), nil
}

// DeleteChunk removes refs with chunkID from term's set.
func (x *InvertedIndex) DeleteChunk(term, chunkID string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.removeLocked(NormalizeTerm(term), func(r models.ChunkRef) bool { return r.ChunkID == chunkID })
	return nil
}

// DeleteLibrary removes refs of libraryID from term's set.
func (x *InvertedIndex) DeleteLibrary(term, libraryID string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.removeLocked(NormalizeTerm(term), func(r models.ChunkRef) bool { return r.LibraryID == libraryID })
	return nil
}

// RemoveChunk removes exactly the chunk's ref under each token of its text.
func (x *InvertedIndex) RemoveChunk(libraryID, docID string, chunk *models.TextChunk) error {
	ref := models.ChunkRef{LibraryID: libraryID, DocumentID: docID, ChunkID: chunk.ID}
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, tok := range Tokenize(chunk.Text) {
		x.removeLocked(tok, func(r models.ChunkRef) bool { return r == ref })
	}
	return nil
}

// RemoveLibraryChunk removes the library's refs under each token of chunk.Text.
func (x *InvertedIndex) RemoveLibraryChunk(libraryID string, chunk *models.TextChunk) error {
	for _, tok := range Tokenize(chunk.Text) {
		if err := x.DeleteLibrary(tok, libraryID); err != nil {
			return err
		}
	}
	return nil
}

// Terms returns the number of distinct tokens.
func (x *InvertedIndex) Terms() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.terms)
}

// Snapshot returns term membership, for comparisons in tests and diagnostics.
func (x *InvertedIndex) Snapshot() map[string][]models.ChunkRef {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make(map[string][]models.ChunkRef, len(x.terms))
	for t, set := range x.terms {
		out[t] = set.Refs()
	}
	return out
}

// Close is a no-op.
func (x *InvertedIndex) Close() error {
	return nil
}

func (x *InvertedIndex) removeLocked(term string, match func(models.ChunkRef) bool) {
	set, ok := x.terms[term]
	if !ok {
		return
	}
	set.RemoveFunc(match)
	if set.Len() == 0 {
		delete(x.terms, term)
	}
}
