// Package keyword provides exact keyword indexing of chunk text.
package keyword

import (
	"fmt"
	"strings"

	"github.com/hyperjump/librarian/internal/models"
)

// Backend names accepted by NewKeywordIndex.
const (
	BackendMemory = "memory"
	BackendBleve  = "bleve"
)

// KeywordIndex maps lowercase whitespace-separated tokens to chunk refs.
// Search results come back in the order refs were first added under the term.
type KeywordIndex interface {
	// Add indexes ref under every distinct token of chunk.Text.
	Add(libraryID, docID string, chunk *models.TextChunk) error
	// Search returns the refs indexed under the case-folded term.
	Search(term string) ([]models.ChunkRef, error)
	// DeleteChunk removes refs with chunkID from term's set.
	DeleteChunk(term, chunkID string) error
	// DeleteLibrary removes refs of libraryID from term's set.
	DeleteLibrary(term, libraryID string) error
	// RemoveChunk removes the chunk's ref under every token of its text.
	RemoveChunk(libraryID, docID string, chunk *models.TextChunk) error
	// RemoveLibraryChunk removes all refs of libraryID under every token of chunk.Text.
	RemoveLibraryChunk(libraryID string, chunk *models.TextChunk) error
	// Terms returns the number of distinct tokens.
	Terms() int
	Close() error
}

// NewKeywordIndex returns the backend named kind. Empty selects the in-memory index.
func NewKeywordIndex(kind string) (KeywordIndex, error) {
	switch kind {
	case BackendMemory, "":
		return NewInvertedIndex(), nil
	case BackendBleve:
		return NewBleveIndex()
	default:
		return nil, fmt.Errorf("unknown keyword backend: %s (supported: memory, bleve)", kind)
	}
}

// Tokenize lower-cases text and splits it on whitespace, dropping duplicates.
// No stemming or stop-word removal is applied.
func Tokenize(text string) []string {
	words := strings.Fields(strings.ToLower(text))
	seen := make(map[string]struct{}, len(words))
	terms := make([]string, 0, len(words))
	for _, w := range words {
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		terms = append(terms, w)
	}
	return terms
}

// NormalizeTerm case-folds a search term.
func NormalizeTerm(term string) string {
	return strings.ToLower(strings.TrimSpace(term))
}
