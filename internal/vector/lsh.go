// Package vector provides the random-hyperplane LSH index and similarity helpers.
package vector

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/hyperjump/librarian/internal/models"
)

var (
	// ErrDimensionMismatch is returned when an embedding's length differs from the
	// dimensionality fixed by the first embedding the index saw.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrEmptyEmbedding is returned for nil or zero-length embeddings.
	ErrEmptyEmbedding = errors.New("empty embedding")
)

// DefaultNumPlanes is used when NewLSHIndex is given a non-positive plane count.
const DefaultNumPlanes = 10

// LSHIndex buckets chunk refs by the sign pattern of their embedding against P random
// hyperplanes. Only refs are stored; embeddings stay with the caller.
type LSHIndex struct {
	mu        sync.RWMutex
	numPlanes int
	rng       *rand.Rand
	planes    [][]float32 // nil until the first embedding is seen
	buckets   map[string]*models.RefSet
}

// NewLSHIndex creates an index with numPlanes hyperplanes. A zero seed uses the clock.
func NewLSHIndex(numPlanes int, seed int64) *LSHIndex {
	if numPlanes <= 0 {
		numPlanes = DefaultNumPlanes
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &LSHIndex{
		numPlanes: numPlanes,
		rng:       rand.New(rand.NewSource(seed)),
		buckets:   make(map[string]*models.RefSet),
	}
}

// Hash returns the bit string for embedding. Planes are created on first use.
func (l *LSHIndex) Hash(embedding []float32) (string, error) {
	l.mu.RLock()
	if l.planes != nil {
		defer l.mu.RUnlock()
		return l.hashLocked(embedding)
	}
	l.mu.RUnlock()

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.ensurePlanesLocked(embedding); err != nil {
		return "", err
	}
	return l.hashLocked(embedding)
}

// Add inserts the chunk's ref into the bucket of its embedding.
func (l *LSHIndex) Add(libraryID, docID string, chunk *models.TextChunk) error {
	if chunk == nil {
		return fmt.Errorf("lsh add: nil chunk")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.ensurePlanesLocked(chunk.Embedding); err != nil {
		return fmt.Errorf("lsh add %q: %w", chunk.ID, err)
	}
	code, err := l.hashLocked(chunk.Embedding)
	if err != nil {
		return fmt.Errorf("lsh add %q: %w", chunk.ID, err)
	}
	set, ok := l.buckets[code]
	if !ok {
		set = models.NewRefSet()
		l.buckets[code] = set
	}
	set.Add(models.ChunkRef{LibraryID: libraryID, DocumentID: docID, ChunkID: chunk.ID})
	return nil
}

// QueryCandidates returns the refs in the single bucket matching query, in insertion order.
// Neighboring buckets are not probed. An index that has never seen an embedding has no candidates.
func (l *LSHIndex) QueryCandidates(query []float32) ([]models.ChunkRef, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(query) == 0 {
		return nil, ErrEmptyEmbedding
	}
	if l.planes == nil {
		return nil, nil
	}
	code, err := l.hashLocked(query)
	if err != nil {
		return nil, err
	}
	set, ok := l.buckets[code]
	if !ok {
		return nil, nil
	}
	return set.Refs(), nil
}

// DeleteChunk removes every ref with chunkID from the bucket of embedding.
func (l *LSHIndex) DeleteChunk(chunkID string, embedding []float32) error {
	return l.removeMatching(embedding, func(r models.ChunkRef) bool { return r.ChunkID == chunkID })
}

// DeleteLibrary removes every ref of libraryID from the bucket of a representative embedding.
func (l *LSHIndex) DeleteLibrary(libraryID string, embedding []float32) error {
	return l.removeMatching(embedding, func(r models.ChunkRef) bool { return r.LibraryID == libraryID })
}

// Remove deletes exactly ref from the bucket of embedding.
func (l *LSHIndex) Remove(ref models.ChunkRef, embedding []float32) error {
	return l.removeMatching(embedding, func(r models.ChunkRef) bool { return r == ref })
}

func (l *LSHIndex) removeMatching(embedding []float32, match func(models.ChunkRef) bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(embedding) == 0 {
		return ErrEmptyEmbedding
	}
	if l.planes == nil {
		return nil
	}
	code, err := l.hashLocked(embedding)
	if err != nil {
		return err
	}
	set, ok := l.buckets[code]
	if !ok {
		return nil
	}
	set.RemoveFunc(match)
	if set.Len() == 0 {
		delete(l.buckets, code)
	}
	return nil
}

// CheckDimensions validates embeddings against the established dimensionality, or against
// each other when none is established yet. It never mutates the index.
func (l *LSHIndex) CheckDimensions(embeddings ...[]float32) error {
	l.mu.RLock()
	dim := l.dimensionsLocked()
	l.mu.RUnlock()
	for _, e := range embeddings {
		if len(e) == 0 {
			return ErrEmptyEmbedding
		}
		if dim == 0 {
			dim = len(e)
			continue
		}
		if len(e) != dim {
			return fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(e), dim)
		}
	}
	return nil
}

// SetPlanes replaces the hyperplanes. The index must be empty.
func (l *LSHIndex) SetPlanes(planes [][]float32) error {
	if len(planes) == 0 {
		return fmt.Errorf("no planes given")
	}
	dim := len(planes[0])
	cp := make([][]float32, len(planes))
	for i, p := range planes {
		if len(p) == 0 || len(p) != dim {
			return fmt.Errorf("%w: plane %d has %d coordinates", ErrDimensionMismatch, i, len(p))
		}
		cp[i] = append([]float32(nil), p...)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.buckets) > 0 {
		return fmt.Errorf("cannot replace planes of a non-empty index")
	}
	l.planes = cp
	l.numPlanes = len(cp)
	return nil
}

// Planes returns a copy of the hyperplanes, or nil before the first embedding.
func (l *LSHIndex) Planes() [][]float32 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.planes == nil {
		return nil
	}
	out := make([][]float32, len(l.planes))
	for i, p := range l.planes {
		out[i] = append([]float32(nil), p...)
	}
	return out
}

// NumPlanes returns P.
func (l *LSHIndex) NumPlanes() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.numPlanes
}

// Dimensions returns the established dimensionality, 0 before the first embedding.
func (l *LSHIndex) Dimensions() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.dimensionsLocked()
}

// Size returns the number of refs across all buckets.
func (l *LSHIndex) Size() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := 0
	for _, set := range l.buckets {
		n += set.Len()
	}
	return n
}

// BucketCount returns the number of non-empty buckets.
func (l *LSHIndex) BucketCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.buckets)
}

// Buckets returns a snapshot of bucket membership keyed by hash code.
func (l *LSHIndex) Buckets() map[string][]models.ChunkRef {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string][]models.ChunkRef, len(l.buckets))
	for code, set := range l.buckets {
		out[code] = set.Refs()
	}
	return out
}

func (l *LSHIndex) dimensionsLocked() int {
	if l.planes == nil {
		return 0
	}
	return len(l.planes[0])
}

func (l *LSHIndex) ensurePlanesLocked(embedding []float32) error {
	if len(embedding) == 0 {
		return ErrEmptyEmbedding
	}
	if l.planes != nil {
		return nil
	}
	dim := len(embedding)
	planes := make([][]float32, l.numPlanes)
	for i := range planes {
		planes[i] = make([]float32, dim)
		for j := range planes[i] {
			planes[i][j] = float32(l.rng.NormFloat64())
		}
	}
	l.planes = planes
	return nil
}

func (l *LSHIndex) hashLocked(embedding []float32) (string, error) {
	if len(embedding) == 0 {
		return "", ErrEmptyEmbedding
	}
	if dim := l.dimensionsLocked(); len(embedding) != dim {
		return "", fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(embedding), dim)
	}
	var b strings.Builder
	b.Grow(len(l.planes))
	for _, plane := range l.planes {
		if InnerProduct(embedding, plane) >= 0 {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return b.String(), nil
}
