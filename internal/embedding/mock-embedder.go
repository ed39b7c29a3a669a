package embedding

import (
	"context"
	"math"
	"sync"

	"github.com/hyperjump/librarian/pkg/utils"
)

// MockEmbedder is a deterministic embedder for tests and local runs. It returns a fixed-dimension
// vector derived from the text hash so that the same text always gets the same embedding.
// Individual texts can be pinned to explicit vectors, and failures can be injected.
type MockEmbedder struct {
	dimensions int

	mu        sync.Mutex
	overrides map[string][]float32
	err       error
	calls     int
}

// NewMockEmbedder returns an embedder that produces deterministic embeddings of the given dimensions.
func NewMockEmbedder(dimensions int) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &MockEmbedder{dimensions: dimensions, overrides: make(map[string][]float32)}
}

// SetEmbedding pins text to emb. The vector is returned as given, without normalization.
func (e *MockEmbedder) SetEmbedding(text string, emb []float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.overrides[text] = append([]float32(nil), emb...)
}

// SetError makes every following call fail with err. Nil restores normal behavior.
func (e *MockEmbedder) SetError(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.err = err
}

// Calls returns how many texts have been embedded.
func (e *MockEmbedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// Embed returns the pinned vector for text, or one derived from its hash.
func (e *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.calls++
	err := e.err
	pinned, ok := e.overrides[text]
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if ok {
		return append([]float32(nil), pinned...), nil
	}

	h := HashString(text)
	emb := make([]float32, e.dimensions)
	for i := 0; i < e.dimensions; i++ {
		emb[i] = float32(math.Sin(float64(h*(i+1)))*0.1 + 0.01)
	}
	utils.NormalizeL2(emb)
	return emb, nil
}

// EmbedBatch calls Embed for each text.
func (e *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embedEach(ctx, texts, e.Embed)
}

// Dimensions returns the embedding dimension.
func (e *MockEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for MockEmbedder.
func (e *MockEmbedder) Close() error {
	return nil
}
