package vector

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/hyperjump/librarian/internal/models"
)

func randomEmbedding(rng *rand.Rand, dims int) []float32 {
	v := make([]float32, dims)
	for i := range v {
		v[i] = float32(rng.NormFloat64())
	}
	return v
}

func BenchmarkLSHIndexQueryCandidates(b *testing.B) {
	rng := rand.New(rand.NewSource(1))
	idx := NewLSHIndex(10, 1)
	for i := 0; i < 1000; i++ {
		chunk := &models.TextChunk{ID: fmt.Sprintf("c%d", i), Embedding: randomEmbedding(rng, 384)}
		_ = idx.Add("lib", "doc", chunk)
	}
	query := randomEmbedding(rng, 384)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = idx.QueryCandidates(query)
	}
}

func BenchmarkCosineSimilarity(b *testing.B) {
	rng := rand.New(rand.NewSource(2))
	x, y := randomEmbedding(rng, 384), randomEmbedding(rng, 384)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = CosineSimilarity(x, y)
	}
}
