package indexer

import (
	"context"
	"testing"

	"github.com/hyperjump/librarian/internal/embedding"
	"github.com/hyperjump/librarian/internal/keyword"
	"github.com/hyperjump/librarian/internal/models"
	"github.com/hyperjump/librarian/internal/vector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCoordinator(t *testing.T, opts ...Option) (*Coordinator, *vector.LSHIndex, *keyword.InvertedIndex) {
	t.Helper()
	lsh := vector.NewLSHIndex(1, 1)
	require.NoError(t, lsh.SetPlanes([][]float32{{1, -1}}))
	kw := keyword.NewInvertedIndex()
	return NewCoordinator(lsh, kw, opts...), lsh, kw
}

func alphaBetaLibrary() *models.Library {
	return &models.Library{
		ID: "lib1",
		Documents: map[string]*models.Document{
			"d1": {ID: "d1", Chunks: map[string]*models.TextChunk{
				"c1": {ID: "c1", Text: "alpha", Embedding: []float32{1, 0}},
				"c2": {ID: "c2", Text: "beta", Embedding: []float32{0, 1}},
			}},
		},
	}
}

func TestCoordinator_KeywordScenario(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	require.NoError(t, c.IndexLibrary(alphaBetaLibrary()))

	refs, err := c.SearchByKeyword("alpha")
	require.NoError(t, err)
	assert.Equal(t, []models.ChunkRef{{LibraryID: "lib1", DocumentID: "d1", ChunkID: "c1"}}, refs)

	refs, err = c.SearchByKeyword("ALPHA beta")
	require.NoError(t, err)
	assert.Len(t, refs, 2)

	refs, err = c.SearchByKeyword("   ")
	require.NoError(t, err)
	assert.Empty(t, refs)
}

func TestCoordinator_VectorScenario(t *testing.T) {
	c, lsh, _ := newTestCoordinator(t)
	require.NoError(t, c.IndexLibrary(alphaBetaLibrary()))
	assert.Equal(t, 2, lsh.BucketCount())

	refs, err := c.CandidatesForEmbedding([]float32{1, 0})
	require.NoError(t, err)
	assert.Equal(t, []models.ChunkRef{{LibraryID: "lib1", DocumentID: "d1", ChunkID: "c1"}}, refs)
}

func TestCoordinator_AddThenDelete(t *testing.T) {
	c, lsh, kw := newTestCoordinator(t)
	chunk := &models.TextChunk{ID: "c1", Text: "gamma delta", Embedding: []float32{1, 0}}
	require.NoError(t, c.AddChunk("lib1", "d1", chunk))
	require.NoError(t, c.DeleteChunk("lib1", "d1", chunk))

	refs, err := c.CandidatesForEmbedding([]float32{1, 0})
	require.NoError(t, err)
	assert.Empty(t, refs)
	assert.Zero(t, lsh.Size())
	assert.Zero(t, kw.Terms())
}

func TestCoordinator_DeleteChunkLeavesSameIDInOtherLibrary(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	a := &models.TextChunk{ID: "c1", Text: "shared", Embedding: []float32{1, 0}}
	b := &models.TextChunk{ID: "c1", Text: "shared", Embedding: []float32{1, 0}}
	require.NoError(t, c.AddChunk("libA", "d1", a))
	require.NoError(t, c.AddChunk("libB", "d1", b))
	require.NoError(t, c.DeleteChunk("libA", "d1", a))

	refs, err := c.CandidatesForEmbedding([]float32{1, 0})
	require.NoError(t, err)
	assert.Equal(t, []models.ChunkRef{{LibraryID: "libB", DocumentID: "d1", ChunkID: "c1"}}, refs)
	refs, err = c.SearchByKeyword("shared")
	require.NoError(t, err)
	assert.Len(t, refs, 1)
}

func TestCoordinator_UpdateChunk(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	old := &models.TextChunk{ID: "c1", Text: "old words", Embedding: []float32{1, 0}}
	updated := &models.TextChunk{ID: "c1", Text: "new words", Embedding: []float32{0, 1}}
	require.NoError(t, c.AddChunk("lib1", "d1", old))
	require.NoError(t, c.UpdateChunk("lib1", "d1", old, updated))

	refs, _ := c.SearchByKeyword("old")
	assert.Empty(t, refs)
	refs, _ = c.SearchByKeyword("words")
	assert.Len(t, refs, 1)
	refs, _ = c.CandidatesForEmbedding([]float32{1, 0})
	assert.Empty(t, refs)
	refs, _ = c.CandidatesForEmbedding([]float32{0, 1})
	assert.Len(t, refs, 1)
}

func TestCoordinator_IndexLibraryIdempotent(t *testing.T) {
	c, lsh, kw := newTestCoordinator(t)
	lib := alphaBetaLibrary()
	require.NoError(t, c.IndexLibrary(lib))
	buckets, terms := lsh.Buckets(), kw.Snapshot()

	require.NoError(t, c.IndexLibrary(lib))
	assert.Equal(t, buckets, lsh.Buckets())
	assert.Equal(t, terms, kw.Snapshot())
}

func TestCoordinator_DeleteLibrary(t *testing.T) {
	c, lsh, kw := newTestCoordinator(t)
	lib := alphaBetaLibrary()
	require.NoError(t, c.IndexLibrary(lib))
	other := &models.TextChunk{ID: "x", Text: "alpha", Embedding: []float32{1, 0}}
	require.NoError(t, c.AddChunk("lib2", "d9", other))

	require.NoError(t, c.DeleteLibrary(lib))
	assert.Equal(t, 1, lsh.Size())
	refs, _ := c.SearchByKeyword("alpha")
	assert.Equal(t, []models.ChunkRef{{LibraryID: "lib2", DocumentID: "d9", ChunkID: "x"}}, refs)
	assert.Equal(t, 1, kw.Terms())
}

func TestCoordinator_DimensionMismatchPropagates(t *testing.T) {
	c, _, kw := newTestCoordinator(t)
	bad := &models.TextChunk{ID: "c9", Text: "wide", Embedding: []float32{1, 2, 3}}
	err := c.AddChunk("lib1", "d1", bad)
	require.ErrorIs(t, err, vector.ErrDimensionMismatch)
	assert.Zero(t, kw.Terms(), "keyword index must not be touched")

	require.ErrorIs(t, c.ValidateEmbeddings([]float32{1, 0}, []float32{1}), vector.ErrDimensionMismatch)
	require.NoError(t, c.ValidateEmbeddings([]float32{0.5, 0.5}))

	err = c.AddChunk("lib1", "d1", &models.TextChunk{ID: "c0", Text: "empty"})
	require.ErrorIs(t, err, vector.ErrEmptyEmbedding)
}

func TestCoordinator_SearchByVector(t *testing.T) {
	emb := embedding.NewMockEmbedder(2)
	emb.SetEmbedding("first", []float32{1, 0})
	c, _, _ := newTestCoordinator(t, WithEmbedder(emb))
	require.NoError(t, c.IndexLibrary(alphaBetaLibrary()))

	refs, q, err := c.SearchByVector(context.Background(), "first")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, q)
	require.Len(t, refs, 1)
	assert.Equal(t, "c1", refs[0].ChunkID)

	noEmb, _, _ := newTestCoordinator(t)
	_, _, err = noEmb.SearchByVector(context.Background(), "first")
	require.ErrorIs(t, err, ErrNoEmbedder)
}

func TestCoordinator_BleveBackend(t *testing.T) {
	lsh := vector.NewLSHIndex(4, 7)
	kw, err := keyword.NewKeywordIndex(keyword.BackendBleve)
	require.NoError(t, err)
	c := NewCoordinator(lsh, kw)
	defer c.Close()

	require.NoError(t, c.IndexLibrary(alphaBetaLibrary()))
	refs, err := c.SearchByKeyword("Alpha")
	require.NoError(t, err)
	assert.Equal(t, []models.ChunkRef{{LibraryID: "lib1", DocumentID: "d1", ChunkID: "c1"}}, refs)

	require.NoError(t, c.DeleteLibrary(alphaBetaLibrary()))
	refs, err = c.SearchByKeyword("alpha")
	require.NoError(t, err)
	assert.Empty(t, refs)
}

func TestCoordinator_Stats(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	require.NoError(t, c.IndexLibrary(alphaBetaLibrary()))
	assert.Equal(t, Stats{Vectors: 2, Buckets: 2, Planes: 1, Dimensions: 2, Terms: 2}, c.Stats())
}
