package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of embeddings kept in memory when none is configured.
const DefaultCacheSize = 10000

// RemoteCache is a second-level embedding cache shared between processes.
// Failures are treated as misses.
type RemoteCache interface {
	Get(ctx context.Context, key string) ([]float32, bool)
	Set(ctx context.Context, key string, emb []float32)
}

// CachedEmbedder wraps an Embedder with an in-memory LRU and an optional remote cache.
type CachedEmbedder struct {
	inner  Embedder
	cache  *lru.Cache[string, []float32]
	remote RemoteCache
	model  string
}

// CacheOption configures a CachedEmbedder.
type CacheOption func(*CachedEmbedder)

// WithRemoteCache adds a second-level cache consulted on LRU misses.
func WithRemoteCache(r RemoteCache) CacheOption {
	return func(c *CachedEmbedder) { c.remote = r }
}

// WithModelName namespaces cache keys so different models never share entries.
func WithModelName(name string) CacheOption {
	return func(c *CachedEmbedder) { c.model = name }
}

// NewCachedEmbedder creates a cached embedder wrapping inner.
func NewCachedEmbedder(inner Embedder, size int, opts ...CacheOption) *CachedEmbedder {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, _ := lru.New[string, []float32](size)
	c := &CachedEmbedder{inner: inner, cache: cache}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *CachedEmbedder) cacheKey(text string) string {
	hash := sha256.Sum256([]byte(text + "\x00" + c.model))
	return hex.EncodeToString(hash[:])
}

func (c *CachedEmbedder) lookup(ctx context.Context, key string) ([]float32, bool) {
	if vec, ok := c.cache.Get(key); ok {
		return vec, true
	}
	if c.remote == nil {
		return nil, false
	}
	vec, ok := c.remote.Get(ctx, key)
	if ok {
		c.cache.Add(key, vec)
	}
	return vec, ok
}

func (c *CachedEmbedder) store(ctx context.Context, key string, vec []float32) {
	c.cache.Add(key, vec)
	if c.remote != nil {
		c.remote.Set(ctx, key, vec)
	}
}

// Embed returns a cached embedding if available, otherwise computes and caches it.
// Callers receive their own copy.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.cacheKey(text)
	if vec, ok := c.lookup(ctx, key); ok {
		return clone(vec), nil
	}
	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, clone(vec))
	return vec, nil
}

// EmbedBatch embeds only the texts missing from the caches, in a single inner batch.
func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string
	for i, text := range texts {
		if vec, ok := c.lookup(ctx, c.cacheKey(text)); ok {
			results[i] = clone(vec)
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}
	if len(missTexts) == 0 {
		return results, nil
	}
	fresh, err := c.inner.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	for j, i := range missIdx {
		results[i] = fresh[j]
		c.store(ctx, c.cacheKey(texts[i]), clone(fresh[j]))
	}
	return results, nil
}

// Len returns the number of in-memory entries.
func (c *CachedEmbedder) Len() int {
	return c.cache.Len()
}

// Dimensions returns the embedding dimension (passthrough to inner).
func (c *CachedEmbedder) Dimensions() int {
	return c.inner.Dimensions()
}

// Close releases resources and closes the inner embedder.
func (c *CachedEmbedder) Close() error {
	return c.inner.Close()
}

func clone(v []float32) []float32 {
	return append([]float32(nil), v...)
}
