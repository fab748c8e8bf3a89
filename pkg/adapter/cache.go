package adapter

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"slices"

	"github.com/dgraph-io/ristretto"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

const defaultEmbeddingCacheSize = 64 << 20

// EmbeddingCache wraps a Gemini client and memoizes embedding vectors by
// content hash. The same sentence is embedded at write time and again by
// duplicate checks and queries, so a hit saves a remote round trip.
// GenerateContent passes through untouched.
type EmbeddingCache struct {
	inner Gemini
	cache *ristretto.Cache
}

func NewEmbeddingCache(inner Gemini, maxBytes int64) (*EmbeddingCache, error) {
	if maxBytes <= 0 {
		maxBytes = defaultEmbeddingCacheSize
	}

	// Counters sized at roughly 10x the expected number of cached
	// vectors (a 768-dim float32 vector costs about 3KB).
	counters := maxBytes / 300
	if counters < 1e4 {
		counters = 1e4
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: counters,
		MaxCost:     maxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create embedding cache")
	}

	return &EmbeddingCache{inner: inner, cache: cache}, nil
}

func (c *EmbeddingCache) GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return c.inner.GenerateContent(ctx, contents, config)
}

func (c *EmbeddingCache) Embedding(ctx context.Context, text string) ([]float32, error) {
	key := embeddingCacheKey(text)
	if v, ok := c.cache.Get(key); ok {
		if vec, ok := v.([]float32); ok {
			return vec, nil
		}
	}

	vec, err := c.inner.Embedding(ctx, text)
	if err != nil {
		return nil, err
	}

	c.cache.Set(key, slices.Clone(vec), int64(len(vec)*4))

	return vec, nil
}

// Wait blocks until buffered cache writes have been applied.
func (c *EmbeddingCache) Wait() {
	c.cache.Wait()
}

func (c *EmbeddingCache) Close() {
	c.cache.Close()
}

func embeddingCacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
