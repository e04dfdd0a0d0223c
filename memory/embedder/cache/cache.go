// Package cache wraps an Embedder with a ristretto cache so repeated
// texts (common with reformulated queries and re-summarized windows)
// embed once instead of paying a model call every time.
package cache

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto"

	"github.com/evermind-ai/recall/memory"
)

// DefaultMaxBytes bounds the cache cost budget (vector bytes).
const DefaultMaxBytes = 32 << 20

// Embedder is a caching decorator around another Embedder.
// Cached vectors are shared; callers must not mutate returned slices.
type Embedder struct {
	inner memory.Embedder
	cache *ristretto.Cache
}

// New creates a caching embedder around inner.
func New(inner memory.Embedder) (*Embedder, error) {
	return NewWithMaxBytes(inner, DefaultMaxBytes)
}

// NewWithMaxBytes creates a caching embedder with a custom cost budget.
func NewWithMaxBytes(inner memory.Embedder, maxBytes int64) (*Embedder, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 100_000,
		MaxCost:     maxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	return &Embedder{inner: inner, cache: cache}, nil
}

// Embed returns the cached vector for text, or delegates to the inner
// embedder and caches the result. Inner failures are never cached.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := e.cache.Get(text); ok {
		if vec, ok := v.([]float32); ok {
			return vec, nil
		}
	}

	vec, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	e.cache.Set(text, vec, int64(len(vec)*4))
	return vec, nil
}

// Dimensions returns the inner embedder's vector size.
func (e *Embedder) Dimensions() int {
	return e.inner.Dimensions()
}

// Close releases cache resources.
func (e *Embedder) Close() {
	e.cache.Close()
}
