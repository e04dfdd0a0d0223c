// Package mock provides a deterministic embedder for tests and offline
// development. Embeddings are derived from a hash of the input text, so
// identical texts always embed identically, but there is no real
// semantic similarity between different texts.
package mock

import (
	"context"
	"hash/fnv"
	"math"
)

// DefaultDimensions matches all-MiniLM-L6-v2 so the mock can stand in
// for the local ONNX embedder.
const DefaultDimensions = 384

// Embedder generates deterministic hash-based embeddings.
type Embedder struct {
	dims int
}

// New creates a mock embedder with DefaultDimensions.
func New() *Embedder {
	return NewWithDimensions(DefaultDimensions)
}

// NewWithDimensions creates a mock embedder with the given vector size.
func NewWithDimensions(dims int) *Embedder {
	if dims <= 0 {
		dims = DefaultDimensions
	}
	return &Embedder{dims: dims}
}

// Embed returns a unit vector seeded by the FNV hash of text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	h := fnv.New64a()
	h.Write([]byte(text))
	state := h.Sum64()

	vec := make([]float32, e.dims)
	var norm float64
	for i := range vec {
		// LCG walk from the hash seed.
		state = state*6364136223846793005 + 1442695040888963407
		v := float64(int64(state)) / float64(math.MaxInt64)
		vec[i] = float32(v)
		norm += v * v
	}

	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec, nil
}

// Dimensions returns the embedding vector size.
func (e *Embedder) Dimensions() int {
	return e.dims
}
