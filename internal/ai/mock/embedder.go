// Package mock provides deterministic test doubles for the ai interfaces.
package mock

import (
	"context"
	"hash/fnv"
	"math"
)

// Embedder is a test double for ai.Embedder. Behavior can be overridden
// via function fields; the default produces deterministic vectors from a
// text hash so identical inputs always embed identically.
type Embedder struct {
	EmbedTextFunc  func(ctx context.Context, text string) ([]float32, error)
	EmbedTextsFunc func(ctx context.Context, texts []string) ([][]float32, error)

	Dim   int
	calls int
}

// NewEmbedder creates a mock embedder with default deterministic behavior.
func NewEmbedder(dim int) *Embedder {
	return &Embedder{Dim: dim}
}

// EmbedText generates a deterministic embedding based on the text hash.
func (m *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	m.calls++
	if m.EmbedTextFunc != nil {
		return m.EmbedTextFunc(ctx, text)
	}
	return deterministicVector(text, m.Dim), nil
}

// EmbedTexts generates deterministic embeddings for multiple texts.
func (m *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	m.calls++
	if m.EmbedTextsFunc != nil {
		return m.EmbedTextsFunc(ctx, texts)
	}
	vecs := make([][]float32, len(texts))
	for i, text := range texts {
		vecs[i] = deterministicVector(text, m.Dim)
	}
	return vecs, nil
}

// Dimensions returns the configured dimensionality.
func (m *Embedder) Dimensions() int {
	return m.Dim
}

// Calls returns how many times any embed method was invoked.
func (m *Embedder) Calls() int {
	return m.calls
}

// deterministicVector derives a unit vector from the fnv hash of the text.
func deterministicVector(text string, dim int) []float32 {
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, dim)
	var norm float64
	for i := range vec {
		// xorshift-style mixing for a stable pseudo-random sequence
		seed ^= seed << 13
		seed ^= seed >> 7
		seed ^= seed << 17
		v := float64(int64(seed%2000)-1000) / 1000.0
		vec[i] = float32(v)
		norm += v * v
	}

	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range vec {
			vec[i] = float32(float64(vec[i]) / norm)
		}
	}
	return vec
}
