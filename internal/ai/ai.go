// Package ai defines the capability handles for the embedding and
// generation backends. Implementations are constructed once at startup
// and reused across requests; all methods are safe for concurrent use.
package ai

import (
	"context"

	"github.com/AutoJunjie/serverless-chatpdf/internal/domain"
)

// Embedder generates vector embeddings from text for similarity search.
type Embedder interface {
	// EmbedText generates a vector embedding for a single query string.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates embeddings for multiple texts in one batch,
	// in the same order as the input.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the fixed dimensionality of produced vectors.
	Dimensions() int
}

// GenerateRequest carries everything the generation backend needs for
// one answer: retrieved chunks for grounding, prior turns for
// continuity, and the new question.
type GenerateRequest struct {
	Context  []domain.ScoredChunk
	History  []*domain.Message
	Question string
}

// Generator produces an answer from a single language-model call.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}
