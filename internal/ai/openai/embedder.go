package openai

import (
	"context"
	"fmt"

	"github.com/AutoJunjie/serverless-chatpdf/internal/config"
	"github.com/AutoJunjie/serverless-chatpdf/internal/domain"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
)

// Embedder implements ai.Embedder against an OpenAI-compatible
// embeddings API via langchaingo.
type Embedder struct {
	embedder   embeddings.Embedder
	dimensions int
	logger     *zap.Logger
}

// NewEmbedder creates a new embedder from the LLM configuration.
func NewEmbedder(cfg config.LLMConfig, logger *zap.Logger) (*Embedder, error) {
	token := cfg.APIKey
	if token == "" {
		// Local OpenAI-compatible services reject empty tokens but
		// accept any non-empty placeholder.
		token = "none"
	}

	client, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(token),
		openai.WithEmbeddingModel(cfg.EmbeddingModel),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding client: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	return &Embedder{
		embedder:   embedder,
		dimensions: cfg.Dimensions,
		logger:     logger.With(zap.String("component", "openai-embedder")),
	}, nil
}

// EmbedText generates a vector embedding for a single query string.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedTexts generates embeddings for multiple texts in one batch.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		e.logger.Error("embedding call failed", zap.Int("count", len(texts)), zap.Error(err))
		if ctx.Err() != nil {
			return nil, domain.ErrTimeout
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrEmbeddingBackend, err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts",
			domain.ErrEmbeddingBackend, len(vecs), len(texts))
	}
	return vecs, nil
}

// Dimensions returns the configured embedding dimensionality.
func (e *Embedder) Dimensions() int {
	return e.dimensions
}
