package ingest

import (
	"context"
	"fmt"

	"github.com/AutoJunjie/serverless-chatpdf/internal/ai"
	"github.com/AutoJunjie/serverless-chatpdf/internal/domain"
	"github.com/AutoJunjie/serverless-chatpdf/internal/repository"
	"go.uber.org/zap"
)

const embedBatchSize = 16

// Indexer maps chunks to fixed-dimension vectors and persists them
// keyed by (document, chunk index). A partial failure leaves already
// written chunks behind, but the document never reaches ready unless
// every chunk was durably written; the overwrite-safe keys make retries
// idempotent.
type Indexer struct {
	embedder ai.Embedder
	chunks   *repository.ChunkRepository
	logger   *zap.Logger
}

// NewIndexer creates a new indexer
func NewIndexer(embedder ai.Embedder, chunks *repository.ChunkRepository, logger *zap.Logger) *Indexer {
	return &Indexer{
		embedder: embedder,
		chunks:   chunks,
		logger:   logger.With(zap.String("component", "indexer")),
	}
}

// IndexDocument embeds all chunks in batches and writes (chunk, vector)
// pairs for the document. Stale tail chunks from a previous, larger
// ingest of the same document are deleted once all new chunks are
// written, so a completed re-ingest always leaves exactly len(chunks)
// rows.
func (ix *Indexer) IndexDocument(ctx context.Context, documentID string, chunks []domain.Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, domain.ErrEmptyDocument
	}

	for start := 0; start < len(chunks); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, chunk := range batch {
			texts[i] = chunk.Content
		}

		vecs, err := ix.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			return 0, err
		}

		for i := range batch {
			if len(vecs[i]) != ix.embedder.Dimensions() {
				return 0, fmt.Errorf("%w: expected %d dimensions, got %d",
					domain.ErrEmbeddingBackend, ix.embedder.Dimensions(), len(vecs[i]))
			}

			chunk := batch[i]
			chunk.DocumentID = documentID
			chunk.Embedding = vecs[i]
			if err := ix.chunks.Upsert(ctx, &chunk); err != nil {
				return 0, err
			}
		}

		ix.logger.Debug("indexed batch",
			zap.String("documentid", documentID),
			zap.Int("from", start), zap.Int("to", end))
	}

	if err := ix.chunks.DeleteFrom(ctx, documentID, len(chunks)); err != nil {
		return 0, err
	}

	return len(chunks), nil
}
