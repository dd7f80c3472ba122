// Package retrieval implements similarity search over a document's
// chunk index.
package retrieval

import (
	"context"
	"math"
	"sort"

	"github.com/AutoJunjie/serverless-chatpdf/internal/domain"
	"github.com/AutoJunjie/serverless-chatpdf/internal/repository"
)

// Retriever returns the top-k most relevant chunks of one document for
// a query vector. The status gate guarantees it only ever observes a
// fully written index: anything not ready is rejected outright.
type Retriever struct {
	docs   *repository.DocumentRepository
	chunks *repository.ChunkRepository
}

// NewRetriever creates a new retriever
func NewRetriever(docs *repository.DocumentRepository, chunks *repository.ChunkRepository) *Retriever {
	return &Retriever{docs: docs, chunks: chunks}
}

// Retrieve scores every chunk of the document by cosine similarity and
// returns the k best, ties broken by ascending chunk index. Returns
// domain.ErrDocumentNotReady unless the document status is ready.
func (r *Retriever) Retrieve(ctx context.Context, userID, documentID string, queryVec []float32, k int) ([]domain.ScoredChunk, error) {
	doc, err := r.docs.Get(ctx, userID, documentID)
	if err != nil {
		return nil, err
	}
	if doc.Status != domain.DocumentStatusReady {
		return nil, domain.ErrDocumentNotReady
	}

	chunks, err := r.chunks.ListByDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}

	scored := make([]domain.ScoredChunk, 0, len(chunks))
	for _, chunk := range chunks {
		scored = append(scored, domain.ScoredChunk{
			Chunk: *chunk,
			Score: cosineSimilarity(queryVec, chunk.Embedding),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Index < scored[j].Index
	})

	if k < len(scored) {
		scored = scored[:k]
	}
	return scored, nil
}

// cosineSimilarity is zero for mismatched or zero-norm vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
