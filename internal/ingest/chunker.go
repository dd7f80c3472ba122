// Package ingest implements the document-to-index pipeline: text
// extraction, chunking, embedding and the queue consumer driving them.
package ingest

import (
	"fmt"

	"github.com/AutoJunjie/serverless-chatpdf/internal/domain"
)

// Chunker splits extracted document text into overlapping passages sized
// for embedding. Boundaries are deterministic for a given input and
// configuration, which is what makes re-ingestion idempotent.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker validates the configuration. Size and overlap are measured
// in runes; overlap must leave the window a positive step.
func NewChunker(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be in [0, size), got %d", overlap)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Split produces the ordered chunk sequence for a document text. Each
// chunk after the first starts overlap runes before the end of the
// previous one, preserving cross-boundary context. Offsets are rune
// positions into the original text.
func (c *Chunker) Split(text string) ([]domain.Chunk, error) {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil, domain.ErrEmptyDocument
	}

	step := c.size - c.overlap
	var chunks []domain.Chunk
	for start := 0; start < len(runes); start += step {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}

		chunks = append(chunks, domain.Chunk{
			Index:       len(chunks),
			Content:     string(runes[start:end]),
			StartOffset: start,
			EndOffset:   end,
		})

		if end == len(runes) {
			break
		}
	}

	return chunks, nil
}
