package repository

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/AutoJunjie/serverless-chatpdf/internal/domain"
)

// ChunkRepository persists (chunk, vector) pairs keyed by document.
// Writes are keyed (document_id, chunk_index) and overwrite-safe, so
// re-running ingestion for a document never duplicates chunks.
type ChunkRepository struct {
	db *DB
}

// NewChunkRepository creates a new chunk repository
func NewChunkRepository(db *DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

// Upsert writes one chunk with its embedding vector.
func (r *ChunkRepository) Upsert(ctx context.Context, chunk *domain.Chunk) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO chunks (document_id, chunk_index, content, start_offset, end_offset, embedding)
		VALUES (?, ?, ?, ?, ?, ?)
	`, chunk.DocumentID, chunk.Index, chunk.Content, chunk.StartOffset,
		chunk.EndOffset, encodeVector(chunk.Embedding))
	if err != nil {
		return fmt.Errorf("%w: upsert chunk %d: %v", domain.ErrStorageWrite, chunk.Index, err)
	}
	return nil
}

// DeleteFrom removes chunks with index >= fromIndex. Re-ingestion of a
// shrunken document calls this so stale tail chunks from a previous,
// larger index cannot leak into retrieval.
func (r *ChunkRepository) DeleteFrom(ctx context.Context, documentID string, fromIndex int) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM chunks WHERE document_id = ? AND chunk_index >= ?
	`, documentID, fromIndex)
	if err != nil {
		return fmt.Errorf("%w: delete chunks: %v", domain.ErrStorageWrite, err)
	}
	return nil
}

// ListByDocument returns all chunks of a document ordered by chunk index.
func (r *ChunkRepository) ListByDocument(ctx context.Context, documentID string) ([]*domain.Chunk, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT document_id, chunk_index, content, start_offset, end_offset, embedding
		FROM chunks WHERE document_id = ?
		ORDER BY chunk_index ASC
	`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []*domain.Chunk
	for rows.Next() {
		chunk := &domain.Chunk{}
		var blob []byte
		if err := rows.Scan(&chunk.DocumentID, &chunk.Index, &chunk.Content,
			&chunk.StartOffset, &chunk.EndOffset, &blob); err != nil {
			return nil, err
		}
		chunk.Embedding = decodeVector(blob)
		chunks = append(chunks, chunk)
	}

	return chunks, rows.Err()
}

// Count returns the number of chunks indexed for a document.
func (r *ChunkRepository) Count(ctx context.Context, documentID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chunks WHERE document_id = ?`, documentID).Scan(&count)
	return count, err
}

// encodeVector packs a float32 vector as little-endian bytes for BLOB storage.
func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}
