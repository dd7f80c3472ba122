package domain

// Chunk is a bounded span of document text plus its embedding vector,
// the unit of retrieval. Identity is (DocumentID, Index). Chunks are
// immutable once written and never outlive their document.
type Chunk struct {
	DocumentID  string    `json:"document_id"`
	Index       int       `json:"chunk_index"`
	Content     string    `json:"content"`
	StartOffset int       `json:"start_offset"`
	EndOffset   int       `json:"end_offset"`
	Embedding   []float32 `json:"-"`
}

// ScoredChunk is a chunk with its similarity score for a query.
type ScoredChunk struct {
	Chunk
	Score float64 `json:"score"`
}
