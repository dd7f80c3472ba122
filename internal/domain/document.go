package domain

import "time"

// Document status values. Transitions move forward through
// uploaded -> processing -> ready|failed; a failed document may be
// claimed back to processing by a fresh ingestion attempt.
const (
	DocumentStatusUploaded   = "uploaded"
	DocumentStatusProcessing = "processing"
	DocumentStatusReady      = "ready"
	DocumentStatusFailed     = "failed"
)

// Document represents one uploaded file and its processing state.
// Identity is (UserID, DocumentID).
type Document struct {
	UserID     string    `json:"userid"`
	DocumentID string    `json:"documentid"`
	Filename   string    `json:"filename"`
	ObjectKey  string    `json:"object_key"`
	Status     string    `json:"docstatus"`
	ChunkCount int       `json:"chunk_count"`
	Pages      int       `json:"pages"`
	FileSize   int64     `json:"filesize"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created"`
	UpdatedAt  time.Time `json:"updated,omitempty"`
}

// DocumentDetail is a document plus its conversation list, as returned
// by GET /doc/{documentid}.
type DocumentDetail struct {
	Document      *Document       `json:"document"`
	Conversations []*Conversation `json:"conversations"`
}

// PresignedUpload is the response for GET /generate_presigned_url.
type PresignedUpload struct {
	PresignedURL string `json:"presignedurl"`
	DocumentID   string `json:"documentid"`
}
