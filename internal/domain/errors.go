package domain

import "errors"

var (
	// ErrNotFound indicates resource not found
	ErrNotFound = errors.New("resource not found")
	// ErrUnauthorized indicates unauthorized access
	ErrUnauthorized = errors.New("unauthorized")
	// ErrEmptyDocument indicates a document with zero extractable text
	ErrEmptyDocument = errors.New("document contains no extractable text")
	// ErrEmbeddingBackend indicates a transient embedding backend failure
	ErrEmbeddingBackend = errors.New("embedding backend failure")
	// ErrStorageWrite indicates a transient durable-store write failure;
	// retrying is safe because chunk ids are deterministic
	ErrStorageWrite = errors.New("storage write failure")
	// ErrDocumentNotReady indicates the document is still processing or failed
	ErrDocumentNotReady = errors.New("document is not ready")
	// ErrGeneration indicates a language-model backend failure; the human
	// message is already persisted and the conversation stays resumable
	ErrGeneration = errors.New("answer generation failure")
	// ErrTimeout indicates a caller-supplied deadline expired mid-call
	ErrTimeout = errors.New("operation timed out")
)
