package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/AutoJunjie/serverless-chatpdf/internal/domain"
)

// DocumentRepository is the document registry. It owns document rows and
// their status transitions.
type DocumentRepository struct {
	db *DB
}

// NewDocumentRepository creates a new document repository
func NewDocumentRepository(db *DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Create inserts a new document entry. Re-uploading an existing
// (user, document) pair resets the row back to uploaded so a fresh
// ingestion attempt can claim it.
func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	now := time.Now()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	if doc.Status == "" {
		doc.Status = domain.DocumentStatusUploaded
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO documents (user_id, document_id, filename, object_key, status, chunk_count, pages, file_size, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, document_id) DO UPDATE SET
			filename = excluded.filename,
			object_key = excluded.object_key,
			status = excluded.status,
			chunk_count = 0,
			file_size = excluded.file_size,
			error = NULL,
			updated_at = excluded.updated_at
	`, doc.UserID, doc.DocumentID, doc.Filename, doc.ObjectKey, doc.Status,
		doc.ChunkCount, doc.Pages, doc.FileSize, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%w: create document: %v", domain.ErrStorageWrite, err)
	}
	return nil
}

// Get retrieves a document by (user, document) identity.
// Returns domain.ErrNotFound if no such document exists.
func (r *DocumentRepository) Get(ctx context.Context, userID, documentID string) (*domain.Document, error) {
	doc := &domain.Document{}
	var errMsg sql.NullString

	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, document_id, filename, object_key, status, chunk_count, pages, file_size, error, created_at, updated_at
		FROM documents WHERE user_id = ? AND document_id = ?
	`, userID, documentID).Scan(&doc.UserID, &doc.DocumentID, &doc.Filename,
		&doc.ObjectKey, &doc.Status, &doc.ChunkCount, &doc.Pages, &doc.FileSize,
		&errMsg, &doc.CreatedAt, &doc.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if errMsg.Valid {
		doc.Error = errMsg.String
	}
	return doc, nil
}

// ListByUser returns all documents owned by a user, newest first.
func (r *DocumentRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Document, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id, document_id, filename, object_key, status, chunk_count, pages, file_size, error, created_at, updated_at
		FROM documents WHERE user_id = ?
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*domain.Document
	for rows.Next() {
		doc := &domain.Document{}
		var errMsg sql.NullString
		if err := rows.Scan(&doc.UserID, &doc.DocumentID, &doc.Filename,
			&doc.ObjectKey, &doc.Status, &doc.ChunkCount, &doc.Pages,
			&doc.FileSize, &errMsg, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
			return nil, err
		}
		if errMsg.Valid {
			doc.Error = errMsg.String
		}
		docs = append(docs, doc)
	}

	return docs, rows.Err()
}

// ClaimProcessing performs the conditional uploaded|failed -> processing
// transition. It returns false when the document is already processing or
// ready, which serves as the per-document ingestion lock under concurrent
// queue delivery. A processing claim older than staleAfter is treated as
// abandoned (the holder crashed mid-ingest) and may be re-taken, so a
// stranded document does not stay locked forever.
func (r *DocumentRepository) ClaimProcessing(ctx context.Context, userID, documentID string, staleAfter time.Duration) (bool, error) {
	now := time.Now()
	res, err := r.db.ExecContext(ctx, `
		UPDATE documents SET status = ?, error = NULL, updated_at = ?
		WHERE user_id = ? AND document_id = ?
		  AND (status IN (?, ?) OR (status = ? AND updated_at <= ?))
	`, domain.DocumentStatusProcessing, now, userID, documentID,
		domain.DocumentStatusUploaded, domain.DocumentStatusFailed,
		domain.DocumentStatusProcessing, now.Add(-staleAfter))
	if err != nil {
		return false, fmt.Errorf("%w: claim processing: %v", domain.ErrStorageWrite, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// SetReady marks a document ready with its final chunk count and page count.
// Only a processing document can become ready.
func (r *DocumentRepository) SetReady(ctx context.Context, userID, documentID string, chunkCount, pages int) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE documents SET status = ?, chunk_count = ?, pages = ?, error = NULL, updated_at = ?
		WHERE user_id = ? AND document_id = ? AND status = ?
	`, domain.DocumentStatusReady, chunkCount, pages, time.Now(),
		userID, documentID, domain.DocumentStatusProcessing)
	if err != nil {
		return fmt.Errorf("%w: set ready: %v", domain.ErrStorageWrite, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SetFailed marks a document failed, recording the terminal error.
func (r *DocumentRepository) SetFailed(ctx context.Context, userID, documentID, reason string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE documents SET status = ?, error = ?, updated_at = ?
		WHERE user_id = ? AND document_id = ?
	`, domain.DocumentStatusFailed, reason, time.Now(), userID, documentID)
	if err != nil {
		return fmt.Errorf("%w: set failed: %v", domain.ErrStorageWrite, err)
	}
	return nil
}
