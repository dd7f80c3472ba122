package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/AutoJunjie/serverless-chatpdf/internal/domain"
	"github.com/AutoJunjie/serverless-chatpdf/internal/queue"
	"github.com/AutoJunjie/serverless-chatpdf/internal/repository"
	"github.com/AutoJunjie/serverless-chatpdf/internal/storage"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DocumentService owns the upload flow (presigned URL -> object write ->
// registry entry -> ingestion job) and the document/conversation catalog
// reads behind the query API.
type DocumentService struct {
	docs      *repository.DocumentRepository
	convs     *repository.ConversationRepository
	store     storage.ObjectStore
	presigner *storage.Presigner
	queue     queue.Queue
	logger    *zap.Logger
}

// NewDocumentService creates a new document service
func NewDocumentService(
	docs *repository.DocumentRepository,
	convs *repository.ConversationRepository,
	store storage.ObjectStore,
	presigner *storage.Presigner,
	q queue.Queue,
	logger *zap.Logger,
) *DocumentService {
	return &DocumentService{
		docs:      docs,
		convs:     convs,
		store:     store,
		presigner: presigner,
		queue:     q,
		logger:    logger.With(zap.String("component", "document-service")),
	}
}

// GeneratePresignedURL allocates a document id and returns a
// time-limited upload URL for it.
func (s *DocumentService) GeneratePresignedURL(ctx context.Context, userID, filename string) (*domain.PresignedUpload, error) {
	if filename == "" || strings.ContainsAny(filename, "/\\") {
		return nil, fmt.Errorf("invalid file name %q", filename)
	}

	documentID := uuid.New().String()
	key := ObjectKey(userID, documentID, filename)

	return &domain.PresignedUpload{
		PresignedURL: s.presigner.SignedURL(key, time.Now()),
		DocumentID:   documentID,
	}, nil
}

// VerifyUpload checks the presigned-URL signature for a direct upload.
func (s *DocumentService) VerifyUpload(objectKey string, expires int64, signature string) error {
	return s.presigner.Verify(objectKey, expires, signature, time.Now())
}

// HandleUpload is the upload trigger: it stores the object, creates the
// registry entry with status uploaded and enqueues the ingestion job.
// Re-upload of an existing document id resets the entry and rebuilds the
// index wholesale; its conversations stay but are unqueryable until the
// document is ready again.
func (s *DocumentService) HandleUpload(ctx context.Context, objectKey string, body io.Reader) (*domain.Document, error) {
	userID, documentID, filename, err := ParseObjectKey(objectKey)
	if err != nil {
		return nil, err
	}

	size, err := s.store.Put(ctx, objectKey, body)
	if err != nil {
		return nil, fmt.Errorf("%w: store object: %v", domain.ErrStorageWrite, err)
	}

	doc := &domain.Document{
		UserID:     userID,
		DocumentID: documentID,
		Filename:   filename,
		ObjectKey:  objectKey,
		Status:     domain.DocumentStatusUploaded,
		FileSize:   size,
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		return nil, err
	}

	if err := s.queue.Publish(ctx, queue.Job{UserID: userID, DocumentID: documentID}); err != nil {
		return nil, fmt.Errorf("failed to enqueue ingestion job: %w", err)
	}

	s.logger.Info("document uploaded",
		zap.String("userid", userID),
		zap.String("documentid", documentID),
		zap.String("filename", filename),
		zap.Int64("size", size))

	return doc, nil
}

// ListDocuments returns all documents of a user.
func (s *DocumentService) ListDocuments(ctx context.Context, userID string) ([]*domain.Document, error) {
	docs, err := s.docs.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []*domain.Document{}
	}
	return docs, nil
}

// GetDocument returns one document plus its conversation list.
func (s *DocumentService) GetDocument(ctx context.Context, userID, documentID string) (*domain.DocumentDetail, error) {
	doc, err := s.docs.Get(ctx, userID, documentID)
	if err != nil {
		return nil, err
	}

	convs, err := s.convs.ListByDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if convs == nil {
		convs = []*domain.Conversation{}
	}

	return &domain.DocumentDetail{Document: doc, Conversations: convs}, nil
}

// CreateConversation starts a new conversation thread for a document.
func (s *DocumentService) CreateConversation(ctx context.Context, userID, documentID string) (*domain.Conversation, error) {
	if _, err := s.docs.Get(ctx, userID, documentID); err != nil {
		return nil, err
	}

	conv := &domain.Conversation{
		DocumentID: documentID,
		UserID:     userID,
	}
	if err := s.convs.Create(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// GetConversation returns the full conversation view: thread, document
// and ordered message history.
func (s *DocumentService) GetConversation(ctx context.Context, userID, documentID, conversationID string) (*domain.ConversationDetail, error) {
	conv, err := s.convs.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.UserID != userID || conv.DocumentID != documentID {
		return nil, domain.ErrNotFound
	}

	doc, err := s.docs.Get(ctx, userID, documentID)
	if err != nil {
		return nil, err
	}

	messages, err := s.convs.Messages(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	return &domain.ConversationDetail{
		Conversation: conv,
		Document:     doc,
		Messages:     messages,
	}, nil
}

// ObjectKey builds the per-user/per-document object key.
func ObjectKey(userID, documentID, filename string) string {
	return fmt.Sprintf("%s/%s/%s", userID, documentID, filename)
}

// ParseObjectKey splits an object key back into its identity parts.
func ParseObjectKey(key string) (userID, documentID, filename string, err error) {
	parts := strings.SplitN(key, "/", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", fmt.Errorf("invalid object key %q", key)
	}
	return parts[0], parts[1], parts[2], nil
}
