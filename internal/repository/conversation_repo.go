package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/AutoJunjie/serverless-chatpdf/internal/domain"
	"github.com/google/uuid"
)

// ConversationRepository is the conversation store: a durable ordered
// message log keyed by conversation, plus the conversation catalog.
type ConversationRepository struct {
	db *DB
}

// NewConversationRepository creates a new conversation repository
func NewConversationRepository(db *DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// Create creates a new conversation for a document.
func (r *ConversationRepository) Create(ctx context.Context, conv *domain.Conversation) error {
	if conv.ConversationID == "" {
		conv.ConversationID = uuid.New().String()
	}
	conv.CreatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO conversations (id, document_id, user_id, created_at)
		VALUES (?, ?, ?, ?)
	`, conv.ConversationID, conv.DocumentID, conv.UserID, conv.CreatedAt)

	return err
}

// Get retrieves a conversation by ID.
// Returns domain.ErrNotFound if it does not exist.
func (r *ConversationRepository) Get(ctx context.Context, conversationID string) (*domain.Conversation, error) {
	conv := &domain.Conversation{}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, document_id, user_id, created_at
		FROM conversations WHERE id = ?
	`, conversationID).Scan(&conv.ConversationID, &conv.DocumentID,
		&conv.UserID, &conv.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return conv, nil
}

// ListByDocument returns all conversations of a document, oldest first.
func (r *ConversationRepository) ListByDocument(ctx context.Context, documentID string) ([]*domain.Conversation, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, document_id, user_id, created_at
		FROM conversations WHERE document_id = ?
		ORDER BY created_at ASC
	`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var convs []*domain.Conversation
	for rows.Next() {
		conv := &domain.Conversation{}
		if err := rows.Scan(&conv.ConversationID, &conv.DocumentID,
			&conv.UserID, &conv.CreatedAt); err != nil {
			return nil, err
		}
		convs = append(convs, conv)
	}

	return convs, rows.Err()
}

// AppendMessage atomically adds one message to the end of the history.
// The autoincrement seq column fixes insertion order for reads.
func (r *ConversationRepository) AppendMessage(ctx context.Context, message *domain.Message) error {
	if message.ID == "" {
		message.ID = uuid.New().String()
	}
	message.CreatedAt = time.Now()

	sourcesJSON, err := json.Marshal(message.Sources)
	if err != nil {
		return fmt.Errorf("marshal sources: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, role, content, sources, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, message.ID, message.ConversationID, message.Role, message.Content,
		string(sourcesJSON), message.CreatedAt)

	return err
}

// Messages returns the full ordered history of a conversation. A fresh
// conversation yields an empty slice, never an error.
func (r *ConversationRepository) Messages(ctx context.Context, conversationID string) ([]*domain.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, conversation_id, role, content, sources, created_at
		FROM messages WHERE conversation_id = ?
		ORDER BY seq ASC
	`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []*domain.Message{}
	for rows.Next() {
		message := &domain.Message{}
		var sourcesJSON sql.NullString

		if err := rows.Scan(&message.ID, &message.ConversationID, &message.Role,
			&message.Content, &sourcesJSON, &message.CreatedAt); err != nil {
			return nil, err
		}

		if sourcesJSON.Valid && sourcesJSON.String != "" {
			if err := json.Unmarshal([]byte(sourcesJSON.String), &message.Sources); err != nil {
				return nil, fmt.Errorf("corrupt sources on message %s: %w", message.ID, err)
			}
		}
		messages = append(messages, message)
	}

	return messages, rows.Err()
}
