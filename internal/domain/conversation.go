package domain

import "time"

// Message roles.
const (
	RoleHuman     = "human"
	RoleAssistant = "assistant"
)

// Conversation is one independent question/answer thread against a document.
type Conversation struct {
	ConversationID string    `json:"conversationid"`
	DocumentID     string    `json:"documentid"`
	UserID         string    `json:"userid"`
	CreatedAt      time.Time `json:"created"`
}

// Message is a single turn in a conversation. Ordering is insertion order
// and must be preserved exactly on read.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationid"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	Sources        []Source  `json:"sources,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Source is a citation pointing at the chunk an answer was grounded on.
type Source struct {
	DocumentID string  `json:"document_id"`
	ChunkIndex int     `json:"chunk_index"`
	Content    string  `json:"content"`
	Score      float64 `json:"score"`
}

// ConversationDetail is the full view returned by
// GET /doc/{documentid}/{conversationid}.
type ConversationDetail struct {
	Conversation *Conversation `json:"conversation"`
	Document     *Document     `json:"document"`
	Messages     []*Message    `json:"messages"`
}

// PromptRequest is the body of POST /{documentid}/{conversationid}.
type PromptRequest struct {
	FileName string `json:"fileName"`
	Prompt   string `json:"prompt" binding:"required"`
}

// PromptResponse is the answer returned for a prompt.
type PromptResponse struct {
	ConversationID string   `json:"conversationid"`
	Answer         string   `json:"answer"`
	Sources        []Source `json:"sources,omitempty"`
}
