package service

import (
	"context"
	"time"

	"github.com/AutoJunjie/serverless-chatpdf/internal/ai"
	"github.com/AutoJunjie/serverless-chatpdf/internal/domain"
	"github.com/AutoJunjie/serverless-chatpdf/internal/repository"
	"github.com/AutoJunjie/serverless-chatpdf/internal/retrieval"
	"go.uber.org/zap"
)

// ChatService is the answer generator: it combines retrieved chunks,
// prior conversation turns and the new question into one language-model
// call and appends the resulting turn pair to the conversation.
type ChatService struct {
	convs     *repository.ConversationRepository
	retriever *retrieval.Retriever
	embedder  ai.Embedder
	generator ai.Generator
	topK      int
	timeout   time.Duration
	logger    *zap.Logger
}

// NewChatService creates a new chat service
func NewChatService(
	convs *repository.ConversationRepository,
	retriever *retrieval.Retriever,
	embedder ai.Embedder,
	generator ai.Generator,
	topK int,
	timeout time.Duration,
	logger *zap.Logger,
) *ChatService {
	return &ChatService{
		convs:     convs,
		retriever: retriever,
		embedder:  embedder,
		generator: generator,
		topK:      topK,
		timeout:   timeout,
		logger:    logger.With(zap.String("component", "chat-service")),
	}
}

// Answer runs one question against a document's index within an
// existing conversation.
//
// The human question is appended only after embedding and retrieval
// succeed, immediately before the generation call. If generation then
// fails or times out, the question stays as the last message and no
// assistant message is written, so a subsequent read shows a consistent,
// resumable history.
func (s *ChatService) Answer(ctx context.Context, userID, documentID, conversationID, question string) (*domain.PromptResponse, error) {
	conv, err := s.convs.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.UserID != userID || conv.DocumentID != documentID {
		return nil, domain.ErrNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	queryVec, err := s.embedder.EmbedText(ctx, question)
	if err != nil {
		return nil, err
	}

	chunks, err := s.retriever.Retrieve(ctx, userID, documentID, queryVec, s.topK)
	if err != nil {
		return nil, err
	}

	history, err := s.convs.Messages(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	humanMsg := &domain.Message{
		ConversationID: conversationID,
		Role:           domain.RoleHuman,
		Content:        question,
	}
	if err := s.convs.AppendMessage(ctx, humanMsg); err != nil {
		return nil, err
	}

	answer, err := s.generator.Generate(ctx, ai.GenerateRequest{
		Context:  chunks,
		History:  history,
		Question: question,
	})
	if err != nil {
		s.logger.Warn("generation failed, question retained in history",
			zap.String("conversationid", conversationID),
			zap.Error(err))
		return nil, err
	}

	sources := make([]domain.Source, len(chunks))
	for i, chunk := range chunks {
		sources[i] = domain.Source{
			DocumentID: chunk.DocumentID,
			ChunkIndex: chunk.Index,
			Content:    chunk.Content,
			Score:      chunk.Score,
		}
	}

	assistantMsg := &domain.Message{
		ConversationID: conversationID,
		Role:           domain.RoleAssistant,
		Content:        answer,
		Sources:        sources,
	}
	if err := s.convs.AppendMessage(ctx, assistantMsg); err != nil {
		return nil, err
	}

	return &domain.PromptResponse{
		ConversationID: conversationID,
		Answer:         answer,
		Sources:        sources,
	}, nil
}
