package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/AutoJunjie/serverless-chatpdf/internal/ai"
	"github.com/AutoJunjie/serverless-chatpdf/internal/ai/mock"
	"github.com/AutoJunjie/serverless-chatpdf/internal/domain"
	"github.com/AutoJunjie/serverless-chatpdf/internal/repository"
	"github.com/AutoJunjie/serverless-chatpdf/internal/retrieval"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type chatFixture struct {
	svc       *ChatService
	docs      *repository.DocumentRepository
	convs     *repository.ConversationRepository
	chunks    *repository.ChunkRepository
	embedder  *mock.Embedder
	generator *mock.Generator
}

func newChatFixture(t *testing.T) *chatFixture {
	t.Helper()

	db, err := repository.NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	docs := repository.NewDocumentRepository(db)
	convs := repository.NewConversationRepository(db)
	chunks := repository.NewChunkRepository(db)
	embedder := mock.NewEmbedder(4)
	generator := mock.NewGenerator()
	retriever := retrieval.NewRetriever(docs, chunks)

	return &chatFixture{
		svc:       NewChatService(convs, retriever, embedder, generator, 5, 2*time.Second, zap.NewNop()),
		docs:      docs,
		convs:     convs,
		chunks:    chunks,
		embedder:  embedder,
		generator: generator,
	}
}

// seedReadyDocument creates a ready document with two indexed chunks and
// one conversation on it.
func (f *chatFixture) seedReadyDocument(t *testing.T) *domain.Conversation {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, f.docs.Create(ctx, &domain.Document{
		UserID:     "u1",
		DocumentID: "d1",
		Filename:   "report.pdf",
		ObjectKey:  "u1/d1/report.pdf",
	}))
	claimed, err := f.docs.ClaimProcessing(ctx, "u1", "d1", time.Minute)
	require.NoError(t, err)
	require.True(t, claimed)

	for i, content := range []string{"alpha chunk", "beta chunk"} {
		vec, err := f.embedder.EmbedText(ctx, content)
		require.NoError(t, err)
		require.NoError(t, f.chunks.Upsert(ctx, &domain.Chunk{
			DocumentID: "d1",
			Index:      i,
			Content:    content,
			Embedding:  vec,
		}))
	}
	require.NoError(t, f.docs.SetReady(ctx, "u1", "d1", 2, 1))

	conv := &domain.Conversation{DocumentID: "d1", UserID: "u1"}
	require.NoError(t, f.convs.Create(ctx, conv))
	return conv
}

func TestAnswerAppendsTurnPair(t *testing.T) {
	f := newChatFixture(t)
	conv := f.seedReadyDocument(t)
	ctx := context.Background()

	resp, err := f.svc.Answer(ctx, "u1", "d1", conv.ConversationID, "what is alpha?")
	require.NoError(t, err)
	assert.Equal(t, "answer to: what is alpha?", resp.Answer)
	assert.Equal(t, conv.ConversationID, resp.ConversationID)
	require.NotEmpty(t, resp.Sources)
	assert.Equal(t, "d1", resp.Sources[0].DocumentID)

	messages, err := f.convs.Messages(ctx, conv.ConversationID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, domain.RoleHuman, messages[0].Role)
	assert.Equal(t, "what is alpha?", messages[0].Content)
	assert.Equal(t, domain.RoleAssistant, messages[1].Role)
	assert.Equal(t, resp.Answer, messages[1].Content)
	assert.NotEmpty(t, messages[1].Sources)
}

func TestAnswerPassesHistoryToGenerator(t *testing.T) {
	f := newChatFixture(t)
	conv := f.seedReadyDocument(t)
	ctx := context.Background()

	_, err := f.svc.Answer(ctx, "u1", "d1", conv.ConversationID, "first question")
	require.NoError(t, err)
	_, err = f.svc.Answer(ctx, "u1", "d1", conv.ConversationID, "second question")
	require.NoError(t, err)

	require.Len(t, f.generator.Requests, 2)
	assert.Empty(t, f.generator.Requests[0].History)
	// The second call sees the first turn pair, not its own question.
	require.Len(t, f.generator.Requests[1].History, 2)
	assert.Equal(t, "first question", f.generator.Requests[1].History[0].Content)
	assert.Equal(t, "second question", f.generator.Requests[1].Question)
}

func TestAnswerGenerationFailureRetainsQuestion(t *testing.T) {
	f := newChatFixture(t)
	conv := f.seedReadyDocument(t)
	ctx := context.Background()

	f.generator.GenerateFunc = func(ctx context.Context, req ai.GenerateRequest) (string, error) {
		return "", domain.ErrGeneration
	}

	_, err := f.svc.Answer(ctx, "u1", "d1", conv.ConversationID, "doomed question")
	assert.ErrorIs(t, err, domain.ErrGeneration)

	messages, err := f.convs.Messages(ctx, conv.ConversationID)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, domain.RoleHuman, messages[0].Role)
	assert.Equal(t, "doomed question", messages[0].Content)
}

func TestAnswerTimeout(t *testing.T) {
	f := newChatFixture(t)
	conv := f.seedReadyDocument(t)
	ctx := context.Background()

	f.generator.GenerateFunc = func(ctx context.Context, req ai.GenerateRequest) (string, error) {
		<-ctx.Done()
		return "", domain.ErrTimeout
	}
	f.svc.timeout = 50 * time.Millisecond

	_, err := f.svc.Answer(ctx, "u1", "d1", conv.ConversationID, "slow question")
	assert.ErrorIs(t, err, domain.ErrTimeout)

	// The question survives the timeout; no assistant message is written.
	messages, err := f.convs.Messages(context.Background(), conv.ConversationID)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, domain.RoleHuman, messages[0].Role)
}

func TestAnswerEmbedFailureLeavesHistoryUntouched(t *testing.T) {
	f := newChatFixture(t)
	conv := f.seedReadyDocument(t)
	ctx := context.Background()

	f.embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, domain.ErrEmbeddingBackend
	}

	_, err := f.svc.Answer(ctx, "u1", "d1", conv.ConversationID, "unembeddable")
	assert.ErrorIs(t, err, domain.ErrEmbeddingBackend)

	messages, err := f.convs.Messages(ctx, conv.ConversationID)
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestAnswerDocumentNotReady(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()

	require.NoError(t, f.docs.Create(ctx, &domain.Document{
		UserID:     "u1",
		DocumentID: "d1",
		Filename:   "report.pdf",
		ObjectKey:  "u1/d1/report.pdf",
	}))
	conv := &domain.Conversation{DocumentID: "d1", UserID: "u1"}
	require.NoError(t, f.convs.Create(ctx, conv))

	_, err := f.svc.Answer(ctx, "u1", "d1", conv.ConversationID, "too early")
	assert.ErrorIs(t, err, domain.ErrDocumentNotReady)

	messages, err := f.convs.Messages(ctx, conv.ConversationID)
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestAnswerOwnershipChecks(t *testing.T) {
	f := newChatFixture(t)
	conv := f.seedReadyDocument(t)
	ctx := context.Background()

	_, err := f.svc.Answer(ctx, "intruder", "d1", conv.ConversationID, "whose doc?")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.svc.Answer(ctx, "u1", "other-doc", conv.ConversationID, "wrong doc")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.svc.Answer(ctx, "u1", "d1", "no-such-conversation", "wrong thread")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAnswerGenericGenerationError(t *testing.T) {
	f := newChatFixture(t)
	conv := f.seedReadyDocument(t)

	backendErr := errors.New("backend exploded")
	f.generator.GenerateFunc = func(ctx context.Context, req ai.GenerateRequest) (string, error) {
		return "", backendErr
	}

	_, err := f.svc.Answer(context.Background(), "u1", "d1", conv.ConversationID, "q")
	assert.ErrorIs(t, err, backendErr)
}
