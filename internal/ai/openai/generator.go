package openai

import (
	"context"
	"fmt"
	"strings"

	"github.com/AutoJunjie/serverless-chatpdf/internal/ai"
	"github.com/AutoJunjie/serverless-chatpdf/internal/config"
	"github.com/AutoJunjie/serverless-chatpdf/internal/domain"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
)

const systemPrompt = `You are a helpful assistant answering questions about an uploaded document.
Use only the document excerpts below to answer. If the excerpts do not contain
the answer, say you don't know rather than guessing.

Document excerpts:
%s`

// Generator implements ai.Generator against an OpenAI-compatible chat
// API via langchaingo.
type Generator struct {
	client llms.Model
	logger *zap.Logger
}

// NewGenerator creates a new generator from the LLM configuration.
func NewGenerator(cfg config.LLMConfig, logger *zap.Logger) (*Generator, error) {
	token := cfg.APIKey
	if token == "" {
		token = "none"
	}

	client, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(token),
		openai.WithModel(cfg.LLMModel),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat client: %w", err)
	}

	return &Generator{
		client: client,
		logger: logger.With(zap.String("component", "openai-generator")),
	}, nil
}

// Generate runs a single chat completion combining retrieved chunks,
// prior conversation turns and the new question.
func (g *Generator) Generate(ctx context.Context, req ai.GenerateRequest) (string, error) {
	messages := buildMessages(req)

	resp, err := g.client.GenerateContent(ctx, messages)
	if err != nil {
		g.logger.Error("generation call failed", zap.Error(err))
		if ctx.Err() != nil {
			return "", domain.ErrTimeout
		}
		return "", fmt.Errorf("%w: %v", domain.ErrGeneration, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty response", domain.ErrGeneration)
	}

	return resp.Choices[0].Content, nil
}

func buildMessages(req ai.GenerateRequest) []llms.MessageContent {
	var excerpts strings.Builder
	for _, chunk := range req.Context {
		fmt.Fprintf(&excerpts, "[%d] %s\n\n", chunk.Index, chunk.Content)
	}

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, fmt.Sprintf(systemPrompt, excerpts.String())),
	}

	for _, m := range req.History {
		role := llms.ChatMessageTypeHuman
		if m.Role == domain.RoleAssistant {
			role = llms.ChatMessageTypeAI
		}
		messages = append(messages, llms.TextParts(role, m.Content))
	}

	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, req.Question))
	return messages
}
