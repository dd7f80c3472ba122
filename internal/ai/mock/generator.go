package mock

import (
	"context"
	"fmt"

	"github.com/AutoJunjie/serverless-chatpdf/internal/ai"
)

// Generator is a test double for ai.Generator.
type Generator struct {
	GenerateFunc func(ctx context.Context, req ai.GenerateRequest) (string, error)

	// Requests records every request received, for assertions.
	Requests []ai.GenerateRequest
}

// NewGenerator creates a mock generator that echoes the question.
func NewGenerator() *Generator {
	return &Generator{}
}

// Generate records the request and returns a canned answer.
func (m *Generator) Generate(ctx context.Context, req ai.GenerateRequest) (string, error) {
	m.Requests = append(m.Requests, req)
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, req)
	}
	return fmt.Sprintf("answer to: %s", req.Question), nil
}
