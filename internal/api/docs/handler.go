// Package docs implements the document and conversation query API.
package docs

import (
	"errors"
	"net/http"

	"github.com/AutoJunjie/serverless-chatpdf/internal/api/middleware"
	"github.com/AutoJunjie/serverless-chatpdf/internal/domain"
	"github.com/AutoJunjie/serverless-chatpdf/internal/service"
	"github.com/gin-gonic/gin"
)

// Handler handles document and conversation requests
type Handler struct {
	documents *service.DocumentService
	chat      *service.ChatService
}

// NewHandler creates a new docs handler
func NewHandler(documents *service.DocumentService, chat *service.ChatService) *Handler {
	return &Handler{documents: documents, chat: chat}
}

// RegisterRoutes registers document and conversation routes
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/doc", h.ListDocuments)
	r.GET("/doc/:documentid", h.GetDocument)
	r.POST("/doc/:documentid", h.CreateConversation)
	r.GET("/doc/:documentid/:conversationid", h.GetConversation)
	r.POST("/:documentid/:conversationid", h.Prompt)
}

// ListDocuments returns all documents of the authenticated user
func (h *Handler) ListDocuments(c *gin.Context) {
	docs, err := h.documents.ListDocuments(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, docs)
}

// GetDocument returns one document with its conversation list
func (h *Handler) GetDocument(c *gin.Context) {
	detail, err := h.documents.GetDocument(c.Request.Context(),
		middleware.UserID(c), c.Param("documentid"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// CreateConversation starts a new conversation for a document
func (h *Handler) CreateConversation(c *gin.Context) {
	conv, err := h.documents.CreateConversation(c.Request.Context(),
		middleware.UserID(c), c.Param("documentid"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversationid": conv.ConversationID})
}

// GetConversation returns the full conversation with ordered messages
func (h *Handler) GetConversation(c *gin.Context) {
	detail, err := h.documents.GetConversation(c.Request.Context(),
		middleware.UserID(c), c.Param("documentid"), c.Param("conversationid"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// Prompt submits a question for a conversation and returns the answer
func (h *Handler) Prompt(c *gin.Context) {
	var req domain.PromptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.chat.Answer(c.Request.Context(), middleware.UserID(c),
		c.Param("documentid"), c.Param("conversationid"), req.Prompt)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// writeError maps domain errors to distinct HTTP failure responses;
// query-path failures are never converted to an empty answer.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrDocumentNotReady):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrTimeout):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrGeneration), errors.Is(err, domain.ErrEmbeddingBackend):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
