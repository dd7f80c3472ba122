// Package upload implements the presigned direct-upload flow.
package upload

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/AutoJunjie/serverless-chatpdf/internal/api/middleware"
	"github.com/AutoJunjie/serverless-chatpdf/internal/service"
	"github.com/AutoJunjie/serverless-chatpdf/internal/storage"
	"github.com/gin-gonic/gin"
)

// Handler handles presigned upload requests
type Handler struct {
	documents *service.DocumentService
}

// NewHandler creates a new upload handler
func NewHandler(documents *service.DocumentService) *Handler {
	return &Handler{documents: documents}
}

// RegisterAuthed registers routes that require user identity
func (h *Handler) RegisterAuthed(r *gin.RouterGroup) {
	r.GET("/generate_presigned_url", h.GeneratePresignedURL)
}

// RegisterPublic registers the presigned PUT endpoint; the URL
// signature itself is the credential there.
func (h *Handler) RegisterPublic(r *gin.RouterGroup) {
	r.PUT("/upload", h.Upload)
}

// GeneratePresignedURL returns a time-limited upload URL for a new document
func (h *Handler) GeneratePresignedURL(c *gin.Context) {
	fileName := c.Query("file_name")

	presigned, err := h.documents.GeneratePresignedURL(c.Request.Context(),
		middleware.UserID(c), fileName)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, presigned)
}

// Upload accepts a direct object write against a presigned URL and
// fires the upload trigger: registry entry plus ingestion job.
func (h *Handler) Upload(c *gin.Context) {
	key := c.Query("key")
	signature := c.Query("signature")
	expires, err := strconv.ParseInt(c.Query("expires"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid expires parameter"})
		return
	}

	if err := h.documents.VerifyUpload(key, expires, signature); err != nil {
		status := http.StatusForbidden
		if errors.Is(err, storage.ErrSignatureExpired) {
			status = http.StatusGone
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	doc, err := h.documents.HandleUpload(c.Request.Context(), key, c.Request.Body)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, doc)
}
