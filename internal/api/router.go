package api

import (
	"github.com/AutoJunjie/serverless-chatpdf/internal/api/docs"
	"github.com/AutoJunjie/serverless-chatpdf/internal/api/middleware"
	"github.com/AutoJunjie/serverless-chatpdf/internal/api/upload"
	"github.com/AutoJunjie/serverless-chatpdf/internal/service"
	"github.com/gin-gonic/gin"
)

// RouterConfig holds configuration for the router
type RouterConfig struct {
	AllowOrigins []string
}

// SetupRouter sets up the Gin router
func SetupRouter(
	documentService *service.DocumentService,
	chatService *service.ChatService,
	cfg RouterConfig,
) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	// CORS middleware
	r.Use(middleware.CORS(cfg.AllowOrigins))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	uploadHandler := upload.NewHandler(documentService)
	docsHandler := docs.NewHandler(documentService, chatService)

	// Presigned PUT; the URL signature is the credential
	public := r.Group("/")
	uploadHandler.RegisterPublic(public)

	// Everything else requires the gateway-injected user identity
	authed := r.Group("/")
	authed.Use(middleware.Identity())
	uploadHandler.RegisterAuthed(authed)
	docsHandler.RegisterRoutes(authed)

	return r
}
