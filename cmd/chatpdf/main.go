package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	aiopenai "github.com/AutoJunjie/serverless-chatpdf/internal/ai/openai"
	"github.com/AutoJunjie/serverless-chatpdf/internal/api"
	"github.com/AutoJunjie/serverless-chatpdf/internal/config"
	"github.com/AutoJunjie/serverless-chatpdf/internal/ingest"
	"github.com/AutoJunjie/serverless-chatpdf/internal/queue"
	"github.com/AutoJunjie/serverless-chatpdf/internal/repository"
	"github.com/AutoJunjie/serverless-chatpdf/internal/retrieval"
	"github.com/AutoJunjie/serverless-chatpdf/internal/service"
	"github.com/AutoJunjie/serverless-chatpdf/internal/storage"
	"go.uber.org/zap"
)

var (
	configPath = flag.String("config", "", "Path to config file")
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	// Initialize database
	db, err := repository.NewDB(cfg.Database.Path)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	// Initialize repositories
	documentRepo := repository.NewDocumentRepository(db)
	chunkRepo := repository.NewChunkRepository(db)
	conversationRepo := repository.NewConversationRepository(db)

	// Object store and presigner
	objectStore, err := storage.NewFSStore(cfg.Storage.Documents)
	if err != nil {
		logger.Fatal("Failed to initialize object store", zap.Error(err))
	}
	presigner, err := storage.NewPresigner(cfg.Storage.SignKey, cfg.Storage.URLTTL, cfg.Server.BaseURL)
	if err != nil {
		logger.Fatal("Failed to initialize presigner", zap.Error(err))
	}

	// Ingestion queue
	var ingestQueue queue.Queue
	switch cfg.Queue.Driver {
	case "memory":
		ingestQueue = queue.NewMemoryQueue(cfg.Queue.VisibilityTimeout, cfg.Queue.MaxAttempts, logger)
	default:
		ingestQueue, err = queue.NewJetStreamQueue(cfg.Queue, logger)
		if err != nil {
			logger.Fatal("Failed to connect to queue", zap.Error(err))
		}
	}
	defer ingestQueue.Close()

	// Embedding and generation backends: constructed once, shared
	embedder, err := aiopenai.NewEmbedder(cfg.LLM, logger)
	if err != nil {
		logger.Fatal("Failed to create embedder", zap.Error(err))
	}
	generator, err := aiopenai.NewGenerator(cfg.LLM, logger)
	if err != nil {
		logger.Fatal("Failed to create generator", zap.Error(err))
	}

	// Ingestion pipeline
	chunker, err := ingest.NewChunker(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
	if err != nil {
		logger.Fatal("Invalid chunker configuration", zap.Error(err))
	}
	indexer := ingest.NewIndexer(embedder, chunkRepo, logger)
	worker, err := ingest.NewWorker(ingestQueue, documentRepo, objectStore,
		chunker, indexer, cfg.Queue.Workers, cfg.Queue.MaxAttempts,
		cfg.Queue.VisibilityTimeout, logger)
	if err != nil {
		logger.Fatal("Failed to create ingestion worker", zap.Error(err))
	}

	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()
	if err := worker.Start(workerCtx); err != nil {
		logger.Fatal("Failed to start ingestion worker", zap.Error(err))
	}

	// Query path
	retriever := retrieval.NewRetriever(documentRepo, chunkRepo)
	documentService := service.NewDocumentService(documentRepo, conversationRepo,
		objectStore, presigner, ingestQueue, logger)
	chatService := service.NewChatService(conversationRepo, retriever,
		embedder, generator, cfg.RAG.TopK, cfg.LLM.Timeout, logger)

	// Setup router
	router := api.SetupRouter(documentService, chatService, api.RouterConfig{
		AllowOrigins: []string{"*"},
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Address(),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 3 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Starting chatpdf server",
			zap.String("address", cfg.Address()),
			zap.String("base_url", cfg.Server.BaseURL),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	// Stop consuming before releasing the pool
	stopWorker()
	worker.Stop()

	logger.Info("Server exited")
}
