package ingest

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/AutoJunjie/serverless-chatpdf/internal/ai/mock"
	"github.com/AutoJunjie/serverless-chatpdf/internal/domain"
	"github.com/AutoJunjie/serverless-chatpdf/internal/queue"
	"github.com/AutoJunjie/serverless-chatpdf/internal/repository"
	"github.com/AutoJunjie/serverless-chatpdf/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type workerFixture struct {
	worker   *Worker
	queue    *queue.MemoryQueue
	docs     *repository.DocumentRepository
	chunks   *repository.ChunkRepository
	store    *storage.FSStore
	embedder *mock.Embedder
}

func newWorkerFixture(t *testing.T) *workerFixture {
	t.Helper()

	db, err := repository.NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := storage.NewFSStore(t.TempDir())
	require.NoError(t, err)

	docs := repository.NewDocumentRepository(db)
	chunks := repository.NewChunkRepository(db)
	embedder := mock.NewEmbedder(8)
	chunker, err := NewChunker(20, 5)
	require.NoError(t, err)
	indexer := NewIndexer(embedder, chunks, zap.NewNop())

	q := queue.NewMemoryQueue(200*time.Millisecond, 3, zap.NewNop())
	t.Cleanup(func() { q.Close() })

	worker, err := NewWorker(q, docs, store, chunker, indexer, 2, 3, 200*time.Millisecond, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(worker.Stop)

	return &workerFixture{
		worker:   worker,
		queue:    q,
		docs:     docs,
		chunks:   chunks,
		store:    store,
		embedder: embedder,
	}
}

func (f *workerFixture) uploadDocument(t *testing.T, userID, documentID, filename, content string) {
	t.Helper()
	ctx := context.Background()
	key := userID + "/" + documentID + "/" + filename

	_, err := f.store.Put(ctx, key, strings.NewReader(content))
	require.NoError(t, err)

	require.NoError(t, f.docs.Create(ctx, &domain.Document{
		UserID:     userID,
		DocumentID: documentID,
		Filename:   filename,
		ObjectKey:  key,
		Status:     domain.DocumentStatusUploaded,
		FileSize:   int64(len(content)),
	}))
}

func TestIngestHappyPath(t *testing.T) {
	f := newWorkerFixture(t)
	ctx := context.Background()

	// 20-rune chunks, 5 overlap: a 50-rune text produces 3 chunks.
	f.uploadDocument(t, "u1", "d1", "notes.txt", strings.Repeat("abcde", 10))

	require.NoError(t, f.worker.Ingest(ctx, "u1", "d1"))

	doc, err := f.docs.Get(ctx, "u1", "d1")
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentStatusReady, doc.Status)
	assert.Equal(t, 3, doc.ChunkCount)

	n, err := f.chunks.Count(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestIngestRedeliveryIsIdempotent(t *testing.T) {
	f := newWorkerFixture(t)
	ctx := context.Background()

	f.uploadDocument(t, "u1", "d1", "notes.txt", strings.Repeat("abcde", 10))

	require.NoError(t, f.worker.Ingest(ctx, "u1", "d1"))
	embedCallsAfterFirst := f.embedder.Calls()

	// Simulated at-least-once redelivery: the document is already ready,
	// so the second pass must not touch the index.
	require.NoError(t, f.worker.Ingest(ctx, "u1", "d1"))

	doc, err := f.docs.Get(ctx, "u1", "d1")
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentStatusReady, doc.Status)
	assert.Equal(t, 3, doc.ChunkCount)

	n, err := f.chunks.Count(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, 3, n, "redelivery must not duplicate chunks")
	assert.Equal(t, embedCallsAfterFirst, f.embedder.Calls(), "redelivery must not re-embed")
}

func TestIngestUnknownDocument(t *testing.T) {
	f := newWorkerFixture(t)

	err := f.worker.Ingest(context.Background(), "u1", "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestIngestEmptyDocumentFails(t *testing.T) {
	f := newWorkerFixture(t)
	ctx := context.Background()

	f.uploadDocument(t, "u1", "d1", "empty.txt", "")

	err := f.worker.Ingest(ctx, "u1", "d1")
	assert.ErrorIs(t, err, domain.ErrEmptyDocument)

	doc, err := f.docs.Get(ctx, "u1", "d1")
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentStatusFailed, doc.Status)
}

func TestIngestTransientFailureThenRetry(t *testing.T) {
	f := newWorkerFixture(t)
	ctx := context.Background()

	f.uploadDocument(t, "u1", "d1", "notes.txt", strings.Repeat("abcde", 10))

	failing := true
	f.embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		if failing {
			return nil, domain.ErrEmbeddingBackend
		}
		f.embedder.EmbedTextsFunc = nil
		return f.embedder.EmbedTexts(ctx, texts)
	}

	err := f.worker.Ingest(ctx, "u1", "d1")
	require.ErrorIs(t, err, domain.ErrEmbeddingBackend)

	doc, err := f.docs.Get(ctx, "u1", "d1")
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentStatusFailed, doc.Status, "partial failure must not leave the document ready")

	// A fresh attempt claims the document back from failed.
	failing = false
	require.NoError(t, f.worker.Ingest(ctx, "u1", "d1"))

	doc, err = f.docs.Get(ctx, "u1", "d1")
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentStatusReady, doc.Status)
}

func TestIngestConcurrentClaim(t *testing.T) {
	f := newWorkerFixture(t)
	ctx := context.Background()

	f.uploadDocument(t, "u1", "d1", "notes.txt", strings.Repeat("abcde", 10))

	// Simulate an attempt already holding the processing lock.
	claimed, err := f.docs.ClaimProcessing(ctx, "u1", "d1", time.Minute)
	require.NoError(t, err)
	require.True(t, claimed)

	err = f.worker.Ingest(ctx, "u1", "d1")
	assert.ErrorIs(t, err, errInFlight)
}

func TestWorkerConsumesFromQueue(t *testing.T) {
	f := newWorkerFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f.uploadDocument(t, "u1", "d1", "notes.txt", strings.Repeat("abcde", 10))

	require.NoError(t, f.worker.Start(ctx))
	require.NoError(t, f.queue.Publish(ctx, queue.Job{UserID: "u1", DocumentID: "d1"}))

	require.Eventually(t, func() bool {
		doc, err := f.docs.Get(ctx, "u1", "d1")
		return err == nil && doc.Status == domain.DocumentStatusReady
	}, 3*time.Second, 20*time.Millisecond)

	n, err := f.chunks.Count(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestWorkerDuplicateQueueMessages(t *testing.T) {
	f := newWorkerFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f.uploadDocument(t, "u1", "d1", "notes.txt", strings.Repeat("abcde", 10))

	require.NoError(t, f.worker.Start(ctx))

	// At-least-once delivery: the same message arrives twice.
	job := queue.Job{UserID: "u1", DocumentID: "d1"}
	require.NoError(t, f.queue.Publish(ctx, job))
	require.NoError(t, f.queue.Publish(ctx, job))

	require.Eventually(t, func() bool {
		doc, err := f.docs.Get(ctx, "u1", "d1")
		return err == nil && doc.Status == domain.DocumentStatusReady
	}, 3*time.Second, 20*time.Millisecond)

	// Give the duplicate time to be consumed as well.
	time.Sleep(300 * time.Millisecond)

	doc, err := f.docs.Get(ctx, "u1", "d1")
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentStatusReady, doc.Status)
	assert.Equal(t, 3, doc.ChunkCount)

	n, err := f.chunks.Count(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, 3, n, "duplicate delivery must not change the chunk count")
}
