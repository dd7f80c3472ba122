package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/AutoJunjie/serverless-chatpdf/internal/domain"
	"github.com/AutoJunjie/serverless-chatpdf/internal/queue"
	"github.com/AutoJunjie/serverless-chatpdf/internal/repository"
	"github.com/AutoJunjie/serverless-chatpdf/internal/storage"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

var (
	// errInFlight means another ingestion attempt currently holds the
	// per-document processing lock.
	errInFlight = errors.New("ingestion already in flight")

	// errExtract marks unreadable or unsupported payloads; retrying the
	// same object cannot succeed.
	errExtract = errors.New("document extraction failed")
)

// Worker consumes ingestion jobs and drives one document through
// extract -> chunk -> embed -> index, then flips the registry to ready.
// Deliveries are at-least-once; the conditional status claim plus
// chunk-index-keyed writes make reprocessing harmless.
type Worker struct {
	queue       queue.Queue
	docs        *repository.DocumentRepository
	store       storage.ObjectStore
	chunker     *Chunker
	indexer     *Indexer
	pool        *ants.Pool
	maxAttempts int
	claimTTL    time.Duration
	logger      *zap.Logger
}

// NewWorker creates a worker with a pool of size poolSize for concurrent
// document ingestion. claimTTL bounds how long a processing claim is
// honored before a redelivery may re-take it; the queue's visibility
// timeout is the natural value.
func NewWorker(
	q queue.Queue,
	docs *repository.DocumentRepository,
	store storage.ObjectStore,
	chunker *Chunker,
	indexer *Indexer,
	poolSize int,
	maxAttempts int,
	claimTTL time.Duration,
	logger *zap.Logger,
) (*Worker, error) {
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}

	return &Worker{
		queue:       q,
		docs:        docs,
		store:       store,
		chunker:     chunker,
		indexer:     indexer,
		pool:        pool,
		maxAttempts: maxAttempts,
		claimTTL:    claimTTL,
		logger:      logger.With(zap.String("component", "ingest-worker")),
	}, nil
}

// Start begins consuming ingestion jobs until the context is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	return w.queue.Consume(ctx, w.handle)
}

// Stop releases the worker pool after in-flight jobs finish.
func (w *Worker) Stop() {
	w.pool.Release()
}

func (w *Worker) handle(ctx context.Context, d queue.Delivery) {
	if err := w.pool.Submit(func() { w.process(ctx, d) }); err != nil {
		w.logger.Warn("pool rejected job, requesting redelivery", zap.Error(err))
		_ = d.Nak()
	}
}

func (w *Worker) process(ctx context.Context, d queue.Delivery) {
	job := d.Job()
	log := w.logger.With(
		zap.String("userid", job.UserID),
		zap.String("documentid", job.DocumentID),
		zap.Int("attempt", d.Attempt()),
	)

	err := w.Ingest(ctx, job.UserID, job.DocumentID)
	switch {
	case err == nil:
		log.Info("ingestion complete")
		_ = d.Ack()

	case errors.Is(err, errInFlight):
		// Concurrent delivery of the same document; let the visibility
		// window pass and look again.
		log.Debug("document already processing, deferring")
		_ = d.Nak()

	case isPermanent(err):
		log.Error("permanent ingestion failure, dropping job", zap.Error(err))
		_ = d.Term()

	case d.Attempt() >= w.maxAttempts:
		log.Error("ingestion failed after max attempts, dropping job", zap.Error(err))
		_ = d.Term()

	default:
		log.Warn("transient ingestion failure, requesting redelivery", zap.Error(err))
		_ = d.Nak()
	}
}

// Ingest runs the full pipeline for one document. The uploaded|failed ->
// processing claim is the per-document lock: a second concurrent attempt
// gets errInFlight, and a document that is already ready is a no-op so
// redelivered messages never duplicate work. Any failure after the claim
// marks the document failed; the failed -> processing transition lets a
// redelivery retry it. A claim left behind by a crashed attempt expires
// after claimTTL, so a stranded processing document can be re-taken.
func (w *Worker) Ingest(ctx context.Context, userID, documentID string) error {
	doc, err := w.docs.Get(ctx, userID, documentID)
	if err != nil {
		return err
	}
	if doc.Status == domain.DocumentStatusReady {
		return nil
	}

	claimed, err := w.docs.ClaimProcessing(ctx, userID, documentID, w.claimTTL)
	if err != nil {
		return err
	}
	if !claimed {
		return errInFlight
	}

	count, pages, err := w.buildIndex(ctx, doc)
	if err != nil {
		if ferr := w.docs.SetFailed(ctx, userID, documentID, err.Error()); ferr != nil {
			w.logger.Error("failed to record document failure", zap.Error(ferr))
		}
		return err
	}

	if err := w.docs.SetReady(ctx, userID, documentID, count, pages); err != nil {
		return err
	}
	return nil
}

func (w *Worker) buildIndex(ctx context.Context, doc *domain.Document) (int, int, error) {
	obj, err := w.store.Get(ctx, doc.ObjectKey)
	if err != nil {
		return 0, 0, fmt.Errorf("read object %q: %w", doc.ObjectKey, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return 0, 0, fmt.Errorf("read object %q: %w", doc.ObjectKey, err)
	}

	text, pages, err := ExtractText(data, doc.Filename)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", errExtract, err)
	}

	chunks, err := w.chunker.Split(text)
	if err != nil {
		return 0, 0, err
	}

	count, err := w.indexer.IndexDocument(ctx, doc.DocumentID, chunks)
	if err != nil {
		return 0, 0, err
	}
	return count, pages, nil
}

func isPermanent(err error) bool {
	return errors.Is(err, domain.ErrEmptyDocument) ||
		errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, errExtract)
}
