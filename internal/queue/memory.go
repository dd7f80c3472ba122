package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrQueueClosed is returned by Publish after Close.
var ErrQueueClosed = errors.New("queue is closed")

// MemoryQueue is a channel-backed Queue with the same at-least-once
// contract as the JetStream implementation: deliveries run concurrently,
// a delivery that is not acknowledged within the visibility timeout is
// redelivered, and a negatively acknowledged one is redelivered only
// after the visibility window passes, until the attempt bound is
// reached. Used in dev mode and in tests.
type MemoryQueue struct {
	visibility  time.Duration
	maxAttempts int
	logger      *zap.Logger

	jobs   chan *memMsg
	closed chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

type memMsg struct {
	job     Job
	attempt int
}

// NewMemoryQueue creates an in-memory queue.
func NewMemoryQueue(visibility time.Duration, maxAttempts int, logger *zap.Logger) *MemoryQueue {
	return &MemoryQueue{
		visibility:  visibility,
		maxAttempts: maxAttempts,
		logger:      logger.With(zap.String("component", "memory-queue")),
		jobs:        make(chan *memMsg, 256),
		closed:      make(chan struct{}),
	}
}

// Publish enqueues one job.
func (q *MemoryQueue) Publish(ctx context.Context, job Job) error {
	select {
	case <-q.closed:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	case q.jobs <- &memMsg{job: job}:
		return nil
	}
}

// Consume starts delivering jobs to the handler, each delivery in its
// own goroutine so multiple jobs can be in flight at once. A delivery
// waits for an acknowledgement decision up to the visibility timeout
// before redelivering.
func (q *MemoryQueue) Consume(ctx context.Context, handler Handler) error {
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-q.closed:
				return
			case msg := <-q.jobs:
				q.wg.Add(1)
				go func() {
					defer q.wg.Done()
					q.dispatch(ctx, msg, handler)
				}()
			}
		}
	}()
	return nil
}

func (q *MemoryQueue) dispatch(ctx context.Context, msg *memMsg, handler Handler) {
	msg.attempt++

	d := &memDelivery{msg: msg, decided: make(chan ackDecision, 1)}
	handler(ctx, d)

	var decision ackDecision
	select {
	case decision = <-d.decided:
	case <-time.After(q.visibility):
		decision = decisionNone // visibility timeout expired
	case <-ctx.Done():
		return
	case <-q.closed:
		return
	}

	switch decision {
	case decisionAck, decisionTerm:
		return
	}

	if msg.attempt >= q.maxAttempts {
		q.logger.Warn("dropping job after max attempts",
			zap.String("documentid", msg.job.DocumentID),
			zap.Int("attempts", msg.attempt))
		return
	}

	if decision == decisionNak {
		// A nak keeps the message invisible for a full window, so
		// retries are paced the same as an expired visibility timeout
		// rather than hammering a struggling backend.
		select {
		case <-time.After(q.visibility):
		case <-ctx.Done():
			return
		case <-q.closed:
			return
		}
	}

	select {
	case q.jobs <- msg:
	default:
		q.logger.Warn("redelivery dropped, queue full",
			zap.String("documentid", msg.job.DocumentID))
	}
}

// Close stops delivery. Pending jobs are discarded.
func (q *MemoryQueue) Close() error {
	q.once.Do(func() { close(q.closed) })
	q.wg.Wait()
	return nil
}

type ackDecision int

const (
	decisionNone ackDecision = iota
	decisionAck
	decisionNak
	decisionTerm
)

type memDelivery struct {
	msg     *memMsg
	decided chan ackDecision
	once    sync.Once
}

func (d *memDelivery) Job() Job     { return d.msg.job }
func (d *memDelivery) Attempt() int { return d.msg.attempt }

func (d *memDelivery) Ack() error {
	d.decide(decisionAck)
	return nil
}

func (d *memDelivery) Nak() error {
	d.decide(decisionNak)
	return nil
}

func (d *memDelivery) Term() error {
	d.decide(decisionTerm)
	return nil
}

func (d *memDelivery) decide(dec ackDecision) {
	d.once.Do(func() { d.decided <- dec })
}
