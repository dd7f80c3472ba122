// Package queue provides the ingestion work queue: at-least-once
// delivery with visibility-timeout redelivery and a bounded attempt
// count, per message.
package queue

import "context"

// Job is the ingestion queue payload: one message per uploaded document.
type Job struct {
	UserID     string `json:"userid"`
	DocumentID string `json:"documentid"`
}

// Delivery is one received job plus its redelivery metadata and
// acknowledgement controls. Exactly one of Ack, Nak or Term should be
// called per delivery; an unacknowledged delivery is redelivered after
// the visibility timeout.
type Delivery interface {
	// Job returns the payload.
	Job() Job

	// Attempt returns the 1-based delivery attempt for this job.
	Attempt() int

	// Ack acknowledges successful (or permanently settled) processing.
	Ack() error

	// Nak signals transient failure and requests redelivery.
	Nak() error

	// Term drops the message without further redelivery.
	Term() error
}

// Handler processes one delivery. It may acknowledge asynchronously.
type Handler func(ctx context.Context, d Delivery)

// Queue is the capability handle for the ingestion queue.
type Queue interface {
	// Publish enqueues one job.
	Publish(ctx context.Context, job Job) error

	// Consume starts delivering jobs to the handler until the context is
	// cancelled or the queue is closed.
	Consume(ctx context.Context, handler Handler) error

	// Close stops delivery and releases resources.
	Close() error
}
