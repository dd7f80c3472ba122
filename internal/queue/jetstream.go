package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/AutoJunjie/serverless-chatpdf/internal/config"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"
)

// JetStreamQueue implements Queue on NATS JetStream. AckWait maps to the
// visibility timeout and MaxDeliver bounds the attempt count, matching
// the delivery semantics of a managed work queue. Naks are delayed by
// the same window so a transient backend failure cannot burn the whole
// attempt budget in one instant.
type JetStreamQueue struct {
	nc       *nats.Conn
	js       jetstream.JetStream
	consumer jetstream.Consumer
	subject  string
	nakDelay time.Duration
	consume  jetstream.ConsumeContext
	logger   *zap.Logger
}

// NewJetStreamQueue connects to NATS and ensures the ingestion stream
// and its durable consumer exist.
func NewJetStreamQueue(cfg config.QueueConfig, logger *zap.Logger) (*JetStreamQueue, error) {
	nc, err := nats.Connect(cfg.URL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create jetstream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stream, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      cfg.Stream,
		Subjects:  []string{cfg.Subject},
		Retention: jetstream.WorkQueuePolicy,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create stream %q: %w", cfg.Stream, err)
	}

	consumer, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Durable:    cfg.Consumer,
		AckPolicy:  jetstream.AckExplicitPolicy,
		AckWait:    cfg.VisibilityTimeout,
		MaxDeliver: cfg.MaxAttempts,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create consumer %q: %w", cfg.Consumer, err)
	}

	return &JetStreamQueue{
		nc:       nc,
		js:       js,
		consumer: consumer,
		subject:  cfg.Subject,
		nakDelay: cfg.VisibilityTimeout,
		logger:   logger.With(zap.String("component", "jetstream-queue")),
	}, nil
}

// Publish enqueues one job.
func (q *JetStreamQueue) Publish(ctx context.Context, job Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	if _, err := q.js.Publish(ctx, q.subject, data); err != nil {
		return fmt.Errorf("failed to publish job: %w", err)
	}
	return nil
}

// Consume starts delivering jobs to the handler.
func (q *JetStreamQueue) Consume(ctx context.Context, handler Handler) error {
	cc, err := q.consumer.Consume(func(msg jetstream.Msg) {
		var job Job
		if err := json.Unmarshal(msg.Data(), &job); err != nil {
			q.logger.Error("dropping malformed job", zap.Error(err))
			_ = msg.Term()
			return
		}

		attempt := 1
		if meta, err := msg.Metadata(); err == nil {
			attempt = int(meta.NumDelivered)
		}

		handler(ctx, &jsDelivery{msg: msg, job: job, attempt: attempt, nakDelay: q.nakDelay})
	})
	if err != nil {
		return fmt.Errorf("failed to start consumer: %w", err)
	}
	q.consume = cc
	return nil
}

// Close stops delivery and drains the connection.
func (q *JetStreamQueue) Close() error {
	if q.consume != nil {
		q.consume.Stop()
	}
	return q.nc.Drain()
}

type jsDelivery struct {
	msg      jetstream.Msg
	job      Job
	attempt  int
	nakDelay time.Duration
}

func (d *jsDelivery) Job() Job     { return d.job }
func (d *jsDelivery) Attempt() int { return d.attempt }
func (d *jsDelivery) Ack() error   { return d.msg.Ack() }

// Nak requests redelivery after the visibility window, not immediately.
func (d *jsDelivery) Nak() error  { return d.msg.NakWithDelay(d.nakDelay) }
func (d *jsDelivery) Term() error { return d.msg.Term() }
