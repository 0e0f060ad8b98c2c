package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/scoserv/pkg/domain"
	"github.com/aretw0/scoserv/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

// Queue is a reliable work queue for run requests built on Redis lists.
//
// Producers LPUSH onto the queue. A consumer atomically moves one message at a
// time into its own processing list (BRPOPLPUSH) and removes it from there
// only after the handler returned. Messages left in a processing list by a
// crashed consumer are moved back onto the queue when a consumer with the same
// name starts again.
type Queue struct {
	client   *backend.Client
	name     string
	consumer string
	prefix   string
	block    time.Duration
	logger   *slog.Logger
}

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// WithConsumerName sets the stable name of this consumer. It must be unique
// per worker process and survive restarts for crash recovery to work.
func WithConsumerName(name string) QueueOption {
	return func(q *Queue) {
		q.consumer = name
	}
}

// WithQueuePrefix sets the key prefix.
func WithQueuePrefix(prefix string) QueueOption {
	return func(q *Queue) {
		q.prefix = prefix
	}
}

// WithBlockTimeout sets how long a consumer blocks waiting for a message
// before checking for cancellation.
func WithBlockTimeout(d time.Duration) QueueOption {
	return func(q *Queue) {
		if d > 0 {
			q.block = d
		}
	}
}

// WithQueueLogger sets the logger.
func WithQueueLogger(logger *slog.Logger) QueueOption {
	return func(q *Queue) {
		if logger != nil {
			q.logger = logger
		}
	}
}

// NewQueue creates a queue named name on an existing client.
func NewQueue(client *backend.Client, name string, opts ...QueueOption) *Queue {
	q := &Queue{
		client:   client,
		name:     name,
		consumer: "default",
		prefix:   DefaultPrefix,
		block:    time.Second,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

func (q *Queue) queueKey() string {
	return q.prefix + "queue:" + q.name
}

func (q *Queue) processingKey() string {
	return q.prefix + "queue:" + q.name + ":processing:" + q.consumer
}

var _ ports.Dispatcher = (*Queue)(nil)

// Submit enqueues a run request.
func (q *Queue) Submit(ctx context.Context, req domain.RunRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDispatch, err)
	}
	if err := q.client.LPush(ctx, q.queueKey(), data).Err(); err != nil {
		return fmt.Errorf("%w: redis push: %v", domain.ErrDispatch, err)
	}
	return nil
}

// Len returns the number of waiting messages.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.queueKey()).Result()
}

// Recover moves messages left in this consumer's processing list back onto
// the queue and returns how many were moved.
func (q *Queue) Recover(ctx context.Context) (int, error) {
	moved := 0
	for {
		err := q.client.RPopLPush(ctx, q.processingKey(), q.queueKey()).Err()
		if errors.Is(err, backend.Nil) {
			return moved, nil
		}
		if err != nil {
			return moved, fmt.Errorf("failed to recover in-flight messages: %w", err)
		}
		moved++
	}
}

// Consume processes messages one at a time until ctx is canceled. Each message
// is acknowledged after handler returns nil. A handler error puts the message
// back onto the queue; a malformed message is dropped.
func (q *Queue) Consume(ctx context.Context, handler ports.RunHandler) error {
	if n, err := q.Recover(ctx); err != nil {
		return err
	} else if n > 0 {
		q.logger.Warn("requeued in-flight messages", "queue", q.name, "consumer", q.consumer, "count", n)
	}

	for {
		if ctx.Err() != nil {
			return nil
		}

		raw, err := q.client.BRPopLPush(ctx, q.queueKey(), q.processingKey(), q.block).Result()
		if errors.Is(err, backend.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to receive from queue %s: %w", q.name, err)
		}

		if err := q.handle(ctx, raw, handler); err != nil {
			return err
		}
	}
}

func (q *Queue) handle(ctx context.Context, raw string, handler ports.RunHandler) error {
	req, err := domain.DecodeRunRequest([]byte(raw))
	if err != nil {
		q.logger.Error("dropping malformed message", "queue", q.name, "err", err)
		return q.ack(context.WithoutCancel(ctx), raw)
	}

	logger := q.logger.With("run_id", req.RunID, "experiment_id", req.ExperimentID)
	if err := handler(ctx, req); err != nil {
		logger.Error("run handler failed, requeueing", "err", err)
		return q.requeue(context.WithoutCancel(ctx), raw)
	}
	logger.Debug("message acknowledged")
	return q.ack(context.WithoutCancel(ctx), raw)
}

func (q *Queue) ack(ctx context.Context, raw string) error {
	if err := q.client.LRem(ctx, q.processingKey(), 1, raw).Err(); err != nil {
		return fmt.Errorf("failed to acknowledge message: %w", err)
	}
	return nil
}

func (q *Queue) requeue(ctx context.Context, raw string) error {
	_, err := q.client.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
		pipe.LRem(ctx, q.processingKey(), 1, raw)
		pipe.LPush(ctx, q.queueKey(), raw)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to requeue message: %w", err)
	}
	return nil
}
