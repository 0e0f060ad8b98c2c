package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/aretw0/scoserv/pkg/domain"
	"github.com/aretw0/scoserv/pkg/ports"
	backend "github.com/streadway/amqp"
)

// DefaultQueue is the queue name used when none is configured.
const DefaultQueue = "sco"

// Channel is the subset of *amqp.Channel used by this package.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args backend.Table) (backend.Queue, error)
	Qos(prefetchCount, prefetchSize int, global bool) error
	Publish(exchange, key string, mandatory, immediate bool, msg backend.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args backend.Table) (<-chan backend.Delivery, error)
}

// Connection owns a broker connection and the channel opened on it.
type Connection struct {
	conn    *backend.Connection
	Channel *backend.Channel
}

// Dial connects to the broker at url and opens a channel.
func Dial(url string) (*Connection, error) {
	conn, err := backend.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	return &Connection{conn: conn, Channel: ch}, nil
}

// Close closes the channel and the connection.
func (c *Connection) Close() error {
	_ = c.Channel.Close()
	return c.conn.Close()
}

func declare(ch Channel, queue string) error {
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}
	return nil
}

// Option configures a Publisher or Consumer.
type Option func(*options)

type options struct {
	queue    string
	consumer string
	logger   *slog.Logger
}

// WithQueue sets the queue name.
func WithQueue(name string) Option {
	return func(o *options) {
		if name != "" {
			o.queue = name
		}
	}
}

// WithConsumerTag sets the consumer tag reported to the broker.
func WithConsumerTag(tag string) Option {
	return func(o *options) {
		o.consumer = tag
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func newOptions(opts []Option) options {
	o := options{
		queue:  DefaultQueue,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Publisher submits run requests to the queue.
type Publisher struct {
	ch Channel
	options
}

// NewPublisher declares the queue on ch and returns a publisher for it.
func NewPublisher(ch Channel, opts ...Option) (*Publisher, error) {
	p := &Publisher{ch: ch, options: newOptions(opts)}
	if err := declare(ch, p.queue); err != nil {
		return nil, err
	}
	return p, nil
}

var _ ports.Dispatcher = (*Publisher)(nil)

// Submit publishes req as a persistent message on the default exchange.
func (p *Publisher) Submit(ctx context.Context, req domain.RunRequest) error {
	if err := req.Validate(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrDispatch, err)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrDispatch, err)
	}
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrDispatch, err)
	}
	err = p.ch.Publish("", p.queue, false, false, backend.Publishing{
		ContentType:  "application/json",
		DeliveryMode: backend.Persistent,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("%w: amqp publish: %w", domain.ErrDispatch, err)
	}
	p.logger.Debug("run published", "queue", p.queue, "run_id", req.RunID)
	return nil
}

// Consumer delivers queued run requests to a handler.
type Consumer struct {
	ch Channel
	options
}

// NewConsumer declares the queue on ch and limits unacknowledged deliveries
// to one.
func NewConsumer(ch Channel, opts ...Option) (*Consumer, error) {
	c := &Consumer{ch: ch, options: newOptions(opts)}
	if err := declare(ch, c.queue); err != nil {
		return nil, err
	}
	if err := ch.Qos(1, 0, false); err != nil {
		return nil, fmt.Errorf("failed to set prefetch: %w", err)
	}
	return c, nil
}

// Consume handles deliveries until ctx is canceled or the broker closes the
// channel. A handler error requeues the message; a malformed message is
// rejected without requeue.
func (c *Consumer) Consume(ctx context.Context, handler ports.RunHandler) error {
	deliveries, err := c.ch.Consume(c.queue, c.consumer, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to consume from %s: %w", c.queue, err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("delivery channel for %s closed", c.queue)
			}
			if err := c.handle(ctx, d, handler); err != nil {
				return err
			}
		}
	}
}

func (c *Consumer) handle(ctx context.Context, d backend.Delivery, handler ports.RunHandler) error {
	req, err := domain.DecodeRunRequest(d.Body)
	if err != nil {
		c.logger.Error("rejecting malformed message", "queue", c.queue, "err", err)
		if err := d.Reject(false); err != nil {
			return fmt.Errorf("failed to reject message: %w", err)
		}
		return nil
	}

	logger := c.logger.With("run_id", req.RunID, "experiment_id", req.ExperimentID)
	if err := handler(ctx, req); err != nil {
		logger.Error("run handler failed, requeueing", "err", err)
		if err := d.Nack(false, true); err != nil {
			return fmt.Errorf("failed to requeue message: %w", err)
		}
		return nil
	}
	if err := d.Ack(false); err != nil {
		return fmt.Errorf("failed to acknowledge message: %w", err)
	}
	logger.Debug("message acknowledged")
	return nil
}
