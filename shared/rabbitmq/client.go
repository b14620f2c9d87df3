// Package rabbitmq wraps amqp091-go with the exchange/queue topology both
// services share: one direct exchange, one durable queue, one routing key.
package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Config holds RabbitMQ connection configuration
type Config struct {
	Host               string
	Port               int
	User               string
	Password           string
	VHost              string
	ExchangeName       string
	ExchangeType       string
	ExchangeDurable    bool
	ExchangeAutoDelete bool
	QueueName          string
	QueueDurable       bool
	QueueAutoDelete    bool
	QueueExclusive     bool
	RoutingKey         string
	RetryAttempts      int
	RetryInterval      time.Duration
	Heartbeat          time.Duration
	ConnectionTimeout  time.Duration
	PublishRetries     int
	PublishRetryDelay  time.Duration
	PublishBackoffMult float64
}

// Client owns one connection and one channel. It is not safe to share a
// channel across goroutines for publishing and consuming at once; each service
// uses its client for one direction only.
type Client struct {
	config    *Config
	conn      *amqp.Connection
	channel   *amqp.Channel
	logger    *slog.Logger
	closeChan chan *amqp.Error
	connected bool
}

// NewClient dials the broker, declares the topology, and returns a ready
// client. Dialing retries RetryAttempts times at RetryInterval.
func NewClient(config *Config, logger *slog.Logger) (*Client, error) {
	client := &Client{
		config: config,
		logger: logger,
	}

	if err := client.connect(); err != nil {
		return nil, fmt.Errorf("rabbitmq client: %w", err)
	}

	return client, nil
}

func (c *Client) connect() error {
	dsn := fmt.Sprintf("amqp://%s:%s@%s:%d%s",
		c.config.User,
		c.config.Password,
		c.config.Host,
		c.config.Port,
		c.config.VHost,
	)

	amqpConfig := amqp.Config{
		Heartbeat: c.config.Heartbeat,
		Locale:    "en_US",
	}

	attempts := c.config.RetryAttempts
	if attempts <= 0 {
		attempts = 1
	}

	attempt := 0
	dial := func() error {
		attempt++
		c.logger.Info("dialing rabbitmq",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", attempts),
		)

		conn, err := amqp.DialConfig(dsn, amqpConfig)
		if err != nil {
			c.logger.Warn("rabbitmq dial failed", slog.Any("error", err))
			return err
		}
		c.conn = conn
		return nil
	}

	policy := backoff.WithMaxRetries(
		backoff.NewConstantBackOff(c.config.RetryInterval),
		uint64(attempts-1),
	)
	if err := backoff.Retry(dial, policy); err != nil {
		return fmt.Errorf("dial after %d attempts: %w", attempts, err)
	}

	channel, err := c.conn.Channel()
	if err != nil {
		c.conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	c.channel = channel

	if err := c.declareTopology(); err != nil {
		c.channel.Close()
		c.conn.Close()
		return err
	}

	c.closeChan = make(chan *amqp.Error)
	c.channel.NotifyClose(c.closeChan)
	c.connected = true

	c.logger.Info("rabbitmq ready",
		slog.String("exchange", c.config.ExchangeName),
		slog.String("queue", c.config.QueueName),
		slog.String("routing_key", c.config.RoutingKey),
	)

	return nil
}

// declareTopology declares the exchange and queue and binds them. Declarations
// are idempotent, so both services can run this on startup in any order.
func (c *Client) declareTopology() error {
	err := c.channel.ExchangeDeclare(
		c.config.ExchangeName,
		c.config.ExchangeType,
		c.config.ExchangeDurable,
		c.config.ExchangeAutoDelete,
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare exchange %q: %w", c.config.ExchangeName, err)
	}

	_, err = c.channel.QueueDeclare(
		c.config.QueueName,
		c.config.QueueDurable,
		c.config.QueueAutoDelete,
		c.config.QueueExclusive,
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare queue %q: %w", c.config.QueueName, err)
	}

	err = c.channel.QueueBind(
		c.config.QueueName,
		c.config.RoutingKey,
		c.config.ExchangeName,
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("bind queue %q: %w", c.config.QueueName, err)
	}

	return nil
}

// Consume opens a manual-ack delivery stream from the queue.
func (c *Client) Consume(consumerTag string) (<-chan amqp.Delivery, error) {
	if !c.connected {
		return nil, fmt.Errorf("not connected to rabbitmq")
	}

	deliveries, err := c.channel.Consume(
		c.config.QueueName,
		consumerTag,
		false, // auto-ack stays off, the worker acks after the merge commits
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("consume from %q: %w", c.config.QueueName, err)
	}

	c.logger.Info("consuming",
		slog.String("queue", c.config.QueueName),
		slog.String("consumer_tag", consumerTag),
	)

	return deliveries, nil
}

// PublishWithRetry publishes one persistent message, retrying transient
// failures with exponential backoff until the attempts or the context run out.
func (c *Client) PublishWithRetry(ctx context.Context, body []byte, contentType string) error {
	if !c.connected {
		return fmt.Errorf("not connected to rabbitmq")
	}

	maxRetries := c.config.PublishRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	policy := backoff.NewExponentialBackOff()
	if c.config.PublishRetryDelay > 0 {
		policy.InitialInterval = c.config.PublishRetryDelay
	}
	if c.config.PublishBackoffMult > 0 {
		policy.Multiplier = c.config.PublishBackoffMult
	}

	publish := func() error {
		err := c.channel.PublishWithContext(
			ctx,
			c.config.ExchangeName,
			c.config.RoutingKey,
			false, // mandatory
			false, // immediate
			amqp.Publishing{
				ContentType:  contentType,
				Body:         body,
				DeliveryMode: amqp.Persistent,
				Timestamp:    time.Now(),
			},
		)
		if err != nil {
			c.logger.Warn("publish failed, will retry",
				slog.Int("body_size", len(body)),
				slog.Any("error", err),
			)
		}
		return err
	}

	wrapped := backoff.WithContext(
		backoff.WithMaxRetries(policy, uint64(maxRetries)),
		ctx,
	)
	if err := backoff.Retry(publish, wrapped); err != nil {
		return fmt.Errorf("publish after %d attempts: %w", maxRetries+1, err)
	}

	c.logger.Debug("message published",
		slog.Int("body_size", len(body)),
		slog.String("content_type", contentType),
	)
	return nil
}

// Close shuts the channel and connection down. Safe to call once during
// service shutdown.
func (c *Client) Close() error {
	c.logger.Info("closing rabbitmq connection")

	c.connected = false

	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			c.logger.Error("close rabbitmq channel", slog.Any("error", err))
		}
	}

	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			c.logger.Error("close rabbitmq connection", slog.Any("error", err))
			return err
		}
	}

	return nil
}

// IsConnected reports whether the underlying connection is still open.
func (c *Client) IsConnected() bool {
	return c.connected && c.conn != nil && !c.conn.IsClosed()
}

// GetChannel exposes the channel for ack/nack operations on deliveries.
func (c *Client) GetChannel() *amqp.Channel {
	return c.channel
}
