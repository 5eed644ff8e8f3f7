package amqp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"expensetracker/internal/log"
)

// Circuit breaker states
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	maxFailures    = 5
	openTimeout    = 30 * time.Second
	publishTimeout = 5 * time.Second
	maxBackoff     = 30 * time.Second
)

// Client publishes to and consumes from queues bound to one direct exchange.
// Routing keys equal queue names.
type Client struct {
	url          string
	exchangeName string
	queues       []string
	logger       *log.Logger

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel

	failureCount int64
	state        int32
	lastFailure  time.Time
}

func NewClient(url, exchangeName string, queues []string, logger *log.Logger) (*Client, error) {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	client := &Client{
		url:          url,
		exchangeName: exchangeName,
		queues:       queues,
		logger:       logger.WithComponent(log.ComponentAMQP),
	}

	client.mu.Lock()
	defer client.mu.Unlock()
	if err := client.connectLocked(); err != nil {
		return nil, err
	}
	return client, nil
}

func (c *Client) connectLocked() error {
	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	if err := c.setup(channel); err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("setup exchange and queues: %w", err)
	}

	c.conn = conn
	c.channel = channel
	return nil
}

func (c *Client) setup(ch *amqp091.Channel) error {
	err := ch.ExchangeDeclare(
		c.exchangeName, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	for _, queue := range c.queues {
		if _, err := ch.QueueDeclare(
			queue, // name
			true,  // durable
			false, // delete when unused
			false, // exclusive
			false, // no-wait
			nil,   // arguments
		); err != nil {
			return fmt.Errorf("declare queue %s: %w", queue, err)
		}

		if err := ch.QueueBind(queue, queue, c.exchangeName, false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", queue, err)
		}
	}

	return nil
}

// ensureConnectedLocked redials when the broker dropped the connection.
func (c *Client) ensureConnectedLocked() error {
	if c.conn != nil && !c.conn.IsClosed() && c.channel != nil && !c.channel.IsClosed() {
		return nil
	}
	c.closeLocked()
	return c.connectLocked()
}

// PublishExpenseSync announces a stored expense on the sync queue.
func (c *Client) PublishExpenseSync(ctx context.Context, queue string, id int64) error {
	body, err := NewExpenseSyncMessage(id).ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	return c.publish(ctx, queue, body)
}

// PublishSMS enqueues a raw notification text for asynchronous ingestion.
func (c *Client) PublishSMS(ctx context.Context, queue, text string) error {
	body, err := NewInboundSMSMessage(text).ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	return c.publish(ctx, queue, body)
}

func (c *Client) publish(ctx context.Context, queue string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.isCircuitOpen() {
		return errors.New("publish message: circuit breaker is open")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureConnectedLocked(); err != nil {
		c.recordFailure()
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err := c.channel.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		queue,          // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		c.recordFailure()
		if isConnectionError(err) {
			c.closeLocked()
		}
		return fmt.Errorf("publish message: %w", err)
	}
	c.recordSuccess()

	c.logger.DebugContext(ctx, "Published message",
		log.FieldOperation, log.OpPublish,
		"exchange", c.exchangeName,
		"queue", queue)
	return nil
}

// Handler processes one delivery body. Returning an error wrapped with
// Permanent rejects the delivery; any other error requeues it.
type Handler func(ctx context.Context, body []byte) error

// Consume delivers messages from queue to handler until ctx is done,
// reconnecting with exponential backoff when the broker goes away.
func (c *Client) Consume(ctx context.Context, queue string, handler Handler) error {
	attempt := 0
	for {
		deliveries, ch, err := c.startConsuming(queue)
		if err != nil {
			wait := exponentialBackoff(attempt)
			c.logger.WarnContext(ctx, "Consumer setup failed, retrying",
				"queue", queue,
				"retry_in", wait.String(),
				log.FieldError, err.Error())
			attempt++
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
				continue
			}
		}
		attempt = 0
		c.logger.InfoContext(ctx, "Started consuming", "queue", queue)

		err = c.drain(ctx, deliveries, handler)
		ch.Close()
		if ctx.Err() != nil {
			c.logger.InfoContext(ctx, "Stopping message consumption", "queue", queue, "reason", ctx.Err())
			return ctx.Err()
		}
		c.logger.WarnContext(ctx, "Delivery channel closed, reconnecting",
			"queue", queue, log.FieldError, fmt.Sprint(err))
	}
}

func (c *Client) startConsuming(queue string) (<-chan amqp091.Delivery, *amqp091.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureConnectedLocked(); err != nil {
		return nil, nil, err
	}
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, nil, fmt.Errorf("open consumer channel: %w", err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		ch.Close()
		return nil, nil, fmt.Errorf("set qos: %w", err)
	}
	deliveries, err := ch.Consume(
		queue, // queue
		"",    // consumer
		false, // auto-ack (we want manual ack)
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		ch.Close()
		return nil, nil, fmt.Errorf("start consuming: %w", err)
	}
	return deliveries, ch, nil
}

func (c *Client) drain(ctx context.Context, deliveries <-chan amqp091.Delivery, handler Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("message channel closed")
			}
			Dispatch(ctx, d, handler, c.logger)
		}
	}
}

// Dispatch runs handler for one delivery and settles it: ack on success,
// reject on a permanent error, requeue otherwise.
func Dispatch(ctx context.Context, d amqp091.Delivery, handler Handler, logger *log.Logger) {
	err := handler(ctx, d.Body)
	switch {
	case err == nil:
		if ackErr := d.Ack(false); ackErr != nil {
			logger.ErrorContext(ctx, "Failed to ack message", log.FieldDeliveryTag, d.DeliveryTag, log.FieldError, ackErr.Error())
		}
	case IsPermanent(err):
		logger.ErrorContext(ctx, "Rejecting message", log.FieldDeliveryTag, d.DeliveryTag, log.FieldError, err.Error())
		_ = d.Nack(false, false)
	default:
		logger.WarnContext(ctx, "Failed to handle message, requeueing", log.FieldDeliveryTag, d.DeliveryTag, log.FieldError, err.Error())
		_ = d.Nack(false, true)
	}
}

// ConsumeSMS decodes InboundSMSMessage deliveries for handler.
func (c *Client) ConsumeSMS(ctx context.Context, queue string, handler func(context.Context, *InboundSMSMessage) error) error {
	return c.Consume(ctx, queue, SMSHandler(handler))
}

// ConsumeExpenseSync decodes ExpenseSyncMessage deliveries for handler.
func (c *Client) ConsumeExpenseSync(ctx context.Context, queue string, handler func(context.Context, *ExpenseSyncMessage) error) error {
	return c.Consume(ctx, queue, ExpenseSyncHandler(handler))
}

// SMSHandler adapts a typed SMS handler; undecodable bodies are permanent errors.
func SMSHandler(h func(context.Context, *InboundSMSMessage) error) Handler {
	return func(ctx context.Context, body []byte) error {
		msg, err := InboundSMSMessageFromJSON(body)
		if err != nil {
			return Permanent(fmt.Errorf("decode sms message: %w", err))
		}
		return h(ctx, msg)
	}
}

// ExpenseSyncHandler adapts a typed sync handler; undecodable bodies are permanent errors.
func ExpenseSyncHandler(h func(context.Context, *ExpenseSyncMessage) error) Handler {
	return func(ctx context.Context, body []byte) error {
		msg, err := ExpenseSyncMessageFromJSON(body)
		if err != nil {
			return Permanent(fmt.Errorf("decode sync message: %w", err))
		}
		return h(ctx, msg)
	}
}

func (c *Client) isCircuitOpen() bool {
	if atomic.LoadInt32(&c.state) != StateOpen {
		return false
	}
	c.mu.Lock()
	last := c.lastFailure
	c.mu.Unlock()
	if time.Since(last) > openTimeout {
		atomic.CompareAndSwapInt32(&c.state, StateOpen, StateHalfOpen)
		return false
	}
	return true
}

func (c *Client) recordSuccess() {
	atomic.StoreInt64(&c.failureCount, 0)
	atomic.StoreInt32(&c.state, StateClosed)
}

// recordFailure must be called with c.mu held or before the client is shared.
func (c *Client) recordFailure() {
	c.lastFailure = time.Now()
	n := atomic.AddInt64(&c.failureCount, 1)
	if n >= maxFailures || atomic.LoadInt32(&c.state) == StateHalfOpen {
		atomic.StoreInt32(&c.state, StateOpen)
	}
}

func exponentialBackoff(attempt int) time.Duration {
	if attempt > 5 {
		return maxBackoff
	}
	d := time.Second << attempt
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection", "eof", "broken pipe", "closed"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func (c *Client) closeLocked() {
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
	return nil
}

// QueuePublisher binds the client to one routing key.
type QueuePublisher struct {
	client *Client
	queue  string
}

func (c *Client) Queue(name string) QueuePublisher {
	return QueuePublisher{client: c, queue: name}
}

func (q QueuePublisher) PublishExpenseSync(ctx context.Context, id int64) error {
	return q.client.PublishExpenseSync(ctx, q.queue, id)
}

func (q QueuePublisher) PublishSMS(ctx context.Context, text string) error {
	return q.client.PublishSMS(ctx, q.queue, text)
}
