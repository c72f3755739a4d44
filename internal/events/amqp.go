package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// DialTimeout bounds each TCP dial to the broker, including redials made
// while publishing.
const DialTimeout = 2 * time.Second

// AMQPPublisher publishes persistent JSON messages to a durable RabbitMQ queue
// over one long-lived connection, redialing once when the broker dropped it.
type AMQPPublisher struct {
	url    string
	queue  string
	logger *zap.Logger

	// sem is a one-slot lock over conn and ch that callers can abandon when
	// their context ends.
	sem  chan struct{}
	conn *amqp.Connection
	ch   *amqp.Channel
}

// DialAMQP connects to the broker and declares the review queue.
func DialAMQP(url string, logger *zap.Logger) (*AMQPPublisher, error) {
	p := newAMQPPublisher(url, logger)
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

func newAMQPPublisher(url string, logger *zap.Logger) *AMQPPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AMQPPublisher{url: url, queue: ReviewSubmittedQueue, logger: logger, sem: make(chan struct{}, 1)}
}

func (p *AMQPPublisher) lock(ctx context.Context) error {
	select {
	case p.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *AMQPPublisher) unlock() { <-p.sem }

func (p *AMQPPublisher) connect() error {
	conn, err := amqp.DialConfig(p.url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(DialTimeout),
	})
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("rabbitmq channel: %w", err)
	}
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("rabbitmq queue declare: %w", err)
	}
	p.conn = conn
	p.ch = ch
	return nil
}

// PublishReviewSubmitted sends event to the review queue.
func (p *AMQPPublisher) PublishReviewSubmitted(ctx context.Context, event ReviewSubmitted) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ReviewID,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	if err := p.lock(ctx); err != nil {
		return fmt.Errorf("rabbitmq publish: %w", err)
	}
	defer p.unlock()

	if p.ch == nil || p.ch.IsClosed() {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("rabbitmq publish: %w", err)
		}
		if err := p.reconnect(); err != nil {
			return err
		}
	}

	err = p.ch.PublishWithContext(ctx, "", p.queue, false, false, msg)
	if errors.Is(err, amqp.ErrClosed) {
		p.logger.Warn("rabbitmq: channel closed, redialing", zap.Error(err))
		if err := p.reconnect(); err != nil {
			return err
		}
		err = p.ch.PublishWithContext(ctx, "", p.queue, false, false, msg)
	}
	if err != nil {
		return fmt.Errorf("rabbitmq publish: %w", err)
	}
	return nil
}

func (p *AMQPPublisher) reconnect() error {
	_ = p.closeLocked()
	return p.connect()
}

// Close shuts down the channel and connection.
func (p *AMQPPublisher) Close() error {
	_ = p.lock(context.Background())
	defer p.unlock()
	return p.closeLocked()
}

func (p *AMQPPublisher) closeLocked() error {
	var errs []error
	if p.ch != nil {
		if err := p.ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, err)
		}
		p.ch = nil
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, err)
		}
		p.conn = nil
	}
	return errors.Join(errs...)
}
