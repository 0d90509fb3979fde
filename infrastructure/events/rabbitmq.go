package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

type Publisher interface {
	Publish(ctx context.Context, key string, msg Envelope) error
	Close() error
}

const maxDialDelay = 30 * time.Second

// DialWithRetry connects to RabbitMQ with exponential backoff.
func DialWithRetry(ctx context.Context, url string, attempts int, delay time.Duration, log *zap.Logger) (*amqp.Connection, error) {
	var lastErr error
	for i := 1; i <= attempts; i++ {
		conn, err := amqp.Dial(url)
		if err == nil {
			return conn, nil
		}
		lastErr = err

		sleep := delay << (i - 1)
		if sleep > maxDialDelay {
			sleep = maxDialDelay
		}
		log.Warn("rabbitmq dial failed", zap.Int("attempt", i), zap.Duration("sleep", sleep), zap.Error(err))

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, errors.Join(ctx.Err(), lastErr)
		case <-timer.C:
		}
	}
	return nil, fmt.Errorf("connect to rabbitmq after %d attempts: %w", attempts, lastErr)
}

// RabbitPublisher sends lifecycle events to a durable topic exchange.
type RabbitPublisher struct {
	conn     *amqp.Connection
	exchange string
	log      *zap.Logger
}

func NewRabbitPublisher(conn *amqp.Connection, exchange string, log *zap.Logger) (*RabbitPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &RabbitPublisher{conn: conn, exchange: exchange, log: log}, nil
}

func (p *RabbitPublisher) Publish(ctx context.Context, key string, msg Envelope) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	id := msg.Meta.Id
	if id == "" {
		id = uuid.NewString()
	}
	correlationId := id
	if msg.Meta.CorrelationId != nil {
		correlationId = *msg.Meta.CorrelationId
	}

	err = ch.PublishWithContext(ctx, p.exchange, key, false, false, amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		MessageId:     id,
		CorrelationId: correlationId,
		Timestamp:     msg.Meta.Time,
		Body:          body,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", key, err)
	}
	p.log.Debug("event published", zap.String("key", key), zap.String("id", id))
	return nil
}

func (p *RabbitPublisher) Close() error {
	return p.conn.Close()
}

// NopPublisher discards events. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, Envelope) error { return nil }

func (NopPublisher) Close() error { return nil }
