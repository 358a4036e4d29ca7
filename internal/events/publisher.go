package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher emits processing events. Implementations must be safe for
// concurrent use.
type Publisher interface {
	MessageProcessed(ctx context.Context, ev MessageProcessed)
	Close() error
}

// AMQPPublisher publishes envelopes to a RabbitMQ topic exchange.
type AMQPPublisher struct {
	conn     *amqp.Connection
	exchange string
	logger   *slog.Logger
}

func NewAMQPPublisher(url, exchange string, logger *slog.Logger) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	return &AMQPPublisher{conn: conn, exchange: exchange, logger: logger}, nil
}

// MessageProcessed publishes one envelope. Publish failures are logged
// and swallowed.
func (p *AMQPPublisher) MessageProcessed(ctx context.Context, ev MessageProcessed) {
	env := Envelope{
		Meta: Meta{
			ID:            uuid.NewString(),
			Type:          TypeMessageProcessed,
			Source:        "bot-engine",
			CorrelationID: ev.MessageID,
			OccurredAt:    time.Now().UTC(),
		},
		Data: ev,
	}

	if err := p.publish(ctx, TypeMessageProcessed, env); err != nil {
		p.logger.Error("event publish failed", "type", env.Meta.Type, "err", err)
	}
}

func (p *AMQPPublisher) publish(ctx context.Context, key string, env Envelope) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	body, err := json.Marshal(env)
	if err != nil {
		return err
	}

	return ch.PublishWithContext(ctx, p.exchange, key, false, false, amqp.Publishing{
		ContentType:   "application/json",
		MessageId:     env.Meta.ID,
		CorrelationId: env.Meta.CorrelationID,
		Timestamp:     env.Meta.OccurredAt,
		Body:          body,
	})
}

func (p *AMQPPublisher) Close() error {
	return p.conn.Close()
}

// NoopPublisher is used when the event stream is disabled.
type NoopPublisher struct{}

func NewNoopPublisher() *NoopPublisher { return &NoopPublisher{} }

func (NoopPublisher) MessageProcessed(ctx context.Context, ev MessageProcessed) {}
func (NoopPublisher) Close() error                                              { return nil }
