package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

type Publisher interface {
	Publish(ctx context.Context, key string, msg Envelope) error
	Close() error
}

type rmqPublisher struct {
	conn     *amqp.Connection
	exchange string
	log      logrus.FieldLogger
}

// NewRabbitPublisher connects to url and declares a durable topic exchange.
func NewRabbitPublisher(url, exchange string, logger logrus.FieldLogger) (Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open amqp channel: %w", err)
	}
	defer ch.Close()
	if err := ch.ExchangeDeclare(
		exchange, "topic", true, false, false, false, nil,
	); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}

	return &rmqPublisher{
		conn:     conn,
		exchange: exchange,
		log:      logger.WithField("component", "events"),
	}, nil
}

func (r *rmqPublisher) Publish(ctx context.Context, key string, msg Envelope) error {
	ch, err := r.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open amqp channel: %w", err)
	}
	defer ch.Close()

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	msgID := msg.Meta.ID
	if msgID == "" {
		msgID = uuid.NewString()
	}

	err = ch.PublishWithContext(
		ctx, r.exchange, key, false, false,
		amqp.Publishing{
			ContentType:   "application/json",
			DeliveryMode:  amqp.Persistent,
			MessageId:     msgID,
			CorrelationId: msg.Meta.CorrelationID,
			Type:          msg.Meta.Type,
			AppId:         Producer,
			Timestamp:     time.Now(),
			Body:          body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", key, err)
	}
	r.log.WithFields(logrus.Fields{"key": key, "exchange": r.exchange}).Debug("Published event")
	return nil
}

func (r *rmqPublisher) Close() error {
	return r.conn.Close()
}

// FallbackPublisher drops events. It is used when no broker is configured.
type FallbackPublisher struct {
	log logrus.FieldLogger
}

func NewFallback(logger logrus.FieldLogger) Publisher {
	return &FallbackPublisher{log: logger.WithField("component", "events")}
}

func (p *FallbackPublisher) Publish(ctx context.Context, key string, msg Envelope) error {
	p.log.WithField("key", key).Debug("FallbackPublisher: skipped publish")
	return nil
}

func (p *FallbackPublisher) Close() error {
	return nil
}
