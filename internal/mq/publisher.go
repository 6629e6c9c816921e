// Package mq delivers realtime events through RabbitMQ. Dashboard and
// player clients subscribe to their logical channel via the websocket
// bridge; delivery is at-most-once and best effort.
package mq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/matchpoint-pe/fieldbook/pkg/booking"
)

// Publisher emits booking events on a topic exchange, routed by channel.
type Publisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

// NewPublisher dials the broker and declares the exchange.
func NewPublisher(url, exchange string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &Publisher{conn: conn, ch: ch, exchange: exchange}, nil
}

// Emit publishes one event; the routing key is the logical channel.
func (publisher *Publisher) Emit(ctx context.Context, event booking.Event) error {
	body, err := json.Marshal(map[string]any{
		"event":   event.Name,
		"channel": event.Channel,
		"payload": event.Payload,
	})
	if err != nil {
		return err
	}
	return publisher.ch.PublishWithContext(ctx, publisher.exchange, event.Channel, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
}

// Close tears down the channel and connection.
func (publisher *Publisher) Close() error {
	if publisher.ch != nil {
		_ = publisher.ch.Close()
	}
	if publisher.conn != nil {
		return publisher.conn.Close()
	}
	return nil
}
